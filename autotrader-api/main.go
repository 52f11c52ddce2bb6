package main

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"

	logrustash "github.com/bshuster-repo/logrus-logstash-hook"
	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var logger = logrus.New()

type Config struct {
	Port       string
	Prefix     string
	SessionKey string

	SQLitePath string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	UploadDir    string
	LogLevel     string
	LogstashAddr string

	VehicleAPIURL string
	VehicleAPIKey string
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadConfig reads the environment, with an optional .env file for local
// runs. Missing keys fall back to development defaults.
func loadConfig() Config {
	if err := godotenv.Load(); err != nil {
		logger.WithError(err).Debug("No .env file loaded")
	}

	port := getenv("PORT", ":8080")
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}

	return Config{
		Port:          port,
		Prefix:        getenv("API_PREFIX", "/api"),
		SessionKey:    getenv("SESSION_KEY", "autotrader-dev-key"),
		SQLitePath:    getenv("DATABASE", "autotrader.db"),
		DBHost:        os.Getenv("DB_HOST"),
		DBPort:        getenv("DB_PORT", "5432"),
		DBUser:        os.Getenv("DB_USER"),
		DBPassword:    os.Getenv("DB_PASSWORD"),
		DBName:        os.Getenv("DB_NAME"),
		UploadDir:     getenv("UPLOAD_DIR", "uploads"),
		LogLevel:      getenv("LOG_LEVEL", "info"),
		LogstashAddr:  os.Getenv("LOGSTASH_ADDR"),
		VehicleAPIURL: getenv("VEHICLE_API_URL", defaultVehicleAPIURL),
		VehicleAPIKey: os.Getenv("VEHICLE_API_KEY"),
	}
}

func initLogger(cfg Config) {
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.LogstashAddr != "" {
		conn, err := net.Dial("tcp", cfg.LogstashAddr)
		if err != nil {
			logger.WithError(err).Warn("Could not reach logstash, logging to stdout only")
			return
		}
		hook := logrustash.New(conn, logrustash.DefaultFormatter(logrus.Fields{"type": "autotrader"}))
		logger.Hooks.Add(hook)
	}
}

// connectDB opens SQLite locally and PostgreSQL when DB_HOST is set.
func connectDB(cfg Config) (*gorm.DB, error) {
	if cfg.DBHost == "" {
		logger.WithField("path", cfg.SQLitePath).Info("Connecting to SQLite database")
		return gorm.Open(sqlite.Open(cfg.SQLitePath), &gorm.Config{})
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=require",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)
	logger.WithField("host", cfg.DBHost).Info("Connecting to PostgreSQL database")
	return gorm.Open(postgres.Open(dsn), &gorm.Config{})
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Follow{},
		&Listing{},
		&ListingImage{},
		&Like{},
		&Comment{},
		&Favourite{},
		&Message{},
	)
}

type API struct {
	db      *gorm.DB
	store   *sessions.CookieStore
	metrics *Metrics
	cfg     Config
	vehicle *vehicleClient
}

func newAPI(db *gorm.DB, cfg Config, metrics *Metrics) *API {
	store := sessions.NewCookieStore([]byte(cfg.SessionKey))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   3600 * 16, // 16 hours
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}

	return &API{
		db:      db,
		store:   store,
		metrics: metrics,
		cfg:     cfg,
		vehicle: newVehicleClient(cfg.VehicleAPIURL, cfg.VehicleAPIKey),
	}
}

// Router wires every route under the configured prefix.
func (api *API) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(api.logRequests)

	p := r.PathPrefix(api.cfg.Prefix).Subrouter()

	// users and sessions
	p.HandleFunc("/users", api.RegisterHandler).Methods("POST")
	p.HandleFunc("/users", api.SearchUsersHandler).Methods("GET")
	p.HandleFunc("/login", api.SessionStatusHandler).Methods("GET")
	p.HandleFunc("/login", api.LoginHandler).Methods("POST")
	p.HandleFunc("/login", api.LogoutHandler).Methods("DELETE")

	// follow graph and profiles
	p.HandleFunc("/follow", api.withAuth(api.FollowHandler)).Methods("POST")
	p.HandleFunc("/follow", api.withAuth(api.UnfollowHandler)).Methods("DELETE")
	p.HandleFunc("/profile/{username}", api.ProfileHandler).Methods("GET")
	p.HandleFunc("/profile/{username}/followers", api.FollowersHandler).Methods("GET")
	p.HandleFunc("/profile/{username}/following", api.FollowingHandler).Methods("GET")

	// listings
	p.HandleFunc("/contents", api.withAuth(api.CreateListingHandler)).Methods("POST")
	p.HandleFunc("/contents", api.ListListingsHandler).Methods("GET")
	p.HandleFunc("/listings/{id}", api.GetListingHandler).Methods("GET")
	p.HandleFunc("/listings/{id}", api.withAuth(api.DeleteListingHandler)).Methods("DELETE")
	p.HandleFunc("/listings/{id}/like", api.withAuth(api.ToggleLikeHandler)).Methods("POST")
	p.HandleFunc("/listings/{id}/comments", api.withAuth(api.AddCommentHandler)).Methods("POST")
	p.HandleFunc("/my-listings", api.withAuth(api.MyListingsHandler)).Methods("GET")
	p.HandleFunc("/feed", api.withAuth(api.FeedHandler)).Methods("GET")

	// favourites
	p.HandleFunc("/favourites", api.withAuth(api.AddFavouriteHandler)).Methods("POST")
	p.HandleFunc("/favourites", api.withAuth(api.RemoveFavouriteHandler)).Methods("DELETE")
	p.HandleFunc("/favourites", api.withAuth(api.ListFavouritesHandler)).Methods("GET")

	// messaging
	p.HandleFunc("/messages", api.withAuth(api.SendMessageHandler)).Methods("POST")
	p.HandleFunc("/messages", api.withAuth(api.ThreadHandler)).Methods("GET")
	p.HandleFunc("/conversations", api.withAuth(api.ConversationsHandler)).Methods("GET")

	// uploads
	p.HandleFunc("/upload/profile", api.withAuth(api.UploadProfileHandler)).Methods("POST")
	p.HandleFunc("/upload/car", api.withAuth(api.UploadCarHandler)).Methods("POST")

	// vehicle registry proxy
	p.HandleFunc("/vehicle", api.VehicleLookupHandler).Methods("POST")

	return r
}

func main() {
	cfg := loadConfig()
	initLogger(cfg)

	db, err := connectDB(cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to the database")
	}
	if err := migrate(db); err != nil {
		logger.WithError(err).Fatal("Failed to run migrations")
	}

	metrics := InitMetrics(prometheus.DefaultRegisterer)
	api := newAPI(db, cfg, metrics)

	r := api.Router()
	r.Handle("/metrics", promhttp.Handler())

	logger.WithField("port", cfg.Port).Info("Server starting")
	if err := http.ListenAndServe(cfg.Port, r); err != nil {
		logger.WithError(err).Fatal("Server stopped")
	}
}
