package main

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RegisterHandler creates an account. Usernames are unique and immutable.
func (api *API) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, err)
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Email == "" || req.Password == "" {
		api.writeError(w, r, errValidation("Username, email and password are required"))
		return
	}

	var existing User
	err := api.db.Where("username = ?", req.Username).First(&existing).Error
	if err == nil {
		api.writeError(w, r, errConflict("Username already exists"))
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		api.writeError(w, r, errInternal("Failed to register user", err))
		return
	}

	user := User{
		Username: req.Username,
		// TODO: hash with bcrypt before storing; compare sites must change
		// together with a migration for existing rows.
		Password: req.Password,
		Email:    req.Email,
		Location: req.Location,
		Role:     req.Role,
		DOB:      req.DOB,
	}
	if err := api.db.Create(&user).Error; err != nil {
		// The unique index is the real guard against racing registrations.
		api.writeError(w, r, errConflict("Username already exists"))
		return
	}

	logger.WithField("username", user.Username).Info("User registered")
	api.writeSuccess(w, r, map[string]any{"message": "User registered"})
}

// SearchUsersHandler finds users by case-insensitive username substring.
func (api *API) SearchUsersHandler(w http.ResponseWriter, r *http.Request) {
	q := strings.ToLower(r.URL.Query().Get("q"))

	var users []User
	err := api.db.Where("LOWER(username) LIKE ?", "%"+q+"%").
		Order("username ASC").
		Find(&users).Error
	if err != nil {
		api.writeError(w, r, errInternal("Search failed", err))
		return
	}

	api.writeSuccess(w, r, map[string]any{"results": users})
}

func (api *API) SessionStatusHandler(w http.ResponseWriter, r *http.Request) {
	username, ok := api.sessionUsername(r)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"loggedIn": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"loggedIn": true, "username": username})
}

func (api *API) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, err)
		return
	}

	var user User
	err := api.db.Where("username = ?", req.Username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && user.Password != req.Password) {
		logger.WithField("username", req.Username).Warn("Invalid login attempt")
		api.writeError(w, r, errUnauthorized("Invalid login"))
		return
	}
	if err != nil {
		api.writeError(w, r, errInternal("Login failed", err))
		return
	}

	session, _ := api.store.Get(r, sessionName)
	session.Values["username"] = user.Username
	if err := session.Save(r, w); err != nil {
		api.writeError(w, r, errInternal("Failed to save session", err))
		return
	}

	logger.WithField("username", user.Username).Info("User logged in")
	api.writeSuccess(w, r, map[string]any{
		"message":  "Login successful",
		"username": user.Username,
	})
}

func (api *API) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	session, _ := api.store.Get(r, sessionName)
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		api.writeError(w, r, errInternal("Failed to destroy session", err))
		return
	}
	api.writeSuccess(w, r, map[string]any{"message": "Logged out"})
}

// FollowHandler adds the target to the caller's follow set. Following is
// idempotent; following yourself is rejected outright.
func (api *API) FollowHandler(w http.ResponseWriter, r *http.Request, username string) {
	var req followRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, err)
		return
	}

	if req.TargetUsername == "" {
		api.writeError(w, r, errValidation("Target username is required"))
		return
	}
	if req.TargetUsername == username {
		api.writeError(w, r, errValidation("You cannot follow yourself"))
		return
	}

	var target User
	if err := api.db.Where("username = ?", req.TargetUsername).First(&target).Error; err != nil {
		api.writeError(w, r, errNotFound("User not found"))
		return
	}

	follow := Follow{WhoUsername: username, WhomUsername: req.TargetUsername}
	err := api.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&follow).Error
	if err != nil {
		api.writeError(w, r, errInternal("Failed to follow user", err))
		return
	}

	logger.WithFields(logrus.Fields{
		"user":   username,
		"target": req.TargetUsername,
	}).Info("User followed")
	api.metrics.FollowRequests.WithLabelValues(r.URL.Path).Inc()
	api.writeSuccess(w, r, map[string]any{"message": "Now following user"})
}

// UnfollowHandler removes the target from the caller's follow set; removing
// an absent edge still succeeds.
func (api *API) UnfollowHandler(w http.ResponseWriter, r *http.Request, username string) {
	var req followRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, err)
		return
	}

	if req.TargetUsername == "" {
		api.writeError(w, r, errValidation("Target username is required"))
		return
	}

	err := api.db.
		Where("who_username = ? AND whom_username = ?", username, req.TargetUsername).
		Delete(&Follow{}).Error
	if err != nil {
		api.writeError(w, r, errInternal("Failed to unfollow user", err))
		return
	}

	api.metrics.UnfollowRequests.WithLabelValues(r.URL.Path).Inc()
	api.writeSuccess(w, r, map[string]any{"message": "Unfollowed user"})
}

// ProfileHandler returns a public profile with follower, following and
// listing counts.
func (api *API) ProfileHandler(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	var user User
	if err := api.db.Where("username = ?", username).First(&user).Error; err != nil {
		api.writeError(w, r, errNotFound("User not found"))
		return
	}

	var followers, following, listings int64
	if err := api.db.Model(&Follow{}).Where("whom_username = ?", username).Count(&followers).Error; err != nil {
		api.writeError(w, r, errInternal("Failed to load profile", err))
		return
	}
	if err := api.db.Model(&Follow{}).Where("who_username = ?", username).Count(&following).Error; err != nil {
		api.writeError(w, r, errInternal("Failed to load profile", err))
		return
	}
	if err := api.db.Model(&Listing{}).Where("owner_username = ?", username).Count(&listings).Error; err != nil {
		api.writeError(w, r, errInternal("Failed to load profile", err))
		return
	}

	api.writeSuccess(w, r, map[string]any{
		"user":           user,
		"followersCount": followers,
		"followingCount": following,
		"listingsCount":  listings,
	})
}

// FollowersHandler lists the users whose follow set contains this username.
func (api *API) FollowersHandler(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	if err := api.requireUser(username); err != nil {
		api.writeError(w, r, err)
		return
	}

	var users []User
	err := api.db.
		Where("username IN (?)", api.db.Model(&Follow{}).
			Select("who_username").
			Where("whom_username = ?", username)).
		Order("username ASC").
		Find(&users).Error
	if err != nil {
		api.writeError(w, r, errInternal("Failed to load followers", err))
		return
	}

	api.writeSuccess(w, r, map[string]any{"users": users})
}

// FollowingHandler lists the users this username follows.
func (api *API) FollowingHandler(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	if err := api.requireUser(username); err != nil {
		api.writeError(w, r, err)
		return
	}

	var users []User
	err := api.db.
		Where("username IN (?)", api.db.Model(&Follow{}).
			Select("whom_username").
			Where("who_username = ?", username)).
		Order("username ASC").
		Find(&users).Error
	if err != nil {
		api.writeError(w, r, errInternal("Failed to load following", err))
		return
	}

	api.writeSuccess(w, r, map[string]any{"users": users})
}

func (api *API) requireUser(username string) error {
	var user User
	if err := api.db.Select("id").Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errNotFound("User not found")
		}
		return errInternal("Failed to load user", err)
	}
	return nil
}
