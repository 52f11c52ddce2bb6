package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const sessionName = "autotrader-session"

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.WithError(err).Error("Failed to encode response")
	}
}

// writeError turns any error into the JSON failure envelope. Unknown errors
// are reported as internal without leaking their details.
func (api *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *apiError
	if !errors.As(err, &apiErr) {
		apiErr = errInternal("An error occurred", err)
	}

	if apiErr.Kind == errKindInternal {
		logger.WithError(apiErr).WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("Request failed")
	}
	api.metrics.BadRequests.WithLabelValues(r.URL.Path).Inc()

	body := map[string]any{
		"success": false,
		"message": apiErr.Message,
		"code":    apiErr.Kind,
	}
	if len(apiErr.UpstreamBody) > 0 {
		// Registries answer 429/503 with text or HTML gateway pages; embed
		// those as plain strings so the envelope still encodes.
		if json.Valid(apiErr.UpstreamBody) {
			body["error"] = apiErr.UpstreamBody
		} else {
			body["error"] = string(apiErr.UpstreamBody)
		}
	}
	writeJSON(w, apiErr.httpStatus(), body)
}

func (api *API) writeSuccess(w http.ResponseWriter, r *http.Request, fields map[string]any) {
	api.metrics.SuccessfulRequests.WithLabelValues(r.URL.Path).Inc()
	body := map[string]any{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	writeJSON(w, http.StatusOK, body)
}

// decodeJSON reads a request body into dst. Malformed JSON is a validation
// failure, not a server error. Numbers landing in untyped fields decode as
// json.Number for the coercion helpers.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return errValidation("Invalid request body")
	}
	return nil
}

// sessionUsername resolves the caller's identity from the session cookie.
func (api *API) sessionUsername(r *http.Request) (string, bool) {
	session, err := api.store.Get(r, sessionName)
	if err != nil {
		return "", false
	}
	username, ok := session.Values["username"].(string)
	return username, ok && username != ""
}

// withAuth resolves the session once and hands the username to the handler,
// so handlers never touch session state themselves.
func (api *API) withAuth(next func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username, ok := api.sessionUsername(r)
		if !ok {
			api.writeError(w, r, errUnauthorized("Not logged in"))
			return
		}
		next(w, r, username)
	}
}

// logRequests logs every request on completion, with a warning for anything
// slower than two seconds.
func (api *API) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)

		duration := time.Since(start)
		entry := logger.WithFields(logrus.Fields{
			"method":    r.Method,
			"path":      r.URL.Path,
			"duration":  duration,
			"remote_ip": r.RemoteAddr,
		})
		if duration > 2*time.Second {
			entry.Warn("Slow request detected")
		} else {
			entry.Info("Request completed")
		}
	})
}

// parseListingID turns a path or payload id into a listing key. Anything
// that does not parse as a positive integer is a malformed identifier.
func parseListingID(raw string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 32)
	if err != nil || id == 0 {
		return 0, errMalformedID("Invalid listing id")
	}
	return uint(id), nil
}

// coerceFloat accepts the number-or-string values the clients send for
// numeric listing fields. Missing, empty or unparsable values become nil.
func coerceFloat(v any) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return nil
		}
		return &f
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}

func coerceInt(v any) *int {
	f := coerceFloat(v)
	if f == nil {
		return nil
	}
	i := int(*f)
	return &i
}

func listingToJSON(l Listing) listingJSON {
	images := make([]string, 0, len(l.Images))
	for _, img := range l.Images {
		images = append(images, img.Path)
	}
	likes := make([]string, 0, len(l.Likes))
	for _, like := range l.Likes {
		likes = append(likes, like.Username)
	}
	comments := l.Comments
	if comments == nil {
		comments = []Comment{}
	}
	return listingJSON{
		ID:            l.ID,
		OwnerUsername: l.OwnerUsername,
		Title:         l.Title,
		Make:          l.Make,
		Model:         l.Model,
		Colour:        l.Colour,
		FuelType:      l.FuelType,
		Registration:  l.Registration,
		Description:   l.Description,
		Location:      l.Location,
		Year:          l.Year,
		Price:         l.Price,
		Mileage:       l.Mileage,
		EngineCap:     l.EngineCap,
		CO2Emissions:  l.CO2Emissions,
		QuickPost:     l.QuickPost,
		CreatedAt:     l.CreatedAt,
		Images:        images,
		Likes:         likes,
		Comments:      comments,
	}
}

func listingsToJSON(listings []Listing) []listingJSON {
	out := make([]listingJSON, 0, len(listings))
	for _, l := range listings {
		out = append(out, listingToJSON(l))
	}
	return out
}

// commentOrder scopes a comment preload to creation order. Without it the
// rows come back in whatever order the database feels like.
func commentOrder(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC, id ASC")
}

// listingSortClause maps a sort key to an ORDER BY clause. Newest is the
// default; equal timestamps fall back to insertion order.
func listingSortClause(sort string) string {
	switch sort {
	case "oldest":
		return "created_at ASC, id ASC"
	case "pricelow":
		return "price ASC, id ASC"
	case "pricehigh":
		return "price DESC, id ASC"
	default: // newest
		return "created_at DESC, id ASC"
	}
}
