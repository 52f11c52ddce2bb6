package main

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CreateListingHandler stores a new listing owned by the caller. Numeric
// fields arrive as strings or numbers and are coerced; values that do not
// parse are simply absent.
func (api *API) CreateListingHandler(w http.ResponseWriter, r *http.Request, username string) {
	var req createListingRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, err)
		return
	}

	listing := Listing{
		OwnerUsername: username,
		Title:         req.Title,
		Make:          req.Make,
		Model:         req.Model,
		Colour:        req.Colour,
		FuelType:      req.FuelType,
		Registration:  req.Registration,
		Description:   req.Description,
		Location:      req.Location,
		Year:          coerceInt(req.Year),
		Price:         coerceFloat(req.Price),
		Mileage:       coerceInt(req.Mileage),
		EngineCap:     coerceInt(req.EngineCap),
		CO2Emissions:  coerceInt(req.CO2Emissions),
		QuickPost:     req.QuickPost,
		CreatedAt:     time.Now(),
	}
	for _, path := range req.Images {
		if path == "" {
			continue
		}
		listing.Images = append(listing.Images, ListingImage{Path: path})
	}

	if err := api.db.Create(&listing).Error; err != nil {
		api.writeError(w, r, errInternal("Failed to create listing", err))
		return
	}

	logger.WithFields(logrus.Fields{
		"listing_id": listing.ID,
		"owner":      username,
	}).Info("Listing created")
	api.metrics.ListingsCreated.WithLabelValues(r.URL.Path).Inc()
	api.writeSuccess(w, r, map[string]any{
		"message": "Listing created",
		"listing": listingToJSON(listing),
	})
}

// ListListingsHandler returns every listing matching the filters. There is
// no pagination; the result set is as large as the store.
func (api *API) ListListingsHandler(w http.ResponseWriter, r *http.Request) {
	query := api.db.Model(&Listing{}).
		Preload("Images").Preload("Likes").Preload("Comments", commentOrder)

	if makeFilter := r.URL.Query().Get("make"); makeFilter != "" {
		query = query.Where("LOWER(make) LIKE ?", "%"+strings.ToLower(makeFilter)+"%")
	}
	if minPrice := r.URL.Query().Get("minPrice"); minPrice != "" {
		if f, err := strconv.ParseFloat(minPrice, 64); err == nil {
			query = query.Where("price >= ?", f)
		}
	}
	if maxPrice := r.URL.Query().Get("maxPrice"); maxPrice != "" {
		if f, err := strconv.ParseFloat(maxPrice, 64); err == nil {
			query = query.Where("price <= ?", f)
		}
	}

	var listings []Listing
	err := query.Order(listingSortClause(r.URL.Query().Get("sort"))).Find(&listings).Error
	if err != nil {
		api.writeError(w, r, errInternal("Failed to fetch listings", err))
		return
	}

	api.writeSuccess(w, r, map[string]any{"results": listingsToJSON(listings)})
}

// GetListingHandler returns one listing joined with its owner's public
// profile.
func (api *API) GetListingHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseListingID(mux.Vars(r)["id"])
	if err != nil {
		api.writeError(w, r, err)
		return
	}

	var listing Listing
	err = api.db.Preload("Images").Preload("Likes").Preload("Comments", commentOrder).
		First(&listing, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		api.writeError(w, r, errNotFound("Listing not found"))
		return
	}
	if err != nil {
		api.writeError(w, r, errInternal("Failed to fetch listing", err))
		return
	}

	var owner *User
	if listing.OwnerUsername != "" {
		var u User
		if err := api.db.Where("username = ?", listing.OwnerUsername).First(&u).Error; err == nil {
			owner = &u
		}
	}

	api.writeSuccess(w, r, map[string]any{
		"listing": listingToJSON(listing),
		"owner":   owner,
	})
}

// DeleteListingHandler removes a listing. Only the owner may delete it.
func (api *API) DeleteListingHandler(w http.ResponseWriter, r *http.Request, username string) {
	id, err := parseListingID(mux.Vars(r)["id"])
	if err != nil {
		api.writeError(w, r, err)
		return
	}

	var listing Listing
	err = api.db.First(&listing, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		api.writeError(w, r, errNotFound("Listing not found"))
		return
	}
	if err != nil {
		api.writeError(w, r, errInternal("Failed to fetch listing", err))
		return
	}

	if listing.OwnerUsername != username {
		api.writeError(w, r, errForbidden("Not your listing"))
		return
	}

	err = api.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("listing_id = ?", id).Delete(&ListingImage{}).Error; err != nil {
			return err
		}
		if err := tx.Where("listing_id = ?", id).Delete(&Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("listing_id = ?", id).Delete(&Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("listing_id = ?", id).Delete(&Favourite{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Listing{}, id).Error
	})
	if err != nil {
		api.writeError(w, r, errInternal("Failed to delete listing", err))
		return
	}

	logger.WithFields(logrus.Fields{
		"listing_id": id,
		"owner":      username,
	}).Info("Listing deleted")
	api.writeSuccess(w, r, map[string]any{"message": "Listing deleted"})
}

// ToggleLikeHandler flips the caller's membership in the listing's like set
// and reports the new state. Each toggle is a single row insert or delete,
// so different users never trample each other.
func (api *API) ToggleLikeHandler(w http.ResponseWriter, r *http.Request, username string) {
	id, err := parseListingID(mux.Vars(r)["id"])
	if err != nil {
		api.writeError(w, r, err)
		return
	}

	if err := api.requireListing(id); err != nil {
		api.writeError(w, r, err)
		return
	}

	res := api.db.Where("listing_id = ? AND username = ?", id, username).Delete(&Like{})
	if res.Error != nil {
		api.writeError(w, r, errInternal("Failed to toggle like", res.Error))
		return
	}

	liked := false
	if res.RowsAffected == 0 {
		if err := api.db.Create(&Like{ListingID: id, Username: username}).Error; err != nil {
			api.writeError(w, r, errInternal("Failed to toggle like", err))
			return
		}
		liked = true
	}

	var count int64
	if err := api.db.Model(&Like{}).Where("listing_id = ?", id).Count(&count).Error; err != nil {
		api.writeError(w, r, errInternal("Failed to count likes", err))
		return
	}

	api.writeSuccess(w, r, map[string]any{"liked": liked, "count": count})
}

// AddCommentHandler appends a comment to a listing. Comments are ordered by
// creation and never edited.
func (api *API) AddCommentHandler(w http.ResponseWriter, r *http.Request, username string) {
	id, err := parseListingID(mux.Vars(r)["id"])
	if err != nil {
		api.writeError(w, r, err)
		return
	}

	var req commentRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, err)
		return
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		api.writeError(w, r, errValidation("Comment text is required"))
		return
	}

	if err := api.requireListing(id); err != nil {
		api.writeError(w, r, err)
		return
	}

	comment := Comment{
		ListingID: id,
		Username:  username,
		Text:      text,
		CreatedAt: time.Now(),
	}
	if err := api.db.Create(&comment).Error; err != nil {
		api.writeError(w, r, errInternal("Failed to add comment", err))
		return
	}

	api.writeSuccess(w, r, map[string]any{"comment": comment})
}

// MyListingsHandler returns the caller's own listings, newest first.
func (api *API) MyListingsHandler(w http.ResponseWriter, r *http.Request, username string) {
	var listings []Listing
	err := api.db.Preload("Images").Preload("Likes").Preload("Comments", commentOrder).
		Where("owner_username = ?", username).
		Order("created_at DESC, id ASC").
		Find(&listings).Error
	if err != nil {
		api.writeError(w, r, errInternal("Failed to fetch listings", err))
		return
	}

	api.writeSuccess(w, r, map[string]any{"listings": listingsToJSON(listings)})
}

func (api *API) requireListing(id uint) error {
	var listing Listing
	if err := api.db.Select("id").First(&listing, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errNotFound("Listing not found")
		}
		return errInternal("Failed to load listing", err)
	}
	return nil
}
