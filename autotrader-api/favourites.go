package main

import (
	"net/http"
	"time"

	"gorm.io/gorm/clause"
)

// AddFavouriteHandler bookmarks a listing for the caller. Adding an existing
// favourite succeeds without creating a duplicate.
func (api *API) AddFavouriteHandler(w http.ResponseWriter, r *http.Request, username string) {
	var req favouriteRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, err)
		return
	}

	if req.ListingID == "" {
		api.writeError(w, r, errValidation("listingId is required"))
		return
	}
	id, err := parseListingID(req.ListingID)
	if err != nil {
		api.writeError(w, r, err)
		return
	}

	if err := api.requireListing(id); err != nil {
		api.writeError(w, r, err)
		return
	}

	fav := Favourite{Username: username, ListingID: id, CreatedAt: time.Now()}
	err = api.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&fav).Error
	if err != nil {
		api.writeError(w, r, errInternal("Failed to add favourite", err))
		return
	}

	api.writeSuccess(w, r, map[string]any{"message": "Added to favourites"})
}

// RemoveFavouriteHandler deletes the bookmark whether or not it exists.
func (api *API) RemoveFavouriteHandler(w http.ResponseWriter, r *http.Request, username string) {
	var req favouriteRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, err)
		return
	}

	if req.ListingID == "" {
		api.writeError(w, r, errValidation("listingId is required"))
		return
	}
	id, err := parseListingID(req.ListingID)
	if err != nil {
		api.writeError(w, r, err)
		return
	}

	err = api.db.Where("username = ? AND listing_id = ?", username, id).
		Delete(&Favourite{}).Error
	if err != nil {
		api.writeError(w, r, errInternal("Failed to remove favourite", err))
		return
	}

	api.writeSuccess(w, r, map[string]any{"message": "Removed from favourites"})
}

// ListFavouritesHandler returns the full listing documents the caller has
// bookmarked, ordered by listing creation time (not by when they were
// favourited).
func (api *API) ListFavouritesHandler(w http.ResponseWriter, r *http.Request, username string) {
	var listings []Listing
	err := api.db.Preload("Images").Preload("Likes").Preload("Comments", commentOrder).
		Where("id IN (?)", api.db.Model(&Favourite{}).
			Select("listing_id").
			Where("username = ?", username)).
		Order("created_at DESC, id ASC").
		Find(&listings).Error
	if err != nil {
		api.writeError(w, r, errInternal("Failed to fetch favourites", err))
		return
	}

	api.writeSuccess(w, r, map[string]any{"results": listingsToJSON(listings)})
}
