package main

import (
	"net/http"
)

// FeedHandler assembles the listing feed for the caller.
//
// mode=following returns listings by followed authors only; a user who
// follows nobody gets an empty result, and falling back to everything is the
// client's documented job. mode=all (the default fallback target) returns
// every listing ordered by the sort key.
func (api *API) FeedHandler(w http.ResponseWriter, r *http.Request, username string) {
	mode := r.URL.Query().Get("mode")
	sortClause := listingSortClause(r.URL.Query().Get("sort"))

	query := api.db.Model(&Listing{}).
		Preload("Images").Preload("Likes").Preload("Comments", commentOrder).
		Order(sortClause)

	if mode == "following" {
		var follows []string
		err := api.db.Model(&Follow{}).
			Where("who_username = ?", username).
			Pluck("whom_username", &follows).Error
		if err != nil {
			api.writeError(w, r, errInternal("Failed to load follow set", err))
			return
		}

		if len(follows) == 0 {
			api.writeSuccess(w, r, map[string]any{"results": []listingJSON{}})
			return
		}
		query = query.Where("owner_username IN ?", follows)
	}

	var listings []Listing
	if err := query.Find(&listings).Error; err != nil {
		api.writeError(w, r, errInternal("Failed to fetch feed", err))
		return
	}

	api.writeSuccess(w, r, map[string]any{"results": listingsToJSON(listings)})
}
