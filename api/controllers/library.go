package controllers

import (
	"net/http"

	"github.com/pumpmusic/backend/api/responses"
	"github.com/pumpmusic/backend/api/validators"
	"github.com/pumpmusic/backend/internal/catalog"
	"github.com/pumpmusic/backend/pkg/logger"
	"github.com/pumpmusic/backend/pkg/pagination"
)

type trackListResponse struct {
	Tracks []catalog.TrackDTO `json:"tracks"`
	Meta   pagination.Meta    `json:"meta"`
}

// PublicLibrary lists public tracks, newest first.
func PublicLibrary(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tracks, meta, err := svc.ListPublic(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, trackListResponse{Tracks: tracks, Meta: meta})
	}
}
