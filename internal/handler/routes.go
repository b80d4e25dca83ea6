package handler

import (
	"net/http"

	"posterlab/internal/httputil"
)

// RegisterRoutes wires all API routes onto the mux.
func RegisterRoutes(mux *http.ServeMux, posters *PosterHandler) {
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /api/v1/posters", posters.CreatePoster)
	mux.HandleFunc("GET /api/v1/posters", posters.ListPosters)
	mux.HandleFunc("GET /api/v1/posters/{id}", posters.GetPoster)
	mux.HandleFunc("DELETE /api/v1/posters/{id}", posters.DeletePoster)
	mux.HandleFunc("POST /api/v1/posters/{id}/prompt", posters.HandlePrompt)
	mux.HandleFunc("GET /api/v1/posters/{id}/preview", posters.GetPreview)
	mux.HandleFunc("POST /api/v1/posters/{id}/generate_deck", posters.GenerateDeck)
	mux.HandleFunc("GET /api/v1/posters/{id}/download_deck", posters.DownloadDeck)
	mux.HandleFunc("POST /api/v1/posters/{id}/sections/{sectionID}/images", posters.UploadSectionImage)
}
