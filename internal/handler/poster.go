package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"posterlab/internal/domain/models"
	"posterlab/internal/domain/repositories"
	"posterlab/internal/domain/services"
	"posterlab/internal/httputil"
)

const deckContentType = "application/vnd.openxmlformats-officedocument.presentationml.presentation"

// maxUploadFormBytes bounds the whole multipart body; the upload store
// enforces its own per-file limit on top.
const maxUploadFormBytes = 8 << 20

// PosterHandler handles poster HTTP requests
type PosterHandler struct {
	posters  services.PosterService
	updates  services.UpdateService
	previews services.PreviewService
	logger   *slog.Logger
}

// NewPosterHandler creates a new poster handler
func NewPosterHandler(posters services.PosterService, updates services.UpdateService, previews services.PreviewService, logger *slog.Logger) *PosterHandler {
	return &PosterHandler{
		posters:  posters,
		updates:  updates,
		previews: previews,
		logger:   logger,
	}
}

type createPosterRequest struct {
	Topic *string `json:"topic,omitempty"`
	// Accepted for forward compatibility, currently unused.
	TemplateID *string `json:"template_id,omitempty"`
}

type createPosterResponse struct {
	PosterID        string         `json:"poster_id"`
	PosterData      *models.Poster `json:"poster_data"`
	PreviewImageURL string         `json:"preview_image_url"`
}

type listPostersResponse struct {
	Posters []models.Poster `json:"posters"`
	Total   int             `json:"total"`
}

type sectionDraftRequest struct {
	Title     string   `json:"section_title"`
	Content   *string  `json:"section_content,omitempty"`
	ImageURLs []string `json:"image_urls"`
}

type promptRequest struct {
	PromptText      *string                                      `json:"prompt_text,omitempty"`
	TargetElementID *string                                      `json:"target_element_id,omitempty"`
	SelectedTheme   *string                                      `json:"selected_theme,omitempty"`
	StyleOverrides  httputil.OptionalJSON[models.ElementStyles]  `json:"style_overrides,omitempty"`
	IsDirectUpdate  bool                                         `json:"is_direct_update"`
	Sections        httputil.OptionalJSON[[]sectionDraftRequest] `json:"sections,omitempty"`
}

type promptResponse struct {
	PosterID        string         `json:"poster_id"`
	LLMResponseText string         `json:"llm_response_text"`
	UpdatedPoster   *models.Poster `json:"updated_poster_data"`
	PreviewImageURL string         `json:"preview_image_url"`
}

type generateDeckResponse struct {
	PosterID    string `json:"poster_id"`
	DownloadURL string `json:"download_url"`
	Message     string `json:"message"`
}

type uploadImageResponse struct {
	PosterID   string         `json:"poster_id"`
	SectionID  string         `json:"section_id"`
	ImageURL   string         `json:"image_url"`
	PosterData *models.Poster `json:"poster_data"`
}

func previewURL(posterID string) string {
	return fmt.Sprintf("/api/v1/posters/%s/preview", posterID)
}

// CreatePoster starts a new poster session
// POST /api/v1/posters
func (h *PosterHandler) CreatePoster(w http.ResponseWriter, r *http.Request) {
	var req createPosterRequest
	if r.ContentLength > 0 {
		if err := httputil.ParseJSON(w, r, &req); err != nil {
			httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	poster, err := h.posters.CreatePoster(r.Context(), &services.CreatePosterRequest{Topic: req.Topic})
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, createPosterResponse{
		PosterID:        poster.ID,
		PosterData:      poster,
		PreviewImageURL: previewURL(poster.ID),
	})
}

// ListPosters returns posters ordered by last modification
// GET /api/v1/posters
func (h *PosterHandler) ListPosters(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	posters, err := h.posters.ListPosters(r.Context(), limit, offset)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	if posters == nil {
		posters = []models.Poster{}
	}

	httputil.RespondJSON(w, http.StatusOK, listPostersResponse{
		Posters: posters,
		Total:   len(posters),
	})
}

// GetPoster retrieves a poster by ID
// GET /api/v1/posters/{id}
func (h *PosterHandler) GetPoster(w http.ResponseWriter, r *http.Request) {
	poster, err := h.posters.GetPoster(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, poster)
}

// DeletePoster deletes a poster and its files
// DELETE /api/v1/posters/{id}
func (h *PosterHandler) DeletePoster(w http.ResponseWriter, r *http.Request) {
	if _, err := h.posters.DeletePoster(r.Context(), r.PathValue("id")); err != nil {
		handleError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandlePrompt applies a heterogeneous edit request to a poster
// POST /api/v1/posters/{id}/prompt
func (h *PosterHandler) HandlePrompt(w http.ResponseWriter, r *http.Request) {
	posterID := r.PathValue("id")

	var req promptRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.SelectedTheme != nil && !models.IsKnownTheme(*req.SelectedTheme) {
		httputil.RespondError(w, http.StatusBadRequest, fmt.Sprintf("unknown theme %q", *req.SelectedTheme))
		return
	}
	if req.StyleOverrides.Present && req.StyleOverrides.Value != nil {
		if err := req.StyleOverrides.Value.Validate(); err != nil {
			httputil.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	update := &services.UpdateRequest{
		PromptText:      req.PromptText,
		TargetElementID: req.TargetElementID,
		IsDirectUpdate:  req.IsDirectUpdate,
		SelectedTheme:   req.SelectedTheme,
	}
	if req.StyleOverrides.Present {
		update.StyleOverrides = repositories.Some(req.StyleOverrides.Value)
	}
	if req.Sections.Present {
		update.Sections = repositories.Some(toSectionDrafts(req.Sections.Value))
	}

	poster, summary, err := h.updates.ProcessUpdate(r.Context(), posterID, update)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, promptResponse{
		PosterID:        poster.ID,
		LLMResponseText: summary,
		UpdatedPoster:   poster,
		PreviewImageURL: previewURL(poster.ID),
	})
}

func toSectionDrafts(sections *[]sectionDraftRequest) []repositories.SectionDraft {
	if sections == nil {
		return nil
	}
	drafts := make([]repositories.SectionDraft, 0, len(*sections))
	for _, s := range *sections {
		drafts = append(drafts, repositories.SectionDraft{
			Title:     s.Title,
			Content:   s.Content,
			ImageRefs: s.ImageURLs,
		})
	}
	return drafts
}

// GetPreview reports preview state, serving the image when it is current
// GET /api/v1/posters/{id}/preview
func (h *PosterHandler) GetPreview(w http.ResponseWriter, r *http.Request) {
	posterID := r.PathValue("id")

	outcome, err := h.previews.GetPreview(r.Context(), posterID)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	switch outcome.State {
	case services.PreviewReady:
		w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", "preview_"+posterID+".png"))
		w.Header().Set("Content-Type", "image/png")
		http.ServeFile(w, r, outcome.ImagePath)

	case services.PreviewErrored:
		httputil.RespondErrorWithExtras(w, http.StatusInternalServerError,
			"Preview generation failed previously.",
			map[string]interface{}{
				"poster_id":          posterID,
				"preview_status":     outcome.Poster.PreviewStatus,
				"preview_last_error": outcome.Poster.PreviewLastError,
				"poster_data":        outcome.Poster,
			})

	case services.PreviewRetry:
		httputil.RespondJSON(w, http.StatusAccepted, map[string]interface{}{
			"message":        "Preview not available or state is inconsistent. Try again shortly.",
			"poster_id":      posterID,
			"preview_status": outcome.Poster.PreviewStatus,
			"poster_data":    outcome.Poster,
		})

	default: // in progress
		httputil.RespondJSON(w, http.StatusAccepted, outcome.Poster)
	}
}

// GenerateDeck regenerates the deck and kicks off a preview refresh
// POST /api/v1/posters/{id}/generate_deck
func (h *PosterHandler) GenerateDeck(w http.ResponseWriter, r *http.Request) {
	posterID := r.PathValue("id")

	poster, err := h.previews.TriggerDeckGeneration(r.Context(), posterID)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, generateDeckResponse{
		PosterID:    poster.ID,
		DownloadURL: fmt.Sprintf("/api/v1/posters/%s/download_deck", poster.ID),
		Message:     "Deck generation successful. Preview update initiated in background.",
	})
}

// DownloadDeck serves the generated deck file
// GET /api/v1/posters/{id}/download_deck
func (h *PosterHandler) DownloadDeck(w http.ResponseWriter, r *http.Request) {
	posterID := r.PathValue("id")

	poster, err := h.posters.GetPoster(r.Context(), posterID)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	if poster.DeckFilePath == nil || *poster.DeckFilePath == "" {
		httputil.RespondError(w, http.StatusNotFound, "Deck file not generated for this poster")
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "poster_"+posterID+".pptx"))
	w.Header().Set("Content-Type", deckContentType)
	http.ServeFile(w, r, *poster.DeckFilePath)
}

// UploadSectionImage accepts a multipart image upload for a section
// POST /api/v1/posters/{id}/sections/{sectionID}/images
func (h *PosterHandler) UploadSectionImage(w http.ResponseWriter, r *http.Request) {
	posterID := r.PathValue("id")
	sectionID := r.PathValue("sectionID")

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadFormBytes)
	if err := r.ParseMultipartForm(maxUploadFormBytes); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Missing file field")
		return
	}
	defer file.Close()

	poster, ref, err := h.posters.UploadSectionImage(r.Context(), posterID, sectionID, header.Filename, file)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, uploadImageResponse{
		PosterID:   posterID,
		SectionID:  sectionID,
		ImageURL:   ref,
		PosterData: poster,
	})
}
