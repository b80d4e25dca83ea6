package poster

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"posterlab/internal/domain/models"
	"posterlab/internal/domain/repositories"
	"posterlab/internal/domain/services"
)

// Reconciler turns one heterogeneous edit request into a single atomic
// field update plus a human-readable summary. Processing order matters:
// theme, then style overrides, then direct section replacement, then the
// prompt. Later steps read the snapshot already updated by earlier ones.
type Reconciler struct {
	repo    repositories.PosterRepository
	llm     services.Completer
	uploads services.UploadStore
	logger  *slog.Logger
}

// NewReconciler creates a new update reconciler
func NewReconciler(repo repositories.PosterRepository, llm services.Completer, uploads services.UploadStore, logger *slog.Logger) services.UpdateService {
	return &Reconciler{
		repo:    repo,
		llm:     llm,
		uploads: uploads,
		logger:  logger,
	}
}

// ProcessUpdate reconciles the request against the poster and persists
// all staged fields in one transaction. A sections payload replaces the
// section list only together with the direct-update flag; without it the
// payload is ignored. Sub-failures (LLM errors, bad targets) are folded
// into the summary; only poster-not-found and persistence failures
// escalate as errors.
func (r *Reconciler) ProcessUpdate(ctx context.Context, posterID string, req *services.UpdateRequest) (*models.Poster, string, error) {
	poster, err := r.repo.GetByID(ctx, posterID)
	if err != nil {
		return nil, "", err
	}

	update := &repositories.PosterUpdate{}
	var summary strings.Builder
	skipPrompt := false

	// 1. Theme change (no-op if it matches the current theme)
	if req.SelectedTheme != nil && *req.SelectedTheme != poster.SelectedTheme {
		update.SelectedTheme = repositories.Some(*req.SelectedTheme)
		poster.SelectedTheme = *req.SelectedTheme
		fmt.Fprintf(&summary, "Theme updated to '%s'. ", *req.SelectedTheme)
	}

	// 2. Style overrides, staged verbatim; an explicit null clears them
	if req.StyleOverrides.Set {
		update.StyleOverrides = repositories.Some(req.StyleOverrides.Value)
		poster.StyleOverrides = req.StyleOverrides.Value
		summary.WriteString("Style overrides applied. ")
	}

	// 3. Full section replacement wins over a single-element content edit
	if req.IsDirectUpdate && req.Sections.Set {
		sections := req.Sections.Value
		if sections == nil {
			sections = []repositories.SectionDraft{}
		}
		update.Sections = repositories.Some(sections)
		summary.WriteString("Poster sections updated directly. ")
		skipPrompt = true
	}

	// 4. Content edit via prompt text
	if req.PromptText != nil && !skipPrompt {
		r.handlePrompt(ctx, poster, req, update, &summary)
	}

	// 5. A request that stages nothing is not an error
	if update.Empty() && req.PromptText == nil && summary.Len() == 0 {
		summary.WriteString("no changes applied")
	}

	if !update.Empty() {
		if update.Sections.Set {
			r.cleanupReplacedSections(posterID, poster.Sections)
		}
		poster, err = r.repo.ApplyUpdate(ctx, posterID, update)
		if err != nil {
			return nil, "", fmt.Errorf("apply poster update: %w", err)
		}
	}

	return poster, strings.TrimSpace(summary.String()), nil
}

// handlePrompt resolves the prompt text into staged content, either
// verbatim (direct update) or through one LLM completion built from the
// current snapshot.
func (r *Reconciler) handlePrompt(ctx context.Context, poster *models.Poster, req *services.UpdateRequest, update *repositories.PosterUpdate, summary *strings.Builder) {
	if req.IsDirectUpdate {
		if req.TargetElementID == nil || !isPosterFieldTarget(*req.TargetElementID) {
			summary.WriteString("Error: Direct content update requires a non-section target (e.g., poster_title). ")
			return
		}
		r.stageContent(poster, *req.TargetElementID, *req.PromptText, update)
		fmt.Fprintf(summary, "Content for '%s' directly updated. ", *req.TargetElementID)
		return
	}

	prompt := buildContextPrompt(poster, req.TargetElementID, *req.PromptText)
	if prompt == "" {
		target := ""
		if req.TargetElementID != nil {
			target = *req.TargetElementID
		}
		fmt.Fprintf(summary, "Error: Could not process LLM request for target '%s'. ", target)
		return
	}

	text, err := r.llm.Complete(ctx, prompt)
	if err != nil {
		r.logger.Warn("llm completion failed", "poster_id", poster.ID, "error", err)
		fmt.Fprintf(summary, "LLM service error: %v. ", err)
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		summary.WriteString("LLM produced no content update. ")
		return
	}

	fmt.Fprintf(summary, "LLM response: %q. ", text)
	if req.TargetElementID != nil {
		r.stageContent(poster, *req.TargetElementID, text, update)
	}
}

// stageContent stages new content for a parsed target. Section targets
// become a full-list replacement so persistence stays uniform; an
// already-staged section replacement is never overwritten.
func (r *Reconciler) stageContent(poster *models.Poster, targetID, content string, update *repositories.PosterUpdate) {
	target, err := models.ParseTarget(targetID)
	if err != nil {
		r.logger.Warn("unparseable target at staging", "target", targetID, "error", err)
		return
	}

	switch target.Element {
	case models.TargetPosterTitle:
		update.Title = repositories.Some(content)
		return
	case models.TargetPosterAbstract:
		update.Abstract = repositories.Some(&content)
		return
	case models.TargetPosterConclusion:
		update.Conclusion = repositories.Some(&content)
		return
	}

	if update.Sections.Set {
		return
	}

	drafts := make([]repositories.SectionDraft, 0, len(poster.Sections))
	matched := false
	for i := range poster.Sections {
		sec := &poster.Sections[i]
		draft := repositories.SectionDraft{
			Title:     sec.Title,
			Content:   sec.Content,
			ImageRefs: append([]string{}, sec.ImageRefs...),
		}
		if sec.ID == target.SectionID {
			matched = true
			switch target.Field {
			case models.SectionFieldTitle:
				draft.Title = content
			case models.SectionFieldContent:
				c := content
				draft.Content = &c
			}
		}
		drafts = append(drafts, draft)
	}
	if matched {
		update.Sections = repositories.Some(drafts)
	}
}

// cleanupReplacedSections deletes uploaded files referenced by sections
// about to be replaced. Best-effort only.
func (r *Reconciler) cleanupReplacedSections(posterID string, old []models.Section) {
	for i := range old {
		for _, ref := range old[i].ImageRefs {
			if err := r.uploads.DeleteRef(ref); err != nil {
				r.logger.Warn("could not delete replaced section image", "poster_id", posterID, "ref", ref, "error", err)
			}
		}
		if err := r.uploads.DeleteSectionDir(posterID, old[i].ID); err != nil {
			r.logger.Warn("could not delete replaced section directory", "poster_id", posterID, "section_id", old[i].ID, "error", err)
		}
	}
}

// buildContextPrompt builds the single-turn completion prompt from the
// current value of the targeted element. Returns "" for targets that
// cannot be resolved.
func buildContextPrompt(poster *models.Poster, targetID *string, instruction string) string {
	if targetID == nil {
		return fmt.Sprintf("Poster: '%s'. Abstract: '%s'. User instruction: '%s'. Provide general suggestions.",
			poster.Title, strOrEmpty(poster.Abstract), instruction)
	}

	switch *targetID {
	case models.TargetPosterTitle:
		return fmt.Sprintf("You are editing the title of a poster. Current title: '%s'. User instruction: '%s'. Respond with only the new title text.",
			poster.Title, instruction)
	case models.TargetPosterAbstract:
		return fmt.Sprintf("You are editing the abstract of poster '%s'. Current abstract: '%s'. User instruction: '%s'. Respond with only the new abstract text.",
			poster.Title, strOrEmpty(poster.Abstract), instruction)
	case models.TargetPosterConclusion:
		return fmt.Sprintf("Editing conclusion for poster '%s'. Current: '%s'. Instruction: '%s'. Respond with new text.",
			poster.Title, strOrEmpty(poster.Conclusion), instruction)
	}

	target, err := models.ParseTarget(*targetID)
	if err != nil || !target.IsSection() {
		return ""
	}
	section := poster.SectionByID(target.SectionID)
	if section == nil {
		return ""
	}

	fieldName := "title"
	currentValue := section.Title
	if target.Field == models.SectionFieldContent {
		fieldName = "content"
		currentValue = strOrEmpty(section.Content)
	}
	return fmt.Sprintf("Editing section %s for section '%s'. Current %s: '%s'. Instruction: '%s'. Respond with new text.",
		fieldName, section.Title, fieldName, currentValue, instruction)
}

func isPosterFieldTarget(id string) bool {
	switch id {
	case models.TargetPosterTitle, models.TargetPosterAbstract, models.TargetPosterConclusion:
		return true
	}
	return false
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
