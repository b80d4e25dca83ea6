package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"posterlab/internal/domain"
	"posterlab/internal/domain/models"
	"posterlab/internal/domain/repositories"
)

// PostgresPosterRepository implements the PosterRepository interface
type PostgresPosterRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
	txm    repositories.TransactionManager
}

// NewPosterRepository creates a new PostgresPosterRepository
func NewPosterRepository(config *RepositoryConfig, txm repositories.TransactionManager) repositories.PosterRepository {
	return &PostgresPosterRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
		txm:    txm,
	}
}

// newHexID generates a 32-character lowercase hex identifier.
// Hex IDs contain no underscores, which keeps composed element IDs
// like "section_<id>_title" unambiguous to split.
func newHexID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

const posterColumns = `id, title, abstract, conclusion, selected_theme, style_overrides,
		deck_file_path, preview_image_path, preview_status, preview_last_error, last_modified`

// inTx runs fn inside the enclosing transaction if one is present in the
// context, otherwise inside a fresh one.
func (r *PostgresPosterRepository) inTx(ctx context.Context, fn repositories.TxFn) error {
	if repositories.GetTx(ctx) != nil {
		return fn(ctx)
	}
	return r.txm.ExecTx(ctx, fn)
}

// Create inserts a poster and its initial sections atomically.
func (r *PostgresPosterRepository) Create(ctx context.Context, data *repositories.PosterCreate) (*models.Poster, error) {
	id := newHexID()
	now := time.Now().UTC()

	var created *models.Poster
	err := r.inTx(ctx, func(txCtx context.Context) error {
		executor := GetExecutor(txCtx, r.pool)

		query := fmt.Sprintf(`
			INSERT INTO %s (id, title, abstract, conclusion, selected_theme, style_overrides,
				preview_status, last_modified)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, r.tables.Posters)

		_, err := executor.Exec(txCtx, query,
			id,
			data.Title,
			data.Abstract,
			data.Conclusion,
			data.SelectedTheme,
			data.StyleOverrides,
			models.PreviewPending,
			now,
		)
		if err != nil {
			return fmt.Errorf("insert poster: %w", err)
		}

		if err := r.insertSections(txCtx, id, data.Sections); err != nil {
			return err
		}

		created, err = r.getByID(txCtx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetByID retrieves a poster with its sections.
func (r *PostgresPosterRepository) GetByID(ctx context.Context, id string) (*models.Poster, error) {
	return r.getByID(ctx, id)
}

// List retrieves posters ordered by most recently modified.
func (r *PostgresPosterRepository) List(ctx context.Context, limit, offset int) ([]models.Poster, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		ORDER BY last_modified DESC, id
		LIMIT $1 OFFSET $2
	`, posterColumns, r.tables.Posters)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list posters: %w", err)
	}
	defer rows.Close()

	posters := []models.Poster{}
	ids := []string{}
	for rows.Next() {
		p, err := scanPoster(rows)
		if err != nil {
			return nil, fmt.Errorf("scan poster: %w", err)
		}
		posters = append(posters, *p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list posters: %w", err)
	}

	if len(ids) == 0 {
		return posters, nil
	}

	sectionsByPoster, err := r.loadSections(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range posters {
		posters[i].Sections = sectionsByPoster[posters[i].ID]
		if posters[i].Sections == nil {
			posters[i].Sections = []models.Section{}
		}
	}
	return posters, nil
}

// ApplyUpdate writes the staged fields and bumps last_modified. A staged
// Sections value replaces the whole child collection with fresh IDs.
func (r *PostgresPosterRepository) ApplyUpdate(ctx context.Context, id string, update *repositories.PosterUpdate) (*models.Poster, error) {
	if update.Empty() {
		return r.getByID(ctx, id)
	}

	var updated *models.Poster
	err := r.inTx(ctx, func(txCtx context.Context) error {
		executor := GetExecutor(txCtx, r.pool)

		sets := []string{}
		args := []interface{}{}
		add := func(column string, value interface{}) {
			args = append(args, value)
			sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
		}

		if update.Title.Set {
			add("title", update.Title.Value)
		}
		if update.Abstract.Set {
			add("abstract", update.Abstract.Value)
		}
		if update.Conclusion.Set {
			add("conclusion", update.Conclusion.Value)
		}
		if update.SelectedTheme.Set {
			add("selected_theme", update.SelectedTheme.Value)
		}
		if update.StyleOverrides.Set {
			add("style_overrides", update.StyleOverrides.Value)
		}
		add("last_modified", time.Now().UTC())

		args = append(args, id)
		query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d",
			r.tables.Posters, strings.Join(sets, ", "), len(args))

		tag, err := executor.Exec(txCtx, query, args...)
		if err != nil {
			return fmt.Errorf("update poster: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return &domain.NotFoundError{Message: fmt.Sprintf("poster %s not found", id)}
		}

		if update.Sections.Set {
			deleteQuery := fmt.Sprintf("DELETE FROM %s WHERE poster_id = $1", r.tables.Sections)
			if _, err := executor.Exec(txCtx, deleteQuery, id); err != nil {
				return fmt.Errorf("delete sections: %w", err)
			}
			if err := r.insertSections(txCtx, id, update.Sections.Value); err != nil {
				return err
			}
		}

		updated, err = r.getByID(txCtx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SetArtifactPaths records generated artifact locations. Artifact
// bookkeeping is not a user edit, so last_modified is left alone.
func (r *PostgresPosterRepository) SetArtifactPaths(ctx context.Context, id string, deckPath, previewPath repositories.Optional[*string]) (*models.Poster, error) {
	if !deckPath.Set && !previewPath.Set {
		return r.getByID(ctx, id)
	}

	sets := []string{}
	args := []interface{}{}
	if deckPath.Set {
		args = append(args, deckPath.Value)
		sets = append(sets, fmt.Sprintf("deck_file_path = $%d", len(args)))
	}
	if previewPath.Set {
		args = append(args, previewPath.Value)
		sets = append(sets, fmt.Sprintf("preview_image_path = $%d", len(args)))
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d",
		r.tables.Posters, strings.Join(sets, ", "), len(args))

	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("set artifact paths: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, &domain.NotFoundError{Message: fmt.Sprintf("poster %s not found", id)}
	}

	return r.getByID(ctx, id)
}

// SetPreviewStatus advances the preview state machine row. A completed
// status stores the image path and clears the last error; a failed status
// stores the error; pending and generating clear the error. Like
// SetArtifactPaths this does not bump last_modified.
func (r *PostgresPosterRepository) SetPreviewStatus(ctx context.Context, id string, status models.PreviewStatus, imagePath, lastError *string) (*models.Poster, error) {
	args := []interface{}{status}
	sets := []string{"preview_status = $1"}
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	switch status {
	case models.PreviewCompleted:
		add("preview_image_path", imagePath)
		add("preview_last_error", nil)
	case models.PreviewFailed:
		add("preview_last_error", lastError)
	default:
		add("preview_last_error", nil)
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d",
		r.tables.Posters, strings.Join(sets, ", "), len(args))

	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("set preview status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, &domain.NotFoundError{Message: fmt.Sprintf("poster %s not found", id)}
	}

	return r.getByID(ctx, id)
}

// SetSectionImages replaces a section's image references and bumps the
// owning poster's last_modified.
func (r *PostgresPosterRepository) SetSectionImages(ctx context.Context, posterID, sectionID string, imageRefs []string) (*models.Poster, error) {
	if imageRefs == nil {
		imageRefs = []string{}
	}

	var updated *models.Poster
	err := r.inTx(ctx, func(txCtx context.Context) error {
		executor := GetExecutor(txCtx, r.pool)

		query := fmt.Sprintf("UPDATE %s SET image_refs = $1 WHERE id = $2 AND poster_id = $3",
			r.tables.Sections)
		tag, err := executor.Exec(txCtx, query, imageRefs, sectionID, posterID)
		if err != nil {
			return fmt.Errorf("set section images: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return &domain.NotFoundError{Message: fmt.Sprintf("section %s not found in poster %s", sectionID, posterID)}
		}

		bump := fmt.Sprintf("UPDATE %s SET last_modified = $1 WHERE id = $2", r.tables.Posters)
		if _, err := executor.Exec(txCtx, bump, time.Now().UTC(), posterID); err != nil {
			return fmt.Errorf("bump last_modified: %w", err)
		}

		updated, err = r.getByID(txCtx, posterID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a poster and its sections, returning the deleted state
// so callers can clean up files the rows referenced.
func (r *PostgresPosterRepository) Delete(ctx context.Context, id string) (*models.Poster, error) {
	var deleted *models.Poster
	err := r.inTx(ctx, func(txCtx context.Context) error {
		var err error
		deleted, err = r.getByID(txCtx, id)
		if err != nil {
			return err
		}

		executor := GetExecutor(txCtx, r.pool)
		sectionsQuery := fmt.Sprintf("DELETE FROM %s WHERE poster_id = $1", r.tables.Sections)
		if _, err := executor.Exec(txCtx, sectionsQuery, id); err != nil {
			return fmt.Errorf("delete sections: %w", err)
		}

		posterQuery := fmt.Sprintf("DELETE FROM %s WHERE id = $1", r.tables.Posters)
		tag, err := executor.Exec(txCtx, posterQuery, id)
		if err != nil {
			return fmt.Errorf("delete poster: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return &domain.NotFoundError{Message: fmt.Sprintf("poster %s not found", id)}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

func (r *PostgresPosterRepository) getByID(ctx context.Context, id string) (*models.Poster, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", posterColumns, r.tables.Posters)

	executor := GetExecutor(ctx, r.pool)
	poster, err := scanPoster(executor.QueryRow(ctx, query, id))
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, &domain.NotFoundError{Message: fmt.Sprintf("poster %s not found", id)}
		}
		return nil, fmt.Errorf("get poster: %w", err)
	}

	sectionsByPoster, err := r.loadSections(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	poster.Sections = sectionsByPoster[id]
	if poster.Sections == nil {
		poster.Sections = []models.Section{}
	}
	return poster, nil
}

func (r *PostgresPosterRepository) insertSections(ctx context.Context, posterID string, sections []repositories.SectionDraft) error {
	if len(sections) == 0 {
		return nil
	}

	executor := GetExecutor(ctx, r.pool)
	query := fmt.Sprintf(`
		INSERT INTO %s (id, poster_id, position, title, content, image_refs)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, r.tables.Sections)

	for i, draft := range sections {
		refs := draft.ImageRefs
		if refs == nil {
			refs = []string{}
		}
		if _, err := executor.Exec(ctx, query, newHexID(), posterID, i, draft.Title, draft.Content, refs); err != nil {
			return fmt.Errorf("insert section: %w", err)
		}
	}
	return nil
}

func (r *PostgresPosterRepository) loadSections(ctx context.Context, posterIDs []string) (map[string][]models.Section, error) {
	query := fmt.Sprintf(`
		SELECT id, poster_id, title, content, image_refs
		FROM %s
		WHERE poster_id = ANY($1)
		ORDER BY poster_id, position
	`, r.tables.Sections)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, posterIDs)
	if err != nil {
		return nil, fmt.Errorf("load sections: %w", err)
	}
	defer rows.Close()

	result := map[string][]models.Section{}
	for rows.Next() {
		var sec models.Section
		if err := rows.Scan(&sec.ID, &sec.PosterID, &sec.Title, &sec.Content, &sec.ImageRefs); err != nil {
			return nil, fmt.Errorf("scan section: %w", err)
		}
		if sec.ImageRefs == nil {
			sec.ImageRefs = []string{}
		}
		result[sec.PosterID] = append(result[sec.PosterID], sec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load sections: %w", err)
	}
	return result, nil
}

func scanPoster(row pgx.Row) (*models.Poster, error) {
	var p models.Poster
	err := row.Scan(
		&p.ID,
		&p.Title,
		&p.Abstract,
		&p.Conclusion,
		&p.SelectedTheme,
		&p.StyleOverrides,
		&p.DeckFilePath,
		&p.PreviewImagePath,
		&p.PreviewStatus,
		&p.PreviewLastError,
		&p.LastModified,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
