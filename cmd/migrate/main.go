package main

import (
	"context"
	"flag"
	"log"

	"posterlab/internal/config"
	"posterlab/internal/repository/postgres"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	dropTables := flag.Bool("drop-tables", false, "Drop all tables before creating the schema (fresh start)")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()

	// SAFETY: Prevent destructive operations in production
	if cfg.Environment == "prod" && *dropTables {
		log.Fatalf("BLOCKED: Cannot run --drop-tables in production environment")
	}

	log.Printf("Setting up schema (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	tables := postgres.NewTableNames(cfg.TablePrefix)

	if *dropTables {
		log.Println("Dropping all tables...")
		if err := dropAllTables(ctx, pool, tables); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		log.Println("Tables dropped")
	}

	if err := runSchema(ctx, pool, tables, cfg.TablePrefix); err != nil {
		log.Fatalf("Failed to run schema: %v", err)
	}
	log.Println("Schema ready")
}

// runSchema creates tables if they don't exist
func runSchema(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames, tablePrefix string) error {
	createPosters := `
		CREATE TABLE IF NOT EXISTS ` + tables.Posters + ` (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			abstract TEXT,
			conclusion TEXT,
			selected_theme TEXT NOT NULL DEFAULT 'default',
			style_overrides JSONB,
			deck_file_path TEXT,
			preview_image_path TEXT,
			preview_status TEXT NOT NULL DEFAULT 'pending',
			preview_last_error TEXT,
			last_modified TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	if _, err := pool.Exec(ctx, createPosters); err != nil {
		return err
	}

	createSections := `
		CREATE TABLE IF NOT EXISTS ` + tables.Sections + ` (
			id TEXT PRIMARY KEY,
			poster_id TEXT NOT NULL REFERENCES ` + tables.Posters + `(id) ON DELETE CASCADE,
			position INTEGER NOT NULL DEFAULT 0,
			title TEXT NOT NULL,
			content TEXT,
			image_refs TEXT[] NOT NULL DEFAULT '{}'
		)
	`
	if _, err := pool.Exec(ctx, createSections); err != nil {
		return err
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `sections_poster_id ON ` + tables.Sections + `(poster_id)`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `posters_last_modified ON ` + tables.Posters + `(last_modified DESC)`,
	}
	for _, indexSQL := range indexes {
		if _, err := pool.Exec(ctx, indexSQL); err != nil {
			return err
		}
	}

	return nil
}

// dropAllTables drops all tables in reverse order (to respect foreign keys)
func dropAllTables(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames) error {
	for _, table := range []string{tables.Sections, tables.Posters} {
		if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE"); err != nil {
			return err
		}
		log.Printf("  dropped %s", table)
	}
	return nil
}
