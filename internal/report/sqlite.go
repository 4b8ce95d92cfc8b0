package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/vinodismyname/biofarmaka/internal/ingest"
	_ "modernc.org/sqlite"
)

var sqliteSchema = []string{
	`CREATE TABLE snapshot (id TEXT PRIMARY KEY, fingerprint TEXT, loaded_at TEXT)`,
	`CREATE TABLE records (region TEXT NOT NULL, year INTEGER NOT NULL, crop TEXT NOT NULL, production_kg REAL NOT NULL, harvest_area REAL NOT NULL, efficiency_kg_per_area REAL NOT NULL)`,
	`CREATE TABLE clusters (region TEXT NOT NULL, year INTEGER NOT NULL, production_total INTEGER NOT NULL, harvest_area_total INTEGER NOT NULL, cluster INTEGER NOT NULL, source TEXT)`,
	`CREATE TABLE diagnostics (kind TEXT, severity TEXT, source TEXT, "column" TEXT, message TEXT)`,
	`CREATE INDEX idx_records_year_crop ON records(year, crop)`,
	`CREATE INDEX idx_records_region ON records(region)`,
	`CREATE INDEX idx_clusters_region_year ON clusters(region, year)`,
}

// WriteSQLite replaces the database at path with the snapshot's long-form
// records, cluster table and diagnostics.
func WriteSQLite(ctx context.Context, path string, ds *ingest.Dataset) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("report: remove %s: %w", path, err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("report: open sqlite: %w", err)
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("report: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range sqliteSchema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("report: schema: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO snapshot (id, fingerprint, loaded_at) VALUES (?, ?, ?)`,
		ds.ID, ds.Fingerprint, ds.LoadedAt.UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("report: insert snapshot: %w", err)
	}

	recStmt, err := tx.PrepareContext(ctx, `INSERT INTO records VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("report: prepare records: %w", err)
	}
	defer recStmt.Close()
	for _, r := range ds.Records.Rows() {
		if _, err := recStmt.ExecContext(ctx, r.Region, r.Year, r.Crop, r.ProductionKg, r.HarvestArea, r.Efficiency); err != nil {
			return fmt.Errorf("report: insert record: %w", err)
		}
	}

	clStmt, err := tx.PrepareContext(ctx, `INSERT INTO clusters VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("report: prepare clusters: %w", err)
	}
	defer clStmt.Close()
	for _, c := range ds.Clusters {
		if _, err := clStmt.ExecContext(ctx, c.Region, c.Year, c.ProductionTotal, c.HarvestAreaTotal, int(c.Cluster), c.Source); err != nil {
			return fmt.Errorf("report: insert cluster: %w", err)
		}
	}

	for _, d := range ds.Diagnostics {
		if _, err := tx.ExecContext(ctx, `INSERT INTO diagnostics VALUES (?, ?, ?, ?, ?)`,
			d.Kind, string(d.Severity), d.Source, d.Column, d.Message); err != nil {
			return fmt.Errorf("report: insert diagnostic: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("report: commit: %w", err)
	}
	return nil
}
