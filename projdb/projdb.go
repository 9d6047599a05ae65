// Package projdb journals reconstruction runs to a SQLite file: one row
// per run plus the per-stage filter outcomes, detected markers and
// registered scale bars. The journal is what survives a crashed run
// besides the project snapshot itself.
package projdb

import (
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/cryoscope/pitrecon/filter"
	"github.com/cryoscope/pitrecon/recon"
)

//go:embed schema.sql
var schemaSQL string

const (
	StatusDone   = "done"
	StatusFailed = "failed"
)

type DB struct {
	*sql.DB
}

// Open opens or creates the journal database at path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal schema: %w", err)
	}
	return &DB{db}, nil
}

// StartRun inserts a run row in the running state and returns its id.
func (db *DB) StartRun(project, profileName string, seed int64) (string, error) {
	runID := uuid.New().String()
	_, err := db.Exec(
		`INSERT INTO runs (run_id, project, profile, seed) VALUES (?, ?, ?, ?)`,
		runID, project, profileName, seed,
	)
	if err != nil {
		return "", fmt.Errorf("start run: %w", err)
	}
	return runID, nil
}

// RunSummary is written back to the run row when it finishes.
type RunSummary struct {
	Status      string
	Error       string
	Cameras     int
	TiePoints   int
	DensePoints int
}

func (db *DB) FinishRun(runID string, s RunSummary) error {
	_, err := db.Exec(
		`UPDATE runs SET finished_at = CURRENT_TIMESTAMP, status = ?, error = ?,
		 cameras = ?, tie_points = ?, dense_points = ? WHERE run_id = ?`,
		s.Status, s.Error, s.Cameras, s.TiePoints, s.DensePoints, runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// RecordStages stores the sparse filter outcomes in pipeline order.
func (db *DB) RecordStages(runID string, results []filter.StageResult) error {
	for i, res := range results {
		_, err := db.Exec(
			`INSERT INTO stages (run_id, seq, criterion, threshold, search_steps, removed, remaining, optimized)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, i+1, res.Criterion.String(), res.Threshold,
			res.SearchSteps, res.Removed, res.Remaining, res.Optimized,
		)
		if err != nil {
			return fmt.Errorf("record stage %d: %w", i+1, err)
		}
	}
	return nil
}

func (db *DB) RecordDenseCleanup(runID string, p filter.DenseParams, res filter.DenseResult) error {
	_, err := db.Exec(
		`INSERT INTO dense_cleanup (run_id, min_confidence, spacing, low_confidence, thinned, remaining)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		runID, p.MinConfidence, p.Spacing, res.LowConfidence, res.Thinned, res.Remaining,
	)
	if err != nil {
		return fmt.Errorf("record dense cleanup: %w", err)
	}
	return nil
}

func (db *DB) RecordMarkers(runID string, markers []recon.Marker) error {
	for _, m := range markers {
		_, err := db.Exec(
			`INSERT INTO markers (run_id, label, detected) VALUES (?, ?, ?)`,
			runID, m.Label, m.Detected,
		)
		if err != nil {
			return fmt.Errorf("record marker %s: %w", m.Label, err)
		}
	}
	return nil
}

func (db *DB) RecordScaleBars(runID string, bars []recon.ScaleBar) error {
	for _, b := range bars {
		_, err := db.Exec(
			`INSERT INTO scale_bars (run_id, marker_from, marker_to, distance, accuracy)
			 VALUES (?, ?, ?, ?, ?)`,
			runID, b.From, b.To, b.Distance, b.Accuracy,
		)
		if err != nil {
			return fmt.Errorf("record scale bar %s to %s: %w", b.From, b.To, err)
		}
	}
	return nil
}
