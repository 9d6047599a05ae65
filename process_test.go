package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"github.com/cryoscope/pitrecon/cloud"
	"github.com/cryoscope/pitrecon/filter"
	"github.com/cryoscope/pitrecon/profile"
	"github.com/cryoscope/pitrecon/projdb"
	"github.com/cryoscope/pitrecon/recon"
	"github.com/cryoscope/pitrecon/sim"
)

func writeImages(t *testing.T, dir string, n int) {
	t.Helper()
	sub := filepath.Join(dir, "site")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < n; i++ {
		name := filepath.Join(sub, fmt.Sprintf("IMG_%03d.jpg", i))
		if err := os.WriteFile(name, []byte("jpeg"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func testProcessor(t *testing.T, images int) (*processor, string) {
	t.Helper()
	dir := t.TempDir()
	imageDir := filepath.Join(dir, "images")
	if err := os.MkdirAll(imageDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if images > 0 {
		writeImages(t, imageDir, images)
	}

	journal, err := projdb.Open(filepath.Join(dir, "runs.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { journal.Close() })
	runID, err := journal.StartRun("pit", "default", 3)
	if err != nil {
		t.Fatal(err)
	}

	project := sim.NewProject(filepath.Join(dir, "pit.yaml"), sim.Options{
		Seed:                 3,
		DetectRate:           1,
		TiePointsPerCamera:   400,
		DensePointsPerCamera: 1500,
	})
	cfg := config{
		projectName: "pit",
		outputPath:  dir,
		imageFolder: imageDir,
		imageType:   ".jpg",
		markerPairs: 3,
		markerDist:  0.35,
	}
	return newProcessor(cfg, profile.Default(), zerolog.Nop(), project, journal, runID), dir
}

func TestProcessorRun(t *testing.T) {
	p, dir := testProcessor(t, 4)
	if err := p.run(); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"pit.yaml", "pit.pcd", "pit_preview.pcd", "pit.pdf", "pit_report.yaml"} {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			t.Errorf("Expected artifact %s: %v", name, err)
			continue
		}
		if info.Size() == 0 {
			t.Errorf("Expected non-empty %s", name)
		}
	}

	if len(p.stages) != 3 {
		t.Fatalf("Expected 3 sparse stages, got %d", len(p.stages))
	}
	for i, res := range p.stages {
		if !res.Optimized {
			t.Errorf("Stage %d: expected camera optimization", i+1)
		}
	}
	if len(p.bars) != 3 || len(p.skipped) != 0 {
		t.Errorf("Expected 3 scale bars and no skipped records, got %d and %d", len(p.bars), len(p.skipped))
	}
	built := p.dense.LowConfidence + p.dense.Thinned + p.dense.Remaining
	if built != 4*1500 {
		t.Errorf("Expected dense cleanup to account for 6000 points, got %d", built)
	}

	f, err := os.Open(filepath.Join(dir, "pit.pcd"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	pp, err := cloud.Read(f)
	if err != nil {
		t.Fatal(err)
	}
	if pp.Points != p.dense.Remaining {
		t.Errorf("Expected %d exported points, got %d", p.dense.Remaining, pp.Points)
	}
	if len(p.confidences) != pp.Points {
		t.Errorf("Expected %d confidence samples, got %d", pp.Points, len(p.confidences))
	}

	var stageRows int
	if err := p.journal.QueryRow(`SELECT COUNT(*) FROM stages WHERE run_id = ?`, p.runID).Scan(&stageRows); err != nil {
		t.Fatal(err)
	}
	if stageRows != 3 {
		t.Errorf("Expected 3 journaled stages, got %d", stageRows)
	}
	var barRows int
	if err := p.journal.QueryRow(`SELECT COUNT(*) FROM scale_bars WHERE run_id = ?`, p.runID).Scan(&barRows); err != nil {
		t.Fatal(err)
	}
	if barRows != 3 {
		t.Errorf("Expected 3 journaled scale bars, got %d", barRows)
	}
	var denseRows int
	if err := p.journal.QueryRow(`SELECT COUNT(*) FROM dense_cleanup WHERE run_id = ?`, p.runID).Scan(&denseRows); err != nil {
		t.Fatal(err)
	}
	if denseRows != 1 {
		t.Errorf("Expected 1 journaled dense cleanup, got %d", denseRows)
	}
}

func TestProcessorRunNoImages(t *testing.T) {
	p, dir := testProcessor(t, 0)
	err := p.run()
	if !errors.Is(err, recon.ErrNoPhotos) {
		t.Fatalf("Expected ErrNoPhotos, got %v", err)
	}
	if got := errorClass(err); got != "configuration" {
		t.Errorf("Expected configuration class, got %s", got)
	}
	// The project snapshot still gets written on the abort path.
	if err := p.project.Save(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "pit.yaml")); err != nil {
		t.Errorf("Expected persisted project after failure: %v", err)
	}
}

func TestFindImages(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "b"), 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"b/2.jpg", "1.jpg", "notes.txt", "3.jpeg"} {
		if err := os.WriteFile(filepath.Join(dir, filepath.FromSlash(name)), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	images, err := findImages(dir, ".jpg")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		filepath.Join(dir, "1.jpg"),
		filepath.Join(dir, "b", "2.jpg"),
	}
	if !reflect.DeepEqual(images, want) {
		t.Errorf("Expected:\n%v\nGot:\n%v", want, images)
	}
}

func TestErrorClass(t *testing.T) {
	testCases := map[string]struct {
		err  error
		want string
	}{
		"NoPhotos":       {err: fmt.Errorf("setup: %w", recon.ErrNoPhotos), want: "configuration"},
		"MissingFile":    {err: &fs.PathError{Op: "open", Path: "markers.csv", Err: fs.ErrNotExist}, want: "configuration"},
		"EmptyPointSet":  {err: fmt.Errorf("sparse filter: %w", recon.ErrEmptyPointSet), want: "empty_point_set"},
		"NonConvergence": {err: fmt.Errorf("sparse filter: %w", &filter.NonConvergenceError{LastThreshold: 12, Steps: 1000}), want: "non_convergence"},
		"Other":          {err: errors.New("engine exploded"), want: "engine"},
	}
	for name, tt := range testCases {
		tt := tt
		t.Run(name, func(t *testing.T) {
			if got := errorClass(tt.err); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}
