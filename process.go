package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/seqsense/pcgol/pc"

	"github.com/cryoscope/pitrecon/cloud"
	"github.com/cryoscope/pitrecon/filter"
	"github.com/cryoscope/pitrecon/profile"
	"github.com/cryoscope/pitrecon/projdb"
	"github.com/cryoscope/pitrecon/recon"
	"github.com/cryoscope/pitrecon/report"
	"github.com/cryoscope/pitrecon/scale"
)

const (
	chunkLabel = "Snowpit"
	// previewLeaf is the voxel edge for the downsampled preview cloud,
	// in meters.
	previewLeaf float32 = 0.002
)

// config is what main parses from the command line, beyond the profile.
type config struct {
	projectName string
	outputPath  string
	imageFolder string
	imageType   string
	markerFile  string
	markerPairs int
	markerDist  float64
}

// processor drives one reconstruction run phase by phase. It owns the
// engine handles and saves the project after every phase, so an aborted
// run leaves the last completed state behind.
type processor struct {
	cfg     config
	prof    profile.Profile
	log     zerolog.Logger
	project recon.Project
	chunk   recon.Chunk
	journal *projdb.DB
	runID   string

	stages      []filter.StageResult
	dense       filter.DenseResult
	bars        []recon.ScaleBar
	skipped     []scale.Record
	confidences []uint32
}

func newProcessor(cfg config, prof profile.Profile, log zerolog.Logger, project recon.Project, journal *projdb.DB, runID string) *processor {
	return &processor{
		cfg:     cfg,
		prof:    prof,
		log:     log,
		project: project,
		chunk:   project.Chunk(),
		journal: journal,
		runID:   runID,
	}
}

func (p *processor) run() error {
	if err := p.setup(); err != nil {
		return err
	}
	if err := p.calibrate(); err != nil {
		return err
	}
	if err := p.align(); err != nil {
		return err
	}
	if err := p.filterSparse(); err != nil {
		return err
	}
	if err := p.buildDense(); err != nil {
		return err
	}
	if err := p.cleanDense(); err != nil {
		return err
	}
	return p.export()
}

// findImages collects every file under folder with the given extension,
// sorted, matching the recursive glob of the capture workflow.
func findImages(folder, imageType string) ([]string, error) {
	var images []string
	err := filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), imageType) {
			images = append(images, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(images)
	return images, nil
}

func (p *processor) setup() error {
	p.chunk.SetLabel(chunkLabel)
	images, err := findImages(p.cfg.imageFolder, p.cfg.imageType)
	if err != nil {
		return fmt.Errorf("scan %s: %w", p.cfg.imageFolder, err)
	}
	if len(images) == 0 {
		return fmt.Errorf("no %s files under %s: %w", p.cfg.imageType, p.cfg.imageFolder, recon.ErrNoPhotos)
	}
	if err := p.chunk.AddPhotos(images); err != nil {
		return err
	}
	if err := p.chunk.SetAccuracy(p.prof.Accuracy); err != nil {
		return err
	}
	if p.prof.SubjectDistance > 0 {
		if err := p.chunk.SetSubjectDistance(p.prof.SubjectDistance); err != nil {
			return err
		}
	}
	if err := p.chunk.DetectMarkers(p.prof.MarkerTolerance); err != nil {
		return err
	}
	p.log.Info().
		Int("cameras", p.chunk.CameraCount()).
		Int("markers", len(p.chunk.Markers())).
		Msg("project set up")
	return p.save()
}

func (p *processor) loadRecords() ([]scale.Record, error) {
	if p.cfg.markerFile == "" {
		return scale.FixedPairs(p.cfg.markerPairs, p.cfg.markerDist), nil
	}
	f, err := os.Open(p.cfg.markerFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	records, err := scale.ReadRecords(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.cfg.markerFile, err)
	}
	return records, nil
}

func (p *processor) calibrate() error {
	records, err := p.loadRecords()
	if err != nil {
		return err
	}
	markers := p.chunk.Markers()
	detected := 0
	for _, m := range markers {
		if m.Detected {
			detected++
		}
	}
	if detected < len(markers) {
		p.log.Warn().
			Int("detected", detected).
			Int("expected", len(markers)).
			Msg("not all markers detected in scene")
	}
	cal := scale.Calibrator{Accuracy: p.prof.Accuracy.ScaleBar, Log: p.log}
	bars, skipped, err := cal.Calibrate(p.chunk, markers, records)
	if err != nil {
		return err
	}
	p.bars, p.skipped = bars, skipped
	if err := p.journal.RecordMarkers(p.runID, markers); err != nil {
		return err
	}
	if err := p.journal.RecordScaleBars(p.runID, bars); err != nil {
		return err
	}
	p.log.Info().
		Int("scaleBars", len(bars)).
		Int("skippedRecords", len(skipped)).
		Msg("scale calibration done")
	return p.save()
}

func (p *processor) align() error {
	if err := p.chunk.AlignCameras(p.prof.Align); err != nil {
		return err
	}
	if p.prof.OptimizeAfterAlign {
		if err := p.chunk.OptimizeCameras(); err != nil {
			return err
		}
	}
	p.log.Info().
		Int("tiePoints", p.chunk.TiePoints().Len()).
		Bool("optimized", p.prof.OptimizeAfterAlign).
		Msg("cameras aligned")
	return p.save()
}

func (p *processor) filterSparse() error {
	pipeline := filter.Pipeline{Stages: p.prof.Sparse, Log: p.log}
	results, runErr := pipeline.Run(p.chunk)
	p.stages = results
	// Journal the stages that did run even when a later one failed.
	if err := p.journal.RecordStages(p.runID, results); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	return p.save()
}

func (p *processor) buildDense() error {
	if err := p.chunk.BuildDenseCloud(p.prof.Quality); err != nil {
		return err
	}
	dense, err := p.chunk.DenseCloud()
	if err != nil {
		return err
	}
	p.log.Info().
		Int("quality", int(p.prof.Quality)).
		Int("points", dense.Len()).
		Msg("dense cloud built")
	return p.save()
}

func (p *processor) cleanDense() error {
	dense, err := p.chunk.DenseCloud()
	if err != nil {
		return err
	}
	cleanup := filter.Dense{Params: p.prof.Dense, Log: p.log}
	res, err := cleanup.Run(dense)
	if err != nil {
		return err
	}
	p.dense = res
	if err := p.journal.RecordDenseCleanup(p.runID, p.prof.Dense, res); err != nil {
		return err
	}
	return p.save()
}

func (p *processor) export() error {
	pcdPath := filepath.Join(p.cfg.outputPath, p.cfg.projectName+".pcd")
	if err := p.project.ExportPointCloud(pcdPath); err != nil {
		return err
	}
	pp, err := p.readExport(pcdPath)
	if err != nil {
		return err
	}
	if err := p.writePreview(pp); err != nil {
		return err
	}
	data := report.Data{
		Project:     p.cfg.projectName,
		Profile:     p.prof.Name,
		RunID:       p.runID,
		Cameras:     p.chunk.CameraCount(),
		TiePoints:   p.chunk.TiePoints().Len(),
		Markers:     p.chunk.Markers(),
		ScaleBars:   p.bars,
		Stages:      p.stages,
		Dense:       p.dense,
		Confidences: p.confidences,
	}
	if err := report.Write(p.cfg.outputPath, data); err != nil {
		return err
	}
	p.log.Info().Str("cloud", pcdPath).Msg("export done")
	return nil
}

// readExport loads the exported cloud back and snapshots its confidence
// counts for the report.
func (p *processor) readExport(path string) (*pc.PointCloud, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	pp, err := cloud.Read(f)
	if err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	c, err := cloud.New(pp)
	if err != nil {
		return nil, err
	}
	ct, err := c.ConfidenceIterator()
	if err != nil {
		return nil, err
	}
	p.confidences = p.confidences[:0]
	for ; ct.IsValid(); ct.Incr() {
		p.confidences = append(p.confidences, ct.Uint32())
	}
	return pp, nil
}

func (p *processor) writePreview(pp *pc.PointCloud) error {
	down, err := cloud.Downsample(pp, previewLeaf)
	if err != nil {
		return err
	}
	path := filepath.Join(p.cfg.outputPath, p.cfg.projectName+"_preview.pcd")
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := cloud.Write(f, down, cloud.BinaryCompressed); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	p.log.Info().Str("preview", path).Int("points", down.Points).Msg("preview written")
	return nil
}

func (p *processor) save() error {
	if err := p.project.Save(); err != nil {
		return fmt.Errorf("save project: %w", err)
	}
	return nil
}

// summary collects what the run reached for the journal row.
func (p *processor) summary(status, errMsg string) projdb.RunSummary {
	s := projdb.RunSummary{
		Status:    status,
		Error:     errMsg,
		Cameras:   p.chunk.CameraCount(),
		TiePoints: p.chunk.TiePoints().Len(),
	}
	if dense, err := p.chunk.DenseCloud(); err == nil {
		s.DensePoints = dense.Len()
	}
	return s
}

// errorClass buckets a run failure for the journal: broken inputs, empty
// point sets and stalled threshold walks are distinguished from general
// engine errors.
func errorClass(err error) string {
	var pathErr *fs.PathError
	var nonConv *filter.NonConvergenceError
	switch {
	case errors.Is(err, recon.ErrNoPhotos), errors.As(err, &pathErr):
		return "configuration"
	case errors.Is(err, recon.ErrEmptyPointSet):
		return "empty_point_set"
	case errors.As(err, &nonConv):
		return "non_convergence"
	}
	return "engine"
}
