// pitrecon reconstructs scaled snow pit surface models from overlapping
// photos. It drives a reconstruction engine through marker detection,
// scale calibration, camera alignment, adaptive sparse filtering and
// dense cloud cleanup, then exports the calibrated cloud together with a
// processing report. Every phase is journaled and the project is saved
// after each step, so a failed run keeps the state it reached.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/cryoscope/pitrecon/profile"
	"github.com/cryoscope/pitrecon/projdb"
	"github.com/cryoscope/pitrecon/recon"
	"github.com/cryoscope/pitrecon/sim"
)

func main() {
	var (
		projectName = flag.String("project-name", "", "name of the project")
		outputPath  = flag.String("output-path", "", "output directory for project, exports and report")
		imageFolder = flag.String("image-folder", "", "folder scanned recursively for source images")
		imageType   = flag.String("image-type", ".jpg", "source image file extension")
		profileName = flag.String("profile", "default", "configuration preset (default or legacy)")
		profileFile = flag.String("profile-file", "", "YAML profile overriding a preset")
		quality     = flag.Int("dense-quality", 0, "depth map quality divider (1 ultra, 2 high, 4 medium; 0 keeps the profile)")
		markerFile  = flag.String("markers", "", "CSV scale records (from,to,distance); empty uses fixed pairs")
		markerPairs = flag.Int("marker-pairs", 3, "number of sequentially numbered marker pairs without a CSV")
		markerDist  = flag.Float64("marker-distance", 0.35, "pair distance in meters without a CSV")
		dbPath      = flag.String("db", "", "run journal database (default <output-path>/runs.db)")
		seed        = flag.Int64("seed", 1, "seed for the simulated engine")
		verbose     = flag.Bool("verbose", false, "enable debug logging")
	)
	flag.Parse()

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().
		Timestamp().
		Logger()

	if *projectName == "" || *outputPath == "" || *imageFolder == "" {
		fmt.Fprintln(os.Stderr, "project-name, output-path and image-folder are required")
		flag.Usage()
		os.Exit(2)
	}

	prof, err := loadProfile(*profileName, *profileFile, *quality)
	if err != nil {
		log.Err(err).Msg("profile")
		os.Exit(1)
	}

	if err := os.MkdirAll(*outputPath, 0o755); err != nil {
		log.Err(err).Msg("output path")
		os.Exit(1)
	}
	if *dbPath == "" {
		*dbPath = filepath.Join(*outputPath, "runs.db")
	}
	journal, err := projdb.Open(*dbPath)
	if err != nil {
		log.Err(err).Msg("run journal")
		os.Exit(1)
	}
	defer journal.Close()

	runID, err := journal.StartRun(*projectName, prof.Name, *seed)
	if err != nil {
		log.Err(err).Msg("run journal")
		os.Exit(1)
	}
	log = log.With().Str("run", runID).Str("profile", prof.Name).Logger()

	projectPath := filepath.Join(*outputPath, *projectName+".yaml")
	project := sim.NewProject(projectPath, sim.Options{Seed: *seed})
	log.Info().Str("project", projectPath).Msg("creating project")

	cfg := config{
		projectName: *projectName,
		outputPath:  *outputPath,
		imageFolder: *imageFolder,
		imageType:   *imageType,
		markerFile:  *markerFile,
		markerPairs: *markerPairs,
		markerDist:  *markerDist,
	}
	p := newProcessor(cfg, prof, log, project, journal, runID)
	if err := p.run(); err != nil {
		log.Err(err).Str("class", errorClass(err)).Msg("run failed")
		// Keep whatever state the engine reached before aborting.
		if serr := project.Save(); serr != nil {
			log.Err(serr).Msg("persist on failure")
		}
		if jerr := journal.FinishRun(runID, p.summary(projdb.StatusFailed, err.Error())); jerr != nil {
			log.Err(jerr).Msg("close journal run")
		}
		os.Exit(1)
	}
	if err := journal.FinishRun(runID, p.summary(projdb.StatusDone, "")); err != nil {
		log.Err(err).Msg("close journal run")
	}
	log.Info().Msg("run done")
}

func loadProfile(name, file string, quality int) (profile.Profile, error) {
	var (
		prof profile.Profile
		err  error
	)
	if file != "" {
		prof, err = profile.Load(file)
	} else {
		prof, err = profile.ByName(name)
	}
	if err != nil {
		return profile.Profile{}, err
	}
	if quality != 0 {
		prof.Quality = recon.DepthQuality(quality)
	}
	if err := prof.Validate(); err != nil {
		return profile.Profile{}, err
	}
	return prof, nil
}
