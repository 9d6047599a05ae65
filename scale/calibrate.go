package scale

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/cryoscope/pitrecon/recon"
)

// Registrar is the part of the engine chunk that accepts scale-bar
// constraints.
type Registrar interface {
	AddScaleBar(from, to string, distance, accuracy float64) (recon.ScaleBar, error)
	UpdateTransform() error
}

// Calibrator registers scale bars for distance records between detected
// markers.
type Calibrator struct {
	Accuracy float64 // scale-bar accuracy in meters
	Log      zerolog.Logger
}

// Calibrate registers one scale bar per record whose endpoints were both
// detected, then recomputes the chunk transform so the bars take effect.
// Records with an undetected endpoint are logged and returned as skipped,
// never partially registered.
func (c Calibrator) Calibrate(reg Registrar, markers []recon.Marker, records []Record) ([]recon.ScaleBar, []Record, error) {
	detected := make(map[string]recon.Marker, len(markers))
	for _, m := range markers {
		if m.Detected {
			detected[m.Label] = m
		}
	}

	var bars []recon.ScaleBar
	var skipped []Record
	for _, rec := range records {
		from := recon.MarkerLabel(rec.From)
		to := recon.MarkerLabel(rec.To)
		_, okFrom := detected[from]
		_, okTo := detected[to]
		if !okFrom || !okTo {
			c.Log.Warn().
				Str("from", from).Bool("fromDetected", okFrom).
				Str("to", to).Bool("toDetected", okTo).
				Msg("scale record endpoint not detected, skipping")
			skipped = append(skipped, rec)
			continue
		}
		bar, err := reg.AddScaleBar(from, to, rec.Distance, c.Accuracy)
		if err != nil {
			return bars, skipped, fmt.Errorf("add scale bar %s to %s: %w", from, to, err)
		}
		bars = append(bars, bar)
	}
	if err := reg.UpdateTransform(); err != nil {
		return bars, skipped, fmt.Errorf("update transform: %w", err)
	}
	return bars, skipped, nil
}
