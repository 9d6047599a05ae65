package scale

import (
	"errors"
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"github.com/cryoscope/pitrecon/recon"
)

type fakeRegistrar struct {
	bars             []recon.ScaleBar
	transformUpdates int
	addErr           error
}

func (r *fakeRegistrar) AddScaleBar(from, to string, distance, accuracy float64) (recon.ScaleBar, error) {
	if r.addErr != nil {
		return recon.ScaleBar{}, r.addErr
	}
	bar := recon.ScaleBar{From: from, To: to, Distance: distance, Accuracy: accuracy}
	r.bars = append(r.bars, bar)
	return bar, nil
}

func (r *fakeRegistrar) UpdateTransform() error {
	r.transformUpdates++
	return nil
}

func TestCalibrate(t *testing.T) {
	markers := []recon.Marker{
		{Label: recon.MarkerLabel(1), Detected: true},
		{Label: recon.MarkerLabel(2), Detected: true},
		{Label: recon.MarkerLabel(3), Detected: true},
		{Label: recon.MarkerLabel(4), Detected: false},
	}
	records := []Record{
		{From: 1, To: 2, Distance: 0.33},
		{From: 3, To: 4, Distance: 0.50},
	}
	reg := &fakeRegistrar{}
	c := Calibrator{Accuracy: 0.01, Log: zerolog.Nop()}

	bars, skipped, err := c.Calibrate(reg, markers, records)
	if err != nil {
		t.Fatal(err)
	}

	expectedBars := []recon.ScaleBar{
		{From: "target 1", To: "target 2", Distance: 0.33, Accuracy: 0.01},
	}
	if !reflect.DeepEqual(expectedBars, bars) {
		t.Errorf("Expected:\n%v\nGot:\n%v", expectedBars, bars)
	}
	expectedSkipped := []Record{
		{From: 3, To: 4, Distance: 0.50},
	}
	if !reflect.DeepEqual(expectedSkipped, skipped) {
		t.Errorf("Expected:\n%v\nGot:\n%v", expectedSkipped, skipped)
	}
	if reg.transformUpdates != 1 {
		t.Errorf("Expected 1 transform update, got %d", reg.transformUpdates)
	}
}

func TestCalibrateAddError(t *testing.T) {
	errAdd := errors.New("engine rejected bar")
	markers := []recon.Marker{
		{Label: recon.MarkerLabel(1), Detected: true},
		{Label: recon.MarkerLabel(2), Detected: true},
	}
	reg := &fakeRegistrar{addErr: errAdd}
	c := Calibrator{Accuracy: 0.01, Log: zerolog.Nop()}

	_, _, err := c.Calibrate(reg, markers, []Record{{From: 1, To: 2, Distance: 0.33}})
	if !errors.Is(err, errAdd) {
		t.Fatalf("Expected registration error to propagate, got %v", err)
	}
}
