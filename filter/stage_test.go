package filter

import (
	"errors"
	"testing"

	"github.com/cryoscope/pitrecon/recon"
)

func TestStageApply(t *testing.T) {
	t.Run("UncappedSinglePass", func(t *testing.T) {
		tp := singleScore(recon.ReprojectionError, 0.1, 0.2, 0.35, 0.5)
		st := Stage{Criterion: recon.ReprojectionError, Threshold: 0.3}
		res, err := st.Apply(tp)
		if err != nil {
			t.Fatal(err)
		}
		if res.Removed != 2 || res.Threshold != 0.3 || res.SearchSteps != 0 {
			t.Errorf("Expected removed=2 threshold=0.3 steps=0, got %+v", res)
		}
		if tp.Len() != 2 {
			t.Errorf("Expected 2 remaining points, got %d", tp.Len())
		}
		if tp.lastFilter.selects != 0 {
			t.Errorf("Expected no marking pass without a cap, got %d", tp.lastFilter.selects)
		}
	})
	t.Run("Capped", func(t *testing.T) {
		tp := singleScore(recon.ReconstructionUncertainty,
			1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
		st := Stage{
			Criterion:  recon.ReconstructionUncertainty,
			Threshold:  5,
			Step:       1,
			MaxRemoved: 0.3,
		}
		res, err := st.Apply(tp)
		if err != nil {
			t.Fatal(err)
		}
		if res.Threshold != 7 || res.SearchSteps != 2 || res.Removed != 3 {
			t.Errorf("Expected threshold=7 steps=2 removed=3, got %+v", res)
		}
		if tp.Len() != 7 {
			t.Errorf("Expected 7 remaining points, got %d", tp.Len())
		}
		if n := tp.selectedCount(); n != 0 {
			t.Errorf("Expected selection cleared after removal, got %d marked", n)
		}
	})
	t.Run("EmptyUncapped", func(t *testing.T) {
		tp := newFakeTiePoints()
		st := Stage{Criterion: recon.ProjectionAccuracy, Threshold: 5}
		res, err := st.Apply(tp)
		if err != nil {
			t.Fatal(err)
		}
		if res.Removed != 0 {
			t.Errorf("Expected no removal on empty set, got %d", res.Removed)
		}
	})
	t.Run("EmptyCapped", func(t *testing.T) {
		tp := newFakeTiePoints()
		st := Stage{
			Criterion:  recon.ReconstructionUncertainty,
			Threshold:  10,
			Step:       0.25,
			MaxRemoved: 0.5,
		}
		_, err := st.Apply(tp)
		if !errors.Is(err, recon.ErrEmptyPointSet) {
			t.Fatalf("Expected ErrEmptyPointSet, got %v", err)
		}
	})
	t.Run("UnknownCriterion", func(t *testing.T) {
		tp := newFakeTiePoints(map[recon.Criterion]float64{})
		st := Stage{Criterion: recon.DepthMapConfidence, Threshold: 1}
		_, err := st.Apply(tp)
		if !errors.Is(err, recon.ErrUnknownCriterion) {
			t.Fatalf("Expected ErrUnknownCriterion, got %v", err)
		}
	})
}
