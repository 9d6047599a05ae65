package recon

import "errors"

var (
	// ErrEmptyPointSet reports a filter operation on a point set with no
	// valid points.
	ErrEmptyPointSet = errors.New("point set has no valid points")
	// ErrNoPhotos reports that image discovery matched nothing.
	ErrNoPhotos = errors.New("no photos found")
	// ErrNoDenseCloud reports access to a dense cloud that has not been
	// built yet.
	ErrNoDenseCloud = errors.New("dense cloud not built")
	// ErrUnknownCriterion reports a criterion the engine cannot score.
	ErrUnknownCriterion = errors.New("unknown criterion")
)
