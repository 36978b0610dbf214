package nn

import "github.com/pkg/errors"

// These are the causes of every error returned by the package. Callers compare
// against them with errors.Cause.
var (
	// ErrConstruction reports an invalid topology or settings. No network is returned.
	ErrConstruction = errors.New("invalid network construction")

	// ErrDimensionMismatch reports a signal whose length disagrees with the network.
	// The offending call leaves the network untouched.
	ErrDimensionMismatch = errors.New("signal dimension mismatch")

	// ErrPersistenceMismatch reports serialized weights that do not fit the live topology.
	// Nothing is written to the network when it is returned.
	ErrPersistenceMismatch = errors.New("serialized weights do not match topology")

	// ErrNoData reports an empty training set.
	ErrNoData = errors.New("no training data provided")
)

func errDimension(what string, got, want int) error {
	return errors.Wrapf(ErrDimensionMismatch, "%s has length %d, expected %d", what, got, want)
}
