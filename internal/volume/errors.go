package volume

import "fmt"

type invalidVolumeError struct{ v float64 }

func (e *invalidVolumeError) Error() string {
	return fmt.Sprintf("geometry produced invalid volume %g", e.v)
}

func errInvalidVolume(v float64) error { return &invalidVolumeError{v: v} }
