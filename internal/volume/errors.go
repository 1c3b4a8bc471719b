package volume

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

var (
	ErrOutOfBounds = errors.New("volume: coordinate out of bounds")
	ErrPlacement   = errors.New("volume: transformed coordinate not representable")
	ErrBadLayout   = errors.New("volume: segment layout does not match extent")
	ErrExtent      = errors.New("volume: extent has too many cells")
)

func extentError(e Extent) error {
	return fmt.Errorf("%w: %s", ErrExtent, e)
}

type BoundsError struct {
	Coord  Coord
	Extent Extent
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("volume: coordinate %s out of bounds %s", e.Coord, e.Extent)
}

func (e *BoundsError) Is(target error) bool { return target == ErrOutOfBounds }

// PlacementError reports a cell whose placed position cannot be used as an
// unsigned grid index in the destination volume.
type PlacementError struct {
	Source string // "a" or "b", or the index for CombineAll
	Local  Coord
	Point  mgl32.Vec3
}

func (e *PlacementError) Error() string {
	return fmt.Sprintf("volume: cell %s of %s placed at (%g,%g,%g) is not a valid grid index",
		e.Local, e.Source, e.Point[0], e.Point[1], e.Point[2])
}

func (e *PlacementError) Is(target error) bool { return target == ErrPlacement }
