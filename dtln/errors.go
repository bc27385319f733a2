package dtln

import "errors"

var (
	// ErrBadParams indicates weight tensors whose shapes do not fit together.
	ErrBadParams = errors.New("dtln: inconsistent parameters")

	// ErrBadContainer indicates a weight file that is not a valid container.
	ErrBadContainer = errors.New("dtln: invalid weight container")
)
