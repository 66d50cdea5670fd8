package classify

import "errors"

var (
	errInvalidRatios     = errors.New("landscape ratio must exceed portrait ratio and both must be positive")
	errInvalidConfidence = errors.New("ambiguous confidence must be within [0, 1]")
)
