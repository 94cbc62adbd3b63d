package scheduler

import "errors"

// ErrInvalidInterval is returned when an interval does not satisfy start < end
// or its timestamps cannot be parsed.
var ErrInvalidInterval = errors.New("scheduler: invalid interval")
