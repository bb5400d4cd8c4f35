package errorutil

import "errors"

// ErrUnknownAddress is returned when an address can't be mapped to a function.
var ErrUnknownAddress = errors.New("unknown function address")

// ErrFrameOutOfRange is returned when a frame index does not name a recorded frame.
var ErrFrameOutOfRange = errors.New("frame index out of range")

// ErrNoResults represents situations in which a query has nothing to return,
// typically because no session was analyzed yet.
var ErrNoResults = errors.New("no results returned")
