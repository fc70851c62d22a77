// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package recall

import (
	"errors"
	"fmt"
)

// ErrNothingRecorded is returned when a channel has no recorded entries
// at all. Callers surface it as an informational reply, not a failure.
var ErrNothingRecorded = errors.New("nothing recorded for this channel")

// ErrInvalidIndex is returned for lookup indexes below 1.
var ErrInvalidIndex = errors.New("index must be at least 1")

// OutOfRangeError is returned when the requested index exceeds the
// number of entries currently cached. Available carries the actual
// count so the caller can report it.
type OutOfRangeError struct {
	Requested int
	Available int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("index %d out of range, only %d entries recorded", e.Requested, e.Available)
}
