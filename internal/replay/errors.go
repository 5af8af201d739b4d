package replay

import (
	"errors"
	"fmt"
)

var (
	// ErrCorruptLog covers logs that cannot have come from an in-order, complete game.
	ErrCorruptLog = errors.New("corrupt replay log")
	// ErrUnknownUnit is returned when an action references a unit id absent from its record.
	ErrUnknownUnit = errors.New("unknown unit")
	// ErrKeyNotFound is returned by Loader.JumpTo for coordinates outside the replay.
	ErrKeyNotFound = errors.New("key not found")
	// ErrMalformedTables is returned when persisted tables are inconsistent or incomplete.
	ErrMalformedTables = errors.New("malformed replay tables")
)

// KeyError attaches the (round, action-index) coordinate to an error.
type KeyError struct {
	Key Key
	Err error
}

func (e *KeyError) Error() string { return fmt.Sprintf("%v: %v", e.Key, e.Err) }
func (e *KeyError) Unwrap() error { return e.Err }
