package domains

import "github.com/plaans/aries/internal/ids"

// event is a single trail entry: a tightening of signed var sv from old to
// new, with the cause that justified it. Events are strictly FIFO; the
// trail is a totally ordered log of every bound tightened during search.
type event struct {
	SVar  ids.SignedVar
	Old   int32
	New   int32
	Cause Cause
	Level int
}

// Outcome is the result of attempting to tighten the store with a literal.
type Outcome uint8

const (
	// Consistent means the literal is now entailed (possibly no-op because
	// it already was).
	Consistent Outcome = iota
	// Conflict means asserting the literal is inconsistent with the current
	// state and could not be repaired by forcing absence.
	Conflict
)
