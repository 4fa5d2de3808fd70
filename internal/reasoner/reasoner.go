// Package reasoner defines the common interface every theory in the solver
// implements (L3): enqueue is implicit (theories read pending events off the
// domains trail themselves), propagate, explain, and save/restore.
package reasoner

import (
	"github.com/plaans/aries/internal/domains"
	"github.com/plaans/aries/internal/ids"
)

// Conflict is the falsified set of literals returned by a failed
// Propagate, or nil on success. Conflict analysis (internal/search)
// resolves it exactly like a falsified clause.
type Conflict []ids.Literal

// Reasoner is the contract every theory (SAT, STN, ...) implements. The
// reasoner set is fixed at solve-start (see internal/search), never
// runtime-registered.
type Reasoner interface {
	// ID returns the reasoner's identity, used to tag causes on the trail.
	ID() domains.ReasonerID

	// Propagate reads all events posted to the trail since the last call,
	// infers consequences, and pushes new bounds via d.Set. It runs to a
	// local fixpoint and returns a Conflict if an inconsistency is found.
	Propagate(d *domains.Domains) Conflict

	// Explain expands a compact cause tag recorded on the trail for literal
	// lit into a precise set of antecedent literals, appended to out.
	Explain(lit ids.Literal, tag uint32, d *domains.Domains, out *[]ids.Literal)

	// SaveState checkpoints reasoner-local state; must be idempotent and
	// perfectly reversible by a matching Restore.
	SaveState()

	// Restore undoes all SaveState checkpoints taken after the given level.
	Restore(level int)
}
