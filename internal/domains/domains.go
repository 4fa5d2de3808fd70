// Package domains implements the backtrackable, explainable bound store
// (L1) and its implication graph (L2): the single source of truth for the
// current [lb, ub] of every, possibly optional, integer variable.
package domains

import (
	"fmt"

	"github.com/plaans/aries/internal/ids"
)

// Domains is the backtrackable store of variable bounds, the event trail,
// and the implication graph over literals.
type Domains struct {
	// bounds[sv] is the tightest known k such that "sv<=k" holds.
	bounds []int32
	// levelAt[sv] is the decision level at which bounds[sv] was last
	// tightened.
	levelAt []int32

	// presence[v] is the literal controlling whether v is present. Non
	// optional variables have presence[v] == ids.TRUE.
	presence []ids.Literal

	trail    []event
	trailLim []int

	impl *implicationGraph
}

// New returns an empty store with ZERO already allocated and pinned to 0.
func New() *Domains {
	d := &Domains{impl: newImplicationGraph()}
	// ZERO is non-optional and fixed to exactly 0.
	d.allocVar(0, 0, ids.TRUE)
	return d
}

func (d *Domains) allocVar(lb, ub int32, presence ids.Literal) ids.VarRef {
	v := ids.VarRef(len(d.presence))
	d.presence = append(d.presence, presence)
	d.bounds = append(d.bounds, ub, -lb) // +v<=ub, -v<=-lb
	d.levelAt = append(d.levelAt, 0, 0)
	d.impl.expand()
	return v
}

// NewVar allocates a new variable with initial bounds [lb, ub] and the given
// presence literal ("prez(v) = TRUE" is spelled ids.TRUE for non-optional
// variables).
func (d *Domains) NewVar(lb, ub int32, presence ids.Literal) ids.VarRef {
	if lb > ub {
		panic(fmt.Sprintf("invalid initial domain [%d, %d]", lb, ub))
	}
	return d.allocVar(lb, ub, presence)
}

// NumVars returns the number of allocated variables, ZERO included.
func (d *Domains) NumVars() int {
	return len(d.presence)
}

// Presence returns the presence literal of v.
func (d *Domains) Presence(v ids.VarRef) ids.Literal {
	return d.presence[v]
}

// UB returns the current upper bound of v.
func (d *Domains) UB(v ids.VarRef) int32 {
	return d.bounds[ids.PlusSignedVar(v)]
}

// LB returns the current lower bound of v.
func (d *Domains) LB(v ids.VarRef) int32 {
	return -d.bounds[ids.MinusSignedVar(v)]
}

// boundOf returns the tightest known bound on the given signed var.
func (d *Domains) boundOf(sv ids.SignedVar) int32 {
	return d.bounds[sv]
}

// BoundOf returns the tightest known bound on the given signed var. Unlike
// UB/LB it is not specialized to one sign, which lets callers (the STN
// reasoner) treat "+v" and "-v" uniformly as the two nodes of a single
// difference-constraint graph.
func (d *Domains) BoundOf(sv ids.SignedVar) int32 {
	return d.bounds[sv]
}

// Entails returns true if lit currently holds, either directly from the
// bound store or transitively through the implication graph.
func (d *Domains) Entails(lit ids.Literal) bool {
	if d.boundOf(lit.SVar) <= lit.Bound {
		return true
	}
	return d.impl.entails(lit, d)
}

// IsPresent returns true if v's presence literal is entailed.
func (d *Domains) IsPresent(v ids.VarRef) bool {
	return d.Entails(d.presence[v])
}

// IsAbsent returns true if v's presence literal is refuted.
func (d *Domains) IsAbsent(v ids.VarRef) bool {
	return d.Entails(d.presence[v].Negated())
}

// AddImplication registers that lit entailed implies imp entailed (and,
// symmetrically, that ¬imp implies ¬lit).
func (d *Domains) AddImplication(lit, imp ids.Literal) {
	d.impl.add(lit, imp)
}

// DecisionLevel returns the current depth of the save/restore stack.
func (d *Domains) DecisionLevel() int {
	return len(d.trailLim)
}

// SaveState checkpoints the current state and returns the new decision
// level.
func (d *Domains) SaveState() int {
	d.trailLim = append(d.trailLim, len(d.trail))
	return len(d.trailLim)
}

// Restore undoes all tightenings performed above decision level `level`
// (leaving DecisionLevel() == level), replaying the trail in reverse, as
// required for save_state / restore_last to be bit-identical to the
// pre-save state.
func (d *Domains) Restore(level int) {
	d.RestoreWithCallback(level, nil)
}

// RestoreWithCallback behaves like Restore but additionally invokes onUndo,
// if non-nil, once for every trail event undone, before it is discarded.
// The search loop uses this to learn which variables became unassigned so
// it can reinsert them into the brancher.
func (d *Domains) RestoreWithCallback(level int, onUndo func(ids.VarRef)) {
	for len(d.trailLim) > level {
		target := d.trailLim[len(d.trailLim)-1]
		for len(d.trail) > target {
			ev := d.trail[len(d.trail)-1]
			d.trail = d.trail[:len(d.trail)-1]
			d.bounds[ev.SVar] = ev.Old
			if onUndo != nil {
				onUndo(ev.SVar.VarRef())
			}
		}
		d.trailLim = d.trailLim[:len(d.trailLim)-1]
	}
}

// Set tightens the store so that lit is entailed, cascading into an
// absence inference if doing so would otherwise make a present variable's
// domain empty. It returns Conflict only if that absence inference is
// itself impossible (the variable is non-optional, or its presence literal
// cannot be negated).
func (d *Domains) Set(lit ids.Literal, cause Cause) Outcome {
	if d.Entails(lit) {
		return Consistent
	}

	sv := lit.SVar
	old := d.bounds[sv]
	d.bounds[sv] = lit.Bound
	d.levelAt[sv] = int32(d.DecisionLevel())
	d.trail = append(d.trail, event{
		SVar:  sv,
		Old:   old,
		New:   lit.Bound,
		Cause: cause,
		Level: d.DecisionLevel(),
	})

	v := sv.VarRef()
	if d.LB(v) <= d.UB(v) {
		return Consistent
	}

	// The integer domain of v is now empty: v must be absent. The two
	// literals that jointly prove it are the one just tightened and the
	// pre-existing bound on the opposite side of v.
	prez := d.presence[v]
	if prez == ids.TRUE {
		return Conflict
	}
	var opposite ids.Literal
	if sv.IsPlus() {
		opposite = ids.NewGeq(v, d.LB(v))
	} else {
		opposite = ids.NewLeq(v, d.UB(v))
	}
	return d.Set(prez.Negated(), AbsenceCause(lit, opposite))
}

// TrailLen returns the number of events on the trail.
func (d *Domains) TrailLen() int {
	return len(d.trail)
}

// EventLiteral returns the literal entailed by the i-th trail event.
func (d *Domains) EventLiteral(i int) ids.Literal {
	ev := d.trail[i]
	return ids.Literal{SVar: ev.SVar, Bound: ev.New}
}

// EventCause returns the cause of the i-th trail event.
func (d *Domains) EventCause(i int) Cause {
	return d.trail[i].Cause
}

// EventLevel returns the decision level at which the i-th trail event fired.
func (d *Domains) EventLevel(i int) int {
	return d.trail[i].Level
}

// LevelOfLiteral returns the decision level at which lit's signed var was
// last tightened. Only meaningful for currently entailed literals.
func (d *Domains) LevelOfLiteral(lit ids.Literal) int {
	return int(d.levelAt[lit.SVar])
}
