package search

import (
	"github.com/rhartert/yagh"

	"github.com/plaans/aries/internal/domains"
	"github.com/plaans/aries/internal/ids"
)

// phase records which half of a variable's domain was last explored, so a
// later re-decision on the same variable retries it first.
type phase uint8

const (
	phaseUnknown phase = iota
	phaseLow
	phaseHigh
)

// Brancher selects the next decision literal, generalizing a VSIDS-ordered
// boolean variable order to domain-splitting over integer domains:
// a variable is decided by asserting "v <= mid" or "v > mid" rather than
// "v = true/false". Every variable the model builder wants branched on must
// be registered with AddVar; untouched variables (pure propagation targets,
// e.g. STN housekeeping vars) are never selected.
type Brancher struct {
	order      *yagh.IntMap[float64]
	scores     []float64
	scoreInc   float64
	scoreDecay float64

	phases      []phase
	phaseSaving bool
}

// NewBrancher returns an empty brancher with the given score decay.
func NewBrancher(decay float64, phaseSaving bool) *Brancher {
	return &Brancher{
		order:       yagh.New[float64](0),
		scoreInc:    1,
		scoreDecay:  decay,
		phaseSaving: phaseSaving,
	}
}

// AddVar registers v as eligible for branching.
func (b *Brancher) AddVar(v ids.VarRef) {
	for len(b.scores) <= int(v) {
		b.scores = append(b.scores, 0)
		b.phases = append(b.phases, phaseUnknown)
		b.order.GrowBy(1)
	}
	b.order.Put(int(v), 0)
}

// SetDecay overrides the activity decay applied by DecayScores.
func (b *Brancher) SetDecay(decay float64) { b.scoreDecay = decay }

// SetPhaseSaving toggles whether re-decisions retry the last-explored half.
func (b *Brancher) SetPhaseSaving(v bool) { b.phaseSaving = v }

// Reinsert makes v a candidate again, e.g. after a backtrack unassigned it.
func (b *Brancher) Reinsert(v ids.VarRef) {
	b.order.Put(int(v), -b.scores[v])
}

// BumpScore increases v's activity, rescaling if it grows too large.
func (b *Brancher) BumpScore(v ids.VarRef) {
	if int(v) >= len(b.scores) {
		return
	}
	b.scores[v] += b.scoreInc
	if b.order.Contains(int(v)) {
		b.order.Put(int(v), -b.scores[v])
	}
	if b.scores[v] > 1e100 {
		b.rescale()
	}
}

// DecayScores reduces the relative weight of past activity bumps.
func (b *Brancher) DecayScores() {
	b.scoreInc /= b.scoreDecay
	if b.scoreInc > 1e100 {
		b.rescale()
	}
}

func (b *Brancher) rescale() {
	b.scoreInc *= 1e-100
	for v, sc := range b.scores {
		b.scores[v] = sc * 1e-100
		if b.order.Contains(v) {
			b.order.Put(v, -b.scores[v])
		}
	}
}

// savePhase records which side of v's domain the decision literal explored.
func (b *Brancher) savePhase(v ids.VarRef, lit ids.Literal) {
	if !b.phaseSaving {
		return
	}
	if lit.IsUpperBound() {
		b.phases[v] = phaseLow
	} else {
		b.phases[v] = phaseHigh
	}
}

// NextDecision pops the highest-activity variable that is still undecided
// (not absent, with lb < ub) and returns a domain-splitting literal for it.
// Returns ok=false once every registered variable is fixed or absent.
func (b *Brancher) NextDecision(d *domains.Domains) (lit ids.Literal, ok bool) {
	for {
		next, has := b.order.Pop()
		if !has {
			return ids.Literal{}, false
		}
		v := ids.VarRef(next.Elem)
		if d.IsAbsent(v) {
			continue
		}
		lb, ub := d.LB(v), d.UB(v)
		if lb >= ub {
			continue
		}

		mid := lb + (ub-lb)/2
		low := ids.NewLeq(v, mid)
		high := ids.NewGeq(v, mid+1)

		decision := low
		if b.phaseSaving && b.phases[v] == phaseHigh {
			decision = high
		}
		b.savePhase(v, decision)
		return decision, true
	}
}
