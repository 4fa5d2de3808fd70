// Package search implements the CDCL loop (L6): propagate every reasoner to
// a joint fixpoint, analyze conflicts into a 1-UIP learnt clause generalized
// over bound literals, backjump, and branch, with Luby-scheduled restarts
// and a growing learnt-clause budget, over domain-splitting decisions
// instead of plain boolean assignment.
package search

import (
	"context"
	"time"

	"github.com/plaans/aries/internal/container"
	"github.com/plaans/aries/internal/domains"
	"github.com/plaans/aries/internal/ids"
	"github.com/plaans/aries/internal/reasoner"
	"github.com/plaans/aries/internal/satreasoner"
)

// Status is the outcome of a solve attempt.
type Status int

const (
	StatusUnknown Status = iota
	StatusSat
	StatusUnsat
)

// Options configures the search loop: clause/variable activity decay,
// stop conditions, phase saving, and the Luby restart base.
type Options struct {
	ClauseDecay   float64
	VariableDecay float64
	MaxConflicts  int64
	Timeout       time.Duration
	PhaseSaving   bool
	LubyBase      int64
}

// DefaultOptions is a reasonable baseline tuning for the CDCL loop.
var DefaultOptions = Options{
	ClauseDecay:   0.999,
	VariableDecay: 0.95,
	MaxConflicts:  -1,
	Timeout:       -1,
	PhaseSaving:   false,
	LubyBase:      100,
}

// Solution is a snapshot of every present variable's fixed value, taken
// when the brancher finds no further decision to make.
type Solution struct {
	Values  []int32
	Present []bool
}

// Loop drives the CDCL search over a fixed, ordered set of reasoners.
type Loop struct {
	d         *domains.Domains
	sat       *satreasoner.Reasoner
	reasoners []reasoner.Reasoner
	byID      map[domains.ReasonerID]reasoner.Reasoner
	brancher  *Brancher

	opts Options
	ctx  context.Context

	TotalConflicts  int64
	TotalRestarts   int64
	TotalIterations int64
	startTime       time.Time

	Models []Solution

	seenSVar    *container.ResetSet
	touchedVars *container.ResetSet
	tmpLearnt   []ids.Literal
	tmpExplain  []ids.Literal
}

// NewLoop builds a search loop over d, with sat always first in the
// reasoner order, followed by any additional theories (e.g. the STN
// reasoner).
func NewLoop(d *domains.Domains, sat *satreasoner.Reasoner, extra []reasoner.Reasoner, brancher *Brancher, opts Options) *Loop {
	reasoners := append([]reasoner.Reasoner{sat}, extra...)
	byID := make(map[domains.ReasonerID]reasoner.Reasoner, len(reasoners))
	for _, r := range reasoners {
		byID[r.ID()] = r
	}
	return &Loop{
		d:           d,
		sat:         sat,
		reasoners:   reasoners,
		byID:        byID,
		brancher:    brancher,
		opts:        opts,
		seenSVar:    &container.ResetSet{},
		touchedVars: &container.ResetSet{},
	}
}

// SetContext installs a cancellation context, checked at the top of the
// search loop. The STN reasoner's relaxation loop takes its own context
// through stn.Reasoner.SetContext.
func (loop *Loop) SetContext(ctx context.Context) {
	loop.ctx = ctx
}

func (loop *Loop) shouldStop() bool {
	if loop.opts.MaxConflicts >= 0 && loop.opts.MaxConflicts <= loop.TotalConflicts {
		return true
	}
	if loop.opts.Timeout >= 0 && loop.opts.Timeout <= time.Since(loop.startTime) {
		return true
	}
	if loop.ctx != nil && loop.ctx.Err() != nil {
		return true
	}
	return false
}

// Solve runs the outer restart loop until a solution is found, the problem
// is proven unsatisfiable, or a stop condition (MaxConflicts/Timeout) fires,
// in which case it returns StatusUnknown.
func (loop *Loop) Solve() Status {
	loop.startTime = time.Now()

	numLearnts := loop.sat.NumConstraints()/3 + 1
	restartIdx := int64(1)

	for {
		budget := loop.opts.LubyBase * luby(restartIdx)
		status := loop.search(budget, numLearnts)
		restartIdx++
		numLearnts += numLearnts / 20

		if status != StatusUnknown || loop.shouldStop() {
			return status
		}
	}
}

// search runs decisions/propagation/conflict-analysis until conflictBudget
// conflicts have been hit (StatusUnknown, triggering a restart with the next
// Luby budget) or the problem is solved/refuted.
func (loop *Loop) search(conflictBudget int64, numLearntsLimit int) Status {
	loop.TotalRestarts++
	var conflictCount int64

	for !loop.shouldStop() {
		loop.TotalIterations++

		if conflict := loop.propagateAll(); conflict != nil {
			conflictCount++
			loop.TotalConflicts++

			if loop.d.DecisionLevel() == 0 {
				return StatusUnsat
			}

			learnt, backtrackLevel := loop.analyze(conflict)
			loop.backjump(backtrackLevel)
			loop.record(learnt)

			loop.sat.DecayClauseActivity()
			loop.brancher.DecayScores()
			continue
		}

		if loop.d.DecisionLevel() == 0 {
			loop.sat.Simplify(loop.d)
		}
		if loop.sat.NumLearnts() >= numLearntsLimit {
			loop.sat.ReduceDB(loop.d)
		}

		lit, ok := loop.brancher.NextDecision(loop.d)
		if !ok {
			loop.saveModel()
			loop.backjump(0)
			return StatusSat
		}

		if conflictCount > conflictBudget {
			loop.backjump(0)
			return StatusUnknown
		}

		loop.decide(lit)
	}
	return StatusUnknown
}

// propagateAll runs every reasoner to a joint fixpoint: if one reasoner's
// inference unlocks another's (e.g. the SAT reasoner fixes a presence
// literal the STN reasoner was waiting on), the round repeats.
func (loop *Loop) propagateAll() reasoner.Conflict {
	for {
		before := loop.d.TrailLen()
		for _, r := range loop.reasoners {
			if c := r.Propagate(loop.d); c != nil {
				return c
			}
		}
		if loop.d.TrailLen() == before {
			return nil
		}
	}
}

func (loop *Loop) decide(lit ids.Literal) {
	loop.d.SaveState()
	for _, r := range loop.reasoners {
		r.SaveState()
	}
	loop.d.Set(lit, domains.DecisionCause)
}

// backjump undoes every decision level above `level`, reinserting into the
// brancher every variable that became unassigned again.
func (loop *Loop) backjump(level int) {
	loop.touchedVars.Clear()
	for loop.touchedVars.Len() < loop.d.NumVars() {
		loop.touchedVars.Expand()
	}

	loop.d.RestoreWithCallback(level, func(v ids.VarRef) {
		loop.touchedVars.Add(int(v))
	})
	for _, r := range loop.reasoners {
		r.Restore(level)
	}

	for v := 0; v < loop.touchedVars.Len(); v++ {
		if !loop.touchedVars.Contains(v) {
			continue
		}
		vr := ids.VarRef(v)
		if loop.d.LB(vr) < loop.d.UB(vr) {
			loop.brancher.Reinsert(vr)
		}
	}
}

// record inserts a just-learnt clause and bumps the activity of every
// variable it names.
func (loop *Loop) record(learnt []ids.Literal) {
	for _, l := range learnt {
		loop.brancher.BumpScore(l.VarRef())
	}
	loop.sat.Record(loop.d, learnt)
}

func (loop *Loop) saveModel() {
	sol := Solution{
		Values:  make([]int32, loop.d.NumVars()),
		Present: make([]bool, loop.d.NumVars()),
	}
	for v := 0; v < loop.d.NumVars(); v++ {
		vr := ids.VarRef(v)
		sol.Present[v] = loop.d.IsPresent(vr)
		sol.Values[v] = loop.d.LB(vr)
	}
	loop.Models = append(loop.Models, sol)
}

// analyze performs 1-UIP conflict analysis generalized to signed vars: the
// same boolean variable can have independent, separately-explained upper-
// and lower-bound events, so the "seen" set is keyed by SignedVar rather
// than by VarRef.
func (loop *Loop) analyze(conflict reasoner.Conflict) ([]ids.Literal, int) {
	nImplicationPoints := 0
	loop.tmpLearnt = loop.tmpLearnt[:0]
	loop.tmpLearnt = append(loop.tmpLearnt, ids.Literal{})

	loop.seenSVar.Clear()
	for loop.seenSVar.Len() < 2*loop.d.NumVars() {
		loop.seenSVar.Expand()
	}

	backtrackLevel := 0
	nextIdx := loop.d.TrailLen() - 1

	reason := []ids.Literal(conflict)
	var curLit ids.Literal

	for {
		for _, q := range reason {
			sv := int(q.SVar)
			if loop.seenSVar.Contains(sv) {
				continue
			}
			loop.seenSVar.Add(sv)

			lvl := loop.d.LevelOfLiteral(q)
			if lvl == loop.d.DecisionLevel() {
				nImplicationPoints++
				continue
			}
			loop.tmpLearnt = append(loop.tmpLearnt, q.Negated())
			if lvl > backtrackLevel {
				backtrackLevel = lvl
			}
		}

		var cause domains.Cause
		for {
			nextIdx--
			curLit = loop.d.EventLiteral(nextIdx)
			if loop.seenSVar.Contains(int(curLit.SVar)) {
				cause = loop.d.EventCause(nextIdx)
				break
			}
		}

		nImplicationPoints--
		if nImplicationPoints <= 0 {
			break
		}

		reason = loop.explainCause(curLit, cause)
	}

	loop.tmpLearnt[0] = curLit.Negated()
	return loop.tmpLearnt, backtrackLevel
}

func (loop *Loop) explainCause(lit ids.Literal, cause domains.Cause) []ids.Literal {
	switch cause.Kind {
	case domains.CauseInference:
		loop.tmpExplain = loop.tmpExplain[:0]
		loop.byID[cause.Reasoner].Explain(lit, cause.Tag, loop.d, &loop.tmpExplain)
		return loop.tmpExplain
	case domains.CauseImplication:
		return []ids.Literal{cause.From}
	case domains.CauseAbsence:
		return []ids.Literal{cause.From, cause.From2}
	default:
		return nil
	}
}

// luby returns the i-th term (1-indexed) of the Luby restart sequence:
// 1, 1, 2, 1, 1, 2, 4, 1, 1, 2, 1, 1, 2, 4, 8, ...
func luby(i int64) int64 {
	k := int64(1)
	for (int64(1)<<uint(k))-1 < i {
		k++
	}
	if i == (int64(1)<<uint(k))-1 {
		return int64(1) << uint(k-1)
	}
	return luby(i - (int64(1)<<uint(k-1)) + 1)
}
