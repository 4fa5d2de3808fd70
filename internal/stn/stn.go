// Package stn implements the difference-logic theory (L5): an incrementally
// maintained Simple Temporal Network over the domains store's own bound
// array. Every variable contributes two nodes to a single propagation graph
// — its "+v" (upper-bound) signed var and its "-v" (lower-bound) signed var
// — so a posted difference constraint "b - a <= k" becomes two ordinary
// graph arcs, and a single generic relaxation rule over a reusable FIFO
// queue (the same queue shape used for incremental Bellman-Ford-style
// propagation elsewhere in this solver) handles both directions uniformly.
// Each arc also carries a trigger literal gating when it may fire: theory
// propagation runs the same relaxation arithmetic on arcs whose trigger is
// not yet entailed, falsifying (or absence-forcing) the trigger whenever
// activating the arc would immediately be infeasible.
package stn

import (
	"context"
	"errors"

	"github.com/plaans/aries/internal/container"
	"github.com/plaans/aries/internal/domains"
	"github.com/plaans/aries/internal/ids"
	"github.com/plaans/aries/internal/reasoner"
)

var errNonRootAdd = errors.New("stn: difference constraints can only be posted at the root decision level")

// theoryPropFlag marks a Cause tag as coming from theory propagation (a
// falsified/absence-forced trigger literal) rather than an ordinary edge
// relaxation, so Explain can tell the two kinds of antecedent apart.
const theoryPropFlag uint32 = 1 << 31

// arc is one edge of the propagation graph: "to <= from + weight", active
// only when enabler is entailed.
type arc struct {
	from, to ids.SignedVar
	weight   int32
	enabler  ids.Literal
}

// Reasoner is the STN theory. It implements reasoner.Reasoner.
type Reasoner struct {
	arcs []arc
	// adj[sv] holds the indices into arcs of every arc whose source is sv.
	adj [][]int

	// pred[sv] is the arc index that last tightened sv's bound, used to
	// reconstruct a negative cycle's constituent literals on conflict.
	pred []int
	// relaxCount[sv] counts relaxations of sv within the current Propagate
	// call; exceeding the node count proves a negative cycle exists.
	relaxCount []int

	// enablerWatch[sv] lists arcs whose enabler's signed var is sv: when an
	// event on sv is processed, these arcs' source nodes must be re-checked
	// even though their own bound did not change.
	enablerWatch [][]int

	pendingFrom []ids.SignedVar

	queue   *container.Queue[ids.SignedVar]
	inQueue []bool

	processed      int
	processedStack []int

	d   *domains.Domains
	ctx context.Context
}

// SetContext installs a cancellation context checked periodically inside
// the relaxation loop, since a pathological chain of active edges can make
// a single Propagate call arbitrarily long-running.
func (s *Reasoner) SetContext(ctx context.Context) {
	s.ctx = ctx
}

// NewReasoner returns an empty STN reasoner.
func NewReasoner() *Reasoner {
	return &Reasoner{queue: container.NewQueue[ids.SignedVar](16)}
}

func (s *Reasoner) ID() domains.ReasonerID { return domains.ReasonerSTN }

// ExpandTo grows internal per-signed-var bookkeeping up to nVars variables.
// Must be called by the model builder whenever a variable is allocated.
func (s *Reasoner) ExpandTo(nVars int) {
	want := 2 * nVars
	for len(s.adj) < want {
		s.adj = append(s.adj, nil)
		s.pred = append(s.pred, -1)
		s.relaxCount = append(s.relaxCount, 0)
		s.inQueue = append(s.inQueue, false)
		s.enablerWatch = append(s.enablerWatch, nil)
	}
}

// AddDiff posts the difference constraint "b - a <= k", installing its two
// graph arcs (upper-bound-propagating "forward" and lower-bound-propagating
// "backward") each gated by its own trigger literal (pass ids.TRUE for an
// unconditional constraint): an arc only relaxes bounds once its trigger is
// entailed, and — short of that — is itself a candidate for theory
// propagation, which may falsify the trigger first. It can only be called
// at the root decision level.
func (s *Reasoner) AddDiff(d *domains.Domains, a, b ids.VarRef, k int32, fwdTrigger, bwdTrigger ids.Literal) error {
	if d.DecisionLevel() != 0 {
		return errNonRootAdd
	}
	s.ExpandTo(d.NumVars())

	fwd := arc{from: ids.PlusSignedVar(a), to: ids.PlusSignedVar(b), weight: k, enabler: fwdTrigger}
	bwd := arc{from: ids.MinusSignedVar(b), to: ids.MinusSignedVar(a), weight: k, enabler: bwdTrigger}

	i := len(s.arcs)
	s.arcs = append(s.arcs, fwd, bwd)
	s.adj[fwd.from] = append(s.adj[fwd.from], i)
	s.adj[bwd.from] = append(s.adj[bwd.from], i+1)

	if fwdTrigger != ids.TRUE {
		s.enablerWatch[fwdTrigger.SVar] = append(s.enablerWatch[fwdTrigger.SVar], i)
	}
	if bwdTrigger != ids.TRUE {
		s.enablerWatch[bwdTrigger.SVar] = append(s.enablerWatch[bwdTrigger.SVar], i+1)
	}

	s.pendingFrom = append(s.pendingFrom, fwd.from, bwd.from)
	return nil
}

func (s *Reasoner) push(sv ids.SignedVar) {
	if s.inQueue[sv] {
		return
	}
	s.inQueue[sv] = true
	s.queue.Push(sv)
}

// Propagate relaxes every arc reachable from a bound that changed since the
// last call (or from an arc newly posted this call), to a local fixpoint.
func (s *Reasoner) Propagate(d *domains.Domains) reasoner.Conflict {
	s.d = d
	defer func() { s.d = nil }()

	for _, sv := range s.pendingFrom {
		s.push(sv)
	}
	s.pendingFrom = s.pendingFrom[:0]

	for s.processed < d.TrailLen() {
		lit := d.EventLiteral(s.processed)
		s.processed++
		s.push(lit.SVar)
		for _, ai := range s.enablerWatch[lit.SVar] {
			s.push(s.arcs[ai].from)
		}
	}

	for i := range s.relaxCount {
		s.relaxCount[i] = 0
	}

	for i := 0; !s.queue.IsEmpty(); i++ {
		if i&1023 == 0 && s.ctx != nil && s.ctx.Err() != nil {
			s.drain()
			return nil
		}
		sv := s.queue.Pop()
		s.inQueue[sv] = false
		if conflict := s.relax(d, sv); conflict != nil {
			s.drain()
			return conflict
		}
	}
	return nil
}

func (s *Reasoner) drain() {
	for !s.queue.IsEmpty() {
		s.inQueue[s.queue.Pop()] = false
	}
}

func (s *Reasoner) relax(d *domains.Domains, sv ids.SignedVar) reasoner.Conflict {
	for _, ai := range s.adj[sv] {
		a := s.arcs[ai]
		cand := d.BoundOf(sv) + a.weight

		if !d.Entails(a.enabler) {
			if conflict := s.theoryPropagate(d, ai, cand); conflict != nil {
				return conflict
			}
			continue
		}

		if cand >= d.BoundOf(a.to) {
			continue
		}

		numNodes := len(s.adj)
		s.relaxCount[a.to]++
		if s.relaxCount[a.to] > numNodes {
			return s.explainCycle(ai)
		}
		s.pred[a.to] = ai

		out := d.Set(ids.Literal{SVar: a.to, Bound: cand}, domains.InferenceCause(domains.ReasonerSTN, uint32(ai)))
		if out == domains.Conflict {
			return s.explainCycle(ai)
		}
		s.push(a.to)
	}
	return nil
}

// theoryPropagate checks whether arc ai, currently inactive, would be
// infeasible if it were activated: the candidate bound it would impose on
// a.to, combined with the already-known opposite-direction bound on the
// same node, would make a.to's variable's domain empty. That is exactly the
// "new upper bound is a shortest path of length d; an inactive edge a->w b
// with lb(b)=d' such that d+w-d'<0 must be falsified" rule, applied locally
// since every bound this reasoner tracks is already an up-to-date shortest-
// path distance. When infeasible, the arc's trigger is forced false
// (cascading to an absence inference if the trigger's own variable cannot
// otherwise be made consistent), rather than waiting for the arc to be
// activated and only then discovering the resulting negative cycle.
func (s *Reasoner) theoryPropagate(d *domains.Domains, ai int, cand int32) reasoner.Conflict {
	a := s.arcs[ai]
	if a.enabler == ids.TRUE || d.Entails(a.enabler.Negated()) {
		return nil
	}

	opp := a.to.Negated()
	if cand+d.BoundOf(opp) >= 0 {
		return nil
	}

	tag := uint32(ai) | theoryPropFlag
	out := d.Set(a.enabler.Negated(), domains.InferenceCause(domains.ReasonerSTN, tag))
	if out == domains.Conflict {
		return s.explainFalsified(d, ai)
	}
	for _, wi := range s.enablerWatch[a.enabler.SVar] {
		s.push(s.arcs[wi].from)
	}
	return nil
}

// explainFalsified builds the conflict set for a theory-propagated
// falsification whose own trigger could not be negated because it is
// already entailed true elsewhere: the bound antecedents that proved
// activating arc `ai` infeasible, plus the trigger literal itself (which is
// what makes the two jointly inconsistent).
func (s *Reasoner) explainFalsified(d *domains.Domains, ai int) reasoner.Conflict {
	a := s.arcs[ai]
	opp := a.to.Negated()
	lits := []ids.Literal{
		{SVar: a.from, Bound: d.BoundOf(a.from)},
		{SVar: opp, Bound: d.BoundOf(opp)},
	}
	if a.enabler != ids.TRUE {
		lits = append(lits, a.enabler)
	}
	return lits
}

// explainCycle reconstructs the negative cycle closed by arc `closing` by
// walking pred pointers back into the cycle and then all the way around it,
// collecting the enabler literal of every arc on the cycle.
func (s *Reasoner) explainCycle(closing int) reasoner.Conflict {
	s.pred[s.arcs[closing].to] = closing

	cur := s.arcs[closing].to
	for i := 0; i < len(s.adj); i++ {
		cur = s.arcs[s.pred[cur]].from
	}
	cycleStart := cur

	var lits []ids.Literal
	node := cycleStart
	for {
		ai := s.pred[node]
		a := s.arcs[ai]
		if a.enabler != ids.TRUE {
			lits = append(lits, a.enabler)
		}
		node = a.from
		if node == cycleStart {
			break
		}
	}
	return lits
}

// Explain expands an STN-propagated literal. For an ordinary edge
// relaxation its antecedent is the arc's source bound at the time of
// firing, plus the arc's enabler (if not unconditionally true). For a
// theory-propagated trigger falsification (tag carries theoryPropFlag) the
// antecedents are instead the two current bounds that proved activating
// the arc infeasible.
func (s *Reasoner) Explain(lit ids.Literal, tag uint32, d *domains.Domains, out *[]ids.Literal) {
	if tag&theoryPropFlag != 0 {
		a := s.arcs[tag&^theoryPropFlag]
		opp := a.to.Negated()
		*out = append(*out,
			ids.Literal{SVar: a.from, Bound: d.BoundOf(a.from)},
			ids.Literal{SVar: opp, Bound: d.BoundOf(opp)},
		)
		return
	}

	a := s.arcs[tag]
	srcLit := ids.Literal{SVar: a.from, Bound: lit.Bound - a.weight}
	*out = append(*out, srcLit)
	if a.enabler != ids.TRUE {
		*out = append(*out, a.enabler)
	}
}

// SaveState checkpoints the processed-events cursor.
func (s *Reasoner) SaveState() {
	s.processedStack = append(s.processedStack, s.processed)
}

// Restore rewinds the processed-events cursor. As with the SAT reasoner, no
// other bookkeeping survives across decision levels: arcs are permanent
// (posted only at the root) and relaxation always recomputes from the live
// domains store.
func (s *Reasoner) Restore(level int) {
	if level >= len(s.processedStack) {
		return
	}
	s.processed = s.processedStack[level]
	s.processedStack = s.processedStack[:level]
}

// NumConstraints returns the number of posted difference constraints (each
// contributing two arcs).
func (s *Reasoner) NumConstraints() int { return len(s.arcs) / 2 }
