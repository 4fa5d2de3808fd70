// Package satreasoner implements the SAT theory (L4): a clause database
// with watched literals, unit propagation and learned-clause insertion,
// generalized to the optional-variable semantics via per-clause validity
// scopes — the conjunction (meet) of the presence literals of every
// variable the clause names, materialized through a fresh auxiliary
// variable when more than one is independently optional — with a scope
// check layered on top of ordinary unit propagation.
package satreasoner

import (
	"errors"
	"sort"

	"github.com/plaans/aries/internal/domains"
	"github.com/plaans/aries/internal/ids"
	"github.com/plaans/aries/internal/reasoner"
)

var (
	errNonRootAdd = errors.New("satreasoner: clauses can only be added at the root decision level")
	errUnsat      = errors.New("satreasoner: clause is unsatisfiable at the root level")
)

// watcher is a clause attached to one of its negated literals' watch list.
type watcher struct {
	clause *Clause
}

// Reasoner is the SAT theory. It implements reasoner.Reasoner. Like the
// solver it is ported from, it is used synchronously and single-threaded:
// the `d` field only ever holds the domains store for the duration of the
// current AddClause/Propagate/Simplify call, which lets Clause methods call
// back into the reasoner without threading *domains.Domains everywhere.
type Reasoner struct {
	constraints []*Clause
	learnts     []*Clause

	clauseInc   float64
	clauseDecay float64

	// watchers[sv] holds the clauses watching signed var sv, i.e. clauses
	// that must be inspected when a literal on sv becomes entailed.
	watchers [][]watcher

	// reasons[v] is the clause that last propagated a literal on v through
	// enqueue (nil for a unit clause, or if no clause ever did); it is not
	// cleared on backtrack or when a decision or another reasoner later
	// tightens v. Used both by Explain and by the "locked" check during
	// eviction.
	reasons []*Clause

	// processed is how many domains trail events this reasoner has already
	// scanned; processedStack mirrors it across save/restore.
	processed      int
	processedStack []int

	tmpWatchers []watcher
	tmpReason   []ids.Literal

	d *domains.Domains
}

// NewReasoner returns an empty SAT reasoner.
func NewReasoner() *Reasoner {
	return &Reasoner{clauseInc: 1, clauseDecay: 0.999}
}

func (s *Reasoner) ID() domains.ReasonerID { return domains.ReasonerSAT }

// SetClauseDecay overrides the activity decay applied by DecayClauseActivity.
func (s *Reasoner) SetClauseDecay(decay float64) { s.clauseDecay = decay }

// ExpandTo grows internal per-variable bookkeeping up to nVars variables.
// Must be called by the model builder whenever a variable is allocated.
func (s *Reasoner) ExpandTo(nVars int) {
	for len(s.reasons) < nVars {
		s.reasons = append(s.reasons, nil)
		s.watchers = append(s.watchers, nil, nil) // +v and -v buckets
	}
}

func (s *Reasoner) reasonOf(v ids.VarRef) *Clause {
	if int(v) >= len(s.reasons) {
		return nil
	}
	return s.reasons[v]
}

func (s *Reasoner) isTrue(lit ids.Literal) bool  { return s.d.Entails(lit) }
func (s *Reasoner) isFalse(lit ids.Literal) bool { return s.d.Entails(lit.Negated()) }

func (s *Reasoner) watch(c *Clause, watched ids.Literal) {
	bucket := watched.SVar
	s.watchers[bucket] = append(s.watchers[bucket], watcher{clause: c})
}

func (s *Reasoner) unwatch(c *Clause, watched ids.Literal) {
	bucket := watched.SVar
	list := s.watchers[bucket]
	j := 0
	for i := range list {
		if list[i].clause != c {
			list[j] = list[i]
			j++
		}
	}
	s.watchers[bucket] = list[:j]
}

// enqueue asks the domains store to assert l, attributing the reason clause
// `from` (nil for decisions). It returns false if asserting l produced a
// hard conflict.
func (s *Reasoner) enqueue(l ids.Literal, from *Clause) bool {
	if s.isTrue(l) {
		return true
	}
	out := s.d.Set(l, domains.InferenceCause(domains.ReasonerSAT, 0))
	if out == domains.Conflict {
		return false
	}
	s.reasons[l.VarRef()] = from
	return true
}

// scopeOf computes the validity scope of a clause: the meet of the
// presence literals of its variables, i.e. a literal true exactly when
// every one of them is present. When the clause names zero or one distinct
// non-trivial presence literal, the meet collapses to ids.TRUE or that
// literal directly, with no new variable. With two or more, a fresh
// auxiliary boolean variable is allocated and tied to the conjunction by
// its defining clauses (posted directly, bypassing AddClause/Record's
// simplification so this can safely run at a non-root decision level from
// Record), so that clauses spanning more than one independently-optional
// variable get a real AND rather than an arbitrary pick among the operands.
func (s *Reasoner) scopeOf(d *domains.Domains, literals []ids.Literal) ids.Literal {
	var distinct []ids.Literal
	seen := map[ids.Literal]bool{}
	for _, l := range literals {
		p := d.Presence(l.VarRef())
		if p == ids.TRUE || seen[p] {
			continue
		}
		seen[p] = true
		distinct = append(distinct, p)
	}

	switch len(distinct) {
	case 0:
		return ids.TRUE
	case 1:
		return distinct[0]
	}

	v := d.NewVar(0, 1, ids.TRUE)
	s.ExpandTo(d.NumVars())
	r := ids.NewGeq(v, 1)

	tail := make([]ids.Literal, 0, len(distinct)+1)
	for _, p := range distinct {
		s.postScopeClause(r.Negated(), p)
		tail = append(tail, p.Negated())
	}
	tail = append(tail, r)
	s.postScopeClause(tail...)

	return r
}

// postScopeClause registers a freshly synthesized scope-defining clause
// directly, without the duplicate/tautology/root-unit-enqueue handling
// newClauseSimplified applies to ordinary problem clauses: the clauses
// scopeOf builds are known simple (no repeated or complementary literals)
// and must behave as permanent root facts even when scopeOf runs from
// Record at a non-root decision level.
func (s *Reasoner) postScopeClause(literals ...ids.Literal) {
	c := newClause(literals, false, ids.TRUE)
	s.constraints = append(s.constraints, c)
	s.watch(c, c.literals[0].Negated())
	s.watch(c, c.literals[1].Negated())
}

// AddClause adds a problem clause. It can only be called at the root
// decision level.
func (s *Reasoner) AddClause(d *domains.Domains, literals []ids.Literal) error {
	s.d = d
	defer func() { s.d = nil }()

	if d.DecisionLevel() != 0 {
		return errNonRootAdd
	}
	scope := s.scopeOf(d, literals)
	c, ok := s.newClauseSimplified(literals, false, scope)
	if c != nil {
		s.constraints = append(s.constraints, c)
		s.ExpandTo(d.NumVars())
		s.watch(c, c.literals[0].Negated())
		s.watch(c, c.literals[1].Negated())
	}
	if !ok {
		return errUnsat
	}
	return nil
}

// newClauseSimplified simplifies tmp in place against the current root
// assignment (removing duplicate/falsified literals, detecting tautologies)
// and, for unit results, enqueues directly instead of building a clause.
func (s *Reasoner) newClauseSimplified(tmp []ids.Literal, learnt bool, scope ids.Literal) (*Clause, bool) {
	size := len(tmp)

	if !learnt {
		seen := map[ids.Literal]struct{}{}
		for i := size - 1; i >= 0; i-- {
			if _, ok := seen[tmp[i].Negated()]; ok {
				return nil, true // tautology
			}
			if _, ok := seen[tmp[i]]; ok {
				size--
				tmp[i], tmp[size] = tmp[size], tmp[i]
				continue
			}
			seen[tmp[i]] = struct{}{}

			switch {
			case s.isTrue(tmp[i]):
				return nil, true
			case s.isFalse(tmp[i]):
				size--
				tmp[i], tmp[size] = tmp[size], tmp[i]
			}
		}
		tmp = tmp[:size]
	}

	switch size {
	case 0:
		return nil, false
	case 1:
		return nil, s.enqueue(tmp[0], nil)
	default:
		c := newClause(tmp, learnt, scope)
		if learnt {
			maxLevel := -1
			wl := -1
			for i, l := range c.literals {
				if lvl := s.d.LevelOfLiteral(l.Negated()); lvl > maxLevel {
					maxLevel = lvl
					wl = i
				}
			}
			c.literals[wl], c.literals[1] = c.literals[1], c.literals[wl]
		}
		return c, true
	}
}

// Propagate scans every domains trail event not yet processed and runs unit
// propagation on the clauses watching the corresponding signed vars, to a
// local fixpoint.
func (s *Reasoner) Propagate(d *domains.Domains) reasoner.Conflict {
	s.d = d
	defer func() { s.d = nil }()

	for s.processed < d.TrailLen() {
		lit := d.EventLiteral(s.processed)
		s.processed++

		bucket := lit.SVar
		s.tmpWatchers = s.tmpWatchers[:0]
		s.tmpWatchers = append(s.tmpWatchers, s.watchers[bucket]...)
		s.watchers[bucket] = s.watchers[bucket][:0]

		for i, w := range s.tmpWatchers {
			if w.clause.propagateOn(s, lit) {
				continue
			}
			s.watchers[bucket] = append(s.watchers[bucket], s.tmpWatchers[i+1:]...)
			var out []ids.Literal
			w.clause.explainFailure(s, &out)
			return out
		}
	}
	return nil
}

// Explain expands the cause of a SAT-propagated literal by returning the
// negation of the reason clause's other literals.
func (s *Reasoner) Explain(lit ids.Literal, _ uint32, d *domains.Domains, out *[]ids.Literal) {
	c := s.reasonOf(lit.VarRef())
	if c == nil {
		return
	}
	c.explainAssign(s, out)
}

// SaveState checkpoints the processed-events cursor.
func (s *Reasoner) SaveState() {
	s.processedStack = append(s.processedStack, s.processed)
}

// Restore rewinds the processed-events cursor to the given level. Since
// clauses always recompute their local state (true/false/unknown) from the
// live domains store rather than caching it, no further bookkeeping is
// required: once the domains store itself is restored, re-scanning from an
// earlier cursor is always safe.
func (s *Reasoner) Restore(level int) {
	if level >= len(s.processedStack) {
		return
	}
	s.processed = s.processedStack[level]
	s.processedStack = s.processedStack[:level]
}

// Simplify removes clauses already satisfied at the root level. Must only
// be called at decision level 0 with an empty propagation backlog.
func (s *Reasoner) Simplify(d *domains.Domains) {
	s.d = d
	defer func() { s.d = nil }()

	s.simplifySlice(&s.learnts)
	s.simplifySlice(&s.constraints)
}

func (s *Reasoner) simplifySlice(clauses *[]*Clause) {
	cs := *clauses
	j := 0
	for i := range cs {
		if cs[i].simplify(s) {
			cs[i].remove(s)
		} else {
			cs[j] = cs[i]
			j++
		}
	}
	*clauses = cs[:j]
}

// BumpClauseActivity increases c's activity, rescaling all learned clause
// activities if it grows too large.
func (s *Reasoner) BumpClauseActivity(c *Clause) {
	c.activity += s.clauseInc
	if c.activity > 1e100 {
		s.clauseInc *= 1e-100
		for _, l := range s.learnts {
			l.activity *= 1e-100
		}
	}
}

// DecayClauseActivity decays the activity increment used by future bumps.
func (s *Reasoner) DecayClauseActivity() {
	s.clauseInc *= s.clauseDecay
}

// NumLearnts returns the number of learned clauses currently retained.
func (s *Reasoner) NumLearnts() int { return len(s.learnts) }

// NumConstraints returns the number of problem clauses.
func (s *Reasoner) NumConstraints() int { return len(s.constraints) }

// Record inserts a just-learned clause and enqueues its asserting literal
// (literals[0]), as CDCL requires immediately after backjump.
func (s *Reasoner) Record(d *domains.Domains, literals []ids.Literal) {
	s.d = d
	defer func() { s.d = nil }()

	scope := s.scopeOf(d, literals)
	c, _ := s.newClauseSimplified(literals, true, scope)
	if c != nil {
		s.watch(c, c.literals[0].Negated())
		s.watch(c, c.literals[1].Negated())
		s.learnts = append(s.learnts, c)
	}
	s.enqueue(literals[0], c)
}

// ReduceDB evicts low-activity learned clauses, never evicting one that is
// currently the reason for an assignment ("locked").
func (s *Reasoner) ReduceDB(d *domains.Domains) {
	s.d = d
	defer func() { s.d = nil }()

	if len(s.learnts) == 0 {
		return
	}
	lim := s.clauseInc / float64(len(s.learnts))

	for _, c := range s.learnts {
		if !c.locked(s) {
			c.setUnprotected()
		}
	}

	sort.Slice(s.learnts, func(i, j int) bool {
		return s.learnts[i].activity < s.learnts[j].activity
	})

	i, j := 0, 0
	for ; i < len(s.learnts)/2; i++ {
		if s.learnts[i].locked(s) || s.learnts[i].isProtected() {
			s.learnts[j] = s.learnts[i]
			j++
		} else {
			s.learnts[i].remove(s)
		}
	}
	for ; i < len(s.learnts); i++ {
		if !s.learnts[i].locked(s) && !s.learnts[i].isProtected() && s.learnts[i].activity < lim {
			s.learnts[i].remove(s)
		} else {
			s.learnts[j] = s.learnts[i]
			j++
		}
	}
	s.learnts = s.learnts[:j]
}
