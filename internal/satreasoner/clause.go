package satreasoner

import (
	"strings"

	"github.com/plaans/aries/internal/ids"
)

type status uint8

const (
	statusLearnt    status = 0b001
	statusProtected status = 0b010
)

// Clause is an ordered disjunction of literals, tagged as problem or
// learned. Clause literals are expected to be boolean-form (a fixed-point
// literal and its negation on a 0/1-domain variable); the SAT reasoner
// itself is general over ids.Literal but only sound for that restricted
// form.
type Clause struct {
	activity float64

	// The clause's literals. Always has at least two literals while active.
	literals []ids.Literal

	// scope is the meet of the presence literals of the clause's variables:
	// the clause only has to hold, and only propagates, when scope is
	// entailed.
	scope ids.Literal

	// prevPos caches where the last watch-repair search left off; always in
	// [2, len(literals)-1].
	prevPos int

	lbd        uint32
	statusMask status
}

func (c *Clause) isLearnt() bool     { return c.statusMask&statusLearnt != 0 }
func (c *Clause) isProtected() bool  { return c.statusMask&statusProtected != 0 }
func (c *Clause) setProtected()      { c.statusMask |= statusProtected }
func (c *Clause) setUnprotected()    { c.statusMask &^= statusProtected }

// newClause builds the clause struct without registering it with the
// solver's watch lists (callers decide when to do so).
func newClause(literals []ids.Literal, learnt bool, scope ids.Literal) *Clause {
	c := &Clause{
		literals: append([]ids.Literal(nil), literals...),
		prevPos:  2,
		scope:    scope,
	}
	if learnt {
		c.statusMask |= statusLearnt
	}
	return c
}

func (c *Clause) locked(s *Reasoner) bool {
	return s.reasonOf(c.literals[0].VarRef()) == c
}

// propagateOn is invoked when l has just become true, falsifying c's
// watched literal ¬l. It returns true if c remains satisfiable (possibly
// after re-watching) or becomes unit and its remaining literal is
// enqueued successfully, false if c is conflicting.
func (c *Clause) propagateOn(s *Reasoner, l ids.Literal) bool {
	opp := l.Negated()
	if c.literals[0] == opp {
		c.literals[0], c.literals[1] = c.literals[1], c.literals[0]
	}

	if s.isTrue(c.literals[0]) {
		s.watch(c, l)
		return true
	}

	if !s.isTrue(c.scope) {
		// Outside its validity scope the clause imposes no obligation; keep
		// watching but never propagate.
		s.watch(c, l)
		return true
	}

	if c.prevPos >= len(c.literals) {
		c.prevPos = 2
	}
	for i := c.prevPos; i < len(c.literals); i++ {
		if !s.isFalse(c.literals[i]) {
			c.prevPos = i
			c.literals[1], c.literals[i] = c.literals[i], c.literals[1]
			s.watch(c, c.literals[1].Negated())
			return true
		}
	}
	for i := 2; i < c.prevPos; i++ {
		if !s.isFalse(c.literals[i]) {
			c.prevPos = i
			c.literals[1], c.literals[i] = c.literals[i], c.literals[1]
			s.watch(c, c.literals[1].Negated())
			return true
		}
	}

	s.watch(c, l)
	return s.enqueue(c.literals[0], c)
}

// simplify drops literals already falsified at the root level, returning
// true if the clause is already satisfied (and can be discarded).
func (c *Clause) simplify(s *Reasoner) bool {
	k := 0
	for _, l := range c.literals {
		if s.isTrue(l) {
			return true
		}
		if s.isFalse(l) {
			continue
		}
		c.literals[k] = l
		k++
	}
	c.literals = c.literals[:k]
	return false
}

// remove unregisters c from both its watch buckets.
func (c *Clause) remove(s *Reasoner) {
	s.unwatch(c, c.literals[0].Negated())
	s.unwatch(c, c.literals[1].Negated())
}

// explainFailure returns the negation of every literal in c (used when c
// itself is the falsified clause at a conflict).
func (c *Clause) explainFailure(s *Reasoner, out *[]ids.Literal) {
	exp := (*out)[:0]
	for _, l := range c.literals {
		exp = append(exp, l.Negated())
	}
	*out = exp
	if c.isLearnt() {
		s.BumpClauseActivity(c)
		c.setProtected()
	}
}

// explainAssign returns the negation of every literal but the asserted one
// (literals[0]), used when c is the reason a literal was propagated.
func (c *Clause) explainAssign(s *Reasoner, out *[]ids.Literal) {
	exp := (*out)[:0]
	for _, l := range c.literals[1:] {
		exp = append(exp, l.Negated())
	}
	*out = exp
	if c.isLearnt() {
		s.BumpClauseActivity(c)
		c.setProtected()
	}
}

func (c *Clause) String() string {
	if len(c.literals) == 0 {
		return "Clause[]"
	}
	sb := strings.Builder{}
	sb.WriteString("Clause[")
	sb.WriteString(c.literals[0].String())
	for _, l := range c.literals[1:] {
		sb.WriteByte(' ')
		sb.WriteString(l.String())
	}
	sb.WriteByte(']')
	return sb.String()
}
