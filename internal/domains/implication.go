package domains

import "github.com/plaans/aries/internal/ids"

// implicationGraph is a directed structure over literals (L2): an edge
// lit -> imp means "lit entailed implies imp entailed". Edges are keyed by
// the signed var of the premise and carry the premise's bound, so that
// entailment of any literal on that signed var at least as tight as the
// edge's premise makes the edge's conclusion entailed too.
//
// Edges are inserted symmetrically: lit -> imp also yields ¬imp -> ¬lit.
type implicationGraph struct {
	// edges[sv] holds the outgoing edges whose premise is "sv<=bound" for
	// the edge's stored bound.
	edges [][]edge

	// seen is a per-call cache guarding against cycles between literals
	// degrading to non-terminating entailment checks.
	seen map[ids.Literal]struct{}
}

type edge struct {
	premiseBound int32
	conclusion   ids.Literal
}

func newImplicationGraph() *implicationGraph {
	return &implicationGraph{seen: make(map[ids.Literal]struct{})}
}

func (g *implicationGraph) expand() {
	g.edges = append(g.edges, nil, nil) // one bucket per signed var (+v, -v)
}

// add inserts lit -> imp and its contrapositive ¬imp -> ¬lit.
func (g *implicationGraph) add(lit, imp ids.Literal) {
	g.edges[lit.SVar] = append(g.edges[lit.SVar], edge{premiseBound: lit.Bound, conclusion: imp})
	nImp := imp.Negated()
	nLit := lit.Negated()
	g.edges[nImp.SVar] = append(g.edges[nImp.SVar], edge{premiseBound: nImp.Bound, conclusion: nLit})
}

// entails returns true if lit is implied by any literal directly entailed in
// d, following edges transitively.
func (g *implicationGraph) entails(lit ids.Literal, d *Domains) bool {
	for k := range g.seen {
		delete(g.seen, k)
	}
	return g.entailsRec(lit, d)
}

func (g *implicationGraph) entailsRec(lit ids.Literal, d *Domains) bool {
	if _, ok := g.seen[lit]; ok {
		return false
	}
	g.seen[lit] = struct{}{}

	// Implicants of lit are found through the contrapositive edges stored
	// under ¬lit: an edge "¬q -> ¬p" (from an implication p -> q) with ¬lit
	// at least as tight as ¬q means q is at least as tight as lit, so p
	// entailed makes lit entailed.
	nLit := lit.Negated()
	for _, e := range g.edges[nLit.SVar] {
		if nLit.Bound > e.premiseBound {
			continue
		}
		p := e.conclusion.Negated()
		if d.boundOf(p.SVar) <= p.Bound {
			return true
		}
		if g.entailsRec(p, d) {
			return true
		}
	}
	return false
}
