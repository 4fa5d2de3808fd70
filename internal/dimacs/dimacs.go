// Package dimacs is the CNF front-end (used by the CLI and by SAT-only
// scenario tests): it streams a DIMACS CNF file through the third-party
// github.com/rhartert/dimacs reader directly into a model.Model, allocating
// one model.BoolVar per DIMACS variable.
package dimacs

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"

	rdimacs "github.com/rhartert/dimacs"

	"github.com/plaans/aries/internal/ids"
	"github.com/plaans/aries/model"
)

func openReader(filename string, gzipped bool) (io.ReadCloser, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	rc := io.ReadCloser(file)
	if gzipped {
		rc, err = gzip.NewReader(rc)
		if err != nil {
			return nil, err
		}
	}
	return rc, nil
}

// LoadFile parses the DIMACS CNF file at filename (optionally gzip
// compressed) into m, returning one model.BoolVar per DIMACS variable
// (vars[0] corresponds to DIMACS variable 1).
func LoadFile(filename string, gzipped bool, m *model.Model) ([]model.BoolVar, error) {
	r, err := openReader(filename, gzipped)
	if err != nil {
		return nil, fmt.Errorf("error reading file %q: %w", filename, err)
	}
	defer r.Close()
	return Load(r, m)
}

// Load parses a DIMACS CNF stream into m.
func Load(r io.Reader, m *model.Model) ([]model.BoolVar, error) {
	b := &builder{m: m}
	if err := rdimacs.ReadBuilder(r, b); err != nil {
		return b.vars, err
	}
	return b.vars, nil
}

// builder adapts model.Model to the rdimacs.Builder interface expected by
// rdimacs.ReadBuilder.
type builder struct {
	m    *model.Model
	vars []model.BoolVar
}

func (b *builder) Problem(problem string, nVars int, nClauses int) error {
	if problem != "cnf" {
		return fmt.Errorf("dimacs: instance of type %q are not supported", problem)
	}
	b.vars = make([]model.BoolVar, 0, nVars)
	for i := 0; i < nVars; i++ {
		b.vars = append(b.vars, b.m.NewBoolVar())
	}
	return nil
}

func (b *builder) Clause(tmpClause []int) error {
	lits := make([]ids.Literal, len(tmpClause))
	for i, l := range tmpClause {
		switch {
		case l < 0:
			if -l > len(b.vars) {
				return fmt.Errorf("dimacs: literal %d exceeds declared variable count %d", l, len(b.vars))
			}
			lits[i] = b.vars[-l-1].Not()
		case l > 0:
			if l > len(b.vars) {
				return fmt.Errorf("dimacs: literal %d exceeds declared variable count %d", l, len(b.vars))
			}
			lits[i] = b.vars[l-1].Lit()
		default:
			return fmt.Errorf("dimacs: literal 0 inside clause")
		}
	}
	return b.m.AddClause(lits...)
}

func (b *builder) Comment(_ string) error {
	return nil // ignore comments
}
