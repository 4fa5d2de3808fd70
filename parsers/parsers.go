// Package parsers reads the golden model files used by scenario tests
// (internal/dimacs handles loading the instance itself): each line lists the
// literals of one satisfying assignment, in the same format DIMACS model
// checkers such as MiniSat's verify output use.
package parsers

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"

	"github.com/rhartert/dimacs"
)

func reader(filename string, gzipped bool) (io.ReadCloser, error) {
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

// ReadModels returns the list of models (if any) contained in the given file.
func ReadModels(filename string) ([][]bool, error) {
	r, err := reader(filename, false)
	if err != nil {
		return nil, fmt.Errorf("error reading file %q: %s", filename, err)
	}
	defer r.Close()

	b := &modelBuilder{}
	if err := dimacs.ReadBuilder(r, b); err != nil {
		return nil, err
	}

	return b.models, nil
}

// modelBuilder implements dimacs.Builder, collecting one []bool per clause
// line (a model file has no problem line and no real clauses, only the
// literal lists that ReadBuilder tokenizes the same way).
type modelBuilder struct {
	models [][]bool
}

func (b *modelBuilder) Problem(problem string, nVars int, nClauses int) error {
	return fmt.Errorf("model files should not have problem lines")
}

func (b *modelBuilder) Comment(_ string) error {
	return nil // ignore comments
}

func (b *modelBuilder) Clause(tmpClause []int) error {
	model := make([]bool, len(tmpClause))
	for i, l := range tmpClause {
		model[i] = l > 0
	}
	b.models = append(b.models, model)
	return nil
}
