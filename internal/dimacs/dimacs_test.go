package dimacs

import (
	"bytes"
	"compress/gzip"
	"os"
	"strings"
	"testing"

	"github.com/plaans/aries/model"
)

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}

const testCNF = `c a trivial instance
p cnf 6 8
1 3 5
1 3 6
1 4 5
2 3 5
2 4 5
2 3 6
1 4 6
2 4 6
`

func TestLoad(t *testing.T) {
	m := model.New()
	vars, err := Load(strings.NewReader(testCNF), m)
	if err != nil {
		t.Fatalf("Load(): %v", err)
	}
	if len(vars) != 6 {
		t.Errorf("len(vars) = %d, want 6", len(vars))
	}
	if got := m.Sat.NumConstraints(); got != 8 {
		t.Errorf("NumConstraints() = %d, want 8", got)
	}
}

func TestLoadFileGzip(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/test_instance.cnf.gz"

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write([]byte(testCNF)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	if err := writeFile(path, buf.Bytes()); err != nil {
		t.Fatalf("writeFile: %v", err)
	}

	m := model.New()
	vars, err := LoadFile(path, true, m)
	if err != nil {
		t.Fatalf("LoadFile(): %v", err)
	}
	if len(vars) != 6 {
		t.Errorf("len(vars) = %d, want 6", len(vars))
	}
}

func TestLoadFile_noFile(t *testing.T) {
	m := model.New()
	if _, err := LoadFile("", false, m); err == nil {
		t.Errorf("LoadFile(): want error, got none")
	}
}

func TestLoadFile_gzip_notGzipFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/test_instance.cnf"
	if err := writeFile(path, []byte(testCNF)); err != nil {
		t.Fatalf("writeFile: %v", err)
	}

	m := model.New()
	if _, err := LoadFile(path, true, m); err == nil {
		t.Errorf("LoadFile(): want error, got none")
	}
}
