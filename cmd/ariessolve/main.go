// Command ariessolve is the CLI front-end: it loads a DIMACS CNF instance,
// solves it, and reports search statistics, with flag parsing, optional
// pprof profiling, and plain stats-printing.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/plaans/aries/config"
	"github.com/plaans/aries/internal/dimacs"
	"github.com/plaans/aries/model"
	"github.com/plaans/aries/solver"
)

var flagCPUProfile = flag.Bool(
	"cpuprof",
	false,
	"save pprof CPU profile in cpuprof",
)

var flagMemProfile = flag.Bool(
	"memprof",
	false,
	"save pprof memory profile in memprof",
)

type cliConfig struct {
	instanceFile string
	gzipped      bool
	memProfile   bool
	cpuProfile   bool
}

func parseConfig() (*cliConfig, error) {
	flag.Parse()

	if flag.NArg() == 0 || flag.Arg(0) == "" {
		return nil, fmt.Errorf("missing instance file")
	}
	instanceFile := flag.Arg(0)
	return &cliConfig{
		instanceFile: instanceFile,
		gzipped:      strings.HasSuffix(instanceFile, ".gz"),
		memProfile:   *flagMemProfile,
		cpuProfile:   *flagCPUProfile,
	}, nil
}

func statusString(s solver.Status) string {
	switch s {
	case solver.StatusSat:
		return "SAT"
	case solver.StatusUnsat:
		return "UNSAT"
	default:
		return "UNKNOWN"
	}
}

func run(cfg *cliConfig) error {
	cliCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}

	m := model.New()
	vars, err := dimacs.LoadFile(cfg.instanceFile, cfg.gzipped, m)
	if err != nil {
		return fmt.Errorf("could not parse instance: %w", err)
	}

	if cliCfg.PrintModel {
		fmt.Printf("c variables:  %d\n", len(vars))
		fmt.Printf("c clauses:    %d\n", m.Sat.NumConstraints())
	}

	sv, err := solver.New(m, cliCfg)
	if err != nil {
		return fmt.Errorf("could not build solver: %w", err)
	}

	fmt.Println("c ---------------------------------------------------------------------------")

	t := time.Now()
	status := sv.Solve(context.Background())
	elapsed := time.Since(t)

	fmt.Printf("c time (sec): %f\n", elapsed.Seconds())
	fmt.Printf("c status:     %s\n", statusString(status))

	return nil
}

func main() {
	cfg, err := parseConfig()
	if err != nil {
		log.Fatal(err)
	}

	if cfg.cpuProfile {
		f, err := os.Create("cpuprof")
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	if err := run(cfg); err != nil {
		log.Fatal(err)
	}

	if cfg.memProfile {
		f, err := os.Create("memprof")
		if err != nil {
			log.Fatal(err)
		}
		pprof.WriteHeapProfile(f)
		f.Close()
	}
}
