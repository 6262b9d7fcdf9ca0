package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/standardbeagle/trigrep/internal/debug"

	"github.com/urfave/cli/v2"
)

func profileFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:   "cpu-profile",
			Usage:  "Write CPU profile to file",
			Hidden: true,
		},
		&cli.StringFlag{
			Name:   "mem-profile",
			Usage:  "Write memory profile to file",
			Hidden: true,
		},
		&cli.BoolFlag{
			Name:   "debug-log",
			Usage:  "Trace to a new log file under the temp dir",
			Hidden: true,
		},
	}
}

// setupDebugLog redirects tracing to a fresh log file when --debug-log is
// set and prints its path. The returned func closes the file.
func setupDebugLog(c *cli.Context) (func() error, error) {
	if !c.Bool("debug-log") {
		return func() error { return nil }, nil
	}
	path, err := debug.InitDebugLogFile()
	if err != nil {
		return nil, err
	}
	debug.SetVerbose(true)
	fmt.Fprintf(c.App.ErrWriter, "Debug log: %s\n", path)
	return func() error {
		debug.SetVerbose(false)
		return debug.CloseDebugLog()
	}, nil
}

// startProfiling starts CPU profiling when --cpu-profile is set. The returned
// func stops it and writes the heap profile when --mem-profile is set.
func startProfiling(c *cli.Context) (func() error, error) {
	stopCPU := func() {}
	if path := c.String("cpu-profile"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create CPU profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to start CPU profile: %w", err)
		}
		stopCPU = func() {
			pprof.StopCPUProfile()
			f.Close()
			debug.Printf("CPU profile written to %s\n", path)
		}
	}

	return func() error {
		stopCPU()
		return writeMemProfile(c.String("mem-profile"))
	}, nil
}

func writeMemProfile(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create memory profile: %w", err)
	}
	defer f.Close()

	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("failed to write memory profile: %w", err)
	}
	debug.Printf("Memory profile written to %s\n", path)
	return nil
}
