package main

import (
	"bytes"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"offspir/internal/ir"
	"offspir/internal/pipeline"
)

var (
	runDiscipline string
	runConfig     string
	runOutSuffix  string
	runDump       bool
	runJobs       int
	runReqdWGS    bool
	runInline     bool
	runGlobalDCE  bool
)

func init() {
	runCmd.Flags().StringVar(&runDiscipline, "discipline", "", "marshalling discipline (inside|outside)")
	runCmd.Flags().StringVar(&runConfig, "config", "", "TOML run manifest; flags override it")
	runCmd.Flags().StringVar(&runOutSuffix, "out-suffix", ".spir", "suffix appended to each output snapshot path")
	runCmd.Flags().BoolVar(&runDump, "dump", false, "print the transformed module to stdout")
	runCmd.Flags().IntVar(&runJobs, "jobs", runtime.NumCPU(), "snapshots processed in parallel")
	runCmd.Flags().BoolVar(&runReqdWGS, "reqd-work-group-size", false, "stamp kernels with a 1x1x1 launch geometry")
	runCmd.Flags().BoolVar(&runInline, "inline-hints", false, "mark kernel helpers always-inline")
	runCmd.Flags().BoolVar(&runGlobalDCE, "global-dce", false, "strip unreferenced internal objects")
}

var runCmd = &cobra.Command{
	Use:   "run <snapshot>...",
	Short: "Run the offload pipeline over module snapshots",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := collectRunOptions()
		if err != nil {
			return err
		}
		timings, err := cmd.Flags().GetBool("timings")
		if err != nil {
			return err
		}

		// Snapshots are independent modules; each run owns its module,
		// registry and reachable set, so files transform in parallel.
		var outMu sync.Mutex
		g := new(errgroup.Group)
		g.SetLimit(max(runJobs, 1))
		for _, path := range args {
			path := path
			g.Go(func() error {
				run, err := transformSnapshot(path, opts)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				outMu.Lock()
				defer outMu.Unlock()
				if timings {
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s", path, run.Timer.Summary())
				}
				if runDump {
					return ir.DumpModule(cmd.OutOrStdout(), run.Module, ir.DumpOptions{})
				}
				return nil
			})
		}
		return g.Wait()
	},
}

func collectRunOptions() (pipeline.Options, error) {
	var opts pipeline.Options
	if runConfig != "" {
		loaded, err := pipeline.LoadManifest(runConfig)
		if err != nil {
			return opts, err
		}
		opts = loaded
	}
	if runDiscipline != "" {
		opts.Discipline = runDiscipline
	}
	if runReqdWGS {
		opts.ReqdWorkGroupSize = true
	}
	if runInline {
		opts.InlineHints = true
	}
	if runGlobalDCE {
		opts.GlobalDCE = true
	}
	return opts, nil
}

// transformSnapshot decodes one snapshot, executes the pipeline over it
// and writes the result next to the input.
func transformSnapshot(path string, opts pipeline.Options) (*pipeline.Run, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := ir.DecodeModule(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	run, err := pipeline.Execute(m, opts)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := ir.EncodeModule(&buf, m); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	if err := os.WriteFile(path+runOutSuffix, buf.Bytes(), 0o644); err != nil {
		return nil, err
	}
	return run, nil
}
