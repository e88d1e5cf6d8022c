// Package pipeline sequences the offload passes over one module. Stages
// run strictly one after another; the module, registry and reachable set
// are shared mutable state and only one stage touches them at a time.
package pipeline

import (
	"fmt"

	"offspir/internal/ir"
	"offspir/internal/kernel"
	"offspir/internal/observ"
	"offspir/internal/passes"
)

// Marshalling disciplines.
const (
	// DisciplineInside rewrites kernel bodies into serialization shells.
	DisciplineInside = "inside"
	// DisciplineOutside rewrites kernel call sites, consuming task markers.
	DisciplineOutside = "outside"
)

// Options selects the stages of a run.
type Options struct {
	// Discipline picks the marshalling shape; defaults to inside.
	Discipline string
	// ReqdWorkGroupSize stamps kernels with a 1x1x1 launch geometry.
	ReqdWorkGroupSize bool
	// InlineHints marks kernel helpers always-inline.
	InlineHints bool
	// GlobalDCE strips unreferenced internal objects after lowering.
	GlobalDCE bool
}

// Run carries the shared state of one pipeline execution. The registry
// lives exactly as long as the run; stages rely on its IDs staying
// consistent from partitioning through lowering.
type Run struct {
	Module    *ir.Module
	Matcher   *kernel.Matcher
	Registry  *kernel.Registry
	Reachable *passes.ReachableSet
	Opts      Options
	Timer     *observ.Timer
}

// Stage is one named pipeline step. It mutates the run's module in place
// and reports whether anything changed.
type Stage struct {
	Name string
	Run  func(*Run) (bool, error)
}

// NewRun prepares a run over m with fresh shared state.
func NewRun(m *ir.Module, opts Options) *Run {
	if opts.Discipline == "" {
		opts.Discipline = DisciplineInside
	}
	return &Run{
		Module:    m,
		Matcher:   kernel.NewMatcher(nil),
		Registry:  kernel.NewRegistry(),
		Reachable: passes.NewReachableSet(),
		Opts:      opts,
		Timer:     observ.NewTimer(),
	}
}

// Stages returns the stage sequence the run's options select.
func (r *Run) Stages() ([]Stage, error) {
	var marshal Stage
	switch r.Opts.Discipline {
	case DisciplineInside:
		marshal = Stage{"marshal-inside", func(r *Run) (bool, error) {
			return passes.SerializeKernelArgsInside(r.Module, r.Matcher, r.Registry)
		}}
	case DisciplineOutside:
		marshal = Stage{"marshal-outside", func(r *Run) (bool, error) {
			return passes.SerializeKernelArgsOutside(r.Module, r.Matcher, r.Registry)
		}}
	default:
		return nil, fmt.Errorf("unknown marshalling discipline %q", r.Opts.Discipline)
	}

	stages := []Stage{
		{"reachability", func(r *Run) (bool, error) {
			r.Reachable = passes.ComputeReachable(r.Module, r.Matcher)
			return false, nil
		}},
		{"partition", func(r *Run) (bool, error) {
			return passes.PartitionVisibility(r.Module, r.Matcher, r.Registry), nil
		}},
		{"sanitize", func(r *Run) (bool, error) {
			return passes.SanitizeNames(r.Module, r.Matcher, r.Registry, r.Reachable), nil
		}},
		marshal,
	}
	if r.Opts.InlineHints {
		stages = append(stages, Stage{"inline-hints", func(r *Run) (bool, error) {
			return passes.HintInlineIntoKernels(r.Module, r.Matcher, r.Reachable), nil
		}})
	}
	stages = append(stages, Stage{"lower-spir", func(r *Run) (bool, error) {
		opts := passes.LowerOptions{ReqdWorkGroupSize: r.Opts.ReqdWorkGroupSize}
		return passes.LowerToSPIR(r.Module, r.Matcher, r.Reachable, opts), nil
	}})
	if r.Opts.GlobalDCE {
		stages = append(stages, Stage{"global-dce", func(r *Run) (bool, error) {
			return passes.EliminateDeadGlobals(r.Module), nil
		}})
	}
	stages = append(stages, Stage{"verify", func(r *Run) (bool, error) {
		return false, ir.Validate(r.Module)
	}})
	return stages, nil
}

// Execute runs every stage in sequence. A failing stage aborts the run;
// the module may be partially transformed and must be discarded.
func (r *Run) Execute() error {
	stages, err := r.Stages()
	if err != nil {
		return err
	}
	for _, stage := range stages {
		idx := r.Timer.Begin(stage.Name)
		changed, err := stage.Run(r)
		note := ""
		if changed {
			note = "changed"
		}
		r.Timer.End(idx, note)
		if err != nil {
			return fmt.Errorf("stage %s: %w", stage.Name, err)
		}
	}
	return nil
}

// Execute transforms m under opts and returns the finished run.
func Execute(m *ir.Module, opts Options) (*Run, error) {
	r := NewRun(m, opts)
	if err := r.Execute(); err != nil {
		return r, err
	}
	return r, nil
}
