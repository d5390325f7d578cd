// Package sim drives one simulation through its lifecycle: initialize the
// stepper, advance it in equal segments while sampling the mean density at
// every segment boundary, then report the wall-clock time taken.
package sim

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/san-kum/dplsim/internal/dynamo"
	"github.com/san-kum/dplsim/internal/naming"
	"github.com/san-kum/dplsim/internal/progress"
	"github.com/san-kum/dplsim/internal/viz"
	"go.uber.org/zap"
)

type State int

const (
	Uninitialized State = iota
	Initialized
	Running
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initialized:
		return "initialized"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Snapshot is the full density grid at one segment boundary.
type Snapshot struct {
	T       float64
	Density []float64
}

// Result is what Exec hands back: read-only copies of the series plus the
// formatted computation time.
type Result struct {
	TEpochs         []float64
	MeanDensities   []float64
	ComputationTime string
}

// Run owns one stepper and the time series it produces. A Run is not safe
// for concurrent use.
type Run struct {
	stepper dynamo.Stepper
	info    dynamo.Info

	snapshotGrid bool
	progress     progress.Reporter
	logger       *zap.Logger
	now          func() time.Time

	state     State
	series    dynamo.TimeSeries
	snapshots []Snapshot
	graphs    *viz.Viz
}

type Option func(*Run)

// WithName fixes the run name and uses the path in info.Misc.Path verbatim
// instead of appending the directory form.
func WithName(name string) Option {
	return func(r *Run) { r.info.Misc.Name = name }
}

// WithSnapshotGrid copies the density grid at every segment boundary.
func WithSnapshotGrid(on bool) Option {
	return func(r *Run) { r.snapshotGrid = on }
}

func WithProgress(p progress.Reporter) Option {
	return func(r *Run) { r.progress = p }
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Run) { r.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(r *Run) { r.now = now }
}

// New prepares a run of stepper over a private copy of info. The analysis
// record gains the universality-class constants, and the misc record gains
// the run name, its path, the engine version and a timestamp.
func New(stepper dynamo.Stepper, info dynamo.Info, opts ...Option) *Run {
	r := &Run{
		stepper:  stepper,
		info:     info.Clone(),
		progress: progress.Disabled{},
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	r.info.Misc.Name = ""
	for _, opt := range opts {
		opt(r)
	}

	if r.info.Analysis == nil {
		r.info.Analysis = dynamo.Analysis{}
	}
	r.info.Analysis.WithExponents()

	p := r.info.Parameters
	if r.info.Misc.Name == "" {
		r.info.Misc.Name = naming.FullName(p)
		r.info.Misc.Path = append(r.info.Misc.Path, naming.DirName(p))
	}
	r.info.Misc.EngineVersion = stepper.Version()
	r.info.Misc.DateTime = r.now().Format(time.DateTime)
	return r
}

func (r *Run) State() State { return r.state }

// Info returns a copy of the run's records.
func (r *Run) Info() dynamo.Info { return r.info.Clone() }

// Series returns a copy of the sampled time series. It is empty until the
// run completes.
func (r *Run) Series() dynamo.TimeSeries { return r.series.Clone() }

func (r *Run) Snapshots() []Snapshot { return slices.Clone(r.snapshots) }

// Viz returns the figures made by Plot, or nil.
func (r *Run) Viz() *viz.Viz { return r.graphs }

func (r *Run) fail(op string, segment int, err error) error {
	r.state = Failed
	return &dynamo.RunError{Op: op, Segment: segment, Wrapped: err}
}

// Initialize validates the parameters and prepares the stepper. On success
// the epoch count is recorded in the misc record. A stepper that cannot
// initialize moves the run to Failed; invalid parameters leave it
// Uninitialized.
func (r *Run) Initialize(ctx context.Context) error {
	if r.state != Uninitialized {
		return &dynamo.RunError{Op: "initialize", Segment: -1,
			Wrapped: fmt.Errorf("%w: run is %s", dynamo.ErrLifecycle, r.state)}
	}
	if err := ctx.Err(); err != nil {
		return &dynamo.RunError{Op: "initialize", Segment: -1, Wrapped: err}
	}
	if err := r.info.Parameters.Validate(); err != nil {
		return &dynamo.RunError{Op: "initialize", Segment: -1, Wrapped: err}
	}
	if !r.stepper.Initialize(r.info.Misc.NRoundDt) {
		return r.fail("initialize", -1, dynamo.Enginef("stepper %s failed to initialize", r.stepper.Version()))
	}

	r.info.Misc.NEpochs = r.stepper.NEpochs()
	r.state = Initialized
	r.logger.Debug("run initialized",
		zap.String("name", r.info.Misc.Name),
		zap.Int("n_epochs", r.info.Misc.NEpochs))
	return nil
}

// SegmentEpochs returns the number of epochs per segment, or a configuration
// error unless nSegments divides the non-initial epochs exactly.
func SegmentEpochs(nEpochs, nSegments int) (int, error) {
	if nSegments <= 0 {
		return 0, dynamo.Configf("segment count must be positive, got %d", nSegments)
	}
	if nEpochs <= 1 {
		return 0, dynamo.Configf("%d epoch(s) leave nothing to segment", nEpochs)
	}
	per := (nEpochs - 1) / nSegments
	if per*nSegments+1 != nEpochs {
		return 0, dynamo.Configf("cannot segment %d epochs into %d segment(s)", nEpochs, nSegments)
	}
	return per, nil
}

// Run advances the stepper in nSegments equal chunks. Chunk zero only
// post-processes the initial state. The mean density is sampled after every
// chunk, so the series ends up with nSegments+1 samples.
//
// The context is checked at segment boundaries only. A configuration error
// leaves the run Initialized with its series untouched; any later failure
// moves it to Failed.
func (r *Run) Run(ctx context.Context, nSegments int) error {
	if r.state != Initialized {
		return &dynamo.RunError{Op: "run", Segment: -1,
			Wrapped: fmt.Errorf("%w: run is %s", dynamo.ErrLifecycle, r.state)}
	}
	per, err := SegmentEpochs(r.info.Misc.NEpochs, nSegments)
	if err != nil {
		return &dynamo.RunError{Op: "run", Segment: -1, Wrapped: err}
	}

	r.state = Running
	series := dynamo.NewTimeSeries(nSegments + 1)
	var snapshots []Snapshot

	r.progress.Start(nSegments+1, r.info.Misc.Name)
	defer r.progress.Finish()

	for i := 0; i <= nSegments; i++ {
		if err := ctx.Err(); err != nil {
			return r.fail("run", i, err)
		}
		if i > 0 && !r.stepper.Run(per) {
			return r.fail("run", i, dynamo.Enginef("stepper failed to advance %d epochs", per))
		}
		if !r.stepper.Postprocess() {
			return r.fail("postprocess", i, dynamo.Enginef("stepper failed to postprocess"))
		}

		t := r.stepper.TCurrentEpoch()
		means := r.stepper.MeanDensities()
		if len(means) == 0 {
			return r.fail("postprocess", i, dynamo.Enginef("stepper reported no mean densities"))
		}
		if err := series.Append(t, means[len(means)-1]); err != nil {
			return r.fail("postprocess", i, dynamo.Enginef("%v", err))
		}
		if r.snapshotGrid {
			snapshots = append(snapshots, Snapshot{T: t, Density: slices.Clone(r.stepper.Density())})
		}

		r.progress.Advance()
		r.logger.Debug("segment done",
			zap.String("name", r.info.Misc.Name),
			zap.Int("segment", i),
			zap.Float64("t", t))
	}

	r.series = series
	r.snapshots = snapshots
	r.info.Misc.NSegments = nSegments
	r.state = Completed
	return nil
}

// RunWrapper runs with the misc record's segment count and records the
// elapsed wall-clock time. It returns a printable report.
func (r *Run) RunWrapper(ctx context.Context) (string, error) {
	tick := r.now()
	if err := r.Run(ctx, r.info.Misc.NSegments); err != nil {
		return "", err
	}
	r.info.Misc.ComputationTime = FormatDuration(r.now().Sub(tick))
	return "Computation time = " + r.info.Misc.ComputationTime, nil
}

// Exec initializes and runs to completion.
func (r *Run) Exec(ctx context.Context) (Result, error) {
	if err := r.Initialize(ctx); err != nil {
		return Result{}, err
	}
	report, err := r.RunWrapper(ctx)
	if err != nil {
		return Result{}, err
	}
	r.logger.Info(report, zap.String("name", r.info.Misc.Name))

	return Result{
		TEpochs:         slices.Clone(r.series.TEpochs),
		MeanDensities:   slices.Clone(r.series.MeanDensities),
		ComputationTime: r.info.Misc.ComputationTime,
	}, nil
}

// Plot draws the log-log and rescaled density decay, plus the last grid
// snapshot when snapshots were taken.
func (r *Run) Plot() error {
	if r.state != Completed {
		return fmt.Errorf("%w: cannot plot a %s run", dynamo.ErrLifecycle, r.state)
	}
	g := viz.New()
	nd := r.info.Misc.NDigits
	g.PlotMeanDensityEvolution("rho_t_loglog", r.info, r.series, viz.PlotOptions{YScale: 0.75, NDigits: nd})
	g.PlotMeanDensityEvolution("rho_t_rescaled", r.info, r.series, viz.PlotOptions{Rescale: true, NDigits: nd})
	if n := len(r.snapshots); n > 0 {
		last := r.snapshots[n-1]
		g.PlotDensityImage("rho_grid", r.info, last.T, last.Density)
	}
	r.graphs = g
	return nil
}
