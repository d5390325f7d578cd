package sim

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/san-kum/dplsim/internal/dynamo"
	"github.com/san-kum/dplsim/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scenarioInfo() dynamo.Info {
	return dynamo.Info{
		Parameters: dynamo.Parameters{
			Linear:             1.1895,
			Quadratic:          1.0,
			Diffusion:          0.04,
			Noise:              1.0,
			TFinal:             2.5,
			Dx:                 1,
			Dt:                 0.1,
			RandomSeed:         1,
			GridDimension:      dynamo.D2,
			GridSize:           []int{10, 5},
			GridTopologies:     []dynamo.GridTopology{dynamo.Periodic, dynamo.Periodic},
			BoundaryConditions: []dynamo.BoundaryCondition{dynamo.Floating, dynamo.Floating, dynamo.Floating, dynamo.Floating},
			BCValues:           []float64{0, 0, 0, 0},
			InitialCondition:   dynamo.RandomUniform,
			ICValues:           []float64{0, 1},
			IntegrationMethod:  dynamo.RungeKutta,
		},
		Analysis: dynamo.Analysis{dynamo.KeyAC: 1.8857},
		Misc: dynamo.Misc{
			Path:      []string{"group"},
			NRoundDt:  6,
			NSegments: 5,
		},
	}
}

// stepClock advances by step on every call.
func stepClock(step time.Duration) func() time.Time {
	t := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(step)
		return t
	}
}

type countingReporter struct {
	total, advanced, finished int
}

func (c *countingReporter) Start(total int, _ string) { c.total = total }
func (c *countingReporter) Advance()                  { c.advanced++ }
func (c *countingReporter) Finish()                   { c.finished++ }

func TestNewDerivesIdentity(t *testing.T) {
	r := New(&engine.Fake{Epochs: 26}, scenarioInfo(), WithClock(stepClock(0)))
	info := r.Info()

	assert.Equal(t, []string{"group", "a1p18950"}, info.Misc.Path)
	assert.Regexp(t, `^a1p18950_b1p0_D0p04_eta1p0_x10_y5_dx1p0_dt0p1_h[0-9a-f]{12}$`, info.Misc.Name)
	assert.Equal(t, engine.FakeVersion, info.Misc.EngineVersion)
	assert.Equal(t, "2026-10-17 09:00:00", info.Misc.DateTime)
	assert.Equal(t, 1.8857, info.Analysis[dynamo.KeyAC])
	assert.Equal(t, 0.4505, info.Analysis[dynamo.KeyDelta])
	assert.Equal(t, Uninitialized, r.State())

	named := New(&engine.Fake{Epochs: 26}, scenarioInfo(), WithName("custom"))
	assert.Equal(t, "custom", named.Info().Misc.Name)
	assert.Equal(t, []string{"group"}, named.Info().Misc.Path)
}

func TestNewDoesNotAliasCallerInfo(t *testing.T) {
	info := scenarioInfo()
	r := New(&engine.Fake{Epochs: 26}, info)
	require.NoError(t, r.Initialize(context.Background()))

	assert.Equal(t, []string{"group"}, info.Misc.Path)
	assert.Len(t, info.Analysis, 1)
	assert.Zero(t, info.Misc.NEpochs)
}

func TestRunScenario(t *testing.T) {
	tests := []struct {
		name    string
		epochs  int
		wantErr error
		wantLen int
	}{
		{"divisible", 26, nil, 6},
		{"not divisible", 25, dynamo.ErrConfiguration, 0},
		{"single epoch", 1, dynamo.ErrConfiguration, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(&engine.Fake{Epochs: tt.epochs}, scenarioInfo())
			require.NoError(t, r.Initialize(context.Background()))

			err := r.Run(context.Background(), 5)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, Initialized, r.State(), "configuration error must not move the run")
				assert.Zero(t, r.Series().Len())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, Completed, r.State())

			series := r.Series()
			require.Equal(t, tt.wantLen, series.Len())
			require.NoError(t, series.Validate())
			assert.InDeltaSlice(t, []float64{0, 0.5, 1, 1.5, 2, 2.5}, series.TEpochs, 1e-9)
			assert.InDelta(t, 1/(1+2.5), series.MeanDensities[5], 1e-12)
		})
	}
}

func TestRunWithMeanField(t *testing.T) {
	info := scenarioInfo()
	r := New(engine.NewMeanField(info.Parameters), info, WithSnapshotGrid(true))

	res, err := r.Exec(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 26, r.Info().Misc.NEpochs)
	assert.Len(t, res.TEpochs, 6)
	assert.Len(t, res.MeanDensities, 6)
	assert.InDelta(t, 2.5, res.TEpochs[5], 1e-12)

	snaps := r.Snapshots()
	require.Len(t, snaps, 6)
	assert.Len(t, snaps[0].Density, 50)
	assert.Equal(t, res.TEpochs[3], snaps[3].T)
}

func TestRunProgress(t *testing.T) {
	rep := &countingReporter{}
	r := New(&engine.Fake{Epochs: 26}, scenarioInfo(), WithProgress(rep))
	require.NoError(t, r.Initialize(context.Background()))
	require.NoError(t, r.Run(context.Background(), 5))

	assert.Equal(t, 6, rep.total)
	assert.Equal(t, 6, rep.advanced)
	assert.Equal(t, 1, rep.finished)
}

func TestEngineFailures(t *testing.T) {
	tests := []struct {
		name    string
		fake    *engine.Fake
		op      string
		segment int
	}{
		{"run in segment 3", &engine.Fake{Epochs: 26, FailOn: "run", FailAfter: 2}, "run", 3},
		{"postprocess of chunk zero", &engine.Fake{Epochs: 26, FailOn: "postprocess"}, "postprocess", 0},
		{"postprocess of segment 4", &engine.Fake{Epochs: 26, FailOn: "postprocess", FailAfter: 4}, "postprocess", 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(tt.fake, scenarioInfo())
			require.NoError(t, r.Initialize(context.Background()))

			err := r.Run(context.Background(), 5)
			require.ErrorIs(t, err, dynamo.ErrEngineFailure)

			var runErr *dynamo.RunError
			require.True(t, errors.As(err, &runErr))
			assert.Equal(t, tt.op, runErr.Op)
			assert.Equal(t, tt.segment, runErr.Segment)
			assert.Equal(t, Failed, r.State())
			assert.Zero(t, r.Series().Len())
		})
	}
}

func TestInitializeFailures(t *testing.T) {
	r := New(&engine.Fake{Epochs: 26, FailOn: "initialize"}, scenarioInfo())
	err := r.Initialize(context.Background())
	assert.ErrorIs(t, err, dynamo.ErrEngineFailure)
	assert.Equal(t, Failed, r.State())
	assert.ErrorIs(t, r.Initialize(context.Background()), dynamo.ErrLifecycle)
	assert.ErrorIs(t, r.Run(context.Background(), 5), dynamo.ErrLifecycle)

	bad := scenarioInfo()
	bad.Parameters.Dt = 0
	r = New(&engine.Fake{Epochs: 26}, bad)
	assert.ErrorIs(t, r.Initialize(context.Background()), dynamo.ErrConfiguration)
	assert.Equal(t, Uninitialized, r.State())
}

func TestLifecycle(t *testing.T) {
	r := New(&engine.Fake{Epochs: 26}, scenarioInfo())
	assert.ErrorIs(t, r.Run(context.Background(), 5), dynamo.ErrLifecycle)
	assert.ErrorIs(t, r.Plot(), dynamo.ErrLifecycle)

	require.NoError(t, r.Initialize(context.Background()))
	assert.ErrorIs(t, r.Initialize(context.Background()), dynamo.ErrLifecycle)

	require.NoError(t, r.Run(context.Background(), 5))
	assert.ErrorIs(t, r.Run(context.Background(), 5), dynamo.ErrLifecycle)
}

func TestCancelAtSegmentBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fake := &engine.Fake{Epochs: 26}
	fake.Rho = func(t float64) float64 {
		if t >= 1 {
			cancel()
		}
		return 1
	}

	r := New(fake, scenarioInfo())
	require.NoError(t, r.Initialize(ctx))
	err := r.Run(ctx, 5)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Failed, r.State())
	// Segment 2 reached t=1 and finished; the check before segment 3 stops.
	assert.Equal(t, 10, fake.Steps())
}

func TestRunWrapperTiming(t *testing.T) {
	r := New(&engine.Fake{Epochs: 26}, scenarioInfo(), WithClock(stepClock(3*time.Second)))
	require.NoError(t, r.Initialize(context.Background()))

	report, err := r.RunWrapper(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Computation time = 0:00:03", report)
	assert.Equal(t, "0:00:03", r.Info().Misc.ComputationTime)
}

func TestExecRejectsBadSegmentCount(t *testing.T) {
	info := scenarioInfo()
	info.Misc.NSegments = 7
	r := New(&engine.Fake{Epochs: 26}, info)

	_, err := r.Exec(context.Background())
	assert.ErrorIs(t, err, dynamo.ErrConfiguration)
	assert.Equal(t, Initialized, r.State())
}

func TestPlot(t *testing.T) {
	r := New(&engine.Fake{Epochs: 26, Cells: 50}, scenarioInfo(), WithSnapshotGrid(true))
	_, err := r.Exec(context.Background())
	require.NoError(t, err)
	require.NoError(t, r.Plot())

	var names []string
	for _, f := range r.Viz().Figures() {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"rho_t_loglog", "rho_t_rescaled", "rho_grid"}, names)
}

func TestSegmentEpochs(t *testing.T) {
	tests := []struct {
		epochs, segments, want int
		ok                     bool
	}{
		{26, 5, 5, true},
		{26, 1, 25, true},
		{26, 25, 1, true},
		{25, 5, 0, false},
		{26, 0, 0, false},
		{26, -1, 0, false},
		{1, 1, 0, false},
		{2001, 8, 250, true},
	}
	for _, tt := range tests {
		got, err := SegmentEpochs(tt.epochs, tt.segments)
		if tt.ok {
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		} else {
			assert.ErrorIs(t, err, dynamo.ErrConfiguration, "%d/%d", tt.epochs, tt.segments)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0:00:00"},
		{2500 * time.Millisecond, "0:00:02"},
		{3500 * time.Millisecond, "0:00:04"},
		{3*time.Second + 400*time.Millisecond, "0:00:03"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1:02:03"},
		{26*time.Hour + 3*time.Minute + 4*time.Second, "1 day, 2:03:04"},
		{50 * time.Hour, "2 days, 2:00:00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.in), "%v", tt.in)
	}
}
