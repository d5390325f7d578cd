// Package ensemble sweeps the linear coefficient around its critical value,
// running one simulation per value on a bounded worker pool.
//
// Members share nothing mutable: each owns a private copy of the records,
// its own stepper and its own figures. A failing member is reported and its
// siblings carry on.
package ensemble

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"

	"github.com/google/uuid"
	"github.com/san-kum/dplsim/internal/codec"
	"github.com/san-kum/dplsim/internal/dynamo"
	"github.com/san-kum/dplsim/internal/engine"
	"github.com/san-kum/dplsim/internal/experiment"
	"github.com/san-kum/dplsim/internal/naming"
	"github.com/san-kum/dplsim/internal/sim"
	"github.com/san-kum/dplsim/internal/storage"
	"github.com/san-kum/dplsim/internal/viz"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ComboBundle is the group data file holding every member's densities.
const ComboBundle = "combo_rho_t.npz"

// Parameters the sweep varies per member. The group document lists them as
// "<key>_list" instead of holding a single value.
var listedKeys = []string{
	codec.KeyLinear, codec.KeyQuadratic, codec.KeyDiffusion, codec.KeyNoise, codec.KeyRandomSeed,
}

// LinearValues spreads nSims values of the linear coefficient around ac:
// nSims/2 below it, the rest from ac upward, in steps of daRange/(nSims/2)
// rounded to nDigits. Negative values are dropped and the result is in
// descending order. Fewer than nSims values left is a configuration error.
func LinearValues(ac, daRange float64, nSims, nDigits int) ([]float64, error) {
	if nSims <= 0 {
		return nil, dynamo.Configf("n_sims must be positive, got %d", nSims)
	}
	nSub := nSims / 2
	nSup := nSims - nSub
	da := 0.0
	if nSub > 0 {
		da = daRange / float64(nSub)
	}

	var values []float64
	for i := nSub; i > 0; i-- {
		values = append(values, engine.Round(ac-da*float64(i), nDigits))
	}
	for i := 0; i < nSup; i++ {
		values = append(values, engine.Round(ac+da*float64(i), nDigits))
	}
	values = slices.DeleteFunc(values, func(a float64) bool { return a < 0 })
	slices.Reverse(values)

	if len(values) != nSims {
		return nil, dynamo.Configf("only %d of %d linear values are non-negative (a_c=%g, da_range=%g)",
			len(values), nSims, ac, daRange)
	}
	return values, nil
}

type member struct {
	info   dynamo.Info
	exp    *experiment.Experiment
	result sim.Result
	err    error
	done   bool
}

func (m *member) run() *sim.Run { return m.exp.GetRun() }

type Ensemble struct {
	info     dynamo.Info
	members  []*member
	registry *experiment.Registry
	engine   string
	store    *storage.Store
	logger   *zap.Logger
	graphs   *viz.Viz
	created  bool
}

type Option func(*Ensemble)

func WithRegistry(r *experiment.Registry) Option {
	return func(e *Ensemble) { e.registry = r }
}

func WithEngine(name string) Option {
	return func(e *Ensemble) { e.engine = name }
}

// WithStore is where Save writes the members and the group.
func WithStore(s *storage.Store) Option {
	return func(e *Ensemble) { e.store = s }
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Ensemble) { e.logger = l }
}

// WithBatchID overrides the generated batch id.
func WithBatchID(id string) Option {
	return func(e *Ensemble) { e.info.Misc.BatchID = id }
}

// New derives the member records from info: linear values around
// info.Analysis["a_c"], the shared quadratic coefficient, and seeds
// seed×(i+1). Every member and the group share one batch id.
func New(info dynamo.Info, opts ...Option) (*Ensemble, error) {
	e := &Ensemble{
		info:     info.Clone(),
		registry: experiment.NewRegistry(),
		logger:   zap.NewNop(),
	}
	e.info.Misc.BatchID = uuid.NewString()
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		e.store = storage.New(".", storage.WithLogger(e.logger))
	}
	if e.info.Analysis == nil {
		e.info.Analysis = dynamo.Analysis{}
	}
	e.info.Analysis.WithExponents()

	ac, ok := e.info.Analysis[dynamo.KeyAC]
	if !ok {
		return nil, dynamo.Configf("analysis has no %s estimate", dynamo.KeyAC)
	}
	m := e.info.Misc
	linears, err := LinearValues(ac, m.DaRange, m.NSims, m.NDigits)
	if err != nil {
		return nil, err
	}
	if err := e.info.Parameters.Validate(); err != nil {
		return nil, err
	}

	e.members = make([]*member, m.NSims)
	for i, a := range linears {
		mi := e.info.Clone()
		mi.Parameters.Linear = a
		mi.Parameters.RandomSeed = e.info.Parameters.RandomSeed * (i + 1)
		mi.Misc.Name = ""
		e.members[i] = &member{info: mi}
	}
	e.info.Misc.Name = naming.ParentName(e.info.Parameters)

	e.logger.Info("ensemble prepared",
		zap.String("batch_id", e.info.Misc.BatchID),
		zap.Float64s("linear", linears),
		zap.Int("n_sims", len(linears)))
	return e, nil
}

// Info returns a copy of the group records.
func (e *Ensemble) Info() dynamo.Info { return e.info.Clone() }

// MemberInfos returns a copy of each member's records, derived names
// included once Create has run.
func (e *Ensemble) MemberInfos() []dynamo.Info {
	out := make([]dynamo.Info, len(e.members))
	for i, m := range e.members {
		if m.exp != nil {
			out[i] = m.run().Info()
		} else {
			out[i] = m.info.Clone()
		}
	}
	return out
}

// MemberDirs returns where each member is saved. It does not need Create.
func (e *Ensemble) MemberDirs() []string {
	out := make([]string, len(e.members))
	for i, m := range e.members {
		info := m.info.Clone()
		if m.exp != nil {
			info = m.run().Info()
		} else {
			info.Misc.Path = append(info.Misc.Path, naming.DirName(info.Parameters))
		}
		out[i] = e.store.Dir(info)
	}
	return out
}

// Create builds one run per member.
func (e *Ensemble) Create() error {
	if e.created {
		return fmt.Errorf("%w: ensemble already created", dynamo.ErrLifecycle)
	}
	for _, m := range e.members {
		m.exp = experiment.New(experiment.Config{
			Engine:  e.engine,
			Info:    m.info,
			Options: []sim.Option{sim.WithLogger(e.logger)},
		})
		if err := m.exp.Setup(e.registry); err != nil {
			return err
		}
	}
	e.created = true
	return nil
}

func (e *Ensemble) workers() int {
	if n := e.info.Misc.NWorkers; n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// Exec runs every member on the worker pool and returns each member's
// computation time, "" for members that failed. The error joins every
// member failure. Calling Exec again runs nothing: completed members keep
// their result and failed members their error. Retrying a failed member
// takes a new Ensemble.
func (e *Ensemble) Exec(ctx context.Context) ([]string, error) {
	if !e.created {
		return nil, fmt.Errorf("%w: ensemble not created", dynamo.ErrLifecycle)
	}

	var g errgroup.Group
	g.SetLimit(e.workers())
	for i, m := range e.members {
		if m.done || m.err != nil {
			continue
		}
		g.Go(func() error {
			res, err := m.exp.Run(ctx)
			if err != nil {
				m.err = fmt.Errorf("member %d (a=%g): %w", i, m.info.Parameters.Linear, err)
				e.logger.Warn("member failed", zap.Int("member", i), zap.Error(err))
				return nil
			}
			m.result = res
			m.done = true
			e.logger.Debug("member done", zap.Int("member", i), zap.String("computation_time", res.ComputationTime))
			return nil
		})
	}
	_ = g.Wait()

	times := make([]string, len(e.members))
	var errs []error
	for i, m := range e.members {
		times[i] = m.result.ComputationTime
		if m.err != nil {
			errs = append(errs, m.err)
		}
	}
	e.stampGroup()
	return times, errors.Join(errs...)
}

// stampGroup copies run bookkeeping of the completed members into the
// group records.
func (e *Ensemble) stampGroup() {
	for _, m := range e.completed() {
		mi := m.run().Info()
		if e.info.Misc.EngineVersion == "" {
			e.info.Misc.EngineVersion = mi.Misc.EngineVersion
			e.info.Misc.DateTime = mi.Misc.DateTime
		}
		e.info.Misc.NEpochs = mi.Misc.NEpochs
		e.info.Misc.ComputationTime = mi.Misc.ComputationTime
	}
}

func (e *Ensemble) completed() []*member {
	var out []*member
	for _, m := range e.members {
		if m.done {
			out = append(out, m)
		}
	}
	return out
}

// Plot draws each completed member's own figures.
func (e *Ensemble) Plot() error {
	for _, m := range e.completed() {
		if err := m.run().Plot(); err != nil {
			return err
		}
	}
	return nil
}

// MultiPlot overlays the completed members' density decay, raw and
// rescaled.
func (e *Ensemble) MultiPlot() error {
	done := e.completed()
	if len(done) == 0 {
		return fmt.Errorf("%w: no completed members to plot", dynamo.ErrLifecycle)
	}
	infos := make([]dynamo.Info, len(done))
	series := make([]dynamo.TimeSeries, len(done))
	for i, m := range done {
		infos[i] = m.run().Info()
		series[i] = m.run().Series()
	}

	nd := e.info.Misc.NDigits
	g := viz.New()
	g.MultiplotMeanDensityEvolution("rho_t_loglog", infos, series, viz.PlotOptions{YScale: 0.75, NDigits: nd})
	g.MultiplotMeanDensityEvolution("rho_t_rescaled", infos, series, viz.PlotOptions{Rescale: true, NDigits: nd})
	e.graphs = g
	return nil
}

func (e *Ensemble) Viz() *viz.Viz { return e.graphs }

// Dir is the group directory.
func (e *Ensemble) Dir() string {
	parts := append([]string{e.store.BaseDir()}, e.info.Misc.Path...)
	return filepath.Join(parts...)
}

// Document is the group metadata: the shared parameters, with the swept
// ones replaced by per-member lists.
func (e *Ensemble) Document() (codec.Document, error) {
	c := codec.New(codec.WithLogger(e.logger))
	doc, err := c.EncodeInfo(e.info)
	if err != nil {
		return codec.Document{}, err
	}
	lists := map[string][]any{}
	for _, m := range e.members {
		p := m.info.Parameters
		for k, v := range map[string]any{
			codec.KeyLinear:     p.Linear,
			codec.KeyQuadratic:  p.Quadratic,
			codec.KeyDiffusion:  p.Diffusion,
			codec.KeyNoise:      p.Noise,
			codec.KeyRandomSeed: p.RandomSeed,
		} {
			lists[k] = append(lists[k], v)
		}
	}
	for _, k := range listedKeys {
		delete(doc.Parameters, k)
		doc.Parameters[k+"_list"] = lists[k]
	}
	return doc, nil
}

// Save writes every completed member on the worker pool, then the group
// document, combo figures and combo data into the group directory. A dry
// run only creates directories, the group's and every member's, and works
// before Exec.
func (e *Ensemble) Save(ctx context.Context, dryRun bool) error {
	if dryRun {
		for _, dir := range e.MemberDirs() {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("%w: create %s: %v", dynamo.ErrPersistence, dir, err)
			}
			e.logger.Info("dry run, directory only", zap.String("dir", dir))
		}
		return e.saveGroup(ctx, true)
	}

	var g errgroup.Group
	g.SetLimit(e.workers())
	done := e.completed()
	errs := make([]error, len(done))
	for i, m := range done {
		g.Go(func() error {
			if _, err := m.exp.Save(ctx, e.store, false, false); err != nil {
				errs[i] = fmt.Errorf("member a=%g: %w", m.info.Parameters.Linear, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := errors.Join(errs...); err != nil {
		return err
	}
	return e.saveGroup(ctx, false)
}

func (e *Ensemble) saveGroup(ctx context.Context, dryRun bool) error {
	dir := e.Dir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: create %s: %v", dynamo.ErrPersistence, dir, err)
	}
	e.logger.Info("ensemble results", zap.String("dir", dir), zap.Bool("dry_run", dryRun))
	if dryRun {
		return nil
	}

	doc, err := e.Document()
	if err != nil {
		return err
	}
	if err := e.store.WriteDocument(ctx, filepath.Join(dir, storage.InfoFile), doc, true); err != nil {
		return err
	}

	if e.info.Misc.DoExportComboGraphs && e.graphs != nil {
		if err := e.store.WriteFigures(ctx, dir, e.graphs, true); err != nil {
			return err
		}
	}

	if e.info.Misc.DoExportComboData {
		done := e.completed()
		if len(done) == 0 {
			return nil
		}
		rows := make([][]float64, len(done))
		for i, m := range done {
			rows[i] = m.result.MeanDensities
		}
		densities, err := storage.Matrix("mean_densities", rows)
		if err != nil {
			return fmt.Errorf("%w: %v", dynamo.ErrPersistence, err)
		}
		arrays := []storage.Array{storage.Vector("t_epochs", done[0].result.TEpochs), densities}
		if err := e.store.WriteArrays(ctx, filepath.Join(dir, ComboBundle), arrays, true); err != nil {
			return err
		}
	}
	return nil
}
