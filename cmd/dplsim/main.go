package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/dplsim/internal/analysis"
	"github.com/san-kum/dplsim/internal/config"
	"github.com/san-kum/dplsim/internal/dynamo"
	"github.com/san-kum/dplsim/internal/ensemble"
	"github.com/san-kum/dplsim/internal/experiment"
	"github.com/san-kum/dplsim/internal/naming"
	"github.com/san-kum/dplsim/internal/progress"
	"github.com/san-kum/dplsim/internal/sim"
	"github.com/san-kum/dplsim/internal/storage"
	"github.com/san-kum/dplsim/internal/viz"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger *zap.Logger

	outputDir  string
	configFile string
	preset     string
	verbose    bool
	dryRun     bool

	engineName  string
	catalogPath string
	linear      float64
	quadratic   float64
	diffusion   float64
	noise       float64
	tFinal      float64
	dx          float64
	dt          float64
	seed        int
	gridSize    []int
	segments    int
	snapshots   bool
	showBar     bool
	runName     string

	ac       float64
	nSims    int
	daRange  float64
	nWorkers int

	fitFrom float64
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dplsim",
		Short: "directed-percolation Langevin simulation runner",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			zc := zap.NewProductionConfig()
			if verbose {
				zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			var err error
			logger, err = zc.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&outputDir, "output", "", "output directory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run one simulation and save it",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	addRecordFlags(runCmd)
	runCmd.Flags().StringVar(&preset, "preset", "", "use preset configuration (see presets)")
	runCmd.Flags().BoolVar(&snapshots, "snapshots", false, "keep the density grid at every segment boundary")
	runCmd.Flags().BoolVar(&showBar, "progress", false, "draw a progress bar on stderr")
	runCmd.Flags().StringVar(&runName, "name", "", "run name (default derived from parameters)")
	runCmd.Flags().StringVar(&catalogPath, "catalog", "", "sqlite catalog to index the run in")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "create the output directory only")

	ensembleCmd := &cobra.Command{
		Use:   "ensemble",
		Short: "sweep the linear coefficient around a_c",
		Args:  cobra.NoArgs,
		RunE:  runEnsemble,
	}
	addRecordFlags(ensembleCmd)
	ensembleCmd.Flags().StringVar(&preset, "preset", "", "use preset configuration (see presets)")
	ensembleCmd.Flags().Float64Var(&ac, "ac", config.DefaultAC, "critical-point estimate a_c")
	ensembleCmd.Flags().IntVar(&nSims, "n-sims", 4, "number of members")
	ensembleCmd.Flags().Float64Var(&daRange, "da-range", 0.1, "sweep half-width below a_c")
	ensembleCmd.Flags().IntVar(&nWorkers, "workers", 0, "worker pool size (0 = one per cpu)")
	ensembleCmd.Flags().StringVar(&catalogPath, "catalog", "", "sqlite catalog to index members in")
	ensembleCmd.Flags().BoolVar(&dryRun, "dry-run", false, "create the output directories only")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list saved runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}
	listCmd.Flags().StringVar(&catalogPath, "catalog", "", "read from this sqlite catalog instead of walking the output directory")

	showCmd := &cobra.Command{
		Use:   "show [dir]",
		Short: "print a saved run and plot its density decay",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	analyzeCmd := &cobra.Command{
		Use:   "analyze [dir]",
		Short: "fit the density decay exponent of a saved run",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().Float64Var(&fitFrom, "from", analysis.MinTime, "ignore samples before this time")

	nameCmd := &cobra.Command{
		Use:   "name",
		Short: "print the names a run would be saved under",
		Args:  cobra.NoArgs,
		RunE:  printNames,
	}
	addRecordFlags(nameCmd)
	nameCmd.Flags().StringVar(&preset, "preset", "", "use preset configuration (see presets)")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "write the default config file",
		Args:  cobra.ExactArgs(1),
		RunE:  initConfig,
	}

	enginesCmd := &cobra.Command{
		Use:   "engines",
		Short: "list registered engines",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Print(experiment.NewRegistry().String())
		},
	}

	rootCmd.AddCommand(runCmd, ensembleCmd, listCmd, showCmd, analyzeCmd, nameCmd, presetsCmd, initCmd, enginesCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addRecordFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&engineName, "engine", config.DefaultEngine, "stepping engine")
	cmd.Flags().Float64Var(&linear, "a", 0, "linear coefficient")
	cmd.Flags().Float64Var(&quadratic, "b", 0, "quadratic coefficient")
	cmd.Flags().Float64Var(&diffusion, "D", 0, "diffusion coefficient")
	cmd.Flags().Float64Var(&noise, "eta", 0, "noise amplitude")
	cmd.Flags().Float64Var(&tFinal, "t-final", 0, "final time")
	cmd.Flags().Float64Var(&dx, "dx", 0, "grid spacing")
	cmd.Flags().Float64Var(&dt, "dt", 0, "time step")
	cmd.Flags().IntVar(&seed, "seed", 0, "random seed")
	cmd.Flags().IntSliceVar(&gridSize, "grid", nil, "grid extents, e.g. 64,32")
	cmd.Flags().IntVar(&segments, "segments", 0, "number of run segments")
}

// loadConfig layers the config file, then the preset, then any flag the
// user set explicitly.
func loadConfig(cmd *cobra.Command, kind string) (*config.Config, dynamo.Info, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, dynamo.Info{}, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if outputDir != "" {
		cfg.Output = outputDir
	}

	info, err := cfg.Info(logger)
	if err != nil {
		return nil, dynamo.Info{}, err
	}
	if preset != "" {
		p, ok := config.GetPreset(kind, preset)
		if !ok {
			return nil, dynamo.Info{}, fmt.Errorf("unknown %s preset: %s (available: %s)",
				kind, preset, strings.Join(config.ListPresets(kind), ", "))
		}
		info = p
	}

	flags := cmd.Flags()
	if flags.Changed("engine") {
		cfg.Engine = engineName
	}
	p := &info.Parameters
	if flags.Changed("a") {
		p.Linear = linear
	}
	if flags.Changed("b") {
		p.Quadratic = quadratic
	}
	if flags.Changed("D") {
		p.Diffusion = diffusion
	}
	if flags.Changed("eta") {
		p.Noise = noise
	}
	if flags.Changed("t-final") {
		p.TFinal = tFinal
	}
	if flags.Changed("dx") {
		p.Dx = dx
	}
	if flags.Changed("dt") {
		p.Dt = dt
	}
	if flags.Changed("seed") {
		p.RandomSeed = seed
	}
	if flags.Changed("grid") {
		if len(gridSize) != p.GridDimension.Rank() {
			return nil, dynamo.Info{}, fmt.Errorf("--grid needs %d extents for a %s grid", p.GridDimension.Rank(), p.GridDimension)
		}
		p.GridSize = gridSize
	}
	if flags.Changed("segments") {
		info.Misc.NSegments = segments
	}
	if flags.Changed("snapshots") {
		cfg.Snapshots = snapshots
	}
	if flags.Changed("progress") {
		cfg.Progress = showBar
	}
	if flags.Changed("catalog") {
		cfg.Catalog = catalogPath
	}

	if err := cfg.Validate(); err != nil {
		return nil, dynamo.Info{}, err
	}
	return cfg, info, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// openStore builds the store for cfg, with its catalog initialized when one
// is configured. The returned func closes the catalog.
func openStore(ctx context.Context, cfg *config.Config) (*storage.Store, func(), error) {
	cd, err := cfg.Codec(logger)
	if err != nil {
		return nil, nil, err
	}
	opts := []storage.Option{
		storage.WithViz(cfg.Viz),
		storage.WithCodec(cd),
		storage.WithLogger(logger),
	}
	closeFn := func() {}
	if cfg.Catalog != "" {
		cat := storage.NewSQLiteCatalog(cfg.Catalog)
		if err := cat.Init(ctx); err != nil {
			return nil, nil, fmt.Errorf("open catalog %s: %w", cfg.Catalog, err)
		}
		opts = append(opts, storage.WithCatalog(cat))
		closeFn = func() {
			if err := cat.Close(); err != nil {
				logger.Warn("close catalog", zap.Error(err))
			}
		}
	}

	st := storage.New(cfg.Output, opts...)
	if err := st.Init(); err != nil {
		closeFn()
		return nil, nil, err
	}
	return st, closeFn, nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, info, err := loadConfig(cmd, "run")
	if err != nil {
		return err
	}
	if err := info.Parameters.Validate(); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	exp := experiment.New(experiment.Config{
		Engine:       cfg.Engine,
		Info:         info,
		Name:         runName,
		SnapshotGrid: cfg.Snapshots,
		Options: []sim.Option{
			sim.WithLogger(logger),
			sim.WithProgress(progress.New(os.Stderr, cfg.Progress)),
		},
	})
	if err := exp.Setup(experiment.NewRegistry()); err != nil {
		return err
	}

	run := exp.GetRun()
	fmt.Println(viz.Title1.Render("dplsim run"))
	fmt.Println(viz.KeyValue("name", run.Info().Misc.Name))
	fmt.Println(viz.KeyValue("engine", cfg.Engine))

	if dryRun {
		dir, err := exp.Save(ctx, st, true, verbose)
		if err != nil {
			return err
		}
		fmt.Println(viz.KeyValue("would save to", dir))
		fmt.Println(viz.Subtle.Render("dry run: directory created, nothing run or written"))
		return nil
	}

	res, err := exp.Run(ctx)
	if err != nil {
		fmt.Println(viz.StatusFailed.Render("failed") + " " + run.State().String())
		return err
	}

	dir, err := exp.Save(ctx, st, false, verbose)
	if err != nil {
		return err
	}

	printSummary(run.Info(), dynamo.TimeSeries{TEpochs: res.TEpochs, MeanDensities: res.MeanDensities})
	fmt.Println(viz.KeyValue("computation time", res.ComputationTime))
	fmt.Println(viz.KeyValue("saved to", dir))
	fmt.Println(viz.StatusOK.Render("done"))
	return nil
}

func printSummary(info dynamo.Info, ts dynamo.TimeSeries) {
	fmt.Println(viz.KeyValue("epochs", strconv.Itoa(info.Misc.NEpochs)))
	if n := len(ts.MeanDensities); n > 0 {
		fmt.Println(viz.KeyValue("ρ(0)", fmt.Sprintf("%.6g", ts.MeanDensities[0])))
		fmt.Println(viz.KeyValue("ρ(t_final)", fmt.Sprintf("%.6g", ts.MeanDensities[n-1])))
		fmt.Println(viz.MetricLabel.Render("decay:") + " " + viz.Sparkline(ts.MeanDensities, 40))
	}
}

func runEnsemble(cmd *cobra.Command, args []string) error {
	cfg, info, err := loadConfig(cmd, "ensemble")
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if info.Analysis == nil {
		info.Analysis = dynamo.Analysis{}
	}
	if flags.Changed("ac") {
		info.Analysis[dynamo.KeyAC] = ac
	} else if _, ok := info.Analysis[dynamo.KeyAC]; !ok {
		info.Analysis[dynamo.KeyAC] = ac
	}
	if flags.Changed("n-sims") {
		info.Misc.NSims = nSims
	}
	if flags.Changed("da-range") {
		info.Misc.DaRange = daRange
	}
	if flags.Changed("workers") {
		info.Misc.NWorkers = nWorkers
	}

	ctx, cancel := signalContext()
	defer cancel()

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	ens, err := ensemble.New(info,
		ensemble.WithEngine(cfg.Engine),
		ensemble.WithStore(st),
		ensemble.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	if err := ens.Create(); err != nil {
		return err
	}

	group := ens.Info()
	fmt.Println(viz.Title1.Render("dplsim ensemble"))
	fmt.Println(viz.KeyValue("name", group.Misc.Name))
	fmt.Println(viz.KeyValue("batch", group.Misc.BatchID))

	if dryRun {
		if err := ens.Save(ctx, true); err != nil {
			return err
		}
		for _, dir := range ens.MemberDirs() {
			fmt.Println(viz.KeyValue("would save to", dir))
		}
		fmt.Println(viz.KeyValue("group", ens.Dir()))
		fmt.Println(viz.Subtle.Render("dry run: directories created, nothing run or written"))
		return nil
	}

	times, execErr := ens.Exec(ctx)
	if errors.Is(execErr, context.Canceled) {
		return execErr
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MEMBER\tA\tSEED\tSTATUS\tTIME")
	for i, mi := range ens.MemberInfos() {
		status := viz.StatusOK.Render("ok")
		if times[i] == "" {
			status = viz.StatusFailed.Render("failed")
		}
		fmt.Fprintf(w, "%d\t%.5f\t%d\t%s\t%s\n", i, mi.Parameters.Linear, mi.Parameters.RandomSeed, status, times[i])
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if execErr != nil {
		logger.Warn("some members failed", zap.Error(execErr))
	}

	if group.Misc.DoExportComboGraphs {
		if err := ens.MultiPlot(); err != nil {
			return err
		}
	}
	if err := ens.Save(ctx, false); err != nil {
		return err
	}

	fmt.Println(viz.KeyValue("saved to", ens.Dir()))
	if execErr != nil {
		return execErr
	}
	fmt.Println(viz.StatusOK.Render("done"))
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	cfg, err := baseConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("catalog") {
		cfg.Catalog = catalogPath
	}

	var runs []storage.Entry
	if cfg.Catalog != "" {
		ctx := cmd.Context()
		cat := storage.NewSQLiteCatalog(cfg.Catalog)
		if err := cat.Init(ctx); err != nil {
			return err
		}
		defer cat.Close()
		runs, err = cat.List(ctx)
	} else {
		st := storage.New(cfg.Output, storage.WithLogger(logger))
		runs, err = st.List()
	}
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DIR\tA\tSEED\tEPOCHS\tDATE\tDURATION\tBATCH")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%.5f\t%d\t%d\t%s\t%s\t%s\n",
			run.Dir,
			run.Linear,
			run.Seed,
			run.NEpochs,
			run.DateTime,
			run.ComputationTime,
			shortID(run.BatchID),
		)
	}
	return w.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// baseConfig is the config file (or the defaults) with --output applied.
func baseConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if outputDir != "" {
		cfg.Output = outputDir
	}
	return cfg, nil
}

func loadRun(dir string) (dynamo.Info, dynamo.TimeSeries, *config.Config, error) {
	cfg, err := baseConfig()
	if err != nil {
		return dynamo.Info{}, dynamo.TimeSeries{}, nil, err
	}
	cd, err := cfg.Codec(logger)
	if err != nil {
		return dynamo.Info{}, dynamo.TimeSeries{}, nil, err
	}
	st := storage.New(cfg.Output, storage.WithCodec(cd), storage.WithLogger(logger))
	info, err := st.Load(dir)
	if err != nil {
		return dynamo.Info{}, dynamo.TimeSeries{}, nil, err
	}
	ts, err := st.LoadSeries(dir)
	if err != nil {
		return dynamo.Info{}, dynamo.TimeSeries{}, nil, err
	}
	return info, ts, cfg, nil
}

func showRun(cmd *cobra.Command, args []string) error {
	info, ts, cfg, err := loadRun(args[0])
	if err != nil {
		return err
	}
	p := info.Parameters

	fmt.Println(viz.HeaderStyle.Render(info.Misc.Name))
	fmt.Println(viz.KeyValue("a", fmt.Sprintf("%.5f", p.Linear)))
	fmt.Println(viz.KeyValue("b", fmt.Sprintf("%g", p.Quadratic)))
	fmt.Println(viz.KeyValue("D", fmt.Sprintf("%g", p.Diffusion)))
	fmt.Println(viz.KeyValue("η", fmt.Sprintf("%g", p.Noise)))
	fmt.Println(viz.KeyValue("grid", fmt.Sprintf("%v %v", p.GridSize, p.GridTopologies)))
	fmt.Println(viz.KeyValue("engine", info.Misc.EngineVersion))
	fmt.Println(viz.KeyValue("date", info.Misc.DateTime))
	fmt.Println(viz.KeyValue("duration", info.Misc.ComputationTime))
	printSummary(info, ts)
	fmt.Println()

	t, rho := analysis.Filter(ts, analysis.MinTime)
	if len(rho) == 0 {
		return fmt.Errorf("no positive densities after t=%g", analysis.MinTime)
	}
	logRho := make([]float64, len(rho))
	for i, r := range rho {
		logRho[i] = math.Log10(r)
	}
	graph := asciigraph.Plot(logRho,
		asciigraph.Height(cfg.Viz.ASCIIHeight),
		asciigraph.Width(cfg.Viz.ASCIIWidth),
		asciigraph.Caption(fmt.Sprintf("log10 ρ(t), t=%g..%g", t[0], t[len(t)-1])),
	)
	fmt.Println(graph)
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	info, ts, _, err := loadRun(args[0])
	if err != nil {
		return err
	}

	t, rho := analysis.Filter(ts, fitFrom)
	delta, prefactor, err := analysis.DecayExponent(t, rho)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	ex := analysis.ExponentsFrom(info.Analysis)

	fmt.Printf("decay fit: %s\n", info.Misc.Name)
	fmt.Printf("samples: %d (t >= %g)\n\n", len(t), fitFrom)
	fmt.Println(viz.KeyValue("fitted δ", fmt.Sprintf("%.4f", delta)))
	fmt.Println(viz.KeyValue("DP δ", fmt.Sprintf("%.4f", ex.Delta)))
	fmt.Println(viz.KeyValue("prefactor", fmt.Sprintf("%.4g", prefactor)))

	acEst, ok := info.Analysis[dynamo.KeyAC]
	if !ok {
		return nil
	}
	switch d := info.Parameters.Linear - acEst; {
	case d > 1e-10:
		fmt.Println(viz.Subtle.Render("a > a_c: absorbing side, expect faster than power-law decay"))
	case d < -1e-10:
		fmt.Println(viz.Subtle.Render("a < a_c: active side, expect the density to level off"))
	default:
		fmt.Println(viz.Subtle.Render("a = a_c: expect ρ ~ t^-δ"))
	}
	return nil
}

func printNames(cmd *cobra.Command, args []string) error {
	cfg, info, err := loadConfig(cmd, "run")
	if err != nil {
		return err
	}
	p := info.Parameters
	st := storage.New(cfg.Output)

	fmt.Println(viz.KeyValue("name", naming.FullName(p)))
	fmt.Println(viz.KeyValue("parent", naming.ParentName(p)))
	fmt.Println(viz.KeyValue("dir", naming.DirName(p)))
	fmt.Println(viz.KeyValue("fingerprint", naming.Fingerprint(p)))
	fmt.Println(viz.KeyValue("saved under", st.Dir(info)))
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	for _, kind := range []string{"run", "ensemble"} {
		fmt.Println(viz.HeaderStyle.Render(kind + " presets"))
		for _, name := range config.ListPresets(kind) {
			info, _ := config.GetPreset(kind, name)
			p := info.Parameters
			fmt.Printf("  %-10s a=%-8g grid=%-10v t_final=%-8g dt=%g  %s\n",
				name, p.Linear, p.GridSize, p.TFinal, p.Dt, viz.Subtle.Render(filepath.Join(info.Misc.Path...)))
		}
	}
	return nil
}

func initConfig(cmd *cobra.Command, args []string) error {
	path := args[0]
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := config.Save(path, config.DefaultConfig()); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}
