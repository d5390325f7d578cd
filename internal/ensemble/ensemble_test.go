package ensemble_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/goleak"

	"github.com/san-kum/dplsim/internal/codec"
	"github.com/san-kum/dplsim/internal/dynamo"
	"github.com/san-kum/dplsim/internal/engine"
	"github.com/san-kum/dplsim/internal/ensemble"
	"github.com/san-kum/dplsim/internal/experiment"
	"github.com/san-kum/dplsim/internal/storage"
)

func groupInfo() dynamo.Info {
	return dynamo.Info{
		Parameters: dynamo.Parameters{
			Linear:             1.8857,
			Quadratic:          1,
			Diffusion:          0.04,
			Noise:              1,
			TFinal:             2.5,
			Dx:                 1,
			Dt:                 0.1,
			RandomSeed:         3,
			GridDimension:      dynamo.D2,
			GridSize:           []int{4, 4},
			GridTopologies:     []dynamo.GridTopology{dynamo.Periodic, dynamo.Periodic},
			BoundaryConditions: []dynamo.BoundaryCondition{dynamo.Floating, dynamo.Floating, dynamo.Floating, dynamo.Floating},
			BCValues:           []float64{0, 0, 0, 0},
			InitialCondition:   dynamo.RandomUniform,
			ICValues:           []float64{0, 1},
			IntegrationMethod:  dynamo.RungeKutta,
		},
		Analysis: dynamo.Analysis{dynamo.KeyAC: 1.8857},
		Misc: dynamo.Misc{
			Path:                []string{"ens"},
			NRoundDt:            6,
			NSegments:           5,
			DoExportGraphs:      true,
			DoExportData:        true,
			DoExportComboGraphs: true,
			DoExportComboData:   true,
			NSims:               4,
			DaRange:             0.1,
			NDigits:             5,
			NWorkers:            2,
		},
	}
}

// fakeRegistry runs every member on a scripted stepper; the member at
// failLinear fails in its second segment.
func fakeRegistry(failLinear float64) *experiment.Registry {
	reg := experiment.NewRegistry()
	reg.Register("fake", func(p dynamo.Parameters) dynamo.Stepper {
		f := &engine.Fake{Epochs: 26}
		if p.Linear == failLinear {
			f.FailOn, f.FailAfter = "run", 1
		}
		return f
	})
	return reg
}

var _ = Describe("LinearValues", func() {
	DescribeTable("spreads values around the critical point",
		func(ac, da float64, n int, want []float64) {
			got, err := ensemble.LinearValues(ac, da, n, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(want))
		},
		Entry("even count", 1.8857, 0.1, 4, []float64{1.9357, 1.8857, 1.8357, 1.7857}),
		Entry("odd count", 1.8857, 0.1, 3, []float64{1.9857, 1.8857, 1.7857}),
		Entry("single run", 1.8857, 0.1, 1, []float64{1.8857}),
	)

	It("rejects sweeps that reach negative values", func() {
		_, err := ensemble.LinearValues(0.05, 1, 4, 5)
		Expect(err).To(MatchError(dynamo.ErrConfiguration))
	})

	It("rejects an empty sweep", func() {
		_, err := ensemble.LinearValues(1, 0.1, 0, 5)
		Expect(err).To(MatchError(dynamo.ErrConfiguration))
	})
})

var _ = Describe("Ensemble", func() {
	var (
		ctx   context.Context
		root  string
		store *storage.Store
		leaks goleak.Option
	)

	BeforeEach(func() {
		leaks = goleak.IgnoreCurrent()
		ctx = context.Background()
		root = GinkgoT().TempDir()
		store = storage.New(root)
	})

	AfterEach(func() {
		Expect(goleak.Find(leaks)).To(Succeed())
	})

	newEnsemble := func(failLinear float64) *ensemble.Ensemble {
		e, err := ensemble.New(groupInfo(),
			ensemble.WithRegistry(fakeRegistry(failLinear)),
			ensemble.WithEngine("fake"),
			ensemble.WithStore(store),
			ensemble.WithBatchID("batch-1"))
		Expect(err).NotTo(HaveOccurred())
		Expect(e.Create()).To(Succeed())
		return e
	}

	It("derives member records", func() {
		e := newEnsemble(-1)
		infos := e.MemberInfos()
		Expect(infos).To(HaveLen(4))

		var seeds []int
		for _, info := range infos {
			seeds = append(seeds, info.Parameters.RandomSeed)
			Expect(info.Misc.BatchID).To(Equal("batch-1"))
			Expect(info.Parameters.Quadratic).To(Equal(1.0))
		}
		Expect(seeds).To(Equal([]int{3, 6, 9, 12}))
		Expect(infos[0].Misc.Path).To(Equal([]string{"ens", "a1p93570"}))
		Expect(e.Info().Misc.Name).NotTo(ContainSubstring("a1p8"))
	})

	It("refuses to run before members are created", func() {
		e, err := ensemble.New(groupInfo())
		Expect(err).NotTo(HaveOccurred())
		_, err = e.Exec(ctx)
		Expect(err).To(MatchError(dynamo.ErrLifecycle))
		Expect(e.MultiPlot()).To(MatchError(dynamo.ErrLifecycle))
	})

	It("rejects records without a critical point estimate", func() {
		info := groupInfo()
		info.Analysis = nil
		_, err := ensemble.New(info)
		Expect(err).To(MatchError(dynamo.ErrConfiguration))
	})

	It("runs, plots and saves every member", func() {
		e := newEnsemble(-1)
		times, err := e.Exec(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(times).To(HaveLen(4))
		for _, t := range times {
			Expect(t).To(MatchRegexp(`^\d+:\d\d:\d\d$`))
		}

		Expect(e.Plot()).To(Succeed())
		Expect(e.MultiPlot()).To(Succeed())
		Expect(e.Save(ctx, false)).To(Succeed())

		group := filepath.Join(root, "ens")
		Expect(filepath.Join(group, storage.InfoFile)).To(BeAnExistingFile())
		Expect(filepath.Join(group, "rho_t_loglog.svg")).To(BeAnExistingFile())
		Expect(filepath.Join(group, "rho_t_rescaled.svg")).To(BeAnExistingFile())

		arrays, err := storage.ReadBundle(filepath.Join(group, ensemble.ComboBundle))
		Expect(err).NotTo(HaveOccurred())
		Expect(arrays["mean_densities"].Shape).To(Equal([]int{4, 6}))
		Expect(arrays["t_epochs"].Shape).To(Equal([]int{6}))

		data, err := os.ReadFile(filepath.Join(group, storage.InfoFile))
		Expect(err).NotTo(HaveOccurred())
		var doc codec.Document
		Expect(json.Unmarshal(data, &doc)).To(Succeed())
		Expect(doc.Parameters).NotTo(HaveKey(codec.KeyLinear))
		Expect(doc.Parameters[storage.GroupKey]).To(HaveLen(4))
		Expect(doc.Parameters[codec.KeyRandomSeed+"_list"]).To(HaveLen(4))
		Expect(doc.Misc[codec.KeyBatchID]).To(Equal("batch-1"))
		Expect(doc.Misc[codec.KeyEngineVersion]).To(Equal(engine.FakeVersion))

		runs, err := store.List()
		Expect(err).NotTo(HaveOccurred())
		Expect(runs).To(HaveLen(4))
		Expect(filepath.Join(root, "ens", "a1p93570", "rs3", storage.BundleFile)).To(BeAnExistingFile())
	})

	It("keeps siblings running when one member fails", func() {
		e := newEnsemble(1.8357)
		times, err := e.Exec(ctx)
		Expect(err).To(MatchError(dynamo.ErrEngineFailure))
		Expect(err.Error()).To(ContainSubstring("a=1.8357"))
		Expect(times[2]).To(BeEmpty())
		Expect(times[0]).NotTo(BeEmpty())
		Expect(times[1]).NotTo(BeEmpty())
		Expect(times[3]).NotTo(BeEmpty())

		Expect(e.MultiPlot()).To(Succeed())
		Expect(e.Save(ctx, false)).To(Succeed())
		arrays, err := storage.ReadBundle(filepath.Join(root, "ens", ensemble.ComboBundle))
		Expect(err).NotTo(HaveOccurred())
		Expect(arrays["mean_densities"].Shape).To(Equal([]int{3, 6}))
	})

	It("previews every member directory before running", func() {
		e := newEnsemble(-1)
		Expect(e.Save(ctx, true)).To(Succeed())

		dirs := e.MemberDirs()
		Expect(dirs).To(Equal([]string{
			filepath.Join(root, "ens", "a1p93570", "rs3"),
			filepath.Join(root, "ens", "a1p88570", "rs6"),
			filepath.Join(root, "ens", "a1p83570", "rs9"),
			filepath.Join(root, "ens", "a1p78570", "rs12"),
		}))
		for _, dir := range dirs {
			Expect(dir).To(BeADirectory())
			entries, err := os.ReadDir(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(BeEmpty())
		}
		Expect(filepath.Join(root, "ens", storage.InfoFile)).NotTo(BeAnExistingFile())
	})

	It("derives member directories without Create", func() {
		e, err := ensemble.New(groupInfo(), ensemble.WithStore(store))
		Expect(err).NotTo(HaveOccurred())
		Expect(e.MemberDirs()[3]).To(Equal(filepath.Join(root, "ens", "a1p78570", "rs12")))
	})

	It("does not rerun members on a second Exec", func() {
		e := newEnsemble(1.8357)
		first, err := e.Exec(ctx)
		Expect(err).To(MatchError(dynamo.ErrEngineFailure))

		second, err := e.Exec(ctx)
		Expect(err).To(MatchError(dynamo.ErrEngineFailure))
		Expect(err).NotTo(MatchError(dynamo.ErrLifecycle))
		Expect(second).To(Equal(first))
	})

	It("only creates directories on a dry run", func() {
		e := newEnsemble(-1)
		_, err := e.Exec(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(e.MultiPlot()).To(Succeed())
		Expect(e.Save(ctx, true)).To(Succeed())

		Expect(filepath.Join(root, "ens", "a1p93570", "rs3")).To(BeADirectory())
		entries, err := os.ReadDir(filepath.Join(root, "ens", "a1p93570", "rs3"))
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(BeEmpty())
		Expect(filepath.Join(root, "ens", storage.InfoFile)).NotTo(BeAnExistingFile())
	})
})
