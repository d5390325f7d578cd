package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/san-kum/dplsim/internal/codec"
	"github.com/san-kum/dplsim/internal/dynamo"
	"github.com/san-kum/dplsim/internal/naming"
	"github.com/san-kum/dplsim/internal/viz"
	"go.uber.org/zap"
)

// File names inside a run directory.
const (
	InfoFile   = "Outfo.json"
	BundleFile = "rho_t.npz"
)

// Source is a finished run as the store sees it.
type Source interface {
	Info() dynamo.Info
	Series() dynamo.TimeSeries
	Viz() *viz.Viz
}

type Store struct {
	baseDir string
	viz     viz.Config
	catalog Catalog
	codec   *codec.Codec
	logger  *zap.Logger
}

type Option func(*Store)

func WithViz(cfg viz.Config) Option {
	return func(s *Store) { s.viz = cfg }
}

// WithCatalog indexes every saved run in c.
func WithCatalog(c Catalog) Option {
	return func(s *Store) { s.catalog = c }
}

func WithCodec(c *codec.Codec) Option {
	return func(s *Store) { s.codec = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

func New(baseDir string, opts ...Option) *Store {
	s := &Store{
		baseDir: baseDir,
		viz:     viz.DefaultConfig(),
		codec:   codec.New(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) BaseDir() string { return s.baseDir }

func (s *Store) Viz() viz.Config { return s.viz }

// Dir is where a run with info is saved: the base directory, the misc path,
// then the seed leaf.
func (s *Store) Dir(info dynamo.Info) string {
	parts := append([]string{s.baseDir}, info.Misc.Path...)
	parts = append(parts, naming.SeedDir(info.Parameters))
	return filepath.Join(parts...)
}

func persistf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", dynamo.ErrPersistence, fmt.Sprintf(format, args...))
}

// Save writes a run: its metadata document always, its figures when graph
// export is on, and its density bundle when data export is on. A dry run
// creates the directory and nothing else. Every file is replaced whole, so
// saving the same run again repairs an interrupted save.
func (s *Store) Save(ctx context.Context, src Source, dryRun, verbose bool) (string, error) {
	info := src.Info()
	dir := s.Dir(info)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", persistf("create %s: %v", dir, err)
	}
	if dryRun {
		s.logger.Info("dry run, directory only", zap.String("dir", dir))
		return dir, nil
	}

	doc, err := s.codec.EncodeInfo(info)
	if err != nil {
		return dir, fmt.Errorf("encode %s: %w", info.Misc.Name, err)
	}
	if err := s.WriteDocument(ctx, filepath.Join(dir, InfoFile), doc, verbose); err != nil {
		return dir, err
	}

	if info.Misc.DoExportGraphs {
		if err := s.WriteFigures(ctx, dir, src.Viz(), verbose); err != nil {
			return dir, err
		}
	}

	if info.Misc.DoExportData {
		series := src.Series()
		arrays := []Array{
			Vector("t_epochs", series.TEpochs),
			Vector("mean_densities", series.MeanDensities),
		}
		if err := s.WriteArrays(ctx, filepath.Join(dir, BundleFile), arrays, verbose); err != nil {
			return dir, err
		}
	}

	if s.catalog != nil {
		if err := s.catalog.Upsert(ctx, EntryFor(dir, info)); err != nil {
			return dir, persistf("catalog %s: %v", dir, err)
		}
	}
	return dir, nil
}

// WriteDocument writes doc as indented JSON.
func (s *Store) WriteDocument(ctx context.Context, path string, doc codec.Document, verbose bool) error {
	return s.writeFile(ctx, path, verbose, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	})
}

// WriteFigures renders every figure of v once per configured file type.
func (s *Store) WriteFigures(ctx context.Context, dir string, v *viz.Viz, verbose bool) error {
	for _, f := range v.Figures() {
		for _, ft := range s.viz.FileTypes {
			path := filepath.Join(dir, f.Name+"."+ft)
			err := s.writeFile(ctx, path, verbose, func(w io.Writer) error {
				return f.Render(w, ft, s.viz)
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteArrays writes arrays as a compressed .npz bundle.
func (s *Store) WriteArrays(ctx context.Context, path string, arrays []Array, verbose bool) error {
	return s.writeFile(ctx, path, verbose, func(w io.Writer) error {
		return WriteBundle(w, arrays)
	})
}

// writeFile fills a temp file next to path and renames it into place.
func (s *Store) writeFile(ctx context.Context, path string, verbose bool, fill func(io.Writer) error) error {
	if err := ctx.Err(); err != nil {
		return persistf("write %s: %v", path, err)
	}

	var buf bytes.Buffer
	if err := fill(&buf); err != nil {
		return persistf("render %s: %v", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return persistf("write %s: %v", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return persistf("write %s: %v", path, err)
	}
	if err := tmp.Close(); err != nil {
		return persistf("write %s: %v", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return persistf("write %s: %v", path, err)
	}

	log := s.logger.Debug
	if verbose {
		log = s.logger.Info
	}
	log("wrote", zap.String("path", path), zap.String("size", humanize.Bytes(uint64(buf.Len()))))
	return nil
}

// GroupKey marks an ensemble group document: its parameters list the
// linear coefficient of every member.
const GroupKey = codec.KeyLinear + "_list"

func readDocument(dir string) (codec.Document, error) {
	data, err := os.ReadFile(filepath.Join(dir, InfoFile))
	if err != nil {
		return codec.Document{}, err
	}
	var doc codec.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return codec.Document{}, fmt.Errorf("%s: %w", dir, err)
	}
	return doc, nil
}

// Load reads the metadata document of the run saved in dir.
func (s *Store) Load(dir string) (dynamo.Info, error) {
	doc, err := readDocument(dir)
	if err != nil {
		return dynamo.Info{}, err
	}
	return s.codec.DecodeInfo(doc)
}

// LoadSeries reads the density bundle of the run saved in dir.
func (s *Store) LoadSeries(dir string) (dynamo.TimeSeries, error) {
	arrays, err := ReadBundle(filepath.Join(dir, BundleFile))
	if err != nil {
		return dynamo.TimeSeries{}, err
	}
	t, ok := arrays["t_epochs"]
	if !ok {
		return dynamo.TimeSeries{}, fmt.Errorf("%s: no t_epochs array", dir)
	}
	rho, ok := arrays["mean_densities"]
	if !ok {
		return dynamo.TimeSeries{}, fmt.Errorf("%s: no mean_densities array", dir)
	}
	ts := dynamo.TimeSeries{TEpochs: t.Data, MeanDensities: rho.Data}
	if err := ts.Validate(); err != nil {
		return dynamo.TimeSeries{}, fmt.Errorf("%s: %w", dir, err)
	}
	return ts, nil
}

// List walks the base directory for saved runs. Ensemble group documents
// are skipped; unreadable documents are logged and skipped.
func (s *Store) List() ([]Entry, error) {
	var runs []Entry
	err := filepath.WalkDir(s.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == s.baseDir {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || d.Name() != InfoFile {
			return nil
		}
		dir := filepath.Dir(path)
		doc, err := readDocument(dir)
		if err == nil {
			if _, group := doc.Parameters[GroupKey]; group {
				return nil
			}
		}
		var info dynamo.Info
		if err == nil {
			info, err = s.codec.DecodeInfo(doc)
		}
		if err != nil {
			s.logger.Warn("skipping unreadable run", zap.String("dir", dir), zap.Error(err))
			return nil
		}
		runs = append(runs, EntryFor(dir, info))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Dir < runs[j].Dir })
	return slices.Clip(runs), nil
}
