// Package pipeline runs parent mass correction and tagging over spectra with a
// bounded pool of workers. Workers share the model store read-only; everything
// else is built per spectrum.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/mdobak/go-xerrors"
	"golang.org/x/sync/errgroup"

	"github.com/ChrisMcGann/peptag/pkg/core"
	"github.com/ChrisMcGann/peptag/pkg/filter"
	"github.com/ChrisMcGann/peptag/pkg/logger"
	"github.com/ChrisMcGann/peptag/pkg/modelstore"
	"github.com/ChrisMcGann/peptag/pkg/peakindex"
	"github.com/ChrisMcGann/peptag/pkg/pmc"
	"github.com/ChrisMcGann/peptag/pkg/taggraph"
)

// Options configures a pipeline.
type Options struct {
	Workers    int
	TagLength  int
	MaxTags    int
	ModPenalty float64
	Mods       []core.ModSpec
	Filter     *filter.Config
	PMC        *pmc.Config
	Tagging    taggraph.Config
}

// DefaultOptions returns single-worker options with default settings.
func DefaultOptions() Options {
	return Options{
		Workers:    1,
		TagLength:  taggraph.DefaultTagLength,
		MaxTags:    taggraph.DefaultMaxTags,
		ModPenalty: taggraph.DefaultModPenalty,
		Filter:     filter.DefaultConfig(),
		PMC:        pmc.DefaultConfig(),
		Tagging:    taggraph.DefaultConfig(),
	}
}

// Result is the outcome for one spectrum.
type Result struct {
	Index    int // Position in the input
	Spectrum *core.Spectrum
	Tweaks   []pmc.Tweak
	Tags     []taggraph.Tag
}

// Stats counts what a run did.
type Stats struct {
	Processed int
	Skipped   int
	Tags      int
}

// Pipeline scores spectra against a loaded model store.
type Pipeline struct {
	store     *modelstore.Store
	opts      Options
	log       *logger.Logger
	corrector *pmc.Corrector
	jumps     *taggraph.Jumps
}

// New creates a pipeline. The store must be fully loaded; it is not modified.
func New(store *modelstore.Store, opts Options, log *logger.Logger) *Pipeline {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Filter == nil {
		opts.Filter = filter.DefaultConfig()
	}
	return &Pipeline{
		store:     store,
		opts:      opts,
		log:       log,
		corrector: pmc.New(store, opts.PMC, log),
		jumps:     taggraph.NewJumps(opts.Mods, opts.ModPenalty),
	}
}

// prepare returns a filtered copy of spec ready for scoring.
func (p *Pipeline) prepare(spec *core.Spectrum) (*core.Spectrum, error) {
	work := spec.Clone()
	if err := p.opts.Filter.Apply(work); err != nil {
		return nil, err
	}
	if err := work.Validate(); err != nil {
		return nil, err
	}
	return work, nil
}

// Tweaks returns the parent mass and charge hypotheses of spec.
func (p *Pipeline) Tweaks(spec *core.Spectrum) ([]pmc.Tweak, error) {
	work, err := p.prepare(spec)
	if err != nil {
		return nil, err
	}
	tweaks, err := p.corrector.Tweak(work)
	if err != nil {
		return nil, fmt.Errorf("correcting %s: %w", spec.Name(), err)
	}
	return tweaks.Active(), nil
}

// Process corrects spec and generates tags for every hypothesis, merging them
// into one ranked list.
func (p *Pipeline) Process(spec *core.Spectrum) (*Result, error) {
	work, err := p.prepare(spec)
	if err != nil {
		return nil, err
	}
	tweaks, err := p.corrector.Tweak(work)
	if err != nil {
		return nil, fmt.Errorf("correcting %s: %w", spec.Name(), err)
	}

	res := &Result{Spectrum: spec, Tweaks: tweaks.Active()}
	skew, abs := p.store.SkewTables()
	graph := taggraph.New(p.opts.Tagging, skew, abs)
	var all []taggraph.Tag
	for _, tw := range res.Tweaks {
		tags, err := p.tag(graph, work, tw)
		if err != nil {
			return nil, fmt.Errorf("tagging %s at charge %d: %w", spec.Name(), tw.Charge, err)
		}
		all = append(all, tags...)
	}
	res.Tags = taggraph.Merge(all, p.opts.MaxTags)
	return res, nil
}

// tag builds the graph of one hypothesis and extracts its tags.
func (p *Pipeline) tag(graph *taggraph.Graph, work *core.Spectrum, tw pmc.Tweak) ([]taggraph.Tag, error) {
	graph.Reset()
	hyp := work.Clone()
	hyp.Charge, hyp.ParentMass = tw.Charge, tw.ParentMass

	net := p.store.TagNetwork(tw.Charge)
	ix := peakindex.New(hyp)
	if err := ix.Build(net.IndexParams(), false); err != nil {
		return nil, err
	}
	if err := graph.AddNodes(hyp, tw.ParentMass, p.opts.Mods); err != nil {
		return nil, err
	}
	if err := graph.ScoreNodes(net, ix); err != nil {
		return nil, err
	}
	if err := graph.PopulateEdges(p.jumps); err != nil {
		return nil, err
	}
	return graph.GenerateTags(p.opts.TagLength, p.opts.MaxTags)
}

// CutScores scores every cut point of an annotated spectrum's peptide at its
// file charge and parent mass.
func (p *Pipeline) CutScores(spec *core.Spectrum, db *core.ModDatabase) (*core.Peptide, []float64, error) {
	if spec.Sequence == "" {
		return nil, nil, fmt.Errorf("%s has no annotation", spec.Name())
	}
	pep, err := core.ParsePeptide(spec.Sequence, db)
	if err != nil {
		return nil, nil, err
	}
	work, err := p.prepare(spec)
	if err != nil {
		return nil, nil, err
	}
	if work.Charge == 0 {
		work.SetCharge(2)
	}
	if work.ParentMass <= 0 {
		work.ParentMass = pep.ParentMass()
	}

	net := p.store.CutNetwork(pep, work.Charge)
	ix := peakindex.New(work)
	if err := ix.Build(net.IndexParams(), false); err != nil {
		return nil, nil, err
	}
	claims := peakindex.NewClaims(len(work.Peaks))
	scores, err := net.ScorePeptide(ix, claims, pep, work.ParentMass)
	if err != nil {
		return nil, nil, err
	}
	return pep, scores, nil
}

// Run processes spectra on opts.Workers goroutines and calls emit with each
// result in input order once the run completes. A spectrum with no peaks yields
// a result with no tags; any other failure is logged and the spectrum skipped.
// Cancelling ctx stops new spectra from starting.
func (p *Pipeline) Run(ctx context.Context, spectra []*core.Spectrum, emit func(*Result) error) (Stats, error) {
	results := make([]*Result, len(spectra))
	var processed, skipped atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for i, spec := range spectra {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, err := p.Process(spec)
			if err != nil {
				skipped.Add(1)
				if errors.Is(err, core.ErrNoPeaks) {
					p.log.Debug("spectrum has no peaks", "spectrum", spec.Name())
					results[i] = &Result{Index: i, Spectrum: spec}
					return nil
				}
				p.log.Warn("spectrum failed, skipping", "spectrum", spec.Name(), "error", xerrors.New(err))
				return nil
			}
			processed.Add(1)
			res.Index = i
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	stats := Stats{
		Processed: int(processed.Load()),
		Skipped:   int(skipped.Load()),
	}
	for _, res := range results {
		if res == nil {
			continue
		}
		stats.Tags += len(res.Tags)
		if emit == nil {
			continue
		}
		if err := emit(res); err != nil {
			return stats, err
		}
	}
	p.log.Info("run finished",
		"spectra", len(spectra),
		"processed", stats.Processed,
		"skipped", stats.Skipped,
		"tags", stats.Tags,
	)
	return stats, ctx.Err()
}
