// Package pipeline turns labelled sample photographs into feature rows and
// single uploads into cropped sample regions.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/MeKo-Tech/teavision/internal/features"
	"github.com/MeKo-Tech/teavision/internal/utils"
)

// Batch errors.
var (
	ErrNoSources     = errors.New("no images uploaded")
	ErrNoValidImages = errors.New("no valid images found")
	ErrUnlabelled    = errors.New("file name is not REGION_GROUP_xxx with a known group")
)

// Source is one image of a batch. Data takes precedence over Path.
type Source struct {
	Name string
	Path string
	Data []byte
}

func (s Source) load() (*utils.Buffer, error) {
	if s.Data != nil {
		return utils.DecodeImage(s.Data)
	}
	return utils.LoadImage(s.Path)
}

// Sample is an extracted, labelled feature row.
type Sample struct {
	Source   string
	Label    features.Label
	Features features.Vector
}

// ExtractorConfig controls per-image extraction.
type ExtractorConfig struct {
	Width      int `mapstructure:"width" yaml:"width" json:"width"`
	Height     int `mapstructure:"height" yaml:"height" json:"height"`
	LBPWorkers int `mapstructure:"lbp_workers" yaml:"lbp_workers" json:"lbp_workers"`
}

// DefaultExtractorConfig resizes to the 224x224 training resolution.
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{Width: 224, Height: 224, LBPWorkers: 1}
}

// Extractor computes feature vectors at a fixed resolution.
type Extractor struct {
	cfg ExtractorConfig
}

// NewExtractor creates an Extractor, filling zero fields from the defaults.
func NewExtractor(cfg ExtractorConfig) *Extractor {
	def := DefaultExtractorConfig()
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = def.Width, def.Height
	}
	if cfg.LBPWorkers <= 0 {
		cfg.LBPWorkers = def.LBPWorkers
	}
	return &Extractor{cfg: cfg}
}

// Features resizes buf and extracts its vector.
func (e *Extractor) Features(buf *utils.Buffer) (features.Vector, error) {
	if err := buf.Validate(utils.BGR); err != nil {
		return features.Vector{}, err
	}
	resized := buf.Resize(e.cfg.Width, e.cfg.Height)
	return features.ExtractWithOptions(resized, features.Options{LBPWorkers: e.cfg.LBPWorkers})
}

// Sample labels and extracts one source. Sources whose names carry no
// label yield ErrUnlabelled without being decoded.
func (e *Extractor) Sample(src Source) (*Sample, error) {
	name := src.Name
	if name == "" {
		name = src.Path
	}
	label, ok := features.ParseLabel(name)
	if !ok {
		return nil, ErrUnlabelled
	}
	buf, err := src.load()
	if err != nil {
		return nil, err
	}
	vec, err := e.Features(buf)
	if err != nil {
		return nil, err
	}
	return &Sample{Source: name, Label: label, Features: vec}, nil
}

// BatchConfig configures Run.
type BatchConfig struct {
	Workers  int              // 0 = runtime.NumCPU()
	Progress ProgressCallback // optional
}

// Skipped records a source left out of the batch.
type Skipped struct {
	Index  int
	Source string
	Err    error
}

// BatchResult holds the ordered samples of a batch.
type BatchResult struct {
	Samples  []Sample
	Skipped  []Skipped
	Workers  int
	Duration time.Duration
}

// Throughput returns extracted samples per second.
func (r *BatchResult) Throughput() float64 {
	if r.Duration <= 0 {
		return 0
	}
	return float64(len(r.Samples)) / r.Duration.Seconds()
}

type job struct {
	index int
	src   Source
}

type result struct {
	index  int
	sample *Sample
	err    error
}

// Run extracts all sources with a worker pool. Samples keep the input order.
// Undecodable or unlabelled sources are skipped; a batch without any sample
// returns ErrNoValidImages alongside the result.
func (e *Extractor) Run(ctx context.Context, sources []Source, cfg BatchConfig) (*BatchResult, error) {
	if len(sources) == 0 {
		return nil, ErrNoSources
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	cfg.Workers = min(cfg.Workers, len(sources))
	progress := cfg.Progress
	if progress == nil {
		progress = NoOpProgressCallback{}
	}

	start := time.Now()
	progress.OnStart(len(sources))
	defer progress.OnComplete()

	jobs := make(chan job)
	results := make(chan result, cfg.Workers)

	var wg sync.WaitGroup
	for range cfg.Workers {
		wg.Add(1)
		go e.worker(ctx, jobs, results, &wg)
	}

	go func() {
		defer close(jobs)
		for i, src := range sources {
			select {
			case jobs <- job{index: i, src: src}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]result, len(sources))
	done := 0
	for r := range results {
		ordered[r.index] = r
		done++
		if r.err != nil {
			progress.OnError(r.index, sourceName(sources[r.index]), r.err)
		}
		progress.OnProgress(done, len(sources))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &BatchResult{Workers: cfg.Workers}
	for i, r := range ordered {
		if r.err != nil {
			out.Skipped = append(out.Skipped, Skipped{Index: i, Source: sourceName(sources[i]), Err: r.err})
			continue
		}
		out.Samples = append(out.Samples, *r.sample)
	}
	out.Duration = time.Since(start)

	if len(out.Samples) == 0 {
		return out, ErrNoValidImages
	}
	return out, nil
}

func (e *Extractor) worker(ctx context.Context, jobs <-chan job, results chan<- result, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case j, ok := <-jobs:
			if !ok {
				return
			}
			s, err := e.Sample(j.src)
			if err != nil {
				err = fmt.Errorf("%s: %w", sourceName(j.src), err)
			}
			select {
			case results <- result{index: j.index, sample: s, err: err}:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func sourceName(s Source) string {
	if s.Name != "" {
		return s.Name
	}
	return s.Path
}
