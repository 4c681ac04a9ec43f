// Package benchmark times the stages of the image pipeline on real inputs.
package benchmark

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"slices"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/MeKo-Tech/teavision/internal/circle"
	"github.com/MeKo-Tech/teavision/internal/classify"
	"github.com/MeKo-Tech/teavision/internal/crop"
	"github.com/MeKo-Tech/teavision/internal/pipeline"
	"github.com/MeKo-Tech/teavision/internal/utils"
)

// MemoryStats holds memory usage statistics.
type MemoryStats struct {
	AllocBytes      uint64 // Currently allocated bytes
	TotalAllocBytes uint64 // Total allocated bytes (cumulative)
	NumGC           uint32
}

// GetMemoryStats returns current memory statistics.
func GetMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemoryStats{AllocBytes: m.Alloc, TotalAllocBytes: m.TotalAlloc, NumGC: m.NumGC}
}

// Stage is one timed step.
type Stage struct {
	Name string
	Func func(ctx context.Context) error
}

// Result summarises the iterations of one stage.
type Result struct {
	Name       string
	Iterations int
	Total      time.Duration
	Min        time.Duration
	Median     time.Duration
	Max        time.Duration
	// AllocPerOp is the mean number of bytes allocated per iteration.
	AllocPerOp uint64
	Err        error
}

// Mean returns the mean iteration time.
func (r Result) Mean() time.Duration {
	if r.Iterations == 0 {
		return 0
	}
	return r.Total / time.Duration(r.Iterations)
}

// String returns a one-line summary.
func (r Result) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: ERROR - %v", r.Name, r.Err)
	}
	return fmt.Sprintf("%s: %d iterations, mean: %v, median: %v, min: %v, max: %v, alloc: %d KB/op",
		r.Name, r.Iterations, r.Mean(), r.Median, r.Min, r.Max, r.AllocPerOp/1024)
}

// Suite runs stages in registration order.
type Suite struct {
	stages  []Stage
	results []Result
	mu      sync.Mutex
}

// NewSuite creates an empty suite.
func NewSuite() *Suite {
	return &Suite{}
}

// Add appends a stage.
func (s *Suite) Add(name string, fn func(ctx context.Context) error) {
	s.stages = append(s.stages, Stage{Name: name, Func: fn})
}

// Names returns the registered stage names.
func (s *Suite) Names() []string {
	names := make([]string, len(s.stages))
	for i, st := range s.stages {
		names[i] = st.Name
	}
	return names
}

// RunAll runs every stage iterations times. A failing stage stops at its
// first error; the remaining stages still run.
func (s *Suite) RunAll(ctx context.Context, iterations int) []Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results = make([]Result, 0, len(s.stages))
	for _, st := range s.stages {
		if ctx.Err() != nil {
			s.results = append(s.results, Result{Name: st.Name, Err: ctx.Err()})
			continue
		}
		s.results = append(s.results, runStage(ctx, st, iterations))
	}
	return slices.Clone(s.results)
}

// Results returns the results of the last RunAll.
func (s *Suite) Results() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.results)
}

func runStage(ctx context.Context, st Stage, iterations int) Result {
	if iterations <= 0 {
		return Result{Name: st.Name, Err: errors.New("iterations must be positive")}
	}

	runtime.GC()
	before := GetMemoryStats()

	times := make([]time.Duration, 0, iterations)
	res := Result{Name: st.Name}
	for range iterations {
		start := time.Now()
		if err := st.Func(ctx); err != nil {
			res.Err = err
			break
		}
		times = append(times, time.Since(start))
	}
	after := GetMemoryStats()

	res.Iterations = len(times)
	if len(times) == 0 {
		return res
	}
	for _, d := range times {
		res.Total += d
	}
	slices.Sort(times)
	res.Min, res.Max = times[0], times[len(times)-1]
	res.Median = times[len(times)/2]
	res.AllocPerOp = (after.TotalAllocBytes - before.TotalAllocBytes) / uint64(len(times))
	return res
}

// WriteTable renders results as an aligned table.
func WriteTable(w io.Writer, results []Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "STAGE\tITER\tMEAN\tMEDIAN\tMIN\tMAX\tALLOC/OP")
	for _, r := range results {
		if r.Err != nil {
			_, _ = fmt.Fprintf(tw, "%s\t%d\terror: %v\t\t\t\t\n", r.Name, r.Iterations, r.Err)
			continue
		}
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%v\t%v\t%v\t%v\t%d KB\n", r.Name, r.Iterations,
			r.Mean().Round(time.Microsecond), r.Median.Round(time.Microsecond),
			r.Min.Round(time.Microsecond), r.Max.Round(time.Microsecond), r.AllocPerOp/1024)
	}
	return tw.Flush()
}

// PipelineConfig holds the components timed by NewPipelineSuite.
// Classifier is optional; without it the predict stage is left out.
type PipelineConfig struct {
	Locator    circle.Locator
	Remover    *crop.ReflectionRemover
	Extractor  *pipeline.Extractor
	Classifier *classify.Adapter
	Model      string
	Seed       uint64
}

// NewPipelineSuite registers the locate, crop, features and predict stages
// for one decoded image.
func NewPipelineSuite(buf *utils.Buffer, cfg PipelineConfig) (*Suite, error) {
	if err := buf.Validate(utils.BGR); err != nil {
		return nil, err
	}
	if cfg.Locator == nil || cfg.Remover == nil || cfg.Extractor == nil {
		return nil, errors.New("benchmark: locator, remover and extractor are required")
	}

	s := NewSuite()
	s.Add("locate", func(context.Context) error {
		if _, ok := cfg.Locator.Locate(buf); !ok {
			return pipeline.ErrNoSampleRegion
		}
		return nil
	})
	s.Add("crop", func(context.Context) error {
		_, err := pipeline.CropSample(buf, cfg.Locator, crop.NewSeededCropper(cfg.Remover, cfg.Seed))
		return err
	})
	s.Add("features", func(context.Context) error {
		_, err := cfg.Extractor.Features(buf)
		return err
	})
	if cfg.Classifier != nil {
		vec, err := cfg.Extractor.Features(buf)
		if err != nil {
			return nil, err
		}
		s.Add("predict", func(context.Context) error {
			_, err := cfg.Classifier.PredictVector(cfg.Model, vec)
			return err
		})
	}
	return s, nil
}
