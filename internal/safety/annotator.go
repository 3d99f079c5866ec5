// Package safety derives a route-level risk score from crime scores sampled
// along the route geometry.
package safety

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/saferoute/saferoute/internal/crime"
	"github.com/saferoute/saferoute/internal/telemetry"
)

// ErrNoSamples is returned when every sampled lookup failed.
var ErrNoSamples = errors.New("no crime samples available for route")

const (
	// DefaultSamples is the number of points sampled along a route.
	DefaultSamples = 10

	// DefaultConcurrency bounds parallel crime lookups for one route.
	DefaultConcurrency = 10

	// DefaultSampleTimeout bounds one crime lookup.
	DefaultSampleTimeout = 10 * time.Second
)

// Sampler selects how sampled points are scored.
type Sampler string

const (
	// SamplerFeed queries the crime service for every sampled point.
	SamplerFeed Sampler = "feed"
	// SamplerRandom assigns each sample a uniform random score in [0, 100]
	// without any network call. Kept for demo compatibility.
	SamplerRandom Sampler = "random"
)

// ScoreSource returns the crime snapshot for a coordinate.
type ScoreSource interface {
	ScoreAt(ctx context.Context, lat, lng float64) (*crime.Snapshot, error)
}

// Config holds configuration for the annotator.
type Config struct {
	// Source provides per-point crime scores. Required for SamplerFeed.
	Source ScoreSource

	// Sampler selects feed or random scoring (default: feed).
	Sampler Sampler

	// Concurrency bounds parallel lookups (default and maximum: 10).
	Concurrency int

	// SampleTimeout bounds each lookup (default: 10 seconds).
	SampleTimeout time.Duration

	// Logger for annotator operations.
	Logger zerolog.Logger

	// Metrics is optional.
	Metrics *telemetry.Metrics
}

// Annotator scores routes by sampling crime data along them.
type Annotator struct {
	source        ScoreSource
	sampler       Sampler
	concurrency   int
	sampleTimeout time.Duration
	logger        zerolog.Logger
	metrics       *telemetry.Metrics
	randScore     func() int
}

// Assessment is the outcome of annotating one route.
type Assessment struct {
	RiskScore int
	Sampled   int // points queried
	Failed    int // points whose lookup failed and were excluded
}

// NewAnnotator creates a new route safety annotator.
func NewAnnotator(cfg Config) *Annotator {
	sampler := cfg.Sampler
	if sampler != SamplerRandom {
		sampler = SamplerFeed
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 || concurrency > DefaultConcurrency {
		concurrency = DefaultConcurrency
	}

	sampleTimeout := cfg.SampleTimeout
	if sampleTimeout == 0 {
		sampleTimeout = DefaultSampleTimeout
	}

	return &Annotator{
		source:        cfg.Source,
		sampler:       sampler,
		concurrency:   concurrency,
		sampleTimeout: sampleTimeout,
		logger:        cfg.Logger,
		metrics:       cfg.Metrics,
		randScore:     func() int { return rand.IntN(101) },
	}
}

// Annotate returns the route risk score in [0, 100].
func (a *Annotator) Annotate(ctx context.Context, geometry orb.LineString, numSamples int) (int, error) {
	assessment, err := a.Assess(ctx, geometry, numSamples)
	if err != nil {
		return 0, err
	}
	return assessment.RiskScore, nil
}

// Assess samples up to numSamples points along geometry at a fixed stride,
// scores them concurrently and averages the successful scores.
func (a *Annotator) Assess(ctx context.Context, geometry orb.LineString, numSamples int) (*Assessment, error) {
	if numSamples <= 0 {
		numSamples = DefaultSamples
	}

	indices := SampleIndices(len(geometry), numSamples)
	if len(indices) == 0 {
		return nil, ErrNoSamples
	}

	scores := make([]int, len(indices))
	ok := make([]bool, len(indices))

	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for i, idx := range indices {
		p := geometry[idx]
		g.Go(func() error {
			score, err := a.scorePoint(ctx, p)
			a.metrics.SafetySample(ctx, err == nil)
			if err != nil {
				a.logger.Debug().Err(err).
					Float64("lat", p.Lat()).
					Float64("lng", p.Lon()).
					Msg("crime sample failed, excluding from average")
				return nil
			}
			scores[i], ok[i] = score, true
			return nil
		})
	}
	_ = g.Wait()

	var sum, n int
	for i := range scores {
		if ok[i] {
			sum += scores[i]
			n++
		}
	}

	assessment := &Assessment{Sampled: len(indices), Failed: len(indices) - n}
	if n == 0 {
		a.logger.Warn().
			Int("samples", len(indices)).
			Msg("all crime samples failed")
		return assessment, ErrNoSamples
	}

	assessment.RiskScore = crime.Clamp100(int(math.Round(float64(sum) / float64(n))))

	a.logger.Debug().
		Str("sampler", string(a.sampler)).
		Int("samples", len(indices)).
		Int("failed", assessment.Failed).
		Int("risk_score", assessment.RiskScore).
		Msg("route annotated")

	return assessment, nil
}

func (a *Annotator) scorePoint(ctx context.Context, p orb.Point) (int, error) {
	if a.sampler == SamplerRandom {
		return a.randScore(), nil
	}
	if a.source == nil {
		return 0, errors.New("no crime score source configured")
	}

	ctx, cancel := context.WithTimeout(ctx, a.sampleTimeout)
	defer cancel()

	snap, err := a.source.ScoreAt(ctx, p.Lat(), p.Lon())
	if err != nil {
		return 0, err
	}
	return crime.Clamp100(snap.CrimeScore), nil
}

// SampleIndices returns the geometry indices sampled for a route of length n:
// 0, stride, 2*stride, ... with stride = max(1, n/samples), at most samples of them.
func SampleIndices(n, samples int) []int {
	if n <= 0 || samples <= 0 {
		return nil
	}
	stride := max(1, n/samples)

	indices := make([]int, 0, min(n, samples))
	for i := 0; i < n && len(indices) < samples; i += stride {
		indices = append(indices, i)
	}
	return indices
}
