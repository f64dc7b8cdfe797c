package filter

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/hupe1980/lineage"
)

// ErrInvalidConfig is returned for unusable run configurations.
var ErrInvalidConfig = errors.New("filter: invalid config")

// Config configures Run.
type Config struct {
	// Particles is the population size.
	Particles int

	// Steps is the number of steps to run.
	Steps int

	// ESSThreshold resamples when ESS < ESSThreshold * Particles.
	// 1 resamples every step, 0 never does.
	ESSThreshold float64

	// Seed seeds the PCG generator.
	Seed uint64

	// Resampler defaults to Systematic.
	Resampler Resampler

	// Logger defaults to a no-op logger.
	Logger *lineage.Logger

	// OnStep, if set, is called after each step is recorded in the cache.
	OnStep func(Step) error
}

// Step summarizes one filter step.
type Step struct {
	T         int
	ESS       float64
	Resampled bool
}

// Result summarizes a run.
type Result struct {
	Steps         int
	Resamples     int
	LogLikelihood float64 // log marginal likelihood estimate of the steps run
	ESS           float64 // effective sample size after the last step
	Weights       []float64
}

func (cfg *Config) validate(m Model, c *lineage.Cache) error {
	if cfg.Particles <= 0 {
		return fmt.Errorf("%w: particles must be positive, got %d", ErrInvalidConfig, cfg.Particles)
	}
	if cfg.Steps < 0 {
		return fmt.Errorf("%w: steps must not be negative, got %d", ErrInvalidConfig, cfg.Steps)
	}
	if cfg.ESSThreshold < 0 || cfg.ESSThreshold > 1 {
		return fmt.Errorf("%w: ess threshold %g outside [0, 1]", ErrInvalidConfig, cfg.ESSThreshold)
	}
	if m.Width() != c.Width() {
		return fmt.Errorf("%w: model width %d, cache width %d", ErrInvalidConfig, m.Width(), c.Width())
	}
	if c.Size() > 0 && c.Particles() != cfg.Particles {
		return fmt.Errorf("%w: cache holds %d particles, config %d", ErrInvalidConfig, c.Particles(), cfg.Particles)
	}
	return nil
}

// Run runs cfg.Steps steps of a bootstrap particle filter for m and writes
// every step to c. A non-empty cache is continued from its last states with
// uniform weights.
func Run(ctx context.Context, m Model, cfg Config, c *lineage.Cache) (*Result, error) {
	if err := cfg.validate(m, c); err != nil {
		return nil, err
	}
	if cfg.Resampler == nil {
		cfg.Resampler = Systematic{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = lineage.NoopLogger()
	}

	var (
		p     = cfg.Particles
		width = m.Width()
		rng   = rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))

		x         = make([]float64, p*width)
		next      = make([]float64, p*width)
		logw      = make([]float64, p)
		w         = make([]float64, p)
		ancestors = make([]int, p)
		res       = &Result{Weights: w}
	)

	start := c.Size()
	for i := 0; i < p && start > 0; i++ {
		c.ReadState(i, x[i*width:(i+1)*width])
	}
	normalize(logw, w)
	res.ESS = float64(p)

	for t := start; t < start+cfg.Steps; t++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		var (
			resampled bool
			anc       []int
		)
		if t == 0 {
			for i := 0; i < p; i++ {
				m.Init(rng, x[i*width:(i+1)*width])
			}
		} else {
			if cfg.ESSThreshold >= 1 || res.ESS < cfg.ESSThreshold*float64(p) {
				cfg.Resampler.Resample(rng, w, ancestors)
				for i, a := range ancestors {
					copy(next[i*width:(i+1)*width], x[a*width:(a+1)*width])
				}
				x, next = next, x
				clear(logw)
				resampled = true
				res.Resamples++
			} else {
				for i := range ancestors {
					ancestors[i] = i
				}
			}
			anc = ancestors

			for i := 0; i < p; i++ {
				m.Propagate(rng, t, x[i*width:(i+1)*width])
			}
		}

		// Incremental likelihood: log sum_i W_{t-1,i} g_t(x_i).
		prev := logSumExp(logw)
		for i := 0; i < p; i++ {
			logw[i] += m.LogWeight(t, x[i*width:(i+1)*width])
		}
		if inc := normalize(logw, w); math.IsInf(inc, -1) || math.IsInf(prev, -1) {
			res.LogLikelihood = math.Inf(-1)
		} else {
			res.LogLikelihood += inc - prev
		}
		res.ESS = ess(w)

		c.WriteState(t, x, anc, resampled)
		res.Steps++

		logger.DebugContext(ctx, "filter step", "t", t, "ess", res.ESS, "resampled", resampled)

		if cfg.OnStep != nil {
			if err := cfg.OnStep(Step{T: t, ESS: res.ESS, Resampled: resampled}); err != nil {
				return res, err
			}
		}
	}

	if math.IsInf(res.LogLikelihood, -1) {
		logger.WarnContext(ctx, "all particle weights collapsed to zero")
	}
	return res, nil
}

func logSumExp(v []float64) float64 {
	maxV := math.Inf(-1)
	for _, x := range v {
		maxV = max(maxV, x)
	}
	if math.IsInf(maxV, -1) {
		return maxV
	}
	var sum float64
	for _, x := range v {
		sum += math.Exp(x - maxV)
	}
	return maxV + math.Log(sum)
}
