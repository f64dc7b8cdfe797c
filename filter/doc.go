// Package filter is a minimal bootstrap particle filter that records its
// genealogy in a lineage.Cache.
//
// It exists to drive the cache the way a real sequential Monte Carlo
// simulator does: every step propagates the population, weights it, and
// resamples when the effective sample size drops below a threshold. Models
// plug in through the Model interface.
//
//	cache, _ := lineage.New(model.Width())
//	res, err := filter.Run(ctx, model, filter.Config{
//	    Particles:    1024,
//	    Steps:        500,
//	    ESSThreshold: 0.5,
//	    Seed:         42,
//	}, cache)
//
// Run continues from the cache's last step when the cache is not empty, so a
// run restored from a checkpoint picks up where it stopped.
package filter
