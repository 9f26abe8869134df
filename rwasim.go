// Package rwasim estimates the call-blocking probability of a wavelength-routed
// optical network.  Connection requests arrive as a Poisson process between
// random node pairs; each is given a path and a wavelength that every link (or
// node) on the path can carry, holds them for an exponentially distributed time,
// and releases them.  Requests for which no such path exists are blocked.
package rwasim

// rwasim.go has the code that assembles an experiment from its descriptions and
// runs its replications

import (
	"context"
	"fmt"
	"math"

	"github.com/aclements/go-moremath/stats"
	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/iti/rwasim/internal/logging"
)

// BuildExperiment creates the Topology described by desc, with the Resources the
// parameters call for, and a Router over it drawing from rng
func BuildExperiment(desc *TopoDesc, params SimParams, rng Source) (*Router, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	topo, err := CreateTopology(desc, params.Wavelengths, params.Converter, params.ResourcePlacement())
	if err != nil {
		return nil, err
	}
	return CreateRouter(topo, params.Lambda, params.DurationMean, rng)
}

// checkConnections reports the vertices that cannot reach vertex 0 even with
// every channel free.  Requests between them and the rest are always blocked
func checkConnections(topo *Topology) []int {
	missed := []int{}
	for _, cc := range topo.Components() {
		if cc[0] != 0 {
			missed = append(missed, cc...)
		}
	}
	slices.Sort(missed)
	return missed
}

// Summary gathers the results of the replications of one experiment
type Summary struct {
	Results []*Result `json:"results" yaml:"results"`

	// Mean and StdDev are the sample mean and standard deviation of the
	// replications' blocking probabilities
	Mean   float64 `json:"mean" yaml:"mean"`
	StdDev float64 `json:"stddev" yaml:"stddev"`

	// HalfWidth is the half-width of the 95% confidence interval on Mean
	HalfWidth float64 `json:"halfwidth" yaml:"halfwidth"`
}

// Experiment bundles what RunReplications needs beyond the parameters.  Any of
// the fields may be left nil
type Experiment struct {
	Logger   logging.Logger
	Metrics  *Metrics
	TraceMgr *TraceManager
}

// RunReplications runs params.Replications independent simulations of the topology
// desc.  Each replication builds its own Topology and draws from its own random
// number stream, named after params.Seed and the replication number
func RunReplications(ctx context.Context, desc *TopoDesc, params SimParams, exp Experiment) (*Summary, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	logger := exp.Logger
	if logger == nil {
		logger = logging.Noop()
	}

	reps := params.Replications
	if reps < 1 {
		reps = 1
	}

	summary := new(Summary)
	sample := stats.Sample{}
	for repID := 0; repID < reps; repID++ {
		rng := NewSource(fmt.Sprintf("%s-%d", params.Seed, repID))
		router, err := BuildExperiment(desc, params, rng)
		if err != nil {
			return nil, err
		}
		if repID == 0 {
			if missed := checkConnections(router.Topology()); len(missed) > 0 {
				logger.Warn(ctx, "topology is not connected",
					logging.Int("unreachable", len(missed)), logging.Any("nodes", missed))
			}
		}

		sim, err := CreateSimulation(router, params)
		if err != nil {
			return nil, err
		}
		sim.SetLogger(logger.With(logging.Int("replication", repID)))
		sim.SetMetrics(exp.Metrics)
		sim.SetTraceManager(exp.TraceMgr, repID)

		res, err := sim.Run(ctx)
		if err != nil {
			return nil, fmt.Errorf("replication %d: %w", repID, err)
		}
		summary.Results = append(summary.Results, res)
		sample.Xs = append(sample.Xs, res.BlockingProbability)
	}

	summary.Mean = sample.Mean()
	if len(sample.Xs) > 1 {
		summary.StdDev = sample.StdDev()
		n := float64(len(sample.Xs))
		tq := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: n - 1}.Quantile(0.975)
		summary.HalfWidth = tq * summary.StdDev / math.Sqrt(n)
	}
	return summary, nil
}
