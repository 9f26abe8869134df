package rwasim

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iti/rwasim/internal/logging"
)

func simParams(wavelengths, limit int) SimParams {
	params := DefaultSimParams()
	params.Wavelengths = wavelengths
	params.Limit = limit
	return params
}

func mustSimulation(t *testing.T, desc *TopoDesc, params SimParams, seed string) *Simulation {
	t.Helper()
	rtr, err := BuildExperiment(desc, params, NewSource(seed))
	require.NoError(t, err)
	sim, err := CreateSimulation(rtr, params)
	require.NoError(t, err)
	return sim
}

func TestSimulationCounts(t *testing.T) {
	params := simParams(2, 2000)
	sim := mustSimulation(t, diamondDesc(), params, "counts")

	res, err := sim.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, params.Limit+1, res.Total)
	assert.GreaterOrEqual(t, res.BlockingProbability, 0.0)
	assert.LessOrEqual(t, res.BlockingProbability, 1.0)
	assert.Greater(t, res.Success, 0)
	assert.Greater(t, res.Elapsed, 0.0)
	assert.Greater(t, res.Events, res.Total)
	// the sketch is accurate to one percent
	assert.Greater(t, res.HopsP50, 0.98)
	assert.GreaterOrEqual(t, res.HopsP95, res.HopsP50)
	assert.True(t, res.MeanOccupancy > 0 && res.MeanOccupancy <= 1)

	for _, rsrc := range sim.Router().Topology().Resources() {
		assert.LessOrEqual(t, rsrc.NumUsed(), rsrc.NumWavelengths())
	}
}

func TestSimulationAmpleCapacity(t *testing.T) {
	params := simParams(100, 3000)
	params.Lambda = 1
	sim := mustSimulation(t, makeDesc("pair", 2, [2]int{0, 1}), params, "ample")

	res, err := sim.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Blocked)
	assert.Zero(t, res.BlockingProbability)
}

// A single link with C channels is an M/M/C/C queue, whose blocking
// probability is the Erlang B formula.  With offered load 2 and two channels
// that is 0.4
func TestSimulationErlangB(t *testing.T) {
	params := simParams(2, 40000)
	params.Lambda = 4.0
	params.DurationMean = 0.5
	sim := mustSimulation(t, makeDesc("pair", 2, [2]int{0, 1}), params, "erlang")

	res, err := sim.Run(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0.4, res.BlockingProbability, 0.03)
}

func TestSimulationWarmUp(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, logging.Config{Level: "info", Format: "json"})

	params := simParams(1, 500)
	params.WarmUp = 200
	sim := mustSimulation(t, crossDesc(), params, "warmup")
	sim.SetLogger(logger)

	res, err := sim.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 501, res.Total)

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "warm-up complete"))
	assert.Equal(t, 1, strings.Count(out, "request limit reached"))
	assert.Contains(t, out, `"requests":200`)
}

func TestSimulationLongWarmUp(t *testing.T) {
	params := simParams(2, 100)
	params.WarmUp = 500
	sim := mustSimulation(t, crossDesc(), params, "long-warmup")

	res, err := sim.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 101, res.Total)
	assert.GreaterOrEqual(t, res.BlockingProbability, 0.0)
	assert.LessOrEqual(t, res.BlockingProbability, 1.0)
}

func TestSimulationNodesWithConverters(t *testing.T) {
	params := simParams(2, 1000)
	params.Placement = "nodes"
	params.Converter = true
	line := makeDesc("line", 3, [2]int{0, 1}, [2]int{1, 2})
	sim := mustSimulation(t, line, params, "nodes-converter")

	tp := sim.Router().Topology()
	require.Equal(t, OnNodes, tp.Placement())
	require.Len(t, tp.Resources(), 3)

	res, err := sim.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, params.Limit+1, res.Total)
	assert.GreaterOrEqual(t, res.BlockingProbability, 0.0)
	assert.LessOrEqual(t, res.BlockingProbability, 1.0)
	assert.Greater(t, res.Blocked, 0, "the middle node carries every two-hop request")

	for _, rsrc := range tp.Resources() {
		assert.True(t, rsrc.HasConverter())
		assert.LessOrEqual(t, rsrc.NumUsed(), rsrc.NumWavelengths())
	}
}

func TestSimulationNoWarmUp(t *testing.T) {
	// a limit below ten gives no warm-up at all
	params := simParams(1, 5)
	sim := mustSimulation(t, crossDesc(), params, "cold")
	require.True(t, sim.warmed)

	res, err := sim.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, res.Total)
}

func TestSimulationRunsOnce(t *testing.T) {
	sim := mustSimulation(t, crossDesc(), simParams(1, 50), "once")
	_, err := sim.Run(context.Background())
	require.NoError(t, err)

	_, err = sim.Run(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRun)
}

func TestSimulationCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sim := mustSimulation(t, crossDesc(), simParams(1, 50), "cancel")
	res, err := sim.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
}

func TestCreateSimulationValidation(t *testing.T) {
	_, err := CreateSimulation(nil, simParams(1, 10))
	assert.ErrorIs(t, err, ErrBadParameter)

	rtr := mustRouter(t, mustTopology(t, crossDesc(), 1, false, OnLinks))
	_, err = CreateSimulation(rtr, simParams(0, 10))
	assert.ErrorIs(t, err, ErrBadParameter)
}

func TestSimulationMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := CreateMetrics(reg)
	require.NoError(t, err)

	params := simParams(1, 300)
	params.WarmUp = 30
	sim := mustSimulation(t, makeDesc("pair", 2, [2]int{0, 1}), params, "metrics")
	sim.SetMetrics(metrics)

	res, err := sim.Run(context.Background())
	require.NoError(t, err)

	requests := testutil.ToFloat64(metrics.Requests)
	blocked := testutil.ToFloat64(metrics.Blocked)
	released := testutil.ToFloat64(metrics.Released)
	active := testutil.ToFloat64(metrics.ActiveConnections)

	assert.Equal(t, float64(params.WarmUp+res.Total), requests)
	assert.Equal(t, requests-blocked-released, active)

	link := sim.Router().Topology().Resource(0)
	assert.Equal(t, float64(link.NumUsed()), active)

	// registering again hands back the same collectors
	again, err := CreateMetrics(reg)
	require.NoError(t, err)
	assert.Equal(t, requests, testutil.ToFloat64(again.Requests))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.PathHops))
	assert.Equal(t, reg, metrics.Gatherer())
}

func TestNilMetrics(t *testing.T) {
	var metrics *Metrics
	assert.NotPanics(t, func() {
		metrics.observeAdmit(Path{Nodes: []int{0, 1}})
		metrics.observeBlock()
		metrics.observeRelease()
	})
	assert.Nil(t, metrics.Gatherer())
}

func TestSimulationTrace(t *testing.T) {
	tm := CreateTraceManager("trace", true)
	sim := mustSimulation(t, crossDesc(), simParams(1, 100), "trace")
	sim.SetTraceManager(tm, 4)

	_, err := sim.Run(context.Background())
	require.NoError(t, err)

	traces := tm.Traces[4]
	require.NotEmpty(t, traces)
	ops := map[string]bool{"start": true, "end": true, "block": true}
	for idx, ct := range traces {
		assert.True(t, ops[ct.Op], ct.Op)
		assert.NotEqual(t, ct.Src, ct.Dst)
		if idx > 0 {
			assert.GreaterOrEqual(t, ct.Time, traces[idx-1].Time)
		}
		if ct.Op == "block" {
			assert.Zero(t, ct.Wavelength)
			assert.Empty(t, ct.Path)
		} else {
			assert.NotZero(t, ct.Wavelength)
			assert.NotEmpty(t, ct.Path)
		}
	}

	filename := t.TempDir() + "/trace.yaml"
	written, err := tm.WriteToFile(filename)
	require.NoError(t, err)
	assert.True(t, written)

	idle := CreateTraceManager("idle", false)
	idle.AddTrace(0, ConnTrace{Op: "start"})
	assert.Empty(t, idle.Traces)
	written, err = idle.WriteToFile(filename)
	assert.NoError(t, err)
	assert.False(t, written)
}

func TestEventOrdering(t *testing.T) {
	early := startEvent(0, 1, 1.5)
	late := endEvent(0, 1, 2.0, Path{Nodes: []int{0, 1}, Elements: []int{0}}, 1)
	assert.True(t, early.Before(late))
	assert.False(t, late.Before(early))
	assert.False(t, early.Before(early))

	assert.Equal(t, "start", StartEvt.String())
	assert.Equal(t, "end", late.Type.String())
	assert.Equal(t, "block", blockEvent(2, 3, 0).Type.String())
	assert.Equal(t, "unknown", EventType(9).String())
}
