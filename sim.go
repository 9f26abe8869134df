package rwasim

// sim.go holds the discrete-event simulation that estimates the blocking
// probability.  The event list is an evtm.EventManager; every Event goes through
// the single handler handleEvent, which dispatches on the event type:
//
//   - start: route the request; schedule its end after a holding time if a path
//     was found, or a block at the current time if not; schedule the next request
//   - end: release the connection's wavelength along its path
//   - block: count the blocked request
//
// The first requests up to the warm-up count are discarded: when the request count
// first reaches it, every counter is reset once.  The run is over when the count
// after warm-up exceeds the limit; the handler then ignores whatever is still
// queued and the event manager drains.

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/DataDog/sketches-go/ddsketch"
	"github.com/iti/evt/evtm"
	"github.com/iti/evt/vrtime"

	"github.com/iti/rwasim/internal/logging"
)

var (
	// ErrHorizon is returned when the event list empties, or the time horizon
	// passes, before the request limit is reached
	ErrHorizon = errors.New("simulation stopped before the request limit")

	// ErrAlreadyRun is returned when Run is called a second time
	ErrAlreadyRun = errors.New("simulation already run")
)

// Result summarizes one simulation run.  Counts cover the requests after warm-up
type Result struct {
	Total               int     `json:"total" yaml:"total"`
	Success             int     `json:"success" yaml:"success"`
	Blocked             int     `json:"blocked" yaml:"blocked"`
	BlockingProbability float64 `json:"blockingprobability" yaml:"blockingprobability"`

	// Elapsed is the simulated time, in seconds, between warm-up and the end of the run
	Elapsed float64 `json:"elapsed" yaml:"elapsed"`

	// Events counts every event handled, warm-up included
	Events int `json:"events" yaml:"events"`

	// HopsP50 and HopsP95 are quantiles of the path length of admitted connections
	HopsP50 float64 `json:"hopsp50" yaml:"hopsp50"`
	HopsP95 float64 `json:"hopsp95" yaml:"hopsp95"`

	// MeanOccupancy is the average fraction of locked channels seen by arrivals
	MeanOccupancy float64 `json:"meanoccupancy" yaml:"meanoccupancy"`
}

// Simulation is one run of the blocking experiment over a Router
type Simulation struct {
	params SimParams
	router *Router
	evtMgr *evtm.EventManager
	ctx    context.Context

	logger   logging.Logger
	metrics  *Metrics
	traceMgr *TraceManager
	repID    int

	warmUp   int  // request count at which counters are reset
	warmed   bool // reset has happened
	finished bool // limit reached or context cancelled
	err      error

	total   int
	success int
	blocked int
	events  int

	warmTime float64
	endTime  float64

	hops       *ddsketch.DDSketch
	occupancy  float64
	occSamples int
}

// CreateSimulation is a constructor.  The router's topology must be freshly
// built, with no channel locked
func CreateSimulation(router *Router, params SimParams) (*Simulation, error) {
	if router == nil {
		return nil, fmt.Errorf("%w: nil router", ErrBadParameter)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	hops, err := ddsketch.NewDefaultDDSketch(0.01)
	if err != nil {
		return nil, err
	}

	sim := new(Simulation)
	sim.params = params
	sim.router = router
	sim.logger = logging.Noop()
	sim.hops = hops
	sim.warmUp = params.EffectiveWarmUp()

	// nothing to discard
	if sim.warmUp == 0 {
		sim.warmed = true
	}
	return sim, nil
}

// SetLogger replaces the default logger, which discards everything
func (sim *Simulation) SetLogger(logger logging.Logger) {
	if logger == nil {
		logger = logging.Noop()
	}
	sim.logger = logger
}

// SetMetrics attaches Prometheus collectors to the run
func (sim *Simulation) SetMetrics(metrics *Metrics) {
	sim.metrics = metrics
}

// SetTraceManager has the run's events recorded in tm under replication repID
func (sim *Simulation) SetTraceManager(tm *TraceManager, repID int) {
	sim.traceMgr = tm
	sim.repID = repID
}

// Router returns the router the simulation drives
func (sim *Simulation) Router() *Router {
	return sim.router
}

// Run executes the simulation and returns its Result.  A Simulation runs once.
// Cancelling ctx stops the run at the next event and Run returns ctx.Err()
func (sim *Simulation) Run(ctx context.Context) (*Result, error) {
	if sim.evtMgr != nil {
		return nil, ErrAlreadyRun
	}
	if ctx == nil {
		ctx = context.Background()
	}
	sim.ctx = ctx
	sim.evtMgr = evtm.New()

	// seed the event list with the first request
	a, b := sim.router.RandomEndpoints()
	first := sim.router.NextArrival()
	sim.schedule(startEvent(a, b, first), first)

	sim.evtMgr.Run(sim.horizon())

	if sim.err != nil {
		return nil, sim.err
	}
	if !sim.finished {
		return nil, fmt.Errorf("%w: %d of %d requests", ErrHorizon, sim.total, sim.params.Limit)
	}
	return sim.result(), nil
}

// horizon bounds the simulated time handed to the event manager.  It is far
// beyond the time the requests take to arrive; termination comes from the
// request count, not from the horizon
func (sim *Simulation) horizon() float64 {
	requests := float64(sim.params.Limit + sim.warmUp + 1)
	return 50.0*requests/sim.params.Lambda + 50.0*sim.params.DurationMean
}

// schedule puts evt on the event list, offset seconds from now
func (sim *Simulation) schedule(evt Event, offset float64) {
	sim.evtMgr.Schedule(sim, evt, handleEvent, vrtime.SecondsToTime(offset))
}

// handleEvent is the event handler for every simulation event.  The context is
// the *Simulation, the data the Event
func handleEvent(evtMgr *evtm.EventManager, cxt any, data any) any {
	sim := cxt.(*Simulation)
	evt := data.(Event)
	sim.process(evt)
	return nil
}

// process carries out the state transition for one event
func (sim *Simulation) process(evt Event) {
	if sim.finished {
		return
	}
	if err := sim.ctx.Err(); err != nil {
		sim.finished = true
		sim.err = err
		return
	}
	sim.events++

	switch evt.Type {
	case StartEvt:
		sim.arrive(evt)
	case EndEvt:
		sim.depart(evt)
	case BlockEvt:
		sim.block(evt)
	}
}

// arrive handles a connection request
func (sim *Simulation) arrive(evt Event) {
	path, wl := sim.router.MakeConnection(evt.Src, evt.Dst)
	if wl != NoWavelength {
		hold := sim.router.NextDuration()
		sim.schedule(endEvent(evt.Src, evt.Dst, evt.Time+hold, path, wl), hold)

		sim.metrics.observeAdmit(path)
		if sim.warmed {
			if err := sim.hops.Add(float64(path.Hops())); err != nil {
				sim.logger.Debug(sim.ctx, "hop count not recorded",
					logging.Int("hops", path.Hops()), logging.Err(err))
			}
		}
		admitted := Event{Type: StartEvt, Time: evt.Time, Src: evt.Src, Dst: evt.Dst, Path: path, Wavelength: wl}
		sim.trace(admitted)
	} else {
		sim.schedule(blockEvent(evt.Src, evt.Dst, evt.Time), 0.0)
		sim.metrics.observeBlock()
		sim.logger.Debug(sim.ctx, "request blocked",
			logging.Int("src", evt.Src), logging.Int("dst", evt.Dst), logging.Float("time", evt.Time))
	}

	// the next request arrives whatever happened to this one
	a, b := sim.router.RandomEndpoints()
	gap := sim.router.NextArrival()
	sim.schedule(startEvent(a, b, evt.Time+gap), gap)

	sim.total++
	if sim.warmed {
		sim.occupancy += sim.router.Occupancy()
		sim.occSamples++
	}
	sim.advance(evt.Time)
}

// depart handles the end of an admitted connection
func (sim *Simulation) depart(evt Event) {
	sim.router.RemoveConnection(evt.Path, evt.Wavelength)
	sim.success++
	sim.metrics.observeRelease()
	sim.trace(evt)
}

// block counts a request that could not be routed
func (sim *Simulation) block(evt Event) {
	sim.blocked++
	sim.trace(evt)
}

// advance applies the warm-up reset and the termination test after a request
func (sim *Simulation) advance(now float64) {
	if !sim.warmed && sim.total == sim.warmUp {
		sim.logger.Info(sim.ctx, "warm-up complete",
			logging.Int("requests", sim.total), logging.Int("blocked", sim.blocked), logging.Float("time", now))
		sim.total, sim.success, sim.blocked = 0, 0, 0
		sim.warmed = true
		sim.warmTime = now
		return
	}

	if sim.warmed && sim.total > sim.params.Limit {
		sim.finished = true
		sim.endTime = now
		sim.logger.Info(sim.ctx, "request limit reached",
			logging.Int("requests", sim.total), logging.Int("blocked", sim.blocked), logging.Float("time", now))
	}
}

func (sim *Simulation) trace(evt Event) {
	if !sim.traceMgr.Active() {
		return
	}
	sim.traceMgr.addEventTrace(sim.repID, sim.evtMgr.CurrentTime(), evt, sim.router.Occupancy())
}

// result gathers the counters into a Result
func (sim *Simulation) result() *Result {
	res := new(Result)
	res.Total = sim.total
	res.Success = sim.success
	res.Blocked = sim.blocked
	res.Events = sim.events
	res.Elapsed = sim.endTime - sim.warmTime

	if sim.total > 0 {
		res.BlockingProbability = math.Min(1.0, float64(sim.blocked)/float64(sim.total))
	}
	if sim.occSamples > 0 {
		res.MeanOccupancy = sim.occupancy / float64(sim.occSamples)
	}
	if qs, err := sim.hops.GetValuesAtQuantiles([]float64{0.50, 0.95}); err == nil {
		res.HopsP50, res.HopsP95 = qs[0], qs[1]
	}
	return res
}
