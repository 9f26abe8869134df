package rwasim

// trace.go records the life of connection requests: admission, release, and
// blocking, with the network occupancy each event leaves behind

import (
	"github.com/iti/evt/vrtime"
)

// ConnTrace saves what happened to one connection request at one point of the
// simulation, for post-run analysis
type ConnTrace struct {
	Time       float64 `json:"time" yaml:"time"`             // simulation time in seconds
	Ticks      int64   `json:"ticks" yaml:"ticks"`           // ticks variable of time
	Op         string  `json:"op" yaml:"op"`                 // "start", "end", "block"
	Src        int     `json:"src" yaml:"src"`
	Dst        int     `json:"dst" yaml:"dst"`
	Wavelength uint    `json:"wavelength" yaml:"wavelength"` // zero when blocked
	Path       string  `json:"path" yaml:"path"`             // vertices on the path, comma separated
	Occupancy  float64 `json:"occupancy" yaml:"occupancy"`   // fraction of channels locked after the event
}

// TraceManager gathers information about an execution of the simulation.
// Traces are grouped by the replication that produced them
type TraceManager struct {
	// records are kept only when set
	InUse bool `json:"inuse" yaml:"inuse"`

	// topology or experiment the records belong to
	ExpName string `json:"expname" yaml:"expname"`

	// records in event order, by replication number
	Traces map[int][]ConnTrace `json:"traces" yaml:"traces"`
}

// CreateTraceManager is a constructor.  An inactive manager accepts every call
// and records nothing, so the simulation can trace unconditionally
func CreateTraceManager(expName string, active bool) *TraceManager {
	tm := new(TraceManager)
	tm.InUse = active
	tm.ExpName = expName
	tm.Traces = make(map[int][]ConnTrace)
	return tm
}

// Active tells the caller whether the Trace Manager is actively being used
func (tm *TraceManager) Active() bool {
	return tm != nil && tm.InUse
}

// AddTrace stores a trace record under replication repID
func (tm *TraceManager) AddTrace(repID int, trace ConnTrace) {
	if !tm.Active() {
		return
	}
	tm.Traces[repID] = append(tm.Traces[repID], trace)
}

// addEventTrace builds the record of evt at virtual time vrt and stores it
func (tm *TraceManager) addEventTrace(repID int, vrt vrtime.Time, evt Event, occupancy float64) {
	if !tm.Active() {
		return
	}
	ct := ConnTrace{
		Time:       vrt.Seconds(),
		Ticks:      vrt.Ticks(),
		Op:         evt.Type.String(),
		Src:        evt.Src,
		Dst:        evt.Dst,
		Wavelength: uint(evt.Wavelength),
		Path:       evt.Path.String(),
		Occupancy:  occupancy,
	}
	tm.AddTrace(repID, ct)
}

// WriteToFile stores the Traces struct to the file whose name is given.
// Serialization to json or to yaml is selected based on the extension of this name.
func (tm *TraceManager) WriteToFile(filename string) (bool, error) {
	if !tm.Active() {
		return false, nil
	}
	if err := writeDescFile(filename, tm); err != nil {
		return false, err
	}
	return true, nil
}
