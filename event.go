package rwasim

// event.go defines the records that flow through the simulation's event list.
// An Event is created once, scheduled once, and consumed once when the event
// manager reaches its time

// EventType is the base type for the enumerated kinds of simulation events
type EventType int

const (
	// StartEvt is the arrival of a connection request
	StartEvt EventType = iota

	// EndEvt is the departure of an admitted connection
	EndEvt

	// BlockEvt records a request that could not be routed
	BlockEvt
)

// String returns a name for the event type, used in traces and logs
func (et EventType) String() string {
	switch et {
	case StartEvt:
		return "start"
	case EndEvt:
		return "end"
	case BlockEvt:
		return "block"
	default:
		return "unknown"
	}
}

// Event is the immutable record of one scheduled occurrence.  Src and Dst are
// the endpoints of the request; Path and Wavelength are set for EndEvt only and
// name the reservation to release
type Event struct {
	Type       EventType
	Time       float64
	Src, Dst   int
	Path       Path
	Wavelength Wavelength
}

func startEvent(src, dst int, time float64) Event {
	return Event{Type: StartEvt, Time: time, Src: src, Dst: dst}
}

func endEvent(src, dst int, time float64, path Path, wl Wavelength) Event {
	return Event{Type: EndEvt, Time: time, Src: src, Dst: dst, Path: path, Wavelength: wl}
}

func blockEvent(src, dst int, time float64) Event {
	return Event{Type: BlockEvt, Time: time, Src: src, Dst: dst}
}

// Before orders events by time
func (evt Event) Before(other Event) bool {
	return evt.Time < other.Time
}
