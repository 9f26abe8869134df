package rwasim

// resource.go holds the capacity-bearing element of the network.  Depending
// on the topology's placement a Resource sits on every link or on every node,
// and it carries the set of wavelength channels that element supports along
// with the subset currently reserved by connections

import (
	"golang.org/x/exp/slices"
)

// Wavelength identifies an optical channel.  Channels are numbered from 1
type Wavelength uint

// NoWavelength is the sentinel returned when no channel could be found
const NoWavelength Wavelength = 0

// Resource holds the wavelength inventory of one link or node
type Resource struct {
	id          int
	wavelengths map[Wavelength]bool // channels this element supports
	used        map[Wavelength]bool // channels currently locked by connections
	converter   bool                // wavelength conversion hardware present
}

// CreateResource is a constructor.  The element supports channels 1..numWavelengths
func CreateResource(id, numWavelengths int, converter bool) *Resource {
	rsrc := new(Resource)
	rsrc.id = id
	rsrc.converter = converter
	rsrc.wavelengths = make(map[Wavelength]bool)
	rsrc.used = make(map[Wavelength]bool)
	for idx := 1; idx <= numWavelengths; idx++ {
		rsrc.wavelengths[Wavelength(idx)] = true
	}
	return rsrc
}

// CreateResourceWith is a constructor for an element carrying an explicit set of
// channels.  The NoWavelength sentinel is never accepted as a channel.
func CreateResourceWith(id int, wls []Wavelength, converter bool) *Resource {
	rsrc := CreateResource(id, 0, converter)
	for _, wl := range wls {
		if wl == NoWavelength {
			continue
		}
		rsrc.wavelengths[wl] = true
	}
	return rsrc
}

// ID returns the stable identifier of the element
func (rsrc *Resource) ID() int {
	return rsrc.id
}

// HasConverter reports whether the element can shift an incoming wavelength
func (rsrc *Resource) HasConverter() bool {
	return rsrc.converter
}

// NumWavelengths is the number of channels the element supports
func (rsrc *Resource) NumWavelengths() int {
	return len(rsrc.wavelengths)
}

// NumUsed is the number of channels currently locked
func (rsrc *Resource) NumUsed() int {
	return len(rsrc.used)
}

// CanUse tells whether a connection on channel wl may pass through the element.
// A channel the element does not carry is never usable.  With a converter only
// spare capacity is required, otherwise wl itself must be free.
func (rsrc *Resource) CanUse(wl Wavelength) bool {
	if !rsrc.wavelengths[wl] {
		return false
	}
	if rsrc.converter {
		return len(rsrc.used) < len(rsrc.wavelengths)
	}
	return !rsrc.used[wl]
}

// Lock reserves channel wl, returning false (and changing nothing) when
// CanUse(wl) does not hold.  With a converter the nominal wl is what gets
// recorded, so Lock and Release must be called with the same channel.
func (rsrc *Resource) Lock(wl Wavelength) bool {
	if !rsrc.CanUse(wl) {
		return false
	}
	rsrc.used[wl] = true
	return true
}

// Release frees channel wl.  Releasing a channel that is not locked is a no-op
func (rsrc *Resource) Release(wl Wavelength) {
	delete(rsrc.used, wl)
}

// Wavelengths returns the supported channels in ascending order
func (rsrc *Resource) Wavelengths() []Wavelength {
	return sortedWavelengths(rsrc.wavelengths, nil)
}

// Used returns the locked channels in ascending order
func (rsrc *Resource) Used() []Wavelength {
	return sortedWavelengths(rsrc.used, nil)
}

// Available returns the channels that are supported but not locked, ascending
func (rsrc *Resource) Available() []Wavelength {
	return sortedWavelengths(rsrc.wavelengths, rsrc.used)
}

// sortedWavelengths lists the members of set that are not in excl, ascending
func sortedWavelengths(set, excl map[Wavelength]bool) []Wavelength {
	rtn := make([]Wavelength, 0, len(set))
	for wl := range set {
		if excl[wl] {
			continue
		}
		rtn = append(rtn, wl)
	}
	slices.Sort(rtn)
	return rtn
}
