package rwasim

// desc-exp.go holds the serializable description of a simulation experiment:
// the traffic statistics, the run length, and the wavelength inventory given to
// every Resource of the topology

import (
	"fmt"
)

// SimParams describes one experiment
type SimParams struct {
	// Lambda is the arrival rate of connection requests, per second
	Lambda float64 `json:"lambda" yaml:"lambda"`

	// DurationMean is the mean holding time of a connection, in seconds
	DurationMean float64 `json:"duration" yaml:"duration"`

	// Limit is the number of connection requests observed after warm-up
	Limit int `json:"limit" yaml:"limit"`

	// WarmUp is the number of requests discarded before observation starts.
	// Zero selects ten percent of Limit
	WarmUp int `json:"warmup" yaml:"warmup"`

	// Wavelengths is the number of channels of every Resource
	Wavelengths int `json:"wavelengths" yaml:"wavelengths"`

	// Converter gives every Resource wavelength conversion
	Converter bool `json:"converter" yaml:"converter"`

	// Placement is "links" (the default) or "nodes"
	Placement string `json:"placement" yaml:"placement"`

	// Seed names the random number streams of the experiment
	Seed string `json:"seed" yaml:"seed"`

	// Replications is the number of independent runs, at least one
	Replications int `json:"replications" yaml:"replications"`
}

// DefaultSimParams returns the parameters used when none are given.  The
// wavelength count has no default and must be set
func DefaultSimParams() SimParams {
	return SimParams{
		Lambda:       5.0,
		DurationMean: 1.0,
		Limit:        8000,
		Placement:    OnLinks.String(),
		Seed:         "rwasim",
		Replications: 1,
	}
}

// Validate checks every parameter against its domain
func (sp *SimParams) Validate() error {
	if !(sp.Lambda > 0) {
		return fmt.Errorf("%w: lambda %v must be positive", ErrBadParameter, sp.Lambda)
	}
	if !(sp.DurationMean > 0) {
		return fmt.Errorf("%w: mean duration %v must be positive", ErrBadParameter, sp.DurationMean)
	}
	if sp.Limit < 1 {
		return fmt.Errorf("%w: limit %d must be positive", ErrBadParameter, sp.Limit)
	}
	if sp.WarmUp < 0 {
		return fmt.Errorf("%w: warm-up %d must not be negative", ErrBadParameter, sp.WarmUp)
	}
	if sp.Wavelengths < 1 {
		return fmt.Errorf("%w: wavelength count %d must be positive", ErrBadParameter, sp.Wavelengths)
	}
	if placementFromStr(sp.Placement) == unknownPlacement {
		return fmt.Errorf("%w: unknown placement %q", ErrBadParameter, sp.Placement)
	}
	if sp.Replications < 0 {
		return fmt.Errorf("%w: replications %d", ErrBadParameter, sp.Replications)
	}
	return nil
}

// EffectiveWarmUp is the number of requests discarded before observation
func (sp *SimParams) EffectiveWarmUp() int {
	if sp.WarmUp > 0 {
		return sp.WarmUp
	}
	return sp.Limit / 10
}

// ResourcePlacement returns the Placement named by the parameters
func (sp *SimParams) ResourcePlacement() Placement {
	return placementFromStr(sp.Placement)
}

// WriteToFile stores the SimParams struct to the file whose name is given.
// Serialization to json or to yaml is selected based on the extension of this name.
func (sp *SimParams) WriteToFile(filename string) error {
	return writeDescFile(filename, sp)
}

// ReadSimParams deserializes a byte slice holding a representation of a SimParams
// struct, reading it from the named file if dict is empty.  Fields missing from
// the input keep their DefaultSimParams values
func ReadSimParams(filename string, useYAML bool, dict []byte) (*SimParams, error) {
	example := DefaultSimParams()
	if err := readDescFile(filename, useYAML, dict, &example); err != nil {
		return nil, err
	}
	return &example, nil
}
