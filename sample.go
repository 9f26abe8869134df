package rwasim

// sample.go has the random variate generation used to drive connection requests.
// Every draw starts from a U(0,1) sample of a Source; the RngStream of
// github.com/iti/rngstream is the Source used outside of tests

import (
	"github.com/iti/rngstream"
	"gonum.org/v1/gonum/stat/distuv"
)

// Source supplies uniform samples on (0,1)
type Source interface {
	RandU01() float64
}

// NewSource returns a named rngstream.  Streams created in the same order with the
// same names reproduce the same sequence of samples
func NewSource(name string) Source {
	return rngstream.New(name)
}

// uniformIndex returns an integer uniformly distributed on [0,n)
func uniformIndex(rng Source, n int) int {
	idx := int(rng.RandU01() * float64(n))
	if idx >= n {
		idx = n - 1
	}
	return idx
}

// expRV returns a sample of an exponentially distributed random number with the
// given rate, by inversion of the U01 sample
func expRV(u01, rate float64) float64 {
	return distuv.Exponential{Rate: rate}.Quantile(u01)
}
