package audio

import "time"

// MinDuration is the shortest clip the classifier accepts.
const MinDuration = time.Second

// Gate rejects streams shorter than a minimum duration.
type Gate struct {
	Min time.Duration
}

// NewGate returns a Gate enforcing MinDuration.
func NewGate() *Gate {
	return &Gate{Min: MinDuration}
}

// Check returns a *TooShortError when p is shorter than the gate minimum.
func (g *Gate) Check(p *PCM) error {
	minimum := g.Min
	if minimum <= 0 {
		minimum = MinDuration
	}
	if p == nil || p.SampleRate <= 0 {
		return &TooShortError{Minimum: minimum}
	}
	// Compare in samples so a clip of exactly the minimum passes.
	need := minimum.Seconds() * float64(p.SampleRate)
	if float64(len(p.Samples)) >= need {
		return nil
	}
	return &TooShortError{Duration: p.Duration(), Minimum: minimum}
}
