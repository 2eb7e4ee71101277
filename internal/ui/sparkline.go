package ui

import "strings"

// sparkChars are eight block heights, lowest to tallest.
var sparkChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline is a fixed-capacity ring of samples rendered as block
// characters, newest on the right.
type Sparkline struct {
	samples []float64
	head    int
	count   int
}

// NewSparkline creates a sparkline holding up to capacity samples.
func NewSparkline(capacity int) *Sparkline {
	if capacity <= 0 {
		capacity = 60
	}
	return &Sparkline{samples: make([]float64, capacity)}
}

// Add appends one sample, evicting the oldest when full.
func (s *Sparkline) Add(value float64) {
	if value < 0 {
		value = 0
	}
	s.samples[s.head] = value
	s.head = (s.head + 1) % len(s.samples)
	s.count++
}

// Count returns how many samples have been added.
func (s *Sparkline) Count() int {
	return s.count
}

// Clear drops all samples.
func (s *Sparkline) Clear() {
	for i := range s.samples {
		s.samples[i] = 0
	}
	s.head = 0
	s.count = 0
}

// Render draws the most recent samples into width cells, oldest first.
// While the line is filling, unused cells on the right stay blank.
func (s *Sparkline) Render(width int) string {
	if width <= 0 {
		width = len(s.samples)
	}

	held := s.count
	if held > len(s.samples) {
		held = len(s.samples)
	}
	shown := held
	if shown > width {
		shown = width
	}

	// Scale against the max of the shown window so short bursts still
	// produce visible bars.
	var max float64
	for i := 0; i < shown; i++ {
		if v := s.at(held - shown + i); v > max {
			max = v
		}
	}

	var sb strings.Builder
	sb.Grow(width * 3)
	for i := 0; i < shown; i++ {
		v := s.at(held - shown + i)
		idx := 0
		if max > 0 {
			idx = int(v / max * float64(len(sparkChars)-1))
			if idx >= len(sparkChars) {
				idx = len(sparkChars) - 1
			}
		}
		sb.WriteRune(sparkChars[idx])
	}
	for i := shown; i < width; i++ {
		sb.WriteRune(' ')
	}
	return sb.String()
}

// at returns the i-th oldest held sample.
func (s *Sparkline) at(i int) float64 {
	if s.count < len(s.samples) {
		return s.samples[i]
	}
	return s.samples[(s.head+i)%len(s.samples)]
}
