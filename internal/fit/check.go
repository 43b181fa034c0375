package fit

import (
	"fmt"
	"time"
)

// Window is the on-screen slot for each of the three lines.
const Window = 5 * time.Second

// Verdict is the outcome of one duration check.
type Verdict struct {
	Fit       bool
	Reason    string
	Durations [3]time.Duration
	// Delays[n] is Window minus the length of line n, the silence that pads
	// line n so line n+1 starts on its window.
	Delays [2]time.Duration
}

// Check decides whether three spoken lines fit their windows. Durations are
// rounded to the millisecond first. Every line must be at most Window long and
// both padding delays must be non-negative.
func Check(durations [3]time.Duration) Verdict {
	v := Verdict{Fit: true}
	for i, d := range durations {
		v.Durations[i] = d.Round(time.Millisecond)
	}
	v.Delays[0] = Window - v.Durations[0]
	v.Delays[1] = Window - v.Durations[1]

	for i, d := range v.Durations {
		if d > Window {
			v.Fit = false
			v.Reason = fmt.Sprintf("line %d runs %dms, over the %dms window", i+1, d.Milliseconds(), Window.Milliseconds())
			return v
		}
	}
	for i, delay := range v.Delays {
		if delay < 0 {
			v.Fit = false
			v.Reason = fmt.Sprintf("delay after line %d is negative (%dms)", i+1, delay.Milliseconds())
			return v
		}
	}
	return v
}

// Milliseconds returns the rounded durations in ms for storage and logs.
func (v Verdict) Milliseconds() [3]int64 {
	return [3]int64{v.Durations[0].Milliseconds(), v.Durations[1].Milliseconds(), v.Durations[2].Milliseconds()}
}
