package presence

import "time"

// DefaultFrameInterval approximates one rendering frame at 60Hz.
const DefaultFrameInterval = 16 * time.Millisecond

// Frames schedules work for the next rendering frame.
type Frames interface {
	Next(fn func()) (cancel func())
}

// TimerFrames fires frames off a wall-clock timer.
type TimerFrames struct {
	Interval time.Duration
}

func (f TimerFrames) Next(fn func()) func() {
	d := f.Interval
	if d <= 0 {
		d = DefaultFrameInterval
	}
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}
