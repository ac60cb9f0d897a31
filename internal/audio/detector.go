package audio

import (
	"time"

	"purple/pkg/audioconv"
)

const (
	SampleRate = audioconv.SampleRate
	// frameSize is 20ms at SampleRate.
	frameSize = 320
	frameDur  = 20 * time.Millisecond

	minThreshold    = 0.015
	ambientFactor   = 1.5
	silenceDuration = 600 * time.Millisecond
	preRoll         = 10
)

type phase int

const (
	waiting phase = iota
	speaking
	done
)

// detector is an energy based endpointer over 20ms frames.
type detector struct {
	threshold float64

	waitFrames   int
	limitFrames  int
	silentFrames int

	phase   phase
	waited  int
	spoken  int
	silence int

	pre []float32
	out []float32
}

func newDetector(threshold float64, wait, phraseLimit time.Duration) *detector {
	return &detector{
		threshold:    max(threshold, minThreshold),
		waitFrames:   max(1, int(wait/frameDur)),
		limitFrames:  max(1, int(phraseLimit/frameDur)),
		silentFrames: int(silenceDuration / frameDur),
	}
}

// feed consumes one frame and reports whether capture is over.
func (d *detector) feed(frame []float32) bool {
	loud := audioconv.RMS(frame) > d.threshold

	switch d.phase {
	case waiting:
		if !loud {
			d.waited++
			d.pre = append(d.pre, frame...)
			if over := len(d.pre) - preRoll*len(frame); over > 0 {
				d.pre = d.pre[over:]
			}
			if d.waited >= d.waitFrames {
				d.phase = done
			}
			return d.phase == done
		}
		d.phase = speaking
		d.out = append(d.out, d.pre...)
		d.pre = nil
		fallthrough
	case speaking:
		d.out = append(d.out, frame...)
		d.spoken++
		if loud {
			d.silence = 0
		} else {
			d.silence++
		}
		if d.silence >= d.silentFrames || d.spoken >= d.limitFrames {
			d.phase = done
		}
	}
	return d.phase == done
}

// pcm is nil when speech never started.
func (d *detector) pcm() []float32 {
	return d.out
}

// ambient returns the threshold for a room with the given noise floor.
func ambient(rms float64) float64 {
	return max(rms*ambientFactor, minThreshold)
}
