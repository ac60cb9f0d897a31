package mixer

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

type fadeTarget struct {
	id   int
	from int
	to   int
}

// Ducker lowers every playback stream except the assistant's own while the
// microphone is open, and restores them afterwards.
type Ducker struct {
	mixer *Mixer
	sleep func(time.Duration)

	mu          sync.Mutex
	active      bool
	selfNames   []string
	originalVol map[int]int
	minVolume   int
}

func NewDucker(m *Mixer, selfNames []string, minVolume int) *Ducker {
	return &Ducker{
		mixer:       m,
		sleep:       time.Sleep,
		selfNames:   append([]string(nil), selfNames...),
		originalVol: make(map[int]int),
		minVolume:   max(0, min(minVolume, maxVolume)),
	}
}

// Duck fades other streams to current*factor, never below the minimum.
// Calling it while already ducked does nothing.
func (d *Ducker) Duck(ctx context.Context, factor float64, fade time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active {
		return nil
	}

	streams, err := d.mixer.streams(ctx)
	if err != nil {
		return fmt.Errorf("list streams: %w", err)
	}

	d.originalVol = make(map[int]int)
	var targets []fadeTarget
	for _, s := range streams {
		if d.isSelf(s) {
			continue
		}
		to := math.Max(float64(s.Volume)*factor, float64(d.minVolume))
		d.originalVol[s.ID] = s.Volume
		targets = append(targets, fadeTarget{id: s.ID, from: s.Volume, to: int(math.Round(math.Min(to, maxVolume)))})
	}

	if err := d.fade(ctx, targets, fade); err != nil {
		return err
	}
	d.active = true
	return nil
}

// Restore fades ducked streams back to their original volume. Streams that
// appeared after Duck are left alone.
func (d *Ducker) Restore(ctx context.Context, fade time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.active {
		return nil
	}

	streams, err := d.mixer.streams(ctx)
	if err != nil {
		return fmt.Errorf("list streams: %w", err)
	}

	var targets []fadeTarget
	for _, s := range streams {
		orig, ok := d.originalVol[s.ID]
		if !ok || d.isSelf(s) {
			continue
		}
		targets = append(targets, fadeTarget{id: s.ID, from: s.Volume, to: orig})
	}

	if err := d.fade(ctx, targets, fade); err != nil {
		return err
	}
	d.originalVol = make(map[int]int)
	d.active = false
	return nil
}

func (d *Ducker) isSelf(s stream) bool {
	for _, name := range d.selfNames {
		if s.AppName == name {
			return true
		}
	}
	return false
}

const minStep = 10 * time.Millisecond

func (d *Ducker) fade(ctx context.Context, targets []fadeTarget, fade time.Duration) error {
	if len(targets) == 0 {
		return nil
	}

	steps := max(1, int(fade/minStep))
	if fade <= 0 {
		steps = 0
	}

	for i := 0; i <= steps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		frac := 1.0
		if steps > 0 {
			frac = float64(i) / float64(steps)
		}

		for _, t := range targets {
			v := int(math.Round(float64(t.from) + float64(t.to-t.from)*frac))
			if err := d.mixer.setStreamVolume(ctx, t.id, v); err != nil {
				return fmt.Errorf("set volume id=%d: %w", t.id, err)
			}
		}

		if i < steps {
			d.sleep(fade / time.Duration(steps))
		}
	}
	return nil
}
