package notify

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
)

// Chime plays a short mp3 cue when the hotword is heard.
type Chime struct {
	path string

	once    sync.Once
	initErr error
	rate    beep.SampleRate
}

func NewChime(path string) *Chime {
	return &Chime{path: path}
}

// Play blocks until the cue has finished.
func (c *Chime) Play() error {
	f, err := os.Open(c.path)
	if err != nil {
		return fmt.Errorf("open chime: %w", err)
	}

	streamer, format, err := mp3.Decode(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("decode chime: %w", err)
	}
	defer streamer.Close()

	c.once.Do(func() {
		c.rate = format.SampleRate
		c.initErr = speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10))
	})
	if c.initErr != nil {
		return fmt.Errorf("init speaker: %w", c.initErr)
	}

	var s beep.Streamer = streamer
	if format.SampleRate != c.rate {
		s = beep.Resample(4, format.SampleRate, c.rate, streamer)
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(s, beep.Callback(func() {
		close(done)
	})))
	<-done
	return nil
}
