package mixer

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// DefaultStep is the volume change per up/down request, in percent.
const DefaultStep = 10

// maxVolume caps every volume pactl is asked to set.
const maxVolume = 150

var percentRe = regexp.MustCompile(`(\d+)\s*%`)

// Runner executes pactl with args and returns its standard output.
type Runner func(ctx context.Context, args ...string) ([]byte, error)

func pactl(ctx context.Context, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, "pactl", args...).Output()
	if err != nil {
		return nil, fmt.Errorf("pactl %s: %w", strings.Join(args, " "), err)
	}
	return out, nil
}

// Mixer changes the default sink through pactl.
type Mixer struct {
	run  Runner
	step int
}

func New() *Mixer {
	return NewWith(pactl, DefaultStep)
}

func NewWith(run Runner, step int) *Mixer {
	if step <= 0 {
		step = DefaultStep
	}
	return &Mixer{run: run, step: step}
}

func (m *Mixer) Up(ctx context.Context) error {
	_, err := m.run(ctx, "set-sink-volume", "@DEFAULT_SINK@", fmt.Sprintf("+%d%%", m.step))
	return err
}

func (m *Mixer) Down(ctx context.Context) error {
	_, err := m.run(ctx, "set-sink-volume", "@DEFAULT_SINK@", fmt.Sprintf("-%d%%", m.step))
	return err
}

// Mute toggles the default sink mute state.
func (m *Mixer) Mute(ctx context.Context) error {
	_, err := m.run(ctx, "set-sink-mute", "@DEFAULT_SINK@", "toggle")
	return err
}

type stream struct {
	ID      int
	Volume  int
	AppName string
}

func (m *Mixer) streams(ctx context.Context) ([]stream, error) {
	out, err := m.run(ctx, "list", "sink-inputs")
	if err != nil {
		return nil, err
	}
	return parseSinkInputs(string(out)), nil
}

func (m *Mixer) setStreamVolume(ctx context.Context, id, percent int) error {
	percent = max(0, min(percent, maxVolume))
	_, err := m.run(ctx, "set-sink-input-volume", strconv.Itoa(id), fmt.Sprintf("%d%%", percent))
	return err
}

// parseSinkInputs reads the output of "pactl list sink-inputs". Blocks
// with neither a volume nor an application name are skipped.
func parseSinkInputs(text string) []stream {
	parts := strings.Split(text, "Sink Input #")
	if len(parts) <= 1 {
		return nil
	}

	var res []stream
	for _, block := range parts[1:] {
		head, body, ok := strings.Cut(block, "\n")
		if !ok {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSpace(head))
		if err != nil {
			continue
		}

		s := stream{ID: id}
		for _, line := range strings.Split(body, "\n") {
			line = strings.TrimSpace(line)

			if strings.HasPrefix(line, "Volume:") && s.Volume == 0 {
				if m := percentRe.FindStringSubmatch(line); m != nil {
					s.Volume, _ = strconv.Atoi(m[1])
				}
			}

			// application.name = "Firefox"
			if rest, ok := strings.CutPrefix(line, "application.name ="); ok && s.AppName == "" {
				s.AppName = strings.Trim(strings.TrimSpace(rest), `"`)
			}
		}

		if s.Volume == 0 && s.AppName == "" {
			continue
		}
		res = append(res, s)
	}
	return res
}
