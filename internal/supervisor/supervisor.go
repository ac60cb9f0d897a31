package supervisor

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"time"
)

var ErrLaunchDenied = errors.New("launch denied")

// Signature identifies an assistant instance by its command line: one or
// more argv words (binary path, or interpreter plus script) that must appear
// in order. The first word may also match as a trailing path component, so
// "thara/main.py" matches "/home/u/thara/main.py" but "/opt/purple" never
// matches "/opt/purple-ctl".
type Signature string

type Proc struct {
	PID     int32
	Name    string
	Cmdline string
	// Args is the argv vector when the table can provide it.
	Args []string
}

// Table is a live view of the OS process table. Every call takes a fresh
// snapshot.
type Table interface {
	Processes(ctx context.Context) ([]Proc, error)
	Terminate(ctx context.Context, pid int32, grace time.Duration) error
}

type Spawner interface {
	Spawn(cmd Command) (int, error)
}

// Command is what gets started. Terminal, when set, wraps Path/Args so the
// child opens in its own window (e.g. ["x-terminal-emulator", "-e"]).
type Command struct {
	Path     string
	Args     []string
	Dir      string
	Terminal []string
}

func (c Command) Argv() []string {
	argv := make([]string, 0, len(c.Terminal)+1+len(c.Args))
	argv = append(argv, c.Terminal...)
	argv = append(argv, c.Path)
	argv = append(argv, c.Args...)
	return argv
}

type Reason string

const (
	ReasonLaunched       Reason = "LAUNCHED"
	ReasonAlreadyRunning Reason = "ALREADY_RUNNING"
	ReasonDenied         Reason = "LAUNCH_DENIED"
	ReasonScanFailed     Reason = "SCAN_FAILED"
)

type LaunchResult struct {
	Launched bool
	Reason   Reason
	PID      int
}

type Supervisor struct {
	table   Table
	spawner Spawner
	self    int32
	parent  int32

	// launch serializes check-then-spawn within this process.
	launch sync.Mutex
}

func New() *Supervisor {
	return NewWith(SystemTable{}, DetachedSpawner{})
}

func NewWith(table Table, spawner Spawner) *Supervisor {
	return &Supervisor{
		table:   table,
		spawner: spawner,
		self:    int32(os.Getpid()),
		parent:  int32(os.Getppid()),
	}
}

// IsRunning reports whether any process other than the caller and its
// parent (a wrapper shell, say) was started with sig.
func (s *Supervisor) IsRunning(ctx context.Context, sig Signature) (bool, error) {
	if strings.TrimSpace(string(sig)) == "" {
		return false, errors.New("empty signature")
	}

	procs, err := s.table.Processes(ctx)
	if err != nil {
		return false, fmt.Errorf("list processes: %w", err)
	}

	for _, p := range procs {
		if p.PID == s.self || p.PID == s.parent {
			continue
		}
		if sig.Matches(p) {
			log.Debug("Found running instance", "pid", p.PID, "cmdline", p.Cmdline)
			return true, nil
		}
	}

	return false, nil
}

// LaunchOnce starts cmd unless a process matching sig is alive. The child is
// detached; the caller never waits on it. Concurrent calls run one at a time.
func (s *Supervisor) LaunchOnce(ctx context.Context, sig Signature, cmd Command) (LaunchResult, error) {
	s.launch.Lock()
	defer s.launch.Unlock()

	running, err := s.IsRunning(ctx, sig)
	if err != nil {
		return LaunchResult{Reason: ReasonScanFailed}, err
	}
	if running {
		log.Info("Assistant already running", "signature", sig)
		return LaunchResult{Reason: ReasonAlreadyRunning}, nil
	}

	pid, err := s.spawner.Spawn(cmd)
	if err != nil {
		return LaunchResult{Reason: ReasonDenied}, fmt.Errorf("%w: %v", ErrLaunchDenied, err)
	}

	log.Info("Launched assistant", "pid", pid, "argv", cmd.Argv())
	return LaunchResult{Launched: true, Reason: ReasonLaunched, PID: pid}, nil
}

// Terminate stops every process whose name matches one of names
// (case-insensitive). It returns how many were stopped.
func (s *Supervisor) Terminate(ctx context.Context, names []string, grace time.Duration) (int, error) {
	procs, err := s.table.Processes(ctx)
	if err != nil {
		return 0, fmt.Errorf("list processes: %w", err)
	}

	var (
		stopped int
		errs    []error
	)
	for _, p := range procs {
		if p.PID == s.self || !nameMatches(p.Name, names) {
			continue
		}
		if err := s.table.Terminate(ctx, p.PID, grace); err != nil {
			log.Warn("Failed to terminate", "pid", p.PID, "name", p.Name, "err", err)
			errs = append(errs, err)
			continue
		}
		stopped++
	}

	if stopped == 0 && len(errs) > 0 {
		return 0, errors.Join(errs...)
	}
	return stopped, nil
}

// Matches reports whether the words of sig occur as a contiguous run of
// p's argv words. Arguments are split on whitespace so wrappers such as
// "sh -c '/opt/purple/purple --input text'" still match.
func (sig Signature) Matches(p Proc) bool {
	want := strings.Fields(string(sig))
	if len(want) == 0 {
		return false
	}

	var words []string
	if len(p.Args) > 0 {
		for _, a := range p.Args {
			words = append(words, strings.Fields(a)...)
		}
	} else {
		words = strings.Fields(p.Cmdline)
	}

	for i := 0; i+len(want) <= len(words); i++ {
		if !pathMatches(words[i], want[0]) {
			continue
		}
		if slices.Equal(words[i+1:i+len(want)], want[1:]) {
			return true
		}
	}
	return false
}

func pathMatches(word, want string) bool {
	return word == want ||
		strings.HasSuffix(word, "/"+want) ||
		strings.HasSuffix(word, `\`+want)
}

func nameMatches(name string, names []string) bool {
	for _, n := range names {
		if strings.EqualFold(name, n) {
			return true
		}
	}
	return false
}
