package supervisor

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTable struct {
	mu         sync.Mutex
	procs      []Proc
	err        error
	terminated []int32
}

func (f *fakeTable) Processes(context.Context) ([]Proc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]Proc(nil), f.procs...), nil
}

func (f *fakeTable) Terminate(_ context.Context, pid int32, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terminated = append(f.terminated, pid)
	return nil
}

func (f *fakeTable) add(p Proc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.procs = append(f.procs, p)
}

// tableSpawner registers every spawned command in the fake table, like the
// OS would.
type tableSpawner struct {
	table *fakeTable
	next  int32
	calls int
	err   error
}

func (s *tableSpawner) Spawn(c Command) (int, error) {
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	s.next++
	s.table.add(Proc{PID: 1000 + s.next, Name: "purple", Cmdline: strings.Join(c.Argv(), " "), Args: c.Argv()})
	return int(1000 + s.next), nil
}

func TestLaunchOnceIsIdempotent(t *testing.T) {
	table := &fakeTable{}
	spawner := &tableSpawner{table: table}
	sup := NewWith(table, spawner)

	cmd := Command{Path: "/opt/purple/bin/purple"}
	sig := Signature("/opt/purple/bin/purple")

	const n = 5
	launched := 0
	for i := 0; i < n; i++ {
		res, err := sup.LaunchOnce(context.Background(), sig, cmd)
		require.NoError(t, err)
		if res.Launched {
			launched++
			assert.Equal(t, ReasonLaunched, res.Reason)
		} else {
			assert.Equal(t, ReasonAlreadyRunning, res.Reason)
		}
	}

	assert.Equal(t, 1, launched)
	assert.Equal(t, 1, spawner.calls)
}

func TestIsRunningMatchesCommandLineNotName(t *testing.T) {
	table := &fakeTable{procs: []Proc{
		{PID: 10, Name: "python3", Cmdline: "python3 /usr/lib/other/tool.py"},
	}}
	sup := NewWith(table, &tableSpawner{table: table})

	running, err := sup.IsRunning(context.Background(), Signature("thara/main.py"))
	require.NoError(t, err)
	assert.False(t, running, "same interpreter must not count as a match")

	table.add(Proc{PID: 11, Name: "python3", Cmdline: "python3 /home/u/thara/main.py"})
	running, err = sup.IsRunning(context.Background(), Signature("thara/main.py"))
	require.NoError(t, err)
	assert.True(t, running)
}

func TestSignatureMatches(t *testing.T) {
	tests := []struct {
		name string
		sig  Signature
		proc Proc
		want bool
	}{
		{"exact binary", "/opt/purple/purple", Proc{Args: []string{"/opt/purple/purple", "--input", "voice"}}, true},
		{"terminal wrapper", "/opt/purple/purple", Proc{Args: []string{"x-terminal-emulator", "-e", "/opt/purple/purple"}}, true},
		{"shell wrapper", "/opt/purple/purple", Proc{Args: []string{"/bin/sh", "-c", "/opt/purple/purple --input text"}}, true},
		{"sibling ctl", "/opt/purple/purple", Proc{Args: []string{"/opt/purple/purple-ctl", "trigger"}}, false},
		{"sibling hotword under sh", "/opt/purple/purple", Proc{Args: []string{"/bin/sh", "-c", "/opt/purple/purple-hotword"}}, false},
		{"longer path", "/opt/purple/purple", Proc{Args: []string{"/opt/purple/purple.old"}}, false},
		{"script suffix", "thara/main.py", Proc{Args: []string{"python3", "/home/u/thara/main.py"}}, true},
		{"script lookalike", "thara/main.py", Proc{Args: []string{"python3", "/home/u/notthara/main.py"}}, false},
		{"multi word", "sleep 31.4159", Proc{Args: []string{"/usr/bin/sleep", "31.4159"}}, true},
		{"multi word out of order", "sleep 31.4159", Proc{Args: []string{"/usr/bin/sleep", "5", "31.4159"}}, false},
		{"windows path", `purple.exe`, Proc{Args: []string{`C:\Program Files\purple\purple.exe`}}, true},
		{"cmdline only", "/opt/purple/purple", Proc{Cmdline: "/opt/purple/purple --input voice"}, true},
		{"cmdline sibling", "/opt/purple/purple", Proc{Cmdline: "/opt/purple/purple-ctl trigger"}, false},
		{"empty", "", Proc{Cmdline: "anything"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.sig.Matches(tt.proc))
		})
	}
}

func TestLaunchOnceIgnoresSiblingBinaries(t *testing.T) {
	table := &fakeTable{procs: []Proc{
		{PID: 20, Name: "purple-ctl", Args: []string{"/opt/purple/purple-ctl", "trigger"}},
		{PID: 21, Name: "sh", Args: []string{"/bin/sh", "-c", "/opt/purple/purple-hotword"}},
	}}
	spawner := &tableSpawner{table: table}
	sup := NewWith(table, spawner)

	res, err := sup.LaunchOnce(context.Background(), "/opt/purple/purple", Command{Path: "/opt/purple/purple"})
	require.NoError(t, err)
	assert.True(t, res.Launched)
	assert.Equal(t, 1, spawner.calls)
}

// slowSpawner takes a while to register the child, leaving a window
// between the scan and the spawn.
type slowSpawner struct {
	table *fakeTable
	calls atomic.Int32
}

func (s *slowSpawner) Spawn(c Command) (int, error) {
	n := s.calls.Add(1)
	time.Sleep(50 * time.Millisecond)
	s.table.add(Proc{PID: 2000 + n, Args: c.Argv()})
	return int(2000 + n), nil
}

func TestLaunchOnceConcurrent(t *testing.T) {
	table := &fakeTable{}
	spawner := &slowSpawner{table: table}
	sup := NewWith(table, spawner)
	cmd := Command{Path: "/opt/purple/purple"}

	var (
		wg       sync.WaitGroup
		launched atomic.Int32
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := sup.LaunchOnce(context.Background(), "/opt/purple/purple", cmd)
			if err == nil && res.Launched {
				launched.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), launched.Load())
	assert.Equal(t, int32(1), spawner.calls.Load())
}

func TestIsRunningIgnoresSelf(t *testing.T) {
	table := &fakeTable{procs: []Proc{
		{PID: int32(os.Getpid()), Name: "purple-hotword", Cmdline: "/bin/purple-hotword --assistant /bin/purple"},
	}}
	sup := NewWith(table, &tableSpawner{table: table})

	running, err := sup.IsRunning(context.Background(), Signature("/bin/purple"))
	require.NoError(t, err)
	assert.False(t, running)
}

func TestIsRunningRejectsEmptySignature(t *testing.T) {
	sup := NewWith(&fakeTable{}, &tableSpawner{})
	_, err := sup.IsRunning(context.Background(), Signature("  "))
	assert.Error(t, err)
}

func TestLaunchOnceScanFailure(t *testing.T) {
	table := &fakeTable{err: errors.New("proc unavailable")}
	spawner := &tableSpawner{table: table}
	sup := NewWith(table, spawner)

	res, err := sup.LaunchOnce(context.Background(), "purple", Command{Path: "purple"})
	assert.Error(t, err)
	assert.False(t, res.Launched)
	assert.Equal(t, ReasonScanFailed, res.Reason)
	assert.Zero(t, spawner.calls)
}

func TestLaunchOnceDenied(t *testing.T) {
	table := &fakeTable{}
	sup := NewWith(table, &tableSpawner{table: table, err: os.ErrPermission})

	res, err := sup.LaunchOnce(context.Background(), "purple", Command{Path: "purple"})
	require.ErrorIs(t, err, ErrLaunchDenied)
	assert.False(t, res.Launched)
	assert.Equal(t, ReasonDenied, res.Reason)
}

func TestTerminateByName(t *testing.T) {
	table := &fakeTable{procs: []Proc{
		{PID: 1, Name: "gedit"},
		{PID: 2, Name: "Notepad.exe"},
		{PID: 3, Name: "bash"},
	}}
	sup := NewWith(table, &tableSpawner{table: table})

	n, err := sup.Terminate(context.Background(), []string{"notepad.exe", "gedit"}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.ElementsMatch(t, []int32{1, 2}, table.terminated)
}

func TestCommandArgv(t *testing.T) {
	c := Command{
		Path:     "/bin/purple",
		Args:     []string{"--input", "voice"},
		Terminal: []string{"x-terminal-emulator", "-e"},
	}
	assert.Equal(t, []string{"x-terminal-emulator", "-e", "/bin/purple", "--input", "voice"}, c.Argv())
}

func TestSystemLaunchOnce(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on sleep(1)")
	}
	sleep, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep not available")
	}

	sup := New()
	cmd := Command{Path: sleep, Args: []string{"31.4159"}}
	sig := Signature("sleep 31.4159")
	ctx := context.Background()

	first, err := sup.LaunchOnce(ctx, sig, cmd)
	require.NoError(t, err)
	require.True(t, first.Launched)
	defer SystemTable{}.Terminate(ctx, int32(first.PID), 0)

	second, err := sup.LaunchOnce(ctx, sig, cmd)
	require.NoError(t, err)
	assert.False(t, second.Launched)
	assert.Equal(t, ReasonAlreadyRunning, second.Reason)
}
