package supervisor

import (
	"errors"
	"os"
	"os/exec"
)

// DetachedSpawner starts the child in its own session so it outlives the
// caller. The child is reaped in the background.
type DetachedSpawner struct{}

func (DetachedSpawner) Spawn(c Command) (int, error) {
	argv := c.Argv()
	if len(argv) == 0 || c.Path == "" {
		return 0, errors.New("empty command")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = c.Dir
	cmd.SysProcAttr = detachedAttr(len(c.Terminal) > 0)
	if len(c.Terminal) == 0 {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Start(); err != nil {
		return 0, err
	}

	go cmd.Wait()

	return cmd.Process.Pid, nil
}
