//go:build !windows

package supervisor

import "syscall"

func detachedAttr(bool) *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}
