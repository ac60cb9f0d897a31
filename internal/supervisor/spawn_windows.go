//go:build windows

package supervisor

import "syscall"

const createNewConsole = 0x00000010

func detachedAttr(wrapped bool) *syscall.SysProcAttr {
	flags := uint32(syscall.CREATE_NEW_PROCESS_GROUP)
	if !wrapped {
		flags |= createNewConsole
	}
	return &syscall.SysProcAttr{CreationFlags: flags}
}
