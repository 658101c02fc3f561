package forkexec

import (
	"golang.org/x/sys/unix"
)

// Wait blocks until the started child terminates and returns its wait
// status. It uses the __WALL flag: when SIGCHLD delivery is disabled by
// the plan the child is cloned without an exit signal and a plain wait4
// would never see it.
func Wait(pid int) (unix.WaitStatus, error) {
	var wstatus unix.WaitStatus
	_, err := unix.Wait4(pid, &wstatus, unix.WALL, nil)
	for err == unix.EINTR {
		_, err = unix.Wait4(pid, &wstatus, unix.WALL, nil)
	}
	return wstatus, err
}
