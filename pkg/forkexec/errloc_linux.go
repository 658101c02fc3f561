package forkexec

import (
	"fmt"
	"syscall"
)

// ErrorLocation defines the step where the child process failed before
// execve.
type ErrorLocation int

// ChildError is the error reported by the child over the sync socket,
// carrying the errno and the failed step. Index is the mount index for
// mount failures.
type ChildError struct {
	Err      syscall.Errno
	Location ErrorLocation
	Index    int
}

// Location constants
const (
	LocClone ErrorLocation = iota + 1
	LocCloseWrite
	LocUnshareUserRead
	LocDup3
	LocFcntl
	LocSetSid
	LocMountRoot
	LocMountMkdir
	LocMount
	LocChdirNewRoot
	LocPivotRoot
	LocUmountOld
	LocChroot
	LocChdir
	LocSetPdeathsig
	LocSetRlimit
	LocSetNoNewPrivs
	LocSeccomp
	LocSyncWrite
	LocSyncRead
	LocExecve
)

var locToString = []string{
	"unknown",
	"clone",
	"close_write",
	"unshare_user_read",
	"dup3",
	"fcntl",
	"setsid",
	"mount(root)",
	"mount(mkdir)",
	"mount",
	"chdir(new_root)",
	"pivot_root",
	"umount(old_root)",
	"chroot",
	"chdir",
	"set_pdeathsig",
	"setrlimit",
	"set_no_new_privs",
	"seccomp",
	"sync_write",
	"sync_read",
	"execve",
}

func (e ErrorLocation) String() string {
	if e >= LocClone && e <= LocExecve {
		return locToString[e]
	}
	return "unknown"
}

func (e ChildError) Error() string {
	if e.Index > 0 {
		return fmt.Sprintf("%s(%d): %s", e.Location.String(), e.Index, e.Err.Error())
	}
	return fmt.Sprintf("%s: %s", e.Location.String(), e.Err.Error())
}
