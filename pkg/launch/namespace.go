package launch

import (
	"golang.org/x/sys/unix"
)

// Namespace selects a Linux namespace to be unshared from the parent
// when the child is cloned.
type Namespace int

// Namespaces supported by the launch plan
const (
	Mount Namespace = iota + 1
	Uts
	Ipc
	User
	Pid
	Net
)

// cloneFlag maps a namespace to its CLONE_NEW* flag for the clone syscall.
// Unknown values map to zero and are ignored by Unshare.
func (ns Namespace) cloneFlag() uintptr {
	switch ns {
	case Mount:
		return unix.CLONE_NEWNS
	case Uts:
		return unix.CLONE_NEWUTS
	case Ipc:
		return unix.CLONE_NEWIPC
	case User:
		return unix.CLONE_NEWUSER
	case Pid:
		return unix.CLONE_NEWPID
	case Net:
		return unix.CLONE_NEWNET
	}
	return 0
}

func (ns Namespace) String() string {
	switch ns {
	case Mount:
		return "mount"
	case Uts:
		return "uts"
	case Ipc:
		return "ipc"
	case User:
		return "user"
	case Pid:
		return "pid"
	case Net:
		return "net"
	}
	return "unknown"
}
