package forkexec

import (
	"golang.org/x/sys/unix"
)

// defines consts missing from the syscall package
const (
	_SECCOMP_SET_MODE_FILTER   = 1
	_SECCOMP_FILTER_FLAG_TSYNC = 1

	// namespace flags honored from the launch plan
	unshareFlags = unix.CLONE_NEWNS | unix.CLONE_NEWUTS | unix.CLONE_NEWIPC |
		unix.CLONE_NEWUSER | unix.CLONE_NEWPID | unix.CLONE_NEWNET

	// read-only bind mounts need a remount to take effect
	bindRo = unix.MS_BIND | unix.MS_RDONLY
)

// null-terminated strings used by the child after fork
var (
	none  = [...]byte{'n', 'o', 'n', 'e', 0}
	slash = [...]byte{'/', 0}
	empty = [...]byte{0}

	setGIDAllow = []byte("allow")
	setGIDDeny  = []byte("deny")

	// go does not allow constant uintptr to be negative
	_AT_FDCWD = unix.AT_FDCWD
)
