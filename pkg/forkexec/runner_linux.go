package forkexec

import (
	"syscall"

	"github.com/nsforge/nslaunch/pkg/launch"
	"github.com/nsforge/nslaunch/pkg/mount"
	"github.com/nsforge/nslaunch/pkg/rlimit"
)

// Runner configures the child process to be started: exec path, argv,
// environment, file descriptors and the isolation plan applied between
// clone and execve. It is read exactly once per Start call.
type Runner struct {
	// argv and env for execve syscall for the child process
	Args []string
	Env  []string

	// if ExecFile is defined, execveat is called on the fd instead of
	// execve on Args[0]
	ExecFile uintptr

	// Isolation is the validated launch plan: namespaces, root
	// transition, parent death signal and SIGCHLD policy. A nil value
	// means no isolation at all.
	Isolation *launch.Config

	// Mounts are performed after the mount namespace is unshared and
	// before the root transition. Needs CAP_SYS_ADMIN inside the
	// namespace (e.g. an unshared user namespace).
	Mounts []mount.SyscallParams

	// POSIX resource limits applied via prlimit64
	RLimits []rlimit.RLimit

	// file descriptors for the new process, mapped from 0 to len - 1
	Files []uintptr

	// work path set by chdir(dir) after the root transition
	WorkDir string

	// HostName and DomainName to be set after unshare UTS & user
	HostName, DomainName string

	// seccomp syscall filter loaded right before execve
	Seccomp *syscall.SockFprog

	// no_new_privs sets prctl(PR_SET_NO_NEW_PRIVS) to disable setuid
	// executables. Automatically enabled when a seccomp filter is set.
	NoNewPrivs bool

	// UIDMappings / GIDMappings for an unshared user namespace, written
	// by the parent into /proc/<pid>/{uid_map,gid_map}. A nil mapping
	// maps the current euid / egid to root inside the namespace.
	UIDMappings []syscall.SysProcIDMap
	GIDMappings []syscall.SysProcIDMap

	// GIDMappingsEnableSetgroups allows the setgroups syscall inside
	// the user namespace; denied when GIDMappings is nil
	GIDMappingsEnableSetgroups bool

	// SyncFunc is invoked with the child pid after the child finished
	// its setup and before execve. A non-nil error fails the child.
	SyncFunc func(int) error
}
