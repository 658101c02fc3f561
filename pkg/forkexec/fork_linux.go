package forkexec

import (
	"syscall"
	"unsafe" // required for go:linkname

	"golang.org/x/sys/unix"
)

//go:linkname beforeFork syscall.runtime_BeforeFork
func beforeFork()

//go:linkname afterFork syscall.runtime_AfterFork
func afterFork()

//go:linkname afterForkInChild syscall.runtime_AfterForkInChild
func afterForkInChild()

// Start clones the child with the plan's namespace flags, applies the
// root transition and signal policies inside it and execs. Returns the
// child pid or the error reported by the failed setup step.
func (r *Runner) Start() (int, error) {
	argv0, argv, env, err := prepareExec(r.Args, r.Env)
	if err != nil {
		return 0, err
	}

	cp, err := prepareChildParams(r)
	if err != nil {
		return 0, err
	}

	// socketpair p is used to notify the child that uid / gid mappings
	// have been set up and to sync with the parent before the final
	// execve; p[0] belongs to the parent and p[1] to the child
	p, err := syscall.Socketpair(syscall.AF_LOCAL, syscall.SOCK_STREAM|syscall.SOCK_CLOEXEC, 0)
	if err != nil {
		return 0, err
	}

	pid, err1 := forkAndExecInChild(r, argv0, argv, env, cp, p)

	// restore all signals
	afterFork()
	syscall.ForkLock.Unlock()

	return syncWithChild(r, cp, p, int(pid), err1)
}

func syncWithChild(r *Runner, cp *childParams, p [2]int, pid int, err1 syscall.Errno) (int, error) {
	var (
		childErr    ChildError
		err         error
		unshareUser = cp.cloneFlags&unix.CLONE_NEWUSER == unix.CLONE_NEWUSER
	)

	unix.Close(p[1])

	// clone syscall failed
	if err1 != 0 {
		unix.Close(p[0])
		return 0, ChildError{Err: err1, Location: LocClone}
	}

	// the child blocks on the mapping write when the user namespace is
	// unshared; it has no capability in the original namespace to write
	// the mappings itself
	if unshareUser {
		var err2 syscall.Errno
		if err := writeIDMaps(r, pid); err != nil {
			err2 = err.(syscall.Errno)
		}
		syscall.RawSyscall(syscall.SYS_WRITE, uintptr(p[0]), uintptr(unsafe.Pointer(&err2)), unsafe.Sizeof(err2))
	}

	// child reports ready (zero errno) or a ChildError from a failed step
	n, _, err1 := syscall.RawSyscall(syscall.SYS_READ, uintptr(p[0]), uintptr(unsafe.Pointer(&childErr)), unsafe.Sizeof(childErr))
	if err = handleChildMsg(n, err1, childErr); err != nil {
		unix.Close(p[0])
		handleChildFailed(pid)
		return 0, err
	}

	// fail the child right away if the sync func rejects it
	if r.SyncFunc != nil {
		if err = r.SyncFunc(pid); err != nil {
			unix.Close(p[0])
			handleChildFailed(pid)
			return 0, err
		}
	}
	// ack the child to proceed to execve
	var zero syscall.Errno
	syscall.RawSyscall(syscall.SYS_WRITE, uintptr(p[0]), uintptr(unsafe.Pointer(&zero)), unsafe.Sizeof(zero))

	// successful execve closes the CLOEXEC socket: zero-length read.
	// anything read back is a post-sync ChildError
	childErr = ChildError{}
	n, _, err1 = syscall.RawSyscall(syscall.SYS_READ, uintptr(p[0]), uintptr(unsafe.Pointer(&childErr)), unsafe.Sizeof(childErr))
	unix.Close(p[0])
	if n != 0 || err1 != 0 {
		err = handleChildMsg(n, err1, childErr)
		if err == nil {
			err = syscall.EPIPE
		}
		handleChildFailed(pid)
		return 0, err
	}
	return pid, nil
}

// handleChildMsg decodes a message read from the sync socket
func handleChildMsg(n uintptr, err1 syscall.Errno, childErr ChildError) error {
	switch {
	case err1 != 0:
		return err1
	case n == unsafe.Sizeof(childErr) && childErr.Err != 0:
		return childErr
	case n == unsafe.Sizeof(childErr.Err) && childErr.Err == 0:
		// sync token
		return nil
	default:
		return syscall.EPIPE
	}
}

func handleChildFailed(pid int) {
	var wstatus syscall.WaitStatus
	// make sure the child is not blocked on the sync socket
	syscall.Kill(pid, syscall.SIGKILL)
	// collect the child to avoid accumulating zombies; WALL is needed
	// since the clone exit signal may be zero
	_, err := syscall.Wait4(pid, &wstatus, unix.WALL, nil)
	for err == syscall.EINTR {
		_, err = syscall.Wait4(pid, &wstatus, unix.WALL, nil)
	}
}
