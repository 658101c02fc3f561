package forkexec

import (
	"path"
	"strings"
	"syscall"
)

// childParams carries the pre-marshaled launch plan into the child,
// prepared entirely before fork since the child cannot allocate.
type childParams struct {
	workdir    *byte
	hostname   *byte
	domainname *byte

	// pivot_root step: both pre-pivot absolute paths plus the post-pivot
	// location of the old root for the optional detach
	pivotNewRoot *byte
	pivotPutOld  *byte
	oldRoot      *byte
	unmountOld   bool

	// chroot step, applied after the pivot
	chroot *byte

	// parent death signal registered via prctl, 0 for none
	deathSig uintptr

	// clone termination signal, SIGCHLD when child signal delivery is
	// enabled by the plan
	exitSignal uintptr

	// CLONE_NEW* flags from the plan
	cloneFlags uintptr
}

// prepareChildParams marshals the launch plan for the post-fork child
func prepareChildParams(r *Runner) (*childParams, error) {
	var (
		cp  childParams
		err error
	)
	if cp.workdir, err = syscallStringFromString(r.WorkDir); err != nil {
		return nil, err
	}
	if cp.hostname, err = syscallStringFromString(r.HostName); err != nil {
		return nil, err
	}
	if cp.domainname, err = syscallStringFromString(r.DomainName); err != nil {
		return nil, err
	}
	if r.Isolation == nil {
		return &cp, nil
	}

	cp.cloneFlags = r.Isolation.CloneFlags() & unshareFlags
	if r.Isolation.ChildSignalEnabled() {
		cp.exitSignal = uintptr(syscall.SIGCHLD)
	}
	if sig, ok := r.Isolation.ParentDeathSignal(); ok {
		cp.deathSig = uintptr(sig)
	}
	if dir, ok := r.Isolation.Chroot(); ok {
		if cp.chroot, err = syscall.BytePtrFromString(dir); err != nil {
			return nil, err
		}
	}
	if p, ok := r.Isolation.Pivot(); ok {
		if cp.pivotNewRoot, err = syscall.BytePtrFromString(p.NewRoot); err != nil {
			return nil, err
		}
		if cp.pivotPutOld, err = syscall.BytePtrFromString(p.PutOld); err != nil {
			return nil, err
		}
		if cp.oldRoot, err = syscall.BytePtrFromString(oldRootAfterPivot(p.NewRoot, p.PutOld)); err != nil {
			return nil, err
		}
		cp.unmountOld = p.UnmountOld
	}
	return &cp, nil
}

// oldRootAfterPivot resolves where put_old ends up once new_root became
// the root: put_old with the new_root prefix stripped
func oldRootAfterPivot(newRoot, putOld string) string {
	n, o := path.Clean(newRoot), path.Clean(putOld)
	if n == "/" {
		return o
	}
	rel := strings.TrimPrefix(o, n)
	if rel == "" {
		return "/"
	}
	return rel
}

// prepareExec prepares execve parameters
func prepareExec(args, env []string) (*byte, []*byte, []*byte, error) {
	argv0, err := syscall.BytePtrFromString(args[0])
	if err != nil {
		return nil, nil, nil, err
	}
	argv, err := syscall.SlicePtrFromStrings(args)
	if err != nil {
		return nil, nil, nil, err
	}
	envv, err := syscall.SlicePtrFromStrings(env)
	if err != nil {
		return nil, nil, nil, err
	}
	return argv0, argv, envv, nil
}

// prepareFds prepares the two-pass fd shuffle
func prepareFds(files []uintptr) ([]int, int) {
	fd := make([]int, len(files))
	nextfd := len(files)
	for i, ufd := range files {
		if nextfd < int(ufd) {
			nextfd = int(ufd)
		}
		fd[i] = int(ufd)
	}
	nextfd++
	return fd, nextfd
}

// syscallStringFromString prepares *byte for non-empty strings, nil otherwise
func syscallStringFromString(str string) (*byte, error) {
	if str != "" {
		return syscall.BytePtrFromString(str)
	}
	return nil, nil
}
