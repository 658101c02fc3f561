package mount

import (
	"os"

	"golang.org/x/sys/unix"
)

const (
	bind   = unix.MS_BIND | unix.MS_NOSUID | unix.MS_PRIVATE
	roBind = bind | unix.MS_RDONLY
	mFlag  = unix.MS_NOSUID | unix.MS_NOATIME | unix.MS_NODEV
)

// Builder accumulates mounts into a runner friendly plan
type Builder struct {
	Mounts []Mount
}

// NewBuilder creates a new mount plan builder
func NewBuilder() *Builder {
	return &Builder{}
}

// WithMounts appends mounts to the builder
func (b *Builder) WithMounts(m []Mount) *Builder {
	b.Mounts = append(b.Mounts, m...)
	return b
}

// WithMount appends a single mount to the builder
func (b *Builder) WithMount(m Mount) *Builder {
	b.Mounts = append(b.Mounts, m)
	return b
}

// WithBind appends a bind mount; relative targets are resolved against
// the child working directory, which keeps them inside a pivoted root
func (b *Builder) WithBind(source, target string, readOnly bool) *Builder {
	var flags uintptr = bind
	if readOnly {
		flags = roBind
	}
	return b.WithMount(Mount{Source: source, Target: target, Flags: flags})
}

// WithTmpfs appends a tmpfs mount with the given mount data
func (b *Builder) WithTmpfs(target, data string) *Builder {
	return b.WithMount(Mount{
		Source: "tmpfs",
		Target: target,
		FsType: "tmpfs",
		Flags:  mFlag,
		Data:   data,
	})
}

// WithProc appends a proc mount; useful with an unshared pid namespace
// so the child sees only its own pid tree
func (b *Builder) WithProc() *Builder {
	return b.WithMount(Mount{
		Source: "proc",
		Target: "proc",
		FsType: "proc",
		Flags:  unix.MS_NOSUID | unix.MS_NODEV | unix.MS_NOEXEC,
	})
}

// Build converts the accumulated mounts into syscall parameters for the
// runner. skipNotExists drops bind mounts whose source does not exist
// instead of failing.
func (b *Builder) Build(skipNotExists bool) ([]SyscallParams, error) {
	ret := make([]SyscallParams, 0, len(b.Mounts))
	for _, m := range b.Mounts {
		if m.IsBind() {
			if _, err := os.Stat(m.Source); err != nil {
				if os.IsNotExist(err) && skipNotExists {
					continue
				}
				// fail here rather than as an opaque mount errno in
				// the child
				return nil, err
			}
		}
		sp, err := m.ToSyscall()
		if err != nil {
			return nil, err
		}
		ret = append(ret, *sp)
	}
	return ret, nil
}
