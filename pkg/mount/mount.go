// Package mount builds the mount plan applied by the forkexec runner
// inside an unshared mount namespace, pre-marshaled into raw syscall
// parameters since the post-fork child cannot allocate.
package mount

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// Mount defines one mount syscall of the plan
type Mount struct {
	Source, Target, FsType, Data string
	Flags                        uintptr
}

// SyscallParams is a Mount converted to raw mount syscall arguments.
// Prefixes holds every leading component of Target so the child can
// mkdir the mount point without path logic.
type SyscallParams struct {
	Source, Target, FsType, Data *byte
	Flags                        uintptr
	Prefixes                     []*byte
}

// ToSyscall converts a Mount to SyscallParams
func (m Mount) ToSyscall() (*SyscallParams, error) {
	var data *byte
	source, err := syscall.BytePtrFromString(m.Source)
	if err != nil {
		return nil, err
	}
	target, err := syscall.BytePtrFromString(m.Target)
	if err != nil {
		return nil, err
	}
	fsType, err := syscall.BytePtrFromString(m.FsType)
	if err != nil {
		return nil, err
	}
	if m.Data != "" {
		if data, err = syscall.BytePtrFromString(m.Data); err != nil {
			return nil, err
		}
	}
	prefixes, err := arrayPtrFromStrings(pathPrefixes(m.Target))
	if err != nil {
		return nil, err
	}
	return &SyscallParams{
		Source:   source,
		Target:   target,
		FsType:   fsType,
		Data:     data,
		Flags:    m.Flags,
		Prefixes: prefixes,
	}, nil
}

// IsBind reports whether the mount is a bind mount
func (m Mount) IsBind() bool {
	return m.Flags&unix.MS_BIND == unix.MS_BIND
}

func (m Mount) String() string {
	switch {
	case m.IsBind() && m.Flags&unix.MS_RDONLY == unix.MS_RDONLY:
		return fmt.Sprintf("bind[%s:%s:ro]", m.Source, m.Target)
	case m.IsBind():
		return fmt.Sprintf("bind[%s:%s:rw]", m.Source, m.Target)
	case m.FsType == "tmpfs":
		return fmt.Sprintf("tmpfs[%s]", m.Target)
	case m.FsType == "proc":
		return "proc"
	default:
		return fmt.Sprintf("mount[%s,%s:%s:%x,%s]", m.FsType, m.Source, m.Target, m.Flags, m.Data)
	}
}

// pathPrefixes returns every leading component of path, shortest first
func pathPrefixes(path string) []string {
	ret := make([]string, 0)
	for i := 1; i < len(path); i++ {
		if path[i] == '/' {
			ret = append(ret, path[:i])
		}
	}
	return append(ret, path)
}

// arrayPtrFromStrings converts strings to C style strings
func arrayPtrFromStrings(strs []string) ([]*byte, error) {
	bytes := make([]*byte, 0, len(strs))
	for _, s := range strs {
		b, err := syscall.BytePtrFromString(s)
		if err != nil {
			return nil, err
		}
		bytes = append(bytes, b)
	}
	return bytes, nil
}
