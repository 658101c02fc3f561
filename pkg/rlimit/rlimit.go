// Package rlimit provides the POSIX resource limits applied to the
// launched child via the prlimit64 syscall.
package rlimit

import (
	"fmt"
	"strings"
	"syscall"
)

// RLimits is the high level resource limit set for a launch
type RLimits struct {
	CPU          uint64 // in s
	CPUHard      uint64 // in s
	Data         uint64 // in bytes
	FileSize     uint64 // in bytes
	Stack        uint64 // in bytes
	AddressSpace uint64 // in bytes
	OpenFile     uint64 // count
	DisableCore  bool   // set core to 0
}

// RLimit is a single limit in the form consumed by prlimit64
type RLimit struct {
	// Res is the resource type (e.g. syscall.RLIMIT_CPU)
	Res int
	// Rlim is the limit applied to that resource
	Rlim syscall.Rlimit
}

func rlim(cur, max uint64) syscall.Rlimit {
	return syscall.Rlimit{Cur: cur, Max: max}
}

// PrepareRLimit expands the limit set into the list applied by the
// runner; zero-valued fields are omitted
func (r *RLimits) PrepareRLimit() []RLimit {
	var ret []RLimit
	if r.CPU > 0 {
		cpuHard := r.CPUHard
		if cpuHard < r.CPU {
			cpuHard = r.CPU
		}
		ret = append(ret, RLimit{Res: syscall.RLIMIT_CPU, Rlim: rlim(r.CPU, cpuHard)})
	}
	if r.Data > 0 {
		ret = append(ret, RLimit{Res: syscall.RLIMIT_DATA, Rlim: rlim(r.Data, r.Data)})
	}
	if r.FileSize > 0 {
		ret = append(ret, RLimit{Res: syscall.RLIMIT_FSIZE, Rlim: rlim(r.FileSize, r.FileSize)})
	}
	if r.Stack > 0 {
		ret = append(ret, RLimit{Res: syscall.RLIMIT_STACK, Rlim: rlim(r.Stack, r.Stack)})
	}
	if r.AddressSpace > 0 {
		ret = append(ret, RLimit{Res: syscall.RLIMIT_AS, Rlim: rlim(r.AddressSpace, r.AddressSpace)})
	}
	if r.OpenFile > 0 {
		ret = append(ret, RLimit{Res: syscall.RLIMIT_NOFILE, Rlim: rlim(r.OpenFile, r.OpenFile)})
	}
	if r.DisableCore {
		ret = append(ret, RLimit{Res: syscall.RLIMIT_CORE, Rlim: rlim(0, 0)})
	}
	return ret
}

func (r RLimit) String() string {
	switch r.Res {
	case syscall.RLIMIT_CPU:
		return fmt.Sprintf("CPU[%d s:%d s]", r.Rlim.Cur, r.Rlim.Max)
	case syscall.RLIMIT_NOFILE:
		return fmt.Sprintf("OpenFile[%d:%d]", r.Rlim.Cur, r.Rlim.Max)
	}
	t := ""
	switch r.Res {
	case syscall.RLIMIT_DATA:
		t = "Data"
	case syscall.RLIMIT_FSIZE:
		t = "File"
	case syscall.RLIMIT_STACK:
		t = "Stack"
	case syscall.RLIMIT_AS:
		t = "AddressSpace"
	case syscall.RLIMIT_CORE:
		t = "Core"
	}
	return fmt.Sprintf("%s[%s:%s]", t, sizeString(r.Rlim.Cur), sizeString(r.Rlim.Max))
}

func (r RLimits) String() string {
	var sb strings.Builder
	sb.WriteString("RLimits[")
	for i, rl := range r.PrepareRLimit() {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(rl.String())
	}
	sb.WriteString("]")
	return sb.String()
}

// sizeString renders a byte count with a binary unit suffix
func sizeString(s uint64) string {
	switch {
	case s < 1<<10:
		return fmt.Sprintf("%d B", s)
	case s < 1<<20:
		return fmt.Sprintf("%.1f KiB", float64(s)/float64(1<<10))
	case s < 1<<30:
		return fmt.Sprintf("%.1f MiB", float64(s)/float64(1<<20))
	default:
		return fmt.Sprintf("%.1f GiB", float64(s)/float64(1<<30))
	}
}
