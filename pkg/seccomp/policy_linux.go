package seccomp

import (
	"syscall"

	libseccomp "github.com/elastic/go-seccomp-bpf"
	"golang.org/x/net/bpf"
)

// Policy defines the syscall filter by name lists; syscall names are
// resolved for the runtime architecture when the policy is built
type Policy struct {
	// Default is the action for syscalls matched by no list
	Default Action

	// Allow, Errno and Kill hold syscall names per action; Errno
	// returns ErrnoCode to the caller instead of executing
	Allow []string
	Errno []string
	Kill  []string

	// ErrnoCode is the errno returned for the Errno list and for an
	// errno default action, EPERM if zero
	ErrnoCode int16
}

// Build compiles the policy into a loadable BPF filter
func (p *Policy) Build() (Filter, error) {
	pol := libseccomp.Policy{
		DefaultAction: p.bpfAction(p.Default),
	}
	for _, g := range []struct {
		names  []string
		action Action
	}{
		{p.Allow, ActionAllow},
		{p.Errno, ActionErrno},
		{p.Kill, ActionKill},
	} {
		if len(g.names) == 0 {
			continue
		}
		pol.Syscalls = append(pol.Syscalls, libseccomp.SyscallGroup{
			Names:  g.names,
			Action: p.bpfAction(g.action),
		})
	}

	insns, err := pol.Assemble()
	if err != nil {
		return nil, err
	}
	raw, err := bpf.Assemble(insns)
	if err != nil {
		return nil, err
	}

	filter := make(Filter, 0, len(raw))
	for _, in := range raw {
		filter = append(filter, syscall.SockFilter{
			Code: in.Op,
			Jt:   in.Jt,
			Jf:   in.Jf,
			K:    in.K,
		})
	}
	return filter, nil
}

// bpfAction translates an action to its go-seccomp-bpf counterpart
func (p *Policy) bpfAction(a Action) libseccomp.Action {
	switch a.Action() {
	case ActionAllow:
		return libseccomp.ActionAllow
	case ActionErrno:
		code := p.ErrnoCode
		if code == 0 {
			code = int16(syscall.EPERM)
		}
		// the low 16 bits of the action word are SECCOMP_RET_DATA
		return libseccomp.ActionErrno | libseccomp.Action(uint16(code))
	default:
		return libseccomp.ActionKillProcess
	}
}
