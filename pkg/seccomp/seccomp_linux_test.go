package seccomp

import (
	"syscall"
	"testing"

	libseccomp "github.com/elastic/go-seccomp-bpf"
)

func TestPolicyBuild(t *testing.T) {
	p := Policy{
		Default: ActionAllow,
		Kill:    []string{"acct", "reboot"},
	}
	filter, err := p.Build()
	if err != nil {
		t.Fatal(err)
	}
	if len(filter) == 0 {
		t.Fatal("expected non-empty filter")
	}
	prog := filter.SockFprog()
	if int(prog.Len) != len(filter) || prog.Filter == nil {
		t.Errorf("bad sock fprog %+v", prog)
	}
}

func TestPolicyBuildErrno(t *testing.T) {
	p := Policy{
		Default:   ActionAllow,
		Errno:     []string{"socket"},
		ErrnoCode: int16(syscall.EACCES),
	}
	filter, err := p.Build()
	if err != nil {
		t.Fatal(err)
	}
	// the errno must be packed into the low 16 bits of the
	// SECCOMP_RET_ERRNO return instruction
	const bpfRetK = 0x06
	want := uint32(libseccomp.ActionErrno) | uint32(uint16(syscall.EACCES))
	found := false
	for _, in := range filter {
		if in.Code == bpfRetK && in.K == want {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("no ret instruction carrying errno %d in filter", syscall.EACCES)
	}
}

func TestPolicyBuildErrnoDefaultCode(t *testing.T) {
	p := Policy{
		Default: ActionErrno,
	}
	filter, err := p.Build()
	if err != nil {
		t.Fatal(err)
	}
	const bpfRetK = 0x06
	want := uint32(libseccomp.ActionErrno) | uint32(uint16(syscall.EPERM))
	found := false
	for _, in := range filter {
		if in.Code == bpfRetK && in.K == want {
			found = true
			break
		}
	}
	if !found {
		t.Error("default errno action did not fall back to EPERM")
	}
}

func TestPolicyBuildUnknownSyscall(t *testing.T) {
	p := Policy{
		Default: ActionAllow,
		Kill:    []string{"not_a_syscall"},
	}
	if _, err := p.Build(); err == nil {
		t.Error("expected error for unknown syscall name")
	}
}

func TestActionReturnCode(t *testing.T) {
	a := ActionErrno.WithReturnCode(int16(syscall.EPERM))
	if a.Action() != ActionErrno {
		t.Errorf("basic action lost: %v", a.Action())
	}
	if a.ReturnCode() != int16(syscall.EPERM) {
		t.Errorf("return code lost: %v", a.ReturnCode())
	}
}
