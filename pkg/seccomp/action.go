// Package seccomp compiles a syscall filter policy into the BPF program
// loaded by the forkexec runner right before execve.
package seccomp

// Action is the filter action applied to a matched syscall.
// The default value 0 is invalid.
type Action uint32

// Actions for matched syscalls
const (
	ActionAllow Action = iota + 1
	ActionErrno
	ActionKill
)

// WithReturnCode sets the errno returned when the action is errno
func (a Action) WithReturnCode(code int16) Action {
	return a.Action() | Action(code)<<16
}

// ReturnCode gets the errno carried by the action
func (a Action) ReturnCode() int16 {
	return int16(a >> 16)
}

// Action gets the basic action without the return code
func (a Action) Action() Action {
	return Action(a & 0xffff)
}
