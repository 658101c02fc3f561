package config

import (
	"github.com/nsforge/nslaunch/pkg/forkexec"
)

// Runner assembles the complete forkexec runner for the profile:
// validated launch plan, mount plan, rlimits and seccomp filter.
// skipNotExists drops bind mounts with missing sources.
func (p *Profile) Runner(args []string, skipNotExists bool) (*forkexec.Runner, error) {
	mounts, err := p.MountParams(skipNotExists)
	if err != nil {
		return nil, err
	}
	filter, err := p.SeccompFilter()
	if err != nil {
		return nil, err
	}
	return &forkexec.Runner{
		Args:       args,
		Env:        p.Env,
		Isolation:  p.Launch(),
		Mounts:     mounts,
		RLimits:    p.PrepareRLimits(),
		WorkDir:    p.WorkDir,
		HostName:   p.HostName,
		DomainName: p.DomainName,
		Seccomp:    filter,
		NoNewPrivs: filter != nil,
	}, nil
}
