// Command nslaunch runs a program inside an isolated environment
// described by command line flags or a YAML profile: unshared
// namespaces, a pivot_root / chroot root transition, parent death
// signal and SIGCHLD policy, mounts, rlimits and a seccomp filter.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "nslaunch",
		Short:         "launch processes into isolated Linux environments",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
