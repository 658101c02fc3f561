package mount

// DefaultMounts is a minimal read-only rootfs for a pivoted root;
// targets are relative so they resolve inside the new root
var DefaultMounts = []Mount{
	{Source: "/usr", Target: "usr", Flags: roBind},
	{Source: "/lib", Target: "lib", Flags: roBind},
	{Source: "/lib64", Target: "lib64", Flags: roBind},
	{Source: "/bin", Target: "bin", Flags: roBind},
}
