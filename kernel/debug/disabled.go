//go:build !debug

package debug

// Enabled is false unless the kernel is built with the debug tag.
const Enabled = false
