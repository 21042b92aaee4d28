//go:build debug

package debug

// Enabled is true when the kernel is built with the debug tag.
const Enabled = true
