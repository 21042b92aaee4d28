// Package table describes the layout of the ACPI structures that the kernel
// reads during bring-up.
package table

const (
	// SizeofRSDP is the number of bytes covered by the ACPI 1.0 checksum.
	SizeofRSDP = 20

	// SizeofExtRSDP is the minimum length of an extended (ACPI 2.0+) RSDP.
	// unsafe.Sizeof(ExtRSDPDescriptor{}) is larger due to trailing padding.
	SizeofExtRSDP = 36
)

// RSDPDescriptor defines the root system descriptor pointer for ACPI 1.0. This
// is used as the entry-point for parsing ACPI data.
type RSDPDescriptor struct {
	// The signature must contain "RSD PTR " (last byte is a space).
	Signature [8]byte

	// A value that when added to the sum of all other bytes contained in
	// this descriptor should result in the value 0.
	Checksum uint8

	OEMID [6]byte

	// ACPI revision number. It is 0 for ACPI1.0 and 2 for versions 2.0 to 6.2.
	Revision uint8

	// Physical address of 32-bit root system descriptor table.
	RSDTAddr uint32
}

// ExtRSDPDescriptor extends RSDPDescriptor with additional fields. It is used
// when RSDPDescriptor.revision > 1.
type ExtRSDPDescriptor struct {
	RSDPDescriptor

	// The size of the extended descriptor in bytes.
	Length uint32

	// Physical address of 64-bit root system descriptor table.
	XSDTAddr uint64

	// A value that when added to the sum of all other bytes contained in
	// this descriptor should result in the value 0.
	ExtendedChecksum uint8

	reserved [3]byte
}
