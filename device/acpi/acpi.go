// Package acpi locates the ACPI root system description table through the
// RSDP address supplied by the bootloader. A missing or invalid RSDP is not
// fatal; the package simply reports that ACPI is unavailable.
package acpi

import (
	"unsafe"

	"microdragon/device/acpi/table"
	"microdragon/kernel"
	"microdragon/kernel/boot"
	"microdragon/kernel/kfmt"
	"microdragon/kernel/mm"
)

const (
	acpiRev1     uint8 = 0
	acpiRev2Plus uint8 = 2
)

const (
	// rsdpLocationLow and rsdpLocationHi bound the BIOS area where legacy
	// firmware places the RSDP. Addresses outside it are still accepted but
	// logged since they are usually supplied by UEFI.
	rsdpLocationLow = mm.PhysAddr(0xe0000)
	rsdpLocationHi  = mm.PhysAddr(0xfffff)

	// maxExtRSDPLength bounds the length reported by an extended RSDP to
	// the range that is mapped at the RSDP address.
	maxExtRSDPLength = mm.PageSize
)

var (
	errInvalidSignature      = &kernel.Error{Module: "acpi", Message: "invalid RSDP signature"}
	errRSDPChecksumMismatch  = &kernel.Error{Module: "acpi", Message: "RSDP checksum mismatch"}
	errExtChecksumMismatch   = &kernel.Error{Module: "acpi", Message: "extended RSDP checksum mismatch"}
	errExtRSDPLengthTooShort = &kernel.Error{Module: "acpi", Message: "extended RSDP length too short"}
	errExtRSDPLengthTooLong  = &kernel.Error{Module: "acpi", Message: "extended RSDP length exceeds the mapped page"}

	rsdpSignature = [8]byte{'R', 'S', 'D', ' ', 'P', 'T', 'R', ' '}

	log     = kfmt.PrefixWriter{Prefix: []byte("[acpi] "), Level: kfmt.LevelInfo}
	warnLog = kfmt.PrefixWriter{Prefix: []byte("[acpi] "), Level: kfmt.LevelWarn}

	info acpiInfo
)

// acpiInfo holds the state recorded by Init.
type acpiInfo struct {
	rsdpAddr mm.PhysAddr
	rsdp     *table.RSDPDescriptor

	// rootTableAddr holds the physical address of the RSDT or, if useXSDT
	// is set, the XSDT.
	rootTableAddr mm.PhysAddr
	useXSDT       bool
	revision      uint8
}

// Init validates the RSDP and records the address of the root system
// description table. It is a no-op when no RSDP was supplied or the RSDP is
// invalid. Init runs before the kernel address space is built, so the RSDP
// is reached through the bootloader's identity mapping.
//
//kernel:constructor order=8
func Init(bc *boot.Contract) {
	info = acpiInfo{}

	if bc.RSDPAddress == 0 {
		kfmt.Fprintf(&log, "no RSDP available; ACPI disabled\n")
		return
	}

	rsdpAddr := mm.PhysAddr(bc.RSDPAddress)
	rsdp := rsdpAt(rsdpAddr)
	rootTableAddr, useXSDT, err := parseRSDP(rsdp)
	if err != nil {
		kfmt.Fprintf(&warnLog, "ignoring RSDP at 0x%x: %s\n", bc.RSDPAddress, err.Message)
		return
	}

	info = acpiInfo{
		rsdpAddr:      rsdpAddr,
		rsdp:          rsdp,
		rootTableAddr: rootTableAddr,
		useXSDT:       useXSDT,
		revision:      rsdp.Revision,
	}

	source := "BIOS area"
	if rsdpAddr < rsdpLocationLow || rsdpAddr > rsdpLocationHi {
		source = "firmware"
	}

	tableName := "RSDT"
	if useXSDT {
		tableName = "XSDT"
	}
	kfmt.Fprintf(&log, "RSDP at 0x%x (%s), revision %d; %s at 0x%x\n", bc.RSDPAddress, source, info.revision, tableName, uint64(rootTableAddr))
}

// Rewire recomputes the cached RSDP pointer through the kernel direct map.
//
//kernel:constructor order=8 phase=rewire
func Rewire(_ *boot.Contract) {
	if info.rsdp == nil {
		return
	}

	info.rsdp = rsdpAt(info.rsdpAddr)
}

// RootTable returns the physical address of the root system description
// table and whether it is an XSDT. The returned ok flag is false if ACPI is
// not available.
func RootTable() (addr mm.PhysAddr, useXSDT bool, ok bool) {
	return info.rootTableAddr, info.useXSDT, info.rsdp != nil
}

// rsdpAt returns a pointer to the RSDP at physical address addr through the
// current physical to virtual translation.
func rsdpAt(addr mm.PhysAddr) *table.RSDPDescriptor {
	return (*table.RSDPDescriptor)(mm.PhysWindow(addr, table.SizeofRSDP).Pointer(0, table.SizeofRSDP))
}

// parseRSDP validates the supplied RSDP and returns the physical address of
// the RSDT or, for ACPI 2.0+, the XSDT.
func parseRSDP(rsdp *table.RSDPDescriptor) (mm.PhysAddr, bool, *kernel.Error) {
	if rsdp.Signature != rsdpSignature {
		return 0, false, errInvalidSignature
	}

	if !validTable(mm.Window{Base: virtAddrOf(rsdp), Size: table.SizeofRSDP}) {
		return 0, false, errRSDPChecksumMismatch
	}

	if rsdp.Revision == acpiRev1 {
		return mm.PhysAddr(rsdp.RSDTAddr), false, nil
	}

	// System uses ACPI revision > 1 and provides an extended RSDP
	// which can be accessed at the same place.
	extRSDP := (*table.ExtRSDPDescriptor)(mm.Window{Base: virtAddrOf(rsdp), Size: table.SizeofExtRSDP}.Pointer(0, table.SizeofExtRSDP))
	switch {
	case extRSDP.Length < table.SizeofExtRSDP:
		return 0, false, errExtRSDPLengthTooShort
	case extRSDP.Length > maxExtRSDPLength:
		return 0, false, errExtRSDPLengthTooLong
	}

	if !validTable(mm.Window{Base: virtAddrOf(rsdp), Size: uintptr(extRSDP.Length)}) {
		return 0, false, errExtChecksumMismatch
	}

	return mm.PhysAddr(extRSDP.XSDTAddr), true, nil
}

// validTable returns true if the bytes in w add up to zero.
func validTable(w mm.Window) bool {
	var sum uint8
	for i := uintptr(0); i < w.Size; i++ {
		sum += w.Load8(i)
	}

	return sum == 0
}

func virtAddrOf(rsdp *table.RSDPDescriptor) mm.VirtAddr {
	return mm.VirtAddr(uintptr(unsafe.Pointer(rsdp)))
}
