package cpu

var (
	cpuidFn             = ID
	interruptsEnabledFn = InterruptsEnabled
	disableInterruptsFn = DisableInterrupts
	enableInterruptsFn  = EnableInterrupts
)

// EnableInterrupts enables interrupt handling.
func EnableInterrupts()

// DisableInterrupts disables interrupt handling.
func DisableInterrupts()

// InterruptsEnabled returns true if the interrupt flag (IF) is set in RFLAGS.
func InterruptsEnabled() bool

// Halt stops instruction execution.
func Halt()

// FlushTLBEntry flushes a TLB entry for a particular virtual address.
func FlushTLBEntry(virtAddr uintptr)

// SwitchPDT sets the root page table directory to point to the specified
// physical address and flushes the TLB.
func SwitchPDT(pdtPhysAddr uintptr)

// ActivePDT returns the physical address of the currently active page table.
func ActivePDT() uintptr

// ID returns information about the CPU and its features. It is implemented
// as a CPUID instruction with EAX=leaf and ECX=0 and returns the values in
// EAX, EBX, ECX and EDX.
func ID(leaf uint32) (uint32, uint32, uint32, uint32)

// PortWriteByte writes a uint8 value to the requested port.
func PortWriteByte(port uint16, val uint8)

// PortReadByte reads a uint8 value from the requested port.
func PortReadByte(port uint16) uint8

// SupportsLA57 returns true if the CPU supports 57-bit linear addresses
// (5-level paging).
func SupportsLA57() bool {
	maxLeaf, _, _, _ := cpuidFn(0)
	if maxLeaf < 7 {
		return false
	}

	_, _, ecx, _ := cpuidFn(7)
	return ecx&(1<<16) != 0
}

// AddressBits returns the number of physical and linear address bits
// supported by the CPU. If the extended leaf that reports them is not
// available, the architectural defaults for 4-level paging are returned.
func AddressBits() (physBits, virtBits uint8) {
	maxExtLeaf, _, _, _ := cpuidFn(0x80000000)
	if maxExtLeaf < 0x80000008 {
		return 52, 48
	}

	eax, _, _, _ := cpuidFn(0x80000008)
	return uint8(eax & 0xff), uint8((eax >> 8) & 0xff)
}

// SaveAndDisableInterrupts masks interrupts and returns true if they were
// enabled before the call. The result should be passed to RestoreInterrupts
// once the critical section ends.
func SaveAndDisableInterrupts() bool {
	enabled := interruptsEnabledFn()
	if enabled {
		disableInterruptsFn()
	}
	return enabled
}

// RestoreInterrupts re-enables interrupts if they were enabled when the
// matching SaveAndDisableInterrupts call was made.
func RestoreInterrupts(wasEnabled bool) {
	if wasEnabled {
		enableInterruptsFn()
	}
}
