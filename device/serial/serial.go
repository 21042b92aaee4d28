// Package serial drives a 16550-compatible UART and installs it as the
// kernel output sink.
package serial

import (
	"microdragon/kernel/boot"
	"microdragon/kernel/cpu"
	"microdragon/kernel/kfmt"
)

// COM1 is the I/O port base of the first serial port.
const COM1 = uint16(0x3f8)

// UART register offsets relative to the port base.
const (
	regData        = 0 // DLAB=0: transmit/receive; DLAB=1: divisor low byte
	regIntEnable   = 1 // DLAB=0: interrupt enable; DLAB=1: divisor high byte
	regFIFOControl = 2
	regLineControl = 3
	regModemCtrl   = 4
	regLineStatus  = 5
)

const (
	lineControlDLAB = 0x80
	lineControl8N1  = 0x03

	// enable and clear both FIFOs with a 14-byte threshold.
	fifoControlEnable = 0xc7

	// assert DTR, RTS and OUT2.
	modemControlReady = 0x0b

	lineStatusTxEmpty = 0x20

	// baudDivisor selects 115200 baud.
	baudDivisor = 1

	// txSpinLimit bounds the number of status polls per byte so that a
	// missing UART cannot hang the kernel.
	txSpinLimit = 1 << 16
)

var (
	// The following functions are mocked by tests and are automatically
	// inlined by the compiler.
	portWriteByteFn = cpu.PortWriteByte
	portReadByteFn  = cpu.PortReadByte

	com1 = Port{base: COM1}
)

// Port is a 16550 UART reachable through port I/O. It implements io.Writer.
type Port struct {
	base uint16
}

// Init programs COM1 and installs it as the kfmt output sink, which also
// flushes any output buffered before the sink was available.
//
//kernel:constructor order=0 cfg=amd64
func Init(_ *boot.Contract) {
	com1.init()
	kfmt.SetOutputSink(&com1)
	kfmt.Printf("[serial] COM1 initialized at 0x%x\n", com1.base)
}

// init configures the UART for 115200 baud, 8 data bits, no parity and one
// stop bit with interrupts disabled.
func (p *Port) init() {
	portWriteByteFn(p.base+regIntEnable, 0)
	portWriteByteFn(p.base+regLineControl, lineControlDLAB)
	portWriteByteFn(p.base+regData, baudDivisor&0xff)
	portWriteByteFn(p.base+regIntEnable, baudDivisor>>8)
	portWriteByteFn(p.base+regLineControl, lineControl8N1)
	portWriteByteFn(p.base+regFIFOControl, fifoControlEnable)
	portWriteByteFn(p.base+regModemCtrl, modemControlReady)
}

// Write implements io.Writer. Line feeds are expanded to CR LF.
func (p *Port) Write(data []byte) (int, error) {
	for _, b := range data {
		if b == '\n' {
			p.writeByte('\r')
		}
		p.writeByte(b)
	}

	return len(data), nil
}

func (p *Port) writeByte(b byte) {
	for spins := 0; spins < txSpinLimit; spins++ {
		if portReadByteFn(p.base+regLineStatus)&lineStatusTxEmpty != 0 {
			break
		}
	}

	portWriteByteFn(p.base+regData, b)
}
