package main

import (
	"microdragon/bootloader/multiboot"
	"microdragon/kernel/boot"
	"microdragon/kernel/kmain"
)

var (
	// The following variables are populated by the rt0 code before main
	// is invoked.
	multibootInfoPtr uintptr
	primaryStack     uintptr
	secondaryStack   uintptr
	kernelStart      uintptr
	kernelEnd        uintptr

	bootContract boot.Contract
)

// main translates the multiboot information into a boot contract and hands
// it over to the actual kernel entrypoint. It is intentionally defined to
// prevent the Go compiler from optimizing away the real kernel code.
//
// main is not expected to return. If it does, the rt0 code will halt the CPU.
func main() {
	image := boot.PhysRange{Base: uint64(kernelStart), Length: uint64(kernelEnd - kernelStart)}
	multiboot.FillContract(&bootContract, multibootInfoPtr, image, boot.StackInfo{
		Primary:   primaryStack,
		Secondary: secondaryStack,
	})
	kmain.Kmain(&bootContract)
}
