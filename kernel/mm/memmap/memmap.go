// Package memmap decodes the bootloader-native memory map referenced by the
// Boot Contract into a sorted set of disjoint, page-aligned usable physical
// regions.
package memmap

import (
	"microdragon/kernel"
	"microdragon/kernel/boot"
	"microdragon/kernel/kfmt"
	"microdragon/kernel/mm"
)

// MaxRegions is the capacity of a RegionSet. Usable regions past this limit
// are dropped (and reported) since no heap is available to grow the set.
const MaxRegions = 64

var (
	errMissingMemoryMap = &kernel.Error{Module: "memmap", Message: "bootloader did not provide a memory map"}
	errUnknownFormat    = &kernel.Error{Module: "memmap", Message: "unrecognized memory map format tag"}

	warnLog = kfmt.PrefixWriter{Prefix: []byte("[memmap] "), Level: kfmt.LevelWarn}
)

// RegionSet is a fixed-capacity, sorted collection of disjoint usable
// regions.
type RegionSet struct {
	regions [MaxRegions]mm.Region
	count   int
	dropped int
}

// Regions returns the regions in ascending base address order. The returned
// slice aliases the set.
func (s *RegionSet) Regions() []mm.Region {
	return s.regions[:s.count]
}

// Dropped returns the number of usable regions that did not fit in the set.
func (s *RegionSet) Dropped() int {
	return s.dropped
}

// TotalSize returns the number of usable bytes described by the set.
func (s *RegionSet) TotalSize() mm.Size {
	var total uint64
	for _, r := range s.Regions() {
		total += r.Length
	}
	return mm.Size(total)
}

func (s *RegionSet) reset() {
	s.count, s.dropped = 0, 0
}

// add trims [base, base+length) to whole pages and merges it into the set.
// Frame 0 is never reported as usable so that a zero physical address can
// keep meaning "absent".
func (s *RegionSet) add(base mm.PhysAddr, length uint64) {
	end := base + mm.PhysAddr(length)
	if end < base {
		end = ^mm.PhysAddr(0)
	}

	start, end := base.AlignUp(), end.AlignDown()
	if start < base {
		return
	}
	if start == 0 {
		start = mm.PageSize
	}
	if end <= start {
		return
	}

	s.insert(start, end)
}

// insert adds [start, end) to the set, coalescing it with every region it
// overlaps or touches so that the set stays sorted and disjoint.
func (s *RegionSet) insert(start, end mm.PhysAddr) {
	first := 0
	for first < s.count && s.regions[first].End() < start {
		first++
	}

	last := first
	for ; last < s.count && s.regions[last].Base <= end; last++ {
		if s.regions[last].Base < start {
			start = s.regions[last].Base
		}
		if regionEnd := s.regions[last].End(); regionEnd > end {
			end = regionEnd
		}
	}

	switch merged := last - first; {
	case merged == 0 && s.count == MaxRegions:
		s.dropped++
		return
	case merged == 0:
		copy(s.regions[first+1:s.count+1], s.regions[first:s.count])
		s.count++
	case merged > 1:
		copy(s.regions[first+1:], s.regions[last:s.count])
		s.count -= merged - 1
	}

	s.regions[first] = mm.Region{Base: start, Length: uint64(end - start)}
}

// Exclude removes [base, base+length) from the set. The range is widened to
// whole pages so that a partially covered frame is never reported as usable.
// Carving a hole in the middle of a region splits it in two; if the set is
// full the upper half is dropped.
func (s *RegionSet) Exclude(base mm.PhysAddr, length uint64) {
	if length == 0 {
		return
	}

	const maxAligned = ^mm.PhysAddr(mm.PageSize - 1)

	start, end := base.AlignDown(), base+mm.PhysAddr(length)
	if end < base || end > maxAligned {
		end = maxAligned
	} else {
		end = end.AlignUp()
	}

	for i := 0; i < s.count; {
		region := s.regions[i]
		regionEnd := region.End()

		switch {
		case regionEnd <= start:
		case region.Base >= end:
			// Regions are sorted; nothing past this point overlaps.
			return
		case region.Base >= start && regionEnd <= end:
			copy(s.regions[i:], s.regions[i+1:s.count])
			s.count--
			continue
		case region.Base < start && regionEnd > end:
			s.regions[i].Length = uint64(start - region.Base)
			if s.count == MaxRegions {
				s.dropped++
				return
			}
			copy(s.regions[i+2:s.count+1], s.regions[i+1:s.count])
			s.regions[i+1] = mm.Region{Base: end, Length: uint64(regionEnd - end)}
			s.count++
			return
		case region.Base < start:
			s.regions[i].Length = uint64(start - region.Base)
		default:
			s.regions[i] = mm.Region{Base: end, Length: uint64(regionEnd - end)}
		}
		i++
	}
}

// Read decodes the memory map described by info into set, replacing its
// previous contents. Only entries that the source format marks as usable
// right now are kept. The source buffer is never modified.
//
// A missing memory map or an unknown format tag is reported as an error;
// both are fatal for bring-up.
func Read(info *boot.MemoryMapInfo, set *RegionSet) *kernel.Error {
	if info.Pointer == 0 || info.Count == 0 {
		return errMissingMemoryMap
	}

	format := lookupFormat(info.Type)
	if format == nil {
		return errUnknownFormat
	}

	set.reset()

	entry := mm.Window{Base: mm.VirtAddr(info.Pointer), Size: format.EntrySize}
	for index := uint64(0); index < info.Count; index, entry.Base = index+1, entry.Base+mm.VirtAddr(format.EntrySize) {
		if e := format.Decode(entry); e.Usable {
			set.add(e.Base, e.Length)
		}
	}

	if set.dropped != 0 {
		kfmt.Fprintf(&warnLog, "ignoring %d usable regions past the first %d\n", set.dropped, MaxRegions)
	}

	return nil
}
