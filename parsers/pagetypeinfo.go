package parsers

import (
	"fmt"
	"io"
)

// NumOrders is the number of buddy allocator orders with a free area.
const NumOrders = 11

// maxFreeListWalk bounds a single free list walk so that a cycle not passing
// through the list head terminates.
const maxFreeListWalk = 1 << 22

const (
	pageSize  = 4096
	megabyte  = 1024 * 1024
	nameBytes = 12
)

type zoneLayout struct {
	freeArea     uint64
	freeAreaSize uint64
	freeList     uint64
	name         uint64
	presentPages uint64
	zoneSize     uint64
	mtypeNames   uint64
	migrateTypes int
}

// Pagetypeinfo writes the number of free pages per zone, migrate type and
// order, the way /proc/pagetypeinfo reports them.
func Pagetypeinfo(h Host, w io.Writer, opts ...Option) error {
	o := buildOptions(opts)

	l := &lookup{h: h}
	pgdat := l.addr("contig_page_data")
	nodeZones := l.offset("struct pglist_data", "node_zones")
	maxZones := l.constant("__MAX_NR_ZONES")
	zl := zoneLayout{
		freeArea:     l.offset("struct zone", "free_area"),
		freeAreaSize: l.size("struct free_area"),
		freeList:     l.offset("struct free_area", "free_list"),
		name:         l.offset("struct zone", "name"),
		presentPages: l.offset("struct zone", "present_pages"),
		zoneSize:     l.size("struct zone"),
		mtypeNames:   l.addr("migratetype_names"),
		migrateTypes: int(l.constant("MIGRATE_TYPES")),
	}
	if l.err != nil {
		return fmt.Errorf("failed to resolve pagetypeinfo layout: %w", l.err)
	}

	zones := pgdat + nodeZones
	for i := range maxZones {
		zone := zones + uint64(i)*zl.zoneSize
		present, err := h.ReadWord(zone + zl.presentPages)
		if err != nil {
			return fmt.Errorf("failed to read present pages of zone %d: %w", i, err)
		}
		if present == 0 {
			o.log.V(1).Info("skipping empty zone", "zone", i)
			continue
		}
		if err := printZone(h, w, zone, zl); err != nil {
			return err
		}
	}
	return nil
}

func printZone(h Host, w io.Writer, zone uint64, zl zoneLayout) error {
	ptr := uint64(h.PointerSize())
	listHeadSize := 2 * ptr

	zname, err := readStringAt(h, zone+zl.name)
	if err != nil {
		return fmt.Errorf("failed to read zone name: %w", err)
	}

	var total uint64
	corrupt := false
	for mtype := range zl.migrateTypes {
		mname, err := readStringAt(h, zl.mtypeNames+uint64(mtype)*ptr)
		if err != nil {
			return fmt.Errorf("failed to read migrate type name %d: %w", mtype, err)
		}

		if _, err := fmt.Fprintf(w, "zone %-8s type %-12s ", zname, mname); err != nil {
			return err
		}
		var typeBytes uint64
		for order := range NumOrders {
			head := zone + zl.freeArea + uint64(order)*zl.freeAreaSize +
				zl.freeList + uint64(mtype)*listHeadSize
			count, bad, err := countFreeList(h, head)
			if err != nil {
				return fmt.Errorf("failed to walk free list of order %d: %w", order, err)
			}
			corrupt = corrupt || bad
			typeBytes += count * pageSize << order
			if _, err := fmt.Fprintf(w, "%6d", count); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, " = %d MB\n", typeBytes/megabyte); err != nil {
			return err
		}
		total += typeBytes
	}

	if _, err := fmt.Fprintf(w, "Approximate total for zone %s: %d MB\n\n", zname, total/megabyte); err != nil {
		return err
	}
	if corrupt {
		if _, err := fmt.Fprintln(w, "!!! Numbers may not be accurate due to list corruption!"); err != nil {
			return err
		}
	}
	return nil
}

// countFreeList walks the circular list starting at head and returns the
// number of nodes on it. A node pointing to itself anywhere but at the head
// marks the list as corrupt.
func countFreeList(h Host, head uint64) (uint64, bool, error) {
	var count uint64
	curr := head
	for first := true; ; first = false {
		next, err := h.ReadWord(curr)
		if err != nil {
			return count, false, err
		}
		if next == curr {
			return count, !first, nil
		}
		if next == head {
			return count, false, nil
		}
		count++
		if count >= maxFreeListWalk {
			return count, true, nil
		}
		curr = next
	}
}

func readStringAt(h Host, ptr uint64) (string, error) {
	addr, err := h.ReadWord(ptr)
	if err != nil {
		return "", err
	}
	return h.ReadCString(addr, nameBytes)
}
