// Package assoc implements the set-associative, LRU-managed store shared by
// the MLSP core's metadata tables (spec.md §4.1): the FilterTable,
// AccumulationTable, and PatternBuffer are built on Table[T]. The
// PatternHistoryTable keeps its own sets, and the ACP core's index table is
// a map.
//
// This generalizes the original LRUSetAssociativeCache<T> template that
// rb.h, pmp.h, and rsa.h each specialize (FTRB/ATRB/PHTRB, FTPMP/ATPMP/PHTPMP,
// ...). Where the C++ base class exposed raw Entry* pointers that callers
// mutated in place, Table[T] returns a *Entry[T] pointing into its own
// backing slice: callers may read or mutate through it, but the pointer must
// not be retained past the table's next mutating call (spec.md §9).
package assoc

import (
	"fmt"
	"math"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Entry is one slot of a set: a tag, validity flag, LRU stamp, and payload.
type Entry[T any] struct {
	Valid bool
	Tag   uint64
	Stamp uint64
	Data  T
}

// Table is an N-set, W-way LRU set-associative store keyed by a uint64.
// Index and tag are derived from the key by hashIndex, a deterministic
// mixing function standing in for the original's bit-permutation "hash_index"
// (spec.md §4.1): low bits select the set, the remainder becomes the tag.
//
// Table is not safe for concurrent use (spec.md §5): it is driven
// synchronously by a single Engine.
type Table[T any] struct {
	numSets int
	numWays int
	sets    [][]Entry[T]
	clock   uint64
}

// New returns a table with numSets sets of numWays ways each. Both must be
// positive; numSets need not be a power of two, though every caller in this
// repository uses one (matching the original's size assertions).
func New[T any](numSets, numWays int) *Table[T] {
	if numSets <= 0 {
		numSets = 1
	}
	if numWays <= 0 {
		numWays = 1
	}
	sets := make([][]Entry[T], numSets)
	for i := range sets {
		sets[i] = make([]Entry[T], numWays)
	}
	return &Table[T]{numSets: numSets, numWays: numWays, sets: sets}
}

// NumSets returns the configured set count.
func (t *Table[T]) NumSets() int { return t.numSets }

// NumWays returns the configured way count.
func (t *Table[T]) NumWays() int { return t.numWays }

// locate derives the (set index, tag) pair for a key via a deterministic
// 64-bit mix (the murmur3 finalizer), matching spec.md §4.1's "hash of the
// low key bits; tag = key / N".
func (t *Table[T]) locate(key uint64) (index int, tag uint64) {
	h := mix(key)
	index = int(h % uint64(t.numSets))
	tag = h / uint64(t.numSets)
	return index, tag
}

func mix(x uint64) uint64 {
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33
	return x
}

// Find returns the entry for key, or (nil, false) on a miss. It does not
// update the LRU stamp; callers that want MRU-refresh-on-hit semantics call
// SetMRU explicitly, matching the original's separate find()/set_mru() calls.
func (t *Table[T]) Find(key uint64) (*Entry[T], bool) {
	index, tag := t.locate(key)
	set := t.sets[index]
	for i := range set {
		if set[i].Valid && set[i].Tag == tag {
			return &set[i], true
		}
	}
	return nil, false
}

// SetMRU refreshes the LRU stamp of key's entry, if present.
func (t *Table[T]) SetMRU(key uint64) {
	if e, ok := t.Find(key); ok {
		e.Stamp = t.nextStamp()
	}
}

// Insert writes data under key, upserting in place if key's tag is already
// valid in its set (keeping the "distinct valid tags per set" invariant
// regardless of caller discipline), and otherwise evicting the minimum-stamp
// way (ties broken by the lowest way index). It returns the entry that was
// evicted, if any, so callers can retire it (e.g. into a PatternHistoryTable).
func (t *Table[T]) Insert(key uint64, data T) (evicted Entry[T], hadVictim bool) {
	index, tag := t.locate(key)
	set := t.sets[index]

	for i := range set {
		if set[i].Valid && set[i].Tag == tag {
			set[i].Data = data
			set[i].Stamp = t.nextStamp()
			return Entry[T]{}, false
		}
	}

	victim := -1
	for i := range set {
		if !set[i].Valid {
			victim = i
			break
		}
	}
	if victim == -1 {
		victim = 0
		for i := 1; i < len(set); i++ {
			if set[i].Stamp < set[victim].Stamp {
				victim = i
			}
		}
	}

	old := set[victim]
	set[victim] = Entry[T]{Valid: true, Tag: tag, Stamp: t.nextStamp(), Data: data}

	if old.Valid {
		return old, true
	}
	return Entry[T]{}, false
}

// Erase removes key's entry if present, returning its prior contents.
func (t *Table[T]) Erase(key uint64) (Entry[T], bool) {
	index, tag := t.locate(key)
	set := t.sets[index]
	for i := range set {
		if set[i].Valid && set[i].Tag == tag {
			old := set[i]
			set[i] = Entry[T]{}
			return old, true
		}
	}
	return Entry[T]{}, false
}

func (t *Table[T]) nextStamp() uint64 {
	if t.clock == math.MaxUint64 {
		t.renormalize()
	}
	t.clock++
	return t.clock
}

// renormalize compresses the live stamps of every set to a dense prefix,
// guarding against the monotonic counter overflowing on very long runs
// (spec.md §9).
func (t *Table[T]) renormalize() {
	type loc struct {
		set, way int
		stamp    uint64
	}
	var live []loc
	for s := range t.sets {
		for w := range t.sets[s] {
			if t.sets[s][w].Valid {
				live = append(live, loc{s, w, t.sets[s][w].Stamp})
			}
		}
	}
	for i := 0; i < len(live); i++ {
		for j := i + 1; j < len(live); j++ {
			if live[j].stamp < live[i].stamp {
				live[i], live[j] = live[j], live[i]
			}
		}
	}
	for i, l := range live {
		t.sets[l.set][l.way].Stamp = uint64(i + 1)
	}
	t.clock = uint64(len(live))
}

// Sets exposes the backing storage read-only, for invariant checks in tests
// and for RowFormatter-driven debug dumps.
func (t *Table[T]) Sets() [][]Entry[T] { return t.sets }

// RowFormatter renders one valid entry as a row of string cells, given the
// set index it was found in. Each concrete metadata table supplies its own
// (mirroring the original's per-subclass write_data override).
type RowFormatter[T any] func(setIndex int, e Entry[T]) []string

// Render builds an ASCII table of every valid entry, replacing the original
// hand-rolled Table/set_cell class with go-pretty, the table-rendering
// library used across the sarchlab simulator ecosystem.
func (t *Table[T]) Render(headers []string, format RowFormatter[T]) string {
	tw := table.NewWriter()
	hdr := make(table.Row, len(headers))
	for i, h := range headers {
		hdr[i] = h
	}
	tw.AppendHeader(hdr)
	for s := range t.sets {
		for w := range t.sets[s] {
			e := t.sets[s][w]
			if !e.Valid {
				continue
			}
			cells := format(s, e)
			row := make(table.Row, len(cells))
			for i, c := range cells {
				row[i] = c
			}
			tw.AppendRow(row)
		}
	}
	return tw.Render()
}

// String implements fmt.Stringer with a minimal dump (tag/stamp only), used
// when a concrete table doesn't need a custom RowFormatter.
func (t *Table[T]) String() string {
	return t.Render([]string{"Set", "Tag", "Stamp"}, func(setIndex int, e Entry[T]) []string {
		return []string{fmt.Sprintf("%d", setIndex), fmt.Sprintf("0x%x", e.Tag), fmt.Sprintf("%d", e.Stamp)}
	})
}
