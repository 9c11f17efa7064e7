// Package clock implements the three complementary clocks of spec §3:
// PhysicalTime (wall clock for humans), LogicalTime (Lamport + vector clock,
// for causal ordering), and OrderTime (canonical 32-byte total-order stamp).
package clock

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/hxrts/aura/internal/ids"
)

// PhysicalTime is milliseconds since the Unix epoch plus an optional
// uncertainty window. Never used for ordering — only for display.
type PhysicalTime struct {
	Millis      uint64
	Uncertainty *uint64
}

// LogicalTime pairs a Lamport scalar with a per-authority vector clock.
// Merging on receive takes the entrywise max of the vector and the max of
// the scalar, then increments for the local event — this guarantees causal
// ordering (spec §3).
type LogicalTime struct {
	Lamport uint64
	Vector  map[ids.AuthorityId]uint64
}

// NewLogicalTime returns the identity logical clock.
func NewLogicalTime() LogicalTime {
	return LogicalTime{Vector: make(map[ids.AuthorityId]uint64)}
}

// Clone returns a deep copy so callers never share the backing map.
func (t LogicalTime) Clone() LogicalTime {
	out := LogicalTime{Lamport: t.Lamport, Vector: make(map[ids.AuthorityId]uint64, len(t.Vector))}
	for k, v := range t.Vector {
		out.Vector[k] = v
	}
	return out
}

// Advance increments the clock for a local event originating at self.
func (t LogicalTime) Advance(self ids.AuthorityId) LogicalTime {
	out := t.Clone()
	out.Lamport++
	out.Vector[self] = out.Lamport
	return out
}

// Merge combines the local clock with an observed remote clock on receive,
// taking the entrywise max, then advances for the receive event itself.
func (t LogicalTime) Merge(self ids.AuthorityId, observed LogicalTime) LogicalTime {
	out := t.Clone()
	if observed.Lamport > out.Lamport {
		out.Lamport = observed.Lamport
	}
	for k, v := range observed.Vector {
		if cur, ok := out.Vector[k]; !ok || v > cur {
			out.Vector[k] = v
		}
	}
	out.Lamport++
	out.Vector[self] = out.Lamport
	return out
}

// HappensBefore reports whether t causally precedes other: every entry of
// t's vector is <= the corresponding entry of other's, and at least one is
// strictly less.
func (t LogicalTime) HappensBefore(other LogicalTime) bool {
	strictlyLess := false
	for k, v := range t.Vector {
		ov := other.Vector[k]
		if v > ov {
			return false
		}
		if v < ov {
			strictlyLess = true
		}
	}
	for k, ov := range other.Vector {
		if _, ok := t.Vector[k]; !ok && ov > 0 {
			strictlyLess = true
		}
	}
	return strictlyLess
}

// OrderTime is the canonical, tie-broken, 32-byte total-order stamp used as
// the storage key for facts. Two facts are equal iff their OrderTime bytes
// are equal (spec §3).
type OrderTime [32]byte

func (o OrderTime) Bytes() []byte { return append([]byte(nil), o[:]...) }

func (o OrderTime) Compare(other OrderTime) int { return bytes.Compare(o[:], other[:]) }

// NewOrderTime derives a canonical order stamp from a monotonically
// increasing per-authority sequence number, the originating authority, and a
// content hash, ensuring totality (sequence+authority breaks logical-clock
// ties) and determinism (no randomness, no wall-clock read) given the same
// inputs — required for deterministic simulation replay (spec §8 scenario 6).
func NewOrderTime(seq uint64, origin ids.AuthorityId, contentHash ids.Hash32) OrderTime {
	var o OrderTime
	binary.BigEndian.PutUint64(o[0:8], seq)
	copy(o[8:16], origin.Bytes()[:8])
	copy(o[16:32], contentHash.Bytes()[:16])
	return o
}

// SortOrderTimes sorts a slice in place by the canonical total order.
func SortOrderTimes(times []OrderTime) {
	sort.Slice(times, func(i, j int) bool { return times[i].Compare(times[j]) < 0 })
}

// TimeStamp is the tagged union of spec §6's wire encoding: a fact carries
// exactly one of physical, logical, or order time depending on context, but
// in practice Aura stamps every fact with all three (§3: "all appearing in
// facts").
type TimeStamp struct {
	Physical PhysicalTime
	Logical  LogicalTime
	Order    OrderTime
}
