package block

import (
	"math"

	"github.com/martinsk/mskql/types"
)

// HashTable is an open-chaining hash table over row indices within a
// materialized build side, arena-allocated per spec §4.11: buckets hold
// the chain head, nexts the per-row chain link, hashes a cached hash
// value per row. Bucket count is rounded up to the next power of two
// ≥ 2x capacity.
type HashTable struct {
	Buckets []int32 // head of chain per bucket, -1 if empty
	Nexts   []int32 // chain link per inserted row, -1 if end
	Hashes  []uint64
}

// NewHashTable allocates a table sized for capacity rows.
func NewHashTable(capacity int) *HashTable {
	nb := 1
	for nb < capacity*2 {
		nb <<= 1
	}
	if nb < 1 {
		nb = 1
	}
	buckets := make([]int32, nb)
	for i := range buckets {
		buckets[i] = -1
	}
	return &HashTable{
		Buckets: buckets,
		Nexts:   make([]int32, 0, capacity),
		Hashes:  make([]uint64, 0, capacity),
	}
}

// Insert adds row rowIdx under hash h, prepending it to its bucket's chain.
func (h *HashTable) Insert(hash uint64, rowIdx int) {
	b := int(hash & uint64(len(h.Buckets)-1))
	h.Nexts = append(h.Nexts, h.Buckets[b])
	h.Hashes = append(h.Hashes, hash)
	h.Buckets[b] = int32(rowIdx)
}

// Chain returns the head of hash's bucket chain (-1 if empty); callers
// walk Nexts[cur] until -1, filtering on Hashes[cur] == hash before doing
// a full key comparison.
func (h *HashTable) Chain(hash uint64) int32 {
	return h.Buckets[hash&uint64(len(h.Buckets)-1)]
}

// fnv1a64Offset/Prime are the standard FNV-1a 64-bit constants, used for
// string hashing per spec §4.11 ("strings use FNV-1a").
const (
	fnv1a64Offset = 14695981039346656037
	fnv1a64Prime  = 1099511628211
)

func hashString(s string) uint64 {
	h := uint64(fnv1a64Offset)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= fnv1a64Prime
	}
	return h
}

// HashCell applies spec §4.11's "type-specific mixers for each scalar
// type; strings use FNV-1a". Nulls hash to a fixed sentinel so NULL
// equals NULL for grouping purposes (spec §4.12 hash_agg: "NULLs
// participate in grouping").
func HashCell(c types.Cell) uint64 {
	if c.IsNullLike() {
		return 0x9e3779b97f4a7c15
	}
	switch {
	case c.Tag.IsNumeric() && (c.Tag == types.TagFloat || c.Tag == types.TagNumeric):
		bits := math.Float64bits(c.Float)
		bits ^= bits >> 33
		bits *= 0xff51afd7ed558ccd
		bits ^= bits >> 33
		return bits
	case c.Tag.IsNumeric():
		v := uint64(c.Int)
		v ^= v >> 30
		v *= 0xbf58476d1ce4e5b9
		v ^= v >> 27
		v *= 0x94d049bb133111eb
		v ^= v >> 31
		return v
	case c.Tag == types.TagBoolean:
		if c.Bool {
			return 1
		}
		return 2
	default:
		return hashString(c.Text)
	}
}

// HashRow combines per-cell hashes for a composite group/join key.
func HashRow(cells []types.Cell) uint64 {
	h := uint64(fnv1a64Offset)
	for _, c := range cells {
		h ^= HashCell(c)
		h *= fnv1a64Prime
	}
	return h
}
