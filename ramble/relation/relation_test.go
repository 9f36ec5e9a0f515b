package relation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramble-dl/ramble/ramble"
)

func collect(it Iterator) []Tuple {
	var out []Tuple
	for it.Next() {
		out = append(out, it.Tuple())
	}
	return out
}

func TestIndexedInsertContains(t *testing.T) {
	r := NewIndexed(2, nil)
	assert.True(t, r.Insert(Tuple{1, 2}))
	assert.False(t, r.Insert(Tuple{1, 2}), "duplicate insert reports false")
	assert.True(t, r.Insert(Tuple{2, 3}))

	assert.True(t, r.Contains(Tuple{1, 2}))
	assert.False(t, r.Contains(Tuple{3, 1}))
	assert.Equal(t, 2, r.Size())

	r.Purge()
	assert.Equal(t, 0, r.Size())
	assert.False(t, r.Contains(Tuple{1, 2}))
}

func TestIndexedScanOrder(t *testing.T) {
	r := NewIndexed(2, nil)
	for _, tp := range []Tuple{{3, 1}, {1, 2}, {2, 3}, {1, 1}} {
		r.Insert(tp)
	}
	got := collect(r.Scan())
	require.Equal(t, []Tuple{{1, 1}, {1, 2}, {2, 3}, {3, 1}}, got)
}

func TestIndexedViewDecodesDeclaredOrder(t *testing.T) {
	// Second index sorts by column 1 first but still yields tuples in
	// declared column order.
	r := NewIndexed(2, [][]int{{0, 1}, {1, 0}})
	for _, tp := range []Tuple{{1, 9}, {2, 5}, {3, 7}} {
		r.Insert(tp)
	}
	v := r.View(1)
	assert.Equal(t, []int{1, 0}, v.Order())
	got := collect(v.Range(Tuple{0, 5}, Tuple{100, 7}))
	require.Equal(t, []Tuple{{2, 5}, {3, 7}}, got)
}

func TestIndexedRangeInclusiveBounds(t *testing.T) {
	r := NewIndexed(2, nil)
	for i := ramble.RamDomain(0); i < 10; i++ {
		r.Insert(Tuple{i, i * 10})
	}
	got := collect(r.View(0).Range(Tuple{3, 0}, Tuple{5, 100}))
	require.Len(t, got, 3)
	assert.Equal(t, Tuple{3, 30}, got[0])
	assert.Equal(t, Tuple{5, 50}, got[2])

	assert.True(t, r.View(0).Contains(Tuple{3, 0}, Tuple{5, 100}))
	assert.False(t, r.View(0).Contains(Tuple{33, 0}, Tuple{44, 0}))
}

func TestIndexedIteratorCrossesBatches(t *testing.T) {
	r := NewIndexed(1, nil)
	const n = scanBatch*3 + 7
	for i := 0; i < n; i++ {
		r.Insert(Tuple{ramble.RamDomain(i)})
	}
	got := collect(r.Scan())
	require.Len(t, got, n)
	for i, tp := range got {
		assert.Equal(t, ramble.RamDomain(i), tp[0])
	}
}

func TestIndexedIteratorIsSnapshot(t *testing.T) {
	r := NewIndexed(1, nil)
	r.Insert(Tuple{1})
	r.Insert(Tuple{2})

	it := r.Scan()
	r.Insert(Tuple{0})
	r.Insert(Tuple{3})

	got := collect(it)
	require.Equal(t, []Tuple{{1}, {2}}, got, "iterator observes the relation as of creation")
	assert.Equal(t, 4, r.Size())
}

func TestIndexedPartitionScanCoversAll(t *testing.T) {
	r := NewIndexed(1, nil)
	for i := 0; i < 100; i++ {
		r.Insert(Tuple{ramble.RamDomain(i)})
	}
	parts := r.View(0).PartitionScan(7)
	require.LessOrEqual(t, len(parts), 7)

	var all []Tuple
	for _, part := range parts {
		all = append(all, collect(part)...)
	}
	require.Len(t, all, 100)
	for i, tp := range all {
		assert.Equal(t, ramble.RamDomain(i), tp[0], "chunks are ordered and disjoint")
	}
}

func TestIndexedPartitionRange(t *testing.T) {
	r := NewIndexed(1, nil)
	for i := 0; i < 50; i++ {
		r.Insert(Tuple{ramble.RamDomain(i)})
	}
	parts := r.View(0).PartitionRange(Tuple{10}, Tuple{29}, 4)
	total := 0
	for _, part := range parts {
		total += len(collect(part))
	}
	assert.Equal(t, 20, total)
}

func TestPartitionMoreChunksThanTuples(t *testing.T) {
	r := NewIndexed(1, nil)
	r.Insert(Tuple{1})
	parts := r.View(0).PartitionScan(8)
	require.Len(t, parts, 1)
	assert.Len(t, collect(parts[0]), 1)
}

func TestNullaryBoolean(t *testing.T) {
	r := NewNullary()
	assert.Equal(t, 0, r.Size())
	assert.False(t, r.Contains(Tuple{}))
	assert.Empty(t, collect(r.Scan()))

	assert.True(t, r.Insert(Tuple{}))
	assert.False(t, r.Insert(Tuple{}), "second insert is a no-op")
	assert.Equal(t, 1, r.Size())
	assert.True(t, r.Contains(Tuple{}))
	require.Equal(t, []Tuple{{}}, collect(r.Scan()))

	r.Purge()
	assert.Equal(t, 0, r.Size())
}

func TestEqRelClasses(t *testing.T) {
	r := NewEqRel()
	assert.True(t, r.Insert(Tuple{1, 2}))
	assert.True(t, r.Insert(Tuple{2, 3}))

	// {1,2,3} is one class: all nine pairs exist.
	assert.Equal(t, 9, r.Size())
	assert.True(t, r.Contains(Tuple{1, 3}))
	assert.True(t, r.Contains(Tuple{3, 1}))
	assert.True(t, r.Contains(Tuple{2, 2}))
	assert.False(t, r.Contains(Tuple{1, 4}))

	assert.False(t, r.Insert(Tuple{3, 1}), "already equivalent")
	assert.True(t, r.Insert(Tuple{4, 4}), "new element forms its own class")
	assert.Equal(t, 10, r.Size())
}

func TestEqRelScanEnumeratesPairs(t *testing.T) {
	r := NewEqRel()
	r.Insert(Tuple{1, 2})
	got := collect(r.Scan())
	require.Equal(t, []Tuple{{1, 1}, {1, 2}, {2, 1}, {2, 2}}, got)
}

func TestEqRelExtend(t *testing.T) {
	a := NewEqRel()
	a.Insert(Tuple{1, 2})
	b := NewEqRel()
	b.Insert(Tuple{2, 3})
	b.Insert(Tuple{5, 6})

	a.Extend(b)
	assert.True(t, a.Contains(Tuple{1, 3}), "classes joined across stores")
	assert.True(t, a.Contains(Tuple{5, 6}))
	assert.False(t, a.Contains(Tuple{1, 5}))
}

func TestEqRelViewRange(t *testing.T) {
	r := NewEqRel()
	r.Insert(Tuple{1, 2})
	r.Insert(Tuple{4, 5})
	v := r.View(0)
	got := collect(v.Range(Tuple{1, 0}, Tuple{1, 9}))
	require.Equal(t, []Tuple{{1, 1}, {1, 2}}, got)
}

func TestNewPicksVariant(t *testing.T) {
	_, nullary := New(0, ramble.DefaultRepresentation, nil).(*Nullary)
	assert.True(t, nullary)
	_, eq := New(2, ramble.EqRelRepresentation, nil).(*EqRel)
	assert.True(t, eq)
	_, indexed := New(3, ramble.BTreeRepresentation, nil).(*Indexed)
	assert.True(t, indexed)
}
