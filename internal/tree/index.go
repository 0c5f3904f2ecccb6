package tree

import "github.com/RoaringBitmap/roaring"

// Index numbers every node of a forest in serialization order so subtrees
// become contiguous bitmap ranges. An Index is a snapshot: rebuild it after
// the forest changes.
type Index struct {
	intID   map[string]uint32 // Node.ID -> preorder position
	ids     []string          // preorder position -> Node.ID
	end     []uint32          // preorder position -> one past the last descendant
	folders *roaring.Bitmap
	dupes   []string
}

// NewIndex walks the forest once.
func NewIndex(roots []*Node) *Index {
	ix := &Index{
		intID:   make(map[string]uint32),
		folders: roaring.New(),
	}
	ix.add(roots)
	return ix
}

func (ix *Index) add(nodes []*Node) {
	for _, n := range nodes {
		pos := uint32(len(ix.ids))
		if _, ok := ix.intID[n.ID]; ok {
			ix.dupes = append(ix.dupes, n.ID)
		} else {
			ix.intID[n.ID] = pos
		}
		ix.ids = append(ix.ids, n.ID)
		ix.end = append(ix.end, 0)
		if n.Kind == Folder {
			ix.folders.Add(pos)
			ix.add(n.Children)
		}
		ix.end[pos] = uint32(len(ix.ids))
	}
}

// Len is the number of indexed nodes.
func (ix *Index) Len() int { return len(ix.ids) }

// Has reports whether id is present.
func (ix *Index) Has(id string) bool {
	_, ok := ix.intID[id]
	return ok
}

// Subtree returns the positions of id and all of its descendants. Unknown
// ids yield an empty bitmap.
func (ix *Index) Subtree(id string) *roaring.Bitmap {
	bm := roaring.New()
	pos, ok := ix.intID[id]
	if !ok {
		return bm
	}
	bm.AddRange(uint64(pos), uint64(ix.end[pos]))
	return bm
}

// Contains reports whether id falls inside bm.
func (ix *Index) Contains(bm *roaring.Bitmap, id string) bool {
	pos, ok := ix.intID[id]
	return ok && bm.Contains(pos)
}

// IDs resolves a bitmap back to node ids in serialization order.
func (ix *Index) IDs(bm *roaring.Bitmap) []string {
	out := make([]string, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		pos := it.Next()
		if int(pos) < len(ix.ids) {
			out = append(out, ix.ids[pos])
		}
	}
	return out
}

// Folders returns the number of folders in the forest.
func (ix *Index) Folders() int { return int(ix.folders.GetCardinality()) }

// Duplicates lists ids that appear more than once. A well-formed forest has
// none.
func (ix *Index) Duplicates() []string { return ix.dupes }
