package geom

import (
	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
)

// minExtent is used for rings with a zero width or height, rtreego
// does not accept empty rectangles.
const minExtent = 1e-9

func boundToRect(b orb.Bound) *rtreego.Rect {
	w := b.Max[0] - b.Min[0]
	h := b.Max[1] - b.Min[1]
	if w < minExtent {
		w = minExtent
	}
	if h < minExtent {
		h = minExtent
	}
	r, err := rtreego.NewRect(rtreego.Point{b.Min[0], b.Min[1]}, []float64{w, h})
	if err != nil {
		// only returned for non-positive lengths
		panic(err)
	}
	return r
}

type indexedRing struct {
	idx  int
	rect *rtreego.Rect
}

func (r *indexedRing) Bounds() *rtreego.Rect {
	return r.rect
}

// ringIndex finds rings with intersecting bounding boxes.
type ringIndex struct {
	tree *rtreego.Rtree
}

func newRingIndex(rings []*ring) *ringIndex {
	objs := make([]rtreego.Spatial, len(rings))
	for i, r := range rings {
		objs[i] = &indexedRing{idx: i, rect: boundToRect(r.bound)}
	}
	return &ringIndex{tree: rtreego.NewTree(2, 25, 50, objs...)}
}

// intersecting returns the indices of all rings whose bounds intersect b.
func (ri *ringIndex) intersecting(b orb.Bound) []int {
	result := ri.tree.SearchIntersect(boundToRect(b))
	idxs := make([]int, len(result))
	for i, obj := range result {
		idxs[i] = obj.(*indexedRing).idx
	}
	return idxs
}
