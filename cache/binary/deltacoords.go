package binary

import (
	"encoding/binary"
	"errors"
)

// Coord is a node location in fixed point (1e-7 degree) representation.
type Coord struct {
	ID   int64
	X, Y int32
}

// MarshalDeltaCoords encodes coords with delta coded varints. Coords
// should be sorted by ID for a compact encoding.
func MarshalDeltaCoords(coords []Coord, buf []byte) []byte {
	estimatedLength := len(coords)*4*3 + binary.MaxVarintLen64

	if cap(buf) < estimatedLength {
		buf = make([]byte, estimatedLength)
	} else {
		// resize slice to full capacity
		buf = buf[:cap(buf)]
	}

	nextPos := binary.PutUvarint(buf, uint64(len(coords)))

	grow := func() {
		if len(buf)-nextPos < binary.MaxVarintLen64 {
			tmp := make([]byte, len(buf)*3/2+binary.MaxVarintLen64)
			copy(tmp, buf)
			buf = tmp
		}
	}

	lastID := int64(0)
	for i := range coords {
		grow()
		nextPos += binary.PutVarint(buf[nextPos:], coords[i].ID-lastID)
		lastID = coords[i].ID
	}

	lastX := int64(0)
	for i := range coords {
		grow()
		x := int64(coords[i].X)
		nextPos += binary.PutVarint(buf[nextPos:], x-lastX)
		lastX = x
	}

	lastY := int64(0)
	for i := range coords {
		grow()
		y := int64(coords[i].Y)
		nextPos += binary.PutVarint(buf[nextPos:], y-lastY)
		lastY = y
	}

	return buf[:nextPos]
}

var errVarint = errors.New("unmarshal delta coords: missing data for varint or overflow")

// UnmarshalDeltaCoords decodes buf into coords, reusing its capacity.
func UnmarshalDeltaCoords(buf []byte, coords []Coord) ([]Coord, error) {
	length, n := binary.Uvarint(buf)
	if n <= 0 {
		return nil, errVarint
	}
	var offset = n

	// each coord needs at least one byte
	if length > uint64(len(buf)) {
		return nil, errVarint
	}

	if uint64(cap(coords)) < length {
		coords = make([]Coord, length)
	} else {
		coords = coords[:length]
	}

	lastID := int64(0)
	for i := 0; uint64(i) < length; i++ {
		id, n := binary.Varint(buf[offset:])
		if n <= 0 {
			return nil, errVarint
		}
		offset += n
		id = lastID + id
		coords[i].ID = id
		lastID = id
	}

	lastX := int64(0)
	for i := 0; uint64(i) < length; i++ {
		x, n := binary.Varint(buf[offset:])
		if n <= 0 {
			return nil, errVarint
		}
		offset += n
		x = lastX + x
		coords[i].X = int32(x)
		lastX = x
	}

	lastY := int64(0)
	for i := 0; uint64(i) < length; i++ {
		y, n := binary.Varint(buf[offset:])
		if n <= 0 {
			return nil, errVarint
		}
		offset += n
		y = lastY + y
		coords[i].Y = int32(y)
		lastY = y
	}

	return coords, nil
}
