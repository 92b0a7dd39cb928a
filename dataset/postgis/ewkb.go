package postgis

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
)

const ewkbSridFlag = 0x20000000

// ewkbHex returns g as hex encoded little endian EWKB with srid, the
// text format of geometry values in COPY.
func ewkbHex(g orb.Geometry, srid int) (string, error) {
	data, err := wkb.Marshal(g, binary.LittleEndian)
	if err != nil {
		return "", err
	}
	buf := make([]byte, len(data)+4)
	buf[0] = data[0]
	typ := binary.LittleEndian.Uint32(data[1:5])
	binary.LittleEndian.PutUint32(buf[1:5], typ|ewkbSridFlag)
	binary.LittleEndian.PutUint32(buf[5:9], uint32(srid))
	copy(buf[9:], data[5:])
	return hex.EncodeToString(buf), nil
}
