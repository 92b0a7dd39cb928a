package cache

import (
	"bufio"
	bin "encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// DumpEntrySize is the size of a single entry written by Dump.
const DumpEntrySize = 16

// Dump writes all locations of l as a list of fixed size entries: node id
// (uint64), x and y (int32), each little endian. Entries are sorted by id.
func Dump(l Locations, w io.Writer) (int, error) {
	it, ok := l.(Iterator)
	if !ok {
		return 0, errors.New("location store does not support dumping")
	}
	bw := bufio.NewWriter(w)
	buf := make([]byte, DumpEntrySize)
	n := 0
	err := it.Iter(func(id int64, loc Location) error {
		if !loc.Valid() {
			return nil
		}
		bin.LittleEndian.PutUint64(buf[0:8], uint64(id))
		bin.LittleEndian.PutUint32(buf[8:12], uint32(loc.X))
		bin.LittleEndian.PutUint32(buf[12:16], uint32(loc.Y))
		n++
		_, err := bw.Write(buf)
		return err
	})
	if err != nil {
		return n, errors.Wrap(err, "dumping locations")
	}
	return n, errors.Wrap(bw.Flush(), "dumping locations")
}

// ReadDump reads a list written by Dump.
func ReadDump(r io.Reader, fn func(id int64, loc Location) error) error {
	br := bufio.NewReader(r)
	buf := make([]byte, DumpEntrySize)
	for {
		_, err := io.ReadFull(br, buf)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "reading location dump")
		}
		loc := Location{
			X: int32(bin.LittleEndian.Uint32(buf[8:12])),
			Y: int32(bin.LittleEndian.Uint32(buf[12:16])),
		}
		if err := fn(int64(bin.LittleEndian.Uint64(buf[0:8])), loc); err != nil {
			return err
		}
	}
}
