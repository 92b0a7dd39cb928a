package reader

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/omniscale/osm2ogr/log"
)

// Format is the file format of an OSM input.
type Format string

const (
	FormatPBF Format = "pbf"
	FormatXML Format = "osm"
	FormatOSC Format = "osc"
)

// Formats returns the names accepted by ParseFormat.
func Formats() []string {
	return []string{string(FormatPBF), string(FormatXML), string(FormatOSC)}
}

func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "pbf", "osm.pbf":
		return FormatPBF, nil
	case "osm", "xml", "osm.gz", "osm.bz2":
		return FormatXML, nil
	case "osc", "osc.gz":
		return FormatOSC, nil
	}
	return "", errors.Errorf("unknown input format %q", name)
}

type compression int

const (
	uncompressed compression = iota
	compressedGzip
	compressedBzip2
)

// Source is an OSM file that can be read multiple times.
type Source struct {
	Filename    string
	Format      Format
	compression compression
	spooled     bool
}

// Open returns the Source for filename. The format is detected by the
// file suffix or, if that fails, by the content. An empty filename or
// "-" reads from stdin, format can be set to skip content detection.
func Open(filename string, format string) (*Source, error) {
	if filename == "" || filename == "-" {
		return openStdin(os.Stdin, format)
	}
	if _, err := os.Stat(filename); err != nil {
		return nil, errors.Wrapf(err, "opening input")
	}
	s := &Source{Filename: filename}
	s.Format, s.compression = formatFromName(filename)
	if format != "" {
		f, err := ParseFormat(format)
		if err != nil {
			return nil, err
		}
		s.Format = f
	}
	if s.Format == "" {
		f, c, err := detectFile(filename)
		if err != nil {
			return nil, err
		}
		s.Format, s.compression = f, c
	}
	return s, nil
}

func formatFromName(name string) (Format, compression) {
	name = strings.ToLower(name)
	c := uncompressed
	switch {
	case strings.HasSuffix(name, ".gz"):
		c = compressedGzip
		name = strings.TrimSuffix(name, ".gz")
	case strings.HasSuffix(name, ".bz2"):
		c = compressedBzip2
		name = strings.TrimSuffix(name, ".bz2")
	}
	switch {
	case strings.HasSuffix(name, ".pbf"):
		return FormatPBF, c
	case strings.HasSuffix(name, ".osm"):
		return FormatXML, c
	case strings.HasSuffix(name, ".osc"):
		return FormatOSC, c
	}
	return "", c
}

// openStdin copies r into a temporary file, as the input is read twice.
func openStdin(r io.Reader, format string) (*Source, error) {
	f, err := os.CreateTemp("", "osm2ogr-stdin-")
	if err != nil {
		return nil, errors.Wrap(err, "creating stdin spool file")
	}
	n, err := io.Copy(f, bufio.NewReaderSize(r, 1<<20))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(f.Name())
		return nil, errors.Wrap(err, "reading stdin")
	}
	log.Printf("[debug] spooled %d bytes from stdin to %s", n, f.Name())

	s := &Source{Filename: f.Name(), spooled: true}
	if format != "" {
		s.Format, err = ParseFormat(format)
		if err == nil {
			_, s.compression, err = detectFile(f.Name())
		}
	} else {
		s.Format, s.compression, err = detectFile(f.Name())
	}
	if err != nil {
		os.Remove(f.Name())
		return nil, err
	}
	return s, nil
}

// detectFile guesses the format from the first bytes of the file.
func detectFile(filename string) (Format, compression, error) {
	f, err := os.Open(filename)
	if err != nil {
		return "", uncompressed, errors.Wrap(err, "opening input")
	}
	defer f.Close()

	br := bufio.NewReader(f)
	magic, _ := br.Peek(3)
	var r io.Reader = br
	c := uncompressed
	switch {
	case bytes.HasPrefix(magic, []byte{0x1f, 0x8b}):
		c = compressedGzip
		gr, err := gzip.NewReader(br)
		if err != nil {
			return "", c, errors.Wrap(err, "reading gzip input")
		}
		r = gr
	case bytes.HasPrefix(magic, []byte("BZh")):
		c = compressedBzip2
		r = bzip2.NewReader(br)
	}
	head := make([]byte, 1024)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", c, errors.Wrap(err, "detecting input format")
	}
	return detectFormat(head[:n]), c, nil
}

func detectFormat(head []byte) Format {
	trimmed := bytes.TrimLeft(head, "\xef\xbb\xbf \t\r\n")
	if bytes.HasPrefix(trimmed, []byte("<")) {
		if bytes.Contains(trimmed, []byte("<osmChange")) {
			return FormatOSC
		}
		return FormatXML
	}
	return FormatPBF
}

// open returns a reader for the uncompressed content of the source.
func (s *Source) open() (io.ReadCloser, error) {
	f, err := os.Open(s.Filename)
	if err != nil {
		return nil, errors.Wrap(err, "opening input")
	}
	switch s.compression {
	case compressedGzip:
		gr, err := gzip.NewReader(bufio.NewReader(f))
		if err != nil {
			f.Close()
			return nil, errors.Wrap(err, "reading gzip input")
		}
		return &readCloser{Reader: gr, closers: []io.Closer{gr, f}}, nil
	case compressedBzip2:
		return &readCloser{Reader: bzip2.NewReader(bufio.NewReader(f)), closers: []io.Closer{f}}, nil
	}
	return f, nil
}

// Close removes the spool file of stdin sources.
func (s *Source) Close() error {
	if s.spooled {
		s.spooled = false
		return os.Remove(s.Filename)
	}
	return nil
}

func (s *Source) String() string {
	if s.spooled {
		return "stdin"
	}
	return s.Filename
}

type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (r *readCloser) Close() error {
	var err error
	for _, c := range r.closers {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
