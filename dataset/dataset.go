/*
Package dataset writes features into GIS datasets.

Datasets are opened with a format name. Format drivers register
themselves with Register, import the driver packages to make them
available:

	import _ "github.com/omniscale/osm2ogr/dataset/sqlite"
*/
package dataset

import (
	"sort"
	"strings"
	"sync"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"

	"github.com/omniscale/osm2ogr/log"
)

type GeometryType string

const (
	Point        GeometryType = "point"
	LineString   GeometryType = "linestring"
	MultiPolygon GeometryType = "multipolygon"
)

func (g GeometryType) Valid() bool {
	return g == Point || g == LineString || g == MultiPolygon
}

type FieldType string

const (
	Integer   FieldType = "integer"
	Integer64 FieldType = "integer64"
	Real      FieldType = "real"
	String    FieldType = "string"
)

func (f FieldType) Valid() bool {
	return f == Integer || f == Integer64 || f == Real || f == String
}

type FieldDef struct {
	Name  string
	Type  FieldType
	Width int
}

type LayerDef struct {
	Name         string
	GeometryType GeometryType
	Srid         int
	Options      Options
	Fields       []FieldDef
}

// Config is passed to the driver when a dataset is opened.
type Config struct {
	Name    string
	Srid    int
	Options Options
}

// Writer is implemented by format drivers.
type Writer interface {
	CreateLayer(def *LayerDef) (LayerWriter, error)
	Close() error
}

type LayerWriter interface {
	// Insert adds a feature. Values are in the order of the layer fields
	// and are nil or of type int32 (Integer), int64 (Integer64), float64
	// (Real) or string (String).
	Insert(g orb.Geometry, values []interface{}) error
}

// Transactioner is implemented by writers with transaction support.
type Transactioner interface {
	Begin() error
	Commit() error
	Rollback() error
}

// Executor is implemented by writers that can execute SQL statements.
type Executor interface {
	Exec(query string) error
}

type Driver struct {
	Name string
	// Extension is the default file extension including the dot, empty
	// for directories and connection strings.
	Extension string
	New       func(Config) (Writer, error)
}

var (
	driversMu sync.Mutex
	drivers   = make(map[string]Driver)
)

func Register(d Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[strings.ToLower(d.Name)] = d
}

// Lookup returns the driver for a format name, case insensitive.
func Lookup(format string) (Driver, bool) {
	driversMu.Lock()
	defer driversMu.Unlock()
	d, ok := drivers[strings.ToLower(format)]
	return d, ok
}

// Formats returns all registered drivers, sorted by name.
func Formats() []Driver {
	driversMu.Lock()
	defer driversMu.Unlock()
	result := make([]Driver, 0, len(drivers))
	for _, d := range drivers {
		result = append(result, d)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Dataset is an open output dataset.
type Dataset struct {
	driver   Driver
	name     string
	srid     int
	w        Writer
	layers   []*Layer
	maxEdits int
	edits    int
	inTx     bool
	closed   bool
}

// Open creates a new dataset. Options are KEY=VALUE strings.
func Open(format, name string, srid int, options []string) (*Dataset, error) {
	d, ok := Lookup(format)
	if !ok {
		return nil, errors.Errorf("unsupported output format %q", format)
	}
	opts, err := ParseOptions(options)
	if err != nil {
		return nil, err
	}
	w, err := d.New(Config{Name: name, Srid: srid, Options: opts})
	if err != nil {
		return nil, errors.Wrapf(err, "creating %s dataset %q", d.Name, name)
	}
	return &Dataset{driver: d, name: name, srid: srid, w: w}, nil
}

func (d *Dataset) Name() string   { return d.name }
func (d *Dataset) Format() string { return d.driver.Name }
func (d *Dataset) Srid() int      { return d.srid }

// Exec executes an SQL statement. Statements are ignored by formats
// without SQL support.
func (d *Dataset) Exec(query string) error {
	e, ok := d.w.(Executor)
	if !ok {
		log.Printf("[debug] %s does not support SQL, ignoring %q", d.driver.Name, query)
		return nil
	}
	return errors.Wrapf(e.Exec(query), "executing %q", query)
}

// EnableAutoTransactions starts a transaction and commits it after every
// n features. Zero disables automatic transactions. It is a noop for
// formats without transactions.
func (d *Dataset) EnableAutoTransactions(n int) error {
	d.maxEdits = n
	if n > 0 && !d.inTx {
		return d.StartTransaction()
	}
	return nil
}

func (d *Dataset) StartTransaction() error {
	tx, ok := d.w.(Transactioner)
	if !ok || d.inTx {
		return nil
	}
	if err := tx.Begin(); err != nil {
		return errors.Wrap(err, "starting transaction")
	}
	d.inTx = true
	d.edits = 0
	return nil
}

func (d *Dataset) CommitTransaction() error {
	tx, ok := d.w.(Transactioner)
	if !ok || !d.inTx {
		return nil
	}
	d.inTx = false
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "committing transaction")
	}
	return nil
}

func (d *Dataset) finalizeEdit() error {
	if d.maxEdits <= 0 || !d.inTx {
		return nil
	}
	d.edits++
	if d.edits < d.maxEdits {
		return nil
	}
	if err := d.CommitTransaction(); err != nil {
		return err
	}
	return d.StartTransaction()
}

// CreateLayer adds a new layer. Options are KEY=VALUE strings.
func (d *Dataset) CreateLayer(name string, geomType GeometryType, options []string) (*Layer, error) {
	if d.closed {
		return nil, errors.New("dataset closed")
	}
	if !geomType.Valid() {
		return nil, errors.Errorf("invalid geometry type %q for layer %s", geomType, name)
	}
	if d.Layer(name) != nil {
		return nil, errors.Errorf("layer %s already exists", name)
	}
	opts, err := ParseOptions(options)
	if err != nil {
		return nil, err
	}
	l := &Layer{
		ds: d,
		def: LayerDef{
			Name:         name,
			GeometryType: geomType,
			Srid:         d.srid,
			Options:      opts,
		},
		fieldIdx: make(map[string]int),
	}
	d.layers = append(d.layers, l)
	return l, nil
}

// Layer returns the layer with name or nil.
func (d *Dataset) Layer(name string) *Layer {
	for _, l := range d.layers {
		if l.def.Name == name {
			return l
		}
	}
	return nil
}

func (d *Dataset) Layers() []*Layer {
	return d.layers
}

// Close creates all layers without features, commits an open
// transaction and closes the dataset.
func (d *Dataset) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	var err error
	for _, l := range d.layers {
		if cerr := l.create(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if d.inTx {
		if err == nil {
			err = d.CommitTransaction()
		} else if tx, ok := d.w.(Transactioner); ok {
			tx.Rollback()
			d.inTx = false
		}
	}
	if cerr := d.w.Close(); cerr != nil && err == nil {
		err = errors.Wrapf(cerr, "closing %s", d.name)
	}
	return err
}

// Layer is a named collection of features of one geometry type.
type Layer struct {
	ds       *Dataset
	def      LayerDef
	fieldIdx map[string]int
	lw       LayerWriter
	count    int64
	// fields with clamped integer values, warned once
	clamped map[string]bool
}

func (l *Layer) Name() string               { return l.def.Name }
func (l *Layer) GeometryType() GeometryType { return l.def.GeometryType }
func (l *Layer) Fields() []FieldDef         { return l.def.Fields }

// Count returns the number of added features.
func (l *Layer) Count() int64 { return l.count }

// AddField adds a field. Fields can only be added before the first
// feature.
func (l *Layer) AddField(name string, typ FieldType, width int) error {
	if l.lw != nil {
		return errors.Errorf("adding field %s to layer %s after first feature", name, l.def.Name)
	}
	if !typ.Valid() {
		return errors.Errorf("invalid type %q for field %s", typ, name)
	}
	if _, ok := l.fieldIdx[name]; ok {
		return errors.Errorf("field %s already exists in layer %s", name, l.def.Name)
	}
	l.fieldIdx[name] = len(l.def.Fields)
	l.def.Fields = append(l.def.Fields, FieldDef{Name: name, Type: typ, Width: width})
	return nil
}

func (l *Layer) create() error {
	if l.lw != nil {
		return nil
	}
	def := l.def
	lw, err := l.ds.w.CreateLayer(&def)
	if err != nil {
		return errors.Wrapf(err, "creating layer %s", l.def.Name)
	}
	l.lw = lw
	return nil
}

// NewFeature returns a new feature with geometry g. Polygons are
// accepted for multipolygon layers.
func (l *Layer) NewFeature(g orb.Geometry) *Feature {
	if p, ok := g.(orb.Polygon); ok && l.def.GeometryType == MultiPolygon {
		g = orb.MultiPolygon{p}
	}
	return &Feature{
		layer:  l,
		geom:   g,
		values: make([]interface{}, len(l.def.Fields)),
	}
}

func checkGeometry(t GeometryType, g orb.Geometry) bool {
	switch g.(type) {
	case orb.Point:
		return t == Point
	case orb.LineString:
		return t == LineString
	case orb.MultiPolygon:
		return t == MultiPolygon
	}
	return false
}

type Feature struct {
	layer  *Layer
	geom   orb.Geometry
	values []interface{}
}

// SetField sets the value of a field. The value is converted to the
// field type.
func (f *Feature) SetField(name string, value interface{}) error {
	idx, ok := f.layer.fieldIdx[name]
	if !ok {
		return errors.Errorf("unknown field %s in layer %s", name, f.layer.def.Name)
	}
	if idx >= len(f.values) {
		// field added after NewFeature
		f.values = append(f.values, make([]interface{}, idx+1-len(f.values))...)
	}
	v, err := convertValue(f.layer.def.Fields[idx], value)
	if rerr, ok := err.(*rangeError); ok {
		f.layer.warnClamped(rerr)
		err = nil
	}
	if err != nil {
		return err
	}
	f.values[idx] = v
	return nil
}

func (l *Layer) warnClamped(err *rangeError) {
	if l.clamped[err.field] {
		return
	}
	if l.clamped == nil {
		l.clamped = make(map[string]bool)
	}
	l.clamped[err.field] = true
	log.Printf("[warn] Value %d of field %s in layer %s does not fit into an integer, value clamped.",
		err.value, err.field, l.def.Name)
}

// Field returns the converted value of a field.
func (f *Feature) Field(name string) interface{} {
	idx, ok := f.layer.fieldIdx[name]
	if !ok || idx >= len(f.values) {
		return nil
	}
	return f.values[idx]
}

// Add writes the feature to the layer.
func (f *Feature) Add() error {
	l := f.layer
	if l.ds.closed {
		return errors.New("dataset closed")
	}
	if !checkGeometry(l.def.GeometryType, f.geom) {
		return errors.Errorf("geometry %T does not match %s layer %s", f.geom, l.def.GeometryType, l.def.Name)
	}
	if err := l.create(); err != nil {
		return err
	}
	if len(f.values) < len(l.def.Fields) {
		f.values = append(f.values, make([]interface{}, len(l.def.Fields)-len(f.values))...)
	}
	if err := l.lw.Insert(f.geom, f.values); err != nil {
		return errors.Wrapf(err, "adding feature to layer %s", l.def.Name)
	}
	l.count++
	return l.ds.finalizeEdit()
}
