package sqlite

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"

	"github.com/omniscale/osm2ogr/dataset"
	"github.com/omniscale/osm2ogr/proj"
)

const (
	gpkgApplicationID = 0x47504B47 // "GPKG"
	gpkgUserVersion   = 10200
)

// gpkg writes OGC GeoPackage files.
type gpkg struct{}

func newGPKG(conf dataset.Config) (dataset.Writer, error) {
	return newWriter("sqlite3", conf, &gpkg{})
}

func (g *gpkg) init(w *writer) error {
	stmts := []string{
		fmt.Sprintf("PRAGMA application_id = %d", gpkgApplicationID),
		fmt.Sprintf("PRAGMA user_version = %d", gpkgUserVersion),
		`CREATE TABLE gpkg_spatial_ref_sys (
            srs_name TEXT NOT NULL,
            srs_id INTEGER NOT NULL PRIMARY KEY,
            organization TEXT NOT NULL,
            organization_coordsys_id INTEGER NOT NULL,
            definition TEXT NOT NULL,
            description TEXT
        )`,
		`CREATE TABLE gpkg_contents (
            table_name TEXT NOT NULL PRIMARY KEY,
            data_type TEXT NOT NULL,
            identifier TEXT UNIQUE,
            description TEXT DEFAULT '',
            last_change DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
            min_x DOUBLE,
            min_y DOUBLE,
            max_x DOUBLE,
            max_y DOUBLE,
            srs_id INTEGER,
            CONSTRAINT fk_gc_r_srs_id FOREIGN KEY (srs_id) REFERENCES gpkg_spatial_ref_sys(srs_id)
        )`,
		`CREATE TABLE gpkg_geometry_columns (
            table_name TEXT NOT NULL,
            column_name TEXT NOT NULL,
            geometry_type_name TEXT NOT NULL,
            srs_id INTEGER NOT NULL,
            z TINYINT NOT NULL,
            m TINYINT NOT NULL,
            CONSTRAINT pk_geom_cols PRIMARY KEY (table_name, column_name),
            CONSTRAINT fk_gc_tn FOREIGN KEY (table_name) REFERENCES gpkg_contents(table_name),
            CONSTRAINT fk_gc_srs FOREIGN KEY (srs_id) REFERENCES gpkg_spatial_ref_sys (srs_id)
        )`,
		`INSERT INTO gpkg_spatial_ref_sys VALUES
            ('Undefined cartesian SRS', -1, 'NONE', -1, 'undefined', 'undefined cartesian coordinate reference system'),
            ('Undefined geographic SRS', 0, 'NONE', 0, 'undefined', 'undefined geographic coordinate reference system')`,
	}
	if err := w.execAll(stmts); err != nil {
		return err
	}
	srids := []int{4326}
	if w.srid != 4326 {
		srids = append(srids, w.srid)
	}
	for _, srid := range srids {
		def, err := proj.WKT(srid)
		if err != nil {
			return err
		}
		if err := w.Exec(fmt.Sprintf("INSERT INTO gpkg_spatial_ref_sys VALUES ('EPSG:%d', %d, 'EPSG', %d, %s, NULL)",
			srid, srid, srid, quoteLiteral(def))); err != nil {
			return err
		}
	}
	return nil
}

func (g *gpkg) createLayer(w *writer, def *dataset.LayerDef) (*layer, error) {
	create := createTableSQL(def, "fid INTEGER PRIMARY KEY AUTOINCREMENT", "geom BLOB")
	debugSQL(create)
	if err := w.Exec(create); err != nil {
		return nil, err
	}
	stmts := []string{
		fmt.Sprintf("INSERT INTO gpkg_contents (table_name, data_type, identifier, srs_id) VALUES (%s, 'features', %s, %d)",
			quoteLiteral(def.Name), quoteLiteral(def.Name), w.srid),
		fmt.Sprintf("INSERT INTO gpkg_geometry_columns VALUES (%s, 'geom', '%s', %d, 0, 0)",
			quoteLiteral(def.Name), spatialiteGeometryType(def.GeometryType), w.srid),
	}
	if err := w.execAll(stmts); err != nil {
		return nil, err
	}
	srid := w.srid
	return &layer{
		w:         w,
		def:       *def,
		insertSQL: insertSQL(def, "geom", "?"),
		encode: func(g orb.Geometry) ([]byte, error) {
			return encodeGPKG(g, srid)
		},
	}, nil
}

// finish stores the extent of all layers.
func (g *gpkg) finish(w *writer) error {
	for _, l := range w.layers {
		if l.empty {
			continue
		}
		b := l.bound
		if err := w.Exec(fmt.Sprintf("UPDATE gpkg_contents SET min_x = %v, min_y = %v, max_x = %v, max_y = %v WHERE table_name = %s",
			b.Min[0], b.Min[1], b.Max[0], b.Max[1], quoteLiteral(l.def.Name))); err != nil {
			return err
		}
	}
	return nil
}

// encodeGPKG encodes g as GeoPackage binary: a header with the srs
// and the xy envelope, followed by little endian WKB.
func encodeGPKG(g orb.Geometry, srid int) ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.Write([]byte{'G', 'P', 0})
	var flags byte = 0x01 // little endian
	_, isPoint := g.(orb.Point)
	if !isPoint {
		flags |= 0x01 << 1 // envelope minx, maxx, miny, maxy
	}
	buf.WriteByte(flags)
	binary.Write(buf, binary.LittleEndian, int32(srid))
	if !isPoint {
		b := g.Bound()
		for _, v := range []float64{b.Min[0], b.Max[0], b.Min[1], b.Max[1]} {
			binary.Write(buf, binary.LittleEndian, math.Float64bits(v))
		}
	}
	data, err := wkb.Marshal(g, binary.LittleEndian)
	if err != nil {
		return nil, err
	}
	buf.Write(data)
	return buf.Bytes(), nil
}
