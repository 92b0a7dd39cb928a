package sqlite

import (
	"fmt"

	"github.com/omniscale/osm2ogr/dataset"
	"github.com/omniscale/osm2ogr/proj"
)

// fdo stores WKB geometries with the OGR FDO metadata tables, for
// SQLite files without Spatialite.
type fdo struct{}

var fdoGeometryTypes = map[dataset.GeometryType]int{
	dataset.Point:        1,
	dataset.LineString:   2,
	dataset.MultiPolygon: 6,
}

func (f *fdo) init(w *writer) error {
	stmts := []string{
		`CREATE TABLE geometry_columns (
            f_table_name VARCHAR,
            f_geometry_column VARCHAR,
            geometry_type INTEGER,
            coord_dimension INTEGER,
            srid INTEGER,
            geometry_format VARCHAR
        )`,
		`CREATE TABLE spatial_ref_sys (
            srid INTEGER UNIQUE,
            auth_name TEXT,
            auth_srid TEXT,
            srtext TEXT
        )`,
	}
	if err := w.execAll(stmts); err != nil {
		return err
	}
	srtext, err := proj.WKT(w.srid)
	if err != nil {
		return err
	}
	return w.Exec(fmt.Sprintf("INSERT INTO spatial_ref_sys (srid, auth_name, auth_srid, srtext) VALUES (%d, 'EPSG', '%d', %s)",
		w.srid, w.srid, quoteLiteral(srtext)))
}

func (f *fdo) createLayer(w *writer, def *dataset.LayerDef) (*layer, error) {
	create := createTableSQL(def, "OGC_FID INTEGER PRIMARY KEY", "GEOMETRY BLOB")
	debugSQL(create)
	if err := w.Exec(create); err != nil {
		return nil, err
	}
	if err := w.Exec(fmt.Sprintf("INSERT INTO geometry_columns VALUES (%s, 'GEOMETRY', %d, 2, %d, 'WKB')",
		quoteLiteral(def.Name), fdoGeometryTypes[def.GeometryType], w.srid)); err != nil {
		return nil, err
	}
	return &layer{
		w:         w,
		def:       *def,
		insertSQL: insertSQL(def, "GEOMETRY", "?"),
		encode:    encodeWKB,
	}, nil
}

func (f *fdo) finish(w *writer) error {
	return nil
}
