package sqlite

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"

	"github.com/omniscale/osm2ogr/dataset"
)

// spatialite stores geometries with mod_spatialite functions.
type spatialite struct {
	initWithEPSG bool
}

func (s *spatialite) init(w *writer) error {
	if s.initWithEPSG {
		return w.queryVoid("SELECT InitSpatialMetaData(1)")
	}
	if err := w.queryVoid("SELECT InitSpatialMetaData(1, 'NONE')"); err != nil {
		return err
	}
	return w.queryVoid(fmt.Sprintf("SELECT InsertEpsgSrid(%d)", w.srid))
}

func spatialiteGeometryType(t dataset.GeometryType) string {
	return strings.ToUpper(string(t))
}

func (s *spatialite) createLayer(w *writer, def *dataset.LayerDef) (*layer, error) {
	create := createTableSQL(def, "ogc_fid INTEGER PRIMARY KEY")
	debugSQL(create)
	if err := w.Exec(create); err != nil {
		return nil, err
	}
	if err := w.queryVoid(fmt.Sprintf("SELECT AddGeometryColumn(%s, 'GEOMETRY', %d, '%s', 'XY')",
		quoteLiteral(def.Name), w.srid, spatialiteGeometryType(def.GeometryType))); err != nil {
		return nil, err
	}
	if def.Options.Bool("SPATIAL_INDEX", true) {
		if err := w.queryVoid(fmt.Sprintf("SELECT CreateSpatialIndex(%s, 'GEOMETRY')", quoteLiteral(def.Name))); err != nil {
			return nil, err
		}
	}
	return &layer{
		w:         w,
		def:       *def,
		insertSQL: insertSQL(def, "GEOMETRY", fmt.Sprintf("GeomFromWKB(?, %d)", w.srid)),
		encode:    encodeWKB,
	}, nil
}

func (s *spatialite) finish(w *writer) error {
	return nil
}

func encodeWKB(g orb.Geometry) ([]byte, error) {
	return wkb.Marshal(g, binary.LittleEndian)
}
