package postgis

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/omniscale/osm2ogr/dataset"
)

const geometryColumn = "geom"

type TableSpec struct {
	Name         string
	Schema       string
	Fields       []dataset.FieldDef
	GeometryType string
	Srid         int
	Options      dataset.Options
}

func newTableSpec(schema string, srid int, def *dataset.LayerDef) *TableSpec {
	return &TableSpec{
		Name:         def.Name,
		Schema:       schema,
		Fields:       def.Fields,
		GeometryType: strings.ToUpper(string(def.GeometryType)),
		Srid:         srid,
		Options:      def.Options,
	}
}

func (spec *TableSpec) fullName() string {
	return pq.QuoteIdentifier(spec.Schema) + "." + pq.QuoteIdentifier(spec.Name)
}

func columnType(f dataset.FieldDef) string {
	switch f.Type {
	case dataset.Integer:
		return "INTEGER"
	case dataset.Integer64:
		return "BIGINT"
	case dataset.Real:
		return "DOUBLE PRECISION"
	case dataset.String:
		if f.Width > 0 {
			return fmt.Sprintf("VARCHAR(%d)", f.Width)
		}
		return "VARCHAR"
	}
	return "TEXT"
}

func (spec *TableSpec) DropTableSQL() string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", spec.fullName())
}

func (spec *TableSpec) CreateTableSQL() string {
	cols := []string{
		"ogc_fid SERIAL PRIMARY KEY",
	}
	for _, f := range spec.Fields {
		cols = append(cols, pq.QuoteIdentifier(f.Name)+" "+columnType(f))
	}
	return fmt.Sprintf("CREATE TABLE %s (\n    %s\n)",
		spec.fullName(),
		strings.Join(cols, ",\n    "),
	)
}

func (spec *TableSpec) AddGeometryColumnSQL() string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s geometry(%s, %d)",
		spec.fullName(), geometryColumn, spec.GeometryType, spec.Srid)
}

func (spec *TableSpec) CreateIndexSQL() string {
	return fmt.Sprintf("CREATE INDEX %s ON %s USING GIST (%s)",
		pq.QuoteIdentifier(spec.Name+"_"+geometryColumn+"_geom_idx"), spec.fullName(), geometryColumn)
}

// CopySQL returns the COPY statement. The geometry is the first column.
func (spec *TableSpec) CopySQL() string {
	cols := []string{geometryColumn}
	for _, f := range spec.Fields {
		cols = append(cols, f.Name)
	}
	return pq.CopyInSchema(spec.Schema, spec.Name, cols...)
}
