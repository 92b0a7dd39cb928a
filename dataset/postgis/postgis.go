// Package postgis implements the PostgreSQL/PostGIS format. Dataset
// names are connection strings with a PG: prefix or postgres:// URLs.
package postgis

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/omniscale/osm2ogr/dataset"
	"github.com/omniscale/osm2ogr/log"
)

func init() {
	dataset.Register(dataset.Driver{
		Name: "PostgreSQL",
		New:  New,
	})
}

type SQLError struct {
	query         string
	originalError error
}

func (e *SQLError) Error() string {
	return fmt.Sprintf("SQL Error: %s in query %s", e.originalError.Error(), e.query)
}

type SQLInsertError struct {
	SQLError
	data interface{}
}

func (e *SQLInsertError) Error() string {
	return fmt.Sprintf("SQL Error: %s in query %s (%+v)", e.originalError.Error(), e.query, e.data)
}

type PostGIS struct {
	db     *sql.DB
	schema string
	srid   int
	inTx   bool
	tables []*tableTx
}

// connectionParams converts name to lib/pq connection parameters.
func connectionParams(name string) (string, error) {
	if strings.HasPrefix(name, "PG:") {
		name = strings.TrimSpace(name[3:])
	}
	if strings.HasPrefix(name, "postgis://") {
		name = strings.Replace(name, "postgis", "postgres", 1)
	}
	if strings.HasPrefix(name, "postgres://") || strings.HasPrefix(name, "postgresql://") {
		params, err := pq.ParseURL(name)
		if err != nil {
			return "", err
		}
		name = params
	}
	return disableDefaultSsl(name), nil
}

// disableDefaultSsl adds sslmode=disable to params
// when sslmode is not present.
func disableDefaultSsl(params string) string {
	if strings.Contains(params, "sslmode") {
		return params
	}
	return strings.TrimSpace(params + " sslmode=disable")
}

func New(conf dataset.Config) (dataset.Writer, error) {
	params, err := connectionParams(conf.Name)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("postgres", params)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "connecting to PostgreSQL")
	}
	pg := &PostGIS{
		db:     db,
		schema: conf.Options.String("SCHEMA", "public"),
		srid:   conf.Srid,
	}
	if err := pg.createSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return pg, nil
}

func (pg *PostGIS) createSchema() error {
	if pg.schema == "public" {
		return nil
	}
	return pg.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pq.QuoteIdentifier(pg.schema)))
}

func (pg *PostGIS) Exec(query string) error {
	if _, err := pg.db.Exec(query); err != nil {
		return &SQLError{query, err}
	}
	return nil
}

func (pg *PostGIS) CreateLayer(def *dataset.LayerDef) (dataset.LayerWriter, error) {
	spec := newTableSpec(pg.schema, pg.srid, def)
	tx, err := pg.db.Begin()
	if err != nil {
		return nil, err
	}
	defer rollbackIfTx(&tx)

	for _, stmt := range []string{spec.DropTableSQL(), spec.CreateTableSQL(), spec.AddGeometryColumnSQL()} {
		log.Printf("[debug] postgis: %s", stmt)
		if _, err := tx.Exec(stmt); err != nil {
			return nil, &SQLError{stmt, err}
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	tx = nil

	tt := &tableTx{pg: pg, spec: spec}
	pg.tables = append(pg.tables, tt)
	return tt, nil
}

// Begin starts a transaction. Tables start their COPY on the first
// insert.
func (pg *PostGIS) Begin() error {
	pg.inTx = true
	return nil
}

func (pg *PostGIS) Commit() error {
	pg.inTx = false
	for _, tt := range pg.tables {
		if err := tt.commit(); err != nil {
			return err
		}
	}
	return nil
}

func (pg *PostGIS) Rollback() error {
	pg.inTx = false
	for _, tt := range pg.tables {
		tt.rollback()
	}
	return nil
}

// Close commits all tables and creates spatial indices.
func (pg *PostGIS) Close() error {
	defer pg.db.Close()
	if err := pg.Commit(); err != nil {
		pg.Rollback()
		return err
	}
	for _, tt := range pg.tables {
		if !tt.spec.Options.Bool("SPATIAL_INDEX", true) {
			continue
		}
		stmt := tt.spec.CreateIndexSQL()
		step := log.Step(fmt.Sprintf("Creating geometry index on %s", tt.spec.Name))
		err := pg.Exec(stmt)
		step()
		if err != nil {
			return err
		}
	}
	return nil
}

func rollbackIfTx(tx **sql.Tx) {
	if *tx != nil {
		if err := (*tx).Rollback(); err != nil {
			log.Println("[error] rollback failed", err)
		}
	}
}
