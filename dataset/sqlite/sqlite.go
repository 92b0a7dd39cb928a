// Package sqlite implements the SQLite (with or without Spatialite) and
// GPKG formats.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"strings"
	"sync"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"

	"github.com/omniscale/osm2ogr/dataset"
	"github.com/omniscale/osm2ogr/log"
)

const spatialiteDriver = "sqlite3_with_spatialite"

var registerSpatialite sync.Once

func init() {
	dataset.Register(dataset.Driver{
		Name:      "SQLite",
		Extension: ".db",
		New:       newSQLite,
	})
	dataset.Register(dataset.Driver{
		Name:      "GPKG",
		Extension: ".gpkg",
		New:       newGPKG,
	})
}

type SQLError struct {
	query         string
	originalError error
}

func (e *SQLError) Error() string {
	return fmt.Sprintf("SQL Error: %s in query %s", e.originalError.Error(), e.query)
}

// flavor creates the tables and geometry encoding of a format.
type flavor interface {
	init(w *writer) error
	createLayer(w *writer, def *dataset.LayerDef) (*layer, error)
	finish(w *writer) error
}

type writer struct {
	db     *sql.DB
	tx     *sql.Tx
	srid   int
	opts   dataset.Options
	flavor flavor
	layers []*layer
}

type layer struct {
	w         *writer
	def       dataset.LayerDef
	insertSQL string
	stmt      *sql.Stmt
	encode    func(g orb.Geometry) ([]byte, error)
	bound     orb.Bound
	empty     bool
}

func open(driver, filename string) (*sql.DB, error) {
	// existing files are replaced
	if err := os.Remove(filename); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "removing existing file")
	}
	db, err := sql.Open(driver, filename)
	if err != nil {
		return nil, err
	}
	// a single connection, so that all statements share the transaction
	// and the pragmas
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func newWriter(driver string, conf dataset.Config, f flavor) (*writer, error) {
	db, err := open(driver, conf.Name)
	if err != nil {
		return nil, err
	}
	w := &writer{db: db, srid: conf.Srid, opts: conf.Options, flavor: f}
	if !dataset.ConfigOptionBool("OGR_SQLITE_SYNCHRONOUS", true) {
		if err := w.Exec("PRAGMA synchronous = OFF"); err != nil {
			db.Close()
			return nil, err
		}
	}
	if err := f.init(w); err != nil {
		db.Close()
		return nil, err
	}
	return w, nil
}

func newSQLite(conf dataset.Config) (dataset.Writer, error) {
	if conf.Options.Bool("SPATIALITE", false) {
		registerSpatialite.Do(func() {
			sql.Register(spatialiteDriver,
				&sqlite3.SQLiteDriver{
					Extensions: []string{"mod_spatialite"},
				})
		})
		w, err := newWriter(spatialiteDriver, conf, &spatialite{initWithEPSG: conf.Options.Bool("INIT_WITH_EPSG", true)})
		if err == nil {
			return w, nil
		}
		// mod_spatialite is loaded on connect and missing on many systems
		log.Printf("[warn] Spatialite not available (%s), writing SQLite without Spatialite.", err)
	}
	return newWriter("sqlite3", conf, &fdo{})
}

func (w *writer) execer() interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Prepare(query string) (*sql.Stmt, error)
	QueryRow(query string, args ...interface{}) *sql.Row
} {
	if w.tx != nil {
		return w.tx
	}
	return w.db
}

func (w *writer) Exec(query string) error {
	if _, err := w.execer().Exec(query); err != nil {
		return &SQLError{query, err}
	}
	return nil
}

func (w *writer) execAll(stmts []string) error {
	for _, s := range stmts {
		if err := w.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// queryVoid runs a SELECT of a spatialite function.
func (w *writer) queryVoid(query string) error {
	var void interface{}
	if err := w.execer().QueryRow(query).Scan(&void); err != nil {
		return &SQLError{query, err}
	}
	return nil
}

func (w *writer) closeStmts() {
	for _, l := range w.layers {
		if l.stmt != nil {
			l.stmt.Close()
			l.stmt = nil
		}
	}
}

func (w *writer) Begin() error {
	if w.tx != nil {
		return errors.New("transaction already started")
	}
	w.closeStmts()
	tx, err := w.db.Begin()
	if err != nil {
		return err
	}
	w.tx = tx
	return nil
}

func (w *writer) Commit() error {
	if w.tx == nil {
		return errors.New("no transaction")
	}
	w.closeStmts()
	tx := w.tx
	w.tx = nil
	return tx.Commit()
}

func (w *writer) Rollback() error {
	if w.tx == nil {
		return nil
	}
	w.closeStmts()
	tx := w.tx
	w.tx = nil
	return tx.Rollback()
}

func (w *writer) CreateLayer(def *dataset.LayerDef) (dataset.LayerWriter, error) {
	l, err := w.flavor.createLayer(w, def)
	if err != nil {
		return nil, err
	}
	l.empty = true
	w.layers = append(w.layers, l)
	return l, nil
}

func (w *writer) Close() error {
	var err error
	if w.tx != nil {
		err = w.Commit()
	}
	if err == nil {
		err = w.flavor.finish(w)
	}
	w.closeStmts()
	if cerr := w.db.Close(); err == nil {
		err = cerr
	}
	return err
}

func (l *layer) Insert(g orb.Geometry, values []interface{}) error {
	if l.stmt == nil {
		stmt, err := l.w.execer().Prepare(l.insertSQL)
		if err != nil {
			return &SQLError{l.insertSQL, err}
		}
		l.stmt = stmt
	}
	blob, err := l.encode(g)
	if err != nil {
		return errors.Wrap(err, "encoding geometry")
	}
	args := make([]interface{}, 0, len(values)+1)
	args = append(args, blob)
	args = append(args, values...)
	if _, err := l.stmt.Exec(args...); err != nil {
		return &SQLError{l.insertSQL, err}
	}
	if l.empty {
		l.bound = g.Bound()
		l.empty = false
	} else {
		l.bound = l.bound.Union(g.Bound())
	}
	return nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func columnType(f dataset.FieldDef) string {
	switch f.Type {
	case dataset.Integer:
		return "INTEGER"
	case dataset.Integer64:
		return "BIGINT"
	case dataset.Real:
		return "FLOAT"
	case dataset.String:
		if f.Width > 0 {
			return fmt.Sprintf("VARCHAR(%d)", f.Width)
		}
		return "VARCHAR"
	}
	return "TEXT"
}

func createTableSQL(def *dataset.LayerDef, pk string, extraCols ...string) string {
	cols := []string{pk}
	cols = append(cols, extraCols...)
	for _, f := range def.Fields {
		cols = append(cols, quoteIdent(f.Name)+" "+columnType(f))
	}
	return fmt.Sprintf("CREATE TABLE %s (\n    %s\n)",
		quoteIdent(def.Name), strings.Join(cols, ",\n    "))
}

func insertSQL(def *dataset.LayerDef, geomCol, geomPlaceholder string) string {
	cols := []string{quoteIdent(geomCol)}
	vars := []string{geomPlaceholder}
	for _, f := range def.Fields {
		cols = append(cols, quoteIdent(f.Name))
		vars = append(vars, "?")
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(def.Name), strings.Join(cols, ", "), strings.Join(vars, ", "))
}

func debugSQL(query string) {
	log.Printf("[debug] sqlite: %s", strings.Join(strings.Fields(query), " "))
}
