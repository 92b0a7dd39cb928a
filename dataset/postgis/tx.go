package postgis

import (
	"database/sql"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

// tableTx loads a table with COPY in its own transaction. A COPY blocks
// the connection for other statements.
type tableTx struct {
	pg      *PostGIS
	spec    *TableSpec
	tx      *sql.Tx
	stmt    *sql.Stmt
	copySQL string
}

func (tt *tableTx) begin() error {
	tx, err := tt.pg.db.Begin()
	if err != nil {
		return err
	}
	tt.copySQL = tt.spec.CopySQL()
	stmt, err := tx.Prepare(tt.copySQL)
	if err != nil {
		tx.Rollback()
		return &SQLError{tt.copySQL, err}
	}
	tt.tx = tx
	tt.stmt = stmt
	return nil
}

func (tt *tableTx) Insert(g orb.Geometry, values []interface{}) error {
	if tt.tx == nil {
		if err := tt.begin(); err != nil {
			return err
		}
	}
	geom, err := ewkbHex(g, tt.spec.Srid)
	if err != nil {
		return errors.Wrap(err, "encoding geometry")
	}
	row := make([]interface{}, 0, len(values)+1)
	row = append(row, geom)
	row = append(row, values...)
	if _, err := tt.stmt.Exec(row...); err != nil {
		return &SQLInsertError{SQLError{tt.copySQL, err}, values}
	}
	if !tt.pg.inTx {
		return tt.commit()
	}
	return nil
}

func (tt *tableTx) commit() error {
	if tt.tx == nil {
		return nil
	}
	tx, stmt := tt.tx, tt.stmt
	tt.tx, tt.stmt = nil, nil
	// flush COPY buffer
	if _, err := stmt.Exec(); err != nil {
		tx.Rollback()
		return &SQLError{tt.copySQL, err}
	}
	if err := stmt.Close(); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (tt *tableTx) rollback() {
	if tt.stmt != nil {
		tt.stmt.Close()
		tt.stmt = nil
	}
	rollbackIfTx(&tt.tx)
	tt.tx = nil
}
