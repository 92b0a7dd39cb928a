package sqlite

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"

	"github.com/omniscale/osm2ogr/dataset"
)

func writeTestDataset(t *testing.T, format, filename string, options []string) {
	t.Helper()
	ds, err := dataset.Open(format, filename, 4326, options)
	if err != nil {
		t.Fatal(err)
	}
	if err := ds.EnableAutoTransactions(2); err != nil {
		t.Fatal(err)
	}
	points, err := ds.CreateLayer("points", dataset.Point, nil)
	if err != nil {
		t.Fatal(err)
	}
	points.AddField("id", dataset.Integer64, 0)
	points.AddField("name", dataset.String, 20)
	for i := 1; i <= 5; i++ {
		f := points.NewFeature(orb.Point{float64(i), 50})
		f.SetField("id", int64(i))
		f.SetField("name", fmt.Sprintf("point's %d", i))
		if err := f.Add(); err != nil {
			t.Fatal(err)
		}
	}
	areas, err := ds.CreateLayer("areas", dataset.MultiPolygon, nil)
	if err != nil {
		t.Fatal(err)
	}
	areas.AddField("id", dataset.Integer64, 0)
	f := areas.NewFeature(orb.Polygon{{{0, 0}, {2, 0}, {2, 3}, {0, 3}, {0, 0}}})
	f.SetField("id", 42)
	if err := f.Add(); err != nil {
		t.Fatal(err)
	}
	lines, err := ds.CreateLayer("lines", dataset.LineString, nil)
	if err != nil {
		t.Fatal(err)
	}
	lines.AddField("id", dataset.Integer64, 0)
	if err := ds.Close(); err != nil {
		t.Fatal(err)
	}
}

func queryInt(t *testing.T, db *sql.DB, query string) int {
	t.Helper()
	var n int
	if err := db.QueryRow(query).Scan(&n); err != nil {
		t.Fatal(query, err)
	}
	return n
}

func TestSQLite(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "test.db")
	writeTestDataset(t, "SQLite", filename, nil)

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if n := queryInt(t, db, "SELECT count(*) FROM points"); n != 5 {
		t.Error("points", n)
	}
	if n := queryInt(t, db, "SELECT count(*) FROM lines"); n != 0 {
		t.Error("lines", n)
	}
	if n := queryInt(t, db, "SELECT geometry_type FROM geometry_columns WHERE f_table_name = 'areas'"); n != 6 {
		t.Error("geometry type", n)
	}
	if n := queryInt(t, db, "SELECT count(*) FROM spatial_ref_sys WHERE srid = 4326"); n != 1 {
		t.Error("srs", n)
	}

	var name string
	var blob []byte
	if err := db.QueryRow("SELECT name, GEOMETRY FROM points WHERE id = 3").Scan(&name, &blob); err != nil {
		t.Fatal(err)
	}
	if name != "point's 3" {
		t.Error(name)
	}
	g, err := wkb.Unmarshal(blob)
	if err != nil {
		t.Fatal(err)
	}
	if p, ok := g.(orb.Point); !ok || p != (orb.Point{3, 50}) {
		t.Error(g)
	}
}

func TestSQLiteReplacesFile(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "test.db")
	writeTestDataset(t, "SQLite", filename, nil)
	writeTestDataset(t, "SQLite", filename, nil)

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if n := queryInt(t, db, "SELECT count(*) FROM points"); n != 5 {
		t.Error("points", n)
	}
}

func TestSQLiteSpatialiteOption(t *testing.T) {
	// falls back to plain SQLite tables without mod_spatialite
	filename := filepath.Join(t.TempDir(), "test.db")
	writeTestDataset(t, "SQLite", filename, []string{"SPATIALITE=TRUE", "INIT_WITH_EPSG=no"})

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if n := queryInt(t, db, "SELECT count(*) FROM points"); n != 5 {
		t.Error("points", n)
	}
	if n := queryInt(t, db, "SELECT count(*) FROM areas WHERE id = 42"); n != 1 {
		t.Error("areas", n)
	}
	if n := queryInt(t, db, "SELECT count(*) FROM geometry_columns"); n != 3 {
		t.Error("geometry_columns", n)
	}
}

func TestGPKG(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "test.gpkg")
	writeTestDataset(t, "GPKG", filename, nil)

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if n := queryInt(t, db, "PRAGMA application_id"); n != gpkgApplicationID {
		t.Error("application_id", n)
	}
	if n := queryInt(t, db, "SELECT count(*) FROM gpkg_contents"); n != 3 {
		t.Error("contents", n)
	}
	var typ string
	if err := db.QueryRow("SELECT geometry_type_name FROM gpkg_geometry_columns WHERE table_name = 'areas'").Scan(&typ); err != nil {
		t.Fatal(err)
	}
	if typ != "MULTIPOLYGON" {
		t.Error(typ)
	}

	var minx, miny, maxx, maxy float64
	if err := db.QueryRow("SELECT min_x, min_y, max_x, max_y FROM gpkg_contents WHERE table_name = 'points'").Scan(&minx, &miny, &maxx, &maxy); err != nil {
		t.Fatal(err)
	}
	if minx != 1 || miny != 50 || maxx != 5 || maxy != 50 {
		t.Error(minx, miny, maxx, maxy)
	}

	var blob []byte
	if err := db.QueryRow("SELECT geom FROM areas").Scan(&blob); err != nil {
		t.Fatal(err)
	}
	g, srid, err := decodeGPKG(blob)
	if err != nil {
		t.Fatal(err)
	}
	if srid != 4326 {
		t.Error(srid)
	}
	mp, ok := g.(orb.MultiPolygon)
	if !ok || len(mp) != 1 || len(mp[0][0]) != 5 {
		t.Fatal(g)
	}
	if b := mp.Bound(); b.Max != (orb.Point{2, 3}) {
		t.Error(b)
	}
}

func TestEncodeGPKGPoint(t *testing.T) {
	data, err := encodeGPKG(orb.Point{1, 2}, 3857)
	if err != nil {
		t.Fatal(err)
	}
	// header without envelope
	if data[3] != 0x01 || binary.LittleEndian.Uint32(data[4:8]) != 3857 || len(data) != 8+21 {
		t.Error(data)
	}
	g, _, err := decodeGPKG(data)
	if err != nil {
		t.Fatal(err)
	}
	if g != (orb.Point{1, 2}) {
		t.Error(g)
	}
}

func TestCreateTableSQL(t *testing.T) {
	def := &dataset.LayerDef{
		Name: `my"layer`,
		Fields: []dataset.FieldDef{
			{Name: "id", Type: dataset.Integer64},
			{Name: "version", Type: dataset.Integer},
			{Name: "z", Type: dataset.Real},
			{Name: "name", Type: dataset.String, Width: 30},
		},
	}
	expected := "CREATE TABLE \"my\"\"layer\" (\n" +
		"    ogc_fid INTEGER PRIMARY KEY,\n" +
		"    \"id\" BIGINT,\n" +
		"    \"version\" INTEGER,\n" +
		"    \"z\" FLOAT,\n" +
		"    \"name\" VARCHAR(30)\n)"
	if sql := createTableSQL(def, "ogc_fid INTEGER PRIMARY KEY"); sql != expected {
		t.Errorf("unexpected sql:\n%s", sql)
	}
	if sql := insertSQL(def, "GEOMETRY", "GeomFromWKB(?, 4326)"); sql != `INSERT INTO "my""layer" ("GEOMETRY", "id", "version", "z", "name") VALUES (GeomFromWKB(?, 4326), ?, ?, ?, ?)` {
		t.Errorf("unexpected sql:\n%s", sql)
	}
}

// decodeGPKG returns the geometry of GeoPackage binary.
func decodeGPKG(data []byte) (orb.Geometry, int, error) {
	if len(data) < 8 || data[0] != 'G' || data[1] != 'P' {
		return nil, 0, fmt.Errorf("invalid geopackage geometry")
	}
	flags := data[3]
	var order binary.ByteOrder = binary.BigEndian
	if flags&0x01 != 0 {
		order = binary.LittleEndian
	}
	srid := int(int32(order.Uint32(data[4:8])))
	offset := 8
	switch (flags >> 1) & 0x07 {
	case 0:
	case 1:
		offset += 32
	case 2, 3:
		offset += 48
	case 4:
		offset += 64
	default:
		return nil, 0, fmt.Errorf("invalid geopackage envelope flag")
	}
	if len(data) < offset {
		return nil, 0, fmt.Errorf("geopackage geometry too short")
	}
	g, err := wkb.Unmarshal(data[offset:])
	return g, srid, err
}
