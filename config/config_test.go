package config

import (
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/omniscale/osm2ogr/dataset"
	"github.com/omniscale/osm2ogr/log"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	filename := filepath.Join(t.TempDir(), "config.json")
	if err := ioutil.WriteFile(filename, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return filename
}

func TestUpdateFromConfig(t *testing.T) {
	filename := writeConfig(t, `{
		"format": "Memory",
		"location_store": "sparse_mem_map",
		"srid": 3857,
		"mapping": "mapping.yml",
		"features_per_transaction": 0,
		"httpprofile": "localhost:6060"
	}`)

	o := NewOptions(4326)
	o.ConfigFile = filename
	if err := o.UpdateFromConfig(); err != nil {
		t.Fatal(err)
	}
	if o.Format != "Memory" || o.LocationStore != "sparse_mem_map" || o.Srid != 3857 ||
		o.MappingFile != "mapping.yml" || o.FeaturesPerTransaction != 0 || o.Httpprofile != "localhost:6060" {
		t.Errorf("unexpected options %+v", o)
	}
}

func TestCommandLinePrecedence(t *testing.T) {
	filename := writeConfig(t, `{"format": "Memory", "srid": 3857, "mapping": "mapping.yml", "features_per_transaction": 10}`)

	o := NewOptions(4326)
	o.ConfigFile = filename
	o.Format = "GPKG"
	o.MappingFile = "other.yml"
	o.FeaturesPerTransaction = 500
	if err := o.UpdateFromConfig(); err != nil {
		t.Fatal(err)
	}
	if o.Format != "GPKG" || o.MappingFile != "other.yml" || o.FeaturesPerTransaction != 500 {
		t.Errorf("command line options overwritten %+v", o)
	}
	// not set on the command line
	if o.Srid != 3857 {
		t.Error(o.Srid)
	}
}

func TestUpdateFromConfigErrors(t *testing.T) {
	o := NewOptions(4326)
	o.ConfigFile = filepath.Join(t.TempDir(), "missing.json")
	if err := o.UpdateFromConfig(); err == nil {
		t.Error("missing error")
	}
	o.ConfigFile = writeConfig(t, `{"srid": "foo"}`)
	if err := o.UpdateFromConfig(); err == nil {
		t.Error("missing error")
	}
}

func TestCheck(t *testing.T) {
	o := NewOptions(4326)
	o.Format = "Memory"
	if errs := o.Check(); len(errs) != 0 {
		t.Fatal(errs)
	}

	o.Srid = 31467
	o.FeaturesPerTransaction = -1
	o.LocationStore = "unknown"
	o.Format = "DXF"
	o.InputFormat = "o5m"
	errs := o.Check()
	if len(errs) != 5 {
		t.Fatal(errs)
	}
	err := Errors(errs)
	if !strings.Contains(err.Error(), "--srid") || !strings.Contains(err.Error(), "DXF") {
		t.Error(err)
	}
	if Errors(nil) != nil {
		t.Error("error without errs")
	}
}

func TestSetArgs(t *testing.T) {
	o := NewOptions(3857)
	if err := o.SetArgs([]string{"in.osm", "out.db"}, 2); err != nil {
		t.Fatal(err)
	}
	if o.InputFile != "in.osm" || o.OutputFile != "out.db" {
		t.Error(o)
	}
	if err := o.SetArgs([]string{"a", "b", "c"}, 2); err == nil {
		t.Error("missing error")
	}
	if err := o.SetArgs([]string{"a", "b"}, 1); err == nil {
		t.Error("missing error")
	}
}

func TestOutputName(t *testing.T) {
	dataset.Register(dataset.Driver{Name: "TestFormat", Extension: ".test"})

	for _, tc := range []struct {
		input, output, format string
		expected              string
	}{
		{"/data/berlin.osm.pbf", "", "TestFormat", "berlin.test"},
		{"berlin-latest.osm", "", "TestFormat", "berlin-latest.test"},
		{"/data/berlin.osm.pbf", "out.db", "TestFormat", "out.db"},
		{"", "", "TestFormat", "ogr_out.test"},
		{"-", "", "TestFormat", "ogr_out.test"},
		{"/data/.hidden", "", "TestFormat", "ogr_out.test"},
		{"/data/berlin.osm.pbf", "", "Memory", "berlin"},
	} {
		o := NewOptions(4326)
		o.InputFile = tc.input
		o.OutputFile = tc.output
		o.Format = tc.format
		if name := o.OutputName(); name != tc.expected {
			t.Errorf("%v: %s != %s", tc, name, tc.expected)
		}
	}
}

func TestLogLevel(t *testing.T) {
	o := NewOptions(4326)
	if o.LogLevel() != log.LWarn {
		t.Error(o.LogLevel())
	}
	o.Verbose = true
	if o.LogLevel() != log.LProgress {
		t.Error(o.LogLevel())
	}
	o.Debug = true
	if o.LogLevel() != log.LDebug {
		t.Error(o.LogLevel())
	}
}
