package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/omniscale/osm2ogr/cache"
	"github.com/omniscale/osm2ogr/dataset"
	"github.com/omniscale/osm2ogr/log"
	"github.com/omniscale/osm2ogr/proj"
	"github.com/omniscale/osm2ogr/reader"
)

// Config is the content of a JSON config file. Values are used for all
// options that are not set on the command line.
type Config struct {
	Format                 string `json:"format"`
	InputFormat            string `json:"input_format"`
	LocationStore          string `json:"location_store"`
	Srid                   int    `json:"srid"`
	MappingFile            string `json:"mapping"`
	FeaturesPerTransaction *int   `json:"features_per_transaction"`
	Httpprofile            string `json:"httpprofile"`
}

const (
	DefaultFormat                 = "SQLite"
	DefaultFeaturesPerTransaction = 100000
	// DefaultOutputBase is used as output name for stdin input.
	DefaultOutputBase         = "ogr_out"
	DefaultMemProfileInterval = time.Minute
)

type Options struct {
	InputFile              string
	InputFormat            string
	OutputFile             string
	Format                 string
	LocationStore          string
	Srid                   int
	MappingFile            string
	AddUntaggedNodes       bool
	AddMetadata            bool
	FeaturesPerTransaction int
	NoAreas                bool
	DumpLocations          string
	ConfigFile             string
	Httpprofile            string
	MemProfile             string
	MemProfileInterval     time.Duration
	Debug                  bool
	Verbose                bool

	defaultSrid int
}

// NewOptions returns Options with all defaults. defaultSrid differs
// between the commands.
func NewOptions(defaultSrid int) *Options {
	return &Options{
		Format:                 DefaultFormat,
		LocationStore:          cache.DefaultStore,
		Srid:                   defaultSrid,
		FeaturesPerTransaction: DefaultFeaturesPerTransaction,
		MemProfileInterval:     DefaultMemProfileInterval,
		defaultSrid:            defaultSrid,
	}
}

// UpdateFromConfig reads ConfigFile and sets all options that still have
// their default value.
func (o *Options) UpdateFromConfig() error {
	if o.ConfigFile == "" {
		return nil
	}
	f, err := os.Open(o.ConfigFile)
	if err != nil {
		return err
	}
	defer f.Close()

	conf := &Config{}
	decoder := json.NewDecoder(f)
	if err := decoder.Decode(conf); err != nil {
		return fmt.Errorf("parsing %s: %s", o.ConfigFile, err)
	}

	if conf.Format != "" && o.Format == DefaultFormat {
		o.Format = conf.Format
	}
	if o.InputFormat == "" {
		o.InputFormat = conf.InputFormat
	}
	if conf.LocationStore != "" && o.LocationStore == cache.DefaultStore {
		o.LocationStore = conf.LocationStore
	}
	if conf.Srid != 0 && o.Srid == o.defaultSrid {
		o.Srid = conf.Srid
	}
	if o.MappingFile == "" {
		o.MappingFile = conf.MappingFile
	}
	if conf.FeaturesPerTransaction != nil && o.FeaturesPerTransaction == DefaultFeaturesPerTransaction {
		o.FeaturesPerTransaction = *conf.FeaturesPerTransaction
	}
	if o.Httpprofile == "" {
		o.Httpprofile = conf.Httpprofile
	}
	return nil
}

// Check returns all errors of the options.
func (o *Options) Check() []error {
	errs := []error{}
	if !proj.Supported(o.Srid) {
		errs = append(errs, errors.New("only --srid=3857 or --srid=4326 are supported"))
	}
	if o.FeaturesPerTransaction < 0 {
		errs = append(errs, errors.New("--features-per-transaction must not be negative"))
	}
	if !cache.Valid(o.LocationStore) {
		errs = append(errs, fmt.Errorf("unknown location store type '%s'", o.LocationStore))
	}
	if _, ok := dataset.Lookup(o.Format); !ok {
		errs = append(errs, fmt.Errorf("unknown output format '%s'", o.Format))
	}
	if o.MemProfile != "" && o.MemProfileInterval <= 0 {
		errs = append(errs, errors.New("--memprofile-interval must be positive"))
	}
	if o.InputFormat != "" {
		if _, err := reader.ParseFormat(o.InputFormat); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// SetArgs sets the input file and the optional output file from the
// positional arguments.
func (o *Options) SetArgs(args []string, max int) error {
	if len(args) > max {
		return fmt.Errorf("too many arguments, expected at most %d", max)
	}
	if len(args) >= 1 {
		o.InputFile = args[0]
	}
	if len(args) >= 2 {
		o.OutputFile = args[1]
	}
	return nil
}

// OutputName returns the output file. Without an output file it is the
// base name of the input up to the first dot with the default extension
// of the format.
func (o *Options) OutputName() string {
	if o.OutputFile != "" {
		return o.OutputFile
	}
	base := ""
	if o.InputFile != "" && o.InputFile != "-" {
		base = filepath.Base(o.InputFile)
		if dot := strings.Index(base, "."); dot >= 0 {
			base = base[:dot]
		}
	}
	if base == "" {
		base = DefaultOutputBase
	}
	if d, ok := dataset.Lookup(o.Format); ok {
		base += d.Extension
	}
	return base
}

// LogLevel returns the minimal log level for the debug and verbose
// options.
func (o *Options) LogLevel() log.Level {
	switch {
	case o.Debug:
		return log.LDebug
	case o.Verbose:
		return log.LProgress
	}
	return log.LWarn
}

// Errors joins errs into one error.
func Errors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return errors.New("errors in config/options:\n\t" + strings.Join(msgs, "\n\t"))
}
