package dataset

import (
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Options are dataset or layer creation options. Keys are upper case.
type Options map[string]string

// ParseOptions parses KEY=VALUE strings.
func ParseOptions(options []string) (Options, error) {
	opts := make(Options, len(options))
	for _, o := range options {
		parts := strings.SplitN(o, "=", 2)
		if len(parts) != 2 || parts[0] == "" {
			return nil, errors.Errorf("invalid option %q, expected KEY=VALUE", o)
		}
		opts[strings.ToUpper(strings.TrimSpace(parts[0]))] = strings.TrimSpace(parts[1])
	}
	return opts, nil
}

// Bool returns the boolean value of key or def if key is not set.
func (o Options) Bool(key string, def bool) bool {
	v, ok := o[strings.ToUpper(key)]
	if !ok {
		return def
	}
	return parseBool(v, def)
}

func (o Options) String(key, def string) string {
	if v, ok := o[strings.ToUpper(key)]; ok {
		return v
	}
	return def
}

func parseBool(v string, def bool) bool {
	switch strings.ToUpper(v) {
	case "YES", "TRUE", "ON", "1":
		return true
	case "NO", "FALSE", "OFF", "0":
		return false
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return def
}

var (
	configMu      sync.Mutex
	configOptions = make(map[string]string)
)

// SetConfigOption sets a global option that is used by drivers when
// a dataset is opened, e.g. OGR_SQLITE_SYNCHRONOUS=OFF.
func SetConfigOption(key, value string) {
	configMu.Lock()
	defer configMu.Unlock()
	configOptions[strings.ToUpper(key)] = value
}

func ConfigOption(key, def string) string {
	configMu.Lock()
	defer configMu.Unlock()
	if v, ok := configOptions[strings.ToUpper(key)]; ok {
		return v
	}
	return def
}

// ConfigOptionBool returns a global option as a bool.
func ConfigOptionBool(key string, def bool) bool {
	v := ConfigOption(key, "")
	if v == "" {
		return def
	}
	return parseBool(v, def)
}
