package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/omniscale/osm2ogr"
	"github.com/omniscale/osm2ogr/cache"
	"github.com/omniscale/osm2ogr/config"
	"github.com/omniscale/osm2ogr/dataset"
	_ "github.com/omniscale/osm2ogr/dataset/geojson"
	_ "github.com/omniscale/osm2ogr/dataset/postgis"
	_ "github.com/omniscale/osm2ogr/dataset/shape"
	_ "github.com/omniscale/osm2ogr/dataset/sqlite"
	"github.com/omniscale/osm2ogr/export"
	"github.com/omniscale/osm2ogr/mapping"
)

func main() {
	if os.Getenv("GOMAXPROCS") == "" {
		runtime.GOMAXPROCS(runtime.NumCPU())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "osm2ogr",
		Short:         "Convert OpenStreetMap data into GIS datasets",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.AddCommand(
		newExportCmd(),
		newToogrCmd(),
		newFormatsCmd(),
		newVersionCmd(),
	)
	return root
}

// commonFlags adds the flags shared by export and toogr.
func commonFlags(cmd *cobra.Command, opts *config.Options, listStores *bool) {
	f := cmd.Flags()
	f.StringVarP(&opts.Format, "format", "f", opts.Format, "output format (see 'osm2ogr formats')")
	f.StringVarP(&opts.LocationStore, "location_store", "l", opts.LocationStore,
		"location store type, optionally with a directory as TYPE:DIR")
	f.BoolVarP(listStores, "list-location-stores", "L", false, "list available location store types and exit")
	f.IntVar(&opts.Srid, "srid", opts.Srid, "srid of the output, 4326 or 3857")
	f.StringVar(&opts.InputFormat, "input-format", "", "input format for stdin (pbf, osm, osc)")
	f.StringVar(&opts.ConfigFile, "config", "", "JSON config file")
	f.StringVar(&opts.Httpprofile, "httpprofile", "", "bind address for the profile and metrics server")
	f.StringVar(&opts.MemProfile, "memprofile", "", "write periodic heap profiles into this directory")
	f.DurationVar(&opts.MemProfileInterval, "memprofile-interval", opts.MemProfileInterval, "interval between memory profiles")
	f.BoolVarP(&opts.Debug, "debug", "d", false, "enable debug output")
	f.BoolVarP(&opts.Verbose, "verbose", "v", false, "enable progress output")
}

// prepare merges the config file and checks all options.
func prepare(opts *config.Options, args []string, maxArgs int) error {
	if err := opts.SetArgs(args, maxArgs); err != nil {
		return err
	}
	if err := opts.UpdateFromConfig(); err != nil {
		return err
	}
	return config.Errors(opts.Check())
}

func printStores(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Available location store types:")
	for _, name := range cache.Types() {
		fmt.Fprintf(out, "  %-12s %s\n", name, cache.Description(name))
	}
	fmt.Fprintf(out, "Default: %s\n", cache.DefaultStore)
}

func newExportCmd() *cobra.Command {
	opts := config.NewOptions(4326)
	var listStores bool

	cmd := &cobra.Command{
		Use:   "export [OPTIONS] [OSM-FILE]",
		Short: "Export nodes, ways and areas into the layers points, lines and areas",
		Long: `Export all tagged nodes, all ways and all areas of an OSM file into the
layers points, lines and areas. Without --output the name of the input
file up to the first dot is used with the default extension of the format.
Reads from stdin when OSM-FILE is '-' or missing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listStores {
				printStores(cmd)
				return nil
			}
			if err := prepare(opts, args, 1); err != nil {
				return err
			}
			var m *mapping.Mapping
			if opts.MappingFile != "" {
				var err error
				m, err = mapping.FromFile(opts.MappingFile)
				if err != nil {
					return err
				}
			} else {
				m = mapping.Overview(opts.AddUntaggedNodes, opts.AddMetadata)
			}
			return export.Run(cmd.Context(), opts, m)
		},
	}
	commonFlags(cmd, opts, &listStores)

	f := cmd.Flags()
	f.StringVarP(&opts.OutputFile, "output", "o", "", "output file or connection string")
	f.BoolVar(&opts.AddUntaggedNodes, "add-untagged-nodes", false, "add untagged nodes to the points layer")
	f.BoolVar(&opts.AddMetadata, "add-metadata", false, "add version, changeset, timestamp, uid and user fields")
	f.IntVar(&opts.FeaturesPerTransaction, "features-per-transaction", opts.FeaturesPerTransaction,
		"number of features per transaction, 0 disables automatic transactions")
	f.StringVar(&opts.MappingFile, "mapping", "", "YAML mapping file to use instead of the built-in layers")
	return cmd
}

func newToogrCmd() *cobra.Command {
	opts := config.NewOptions(3857)
	var listStores bool

	cmd := &cobra.Command{
		Use:   "toogr [OPTIONS] [INFILE [OUTFILE]]",
		Short: "Export post boxes, roads and buildings",
		Long: `Export the layers postboxes, roads and buildings. OUTFILE defaults
to ogr_out. With --no-areas multipolygon relations are not assembled
and the buildings layer is left out.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listStores {
				printStores(cmd)
				return nil
			}
			if err := prepare(opts, args, 2); err != nil {
				return err
			}
			if opts.OutputFile == "" {
				opts.OutputFile = config.DefaultOutputBase
			}
			return export.Run(cmd.Context(), opts, mapping.Postboxes(!opts.NoAreas))
		},
	}
	commonFlags(cmd, opts, &listStores)

	f := cmd.Flags()
	f.BoolVar(&opts.NoAreas, "no-areas", false, "do not assemble multipolygons and skip the buildings layer")
	f.StringVar(&opts.DumpLocations, "dump-locations", "", "write all node locations to this file after the export")
	return cmd
}

func newFormatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List the supported output formats",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			for _, d := range dataset.Formats() {
				ext := d.Extension
				if ext == "" {
					ext = "-"
				}
				fmt.Fprintf(out, "%-16s %s\n", d.Name, ext)
			}
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), osm2ogr.Version)
		},
	}
}
