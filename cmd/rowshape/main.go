package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rowshape/rowshape/pkg/arrowcol"
	"github.com/rowshape/rowshape/pkg/flatten"
	"github.com/rowshape/rowshape/pkg/logger"
	"github.com/rowshape/rowshape/pkg/schema"
	"github.com/rowshape/rowshape/pkg/view"
)

var version = "0.1.0"

func main() {
	var logLevel string

	root := &cobra.Command{
		Use:   "rowshape",
		Short: "Rowshape - nested object to columnar array mapping",
		Long: `Rowshape maps nested, potentially cyclic object data onto flat typed
arrays and back. It flattens JSON values into struct-of-arrays columns, renders
schema trees, and reads rows back through zero-copy views.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logger.Init(logger.Config{Level: logLevel, Encoding: "console"})
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "error", "Log level (debug, info, warn, error)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Rowshape v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	var renderWidth int
	renderCmd := &cobra.Command{
		Use:   "render <schema.json>",
		Short: "Render a schema tree as indented text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			node, err := loadSchema(args[0])
			if err != nil {
				return err
			}
			fmt.Println(schema.Format(node, renderWidth))
			return nil
		},
	}
	renderCmd.Flags().IntVar(&renderWidth, "width", 80, "Maximum render width per line")
	root.AddCommand(renderCmd)

	var schemaFile, dataFile, outFile, prefix, delimiter string
	flattenCmd := &cobra.Command{
		Use:   "flatten",
		Short: "Flatten JSON values into struct-of-arrays columns",
		Long: `Flatten an array of JSON values into flat columns named by schema path.
Columns print as a summary by default; with --out they are written as an
Arrow IPC file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFlatten(schemaFile, dataFile, outFile, prefix, delimiter)
		},
	}
	flattenCmd.Flags().StringVarP(&schemaFile, "schema", "s", "", "Path to schema JSON file (required)")
	flattenCmd.Flags().StringVarP(&dataFile, "data", "d", "", "Path to JSON file holding an array of values (required)")
	flattenCmd.Flags().StringVarP(&outFile, "out", "o", "", "Write columns as an Arrow IPC file instead of printing")
	flattenCmd.Flags().StringVar(&prefix, "prefix", "object", "Column name prefix")
	flattenCmd.Flags().StringVar(&delimiter, "delimiter", "-", "Column name path delimiter")
	_ = flattenCmd.MarkFlagRequired("schema")
	_ = flattenCmd.MarkFlagRequired("data")
	root.AddCommand(flattenCmd)

	var showSchema, showData, showPrefix, showDelim string
	var row int
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Flatten values, then read one row back through a view",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(showSchema, showData, showPrefix, showDelim, row)
		},
	}
	showCmd.Flags().StringVarP(&showSchema, "schema", "s", "", "Path to schema JSON file (required)")
	showCmd.Flags().StringVarP(&showData, "data", "d", "", "Path to JSON file holding an array of values (required)")
	showCmd.Flags().StringVar(&showPrefix, "prefix", "object", "Column name prefix")
	showCmd.Flags().StringVar(&showDelim, "delimiter", "-", "Column name path delimiter")
	showCmd.Flags().IntVar(&row, "row", 0, "Row index to materialize")
	_ = showCmd.MarkFlagRequired("schema")
	_ = showCmd.MarkFlagRequired("data")
	root.AddCommand(showCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadSchema(filename string) (schema.Node, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file %s: %w", filename, err)
	}
	node, err := schema.FromJSON(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema file %s: %w", filename, err)
	}
	return node, nil
}

func loadValues(filename string) ([]interface{}, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read data file %s: %w", filename, err)
	}
	var values []interface{}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse data file %s: expected a JSON array: %w", filename, err)
	}
	return values, nil
}

func runFlatten(schemaFile, dataFile, outFile, prefix, delimiter string) error {
	node, err := loadSchema(schemaFile)
	if err != nil {
		return err
	}
	values, err := loadValues(dataFile)
	if err != nil {
		return err
	}

	log := logger.Get()
	set, err := flatten.Flatten(node, values, &flatten.Options{
		Prefix:    prefix,
		Delimiter: delimiter,
		Logger:    log,
	})
	if err != nil {
		return fmt.Errorf("flattening failed: %w", err)
	}
	log.Info("flattened values",
		zap.Int("rows", len(values)),
		zap.Int("columns", set.Len()))

	if outFile == "" {
		for _, name := range set.Names() {
			arr, _ := set.Get(name)
			fmt.Printf("%-40s %s[%d]\n", name, arr.DType(), arr.Len())
		}
		return nil
	}

	rec, err := arrowcol.ToRecord(set)
	if err != nil {
		return fmt.Errorf("failed to build Arrow record: %w", err)
	}
	defer rec.Release()

	f, err := os.Create(outFile)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", outFile, err)
	}
	defer f.Close()

	w, err := ipc.NewFileWriter(f, ipc.WithSchema(rec.Schema()), ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return fmt.Errorf("failed to create Arrow writer: %w", err)
	}
	if err := w.Write(rec); err != nil {
		return fmt.Errorf("failed to write Arrow record: %w", err)
	}
	return w.Close()
}

func runShow(schemaFile, dataFile, prefix, delimiter string, row int) error {
	node, err := loadSchema(schemaFile)
	if err != nil {
		return err
	}
	values, err := loadValues(dataFile)
	if err != nil {
		return err
	}

	named, err := flatten.NameSchema(node, prefix, delimiter)
	if err != nil {
		return err
	}
	set, err := flatten.Flatten(node, values, &flatten.Options{
		Prefix:    prefix,
		Delimiter: delimiter,
		Logger:    logger.Get(),
	})
	if err != nil {
		return fmt.Errorf("flattening failed: %w", err)
	}

	resolved, err := schema.Resolve(named, set, false)
	if err != nil {
		return fmt.Errorf("resolution failed: %w", err)
	}
	value, err := view.Materialize(resolved, row)
	if err != nil {
		return fmt.Errorf("failed to read row %d: %w", row, err)
	}
	plain, err := view.Expand(value)
	if err != nil {
		return fmt.Errorf("failed to expand row %d: %w", row, err)
	}
	out, err := json.MarshalIndent(plain, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
