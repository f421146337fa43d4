package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mmdatafocus/psr_backend/config"
	"github.com/mmdatafocus/psr_backend/importer"
)

func main() {
	file := flag.String("file", "", "Required: PO data export (.xls or .xlsx)")
	dryRun := flag.Bool("dry-run", false, "Parse and count rows without writing")
	flag.Parse()

	path := strings.TrimSpace(*file)
	if path == "" && flag.NArg() > 0 {
		path = flag.Arg(0)
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, "--file is required")
		os.Exit(1)
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintf(os.Stderr, "file not found: %s\n", path)
		os.Exit(1)
	}

	if !*dryRun {
		config.ConnectDatabaseWithRetry()
	}
	res, err := importer.ImportPOData(context.Background(), path, *dryRun)
	if err != nil {
		fmt.Fprintf(os.Stderr, "import failed: %v\n", err)
		os.Exit(1)
	}
	prefix := ""
	if *dryRun {
		prefix = "[DRY RUN] "
	}
	// MySQL counts a refreshed line twice in written
	fmt.Printf("%sread=%d skipped=%d written=%d\n", prefix, res.Read, res.Skipped, res.Written)
}
