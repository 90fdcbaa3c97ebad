// Debug tool to test a single CDX dedup lookup directly
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/thesavant42/warc-dedup/internal/api"
	"github.com/thesavant42/warc-dedup/internal/models"
)

// printEvents writes lookup events to stdout
type printEvents struct{}

func (printEvents) Logf(format string, args ...any) {
	fmt.Printf("  event: "+format+"\n", args...)
}

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: debug-cdx PAYLOAD-DIGEST TARGET-URI [ENDPOINT]")
		os.Exit(2)
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		Level:           log.DebugLevel,
		ReportTimestamp: true,
	})

	opts := api.DefaultOptions()
	if len(os.Args) > 3 {
		opts.Endpoint = os.Args[3]
	}
	opts.MaxAttempts = 3

	key := models.NewDedupKey(os.Args[1], os.Args[2])
	fmt.Printf("Testing CDX lookup for key: %s\n", key)
	for _, w := range opts.Windows {
		fmt.Printf("Query (%s): %s?%s\n", w.Name, opts.Endpoint, api.BuildLookupQuery(key, w))
	}

	client := api.NewCDXClient(opts, logger, printEvents{})

	fmt.Println("\n--- Resolving ---")
	result := client.Resolve(context.Background(), key)

	fmt.Printf("\nResult: %s\n", result)
	if result.IsMatched() {
		fmt.Printf("  date: %s\n", models.FormatWARCDate(result.Capture.Date))
		fmt.Printf("  uri:  %s\n", result.Capture.URI)
	}
}
