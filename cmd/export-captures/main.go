// Command export-captures writes the capture cache to a markdown report,
// grouped by registrable domain.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/thesavant42/warc-dedup/internal/api"
	"github.com/thesavant42/warc-dedup/internal/config"
	"github.com/thesavant42/warc-dedup/internal/db"
	"github.com/thesavant42/warc-dedup/internal/models"
)

func main() {
	_ = godotenv.Load()

	dbPath := flag.String("db", os.Getenv(config.EnvCache), "capture cache path")
	flag.Parse()

	if *dbPath == "" {
		log.Fatal("No capture cache given; use -db or " + config.EnvCache)
	}

	database, err := db.New(*dbPath)
	if err != nil {
		log.Fatal("Failed to open database", "err", err)
	}
	defer database.Close()

	captures, err := database.ListCaptures(context.Background())
	if err != nil {
		log.Fatal("Failed to list captures", "err", err)
	}

	// Group by registrable domain of the target URI
	byHost := make(map[string][]models.CachedCapture)
	for _, c := range captures {
		host := api.HostKey(c.Key.URI)
		byHost[host] = append(byHost[host], c)
	}
	hosts := make([]string, 0, len(byHost))
	for h := range byHost {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)

	timestamp := time.Now().Format("20060102-150405")
	filename := fmt.Sprintf("captures-export-%s.md", timestamp)
	f, err := os.Create(filename)
	if err != nil {
		log.Fatal("Failed to create file", "err", err)
	}
	defer f.Close()

	fmt.Fprintf(f, "# Capture Cache Export\n\n")
	fmt.Fprintf(f, "Generated: %s\n\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(f, "Total Captures: %d\n\n", len(captures))

	for _, host := range hosts {
		entries := byHost[host]
		fmt.Fprintf(f, "## %s\n\n", host)
		fmt.Fprintf(f, "- **Captures**: %d\n\n", len(entries))

		fmt.Fprintf(f, "| Target URI | Digest | Original Capture | Original URI | Cached |\n")
		fmt.Fprintf(f, "|------------|--------|------------------|--------------|--------|\n")
		for _, c := range entries {
			writeCaptureRow(f, c)
		}
		fmt.Fprintf(f, "\n---\n\n")
	}

	fmt.Printf("✓ Exported to %s\n", filename)
}

// writeCaptureRow writes one markdown table row for c
func writeCaptureRow(w io.Writer, c models.CachedCapture) {
	cached := "-"
	if !c.FetchedAt.IsZero() {
		cached = c.FetchedAt.Format("2006-01-02")
	}
	fmt.Fprintf(w, "| %s | %s | %s | %s | %s |\n",
		escapeCell(c.Key.URI), escapeCell(c.Key.Digest.String()), models.FormatWARCDate(c.Capture.Date), escapeCell(c.Capture.URI), cached)
}

// escapeCell keeps a pipe inside a value from splitting the table cell
func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
