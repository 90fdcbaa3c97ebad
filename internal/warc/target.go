package warc

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

var (
	// ErrTargetExists is returned when the deduplicated file is already present
	ErrTargetExists = errors.New("target file already exists")
	// ErrUnsupportedExtension is returned for sources not named *.warc or *.warc.gz
	ErrUnsupportedExtension = errors.New("source is not a .warc or .warc.gz file")
)

const dedupInfix = ".deduplicated"

// TargetPath derives the output name for a source file:
//   - "crawl.warc.gz" -> "crawl.deduplicated.warc.gz"
//   - "crawl.warc"    -> "crawl.deduplicated.warc"
func TargetPath(source string) (string, error) {
	switch {
	case strings.HasSuffix(source, ".warc.gz"):
		return strings.TrimSuffix(source, ".warc.gz") + dedupInfix + ".warc.gz", nil
	case strings.HasSuffix(source, ".warc"):
		return strings.TrimSuffix(source, ".warc") + dedupInfix + ".warc", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedExtension, source)
	}
}

// IsCompressedName reports whether a file name denotes gzip output
func IsCompressedName(path string) bool {
	return strings.HasSuffix(path, ".gz")
}

// EnsureTargetAbsent fails with ErrTargetExists when path exists
func EnsureTargetAbsent(path string) error {
	_, err := os.Stat(path)
	if err == nil {
		return fmt.Errorf("%w: %s", ErrTargetExists, path)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to check target %s: %w", path, err)
	}
	return nil
}
