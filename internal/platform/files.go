package platform

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
)

// File permissions
const (
	DefaultDirPermissions  = 0755
	DefaultFilePermissions = 0644
)

// Temp file naming
const (
	TempFileExtension = ".part"
	tempFileSeparator = "."
)

// Names that can never be used as an output file
var (
	ReservedFileNames = []string{"", ".", "..", "/"}
)

// utf8BOM is stripped from the first field of the input
const utf8BOM = "\ufeff"

// ReadURLList reads the URLs from the first column of a CSV file
func ReadURLList(filePath string) ([]string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open URL list: %w", err)
	}
	defer f.Close()

	urls, err := ParseURLList(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read URL list %s: %w", filePath, err)
	}
	return urls, nil
}

// ParseURLList parses CSV rows and returns the first column of each row.
// There is no header row and extra columns are ignored. Blank lines are skipped,
// but a row with an empty first column keeps its place so indices match the file.
func ParseURLList(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var urls []string
	first := true
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) == 0 {
			continue
		}

		url := record[0]
		if first {
			url = strings.TrimPrefix(url, utf8BOM)
			first = false
		}
		urls = append(urls, strings.TrimSpace(url))
	}

	return urls, nil
}

// SanitizeFileName reduces a server-provided name to a single path element.
// It returns an empty string if nothing usable is left.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	if name == "" {
		return ""
	}

	name = path.Base(name)
	for _, reserved := range ReservedFileNames {
		if name == reserved {
			return ""
		}
	}
	return name
}

// TempFileName returns the temp file name used while downloading name
func TempFileName(name, id string) string {
	return name + tempFileSeparator + id + TempFileExtension
}

// IsTempFile reports whether filename looks like an in-progress download
func IsTempFile(filename string) bool {
	return strings.HasSuffix(filename, TempFileExtension)
}

// FindTempFiles lists the in-progress download files left in dir
func FindTempFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var temps []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if IsTempFile(entry.Name()) {
			temps = append(temps, entry.Name())
		}
	}
	return temps, nil
}
