// Package export renders claimed proxies for download or clipboard use.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"time"
)

// Format selects an output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
	FormatCSV  Format = "csv"
)

// CSVHeader is the single column name of CSV exports.
const CSVHeader = "Proxy"

// ParseFormat maps a query value to a Format. Empty means JSON.
func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "json":
		return FormatJSON, nil
	case "text", "txt":
		return FormatText, nil
	case "csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported format %q", raw)
	}
}

// Text joins proxies with newlines.
func Text(proxies []string) string {
	return strings.Join(proxies, "\n")
}

// CSV writes a one-column CSV with a Proxy header.
func CSV(proxies []string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if errWrite := w.Write([]string{CSVHeader}); errWrite != nil {
		return nil, errWrite
	}
	for _, p := range proxies {
		if errWrite := w.Write([]string{p}); errWrite != nil {
			return nil, errWrite
		}
	}
	w.Flush()
	if errFlush := w.Error(); errFlush != nil {
		return nil, errFlush
	}
	return buf.Bytes(), nil
}

// FileName returns proxies-YYYY-MM-DD.<ext> for the local date of now.
func FileName(format Format, now time.Time) string {
	ext := "txt"
	if format == FormatCSV {
		ext = "csv"
	}
	return fmt.Sprintf("proxies-%s.%s", now.In(time.Local).Format("2006-01-02"), ext)
}

// ContentType returns the MIME type of format.
func ContentType(format Format) string {
	switch format {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatText:
		return "text/plain; charset=utf-8"
	default:
		return "application/json; charset=utf-8"
	}
}
