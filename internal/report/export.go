package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/crashscan/backend/internal/models"
	"github.com/vmihailenco/msgpack/v5"
)

// Export formats.
const (
	FormatNone    = ""
	FormatJSON    = "json"
	FormatMsgpack = "msgpack"
)

// ValidFormat reports whether format is a known export format.
func ValidFormat(format string) bool {
	switch format {
	case FormatNone, FormatJSON, FormatMsgpack:
		return true
	}
	return false
}

// ExportFileName returns the sidecar path for an exported report.
func ExportFileName(logPath, format string) string {
	return strings.TrimSuffix(FileName(logPath), ".md") + "." + format
}

// Export writes r in the given format. Struct fields use their json names
// in both formats.
func Export(w io.Writer, r *models.Report, format string) error {
	switch format {
	case FormatMsgpack:
		enc := msgpack.NewEncoder(w)
		enc.SetCustomStructTag("json")
		return enc.Encode(r)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	default:
		return fmt.Errorf("unsupported export format: %q", format)
	}
}

// Decode reads a report exported with Export.
func Decode(rd io.Reader, format string) (*models.Report, error) {
	var r models.Report
	switch format {
	case FormatMsgpack:
		dec := msgpack.NewDecoder(rd)
		dec.SetCustomStructTag("json")
		if err := dec.Decode(&r); err != nil {
			return nil, err
		}
	case FormatJSON:
		if err := json.NewDecoder(rd).Decode(&r); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported export format: %q", format)
	}
	return &r, nil
}
