package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/paulschiretz/pgl-sync/pkg/util"
)

// Format is the on-disk encoding of a report file.
type Format string

const (
	JSON     Format = "json"
	JSONGzip Format = "json.gz"
	JSONZstd Format = "json.zst"
)

var formatToString = map[Format]string{
	JSON:     "json",
	JSONGzip: "json.gz",
	JSONZstd: "json.zst",
}

var stringToFormat map[string]Format

func init() {
	stringToFormat = util.InvertMap(formatToString)
}

func (f Format) String() string {
	if str, ok := formatToString[f]; ok {
		return str
	}
	return fmt.Sprintf("unknown_report_format(%s)", string(f))
}

func ParseFormat(s string) (Format, error) {
	if format, ok := stringToFormat[s]; ok {
		return format, nil
	}
	return "", fmt.Errorf("invalid report format: %q. Must be 'json', 'json.gz', or 'json.zst'", s)
}

// MarshalJSON implements the json.Marshaler interface for Format.
func (f Format) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.String())
}

// FormatFromPath picks the format from the file extension. Anything that is
// not .gz or .zst is written as plain JSON.
func FormatFromPath(path string) Format {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".gz"):
		return JSONGzip
	case strings.HasSuffix(lower, ".zst"):
		return JSONZstd
	default:
		return JSON
	}
}
