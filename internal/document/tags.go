package document

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

func parseDate(raw string) (any, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, want YYYY-MM-DD", raw)
	}
	return t, nil
}

var dateTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseDateTime(raw string) (any, error) {
	trimmed := strings.TrimSpace(raw)
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t, nil
		}
	}
	return nil, fmt.Errorf("invalid datetime %q", raw)
}

// parseSeconds reads a numeric duration expressed in seconds.
func parseSeconds(raw string) (any, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid seconds literal %q", raw)
	}
	return time.Duration(f * float64(time.Second)), nil
}

// durationToken matches one component of a duration literal: a count
// followed by a unit letter, e.g. "2w" or "30M".
var durationToken = regexp.MustCompile(`^(\d+)([YmwdHhMSs])$`)

// durationUnits maps unit letters to seconds. Y and m use the average
// Gregorian year and month.
var durationUnits = map[string]int64{
	"Y": 31556952,
	"m": 2629746,
	"w": 604800,
	"d": 86400,
	"H": 3600,
	"h": 3600,
	"M": 60,
	"S": 1,
	"s": 1,
}

// parseDuration reads a space-separated list of count-unit tokens, e.g.
// "1d 12H 30M".
func parseDuration(raw string) (any, error) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty duration literal")
	}
	var seconds int64
	for _, field := range fields {
		match := durationToken.FindStringSubmatch(field)
		if match == nil {
			return nil, fmt.Errorf("invalid duration token %q", field)
		}
		count, err := strconv.ParseInt(match[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid duration token %q: %v", field, err)
		}
		seconds += count * durationUnits[match[2]]
	}
	return time.Duration(seconds) * time.Second, nil
}

// parseBase64 is forgiving about layout: whitespace is stripped and missing
// padding is restored before decoding, so literals may be wrapped across
// lines.
func parseBase64(raw string) (any, error) {
	compact := strings.Join(strings.Fields(raw), "")
	if rem := len(compact) % 4; rem != 0 {
		compact += strings.Repeat("=", 4-rem)
	}
	data, err := base64.StdEncoding.DecodeString(compact)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 literal: %v", err)
	}
	return data, nil
}

func parseHex(raw string) (any, error) {
	compact := strings.Join(strings.Fields(raw), "")
	data, err := hex.DecodeString(compact)
	if err != nil {
		return nil, fmt.Errorf("invalid hex literal: %v", err)
	}
	return data, nil
}

// readFile loads a file referenced by a tag, relative to the document's
// directory unless the path is absolute. Reads happen at parse time so that
// a missing file fails before anything runs.
func (w *nodeWalker) readFile(node *yaml.Node) ([]byte, error) {
	path, err := w.scalarValue(node)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, tagError(node, "tag %q needs a file path", node.Tag)
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(w.dir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, tagError(node, "tag %q: %v", node.Tag, err)
	}
	return data, nil
}
