package metrics

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sevigo/ragbench/internal/textutil"
)

var ErrUnparsable = errors.New("metrics: judge output is not valid JSON")

// ParseJSON decodes the first JSON object in raw. Code fences and prose
// around the object are ignored.
func ParseJSON(raw string, out any) error {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return fmt.Errorf("%w: no object in %q", ErrUnparsable, truncate(raw))
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), out); err != nil {
		return fmt.Errorf("%w: %w", ErrUnparsable, err)
	}
	return nil
}

func truncate(s string) string {
	return textutil.Truncate(s, 120)
}

// Flag is a yes/no verdict. It accepts 1/0, true/false and the strings
// "1", "0", "yes", "no", "true", "false".
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	var s string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	} else {
		s = string(data)
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "1.0", "true", "yes":
		*f = true
	case "0", "0.0", "false", "no", "null", "":
		*f = false
	default:
		return fmt.Errorf("metrics: invalid verdict %s", data)
	}
	return nil
}
