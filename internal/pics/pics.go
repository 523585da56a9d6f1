// Package pics holds the Protocol Implementation Conformance Statement flags
// declared for a device under test.
//
// Two questions are asked of a set: whether a capability is declared as
// supported (Check), and whether a key was declared at all (Has). A key
// declared false passes Has but fails Check.
package pics

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Set maps normalized PICS keys to their declared value.
type Set map[string]bool

// Normalize upper-cases and trims a key.
func Normalize(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}

// New builds a set from entries, normalizing every key.
func New(entries map[string]bool) Set {
	s := make(Set, len(entries))
	for k, v := range entries {
		s[Normalize(k)] = v
	}
	return s
}

// Check reports whether key is declared and true.
func (s Set) Check(key string) bool {
	v, _ := s.lookup(key)
	return v
}

// Has reports whether key is declared, regardless of value.
func (s Set) Has(key string) bool {
	_, ok := s.lookup(key)
	return ok
}

// lookup matches key against the stored keys after normalizing both, so a
// set written as a literal behaves like one built by New or Parse.
func (s Set) lookup(key string) (value, ok bool) {
	k := Normalize(key)
	if v, found := s[k]; found {
		return v, true
	}
	for stored, v := range s {
		if Normalize(stored) == k {
			return v, true
		}
	}
	return false, false
}

// Keys returns the declared keys in sorted order.
func (s Set) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Merge returns a new set holding s overlaid with other. Keys in other win.
func (s Set) Merge(other Set) Set {
	out := make(Set, len(s)+len(other))
	for k, v := range s {
		out[Normalize(k)] = v
	}
	for k, v := range other {
		out[Normalize(k)] = v
	}
	return out
}

// Parse builds a set from a decoded map. Values may be bools, 0/1 integers,
// or the strings accepted by ParseBool.
func Parse(m map[string]any) (Set, error) {
	s := make(Set, len(m))
	for k, raw := range m {
		v, err := parseValue(raw)
		if err != nil {
			return nil, fmt.Errorf("pics %q: %w", k, err)
		}
		s[Normalize(k)] = v
	}
	return s, nil
}

func parseValue(raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case int:
		return intBool(int64(v))
	case int64:
		return intBool(v)
	case uint64:
		return intBool(int64(v))
	case float64:
		return intBool(int64(v))
	case string:
		return ParseBool(v)
	default:
		return false, fmt.Errorf("unsupported value %v (%T)", raw, raw)
	}
}

func intBool(v int64) (bool, error) {
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, fmt.Errorf("value %d must be 0 or 1", v)
}

// ParseBool accepts 1/0, true/false, yes/no (case-insensitive).
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y":
		return true, nil
	case "no", "n":
		return false, nil
	}
	return strconv.ParseBool(strings.TrimSpace(s))
}

// Load reads a PICS file. ".yaml" and ".yml" files hold a mapping of key to
// value. Any other extension is read as "KEY=VALUE" lines with '#'
// comments.
func Load(path string) (Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pics: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return ParseLines(data)
	}
}

// ParseYAML decodes a YAML mapping of PICS keys.
func ParseYAML(data []byte) (Set, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("pics: yaml: %w", err)
	}
	return Parse(m)
}

// ParseLines decodes "KEY=VALUE" lines.
func ParseLines(data []byte) (Set, error) {
	s := make(Set)
	sc := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = strings.TrimSpace(text[:i])
		}
		if text == "" {
			continue
		}
		key, val, ok := strings.Cut(text, "=")
		if !ok {
			return nil, fmt.Errorf("pics: line %d: expected KEY=VALUE", line)
		}
		v, err := ParseBool(val)
		if err != nil {
			return nil, fmt.Errorf("pics: line %d: %w", line, err)
		}
		s[Normalize(key)] = v
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("pics: %w", err)
	}
	return s, nil
}
