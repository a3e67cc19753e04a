package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ConfigBackend abstracts platform-specific config storage.
// macOS uses UserDefaults (via `defaults` CLI), Linux a JSON file under
// $XDG_CONFIG_HOME/mobi.
type ConfigBackend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
	Delete(key string) error
}

// section is a decoded JSON object. Dotted keys map onto nested sections:
// "chain.search" lives at {"chain": {"search": ...}}.
type section map[string]any

// lookup finds key in s. A literal dotted key at the top level wins over the
// nested path so hand-written flat files keep working.
func (s section) lookup(key string) (any, bool) {
	if v, ok := s[key]; ok {
		return v, true
	}
	parts := strings.Split(key, ".")
	cur := s
	for i, p := range parts {
		v, ok := cur[p]
		if !ok {
			return nil, false
		}
		if i == len(parts)-1 {
			return v, true
		}
		next, ok := asSection(v)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return nil, false
}

// assign stores v under the nested path for key and drops any flat copy.
func (s section) assign(key string, v any) {
	delete(s, key)
	parts := strings.Split(key, ".")
	cur := s
	for _, p := range parts[:len(parts)-1] {
		next, ok := asSection(cur[p])
		if !ok {
			next = section{}
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = v
}

// remove deletes key in both spellings and prunes sections left empty.
func (s section) remove(key string) {
	delete(s, key)
	s.prune(strings.Split(key, "."))
}

func (s section) prune(parts []string) bool {
	if len(parts) == 1 {
		delete(s, parts[0])
	} else if next, ok := asSection(s[parts[0]]); ok && next.prune(parts[1:]) {
		delete(s, parts[0])
	}
	return len(s) == 0
}

// asSection accepts both section and the map type produced by json.Unmarshal.
func asSection(v any) (section, bool) {
	switch m := v.(type) {
	case section:
		return m, true
	case map[string]any:
		return section(m), true
	}
	return nil, false
}

// scalarString renders a decoded JSON value the way the key table parses
// strings. Lists of names become the comma form used by chain and model keys.
func scalarString(key string, v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case bool:
		return strconv.FormatBool(val), nil
	case float64:
		if val == math.Trunc(val) {
			return strconv.FormatInt(int64(val), 10), nil
		}
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(val), nil
	case []string:
		return strings.Join(val, ","), nil
	case []any:
		names := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return "", fmt.Errorf("list %s must hold strings, got %T", key, item)
			}
			names = append(names, s)
		}
		return strings.Join(names, ","), nil
	case nil:
		return "", nil
	}
	return "", fmt.Errorf("invalid type %T for %s", v, key)
}

// scalarInt converts a decoded JSON value to an int, rejecting fractions and
// values out of range.
func scalarInt(key string, v any) (int, error) {
	switch val := v.(type) {
	case float64:
		if val < math.MinInt || val > math.MaxInt || val != math.Trunc(val) {
			return 0, fmt.Errorf("value %v for %s is not a valid integer or is out of range", val, key)
		}
		return int(val), nil
	case int:
		return val, nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return 0, fmt.Errorf("invalid integer for %s: %w", key, err)
		}
		return i, nil
	}
	return 0, fmt.Errorf("invalid type %T for %s", v, key)
}
