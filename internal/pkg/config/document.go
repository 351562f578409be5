package config

import (
	"fmt"
	"strings"
)

// normalize converts nested yaml maps into map[string]interface{} and copies every container,
// so the result shares nothing with its input.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, v := range t {
			out[k] = normalize(v)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, v := range t {
			out[fmt.Sprint(k)] = normalize(v)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, v := range t {
			out[i] = normalize(v)
		}
		return out
	case []string:
		out := make([]interface{}, len(t))
		for i, v := range t {
			out[i] = v
		}
		return out
	default:
		return v
	}
}

// deepMerge returns base with override applied. Maps are merged recursively,
// every other value (lists included) replaces the base value.
func deepMerge(base, override map[string]interface{}) map[string]interface{} {
	result := normalize(base).(map[string]interface{})
	for k, v := range override {
		v = normalize(v)
		baseMap, baseIsMap := result[k].(map[string]interface{})
		overrideMap, overrideIsMap := v.(map[string]interface{})
		if baseIsMap && overrideIsMap {
			result[k] = deepMerge(baseMap, overrideMap)
			continue
		}
		result[k] = v
	}
	return result
}

func splitKey(key string) []string {
	return strings.Split(key, ".")
}

func lookup(doc map[string]interface{}, key string) (interface{}, bool) {
	var current interface{} = doc
	for _, part := range splitKey(key) {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// assign sets dotted key creating intermediate maps, a non-map intermediate value is replaced.
func assign(doc map[string]interface{}, key string, value interface{}) {
	parts := splitKey(key)
	target := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := target[part].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			target[part] = next
		}
		target = next
	}
	target[parts[len(parts)-1]] = normalize(value)
}
