package params

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// FromTree flattens a nested parameter tree (as decoded from YAML or JSON) into
// a Set. A map holding a "value" key is a leaf; its optional "volatility" key
// becomes the volatility. Bare numbers become values and strings become
// categorical text. Keys already containing dots are accepted, so flat and
// nested input can be mixed.
func FromTree(tree map[string]interface{}) (Set, error) {
	entries := make(map[string]Value)
	if err := flatten("", tree, entries); err != nil {
		return Set{}, err
	}
	return NewSet(entries), nil
}

func flatten(prefix string, node map[string]interface{}, out map[string]Value) error {
	keys := make([]string, 0, len(node))
	for k := range node {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch v := node[k].(type) {
		case map[string]interface{}:
			if _, isLeaf := v["value"]; isLeaf {
				entry, err := leafValue(key, v)
				if err != nil {
					return err
				}
				out[strings.ToLower(key)] = entry
				continue
			}
			if err := flatten(key, v, out); err != nil {
				return err
			}
		case map[interface{}]interface{}:
			converted := make(map[string]interface{}, len(v))
			for mk, mv := range v {
				converted[fmt.Sprintf("%v", mk)] = mv
			}
			if err := flatten(prefix, map[string]interface{}{k: converted}, out); err != nil {
				return err
			}
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				out[strings.ToLower(key)] = Value{Value: f}
			} else {
				out[strings.ToLower(key)] = Value{Text: v}
			}
		case nil:
			continue
		default:
			f, err := toFloat(v)
			if err != nil {
				return fmt.Errorf("parameter %s: %w", key, err)
			}
			out[strings.ToLower(key)] = Value{Value: f}
		}
	}
	return nil
}

func leafValue(key string, node map[string]interface{}) (Value, error) {
	var entry Value
	switch raw := node["value"].(type) {
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			entry.Value = f
		} else {
			entry.Text = raw
		}
	default:
		f, err := toFloat(raw)
		if err != nil {
			return Value{}, fmt.Errorf("parameter %s value: %w", key, err)
		}
		entry.Value = f
	}
	if rawVol, ok := node["volatility"]; ok && rawVol != nil {
		vol, err := toFloat(rawVol)
		if err != nil {
			return Value{}, fmt.Errorf("parameter %s volatility: %w", key, err)
		}
		entry.Volatility = vol
		entry.HasVolatility = true
	}
	return entry, nil
}

func toFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(n), 64)
	default:
		return 0, fmt.Errorf("unsupported parameter type %T", v)
	}
}
