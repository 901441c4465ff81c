// Package graph reads widget values from a host workflow graph.
package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
)

var (
	ErrEmptyWidgetName = errors.New("widget name must not be empty")
	ErrNodeNotFound    = errors.New("node not found")
	ErrNoInputs        = errors.New("node has no inputs")
	ErrWidgetNotFound  = errors.New("widget not found")
	ErrNotNumeric      = errors.New("widget value is not numeric")
)

// Node is one entry of the graph. Inputs is nil when the node has no
// "inputs" key.
type Node struct {
	ClassType string         `json:"class_type"`
	Inputs    map[string]any `json:"inputs"`
}

// Graph maps node ids to nodes.
type Graph map[string]Node

// Load decodes a graph from JSON. Numbers are kept as json.Number.
func Load(r io.Reader) (Graph, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var g Graph
	if err := dec.Decode(&g); err != nil {
		return nil, fmt.Errorf("error decoding graph: %w", err)
	}
	return g, nil
}

// LoadFile decodes the graph stored at path.
func LoadFile(path string) (Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening graph: %w", err)
	}
	defer f.Close()
	return Load(f)
}

func sortedKeys[V any](m map[string]V) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}

// WidgetValue returns the raw value of widget on node nodeID.
func (g Graph) WidgetValue(nodeID, widget string) (any, error) {
	if widget == "" {
		return nil, ErrEmptyWidgetName
	}

	node, ok := g[nodeID]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available nodes: %s)", ErrNodeNotFound, nodeID, sortedKeys(g))
	}
	if node.Inputs == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoInputs, nodeID)
	}

	value, ok := node.Inputs[widget]
	if !ok {
		return nil, fmt.Errorf("%w: %q on node %q (available widgets: %s)", ErrWidgetNotFound, widget, nodeID, sortedKeys(node.Inputs))
	}
	return value, nil
}

// WidgetString returns the widget value as text. Strings are returned
// unchanged, booleans and null use the host's spelling, other values are
// rendered as JSON.
func (g Graph) WidgetString(nodeID, widget string) (string, error) {
	value, err := g.WidgetValue(nodeID, widget)
	if err != nil {
		return "", err
	}
	return FormatValue(value), nil
}

// FormatValue renders a decoded JSON value as text.
func FormatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "None"
	case string:
		return v
	case bool:
		if v {
			return "True"
		}
		return "False"
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	}
}

func notNumeric(widget string, value any, kind string) error {
	return fmt.Errorf("%w: widget %q has value %q which is not %s", ErrNotNumeric, widget, FormatValue(value), kind)
}

// WidgetInt returns the widget value as an integer. Floats are truncated
// and numeric strings are parsed.
func (g Graph) WidgetInt(nodeID, widget string) (int64, error) {
	value, err := g.WidgetValue(nodeID, widget)
	if err != nil {
		return 0, err
	}

	switch v := value.(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, nil
		}
		if f, err := v.Float64(); err == nil {
			if n, ok := truncate(f); ok {
				return n, nil
			}
		}
	case float64:
		if n, ok := truncate(v); ok {
			return n, nil
		}
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, notNumeric(widget, value, "an integer")
}

// truncate converts f to an integer when it lies within the int64 range.
func truncate(f float64) (int64, bool) {
	if math.IsNaN(f) || f < math.MinInt64 || f >= -math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

// WidgetFloat returns the widget value as a float. Numeric strings are
// parsed.
func (g Graph) WidgetFloat(nodeID, widget string) (float64, error) {
	value, err := g.WidgetValue(nodeID, widget)
	if err != nil {
		return 0, err
	}

	switch v := value.(type) {
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f, nil
		}
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f, nil
		}
	}
	return 0, notNumeric(widget, value, "a float")
}
