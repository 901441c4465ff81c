// Package format renders generation parameters as text for the instructions
// field and for Civitai.
package format

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrInvalidPlaceholder is returned for template placeholders that are
	// not known parameters.
	ErrInvalidPlaceholder = errors.New("invalid placeholder")

	// ErrInvalidTemplate is returned for unbalanced braces.
	ErrInvalidTemplate = errors.New("invalid template")
)

// DefaultTemplate lists every parameter on its own line.
const DefaultTemplate = `Prompt: {prompt}
Negative Prompt: {negative_prompt}
Model: {model_name}
Seed: {seed}
Sampler: {sampler_name}
Scheduler: {scheduler_name}
Steps: {steps}
CFG: {cfg}
Guidance: {guidance}`

// Params are generation parameters. Nil fields are unset.
type Params struct {
	Prompt         *string
	NegativePrompt *string
	ModelName      *string
	ModelPath      *string
	Seed           *int64
	SamplerName    *string
	SchedulerName  *string
	Steps          *int64
	Cfg            *float64
	Guidance       *float64
	Width          *int64
	Height         *int64
}

func String(v string) *string {
	return &v
}

func Int(v int64) *int64 {
	return &v
}

func Float(v float64) *float64 {
	return &v
}

func str(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func integer(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func float(v *float64) string {
	if v == nil {
		return ""
	}
	return FormatFloat(*v)
}

// FormatFloat prints f the way the host does: integral values keep ".0" and
// very large or small magnitudes use exponent notation.
func FormatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}

	if abs := math.Abs(f); abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func (p Params) placeholders() map[string]string {
	return map[string]string{
		"prompt":          str(p.Prompt),
		"negative_prompt": str(p.NegativePrompt),
		"model_name":      str(p.ModelName),
		"seed":            integer(p.Seed),
		"sampler_name":    str(p.SamplerName),
		"scheduler_name":  str(p.SchedulerName),
		"steps":           integer(p.Steps),
		"cfg":             float(p.Cfg),
		"guidance":        float(p.Guidance),
	}
}

// Instructions replaces the {name} placeholders of template with the
// parameters. "{{" and "}}" produce literal braces.
func Instructions(template string, p Params) (string, error) {
	values := p.placeholders()

	var b strings.Builder
	for i := 0; i < len(template); i++ {
		c := template[i]
		switch c {
		case '{':
			if i+1 < len(template) && template[i+1] == '{' {
				b.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexAny(template[i+1:], "{}")
			if end < 0 || template[i+1+end] != '}' {
				return "", fmt.Errorf("%w: unclosed '{' at offset %d", ErrInvalidTemplate, i)
			}
			name := template[i+1 : i+1+end]
			value, ok := values[name]
			if !ok {
				return "", fmt.Errorf("%w '%s' in template", ErrInvalidPlaceholder, name)
			}
			b.WriteString(value)
			i += end + 1
		case '}':
			if i+1 < len(template) && template[i+1] == '}' {
				b.WriteByte('}')
				i++
				continue
			}
			return "", fmt.Errorf("%w: single '}' at offset %d", ErrInvalidTemplate, i)
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}

// PathStem returns the final element of path without its last extension.
// Leading dots do not start an extension.
func PathStem(path string) string {
	path = strings.TrimRight(path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		path = path[i+1:]
	}
	if path == "." || path == ".." {
		return ""
	}
	if i := strings.LastIndex(path, "."); i > 0 && i < len(path)-1 {
		return path[:i]
	}
	return path
}
