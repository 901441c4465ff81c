package config

import (
	"fmt"
	"image/png"
	"os"

	"github.com/HugoSmits86/nativewebp"
	"github.com/frommie/xmpmetadata/constants"
	"github.com/frommie/xmpmetadata/types"
	"github.com/frommie/xmpmetadata/xmp"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type PngCompression string

const (
	PngCompressionDefault PngCompression = "default"
	PngCompressionNone    PngCompression = "none"
	PngCompressionSpeed   PngCompression = "speed"
	PngCompressionBest    PngCompression = "best"
)

// Level maps c to the encoder setting. Unknown values use the default.
func (c PngCompression) Level() png.CompressionLevel {
	switch c {
	case PngCompressionNone:
		return png.NoCompression
	case PngCompressionSpeed:
		return png.BestSpeed
	case PngCompressionBest:
		return png.BestCompression
	default:
		return png.DefaultCompression
	}
}

type WebpCompression string

const (
	WebpCompressionDefault WebpCompression = "default"
	WebpCompressionSpeed   WebpCompression = "speed"
	WebpCompressionBest    WebpCompression = "best"
)

// Level maps c to the lossless WebP encoder effort. Unknown values use the
// default.
func (c WebpCompression) Level() nativewebp.CompressionLevel {
	switch c {
	case WebpCompressionSpeed:
		return nativewebp.BestSpeed
	case WebpCompressionBest:
		return nativewebp.BestCompression
	default:
		return nativewebp.DefaultCompression
	}
}

type OutputConfig struct {
	Dir       string `yaml:"dir"`       // Base directory for saved images
	Prefix    string `yaml:"prefix"`    // Filename prefix, may contain sub folders and %batch_num%
	ImageType string `yaml:"imageType"` // JPEG, PNG, "PNG with embedded workflow" or "Lossless WebP"
	Sidecar   bool   `yaml:"sidecar"`   // Also write the packet to a .xmp file next to each image
}

type ProcessConfig struct {
	JpegQuality     int             `yaml:"jpegQuality"`     // JPEG quality (1-100)
	PngCompression  PngCompression  `yaml:"pngCompression"`  // default, none, speed or best
	WebpCompression WebpCompression `yaml:"webpCompression"` // default, speed or best
}

type LogConfig struct {
	Level       string `yaml:"level"` // debug, info, warn or error
	Development bool   `yaml:"development"`
}

type Config struct {
	Output   OutputConfig      `yaml:"output"`
	Process  ProcessConfig     `yaml:"process"`
	Log      LogConfig         `yaml:"log"`
	Defaults map[string]string `yaml:"defaults"` // Default metadata per field name, e.g. creator
}

func (c *Config) Validate() error {
	if c.Output.Dir == "" {
		return fmt.Errorf("output directory must not be empty")
	}
	if _, err := types.ParseImageType(c.Output.ImageType); err != nil {
		return fmt.Errorf("invalid image type: %w", err)
	}

	if c.Process.JpegQuality < 1 || c.Process.JpegQuality > 100 {
		return fmt.Errorf("invalid JPEG quality: %d", c.Process.JpegQuality)
	}
	validCompression := map[PngCompression]bool{
		PngCompressionDefault: true,
		PngCompressionNone:    true,
		PngCompressionSpeed:   true,
		PngCompressionBest:    true,
	}
	if !validCompression[c.Process.PngCompression] {
		return fmt.Errorf("invalid PNG compression: %s", c.Process.PngCompression)
	}
	switch c.Process.WebpCompression {
	case WebpCompressionDefault, WebpCompressionSpeed, WebpCompressionBest:
	default:
		return fmt.Errorf("invalid WebP compression: %s", c.Process.WebpCompression)
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	for name := range c.Defaults {
		if _, err := xmp.ParseField(name); err != nil {
			return fmt.Errorf("invalid default: %w", err)
		}
	}
	return nil
}

// DefaultMetadata returns a record filled from the configured defaults.
func (c *Config) DefaultMetadata() (*xmp.Metadata, error) {
	m := xmp.New()
	for name, value := range c.Defaults {
		f, err := xmp.ParseField(name)
		if err != nil {
			return nil, err
		}
		if err := m.Set(f, value); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// LoadConfig loads config from yaml file. Keys missing from the file keep
// their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	cfg := NewDefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing YAML config: %w", err)
	}

	// Validate config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// NewDefaultConfig creates a config with default values
func NewDefaultConfig() *Config {
	return &Config{
		Output: OutputConfig{
			Dir:       "output",
			Prefix:    constants.FilenamePrefix,
			ImageType: string(types.ImageTypePNGWithWorkflow),
		},
		Process: ProcessConfig{
			JpegQuality:     95,
			PngCompression:  PngCompressionNone,
			WebpCompression: WebpCompressionDefault,
		},
		Log: LogConfig{
			Level: "info",
		},
		Defaults: map[string]string{},
	}
}
