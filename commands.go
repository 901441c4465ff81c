package main

import (
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/fatih/color"
	"github.com/frommie/xmpmetadata/format"
	"github.com/frommie/xmpmetadata/graph"
	"github.com/frommie/xmpmetadata/processor"
	"github.com/frommie/xmpmetadata/types"
	"github.com/frommie/xmpmetadata/xmp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// flagName turns a field name into its flag spelling.
func flagName(f xmp.Field) string {
	return strings.ReplaceAll(f.String(), "_", "-")
}

// readJSON decodes the JSON document in file, keeping numbers as written.
func readJSON(file string) (any, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("error opening %s: %w", file, err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("error decoding %s: %w", file, err)
	}
	return v, nil
}

func newSaveCommand(a *app) *cobra.Command {
	var (
		prefix       string
		imageType    string
		outputDir    string
		xmlOverride  string
		promptFile   string
		workflowFile string
		sidecar      bool
	)
	values := make(map[xmp.Field]*[]string, len(xmp.Fields))

	cmd := &cobra.Command{
		Use:   "save <image>...",
		Short: "Save images with embedded XMP metadata",
		Long: `Re-encode the input images as one batch into the output directory and embed
the given metadata. A field flag given once applies to every image; given
once per image, each image gets its own value.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputDir != "" {
				a.cfg.Output.Dir = outputDir
			}
			if sidecar {
				a.cfg.Output.Sidecar = true
			}

			req := processor.SaveRequest{
				Prefix: prefix,
				Fields: make(map[xmp.Field]types.BatchValue[any]),
			}
			if imageType != "" {
				t, err := types.ParseImageType(imageType)
				if err != nil {
					return err
				}
				req.ImageType = t
			}

			for _, f := range xmp.Fields {
				given := *values[f]
				switch {
				case len(given) == 1:
					req.Fields[f] = types.Scalar[any](given[0])
				case len(given) > 1:
					req.Fields[f] = types.FromAny(given)
				default:
					if v, ok := a.cfg.Defaults[f.String()]; ok {
						req.Fields[f] = types.Scalar[any](v)
					}
				}
			}

			if xmlOverride != "" {
				req.XML = types.Scalar(xmlOverride)
			}
			if promptFile != "" {
				prompt, err := readJSON(promptFile)
				if err != nil {
					return err
				}
				req.Prompt = prompt
			}
			if workflowFile != "" {
				workflow, err := readJSON(workflowFile)
				if err != nil {
					return err
				}
				req.ExtraPngInfo = map[string]any{"workflow": workflow}
			}

			images := make([]image.Image, 0, len(args))
			for _, arg := range args {
				img, err := imaging.Open(arg, imaging.AutoOrientation(true))
				if err != nil {
					return fmt.Errorf("error opening %s: %w", arg, err)
				}
				images = append(images, img)
			}

			saver := processor.NewSaver(a.cfg, a.logger, a.verbose)
			saved, err := saver.SaveImages(cmd.Context(), images, req)
			if err != nil {
				return err
			}

			green := color.New(color.FgGreen)
			for _, s := range saved {
				green.Fprintln(cmd.OutOrStdout(), path.Join(s.Subfolder, s.Filename))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "Filename prefix, may contain sub folders and %batch_num%")
	cmd.Flags().StringVar(&imageType, "type", "", `Image type: "PNG with embedded workflow", PNG, JPEG or "Lossless WebP"`)
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory")
	cmd.Flags().StringVar(&xmlOverride, "xml", "", "Raw XMP packet written instead of the field values")
	cmd.Flags().StringVar(&promptFile, "prompt-file", "", "JSON prompt stored in PNG files with workflow")
	cmd.Flags().StringVar(&workflowFile, "workflow-file", "", "JSON workflow stored in PNG files with workflow")
	cmd.Flags().BoolVar(&sidecar, "sidecar", false, "Also write a .xmp sidecar file next to each image")
	for _, f := range xmp.Fields {
		values[f] = cmd.Flags().StringArray(flagName(f), nil, fmt.Sprintf("Value of %s, repeat once per image for per-image values", f))
	}

	return cmd
}

func newLoadCommand(a *app) *cobra.Command {
	var (
		raw  bool
		hash bool
	)

	cmd := &cobra.Command{
		Use:   "load <image>",
		Short: "Print the XMP metadata of an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := processor.LoadImage(args[0])
			if err != nil {
				return err
			}
			a.logger.Debug("loaded image",
				zap.String("path", args[0]),
				zap.Int("width", result.Width),
				zap.Int("height", result.Height),
				zap.Bool("sidecar", result.Sidecar))

			out := cmd.OutOrStdout()
			title := color.New(color.FgCyan, color.Bold)
			for _, f := range xmp.Fields {
				value, _ := result.Metadata.Get(f)
				title.Fprintf(out, "%s: ", f)
				fmt.Fprintln(out, value)
			}

			if hash {
				sum, err := processor.FileHash(args[0])
				if err != nil {
					return err
				}
				title.Fprint(out, "sha256: ")
				fmt.Fprintln(out, sum)
			}
			if raw {
				fmt.Fprintln(out)
				fmt.Fprintln(out, result.XML)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Also print the raw XMP packet")
	cmd.Flags().BoolVar(&hash, "hash", false, "Also print the SHA-256 of the file")

	return cmd
}

func newWidgetCommand(a *app) *cobra.Command {
	var as string

	cmd := &cobra.Command{
		Use:   "widget <graph.json> <node-id> <widget>",
		Short: "Print a widget value of a workflow graph",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := graph.LoadFile(args[0])
			if err != nil {
				return err
			}

			var value string
			switch as {
			case "string":
				value, err = g.WidgetString(args[1], args[2])
			case "int":
				var n int64
				n, err = g.WidgetInt(args[1], args[2])
				value = fmt.Sprint(n)
			case "float":
				var f float64
				f, err = g.WidgetFloat(args[1], args[2])
				value = format.FormatFloat(f)
			default:
				return fmt.Errorf("invalid --as value %q: must be string, int or float", as)
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}

	cmd.Flags().StringVar(&as, "as", "string", "Value type: string, int or float")

	return cmd
}

func newFormatCommand(a *app) *cobra.Command {
	var (
		template string
		civitai  bool
		strs     = map[string]*string{}
		ints     = map[string]*int64{}
		floats   = map[string]*float64{}
	)

	cmd := &cobra.Command{
		Use:   "format",
		Short: "Format generation parameters as instructions or for Civitai",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			setStr := func(name string) *string {
				if flags.Changed(name) {
					return format.String(*strs[name])
				}
				return nil
			}
			setInt := func(name string) *int64 {
				if flags.Changed(name) {
					return format.Int(*ints[name])
				}
				return nil
			}
			setFloat := func(name string) *float64 {
				if flags.Changed(name) {
					return format.Float(*floats[name])
				}
				return nil
			}

			p := format.Params{
				Prompt:         setStr("prompt"),
				NegativePrompt: setStr("negative-prompt"),
				ModelName:      setStr("model-name"),
				ModelPath:      setStr("model-path"),
				SamplerName:    setStr("sampler"),
				SchedulerName:  setStr("scheduler"),
				Seed:           setInt("seed"),
				Steps:          setInt("steps"),
				Width:          setInt("width"),
				Height:         setInt("height"),
				Cfg:            setFloat("cfg"),
				Guidance:       setFloat("guidance"),
			}

			if civitai {
				fmt.Fprintln(cmd.OutOrStdout(), format.Civitai(p))
				return nil
			}
			text, err := format.Instructions(template, p)
			if err != nil {
				return err
			}
			a.logger.Debug("formatted instructions", zap.Int("length", len(text)))
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&template, "template", format.DefaultTemplate, "Template with {placeholder} fields")
	flags.BoolVar(&civitai, "civitai", false, "Use the Civitai layout instead of the template")
	for _, name := range []string{"prompt", "negative-prompt", "model-name", "model-path", "sampler", "scheduler"} {
		strs[name] = flags.String(name, "", "Parameter "+name)
	}
	for _, name := range []string{"seed", "steps", "width", "height"} {
		ints[name] = flags.Int64(name, 0, "Parameter "+name)
	}
	for _, name := range []string{"cfg", "guidance"} {
		floats[name] = flags.Float64(name, 0, "Parameter "+name)
	}

	return cmd
}

func newStemCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stem <path>",
		Short: "Print the file name of a path without extension",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), format.PathStem(args[0]))
			return nil
		},
	}
}
