package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/frommie/xmpmetadata/config"
	"github.com/frommie/xmpmetadata/constants"
	"github.com/frommie/xmpmetadata/counter"
	"github.com/frommie/xmpmetadata/jpeg"
	"github.com/frommie/xmpmetadata/png"
	"github.com/frommie/xmpmetadata/types"
	"github.com/frommie/xmpmetadata/webp"
	"github.com/frommie/xmpmetadata/xmp"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

// ErrNoImages is returned when SaveImages is called with an empty batch.
var ErrNoImages = errors.New("no images to save")

// SaveRequest describes one batch of images to save.
type SaveRequest struct {
	Prefix    string          // Filename prefix, defaults to the configured prefix
	ImageType types.ImageType // Container, defaults to the configured type

	// Fields holds the metadata per field, either shared or per batch index.
	Fields map[xmp.Field]types.BatchValue[any]

	// XML replaces the generated packet when it resolves to a non-blank string.
	XML types.BatchValue[string]

	// Prompt and ExtraPngInfo are stored as JSON text chunks for
	// types.ImageTypePNGWithWorkflow.
	Prompt       any
	ExtraPngInfo map[string]any
}

// SavedImage describes a written file relative to the output directory.
type SavedImage struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

type Saver struct {
	Config  *config.Config
	Verbose bool
	logger  *zap.Logger
	bar     *progressbar.ProgressBar
}

// NewSaver returns a Saver writing below cfg.Output.Dir. A nil logger
// disables logging.
func NewSaver(cfg *config.Config, logger *zap.Logger, verbose bool) *Saver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Saver{
		Config:  cfg,
		Verbose: verbose,
		logger:  logger,
	}
}

func (s *Saver) newProgressBar(n int) *progressbar.ProgressBar {
	return progressbar.NewOptions(n,
		progressbar.OptionSetVisibility(s.Verbose),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Saving images..."),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}

// BuildPacket returns the record and packet for batch index i. The packet is
// the XML override when one is set, otherwise the serialized record.
func BuildPacket(req SaveRequest, i int) (*xmp.Metadata, string, error) {
	m := xmp.New()
	for _, f := range xmp.Fields {
		bv, ok := req.Fields[f]
		if !ok || !bv.IsSet() {
			continue
		}
		v, err := bv.Resolve(i)
		if err != nil {
			return nil, "", fmt.Errorf("error resolving %s: %w", f, err)
		}
		if err := m.SetValue(f, v); err != nil {
			return nil, "", err
		}
	}

	override, err := req.XML.Resolve(i)
	if err != nil {
		return nil, "", fmt.Errorf("error resolving xml: %w", err)
	}
	if strings.TrimSpace(override) != "" {
		return m, override, nil
	}

	packet, err := m.ToPacket()
	if err != nil {
		return nil, "", err
	}
	return m, packet, nil
}

// textChunks returns the JSON text chunks stored next to the XMP packet.
func textChunks(req SaveRequest) ([]png.TextChunk, error) {
	var chunks []png.TextChunk
	if req.Prompt != nil {
		data, err := json.Marshal(req.Prompt)
		if err != nil {
			return nil, fmt.Errorf("error encoding prompt: %w", err)
		}
		chunks = append(chunks, png.TextChunk{Keyword: constants.PngPromptKeyword, Text: string(data)})
	}

	keys := make([]string, 0, len(req.ExtraPngInfo))
	for k := range req.ExtraPngInfo {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		data, err := json.Marshal(req.ExtraPngInfo[k])
		if err != nil {
			return nil, fmt.Errorf("error encoding %s: %w", k, err)
		}
		chunks = append(chunks, png.TextChunk{Keyword: k, Text: string(data)})
	}
	return chunks, nil
}

func (s *Saver) encode(w io.Writer, img image.Image, imageType types.ImageType, packet string, chunks []png.TextChunk) error {
	switch imageType {
	case types.ImageTypeJPEG:
		return jpeg.Encode(w, img, s.Config.Process.JpegQuality, packet)
	case types.ImageTypePNGWithWorkflow:
		return png.Encode(w, img, s.Config.Process.PngCompression.Level(), packet, chunks...)
	case types.ImageTypePNG:
		return png.Encode(w, img, s.Config.Process.PngCompression.Level(), packet)
	case types.ImageTypeLosslessWebP:
		return webp.Encode(w, img, s.Config.Process.WebpCompression.Level(), packet)
	default:
		return fmt.Errorf("%w: %q", types.ErrUnsupportedImageType, string(imageType))
	}
}

func (s *Saver) writeFile(path string, img image.Image, imageType types.ImageType, packet string, chunks []png.TextChunk) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating %s: %w", path, err)
	}
	if err := s.encode(f, img, imageType, packet, chunks); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("error closing %s: %w", path, err)
	}
	return nil
}

// SaveImages writes every image of the batch with its metadata. Files
// written before a failure or cancellation are kept and not returned.
func (s *Saver) SaveImages(ctx context.Context, images []image.Image, req SaveRequest) ([]SavedImage, error) {
	if len(images) == 0 {
		return nil, ErrNoImages
	}

	prefix := req.Prefix
	if prefix == "" {
		prefix = s.Config.Output.Prefix
	}
	imageType := req.ImageType
	if imageType == "" {
		imageType = types.ImageType(s.Config.Output.ImageType)
	}
	ext, err := imageType.Extension()
	if err != nil {
		return nil, err
	}

	var chunks []png.TextChunk
	if imageType == types.ImageTypePNGWithWorkflow {
		if chunks, err = textChunks(req); err != nil {
			return nil, err
		}
	}

	bounds := images[0].Bounds()
	savePath, err := counter.Resolve(s.Config.Output.Dir, prefix, bounds.Dx(), bounds.Dy())
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(savePath.Folder, 0755); err != nil {
		return nil, fmt.Errorf("error creating output folder: %w", err)
	}

	fileCounter := counter.NewFileCounter(savePath)
	if err := fileCounter.CountFiles(); err != nil {
		return nil, err
	}

	s.bar = s.newProgressBar(len(images))
	defer s.bar.Finish()

	results := make([]SavedImage, 0, len(images))
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		_, packet, err := BuildPacket(req, i)
		if err != nil {
			return nil, fmt.Errorf("error building metadata for image %d: %w", i, err)
		}

		name := savePath.FileName(i, fileCounter.Next(), ext)
		path := filepath.Join(savePath.Folder, name)
		if err := s.writeFile(path, img, imageType, packet, chunks); err != nil {
			return nil, err
		}
		if s.Config.Output.Sidecar {
			if err := xmp.WriteSidecar(xmp.SidecarPath(path), packet); err != nil {
				return nil, err
			}
		}

		s.bar.Add(1)
		s.logger.Debug("saved image",
			zap.String("path", path),
			zap.String("type", string(imageType)),
			zap.Int("batch", i))

		results = append(results, SavedImage{
			Filename:  name,
			Subfolder: savePath.Subfolder,
			Type:      constants.OutputType,
		})
	}

	s.logger.Info("saved batch",
		zap.Int("count", len(results)),
		zap.String("folder", savePath.Folder))
	return results, nil
}
