package processor

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/frommie/xmpmetadata/jpeg"
	"github.com/frommie/xmpmetadata/png"
	"github.com/frommie/xmpmetadata/webp"
	"github.com/frommie/xmpmetadata/xmp"
)

// LoadResult is a decoded image together with its metadata.
type LoadResult struct {
	Image    image.Image
	Width    int
	Height   int
	Metadata *xmp.Metadata
	XML      string // Raw packet, empty when the file carries none
	Sidecar  bool   // Metadata was read from a .xmp file next to the image
}

var (
	jpegMagic = []byte{0xFF, 0xD8}
	pngMagic  = []byte("\x89PNG\r\n\x1a\n")
)

// isWebP matches the RIFF header of a WebP file: "RIFF", size, "WEBP".
func isWebP(data []byte) bool {
	return len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WEBP"
}

// extractXmp returns the packet of a JPEG, PNG or WebP file, or "" for
// other formats and files without one.
func extractXmp(data []byte) (string, error) {
	var (
		packet string
		err    error
	)
	switch {
	case bytes.HasPrefix(data, jpegMagic):
		packet, err = jpeg.ExtractXmp(data)
	case bytes.HasPrefix(data, pngMagic):
		packet, err = png.ExtractXmp(data)
	case isWebP(data):
		packet, err = webp.ExtractXmp(data)
	default:
		return "", nil
	}
	if errors.Is(err, jpeg.ErrNoXmp) || errors.Is(err, png.ErrNoXmp) || errors.Is(err, webp.ErrNoXmp) {
		return "", nil
	}
	return packet, err
}

// decode reads WebP through its own decoder and everything else through
// imaging, which applies the EXIF orientation.
func decode(data []byte) (image.Image, error) {
	if isWebP(data) {
		return webp.Decode(bytes.NewReader(data))
	}
	return imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
}

// LoadImage decodes the image at path and reads its metadata. Without an
// embedded packet the sidecar file is read; without either the record is
// empty.
func LoadImage(path string) (*LoadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading image: %w", err)
	}

	img, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("error decoding image %s: %w", path, err)
	}

	packet, err := extractXmp(data)
	if err != nil {
		return nil, fmt.Errorf("error extracting XMP from %s: %w", path, err)
	}

	result := &LoadResult{
		Image:    img,
		Width:    img.Bounds().Dx(),
		Height:   img.Bounds().Dy(),
		Metadata: xmp.New(),
		XML:      packet,
	}

	if strings.TrimSpace(packet) != "" {
		if result.Metadata, err = xmp.Parse(packet); err != nil {
			return nil, fmt.Errorf("error parsing XMP from %s: %w", path, err)
		}
		return result, nil
	}

	// Fall back to a sidecar file
	metadata, sidecarPacket, err := xmp.ReadSidecar(xmp.SidecarPath(path))
	switch {
	case err == nil:
		result.Metadata = metadata
		result.XML = sidecarPacket
		result.Sidecar = true
	case !errors.Is(err, os.ErrNotExist):
		return nil, err
	}
	return result, nil
}

// FileHash returns the hex SHA-256 digest of the file at path.
func FileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("error opening %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("error hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
