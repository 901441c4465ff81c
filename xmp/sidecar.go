package xmp

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SidecarExtension is the extension of sidecar files.
const SidecarExtension = ".xmp"

// SidecarPath returns the sidecar file for imagePath: the same name with
// the extension replaced by ".xmp".
func SidecarPath(imagePath string) string {
	return strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + SidecarExtension
}

// ReadSidecar parses the sidecar file at path and returns the record and
// the raw packet. A missing file returns an error wrapping os.ErrNotExist.
func ReadSidecar(path string) (*Metadata, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("error reading XMP file: %w", err)
	}

	packet := string(data)
	m, err := Parse(packet)
	if err != nil {
		return nil, "", fmt.Errorf("error parsing XMP file %s: %w", path, err)
	}
	return m, packet, nil
}

// WriteSidecar writes packet to path.
func WriteSidecar(path, packet string) error {
	if err := os.WriteFile(path, []byte(packet), 0644); err != nil {
		return fmt.Errorf("error writing XMP file: %w", err)
	}
	return nil
}
