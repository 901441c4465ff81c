// Package testutils provides helper functions for testing metadata embedding
// and extraction.
package testutils

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"image"
	"image/color"
	"os"
	"testing"

	"github.com/HugoSmits86/nativewebp"
	"github.com/disintegration/imaging"
)

// SampleXMP is an XMP packet as written by Adobe Bridge: it only carries
// camera and rating properties, none of the descriptive fields.
const SampleXMP = `<?xpacket begin="" id="W5M0MpCehiHzreSzNTczkc9d"?>
<x:xmpmeta xmlns:x="adobe:ns:meta/">
    <rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">
        <rdf:Description rdf:about="" xmlns:xmp="http://ns.adobe.com/xap/1.0/" xmlns:tiff="http://ns.adobe.com/tiff/1.0/">
            <xmp:Rating>4</xmp:Rating>
            <tiff:Make>FUJIFILM</tiff:Make>
        </rdf:Description>
    </rdf:RDF>
</x:xmpmeta>
<?xpacket end="w"?>`

// DescriptiveXMP carries a title, creators and keywords.
const DescriptiveXMP = `<?xpacket begin="" id="W5M0MpCehiHzreSzNTczkc9d"?>
<x:xmpmeta xmlns:x="adobe:ns:meta/">
    <rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">
        <rdf:Description rdf:about="" xmlns:dc="http://purl.org/dc/elements/1.1/">
            <dc:title><rdf:Alt><rdf:li xml:lang="x-default">Sunset</rdf:li></rdf:Alt></dc:title>
            <dc:creator><rdf:Seq><rdf:li>Alice</rdf:li><rdf:li>Bob</rdf:li></rdf:Seq></dc:creator>
            <dc:subject><rdf:Bag><rdf:li>red</rdf:li><rdf:li>orange</rdf:li></rdf:Bag></dc:subject>
        </rdf:Description>
    </rdf:RDF>
</x:xmpmeta>
<?xpacket end="w"?>`

// NewTestImage returns a white 100x100 image.
func NewTestImage() image.Image {
	return imaging.New(100, 100, color.White)
}

// CreateEmptyJPEG creates a blank 100x100 white JPEG file at the specified path.
func CreateEmptyJPEG(t *testing.T, path string) error {
	t.Helper()
	return imaging.Save(NewTestImage(), path, imaging.JPEGQuality(90))
}

// CreateEmptyPNG creates a blank 100x100 white PNG file at the specified path.
func CreateEmptyPNG(t *testing.T, path string) error {
	t.Helper()
	return imaging.Save(NewTestImage(), path)
}

// JPEGWithXMP returns a JPEG whose first segment after SOI is an XMP APP1
// segment holding packet.
func JPEGWithXMP(t *testing.T, packet string) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, NewTestImage(), imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		t.Fatalf("Error creating JPEG: %v", err)
	}
	data := buf.Bytes()

	// Create APP1 segment with XMP data
	prefix := []byte("http://ns.adobe.com/xap/1.0/\x00")
	xmpLength := len(prefix) + len(packet)

	// Rebuild JPEG
	newData := make([]byte, 0, len(data)+xmpLength+4)
	newData = append(newData, 0xFF, 0xD8)                                       // JPEG SOI marker
	newData = append(newData, 0xFF, 0xE1)                                       // APP1 marker
	newData = append(newData, byte((xmpLength+2)>>8), byte((xmpLength+2)&0xFF)) // Length
	newData = append(newData, prefix...)
	newData = append(newData, []byte(packet)...)
	newData = append(newData, data[2:]...) // Rest of JPEG data
	return newData
}

// CreateTestJPEGWithEmbeddedXMP writes JPEGWithXMP to path.
func CreateTestJPEGWithEmbeddedXMP(t *testing.T, path string, packet string) error {
	t.Helper()
	if err := os.WriteFile(path, JPEGWithXMP(t, packet), 0644); err != nil {
		return fmt.Errorf("Error writing JPEG: %v", err)
	}
	return nil
}

// PNGWithText returns a PNG carrying one uncompressed text chunk of the given
// type ("tEXt" or "iTXt") right after IHDR.
func PNGWithText(t *testing.T, chunkType, keyword, text string) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, NewTestImage(), imaging.PNG); err != nil {
		t.Fatalf("Error creating PNG: %v", err)
	}
	data := buf.Bytes()

	var body []byte
	body = append(body, keyword...)
	body = append(body, 0)
	if chunkType == "iTXt" {
		// compression flag, compression method, empty language and translated keyword
		body = append(body, 0, 0, 0, 0)
	}
	body = append(body, text...)

	chunk := make([]byte, 0, len(body)+12)
	chunk = binary.BigEndian.AppendUint32(chunk, uint32(len(body)))
	chunk = append(chunk, chunkType...)
	chunk = append(chunk, body...)
	chunk = binary.BigEndian.AppendUint32(chunk, crc32.ChecksumIEEE(chunk[4:]))

	// Signature (8) + IHDR (4 length + 4 type + 13 data + 4 crc)
	const afterIHDR = 8 + 25
	out := make([]byte, 0, len(data)+len(chunk))
	out = append(out, data[:afterIHDR]...)
	out = append(out, chunk...)
	out = append(out, data[afterIHDR:]...)
	return out
}

// CreateTestPNGWithEmbeddedXMP writes a PNG with packet in an iTXt chunk to path.
func CreateTestPNGWithEmbeddedXMP(t *testing.T, path string, packet string) error {
	t.Helper()
	if err := os.WriteFile(path, PNGWithText(t, "iTXt", "XML:com.adobe.xmp", packet), 0644); err != nil {
		return fmt.Errorf("Error writing PNG: %v", err)
	}
	return nil
}

// CreateEmptyWebP creates a blank 100x100 white lossless WebP file in the
// simple format at the specified path.
func CreateEmptyWebP(t *testing.T, path string) error {
	t.Helper()
	var buf bytes.Buffer
	if err := nativewebp.Encode(&buf, NewTestImage(), nil); err != nil {
		return fmt.Errorf("Error creating WebP: %v", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

// WebPWithXMP returns an extended format WebP with packet in a trailing
// XMP chunk.
func WebPWithXMP(t *testing.T, packet string) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := nativewebp.Encode(&buf, NewTestImage(), &nativewebp.Options{UseExtendedFormat: true}); err != nil {
		t.Fatalf("Error creating WebP: %v", err)
	}
	data := buf.Bytes()

	// RIFF header (12) + VP8X chunk header (8), then the flags byte
	data[20] |= 1 << 2

	data = append(data, "XMP "...)
	data = binary.LittleEndian.AppendUint32(data, uint32(len(packet)))
	data = append(data, packet...)
	if len(packet)%2 == 1 {
		data = append(data, 0)
	}
	binary.LittleEndian.PutUint32(data[4:8], uint32(len(data)-8))
	return data
}

// CreateTestWebPWithEmbeddedXMP writes WebPWithXMP to path.
func CreateTestWebPWithEmbeddedXMP(t *testing.T, path string, packet string) error {
	t.Helper()
	if err := os.WriteFile(path, WebPWithXMP(t, packet), 0644); err != nil {
		return fmt.Errorf("Error writing WebP: %v", err)
	}
	return nil
}

// CreateTestGraph writes a host graph description in JSON to path.
func CreateTestGraph(t *testing.T, path string) error {
	t.Helper()

	graph := `{
  "3": {"class_type": "KSampler", "inputs": {"seed": 156680208700286, "steps": 20, "cfg": 8.0, "sampler_name": "euler", "scheduler": "normal", "denoise": 1, "model": ["4", 0]}},
  "4": {"class_type": "CheckpointLoaderSimple", "inputs": {"ckpt_name": "v1-5-pruned-emaonly.safetensors"}},
  "6": {"class_type": "CLIPTextEncode", "inputs": {"text": "beautiful scenery nature glass bottle landscape", "clip": ["4", 1]}},
  "9": {"class_type": "Note"}
}`
	return os.WriteFile(path, []byte(graph), 0644)
}
