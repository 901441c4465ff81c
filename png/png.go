// Package png embeds XMP packets and text metadata into PNG files and reads
// them back.
package png

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"image"
	stdpng "image/png"
	"io"

	"github.com/disintegration/imaging"
	pngstructure "github.com/dsoprea/go-png-image-structure"
	"github.com/frommie/xmpmetadata/constants"
)

// ErrNoXmp is returned when a PNG carries no XMP text chunk.
var ErrNoXmp = errors.New("no XMP data found")

const (
	chunkIDAT = "IDAT"
	chunkIEND = "IEND"
	chunkTEXt = "tEXt"
	chunkZTXt = "zTXt"
	chunkITXt = "iTXt"
)

// TextChunk is a keyword/text pair stored alongside the image data.
type TextChunk struct {
	Keyword string
	Text    string
}

func parseChunks(data []byte) (*pngstructure.ChunkSlice, error) {
	pmp := pngstructure.NewPngMediaParser()
	intfc, err := pmp.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("error parsing PNG data: %w", err)
	}
	return intfc.(*pngstructure.ChunkSlice), nil
}

func newChunk(chunkType string, data []byte) *pngstructure.Chunk {
	c := &pngstructure.Chunk{
		Type:   chunkType,
		Length: uint32(len(data)),
		Data:   data,
	}
	c.UpdateCrc32()
	return c
}

// isLatin1 reports whether s can be stored in a tEXt chunk.
func isLatin1(s string) bool {
	for _, r := range s {
		if r > 0xFF {
			return false
		}
	}
	return true
}

func textChunk(tc TextChunk) *pngstructure.Chunk {
	if !isLatin1(tc.Text) {
		return itxtChunk(tc)
	}
	data := make([]byte, 0, len(tc.Keyword)+1+len(tc.Text))
	data = append(data, tc.Keyword...)
	data = append(data, 0)
	for _, r := range tc.Text {
		data = append(data, byte(r))
	}
	return newChunk(chunkTEXt, data)
}

func itxtChunk(tc TextChunk) *pngstructure.Chunk {
	data := make([]byte, 0, len(tc.Keyword)+5+len(tc.Text))
	data = append(data, tc.Keyword...)
	// NUL, uncompressed, method 0, empty language tag and translated keyword
	data = append(data, 0, 0, 0, 0, 0)
	data = append(data, tc.Text...)
	return newChunk(chunkITXt, data)
}

// decodeText returns keyword and text of a tEXt, zTXt or iTXt chunk.
func decodeText(c *pngstructure.Chunk) (string, string, bool, error) {
	keyword, rest, found := bytes.Cut(c.Data, []byte{0})
	if !found {
		return "", "", false, nil
	}

	switch c.Type {
	case chunkTEXt:
		runes := make([]rune, len(rest))
		for i, b := range rest {
			runes[i] = rune(b)
		}
		return string(keyword), string(runes), true, nil

	case chunkZTXt:
		if len(rest) < 1 {
			return "", "", false, fmt.Errorf("truncated zTXt chunk")
		}
		text, err := inflate(rest[1:])
		return string(keyword), string(text), err == nil, err

	case chunkITXt:
		if len(rest) < 2 {
			return "", "", false, fmt.Errorf("truncated iTXt chunk")
		}
		compressed := rest[0] == 1
		rest = rest[2:]
		// Skip language tag and translated keyword
		for i := 0; i < 2; i++ {
			_, after, ok := bytes.Cut(rest, []byte{0})
			if !ok {
				return "", "", false, fmt.Errorf("truncated iTXt chunk")
			}
			rest = after
		}
		if compressed {
			text, err := inflate(rest)
			return string(keyword), string(text), err == nil, err
		}
		return string(keyword), string(rest), true, nil
	}

	return "", "", false, nil
}

func inflate(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("error inflating text chunk: %w", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("error inflating text chunk: %w", err)
	}
	return out, nil
}

// TextChunks returns all text chunks of a PNG keyed by keyword. The first
// chunk wins for repeated keywords.
func TextChunks(data []byte) (map[string]string, error) {
	cs, err := parseChunks(data)
	if err != nil {
		return nil, err
	}

	texts := make(map[string]string)
	for _, c := range cs.Chunks() {
		keyword, text, ok, err := decodeText(c)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if _, exists := texts[keyword]; !exists {
			texts[keyword] = text
		}
	}
	return texts, nil
}

// ExtractXmp returns the packet stored under the XML:com.adobe.xmp keyword.
func ExtractXmp(data []byte) (string, error) {
	texts, err := TextChunks(data)
	if err != nil {
		return "", err
	}
	packet, ok := texts[constants.PngXmpKeyword]
	if !ok {
		return "", ErrNoXmp
	}
	return packet, nil
}

// EmbedXmp returns a copy of the PNG in data carrying packet in an iTXt chunk
// plus the given extra text chunks, all placed before the first IDAT. Chunks
// with the same keywords are replaced. An empty packet adds no XMP chunk.
func EmbedXmp(data []byte, packet string, extra ...TextChunk) ([]byte, error) {
	cs, err := parseChunks(data)
	if err != nil {
		return nil, err
	}

	replaced := map[string]bool{}
	var added []*pngstructure.Chunk
	if packet != "" {
		replaced[constants.PngXmpKeyword] = true
		added = append(added, itxtChunk(TextChunk{Keyword: constants.PngXmpKeyword, Text: packet}))
	}
	for _, tc := range extra {
		replaced[tc.Keyword] = true
		added = append(added, textChunk(tc))
	}

	var chunks []*pngstructure.Chunk
	inserted := false
	for _, c := range cs.Chunks() {
		if keyword, _, ok, _ := decodeText(c); ok && replaced[keyword] {
			continue
		}
		if !inserted && (c.Type == chunkIDAT || c.Type == chunkIEND) {
			chunks = append(chunks, added...)
			inserted = true
		}
		chunks = append(chunks, c)
	}
	if !inserted {
		return nil, fmt.Errorf("error embedding XMP: PNG has no image data")
	}

	var buffer bytes.Buffer
	if err := pngstructure.NewChunkSlice(chunks).WriteTo(&buffer); err != nil {
		return nil, fmt.Errorf("error serializing PNG data: %w", err)
	}
	return buffer.Bytes(), nil
}

// Encode writes img as PNG with the given compression, the XMP packet and
// extra text chunks.
func Encode(w io.Writer, img image.Image, level stdpng.CompressionLevel, packet string, extra ...TextChunk) error {
	var buffer bytes.Buffer
	if err := imaging.Encode(&buffer, img, imaging.PNG, imaging.PNGCompressionLevel(level)); err != nil {
		return fmt.Errorf("error encoding PNG: %w", err)
	}

	data := buffer.Bytes()
	if packet != "" || len(extra) > 0 {
		var err error
		if data, err = EmbedXmp(data, packet, extra...); err != nil {
			return err
		}
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("error writing PNG: %w", err)
	}
	return nil
}
