package webp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/HugoSmits86/nativewebp"
	"golang.org/x/image/riff"
)

var (
	// ErrNoXmp is returned when a WebP file carries no XMP chunk.
	ErrNoXmp = errors.New("no XMP data found")

	// ErrInvalidWebP is returned for data that is not a RIFF WebP container.
	ErrInvalidWebP = errors.New("invalid WebP data")
)

var (
	fourCCWebP = riff.FourCC{'W', 'E', 'B', 'P'}
	fourCCVP8X = riff.FourCC{'V', 'P', '8', 'X'}
	fourCCVP8L = riff.FourCC{'V', 'P', '8', 'L'}
	fourCCVP8  = riff.FourCC{'V', 'P', '8', ' '}
	fourCCALPH = riff.FourCC{'A', 'L', 'P', 'H'}
	fourCCXMP  = riff.FourCC{'X', 'M', 'P', ' '}
)

// VP8X feature flags
const (
	flagXMP   = 1 << 2
	flagAlpha = 1 << 4
)

const vp8xSize = 10

type chunk struct {
	id   riff.FourCC
	data []byte
}

func parseChunks(data []byte) ([]chunk, error) {
	formType, r, err := riff.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWebP, err)
	}
	if formType != fourCCWebP {
		return nil, fmt.Errorf("%w: form type %q", ErrInvalidWebP, formType[:])
	}

	var chunks []chunk
	for {
		id, _, chunkData, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidWebP, err)
		}
		payload, err := io.ReadAll(chunkData)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidWebP, err)
		}
		chunks = append(chunks, chunk{id: id, data: payload})
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no chunks", ErrInvalidWebP)
	}
	return chunks, nil
}

func writeChunks(w io.Writer, chunks []chunk) error {
	var body bytes.Buffer
	body.Write(fourCCWebP[:])
	for _, c := range chunks {
		body.Write(c.id[:])
		binary.Write(&body, binary.LittleEndian, uint32(len(c.data)))
		body.Write(c.data)
		if len(c.data)%2 == 1 {
			body.WriteByte(0)
		}
	}

	var header [8]byte
	copy(header[:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:], uint32(body.Len()))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := body.WriteTo(w)
	return err
}

// canvas returns the image size and whether the bitstream carries alpha.
func canvas(chunks []chunk) (width, height int, alpha bool, err error) {
	for _, c := range chunks {
		switch c.id {
		case fourCCALPH:
			alpha = true
		case fourCCVP8L:
			// Signature byte, then 14 bits width-1, 14 bits height-1, 1 bit alpha.
			if len(c.data) < 5 || c.data[0] != 0x2f {
				return 0, 0, false, fmt.Errorf("%w: bad VP8L header", ErrInvalidWebP)
			}
			bits := binary.LittleEndian.Uint32(c.data[1:5])
			width = int(bits&0x3fff) + 1
			height = int(bits>>14&0x3fff) + 1
			return width, height, alpha || bits>>28&1 == 1, nil
		case fourCCVP8:
			// Frame tag, start code 9d 01 2a, then 14 bit width and height.
			if len(c.data) < 10 || !bytes.Equal(c.data[3:6], []byte{0x9d, 0x01, 0x2a}) {
				return 0, 0, false, fmt.Errorf("%w: bad VP8 header", ErrInvalidWebP)
			}
			width = int(binary.LittleEndian.Uint16(c.data[6:8]) & 0x3fff)
			height = int(binary.LittleEndian.Uint16(c.data[8:10]) & 0x3fff)
			return width, height, alpha, nil
		}
	}
	return 0, 0, false, fmt.Errorf("%w: no image data", ErrInvalidWebP)
}

func vp8xChunk(width, height int, flags byte) chunk {
	data := make([]byte, vp8xSize)
	data[0] = flags
	w, h := width-1, height-1
	data[4], data[5], data[6] = byte(w), byte(w>>8), byte(w>>16)
	data[7], data[8], data[9] = byte(h), byte(h>>8), byte(h>>16)
	return chunk{id: fourCCVP8X, data: data}
}

// ExtractXmp returns the packet stored in the XMP chunk.
func ExtractXmp(data []byte) (string, error) {
	chunks, err := parseChunks(data)
	if err != nil {
		return "", err
	}

	for _, c := range chunks {
		if c.id == fourCCXMP {
			return string(bytes.TrimSpace(bytes.TrimRight(c.data, "\x00"))), nil
		}
	}
	return "", ErrNoXmp
}

// EmbedXmp returns a copy of the WebP in data carrying packet in an XMP
// chunk. Simple files are converted to the extended format; an existing
// XMP chunk is replaced.
func EmbedXmp(data []byte, packet string) ([]byte, error) {
	chunks, err := parseChunks(data)
	if err != nil {
		return nil, err
	}

	var kept []chunk
	for _, c := range chunks {
		if c.id != fourCCXMP {
			kept = append(kept, c)
		}
	}

	if kept[0].id == fourCCVP8X {
		if len(kept[0].data) < vp8xSize {
			return nil, fmt.Errorf("%w: short VP8X chunk", ErrInvalidWebP)
		}
		header := bytes.Clone(kept[0].data)
		header[0] |= flagXMP
		kept[0] = chunk{id: fourCCVP8X, data: header}
	} else {
		width, height, alpha, err := canvas(kept)
		if err != nil {
			return nil, err
		}
		var flags byte = flagXMP
		if alpha {
			flags |= flagAlpha
		}
		kept = append([]chunk{vp8xChunk(width, height, flags)}, kept...)
	}

	// Metadata chunks follow the image data
	kept = append(kept, chunk{id: fourCCXMP, data: []byte(packet)})

	var buffer bytes.Buffer
	if err := writeChunks(&buffer, kept); err != nil {
		return nil, fmt.Errorf("error serializing WebP data: %w", err)
	}
	return buffer.Bytes(), nil
}

// Encode writes img as lossless WebP and, if packet is not empty, an
// embedded XMP packet.
func Encode(w io.Writer, img image.Image, level nativewebp.CompressionLevel, packet string) error {
	var buffer bytes.Buffer
	if err := nativewebp.Encode(&buffer, img, &nativewebp.Options{CompressionLevel: level}); err != nil {
		return fmt.Errorf("error encoding WebP: %w", err)
	}

	data := buffer.Bytes()
	if packet != "" {
		var err error
		if data, err = EmbedXmp(data, packet); err != nil {
			return err
		}
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("error writing WebP: %w", err)
	}
	return nil
}

// Decode reads a WebP image. VP8L data inside an extended file may announce
// alpha in its VP8X header, which the plain decoder rejects.
func Decode(r io.Reader) (image.Image, error) {
	img, err := nativewebp.DecodeIgnoreAlphaFlag(r)
	if err != nil {
		return nil, fmt.Errorf("error decoding WebP: %w", err)
	}
	return img, nil
}
