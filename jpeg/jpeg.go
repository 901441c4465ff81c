package jpeg

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
	"github.com/dsoprea/go-jpeg-image-structure/v2"
	"github.com/frommie/xmpmetadata/constants"
)

var (
	// ErrNoXmp is returned when a JPEG carries no XMP APP1 segment.
	ErrNoXmp = errors.New("no XMP data found")

	// ErrPacketTooLarge is returned for packets that do not fit one APP1 segment.
	ErrPacketTooLarge = errors.New("XMP packet too large for APP1 segment")
)

// xmpPrefix identifies an XMP APP1 segment: the namespace followed by NUL.
var xmpPrefix = []byte(constants.XmpNamespace + "\x00")

// maxSegmentData is the APP1 payload limit; the length field counts itself.
const maxSegmentData = 0xFFFF - 2

// MaxPacketSize is the largest packet EmbedXmp accepts.
const MaxPacketSize = maxSegmentData - len(constants.XmpNamespace) - 1

func parseSegments(data []byte) (*jpegstructure.SegmentList, error) {
	jmp := jpegstructure.NewJpegMediaParser()
	intfc, err := jmp.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("error parsing JPEG data: %w", err)
	}
	return intfc.(*jpegstructure.SegmentList), nil
}

func isXmpSegment(segment *jpegstructure.Segment) bool {
	return segment.MarkerId == constants.App1MarkerId &&
		bytes.HasPrefix(segment.Data, []byte(constants.XmpNamespace))
}

// ExtractXmp returns the XMP packet stored in the first XMP APP1 segment.
func ExtractXmp(data []byte) (string, error) {
	sl, err := parseSegments(data)
	if err != nil {
		return "", err
	}

	for _, segment := range sl.Segments() {
		if !isXmpSegment(segment) {
			continue
		}
		payload := segment.Data[len(constants.XmpNamespace):]
		// Strip the NUL separator and any padding around the packet
		payload = bytes.TrimLeft(payload, "\x00")
		payload = bytes.TrimRight(payload, "\x00")
		return string(bytes.TrimSpace(payload)), nil
	}

	return "", ErrNoXmp
}

// EmbedXmp returns a copy of the JPEG in data carrying packet in an APP1
// segment. An existing XMP segment is replaced; a new one is placed after
// APP0 and any EXIF segment.
func EmbedXmp(data []byte, packet string) ([]byte, error) {
	if len(packet) > MaxPacketSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrPacketTooLarge, len(packet))
	}

	sl, err := parseSegments(data)
	if err != nil {
		return nil, err
	}

	payload := make([]byte, 0, len(xmpPrefix)+len(packet))
	payload = append(payload, xmpPrefix...)
	payload = append(payload, packet...)
	xmpSegment := &jpegstructure.Segment{
		MarkerId:   constants.App1MarkerId,
		MarkerName: "APP1",
		Data:       payload,
	}

	var kept []*jpegstructure.Segment
	for _, seg := range sl.Segments() {
		if !isXmpSegment(seg) {
			kept = append(kept, seg)
		}
	}

	// Find insertion position after SOI, APP0 and EXIF
	insertPos := 1
	for insertPos < len(kept) &&
		(kept[insertPos].MarkerId == constants.App0MarkerId || kept[insertPos].MarkerId == constants.App1MarkerId) {
		insertPos++
	}
	if insertPos > len(kept) {
		insertPos = len(kept)
	}

	newSegments := make([]*jpegstructure.Segment, 0, len(kept)+1)
	newSegments = append(newSegments, kept[:insertPos]...)
	newSegments = append(newSegments, xmpSegment)
	newSegments = append(newSegments, kept[insertPos:]...)

	newJpeg := jpegstructure.NewSegmentList(newSegments)
	var buffer bytes.Buffer
	if err := newJpeg.Write(&buffer); err != nil {
		return nil, fmt.Errorf("error serializing JPEG data: %w", err)
	}
	return buffer.Bytes(), nil
}

// Encode writes img as JPEG with the given quality and, if packet is not
// empty, an embedded XMP packet.
func Encode(w io.Writer, img image.Image, quality int, packet string) error {
	var buffer bytes.Buffer
	if err := imaging.Encode(&buffer, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return fmt.Errorf("error encoding JPEG: %w", err)
	}

	data := buffer.Bytes()
	if packet != "" {
		var err error
		if data, err = EmbedXmp(data, packet); err != nil {
			return err
		}
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("error writing JPEG: %w", err)
	}
	return nil
}
