package types

import (
	"errors"
	"fmt"

	"github.com/frommie/xmpmetadata/constants"
)

var (
	// ErrBatchIndex is returned when a per-batch value has no entry for an image.
	ErrBatchIndex = errors.New("no value for batch index")

	// ErrUnsupportedImageType is returned for image types that cannot be saved.
	ErrUnsupportedImageType = errors.New("unsupported image type")
)

type batchKind int

const (
	batchUnset batchKind = iota
	batchScalar
	batchPerBatch
)

// BatchValue is either one value shared by every image of a batch or a list
// holding one value per batch index. The zero value is unset.
type BatchValue[T any] struct {
	kind   batchKind
	scalar T
	values []T
}

// Scalar returns a value used for every batch index.
func Scalar[T any](v T) BatchValue[T] {
	return BatchValue[T]{kind: batchScalar, scalar: v}
}

// PerBatch returns a value holding one entry per batch index.
func PerBatch[T any](vs ...T) BatchValue[T] {
	return BatchValue[T]{kind: batchPerBatch, values: vs}
}

// FromAny wraps a dynamically typed input: []any and []string become
// PerBatch, nil stays unset, everything else is a Scalar.
func FromAny(v any) BatchValue[any] {
	switch t := v.(type) {
	case nil:
		return BatchValue[any]{}
	case []any:
		return PerBatch(t...)
	case []string:
		vs := make([]any, len(t))
		for i, s := range t {
			vs[i] = s
		}
		return PerBatch(vs...)
	default:
		return Scalar(v)
	}
}

func (b BatchValue[T]) IsSet() bool {
	return b.kind != batchUnset
}

func (b BatchValue[T]) IsPerBatch() bool {
	return b.kind == batchPerBatch
}

// Resolve returns the value for batch index i. An unset value resolves to the
// zero value of T.
func (b BatchValue[T]) Resolve(i int) (T, error) {
	var zero T
	switch b.kind {
	case batchScalar:
		return b.scalar, nil
	case batchPerBatch:
		if i < 0 || i >= len(b.values) {
			return zero, fmt.Errorf("%w: %d of %d", ErrBatchIndex, i, len(b.values))
		}
		return b.values[i], nil
	default:
		return zero, nil
	}
}

// ImageType selects the container an image is saved in.
type ImageType string

const (
	ImageTypeJPEG            ImageType = "JPEG"
	ImageTypePNGWithWorkflow ImageType = "PNG with embedded workflow"
	ImageTypePNG             ImageType = "PNG"
	ImageTypeLosslessWebP    ImageType = "Lossless WebP"
)

// ImageTypes lists the supported types in the order offered to users.
var ImageTypes = []ImageType{ImageTypePNGWithWorkflow, ImageTypePNG, ImageTypeJPEG, ImageTypeLosslessWebP}

// ParseImageType accepts the display names of ImageTypes.
func ParseImageType(s string) (ImageType, error) {
	for _, t := range ImageTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedImageType, s)
}

// Extension returns the file extension, without dot, for t.
func (t ImageType) Extension() (string, error) {
	switch t {
	case ImageTypeJPEG:
		return constants.JpegExtension, nil
	case ImageTypePNG, ImageTypePNGWithWorkflow:
		return constants.PngExtension, nil
	case ImageTypeLosslessWebP:
		return constants.WebpExtension, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedImageType, string(t))
	}
}
