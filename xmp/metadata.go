// Package xmp holds the XMP metadata model: a fixed set of Dublin Core,
// Photoshop, EXIF and IPTC fields that can be rendered to an XMP/RDF
// document and parsed back from one.
package xmp

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// ErrUnknownField is returned for field names or values outside the model.
	ErrUnknownField = errors.New("unknown XMP field")

	// ErrInvalidFieldType is returned when a non-string value is assigned to a field.
	ErrInvalidFieldType = errors.New("invalid XMP field type")

	// ErrInvalidFieldValue is returned for values that are not valid UTF-8 or
	// contain characters XML cannot represent.
	ErrInvalidFieldValue = errors.New("invalid XMP field value")
)

// Field identifies one of the metadata fields of a Metadata record.
type Field int

const (
	FieldCreator Field = iota
	FieldRights
	FieldTitle
	FieldDescription
	FieldSubject
	FieldInstructions
	FieldComment
	FieldAltText
	FieldExtDescription

	fieldCount
)

// Fields lists all fields in the order they are written to a document.
var Fields = []Field{
	FieldCreator,
	FieldRights,
	FieldTitle,
	FieldDescription,
	FieldSubject,
	FieldInstructions,
	FieldComment,
	FieldAltText,
	FieldExtDescription,
}

var fieldNames = [fieldCount]string{
	FieldCreator:        "creator",
	FieldRights:         "rights",
	FieldTitle:          "title",
	FieldDescription:    "description",
	FieldSubject:        "subject",
	FieldInstructions:   "instructions",
	FieldComment:        "comment",
	FieldAltText:        "alt_text",
	FieldExtDescription: "ext_description",
}

func (f Field) valid() bool {
	return f >= 0 && f < fieldCount
}

func (f Field) String() string {
	if !f.valid() {
		return fmt.Sprintf("Field(%d)", int(f))
	}
	return fieldNames[f]
}

// MultiValued reports whether the field holds a list of items.
func (f Field) MultiValued() bool {
	return f == FieldCreator || f == FieldSubject
}

// ParseField maps a field name such as "alt_text" to its Field.
func ParseField(name string) (Field, error) {
	for i, n := range fieldNames {
		if n == name {
			return Field(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownField, name)
}

// Metadata is a plain value record of XMP fields. The zero value is an empty
// record. A Metadata is not safe for concurrent mutation.
type Metadata struct {
	values [fieldCount][]string
}

// New returns an empty record.
func New() *Metadata {
	return &Metadata{}
}

// Get returns the value of f and whether it is set. List fields are joined
// with ", ".
func (m *Metadata) Get(f Field) (string, bool) {
	if !f.valid() || len(m.values[f]) == 0 {
		return "", false
	}
	if f.MultiValued() {
		return strings.Join(m.values[f], ", "), true
	}
	return m.values[f][0], true
}

// Items returns a copy of the individual items of f.
func (m *Metadata) Items(f Field) []string {
	if !f.valid() {
		return nil
	}
	return slices.Clone(m.values[f])
}

// Set assigns value to f. An empty or whitespace-only value clears the field.
// List fields are split on ';' and ','. Values with control characters other
// than tab, newline and carriage return, or with invalid UTF-8, are rejected
// with ErrInvalidFieldValue and leave the field unchanged.
func (m *Metadata) Set(f Field, value string) error {
	if !f.valid() {
		return fmt.Errorf("%w: %s", ErrUnknownField, f)
	}
	if !validText(value) {
		return fmt.Errorf("%w: %s = %q", ErrInvalidFieldValue, f, value)
	}
	if isBlank(value) {
		m.values[f] = nil
		return nil
	}
	if f.MultiValued() {
		m.setItems(f, splitList(value))
		return nil
	}
	m.values[f] = []string{value}
	return nil
}

// SetValue assigns a dynamically typed value. Only string, *string and nil
// are accepted; nil and a nil *string clear the field.
func (m *Metadata) SetValue(f Field, value any) error {
	switch v := value.(type) {
	case nil:
		return m.Set(f, "")
	case string:
		return m.Set(f, v)
	case *string:
		if v == nil {
			return m.Set(f, "")
		}
		return m.Set(f, *v)
	default:
		return fmt.Errorf("%w: %s cannot be set from %T", ErrInvalidFieldType, f, value)
	}
}

// Clear unsets f.
func (m *Metadata) Clear(f Field) {
	if f.valid() {
		m.values[f] = nil
	}
}

// IsEmpty reports whether no field is set.
func (m *Metadata) IsEmpty() bool {
	for _, v := range m.values {
		if len(v) > 0 {
			return false
		}
	}
	return true
}

// Equal reports whether both records hold the same field values.
func (m *Metadata) Equal(o *Metadata) bool {
	if m == nil || o == nil {
		return m == o
	}
	for i := range m.values {
		if !slices.Equal(m.values[i], o.values[i]) {
			return false
		}
	}
	return true
}

// setItems stores already split items. Blank items are dropped, and subject
// keeps only the first occurrence of each keyword.
func (m *Metadata) setItems(f Field, items []string) {
	var kept []string
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if f == FieldSubject && slices.Contains(kept, item) {
			continue
		}
		kept = append(kept, item)
	}
	m.values[f] = kept
}

// Creator returns the creators joined with ", ", or "" when unset.
func (m *Metadata) Creator() string {
	return m.get(FieldCreator)
}

// SetCreator splits v on ';' and ',' and keeps the given order.
func (m *Metadata) SetCreator(v string) error {
	return m.Set(FieldCreator, v)
}

// Rights returns the copyright notice, or "" when unset.
func (m *Metadata) Rights() string {
	return m.get(FieldRights)
}

// SetRights sets the copyright notice.
func (m *Metadata) SetRights(v string) error {
	return m.Set(FieldRights, v)
}

// Title returns the title, or "" when unset.
func (m *Metadata) Title() string {
	return m.get(FieldTitle)
}

// SetTitle sets the title.
func (m *Metadata) SetTitle(v string) error {
	return m.Set(FieldTitle, v)
}

// Description returns the description, or "" when unset.
func (m *Metadata) Description() string {
	return m.get(FieldDescription)
}

// SetDescription sets the description.
func (m *Metadata) SetDescription(v string) error {
	return m.Set(FieldDescription, v)
}

// Subject returns the keywords joined with ", ", or "" when unset.
func (m *Metadata) Subject() string {
	return m.get(FieldSubject)
}

// SetSubject splits v on ';' and ',' and drops repeated keywords.
func (m *Metadata) SetSubject(v string) error {
	return m.Set(FieldSubject, v)
}

// Instructions returns the Photoshop instructions, or "" when unset.
func (m *Metadata) Instructions() string {
	return m.get(FieldInstructions)
}

// SetInstructions sets the Photoshop instructions.
func (m *Metadata) SetInstructions(v string) error {
	return m.Set(FieldInstructions, v)
}

// Comment returns the EXIF user comment, or "" when unset.
func (m *Metadata) Comment() string {
	return m.get(FieldComment)
}

// SetComment sets the EXIF user comment.
func (m *Metadata) SetComment(v string) error {
	return m.Set(FieldComment, v)
}

// AltText returns the IPTC alt text, or "" when unset.
func (m *Metadata) AltText() string {
	return m.get(FieldAltText)
}

// SetAltText sets the IPTC alt text.
func (m *Metadata) SetAltText(v string) error {
	return m.Set(FieldAltText, v)
}

// ExtDescription returns the IPTC extended description, or "" when unset.
func (m *Metadata) ExtDescription() string {
	return m.get(FieldExtDescription)
}

// SetExtDescription sets the IPTC extended description.
func (m *Metadata) SetExtDescription(v string) error {
	return m.Set(FieldExtDescription, v)
}

func (m *Metadata) get(f Field) string {
	v, _ := m.Get(f)
	return v
}

// validText reports whether s is valid UTF-8 made only of characters allowed
// in XML 1.0 documents.
func validText(s string) bool {
	if !utf8.ValidString(s) {
		return false
	}
	for _, r := range s {
		if !isXMLChar(r) {
			return false
		}
	}
	return true
}

func isXMLChar(r rune) bool {
	return r == '\t' || r == '\n' || r == '\r' ||
		(r >= 0x20 && r <= 0xD7FF) ||
		(r >= 0xE000 && r <= 0xFFFD) ||
		(r >= 0x10000 && r <= utf8.MaxRune)
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// splitList splits on ';' or ',' the way keyword inputs are typed by hand.
func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ';' || r == ','
	})
}

func isSpaceOrBOM(r rune) bool {
	return unicode.IsSpace(r) || r == '\ufeff'
}
