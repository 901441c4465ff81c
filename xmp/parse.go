package xmp

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/unicode"
)

// ErrMalformedPacket is returned by Parse for input that is not a single
// well-formed XML document.
var ErrMalformedPacket = errors.New("malformed XMP packet")

type frame struct {
	name     xml.Name
	text     strings.Builder
	children int
}

type parser struct {
	stack []*frame
	items [fieldCount][]string
	found [fieldCount]bool
}

// Parse reads an XMP document, with or without xpacket wrapper, into a new
// record. Fields whose structure is absent stay unset. Input that is not
// well-formed XML yields an error wrapping ErrMalformedPacket.
//
// Documents are UTF-8 unless their XML declaration names another encoding.
// UTF-16 input must start with a byte order mark.
func Parse(text string) (*Metadata, error) {
	if hasUTF16BOM(text) {
		decoded, err := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder().String(text)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPacket, err)
		}
		text = decoded
	}
	if strings.TrimFunc(text, isSpaceOrBOM) == "" {
		return nil, fmt.Errorf("%w: empty document", ErrMalformedPacket)
	}

	dec := xml.NewDecoder(strings.NewReader(text))
	dec.CharsetReader = charsetReader
	p := &parser{}
	roots := 0

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPacket, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if len(p.stack) == 0 {
				roots++
				if roots > 1 {
					return nil, fmt.Errorf("%w: multiple root elements", ErrMalformedPacket)
				}
			}
			p.start(t)
		case xml.EndElement:
			p.end()
		case xml.CharData:
			if len(p.stack) == 0 {
				if strings.TrimFunc(string(t), isSpaceOrBOM) != "" {
					return nil, fmt.Errorf("%w: text outside of root element", ErrMalformedPacket)
				}
				continue
			}
			top := p.stack[len(p.stack)-1]
			if top.children == 0 {
				top.text.Write(t)
			}
		}
	}

	if roots == 0 {
		return nil, fmt.Errorf("%w: no root element", ErrMalformedPacket)
	}
	if len(p.stack) != 0 {
		return nil, fmt.Errorf("%w: unexpected end of document", ErrMalformedPacket)
	}

	m := New()
	for _, f := range Fields {
		if !p.found[f] {
			continue
		}
		if f.MultiValued() {
			m.setItems(f, p.items[f])
		} else if len(p.items[f]) > 0 {
			if err := m.Set(f, p.items[f][0]); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedPacket, err)
			}
		}
	}
	return m, nil
}

func hasUTF16BOM(s string) bool {
	return strings.HasPrefix(s, "\xfe\xff") || strings.HasPrefix(s, "\xff\xfe")
}

// charsetReader converts documents declared in a legacy encoding to UTF-8.
// UTF-16 documents are converted before decoding starts.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	if strings.HasPrefix(strings.ToLower(label), "utf-16") {
		return input, nil
	}
	return charset.NewReaderLabel(label, input)
}

func (p *parser) start(t xml.StartElement) {
	if n := len(p.stack); n > 0 {
		p.stack[n-1].children++
	}
	p.stack = append(p.stack, &frame{name: t.Name})

	// Simple properties may also be written as attributes of rdf:Description.
	if t.Name.Space == NsRDF && t.Name.Local == "Description" {
		for _, a := range t.Attr {
			for _, f := range Fields {
				prop := properties[f]
				if prop.Container == leaf && a.Name.Space == prop.Space && a.Name.Local == prop.Local {
					p.collect(f, a.Value)
				}
			}
		}
	}
}

func (p *parser) end() {
	n := len(p.stack)
	top := p.stack[n-1]
	text := top.text.String()

	for _, f := range Fields {
		prop := properties[f]
		if prop.Container == leaf {
			if p.at(0, prop.Space, prop.Local) && top.children == 0 {
				p.collect(f, text)
			}
			continue
		}
		if !p.at(0, NsRDF, "li") || !p.at(2, prop.Space, prop.Local) {
			continue
		}
		if p.at(1, NsRDF, string(prop.Container)) ||
			(f == FieldSubject && p.at(1, NsRDF, string(seq))) {
			p.collect(f, text)
		}
	}

	p.stack = p.stack[:n-1]
}

// at reports whether the element depth levels above the innermost open one
// has the given name.
func (p *parser) at(depth int, space, local string) bool {
	i := len(p.stack) - 1 - depth
	if i < 0 {
		return false
	}
	return p.stack[i].name.Space == space && p.stack[i].name.Local == local
}

func (p *parser) collect(f Field, value string) {
	if f.MultiValued() {
		p.found[f] = true
		p.items[f] = append(p.items[f], value)
		return
	}
	// Only the first occurrence counts for single valued fields.
	if p.found[f] {
		return
	}
	p.found[f] = true
	p.items[f] = []string{value}
}
