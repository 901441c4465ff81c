package xmp

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
)

type container string

const (
	leaf container = ""
	alt  container = "Alt"
	seq  container = "Seq"
	bag  container = "Bag"
)

// property describes where a field lives in the RDF tree.
type property struct {
	Space     string
	Local     string
	Container container
}

var properties = [fieldCount]property{
	FieldCreator:        {NsDC, "creator", seq},
	FieldRights:         {NsDC, "rights", alt},
	FieldTitle:          {NsDC, "title", alt},
	FieldDescription:    {NsDC, "description", alt},
	FieldSubject:        {NsDC, "subject", bag},
	FieldInstructions:   {NsPhotoshop, "Instructions", leaf},
	FieldComment:        {NsExif, "UserComment", alt},
	FieldAltText:        {NsIptc4xmpCore, "AltTextAccessibility", leaf},
	FieldExtDescription: {NsIptc4xmpCore, "ExtDescrAccessibility", leaf},
}

// node is a minimal element tree. Names carry their prefix in Local so the
// encoder writes them verbatim; namespaces are declared on the root.
type node struct {
	Name     string
	Attr     []xml.Attr
	Text     string
	Children []*node
}

func qname(space, local string) string {
	return prefixFor(space) + ":" + local
}

func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

// tree builds the document for the current field values. The xmpmeta,
// rdf:RDF and rdf:Description nodes are always present.
func (m *Metadata) tree() *node {
	attrs := make([]xml.Attr, 0, len(Namespaces)+1)
	for _, ns := range Namespaces {
		attrs = append(attrs, attr("xmlns:"+ns.Prefix, ns.URI))
	}
	attrs = append(attrs, attr(qname(NsX, "xmptk"), XmpToolkit))

	desc := &node{
		Name: qname(NsRDF, "Description"),
		Attr: []xml.Attr{attr(qname(NsRDF, "about"), "")},
	}
	for _, f := range Fields {
		if len(m.values[f]) == 0 {
			continue
		}
		desc.Children = append(desc.Children, propertyNode(properties[f], m.values[f]))
	}

	return &node{
		Name: qname(NsX, "xmpmeta"),
		Attr: attrs,
		Children: []*node{{
			Name:     qname(NsRDF, "RDF"),
			Children: []*node{desc},
		}},
	}
}

func propertyNode(p property, items []string) *node {
	n := &node{Name: qname(p.Space, p.Local)}
	if p.Container == leaf {
		n.Text = items[0]
		return n
	}

	c := &node{Name: qname(NsRDF, string(p.Container))}
	for _, item := range items {
		li := &node{Name: qname(NsRDF, "li"), Text: item}
		if p.Container == alt {
			li.Attr = []xml.Attr{attr(qname(NsXML, "lang"), "x-default")}
		}
		c.Children = append(c.Children, li)
	}
	n.Children = []*node{c}
	return n
}

func (n *node) encode(enc *xml.Encoder) error {
	start := xml.StartElement{Name: xml.Name{Local: n.Name}, Attr: n.Attr}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if n.Text != "" {
		if err := enc.EncodeToken(xml.CharData(n.Text)); err != nil {
			return err
		}
	}
	for _, c := range n.Children {
		if err := c.encode(enc); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

func (m *Metadata) writeTo(w io.Writer, pretty bool) error {
	enc := xml.NewEncoder(w)
	if pretty {
		enc.Indent("", "  ")
	}
	if err := m.tree().encode(enc); err != nil {
		return fmt.Errorf("error encoding XMP: %w", err)
	}
	return enc.Flush()
}

// ToXML renders the record as a UTF-8 XML document with declaration. Pretty
// printing only adds indentation between elements.
func (m *Metadata) ToXML(pretty bool) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	if err := m.writeTo(&buf, pretty); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ToPacket renders the record wrapped in the xpacket header and trailer, the
// form embedded into image files. The XML declaration is left out because it
// may only appear at the very start of a document.
func (m *Metadata) ToPacket() (string, error) {
	var buf bytes.Buffer
	buf.WriteString(PacketHeader)
	if err := m.writeTo(&buf, false); err != nil {
		return "", err
	}
	buf.WriteString(PacketTrailer)
	return buf.String(), nil
}

// String returns the compact XML document, or "" if encoding fails.
func (m *Metadata) String() string {
	s, err := m.ToXML(false)
	if err != nil {
		return ""
	}
	return s
}
