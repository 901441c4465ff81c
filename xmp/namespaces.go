package xmp

const (
	NsX            = "adobe:ns:meta/"
	NsRDF          = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	NsDC           = "http://purl.org/dc/elements/1.1/"
	NsXML          = "http://www.w3.org/XML/1998/namespace"
	NsXMP          = "http://ns.adobe.com/xap/1.0/"
	NsPhotoshop    = "http://ns.adobe.com/photoshop/1.0/"
	NsExif         = "http://ns.adobe.com/exif/1.0/"
	NsIptc4xmpCore = "http://iptc.org/std/Iptc4xmpCore/1.0/xmlns/"
)

// XmpToolkit is written to the x:xmptk attribute of every document.
const XmpToolkit = "Adobe XMP Core 6.0-c002 79.164861, 2016/09/14-01:09:01"

// Packet framing as required by the XMP specification, part 3. The begin
// attribute holds the U+FEFF code point.
const (
	PacketID      = "W5M0MpCehiHzreSzNTczkc9d"
	PacketHeader  = "<?xpacket begin=\"\ufeff\" id=\"" + PacketID + "\"?>"
	PacketTrailer = "<?xpacket end=\"w\"?>"
)

// Namespace binds a prefix to a namespace URI.
type Namespace struct {
	Prefix string
	URI    string
}

// Namespaces are bound on the root element in this order.
var Namespaces = []Namespace{
	{"x", NsX},
	{"rdf", NsRDF},
	{"dc", NsDC},
	{"xml", NsXML},
	{"xmp", NsXMP},
	{"photoshop", NsPhotoshop},
	{"exif", NsExif},
	{"Iptc4xmpCore", NsIptc4xmpCore},
}

// prefixFor returns the prefix bound to uri in the written documents.
func prefixFor(uri string) string {
	for _, ns := range Namespaces {
		if ns.URI == uri {
			return ns.Prefix
		}
	}
	return ""
}
