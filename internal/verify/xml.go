package verify

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/ianaindex"
)

// XML documents may be semantically identical even when their
// serializations differ, so both expected and current output are
// re-serialized to a canonical form before comparison: consistent
// indentation, UTF-8 output, and the declaration/standalone settings
// detected from the original bytes.
//
// Canonicalization is idempotent: feeding its own output back in
// produces identical bytes, which matters because update-mode writes
// canonical XML to the baseline and verify canonicalizes it again.
//
// Comments are preserved, so documents differing only in comments do
// not canonicalize equal. Processing instructions other than the XML
// declaration are not preserved.

// xmlHeaderSettings inspects the raw declaration segment for an XML
// declaration and its standalone attribute. This has to happen before
// parsing: the parser normalizes the declaration away.
func xmlHeaderSettings(data []byte) (hasDecl bool, standalone string) {
	if !bytes.HasPrefix(data, []byte("<?xml ")) {
		return false, ""
	}
	end := bytes.Index(data, []byte("?>"))
	if end < 0 {
		return true, ""
	}
	decl := data[:end]
	parts := bytes.SplitN(decl, []byte("standalone="), 2)
	if len(parts) < 2 {
		return true, ""
	}
	arg := parts[1]
	if len(arg) < 2 || (arg[0] != '"' && arg[0] != '\'') {
		return true, ""
	}
	if i := bytes.IndexByte(arg[1:], arg[0]); i > -1 {
		return true, string(arg[1 : 1+i])
	}
	return true, ""
}

type xmlElem struct {
	name     xml.Name
	attrs    []xml.Attr
	children []any // *xmlElem, xmlComment or string
}

// xmlComment is a comment node's text, without the <!-- --> delimiters.
type xmlComment string

// canonicalXML parses the document and re-serializes it with two-space
// indentation and a normalized declaration.
func canonicalXML(data []byte) (string, error) {
	hasDecl, standalone := xmlHeaderSettings(data)

	root, preamble, prefixes, err := parseXMLTree(data)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	if hasDecl {
		b.WriteString(`<?xml version="1.0" encoding="utf-8"`)
		if standalone != "" {
			fmt.Fprintf(&b, " standalone=%q", standalone)
		}
		b.WriteString("?>\n")
	}
	for _, c := range preamble {
		b.WriteString("<!--")
		b.WriteString(string(c))
		b.WriteString("-->\n")
	}
	renderElem(&b, root, prefixes, "")
	b.WriteString("\n")
	return b.String(), nil
}

// parseXMLTree builds an element tree, the comments preceding the root
// element, and a namespace-URL-to-prefix map collected from xmlns
// attributes, so prefixed names survive the round trip.
func parseXMLTree(data []byte) (*xmlElem, []xmlComment, map[string]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = func(charset string, r io.Reader) (io.Reader, error) {
		enc, err := ianaindex.IANA.Encoding(charset)
		if err != nil || enc == nil {
			return nil, fmt.Errorf("unsupported charset %q", charset)
		}
		return enc.NewDecoder().Reader(r), nil
	}

	prefixes := map[string]string{}
	var root *xmlElem
	var preamble []xmlComment
	var stack []*xmlElem

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			elem := &xmlElem{name: t.Name}
			for _, attr := range t.Attr {
				if attr.Name.Space == "xmlns" {
					prefixes[attr.Value] = attr.Name.Local
				}
				elem.attrs = append(elem.attrs, attr)
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, nil, nil, fmt.Errorf("multiple root elements")
				}
				root = elem
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, elem)
			}
			stack = append(stack, elem)
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, nil, nil, fmt.Errorf("unbalanced end element %s", t.Name.Local)
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, string(t))
			}
		case xml.Comment:
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, xmlComment(t))
			} else if root == nil {
				preamble = append(preamble, xmlComment(t))
			}
		}
	}
	if root == nil {
		return nil, nil, nil, fmt.Errorf("no root element")
	}
	if len(stack) != 0 {
		return nil, nil, nil, fmt.Errorf("unclosed elements")
	}
	return root, preamble, prefixes, nil
}

func renderElem(b *strings.Builder, e *xmlElem, prefixes map[string]string, indent string) {
	name := qualifiedName(e.name, prefixes)
	b.WriteString(indent)
	b.WriteByte('<')
	b.WriteString(name)
	for _, attr := range e.attrs {
		b.WriteByte(' ')
		b.WriteString(attrName(attr.Name, prefixes))
		b.WriteString(`="`)
		b.WriteString(escapeAttr(attr.Value))
		b.WriteByte('"')
	}

	nodes, text, mixed := splitChildren(e.children)
	switch {
	case len(nodes) == 0 && text == "":
		b.WriteString("/>")
	case len(nodes) == 0:
		b.WriteByte('>')
		b.WriteString(escapeText(text))
		b.WriteString("</")
		b.WriteString(name)
		b.WriteByte('>')
	case !mixed:
		b.WriteString(">\n")
		for _, child := range nodes {
			switch c := child.(type) {
			case *xmlElem:
				renderElem(b, c, prefixes, indent+"  ")
			case xmlComment:
				b.WriteString(indent + "  <!--")
				b.WriteString(string(c))
				b.WriteString("-->")
			}
			b.WriteByte('\n')
		}
		b.WriteString(indent)
		b.WriteString("</")
		b.WriteString(name)
		b.WriteByte('>')
	default:
		// Mixed content: preserve the original interleaving inline.
		b.WriteByte('>')
		for _, child := range e.children {
			switch c := child.(type) {
			case string:
				b.WriteString(escapeText(c))
			case xmlComment:
				b.WriteString("<!--")
				b.WriteString(string(c))
				b.WriteString("-->")
			case *xmlElem:
				var inner strings.Builder
				renderElem(&inner, c, prefixes, "")
				b.WriteString(inner.String())
			}
		}
		b.WriteString("</")
		b.WriteString(name)
		b.WriteByte('>')
	}
}

// splitChildren separates node children (elements and comments) from
// text. Whitespace-only text between nodes is incidental formatting
// and is dropped; any non-whitespace text alongside nodes means mixed
// content.
func splitChildren(children []any) (nodes []any, text string, mixed bool) {
	var sb strings.Builder
	for _, child := range children {
		switch c := child.(type) {
		case *xmlElem, xmlComment:
			nodes = append(nodes, c)
		case string:
			sb.WriteString(c)
		}
	}
	text = sb.String()
	if len(nodes) > 0 {
		if strings.TrimSpace(text) == "" {
			return nodes, "", false
		}
		return nodes, text, true
	}
	return nil, text, false
}

func qualifiedName(name xml.Name, prefixes map[string]string) string {
	if name.Space == "" {
		return name.Local
	}
	if prefix, ok := prefixes[name.Space]; ok && prefix != "" {
		return prefix + ":" + name.Local
	}
	// Default namespace: the xmlns attribute carries it.
	return name.Local
}

func attrName(name xml.Name, prefixes map[string]string) string {
	switch {
	case name.Space == "xmlns":
		return "xmlns:" + name.Local
	case name.Space == "":
		return name.Local
	default:
		if prefix, ok := prefixes[name.Space]; ok && prefix != "" {
			return prefix + ":" + name.Local
		}
		return name.Space + ":" + name.Local
	}
}

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
)

func escapeText(s string) string {
	return textEscaper.Replace(s)
}

func escapeAttr(s string) string {
	return attrEscaper.Replace(s)
}
