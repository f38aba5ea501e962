package htmlutil

import (
	"bytes"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// GetText concatenates every text node under `node`, script and style contents included.
func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer, false)
	return buffer.String()
}

// GetBlockText is the visible text of `node`. A newline is written at the boundaries of block
// level elements (and <br>) so that visually separate pieces of text do not run into each other,
// script and style contents are left out.
func GetBlockText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer, true)
	return buffer.String()
}

var blockElements = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Aside: true, atom.Blockquote: true,
	atom.Br: true, atom.Dd: true, atom.Div: true, atom.Dl: true, atom.Dt: true,
	atom.Fieldset: true, atom.Footer: true, atom.Form: true, atom.H1: true, atom.H2: true,
	atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true, atom.Header: true,
	atom.Hr: true, atom.Li: true, atom.Main: true, atom.Nav: true, atom.Ol: true,
	atom.P: true, atom.Pre: true, atom.Section: true, atom.Table: true, atom.Td: true,
	atom.Th: true, atom.Tr: true, atom.Ul: true,
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer, blocks bool) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	if blocks && node.Type == html.ElementNode && (node.DataAtom == atom.Script || node.DataAtom == atom.Style) {
		return
	}
	isBlock := blocks && node.Type == html.ElementNode && blockElements[node.DataAtom]
	if isBlock {
		buffer.WriteByte('\n')
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer, blocks)
		child = child.NextSibling
	}
	if isBlock {
		buffer.WriteByte('\n')
	}
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// CleanText removes non-printable characters, trims the string and collapses inner whitespace.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = removeNonPrintable(s)
	s = strings.Trim(s, " \t\n")
	s = innerWhitespace.ReplaceAllString(s, " ")
	return s
}

// HasClassLike reports whether any of the node's classes contains `substr`, ignoring case.
func HasClassLike(node *html.Node, substr string) bool {
	substr = strings.ToLower(substr)
	for _, a := range node.Attr {
		if a.Key != "class" {
			continue
		}
		for _, class := range strings.Fields(a.Val) {
			if strings.Contains(strings.ToLower(class), substr) {
				return true
			}
		}
	}
	return false
}
