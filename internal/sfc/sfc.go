// Package sfc splits single-file component sources into their top-level
// blocks.
//
// A source file is a sequence of top-level elements: at most one
// <template>, at most one <script> and one <script setup>, any number of
// <style> blocks, and any number of custom blocks such as <preview>. The
// content of every block is kept verbatim; only the element boundaries and
// the attributes of the opening tag are interpreted. Tokenization is done
// with golang.org/x/net/html so that raw-text elements (script, style) are
// handled the same way a browser would.
package sfc

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"

	previewerrors "github.com/conneroisu/sfcpreview/internal/errors"
)

// Block types with a fixed meaning.
const (
	TypeTemplate = "template"
	TypeScript   = "script"
	TypeStyle    = "style"
	TypePreview  = "preview"
)

// Attrs maps attribute names to values. A valued attribute maps to its
// string value, a bare attribute maps to true.
type Attrs map[string]any

// String returns the attribute as a string when it has a string value.
func (a Attrs) String(key string) (string, bool) {
	s, ok := a[key].(string)
	return s, ok
}

// Location is the position of a block in its source file.
type Location struct {
	// Start and End are byte offsets of the block's content.
	Start int
	End   int
	// Line is the 1-based line of the opening tag.
	Line int
}

// Block is one top-level element of a source file. Blocks are never
// mutated after Parse returns them.
type Block struct {
	Type    string
	Content string
	Attrs   Attrs
	Src     string
	Loc     Location
}

// Descriptor is the parsed structure of one source file.
type Descriptor struct {
	FileName     string
	Template     *Block
	Script       *Block
	ScriptSetup  *Block
	Styles       []*Block
	CustomBlocks []*Block
}

// Blocks returns the custom blocks of the given type in source order.
func (d *Descriptor) Blocks(typ string) []*Block {
	var blocks []*Block
	for _, block := range d.CustomBlocks {
		if block.Type == typ {
			blocks = append(blocks, block)
		}
	}
	return blocks
}

// Parse splits source into top-level blocks. An empty source yields an
// empty descriptor. An unterminated block, a stray closing tag or a
// duplicated template/script block is a parse error.
func Parse(fileName, source string) (*Descriptor, error) {
	p := &parser{
		fileName: fileName,
		source:   source,
		desc:     &Descriptor{FileName: fileName},
	}
	if err := p.run(); err != nil {
		return nil, err
	}
	return p.desc, nil
}

type openBlock struct {
	name         string
	attrs        Attrs
	tagStart     int
	contentStart int
	depth        int
}

type parser struct {
	fileName string
	source   string
	desc     *Descriptor
}

func (p *parser) run() error {
	z := html.NewTokenizer(strings.NewReader(p.source))
	offset := 0
	var current *openBlock

	for {
		tt := z.Next()
		raw := len(z.Raw())
		start := offset
		offset += raw

		switch tt {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return p.errorAt(start, "tokenize source", err)
			}
			if current != nil {
				return p.errorAt(current.tagStart, fmt.Sprintf("element <%s> is missing end tag", current.name), nil)
			}
			return nil

		case html.StartTagToken:
			name, _ := z.TagName()
			if current == nil {
				current = &openBlock{
					name:         string(name),
					attrs:        parseAttrs(p.source[start:offset]),
					tagStart:     start,
					contentStart: offset,
					depth:        1,
				}
			} else if string(name) == current.name {
				current.depth++
			}

		case html.SelfClosingTagToken:
			if current == nil {
				name, _ := z.TagName()
				if err := p.add(string(name), parseAttrs(p.source[start:offset]), start, offset, offset); err != nil {
					return err
				}
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			if current == nil {
				return p.errorAt(start, fmt.Sprintf("invalid end tag </%s>", name), nil)
			}
			if string(name) != current.name {
				continue
			}
			current.depth--
			if current.depth == 0 {
				if err := p.add(current.name, current.attrs, current.tagStart, current.contentStart, start); err != nil {
					return err
				}
				current = nil
			}
		}
	}
}

func (p *parser) add(name string, attrs Attrs, tagStart, contentStart, contentEnd int) error {
	block := &Block{
		Type:    name,
		Content: p.source[contentStart:contentEnd],
		Attrs:   attrs,
		Loc: Location{
			Start: contentStart,
			End:   contentEnd,
			Line:  p.lineOf(tagStart),
		},
	}
	if src, ok := attrs.String("src"); ok {
		block.Src = src
	}

	switch name {
	case TypeTemplate:
		if p.desc.Template != nil {
			return p.errorAt(tagStart, "single file component can contain only one <template> element", nil)
		}
		p.desc.Template = block
	case TypeScript:
		if _, setup := attrs["setup"]; setup {
			if p.desc.ScriptSetup != nil {
				return p.errorAt(tagStart, "single file component can contain only one <script setup> element", nil)
			}
			p.desc.ScriptSetup = block
		} else {
			if p.desc.Script != nil {
				return p.errorAt(tagStart, "single file component can contain only one <script> element", nil)
			}
			p.desc.Script = block
		}
	case TypeStyle:
		p.desc.Styles = append(p.desc.Styles, block)
	default:
		p.desc.CustomBlocks = append(p.desc.CustomBlocks, block)
	}

	return nil
}

func (p *parser) lineOf(offset int) int {
	return strings.Count(p.source[:offset], "\n") + 1
}

func (p *parser) errorAt(offset int, message string, cause error) error {
	line := p.lineOf(offset)
	col := offset - strings.LastIndex(p.source[:offset], "\n")
	return previewerrors.NewParseError(p.fileName, message, cause).WithLocation(p.fileName, line, col)
}
