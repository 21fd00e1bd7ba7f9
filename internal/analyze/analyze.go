// Package analyze extracts the declared props of a component.
//
// The analysis is best effort. Script blocks are parsed with the
// tree-sitter TypeScript grammar, which also accepts plain JavaScript. It
// understands defineProps with a type literal or a runtime declaration in
// <script setup>, and the props option of an options-API component.
// Anything it cannot read is reported as an error that callers discard.
package analyze

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/conneroisu/sfcpreview/internal/sfc"
)

// Prop types.
const (
	TypeString   = "string"
	TypeNumber   = "number"
	TypeBoolean  = "boolean"
	TypeArray    = "array"
	TypeObject   = "object"
	TypeFunction = "function"
	TypeEnum     = "enum"
	TypeAny      = "any"
)

// Prop describes one declared prop.
type Prop struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Required bool     `json:"required"`
	Values   []string `json:"values,omitempty"`
	// Default is the source text of the default value, if declared.
	Default string `json:"default,omitempty"`
}

// Info is what the analyzer knows about a component.
type Info struct {
	Props   []Prop `json:"props"`
	HasSlot bool   `json:"hasSlot"`
}

// Analyzer inspects a parsed component.
type Analyzer interface {
	Analyze(ctx context.Context, desc *sfc.Descriptor) (*Info, error)
}

// ScriptAnalyzer reads prop declarations from script blocks.
type ScriptAnalyzer struct{}

// NewScriptAnalyzer creates a script analyzer.
func NewScriptAnalyzer() *ScriptAnalyzer {
	return &ScriptAnalyzer{}
}

var slotPattern = regexp.MustCompile(`<slot[\s/>]`)

// Analyze implements Analyzer.
func (a *ScriptAnalyzer) Analyze(ctx context.Context, desc *sfc.Descriptor) (*Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info := &Info{Props: []Prop{}}
	if desc.Template != nil {
		info.HasSlot = slotPattern.MatchString(desc.Template.Content)
	}

	if desc.ScriptSetup != nil {
		script, err := parseScript(ctx, desc.ScriptSetup.Content)
		if err != nil {
			return nil, err
		}
		props, err := script.definedProps()
		if err != nil {
			return nil, err
		}
		if props != nil {
			info.Props = props
			return info, nil
		}
	}

	if desc.Script != nil {
		script, err := parseScript(ctx, desc.Script.Content)
		if err != nil {
			return nil, err
		}
		props, err := script.optionProps()
		if err != nil {
			return nil, err
		}
		if props != nil {
			info.Props = props
		}
	}

	return info, nil
}

// script is a parsed script block.
type script struct {
	source []byte
	root   *sitter.Node
}

func parseScript(ctx context.Context, content string) (*script, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(typescript.GetLanguage())

	source := []byte(content)
	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("parse script: %w", err)
	}

	return &script{source: source, root: tree.RootNode()}, nil
}

func (s *script) text(n *sitter.Node) string {
	return n.Content(s.source)
}

// definedProps reads the first defineProps call. It returns nil when the
// script has none.
func (s *script) definedProps() ([]Prop, error) {
	call := find(s.root, func(n *sitter.Node) bool {
		if n.Type() != "call_expression" {
			return false
		}
		fn := n.ChildByFieldName("function")
		return fn != nil && s.text(fn) == "defineProps"
	})
	if call == nil {
		return nil, nil
	}

	if typeArgs := call.ChildByFieldName("type_arguments"); typeArgs != nil {
		literal := firstNamed(typeArgs)
		if literal == nil || literal.Type() != "object_type" {
			return nil, fmt.Errorf("defineProps: expected type literal")
		}
		return s.typeLiteralProps(literal), nil
	}

	args := call.ChildByFieldName("arguments")
	if args == nil {
		return []Prop{}, nil
	}
	decl := firstNamed(args)
	if decl == nil {
		return []Prop{}, nil
	}
	return s.runtimeProps(decl)
}

// optionProps reads the props option of the default export. It returns nil
// when there is none.
func (s *script) optionProps() ([]Prop, error) {
	export := find(s.root, func(n *sitter.Node) bool {
		return n.Type() == "export_statement" && n.ChildByFieldName("value") != nil
	})
	if export == nil {
		return nil, nil
	}

	options := export.ChildByFieldName("value")
	if options.Type() == "call_expression" {
		// export default defineComponent({...})
		args := options.ChildByFieldName("arguments")
		if args == nil {
			return nil, nil
		}
		options = firstNamed(args)
	}
	if options == nil || options.Type() != "object" {
		return nil, nil
	}

	for _, pair := range namedOfType(options, "pair") {
		if s.key(pair) == "props" {
			return s.runtimeProps(pair.ChildByFieldName("value"))
		}
	}
	return nil, nil
}

func (s *script) runtimeProps(decl *sitter.Node) ([]Prop, error) {
	if decl == nil {
		return nil, fmt.Errorf("props: missing declaration")
	}

	switch decl.Type() {
	case "array":
		var props []Prop
		for _, item := range namedOfType(decl, "string") {
			if name := unquote(s.text(item)); name != "" {
				props = append(props, Prop{Name: name, Type: TypeAny})
			}
		}
		return orEmpty(props), nil
	case "object":
		return s.objectProps(decl), nil
	default:
		return nil, fmt.Errorf("props: unsupported declaration %q", firstLine(s.text(decl)))
	}
}

func (s *script) objectProps(decl *sitter.Node) []Prop {
	var props []Prop
	for _, pair := range namedOfType(decl, "pair") {
		prop := Prop{Name: s.key(pair), Type: TypeAny}
		value := pair.ChildByFieldName("value")

		if value != nil && value.Type() == "object" {
			for _, option := range namedOfType(value, "pair") {
				optValue := option.ChildByFieldName("value")
				if optValue == nil {
					continue
				}
				switch s.key(option) {
				case "type":
					prop.Type = s.constructorType(optValue)
				case "required":
					prop.Required = optValue.Type() == "true"
				case "default":
					prop.Default = s.text(optValue)
				}
			}
		} else if value != nil {
			prop.Type = s.constructorType(value)
		}

		props = append(props, prop)
	}
	return orEmpty(props)
}

func (s *script) typeLiteralProps(literal *sitter.Node) []Prop {
	var props []Prop
	for _, member := range namedOfType(literal, "property_signature") {
		name := member.ChildByFieldName("name")
		if name == nil {
			continue
		}

		prop := Prop{Name: unquote(s.text(name)), Required: true, Type: TypeAny}
		for i := 0; i < int(member.ChildCount()); i++ {
			if child := member.Child(i); child != nil && child.Type() == "?" {
				prop.Required = false
			}
		}
		if annotation := member.ChildByFieldName("type"); annotation != nil {
			if typ := firstNamed(annotation); typ != nil {
				prop.Type, prop.Values = s.tsType(typ)
			}
		}

		props = append(props, prop)
	}
	return orEmpty(props)
}

// constructorType maps a runtime type constructor to a prop type.
func (s *script) constructorType(value *sitter.Node) string {
	switch value.Type() {
	case "array":
		items := named(value)
		if len(items) == 1 {
			return s.constructorType(items[0])
		}
		return TypeAny
	case "as_expression":
		// Array as PropType<string[]>
		if inner := firstNamed(value); inner != nil {
			return s.constructorType(inner)
		}
		return TypeAny
	case "identifier":
	default:
		return TypeAny
	}

	switch s.text(value) {
	case "String":
		return TypeString
	case "Number":
		return TypeNumber
	case "Boolean":
		return TypeBoolean
	case "Array":
		return TypeArray
	case "Object":
		return TypeObject
	case "Function":
		return TypeFunction
	}
	return TypeAny
}

func (s *script) tsType(typ *sitter.Node) (string, []string) {
	switch typ.Type() {
	case "predefined_type":
		switch s.text(typ) {
		case "string":
			return TypeString, nil
		case "number":
			return TypeNumber, nil
		case "boolean":
			return TypeBoolean, nil
		}
		return TypeAny, nil
	case "array_type":
		return TypeArray, nil
	case "function_type":
		return TypeFunction, nil
	case "object_type":
		return TypeObject, nil
	case "generic_type":
		switch name := typ.ChildByFieldName("name"); {
		case name == nil:
		case s.text(name) == "Array":
			return TypeArray, nil
		case s.text(name) == "Record":
			return TypeObject, nil
		}
		return TypeAny, nil
	case "literal_type", "union_type":
		var values []string
		if !s.stringLiterals(typ, &values) {
			return TypeAny, nil
		}
		return TypeEnum, values
	}
	return TypeAny, nil
}

// stringLiterals collects the members of a union of string literal types
// in source order. It reports false when a member is anything else.
func (s *script) stringLiterals(typ *sitter.Node, values *[]string) bool {
	switch typ.Type() {
	case "union_type":
		for _, member := range named(typ) {
			if !s.stringLiterals(member, values) {
				return false
			}
		}
		return true
	case "literal_type":
		literal := firstNamed(typ)
		if literal == nil || literal.Type() != "string" {
			return false
		}
		*values = append(*values, unquote(s.text(literal)))
		return true
	}
	return false
}

func (s *script) key(pair *sitter.Node) string {
	key := pair.ChildByFieldName("key")
	if key == nil {
		return ""
	}
	return unquote(s.text(key))
}

// find returns the first node in pre-order that satisfies match.
func find(n *sitter.Node, match func(*sitter.Node) bool) *sitter.Node {
	if n == nil {
		return nil
	}
	if match(n) {
		return n
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if found := find(n.NamedChild(i), match); found != nil {
			return found
		}
	}
	return nil
}

// named returns the named children of n, without comments.
func named(n *sitter.Node) []*sitter.Node {
	children := make([]*sitter.Node, 0, n.NamedChildCount())
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child == nil || child.Type() == "comment" {
			continue
		}
		children = append(children, child)
	}
	return children
}

func namedOfType(n *sitter.Node, typ string) []*sitter.Node {
	var matches []*sitter.Node
	for _, child := range named(n) {
		if child.Type() == typ {
			matches = append(matches, child)
		}
	}
	return matches
}

func firstNamed(n *sitter.Node) *sitter.Node {
	if children := named(n); len(children) > 0 {
		return children[0]
	}
	return nil
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && isQuote(s[0]) && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

func isQuote(c byte) bool {
	return c == '"' || c == '\'' || c == '`'
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func orEmpty(props []Prop) []Prop {
	if props == nil {
		return []Prop{}
	}
	return props
}
