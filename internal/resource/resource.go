// Package resource defines the synthetic module addresses served by the
// preview server.
//
// Every derived artifact (the entry script of a preview, the compiled
// preview component, a file's metadata module, the component index) is a
// Resource value. Encode turns a value into its single-line address and
// Decode parses an address back; the two are inverses for every value
// Encode accepts.
//
//	@preview/entry.js?fileName=src%2FButton.vue&index=1
//	@preview/component.js?fileName=src%2FButton.vue&index=
//	@preview/meta.js?fileName=src%2FButton.vue
//	@preview/shell?fileName=assets%2Fapp.css
//	@preview/components.js
//	@preview/user/setup.js
package resource

import (
	"net/url"
	"strconv"
	"strings"
)

// Marker starts every virtual address. It may be preceded by a slash.
const Marker = "@preview/"

// Kind names a resource variant in an address.
type Kind string

const (
	KindEntry    Kind = "entry.js"
	KindInstance Kind = "component.js"
	KindMeta     Kind = "meta.js"
	KindShell    Kind = "shell"
	KindList     Kind = "components.js"
	KindSetup    Kind = "user/setup.js"
)

// Index selects a preview block in a file. The zero value selects the
// file's default instance, which is distinct from preview 0.
type Index struct {
	Value int
	Set   bool
}

// Default is the index of a file's default instance.
var Default = Index{}

// At returns the index of preview i.
func At(i int) Index {
	return Index{Value: i, Set: true}
}

// String returns the index as it appears in an address.
func (i Index) String() string {
	if !i.Set {
		return ""
	}
	return strconv.Itoa(i.Value)
}

// Resource is one of EntryScript, ComponentInstance, ComponentMeta,
// ShellAsset, ListComponents or UserSetup.
type Resource interface {
	Kind() Kind
	resource()
}

// EntryScript boots a single preview inside the iframe.
type EntryScript struct {
	FileName string
	Index    Index
}

// ComponentInstance is the compiled component of one preview block, or
// the generated default instance when Index is Default.
type ComponentInstance struct {
	FileName string
	Index    Index
}

// ComponentMeta exposes a file's component record without compiling it.
type ComponentMeta struct {
	FileName string
}

// ShellAsset is a file served verbatim from the shell directory.
type ShellAsset struct {
	FileName string
}

// ListComponents is the aggregate component index.
type ListComponents struct{}

// UserSetup re-exports the project's optional setup module.
type UserSetup struct{}

func (EntryScript) Kind() Kind       { return KindEntry }
func (ComponentInstance) Kind() Kind { return KindInstance }
func (ComponentMeta) Kind() Kind     { return KindMeta }
func (ShellAsset) Kind() Kind        { return KindShell }
func (ListComponents) Kind() Kind    { return KindList }
func (UserSetup) Kind() Kind         { return KindSetup }

func (EntryScript) resource()       {}
func (ComponentInstance) resource() {}
func (ComponentMeta) resource()     {}
func (ShellAsset) resource()        {}
func (ListComponents) resource()    {}
func (UserSetup) resource()         {}

// Encode returns the canonical address of r.
func Encode(r Resource) string {
	switch r := r.(type) {
	case EntryScript:
		return indexed(KindEntry, r.FileName, r.Index)
	case ComponentInstance:
		return indexed(KindInstance, r.FileName, r.Index)
	case ComponentMeta:
		return Marker + string(KindMeta) + "?fileName=" + url.QueryEscape(r.FileName)
	case ShellAsset:
		return Marker + string(KindShell) + "?fileName=" + url.QueryEscape(r.FileName)
	case ListComponents:
		return Marker + string(KindList)
	case UserSetup:
		return Marker + string(KindSetup)
	default:
		panic("resource: unknown resource type")
	}
}

// URL returns the address of r as an absolute request path.
func URL(r Resource) string {
	return "/" + Encode(r)
}

func indexed(kind Kind, fileName string, index Index) string {
	return Marker + string(kind) + "?fileName=" + url.QueryEscape(fileName) + "&index=" + index.String()
}

// IsVirtual reports whether address carries the virtual marker.
func IsVirtual(address string) bool {
	return strings.HasPrefix(strings.TrimPrefix(address, "/"), Marker)
}

// Decode parses an address. It reports false for strings that are not
// virtual addresses and for malformed ones: an unknown kind, a missing
// fileName, or an index that is not a non-negative integer.
func Decode(address string) (Resource, bool) {
	rest, ok := strings.CutPrefix(strings.TrimPrefix(address, "/"), Marker)
	if !ok {
		return nil, false
	}

	kind, rawQuery, _ := strings.Cut(rest, "?")
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return nil, false
	}

	switch Kind(kind) {
	case KindList:
		return ListComponents{}, true
	case KindSetup:
		return UserSetup{}, true
	}

	fileName := query.Get("fileName")
	if fileName == "" {
		return nil, false
	}

	switch Kind(kind) {
	case KindMeta:
		return ComponentMeta{FileName: fileName}, true
	case KindShell:
		return ShellAsset{FileName: fileName}, true
	case KindEntry, KindInstance:
		index, ok := parseIndex(query.Get("index"))
		if !ok {
			return nil, false
		}
		if Kind(kind) == KindEntry {
			return EntryScript{FileName: fileName, Index: index}, true
		}
		return ComponentInstance{FileName: fileName, Index: index}, true
	}

	return nil, false
}

func parseIndex(s string) (Index, bool) {
	if s == "" {
		return Default, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return Index{}, false
	}
	return At(n), true
}

// Canonical decodes address and encodes it again, dropping unknown query
// parameters such as cache busters.
func Canonical(address string) (string, bool) {
	r, ok := Decode(address)
	if !ok {
		return "", false
	}
	return Encode(r), true
}

// FileName returns the file a resource belongs to, or "" for ListComponents
// and UserSetup.
func FileName(r Resource) string {
	switch r := r.(type) {
	case EntryScript:
		return r.FileName
	case ComponentInstance:
		return r.FileName
	case ComponentMeta:
		return r.FileName
	case ShellAsset:
		return r.FileName
	}
	return ""
}
