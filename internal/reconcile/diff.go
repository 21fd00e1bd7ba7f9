package reconcile

import (
	"reflect"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/conneroisu/sfcpreview/internal/sfc"
)

// Change classifies one preview position.
type Change int

const (
	Unchanged Change = iota
	Updated
	Added
	Removed
)

// String returns the change name.
func (c Change) String() string {
	switch c {
	case Unchanged:
		return "unchanged"
	case Updated:
		return "updated"
	case Added:
		return "added"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Diff classifies every position of prev and next. Previews are matched by
// position, so removing the first of two previews reports position 0 as
// updated and position 1 as removed.
func Diff(prev, next []*sfc.Block) []Change {
	n := max(len(prev), len(next))
	changes := make([]Change, n)

	for i := 0; i < n; i++ {
		switch {
		case i >= len(prev):
			changes[i] = Added
		case i >= len(next):
			changes[i] = Removed
		case BlocksEqual(prev[i], next[i]):
			changes[i] = Unchanged
		default:
			changes[i] = Updated
		}
	}

	return changes
}

// BlocksEqual reports whether two preview blocks render the same. Blocks
// referencing the same external src skip the content comparison since the
// referenced file reports its own changes. Attributes are always compared.
func BlocksEqual(a, b *sfc.Block) bool {
	contentEqual := (a.Src != "" && a.Src == b.Src) || a.Content == b.Content
	return contentEqual && AttrsEqual(a.Attrs, b.Attrs)
}

// AttrsEqual compares attribute sets by key and value. Values that are not
// comparable are equal only when they are the same reference.
func AttrsEqual(a, b sfc.Attrs) bool {
	if len(a) != len(b) {
		return false
	}
	for key, va := range a {
		vb, ok := b[key]
		if !ok || !valueEqual(va, vb) {
			return false
		}
	}
	return true
}

func valueEqual(a, b any) bool {
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case nil:
		return b == nil
	}
	if b == nil {
		return false
	}

	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}

	switch va.Kind() {
	case reflect.Map, reflect.Slice, reflect.Pointer, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	}
	if va.Comparable() && vb.Comparable() {
		return va.Equal(vb)
	}
	return false
}

// unifiedDiff renders the change of the index text.
func unifiedDiff(before, after string) string {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: "components.js (before)",
		ToFile:   "components.js (after)",
		Context:  2,
	})
	if err != nil {
		return ""
	}
	return diff
}
