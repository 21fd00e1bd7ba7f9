package registry

import (
	"bytes"
	"encoding/json"
	"sort"
)

// indexEntry is a record as it appears in the index text.
type indexEntry struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	Previews []Preview `json:"previews"`
}

const indexBootstrap = `

function setComponents(components) {
  window.components = components
  window.dispatchEvent(new CustomEvent('preview:components', { detail: components }))
}

setComponents(components)

if (import.meta.hot) {
  import.meta.hot.accept(({ components }) => {
    setComponents(components)
  })
}
`

// Text returns the component index module. The text is cached until the
// next change to any record, so two calls without an intervening change
// return identical strings.
func (s *Store) Text() string {
	s.mutex.RLock()
	text := s.text
	s.mutex.RUnlock()
	if text != "" {
		return text
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.text == "" {
		s.text = renderIndex(s.sorted())
	}
	return s.text
}

// RecordText returns the serialization of one record as used by the
// metadata module, or "" for an unknown file.
func (s *Store) RecordText(fileName string) string {
	abs := s.AbsPath(fileName)

	s.mutex.RLock()
	component, exists := s.components[abs]
	s.mutex.RUnlock()

	if !exists {
		return ""
	}
	return MarshalRecord(*component)
}

// MarshalRecord returns the indented JSON of a record.
func MarshalRecord(component Component) string {
	return marshalIndent(component)
}

// sorted returns the records ordered by name, then path. Callers hold
// s.mutex.
func (s *Store) sorted() []Component {
	components := make([]Component, 0, len(s.components))
	for _, component := range s.components {
		components = append(components, *component)
	}

	sort.Slice(components, func(i, j int) bool {
		if components[i].Name != components[j].Name {
			return components[i].Name < components[j].Name
		}
		return components[i].Path < components[j].Path
	})

	return components
}

func renderIndex(components []Component) string {
	entries := make([]indexEntry, 0, len(components))
	for _, component := range components {
		entries = append(entries, indexEntry{
			ID:       component.ID,
			Name:     component.Name,
			Path:     component.Path,
			Previews: component.Previews,
		})
	}

	return "export const components = " + marshalIndent(entries) + indexBootstrap
}

func marshalIndent(v interface{}) string {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return "null"
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}
