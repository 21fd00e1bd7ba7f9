package renderer

import (
	"fmt"
	"html"
	"path"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/conneroisu/sfcpreview/internal/resource"
)

var titleCase = cases.Title(language.Und, cases.NoLower)

// ComponentName derives the registration name of a component from its file
// name: the base name without extension in PascalCase.
func ComponentName(fileName string) string {
	base := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if i := strings.IndexByte(base, '.'); i > 0 {
		base = base[:i]
	}

	words := strings.FieldsFunc(base, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	})
	if len(words) == 0 {
		return "Component"
	}

	var b strings.Builder
	for _, word := range words {
		b.WriteString(titleCase.String(word))
	}
	return b.String()
}

// IframeHTML returns the page that boots a single preview. fileName is
// root-relative.
func IframeHTML(fileName string, index resource.Index, headScripts ...string) string {
	entry := resource.URL(resource.EntryScript{FileName: fileName, Index: index})

	lines := []string{
		`<!DOCTYPE html>`,
		`<html lang="en">`,
		`<head>`,
		`  <meta charset="UTF-8" />`,
		`  <meta name="viewport" content="width=device-width, initial-scale=1.0" />`,
		fmt.Sprintf(`  <title>Preview of %s</title>`, html.EscapeString(fileName)),
	}
	for _, src := range headScripts {
		lines = append(lines, fmt.Sprintf(`  <script type="module" src="%s"></script>`, html.EscapeString(src)))
	}
	lines = append(lines,
		`</head>`,
		`<body>`,
		`  <div id="app">`,
		`    <div style="position: fixed; top: 0; bottom: 0; left: 0; right: 0; display: grid; place-content: center; background: white">Loading</div>`,
		`  </div>`,
		fmt.Sprintf(`  <script type="module">import %s</script>`, jsString(entry)),
		`</body>`,
		`</html>`,
		``,
	)
	return strings.Join(lines, "\n")
}

// InjectScripts adds module script tags before the closing body tag of a
// shell page, or at the end when it has none.
func InjectScripts(page string, srcs ...string) string {
	var tags strings.Builder
	for _, src := range srcs {
		fmt.Fprintf(&tags, "  <script type=\"module\" src=\"%s\"></script>\n", html.EscapeString(src))
	}

	i := strings.LastIndex(strings.ToLower(page), "</body>")
	if i < 0 {
		return page + "\n" + tags.String()
	}
	return page[:i] + tags.String() + page[i:]
}

// ShellHTML is served when no shell directory is configured. It lists the
// components of the index.
const ShellHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1.0" />
  <title>sfcpreview</title>
  <style>
    body { font-family: system-ui, sans-serif; margin: 0; display: grid; grid-template-columns: 16rem 1fr; height: 100vh; }
    nav { border-right: 1px solid #ddd; overflow: auto; padding: 1rem; }
    nav a { display: block; padding: 0.25rem 0; color: inherit; text-decoration: none; }
    nav a.preview { padding-left: 1rem; color: #555; }
    iframe { border: 0; width: 100%; height: 100%; }
  </style>
</head>
<body>
  <nav id="components"></nav>
  <iframe id="stage" title="preview"></iframe>
  <script>
    window.addEventListener('preview:components', (event) => {
      const nav = document.getElementById('components')
      nav.innerHTML = ''
      for (const component of event.detail) {
        const link = (label, index, cls) => {
          const a = document.createElement('a')
          a.textContent = label
          a.className = cls
          a.href = '#'
          a.onclick = (e) => {
            e.preventDefault()
            const query = index == null ? '' : '?index=' + index
            document.getElementById('stage').src = '/@preview:iframe/' + component.path + query
          }
          nav.appendChild(a)
        }
        link(component.name, null, 'component')
        for (const preview of component.previews) link(preview.name, preview.id, 'preview')
      }
    })
  </script>
</body>
</html>
`
