package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name     string
		resource Resource
		expected string
	}{
		{
			name:     "entry with index",
			resource: EntryScript{FileName: "src/Button.vue", Index: At(1)},
			expected: "@preview/entry.js?fileName=src%2FButton.vue&index=1",
		},
		{
			name:     "default instance",
			resource: ComponentInstance{FileName: "src/Button.vue"},
			expected: "@preview/component.js?fileName=src%2FButton.vue&index=",
		},
		{
			name:     "preview zero is not the default",
			resource: ComponentInstance{FileName: "Alert.vue", Index: At(0)},
			expected: "@preview/component.js?fileName=Alert.vue&index=0",
		},
		{
			name:     "meta",
			resource: ComponentMeta{FileName: "my dir/Card.vue"},
			expected: "@preview/meta.js?fileName=my+dir%2FCard.vue",
		},
		{
			name:     "shell",
			resource: ShellAsset{FileName: "assets/app.css"},
			expected: "@preview/shell?fileName=assets%2Fapp.css",
		},
		{
			name:     "list",
			resource: ListComponents{},
			expected: "@preview/components.js",
		},
		{
			name:     "setup",
			resource: UserSetup{},
			expected: "@preview/user/setup.js",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Encode(tt.resource))
			assert.Equal(t, "/"+tt.expected, URL(tt.resource))

			decoded, ok := Decode(tt.expected)
			require.True(t, ok)
			assert.Equal(t, tt.resource, decoded)
		})
	}
}

func TestDecodeNotVirtual(t *testing.T) {
	for _, address := range []string{"styles.css", "/src/main.ts", "", "preview/entry.js"} {
		t.Run(address, func(t *testing.T) {
			assert.False(t, IsVirtual(address))

			var r Resource
			var ok bool
			assert.NotPanics(t, func() { r, ok = Decode(address) })
			assert.False(t, ok)
			assert.Nil(t, r)
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []string{
		"@preview/meta.js",
		"@preview/meta.js?fileName=",
		"@preview/entry.js?index=1",
		"@preview/component.js?fileName=A.vue&index=x",
		"@preview/component.js?fileName=A.vue&index=-1",
		"@preview/bogus.js?fileName=A.vue",
		"@preview/meta.js?fileName=%zz",
	}

	for _, address := range tests {
		t.Run(address, func(t *testing.T) {
			assert.True(t, IsVirtual(address))
			_, ok := Decode(address)
			assert.False(t, ok)
		})
	}
}

func TestDecodeTolerance(t *testing.T) {
	r, ok := Decode("/@preview/component.js?fileName=A.vue&index=2&t=1700000000")
	require.True(t, ok)
	assert.Equal(t, ComponentInstance{FileName: "A.vue", Index: At(2)}, r)

	r, ok = Decode("/@preview/entry.js?fileName=A.vue")
	require.True(t, ok)
	assert.Equal(t, EntryScript{FileName: "A.vue", Index: Default}, r)

	canonical, ok := Canonical("/@preview/components.js?t=1")
	require.True(t, ok)
	assert.Equal(t, "@preview/components.js", canonical)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "A.vue", FileName(EntryScript{FileName: "A.vue"}))
	assert.Equal(t, "A.vue", FileName(ComponentMeta{FileName: "A.vue"}))
	assert.Empty(t, FileName(ListComponents{}))
	assert.Empty(t, FileName(UserSetup{}))
}
