package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		expectErr bool
	}{
		{name: "valid http URL", url: "http://localhost:3000"},
		{name: "valid https URL", url: "https://example.com"},
		{name: "valid URL with path", url: "http://127.0.0.1:3000/@preview:iframe/Button.vue"},
		{name: "javascript scheme", url: "javascript:alert(1)", expectErr: true},
		{name: "file scheme", url: "file:///etc/passwd", expectErr: true},
		{name: "command separator", url: "http://localhost:3000;rm -rf /", expectErr: true},
		{name: "backticks", url: "http://localhost:3000/`id`", expectErr: true},
		{name: "space", url: "http://localhost:3000/a b", expectErr: true},
		{name: "missing host", url: "http:///path", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateOriginFormat(t *testing.T) {
	tests := []struct {
		name      string
		origin    string
		expectErr bool
	}{
		{name: "http origin", origin: "http://localhost:5173"},
		{name: "https origin with slash", origin: "https://preview.example.com/"},
		{name: "empty", origin: "", expectErr: true},
		{name: "bare host", origin: "localhost:3000", expectErr: true},
		{name: "ws scheme", origin: "ws://localhost:3000", expectErr: true},
		{name: "path", origin: "http://localhost:3000/app", expectErr: true},
		{name: "query", origin: "http://localhost:3000?x=1", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOriginFormat(tt.origin)
			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateOrigin(t *testing.T) {
	allowed := []string{"http://localhost:5173", "preview.example.com"}

	assert.NoError(t, ValidateOrigin("http://localhost:5173", allowed))
	assert.NoError(t, ValidateOrigin("https://preview.example.com", allowed))
	assert.Error(t, ValidateOrigin("http://localhost:8080", allowed))
	assert.Error(t, ValidateOrigin("", allowed))
	assert.Error(t, ValidateOrigin("file://preview.example.com", allowed))
}
