package descriptor

import (
	"context"
	"os"
)

// OSHost reads source files from the local filesystem.
type OSHost struct{}

// Exists reports whether path names an existing regular file.
func (OSHost) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// ReadFile returns the file's content.
func (OSHost) ReadFile(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
