package storage

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AttachmentStore owns the durable copy of uploaded files. Records only keep
// the locator returned by Store.
type AttachmentStore interface {
	// Store writes r under a freshly generated name that embeds originalName
	// and returns its locator. On error nothing is left behind.
	Store(ctx context.Context, r io.Reader, originalName string) (string, error)
	// Release removes the file at locator. A missing file is a no-op and other
	// failures are logged, never returned.
	Release(ctx context.Context, locator string)
}

// Object is one stored attachment as seen by a Lister.
type Object struct {
	Locator string
	ModTime time.Time
	Size    int64
}

// Lister is implemented by stores that can enumerate what they hold, which is
// what orphan reconciliation needs.
type Lister interface {
	List(ctx context.Context) ([]Object, error)
	// Key returns the store-local identity of locator. Two locators that name
	// the same stored object have the same key, however the store root was
	// spelled when they were issued.
	Key(locator string) string
}

// GenerateName returns "{uuid}_{base name}". Only the base name of
// originalName is kept, so client-supplied paths cannot escape the store root.
func GenerateName(originalName string) string {
	return uuid.NewString() + "_" + baseName(originalName)
}

func baseName(name string) string {
	// Browsers on Windows may send the full client path.
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == ".." || name == "" || name == string(filepath.Separator) {
		return "file"
	}
	return name
}
