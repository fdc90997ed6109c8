// Package bucket stores product images in a gocloud blob bucket.
package bucket

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	"gocloud.dev/gcerrors"

	"github.com/AUTO-HOST/auto-host-backend/internal/model"
)

// LocalURLPrefix is where images are served when the bucket has no public
// base URL.
const LocalURLPrefix = "/api/images/"

// Bucket wraps an opened blob bucket.
type Bucket struct {
	b          *blob.Bucket
	publicBase string
}

// Open opens the bucket at url (gs://, file:// or mem://). publicBase, if
// set, is the URL prefix clients fetch objects from.
func Open(ctx context.Context, url, publicBase string) (*Bucket, error) {
	b, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("opening bucket: %w", err)
	}
	return &Bucket{b: b, publicBase: strings.TrimRight(publicBase, "/")}, nil
}

// Close releases the bucket.
func (b *Bucket) Close() error {
	return b.b.Close()
}

// Put writes data under key.
func (b *Bucket) Put(ctx context.Context, key string, data []byte, contentType string) error {
	err := b.b.WriteAll(ctx, key, data, &blob.WriterOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing object is not an error.
func (b *Bucket) Delete(ctx context.Context, key string) error {
	err := b.b.Delete(ctx, key)
	if err != nil && gcerrors.Code(err) != gcerrors.NotFound {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

// NewReader opens key for reading. A missing object yields model.ErrNotFound.
func (b *Bucket) NewReader(ctx context.Context, key string) (*blob.Reader, error) {
	r, err := b.b.NewReader(ctx, key, nil)
	if gcerrors.Code(err) == gcerrors.NotFound {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	return r, nil
}

// URL returns the address clients use to fetch key.
func (b *Bucket) URL(key string) string {
	if b.publicBase != "" {
		return b.publicBase + "/" + key
	}
	return LocalURLPrefix + key
}

// KeyFromURL returns the object key a URL produced by URL refers to.
func (b *Bucket) KeyFromURL(url string) (string, bool) {
	prefix := LocalURLPrefix
	if b.publicBase != "" {
		prefix = b.publicBase + "/"
	}
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	return strings.TrimPrefix(url, prefix), true
}

// ErrInvalidKey is returned by ValidKey.
var ErrInvalidKey = errors.New("invalid object key")

// ValidKey rejects keys that are empty or try to escape the bucket.
func ValidKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || path.Clean(key) != key || strings.HasPrefix(key, "..") {
		return ErrInvalidKey
	}
	return nil
}

// ProductKey names a product image uploaded at t from a client file name.
// The stored image is always JPEG. A random fragment keeps keys unique
// within the same millisecond.
func ProductKey(filename string, t time.Time) string {
	nonce := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return "products/" + strconv.FormatInt(t.UnixMilli(), 10) + "_" + nonce + "_" + sanitize(filename) + ".jpg"
}

func sanitize(filename string) string {
	name := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	name = strings.TrimSuffix(name, path.Ext(name))

	var sb strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsSpace(r):
			sb.WriteByte('_')
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.'):
			sb.WriteRune(r)
		}
	}
	s := strings.Trim(sb.String(), ".")
	if s == "" {
		return "image"
	}
	return s
}
