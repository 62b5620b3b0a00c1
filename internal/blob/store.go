package blob

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// HandlePrefix marks opaque content references handed out by the store
const HandlePrefix = "blob:"

// Blob is an in-memory payload addressed by an opaque handle
type Blob struct {
	Handle      string
	Name        string
	ContentType string
	Size        int64
	CreatedAt   time.Time
	data        []byte
}

// Reader returns a fresh reader over the payload
func (b *Blob) Reader() *bytes.Reader {
	return bytes.NewReader(b.data)
}

// Store keeps payloads for documents and signature images
type Store struct {
	blobs sync.Map // handle -> *Blob
}

// NewStore creates an empty blob store
func NewStore() *Store {
	return &Store{}
}

// Put reads r fully and stores it under a new handle
func (s *Store) Put(name, contentType string, r io.Reader) (*Blob, error) {
	if r == nil {
		return nil, fmt.Errorf("payload for %q is nil", name)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload %q: %w", name, err)
	}

	b := &Blob{
		Handle:      HandlePrefix + uuid.New().String(),
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(data)),
		CreatedAt:   time.Now(),
		data:        data,
	}
	s.blobs.Store(b.Handle, b)

	return b, nil
}

// Get retrieves a blob by handle
func (s *Store) Get(handle string) (*Blob, error) {
	value, ok := s.blobs.Load(handle)
	if !ok {
		return nil, fmt.Errorf("blob not found: %s", handle)
	}
	return value.(*Blob), nil
}

// Revoke releases a handle. Unknown handles are ignored.
func (s *Store) Revoke(handle string) {
	if handle == "" {
		return
	}
	s.blobs.Delete(handle)
}

// Len returns the number of live blobs
func (s *Store) Len() int {
	n := 0
	s.blobs.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

// WriteArchive streams a tar.gz archive of the given blobs to w.
// Entries are written in handle order as given; duplicate names get a numeric suffix.
func (s *Store) WriteArchive(w io.Writer, handles []string) error {
	gzWriter := gzip.NewWriter(w)
	tarWriter := tar.NewWriter(gzWriter)

	seen := make(map[string]int)
	for _, handle := range handles {
		b, err := s.Get(handle)
		if err != nil {
			return err
		}

		name := archiveName(b.Name, seen)
		header := &tar.Header{
			Name:    name,
			Mode:    0644,
			Size:    b.Size,
			ModTime: b.CreatedAt,
		}
		if err := tarWriter.WriteHeader(header); err != nil {
			return fmt.Errorf("failed to write header for %s: %w", name, err)
		}
		if _, err := io.Copy(tarWriter, b.Reader()); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}

	if err := tarWriter.Close(); err != nil {
		return err
	}
	return gzWriter.Close()
}

func archiveName(name string, seen map[string]int) string {
	name = strings.TrimLeft(strings.ReplaceAll(name, "\\", "/"), "/")
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	if name == "" || name == "." || name == ".." {
		name = "document"
	}

	n := seen[name]
	seen[name] = n + 1
	if n == 0 {
		return name
	}

	ext := ""
	base := name
	if dot := strings.LastIndex(name, "."); dot > 0 {
		base, ext = name[:dot], name[dot:]
	}
	return fmt.Sprintf("%s (%d)%s", base, n, ext)
}
