package upload

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrExtension = errors.New("unsupported file type")
	ErrTooLarge  = errors.New("upload exceeds size limit")
	ErrEmpty     = errors.New("empty upload")
)

// AllowedExtensions mirrors the upload control: jpg, jpeg and png.
var AllowedExtensions = []string{".jpg", ".jpeg", ".png"}

// Store writes each upload to its own uuid-named file under dir.
type Store struct {
	dir      string
	maxBytes int64
}

func NewStore(dir string, maxBytes int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &Store{dir: dir, maxBytes: maxBytes}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// File is a transient copy of one upload.
type File struct {
	ID       string
	Path     string
	Filename string
	Size     int64
}

func (s *Store) Save(r io.Reader, filename string) (*File, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !Allowed(ext) {
		return nil, fmt.Errorf("%w: %q (allowed: %s)", ErrExtension, ext, strings.Join(AllowedExtensions, ", "))
	}

	id := uuid.New().String()
	path := filepath.Join(s.dir, id+ext)

	out, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create transient file: %w", err)
	}

	limited := &io.LimitedReader{R: r, N: s.maxBytes + 1}
	n, err := io.Copy(out, limited)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > s.maxBytes {
		err = fmt.Errorf("%w of %d bytes", ErrTooLarge, s.maxBytes)
	}
	if err == nil && n == 0 {
		err = ErrEmpty
	}
	if err != nil {
		os.Remove(path)
		return nil, err
	}

	return &File{ID: id, Path: path, Filename: filename, Size: n}, nil
}

// Remove deletes the transient file. Removing an already deleted file is not
// an error.
func (f *File) Remove() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (f *File) Open() (*os.File, error) {
	return os.Open(f.Path)
}

func Allowed(ext string) bool {
	ext = strings.ToLower(ext)
	for _, a := range AllowedExtensions {
		if ext == a {
			return true
		}
	}
	return false
}

// ContentType maps a decoded image format name ("png", "jpeg") to the MIME
// type used when the file is redisplayed.
func ContentType(format string) string {
	if format == "" {
		return "application/octet-stream"
	}
	return "image/" + strings.ToLower(format)
}
