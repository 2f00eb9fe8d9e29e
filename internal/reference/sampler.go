package reference

import (
	"errors"
	"fmt"
	"image"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Brownie44l1/pneumonia-api/internal/preprocess"
)

// ErrEmptyPool is returned when a reference directory holds no files.
var ErrEmptyPool = errors.New("reference pool is empty")

type Class string

const (
	Normal    Class = "Normal"
	Pneumonia Class = "Pneumonia"
)

// Exemplar is one labelled reference image on disk.
type Exemplar struct {
	Class Class
	Path  string
}

func (e Exemplar) Name() string {
	if e.Path == "" {
		return ""
	}
	return filepath.Base(e.Path)
}

func (e Exemplar) Open() (image.Image, error) {
	f, err := os.Open(e.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := preprocess.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s exemplar %s: %w", e.Class, e.Name(), err)
	}
	return img, nil
}

// Sampler draws exemplars uniformly at random, with replacement, from the
// class directories. Directories are listed on every call.
type Sampler struct {
	dirs map[Class]string

	mu  sync.Mutex
	rng *rand.Rand
}

func NewSampler(normalDir, pneumoniaDir string, rng *rand.Rand) *Sampler {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Sampler{
		dirs: map[Class]string{
			Normal:    normalDir,
			Pneumonia: pneumoniaDir,
		},
		rng: rng,
	}
}

func (s *Sampler) Dir(class Class) string {
	return s.dirs[class]
}

func (s *Sampler) Sample(class Class) (Exemplar, error) {
	dir, ok := s.dirs[class]
	if !ok {
		return Exemplar{}, fmt.Errorf("unknown reference class %q", class)
	}

	names, err := listFiles(dir)
	if err != nil {
		return Exemplar{}, fmt.Errorf("list %s references: %w", class, err)
	}
	if len(names) == 0 {
		return Exemplar{}, fmt.Errorf("%s references in %s: %w", class, dir, ErrEmptyPool)
	}

	s.mu.Lock()
	i := s.rng.Intn(len(names))
	s.mu.Unlock()

	return Exemplar{Class: class, Path: filepath.Join(dir, names[i])}, nil
}

// SamplePair draws one normal and one pneumonia exemplar independently.
func (s *Sampler) SamplePair() (normal, pneumonia Exemplar, err error) {
	normal, err = s.Sample(Normal)
	if err != nil {
		return Exemplar{}, Exemplar{}, err
	}
	pneumonia, err = s.Sample(Pneumonia)
	if err != nil {
		return Exemplar{}, Exemplar{}, err
	}
	return normal, pneumonia, nil
}

// listFiles returns the regular files of dir, and symlinks resolving to
// regular files, in directory order (sorted by name), so a seeded rng picks
// the same entry on every platform.
func listFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		switch {
		case e.Type().IsRegular():
			names = append(names, e.Name())
		case e.Type()&fs.ModeSymlink != 0:
			info, err := os.Stat(filepath.Join(dir, e.Name()))
			if err == nil && info.Mode().IsRegular() {
				names = append(names, e.Name())
			}
		}
	}
	return names, nil
}
