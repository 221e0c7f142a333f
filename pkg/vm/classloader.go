package vm

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/daimatz/jbeans/pkg/classfile"
)

// ClassSource reads class files by internal name ("java/util/ArrayList").
// A class the source does not have is reported with an error wrapping
// ErrClassNotFound.
type ClassSource interface {
	LoadClass(name string) (*classfile.ClassFile, error)
}

// JmodSource reads classes from a JDK jmod file.
type JmodSource struct {
	JmodPath string

	mu        sync.Mutex
	cache     map[string]*classfile.ClassFile
	zipReader *zip.Reader
	entries   map[string]*zip.File
}

// NewJmodSource creates a source over the jmod at jmodPath. The file is
// opened on first use.
func NewJmodSource(jmodPath string) *JmodSource {
	return &JmodSource{
		JmodPath: jmodPath,
		cache:    make(map[string]*classfile.ClassFile),
	}
}

func (s *JmodSource) ensureZipReader() error {
	if s.zipReader != nil {
		return nil
	}

	f, err := os.Open(s.JmodPath)
	if err != nil {
		return fmt.Errorf("jmod: opening %s: %w", s.JmodPath, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("jmod: reading %s: %w", s.JmodPath, err)
	}
	if len(data) < 4 || string(data[:2]) != "JM" {
		return fmt.Errorf("jmod: %s: missing JM header", s.JmodPath)
	}

	zipData := data[4:] // Skip "JM\x01\x00" header
	s.zipReader, err = zip.NewReader(bytes.NewReader(zipData), int64(len(zipData)))
	if err != nil {
		return fmt.Errorf("jmod: opening zip: %w", err)
	}
	s.entries = make(map[string]*zip.File, len(s.zipReader.File))
	for _, file := range s.zipReader.File {
		s.entries[file.Name] = file
	}
	return nil
}

func (s *JmodSource) LoadClass(name string) (*classfile.ClassFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cf, ok := s.cache[name]; ok {
		return cf, nil
	}

	if err := s.ensureZipReader(); err != nil {
		return nil, err
	}

	target := "classes/" + name + ".class"
	file, ok := s.entries[target]
	if !ok {
		return nil, fmt.Errorf("jmod: class %s not in %s: %w", name, s.JmodPath, ErrClassNotFound)
	}
	rc, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("jmod: opening %s: %w", target, err)
	}
	defer rc.Close()

	cf, err := classfile.Parse(rc)
	if err != nil {
		return nil, fmt.Errorf("jmod: parsing %s: %w", name, err)
	}
	s.cache[name] = cf
	return cf, nil
}

// DirSource reads classes from <Dir>/<name>.class.
type DirSource struct {
	Dir string

	mu    sync.Mutex
	cache map[string]*classfile.ClassFile
}

// NewDirSource creates a source over a class directory.
func NewDirSource(dir string) *DirSource {
	return &DirSource{
		Dir:   dir,
		cache: make(map[string]*classfile.ClassFile),
	}
}

func (s *DirSource) LoadClass(name string) (*classfile.ClassFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cf, ok := s.cache[name]; ok {
		return cf, nil
	}
	path := filepath.Join(s.Dir, filepath.FromSlash(name)+".class")
	cf, err := classfile.ParseFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("dir: class %s: %w", name, ErrClassNotFound)
		}
		return nil, fmt.Errorf("dir: class %s: %w", name, err)
	}
	s.cache[name] = cf
	return cf, nil
}

// ChainSource tries each source in order.
type ChainSource []ClassSource

func (c ChainSource) LoadClass(name string) (*classfile.ClassFile, error) {
	for _, s := range c {
		cf, err := s.LoadClass(name)
		if err == nil {
			return cf, nil
		}
		if !errors.Is(err, ErrClassNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("class %s: %w", name, ErrClassNotFound)
}

// MapSource serves class files held in memory, keyed by internal name.
type MapSource map[string][]byte

func (m MapSource) LoadClass(name string) (*classfile.ClassFile, error) {
	data, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("class %s: %w", name, ErrClassNotFound)
	}
	return classfile.Parse(bytes.NewReader(data))
}
