package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// Common errors for page file loading.
var (
	ErrFileNotFound     = errors.New("page file not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidYAML      = errors.New("invalid page file syntax")
	ErrEmptyFile        = errors.New("page file is empty")
	ErrInvalidPage      = errors.New("invalid page definition")
	ErrDuplicatePath    = errors.New("page path defined more than once")
	ErrUnknownCharset   = errors.New("unknown charset")
)

// LoadFile reads one YAML or JSON page file.
func LoadFile(path string) (*File, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, path)
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, path)
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}

	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for p := range f.Pages {
		f.Sources[p] = path
	}
	return f, nil
}

// Parse decodes a page file. JSON is accepted as YAML.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyFile
		}
		if errors.Is(err, ErrInvalidPage) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidYAML, err)
	}

	if f.Pages == nil {
		f.Pages = make(map[string]PageSpec)
	}
	f.Sources = make(map[string]string, len(f.Pages))

	seen := make(map[string]string, len(f.Pages))
	for _, p := range f.Paths() {
		c := canonicalPath(p)
		if prev, dup := seen[c]; dup {
			return nil, fmt.Errorf("%w: %q and %q", ErrDuplicatePath, prev, p)
		}
		seen[c] = p
	}
	return &f, nil
}

// LoadGlob loads every file matching patterns and merges them. Patterns
// support "**". Each pattern must match at least one file. Port and Host
// come from the first file that sets them.
func LoadGlob(patterns ...string) (*File, error) {
	var files []string
	seenFile := make(map[string]bool)
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, pattern)
		}
		sort.Strings(matches)
		for _, m := range matches {
			if !seenFile[m] {
				seenFile[m] = true
				files = append(files, m)
			}
		}
	}

	merged := &File{
		Pages:   make(map[string]PageSpec),
		Sources: make(map[string]string),
	}
	owner := make(map[string]string)
	for _, path := range files {
		f, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		if merged.Port == 0 {
			merged.Port = f.Port
		}
		if merged.Host == "" {
			merged.Host = f.Host
		}
		for _, p := range f.Paths() {
			c := canonicalPath(p)
			if prev, dup := owner[c]; dup {
				return nil, fmt.Errorf("%w: %s in %s and %s", ErrDuplicatePath, c, prev, path)
			}
			owner[c] = path
			merged.Pages[p] = f.Pages[p]
			merged.Sources[p] = path
		}
	}
	return merged, nil
}
