package config

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// File is the decoded content of one or more page files.
type File struct {
	// Port and Host are optional defaults for the server address.
	Port  int                 `yaml:"port,omitempty"`
	Host  string              `yaml:"host,omitempty"`
	Pages map[string]PageSpec `yaml:"pages"`

	// Sources maps each page path to the file that defined it.
	Sources map[string]string `yaml:"-"`
}

// PageSpec is one page as written in a file.
type PageSpec struct {
	Content  string  `yaml:"content,omitempty"`
	Header   Headers `yaml:"header,omitempty"`
	Status   int     `yaml:"status,omitempty"`
	Redirect string  `yaml:"redirect,omitempty"`
	Auth     string  `yaml:"auth,omitempty"`
	Charset  string  `yaml:"charset,omitempty"`
}

var pageFields = map[string]bool{
	"content":  true,
	"header":   true,
	"status":   true,
	"redirect": true,
	"auth":     true,
	"charset":  true,
}

// UnmarshalYAML accepts either a scalar body or a mapping of page fields.
func (p *PageSpec) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*p = PageSpec{}
		return value.Decode(&p.Content)

	case yaml.MappingNode:
		for i := 0; i+1 < len(value.Content); i += 2 {
			key := value.Content[i].Value
			if !pageFields[key] {
				return fmt.Errorf("%w: line %d: unknown field %q", ErrInvalidPage, value.Content[i].Line, key)
			}
		}
		type plain PageSpec
		var decoded plain
		if err := value.Decode(&decoded); err != nil {
			return err
		}
		*p = PageSpec(decoded)
		return nil
	}
	return fmt.Errorf("%w: line %d: page must be a string or a mapping", ErrInvalidPage, value.Line)
}

// Headers is a list of "Name: value" lines. In a file it may be written as
// a single string or a list.
type Headers []string

// UnmarshalYAML accepts a scalar or a sequence of scalars.
func (h *Headers) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Value == "" {
			*h = nil
			return nil
		}
		*h = Headers{value.Value}
		return nil
	case yaml.SequenceNode:
		var lines []string
		if err := value.Decode(&lines); err != nil {
			return err
		}
		*h = lines
		return nil
	}
	return fmt.Errorf("%w: line %d: header must be a string or a list", ErrInvalidPage, value.Line)
}

// Paths returns the defined page paths in sorted order.
func (f *File) Paths() []string {
	paths := make([]string, 0, len(f.Pages))
	for p := range f.Pages {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// canonicalPath gives the key a leading slash the way the page table does,
// so duplicates are found across files.
func canonicalPath(path string) string {
	if !strings.HasPrefix(path, "/") {
		return "/" + path
	}
	return path
}
