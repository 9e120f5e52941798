package script

import (
	"fmt"
	"sort"

	plua "github.com/dshills/avatarscript/internal/script/lua"
)

// Script is one named source file.
type Script struct {
	Name   string
	Source string
}

// Scripts is an immutable, insertion-ordered mapping from normalized script
// name to source text. The zero value and nil are empty.
type Scripts struct {
	names   []string
	sources map[string]string
}

// NewScripts builds a Scripts value, normalizing each name the way require
// does. Two entries with the same normalized name are an error.
func NewScripts(scripts []Script) (*Scripts, error) {
	s := &Scripts{
		names:   make([]string, 0, len(scripts)),
		sources: make(map[string]string, len(scripts)),
	}
	for _, sc := range scripts {
		name := plua.NormalizeName(sc.Name)
		if _, exists := s.sources[name]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateScript, name)
		}
		s.names = append(s.names, name)
		s.sources[name] = sc.Source
	}
	return s, nil
}

// ScriptsFromMap builds Scripts from a map, ordering names lexically.
func ScriptsFromMap(m map[string]string) (*Scripts, error) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	list := make([]Script, 0, len(names))
	for _, name := range names {
		list = append(list, Script{Name: name, Source: m[name]})
	}
	return NewScripts(list)
}

// Source returns the source registered under a normalized name.
func (s *Scripts) Source(name string) (string, bool) {
	if s == nil {
		return "", false
	}
	src, ok := s.sources[name]
	return src, ok
}

// Names returns the script names in insertion order.
func (s *Scripts) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, len(s.names))
	copy(names, s.names)
	return names
}

// Len returns the number of scripts.
func (s *Scripts) Len() int {
	if s == nil {
		return 0
	}
	return len(s.names)
}
