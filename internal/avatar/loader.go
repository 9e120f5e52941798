package avatar

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dshills/avatarscript/internal/script"
)

// ScriptExt is the extension of script files in a bundle.
const ScriptExt = ".lua"

// Bundle is everything needed to build an avatar's runtime.
type Bundle struct {
	// Dir is the directory the bundle was read from, empty for other sources.
	Dir      string
	Manifest Manifest
	Scripts  *script.Scripts
}

// Name returns the manifest name, falling back to the directory name.
func (b *Bundle) Name() string {
	if b.Manifest.Name != "" {
		return b.Manifest.Name
	}
	if b.Dir != "" {
		return filepath.Base(b.Dir)
	}
	return "avatar"
}

// LoadBundle reads a bundle from fsys. Every *.lua file below the root is a
// script named by its slash-separated path without the extension, in lexical
// order. The manifest is optional.
func LoadBundle(fsys fs.FS) (*Bundle, error) {
	b := &Bundle{}

	data, err := fs.ReadFile(fsys, ManifestFile)
	switch {
	case err == nil:
		if b.Manifest, err = ParseManifest(data); err != nil {
			return nil, err
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("reading %s: %w", ManifestFile, err)
	}

	var scripts []script.Script
	err = fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != "." && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if path.Ext(p) != ScriptExt {
			return nil
		}
		src, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("reading script %s: %w", p, err)
		}
		scripts = append(scripts, script.Script{
			Name:   strings.TrimSuffix(p, ScriptExt),
			Source: string(src),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	if b.Scripts, err = script.NewScripts(scripts); err != nil {
		return nil, err
	}
	return b, nil
}

// LoadDir reads the bundle rooted at dir.
func LoadDir(dir string) (*Bundle, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, dir)
	}

	b, err := LoadBundle(os.DirFS(abs))
	if err != nil {
		return nil, fmt.Errorf("loading avatar %s: %w", dir, err)
	}
	b.Dir = abs
	return b, nil
}

// isBundleFile reports whether a change to name can alter a bundle.
func isBundleFile(name string) bool {
	base := filepath.Base(name)
	return base == ManifestFile || filepath.Ext(base) == ScriptExt
}
