package avatar

import (
	"errors"
	"fmt"

	"github.com/pelletier/go-toml/v2"
)

// ManifestFile is the bundle manifest name.
const ManifestFile = "avatar.toml"

// Manifest describes an avatar bundle.
type Manifest struct {
	Name   string
	Author string
	// AutoScripts lists the scripts run at init, in order. Nil runs every
	// script; an empty list runs none.
	AutoScripts []string
}

// manifestFile mirrors the TOML layout. A pointer keeps an absent
// autoScripts key apart from an empty one.
type manifestFile struct {
	Name        string    `toml:"name"`
	Author      string    `toml:"author"`
	AutoScripts *[]string `toml:"autoScripts"`
}

// ParseManifest decodes manifest TOML.
func ParseManifest(data []byte) (Manifest, error) {
	var mf manifestFile
	if err := toml.Unmarshal(data, &mf); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return Manifest{}, fmt.Errorf("parse %s at line %d, column %d: %w", ManifestFile, row, col, err)
		}
		return Manifest{}, fmt.Errorf("parse %s: %w", ManifestFile, err)
	}

	m := Manifest{Name: mf.Name, Author: mf.Author}
	if mf.AutoScripts != nil {
		m.AutoScripts = make([]string, len(*mf.AutoScripts))
		copy(m.AutoScripts, *mf.AutoScripts)
	}
	return m, nil
}
