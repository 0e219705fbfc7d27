// config/load.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mmp/aitraffic/util"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

var ErrUnknownFormat = errors.New("Unknown configuration file format")

// Load returns a Store holding the contents of the given YAML or TOML
// file.
func Load(path string) (*Store, error) {
	s := NewStore()
	if err := s.LoadFile(path); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadFile reads a YAML or TOML file, chosen by its extension, and sets
// its values in the store. Nested tables become path components.
func (s *Store) LoadFile(path string) error {
	b, err := util.ReadResource(path)
	if err != nil {
		return err
	}

	ext := strings.ToLower(filepath.Ext(strings.TrimSuffix(path, ".zst")))
	m := make(map[string]any)
	switch ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &m)
	case ".toml":
		err = toml.Unmarshal(b, &m)
	default:
		return fmt.Errorf("%s: %w", path, ErrUnknownFormat)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	s.setTree("", m)
	return nil
}

func (s *Store) setTree(prefix string, m map[string]any) {
	for _, k := range util.SortedMapKeys(m) {
		path := prefix + "/" + k
		if sub, ok := m[k].(map[string]any); ok {
			s.setTree(path, sub)
		} else {
			s.Set(path, m[k])
		}
	}
}
