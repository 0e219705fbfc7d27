// config/store.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package config

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mmp/aitraffic/util"
)

// Listener is called after the value at path changes.
type Listener func(path string, v any)

type listenerEntry struct {
	path string
	l    Listener
}

// Store is a tree of configuration values addressed by slash-separated
// paths like "/sim/traffic-manager/enabled". It's safe for concurrent
// use.
type Store struct {
	mu        sync.Mutex
	values    map[string]any
	listeners []listenerEntry
}

func NewStore() *Store {
	return &Store{values: make(map[string]any)}
}

// Clean returns the canonical form of a path: a leading slash, no
// trailing slash and no empty components.
func Clean(path string) string {
	var parts []string
	for p := range strings.SplitSeq(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return "/" + strings.Join(parts, "/")
}

// under reports whether path is prefix or is in the subtree below it.
func under(path, prefix string) bool {
	return prefix == "/" || path == prefix || strings.HasPrefix(path, prefix+"/")
}

// Set stores v at path and then calls the listeners for the path and
// for any of its parents.
func (s *Store) Set(path string, v any) {
	path = Clean(path)

	s.mu.Lock()
	s.values[path] = v
	var ls []Listener
	for _, e := range s.listeners {
		if under(path, e.path) {
			ls = append(ls, e.l)
		}
	}
	s.mu.Unlock()

	for _, l := range ls {
		l(path, v)
	}
}

// AddListener registers l to be called when the value at path or below
// it is set.
func (s *Store) AddListener(path string, l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, listenerEntry{path: Clean(path), l: l})
}

func (s *Store) Get(path string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[Clean(path)]
	return v, ok
}

// Paths returns all of the paths with values, sorted.
func (s *Store) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return util.SortedMapKeys(s.values)
}

func (s *Store) GetString(path, def string) string {
	v, ok := s.Get(path)
	if !ok {
		return def
	}
	if str, ok := v.(string); ok {
		return str
	}
	return fmt.Sprint(v)
}

func (s *Store) GetBool(path string, def bool) bool {
	v, ok := s.Get(path)
	if !ok {
		return def
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		if pb, err := strconv.ParseBool(b); err == nil {
			return pb
		}
	default:
		if f, ok := toFloat(v); ok {
			return f != 0
		}
	}
	return def
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func (s *Store) GetFloat(path string, def float32) float32 {
	if v, ok := s.Get(path); ok {
		if f, ok := toFloat(v); ok {
			return float32(f)
		}
	}
	return def
}

func (s *Store) GetInt(path string, def int) int {
	if v, ok := s.Get(path); ok {
		if f, ok := toFloat(v); ok {
			return int(f)
		}
	}
	return def
}

// GetDuration accepts time.Durations, strings like "90s" and numbers,
// which are taken to be seconds.
func (s *Store) GetDuration(path string, def time.Duration) time.Duration {
	v, ok := s.Get(path)
	if !ok {
		return def
	}
	switch d := v.(type) {
	case time.Duration:
		return d
	case string:
		if pd, err := time.ParseDuration(d); err == nil {
			return pd
		}
	}
	if f, ok := toFloat(v); ok {
		return time.Duration(f * float64(time.Second))
	}
	return def
}

// GetStrings returns a list of strings; a single string is split at
// commas.
func (s *Store) GetStrings(path string) []string {
	v, ok := s.Get(path)
	if !ok {
		return nil
	}
	var strs []string
	switch l := v.(type) {
	case []string:
		strs = l
	case []any:
		for _, e := range l {
			strs = append(strs, fmt.Sprint(e))
		}
	case string:
		strs = strings.Split(l, ",")
	default:
		strs = []string{fmt.Sprint(v)}
	}
	return util.FilterSliceInPlace(util.MapSlice(strs, strings.TrimSpace),
		func(s string) bool { return s != "" })
}
