// Package config provides the read-only key/value lookup entrycache consumes.
//
// Keys are flat dotted paths ("cache.default_expiration"). The core only reads
// configuration; it never writes it back.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Keys read by entrycache.
const (
	KeyDefaultExpiration = "cache.default_expiration"
	KeyStorage           = "cache.storage"
	KeyStringHandler     = "cache.string_handler"
)

// HandlerKey returns the key naming the default handler for a value category,
// e.g. HandlerKey("map") == "cache.map_handler".
func HandlerKey(category string) string {
	return "cache." + category + "_handler"
}

// Provider is a read-only configuration lookup.
type Provider interface {
	Lookup(key string) (any, bool)
}

// Map is a Provider over a flat map of dotted keys.
type Map map[string]any

func (m Map) Lookup(key string) (any, bool) {
	v, ok := m[key]
	return v, ok
}

// String returns the string value at key, or def when the key is absent, empty or not a string.
func String(p Provider, key, def string) string {
	if p == nil {
		return def
	}
	v, ok := p.Lookup(key)
	if !ok || v == nil {
		return def
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return def
	}
	return s
}

// LoadYAML reads a YAML document and flattens nested mappings into dotted keys:
//
//	cache:
//	  storage: redis
//
// becomes Map{"cache.storage": "redis"}.
func LoadYAML(r io.Reader) (Map, error) {
	var doc map[string]any
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return Map{}, nil
		}
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	out := make(Map)
	flatten(out, "", doc)
	return out, nil
}

// LoadYAMLFile is LoadYAML over a file path.
func LoadYAMLFile(path string) (Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	defer f.Close()
	return LoadYAML(f)
}

func flatten(out Map, prefix string, m map[string]any) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			flatten(out, key, nested)
			continue
		}
		out[key] = v
	}
}

// Overlay returns a Provider that consults each provider in order and returns the first hit.
func Overlay(providers ...Provider) Provider {
	return overlay(providers)
}

type overlay []Provider

func (o overlay) Lookup(key string) (any, bool) {
	for _, p := range o {
		if p == nil {
			continue
		}
		if v, ok := p.Lookup(key); ok {
			return v, true
		}
	}
	return nil, false
}

// Env is a Provider backed by environment variables. A key maps to an upper-cased,
// underscore-separated name under Prefix: with Prefix "APP", "cache.storage" reads APP_CACHE_STORAGE.
type Env struct {
	Prefix string
}

func (e Env) Lookup(key string) (any, bool) {
	name := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
	if e.Prefix != "" {
		name = strings.ToUpper(e.Prefix) + "_" + name
	}
	return os.LookupEnv(name)
}
