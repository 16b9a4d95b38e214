// Package domain defines the record shapes handled by field-level encryption: plain attribute
// maps carrying an encryption manifest, the registry of encrypted columns and encrypted files.
package domain

import (
	"maps"
	"sort"
)

// Record is a stored entity as an attribute map.
type Record map[string]any

const (
	// ManifestAttribute holds the manifest of encrypted fields on a record.
	ManifestAttribute = "_encrypted"
	// SearchSuffix is appended to a field name to form its search hash companion.
	SearchSuffix = "_search"
)

// Encoding tells how a field value was serialized before encryption.
type Encoding string

const (
	// EncodingRaw stores a string as its UTF-8 bytes.
	EncodingRaw Encoding = "raw"
	// EncodingBytes stores a byte slice as is.
	EncodingBytes Encoding = "bytes"
	// EncodingJSON stores any other value as JSON. Numbers decode as float64.
	EncodingJSON Encoding = "json"
)

// Manifest maps an encrypted field to its encoding.
type Manifest map[string]Encoding

// SearchField returns the name of the search hash companion of field.
func SearchField(field string) string {
	return field + SearchSuffix
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	return maps.Clone(r)
}

// Manifest reads the manifest attribute.
//
// Accepted shapes are a map of field to encoding (map[string]string or map[string]any, as
// produced by a JSON round trip) and a plain list of field names, whose encoding is taken
// to be raw.
func (r Record) Manifest() Manifest {
	manifest := Manifest{}
	switch v := r[ManifestAttribute].(type) {
	case Manifest:
		maps.Copy(manifest, v)
	case map[string]Encoding:
		maps.Copy(manifest, v)
	case map[string]string:
		for field, enc := range v {
			manifest[field] = Encoding(enc)
		}
	case map[string]any:
		for field, enc := range v {
			s, _ := enc.(string)
			manifest[field] = Encoding(s)
		}
	case []string:
		for _, field := range v {
			manifest[field] = EncodingRaw
		}
	case []any:
		for _, field := range v {
			if s, ok := field.(string); ok {
				manifest[s] = EncodingRaw
			}
		}
	}
	for field, enc := range manifest {
		if enc == "" {
			manifest[field] = EncodingRaw
		}
	}
	return manifest
}

// SetManifest writes the manifest attribute, removing it when empty.
func (r Record) SetManifest(manifest Manifest) {
	if len(manifest) == 0 {
		delete(r, ManifestAttribute)
		return
	}
	out := make(map[string]string, len(manifest))
	for field, enc := range manifest {
		out[field] = string(enc)
	}
	r[ManifestAttribute] = out
}

// Fields returns the manifest field names in sorted order.
func (m Manifest) Fields() []string {
	fields := make([]string, 0, len(m))
	for field := range m {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}
