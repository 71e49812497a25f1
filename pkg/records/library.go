// Package records loads the content, memo and tag collections from a library
// file and keeps a current snapshot of them for the rest of the engine.
package records

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ritzau/thoughtgraph/pkg/model"
	"gopkg.in/yaml.v3"
)

// Library is the on-disk layout of a library file
type Library struct {
	Contents []model.Content `json:"contents" yaml:"contents"`
	Memos    []model.Memo    `json:"memos" yaml:"memos"`
	Tags     []model.Tag     `json:"tags" yaml:"tags"`
}

// LoadFile reads a library from a YAML or JSON file. The format is chosen by
// extension; unknown extensions are parsed as YAML.
func LoadFile(path string) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read library: %w", err)
	}

	lib, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("failed to parse library %s: %w", path, err)
	}
	return lib, nil
}

// Parse decodes library data; ext selects JSON for ".json"
func Parse(data []byte, ext string) (*Library, error) {
	var lib Library
	if strings.EqualFold(ext, ".json") {
		if err := json.Unmarshal(data, &lib); err != nil {
			return nil, err
		}
	} else if len(bytes.TrimSpace(data)) > 0 {
		if err := yaml.Unmarshal(data, &lib); err != nil {
			return nil, err
		}
	}
	lib.normalize()
	return &lib, nil
}

// normalize fills in tag records from usage: tags referenced by content or
// memos but not listed get a record, and listed tags without a count get the
// usage count. Tag ids default to their name.
func (l *Library) normalize() {
	usage := make(map[string]int)
	var order []string
	count := func(tags []string) {
		for _, t := range tags {
			if _, seen := usage[t]; !seen {
				order = append(order, t)
			}
			usage[t]++
		}
	}
	for _, c := range l.Contents {
		count(c.Tags)
	}
	for _, m := range l.Memos {
		count(m.Tags)
	}

	listed := make(map[string]bool, len(l.Tags))
	for i := range l.Tags {
		tag := &l.Tags[i]
		if tag.Name == "" {
			tag.Name = tag.ID
		}
		if tag.ID == "" {
			tag.ID = tag.Name
		}
		if tag.Count == 0 {
			tag.Count = usage[tag.Name]
		}
		listed[tag.Name] = true
	}
	for _, name := range order {
		if !listed[name] {
			l.Tags = append(l.Tags, model.Tag{ID: name, Name: name, Count: usage[name]})
		}
	}
}

// Snapshot returns the library as a record snapshot without connections
func (l *Library) Snapshot() model.Snapshot {
	return model.Snapshot{
		Contents:    append([]model.Content(nil), l.Contents...),
		Memos:       append([]model.Memo(nil), l.Memos...),
		Tags:        append([]model.Tag(nil), l.Tags...),
		Connections: nil,
	}
}
