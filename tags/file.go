package tags

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileStore keeps tags in a single JSON or YAML document, chosen by the
// file extension (.yaml and .yml select YAML).
type FileStore struct {
	path string
}

type document struct {
	Tags []Tag `json:"tags" yaml:"tags"`
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) isYAML() bool {
	ext := strings.ToLower(filepath.Ext(f.path))
	return ext == ".yaml" || ext == ".yml"
}

func (f *FileStore) Load(ctx context.Context) ([]Tag, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("reading tag file: %w", err)
	}

	var doc document
	if f.isYAML() {
		err = yaml.Unmarshal(b, &doc)
	} else {
		err = json.Unmarshal(b, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing tag file %s: %w", f.path, err)
	}

	return doc.Tags, nil
}

// Save writes to a temporary file next to the target and renames it into
// place, so readers never see a partial document.
func (f *FileStore) Save(ctx context.Context, tags []Tag) error {
	doc := document{Tags: tags}
	if doc.Tags == nil {
		doc.Tags = []Tag{}
	}

	var b []byte
	var err error
	if f.isYAML() {
		b, err = yaml.Marshal(doc)
	} else {
		b, err = json.MarshalIndent(doc, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encoding tags: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating tag dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tags-*")
	if err != nil {
		return fmt.Errorf("creating temp tag file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("writing tags: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing tags: %w", err)
	}

	return os.Rename(tmp.Name(), f.path)
}
