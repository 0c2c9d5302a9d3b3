// Package archive builds and reads the zip archives that are the unit
// of configuration transfer: pipe and system definitions plus node
// metadata. It also compares a local archive against a remote one.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	configSuffix = ".conf.json"
	metadataFile = "node-metadata.conf.json"
)

// configDirs are the directories packed into a configuration archive.
var configDirs = []string{"pipes", "systems"}

// Archive is a named collection of configuration files.
type Archive struct {
	files map[string][]byte
}

// Build packs the configuration files under root: every *.conf.json in
// the pipes/ and systems/ trees, plus node-metadata.conf.json when
// present.
func Build(root string) (*Archive, error) {
	a := &Archive{files: map[string][]byte{}}

	for _, dir := range configDirs {
		base := filepath.Join(root, dir)
		if _, err := os.Stat(base); os.IsNotExist(err) {
			continue
		}
		err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(path, configSuffix) {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			a.files[filepath.ToSlash(rel)] = data
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	if data, err := os.ReadFile(filepath.Join(root, metadataFile)); err == nil {
		a.files[metadataFile] = data
	}
	return a, nil
}

// FromZip reads an archive from zip bytes.
func FromZip(data []byte) (*Archive, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("reading config archive: %w", err)
	}
	a := &Archive{files: map[string][]byte{}}
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		a.files[f.Name] = content
	}
	return a, nil
}

// Zip serializes the archive to zip bytes with deterministic member
// order.
func (a *Archive) Zip() ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, name := range a.Names() {
		f, err := w.Create(name)
		if err != nil {
			return nil, err
		}
		if _, err := f.Write(a.files[name]); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Names returns the member file names in ascending order.
func (a *Archive) Names() []string {
	names := make([]string, 0, len(a.files))
	for name := range a.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Read returns a member's content.
func (a *Archive) Read(name string) ([]byte, bool) {
	data, ok := a.files[name]
	return data, ok
}

// Len returns the number of member files.
func (a *Archive) Len() int {
	return len(a.files)
}

// ExtractTo writes every member under dir, creating directories as
// needed.
func (a *Archive) ExtractTo(dir string) error {
	for _, name := range a.Names() {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, a.files[name], 0o644); err != nil {
			return err
		}
	}
	return nil
}
