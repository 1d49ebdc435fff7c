// Package kinds loads entity kind definitions. A default set is embedded in
// the binary; an override file can replace kinds or add new ones.
package kinds

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/magsav/pkg/types"
)

//go:embed kinds.yaml
var defaultKinds []byte

// File is the on-disk layout of a kinds file.
type File struct {
	Kinds []types.KindSpec `yaml:"kinds"`
}

// Parse decodes a kinds file. Unknown keys are rejected.
func Parse(data []byte) (File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return File{}, fmt.Errorf("parse kinds: %w", err)
	}
	return f, nil
}

// Defaults returns the embedded kind definitions.
func Defaults() []types.KindSpec {
	f, err := Parse(defaultKinds)
	if err != nil {
		panic(fmt.Sprintf("embedded kinds.yaml: %v", err))
	}
	return f.Kinds
}

// Default returns a registry of the embedded kinds.
func Default() (*types.Registry, error) {
	return types.NewRegistry(Defaults()...)
}

// Load returns a registry of the embedded kinds merged with the file at
// path. A kind in the file replaces the embedded kind of the same name; new
// kinds are appended. An empty path returns the defaults.
func Load(path string) (*types.Registry, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read kinds file: %w", err)
	}
	override, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return types.NewRegistry(Merge(Defaults(), override.Kinds)...)
}

// Merge overlays override onto base by kind name, keeping base order.
func Merge(base, override []types.KindSpec) []types.KindSpec {
	out := make([]types.KindSpec, len(base))
	copy(out, base)
	index := make(map[types.Kind]int, len(out))
	for i, k := range out {
		index[k.Name] = i
	}
	for _, k := range override {
		if i, ok := index[k.Name]; ok {
			out[i] = k
			continue
		}
		index[k.Name] = len(out)
		out = append(out, k)
	}
	return out
}
