package hemodynamics

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// TuningStore manages named tuning profiles stored as <dir>/<name>.yaml.
type TuningStore struct {
	dir string
}

func NewTuningStore(dir string) *TuningStore {
	return &TuningStore{dir: dir}
}

func (s *TuningStore) path(name string) string {
	return filepath.Join(s.dir, name+".yaml")
}

// LoadTuning loads the named profile. A missing file yields DefaultTuning.
func (s *TuningStore) LoadTuning(name string) (Tuning, error) {
	if err := validProfileName(name); err != nil {
		return Tuning{}, err
	}
	t, err := LoadTuningFile(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultTuning(), nil
	}
	return t, err
}

// SaveTuning validates t and writes it under name.
func (s *TuningStore) SaveTuning(name string, t Tuning) error {
	if err := validProfileName(name); err != nil {
		return err
	}
	if err := t.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create tuning directory: %w", err)
	}
	data, err := MarshalTuning(t)
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path(name), data, 0644); err != nil {
		return fmt.Errorf("failed to write tuning file: %w", err)
	}
	return nil
}

// List returns the stored profile names, sorted.
func (s *TuningStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read tuning directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".yaml" {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names, nil
}

func validProfileName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: bad profile name %q", ErrInvalidTuning, name)
	}
	return nil
}

// LoadTuningFile reads a YAML or JSON tuning file. Fields the file leaves out
// keep their DefaultTuning values, so a file may override a single weight.
func LoadTuningFile(path string) (Tuning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, fmt.Errorf("failed to read tuning file: %w", err)
	}
	return ParseTuning(data, filepath.Ext(path) == ".json")
}

// ParseTuning overlays data on DefaultTuning and validates the result.
func ParseTuning(data []byte, isJSON bool) (Tuning, error) {
	t := DefaultTuning()
	if isJSON {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&t); err != nil {
			return Tuning{}, fmt.Errorf("%w: %v", ErrInvalidTuning, err)
		}
	} else if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&t); err != nil {
			return Tuning{}, fmt.Errorf("%w: %v", ErrInvalidTuning, err)
		}
	}
	if err := t.Validate(); err != nil {
		return Tuning{}, err
	}
	return t, nil
}

// MarshalTuning renders t as YAML.
func MarshalTuning(t Tuning) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(t); err != nil {
		return nil, fmt.Errorf("failed to encode tuning: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode tuning: %w", err)
	}
	return buf.Bytes(), nil
}
