package inference

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nyashahama/workplace-wellbeing-backend/internal/features"
)

// Manifest is a fitted one-hot/standardise column transform plus a linear
// classifier, exported from the training pipeline as JSON or YAML.
//
// JSON shape:
//
//	{
//	  "columns":      ["Age", "Gender", ...],
//	  "numeric":      {"Age": {"mean": 32.1, "scale": 7.3}},
//	  "categories":   {"Gender": ["Female", "Male", ...], ...},
//	  "classes":      ["No", "Yes"],
//	  "coefficients": [[0.12, -0.4, ...]],
//	  "intercept":    [-0.05]
//	}
//
// Binary models carry one coefficient row (the score of classes[1]);
// multi-class models carry one row per class.
type Manifest struct {
	Columns      []string            `json:"columns" yaml:"columns"`
	Numeric      map[string]Scaler   `json:"numeric" yaml:"numeric"`
	Categories   map[string][]string `json:"categories" yaml:"categories"`
	Classes      []string            `json:"classes" yaml:"classes"`
	Coefficients [][]float64         `json:"coefficients" yaml:"coefficients"`
	Intercept    []float64           `json:"intercept" yaml:"intercept"`
}

// Scaler standardises one numeric column: (x - Mean) / Scale.
type Scaler struct {
	Mean  float64 `json:"mean" yaml:"mean"`
	Scale float64 `json:"scale" yaml:"scale"`
}

// LoadManifest reads a manifest from path. Files ending in .yaml or .yml are
// parsed as YAML, everything else as JSON. Unknown fields are rejected.
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("inference: read manifest: %w", err)
	}

	var m Manifest
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&m); err != nil {
			return Manifest{}, fmt.Errorf("inference: parse manifest %s: %w", path, err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
			return Manifest{}, fmt.Errorf("inference: parse manifest %s: %w", path, err)
		}
	}

	if err := m.Validate(); err != nil {
		return Manifest{}, fmt.Errorf("inference: manifest %s: %w", path, err)
	}
	return m, nil
}

// Contract returns the column contract the manifest declares.
func (m Manifest) Contract() (features.Contract, error) {
	var numeric []string
	for _, c := range m.Columns {
		if _, ok := m.Numeric[c]; ok {
			numeric = append(numeric, c)
		}
	}
	return features.NewContract(m.Columns, numeric)
}

// Width is the length of the transformed feature vector.
func (m Manifest) Width() int {
	w := 0
	for _, c := range m.Columns {
		if _, ok := m.Numeric[c]; ok {
			w++
			continue
		}
		w += len(m.Categories[c])
	}
	return w
}

// Validate checks that the transform covers every column exactly once and
// that the classifier's dimensions match it. Call once at load time.
func (m Manifest) Validate() error {
	if _, err := m.Contract(); err != nil {
		return err
	}

	for _, c := range m.Columns {
		s, num := m.Numeric[c]
		cats, cat := m.Categories[c]
		switch {
		case num && cat:
			return fmt.Errorf("column %q is both numeric and categorical", c)
		case !num && !cat:
			return fmt.Errorf("column %q has no transform", c)
		case num && s.Scale == 0:
			return fmt.Errorf("numeric column %q has zero scale", c)
		case cat && len(cats) == 0:
			return fmt.Errorf("categorical column %q has no categories", c)
		}
	}
	for c := range m.Numeric {
		if !m.hasColumn(c) {
			return fmt.Errorf("numeric transform for unknown column %q", c)
		}
	}
	for c := range m.Categories {
		if !m.hasColumn(c) {
			return fmt.Errorf("categorical transform for unknown column %q", c)
		}
	}

	if len(m.Classes) < 2 {
		return fmt.Errorf("need at least 2 classes, got %d", len(m.Classes))
	}
	wantRows := len(m.Classes)
	if wantRows == 2 {
		wantRows = 1
	}
	if len(m.Coefficients) != wantRows {
		return fmt.Errorf("coefficients: %d rows for %d classes, want %d", len(m.Coefficients), len(m.Classes), wantRows)
	}
	if len(m.Intercept) != wantRows {
		return fmt.Errorf("intercept: %d values, want %d", len(m.Intercept), wantRows)
	}
	width := m.Width()
	for i, row := range m.Coefficients {
		if len(row) != width {
			return fmt.Errorf("coefficients[%d]: %d weights, transform width is %d", i, len(row), width)
		}
	}
	return nil
}

func (m Manifest) hasColumn(c string) bool {
	for _, col := range m.Columns {
		if col == c {
			return true
		}
	}
	return false
}
