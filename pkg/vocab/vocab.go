// Package vocab stores the voice command templates the recognizer matches
// words against.
package vocab

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/itohio/gokws/pkg/dtw"
)

// ErrInvalid is returned when templates cannot be used with the pipeline.
var ErrInvalid = errors.New("invalid vocabulary")

// Template is one voice command: a label and its feature vector sequence.
type Template struct {
	Label   string      `yaml:"label"`
	Vectors [][]float32 `yaml:"vectors,flow"`
}

// Vocabulary is the read-only set of templates.
type Vocabulary struct {
	Templates []Template `yaml:"templates"`
}

// Load reads a vocabulary from a YAML file on fs.
func Load(fs afero.Fs, filename string) (*Vocabulary, error) {
	data, err := afero.ReadFile(fs, filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read vocabulary file: %w", err)
	}

	v := &Vocabulary{}
	if err := yaml.Unmarshal(data, v); err != nil {
		return nil, fmt.Errorf("failed to parse vocabulary file: %w", err)
	}

	return v, nil
}

// Save writes the vocabulary as YAML to fs.
func (v *Vocabulary) Save(fs afero.Fs, filename string) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal vocabulary: %w", err)
	}

	if err := afero.WriteFile(fs, filename, data, os.FileMode(0644)); err != nil {
		return fmt.Errorf("failed to write vocabulary file: %w", err)
	}

	return nil
}

// Add appends a template holding a copy of vectors.
func (v *Vocabulary) Add(label string, vectors [][]float32) {
	t := Template{
		Label:   label,
		Vectors: make([][]float32, len(vectors)),
	}
	for i, fv := range vectors {
		t.Vectors[i] = append([]float32(nil), fv...)
	}
	v.Templates = append(v.Templates, t)
}

// Len returns the number of templates.
func (v *Vocabulary) Len() int {
	return len(v.Templates)
}

// Labels returns the template labels in order.
func (v *Vocabulary) Labels() []string {
	labels := make([]string, len(v.Templates))
	for i, t := range v.Templates {
		labels[i] = t.Label
	}
	return labels
}

// Validate checks that every template is non-empty, fits the matcher and
// has vectors of dimension dim.
func (v *Vocabulary) Validate(dim, maxSize int) error {
	for i, t := range v.Templates {
		if t.Label == "" {
			return fmt.Errorf("%w: template %d has no label", ErrInvalid, i)
		}
		if len(t.Vectors) == 0 {
			return fmt.Errorf("%w: template %q has no feature vectors", ErrInvalid, t.Label)
		}
		if len(t.Vectors) > maxSize {
			return fmt.Errorf("%w: template %q has %d feature vectors, max %d", ErrInvalid, t.Label, len(t.Vectors), maxSize)
		}
		for j, fv := range t.Vectors {
			if len(fv) != dim {
				return fmt.Errorf("%w: template %q vector %d has dimension %d, expected %d", ErrInvalid, t.Label, j, len(fv), dim)
			}
		}
	}
	return nil
}

// MatcherTemplates returns the templates in the form the matcher consumes.
func (v *Vocabulary) MatcherTemplates() []dtw.Template {
	out := make([]dtw.Template, len(v.Templates))
	for i, t := range v.Templates {
		out[i] = dtw.Template{Label: t.Label, Vectors: t.Vectors}
	}
	return out
}
