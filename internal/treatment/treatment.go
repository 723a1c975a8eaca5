// Package treatment is the knowledge base of disease descriptions and treatments,
// keyed by the class labels the classifier emits.
package treatment

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"plantcare/internal/models"
)

//go:embed data/treatments.yaml
var embeddedTreatments []byte

// KnowledgeBase is an immutable label-indexed set of treatments.
type KnowledgeBase struct {
	order   []string
	entries map[string]models.Treatment
}

type document struct {
	Treatments []models.Treatment `yaml:"treatments"`
}

// Default loads the knowledge base compiled into the binary.
func Default() (*KnowledgeBase, error) {
	return Load(bytes.NewReader(embeddedTreatments))
}

// Load decodes a treatments document. Labels must be unique and non-empty.
func Load(r io.Reader) (*KnowledgeBase, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode treatments: %w", err)
	}

	kb := &KnowledgeBase{
		order:   make([]string, 0, len(doc.Treatments)),
		entries: make(map[string]models.Treatment, len(doc.Treatments)),
	}
	for i, t := range doc.Treatments {
		if t.Label == "" {
			return nil, fmt.Errorf("treatment %d has no label", i)
		}
		if _, dup := kb.entries[t.Label]; dup {
			return nil, fmt.Errorf("duplicate treatment label %q", t.Label)
		}
		kb.order = append(kb.order, t.Label)
		kb.entries[t.Label] = t
	}
	return kb, nil
}

// Lookup returns the treatment of label.
func (kb *KnowledgeBase) Lookup(label string) (models.Treatment, error) {
	t, ok := kb.entries[label]
	if !ok {
		return models.Treatment{}, &models.NotFoundError{Resource: "treatment", ID: label}
	}
	return t, nil
}

// Labels returns every label in document order, which is the classifier's training order.
func (kb *KnowledgeBase) Labels() []string {
	out := make([]string, len(kb.order))
	copy(out, kb.order)
	return out
}

// Len is the number of known labels.
func (kb *KnowledgeBase) Len() int {
	return len(kb.order)
}
