package fertilizer

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"plantcare/internal/models"
)

//go:embed data/reference.yaml
var embeddedReference []byte

// ReferenceData is the immutable agronomic dataset the engine evaluates against.
// It is loaded once at startup and only read afterwards.
type ReferenceData struct {
	Bands     ThresholdTable         `yaml:"bands"`
	Products  ProductCatalogue       `yaml:"products"`
	Schedules ScheduleTemplates      `yaml:"schedules"`
	Catalogue []models.CatalogueItem `yaml:"catalogue"`
}

// DefaultReference parses the reference data compiled into the binary.
func DefaultReference() (*ReferenceData, error) {
	return LoadReference(bytes.NewReader(embeddedReference))
}

// MustDefaultReference is DefaultReference for callers that cannot proceed without it.
func MustDefaultReference() *ReferenceData {
	ref, err := DefaultReference()
	if err != nil {
		panic(fmt.Sprintf("embedded reference data is invalid: %v", err))
	}
	return ref
}

// LoadReferenceFile reads reference data from a YAML file.
func LoadReferenceFile(path string) (*ReferenceData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open reference file: %w", err)
	}
	defer f.Close()
	return LoadReference(f)
}

// LoadReference decodes and validates reference data.
func LoadReference(r io.Reader) (*ReferenceData, error) {
	var ref ReferenceData
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&ref); err != nil {
		return nil, fmt.Errorf("failed to decode reference data: %w", err)
	}
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	return &ref, nil
}

// Validate enforces the invariants the engine relies on.
func (r *ReferenceData) Validate() error {
	var errs []error

	if err := r.Bands.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := r.Products.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := r.Schedules.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
