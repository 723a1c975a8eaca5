package fertilizer

import (
	"errors"
	"fmt"

	"plantcare/internal/models"
)

// ScheduleKind identifies which application schedule applies to a reading.
type ScheduleKind int

const (
	ScheduleBalanced ScheduleKind = iota
	ScheduleNitrogenDeficient
	SchedulePhosphorusDeficient
	SchedulePotassiumDeficient
	ScheduleNitrogenExcess
)

// ScheduleKinds lists every kind.
var ScheduleKinds = [...]ScheduleKind{
	ScheduleNitrogenDeficient,
	SchedulePhosphorusDeficient,
	SchedulePotassiumDeficient,
	ScheduleNitrogenExcess,
	ScheduleBalanced,
}

func (k ScheduleKind) String() string {
	switch k {
	case ScheduleNitrogenDeficient:
		return "nitrogen_deficient"
	case SchedulePhosphorusDeficient:
		return "phosphorus_deficient"
	case SchedulePotassiumDeficient:
		return "potassium_deficient"
	case ScheduleNitrogenExcess:
		return "nitrogen_excess"
	case ScheduleBalanced:
		return "balanced"
	default:
		return fmt.Sprintf("ScheduleKind(%d)", int(k))
	}
}

// ParseScheduleKind is the inverse of ScheduleKind.String.
func ParseScheduleKind(s string) (ScheduleKind, error) {
	for _, k := range ScheduleKinds {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown schedule kind %q", s)
}

// deficiencySchedule maps a deficient nutrient onto its schedule.
func deficiencySchedule(n models.Nutrient) ScheduleKind {
	switch n {
	case models.Nitrogen:
		return ScheduleNitrogenDeficient
	case models.Phosphorus:
		return SchedulePhosphorusDeficient
	default:
		return SchedulePotassiumDeficient
	}
}

// ScheduleTemplates holds the prose application plan of every schedule kind.
type ScheduleTemplates struct {
	NitrogenDeficient   string `yaml:"nitrogen_deficient"`
	PhosphorusDeficient string `yaml:"phosphorus_deficient"`
	PotassiumDeficient  string `yaml:"potassium_deficient"`
	NitrogenExcess      string `yaml:"nitrogen_excess"`
	Balanced            string `yaml:"balanced"`
}

// For returns the template of kind.
func (s *ScheduleTemplates) For(kind ScheduleKind) string {
	return *s.slot(kind)
}

// Set replaces the template of kind.
func (s *ScheduleTemplates) Set(kind ScheduleKind, text string) {
	*s.slot(kind) = text
}

func (s *ScheduleTemplates) slot(kind ScheduleKind) *string {
	switch kind {
	case ScheduleNitrogenDeficient:
		return &s.NitrogenDeficient
	case SchedulePhosphorusDeficient:
		return &s.PhosphorusDeficient
	case SchedulePotassiumDeficient:
		return &s.PotassiumDeficient
	case ScheduleNitrogenExcess:
		return &s.NitrogenExcess
	case ScheduleBalanced:
		return &s.Balanced
	default:
		panic(fmt.Sprintf("fertilizer: unhandled schedule kind %d", int(kind)))
	}
}

// Validate rejects templates with an empty schedule.
func (s *ScheduleTemplates) Validate() error {
	var errs []error
	for _, k := range ScheduleKinds {
		if s.For(k) == "" {
			errs = append(errs, fmt.Errorf("schedule %s is empty", k))
		}
	}
	return errors.Join(errs...)
}
