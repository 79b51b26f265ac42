// Package mockdata generates the randomized patient, lab and dictation data
// shown by the demo. Every value comes from fixed pools; nothing is real.
package mockdata

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed pools.yaml
var defaultPoolsYAML string

// PatientTemplate is one row of the patient pool. Name, birth date, address
// and phone are always picked together.
type PatientTemplate struct {
	Name      string `yaml:"name" json:"name"`
	BirthDate string `yaml:"birth_date" json:"birth_date"`
	Address   string `yaml:"address" json:"address"`
	Phone     string `yaml:"phone" json:"phone"`
}

// PreCheck is a previous examination shown in the patient record.
type PreCheck struct {
	Test string `yaml:"test" json:"test"`
	Date string `yaml:"date" json:"date"`
}

// LabBaseline is the unjittered value of one lab parameter.
type LabBaseline struct {
	Param string  `yaml:"param"`
	Value float64 `yaml:"value"`
	Unit  string  `yaml:"unit"`
	Ref   string  `yaml:"ref"`
}

// LabPanel groups baselines measured on the same date.
type LabPanel struct {
	Date   string        `yaml:"date"`
	Values []LabBaseline `yaml:"values"`
}

// LabPools holds the current and older lab panels.
type LabPools struct {
	Note    string   `yaml:"note"`
	Current LabPanel `yaml:"current"`
	Older   LabPanel `yaml:"older"`
}

// Scenario is one canned clinical case used to synthesize a dictation and
// its letter.
type Scenario struct {
	Complaint      string `yaml:"complaint" json:"complaint"`
	Diagnosis      string `yaml:"diagnosis" json:"diagnosis"`
	Recommendation string `yaml:"recommendation" json:"recommendation"`
	Medication     string `yaml:"medication" json:"medication"`
}

// Pools is the complete generator input.
type Pools struct {
	Patients    []PatientTemplate `yaml:"patients"`
	Allergies   []string          `yaml:"allergies"`
	PreChecks   []PreCheck        `yaml:"pre_checks"`
	Conditions  [][]string        `yaml:"conditions"`
	Medications [][]string        `yaml:"medications"`
	Labs        LabPools          `yaml:"labs"`
	Scenarios   []Scenario        `yaml:"scenarios"`
}

// DefaultPools parses the pools compiled into the binary.
func DefaultPools() (*Pools, error) {
	return ParsePools(strings.NewReader(defaultPoolsYAML))
}

// LoadPools reads pools from a YAML file on disk. An empty path returns the
// built-in pools.
func LoadPools(path string) (*Pools, error) {
	if path == "" {
		return DefaultPools()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mockdata: open pools file %q: %w", path, err)
	}
	defer f.Close()

	p, err := ParsePools(f)
	if err != nil {
		return nil, fmt.Errorf("mockdata: parse pools file %q: %w", path, err)
	}
	return p, nil
}

// ParsePools decodes and validates pools from r. Unknown keys are rejected.
func ParsePools(r io.Reader) (*Pools, error) {
	var p Pools
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("mockdata: decode pools yaml: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks that every pool the generator draws from is non-empty.
func (p *Pools) Validate() error {
	var errs []error
	if len(p.Patients) == 0 {
		errs = append(errs, errors.New("patients pool is empty"))
	}
	if len(p.Allergies) == 0 {
		errs = append(errs, errors.New("allergies pool is empty"))
	}
	if len(p.Conditions) == 0 {
		errs = append(errs, errors.New("conditions pool is empty"))
	}
	if len(p.Medications) == 0 {
		errs = append(errs, errors.New("medications pool is empty"))
	}
	if len(p.Scenarios) == 0 {
		errs = append(errs, errors.New("scenarios pool is empty"))
	}
	if len(p.Labs.Current.Values) == 0 {
		errs = append(errs, errors.New("current lab panel is empty"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("mockdata: invalid pools: %w", errors.Join(errs...))
	}
	return nil
}

// WriteYAML encodes the pools as YAML.
func (p *Pools) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("mockdata: encode pools yaml: %w", err)
	}
	return enc.Close()
}
