package mockdata

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"
)

// PatientData is the generated record behind an active profile.
type PatientData struct {
	InsuranceNumber string     `json:"insurance_number"`
	Name            string     `json:"name"`
	BirthDate       string     `json:"birth_date"`
	Address         string     `json:"address"`
	Phone           string     `json:"phone"`
	Allergies       string     `json:"allergies"`
	PreChecks       []PreCheck `json:"pre_checks"`
	Conditions      []string   `json:"conditions"`
	Medications     []string   `json:"medications"`
}

// LabValue is one jittered lab result. Value is formatted with one decimal.
type LabValue struct {
	Param string `json:"param"`
	Value string `json:"value"`
	Unit  string `json:"unit"`
	Ref   string `json:"ref"`
	Date  string `json:"date"`
}

// LabData holds both lab panels plus the static clinical note.
type LabData struct {
	Current []LabValue `json:"current"`
	Older   []LabValue `json:"older"`
	Note    string     `json:"note"`
}

// Generator draws random records from Pools. It is safe for concurrent use.
type Generator struct {
	mu    sync.Mutex
	rng   *rand.Rand
	pools *Pools
}

// NewGenerator returns a generator over pools. If seed is 0 a time-based
// seed is chosen.
func NewGenerator(pools *Pools, seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{
		rng:   rand.New(rand.NewSource(seed)),
		pools: pools,
	}
}

// Pools returns the pools the generator draws from.
func (g *Generator) Pools() *Pools {
	return g.pools
}

func (g *Generator) intn(n int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Intn(n)
}

func (g *Generator) jitter() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Float64()*2 - 1
}

// GeneratePatient produces a patient for the given insurance number. The
// number itself does not influence the draw.
func (g *Generator) GeneratePatient(insuranceNumber string) PatientData {
	p := g.pools
	tmpl := p.Patients[g.intn(len(p.Patients))]

	preChecks := make([]PreCheck, len(p.PreChecks))
	copy(preChecks, p.PreChecks)

	return PatientData{
		InsuranceNumber: insuranceNumber,
		Name:            tmpl.Name,
		BirthDate:       tmpl.BirthDate,
		Address:         tmpl.Address,
		Phone:           tmpl.Phone,
		Allergies:       p.Allergies[g.intn(len(p.Allergies))],
		PreChecks:       preChecks,
		Conditions:      cloneStrings(p.Conditions[g.intn(len(p.Conditions))]),
		Medications:     cloneStrings(p.Medications[g.intn(len(p.Medications))]),
	}
}

// GenerateLabs produces both lab panels, each value shifted by a uniform
// offset in [-1, 1).
func (g *Generator) GenerateLabs() LabData {
	return LabData{
		Current: g.randomize(g.pools.Labs.Current),
		Older:   g.randomize(g.pools.Labs.Older),
		Note:    g.pools.Labs.Note,
	}
}

func (g *Generator) randomize(panel LabPanel) []LabValue {
	out := make([]LabValue, 0, len(panel.Values))
	for _, b := range panel.Values {
		v := math.Round((b.Value+g.jitter())*10) / 10
		out = append(out, LabValue{
			Param: b.Param,
			Value: fmt.Sprintf("%.1f", v),
			Unit:  b.Unit,
			Ref:   b.Ref,
			Date:  panel.Date,
		})
	}
	return out
}

// PickScenario returns a random dictation scenario.
func (g *Generator) PickScenario() Scenario {
	return g.pools.Scenarios[g.intn(len(g.pools.Scenarios))]
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
