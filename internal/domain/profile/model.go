package profile

import (
	"errors"
	"regexp"
	"sort"
	"time"

	"github.com/ehr/medassist/internal/platform/mockdata"
)

var (
	// ErrInvalidInsuranceNumber is returned for identifiers that are not
	// exactly nine ASCII digits.
	ErrInvalidInsuranceNumber = errors.New("insurance number must contain exactly 9 digits")
	// ErrNoActiveProfile is returned when an operation needs a profile and
	// none has been activated yet.
	ErrNoActiveProfile = errors.New("no active profile")
)

var insuranceNumberPattern = regexp.MustCompile(`^[0-9]{9}$`)

// ValidateInsuranceNumber reports whether s is a well-formed insurance number.
func ValidateInsuranceNumber(s string) error {
	if !insuranceNumberPattern.MatchString(s) {
		return ErrInvalidInsuranceNumber
	}
	return nil
}

// Profile is the active identity that scopes the visible history.
type Profile struct {
	Name            string `json:"name"`
	InsuranceNumber string `json:"insurance_number"`
}

// Session is everything generated when a profile is activated. It is never
// mutated after activation.
type Session struct {
	Profile     Profile              `json:"profile"`
	Patient     mockdata.PatientData `json:"patient"`
	Labs        mockdata.LabData     `json:"labs"`
	ActivatedAt time.Time            `json:"activated_at"`
}

const preCheckDateLayout = "02.01.2006"

// SortedPreChecks returns the patient's pre-checks, most recent first.
// Entries with unparseable dates sort last.
func (s *Session) SortedPreChecks() []mockdata.PreCheck {
	out := make([]mockdata.PreCheck, len(s.Patient.PreChecks))
	copy(out, s.Patient.PreChecks)
	sort.SliceStable(out, func(i, j int) bool {
		a, errA := time.Parse(preCheckDateLayout, out[i].Date)
		b, errB := time.Parse(preCheckDateLayout, out[j].Date)
		switch {
		case errA != nil:
			return false
		case errB != nil:
			return true
		}
		return a.After(b)
	})
	return out
}
