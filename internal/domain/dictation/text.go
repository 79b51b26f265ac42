package dictation

import (
	"strings"
	"text/template"

	"github.com/ehr/medassist/internal/platform/mockdata"
)

var dictationTmpl = template.Must(template.New("dictation").Parse(
	`Patient klagt über {{.Scenario.Complaint}}. Diagnose: {{.Scenario.Diagnosis}}. ` +
		`Versicherungsnummer: {{.InsuranceNumber}}. Medikamenteneinnahme: {{.Scenario.Medication}}.`))

var letterTmpl = template.Must(template.New("letter").Parse(`Musterklinik Musterstadt
Musterstraße 1
12345 Musterstadt

An:
Dr. med. Mustermann
Allgemeinmedizin

Patient: {{.Patient.Name}}
Geburtsdatum: {{.Patient.BirthDate}}
Versicherungsnummer: {{.InsuranceNumber}}
Allergien: {{.Patient.Allergies}}

Sehr geehrte Damen und Herren,

Anamnese: Der Patient berichtete, dass er unter {{.Scenario.Complaint}} leidet.

Diagnose: {{.Scenario.Diagnosis}}.

Empfehlung: {{.Scenario.Recommendation}}

Medikamenteneinnahme: {{.Scenario.Medication}}.

Mit freundlichen Grüßen,
Dr. Mustermann`))

type textData struct {
	InsuranceNumber string
	Patient         mockdata.PatientData
	Scenario        mockdata.Scenario
}

// DictationText renders the spoken transcript for a scenario.
func DictationText(insuranceNumber string, sc mockdata.Scenario) (string, error) {
	var b strings.Builder
	err := dictationTmpl.Execute(&b, textData{InsuranceNumber: insuranceNumber, Scenario: sc})
	return b.String(), err
}

// LetterText renders the formatted physician's letter.
func LetterText(insuranceNumber string, patient mockdata.PatientData, sc mockdata.Scenario) (string, error) {
	var b strings.Builder
	err := letterTmpl.Execute(&b, textData{InsuranceNumber: insuranceNumber, Patient: patient, Scenario: sc})
	return b.String(), err
}
