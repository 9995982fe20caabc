package carevault

import (
	"strconv"
	"strings"
)

// Diagnosis categories shown to doctors.
const (
	CategoryRespiratory    = "Respiratory Condition"
	CategoryMetabolic      = "Metabolic Condition"
	CategoryCardiovascular = "Cardiovascular Condition"
	CategoryInjury         = "Injury/Trauma"
	CategoryGeneral        = "General Medical Condition"
)

type diagnosisCategory struct {
	label    string
	keywords []string
}

// Checked in order; the first category with a matching keyword wins.
var diagnosisCategories = []diagnosisCategory{
	{CategoryRespiratory, []string{"fever", "flu", "cold", "cough"}},
	{CategoryMetabolic, []string{"diabetes", "sugar", "insulin"}},
	{CategoryCardiovascular, []string{"heart", "cardiac", "blood pressure"}},
	{CategoryInjury, []string{"fracture", "injury", "wound"}},
}

// AnonymizeName returns the pseudonym shown in place of a patient's name. It depends
// only on the record id.
func AnonymizeName(patientID int64) string {
	return AnonymousNamePrefix + strconv.FormatInt(patientID, 10)
}

// MaskContact hides all but the last four characters of a contact. Contacts shorter
// than four characters are fully redacted.
func MaskContact(contact string) string {
	runes := []rune(contact)
	if len(runes) < 4 {
		return RedactedContact
	}
	return ContactMaskPrefix + string(runes[len(runes)-4:])
}

// CategorizeDiagnosis reduces a plaintext diagnosis to a coarse category using a
// case-insensitive substring match.
func CategorizeDiagnosis(diagnosis string) string {
	if diagnosis == "" {
		return RestrictedMarker
	}

	lower := strings.ToLower(diagnosis)
	for _, category := range diagnosisCategories {
		for _, keyword := range category.keywords {
			if strings.Contains(lower, keyword) {
				return category.label
			}
		}
	}
	return CategoryGeneral
}
