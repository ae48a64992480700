package verify

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Field-mismatch severities scale with how identifying the field is.
const (
	sevRollMismatch   = 0.95
	sevCertIDMismatch = 0.90
	sevNameMismatch   = 0.70
	sevYearMismatch   = 0.60
	sevCourseMismatch = 0.55
	sevInvalidID      = 0.60

	nameAgreeRatio   = 0.80
	tamperFloor      = 0.50
	defaultSimBounds = 0.80
)

// Detector compares extracted fields and document artifacts against the
// matched record and golden template. Every rule is independent and all
// are evaluated; the emitted order is the detection order and is stable
// across runs.
type Detector struct{}

func NewDetector() *Detector { return &Detector{} }

func (d *Detector) Detect(certID string, doc *ExtractedDocument, matched *CertificateRecord, tpl *GoldenTemplate) []AnomalyFlag {
	flags := []AnomalyFlag{}

	if matched != nil && doc != nil {
		flags = append(flags, fieldMismatches(doc, matched)...)
	}

	if id := presentedIdentifier(certID, doc); id != "" && !identifierPattern(tpl).MatchString(id) {
		flags = append(flags, AnomalyFlag{
			Kind:     FlagInvalidIdentifier,
			Detail:   fmt.Sprintf("identifier %q does not match the institution's format", id),
			Severity: sevInvalidID,
		})
	}

	if tpl != nil && doc != nil {
		flags = append(flags, templateDeviations(doc, tpl)...)
	}

	if doc != nil {
		for _, sig := range doc.TamperSignals {
			sev := sig.Score
			if sev < tamperFloor {
				sev = tamperFloor
			}
			flags = append(flags, AnomalyFlag{
				Kind:     FlagGradeAltered,
				Detail:   sig.Detail,
				Severity: sev,
			})
		}
	}

	return flags
}

// fieldMismatches compares every field present in both the extraction
// and the record: exact for identifiers and year, fuzzy for name and
// course. Absence of a record produces no field flags at all.
func fieldMismatches(doc *ExtractedDocument, rec *CertificateRecord) []AnomalyFlag {
	var flags []AnomalyFlag
	mismatch := func(kindField string, sev float64, got, want string) {
		flags = append(flags, AnomalyFlag{
			Kind:     FlagFieldMismatch,
			Detail:   fmt.Sprintf("%s %q does not match record value %q", kindField, got, want),
			Severity: sev,
		})
	}

	if f, ok := doc.Field(FieldCertID); ok && normalize(f.Value) != normalize(rec.CertID) {
		mismatch("certificate id", sevCertIDMismatch, f.Value, rec.CertID)
	}
	if f, ok := doc.Field(FieldRoll); ok && normalize(f.Value) != normalize(rec.RollNumber) {
		mismatch("roll number", sevRollMismatch, f.Value, rec.RollNumber)
	}
	if f, ok := doc.Field(FieldName); ok && tokenSetRatio(f.Value, rec.StudentName) < nameAgreeRatio {
		mismatch("student name", sevNameMismatch, f.Value, rec.StudentName)
	}
	if f, ok := doc.Field(FieldCourse); ok && tokenSetRatio(f.Value, rec.Course) < courseAgreeRatio {
		mismatch("course", sevCourseMismatch, f.Value, rec.Course)
	}
	if f, ok := doc.Field(FieldYear); ok {
		if y, err := strconv.Atoi(strings.TrimSpace(f.Value)); err != nil || y != rec.YearOfPassing {
			mismatch("year of passing", sevYearMismatch, f.Value, strconv.Itoa(rec.YearOfPassing))
		}
	}
	return flags
}

func templateDeviations(doc *ExtractedDocument, tpl *GoldenTemplate) []AnomalyFlag {
	threshold := tpl.SimilarityThreshold
	if threshold <= 0 {
		threshold = defaultSimBounds
	}
	var flags []AnomalyFlag

	if doc.Artifacts.SignatureHash != "" && tpl.SignatureHash != "" {
		if sim := fingerprintSimilarity(doc.Artifacts.SignatureHash, tpl.SignatureHash); sim < threshold {
			flags = append(flags, AnomalyFlag{
				Kind:     FlagSignatureMismatch,
				Detail:   fmt.Sprintf("signature does not match golden template (similarity %.2f)", sim),
				Severity: 1 - sim,
			})
		}
	}
	if doc.Artifacts.SealHash != "" && tpl.SealHash != "" {
		if sim := fingerprintSimilarity(doc.Artifacts.SealHash, tpl.SealHash); sim < threshold {
			flags = append(flags, AnomalyFlag{
				Kind:     FlagLayoutDeviation,
				Detail:   fmt.Sprintf("seal does not match golden template (similarity %.2f)", sim),
				Severity: 1 - sim,
			})
		}
	}
	if doc.Artifacts.LayoutHash != "" && tpl.LayoutHash != "" {
		if sim := fingerprintSimilarity(doc.Artifacts.LayoutHash, tpl.LayoutHash); sim < threshold {
			flags = append(flags, AnomalyFlag{
				Kind:     FlagLayoutDeviation,
				Detail:   fmt.Sprintf("layout fingerprint deviates from golden template (similarity %.2f)", sim),
				Severity: 1 - sim,
			})
		}
	}
	return flags
}

func presentedIdentifier(certID string, doc *ExtractedDocument) string {
	if certID = strings.TrimSpace(certID); certID != "" {
		return certID
	}
	if doc == nil {
		return ""
	}
	if f, ok := doc.Field(FieldCertID); ok {
		return strings.TrimSpace(f.Value)
	}
	return ""
}

func identifierPattern(tpl *GoldenTemplate) *regexp.Regexp {
	if tpl != nil && tpl.IDPattern != "" {
		if re, err := regexp.Compile(tpl.IDPattern); err == nil {
			return re
		}
	}
	return idPattern
}
