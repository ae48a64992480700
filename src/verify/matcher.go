package verify

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// Certificate identifiers follow institution-code/year/program/serial,
// e.g. "VSSUT/2020/BTECH/12345". Institutions may override the anchored
// pattern through their golden template.
var (
	idPattern     = regexp.MustCompile(`^[A-Z]{2,10}/\d{4}/[A-Z0-9]{2,10}/\d{3,8}$`)
	idScanPattern = regexp.MustCompile(`[A-Z]{2,10}/\d{4}/[A-Z0-9]{2,10}/\d{3,8}`)
)

// Fuzzy field weights. Roll number is least ambiguous so it dominates;
// name is OCR-noisy and compared as a token set; course and year count
// as binary agreement.
const (
	weightRoll   = 0.40
	weightName   = 0.30
	weightCourse = 0.15
	weightYear   = 0.15

	courseAgreeRatio = 0.75
)

type Matcher struct {
	store     RecordStore
	threshold float64
}

func NewMatcher(store RecordStore, threshold float64) *Matcher {
	if threshold <= 0 {
		threshold = 0.6
	}
	return &Matcher{store: store, threshold: threshold}
}

// Match resolves the input to at most one record. A supplied identifier
// is tried first, then an identifier scraped from OCR text, then a
// weighted fuzzy comparison over the institution's candidate set.
// Record Store failures propagate; retry policy belongs to the caller.
func (m *Matcher) Match(ctx context.Context, in Input, doc *ExtractedDocument) (MatchResult, error) {
	certID := strings.TrimSpace(in.CertID)
	if certID == "" && doc != nil {
		certID = extractIdentifier(doc)
	}

	if certID != "" && idPattern.MatchString(certID) {
		rec, err := m.store.Lookup(ctx, in.InstitutionHint, certID)
		switch {
		case err == nil:
			return MatchResult{Record: rec, Score: 1.0, Method: MatchExactID}, nil
		case errors.Is(err, ErrNoRecord):
			// fall through to fuzzy matching on the document
		default:
			return MatchResult{Method: MatchNone}, depErr("record_store", err)
		}
	}

	if doc == nil {
		return MatchResult{Method: MatchNone}, nil
	}
	return m.fuzzyMatch(ctx, in.InstitutionHint, doc)
}

func (m *Matcher) fuzzyMatch(ctx context.Context, institution string, doc *ExtractedDocument) (MatchResult, error) {
	candidates, err := m.store.Candidates(ctx, institution)
	if err != nil {
		return MatchResult{Method: MatchNone}, depErr("record_store", err)
	}

	var (
		best       *CertificateRecord
		bestScore  float64
		secondBest float64
	)
	for i := range candidates {
		score := fieldScore(doc, &candidates[i])
		if score > bestScore {
			secondBest = bestScore
			bestScore = score
			best = &candidates[i]
		} else if score > secondBest {
			secondBest = score
		}
	}

	if best == nil || bestScore < m.threshold {
		return MatchResult{Method: MatchNone}, nil
	}
	if bestScore-secondBest < 1e-9 {
		// Two records tie at the top score. Ambiguous matches are never
		// silently accepted.
		return MatchResult{Method: MatchNone, Ambiguous: true}, nil
	}
	return MatchResult{Record: best, Score: bestScore, Method: MatchFuzzyField}, nil
}

func fieldScore(doc *ExtractedDocument, rec *CertificateRecord) float64 {
	var score float64
	if f, ok := doc.Field(FieldRoll); ok && normalize(f.Value) == normalize(rec.RollNumber) {
		score += weightRoll
	}
	if f, ok := doc.Field(FieldName); ok {
		score += weightName * tokenSetRatio(f.Value, rec.StudentName)
	}
	if f, ok := doc.Field(FieldCourse); ok && tokenSetRatio(f.Value, rec.Course) >= courseAgreeRatio {
		score += weightCourse
	}
	if f, ok := doc.Field(FieldYear); ok {
		if y, err := strconv.Atoi(strings.TrimSpace(f.Value)); err == nil && y == rec.YearOfPassing {
			score += weightYear
		}
	}
	return score
}

// extractIdentifier pulls the identifier-like field from the extraction
// output, preferring the typed certId field over a raw-text scan.
func extractIdentifier(doc *ExtractedDocument) string {
	if f, ok := doc.Field(FieldCertID); ok {
		return strings.TrimSpace(f.Value)
	}
	return idScanPattern.FindString(doc.Text)
}
