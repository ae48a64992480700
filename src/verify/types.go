package verify

import "context"

// Verdict is the tri-state outcome of a verification. The string values
// are a stable contract consumed by presentation layers.
type Verdict string

const (
	VerdictVerified Verdict = "VERIFIED"
	VerdictSuspect  Verdict = "SUSPECT"
	VerdictNotFound Verdict = "NOT_FOUND"
)

// Enumerated extraction field keys. Fields with any other key are
// dropped at the adapter boundary, never stored.
const (
	FieldName   = "name"
	FieldRoll   = "roll"
	FieldCourse = "course"
	FieldYear   = "year"
	FieldCertID = "certId"
	FieldMarks  = "marks"
)

type ExtractedField struct {
	Name       string  `json:"name"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// TamperSignal is an artifact-level indicator reported by the
// extraction service (e.g. pixel-edge artifacts around the marks table).
type TamperSignal struct {
	Kind   string  `json:"kind"`
	Detail string  `json:"detail"`
	Score  float64 `json:"score"`
}

// DocumentArtifacts are perceptual fingerprints of the scanned document,
// hex encoded, compared against the institution's golden template.
type DocumentArtifacts struct {
	SealHash      string `json:"sealHash,omitempty"`
	SignatureHash string `json:"signatureHash,omitempty"`
	LayoutHash    string `json:"layoutHash,omitempty"`
}

type ExtractedDocument struct {
	Pages         int               `json:"pages"`
	Text          string            `json:"text"`
	Fields        []ExtractedField  `json:"fields"`
	Artifacts     DocumentArtifacts `json:"artifacts"`
	TamperSignals []TamperSignal    `json:"tamperSignals,omitempty"`
}

// Field returns the value and confidence for a known field key, with
// ok=false when the extractor did not produce the field.
func (d *ExtractedDocument) Field(name string) (ExtractedField, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return ExtractedField{}, false
}

// MeanConfidence averages the per-field extraction confidences.
// A document with no fields reads as fully confident so that
// identifier-only verifications carry no extraction penalty.
func (d *ExtractedDocument) MeanConfidence() float64 {
	if d == nil || len(d.Fields) == 0 {
		return 1.0
	}
	var sum float64
	for _, f := range d.Fields {
		sum += f.Confidence
	}
	return sum / float64(len(d.Fields))
}

// CertificateRecord is the authoritative view of an issued certificate.
// JSON names mirror the record shape institutions publish.
type CertificateRecord struct {
	CertID        string `json:"certId"`
	InstitutionID string `json:"institutionId"`
	StudentName   string `json:"studentName"`
	RollNumber    string `json:"rollNumber"`
	Course        string `json:"course"`
	YearOfPassing int    `json:"yearOfPassing"`
	Marks         string `json:"marks"`
	IssueDate     string `json:"issueDate"`
	ContentHash   string `json:"certHash"`
	TemplateID    string `json:"templateId"`
}

// GoldenTemplate is an institution's reference fingerprint set.
type GoldenTemplate struct {
	TemplateID          string
	InstitutionID       string
	SealHash            string
	SignatureHash       string
	LayoutHash          string
	SimilarityThreshold float64 // below this, a mismatch flag is raised
	IDPattern           string  // overrides the default identifier pattern
}

type FlagKind string

const (
	FlagSignatureMismatch FlagKind = "signature_mismatch"
	FlagGradeAltered      FlagKind = "grade_altered"
	FlagLayoutDeviation   FlagKind = "layout_deviation"
	FlagInvalidIdentifier FlagKind = "invalid_identifier_format"
	FlagFieldMismatch     FlagKind = "field_mismatch"
)

type AnomalyFlag struct {
	Kind     FlagKind `json:"type"`
	Detail   string   `json:"detail"`
	Severity float64  `json:"severity"`
}

type LedgerStatus struct {
	Anchored    bool   `json:"exists"`
	TxReference string `json:"txHash,omitempty"`
}

type MatchMethod string

const (
	MatchExactID    MatchMethod = "EXACT_ID"
	MatchFuzzyField MatchMethod = "FUZZY_FIELDS"
	MatchNone       MatchMethod = "NONE"
)

type MatchResult struct {
	Record *CertificateRecord
	Score  float64
	Method MatchMethod
	// Ambiguous marks a tie between two top candidates; the record is
	// withheld and a field_mismatch flag is raised by the pipeline.
	Ambiguous bool
}

// Input is one verification request: either a raw document or a bare
// certificate identifier (both is allowed, identifier wins for lookup).
type Input struct {
	CertID          string
	InstitutionHint string
	DocumentBytes   []byte
	MimeType        string
}

// VerificationResult is the sole pipeline output. Field names and enum
// values are a stable contract; do not change shape without a version
// marker.
type VerificationResult struct {
	Verdict         Verdict            `json:"result"`
	ConfidenceScore int                `json:"confidenceScore"`
	MatchedRecord   *CertificateRecord `json:"matchedRecord"`
	Flags           []AnomalyFlag      `json:"aiFlags"`
	Ledger          LedgerStatus       `json:"blockchain"`
	Extracted       *ExtractedDocument `json:"ocrData,omitempty"`
	Notes           []string           `json:"notes,omitempty"`
}

// Collaborator contracts. The pipeline only consumes these; concrete
// implementations live next to their backing stores.

type RecordStore interface {
	// Lookup resolves one certificate by identifier. institutionID may
	// be empty when the caller has no institution hint.
	Lookup(ctx context.Context, institutionID, certID string) (*CertificateRecord, error)
	// Candidates returns the fuzzy-match candidate set, restricted to
	// the institution when one is claimed.
	Candidates(ctx context.Context, institutionID string) ([]CertificateRecord, error)
}

type TemplateRegistry interface {
	Template(ctx context.Context, institutionID, templateID string) (*GoldenTemplate, error)
}

type LedgerClient interface {
	CheckAnchored(ctx context.Context, contentHash string) (LedgerStatus, error)
}

type Extractor interface {
	Extract(ctx context.Context, document []byte, mimeType string) (*ExtractedDocument, error)
}
