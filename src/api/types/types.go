package types

import "time"

// Institutions registered with the verification network
type Institution struct {
	ID           string `gorm:"primaryKey;size:64"`
	Name         string `gorm:"size:128;not null"`
	Code         string `gorm:"size:32;unique;not null"` // e.g. "VSSUT", leads the certificate id
	ContactEmail string `gorm:"size:256"`
	Status       string `gorm:"size:32;default:pending"` // pending|approved
	CreatedAt    time.Time
}

// Issued certificates, the authoritative record store. Immutable once
// issued; the pipeline only ever reads them.
type Certificate struct {
	ID            uint64 `gorm:"primaryKey"`
	InstitutionID string `gorm:"size:64;index;not null"`
	CertID        string `gorm:"size:128;uniqueIndex;not null"` // INST/YEAR/PROG/SERIAL
	StudentName   string `gorm:"size:128;not null"`
	RollNumber    string `gorm:"size:64;index;not null"`
	Course        string `gorm:"size:128"`
	YearOfPassing uint16 `gorm:"index"`
	Marks         string `gorm:"size:32"`
	IssueDate     string `gorm:"size:32"`
	ContentHash   string `gorm:"size:128;index"` // "SHA256:<hex>"
	TemplateID    string `gorm:"size:64"`
	CreatedAt     time.Time
}

// Golden templates, one fingerprint set per institution batch
type Template struct {
	TemplateID          string  `gorm:"primaryKey;size:64"`
	InstitutionID       string  `gorm:"size:64;index;not null"`
	SealHash            string  `gorm:"size:64"`
	SignatureHash       string  `gorm:"size:64"`
	LayoutHash          string  `gorm:"size:64"`
	SimilarityThreshold float64 `gorm:"default:0.8"`
	IDPattern           string  `gorm:"size:128"` // overrides the default identifier regex
	CreatedAt           time.Time
}

// Ledger anchors observed on chain by the anchor watcher
type Anchor struct {
	ContentHash string `gorm:"primaryKey;size:128"`
	TxRef       string `gorm:"size:128;not null"`
	AnchoredAt  time.Time
}

// Verification history, one row per completed pipeline invocation
type Verification struct {
	ID              uint64 `gorm:"primaryKey"`
	JobID           string `gorm:"size:64;uniqueIndex;not null"`
	VerifierID      string `gorm:"size:64;index;not null"`
	CertID          string `gorm:"size:128;index"`
	InstitutionID   string `gorm:"size:64;index"`
	Verdict         string `gorm:"size:16;not null"`
	ConfidenceScore uint8  `gorm:"not null"`
	ResultJSON      string `gorm:"type:text"` // full VerificationResult for replay/share
	CreatedAt       time.Time
}

// Verifier principals allowed to call the pipeline
type Verifier struct {
	ID      string `gorm:"primaryKey;size:64"`
	Name    string `gorm:"size:128"`
	Email   string `gorm:"size:256;unique"`
	Company string `gorm:"size:128"`
	Status  string `gorm:"size:32;default:pending"` // pending|approved|rejected
}
