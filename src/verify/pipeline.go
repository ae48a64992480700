package verify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/navs-labs/navs-verify/src/logging"
	"github.com/navs-labs/navs-verify/src/webclient"
)

// Pipeline stages, in invocation order. ANALYZING and LEDGER_CHECKING
// run concurrently; FAILED is reachable from any stage.
type stage string

const (
	stageReceived stage = "RECEIVED"
	stageExtract  stage = "EXTRACTING"
	stageMatch    stage = "MATCHING"
	stageAnalyze  stage = "ANALYZING"
	stageLedger   stage = "LEDGER_CHECKING"
	stageScore    stage = "SCORING"
	stageDone     stage = "DONE"
	stageFailed   stage = "FAILED"
)

// Notes attached to degraded results. Stable strings, part of the
// output contract alongside flag kinds.
const (
	NoteExtractionUnavailable = "extraction_unavailable"
	NoteTemplateUnavailable   = "template_unavailable"
	NoteLedgerUnreachable     = "ledger_unreachable"
	NoteBorderline            = "borderline"
)

type Config struct {
	ExtractTimeout  time.Duration
	StoreTimeout    time.Duration
	TemplateTimeout time.Duration
	LedgerTimeout   time.Duration

	MatchThreshold      float64
	VerifiedThreshold   int
	BorderlineThreshold int

	RetryDelay time.Duration
}

func (c *Config) setDefaults() {
	if c.ExtractTimeout <= 0 {
		c.ExtractTimeout = 30 * time.Second
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = 5 * time.Second
	}
	if c.TemplateTimeout <= 0 {
		c.TemplateTimeout = 5 * time.Second
	}
	if c.LedgerTimeout <= 0 {
		c.LedgerTimeout = 10 * time.Second
	}
	if c.MatchThreshold <= 0 {
		c.MatchThreshold = 0.6
	}
	if c.VerifiedThreshold <= 0 {
		c.VerifiedThreshold = 60
	}
	if c.BorderlineThreshold <= 0 {
		c.BorderlineThreshold = 80
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 500 * time.Millisecond
	}
}

// Pipeline sequences extraction, matching, anomaly detection, the
// ledger check and scoring for one submitted credential. It holds no
// mutable state: every invocation is a pure transform over its input
// plus read-only store lookups, so concurrent invocations are safe.
type Pipeline struct {
	extractor Extractor
	store     RecordStore
	templates TemplateRegistry
	ledger    LedgerClient

	matcher  *Matcher
	detector *Detector
	scorer   *Scorer
	cfg      Config
}

func New(extractor Extractor, store RecordStore, templates TemplateRegistry, ledger LedgerClient, cfg Config) *Pipeline {
	cfg.setDefaults()
	return &Pipeline{
		extractor: extractor,
		store:     store,
		templates: templates,
		ledger:    ledger,
		matcher:   NewMatcher(store, cfg.MatchThreshold),
		detector:  NewDetector(),
		scorer:    NewScorer(cfg.VerifiedThreshold),
		cfg:       cfg,
	}
}

// Verify runs the full pipeline for one submission. verifierID is the
// authenticated caller, passed explicitly rather than read from any
// ambient state. Only invalid input and exhausted dependency failures
// return an error; every other condition yields a complete result.
func (p *Pipeline) Verify(ctx context.Context, verifierID string, in Input) (*VerificationResult, error) {
	if in.CertID == "" && len(in.DocumentBytes) == 0 {
		return nil, fmt.Errorf("%w: neither certificate id nor document supplied", ErrInvalidInput)
	}

	var notes []string

	// EXTRACTING
	doc, err := p.extract(ctx, in)
	if err != nil {
		if in.CertID == "" {
			log.Printf("verify %s: %s: %v", verifierID, stageFailed, err)
			return nil, err
		}
		// An identifier fallback exists; proceed without OCR output.
		notes = append(notes, NoteExtractionUnavailable)
		doc = nil
	}

	// MATCHING
	match, err := p.match(ctx, in, doc)
	if err != nil {
		log.Printf("verify %s: %s: %v", verifierID, stageFailed, err)
		return nil, err
	}

	// ANALYZING and LEDGER_CHECKING are independent of each other and
	// run concurrently; SCORING joins both.
	var (
		wg          sync.WaitGroup
		flags       []AnomalyFlag
		analyzeNote string
		ledger      LedgerStatus
		ledgerNote  string
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		flags, analyzeNote = p.analyze(ctx, in, doc, match)
	}()
	go func() {
		defer wg.Done()
		ledger, ledgerNote = p.checkLedger(ctx, in, match.Record)
	}()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		// Caller went away; discard partial results.
		return nil, err
	}

	if analyzeNote != "" {
		notes = append(notes, analyzeNote)
	}
	if ledgerNote != "" {
		notes = append(notes, ledgerNote)
	}

	// SCORING
	verdict, score := p.scorer.Score(match, flags, ledger, doc.MeanConfidence())
	if verdict == VerdictVerified && score < p.cfg.BorderlineThreshold {
		notes = append(notes, NoteBorderline)
	}

	return &VerificationResult{
		Verdict:         verdict,
		ConfidenceScore: score,
		MatchedRecord:   match.Record,
		Flags:           flags,
		Ledger:          ledger,
		Extracted:       doc,
		Notes:           notes,
	}, nil
}

func (p *Pipeline) extract(ctx context.Context, in Input) (*ExtractedDocument, error) {
	if len(in.DocumentBytes) == 0 {
		return nil, nil
	}
	var doc *ExtractedDocument
	err := webclient.Retry(ctx, 2, p.cfg.RetryDelay, logging.IsTransient, func(ctx context.Context) error {
		tctx, cancel := context.WithTimeout(ctx, p.cfg.ExtractTimeout)
		defer cancel()
		var err error
		doc, err = p.extractor.Extract(tctx, in.DocumentBytes, in.MimeType)
		return err
	})
	if err != nil {
		return nil, depErr("extraction_adapter", err)
	}
	return doc, nil
}

func (p *Pipeline) match(ctx context.Context, in Input, doc *ExtractedDocument) (MatchResult, error) {
	var match MatchResult
	err := webclient.Retry(ctx, 2, p.cfg.RetryDelay, logging.IsTransient, func(ctx context.Context) error {
		tctx, cancel := context.WithTimeout(ctx, p.cfg.StoreTimeout)
		defer cancel()
		var err error
		match, err = p.matcher.Match(tctx, in, doc)
		return err
	})
	return match, err
}

func (p *Pipeline) analyze(ctx context.Context, in Input, doc *ExtractedDocument, match MatchResult) ([]AnomalyFlag, string) {
	tpl, note := p.resolveTemplate(ctx, in, match.Record)

	flags := p.detector.Detect(in.CertID, doc, match.Record, tpl)
	if match.Ambiguous {
		// Two records tied at the top fuzzy score; surfaced as a flag,
		// never as a silent acceptance.
		flags = append([]AnomalyFlag{{
			Kind:     FlagFieldMismatch,
			Detail:   "multiple records tie at the top match score",
			Severity: 0.6,
		}}, flags...)
	}
	return flags, note
}

func (p *Pipeline) resolveTemplate(ctx context.Context, in Input, rec *CertificateRecord) (*GoldenTemplate, string) {
	institution := in.InstitutionHint
	templateID := ""
	if rec != nil {
		institution = rec.InstitutionID
		templateID = rec.TemplateID
	}
	if institution == "" {
		return nil, ""
	}

	tctx, cancel := context.WithTimeout(ctx, p.cfg.TemplateTimeout)
	defer cancel()
	tpl, err := p.templates.Template(tctx, institution, templateID)
	if err != nil {
		// Template miss degrades tamper analysis, never the verdict.
		return nil, NoteTemplateUnavailable
	}
	return tpl, ""
}

func (p *Pipeline) checkLedger(ctx context.Context, in Input, rec *CertificateRecord) (LedgerStatus, string) {
	hash := contentHash(in, rec)
	if hash == "" {
		return LedgerStatus{}, ""
	}

	tctx, cancel := context.WithTimeout(ctx, p.cfg.LedgerTimeout)
	defer cancel()
	status, err := p.ledger.CheckAnchored(tctx, hash)
	if err != nil {
		// Assume unanchored and proceed; field-based verdicts still
		// carry enough signal.
		return LedgerStatus{Anchored: false}, NoteLedgerUnreachable
	}
	return status, ""
}

// contentHash selects what to look up on the ledger: the hash of the
// submitted document when one exists, otherwise the issued record's
// registered content hash.
func contentHash(in Input, rec *CertificateRecord) string {
	if len(in.DocumentBytes) > 0 {
		sum := sha256.Sum256(in.DocumentBytes)
		return "SHA256:" + hex.EncodeToString(sum[:])
	}
	if rec != nil {
		return rec.ContentHash
	}
	return ""
}
