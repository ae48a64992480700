package verify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExtractor struct {
	doc   *ExtractedDocument
	errs  []error // consumed per call; nil entry means success
	calls int
}

func (s *stubExtractor) Extract(ctx context.Context, document []byte, mimeType string) (*ExtractedDocument, error) {
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return s.doc, nil
}

type stubTemplates struct {
	tpl *GoldenTemplate
	err error
}

func (s *stubTemplates) Template(ctx context.Context, institutionID, templateID string) (*GoldenTemplate, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.tpl, nil
}

type stubLedger struct {
	status LedgerStatus
	err    error
}

func (s *stubLedger) CheckAnchored(ctx context.Context, contentHash string) (LedgerStatus, error) {
	if s.err != nil {
		return LedgerStatus{}, s.err
	}
	return s.status, nil
}

func testConfig() Config {
	return Config{RetryDelay: time.Millisecond}
}

func newTestPipeline(ex Extractor, store RecordStore, tpl TemplateRegistry, led LedgerClient) *Pipeline {
	return New(ex, store, tpl, led, testConfig())
}

func TestVerifyExactIDClean(t *testing.T) {
	p := newTestPipeline(
		&stubExtractor{},
		&fakeStore{records: storeRecords()},
		&stubTemplates{tpl: &GoldenTemplate{TemplateID: "tmpl_2020_cs"}},
		&stubLedger{status: LedgerStatus{Anchored: true, TxReference: "0xabc123def456"}},
	)

	res, err := p.Verify(context.Background(), "ver_001", Input{CertID: "VSSUT/2020/BTECH/12345"})
	require.NoError(t, err)

	assert.Equal(t, VerdictVerified, res.Verdict)
	assert.GreaterOrEqual(t, res.ConfidenceScore, 90)
	require.NotNil(t, res.MatchedRecord)
	assert.Equal(t, "Amit Verma", res.MatchedRecord.StudentName)
	assert.Empty(t, res.Flags)
	assert.True(t, res.Ledger.Anchored)
	assert.NotContains(t, res.Notes, NoteBorderline)
}

func TestVerifyUnknownDocumentNotFound(t *testing.T) {
	doc := docFields(map[string]string{
		FieldName:   "Rajesh Kumar",
		FieldRoll:   "9999999",
		FieldCourse: "B.Tech Computer Science",
		FieldYear:   "2020",
	})
	p := newTestPipeline(
		&stubExtractor{doc: doc},
		&fakeStore{records: storeRecords()},
		&stubTemplates{err: errors.New("no template")},
		&stubLedger{status: LedgerStatus{Anchored: false}},
	)

	res, err := p.Verify(context.Background(), "ver_001", Input{
		DocumentBytes: []byte("fake certificate scan"), MimeType: "application/pdf",
	})
	require.NoError(t, err)

	assert.Equal(t, VerdictNotFound, res.Verdict)
	assert.Nil(t, res.MatchedRecord)
	assert.LessOrEqual(t, res.ConfidenceScore, 30)
}

func TestVerifyTamperedSignatureSuspect(t *testing.T) {
	doc := docFields(map[string]string{
		FieldName:   "Amit Verma",
		FieldRoll:   "2402081067",
		FieldCourse: "B.Tech Computer Science",
		FieldYear:   "2024",
	})
	doc.Artifacts.SignatureHash = "0000000000ffffff"
	p := newTestPipeline(
		&stubExtractor{doc: doc},
		&fakeStore{records: storeRecords()},
		&stubTemplates{tpl: &GoldenTemplate{
			SignatureHash:       "ffffffffffffffff",
			SimilarityThreshold: 0.8,
		}},
		// A tampered scan hashes to something the ledger never saw.
		&stubLedger{status: LedgerStatus{Anchored: false}},
	)

	res, err := p.Verify(context.Background(), "ver_001", Input{
		CertID:        "VSSUT/2020/BTECH/12345",
		DocumentBytes: []byte("tampered scan"),
	})
	require.NoError(t, err)

	flag, found := findFlag(res.Flags, FlagSignatureMismatch)
	require.True(t, found)
	assert.GreaterOrEqual(t, flag.Severity, 0.6)
	assert.Equal(t, VerdictSuspect, res.Verdict,
		"tamper evidence must dominate an exact identifier match")
}

func TestVerifyLedgerTimeoutDegrades(t *testing.T) {
	p := newTestPipeline(
		&stubExtractor{},
		&fakeStore{records: storeRecords()},
		&stubTemplates{tpl: &GoldenTemplate{}},
		&stubLedger{err: context.DeadlineExceeded},
	)

	res, err := p.Verify(context.Background(), "ver_001", Input{CertID: "VSSUT/2020/BTECH/12345"})
	require.NoError(t, err, "ledger failure must not fail the pipeline")

	assert.False(t, res.Ledger.Anchored)
	assert.Contains(t, res.Notes, NoteLedgerUnreachable)
	assert.NotEqual(t, VerdictNotFound, res.Verdict)
}

func TestVerifyTemplateMissDegrades(t *testing.T) {
	p := newTestPipeline(
		&stubExtractor{},
		&fakeStore{records: storeRecords()},
		&stubTemplates{err: errors.New("registry miss")},
		&stubLedger{status: LedgerStatus{Anchored: true}},
	)

	res, err := p.Verify(context.Background(), "ver_001", Input{CertID: "VSSUT/2020/BTECH/12345"})
	require.NoError(t, err)
	assert.Contains(t, res.Notes, NoteTemplateUnavailable)
	assert.Equal(t, VerdictVerified, res.Verdict)
}

func TestVerifyInvalidInput(t *testing.T) {
	p := newTestPipeline(&stubExtractor{}, &fakeStore{}, &stubTemplates{}, &stubLedger{})

	_, err := p.Verify(context.Background(), "ver_001", Input{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestVerifyExtractionRetryThenSuccess(t *testing.T) {
	ex := &stubExtractor{
		doc:  docFields(map[string]string{FieldRoll: "2402081067", FieldName: "Amit Verma"}),
		errs: []error{errors.New("read tcp: connection reset by peer"), nil},
	}
	p := newTestPipeline(ex,
		&fakeStore{records: storeRecords()},
		&stubTemplates{tpl: &GoldenTemplate{}},
		&stubLedger{status: LedgerStatus{Anchored: true}},
	)

	_, err := p.Verify(context.Background(), "ver_001", Input{DocumentBytes: []byte("scan")})
	require.NoError(t, err)
	assert.Equal(t, 2, ex.calls, "one retry with backoff, then proceed")
}

func TestVerifyExtractionExhaustedNoFallback(t *testing.T) {
	ex := &stubExtractor{errs: []error{
		errors.New("dial tcp: connection refused"),
		errors.New("dial tcp: connection refused"),
	}}
	p := newTestPipeline(ex, &fakeStore{}, &stubTemplates{}, &stubLedger{})

	_, err := p.Verify(context.Background(), "ver_001", Input{DocumentBytes: []byte("scan")})
	var dep *DependencyError
	require.ErrorAs(t, err, &dep)
	assert.Equal(t, "extraction_adapter", dep.Dep)
	assert.Equal(t, 2, ex.calls)
}

func TestVerifyExtractionFailureWithIdentifierFallback(t *testing.T) {
	ex := &stubExtractor{errs: []error{
		errors.New("dial tcp: connection refused"),
		errors.New("dial tcp: connection refused"),
	}}
	p := newTestPipeline(ex,
		&fakeStore{records: storeRecords()},
		&stubTemplates{tpl: &GoldenTemplate{}},
		&stubLedger{status: LedgerStatus{Anchored: true}},
	)

	res, err := p.Verify(context.Background(), "ver_001", Input{
		CertID:        "VSSUT/2020/BTECH/12345",
		DocumentBytes: []byte("scan"),
	})
	require.NoError(t, err, "identifier fallback keeps the pipeline alive")
	assert.Contains(t, res.Notes, NoteExtractionUnavailable)
	assert.Nil(t, res.Extracted)
	assert.Equal(t, VerdictVerified, res.Verdict)
}

func TestVerifyAmbiguousTieNeverVerified(t *testing.T) {
	records := []CertificateRecord{
		{CertID: "VSSUT/2021/MBA/00001", InstitutionID: "inst_001",
			StudentName: "Rahul Das", RollNumber: "111", Course: "MBA", YearOfPassing: 2023},
		{CertID: "VSSUT/2021/MBA/00002", InstitutionID: "inst_001",
			StudentName: "Rahul Das", RollNumber: "222", Course: "MBA", YearOfPassing: 2023},
	}
	doc := docFields(map[string]string{
		FieldName:   "Rahul Das",
		FieldCourse: "MBA",
		FieldYear:   "2023",
	})
	p := newTestPipeline(
		&stubExtractor{doc: doc},
		&fakeStore{records: records},
		&stubTemplates{err: errors.New("no template")},
		&stubLedger{status: LedgerStatus{Anchored: false}},
	)

	res, err := p.Verify(context.Background(), "ver_001", Input{DocumentBytes: []byte("scan")})
	require.NoError(t, err)

	assert.NotEqual(t, VerdictVerified, res.Verdict)
	assert.Nil(t, res.MatchedRecord)
	require.NotEmpty(t, res.Flags)
	assert.Equal(t, FlagFieldMismatch, res.Flags[0].Kind)
}

func TestVerifyIdempotent(t *testing.T) {
	build := func() *Pipeline {
		return newTestPipeline(
			&stubExtractor{doc: docFields(map[string]string{
				FieldName: "Amit Verma", FieldRoll: "2402081067",
				FieldCourse: "B.Tech Computer Science", FieldYear: "2024",
			})},
			&fakeStore{records: storeRecords()},
			&stubTemplates{tpl: &GoldenTemplate{}},
			&stubLedger{status: LedgerStatus{Anchored: true, TxReference: "0xabc"}},
		)
	}
	in := Input{DocumentBytes: []byte("scan"), InstitutionHint: "inst_001"}

	first, err := build().Verify(context.Background(), "ver_001", in)
	require.NoError(t, err)
	second, err := build().Verify(context.Background(), "ver_001", in)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestVerifyCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newTestPipeline(
		&stubExtractor{},
		&fakeStore{records: storeRecords()},
		&stubTemplates{tpl: &GoldenTemplate{}},
		&stubLedger{status: LedgerStatus{Anchored: true}},
	)

	_, err := p.Verify(ctx, "ver_001", Input{CertID: "VSSUT/2020/BTECH/12345"})
	assert.Error(t, err, "partial results are discarded on cancellation")
}

func TestVerifyBorderlineNote(t *testing.T) {
	// Exact match on a blurry, unanchored scan: 100 - 15 (ledger)
	// - 10 (extraction shortfall) = 75. VERIFIED, but callers see the
	// borderline note.
	doc := &ExtractedDocument{Pages: 1, Fields: []ExtractedField{
		{Name: FieldName, Value: "Amit Verma", Confidence: 0.5},
		{Name: FieldRoll, Value: "2402081067", Confidence: 0.5},
	}}
	p := newTestPipeline(
		&stubExtractor{doc: doc},
		&fakeStore{records: storeRecords()},
		&stubTemplates{tpl: &GoldenTemplate{}},
		&stubLedger{status: LedgerStatus{Anchored: false}},
	)

	res, err := p.Verify(context.Background(), "ver_001", Input{
		CertID:        "VSSUT/2020/BTECH/12345",
		DocumentBytes: []byte("blurry scan"),
	})
	require.NoError(t, err)
	assert.Equal(t, VerdictVerified, res.Verdict)
	assert.Equal(t, 75, res.ConfidenceScore)
	assert.Contains(t, res.Notes, NoteBorderline)
}
