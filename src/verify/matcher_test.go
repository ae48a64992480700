package verify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	records      []CertificateRecord
	lookupErr    error
	candidateErr error
	lookups      int
}

func (f *fakeStore) Lookup(ctx context.Context, institutionID, certID string) (*CertificateRecord, error) {
	f.lookups++
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	for i := range f.records {
		r := &f.records[i]
		if r.CertID == certID && (institutionID == "" || r.InstitutionID == institutionID) {
			return r, nil
		}
	}
	return nil, ErrNoRecord
}

func (f *fakeStore) Candidates(ctx context.Context, institutionID string) ([]CertificateRecord, error) {
	if f.candidateErr != nil {
		return nil, f.candidateErr
	}
	if institutionID == "" {
		return f.records, nil
	}
	var out []CertificateRecord
	for _, r := range f.records {
		if r.InstitutionID == institutionID {
			out = append(out, r)
		}
	}
	return out, nil
}

func storeRecords() []CertificateRecord {
	return []CertificateRecord{
		{
			CertID: "VSSUT/2020/BTECH/12345", InstitutionID: "inst_001",
			StudentName: "Amit Verma", RollNumber: "2402081067",
			Course: "B.Tech Computer Science", YearOfPassing: 2024,
			Marks: "8.2/10", ContentHash: "SHA256:abcd1234", TemplateID: "tmpl_2020_cs",
		},
		{
			CertID: "VSSUT/2020/BTECH/12346", InstitutionID: "inst_001",
			StudentName: "Priya Sharma", RollNumber: "2402081068",
			Course: "B.Tech Electrical Engineering", YearOfPassing: 2024,
			Marks: "9.1/10", ContentHash: "SHA256:wxyz7890", TemplateID: "tmpl_2020_ee",
		},
	}
}

func docFields(fields map[string]string) *ExtractedDocument {
	doc := &ExtractedDocument{Pages: 1}
	for _, key := range knownFieldOrder {
		if v, ok := fields[key]; ok {
			doc.Fields = append(doc.Fields, ExtractedField{Name: key, Value: v, Confidence: 0.95})
		}
	}
	return doc
}

func TestMatchExactID(t *testing.T) {
	m := NewMatcher(&fakeStore{records: storeRecords()}, 0.6)

	res, err := m.Match(context.Background(), Input{CertID: "VSSUT/2020/BTECH/12345"}, nil)
	require.NoError(t, err)
	require.NotNil(t, res.Record)
	assert.Equal(t, MatchExactID, res.Method)
	assert.Equal(t, 1.0, res.Score)
	assert.Equal(t, "Amit Verma", res.Record.StudentName)
}

func TestMatchIdentifierFromOCRText(t *testing.T) {
	m := NewMatcher(&fakeStore{records: storeRecords()}, 0.6)

	doc := &ExtractedDocument{
		Pages: 1,
		Text:  "VSSUT\nThis is to certify that Amit Verma ... Certificate No: VSSUT/2020/BTECH/12345",
	}
	res, err := m.Match(context.Background(), Input{DocumentBytes: []byte("scan")}, doc)
	require.NoError(t, err)
	require.NotNil(t, res.Record)
	assert.Equal(t, MatchExactID, res.Method)
}

func TestMatchFuzzyFields(t *testing.T) {
	m := NewMatcher(&fakeStore{records: storeRecords()}, 0.6)

	doc := docFields(map[string]string{
		FieldName:   "AMIT  VERMA",
		FieldRoll:   "2402081067",
		FieldCourse: "B.Tech Computer Science",
		FieldYear:   "2024",
	})
	res, err := m.Match(context.Background(), Input{InstitutionHint: "inst_001"}, doc)
	require.NoError(t, err)
	require.NotNil(t, res.Record)
	assert.Equal(t, MatchFuzzyField, res.Method)
	assert.Equal(t, "VSSUT/2020/BTECH/12345", res.Record.CertID)
	assert.GreaterOrEqual(t, res.Score, 0.6)
}

func TestMatchBelowThreshold(t *testing.T) {
	m := NewMatcher(&fakeStore{records: storeRecords()}, 0.6)

	doc := docFields(map[string]string{
		FieldName:   "Rajesh Kumar",
		FieldRoll:   "9999999",
		FieldCourse: "B.Tech Computer Science",
		FieldYear:   "2020",
	})
	res, err := m.Match(context.Background(), Input{}, doc)
	require.NoError(t, err)
	assert.Nil(t, res.Record)
	assert.Equal(t, MatchNone, res.Method)
	assert.False(t, res.Ambiguous)
}

func TestMatchTieResolvesToNone(t *testing.T) {
	// Two records indistinguishable without a roll number.
	records := []CertificateRecord{
		{CertID: "VSSUT/2021/MBA/00001", InstitutionID: "inst_001",
			StudentName: "Rahul Das", RollNumber: "111", Course: "MBA", YearOfPassing: 2023},
		{CertID: "VSSUT/2021/MBA/00002", InstitutionID: "inst_001",
			StudentName: "Rahul Das", RollNumber: "222", Course: "MBA", YearOfPassing: 2023},
	}
	m := NewMatcher(&fakeStore{records: records}, 0.6)

	doc := docFields(map[string]string{
		FieldName:   "Rahul Das",
		FieldCourse: "MBA",
		FieldYear:   "2023",
	})
	res, err := m.Match(context.Background(), Input{}, doc)
	require.NoError(t, err)
	assert.Nil(t, res.Record)
	assert.Equal(t, MatchNone, res.Method)
	assert.True(t, res.Ambiguous)
}

func TestMatchStoreUnavailable(t *testing.T) {
	m := NewMatcher(&fakeStore{lookupErr: errors.New("dial tcp: connection refused")}, 0.6)

	_, err := m.Match(context.Background(), Input{CertID: "VSSUT/2020/BTECH/12345"}, nil)
	var dep *DependencyError
	require.ErrorAs(t, err, &dep)
	assert.Equal(t, "record_store", dep.Dep)
}

func TestMatchMalformedIdentifierNoDocument(t *testing.T) {
	store := &fakeStore{records: storeRecords()}
	m := NewMatcher(store, 0.6)

	res, err := m.Match(context.Background(), Input{CertID: "FAKE-123"}, nil)
	require.NoError(t, err)
	assert.Nil(t, res.Record)
	assert.Equal(t, MatchNone, res.Method)
	// malformed identifiers never hit the store
	assert.Zero(t, store.lookups)
}
