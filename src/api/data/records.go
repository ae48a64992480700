package data

import (
	"context"
	"errors"

	"github.com/navs-labs/navs-verify/src/api/types"
	"github.com/navs-labs/navs-verify/src/verify"
	"gorm.io/gorm"
)

// Store backs the pipeline's RecordStore and TemplateRegistry contracts
// with the certificates and templates tables.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Lookup(ctx context.Context, institutionID, certID string) (*verify.CertificateRecord, error) {
	q := s.db.WithContext(ctx).Where("cert_id = ?", certID)
	if institutionID != "" {
		q = q.Where("institution_id = ?", institutionID)
	}
	var cert types.Certificate
	if err := q.First(&cert).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, verify.ErrNoRecord
		}
		return nil, err
	}
	rec := toRecord(cert)
	return &rec, nil
}

func (s *Store) Candidates(ctx context.Context, institutionID string) ([]verify.CertificateRecord, error) {
	q := s.db.WithContext(ctx)
	if institutionID != "" {
		q = q.Where("institution_id = ?", institutionID)
	}
	var certs []types.Certificate
	if err := q.Find(&certs).Error; err != nil {
		return nil, err
	}
	records := make([]verify.CertificateRecord, len(certs))
	for i, c := range certs {
		records[i] = toRecord(c)
	}
	return records, nil
}

func (s *Store) Template(ctx context.Context, institutionID, templateID string) (*verify.GoldenTemplate, error) {
	q := s.db.WithContext(ctx).Where("institution_id = ?", institutionID)
	if templateID != "" {
		q = q.Where("template_id = ?", templateID)
	}
	var tpl types.Template
	if err := q.First(&tpl).Error; err != nil {
		return nil, err
	}
	return &verify.GoldenTemplate{
		TemplateID:          tpl.TemplateID,
		InstitutionID:       tpl.InstitutionID,
		SealHash:            tpl.SealHash,
		SignatureHash:       tpl.SignatureHash,
		LayoutHash:          tpl.LayoutHash,
		SimilarityThreshold: tpl.SimilarityThreshold,
		IDPattern:           tpl.IDPattern,
	}, nil
}

func toRecord(c types.Certificate) verify.CertificateRecord {
	return verify.CertificateRecord{
		CertID:        c.CertID,
		InstitutionID: c.InstitutionID,
		StudentName:   c.StudentName,
		RollNumber:    c.RollNumber,
		Course:        c.Course,
		YearOfPassing: int(c.YearOfPassing),
		Marks:         c.Marks,
		IssueDate:     c.IssueDate,
		ContentHash:   c.ContentHash,
		TemplateID:    c.TemplateID,
	}
}
