package webserver

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/navs-labs/navs-verify/src/api/data"
	"github.com/navs-labs/navs-verify/src/api/types"
	"github.com/navs-labs/navs-verify/src/verify"
)

type VerifyHandler struct {
	db   *gorm.DB
	rdb  *redis.Client
	pipe *verify.Pipeline
}

func NewVerifyHandler(db *gorm.DB, rdb *redis.Client, pipe *verify.Pipeline) VerifyHandler {
	return VerifyHandler{db: db, rdb: rdb, pipe: pipe}
}

// jobEnvelope is the response shape presentation layers consume.
type jobEnvelope struct {
	JobID  string                     `json:"jobId"`
	Status string                     `json:"status"`
	Result *verify.VerificationResult `json:"result"`
}

func (h VerifyHandler) Verify(c *gin.Context) {
	var req struct {
		CertID          string `json:"certId"`
		InstitutionHint string `json:"institutionHint"`
		Document        string `json:"document"` // base64
		MimeType        string `json:"mimeType"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	var docBytes []byte
	if req.Document != "" {
		var err error
		if docBytes, err = base64.StdEncoding.DecodeString(req.Document); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"err": "document is not valid base64"})
			return
		}
	}

	verifierID := c.GetString("uid")

	// Identical input against unchanged store state replays the cached
	// result, original job id included.
	cacheKey := data.ResultCacheKey(req.CertID, req.InstitutionHint, docBytes)
	if cached, err := data.GetCachedResult(c.Request.Context(), h.rdb, cacheKey); err == nil {
		c.Data(http.StatusOK, "application/json", []byte(cached))
		return
	}

	result, err := h.pipe.Verify(c.Request.Context(), verifierID, verify.Input{
		CertID:          req.CertID,
		InstitutionHint: req.InstitutionHint,
		DocumentBytes:   docBytes,
		MimeType:        req.MimeType,
	})
	if err != nil {
		var dep *verify.DependencyError
		switch {
		case errors.Is(err, verify.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		case errors.As(err, &dep):
			c.JSON(http.StatusServiceUnavailable, gin.H{"err": dep.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		}
		return
	}

	env := jobEnvelope{JobID: uuid.New().String(), Status: "completed", Result: result}
	envJSON, _ := json.Marshal(env)

	if err := h.db.Create(&types.Verification{
		JobID:           env.JobID,
		VerifierID:      verifierID,
		CertID:          resultCertID(req.CertID, result),
		InstitutionID:   resultInstitution(req.InstitutionHint, result),
		Verdict:         string(result.Verdict),
		ConfidenceScore: uint8(result.ConfidenceScore),
		ResultJSON:      string(envJSON),
	}).Error; err != nil {
		log.Printf("verification history: %v", err)
	}
	_ = data.SetCachedResult(c.Request.Context(), h.rdb, cacheKey, string(envJSON))

	c.JSON(http.StatusOK, env)
}

func (h VerifyHandler) History(c *gin.Context) {
	var rows []types.Verification
	if err := h.db.
		Where("verifier_id = ?", c.GetString("uid")).
		Order("created_at DESC").
		Limit(50).
		Find(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}

	out := make([]gin.H, len(rows))
	for i, row := range rows {
		out[i] = gin.H{
			"jobId":           row.JobID,
			"date":            row.CreatedAt.Format("2006-01-02"),
			"certId":          row.CertID,
			"institution":     row.InstitutionID,
			"status":          row.Verdict,
			"confidenceScore": row.ConfidenceScore,
		}
	}
	c.JSON(http.StatusOK, out)
}

func (h VerifyHandler) Share(c *gin.Context) {
	var req struct {
		ExpiryDays int `json:"expiryDays"`
	}
	_ = c.ShouldBindJSON(&req)
	if req.ExpiryDays <= 0 {
		req.ExpiryDays = 7
	}

	var row types.Verification
	err := h.db.First(&row, "job_id = ? AND verifier_id = ?",
		c.Param("jobId"), c.GetString("uid")).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"err": "verification not found"})
		return
	}

	token := uuid.New().String()
	ttl := time.Duration(req.ExpiryDays) * 24 * time.Hour
	if err := data.SetShareLink(c.Request.Context(), h.rdb, token, row.JobID, ttl); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"shareLink":  "/v1/shared/" + token,
		"expiryDate": time.Now().UTC().Add(ttl).Format(time.RFC3339),
	})
}

func (h VerifyHandler) Shared(c *gin.Context) {
	jobID, err := data.GetShareLink(c.Request.Context(), h.rdb, c.Param("token"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"err": "share link expired or unknown"})
		return
	}

	var row types.Verification
	if err := h.db.First(&row, "job_id = ?", jobID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"err": "verification not found"})
		return
	}
	c.Data(http.StatusOK, "application/json", []byte(row.ResultJSON))
}

func resultCertID(requested string, result *verify.VerificationResult) string {
	if result.MatchedRecord != nil {
		return result.MatchedRecord.CertID
	}
	return requested
}

func resultInstitution(hint string, result *verify.VerificationResult) string {
	if result.MatchedRecord != nil {
		return result.MatchedRecord.InstitutionID
	}
	return hint
}
