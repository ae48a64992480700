package webserver

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/navs-labs/navs-verify/src/api/types"
)

type Institution struct {
	db *gorm.DB
}

func NewInstitution(db *gorm.DB) Institution {
	return Institution{db: db}
}

var bulkColumns = []string{
	"certId", "studentName", "rollNumber", "course",
	"yearOfPassing", "marks", "issueDate", "contentHash", "templateId",
}

// BulkUpload ingests an institution's issued-certificate CSV. Rows are
// inserted individually so one bad row never poisons the batch.
func (h Institution) BulkUpload(c *gin.Context) {
	instID := c.GetString("uid")

	file, _, err := c.Request.FormFile("csv")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "missing csv file"})
		return
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "empty csv"})
		return
	}
	col := map[string]int{}
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, want := range bulkColumns {
		if _, ok := col[want]; !ok {
			c.JSON(http.StatusBadRequest, gin.H{"err": fmt.Sprintf("missing column %q", want)})
			return
		}
	}

	var total, inserted int
	var rowErrors []string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		total++
		if err != nil {
			rowErrors = append(rowErrors, fmt.Sprintf("row %d: %v", total, err))
			continue
		}

		year, err := strconv.Atoi(strings.TrimSpace(row[col["yearOfPassing"]]))
		if err != nil {
			rowErrors = append(rowErrors, fmt.Sprintf("row %d: bad yearOfPassing", total))
			continue
		}
		cert := types.Certificate{
			InstitutionID: instID,
			CertID:        strings.TrimSpace(row[col["certId"]]),
			StudentName:   strings.TrimSpace(row[col["studentName"]]),
			RollNumber:    strings.TrimSpace(row[col["rollNumber"]]),
			Course:        strings.TrimSpace(row[col["course"]]),
			YearOfPassing: uint16(year),
			Marks:         strings.TrimSpace(row[col["marks"]]),
			IssueDate:     strings.TrimSpace(row[col["issueDate"]]),
			ContentHash:   strings.TrimSpace(row[col["contentHash"]]),
			TemplateID:    strings.TrimSpace(row[col["templateId"]]),
		}
		if cert.CertID == "" {
			rowErrors = append(rowErrors, fmt.Sprintf("row %d: empty certId", total))
			continue
		}
		if err := h.db.FirstOrCreate(&cert, types.Certificate{CertID: cert.CertID}).Error; err != nil {
			rowErrors = append(rowErrors, fmt.Sprintf("row %d: %v", total, err))
			continue
		}
		inserted++
	}

	if len(rowErrors) > 10 {
		rowErrors = rowErrors[:10]
	}
	c.JSON(http.StatusOK, gin.H{
		"totalRecords":     total,
		"processedRecords": inserted,
		"errors":           rowErrors,
	})
}

func (h Institution) UpsertTemplate(c *gin.Context) {
	var req struct {
		TemplateID          string  `json:"templateId" binding:"required"`
		SealHash            string  `json:"sealHash"`
		SignatureHash       string  `json:"signatureHash"`
		LayoutHash          string  `json:"layoutHash"`
		SimilarityThreshold float64 `json:"similarityThreshold"`
		IDPattern           string  `json:"idPattern"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	tpl := types.Template{
		TemplateID:          req.TemplateID,
		InstitutionID:       c.GetString("uid"),
		SealHash:            req.SealHash,
		SignatureHash:       req.SignatureHash,
		LayoutHash:          req.LayoutHash,
		SimilarityThreshold: req.SimilarityThreshold,
		IDPattern:           req.IDPattern,
	}
	if err := h.db.Save(&tpl).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"templateId": tpl.TemplateID, "status": "success"})
}

func (h Institution) Stats(c *gin.Context) {
	instID := c.Param("id")
	if instID != c.GetString("uid") {
		c.JSON(http.StatusForbidden, gin.H{"err": "not your institution"})
		return
	}

	var totalCerts int64
	h.db.Model(&types.Certificate{}).Where("institution_id = ?", instID).Count(&totalCerts)

	var verified, suspect int64
	h.db.Model(&types.Verification{}).
		Where("institution_id = ? AND verdict = ?", instID, "VERIFIED").Count(&verified)
	h.db.Model(&types.Verification{}).
		Where("institution_id = ? AND verdict = ?", instID, "SUSPECT").Count(&suspect)

	var lastUpload types.Certificate
	lastDate := ""
	if err := h.db.Where("institution_id = ?", instID).
		Order("created_at DESC").First(&lastUpload).Error; err == nil {
		lastDate = lastUpload.CreatedAt.Format("2006-01-02")
	}

	c.JSON(http.StatusOK, gin.H{
		"totalCertificates":      totalCerts,
		"verifiedCertificates":   verified,
		"suspiciousCertificates": suspect,
		"lastUploadDate":         lastDate,
	})
}
