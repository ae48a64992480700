package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/navs-labs/navs-verify/src/webclient"
)

// HTTPExtractor talks to the external OCR/ML extraction service. One
// attempt per call; the pipeline owns the retry policy.
type HTTPExtractor struct {
	baseURL  string
	http     *http.Client
	sanitize *bluemonday.Policy
}

func NewHTTPExtractor(baseURL string, timeout time.Duration) *HTTPExtractor {
	return &HTTPExtractor{
		baseURL:  baseURL,
		http:     webclient.NewDefault(timeout),
		sanitize: bluemonday.StrictPolicy(),
	}
}

// Wire shape of the extraction service response. Field keys arrive as a
// map; unknown keys are dropped, known ones kept in enumeration order.
type extractionResponse struct {
	Pages  int    `json:"pages"`
	Text   string `json:"text"`
	Fields map[string]struct {
		Value      string  `json:"value"`
		Confidence float64 `json:"confidence"`
	} `json:"fields"`
	Artifacts     DocumentArtifacts `json:"artifacts"`
	TamperSignals []TamperSignal    `json:"tamperSignals"`
}

var knownFieldOrder = []string{FieldName, FieldRoll, FieldCourse, FieldYear, FieldCertID, FieldMarks}

func (e *HTTPExtractor) Extract(ctx context.Context, document []byte, mimeType string) (*ExtractedDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/extract", bytes.NewReader(document))
	if err != nil {
		return nil, err
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", mimeType)

	resp, err := e.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("extraction service returned %d: %s", resp.StatusCode, body)
	}

	var wire extractionResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode extraction response: %w", err)
	}

	doc := &ExtractedDocument{
		Pages:         wire.Pages,
		Text:          e.sanitize.Sanitize(wire.Text),
		Artifacts:     wire.Artifacts,
		TamperSignals: wire.TamperSignals,
	}
	for _, key := range knownFieldOrder {
		if f, ok := wire.Fields[key]; ok {
			doc.Fields = append(doc.Fields, ExtractedField{
				Name:       key,
				Value:      e.sanitize.Sanitize(f.Value),
				Confidence: clampConfidence(f.Confidence),
			})
		}
	}
	return doc, nil
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
