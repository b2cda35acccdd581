package recognizer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"idscan/internal/model"
)

// Client calls the remote card recognition service. One Verify call makes
// exactly one outbound request; retries are the scan loop's business.
type Client struct {
	BaseURL       string
	Model         string
	APIKey        string
	Institution   string
	MinConfidence float64
	HTTP          *http.Client
	Skip          bool
}

// New creates a client with a bounded request timeout so a hung call cannot
// stall the scan loop indefinitely.
func New(baseURL, apiKey, modelName, institution string, minConfidence float64, timeout time.Duration, skip bool) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		BaseURL:       baseURL,
		Model:         modelName,
		APIKey:        apiKey,
		Institution:   institution,
		MinConfidence: minConfidence,
		Skip:          skip,
		HTTP:          &http.Client{Timeout: timeout},
	}
}

const promptTemplate = `Analyze this image of what should be a %[1]s student ID card.

IMPORTANT: You must verify this is a GENUINE %[1]s ID card by checking:
1. Presence of the %[1]s logo or name
2. Student information format typical of university ID cards
3. Registration number format (alphanumeric)

If this is NOT a %[1]s ID card, or if it's any other object/document:
- Set is_valid to false
- Set rejection_reason to explain why

If this IS a valid %[1]s ID card:
- Extract the student name
- Extract the registration number
- Set is_valid to true

Be STRICT - only accept genuine %[1]s ID cards. Return ONLY JSON.`

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generationConfig struct {
	ResponseMimeType string         `json:"responseMimeType"`
	ResponseSchema   map[string]any `json:"responseSchema"`
}

func responseSchema() map[string]any {
	return map[string]any{
		"type": "OBJECT",
		"properties": map[string]any{
			"is_valid":            map[string]any{"type": "BOOLEAN"},
			"is_institution_card": map[string]any{"type": "BOOLEAN"},
			"student_name":        map[string]any{"type": "STRING"},
			"identifier":          map[string]any{"type": "STRING"},
			"rejection_reason":    map[string]any{"type": "STRING"},
			"confidence":          map[string]any{"type": "NUMBER"},
		},
		"required": []string{"is_valid", "is_institution_card", "student_name", "identifier"},
	}
}

// verdictWire mirrors the schema the service is asked to return. Required
// fields are pointers so an absent field is distinguishable from a zero.
type verdictWire struct {
	IsValid           *bool    `json:"is_valid"`
	IsInstitutionCard *bool    `json:"is_institution_card"`
	StudentName       *string  `json:"student_name"`
	Identifier        *string  `json:"identifier"`
	RejectionReason   string   `json:"rejection_reason"`
	Confidence        *float64 `json:"confidence"`
}

// Verify submits one frame and returns the service's structured verdict.
// Any transport failure, non-success status, or response that does not
// conform to the requested shape is returned as an error; the caller treats
// that as a failed call, never as a rejection.
func (c *Client) Verify(ctx context.Context, frame []byte) (*model.Verdict, error) {
	if c.Skip {
		return &model.Verdict{Valid: true, StudentName: "Mock Student", Identifier: "VTU00000", Confidence: 0.95}, nil
	}
	if len(frame) == 0 {
		return nil, fmt.Errorf("empty frame")
	}

	reqBody := generateRequest{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{Text: fmt.Sprintf(promptTemplate, c.Institution)},
				{InlineData: &inlineData{MimeType: "image/jpeg", Data: base64.StdEncoding.EncodeToString(frame)}},
			},
		}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   responseSchema(),
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.BaseURL, c.Model, c.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("recognition request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("recognition service error %s: %s", resp.Status, string(bodyBytes))
	}

	var out struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("empty recognition response")
	}

	var wire verdictWire
	if err := json.Unmarshal([]byte(out.Candidates[0].Content.Parts[0].Text), &wire); err != nil {
		return nil, fmt.Errorf("malformed verdict: %w", err)
	}
	if wire.IsValid == nil || wire.StudentName == nil || wire.Identifier == nil {
		return nil, fmt.Errorf("verdict missing required fields")
	}

	v := &model.Verdict{
		Valid:           *wire.IsValid,
		StudentName:     *wire.StudentName,
		Identifier:      *wire.Identifier,
		RejectionReason: wire.RejectionReason,
	}
	if wire.Confidence != nil {
		v.Confidence = *wire.Confidence
	}
	if v.Valid && wire.Confidence != nil && c.MinConfidence > 0 && v.Confidence < c.MinConfidence {
		v.Valid = false
		v.RejectionReason = fmt.Sprintf("recognition confidence %.2f below threshold %.2f", v.Confidence, c.MinConfidence)
	}
	return v, nil
}

// Health checks that the recognition endpoint is reachable.
func (c *Client) Health(ctx context.Context) error {
	if c.Skip {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/models", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("recognition service unavailable: %w", err)
	}
	defer resp.Body.Close()
	return nil
}
