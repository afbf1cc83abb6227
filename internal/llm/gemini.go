package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Skufu/medassist/internal/history"
)

// GeminiOptions configures the Gemini generateContent client.
type GeminiOptions struct {
	BaseURL string
	Model   string
	APIKey  string
	Timeout time.Duration
}

func (o *GeminiOptions) defaults() {
	if o.BaseURL == "" {
		o.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if o.Model == "" {
		o.Model = "gemini-2.5-flash"
	}
	if o.Timeout <= 0 {
		o.Timeout = 60 * time.Second
	}
}

// Gemini calls the Google Generative Language REST API.
type Gemini struct {
	hc     *http.Client
	url    string
	apiKey string
	model  string
}

// NewGemini validates opts and builds a client.
func NewGemini(opts GeminiOptions) (*Gemini, error) {
	opts.defaults()
	if opts.APIKey == "" {
		return nil, fmt.Errorf("gemini: missing api key")
	}
	endpoint := strings.TrimRight(opts.BaseURL, "/") + "/v1beta/models/" + url.PathEscape(opts.Model) + ":generateContent"
	return &Gemini{
		hc:     &http.Client{Timeout: opts.Timeout},
		url:    endpoint,
		apiKey: opts.APIKey,
		model:  opts.Model,
	}, nil
}

func (g *Gemini) Name() string { return "gemini" }

type gmPart struct {
	Text string `json:"text"`
}

type gmContent struct {
	Role  string   `json:"role,omitempty"`
	Parts []gmPart `json:"parts"`
}

type gmReq struct {
	SystemInstruction *gmContent `json:"systemInstruction,omitempty"`
	Contents          []gmContent `json:"contents"`
}

type gmResp struct {
	Candidates []struct {
		Content struct {
			Parts []gmPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// geminiRole maps transcript roles onto Gemini's user|model.
func geminiRole(r history.Role) string {
	if r == history.RoleAssistant {
		return "model"
	}
	return "user"
}

func encodeGemini(req Request) ([]byte, error) {
	body := gmReq{Contents: make([]gmContent, 0, len(req.History)+1)}
	if req.System != "" {
		body.SystemInstruction = &gmContent{Parts: []gmPart{{Text: req.System}}}
	}
	for _, turn := range req.History {
		parts := make([]gmPart, 0, len(turn.Parts))
		for _, p := range turn.Parts {
			parts = append(parts, gmPart{Text: p})
		}
		body.Contents = append(body.Contents, gmContent{Role: geminiRole(turn.Role), Parts: parts})
	}
	body.Contents = append(body.Contents, gmContent{Role: "user", Parts: []gmPart{{Text: req.Message}}})
	return json.Marshal(&body)
}

func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	payload, err := encodeGemini(req)
	if err != nil {
		return "", fmt.Errorf("gemini: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("gemini: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.hc.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("gemini: %w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", fmt.Errorf("gemini: read response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("gemini: %w: status %d: %s", ErrUpstream, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out gmResp
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("gemini: decode response: %w", err)
	}
	if len(out.Candidates) == 0 {
		return "", fmt.Errorf("gemini: %w", ErrEmptyReply)
	}
	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("gemini: %w", ErrEmptyReply)
	}
	return sb.String(), nil
}
