// Package report turns an uploaded medical PDF into a model prompt and
// returns the extracted data with the model's analysis.
package report

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Skufu/medassist/internal/assistant"
	"github.com/Skufu/medassist/internal/extract"
	"github.com/Skufu/medassist/internal/logging"
	"github.com/Skufu/medassist/internal/metrics"
)

// Extractor is the document extraction capability used by Service.
type Extractor interface {
	Extract(path string) (*extract.Result, error)
}

// Responder sends a prompt within a session.
type Responder interface {
	Respond(ctx context.Context, s *assistant.Session, prompt string) (string, error)
}

// Analysis is the outcome of analyzing one report.
type Analysis struct {
	Strategy      extract.Strategy
	ExtractedData map[string]string
	AIAnalysis    string
}

// Service runs extraction and sends the resulting prompt through the gateway.
type Service struct {
	extractor Extractor
	gateway   Responder
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

// NewService creates a Service. m may be nil.
func NewService(extractor Extractor, gateway Responder, m *metrics.Metrics) *Service {
	return &Service{
		extractor: extractor,
		gateway:   gateway,
		metrics:   m,
		log:       logging.WithComponent("report"),
	}
}

// Analyze extracts the PDF at path and asks the model to explain it.
func (s *Service) Analyze(ctx context.Context, sess *assistant.Session, path string) (*Analysis, error) {
	res, err := s.extractor.Extract(path)
	if err != nil {
		return nil, fmt.Errorf("extract report: %w", err)
	}
	s.log.Info().Str("session", sess.ID).Str("strategy", string(res.Strategy)).Int("entries", len(res.Data())).Msg("report extracted")
	if s.metrics != nil {
		s.metrics.ReportsAnalyzed.WithLabelValues(string(res.Strategy)).Inc()
	}

	prompt, err := BuildPrompt(res)
	if err != nil {
		return nil, err
	}
	reply, err := s.gateway.Respond(ctx, sess, prompt)
	if err != nil {
		return nil, err
	}
	return &Analysis{Strategy: res.Strategy, ExtractedData: res.Data(), AIAnalysis: reply}, nil
}

const labTemplate = `Here are the lab test results extracted from a patient's medical report:

%s

Please explain these results in simple terms and flag any abnormal values.`

const clinicalTemplate = `Here are the key sections extracted from a patient's clinical note:

%s

Please summarize the patient's condition and highlight the key concerns.`

// BuildPrompt embeds the extracted mapping, as indented JSON, in the template
// for its strategy.
func BuildPrompt(res *extract.Result) (string, error) {
	data, err := json.MarshalIndent(res.Data(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode extracted data: %w", err)
	}
	if res.Strategy == extract.StrategyTabular {
		return fmt.Sprintf(labTemplate, data), nil
	}
	return fmt.Sprintf(clinicalTemplate, data), nil
}
