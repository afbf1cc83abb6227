package assistant

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Skufu/medassist/internal/llm"
	"github.com/Skufu/medassist/internal/logging"
	"github.com/Skufu/medassist/internal/metrics"
)

// Gateway forwards prompts to the model and appends each exchange to the session.
type Gateway struct {
	model   llm.Model
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewGateway creates a gateway. m may be nil.
func NewGateway(model llm.Model, m *metrics.Metrics) *Gateway {
	return &Gateway{
		model:   model,
		metrics: m,
		log:     logging.WithComponent("gateway"),
	}
}

// Respond sends prompt with the session's instruction and history. On success
// the user and assistant turns are appended and persisted. If the model call
// or the save fails the transcript is left unchanged.
func (g *Gateway) Respond(ctx context.Context, s *Session, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	reply, err := g.model.Generate(ctx, llm.Request{
		System:  s.Instruction,
		History: s.transcript,
		Message: prompt,
	})
	elapsed := time.Since(start)
	if err != nil {
		g.record(elapsed, err)
		g.log.Error().Err(err).Str("session", s.ID).Dur("elapsed", elapsed).Msg("model call failed")
		return "", fmt.Errorf("generate reply: %w", err)
	}

	next := s.transcript.Append(prompt, reply)
	if err := s.store.Save(ctx, next); err != nil {
		g.record(elapsed, err)
		g.log.Error().Err(err).Str("session", s.ID).Msg("history not saved, exchange dropped")
		return "", fmt.Errorf("save history: %w", err)
	}
	s.transcript = next
	g.record(elapsed, nil)

	g.log.Debug().Str("session", s.ID).Int("turns", len(s.transcript)).Dur("elapsed", elapsed).Msg("exchange recorded")
	return reply, nil
}

func (g *Gateway) record(elapsed time.Duration, err error) {
	if g.metrics != nil {
		g.metrics.RecordExchange(g.model.Name(), elapsed.Seconds(), err)
	}
}
