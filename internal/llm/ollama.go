package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"

	"github.com/Skufu/medassist/internal/history"
)

// Ollama answers through a local Ollama server's chat endpoint.
type Ollama struct {
	Client *api.Client
	Model  string
}

// NewOllama creates a client for host, or OLLAMA_HOST when host is empty.
func NewOllama(host, model string, timeout time.Duration) (*Ollama, error) {
	hostURL := envconfig.Host()
	if host != "" {
		u, err := url.Parse(host)
		if err != nil {
			return nil, fmt.Errorf("ollama: parse host: %w", err)
		}
		hostURL = u
	}
	client := api.NewClient(hostURL, &http.Client{Timeout: timeout})

	return &Ollama{
		Client: client,
		Model:  model,
	}, nil
}

func (o *Ollama) Name() string { return "ollama" }

func ollamaMessages(req Request) []api.Message {
	msgs := make([]api.Message, 0, len(req.History)+2)
	if req.System != "" {
		msgs = append(msgs, api.Message{Role: "system", Content: req.System})
	}
	for _, turn := range req.History {
		role := "user"
		if turn.Role == history.RoleAssistant {
			role = "assistant"
		}
		msgs = append(msgs, api.Message{Role: role, Content: turn.Text()})
	}
	return append(msgs, api.Message{Role: "user", Content: req.Message})
}

func (o *Ollama) Generate(ctx context.Context, req Request) (string, error) {
	stream := false
	chatReq := api.ChatRequest{
		Model:    o.Model,
		Messages: ollamaMessages(req),
		Stream:   &stream,
		Options: map[string]interface{}{
			"temperature": 0.2,
		},
	}

	var responseBuilder strings.Builder
	err := o.Client.Chat(ctx, &chatReq, func(resp api.ChatResponse) error {
		_, err := responseBuilder.WriteString(resp.Message.Content)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("ollama: %w: %v", ErrUpstream, err)
	}
	if responseBuilder.Len() == 0 {
		return "", fmt.Errorf("ollama: %w", ErrEmptyReply)
	}
	return responseBuilder.String(), nil
}
