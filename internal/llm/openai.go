package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// OpenAIProvider talks to any OpenAI-compatible chat completion endpoint
// (OpenAI, Ollama, vLLM, OpenRouter).
type OpenAIProvider struct {
	baseURL      string
	apiKey       string
	defaultModel string
	client       *http.Client
	log          *logrus.Logger
}

// NewOpenAIProvider creates a provider against baseURL (without the
// /chat/completions suffix).
func NewOpenAIProvider(baseURL, apiKey, defaultModel string, timeout time.Duration, log *logrus.Logger) *OpenAIProvider {
	if log == nil {
		log = logrus.New()
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OpenAIProvider{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		defaultModel: defaultModel,
		client:       &http.Client{Timeout: timeout},
		log:          log,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
		Delta   chatMessage `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *OpenAIProvider) messages(req *Request) []chatMessage {
	msgs := make([]chatMessage, 0, len(req.History)+2)
	if req.System != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: req.System})
	}
	for _, t := range req.History {
		msgs = append(msgs, chatMessage{Role: t.Role, Content: t.Content})
	}
	if req.Prompt != "" {
		msgs = append(msgs, chatMessage{Role: "user", Content: req.Prompt})
	}
	return msgs
}

func (p *OpenAIProvider) model(req *Request) string {
	if req.Model != "" {
		return req.Model
	}
	return p.defaultModel
}

func (p *OpenAIProvider) post(ctx context.Context, body *chatRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return resp, nil
}

func (p *OpenAIProvider) complete(ctx context.Context, op string, req *Request) (string, error) {
	model := p.model(req)
	resp, err := p.post(ctx, &chatRequest{
		Model:       model,
		Messages:    p.messages(req),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", &ProviderError{Op: op, Model: model, Err: err}
	}
	defer resp.Body.Close()

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &ProviderError{Op: op, Model: model, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if out.Error != nil {
		return "", &ProviderError{Op: op, Model: model, Err: fmt.Errorf("api error: %s", out.Error.Message)}
	}
	if len(out.Choices) == 0 {
		return "", &ProviderError{Op: op, Model: model, Err: fmt.Errorf("empty choices")}
	}

	p.log.WithFields(logrus.Fields{
		"op":    op,
		"model": model,
		"bytes": len(out.Choices[0].Message.Content),
	}).Debug("Provider call completed")

	return out.Choices[0].Message.Content, nil
}

// Generate returns the full completion for a generation prompt.
func (p *OpenAIProvider) Generate(ctx context.Context, req *Request) (string, error) {
	return p.complete(ctx, "generate", req)
}

// GenerateStream streams the completion chunk by chunk over SSE.
func (p *OpenAIProvider) GenerateStream(ctx context.Context, req *Request) (<-chan StreamChunk, error) {
	model := p.model(req)
	resp, err := p.post(ctx, &chatRequest{
		Model:       model,
		Messages:    p.messages(req),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      true,
	})
	if err != nil {
		return nil, &ProviderError{Op: "generate_stream", Model: model, Err: err}
	}

	out := make(chan StreamChunk, 16)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				out <- StreamChunk{Done: true}
				return
			}

			var chunk chatResponse
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue // skip malformed keep-alive lines
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			if content := chunk.Choices[0].Delta.Content; content != "" {
				select {
				case out <- StreamChunk{Content: content}:
				case <-ctx.Done():
					out <- StreamChunk{Err: &ProviderError{Op: "generate_stream", Model: model, Err: ctx.Err()}}
					return
				}
			}
		}
		if err := scanner.Err(); err != nil {
			out <- StreamChunk{Err: &ProviderError{Op: "generate_stream", Model: model, Err: err}}
			return
		}
		out <- StreamChunk{Done: true}
	}()

	return out, nil
}

// structured issues a low-temperature completion for JSON-shaped output.
func (p *OpenAIProvider) structured(ctx context.Context, op string, req *Request) (string, error) {
	r := *req
	r.Temperature = 0.1
	return p.complete(ctx, op, &r)
}

// ScoreRound asks the judge model for a structured round score.
func (p *OpenAIProvider) ScoreRound(ctx context.Context, req *Request) (string, error) {
	return p.structured(ctx, "score_round", req)
}

// DecideAudienceRequest asks an audience model whether it wants to speak.
func (p *OpenAIProvider) DecideAudienceRequest(ctx context.Context, req *Request) (string, error) {
	return p.structured(ctx, "decide_audience_request", req)
}

// ApproveAudienceRequest asks the judge model to rule on a raised request.
func (p *OpenAIProvider) ApproveAudienceRequest(ctx context.Context, req *Request) (string, error) {
	return p.structured(ctx, "approve_audience_request", req)
}

// CastVote asks an audience model for its final ballot.
func (p *OpenAIProvider) CastVote(ctx context.Context, req *Request) (string, error) {
	return p.structured(ctx, "cast_vote", req)
}
