package oaihttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/config"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/llm"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/pkg/httpx"
)

// Engine talks to an OpenAI-compatible chat completion API (OpenRouter by
// default). Retries, timeouts and caching live in the gateway.
type Engine struct {
	name    string
	baseURL string
	apiKey  string

	chatCompletionsPath string

	siteURL  string
	siteName string

	httpClient *http.Client
}

func New(cfg config.GatewayConfig) (*Engine, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("oai_http: base_url required")
	}

	chatPath := strings.TrimSpace(cfg.ChatCompletionsPath)
	if chatPath == "" {
		chatPath = "/v1/chat/completions"
	}

	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	name := strings.TrimSpace(cfg.Engine)
	if name == "" {
		name = config.EngineOAIHTTP
	}

	return &Engine{
		name:                name,
		baseURL:             baseURL,
		apiKey:              strings.TrimSpace(cfg.APIKey),
		chatCompletionsPath: chatPath,
		siteURL:             strings.TrimSpace(cfg.SiteURL),
		siteName:            strings.TrimSpace(cfg.SiteName),
		httpClient:          &http.Client{Transport: tr},
	}, nil
}

// NewWithHTTPClient is intended for tests; it avoids network access by using a custom RoundTripper.
func NewWithHTTPClient(cfg config.GatewayConfig, httpClient *http.Client) (*Engine, error) {
	e, err := New(cfg)
	if err != nil {
		return nil, err
	}
	if httpClient != nil {
		e.httpClient = httpClient
	}
	return e, nil
}

func (e *Engine) Name() string { return e.name }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content,omitempty"`
		} `json:"message,omitempty"`
		Text string `json:"text,omitempty"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error,omitempty"`
}

func (e *Engine) Complete(ctx context.Context, req llm.Request) (string, error) {
	msgs := toChatMessages(req.Messages)
	if len(msgs) == 0 {
		return "", llm.ErrNoMessages
	}
	if strings.TrimSpace(req.Model) == "" {
		return "", errors.New("oai_http: model required")
	}

	body := chatCompletionRequest{
		Model:       req.Model,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	var resp chatCompletionResponse
	if err := e.doJSON(ctx, http.MethodPost, e.chatCompletionsPath, body, &resp); err != nil {
		return "", err
	}
	if resp.Error != nil && strings.TrimSpace(resp.Error.Message) != "" {
		// OpenRouter reports some upstream failures inside a 200 body.
		return "", &HTTPError{StatusCode: http.StatusBadGateway, Body: resp.Error.Message}
	}

	text := extractChatText(resp)
	if strings.TrimSpace(text) == "" {
		return "", llm.ErrEmptyCompletion
	}
	return text, nil
}

func toChatMessages(messages []llm.Message) []chatMessage {
	out := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		role := strings.TrimSpace(m.Role)
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		if role == "" {
			role = llm.RoleUser
		}
		out = append(out, chatMessage{Role: role, Content: content})
	}
	return out
}

func extractChatText(resp chatCompletionResponse) string {
	for _, c := range resp.Choices {
		if strings.TrimSpace(c.Message.Content) != "" {
			return c.Message.Content
		}
		if strings.TrimSpace(c.Text) != "" {
			return c.Text
		}
	}
	return ""
}

func (e *Engine) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}
	if e.siteURL != "" {
		req.Header.Set("HTTP-Referer", e.siteURL)
	}
	if e.siteName != "" {
		req.Header.Set("X-Title", e.siteName)
	}
}

func (e *Engine) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, e.baseURL+path, &buf)
	if err != nil {
		return err
	}
	e.setHeaders(req)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return &HTTPError{
			StatusCode: resp.StatusCode,
			Body:       string(raw),
			retryAfter: httpx.ParseRetryAfter(resp.Header.Get("Retry-After"), 0),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("oai_http: decode response: %w", err)
	}
	return nil
}
