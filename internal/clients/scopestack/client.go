// Package scopestack pushes generated scopes to the ScopeStack API as new
// projects.
package scopestack

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
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/domain/scoping"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/platform/ctxutil"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/platform/logger"
)

var ErrNotConfigured = errors.New("scopestack: base url, token and account are required")

// HTTPError is a non-2xx answer from ScopeStack.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("scopestack: status %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPError) HTTPStatusCode() int { return e.StatusCode }

type Client struct {
	log        *logger.Logger
	baseURL    string
	token      string
	account    string
	httpClient *http.Client
}

func New(cfg config.ScopeStackConfig, log *logger.Logger) (*Client, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}
	if log == nil {
		log = logger.Nop()
	}
	timeout := cfg.Timeout.Duration
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		log:     log.With("component", "ScopeStackClient"),
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		token:   strings.TrimSpace(cfg.APIToken),
		account: strings.Trim(strings.TrimSpace(cfg.AccountSlug), "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				DialContext:         (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// NewWithHTTPClient swaps the transport, for tests.
func NewWithHTTPClient(cfg config.ScopeStackConfig, log *logger.Logger, httpClient *http.Client) (*Client, error) {
	c, err := New(cfg, log)
	if err != nil {
		return nil, err
	}
	if httpClient != nil {
		c.httpClient = httpClient
	}
	return c, nil
}

type PushResult struct {
	ProjectID string `json:"projectId"`
	URL       string `json:"url,omitempty"`
}

type projectEnvelope struct {
	Data projectData `json:"data"`
}

type projectData struct {
	Type       string            `json:"type"`
	Attributes projectAttributes `json:"attributes"`
}

type projectAttributes struct {
	ProjectName      string             `json:"project-name"`
	ExecutiveSummary string             `json:"executive-summary,omitempty"`
	TotalHours       float64            `json:"total-hours"`
	Services         []projectService   `json:"services"`
	Questions        []projectQuestion  `json:"questions"`
	References       []projectReference `json:"references"`
	GeneratorRunID   string             `json:"generator-run-id,omitempty"`
}

type projectService struct {
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Phase       string              `json:"phase"`
	Hours       float64             `json:"hours"`
	Quantity    float64             `json:"quantity"`
	Subservices []projectSubservice `json:"subservices"`
}

type projectSubservice struct {
	Name     string  `json:"name"`
	Hours    float64 `json:"hours"`
	Quantity float64 `json:"quantity"`
}

type projectQuestion struct {
	Slug         string   `json:"slug"`
	Text         string   `json:"text"`
	Type         string   `json:"type"`
	Options      []string `json:"options,omitempty"`
	DefaultValue any      `json:"default-value,omitempty"`
}

type projectReference struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type createResponse struct {
	Data struct {
		ID    string `json:"id"`
		Links struct {
			Self string `json:"self"`
		} `json:"links"`
	} `json:"data"`
}

// PushProject creates a project from content. Only success or failure is
// reported back; nothing is retried.
func (c *Client) PushProject(ctx context.Context, content scoping.GeneratedContent) (PushResult, error) {
	if len(content.Services) == 0 {
		return PushResult{}, errors.New("scopestack: content has no services")
	}
	body := projectEnvelope{Data: projectData{Type: "projects", Attributes: toAttributes(content)}}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return PushResult{}, err
	}

	url := fmt.Sprintf("%s/%s/v1/projects", c.baseURL, c.account)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return PushResult{}, err
	}
	req.Header.Set("Content-Type", "application/vnd.api+json")
	req.Header.Set("Accept", "application/vnd.api+json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return PushResult{}, fmt.Errorf("scopestack: push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return PushResult{}, &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var out createResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && !errors.Is(err, io.EOF) {
		return PushResult{}, fmt.Errorf("scopestack: decode response: %w", err)
	}
	res := PushResult{ProjectID: out.Data.ID, URL: out.Data.Links.Self}
	c.log.Info("project pushed", append([]interface{}{
		"run_id", content.RunID,
		"project_id", res.ProjectID,
		"duration_ms", time.Since(start).Milliseconds(),
	}, ctxutil.LogFields(ctx)...)...)
	return res, nil
}

func toAttributes(content scoping.GeneratedContent) projectAttributes {
	attrs := projectAttributes{
		ProjectName:      content.Technology,
		ExecutiveSummary: content.ResearchSummary,
		TotalHours:       content.TotalHours,
		Services:         make([]projectService, 0, len(content.Services)),
		Questions:        make([]projectQuestion, 0, len(content.Questions)),
		References:       make([]projectReference, 0, len(content.Sources)),
		GeneratorRunID:   content.RunID,
	}
	for _, svc := range content.Services {
		ps := projectService{
			Name:        svc.Name,
			Description: firstNonEmpty(svc.ServiceDescription, svc.Description),
			Phase:       svc.Phase,
			Hours:       svc.Hours,
			Quantity:    svc.Quantity,
			Subservices: make([]projectSubservice, 0, len(svc.Subservices)),
		}
		for _, sub := range svc.Subservices {
			ps.Subservices = append(ps.Subservices, projectSubservice{Name: sub.Name, Hours: sub.Hours, Quantity: sub.Quantity})
		}
		attrs.Services = append(attrs.Services, ps)
	}
	for _, q := range content.Questions {
		attrs.Questions = append(attrs.Questions, projectQuestion{
			Slug:         q.Slug,
			Text:         q.Text,
			Type:         string(q.Type),
			Options:      q.Options,
			DefaultValue: q.DefaultValue,
		})
	}
	for _, s := range content.Sources {
		attrs.References = append(attrs.References, projectReference{Title: s.Title, URL: s.URL})
	}
	return attrs
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
