package scopestack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/config"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/domain/scoping"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/pkg/httpx"
)

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func response(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Header: http.Header{}, Body: io.NopCloser(bytes.NewBufferString(body))}
}

func testConfig() config.ScopeStackConfig {
	return config.ScopeStackConfig{BaseURL: "https://api.scopestack.example/", APIToken: "tok", AccountSlug: "acme"}
}

func testContent() scoping.GeneratedContent {
	return scoping.GeneratedContent{
		RunID:      "run-9",
		Technology: "Cisco Meraki",
		TotalHours: 14,
		Services: []scoping.Service{{
			ID: "svc_0", Name: "Deploy", Phase: "Execution", Hours: 14, Quantity: 1,
			Subservices: []scoping.Subservice{{ID: "sub_0_0", Name: "Install APs", Hours: 14, Quantity: 7}},
		}},
		Questions: []scoping.Question{{ID: "q_0", Slug: "site_qty", Text: "How many sites?", Type: scoping.QuestionNumber, DefaultValue: 1.0}},
		Sources:   []scoping.ResearchSource{{Title: "Meraki docs", URL: "https://documentation.meraki.com"}},
	}
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(config.ScopeStackConfig{BaseURL: "https://x"}, nil)
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestPushProject(t *testing.T) {
	client := &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, http.MethodPost, req.Method)
		assert.Equal(t, "/acme/v1/projects", req.URL.Path)
		assert.Equal(t, "Bearer tok", req.Header.Get("Authorization"))

		var body projectEnvelope
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		assert.Equal(t, "projects", body.Data.Type)
		assert.Equal(t, "Cisco Meraki", body.Data.Attributes.ProjectName)
		assert.Equal(t, 14.0, body.Data.Attributes.TotalHours)
		require.Len(t, body.Data.Attributes.Services, 1)
		assert.Equal(t, 7.0, body.Data.Attributes.Services[0].Subservices[0].Quantity)
		assert.Equal(t, "site_qty", body.Data.Attributes.Questions[0].Slug)
		assert.Equal(t, "run-9", body.Data.Attributes.GeneratorRunID)

		return response(http.StatusCreated, `{"data": {"id": "4411", "links": {"self": "https://app.scopestack.example/projects/4411"}}}`), nil
	})}
	c, err := NewWithHTTPClient(testConfig(), nil, client)
	require.NoError(t, err)

	res, err := c.PushProject(context.Background(), testContent())
	require.NoError(t, err)
	assert.Equal(t, "4411", res.ProjectID)
	assert.Equal(t, "https://app.scopestack.example/projects/4411", res.URL)
}

func TestPushProjectReportsFailure(t *testing.T) {
	client := &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		return response(http.StatusUnprocessableEntity, `{"errors": [{"detail": "project-name is taken"}]}`), nil
	})}
	c, err := NewWithHTTPClient(testConfig(), nil, client)
	require.NoError(t, err)

	_, err = c.PushProject(context.Background(), testContent())
	var he *HTTPError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, http.StatusUnprocessableEntity, he.StatusCode)
	assert.Contains(t, he.Body, "project-name is taken")
	assert.False(t, httpx.IsRetryableError(err))
}

func TestPushProjectRejectsEmptyContent(t *testing.T) {
	called := false
	client := &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		called = true
		return response(http.StatusCreated, `{}`), nil
	})}
	c, err := NewWithHTTPClient(testConfig(), nil, client)
	require.NoError(t, err)

	_, err = c.PushProject(context.Background(), scoping.GeneratedContent{Technology: "x"})
	require.Error(t, err)
	assert.False(t, called)
}
