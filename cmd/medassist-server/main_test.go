package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehr/medassist/internal/config"
	"github.com/ehr/medassist/internal/platform/mockdata"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:                        "8000",
		Env:                         "test",
		CountMode:                   "group",
		BodyLimit:                   "1M",
		RequestTimeout:              5 * time.Second,
		DictationDelay:              0,
		DictationQueueSize:          4,
		RNGSeed:                     7,
		ResetHistoryOnProfileChange: true,
		MetricsEnabled:              true,
	}
}

type testClient struct {
	t   *testing.T
	url string
}

func (c testClient) do(method, path, body string) (*http.Response, []byte) {
	c.t.Helper()
	req, err := http.NewRequest(method, c.url+path, strings.NewReader(body))
	require.NoError(c.t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(c.t, err)
	return resp, buf.Bytes()
}

func startTestServer(t *testing.T, cfg *config.Config) testClient {
	t.Helper()
	srv, err := buildServer(cfg, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.simulator.Run(ctx)
	}()

	ts := httptest.NewServer(srv.echo)
	t.Cleanup(func() {
		ts.Close()
		cancel()
		<-done
	})
	return testClient{t: t, url: ts.URL}
}

func TestServer_DictationWorkflow(t *testing.T) {
	c := startTestServer(t, testConfig())

	resp, _ := c.do(http.MethodPost, "/api/v1/dictations", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "dictation needs an active profile")

	resp, body := c.do(http.MethodPost, "/api/v1/profile", `{"insurance_number":"12345"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "9 digits")

	resp, _ = c.do(http.MethodPost, "/api/v1/profile", `{"insurance_number":"123456789"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = c.do(http.MethodPost, "/api/v1/dictations", "")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var task struct {
		ID    string `json:"id"`
		State string `json:"state"`
	}
	require.NoError(t, json.Unmarshal(body, &task))

	require.Eventually(t, func() bool {
		_, body := c.do(http.MethodGet, "/api/v1/dictations/"+task.ID, "")
		var got struct {
			State string `json:"state"`
		}
		if err := json.Unmarshal(body, &got); err != nil {
			return false
		}
		return got.State == "ready"
	}, 2*time.Second, 10*time.Millisecond)

	resp, _ = c.do(http.MethodPost, "/api/v1/dictations/"+task.ID+"/send", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = c.do(http.MethodGet, "/api/v1/history?status=sent", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Total int `json:"total"`
		Data  []struct {
			Status  string            `json:"status"`
			Entries []json.RawMessage `json:"entries"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &list))
	require.Equal(t, 1, list.Total)
	assert.Equal(t, "sent", list.Data[0].Status)
	assert.Len(t, list.Data[0].Entries, 2)

	resp, body = c.do(http.MethodGet, "/api/v1/history/counts", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"open":0,"saved":0,"sent":1,"mode":"group"}`, string(body))

	resp, body = c.do(http.MethodGet, "/api/v1/dictations/"+task.ID+"/export", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF-")))

	resp, body = c.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "medassist_history_entries_created")
}

func TestServer_ProfileChangeResetsHistory(t *testing.T) {
	c := startTestServer(t, testConfig())

	c.do(http.MethodPost, "/api/v1/profile", `{"insurance_number":"123456789"}`)
	resp, _ := c.do(http.MethodPost, "/api/v1/history", `{"title":"letter","content":"Brief"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	c.do(http.MethodPost, "/api/v1/profile", `{"insurance_number":"987654321"}`)
	_, body := c.do(http.MethodGet, "/api/v1/history/counts", "")
	assert.JSONEq(t, `{"open":0,"saved":0,"sent":0,"mode":"group"}`, string(body))
}

func TestServer_DeleteAllOpen(t *testing.T) {
	cfg := testConfig()
	cfg.CountMode = "entry"
	c := startTestServer(t, cfg)

	c.do(http.MethodPost, "/api/v1/profile", `{"insurance_number":"123456789"}`)
	for _, status := range []string{"open", "open", "open", "saved", "saved"} {
		resp, _ := c.do(http.MethodPost, "/api/v1/history", `{"title":"letter","content":"x","status":"`+status+`"}`)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, body := c.do(http.MethodDelete, "/api/v1/history/open", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"removed":3}`, string(body))

	_, body = c.do(http.MethodGet, "/api/v1/history/counts", "")
	assert.JSONEq(t, `{"open":0,"saved":2,"sent":0,"mode":"entry"}`, string(body))
}

func TestServer_HealthAndHeaders(t *testing.T) {
	cfg := testConfig()
	cfg.MetricsEnabled = false
	c := startTestServer(t, cfg)

	resp, body := c.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"status":"ok"`)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	resp, _ = c.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBuildServer_RejectsBadCountMode(t *testing.T) {
	cfg := testConfig()
	cfg.CountMode = "pairs"
	_, err := buildServer(cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestPrintPools_RoundTrips(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printPools(&buf, ""))

	pools, err := mockdata.ParsePools(&buf)
	require.NoError(t, err)
	assert.NotEmpty(t, pools.Scenarios)
}

func TestVersionCmd(t *testing.T) {
	cmd := versionCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.Run(cmd, nil)
	assert.Equal(t, "medassist-server dev\n", buf.String())
}

func TestNewLogger_Level(t *testing.T) {
	cfg := testConfig()
	cfg.LogLevel = "warn"
	var buf bytes.Buffer
	logger := newLogger(cfg, &buf)

	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
