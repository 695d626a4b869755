/*
Package tracker provides HTTP clients for the issue tracker (Jira) and the
time-tracking service (Tempo).

TEMPO ENDPOINT FALLBACK:
  Tempo has moved its worklog API several times. The client tries, in order:

    <base>/rest/tempo-timesheets/4/worklogs
    <base>/rest/tempo-timesheets/4/worklogs/search
    <base>/rest/tempo-timesheets/3/worklogs
    <base>/rest/tempo-timesheets/3/worklogs/search
    <base>/rest/tempo-core/1/worklogs
    <base>/rest/tempo-core/1/worklogs/search

  The first 200 response with a recognizable body wins. Each attempt has its
  own timeout. When every attempt fails the caller gets a
  capacity.UpstreamError listing each failure, never an empty result.

RESPONSE SHAPES:
  [ {...}, ... ]                a bare array
  {"results":  [ {...} ]}       v4 search
  {"worklogs": [ {...} ]}       older releases

SEE ALSO:
  - capacity/worklog.go: Normalizes what this client returns
  - jira.go: Project and user directory client
*/
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/warp/capacity-engine/capacity"
)

// DefaultTimeout is the per-attempt timeout for upstream calls.
const DefaultTimeout = 30 * time.Second

var tempoBases = []string{
	"/rest/tempo-timesheets/4",
	"/rest/tempo-timesheets/3",
	"/rest/tempo-core/1",
}

var tempoSuffixes = []string{"/worklogs", "/worklogs/search"}

// errUnexpectedShape marks a 200 response whose body is not a worklog list.
var errUnexpectedShape = errors.New("unexpected response shape")

// Observer receives one call per upstream attempt. Outcome is "ok" or "error".
type Observer interface {
	ObserveUpstream(service, endpoint, outcome string, d time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveUpstream(string, string, string, time.Duration) {}

// =============================================================================
// TEMPO CLIENT
// =============================================================================

type TempoConfig struct {
	BaseURL  string
	APIToken string
	Timeout  time.Duration
}

// Tempo implements capacity.WorklogSource.
type Tempo struct {
	cfg      TempoConfig
	client   *http.Client
	log      logrus.FieldLogger
	observer Observer
}

// NewTempo builds a client. client may be nil; observer may be nil.
func NewTempo(cfg TempoConfig, client *http.Client, log logrus.FieldLogger, observer Observer) *Tempo {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if client == nil {
		client = &http.Client{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Tempo{cfg: cfg, client: client, log: log.WithField("component", "tempo"), observer: observer}
}

// Configured reports whether both a base URL and a token are set.
func (t *Tempo) Configured() bool {
	return t.cfg.BaseURL != "" && t.cfg.APIToken != ""
}

// FetchWorklogs returns the raw worklogs of the first endpoint that answers.
func (t *Tempo) FetchWorklogs(ctx context.Context, q capacity.WorklogQuery) ([]capacity.RawWorklog, error) {
	if !t.Configured() {
		return nil, capacity.NotConfigured("tempo")
	}

	params := url.Values{}
	params.Set("from", q.Window.Start.String())
	params.Set("to", q.Window.End.String())
	if q.ProjectKey != "" {
		params.Set("projectKey", q.ProjectKey)
	}
	if q.AccountID != "" {
		params.Set("accountId", q.AccountID)
	}

	var attempts []error
	for _, base := range tempoBases {
		for _, suffix := range tempoSuffixes {
			path := base + suffix
			raws, err := t.attempt(ctx, path, params)
			if err == nil {
				t.log.WithFields(logrus.Fields{"endpoint": path, "worklogs": len(raws)}).Debug("worklogs fetched")
				return raws, nil
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			t.log.WithError(err).WithField("endpoint", path).Debug("worklog endpoint failed")
			attempts = append(attempts, fmt.Errorf("%s: %w", path, err))
		}
	}

	t.log.WithField("attempts", len(attempts)).Warn("all tempo endpoints failed")
	return nil, &capacity.UpstreamError{Service: "tempo", Reason: "all endpoints failed", Attempts: attempts}
}

func (t *Tempo) attempt(ctx context.Context, path string, params url.Values) (raws []capacity.RawWorklog, err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		t.observer.ObserveUpstream("tempo", path, outcome, time.Since(start))
	}()

	ctx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.cfg.BaseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+t.cfg.APIToken)
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return decodeWorklogBody(body)
}

// decodeWorklogBody accepts any of the known response shapes.
func decodeWorklogBody(body []byte) ([]capacity.RawWorklog, error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		return capacity.DecodeRawWorklogs(body)
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	for _, key := range []string{"results", "worklogs"} {
		if inner, ok := envelope[key]; ok {
			return capacity.DecodeRawWorklogs(inner)
		}
	}
	return nil, errUnexpectedShape
}
