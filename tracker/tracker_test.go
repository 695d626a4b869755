package tracker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/capacity-engine/capacity"
)

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *recordingObserver) ObserveUpstream(service, endpoint, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, service+" "+endpoint+" "+outcome)
}

func testWindow() capacity.Period {
	return capacity.Period{Start: capacity.MustParseDate("2025-01-06"), End: capacity.MustParseDate("2025-01-10")}
}

func newTestTempo(t *testing.T, url string, obs Observer) *Tempo {
	t.Helper()
	logger, _ := test.NewNullLogger()
	return NewTempo(TempoConfig{BaseURL: url, APIToken: "secret", Timeout: time.Second}, nil, logger, obs)
}

// =============================================================================
// TEMPO
// =============================================================================

func TestTempo_FallsBackToNextEndpoint(t *testing.T) {
	var paths []string
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()

		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		if r.URL.Path != "/rest/tempo-timesheets/4/worklogs/search" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		assert.Equal(t, "2025-01-06", r.URL.Query().Get("from"))
		assert.Equal(t, "2025-01-10", r.URL.Query().Get("to"))
		assert.Equal(t, "ALPHA", r.URL.Query().Get("projectKey"))
		w.Write([]byte(`{"results":[{"startDate":"2025-01-06","timeSpentSeconds":5400,"author":{"accountId":"acc-1"}}]}`))
	}))
	defer srv.Close()

	obs := &recordingObserver{}
	raws, err := newTestTempo(t, srv.URL, obs).FetchWorklogs(context.Background(),
		capacity.WorklogQuery{Window: testWindow(), ProjectKey: "ALPHA"})

	require.NoError(t, err)
	require.Len(t, raws, 1)
	assert.Equal(t, []string{"/rest/tempo-timesheets/4/worklogs", "/rest/tempo-timesheets/4/worklogs/search"}, paths)
	assert.Equal(t, []string{
		"tempo /rest/tempo-timesheets/4/worklogs error",
		"tempo /rest/tempo-timesheets/4/worklogs/search ok",
	}, obs.outcomes)

	// Large integers survive as json.Number
	w := capacity.NormalizeWorklog(raws[0], nil)
	assert.Equal(t, int64(5400), w.TimeSpentSeconds)
	assert.Equal(t, "acc-1", w.AccountID)
}

func TestTempo_AcceptsKnownShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "bare array", body: `[{"date":"2025-01-07","timeSpentSeconds":3600}]`},
		{name: "results envelope", body: `{"results":[{"date":"2025-01-07","timeSpentSeconds":3600}]}`},
		{name: "worklogs envelope", body: `{"worklogs":[{"date":"2025-01-07","timeSpentSeconds":3600}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			raws, err := newTestTempo(t, srv.URL, nil).FetchWorklogs(context.Background(), capacity.WorklogQuery{Window: testWindow()})

			require.NoError(t, err)
			require.Len(t, raws, 1)
		})
	}
}

func TestTempo_UnknownShapeCountsAsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/rest/tempo-core/1/worklogs" {
			w.Write([]byte(`[]`))
			return
		}
		w.Write([]byte(`{"message":"moved"}`))
	}))
	defer srv.Close()

	raws, err := newTestTempo(t, srv.URL, nil).FetchWorklogs(context.Background(), capacity.WorklogQuery{Window: testWindow()})

	require.NoError(t, err)
	assert.Empty(t, raws)
}

func TestTempo_AllEndpointsFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestTempo(t, srv.URL, nil).FetchWorklogs(context.Background(), capacity.WorklogQuery{Window: testWindow()})

	require.Error(t, err)
	assert.True(t, capacity.IsUpstreamUnavailable(err))
	var upstream *capacity.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Len(t, upstream.Attempts, 6)
	assert.Contains(t, err.Error(), "status 500")
}

func TestTempo_NotConfigured(t *testing.T) {
	tempo := NewTempo(TempoConfig{BaseURL: "https://example.atlassian.net"}, nil, nil, nil)

	assert.False(t, tempo.Configured())
	_, err := tempo.FetchWorklogs(context.Background(), capacity.WorklogQuery{Window: testWindow()})
	assert.True(t, capacity.IsUpstreamUnavailable(err))
	assert.Contains(t, err.Error(), "not configured")
}

// =============================================================================
// JIRA
// =============================================================================

func newTestJira(t *testing.T, url string) *Jira {
	t.Helper()
	logger, _ := test.NewNullLogger()
	j := NewJira(JiraConfig{BaseURL: url, Email: "bot@example.com", APIToken: "token", Timeout: time.Second}, nil, logger, nil)
	j.now = func() time.Time { return time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC) }
	return j
}

func TestJira_ProjectsFlattenDocumentDescription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "bot@example.com", user)
		assert.Equal(t, "token", pass)
		assert.Equal(t, "/rest/api/3/project", r.URL.Path)
		assert.Equal(t, "description,lead", r.URL.Query().Get("expand"))

		w.Write([]byte(`[
			{"key":"ALPHA","name":"Alpha","description":"Plain","projectTypeKey":"software",
			 "lead":{"emailAddress":"lead@example.com"},"avatarUrls":{"48x48":"https://img/a.png"}},
			{"key":"BETA","name":"Beta","description":{"type":"doc","content":[
				{"type":"paragraph","content":[{"type":"text","text":"Rich"},{"type":"text","text":"text"}]}]}}
		]`))
	}))
	defer srv.Close()

	projects, err := newTestJira(t, srv.URL).Projects(context.Background())

	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "Plain", projects[0].Description)
	assert.Equal(t, "lead@example.com", projects[0].LeadEmail)
	assert.Equal(t, "https://img/a.png", projects[0].AvatarURL)
	assert.Equal(t, "Rich text", projects[1].Description)
	assert.True(t, projects[1].Active)
}

func TestJira_UsersPagesUntilShortBatch(t *testing.T) {
	var starts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		starts = append(starts, q.Get("startAt"))
		assert.Equal(t, "50", q.Get("maxResults"))
		assert.Equal(t, "true", q.Get("active"))

		start, _ := strconv.Atoi(q.Get("startAt"))
		size := usersPageSize
		if start > 0 {
			size = 3
		}
		batch := make([]map[string]any, size)
		for i := range batch {
			n := start + i
			batch[i] = map[string]any{
				"accountId":    "acc-" + strconv.Itoa(n),
				"emailAddress": "user" + strconv.Itoa(n) + "@example.com",
				"displayName":  "User " + strconv.Itoa(n),
				"active":       n != 1,
			}
		}
		json.NewEncoder(w).Encode(batch)
	}))
	defer srv.Close()

	users, err := newTestJira(t, srv.URL).Users(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"0", "50"}, starts)
	assert.Len(t, users, 52) // 53 returned, one inactive
	assert.Equal(t, "user0@example.com", users[0].Email)
}

func TestJira_FailureIsUpstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestJira(t, srv.URL).Projects(context.Background())

	assert.True(t, capacity.IsUpstreamUnavailable(err))
	assert.Contains(t, err.Error(), "status 401")
}

func TestJira_NotConfigured(t *testing.T) {
	_, err := NewJira(JiraConfig{}, nil, nil, nil).Users(context.Background())

	assert.True(t, capacity.IsUpstreamUnavailable(err))
}
