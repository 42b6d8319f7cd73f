package nitter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient builds a client whose doers all share doer.
func newTestClient(t *testing.T, cfg ClientConfig, doer Doer) *Client {
	t.Helper()
	c, err := NewClient(cfg)
	require.NoError(t, err)
	c.newDoer = func() (Doer, error) { return doer, nil }
	c.now = func() time.Time { return testNow }
	return c
}

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient(ClientConfig{})
	require.NoError(t, err)

	cfg := c.Config()
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, 20*time.Second, cfg.Timeout)
	assert.Equal(t, 50, cfg.MaxPosts)
	assert.Equal(t, 5, cfg.Concurrency)
	assert.Equal(t, 3, cfg.Attempts)
	assert.Equal(t, DefaultSource, cfg.Source)
}

func TestNewClient_InvalidConfig(t *testing.T) {
	tests := []struct {
		name  string
		cfg   ClientConfig
		field string
	}{
		{"relative base", ClientConfig{BaseURL: "nitter.net"}, "base_url"},
		{"ftp base", ClientConfig{BaseURL: "ftp://nitter.net"}, "base_url"},
		{"proxy scheme", ClientConfig{Proxy: "gopher://127.0.0.1:8080"}, "proxy"},
		{"proxy host", ClientConfig{Proxy: "http://"}, "proxy"},
		{"negative timeout", ClientConfig{Timeout: -time.Second}, "timeout"},
		{"negative concurrency", ClientConfig{Concurrency: -1}, "concurrency"},
		{"backoff bounds", ClientConfig{BackoffMin: 5 * time.Second, BackoffMax: time.Second}, "backoff"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.cfg)
			require.Error(t, err)
			var ce *ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestClientFetchAll_Offline(t *testing.T) {
	doer := &fakeDoer{handler: func(context.Context, string) ([]byte, map[string]string, int, error) {
		return nil, nil, 0, errors.New("dial tcp: no route to host")
	}}
	c := newTestClient(t, fastConfig(), doer)

	batch := c.FetchAll(context.Background(), []string{"jack", "Twitter"})

	require.Len(t, batch.Records, 20)
	assert.Empty(t, batch.Failures)
	assert.Equal(t, map[string]int{"jack": 10, "Twitter": 10}, batch.Counts)
	// html and json each exhaust their attempts for both handles.
	assert.Len(t, doer.Calls(), 12)

	first := batch.Records[0]
	assert.Equal(t, strconv.FormatUint(syntheticBaseID("jack"), 10), *first.ID)
	assert.Equal(t, "SYNTHETIC: Hello from @jack #0", *first.Text)
	for _, r := range batch.Records {
		assert.Equal(t, "nitter", r.Source)
		assert.True(t, r.FetchedAt.Equal(testNow))
	}
	assert.Equal(t, "Twitter", batch.Records[10].Author.Handle)
}

func TestClientFetchTimeline_HTML(t *testing.T) {
	doer := &fakeDoer{handler: func(_ context.Context, url string) ([]byte, map[string]string, int, error) {
		if strings.Contains(url, "_format=json") {
			t.Errorf("unexpected json request %s", url)
		}
		return []byte(profilePage), nil, 200, nil
	}}
	c := newTestClient(t, fastConfig(), doer)

	records, err := c.FetchTimeline(context.Background(), "@alice")
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "1001", *records[0].ID)
	assert.Equal(t, []string{"https://nitter.net/alice"}, doer.Calls())
}

func TestClientFetchTimeline_JSONFallback(t *testing.T) {
	doer := &fakeDoer{handler: func(_ context.Context, url string) ([]byte, map[string]string, int, error) {
		if strings.HasSuffix(url, "?_format=json") {
			return []byte(`{"statuses":[{"id_str":"77","text":"from json","user":{"screen_name":"alice"}}]}`), nil, 200, nil
		}
		return []byte(`<html><body><div class="profile-card"></div></body></html>`), nil, 200, nil
	}}
	c := newTestClient(t, fastConfig(), doer)

	records, err := c.FetchTimeline(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "77", *records[0].ID)
	assert.Equal(t, "from json", *records[0].Text)
	assert.Equal(t, []string{"https://nitter.net/alice", "https://nitter.net/alice?_format=json"}, doer.Calls())
}

func TestClientFetchTimeline_MaxPosts(t *testing.T) {
	doer := &fakeDoer{handler: func(context.Context, string) ([]byte, map[string]string, int, error) {
		return []byte(profilePage), nil, 200, nil
	}}
	cfg := fastConfig()
	cfg.MaxPosts = 1
	c := newTestClient(t, cfg, doer)

	records, err := c.FetchTimeline(context.Background(), "alice")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestClientFetchAll_MetricsHook(t *testing.T) {
	var mu sync.Mutex
	stages := make(map[string]int)

	doer := &fakeDoer{handler: func(context.Context, string) ([]byte, map[string]string, int, error) {
		return []byte("gone"), nil, 404, nil
	}}
	cfg := fastConfig()
	cfg.MetricsHook = func(stage string, success bool) {
		mu.Lock()
		defer mu.Unlock()
		if success {
			stages[stage]++
		}
	}
	c := newTestClient(t, cfg, doer)

	batch := c.FetchAll(context.Background(), []string{"a", "b", "c"})
	assert.Len(t, batch.Records, 30)
	assert.Equal(t, map[string]int{"synthetic": 3}, stages)
}

func TestClientFetchAll_DoerFactoryError(t *testing.T) {
	c := newTestClient(t, fastConfig(), nil)
	c.newDoer = func() (Doer, error) {
		return nil, configErr("proxy", "unreachable")
	}

	batch := c.FetchAll(context.Background(), []string{"jack", "bob"})
	assert.Empty(t, batch.Records)
	require.Len(t, batch.Failures, 2)
	assert.True(t, IsConfigError(batch.Failures["jack"]))
}

func TestClientFetchAll_RateLimitIsPerHandle(t *testing.T) {
	doer := &fakeDoer{handler: func(_ context.Context, url string) ([]byte, map[string]string, int, error) {
		if strings.HasPrefix(url, "https://nitter.net/a") {
			return []byte("slow down"), map[string]string{"retry-after": "60"}, 429, nil
		}
		return []byte(profilePage), nil, 200, nil
	}}
	cfg := fastConfig()
	cfg.Concurrency = 1
	c := newTestClient(t, cfg, doer)

	batch := c.FetchAll(context.Background(), []string{"a", "b"})

	var aCalls, bCalls int
	for _, u := range doer.Calls() {
		switch {
		case strings.HasPrefix(u, "https://nitter.net/a"):
			aCalls++
		case strings.HasPrefix(u, "https://nitter.net/b"):
			bCalls++
		}
	}
	// a: every html and json attempt reaches the instance.
	assert.Equal(t, 6, aCalls)
	assert.Equal(t, 1, bCalls)
	assert.Equal(t, 10, batch.Counts["a"])
	assert.Equal(t, 3, batch.Counts["b"])

	var bIDs []string
	for _, r := range batch.Records {
		if r.Author.Handle == "alice" && r.ID != nil {
			bIDs = append(bIDs, *r.ID)
		}
	}
	assert.Equal(t, []string{"1001", "1002"}, bIDs, "b must come from its own page")
}

// timelineItem renders a one-item timeline page.
func timelineItem(handle, id string) string {
	return `<div class="timeline"><div class="timeline-item">
		<a class="tweet-link" href="/` + handle + `/status/` + id + `"></a>
		<div class="tweet-content">hello</div>
	</div></div>`
}

func TestClient_FollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/alice", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/Alice", http.StatusFound)
	})
	mux.HandleFunc("/Alice", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(timelineItem("Alice", "42")))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := fastConfig()
	cfg.BaseURL = srv.URL
	c, err := NewClient(cfg)
	require.NoError(t, err)

	records, err := c.FetchTimeline(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.NotNil(t, records[0].ID)
	assert.Equal(t, "42", *records[0].ID)
}

func TestClient_BoundsInFlightRequests(t *testing.T) {
	var inFlight, peak, hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(300 * time.Millisecond)
		inFlight.Add(-1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := fastConfig()
	cfg.BaseURL = srv.URL
	cfg.Concurrency = 2
	cfg.Timeout = 100 * time.Millisecond
	c, err := NewClient(cfg)
	require.NoError(t, err)

	batch := c.FetchAll(context.Background(), []string{"a", "b", "c", "d"})

	assert.Len(t, batch.Records, 40)
	assert.Positive(t, hits.Load())
	assert.LessOrEqual(t, peak.Load(), int32(2), "more requests in flight than the concurrency limit")
}

func TestClient_RequestsEndAtTimeout(t *testing.T) {
	release := make(chan struct{})
	var active atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		active.Add(1)
		defer active.Add(-1)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	cfg := fastConfig()
	cfg.BaseURL = srv.URL
	cfg.Timeout = 100 * time.Millisecond
	cfg.Attempts = 1
	c, err := NewClient(cfg)
	require.NoError(t, err)

	start := time.Now()
	records, err := c.FetchTimeline(context.Background(), "alice")
	require.NoError(t, err)
	assert.Len(t, records, 10)
	// The backend gives up after one second, far below its 20s default.
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Eventually(t, func() bool { return active.Load() == 0 }, 2*time.Second, 10*time.Millisecond)
}
