package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/lugx/beacon/internal/collector/events"
	"github.com/lugx/beacon/internal/collector/metrics"
	"github.com/lugx/beacon/internal/collector/storage"
	"github.com/lugx/beacon/internal/common/configtypes"
	"github.com/lugx/beacon/internal/common/redis"
)

type memStore struct {
	mu        sync.Mutex
	events    []*events.TrackedEvent
	insertErr error
}

func (m *memStore) Insert(ctx context.Context, event *events.TrackedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	m.events = append(m.events, event)
	return nil
}

func (m *memStore) Ping(ctx context.Context) error { return nil }
func (m *memStore) Close() error                   { return nil }

func (m *memStore) stored() []*events.TrackedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*events.TrackedEvent(nil), m.events...)
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []*events.TrackedEvent
}

func (r *recordingEmitter) Emit(event *events.TrackedEvent) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

func (r *recordingEmitter) Close() error { return nil }

type testEnv struct {
	handler fasthttp.RequestHandler
	store   *memStore
	emitter *recordingEmitter
	reg     *prometheus.Registry
}

func newTestEnv(t *testing.T, store storage.Store, stats StatsReader) *testEnv {
	t.Helper()

	reg := prometheus.NewRegistry()
	emitter := &recordingEmitter{}
	h := NewHandler(Deps{
		Store:   store,
		Emitter: emitter,
		Stats:   stats,
		Metrics: metrics.NewPrometheusMetricsWithRegistry("", reg, zap.NewNop()),
		Logger:  zap.NewNop(),
	})

	env := &testEnv{
		handler: CreateHTTPHandler(h, CORSConfig{}),
		emitter: emitter,
		reg:     reg,
	}
	if ms, ok := store.(*memStore); ok {
		env.store = ms
	}
	return env
}

func (e *testEnv) do(method, uri, body string, headers map[string]string) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(uri)
	for k, v := range headers {
		ctx.Request.Header.Set(k, v)
	}
	if body != "" {
		ctx.Request.Header.SetContentType("application/json")
		ctx.Request.SetBodyString(body)
	}
	e.handler(ctx)
	return ctx
}

func (e *testEnv) counter(t *testing.T, name string) float64 {
	t.Helper()
	families, err := e.reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == name {
			var total float64
			for _, m := range f.GetMetric() {
				total += m.GetCounter().GetValue()
			}
			return total
		}
	}
	return 0
}

func TestTrack_Created(t *testing.T) {
	env := newTestEnv(t, &memStore{}, nil)

	ctx := env.do(fasthttp.MethodPost, "/track", `{"event_type":"page_view","page_url":"/home"}`,
		map[string]string{"User-Agent": "Mozilla/5.0", "X-Request-ID": "abc-123"})

	assert.Equal(t, fasthttp.StatusCreated, ctx.Response.StatusCode())
	assert.JSONEq(t, `{"message":"Event recorded"}`, string(ctx.Response.Body()))
	assert.Equal(t, "abc-123", string(ctx.Response.Header.Peek("X-Request-ID")))

	stored := env.store.stored()
	require.Len(t, stored, 1)
	assert.Equal(t, "page_view", stored[0].EventType)
	assert.Equal(t, "/home", stored[0].PageURL)
	assert.Equal(t, "Mozilla/5.0", stored[0].UserAgent)
	assert.Equal(t, "abc-123", stored[0].RequestID)

	require.Len(t, env.emitter.events, 1)
	assert.Same(t, stored[0], env.emitter.events[0])
}

func TestTrack_UserAgentDefaultsToUnknown(t *testing.T) {
	env := newTestEnv(t, &memStore{}, nil)

	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(fasthttp.MethodPost)
	ctx.Request.SetRequestURI("/track")
	ctx.Request.SetBodyString(`{"event_type":"click","page_url":"/"}`)
	env.handler(ctx)

	require.Equal(t, fasthttp.StatusCreated, ctx.Response.StatusCode())
	assert.Equal(t, events.UnknownUserAgent, env.store.stored()[0].UserAgent)
	assert.NotEmpty(t, ctx.Response.Header.Peek("X-Request-ID"), "request id is generated when absent")
}

func TestTrack_ClientIP(t *testing.T) {
	reg := prometheus.NewRegistry()
	store := &memStore{}
	h := NewHandler(Deps{
		Store:   store,
		Metrics: metrics.NewPrometheusMetricsWithRegistry("", reg, zap.NewNop()),
		Logger:  zap.NewNop(),

		ClientIPHeaders: []string{"X-Forwarded-For"},
	})
	env := &testEnv{handler: CreateHTTPHandler(h, CORSConfig{}), store: store, reg: reg}

	env.do(fasthttp.MethodPost, "/track", `{"event_type":"click","page_url":"/"}`,
		map[string]string{"X-Forwarded-For": "203.0.113.50, 10.0.0.1"})

	require.Len(t, store.stored(), 1)
	assert.Equal(t, "203.0.113.50", store.stored()[0].ClientIP)
}

func TestTrack_BadRequests(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"missing page_url", `{"event_type":"click"}`, "Missing fields"},
		{"missing event_type", `{"page_url":"/home"}`, "Missing fields"},
		{"empty strings", `{"event_type":"","page_url":""}`, "Missing fields"},
		{"json null", `null`, "Missing fields"},
		{"not json", `event_type=click`, "invalid JSON body"},
		{"wrong type", `{"event_type":1,"page_url":"/"}`, "invalid JSON body"},
		{"empty body", ``, "invalid JSON body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, &memStore{}, nil)
			ctx := env.do(fasthttp.MethodPost, "/track", tt.body, nil)

			assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())

			var resp map[string]string
			require.NoError(t, json.Unmarshal(ctx.Response.Body(), &resp))
			assert.Contains(t, resp["error"], tt.wantErr)
			assert.Empty(t, env.store.stored())
			assert.Empty(t, env.emitter.events)
		})
	}
}

func TestTrack_MissingFieldsExactBody(t *testing.T) {
	env := newTestEnv(t, &memStore{}, nil)
	ctx := env.do(fasthttp.MethodPost, "/track", `{"event_type":"click"}`, nil)
	assert.JSONEq(t, `{"error":"Missing fields"}`, string(ctx.Response.Body()))
}

func TestTrack_NoStorage(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	ctx := env.do(fasthttp.MethodPost, "/track", `{"event_type":"click","page_url":"/"}`, nil)

	assert.Equal(t, fasthttp.StatusInternalServerError, ctx.Response.StatusCode())
	assert.JSONEq(t, `{"error":"ClickHouse client not available"}`, string(ctx.Response.Body()))
	assert.Empty(t, env.emitter.events)
}

func TestTrack_InsertFailure(t *testing.T) {
	store := &memStore{insertErr: fmt.Errorf("%w: %w", storage.ErrInsertFailed, errors.New("connection reset"))}
	env := newTestEnv(t, store, nil)

	ctx := env.do(fasthttp.MethodPost, "/track", `{"event_type":"click","page_url":"/"}`, nil)

	assert.Equal(t, fasthttp.StatusInternalServerError, ctx.Response.StatusCode())
	assert.JSONEq(t, `{"error":"insert failed: connection reset"}`, string(ctx.Response.Body()))
	assert.Empty(t, env.emitter.events, "failed inserts are not emitted")
}

func TestTrack_CounterIncrementsOnEveryPost(t *testing.T) {
	env := newTestEnv(t, &memStore{}, nil)

	env.do(fasthttp.MethodPost, "/track", `{"event_type":"click","page_url":"/"}`, nil)
	env.do(fasthttp.MethodPost, "/track", `{"event_type":"click"}`, nil)
	env.do(fasthttp.MethodPost, "/track", `garbage`, nil)

	assert.Equal(t, 3.0, env.counter(t, "track_requests_total"))
	assert.Equal(t, 1.0, env.counter(t, "events_stored_total"))
}

func TestTrack_CounterIncrementsWithoutStorage(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.do(fasthttp.MethodPost, "/track", `{"event_type":"click","page_url":"/"}`, nil)
	assert.Equal(t, 1.0, env.counter(t, "track_requests_total"))
}

func newRedisStats(t *testing.T) *events.CounterEmitter {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := redis.NewClient(&configtypes.RedisConfig{Addr: mr.Addr()}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return events.NewCounterEmitter(client, 0, zap.NewNop())
}

func TestStats(t *testing.T) {
	counters := newRedisStats(t)
	env := newTestEnv(t, &memStore{}, counters)

	for _, body := range []string{
		`{"event_type":"page_view","page_url":"/home"}`,
		`{"event_type":"click","page_url":"/home"}`,
		`{"event_type":"click","page_url":"/cart"}`,
	} {
		ctx := env.do(fasthttp.MethodPost, "/track", body, nil)
		require.Equal(t, fasthttp.StatusCreated, ctx.Response.StatusCode())
	}
	for _, ev := range env.emitter.events {
		counters.Emit(ev)
	}
	counters.Flush()

	ctx := env.do(fasthttp.MethodGet, "/stats", "", nil)
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.JSONEq(t, `{"events":{"page_view":1,"click":2},"total":3}`, string(ctx.Response.Body()))

	ctx = env.do(fasthttp.MethodGet, "/stats?page_url=%2Fhome", "", nil)
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.JSONEq(t, `{"page_url":"/home","events":{"page_view":1,"click":1},"total":2}`, string(ctx.Response.Body()))
}

func TestStats_Disabled(t *testing.T) {
	env := newTestEnv(t, &memStore{}, nil)
	ctx := env.do(fasthttp.MethodGet, "/stats", "", nil)
	assert.Equal(t, fasthttp.StatusServiceUnavailable, ctx.Response.StatusCode())
	assert.JSONEq(t, `{"error":"stats not enabled"}`, string(ctx.Response.Body()))
}

type failingStats struct{}

func (failingStats) Totals(context.Context) (map[string]int64, error) {
	return nil, errors.New("redis down")
}

func (failingStats) PageTotals(context.Context, string) (map[string]int64, error) {
	return nil, errors.New("redis down")
}

func TestStats_BackendError(t *testing.T) {
	env := newTestEnv(t, &memStore{}, failingStats{})
	ctx := env.do(fasthttp.MethodGet, "/stats", "", nil)
	assert.Equal(t, fasthttp.StatusServiceUnavailable, ctx.Response.StatusCode())
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ctx := env.do(fasthttp.MethodGet, "/health", "", nil)
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, "ok", string(ctx.Response.Body()))
}

func TestDecodeRecord(t *testing.T) {
	rec, err := decodeRecord([]byte(`{"event_type":"scroll","page_url":"/a","extra":true}`))
	require.NoError(t, err)
	assert.Equal(t, "scroll", rec.EventType)
	assert.Equal(t, "/a", rec.PageURL)

	_, err = decodeRecord([]byte(`[]`))
	assert.ErrorIs(t, err, ErrInvalidBody)

	_, err = decodeRecord([]byte(`{}`))
	assert.ErrorIs(t, err, ErrMissingFields)
}
