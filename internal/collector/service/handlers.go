package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/lugx/beacon/internal/collector/events"
	"github.com/lugx/beacon/internal/collector/metrics"
	"github.com/lugx/beacon/internal/collector/storage"
	"github.com/lugx/beacon/internal/common/clientip"
	"github.com/lugx/beacon/internal/common/httputil"
	"github.com/lugx/beacon/internal/common/requestid"
	"github.com/lugx/beacon/pkg/types"
)

const (
	PathHealth = "/health"
	PathStats  = "/stats"

	headerRequestID = "X-Request-ID"
)

// StatsReader serves /stats
type StatsReader interface {
	Totals(ctx context.Context) (map[string]int64, error)
	PageTotals(ctx context.Context, pageURL string) (map[string]int64, error)
}

// StatsResponse is the /stats body
type StatsResponse struct {
	PageURL string           `json:"page_url,omitempty"`
	Events  map[string]int64 `json:"events"`
	Total   int64            `json:"total"`
}

// Handler implements the collector endpoints
type Handler struct {
	store   storage.Store
	emitter events.EventEmitter
	stats   StatsReader
	metrics *metrics.PrometheusMetrics
	timeout time.Duration
	logger  *zap.Logger

	clientIPHeaders []string
}

// Deps wires a Handler. Store and Stats may be nil; Emitter defaults to a no-op.
type Deps struct {
	Store   storage.Store
	Emitter events.EventEmitter
	Stats   StatsReader
	Metrics *metrics.PrometheusMetrics
	Timeout time.Duration
	Logger  *zap.Logger

	// ClientIPHeaders are trusted for the client address, in order
	ClientIPHeaders []string
}

func NewHandler(deps Deps) *Handler {
	emitter := deps.Emitter
	if emitter == nil {
		emitter = &events.NoopEmitter{}
	}
	return &Handler{
		store:   deps.Store,
		emitter: emitter,
		stats:   deps.Stats,
		metrics: deps.Metrics,
		timeout: deps.Timeout,
		logger:  deps.Logger,

		clientIPHeaders: deps.ClientIPHeaders,
	}
}

// HandleTrack validates and stores one event record
func (h *Handler) HandleTrack(ctx *fasthttp.RequestCtx) {
	h.metrics.RecordTrackRequest()

	reqID := requestid.FromHeader(string(ctx.Request.Header.Peek(headerRequestID)))
	ctx.Response.Header.Set(headerRequestID, reqID)

	if h.store == nil {
		h.metrics.RecordOutcome(metrics.OutcomeUnavailable)
		h.writeError(ctx, types.TrackPath, storage.ErrStorageUnavailable.Error(), fasthttp.StatusInternalServerError)
		return
	}

	record, err := decodeRecord(ctx.PostBody())
	if err != nil {
		h.metrics.RecordOutcome(metrics.OutcomeInvalid)
		h.logger.Debug("Rejected track request",
			zap.String("request_id", reqID),
			zap.Error(err))
		msg := ErrMissingFields.Error()
		if errors.Is(err, ErrInvalidBody) {
			msg = err.Error()
		}
		h.writeError(ctx, types.TrackPath, msg, fasthttp.StatusBadRequest)
		return
	}

	event := events.NewTrackedEvent(record, string(ctx.Request.Header.UserAgent()), reqID)
	event.ClientIP = clientip.FromRequest(ctx, h.clientIPHeaders)

	insertCtx, cancel := h.requestContext()
	defer cancel()

	start := time.Now()
	if err := h.store.Insert(insertCtx, event); err != nil {
		outcome := metrics.OutcomeFailed
		if errors.Is(err, storage.ErrStorageUnavailable) {
			outcome = metrics.OutcomeUnavailable
		}
		h.metrics.RecordOutcome(outcome)
		h.writeError(ctx, types.TrackPath, err.Error(), fasthttp.StatusInternalServerError)
		return
	}
	h.metrics.RecordStored(event.EventType, time.Since(start).Seconds())

	h.emitter.Emit(event)

	h.logger.Debug("Event recorded",
		zap.String("request_id", reqID),
		zap.String("event_type", event.EventType),
		zap.String("page_url", event.PageURL),
		zap.String("client_ip", event.ClientIP))

	httputil.JSONMessage(ctx, "Event recorded", fasthttp.StatusCreated)
	h.metrics.RecordHTTPRequest(types.TrackPath, "201")
}

// HandleStats returns event totals, optionally for one page via ?page_url=
func (h *Handler) HandleStats(ctx *fasthttp.RequestCtx) {
	if h.stats == nil {
		h.writeError(ctx, PathStats, "stats not enabled", fasthttp.StatusServiceUnavailable)
		return
	}

	statsCtx, cancel := h.requestContext()
	defer cancel()

	pageURL := string(ctx.QueryArgs().Peek("page_url"))

	var (
		counts map[string]int64
		err    error
	)
	if pageURL != "" {
		counts, err = h.stats.PageTotals(statsCtx, pageURL)
	} else {
		counts, err = h.stats.Totals(statsCtx)
	}
	if err != nil {
		h.logger.Warn("Failed to read stats", zap.String("page_url", pageURL), zap.Error(err))
		h.writeError(ctx, PathStats, "stats unavailable", fasthttp.StatusServiceUnavailable)
		return
	}

	resp := StatsResponse{PageURL: pageURL, Events: counts}
	for _, n := range counts {
		resp.Total += n
	}

	httputil.JSON(ctx, resp, fasthttp.StatusOK)
	h.metrics.RecordHTTPRequest(PathStats, "200")
}

func (h *Handler) HandleHealth(ctx *fasthttp.RequestCtx) {
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetContentType("text/plain; charset=utf-8")
	ctx.SetBodyString("ok")
	h.metrics.RecordHTTPRequest(PathHealth, "200")
}

func (h *Handler) writeError(ctx *fasthttp.RequestCtx, path, msg string, status int) {
	httputil.JSONError(ctx, msg, status)
	h.metrics.RecordHTTPRequest(path, strconv.Itoa(status))
}

func (h *Handler) requestContext() (context.Context, context.CancelFunc) {
	if h.timeout > 0 {
		return context.WithTimeout(context.Background(), h.timeout)
	}
	return context.WithCancel(context.Background())
}

// decodeRecord accepts a JSON object carrying non-empty event_type and page_url strings
func decodeRecord(body []byte) (types.EventRecord, error) {
	var record types.EventRecord
	if err := json.Unmarshal(body, &record); err != nil {
		return record, fmt.Errorf("%w: %w", ErrInvalidBody, err)
	}
	if record.Missing() {
		return record, ErrMissingFields
	}
	return record, nil
}
