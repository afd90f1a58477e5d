package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/lugx/beacon/pkg/types"
)

// Location reports the path of the current document
type Location interface {
	Path() string
}

// LocationFunc adapts a function to Location
type LocationFunc func() string

// Path calls f.
func (f LocationFunc) Path() string { return f() }

// Doer is the subset of *fasthttp.Client used to send records
type Doer interface {
	Do(req *fasthttp.Request, resp *fasthttp.Response) error
	DoDeadline(req *fasthttp.Request, resp *fasthttp.Response, deadline time.Time) error
}

// Result is the settled outcome of a single POST
type Result struct {
	StatusCode int
	Body       string
	Duration   time.Duration
}

// Dispatcher posts event records to the collector, fire-and-forget
type Dispatcher struct {
	endpoint string
	location Location
	client   Doer
	logger   *zap.Logger

	inflight sync.WaitGroup
}

// Option customizes a Dispatcher
type Option func(*Dispatcher)

// WithClient replaces the default fasthttp client
func WithClient(client Doer) Option {
	return func(d *Dispatcher) {
		d.client = client
	}
}

// New creates a dispatcher posting to <collectorURL>/track.
// A collectorURL that already ends in /track is used as is.
func New(collectorURL string, location Location, logger *zap.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		endpoint: TrackEndpoint(collectorURL),
		location: location,
		client:   &fasthttp.Client{Name: "beacon"},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// TrackEndpoint appends the track path to the path of the collector URL.
// Query parameters are kept; the fragment is dropped since it is never sent.
func TrackEndpoint(collectorURL string) string {
	u, err := url.Parse(collectorURL)
	if err != nil {
		return strings.TrimRight(collectorURL, "/") + types.TrackPath
	}

	path := strings.TrimRight(u.Path, "/")
	if !strings.HasSuffix(path, types.TrackPath) {
		path += types.TrackPath
	}
	u.Path = path
	u.RawPath = ""
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

// Endpoint returns the URL records are posted to
func (d *Dispatcher) Endpoint() string {
	return d.endpoint
}

// Dispatch records eventType at the current path and sends it in the background.
// The outcome is only logged: failures never reach the caller and are not retried.
func (d *Dispatcher) Dispatch(eventType string) {
	record := types.NewEventRecord(eventType, d.location.Path())

	d.logger.Info("Sending event",
		zap.String("event_type", record.EventType),
		zap.String("page_url", record.PageURL))

	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("Error sending event",
					zap.String("event_type", record.EventType),
					zap.Any("panic", r))
			}
		}()

		d.settle(context.Background(), record)
	}()
}

func (d *Dispatcher) settle(ctx context.Context, record types.EventRecord) {
	result, err := d.Send(ctx, record)

	// status is known even when reading the body failed
	if result != nil {
		d.logger.Info("Response status",
			zap.String("event_type", record.EventType),
			zap.Int("status", result.StatusCode),
			zap.Duration("duration", result.Duration))
	}

	if err != nil {
		d.logger.Error("Error sending event",
			zap.String("event_type", record.EventType),
			zap.String("page_url", record.PageURL),
			zap.Error(err))
		return
	}

	d.logger.Info("Server said",
		zap.String("event_type", record.EventType),
		zap.String("body", result.Body))
}

// Send performs one POST of record and returns the response or a transmission error.
// Any status code is a result, not an error. No deadline is applied unless ctx has one.
func (d *Dispatcher) Send(ctx context.Context, record types.EventRecord) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, transmissionError("context", err)
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return nil, transmissionError("encode", err)
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(d.endpoint)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(payload)

	start := time.Now()
	if deadline, ok := ctx.Deadline(); ok {
		err = d.client.DoDeadline(req, resp, deadline)
	} else {
		err = d.client.Do(req, resp)
	}
	if err != nil {
		return nil, transmissionError("post "+d.endpoint, err)
	}

	result := &Result{
		StatusCode: resp.StatusCode(),
		Duration:   time.Since(start),
	}

	body, err := resp.BodyUncompressed()
	if err != nil {
		return result, transmissionError(fmt.Sprintf("read body (status %d)", result.StatusCode), err)
	}
	result.Body = string(body)

	return result, nil
}

// Wait blocks until every dispatched record has settled or ctx is done
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
