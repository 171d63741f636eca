package lotdirectory

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/rkamradt/vehicleevent/vehicleevent/shared/core"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell"
)

const (
	// DefaultTimeout bounds one lookup when no timeout is configured.
	DefaultTimeout = 2 * time.Second

	maxBodyBytes = 1 << 20

	logMsgLookupFound  = "lot lookup: found lot"
	logMsgLookupMissed = "lot lookup: no lot with that name"
	logMsgLookupFailed = "lot lookup: lookup failed"
	logAttrName        = "lot_name"
	logAttrLotID       = "lot_id"
	logAttrStatus      = "http_status"
	logAttrError       = "error"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// HTTPDirectory asks the lot query service: GET {baseURL}?name=<name>.
// The request carries the x-request-id, x-client-id, and x-origin headers of the caller.
type HTTPDirectory struct {
	baseURL          string
	client           *http.Client
	timeout          time.Duration
	logger           shell.Logger
	contextualLogger shell.ContextualLogger
}

// HTTPOption configures an HTTPDirectory.
type HTTPOption func(*HTTPDirectory)

// WithHTTPClient replaces the default instrumented client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(d *HTTPDirectory) {
		if client != nil {
			d.client = client
		}
	}
}

// WithTimeout bounds each lookup.
func WithTimeout(timeout time.Duration) HTTPOption {
	return func(d *HTTPDirectory) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithLogger sets the logger for lookup outcomes.
func WithLogger(logger shell.Logger) HTTPOption {
	return func(d *HTTPDirectory) {
		d.logger = logger
	}
}

// WithContextualLogger sets the contextual logger for lookup outcomes.
func WithContextualLogger(logger shell.ContextualLogger) HTTPOption {
	return func(d *HTTPDirectory) {
		d.contextualLogger = logger
	}
}

// NewHTTPDirectory creates an HTTPDirectory for the lot query service at baseURL.
// Outbound calls are traced through otelhttp unless another client is given.
func NewHTTPDirectory(baseURL string, options ...HTTPOption) *HTTPDirectory {
	d := &HTTPDirectory{
		baseURL: baseURL,
		client:  &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		timeout: DefaultTimeout,
	}

	for _, option := range options {
		option(d)
	}

	return d
}

// FindByName returns the first lot of the service's answer.
//
// 200 with a non-empty JSON array yields its first element; an empty array or any other JSON
// value, 204, and 404 yield core.ErrNotFound. Other statuses, transport errors, and malformed
// bodies yield core.ErrUpstreamUnavailable.
func (d *HTTPDirectory) FindByName(ctx context.Context, name string) (Lot, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"?"+url.Values{"name": {name}}.Encode(), nil)
	if err != nil {
		return Lot{}, d.failed(ctx, name, 0, fmt.Errorf("%w: build lot request: %w", core.ErrUpstreamUnavailable, err))
	}

	req.Header.Set("Accept", "application/json")

	if rc, ok := shell.RequestContextFrom(ctx); ok {
		for header, value := range rc.Headers() {
			req.Header.Set(header, value)
		}
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return Lot{}, d.failed(ctx, name, 0, fmt.Errorf("%w: lot request: %w", core.ErrUpstreamUnavailable, err))
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent, http.StatusNotFound:
		return Lot{}, d.missed(ctx, name, resp.StatusCode)
	default:
		return Lot{}, d.failed(ctx, name, resp.StatusCode,
			fmt.Errorf("%w: lot service returned %s", core.ErrUpstreamUnavailable, resp.Status))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Lot{}, d.failed(ctx, name, resp.StatusCode, fmt.Errorf("%w: read lot response: %w", core.ErrUpstreamUnavailable, err))
	}

	if !json.Valid(body) {
		return Lot{}, d.failed(ctx, name, resp.StatusCode, fmt.Errorf("%w: malformed lot response", core.ErrUpstreamUnavailable))
	}

	answer := json.Get(body)
	if answer.ValueType() != jsoniter.ArrayValue || answer.Size() == 0 {
		return Lot{}, d.missed(ctx, name, resp.StatusCode)
	}

	var lot Lot
	if err = json.UnmarshalFromString(answer.Get(0).ToString(), &lot); err != nil {
		return Lot{}, d.failed(ctx, name, resp.StatusCode, fmt.Errorf("%w: decode lot: %w", core.ErrUpstreamUnavailable, err))
	}

	shell.LogInfo(ctx, d.logger, d.contextualLogger, logMsgLookupFound, logAttrName, name, logAttrLotID, lot.ID)

	return lot, nil
}

func (d *HTTPDirectory) missed(ctx context.Context, name string, status int) error {
	shell.LogInfo(ctx, d.logger, d.contextualLogger, logMsgLookupMissed, logAttrName, name, logAttrStatus, status)

	return core.NewNotFoundError("lot", name)
}

func (d *HTTPDirectory) failed(ctx context.Context, name string, status int, err error) error {
	shell.LogError(ctx, d.logger, d.contextualLogger, logMsgLookupFailed,
		logAttrName, name, logAttrStatus, status, logAttrError, err.Error())

	return err
}
