package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"FairValue/internal/model"
)

// DefaultTimeout bounds every provider request.
const DefaultTimeout = 30 * time.Second

// Provider fetches a normalized record for one symbol from a market data source.
// Failures are always reported as *FetchError.
type Provider interface {
	Fetch(ctx context.Context, symbol string) (*Record, error)
	Name() string
}

// Record is the partial canonical record produced by a provider.
type Record struct {
	Quote            model.Quote
	FCFHistory       []model.FCFEntry
	ValuationMetrics []model.ValuationMetricEntry
	Beta             *float64
	Sector           string
	AnalystGrowth    *float64
}

// FailureKind classifies why a provider could not produce a record.
type FailureKind int

const (
	// NoCredential means the provider is not configured; callers may try another provider.
	NoCredential FailureKind = iota + 1
	RateLimited
	SymbolNotFound
	InvalidPayload
	ProviderError
)

func (k FailureKind) String() string {
	switch k {
	case NoCredential:
		return "no_credential"
	case RateLimited:
		return "rate_limited"
	case SymbolNotFound:
		return "symbol_not_found"
	case InvalidPayload:
		return "invalid_payload"
	case ProviderError:
		return "provider_error"
	default:
		return "unknown"
	}
}

// FetchError is a classified provider failure. Detail is safe to show to end users.
type FetchError struct {
	Provider string
	Kind     FailureKind
	Detail   string
	Err      error
}

func (e *FetchError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Detail)
}

func (e *FetchError) Unwrap() error { return e.Err }

// KindOf reports the FailureKind carried by err, if any.
func KindOf(err error) (FailureKind, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return 0, false
}

// NewHTTPClient returns a client with the default timeout and an optional proxy.
func NewHTTPClient(proxyURL string) *http.Client {
	transport := &http.Transport{Proxy: http.ProxyFromEnvironment}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{
		Timeout:   DefaultTimeout,
		Transport: transport,
	}
}

// options are shared by the provider constructors.
type options struct {
	baseURLs   []string
	httpClient *http.Client
	pacer      Pacer
	logger     *zap.Logger
	now        func() time.Time
}

// Option configures a provider.
type Option func(*options)

// WithBaseURL overrides the provider endpoint. Yahoo accepts several mirrors, tried in order.
func WithBaseURL(urls ...string) Option {
	return func(o *options) {
		o.baseURLs = urls
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithPacer sets the gate every request waits on.
func WithPacer(p Pacer) Option {
	return func(o *options) {
		o.pacer = p
	}
}

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithClock overrides time.Now, used to window valuation metrics.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func buildOptions(defaultURLs []string, defaultPacer Pacer, opts []Option) options {
	o := options{
		baseURLs: defaultURLs,
		pacer:    defaultPacer,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = NewHTTPClient("")
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.pacer == nil {
		o.pacer = NoPacer{}
	}
	return o
}
