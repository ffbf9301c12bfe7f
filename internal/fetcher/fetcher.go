package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"time"

	"ogpimage/internal/failure"
	"ogpimage/internal/retry"
	securitynet "ogpimage/internal/security/netutil"
)

const (
	defaultUserAgent = "ogpimage/1.0"
	maxBodyBytes     = 20 << 20
)

// Result is the body and response metadata of a successful GET.
type Result struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

// Getter is the boundary used by the metadata and font resolvers.
type Getter interface {
	Get(ctx context.Context, rawURL string, accept string) (Result, error)
}

type Options struct {
	UserAgent    string
	Timeout      time.Duration
	AllowPrivate bool
	RetryParam   retry.RetryParam
}

// HTTPFetcher performs upstream GETs with bounded redirects, status
// classification and retry on transient failures.
type HTTPFetcher struct {
	client       *http.Client
	logger       *log.Logger
	userAgent    string
	allowPrivate bool
	retryParam   retry.RetryParam
}

func New(logger *log.Logger, opts Options) *HTTPFetcher {
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RetryParam.MaxAttempts == 0 {
		opts.RetryParam = retry.DefaultRetryParam()
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	allowPrivate := opts.AllowPrivate
	return &HTTPFetcher{
		client: &http.Client{Timeout: opts.Timeout, Transport: transport, CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("stopped after 5 redirects")
			}
			if !allowPrivate {
				return checkDestination(req.URL.Hostname())
			}
			return nil
		}},
		logger:       logger,
		userAgent:    opts.UserAgent,
		allowPrivate: allowPrivate,
		retryParam:   opts.RetryParam,
	}
}

func (f *HTTPFetcher) Get(ctx context.Context, rawURL string, accept string) (Result, error) {
	start := time.Now()
	result, err := retry.Retry(ctx, f.retryParam, func() (Result, failure.ClassifiedError) {
		return f.performFetch(ctx, rawURL, accept)
	})
	if err != nil {
		f.logger.Printf("Fetch %s failed after %v: %v", Redact(rawURL), time.Since(start), err)
		var fetchErr *FetchError
		if errors.As(err, &fetchErr) {
			return Result{}, err
		}
		return Result{}, &FetchError{URL: rawURL, Message: err.Error(), Cause: ErrCauseNetworkFailure}
	}
	return result, nil
}

func (f *HTTPFetcher) performFetch(ctx context.Context, rawURL string, accept string) (Result, failure.ClassifiedError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Result{}, &FetchError{URL: rawURL, Message: err.Error(), Cause: ErrCauseInvalidRequest}
	}
	req.Header.Set("User-Agent", f.userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	if !f.allowPrivate {
		if err := checkDestination(req.URL.Hostname()); err != nil {
			return Result{}, &FetchError{URL: rawURL, Message: err.Error(), Cause: ErrCausePrivateDestination}
		}
	}

	resp, err := f.client.Do(req)
	if errors.Is(err, errPrivateDestination) {
		return Result{}, &FetchError{URL: rawURL, Message: err.Error(), Cause: ErrCausePrivateDestination}
	}
	if err != nil {
		// Transport errors are retryable unless the caller gave up.
		return Result{}, &FetchError{
			URL:       rawURL,
			Message:   err.Error(),
			Retryable: ctx.Err() == nil,
			Cause:     ErrCauseNetworkFailure,
		}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return Result{}, &FetchError{URL: rawURL, Message: "rate limited", StatusCode: resp.StatusCode, Retryable: true, Cause: ErrCauseRequestTooMany}
	case resp.StatusCode >= 500:
		return Result{}, &FetchError{URL: rawURL, Message: resp.Status, StatusCode: resp.StatusCode, Retryable: true, Cause: ErrCauseRequest5xx}
	case resp.StatusCode >= 400:
		return Result{}, &FetchError{URL: rawURL, Message: resp.Status, StatusCode: resp.StatusCode, Cause: ErrCauseRequest4xx}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return Result{}, &FetchError{URL: rawURL, Message: err.Error(), Retryable: true, Cause: ErrCauseReadResponseBodyError}
	}
	if len(body) > maxBodyBytes {
		return Result{}, &FetchError{URL: rawURL, Message: fmt.Sprintf("exceeds %d bytes", maxBodyBytes), Cause: ErrCauseBodyTooLarge}
	}

	return Result{
		URL:         rawURL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// Redact hides credential query parameters so URLs can be logged.
func Redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	redacted := false
	for _, name := range []string{"key", "api_key", "token"} {
		if q.Has(name) {
			q.Set(name, "REDACTED")
			redacted = true
		}
	}
	if !redacted {
		return rawURL
	}
	u.RawQuery = q.Encode()
	return u.String()
}

var errPrivateDestination = errors.New("destination resolves to private/reserved address")

// checkDestination blocks private and reserved ranges; loopback stays allowed
// so local upstreams and tests keep working.
func checkDestination(host string) error {
	if host == "" {
		return nil
	}
	if ip := net.ParseIP(host); ip != nil {
		if securitynet.IsPrivateIP(ip) && !ip.IsLoopback() {
			return errPrivateDestination
		}
		return nil
	}
	addrs, err := net.LookupIP(host)
	if err != nil {
		return nil
	}
	for _, a := range addrs {
		if securitynet.IsPrivateIP(a) && !a.IsLoopback() {
			return errPrivateDestination
		}
	}
	return nil
}
