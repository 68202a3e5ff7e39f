package target

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ecociel/deferral/domain"
)

// StatusError is returned when the target endpoint answered with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("call %s status=%d", e.URL, e.StatusCode)
}

// Caller performs the outbound GET of a task against the service's own base
// address.
type Caller struct {
	base *url.URL
	http *http.Client
}

func New(baseURL string, timeout time.Duration) (*Caller, error) {
	if timeout <= 0 {
		return nil, errors.New("target timeout must be positive")
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse target base url: %w", err)
	}
	if !base.IsAbs() || base.Host == "" {
		return nil, fmt.Errorf("target base url %q must be absolute", baseURL)
	}
	return &Caller{base: base, http: &http.Client{Timeout: timeout}}, nil
}

// Call builds and performs the task's call. The response body is discarded;
// only the status matters.
func (c *Caller) Call(ctx context.Context, task domain.Task) error {
	u, err := BuildURL(c.base, task)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBuild, err)
	}
	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", u.Path, err)
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &StatusError{URL: u.Path, StatusCode: res.StatusCode}
	}
	return nil
}
