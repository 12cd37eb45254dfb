// Package feed fetches external iCalendar feeds and normalizes their
// events into canonical meeting records.
package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mingle/internal/shared/constants"
	apperrors "mingle/internal/shared/errors"
	"mingle/internal/shared/logger"
)

const (
	defaultFetchTimeout = 10 * time.Second

	// maxFeedSize guards against a feed URL pointing at an arbitrarily
	// large response.
	maxFeedSize = 10 << 20
)

// Fetcher downloads iCalendar feed bodies over HTTPS.
type Fetcher struct {
	client *http.Client
	logger logger.Interface
}

// NewFetcher creates a Fetcher with the given request timeout. A zero
// timeout falls back to the 10 second default.
func NewFetcher(timeout time.Duration, log logger.Interface) *Fetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
		logger: log,
	}
}

// Fetch downloads the feed at feedURL and returns its body after
// verifying that it looks like iCalendar data. Transport failures and
// server-side errors come back as TransientFetchError so callers can
// distinguish them from a permanently broken feed.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return "", fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("User-Agent", constants.UserAgent)
	req.Header.Set("Accept", "text/calendar, text/plain;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", apperrors.NewTransientFetchError(feedURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", apperrors.NewTransientFetchError(feedURL,
			fmt.Errorf("feed host rate limited the request (retry-after %q)", resp.Header.Get("Retry-After")))
	}
	if resp.StatusCode >= 500 {
		return "", apperrors.NewTransientFetchError(feedURL,
			fmt.Errorf("feed host returned %d", resp.StatusCode))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
	if err != nil {
		return "", apperrors.NewTransientFetchError(feedURL, fmt.Errorf("read feed body: %w", err))
	}

	text := string(body)
	if err := sniffCalendar(text); err != nil {
		return "", err
	}

	f.logger.Debugw("fetched feed", "bytes", len(body), "status", resp.StatusCode)
	return text, nil
}

// Probe checks that a feed URL answers at all, for use during connect
// validation. It tries HEAD first and falls back to GET because some
// feed hosts reject HEAD outright.
func (f *Fetcher) Probe(ctx context.Context, feedURL string, timeout time.Duration) error {
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for _, method := range []string{http.MethodHead, http.MethodGet} {
		req, err := http.NewRequestWithContext(probeCtx, method, feedURL, nil)
		if err != nil {
			return fmt.Errorf("build probe request: %w", err)
		}
		req.Header.Set("User-Agent", constants.UserAgent)

		resp, err := f.client.Do(req)
		if err != nil {
			if method == http.MethodHead {
				continue
			}
			return fmt.Errorf("feed unreachable: %w", err)
		}
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 400 {
			return nil
		}
		if method == http.MethodGet {
			return fmt.Errorf("feed unreachable: status %d", resp.StatusCode)
		}
	}
	return fmt.Errorf("feed unreachable")
}

// sniffCalendar rejects bodies that are clearly not iCalendar data,
// most commonly an HTML login page behind an expired share link.
func sniffCalendar(body string) error {
	trimmed := strings.TrimSpace(body)
	upper := strings.ToUpper(trimmed)
	if strings.HasPrefix(upper, "<!DOCTYPE") || strings.HasPrefix(upper, "<HTML") {
		return fmt.Errorf("feed returned HTML instead of calendar data")
	}
	if !strings.HasPrefix(trimmed, "BEGIN:VCALENDAR") {
		preview := trimmed
		if len(preview) > 80 {
			preview = preview[:80]
		}
		return fmt.Errorf("feed is not iCalendar data, starts with %q", preview)
	}
	return nil
}
