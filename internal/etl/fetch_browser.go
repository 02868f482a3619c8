package etl

import (
	"context"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"

	"bankcap/internal/config"
	"bankcap/internal/pipeline"
)

// BrowserFetcher renders pages in headless Chrome and returns the resulting HTML
type BrowserFetcher struct {
	headless  bool
	userAgent string
	timeout   time.Duration
	logger    *slog.Logger
}

// NewBrowserFetcher creates a chromedp-backed fetcher
func NewBrowserFetcher(cfg config.SourceConfig, logger *slog.Logger) *BrowserFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &BrowserFetcher{
		headless:  true,
		userAgent: cfg.UserAgent,
		timeout:   cfg.RequestTimeout,
		logger:    logger.With(slog.String("component", "browser_fetcher")),
	}
}

// Fetch navigates to url and returns the rendered document
func (f *BrowserFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.Flag("headless", f.headless))
	if f.userAgent != "" {
		opts = append(opts, chromedp.UserAgent(f.userAgent))
	}

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	defer cancel()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	if f.timeout > 0 {
		var cancelTimeout context.CancelFunc
		browserCtx, cancelTimeout = context.WithTimeout(browserCtx, f.timeout)
		defer cancelTimeout()
	}

	start := time.Now()
	var html string
	if err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return nil, pipeline.NewFetchError(url, err)
	}

	f.logger.InfoContext(ctx, "page_rendered",
		slog.String("url", url),
		slog.Int("bytes", len(html)),
		slog.Duration("duration", time.Since(start)))
	return []byte(html), nil
}

// NewFetcher returns the fetcher selected by cfg.Fetcher
func NewFetcher(cfg config.SourceConfig, logger *slog.Logger) Fetcher {
	if cfg.Fetcher == "chrome" {
		return NewBrowserFetcher(cfg, logger)
	}
	return NewHTTPFetcher(cfg, logger)
}
