package etl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bankcap/internal/config"
	"bankcap/internal/pipeline"
)

func testSourceConfig() config.SourceConfig {
	cfg := config.Default().Source
	cfg.RatePerSecond = 1000
	cfg.RequestTimeout = 2 * time.Second
	return cfg
}

func TestHTTPFetcher(t *testing.T) {
	var gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	fetcher := NewHTTPFetcher(testSourceConfig(), nil)
	body, err := fetcher.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", string(body))
	assert.Equal(t, config.AppName+"/"+config.AppVersion, gotAgent)
}

func TestHTTPFetcherErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	fetcher := NewHTTPFetcher(testSourceConfig(), nil)

	_, err := fetcher.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, pipeline.IsType(err, pipeline.ErrorTypeFetch))
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)

	closed := httptest.NewServer(http.NotFoundHandler())
	url := closed.URL
	closed.Close()
	_, err = fetcher.Fetch(context.Background(), url)
	assert.True(t, pipeline.IsType(err, pipeline.ErrorTypeFetch))
}

func TestNewFetcherSelectsImplementation(t *testing.T) {
	cfg := testSourceConfig()
	assert.IsType(t, &HTTPFetcher{}, NewFetcher(cfg, nil))
	cfg.Fetcher = "chrome"
	assert.IsType(t, &BrowserFetcher{}, NewFetcher(cfg, nil))
}

// staticFetcher serves a fixed document
type staticFetcher struct {
	body  []byte
	err   error
	calls int
}

func (f *staticFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.body, nil
}

func TestExtractComposesFetchAndParse(t *testing.T) {
	fetcher := &staticFetcher{body: readFixture(t, "banks.html")}
	opts := ExtractOptionsFromConfig(config.Default().Source)

	records, err := Extract(context.Background(), fetcher, "http://example.test", opts)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	fetcher.err = pipeline.NewFetchError("http://example.test", context.DeadlineExceeded)
	_, err = Extract(context.Background(), fetcher, "http://example.test", opts)
	assert.True(t, pipeline.IsType(err, pipeline.ErrorTypeFetch))
}
