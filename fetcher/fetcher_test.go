package fetcher_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/fetcher"
)

func TestFetchFirstRequestHasNoConditionalHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("If-None-Match"))
		assert.Empty(t, r.Header.Get("If-Modified-Since"))
		assert.Equal(t, "vigil-test", r.Header.Get("User-Agent"))

		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Last-Modified", "Wed, 21 Oct 2015 07:28:00 GMT")
		w.Write([]byte("<feed/>"))
	}))
	defer server.Close()

	f := fetcher.New(time.Second, "vigil-test")
	result := f.Fetch(context.Background(), server.URL, fetcher.Validators{})

	require.Equal(t, fetcher.Changed, result.Outcome)
	assert.Equal(t, []byte("<feed/>"), result.Body)
	assert.Equal(t, `"v1"`, result.Validators.ETag)
	assert.Equal(t, "Wed, 21 Oct 2015 07:28:00 GMT", result.Validators.LastModified)
}

func TestFetchSendsStoredValidators(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, `"v1"`, r.Header.Get("If-None-Match"))
		assert.Equal(t, "Wed, 21 Oct 2015 07:28:00 GMT", r.Header.Get("If-Modified-Since"))
		w.WriteHeader(http.StatusNotModified)
	}))
	defer server.Close()

	prev := fetcher.Validators{ETag: `"v1"`, LastModified: "Wed, 21 Oct 2015 07:28:00 GMT"}
	f := fetcher.New(time.Second, "")
	result := f.Fetch(context.Background(), server.URL, prev)

	require.Equal(t, fetcher.Unchanged, result.Outcome)
	assert.Nil(t, result.Body)
	// A 304 keeps the validators we already had.
	assert.Equal(t, prev, result.Validators)
}

func TestFetchFallsBackToPreviousValidators(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Changed body but only an ETag, no Last-Modified.
		w.Header().Set("ETag", `"v2"`)
		w.Write([]byte("<feed/>"))
	}))
	defer server.Close()

	prev := fetcher.Validators{ETag: `"v1"`, LastModified: "Wed, 21 Oct 2015 07:28:00 GMT"}
	f := fetcher.New(time.Second, "")
	result := f.Fetch(context.Background(), server.URL, prev)

	require.Equal(t, fetcher.Changed, result.Outcome)
	assert.Equal(t, `"v2"`, result.Validators.ETag)
	assert.Equal(t, prev.LastModified, result.Validators.LastModified)
}

func TestFetchErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	f := fetcher.New(time.Second, "")
	result := f.Fetch(context.Background(), server.URL, fetcher.Validators{})

	require.Equal(t, fetcher.Failed, result.Outcome)
	var statusErr *fetcher.StatusError
	require.ErrorAs(t, result.Err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.Code)
}

func TestFetchTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	f := fetcher.New(50*time.Millisecond, "")
	result := f.Fetch(context.Background(), server.URL, fetcher.Validators{})

	require.Equal(t, fetcher.Failed, result.Outcome)
	assert.Error(t, result.Err)
}

func TestFetchConnectionRefused(t *testing.T) {
	// Grab a port nothing listens on.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	f := fetcher.New(time.Second, "")
	result := f.Fetch(context.Background(), url, fetcher.Validators{})

	require.Equal(t, fetcher.Failed, result.Outcome)
	assert.Error(t, result.Err)
}
