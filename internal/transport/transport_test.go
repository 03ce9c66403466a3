package transport

import (
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"culverin/internal/target"
)

func newTarget(method, url string) *target.Target {
	return &target.Target{Method: method, URL: url}
}

func TestSendRecordsSuccessfulExchange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Test", "1")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	tr, err := New(Config{MaxBody: -1})
	require.NoError(t, err)

	r := tr.Send(context.Background(), newTarget(http.MethodGet, srv.URL), nil, 0, "test")
	require.Equal(t, uint16(200), r.Code)
	require.Empty(t, r.Error)
	require.Equal(t, []byte("hello"), r.Body)
	require.EqualValues(t, 5, r.BytesIn)
}

func TestSendClassifiesConnectFailure(t *testing.T) {
	tr, err := New(Config{MaxBody: -1})
	require.NoError(t, err)

	r := tr.Send(context.Background(), newTarget(http.MethodGet, "http://127.0.0.1:1/"), nil, 0, "test")
	require.NotEmpty(t, r.Error)
	require.Equal(t, uint16(0), r.Code)
}

func TestSendHonorsHTTPTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr, err := New(Config{MaxBody: -1, HTTPTimeout: 10 * time.Millisecond})
	require.NoError(t, err)

	r := tr.Send(context.Background(), newTarget(http.MethodGet, srv.URL), nil, 0, "test")
	require.Equal(t, "timeout", r.Error)
}

func TestSendNegativeOneRedirectsReportsFirstHopAsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/start" {
			http.Redirect(w, r, "/end", http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr, err := New(Config{MaxBody: -1, Redirects: -1})
	require.NoError(t, err)

	r := tr.Send(context.Background(), newTarget(http.MethodGet, srv.URL+"/start"), nil, 0, "test")
	require.Equal(t, uint16(302), r.Code)
	require.Empty(t, r.Error)
}

func TestSendDecompressesGzipBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.WriteHeader(http.StatusOK)
		gz := gzip.NewWriter(w)
		gz.Write([]byte("decompressed"))
		gz.Close()
	}))
	defer srv.Close()

	tr, err := New(Config{MaxBody: -1})
	require.NoError(t, err)

	r := tr.Send(context.Background(), newTarget(http.MethodGet, srv.URL), nil, 0, "test")
	require.Empty(t, r.Error)
	require.Equal(t, []byte("decompressed"), r.Body)
}

func TestSendMergesGlobalHeaders(t *testing.T) {
	var seen http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr, err := New(Config{MaxBody: -1})
	require.NoError(t, err)

	global := http.Header{"X-Global": []string{"yes"}}
	tgt := newTarget(http.MethodGet, srv.URL)
	tgt.Headers = []target.Header{{Name: "X-Local", Value: "yes"}}

	r := tr.Send(context.Background(), tgt, global, 0, "test")
	require.Empty(t, r.Error)
	require.Equal(t, "yes", seen.Get("X-Global"))
	require.Equal(t, "yes", seen.Get("X-Local"))
}

func TestSendCapsBodyAtMaxBodyButDrainsRest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("0123456789"))
	}))
	defer srv.Close()

	tr, err := New(Config{MaxBody: 4})
	require.NoError(t, err)

	r := tr.Send(context.Background(), newTarget(http.MethodGet, srv.URL), nil, 0, "test")
	require.Empty(t, r.Error)
	require.Len(t, r.Body, 4)
	require.Equal(t, []byte("0123"), r.Body)
}

func TestSendMaxBodyZeroSkipsBodyAndCountsOnlyHeaders(t *testing.T) {
	// The status line and headers alone are well over 10 bytes, so the body
	// is made larger than any header block this server sends.
	payload := make([]byte, 1000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write(payload)
	}))
	defer srv.Close()

	tr, err := New(Config{MaxBody: 0})
	require.NoError(t, err)

	r := tr.Send(context.Background(), newTarget(http.MethodGet, srv.URL), nil, 0, "test")
	require.Empty(t, r.Error)
	require.Nil(t, r.Body)
	require.Greater(t, r.BytesIn, uint64(0))
	require.Less(t, r.BytesIn, uint64(len(payload)))
}
