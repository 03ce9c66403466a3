package transport

import (
	"bytes"
	"compress/flate"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/net/http2"

	"culverin/internal/result"
	"culverin/internal/target"
)

// Transport is the pooled HTTP client the dispatcher drives; its internal
// connection pool is the only state shared (and synchronized) across
// workers, per §5.
type Transport struct {
	client *http.Client
	cfg    Config
}

// New builds a Transport from cfg. Configuration-level failures (bad TLS
// material, bad local address) are returned here and abort attack startup,
// never surfacing as a per-request Result error.
func New(cfg Config) (*Transport, error) {
	tlsCfg, err := cfg.buildTLSConfig()
	if err != nil {
		return nil, err
	}
	dialer, err := cfg.buildDialer()
	if err != nil {
		return nil, err
	}

	rt := &http.Transport{
		TLSClientConfig:     tlsCfg,
		DisableKeepAlives:   !cfg.KeepAlive,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		MaxIdleConnsPerHost: cfg.MaxConnsPerHost,
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialContextFor(cfg, dialer),
	}

	if len(cfg.ProxyHeaders) > 0 {
		h := make(http.Header, len(cfg.ProxyHeaders))
		for k, v := range cfg.ProxyHeaders {
			h.Set(k, v)
		}
		rt.ProxyConnectHeader = h
	}

	if cfg.H2C {
		// Cleartext HTTP/2: force the h2 ALPN path over a plain TCP dial,
		// the standard client-side idiom for talking h2c to a server that
		// never negotiates TLS at all.
		h2t := &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				return dialContextFor(cfg, dialer)(ctx, network, addr)
			},
		}
		return &Transport{client: &http.Client{Transport: h2t}, cfg: cfg}, nil
	}

	if cfg.HTTP2 {
		if err := http2.ConfigureTransport(rt); err != nil {
			return nil, fmt.Errorf("transport: configuring HTTP/2: %w", err)
		}
	}

	return &Transport{client: &http.Client{Transport: rt}, cfg: cfg}, nil
}

// dialContextFor returns a DialContext that checks the Unix-socket
// override first (when set, every connection dials that socket) and
// otherwise applies the connect-to rewrite table before dialing with the
// ordinary dialer (which itself may carry a custom resolver).
func dialContextFor(cfg Config, dialer *net.Dialer) func(context.Context, string, string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		if cfg.UnixSocket != "" {
			return dialer.DialContext(ctx, "unix", cfg.UnixSocket)
		}
		if rewrite, ok := cfg.ConnectTo[addr]; ok {
			addr = rewrite
		}
		return dialer.DialContext(ctx, network, addr)
	}
}

// Send executes one request built from tgt, merging globalHeaders onto it,
// and returns a fully populated Result. It never returns an error itself —
// every failure mode is captured as a classified Result per §7, because
// request-level errors must never abort the attack.
func (t *Transport) Send(ctx context.Context, tgt *target.Target, globalHeaders http.Header, seq uint64, name string) *result.Result {
	start := time.Now()
	r := &result.Result{
		AttackName: name,
		Seq:        seq,
		Timestamp:  start,
		URL:        tgt.URL,
		Method:     tgt.Method,
	}

	req, err := t.buildRequest(ctx, tgt, globalHeaders)
	if err != nil {
		r.Error = classify(err)
		r.Latency = time.Since(start)
		return r
	}
	r.BytesOut = uint64(tgt.BodyLen())

	httpTimeout := t.cfg.HTTPTimeout
	if httpTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, httpTimeout)
		defer cancel()
		req = req.WithContext(ctx)
	}

	redirects := t.cfg.Redirects
	client := t.client
	if redirects == -1 {
		// -1 means "report the first 3xx as success without following";
		// http.Client follows by default, so we must intercept instead of
		// mutate the shared client (which is read-only across workers).
		noFollow := *t.client
		noFollow.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
		client = &noFollow
	} else {
		withLimit := *t.client
		limit := redirects
		withLimit.CheckRedirect = func(_ *http.Request, via []*http.Request) error {
			if len(via) > limit {
				return fmt.Errorf("stopped after %d redirects", limit)
			}
			return nil
		}
		client = &withLimit
	}

	resp, err := client.Do(req)
	if err != nil {
		r.Error = classify(err)
		r.Latency = time.Since(start)
		return r
	}
	defer resp.Body.Close()

	r.Code = uint16(resp.StatusCode)

	if t.cfg.MaxBody == 0 {
		_, err := io.Copy(io.Discard, resp.Body)
		if err != nil {
			r.Error = "read_body"
		}
		r.BytesIn = headerBytes(resp)
		r.Latency = time.Since(start)
		return r
	}

	body, err := t.readBody(resp)
	r.BytesIn = uint64(len(body))
	if err != nil {
		r.Error = "read_body"
	} else {
		r.Body = body
	}
	r.Latency = time.Since(start)
	return r
}

// headerBytes estimates the wire size of the response's status line and
// headers, the only bytes counted toward bytes_in when max_body is 0; the
// body is then drained and discarded without being decoded or counted.
func headerBytes(resp *http.Response) uint64 {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "HTTP/%d.%d %d %s\r\n", resp.ProtoMajor, resp.ProtoMinor, resp.StatusCode, http.StatusText(resp.StatusCode))
	resp.Header.Write(&buf)
	buf.WriteString("\r\n")
	return uint64(buf.Len())
}

// buildRequest merges globalHeaders onto the target's own headers (both
// are sent, no de-duplication, per the GlobalHeaders invariant) and wires
// up chunked transfer encoding when configured.
func (t *Transport) buildRequest(ctx context.Context, tgt *target.Target, globalHeaders http.Header) (*http.Request, error) {
	u, err := url.Parse(tgt.URL)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	var body io.Reader
	if len(tgt.Body) > 0 {
		body = bytes.NewReader(tgt.Body)
	}

	req, err := http.NewRequestWithContext(ctx, tgt.Method, tgt.URL, body)
	if err != nil {
		return nil, err
	}

	for k, vs := range tgt.ToHTTPHeader() {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	for k, vs := range globalHeaders {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	if t.cfg.Chunked {
		req.TransferEncoding = []string{"chunked"}
		req.ContentLength = -1
	}

	return req, nil
}

// readBody drains resp.Body, transparently decoding gzip/brotli/deflate,
// and caps the amount retained (not the amount drained — the full body is
// always read off the wire for connection-reuse correctness) at MaxBody.
// Callers must not reach here with MaxBody == 0; Send handles that case
// itself without decompressing anything.
func (t *Transport) readBody(resp *http.Response) ([]byte, error) {
	reader, err := decompress(resp)
	if err != nil {
		return nil, err
	}
	if c, ok := reader.(io.Closer); ok && reader != io.Reader(resp.Body) {
		defer c.Close()
	}

	if t.cfg.MaxBody < 0 {
		return io.ReadAll(reader)
	}

	limited := io.LimitReader(reader, t.cfg.MaxBody)
	captured, err := io.ReadAll(limited)
	if err != nil {
		return captured, err
	}
	// Drain and discard the remainder so the connection can be reused.
	_, _ = io.Copy(io.Discard, reader)
	return captured, nil
}

func decompress(resp *http.Response) (io.Reader, error) {
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "gzip":
		return gzip.NewReader(resp.Body)
	case "br":
		return brotli.NewReader(resp.Body), nil
	case "deflate":
		return flate.NewReader(resp.Body), nil
	default:
		return resp.Body, nil
	}
}

// classify maps a transport-level Go error to one of the error kinds from
// §7. Order matters: more specific checks run before the generic fallback.
func classify(err error) string {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "dns"
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Op == "dial" {
			return "connect"
		}
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "tls"), strings.Contains(msg, "x509"), strings.Contains(msg, "certificate"):
		return "tls"
	case strings.Contains(msg, "stopped after") && strings.Contains(msg, "redirects"):
		return "redirect"
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "no route to host"):
		return "connect"
	case strings.Contains(msg, "EOF"), strings.Contains(msg, "malformed HTTP"):
		return "http"
	default:
		return "other: " + msg
	}
}
