// Package dummy runs a local HTTP server exercising the shapes of
// response an attack needs to drive: varying latency, intermittent
// errors, redirects, and compressed bodies, so `culverin attack` has
// somewhere to point without a real backend.
package dummy

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"culverin/internal/logging"
)

type ServerConfig struct {
	Port   int
	Logger log.Logger
}

func Start(cfg ServerConfig) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	mux := http.NewServeMux()

	// Fast: 10-50ms.
	mux.HandleFunc("/fast", func(w http.ResponseWriter, r *http.Request) {
		jitter := time.Duration(rand.Intn(40)+10) * time.Millisecond
		time.Sleep(jitter)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("fast response"))
	})

	// Medium: 100-300ms.
	mux.HandleFunc("/medium", func(w http.ResponseWriter, r *http.Request) {
		jitter := time.Duration(rand.Intn(200)+100) * time.Millisecond
		time.Sleep(jitter)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("medium response"))
	})

	// Slow: 1s-2s, for exercising http_timeout and drain behavior.
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		jitter := time.Duration(rand.Intn(1000)+1000) * time.Millisecond
		time.Sleep(jitter)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("slow response"))
	})

	// Spike: usually fast, occasionally very slow, for a p50/p99 gap.
	mux.HandleFunc("/spike", func(w http.ResponseWriter, r *http.Request) {
		if rand.Float32() < 0.05 {
			time.Sleep(2 * time.Second)
		} else {
			time.Sleep(20 * time.Millisecond)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("spikey response"))
	})

	// Error: a mix of 500s, 429s, and 200s, for tolerance-check testing.
	mux.HandleFunc("/error", func(w http.ResponseWriter, r *http.Request) {
		rnd := rand.Float32()
		switch {
		case rnd < 0.2:
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("500 internal server error"))
		case rnd < 0.4:
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte("429 too many requests"))
		default:
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ok"))
		}
	})

	// Redirect: a single 302 hop to /fast, for exercising the redirects
	// policy (including --redirects=-1's "first hop is success" rule).
	mux.HandleFunc("/redirect", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/fast", http.StatusFound)
	})

	// Gzip: a gzip-compressed body, for exercising transparent
	// decompression.
	mux.HandleFunc("/gzip", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.WriteHeader(http.StatusOK)
		gz := gzip.NewWriter(w)
		gz.Write([]byte("this response arrived gzip-compressed"))
		gz.Close()
	})

	// Echo: reports the method, headers, and body it received, for
	// exercising global headers, chunked encoding, and request bodies.
	mux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"method":  r.Method,
			"headers": r.Header,
			"body":    string(body),
		})
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		level.Info(logger).Log("msg", "dummy server listening", "addr", addr,
			"endpoints", "/fast,/medium,/slow,/spike,/error,/redirect,/gzip,/echo")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			level.Error(logger).Log("msg", "dummy server failed", "err", err)
		}
	}()
}
