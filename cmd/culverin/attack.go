package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"culverin/internal/attack"
	"culverin/internal/history"
	"culverin/internal/metrics"
	"culverin/internal/result"
	"culverin/internal/target"
	"culverin/internal/telemetry"
	"culverin/internal/transport"
)

var attackFlags struct {
	targetsFile string
	format      string
	rate        string
	duration    time.Duration
	name        string
	workers     int
	maxWorkers  int
	tolerance   float64
	timeout     time.Duration
	httpTimeout time.Duration
	headers     []string
	lazy        bool
	output      string

	keepAlive  bool
	http2      bool
	h2c        bool
	insecure   bool
	redirects  int
	maxBody    int64
	maxConns   int
	connectTo  []string
	resolvers  []string
	rootCerts  []string
	clientCert string
	clientKey  string
	unixSocket string
	localAddr  string
	proxyHdrs  []string
	chunked    bool

	live bool
}

var attackCmd = &cobra.Command{
	Use:   "attack",
	Short: "Issue requests against a set of targets at a fixed rate",
	RunE:  runAttack,
}

func init() {
	f := attackCmd.Flags()
	f.StringVarP(&attackFlags.targetsFile, "targets", "t", "", "target file (default: stdin)")
	f.StringVar(&attackFlags.format, "format", "http", "target format: http or json")
	f.StringVar(&attackFlags.rate, "rate", "50/1s", "request rate as count/period, e.g. 50/1s; 0 for unpaced")
	f.DurationVar(&attackFlags.duration, "duration", 10*time.Second, "attack duration; 0 = until targets exhausted")
	f.StringVar(&attackFlags.name, "name", "", "attack name recorded on every Result (default: a generated id)")
	f.IntVar(&attackFlags.workers, "workers", 10, "initial worker pool size")
	f.IntVar(&attackFlags.maxWorkers, "max-workers", 0, "worker pool ceiling; 0 = unbounded")
	f.Float64Var(&attackFlags.tolerance, "tolerance", 0.1, "fraction of requests allowed to go unanswered before exit code 2")
	f.DurationVar(&attackFlags.timeout, "timeout", 30*time.Second, "overall ceiling on draining outstanding requests after duration elapses")
	f.DurationVar(&attackFlags.httpTimeout, "http-timeout", 30*time.Second, "per-request ceiling")
	f.StringArrayVarP(&attackFlags.headers, "header", "H", nil, "global header \"Name: Value\", repeatable")
	f.BoolVar(&attackFlags.lazy, "lazy", false, "parse targets incrementally instead of loading them all up front")
	f.StringVarP(&attackFlags.output, "output", "o", "", "result stream output file (default: stdout)")

	f.BoolVar(&attackFlags.keepAlive, "keepalive", true, "reuse TCP connections")
	f.BoolVar(&attackFlags.http2, "http2", true, "enable HTTP/2 over TLS")
	f.BoolVar(&attackFlags.h2c, "h2c", false, "force cleartext HTTP/2")
	f.BoolVar(&attackFlags.insecure, "insecure", false, "skip TLS certificate verification")
	f.IntVar(&attackFlags.redirects, "redirects", 10, "max redirects to follow; -1 disables following and reports the first 3xx as success")
	f.Int64Var(&attackFlags.maxBody, "max-body", -1, "max response bytes to read; -1 = unlimited")
	f.IntVar(&attackFlags.maxConns, "max-connections", 10000, "max idle+active connections per host")
	f.StringArrayVar(&attackFlags.connectTo, "connect-to", nil, "HOST:PORT=HOST:PORT rewrite applied before DNS, repeatable")
	f.StringArrayVar(&attackFlags.resolvers, "resolver", nil, "custom DNS server address, repeatable")
	f.StringArrayVar(&attackFlags.rootCerts, "root-certs", nil, "path to a PEM file of trusted root CAs, repeatable")
	f.StringVar(&attackFlags.clientCert, "client-cert", "", "path to a PEM client certificate")
	f.StringVar(&attackFlags.clientKey, "client-key", "", "path to a PEM client key")
	f.StringVar(&attackFlags.unixSocket, "unix-socket", "", "dial this Unix socket instead of TCP")
	f.StringVar(&attackFlags.localAddr, "local-addr", "", "local address to bind outgoing connections to")
	f.StringArrayVar(&attackFlags.proxyHdrs, "proxy-header", nil, "Name=Value sent with proxy CONNECT requests, repeatable")
	f.BoolVar(&attackFlags.chunked, "chunked", false, "send request bodies chunked instead of with Content-Length")

	f.BoolVar(&attackFlags.live, "live", false, "show a live terminal dashboard instead of writing progress to stderr")
}

func runAttack(cmd *cobra.Command, args []string) error {
	cfg, err := buildAttackConfig()
	if err != nil {
		return withExitCode(exitArgsOrIO, err)
	}

	in, err := openInput(attackFlags.targetsFile)
	if err != nil {
		return withExitCode(exitArgsOrIO, fmt.Errorf("opening targets: %w", err))
	}
	if in != os.Stdin {
		defer in.Close()
	}

	format := target.FormatHTTP
	if attackFlags.format == "json" {
		format = target.FormatJSON
	}
	source, err := target.Open(in, format, attackFlags.lazy, false)
	if err != nil {
		return withExitCode(exitArgsOrIO, fmt.Errorf("loading targets: %w", err))
	}

	tr, err := transport.New(cfg.Transport)
	if err != nil {
		return withExitCode(exitInternal, fmt.Errorf("building transport: %w", err))
	}

	out, err := openOutput(attackFlags.output)
	if err != nil {
		return withExitCode(exitArgsOrIO, fmt.Errorf("opening output: %w", err))
	}
	if out != os.Stdout {
		defer out.Close()
	}
	enc := result.NewEncoder(out)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	agg := metrics.NewAggregator(nil)
	tap := result.NewTap()
	tap.Attach(agg.Add)
	// writeErr is only touched by the sink goroutine until sinkDone closes.
	var writeErr error
	tap.Attach(func(r *result.Result) {
		if writeErr != nil {
			return
		}
		if err := enc.Encode(r); err != nil {
			writeErr = err
			level.Error(logger).Log("msg", "failed to write result, stopping attack", "err", err)
			cancel()
		}
	})

	tel := &telemetry.Telemetry{}
	if otelAddr != "" {
		ctx := context.Background()
		if err := tel.Start(ctx, otelAddr, cfg.Name); err != nil {
			level.Warn(logger).Log("msg", "telemetry disabled", "err", err)
		} else {
			tap.Attach(tel.Tap())
			defer tel.Shutdown(context.Background())
		}
	}

	var dash *dashboard
	if attackFlags.live {
		dash = newDashboard(cfg, agg)
		go dash.run()
	} else {
		level.Info(logger).Log("msg", "attack starting", "name", cfg.Name, "rate", attackFlags.rate, "duration", cfg.Duration)
	}

	// Engine.emit runs sink from whichever worker goroutine produced the
	// Result, so tap.Send (and the encoder write it fans out to) must not
	// be called directly from there: it isn't safe for concurrent use.
	// A single sink goroutine serializes every Result onto one stream,
	// per §4.4/§5's single-writer model.
	results := make(chan *result.Result, 4*attackFlags.workers)
	sinkDone := make(chan struct{})
	go func() {
		defer close(sinkDone)
		for r := range results {
			tap.Send(r)
		}
	}()

	engine := attack.NewEngine(cfg, tr, source, func(r *result.Result) { results <- r })

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		level.Warn(logger).Log("msg", "interrupted, draining outstanding requests")
		cancel()
	}()
	defer signal.Stop(sig)

	summary, runErr := engine.Run(ctx)
	close(results)
	<-sinkDone
	if err := enc.Flush(); err != nil {
		level.Error(logger).Log("msg", "failed to flush result stream", "err", err)
	}

	if dash != nil {
		dash.stop()
	}

	snapshot := agg.Snapshot()
	if historyDB != "" {
		if err := recordHistory(cfg, snapshot); err != nil {
			level.Warn(logger).Log("msg", "failed to record history", "err", err)
		}
	}

	level.Info(logger).Log("msg", "attack finished",
		"expected", summary.Expected, "completed", summary.Completed, "tolerated", summary.Tolerated)

	if writeErr != nil {
		return withExitCode(exitArgsOrIO, fmt.Errorf("writing result stream: %w", writeErr))
	}
	if runErr != nil {
		var toleranceErr *attack.ErrToleranceFailed
		if errors.As(runErr, &toleranceErr) {
			return withExitCode(exitTolerance, runErr)
		}
		return withExitCode(exitInternal, runErr)
	}
	return nil
}

func recordHistory(cfg attack.Config, m metrics.Metrics) error {
	store, err := history.Open(historyDB)
	if err != nil {
		return err
	}
	defer store.Close()
	id := time.Now().UTC().Format("20060102T150405.000000000Z") + "-" + uuid.New().String()[:8]
	return store.Save(history.FromAttack(id, time.Now().UTC(), cfg, m))
}

func buildAttackConfig() (attack.Config, error) {
	rate, err := parseRate(attackFlags.rate)
	if err != nil {
		return attack.Config{}, err
	}
	headers, err := parseHeaders(attackFlags.headers)
	if err != nil {
		return attack.Config{}, err
	}
	connectTo, err := parseKV(attackFlags.connectTo)
	if err != nil {
		return attack.Config{}, err
	}
	proxyHdrs, err := parseKV(attackFlags.proxyHdrs)
	if err != nil {
		return attack.Config{}, err
	}

	name := attackFlags.name
	if name == "" {
		name = "attack-" + strconv.FormatInt(time.Now().UnixNano(), 36)
	}

	return attack.Config{
		Name:          name,
		Rate:          rate,
		Duration:      attackFlags.duration,
		Workers:       attackFlags.workers,
		MaxWorkers:    attackFlags.maxWorkers,
		Tolerance:     attackFlags.tolerance,
		Timeout:       attackFlags.timeout,
		HTTPTimeout:   attackFlags.httpTimeout,
		GlobalHeaders: headers,
		LazyTargets:   attackFlags.lazy,
		Transport: transport.Config{
			KeepAlive:       attackFlags.keepAlive,
			HTTP2:           attackFlags.http2,
			H2C:             attackFlags.h2c,
			InsecureTLS:     attackFlags.insecure,
			Redirects:       attackFlags.redirects,
			MaxBody:         attackFlags.maxBody,
			MaxConnsPerHost: attackFlags.maxConns,
			ConnectTo:       connectTo,
			Resolvers:       attackFlags.resolvers,
			RootCerts:       attackFlags.rootCerts,
			ClientCertFile:  attackFlags.clientCert,
			ClientKeyFile:   attackFlags.clientKey,
			UnixSocket:      attackFlags.unixSocket,
			LocalAddr:       attackFlags.localAddr,
			ProxyHeaders:    proxyHdrs,
			Chunked:         attackFlags.chunked,
			HTTPTimeout:     attackFlags.httpTimeout,
		},
	}, nil
}
