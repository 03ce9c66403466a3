package attack

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"culverin/internal/pacer"
	"culverin/internal/result"
	"culverin/internal/target"
)

// job is a (tick, target) pair handed from the dispatcher to a worker,
// per §4.4's "bounded handoff channel" model.
type job struct {
	seq uint64
	tgt *target.Target
}

// Summary is what Run returns once the drain completes: how many ticks
// were expected, how many Results were actually produced, and whether the
// tolerance check passed.
type Summary struct {
	Expected  uint64
	Completed uint64
	Tolerated bool
}

// ErrToleranceFailed is returned by Run when fewer than (1-tolerance)*N
// Results were produced by the end of the drain.
type ErrToleranceFailed struct {
	Expected  uint64
	Completed uint64
	Tolerance float64
}

func (e *ErrToleranceFailed) Error() string {
	return fmt.Sprintf("attack: tolerance check failed: completed %d/%d requests (tolerance %.2f)",
		e.Completed, e.Expected, e.Tolerance)
}

// Engine owns the pacer, target source, transport and worker pool for one
// attack run. It is the Dispatcher/Worker Pool of §4.4, generalized from
// the teacher's fixed-size worker-goroutine loop in runner.runRPS into a
// pool that grows on demand up to MaxWorkers, so busy workers do not hold
// back the pacer until that ceiling is reached. At the ceiling, dispatch
// waits for a free worker and the pacer's ticks fall behind schedule, to be
// caught up once dispatch resumes.
type Engine struct {
	cfg       Config
	transport Sender
	source    target.Source
	templates *target.Engine
	sink      func(*result.Result)

	globalHeaders http.Header

	workerCount int32
	handoff     chan job
	workCtx     context.Context

	inFlight sync.WaitGroup
	emitted  atomic.Uint64
}

// Sender is the subset of *transport.Transport the Engine depends on, kept
// as an interface so tests can substitute a fake without touching the
// network.
type Sender interface {
	Send(ctx context.Context, tgt *target.Target, globalHeaders http.Header, seq uint64, name string) *result.Result
}

// NewEngine builds an Engine. sink is called once per Result from whichever
// worker goroutine produced it, so calls to sink are concurrent with each
// other and arrive out of sequence order; sink must either be safe for
// concurrent use or serialize itself (a channel to a single consumer
// goroutine, or a mutex) before touching shared state such as an encoder's
// writer.
func NewEngine(cfg Config, tr Sender, src target.Source, sink func(*result.Result)) *Engine {
	cfg = cfg.normalized()
	return &Engine{
		cfg:           cfg,
		transport:     tr,
		source:        src,
		templates:     target.NewEngine(),
		sink:          sink,
		globalHeaders: headersOf(cfg.GlobalHeaders),
		handoff:       make(chan job),
	}
}

// headersOf builds the global-header set shared by every request; it
// defers to Target.ToHTTPHeader by wrapping the raw slice in a Target,
// rather than duplicating the merge logic.
func headersOf(hs []target.Header) http.Header {
	return (&target.Target{Headers: hs}).ToHTTPHeader()
}

// Run drives one full attack: starts the pacer, dispatches ticks to a
// worker pool that grows up to MaxWorkers, collects Results via sink, then
// drains outstanding work and applies the tolerance check. It blocks until
// the attack finishes, normally or via ctx cancellation (which is how a
// caller stops the attack after a sink-write failure). Once ctx is done no
// new requests are dispatched, but Results of requests already in flight
// are still passed to sink during the drain.
func (e *Engine) Run(ctx context.Context) (Summary, error) {
	p := pacer.New(e.cfg.Rate, e.cfg.Duration)
	expected := p.Total()

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	// workCtx is the parent for every in-flight request. It outlives
	// runCtx (the pacer/dispatch lifetime) so outstanding requests keep
	// running into the drain phase; drain cancels it itself if the overall
	// timeout elapses, per §4's "cancellation bounds the drain" rule.
	workCtx, cancelWork := context.WithCancel(context.Background())
	defer cancelWork()
	e.workCtx = workCtx

	var pacerWG sync.WaitGroup
	pacerWG.Add(1)
	go func() {
		defer pacerWG.Done()
		p.Run(runCtx)
	}()

	dispatchDone := make(chan error, 1)
	go func() {
		dispatchDone <- e.dispatch(runCtx, p)
	}()

	var dispatchErr error
	select {
	case dispatchErr = <-dispatchDone:
	case <-ctx.Done():
		p.Stop()
		dispatchErr = <-dispatchDone
	}
	pacerWG.Wait()

	e.drain(e.cfg.Timeout, cancelWork)
	completed := e.emitted.Load()

	summary := Summary{Expected: expected, Completed: completed}
	if dispatchErr != nil {
		return summary, dispatchErr
	}

	threshold := uint64((1 - e.cfg.Tolerance) * float64(expected))
	if expected == 0 || completed >= threshold {
		summary.Tolerated = true
		return summary, nil
	}
	return summary, &ErrToleranceFailed{Expected: expected, Completed: completed, Tolerance: e.cfg.Tolerance}
}

// dispatch spawns the initial worker cohort, then consumes the pacer's
// ticks, pulls the next target for each, and hands the pair to a worker.
// A tick that cannot be handed off to an already-idle worker immediately
// (the handoff channel is unbuffered) grows the pool by one, up to
// MaxWorkers, before blocking on the send; once the ceiling is reached,
// ticks simply queue on the send, per §4.4's "new workers are created when
// a tick arrives with all existing workers busy."
func (e *Engine) dispatch(ctx context.Context, p *pacer.Pacer) error {
	for i := 0; i < e.cfg.Workers; i++ {
		e.spawnWorker()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case tick, ok := <-p.Ticks():
			if !ok {
				return nil
			}
			tgt, err := e.source.Next()
			if errors.Is(err, io.EOF) {
				// Clean lazy-source exhaustion is normal termination, not
				// a failure: stop the pacer and let the drain + tolerance
				// check decide the outcome, per §4.1/§8.
				p.Stop()
				return nil
			}
			if err != nil {
				// A parse failure stops the attack and is surfaced both as
				// an error Result for this tick and as Run's error.
				p.Stop()
				e.emit(&result.Result{
					AttackName: e.cfg.Name,
					Seq:        tick.Seq,
					Timestamp:  time.Now(),
					Error:      "other: " + err.Error(),
				})
				return fmt.Errorf("attack: target source failed: %w", err)
			}
			j := job{seq: tick.Seq, tgt: tgt}

			select {
			case e.handoff <- j:
			default:
				if e.cfg.MaxWorkers <= 0 || int(atomic.LoadInt32(&e.workerCount)) < e.cfg.MaxWorkers {
					e.spawnWorker()
				}
				select {
				case e.handoff <- j:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}

func (e *Engine) spawnWorker() {
	atomic.AddInt32(&e.workerCount, 1)
	e.inFlight.Add(1)
	go e.work()
}

func (e *Engine) work() {
	defer e.inFlight.Done()
	defer atomic.AddInt32(&e.workerCount, -1)

	for j := range e.handoff {
		e.execute(j)
	}
}

func newUUID() string { return uuid.New().String() }

func (e *Engine) execute(j job) {
	data := target.Data{Seq: j.seq, UUID: newUUID(), UserID: fmt.Sprintf("user-%d", j.seq%1000)}
	tgt, err := e.templates.Expand(j.tgt, data)
	if err != nil {
		r := &result.Result{
			AttackName: e.cfg.Name,
			Seq:        j.seq,
			Timestamp:  time.Now(),
			Error:      "other: " + err.Error(),
		}
		e.emit(r)
		return
	}

	r := e.transport.Send(e.workCtx, tgt, e.globalHeaders, j.seq, e.cfg.Name)
	e.emit(r)
}

func (e *Engine) emit(r *result.Result) {
	e.emitted.Add(1)
	e.sink(r)
}

// drain closes the handoff channel once the dispatcher is done and waits
// for every worker to finish its current job, bounded by timeout (0 =
// wait forever). If timeout elapses first, cancelWork cancels every
// in-flight request's context; the Transport propagates that into
// "cancelled" Results (per §4's cancellation policy) and workers exit
// shortly after, so the second, unbounded wait below still completes.
func (e *Engine) drain(timeout time.Duration, cancelWork context.CancelFunc) {
	close(e.handoff)

	done := make(chan struct{})
	go func() {
		e.inFlight.Wait()
		close(done)
	}()

	if timeout <= 0 {
		<-done
		return
	}
	select {
	case <-done:
	case <-time.After(timeout):
		cancelWork()
		<-done
	}
}
