package result

// Tap duplicates every Result passed to Send to each of the configured
// consumers. It is how the live TUI, OpenTelemetry span emission, and
// history accumulation observe an attack without ever touching the
// Transport or Dispatcher — §4.5 and §9 ("OpenTelemetry and terminal UI...
// model them as a fan-out tap after the sink").
type Tap struct {
	consumers []func(*Result)
}

// NewTap builds a Tap with no consumers attached.
func NewTap() *Tap { return &Tap{} }

// Attach registers fn to be called with every subsequent Result. Attach is
// not safe to call concurrently with Send.
func (t *Tap) Attach(fn func(*Result)) {
	t.consumers = append(t.consumers, fn)
}

// Send fans r out to every attached consumer, in registration order.
func (t *Tap) Send(r *Result) {
	for _, fn := range t.consumers {
		fn(r)
	}
}
