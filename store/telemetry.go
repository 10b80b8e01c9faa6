package store

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Warning codes reported through Observer.Warn.
const (
	WarningSlowOperation = "SLOW_DOCSTORE_OPERATION"
	WarningTooManyRows   = "TOO_MANY_ROWS_RETURNED"
)

// Metrics describes one completed repository operation.
type Metrics struct {
	Operation     string
	Container     string
	ReturnedDocs  int
	Writes        int
	RequestCharge float64
	Elapsed       time.Duration
	// Err is the error returned to the caller, if any.
	Err error
}

// Warning is a threshold violation. It never changes the outcome of the
// operation that raised it.
type Warning struct {
	Code      string
	Operation string
	Container string
	Elapsed   time.Duration
	Rows      int
	Threshold string
}

// Observer receives per-operation metrics and threshold warnings.
// Implementations must be safe for concurrent use.
type Observer interface {
	Track(ctx context.Context, m Metrics)
	Warn(ctx context.Context, w Warning)
}

// LogObserver writes metrics at debug level and warnings at warn level.
type LogObserver struct {
	Logger *slog.Logger
}

// NewLogObserver returns a LogObserver. If logger is nil, slog.Default() is used.
func NewLogObserver(logger *slog.Logger) *LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogObserver{Logger: logger}
}

func (o *LogObserver) Track(ctx context.Context, m Metrics) {
	attrs := []any{
		"operation", m.Operation,
		"container", m.Container,
		"returned_docs", m.ReturnedDocs,
		"writes", m.Writes,
		"request_charge", m.RequestCharge,
		"elapsed_ms", m.Elapsed.Milliseconds(),
	}
	if m.Err != nil {
		attrs = append(attrs, "error", m.Err)
	}
	o.Logger.DebugContext(ctx, "docstore operation", attrs...)
}

func (o *LogObserver) Warn(ctx context.Context, w Warning) {
	o.Logger.WarnContext(ctx, "docstore threshold exceeded",
		"error_code", w.Code,
		"operation", w.Operation,
		"container", w.Container,
		"elapsed_ms", w.Elapsed.Milliseconds(),
		"rows", w.Rows,
		"threshold", w.Threshold,
	)
}

// measurement accumulates the metrics of one operation. finish must run on
// every exit path, so callers defer it right after begin.
type measurement struct {
	observer Observer
	cfg      Config
	start    time.Time
	m        Metrics
}

func newMeasurement(observer Observer, cfg Config, op, container string) *measurement {
	return &measurement{
		observer: observer,
		cfg:      cfg,
		start:    time.Now(),
		m:        Metrics{Operation: op, Container: container},
	}
}

func (m *measurement) charge(cc *types.ConsumedCapacity) {
	if cc != nil && cc.CapacityUnits != nil {
		m.m.RequestCharge += *cc.CapacityUnits
	}
}

func (m *measurement) returned(n int) { m.m.ReturnedDocs = n }

func (m *measurement) wrote(n int) { m.m.Writes = n }

// checkRows reports a too-many-rows warning when n exceeds the threshold.
func (m *measurement) checkRows(ctx context.Context, n int) {
	if n <= m.cfg.TooManyRowsThreshold {
		return
	}
	m.observer.Warn(ctx, Warning{
		Code:      WarningTooManyRows,
		Operation: m.m.Operation,
		Container: m.m.Container,
		Elapsed:   time.Since(m.start),
		Rows:      n,
		Threshold: strconv.Itoa(m.cfg.TooManyRowsThreshold),
	})
}

// finish records the elapsed time and outcome, then checks the slow
// operation threshold.
func (m *measurement) finish(ctx context.Context, errp *error) {
	m.m.Elapsed = time.Since(m.start)
	if errp != nil {
		m.m.Err = *errp
	}
	m.observer.Track(ctx, m.m)

	if m.m.Elapsed > m.cfg.SlowOperationThreshold {
		m.observer.Warn(ctx, Warning{
			Code:      WarningSlowOperation,
			Operation: m.m.Operation,
			Container: m.m.Container,
			Elapsed:   m.m.Elapsed,
			Rows:      m.m.ReturnedDocs,
			Threshold: m.cfg.SlowOperationThreshold.String(),
		})
	}
}
