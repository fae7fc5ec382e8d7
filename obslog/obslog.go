// Package obslog implements the Hybrid Logger (C11): DEBUG/INFO go to
// zap's console/file sink directly; WARNING/ERROR/BUSINESS are additionally
// persisted to the durable store.SystemLogRepository; CRITICAL also fans
// out to the admin alert channels. Persistence and alerting happen off a
// bounded channel so a slow or failing sink never back-pressures the
// caller.
package obslog

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vertexsales/salesbot/store"
	"github.com/vertexsales/salesbot/types"
)

// queueDepth bounds the in-flight durable-log backlog. A full queue drops
// the entry (logged to the console sink) rather than blocking the caller.
const queueDepth = 256

// Alerter delivers a CRITICAL entry out of band. Multiple alerters may be
// registered; one failing never suppresses the others.
type Alerter interface {
	AlertCritical(ctx context.Context, subject, body string) error
}

type entry struct {
	severity  types.LogSeverity
	component string
	message   string
	fields    []zap.Field
}

// Logger routes log calls by severity to console output, the durable
// system_log table, and (for CRITICAL) the registered alert channels.
type Logger struct {
	console  *zap.Logger
	logs     *store.SystemLogRepository
	alerters []Alerter
	queue    chan entry
	done     chan struct{}
}

// New returns a Logger and starts its background dispatcher. Call Close on
// shutdown to drain the queue up to the caller's own drain timeout.
func New(console *zap.Logger, logs *store.SystemLogRepository, alerters ...Alerter) *Logger {
	if console == nil {
		console = zap.NewNop()
	}
	l := &Logger{
		console:  console,
		logs:     logs,
		alerters: alerters,
		queue:    make(chan entry, queueDepth),
		done:     make(chan struct{}),
	}
	go l.dispatch()
	return l
}

// Close stops the dispatcher once the queue drains. Safe to call once.
func (l *Logger) Close() {
	close(l.queue)
	<-l.done
}

func (l *Logger) dispatch() {
	defer close(l.done)
	ctx := context.Background()
	for e := range l.queue {
		l.persist(ctx, e)
		if e.severity == types.LogSeverityCritical {
			l.fanOutAlert(ctx, e)
		}
	}
}

func (l *Logger) persist(ctx context.Context, e entry) {
	if l.logs == nil {
		return
	}
	metadata := fieldsToJSON(e.fields)
	record := &types.SystemLog{
		Severity:  e.severity,
		Component: e.component,
		Message:   e.message,
		Metadata:  metadata,
	}
	if err := l.logs.Insert(ctx, record); err != nil {
		l.console.Error("obslog: failed to persist durable log entry", zap.Error(err))
	}
}

func (l *Logger) fanOutAlert(ctx context.Context, e entry) {
	for _, a := range l.alerters {
		if err := a.AlertCritical(ctx, e.component, e.message); err != nil {
			l.console.Error("obslog: alert channel failed", zap.Error(err))
		}
	}
}

func fieldsToJSON(fields []zap.Field) string {
	if len(fields) == 0 {
		return ""
	}
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		f.AddTo(enc)
	}
	encoded, err := json.Marshal(enc.Fields)
	if err != nil {
		return ""
	}
	return string(encoded)
}

// enqueue never blocks: a full queue drops the entry, logged once to the
// console sink so the drop itself is visible.
func (l *Logger) enqueue(e entry) {
	select {
	case l.queue <- e:
	default:
		l.console.Warn("obslog: durable log queue full, dropping entry", zap.String("component", e.component))
	}
}

// Debug logs to the console/file sink only.
func (l *Logger) Debug(component, msg string, fields ...zap.Field) {
	l.console.Debug(msg, append(fields, zap.String("component", component))...)
}

// Info logs to the console/file sink only.
func (l *Logger) Info(component, msg string, fields ...zap.Field) {
	l.console.Info(msg, append(fields, zap.String("component", component))...)
}

// Warning logs to the console sink and queues a durable entry.
func (l *Logger) Warning(component, msg string, fields ...zap.Field) {
	l.console.Warn(msg, append(fields, zap.String("component", component))...)
	l.enqueue(entry{severity: types.LogSeverityWarning, component: component, message: msg, fields: fields})
}

// Error logs to the console sink and queues a durable entry.
func (l *Logger) Error(component, msg string, fields ...zap.Field) {
	l.console.Error(msg, append(fields, zap.String("component", component))...)
	l.enqueue(entry{severity: types.LogSeverityError, component: component, message: msg, fields: fields})
}

// Critical logs to the console sink, queues a durable entry, and fans the
// entry out to every registered Alerter.
func (l *Logger) Critical(component, msg string, fields ...zap.Field) {
	l.console.Error(msg, append(fields, zap.String("component", component), zap.Bool("critical", true))...)
	l.enqueue(entry{severity: types.LogSeverityCritical, component: component, message: msg, fields: fields})
}

// Business records an analytics-facing durable entry (lead created, CRM
// synced, catalog reindexed) without console noise.
func (l *Logger) Business(component, msg string, fields ...zap.Field) {
	l.enqueue(entry{severity: types.LogSeverityBusiness, component: component, message: msg, fields: fields})
}
