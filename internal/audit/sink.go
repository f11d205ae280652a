package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/diogo-rp-menezes/aegispatrimonio-sub000/internal/authz"
	"github.com/diogo-rp-menezes/aegispatrimonio-sub000/internal/observability"
)

const (
	// QueueAudit is the dedicated queue for security audit writes.
	QueueAudit = "audit"
	// TaskSecurityLog is the task type for one audit entry.
	TaskSecurityLog = "audit:security_log"
)

// Enqueuer is the slice of asynq.Client the sink needs.
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Sink hands decisions to the audit queue. It is fire-and-forget: the write
// happens in the worker process under its own transaction, so a request
// rollback cannot erase the trail and a failed write cannot flip a decision.
type Sink struct {
	client  Enqueuer
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewSink constructs a Sink.
func NewSink(client Enqueuer, metrics *observability.Metrics, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{client: client, metrics: metrics, logger: logger}
}

// Record enqueues an audit entry for the decision. Failures are counted and
// dropped; nothing propagates to the caller.
func (s *Sink) Record(event authz.Event) {
	entry := Entry{
		Timestamp: time.Now().UTC(),
		Username:  event.PrincipalEmail,
		Resource:  event.Resource,
		Action:    event.Action,
		Context:   renderScope(event.Scope),
		Outcome:   OutcomeDeny,
		Details:   event.Detail,
	}
	if event.Allowed {
		entry.Outcome = OutcomeAllow
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		s.metrics.AuditFailure()
		s.logger.Error("audit: marshal entry", slog.Any("error", err))
		return
	}

	// Deliberately not bound to the request context: cancelling the request
	// must not cancel the dispatch.
	task := asynq.NewTask(TaskSecurityLog, payload, asynq.Queue(QueueAudit), asynq.MaxRetry(0))
	if _, err := s.client.Enqueue(task); err != nil {
		s.metrics.AuditFailure()
		s.logger.Error("audit: enqueue entry", slog.Any("error", err))
	}
}

// NewSecurityLogHandler returns the worker-side handler persisting queued
// entries. A failed insert is counted and dropped rather than retried.
func NewSecurityLogHandler(repo Repository, metrics *observability.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, t *asynq.Task) error {
		var entry Entry
		if err := json.Unmarshal(t.Payload(), &entry); err != nil {
			logger.Error("audit: malformed task payload", slog.Any("error", err))
			return asynq.SkipRetry
		}
		if err := repo.Insert(ctx, entry); err != nil {
			metrics.AuditFailure()
			logger.Error("audit: persist entry", slog.Any("error", err))
			return nil
		}
		return nil
	}
}

func renderScope(scope []int64) string {
	if scope == nil {
		return ""
	}
	parts := make([]string, len(scope))
	for i, id := range scope {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
