package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/da-luiz/Clear-Chain/internal/jobs"
	"github.com/da-luiz/Clear-Chain/internal/shared"
	"github.com/da-luiz/Clear-Chain/internal/users"
	"github.com/da-luiz/Clear-Chain/internal/vendorrequests"
	"github.com/da-luiz/Clear-Chain/internal/workflow"
)

// TaskVendorRequestNotify fans a committed status change out to email.
const TaskVendorRequestNotify = "vendor_requests:notify"

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// NewVendorRequestNotifyTask wraps a status change event.
func NewVendorRequestNotifyTask(evt vendorrequests.StatusChanged) (*asynq.Task, error) {
	body, err := json.Marshal(evt)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskVendorRequestNotify, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

// NotificationPublisher enqueues vendor request events for the worker.
type NotificationPublisher struct {
	enqueuer Enqueuer
}

// NewNotificationPublisher constructs the publisher.
func NewNotificationPublisher(enqueuer Enqueuer) *NotificationPublisher {
	return &NotificationPublisher{enqueuer: enqueuer}
}

// Publish implements vendorrequests.EventPublisher. Events that nobody is
// notified about are dropped here rather than queued.
func (p *NotificationPublisher) Publish(ctx context.Context, evt vendorrequests.StatusChanged) error {
	if !notifiable(evt) {
		return nil
	}
	task, err := NewVendorRequestNotifyTask(evt)
	if err != nil {
		return err
	}
	if _, err := p.enqueuer.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueue %s: %w", TaskVendorRequestNotify, err)
	}
	return nil
}

func notifiable(evt vendorrequests.StatusChanged) bool {
	return evt.Changed() || evt.Action == workflow.ActionRequestInfo
}

// Directory resolves notification recipients. *users.Service satisfies it.
type Directory interface {
	Get(ctx context.Context, id int64) (*users.User, error)
	List(ctx context.Context, filter users.ListFilter) (shared.Page[users.User], error)
}

// NotifyJob turns a status change into send-email tasks.
type NotifyJob struct {
	Directory Directory
	Enqueuer  Enqueuer
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// Handle processes TaskVendorRequestNotify tasks.
func (j *NotifyJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Directory == nil || j.Enqueuer == nil {
		return errors.New("vendor request notify: handler not configured")
	}
	var evt vendorrequests.StatusChanged
	if err := json.Unmarshal(t.Payload(), &evt); err != nil {
		return asynq.SkipRetry
	}
	tracker := metricsOrDefault(j.Metrics).Track(TaskVendorRequestNotify)
	defer func() { err = tracker.End(err) }()

	logger := loggerOrDefault(j.Logger).With(slog.Int64("request_id", evt.RequestID), slog.String("to_status", string(evt.To)))
	recipients, err := j.recipients(ctx, evt)
	if err != nil {
		logger.Error("resolve notification recipients", slog.Any("error", err))
		return err
	}
	subject, body := compose(evt)
	sent := 0
	for _, to := range recipients {
		task, err := NewSendEmailTask(SendEmailPayload{To: to, Subject: subject, Body: body})
		if err != nil {
			return err
		}
		if _, err := j.Enqueuer.EnqueueContext(ctx, task); err != nil {
			logger.Error("enqueue email", slog.String("to", to), slog.Any("error", err))
			return err
		}
		sent++
	}
	metricsOrDefault(j.Metrics).AddNotifications(string(evt.To), sent)
	logger.Info("vendor request notifications queued", slog.Int("count", sent))
	return nil
}

// recipients returns the reviewers of the stage the request entered plus the
// requester when the request reached an outcome or needs more information.
// The actor is never notified of their own action.
func (j *NotifyJob) recipients(ctx context.Context, evt vendorrequests.StatusChanged) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	add := func(u users.User) {
		email := strings.TrimSpace(u.Email)
		if email == "" || !u.IsActive || u.ID == evt.ActorID || seen[email] {
			return
		}
		seen[email] = true
		out = append(out, email)
	}

	if evt.Changed() {
		if role, ok := reviewerRole(evt.To); ok {
			page, err := j.Directory.List(ctx, users.ListFilter{Role: role, Limit: 500})
			if err != nil {
				return nil, err
			}
			for _, u := range page.Items {
				add(u)
			}
		}
	}
	if evt.To.IsTerminal() || evt.Action == workflow.ActionRequestInfo {
		u, err := j.Directory.Get(ctx, evt.RequestedBy)
		switch {
		case errors.Is(err, users.ErrNotFound):
		case err != nil:
			return nil, err
		default:
			add(*u)
		}
	}
	return out, nil
}

func reviewerRole(s workflow.Status) (workflow.Role, bool) {
	switch s {
	case workflow.StatusPendingComplianceReview:
		return workflow.RoleComplianceApprover, true
	case workflow.StatusPendingFinanceReview:
		return workflow.RoleFinanceApprover, true
	case workflow.StatusPendingAdminReview:
		return workflow.RoleAdmin, true
	}
	return "", false
}

func compose(evt vendorrequests.StatusChanged) (subject, body string) {
	label := strings.ToLower(strings.ReplaceAll(string(evt.To), "_", " "))
	if evt.Action == workflow.ActionRequestInfo {
		label = "additional information requested"
	}
	subject = fmt.Sprintf("[ClearChain] %s %s: %s", evt.RequestNumber, evt.CompanyName, label)

	var b strings.Builder
	fmt.Fprintf(&b, "Vendor request %s for %s is now %s.\n", evt.RequestNumber, evt.CompanyName, evt.To)
	if evt.Changed() {
		fmt.Fprintf(&b, "Previous status: %s.\n", evt.From)
	}
	if evt.Note != "" {
		fmt.Fprintf(&b, "\nReviewer comment:\n%s\n", evt.Note)
	}
	return subject, b.String()
}
