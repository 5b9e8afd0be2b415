// Package notification informs users about task events by e-mail.
package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/yukikurage/task-assignment-api/internal/mailer"
	"github.com/yukikurage/task-assignment-api/internal/metrics"
	"github.com/yukikurage/task-assignment-api/internal/models"
	"github.com/yukikurage/task-assignment-api/internal/retry"
)

// Kind identifies a notification type
type Kind string

const (
	KindTaskAssigned        Kind = "task_assigned"
	KindStatusChanged       Kind = "status_changed"
	KindDeadlineApproaching Kind = "deadline_approaching"
	KindDeadlinePassed      Kind = "deadline_passed"
)

const deadlineFormat = "January 2, 2006"

// Recipient is the user a notice is addressed to
type Recipient struct {
	Email string
	Name  string
}

// AssignmentNotice describes a newly assigned task
type AssignmentNotice struct {
	Recipient   Recipient
	TaskTitle   string
	Description string
	Deadline    *models.Date
	AssignedBy  string
}

// StatusChangeNotice describes a status transition
type StatusChangeNotice struct {
	Recipient Recipient
	TaskTitle string
	OldStatus models.TaskStatus
	NewStatus models.TaskStatus
}

// DeadlineNotice describes an approaching or missed deadline. Days counts
// the days left or the days overdue.
type DeadlineNotice struct {
	Recipient Recipient
	TaskTitle string
	Deadline  models.Date
	Days      int
}

// Notifier delivers task event notifications. Delivery is best-effort:
// failures are logged and never returned.
type Notifier interface {
	TaskAssigned(ctx context.Context, n AssignmentNotice)
	TaskStatusChanged(ctx context.Context, n StatusChangeNotice)
	DeadlineApproaching(ctx context.Context, n DeadlineNotice)
	DeadlinePassed(ctx context.Context, n DeadlineNotice)
}

// Noop discards every notification
type Noop struct{}

func (Noop) TaskAssigned(context.Context, AssignmentNotice)        {}
func (Noop) TaskStatusChanged(context.Context, StatusChangeNotice) {}
func (Noop) DeadlineApproaching(context.Context, DeadlineNotice)   {}
func (Noop) DeadlinePassed(context.Context, DeadlineNotice)        {}

// EmailNotifier renders notices as HTML mail and sends them through a mailer.Sender
type EmailNotifier struct {
	sender  mailer.Sender
	log     zerolog.Logger
	timeout time.Duration
	retry   *retry.Config
}

// NewEmailNotifier creates a new EmailNotifier. timeout bounds each delivery
// including retries.
func NewEmailNotifier(sender mailer.Sender, log zerolog.Logger, timeout time.Duration, retryCfg *retry.Config) *EmailNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
	}
	return &EmailNotifier{
		sender:  sender,
		log:     log.With().Str("component", "notification").Logger(),
		timeout: timeout,
		retry:   retryCfg,
	}
}

// TaskAssigned notifies the assignee about a new task
func (n *EmailNotifier) TaskAssigned(ctx context.Context, notice AssignmentNotice) {
	deadlineText := "No deadline set"
	if notice.Deadline != nil {
		deadlineText = "Deadline: " + notice.Deadline.Format(deadlineFormat)
	}

	n.deliver(ctx, KindTaskAssigned, notice.Recipient, "New Task Assigned: "+notice.TaskTitle, view{
		Heading:      "New Task Assigned",
		Accent:       "#4CAF50",
		TaskTitle:    notice.TaskTitle,
		Description:  notice.Description,
		AssignedBy:   notice.AssignedBy,
		DeadlineText: deadlineText,
	})
}

// TaskStatusChanged notifies the other party of a status transition
func (n *EmailNotifier) TaskStatusChanged(ctx context.Context, notice StatusChangeNotice) {
	n.deliver(ctx, KindStatusChanged, notice.Recipient, "Task Status Updated: "+notice.TaskTitle, view{
		Heading:   "Task Status Updated",
		Accent:    "#2196F3",
		TaskTitle: notice.TaskTitle,
		OldStatus: string(notice.OldStatus),
		NewStatus: string(notice.NewStatus),
	})
}

// DeadlineApproaching reminds the assignee of an upcoming deadline
func (n *EmailNotifier) DeadlineApproaching(ctx context.Context, notice DeadlineNotice) {
	n.deliver(ctx, KindDeadlineApproaching, notice.Recipient, "Task Deadline Reminder: "+notice.TaskTitle, view{
		Heading:      "Task Deadline Reminder",
		Accent:       "#FF9800",
		TaskTitle:    notice.TaskTitle,
		DeadlineText: notice.Deadline.Format(deadlineFormat),
		Days:         notice.Days,
	})
}

// DeadlinePassed tells the assignee that a task is overdue
func (n *EmailNotifier) DeadlinePassed(ctx context.Context, notice DeadlineNotice) {
	n.deliver(ctx, KindDeadlinePassed, notice.Recipient, "Overdue Task: "+notice.TaskTitle, view{
		Heading:      "Overdue Task",
		Accent:       "#F44336",
		TaskTitle:    notice.TaskTitle,
		DeadlineText: notice.Deadline.Format(deadlineFormat),
		Days:         notice.Days,
	})
}

func (n *EmailNotifier) deliver(ctx context.Context, kind Kind, to Recipient, subject string, v view) {
	logger := n.log.With().Str("kind", string(kind)).Str("to", to.Email).Logger()

	if to.Email == "" {
		logger.Warn().Msg("notification skipped, recipient has no e-mail address")
		metrics.ObserveNotification(string(kind), "skipped")
		return
	}

	v.RecipientName = to.Name
	body, err := render(kind, v)
	if err != nil {
		logger.Error().Err(err).Msg("failed to render notification")
		metrics.ObserveNotification(string(kind), "failed")
		return
	}

	// The request may finish before delivery does.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()

	msg := mailer.Message{To: to.Email, Subject: subject, HTML: body}
	err = retry.Do(sendCtx, n.retry, logger, fmt.Sprintf("send %s", kind), func(ctx context.Context) error {
		return n.sender.Send(ctx, msg)
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to deliver notification")
		metrics.ObserveNotification(string(kind), "failed")
		return
	}

	logger.Debug().Msg("notification delivered")
	metrics.ObserveNotification(string(kind), "sent")
}
