// Package notify announces finished research runs over SNS and SES.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	awsx "product-research-workers/internal/common/aws"
	"product-research-workers/internal/common/config"
	apperrors "product-research-workers/internal/common/errors"
	"product-research-workers/internal/common/logger"
	"product-research-workers/internal/models"
)

// SNS rejects longer subjects.
const maxSubjectLength = 100

type TopicPublisher interface {
	PublishToTopic(ctx context.Context, topicARN, subject, message string) (string, error)
}

type EmailSender interface {
	Send(ctx context.Context, email awsx.Email) (string, error)
}

type Config struct {
	TopicARN  string
	FromEmail string
	ToEmails  []string
}

// Notifier publishes a run summary to a topic and mails the report. A nil
// publisher or sender switches that channel off.
type Notifier struct {
	config    Config
	publisher TopicPublisher
	sender    EmailSender
	logger    logger.Logger
}

func New(cfg Config, publisher TopicPublisher, sender EmailSender, log logger.Logger) *Notifier {
	return &Notifier{
		config:    cfg,
		publisher: publisher,
		sender:    sender,
		logger:    log.With(map[string]interface{}{"component": "notify"}),
	}
}

// FromConfig builds the AWS clients for the enabled channels. It returns nil
// when no channel is enabled.
func FromConfig(ctx context.Context, cfg config.NotificationConfig, log logger.Logger) (*Notifier, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	n := New(Config{
		TopicARN:  cfg.SNS.TopicARN,
		FromEmail: cfg.SES.FromEmail,
		ToEmails:  cfg.SES.ToEmails,
	}, nil, nil, log)

	if cfg.SNS.Enabled {
		client, err := awsx.NewSNSClient(ctx, cfg.AWS.Region)
		if err != nil {
			return nil, fmt.Errorf("create sns client: %w", err)
		}
		n.publisher = client
	}
	if cfg.SES.Enabled {
		client, err := awsx.NewSESClient(ctx, cfg.AWS.Region)
		if err != nil {
			return nil, fmt.Errorf("create ses client: %w", err)
		}
		n.sender = client
	}
	return n, nil
}

func Subject(n models.RunNotification) string {
	subject := fmt.Sprintf("Product research %s: %s", n.Status, n.ProductName)
	if r := []rune(subject); len(r) > maxSubjectLength {
		subject = string(r[:maxSubjectLength])
	}
	return subject
}

// NotifyRunCompleted tries every enabled channel and reports the first failure.
func (n *Notifier) NotifyRunCompleted(ctx context.Context, note models.RunNotification, report string) error {
	subject := Subject(note)
	var firstErr error

	if n.publisher != nil {
		payload, err := json.Marshal(note)
		if err == nil {
			var id string
			id, err = n.publisher.PublishToTopic(ctx, n.config.TopicARN, subject, string(payload))
			if err == nil {
				n.logger.Info("run notification published", map[string]interface{}{"runId": note.RunID, "messageId": id})
			}
		}
		if err != nil {
			n.logger.Error("sns publish failed", map[string]interface{}{"runId": note.RunID, "error": err.Error()})
			firstErr = apperrors.NewNotificationSendFailedError("sns", err)
		}
	}

	if n.sender != nil {
		id, err := n.sender.Send(ctx, awsx.Email{
			From:    n.config.FromEmail,
			To:      n.config.ToEmails,
			Subject: subject,
			Text:    emailBody(note, report),
		})
		if err != nil {
			n.logger.Error("ses send failed", map[string]interface{}{"runId": note.RunID, "error": err.Error()})
			if firstErr == nil {
				firstErr = apperrors.NewNotificationSendFailedError("ses", err)
			}
		} else {
			n.logger.Info("report emailed", map[string]interface{}{
				"runId":      note.RunID,
				"messageId":  id,
				"recipients": len(n.config.ToEmails),
			})
		}
	}
	return firstErr
}

func emailBody(note models.RunNotification, report string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Run %s for %q finished with status %s in %s.\n", note.RunID, note.ProductName, note.Status, note.Duration)
	fmt.Fprintf(&sb, "Products compared: %d\n", note.Products)
	if len(note.Artifacts) > 0 {
		sb.WriteString("Artifacts:\n")
		for _, a := range note.Artifacts {
			sb.WriteString("  - ")
			sb.WriteString(a)
			sb.WriteString("\n")
		}
	}
	if report != "" {
		sb.WriteString("\n")
		sb.WriteString(report)
		sb.WriteString("\n")
	}
	return sb.String()
}
