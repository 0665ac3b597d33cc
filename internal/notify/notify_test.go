package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	awsx "product-research-workers/internal/common/aws"
	"product-research-workers/internal/common/config"
	apperrors "product-research-workers/internal/common/errors"
	"product-research-workers/internal/common/logger"
	"product-research-workers/internal/models"
)

type fakePublisher struct {
	topic, subject, message string
	err                     error
}

func (f *fakePublisher) PublishToTopic(ctx context.Context, topicARN, subject, message string) (string, error) {
	f.topic, f.subject, f.message = topicARN, subject, message
	return "msg-1", f.err
}

type fakeSender struct {
	email *awsx.Email
	err   error
}

func (f *fakeSender) Send(ctx context.Context, email awsx.Email) (string, error) {
	f.email = &email
	return "mail-1", f.err
}

func sampleNotification() models.RunNotification {
	return models.RunNotification{
		RunID:       "run-1",
		ProductName: "coffee machine",
		Status:      "completed",
		Artifacts:   []string{"ai-agent-output/search_queries.json", "ai-agent-output/report.md"},
		ReportPath:  "ai-agent-output/report.md",
		Products:    3,
		Duration:    "2m5s",
	}
}

func TestNotifier_BothChannels(t *testing.T) {
	pub := &fakePublisher{}
	mail := &fakeSender{}
	n := New(Config{TopicARN: "arn:topic", FromEmail: "bot@example.com", ToEmails: []string{"buyer@example.com"}}, pub, mail, logger.NewTestLogger(t))

	err := n.NotifyRunCompleted(context.Background(), sampleNotification(), "# Coffee report")
	require.NoError(t, err)

	assert.Equal(t, "arn:topic", pub.topic)
	assert.Equal(t, "Product research completed: coffee machine", pub.subject)
	var published models.RunNotification
	require.NoError(t, json.Unmarshal([]byte(pub.message), &published))
	assert.Equal(t, sampleNotification(), published)

	require.NotNil(t, mail.email)
	assert.Equal(t, "bot@example.com", mail.email.From)
	assert.Equal(t, []string{"buyer@example.com"}, mail.email.To)
	assert.Contains(t, mail.email.Text, "Products compared: 3")
	assert.Contains(t, mail.email.Text, "# Coffee report")
	assert.Contains(t, mail.email.Text, "ai-agent-output/report.md")
}

func TestNotifier_ReportsFirstFailureButTriesAll(t *testing.T) {
	pub := &fakePublisher{err: errors.New("AuthorizationError")}
	mail := &fakeSender{}
	n := New(Config{}, pub, mail, logger.NewNoOpLogger())

	err := n.NotifyRunCompleted(context.Background(), sampleNotification(), "")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotificationSendFailed))
	assert.NotNil(t, mail.email, "email is still sent")

	stdErr, _ := apperrors.AsStandardError(err)
	assert.Contains(t, stdErr.Message, "sns")
}

func TestNotifier_SingleChannel(t *testing.T) {
	mail := &fakeSender{err: errors.New("MessageRejected")}
	n := New(Config{}, nil, mail, logger.NewNoOpLogger())

	err := n.NotifyRunCompleted(context.Background(), sampleNotification(), "")
	require.Error(t, err)
	stdErr, _ := apperrors.AsStandardError(err)
	assert.Contains(t, stdErr.Message, "ses")
}

func TestSubject_Truncated(t *testing.T) {
	note := sampleNotification()
	note.ProductName = strings.Repeat("é", 200)
	assert.Len(t, []rune(Subject(note)), maxSubjectLength)
}

func TestFromConfig_Disabled(t *testing.T) {
	n, err := FromConfig(context.Background(), config.NotificationConfig{}, logger.NewNoOpLogger())
	require.NoError(t, err)
	assert.Nil(t, n)
}
