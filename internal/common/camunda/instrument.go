// internal/common/camunda/instrument.go
package camunda

import (
	"context"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/commands"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
	JobStatusThrown    = "bpmn_error"
	JobStatusAbandoned = "abandoned"
)

// JobObserver receives one measurement per handled job.
type JobObserver interface {
	RecordJobProcessed(ctx context.Context, taskType, status string)
	RecordJobDuration(ctx context.Context, taskType string, duration time.Duration, status string)
}

// Instrument wraps handler so that every job it handles is counted and timed,
// labelled with the command the handler answered the broker with.
func Instrument(handler JobHandler, taskType string, observer JobObserver) JobHandler {
	if observer == nil {
		return handler
	}
	return &instrumented{handler: handler, taskType: taskType, observer: observer}
}

type instrumented struct {
	handler  JobHandler
	taskType string
	observer JobObserver
}

func (i *instrumented) Handle(client worker.JobClient, job entities.Job) {
	started := time.Now()
	tracking := &statusClient{JobClient: client, status: JobStatusAbandoned}

	i.handler.Handle(tracking, job)

	ctx := context.Background()
	i.observer.RecordJobProcessed(ctx, i.taskType, tracking.status)
	i.observer.RecordJobDuration(ctx, i.taskType, time.Since(started), tracking.status)
}

// statusClient remembers which terminal command the handler built last.
type statusClient struct {
	worker.JobClient
	status string
}

func (c *statusClient) NewCompleteJobCommand() commands.CompleteJobCommandStep1 {
	c.status = JobStatusCompleted
	return c.JobClient.NewCompleteJobCommand()
}

func (c *statusClient) NewFailJobCommand() commands.FailJobCommandStep1 {
	c.status = JobStatusFailed
	return c.JobClient.NewFailJobCommand()
}

func (c *statusClient) NewThrowErrorCommand() commands.ThrowErrorCommandStep1 {
	c.status = JobStatusThrown
	return c.JobClient.NewThrowErrorCommand()
}
