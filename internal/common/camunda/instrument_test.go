package camunda

import (
	"context"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/commands"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopJobClient struct{}

func (nopJobClient) NewCompleteJobCommand() commands.CompleteJobCommandStep1 { return nil }
func (nopJobClient) NewFailJobCommand() commands.FailJobCommandStep1         { return nil }
func (nopJobClient) NewThrowErrorCommand() commands.ThrowErrorCommandStep1   { return nil }

type handlerFunc func(worker.JobClient, entities.Job)

func (f handlerFunc) Handle(client worker.JobClient, job entities.Job) { f(client, job) }

type recordedJob struct {
	taskType string
	status   string
}

type fakeObserver struct {
	processed []recordedJob
	durations []time.Duration
}

func (f *fakeObserver) RecordJobProcessed(_ context.Context, taskType, status string) {
	f.processed = append(f.processed, recordedJob{taskType, status})
}

func (f *fakeObserver) RecordJobDuration(_ context.Context, _ string, d time.Duration, _ string) {
	f.durations = append(f.durations, d)
}

func testJob() entities.Job {
	return entities.Job{ActivatedJob: &pb.ActivatedJob{Key: 42, Retries: 3}}
}

// ==========================
// Instrument
// ==========================

func TestInstrument_RecordsTerminalCommand(t *testing.T) {
	tests := []struct {
		name   string
		handle func(worker.JobClient)
		want   string
	}{
		{"complete", func(c worker.JobClient) { c.NewCompleteJobCommand() }, JobStatusCompleted},
		{"fail", func(c worker.JobClient) { c.NewFailJobCommand() }, JobStatusFailed},
		{"throw", func(c worker.JobClient) { c.NewThrowErrorCommand() }, JobStatusThrown},
		{"nothing", func(worker.JobClient) {}, JobStatusAbandoned},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := &fakeObserver{}
			h := Instrument(handlerFunc(func(c worker.JobClient, _ entities.Job) { tt.handle(c) }), "extract-event", obs)

			h.Handle(nopJobClient{}, testJob())

			require.Len(t, obs.processed, 1)
			assert.Equal(t, recordedJob{"extract-event", tt.want}, obs.processed[0])
			assert.Len(t, obs.durations, 1)
		})
	}
}

func TestInstrument_NilObserverReturnsHandler(t *testing.T) {
	h := handlerFunc(func(worker.JobClient, entities.Job) {})
	wrapped := Instrument(h, "extract-event", nil)
	_, same := wrapped.(handlerFunc)
	assert.True(t, same)
}
