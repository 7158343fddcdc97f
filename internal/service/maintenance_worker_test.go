package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benglish/academic-core/pkg/jobs"
	appErrors "github.com/benglish/academic-core/pkg/errors"
)

type fakeRunner struct {
	tasks []string
	runs  []string
	opts  []RepairOptions
	fail  string
}

func (f *fakeRunner) Tasks() []string { return f.tasks }

func (f *fakeRunner) Run(_ context.Context, task string, opts RepairOptions) (RepairResult, error) {
	f.runs = append(f.runs, task)
	f.opts = append(f.opts, opts)
	if task == f.fail {
		return RepairResult{Task: task}, errors.New("boom")
	}
	return RepairResult{Task: task, Affected: 1}, nil
}

type fakeQueue struct {
	handlers map[string]jobs.Handler
	queued   []jobs.Job
	err      error
}

func (f *fakeQueue) Register(jobType string, handler jobs.Handler) {
	if f.handlers == nil {
		f.handlers = map[string]jobs.Handler{}
	}
	f.handlers[jobType] = handler
}

func (f *fakeQueue) Enqueue(job jobs.Job) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.queued = append(f.queued, job)
	return "job-1", nil
}

type fakeCleaner struct{ calls int }

func (f *fakeCleaner) Cleanup(time.Duration) ([]string, error) {
	f.calls++
	return []string{"old.xlsx"}, nil
}

func TestMaintenanceWorkerRegistersTasks(t *testing.T) {
	runner := &fakeRunner{tasks: []string{TaskCheckCatalog, TaskDeactivateSkillsExtras}}
	queue := &fakeQueue{}
	NewMaintenanceWorker(runner, queue, nil, 100, nil)

	assert.Len(t, queue.handlers, 3)
	assert.Contains(t, queue.handlers, JobNightlySuite)
	assert.Contains(t, queue.handlers, TaskDeactivateSkillsExtras)
}

func TestMaintenanceWorkerEnqueue(t *testing.T) {
	runner := &fakeRunner{tasks: []string{TaskDeactivateSkillsExtras}}
	queue := &fakeQueue{}
	worker := NewMaintenanceWorker(runner, queue, nil, 100, nil)

	id, err := worker.Enqueue(TaskDeactivateSkillsExtras, true)
	require.NoError(t, err)
	assert.Equal(t, "job-1", id)
	require.Len(t, queue.queued, 1)
	assert.Equal(t, "true", queue.queued[0].Payload["revert"])

	_, err = worker.Enqueue("drop-everything", false)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	queue.err = errors.New("queue stopped")
	_, err = worker.Enqueue(TaskDeactivateSkillsExtras, false)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
}

func TestMaintenanceWorkerHandlePassesOptions(t *testing.T) {
	runner := &fakeRunner{tasks: []string{TaskDeactivateSkillsExtras}}
	worker := NewMaintenanceWorker(runner, &fakeQueue{}, nil, 250, nil)

	err := worker.Handle(context.Background(), jobs.Job{Type: TaskDeactivateSkillsExtras, Payload: map[string]string{"revert": "true"}})
	require.NoError(t, err)
	require.Len(t, runner.opts, 1)
	assert.Equal(t, RepairOptions{BatchSize: 250, Revert: true}, runner.opts[0])
}

func TestNightlySuiteRunsInOrderAndCleansExports(t *testing.T) {
	runner := &fakeRunner{tasks: append([]string{TaskDeactivateSkillsExtras}, NightlySuite...)}
	queue := &fakeQueue{}
	cleaner := &fakeCleaner{}
	NewMaintenanceWorker(runner, queue, cleaner, 10, nil)

	require.NoError(t, queue.handlers[JobNightlySuite](context.Background(), jobs.Job{Type: JobNightlySuite}))
	assert.Equal(t, NightlySuite, runner.runs)
	assert.Equal(t, 1, cleaner.calls)
}

func TestNightlySuiteStopsOnFailure(t *testing.T) {
	runner := &fakeRunner{tasks: NightlySuite, fail: TaskReconcilePlans}
	queue := &fakeQueue{}
	cleaner := &fakeCleaner{}
	NewMaintenanceWorker(runner, queue, cleaner, 10, nil)

	err := queue.handlers[JobNightlySuite](context.Background(), jobs.Job{Type: JobNightlySuite})
	require.Error(t, err)
	assert.Equal(t, []string{TaskFixSubjectProgramIDs, TaskReconcilePlans}, runner.runs)
	assert.Zero(t, cleaner.calls)
}

func TestMaintenanceSchedule(t *testing.T) {
	worker := NewMaintenanceWorker(&fakeRunner{}, &fakeQueue{}, nil, 10, nil)

	c, err := worker.Schedule("")
	require.NoError(t, err)
	assert.Nil(t, c)

	_, err = worker.Schedule("not a schedule")
	require.Error(t, err)

	c, err = worker.Schedule("30 2 * * *")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Len(t, c.Entries(), 1)
}
