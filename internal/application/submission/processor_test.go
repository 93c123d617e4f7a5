package submission

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/fieldwork-reports/internal/application/dispatcher"
	"github.com/garyjia/fieldwork-reports/internal/application/port"
	"github.com/garyjia/fieldwork-reports/internal/application/workflow"
	"github.com/garyjia/fieldwork-reports/internal/domain/entity"
	"github.com/garyjia/fieldwork-reports/internal/domain/event"
	domainwf "github.com/garyjia/fieldwork-reports/internal/domain/workflow"
	"github.com/garyjia/fieldwork-reports/internal/infrastructure/persistence/repository"
	"github.com/garyjia/fieldwork-reports/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/fieldwork-reports/migrations"
	"github.com/garyjia/fieldwork-reports/pkg/database"
)

type mockClient struct {
	SubmitFunc func(ctx context.Context, req *port.SubmissionRequest) (*port.SubmissionResult, error)

	mu    sync.Mutex
	calls []*port.SubmissionRequest
}

func (m *mockClient) Submit(ctx context.Context, req *port.SubmissionRequest) (*port.SubmissionResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()
	return m.SubmitFunc(ctx, req)
}

type memQueue struct {
	mu    sync.Mutex
	tasks []*entity.SubmissionTask
	err   error

	// onEnqueue runs after the task is stored, like a worker that is
	// already waiting on the queue
	onEnqueue func(task *entity.SubmissionTask)
}

func (q *memQueue) Enqueue(_ context.Context, task *entity.SubmissionTask) error {
	if q.err != nil {
		return q.err
	}
	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	q.mu.Unlock()
	if q.onEnqueue != nil {
		q.onEnqueue(task)
	}
	return nil
}

func (q *memQueue) Receive(context.Context, time.Duration) (*port.TaskDelivery, error) { return nil, nil }
func (q *memQueue) Ack(context.Context, *port.TaskDelivery) error { return nil }
func (q *memQueue) Len(context.Context) (int64, error) { return 0, nil }
func (q *memQueue) Close() error { return nil }

type fixture struct {
	reports port.ReportRepository
	history port.HistoryRepository
	engine  workflow.WorkflowEngine
	queue   *memQueue
}

func newFixture(t *testing.T) *fixture {
	return newFixtureOn(t, database.Config{Path: database.MemoryPath})
}

// fileDBConfig opens a WAL database file with a real connection pool
func fileDBConfig(t *testing.T) database.Config {
	return database.Config{
		Path:         filepath.Join(t.TempDir(), "reports.db"),
		MaxOpenConns: 4,
		MaxIdleConns: 4,
	}
}

func newFixtureOn(t *testing.T, cfg database.Config) *fixture {
	t.Helper()

	db, err := database.New(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.NewMigrator(db, zap.NewNop()).RunMigrations(migrations.FS))

	logger := zap.NewNop()
	f := &fixture{
		reports: repository.NewReportRepository(db.DB, logger),
		history: repository.NewHistoryRepository(db.DB, logger),
		queue:   &memQueue{},
	}

	d := dispatcher.NewDispatcher()
	t.Cleanup(func() { _ = d.Close() })
	d.SubscribeNamed(event.TypeReportSent, HandlerName, EnqueueOnSend(f.queue))

	f.engine = workflow.NewEngine(f.reports, f.history, sqlite.NewDB(db.DB, logger), workflow.WithDispatcher(d))
	return f
}

// sentReport stores a completed draft and sends it, returning the queued task
func (f *fixture) sentReport(t *testing.T) (*entity.Report, *entity.SubmissionTask) {
	t.Helper()

	snap := sampleTask().Snapshot
	report := &entity.Report{
		OrderRef:     snap.OrderRef,
		Team:         snap.Team,
		PartA:        snap.PartA,
		PartB:        snap.PartB,
		Calculations: snap.Calculations,
		State:        domainwf.StateDraft,
	}
	require.NoError(t, f.reports.Create(context.Background(), report))

	leader := domainwf.WithActor(context.Background(), domainwf.Actor{ID: "m1", Role: domainwf.RoleLeader})
	sent, err := f.engine.TransitionState(leader, report.ID, domainwf.TriggerSend, workflow.TransitionRequest{})
	require.NoError(t, err)
	require.Len(t, f.queue.tasks, 1)
	return sent, f.queue.tasks[len(f.queue.tasks)-1]
}

func (f *fixture) actionsSince(t *testing.T, reportID int64, skip int) []string {
	t.Helper()
	entries, err := f.history.ListByReport(context.Background(), reportID)
	require.NoError(t, err)
	var actions []string
	for _, e := range entries[skip:] {
		actions = append(actions, e.Action)
	}
	return actions
}

func TestEnqueueOnSend(t *testing.T) {
	f := newFixture(t)
	report, task := f.sentReport(t)

	assert.NotEmpty(t, task.ID)
	assert.Equal(t, report.ID, task.ReportID)
	assert.Equal(t, "ORD-7", task.Snapshot.OrderRef)
	assert.False(t, task.EnqueuedAt.IsZero())
}

func TestEnqueueOnSend_QueueFailureRevertsSend(t *testing.T) {
	f := newFixture(t)
	f.queue.err = port.ErrQueueFull

	report := &entity.Report{OrderRef: "ORD-9", Team: sampleTask().Snapshot.Team, State: domainwf.StateDraft}
	report.PartA.Completed = true
	report.PartB.Completed = true
	require.NoError(t, f.reports.Create(context.Background(), report))

	leader := domainwf.WithActor(context.Background(), domainwf.Actor{ID: "m1", Role: domainwf.RoleLeader})
	_, err := f.engine.TransitionState(leader, report.ID, domainwf.TriggerSend, workflow.TransitionRequest{})
	require.ErrorIs(t, err, port.ErrQueueFull)

	stored, err := f.reports.GetByID(context.Background(), report.ID)
	require.NoError(t, err)
	assert.Equal(t, domainwf.StateDraft, stored.State)
	assert.Equal(t, []string{"SEND", entity.ActionSendAborted}, f.actionsSince(t, report.ID, 0))
}

func TestProcessor_TaskTakenAtOnceSeesCommittedSend(t *testing.T) {
	f := newFixtureOn(t, fileDBConfig(t))

	client := &mockClient{SubmitFunc: func(context.Context, *port.SubmissionRequest) (*port.SubmissionResult, error) {
		return &port.SubmissionResult{InstanceCode: "INST-1"}, nil
	}}
	p := NewProcessor(f.reports, f.engine, client, ProcessorConfig{}, nil)

	var processErr error
	f.queue.onEnqueue = func(task *entity.SubmissionTask) {
		processErr = p.Process(context.Background(), task)
	}

	report, _ := f.sentReport(t)
	require.NoError(t, processErr)
	require.Len(t, client.calls, 1)

	stored, err := f.reports.GetByID(context.Background(), report.ID)
	require.NoError(t, err)
	assert.Equal(t, domainwf.StateSubmitted, stored.State)
	assert.Equal(t, []string{"SEND", "SUBMIT_SUCCEEDED"}, f.actionsSince(t, report.ID, 0))
}

func TestProcessor_OlderRowThanSnapshotIsRetried(t *testing.T) {
	f := newFixture(t)

	report := &entity.Report{OrderRef: "ORD-8", Team: sampleTask().Snapshot.Team, State: domainwf.StateDraft}
	require.NoError(t, f.reports.Create(context.Background(), report))

	task := sampleTask()
	task.ReportID = report.ID
	task.Snapshot.Version = report.Version + 1

	client := &mockClient{}
	p := NewProcessor(f.reports, f.engine, client, ProcessorConfig{}, nil)

	err := p.Process(context.Background(), task)
	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrConflict)
	assert.False(t, errors.Is(err, port.ErrNoRetry))
	assert.Empty(t, client.calls)
}

func TestProcessor_Success(t *testing.T) {
	f := newFixture(t)
	report, task := f.sentReport(t)

	client := &mockClient{SubmitFunc: func(ctx context.Context, req *port.SubmissionRequest) (*port.SubmissionResult, error) {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return &port.SubmissionResult{InstanceCode: "INST-1"}, nil
	}}
	p := NewProcessor(f.reports, f.engine, client, ProcessorConfig{Environment: "test"}, nil)

	require.NoError(t, p.Process(context.Background(), task))

	stored, err := f.reports.GetByID(context.Background(), report.ID)
	require.NoError(t, err)
	assert.Equal(t, domainwf.StateSubmitted, stored.State)
	assert.Equal(t, []string{"SUBMIT_SUCCEEDED"}, f.actionsSince(t, report.ID, 1))
	require.Len(t, client.calls, 1)
	assert.Equal(t, "test", client.calls[0].Environment)
}

func TestProcessor_TransientFailureIsReturned(t *testing.T) {
	f := newFixture(t)
	report, task := f.sentReport(t)

	client := &mockClient{SubmitFunc: func(context.Context, *port.SubmissionRequest) (*port.SubmissionResult, error) {
		return nil, errors.New("Connection timed out")
	}}
	p := NewProcessor(f.reports, f.engine, client, ProcessorConfig{}, nil)

	err := p.Process(context.Background(), task)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Connection timed out")
	assert.False(t, errors.Is(err, port.ErrNoRetry))

	stored, err := f.reports.GetByID(context.Background(), report.ID)
	require.NoError(t, err)
	assert.Equal(t, domainwf.StateRejected, stored.State)
	assert.Equal(t, []string{"SUBMIT_FAILED"}, f.actionsSince(t, report.ID, 1))

	// a redelivered attempt from rejected may still succeed
	client.SubmitFunc = func(context.Context, *port.SubmissionRequest) (*port.SubmissionResult, error) {
		return &port.SubmissionResult{InstanceCode: "INST-2"}, nil
	}
	require.NoError(t, p.Process(context.Background(), task))

	stored, err = f.reports.GetByID(context.Background(), report.ID)
	require.NoError(t, err)
	assert.Equal(t, domainwf.StateSubmitted, stored.State)
}

func TestProcessor_PermanentFailureIsFinal(t *testing.T) {
	f := newFixture(t)
	report, task := f.sentReport(t)

	client := &mockClient{SubmitFunc: func(context.Context, *port.SubmissionRequest) (*port.SubmissionResult, error) {
		return nil, errors.New("Invalid credentials")
	}}
	p := NewProcessor(f.reports, f.engine, client, ProcessorConfig{}, nil)

	require.NoError(t, p.Process(context.Background(), task))

	stored, err := f.reports.GetByID(context.Background(), report.ID)
	require.NoError(t, err)
	assert.Equal(t, domainwf.StateRejected, stored.State)
	assert.Equal(t, []string{"SUBMIT_FAILED", entity.ActionFinalFailure}, f.actionsSince(t, report.ID, 1))
}

func TestProcessor_SkipsReportNoLongerAwaitingTransmission(t *testing.T) {
	f := newFixture(t)
	report, task := f.sentReport(t)

	_, err := f.engine.TransitionState(domainwf.WithActor(context.Background(), domainwf.SystemActor),
		report.ID, domainwf.TriggerSubmitSucceeded, workflow.TransitionRequest{})
	require.NoError(t, err)

	client := &mockClient{SubmitFunc: func(context.Context, *port.SubmissionRequest) (*port.SubmissionResult, error) {
		t.Fatal("submitted report must not be resubmitted")
		return nil, nil
	}}
	p := NewProcessor(f.reports, f.engine, client, ProcessorConfig{}, nil)

	require.NoError(t, p.Process(context.Background(), task))
	assert.Empty(t, client.calls)
}

func TestProcessor_MissingReportIsNotRetried(t *testing.T) {
	f := newFixture(t)
	p := NewProcessor(f.reports, f.engine, &mockClient{}, ProcessorConfig{}, nil)

	err := p.Process(context.Background(), &entity.SubmissionTask{ID: "t", ReportID: 404})
	require.Error(t, err)
	assert.ErrorIs(t, err, port.ErrNoRetry)
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestProcessor_GiveUpRecordsFinalFailure(t *testing.T) {
	f := newFixture(t)
	report, task := f.sentReport(t)

	p := NewProcessor(f.reports, f.engine, &mockClient{}, ProcessorConfig{}, nil)
	p.GiveUp(context.Background(), task, errors.New("Connection timed out"))

	entries, err := f.history.ListByReport(context.Background(), report.ID)
	require.NoError(t, err)
	last := entries[len(entries)-1]
	assert.Equal(t, entity.ActionFinalFailure, last.Action)
	assert.Equal(t, "system", last.Actor)
	assert.Contains(t, string(last.Payload), "retries exhausted")
}
