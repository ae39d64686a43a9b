package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/khata-app/khata/internal/jobs"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func TestClientEnqueuesWelcomeMail(t *testing.T) {
	mr := miniredis.RunT(t)
	opts := asynq.RedisClientOpt{Addr: mr.Addr()}
	client := NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.EnqueueWelcome(context.Background(), "ali@example.com", "Ali"))

	inspector := asynq.NewInspector(opts)
	t.Cleanup(func() { _ = inspector.Close() })
	tasks, err := inspector.ListPendingTasks(QueueDefault)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, TaskTypeWelcomeMail, tasks[0].Type)

	var payload WelcomeMailPayload
	require.NoError(t, json.Unmarshal(tasks[0].Payload, &payload))
	assert.Equal(t, WelcomeMailPayload{To: "ali@example.com", Name: "Ali"}, payload)
}

func TestNewWelcomeMailTaskRequiresRecipient(t *testing.T) {
	_, err := NewWelcomeMailTask(WelcomeMailPayload{Name: "Ali"})
	require.Error(t, err)
}

func TestWelcomeMailJobSends(t *testing.T) {
	mailer := &recordingMailer{}
	job := &WelcomeMailJob{Mailer: mailer, StoreName: "Taimoor Akram & Brothers", Metrics: jobmetrics.NewMetrics(prometheus.NewRegistry())}
	task, err := NewWelcomeMailTask(WelcomeMailPayload{To: "ali@example.com", Name: "Ali"})
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "ali@example.com", mailer.sent[0].To)
	assert.Equal(t, "Welcome to Taimoor Akram & Brothers", mailer.sent[0].Subject)
	assert.Contains(t, mailer.sent[0].Body, "Hi Ali")
}

func TestWelcomeMailJobFailures(t *testing.T) {
	boom := errors.New("relay down")
	job := &WelcomeMailJob{Mailer: &recordingMailer{err: boom}}
	task, err := NewWelcomeMailTask(WelcomeMailPayload{To: "ali@example.com"})
	require.NoError(t, err)
	assert.ErrorIs(t, job.Handle(context.Background(), task), boom)

	bad := asynq.NewTask(TaskTypeWelcomeMail, []byte("{"))
	assert.ErrorIs(t, job.Handle(context.Background(), bad), asynq.SkipRetry)
}

func TestSMTPMailerRejectsHeaderInjection(t *testing.T) {
	m := &SMTPMailer{Host: "127.0.0.1", Port: 1, From: "noreply@example.com"}
	err := m.Send(context.Background(), Message{To: "a@example.com\r\nBcc: x@example.com", Subject: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "header injection")
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) { return s.info, s.err }

func TestHealthEndpoint(t *testing.T) {
	cases := []struct {
		name      string
		inspector QueueInspector
		status    int
		pending   int
	}{
		{name: "no inspector", status: http.StatusOK},
		{name: "queue info", inspector: stubInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 3}}, status: http.StatusOK, pending: 3},
		{name: "unknown queue", inspector: stubInspector{err: asynq.ErrQueueNotFound}, status: http.StatusOK},
		{name: "redis down", inspector: stubInspector{err: errors.New("dial tcp")}, status: http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := chi.NewRouter()
			NewHandler(tc.inspector, nil).MountRoutes(r)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			require.Equal(t, tc.status, rec.Code)
			if tc.status != http.StatusOK {
				return
			}
			var body queueHealth
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, QueueDefault, body.Queue)
			assert.Equal(t, tc.pending, body.Pending)
		})
	}
}

func TestNewWorkerRequiresHandlers(t *testing.T) {
	_, err := NewWorker(WorkerConfig{})
	require.Error(t, err)
}
