package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/khata-app/khata/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeWelcomeMail is the task type for the post-registration welcome mail.
	TaskTypeWelcomeMail = "mail:welcome"
)

// WelcomeMailPayload describes the recipient of a welcome mail.
type WelcomeMailPayload struct {
	To   string `json:"to"`
	Name string `json:"name"`
}

// NewWelcomeMailTask constructs an Asynq task.
func NewWelcomeMailTask(payload WelcomeMailPayload) (*asynq.Task, error) {
	if payload.To == "" {
		return nil, errors.New("welcome mail: recipient required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeWelcomeMail, data, asynq.MaxRetry(5)), nil
}

// WelcomeMailJob delivers TaskTypeWelcomeMail tasks.
type WelcomeMailJob struct {
	Mailer    Mailer
	StoreName string
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// Handle processes one welcome mail task. Malformed payloads are not retried.
func (j *WelcomeMailJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Mailer == nil {
		return errors.New("welcome mail: handler not configured")
	}
	var payload WelcomeMailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.To == "" {
		return fmt.Errorf("welcome mail: bad payload: %w", asynq.SkipRetry)
	}

	tracker := j.Metrics.Track(TaskTypeWelcomeMail)
	defer func() {
		err = tracker.End(err)
	}()

	msg := Message{
		To:      payload.To,
		Subject: "Welcome to " + j.storeName(),
		Body: fmt.Sprintf("Hi %s,\r\n\r\nYour account is ready. You can now sign in and start recording customer sessions.\r\n\r\n%s\r\n",
			payload.Name, j.storeName()),
	}
	if err := j.Mailer.Send(ctx, msg); err != nil {
		j.logger().Error("send welcome mail", slog.String("to", payload.To), slog.Any("error", err))
		return err
	}
	j.logger().Info("welcome mail sent", slog.String("to", payload.To))
	return nil
}

func (j *WelcomeMailJob) storeName() string {
	if j.StoreName == "" {
		return "Khata"
	}
	return j.StoreName
}

func (j *WelcomeMailJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}
