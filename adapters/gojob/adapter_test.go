package gojob

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-provisioning/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"
)

func TestMessageMappingRoundTrip(t *testing.T) {
	original := core.NewDeprovisionUserMessage("alice")

	converted := ToExecutionMessage(original)
	if converted == nil {
		t.Fatalf("expected converted message")
	}
	roundTrip := FromExecutionMessage(converted)
	if roundTrip.JobID != core.JobIDDeprovisionUser {
		t.Fatalf("expected job id %q, got %q", core.JobIDDeprovisionUser, roundTrip.JobID)
	}
	if roundTrip.IdempotencyKey != original.IdempotencyKey {
		t.Fatalf("expected idempotency key %q, got %q", original.IdempotencyKey, roundTrip.IdempotencyKey)
	}
	if roundTrip.DedupPolicy != "drop" {
		t.Fatalf("expected drop dedup policy, got %q", roundTrip.DedupPolicy)
	}
	if roundTrip.Parameters["user"] != "alice" {
		t.Fatalf("expected parameters to survive mapping, got %#v", roundTrip.Parameters)
	}
}

func TestEnqueueAndDequeueAdapters(t *testing.T) {
	ctx := context.Background()
	enqueuer := &stubQueueEnqueuer{}
	enqueueAdapter := NewEnqueuerAdapter(enqueuer)

	msg := core.NewMembershipAuditMessage("directory_groups")
	if err := enqueueAdapter.Enqueue(ctx, msg); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if enqueuer.last == nil || enqueuer.last.JobID != core.JobIDMembershipAudit {
		t.Fatalf("expected mapped go-job message")
	}

	dequeuer := &stubQueueDequeuer{delivery: &stubQueueDelivery{msg: enqueuer.last}}
	dequeueAdapter := NewDequeuerAdapter(dequeuer, RetryPolicy{})
	delivery, err := dequeueAdapter.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	got := delivery.Message()
	if got == nil || got.JobID != core.JobIDMembershipAudit {
		t.Fatalf("expected mapped core message")
	}
	if err := delivery.Ack(ctx); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if !dequeuer.delivery.(*stubQueueDelivery).acked {
		t.Fatalf("expected ack on underlying delivery")
	}
}

func TestNackRetryPolicyBoundaries(t *testing.T) {
	ctx := context.Background()
	rawDelivery := &stubQueueDelivery{
		msg: &job.ExecutionMessage{
			JobID: core.JobIDMembershipAudit,
		},
	}
	adapter := NewDeliveryAdapter(rawDelivery, RetryPolicy{
		MaxAttempts:     3,
		MaxDelay:        10 * time.Second,
		DeadLetterOnMax: true,
	})

	if err := adapter.NackForAttempt(ctx, core.JobNackOptions{
		Delay:   30 * time.Second,
		Requeue: true,
		Reason:  "transient",
	}, 1); err != nil {
		t.Fatalf("nack attempt 1: %v", err)
	}
	if rawDelivery.nackOpts.Delay != 10*time.Second {
		t.Fatalf("expected delay to be bounded, got %s", rawDelivery.nackOpts.Delay)
	}
	if !rawDelivery.nackOpts.Requeue {
		t.Fatalf("expected message to be requeued before max attempts")
	}

	if err := adapter.NackForAttempt(ctx, core.JobNackOptions{
		Delay:   time.Second,
		Requeue: true,
		Reason:  "still failing",
	}, 3); err != nil {
		t.Fatalf("nack max attempt: %v", err)
	}
	if rawDelivery.nackOpts.Requeue {
		t.Fatalf("expected no requeue once max attempts is reached")
	}
	if !rawDelivery.nackOpts.DeadLetter {
		t.Fatalf("expected dead letter on max attempts")
	}
}

func TestWorkerHookAdapterEventMapping(t *testing.T) {
	now := time.Now().UTC().Add(-time.Second)
	coreHook := &capturingHook{}
	adapter := NewWorkerHookAdapter(coreHook)

	evt := worker.Event{
		Message: &job.ExecutionMessage{
			JobID:          core.JobIDDeprovisionUser,
			IdempotencyKey: "idem-deprovision",
		},
		Attempt:   2,
		Delay:     5 * time.Second,
		Err:       errors.New("retry"),
		StartedAt: now,
		Duration:  250 * time.Millisecond,
	}

	adapter.OnRetry(context.Background(), evt)
	if coreHook.last.Message == nil {
		t.Fatalf("expected worker message mapping")
	}
	if coreHook.last.Message.JobID != core.JobIDDeprovisionUser {
		t.Fatalf("expected job id mapping, got %q", coreHook.last.Message.JobID)
	}
	if coreHook.last.Attempt != 2 {
		t.Fatalf("expected attempt 2, got %d", coreHook.last.Attempt)
	}
	if coreHook.last.Delay != 5*time.Second {
		t.Fatalf("expected delay 5s, got %s", coreHook.last.Delay)
	}
	if coreHook.last.Duration != 250*time.Millisecond {
		t.Fatalf("expected duration mapping")
	}
	if coreHook.last.StartedAt.IsZero() {
		t.Fatalf("expected started_at mapping")
	}
	if coreHook.last.Err == nil || coreHook.last.Err.Error() != "retry" {
		t.Fatalf("expected error mapping")
	}
}

func TestLoggingWorkerHookLogsLifecycle(t *testing.T) {
	logger := &recordingJobLogger{}
	hook := NewLoggingWorkerHook(nil, logger)

	hook.OnFailure(context.Background(), core.JobWorkerEvent{
		Message: core.NewDeprovisionUserMessage("alice"),
		Attempt: 3,
		Err:     errors.New("store offline"),
	})
	if logger.lastError.msg != "job failed" {
		t.Fatalf("failure message = %q", logger.lastError.msg)
	}
	if !containsField(logger.lastError.args, "job_id", core.JobIDDeprovisionUser) {
		t.Fatalf("failure args missing job id: %#v", logger.lastError.args)
	}
	if !containsField(logger.lastError.args, "user", "alice") {
		t.Fatalf("failure args missing subject: %#v", logger.lastError.args)
	}

	hook.OnRetry(context.Background(), core.JobWorkerEvent{
		Message: core.NewMembershipAuditMessage("directory_groups"),
		Attempt: 1,
		Delay:   time.Second,
	})
	if logger.lastWarn.msg != "job retrying" {
		t.Fatalf("retry message = %q", logger.lastWarn.msg)
	}
	if !containsField(logger.lastWarn.args, "collection", "directory_groups") {
		t.Fatalf("retry args missing collection: %#v", logger.lastWarn.args)
	}
}

func TestNewWorkerLoggingBridgesRuntime(t *testing.T) {
	hook, jobProvider, jobLogger := NewWorkerLogging(nil, &recordingJobLogger{})
	if hook == nil {
		t.Fatal("expected lifecycle hook")
	}
	if jobProvider == nil || jobLogger == nil {
		t.Fatal("expected go-job logger bridges")
	}
}

func TestDeprovisionRetryPolicyDeadLettersAtMax(t *testing.T) {
	policy := DeprovisionRetryPolicy()

	early := policy.NormalizeAttempt(core.JobNackOptions{
		Delay:   5 * time.Minute,
		Requeue: true,
	}, 1)
	if !early.Requeue || early.DeadLetter {
		t.Fatalf("early attempt should requeue: %#v", early)
	}
	if early.Delay != policy.MaxDelay {
		t.Fatalf("delay = %s, want bounded to %s", early.Delay, policy.MaxDelay)
	}

	exhausted := policy.NormalizeAttempt(core.JobNackOptions{Requeue: true}, policy.MaxAttempts)
	if exhausted.Requeue {
		t.Fatalf("exhausted attempt should not requeue: %#v", exhausted)
	}
	if !exhausted.DeadLetter {
		t.Fatalf("exhausted delete must dead-letter for follow-up: %#v", exhausted)
	}

	audit := MembershipAuditRetryPolicy()
	if audit.MaxAttempts >= policy.MaxAttempts {
		t.Fatalf("audit retries should give up before deprovision retries")
	}
}

func containsField(args []any, key string, value any) bool {
	for i := 0; i+1 < len(args); i += 2 {
		if args[i] == key && args[i+1] == value {
			return true
		}
	}
	return false
}

var _ glog.Logger = (*recordingJobLogger)(nil)

type loggedCall struct {
	msg  string
	args []any
}

type recordingJobLogger struct {
	lastWarn  loggedCall
	lastError loggedCall
}

func (l *recordingJobLogger) Trace(string, ...any) {}
func (l *recordingJobLogger) Debug(string, ...any) {}
func (l *recordingJobLogger) Info(string, ...any)  {}
func (l *recordingJobLogger) Fatal(string, ...any) {}

func (l *recordingJobLogger) Warn(msg string, args ...any) {
	l.lastWarn = loggedCall{msg: msg, args: append([]any(nil), args...)}
}

func (l *recordingJobLogger) Error(msg string, args ...any) {
	l.lastError = loggedCall{msg: msg, args: append([]any(nil), args...)}
}

func (l *recordingJobLogger) WithContext(context.Context) glog.Logger {
	return l
}

type stubQueueEnqueuer struct {
	last *job.ExecutionMessage
}

func (s *stubQueueEnqueuer) Enqueue(_ context.Context, msg *job.ExecutionMessage) error {
	s.last = msg
	return nil
}

type stubQueueDequeuer struct {
	delivery queue.Delivery
}

func (s *stubQueueDequeuer) Dequeue(context.Context) (queue.Delivery, error) {
	return s.delivery, nil
}

type stubQueueDelivery struct {
	msg      *job.ExecutionMessage
	acked    bool
	nackOpts queue.NackOptions
}

func (s *stubQueueDelivery) Message() *job.ExecutionMessage {
	return s.msg
}

func (s *stubQueueDelivery) Ack(context.Context) error {
	s.acked = true
	return nil
}

func (s *stubQueueDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	s.nackOpts = opts
	return nil
}

type capturingHook struct {
	last core.JobWorkerEvent
}

func (h *capturingHook) OnStart(context.Context, core.JobWorkerEvent)   {}
func (h *capturingHook) OnSuccess(context.Context, core.JobWorkerEvent) {}
func (h *capturingHook) OnFailure(context.Context, core.JobWorkerEvent) {}
func (h *capturingHook) OnRetry(_ context.Context, event core.JobWorkerEvent) {
	h.last = event
}
