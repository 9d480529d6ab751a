package core

import (
	"context"
	"fmt"
	"time"
)

// Background job identifiers the connector enqueues. Deprovision runs the
// user delete path asynchronously; the membership audit sweeps group member
// sets for keys that no longer resolve to a stored user.
const (
	JobIDDeprovisionUser = "provisioning.user.deprovision"
	JobIDMembershipAudit = "provisioning.membership.audit"
)

type JobExecutionMessage struct {
	JobID          string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

// NewDeprovisionUserMessage builds the async delete message for one user.
// The idempotency key makes re-enqueued deletes of the same user collapse.
func NewDeprovisionUserMessage(userID string) *JobExecutionMessage {
	return &JobExecutionMessage{
		JobID:          JobIDDeprovisionUser,
		Parameters:     map[string]any{"user": userID},
		IdempotencyKey: fmt.Sprintf("%s::%s", JobIDDeprovisionUser, userID),
		DedupPolicy:    "drop",
	}
}

func NewMembershipAuditMessage(collection string) *JobExecutionMessage {
	return &JobExecutionMessage{
		JobID:          JobIDMembershipAudit,
		Parameters:     map[string]any{"collection": collection},
		IdempotencyKey: fmt.Sprintf("%s::%s", JobIDMembershipAudit, collection),
		DedupPolicy:    "drop",
	}
}

// RunDeprovisionUserJob executes one deprovision delivery against the user
// service. A missing user acks cleanly since the outcome already holds.
func RunDeprovisionUserJob(ctx context.Context, users *UserService, msg *JobExecutionMessage) error {
	if users == nil {
		return fmt.Errorf("core: deprovision job requires a user service")
	}
	if msg == nil || msg.JobID != JobIDDeprovisionUser {
		return fmt.Errorf("core: unexpected job message")
	}
	userID, _ := msg.Parameters["user"].(string)
	if userID == "" {
		return NewValidationError("core: deprovision job requires a user parameter")
	}
	if err := users.Delete(ctx, userID); err != nil {
		if IsNotFoundError(err) {
			return nil
		}
		return err
	}
	return nil
}

// MembershipAuditReport summarizes one audit sweep.
type MembershipAuditReport struct {
	GroupsScanned    int
	DanglingsRemoved int
}

// RunMembershipAuditJob sweeps every group and rewrites member sets that
// carry keys with no backing user record. The delete contract makes dangling
// keys impossible in normal operation; the audit exists for recovery after
// out-of-band storage edits.
func RunMembershipAuditJob(
	ctx context.Context,
	sessions StoreSessionFactory,
	membership *MembershipSynchronizer,
	usersCollection string,
	groupsCollection string,
	logger Logger,
) (MembershipAuditReport, error) {
	if sessions == nil || membership == nil {
		return MembershipAuditReport{}, fmt.Errorf("core: membership audit requires sessions and synchronizer")
	}

	session, err := sessions.Acquire(ctx)
	if err != nil {
		return MembershipAuditReport{}, mapStorageReadError(err)
	}
	defer releaseSession(logger, session)

	groups, err := session.FindMany(ctx, groupsCollection, MatchAllFilter())
	if err != nil {
		return MembershipAuditReport{}, mapStorageReadError(err)
	}

	report := MembershipAuditReport{GroupsScanned: len(groups)}
	for _, group := range groups {
		keys := recordMemberKeys(group)
		live := make([]string, 0, len(keys))
		removed := 0
		for _, key := range keys {
			_, found, err := session.FindUnique(ctx, usersCollection, EqualityFilter(recordKeyField, key))
			if err != nil {
				return report, mapStorageReadError(err)
			}
			if !found {
				removed++
				continue
			}
			live = append(live, key)
		}
		if removed == 0 {
			continue
		}
		groupKey := recordKey(group)
		if groupKey == "" {
			continue
		}
		err := session.Update(ctx, groupsCollection, EqualityFilter(recordKeyField, groupKey),
			map[string]any{recordMembersField: live})
		if err != nil {
			return report, mapStorageWriteError(err)
		}
		report.DanglingsRemoved += removed
		if logger != nil {
			logger.Warn("membership audit removed dangling members",
				"group_key", groupKey, "removed", removed)
		}
	}
	return report, nil
}
