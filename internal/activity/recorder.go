// Package activity writes the append-only audit trail. Recording is
// best-effort everywhere: a failed audit write never fails the mutation
// that triggered it.
package activity

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"ride-admin/internal/logger"
	"ride-admin/internal/models"
)

// QueueName is the audit event queue consumed by the log shipper.
const QueueName = "activity.events"

const publishTimeout = 5 * time.Second

// Inserter persists an activity row in the activity_logs table.
type Inserter interface {
	InsertActivityLog(ctx context.Context, entry models.ActivityLog) error
}

// Recorder appends audit entries to the activity_logs table and mirrors
// them onto the event queue. Both sides are best-effort.
type Recorder struct {
	inserter Inserter
	channel  *amqp.Channel
}

// NewRecorder builds a recorder. channel may be nil; queue publishing is
// then skipped.
func NewRecorder(inserter Inserter, channel *amqp.Channel) *Recorder {
	if channel != nil {
		// Declare up front so a missing queue doesn't drop every event.
		if _, err := channel.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
			logger.Warn("Failed to declare activity queue", "error", err)
		}
	}
	return &Recorder{inserter: inserter, channel: channel}
}

// Record appends an audit entry for an administrative action. Failures are
// logged and discarded.
func (r *Recorder) Record(ctx context.Context, subjectID, actorID, action, details string) {
	entry := models.ActivityLog{
		ID:        uuid.New().String(),
		SubjectID: subjectID,
		ActorID:   actorID,
		Action:    action,
		Details:   details,
		CreatedAt: time.Now().UTC(),
	}

	if r.inserter != nil {
		if err := r.inserter.InsertActivityLog(ctx, entry); err != nil {
			logger.Warn("Activity log insert failed",
				"action", action,
				"subject_id", subjectID,
				"error", err,
			)
		}
	}

	r.publish(ctx, entry)
}

func (r *Recorder) publish(ctx context.Context, entry models.ActivityLog) {
	if r.channel == nil {
		return
	}

	body, err := json.Marshal(entry)
	if err != nil {
		logger.Warn("Failed to marshal activity event", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = r.channel.PublishWithContext(ctx, "", QueueName, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		logger.Warn("Failed to publish activity event", "error", err)
	}
}
