package pipeline

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// Publisher is the queue-publish seam, satisfied by config.Publisher.
type Publisher interface {
	Publish(ctx context.Context, queueName string, message interface{}) error
}

// Dispatcher routes jobs onto their queues. Delayed jobs are held by an
// in-process timer and published when due; the RunAt stamp rides along so a
// consumer that receives an early redelivery can wait out the remainder.
type Dispatcher struct {
	pub Publisher
}

func NewDispatcher(pub Publisher) *Dispatcher {
	return &Dispatcher{pub: pub}
}

// Dispatch publishes a job for immediate execution.
func (d *Dispatcher) Dispatch(ctx context.Context, job Job) error {
	queue, err := QueueFor(job.Type)
	if err != nil {
		return err
	}
	return d.pub.Publish(ctx, queue, job)
}

// DispatchAt schedules a job for runAt. The message is published right
// away with the RunAt stamp so it survives a process restart; the consumer
// waits out the remainder before executing.
func (d *Dispatcher) DispatchAt(ctx context.Context, job Job, runAt time.Time) error {
	job.RunAt = runAt.UTC()

	queue, err := QueueFor(job.Type)
	if err != nil {
		return err
	}
	if err := d.pub.Publish(ctx, queue, job); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"job":      job.Type,
		"round_id": job.RoundID,
		"run_at":   job.RunAt,
	}).Debug("job scheduled")
	return nil
}
