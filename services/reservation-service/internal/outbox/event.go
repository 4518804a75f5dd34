package outbox

// Topics published by the reservation service. The Kafka topic name equals
// the event type (one event type per topic).
const (
	TopicReservationBooked   = "reservation.booked.v1"
	TopicIntervalCancelled   = "reservation.interval.cancelled.v1"
	TopicCleaningConflict    = "cleaning.conflict.detected.v1"
	TopicCleaningNoticeNow   = "cleaning.notice.immediate.v1"
	TopicCleaningTaskRequest = "cleaning.task.requested.v1"
)

// Event is the domain event envelope written to the outbox table. The
// notifier and the cleaning service consume these from Kafka; nothing in this
// service sends mail or pages a crew directly.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}
