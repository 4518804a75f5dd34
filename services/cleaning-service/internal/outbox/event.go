package outbox

// Topics emitted by the cleaning service.
const (
	TopicCleaningNoticeDue = "cleaning.notice.due.v1"
	TopicCleaningNoticeDLQ = "cleaning.notice.dlq.v1"
)

type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}
