package kafka

// Topic names shared by the producer side and any consumer of gym events.
const (
	TopicSessionCompleted  = "gym.session.completed"
	TopicVisitCheckedIn    = "gym.visit.checked-in"
	TopicVisitCheckedOut   = "gym.visit.checked-out"
	TopicPaymentsConfirmed = "payments.confirmed"

	DLQSuffix = ".dlq"
)
