package kafka_config

// Topic names shared between the booking service and its consumers.
const (
	TopicSlotsAvailable       = "waitlist.slots_available"
	TopicBookingNotifications = "booking.notifications"
	TopicBookingsDLQ          = "dlq.bookings"
)
