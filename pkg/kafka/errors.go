package kafka

import "errors"

// Sentinel errors returned by the publish path.
var (
	// ErrProducerClosed is returned when publishing after Close.
	ErrProducerClosed = errors.New("kafka producer is closed")

	// ErrInvalidMessage is returned when a batch contains nothing
	// publishable.
	ErrInvalidMessage = errors.New("invalid message")

	// ErrEmptyKey is returned for messages without a partition key.
	// Every event keys on its aggregate id so ordering holds per
	// booking and per event.
	ErrEmptyKey = errors.New("message key cannot be empty")

	// ErrEmptyValue is returned for messages without a payload.
	ErrEmptyValue = errors.New("message value cannot be empty")
)
