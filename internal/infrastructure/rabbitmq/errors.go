package rabbitmq

import "errors"

var (
	// ErrBrokerConnectionFailed is returned by Connect once every attempt failed.
	// It is fatal at startup.
	ErrBrokerConnectionFailed = errors.New("broker connection failed")
	// ErrQueueConfigMismatch wraps a PRECONDITION_FAILED (406) from the broker,
	// raised when a queue already exists with incompatible arguments.
	ErrQueueConfigMismatch = errors.New("queue config mismatch")
	// ErrChannelNotInitialized is returned instead of silently dropping a
	// message when Connect has not succeeded (or Close was called).
	ErrChannelNotInitialized = errors.New("channel not initialized")
)
