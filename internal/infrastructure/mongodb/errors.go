package mongodb

import "errors"

// Sentinel errors for MongoDB operations.
var (
	// ErrNotConnected indicates the client was closed or never connected.
	ErrNotConnected = errors.New("mongodb: not connected")

	// ErrConnectionFailed indicates the initial connect or ping failed.
	ErrConnectionFailed = errors.New("mongodb: connection failed")

	// ErrMissingConfig indicates a required connection setting is empty.
	ErrMissingConfig = errors.New("mongodb: missing configuration")
)
