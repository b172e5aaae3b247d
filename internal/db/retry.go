package db

import (
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

// Operation is a function that performs an action and returns an error if it fails.
type Operation func() error

// RetryableFunc decides whether an error is worth retrying.
type RetryableFunc func(err error) bool

const DefaultMaxRetries = 3

// Try executes an operation, retrying on duplicate key errors. Inserts
// with randomly generated SixIDs can collide; regenerating the ID inside
// the operation and retrying resolves the collision.
func Try(op Operation) error {
	return WithRetries(op, DefaultMaxRetries, IsDuplicateKeyError)
}

// WithRetries executes op up to 1+maxRetries times, retrying only when
// isRetryable reports true, with a small incremental backoff.
func WithRetries(op Operation, maxRetries int, isRetryable RetryableFunc) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if attempt == maxRetries {
			break
		}
		if !isRetryable(err) {
			return err
		}
		time.Sleep(time.Duration(50*(attempt+1)) * time.Millisecond)
	}
	return err
}

// IsDuplicateKeyError reports whether err is a MongoDB unique-index
// violation (error code 11000 in any of its wrappings).
func IsDuplicateKeyError(err error) bool {
	return err != nil && mongo.IsDuplicateKeyError(err)
}
