package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

var (
	// ErrConfiguration is returned when a client setting is missing, empty or set twice.
	ErrConfiguration = errors.New("docstore: invalid configuration")

	// ErrInvalidArgument is returned when an operation is called with an unusable argument.
	ErrInvalidArgument = errors.New("docstore: invalid argument")

	// ErrInvalidEntity is returned when an entity instance violates its schema.
	ErrInvalidEntity = errors.New("docstore: invalid entity")

	// ErrNotFound is returned by Delete for a missing document and for missing containers.
	ErrNotFound = errors.New("docstore: not found")

	// ErrConflict is returned when inserting a document whose id already exists.
	ErrConflict = errors.New("docstore: document already exists")

	// ErrThrottled is returned when the store rejects a request for capacity reasons.
	ErrThrottled = errors.New("docstore: request throttled")

	// ErrAmbiguousResult is returned when FindOne matches more than one document.
	ErrAmbiguousResult = errors.New("docstore: query returned more than one result")

	// ErrNotOpen is returned when an operation runs against a client that is not open.
	ErrNotOpen = errors.New("docstore: client is not open")

	// ErrStore matches every error reported by the store.
	ErrStore = errors.New("docstore: store error")
)

// ConfigurationError reports a missing or duplicate setting.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%v: %s: %s", ErrConfiguration, e.Key, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// ValidationError reports a value-level violation found in an entity before it
// is written.
type ValidationError struct {
	Entity string
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%v: %s: %s", ErrInvalidEntity, e.Entity, e.Reason)
	}
	return fmt.Sprintf("%v: %s: %s: %s", ErrInvalidEntity, e.Entity, e.Path, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidEntity
}

// ErrorKind classifies a StoreError.
type ErrorKind int

const (
	KindOther ErrorKind = iota
	KindNotFound
	KindConflict
	KindThrottled
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindThrottled:
		return "throttled"
	}
	return "other"
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindNotFound:
		return ErrNotFound
	case KindConflict:
		return ErrConflict
	case KindThrottled:
		return ErrThrottled
	}
	return nil
}

// StoreError wraps a failure reported by the store for one operation.
// errors.Is matches ErrStore and the sentinel of its Kind.
type StoreError struct {
	Op        string
	Container string
	Kind      ErrorKind
	// Code is the service error code when one was reported.
	Code string
	Err  error
}

func (e *StoreError) Error() string {
	msg := fmt.Sprintf("docstore: %s %s: %s", e.Op, e.Container, e.Kind)
	if e.Code != "" {
		msg += " (" + e.Code + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	if target == ErrStore {
		return true
	}
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// AmbiguousResultError is returned by FindOne when more than one document
// matched.
type AmbiguousResultError struct {
	Container string
	Count     int
}

func (e *AmbiguousResultError) Error() string {
	return fmt.Sprintf("%v: container=%s, count=%d", ErrAmbiguousResult, e.Container, e.Count)
}

func (e *AmbiguousResultError) Unwrap() error {
	return ErrAmbiguousResult
}

// classify maps an SDK error to a *StoreError. conditional is the kind used
// when the request's condition expression failed.
func classify(op, container string, err error, conditional ErrorKind) error {
	if err == nil {
		return nil
	}
	se := &StoreError{Op: op, Container: container, Kind: KindOther, Err: err}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		se.Code = apiErr.ErrorCode()
	}

	var condErr *types.ConditionalCheckFailedException
	var notFound *types.ResourceNotFoundException
	var throughput *types.ProvisionedThroughputExceededException
	var limit *types.RequestLimitExceeded
	switch {
	case errors.As(err, &condErr):
		se.Kind = conditional
	case errors.As(err, &notFound):
		se.Kind = KindNotFound
	case errors.As(err, &throughput), errors.As(err, &limit):
		se.Kind = KindThrottled
	case se.Code == "ThrottlingException":
		se.Kind = KindThrottled
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		se.Code = "Canceled"
	}
	return se
}
