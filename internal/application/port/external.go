package port

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoRetry marks a task failure that must not be redelivered
var ErrNoRetry = errors.New("no retry")

// FailureKind classifies why an external submission failed
type FailureKind string

const (
	FailureUnknown   FailureKind = ""
	FailureTransient FailureKind = "transient"
	FailurePermanent FailureKind = "permanent"
)

// SubmissionError is returned by a SubmissionClient when the remote side
// answers with an error. Kind is set when the client can tell from a
// structured code; otherwise callers classify by message.
type SubmissionError struct {
	Kind    FailureKind
	Code    int
	Message string
}

func (e *SubmissionError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("submission failed (code %d): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("submission failed: %s", e.Message)
}

// FormWidget is one field of the external approval form
type FormWidget struct {
	ID    string      `json:"id"`
	Type  string      `json:"type"`
	Value interface{} `json:"value"`
}

// SubmissionRequest is a rendered report ready for the external service
type SubmissionRequest struct {
	ReportID    int64
	OrderRef    string
	ExternalID  string // leader's identity in the external system
	Environment string
	Form        []FormWidget
	// IdempotencyKey lets the remote side deduplicate redelivered tasks
	IdempotencyKey string
}

// SubmissionResult is the success payload of the external service
type SubmissionResult struct {
	InstanceCode string                 `json:"instance_code"`
	Raw          map[string]interface{} `json:"raw,omitempty"`
}

// SubmissionClient sends rendered reports to the external approval service
type SubmissionClient interface {
	Submit(ctx context.Context, req *SubmissionRequest) (*SubmissionResult, error)
}
