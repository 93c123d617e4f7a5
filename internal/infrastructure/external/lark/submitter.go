package lark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/fieldwork-reports/internal/application/port"
)

// Lark error codes with a known retry outcome. Anything else is left to
// message classification.
var (
	transientCodes = map[int]bool{
		99991400: true, // request frequency limit
		1395001:  true, // server internal error
	}
	permanentCodes = map[int]bool{
		10003:    true, // invalid app id
		10014:    true, // invalid app secret
		1390001:  true, // parameter error
		1390002:  true, // approval code not found
		99991672: true, // app lacks approval scope
	}
)

type instanceCreator interface {
	CreateInstance(ctx context.Context, in *CreateInstanceInput) (*CreatedInstance, error)
}

// Submitter files reports as Lark approval instances
type Submitter struct {
	api    instanceCreator
	logger *zap.Logger
}

// NewSubmitter creates a port.SubmissionClient backed by the approval API
func NewSubmitter(api *ApprovalAPI, logger *zap.Logger) *Submitter {
	return &Submitter{api: api, logger: logger}
}

var _ port.SubmissionClient = (*Submitter)(nil)

// Submit creates one approval instance for req
func (s *Submitter) Submit(ctx context.Context, req *port.SubmissionRequest) (*port.SubmissionResult, error) {
	form, err := json.Marshal(req.Form)
	if err != nil {
		return nil, &port.SubmissionError{
			Kind:    port.FailurePermanent,
			Message: fmt.Sprintf("invalid form: %v", err),
		}
	}

	created, err := s.api.CreateInstance(ctx, &CreateInstanceInput{
		OpenID: req.ExternalID,
		Form:   string(form),
		UUID:   req.IdempotencyKey,
	})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return nil, &port.SubmissionError{
				Kind:    kindForCode(apiErr.Code),
				Code:    apiErr.Code,
				Message: apiErr.Msg,
			}
		}
		return nil, err
	}

	s.logger.Info("Approval instance created",
		zap.Int64("report_id", req.ReportID),
		zap.String("order_ref", req.OrderRef),
		zap.String("environment", req.Environment),
		zap.String("instance_code", created.InstanceCode),
		zap.String("request_id", created.RequestID))

	return &port.SubmissionResult{
		InstanceCode: created.InstanceCode,
		Raw: map[string]interface{}{
			"request_id": created.RequestID,
			"response":   created.Response,
		},
	}, nil
}

func kindForCode(code int) port.FailureKind {
	switch {
	case transientCodes[code]:
		return port.FailureTransient
	case permanentCodes[code]:
		return port.FailurePermanent
	default:
		return port.FailureUnknown
	}
}
