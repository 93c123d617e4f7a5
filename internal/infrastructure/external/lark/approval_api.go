package lark

import (
	"context"
	"encoding/json"
	"fmt"

	larkApproval "github.com/larksuite/oapi-sdk-go/v3/service/approval/v4"
	"go.uber.org/zap"
)

// APIError is a non-success answer from the Lark open platform
type APIError struct {
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: code=%d, msg=%s", e.Code, e.Msg)
}

// CreateInstanceInput is one approval instance to create
type CreateInstanceInput struct {
	OpenID string
	Form   string // JSON array of form widgets
	UUID   string // Lark rejects a second instance with the same uuid
}

// CreatedInstance is Lark's answer to a successful create call
type CreatedInstance struct {
	InstanceCode string
	RequestID    string
	// Response is the response body exactly as Lark returned it
	Response map[string]interface{}
}

// ApprovalAPI handles Lark approval-related operations
type ApprovalAPI struct {
	client *SDKClient
	logger *zap.Logger
}

// NewApprovalAPI creates a new approval API handler
func NewApprovalAPI(client *SDKClient, logger *zap.Logger) *ApprovalAPI {
	return &ApprovalAPI{
		client: client,
		logger: logger,
	}
}

// CreateInstance files a new approval instance
func (a *ApprovalAPI) CreateInstance(ctx context.Context, in *CreateInstanceInput) (*CreatedInstance, error) {
	body := larkApproval.NewInstanceCreateBuilder().
		ApprovalCode(a.client.approvalCode).
		OpenId(in.OpenID).
		Form(in.Form).
		Uuid(in.UUID).
		Build()
	req := larkApproval.NewCreateInstanceReqBuilder().
		InstanceCreate(body).
		Build()

	resp, err := a.client.client.Approval.Instance.Create(ctx, req)
	if err != nil {
		a.logger.Error("Failed to create approval instance",
			zap.String("uuid", in.UUID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to create instance: %w", err)
	}

	var requestID string
	var raw []byte
	if resp.ApiResp != nil {
		requestID = resp.RequestId()
		raw = resp.RawBody
	}

	if !resp.Success() {
		a.logger.Error("API returned failure",
			zap.String("uuid", in.UUID),
			zap.String("request_id", requestID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return nil, &APIError{Code: resp.Code, Msg: resp.Msg}
	}

	if resp.Data == nil || resp.Data.InstanceCode == nil {
		return nil, &APIError{Msg: "malformed response: missing instance code"}
	}
	return decodeCreated(*resp.Data.InstanceCode, requestID, raw), nil
}

// decodeCreated keeps the raw body when it parses as a JSON object and
// otherwise records it as a string.
func decodeCreated(instanceCode, requestID string, raw []byte) *CreatedInstance {
	created := &CreatedInstance{InstanceCode: instanceCode, RequestID: requestID}
	if len(raw) == 0 {
		return created
	}
	var body map[string]interface{}
	if err := json.Unmarshal(raw, &body); err != nil {
		created.Response = map[string]interface{}{"body": string(raw)}
		return created
	}
	created.Response = body
	return created
}
