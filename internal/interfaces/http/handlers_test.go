package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/fieldwork-reports/internal/domain/compensation"
	"github.com/garyjia/fieldwork-reports/internal/domain/entity"
	domainwf "github.com/garyjia/fieldwork-reports/internal/domain/workflow"
)

type mockReportService struct {
	GetByOrderRefFunc func(ctx context.Context, orderRef string) (*entity.Report, error)
	GetByIDFunc       func(ctx context.Context, id int64) (*entity.Report, error)
	SavePartAFunc     func(ctx context.Context, orderRef string, partA entity.PartA, version int64) (*entity.Report, error)
	SavePartBFunc     func(ctx context.Context, orderRef string, partB entity.PartB, version int64) (*entity.Report, error)
	TransitionFunc    func(ctx context.Context, id int64, trigger domainwf.Trigger, version int64) (*entity.Report, error)
	HistoryFunc       func(ctx context.Context, id int64) ([]*entity.HistoryEntry, error)
	CalculationFunc   func(ctx context.Context, id int64, member entity.MemberID) (*entity.CompensationCalculation, error)
	StatementFunc     func(ctx context.Context, id int64) (*compensation.Statement, error)
	UpsertOrderFunc   func(ctx context.Context, order *entity.Order) error
}

func (m *mockReportService) GetByOrderRef(ctx context.Context, orderRef string) (*entity.Report, error) {
	return m.GetByOrderRefFunc(ctx, orderRef)
}

func (m *mockReportService) GetByID(ctx context.Context, id int64) (*entity.Report, error) {
	return m.GetByIDFunc(ctx, id)
}

func (m *mockReportService) SavePartA(ctx context.Context, orderRef string, partA entity.PartA, version int64) (*entity.Report, error) {
	return m.SavePartAFunc(ctx, orderRef, partA, version)
}

func (m *mockReportService) SavePartB(ctx context.Context, orderRef string, partB entity.PartB, version int64) (*entity.Report, error) {
	return m.SavePartBFunc(ctx, orderRef, partB, version)
}

func (m *mockReportService) Transition(ctx context.Context, id int64, trigger domainwf.Trigger, version int64) (*entity.Report, error) {
	return m.TransitionFunc(ctx, id, trigger, version)
}

func (m *mockReportService) History(ctx context.Context, id int64) ([]*entity.HistoryEntry, error) {
	return m.HistoryFunc(ctx, id)
}

func (m *mockReportService) Calculation(ctx context.Context, id int64, member entity.MemberID) (*entity.CompensationCalculation, error) {
	return m.CalculationFunc(ctx, id, member)
}

func (m *mockReportService) Statement(ctx context.Context, id int64) (*compensation.Statement, error) {
	return m.StatementFunc(ctx, id)
}

func (m *mockReportService) UpsertOrder(ctx context.Context, order *entity.Order) error {
	return m.UpsertOrderFunc(ctx, order)
}

type mockExporter struct{}

func (mockExporter) Write(w io.Writer, report *entity.Report, _ *compensation.Statement) error {
	_, err := io.WriteString(w, "xlsx:"+report.OrderRef)
	return err
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

func newTestServer(svc *mockReportService, health HealthFunc) *gin.Engine {
	cfg := DefaultServerConfig()
	cfg.Mode = gin.TestMode
	return NewServer(cfg, svc, mockExporter{}, health, nopLogger{}).Router()
}

func doRequest(t *testing.T, r *gin.Engine, method, path string, body interface{}, headers map[string]string) (*httptest.ResponseRecorder, Response) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp Response
	if w.Header().Get("Content-Type") != xlsxContentType {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w, resp
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("date 2020-01-01: %w", entity.ErrTariffNotFound), http.StatusUnprocessableEntity},
		{fmt.Errorf("report 1: %w", entity.ErrNotFound), http.StatusNotFound},
		{entity.ErrValidation, http.StatusBadRequest},
		{entity.ErrConflict, http.StatusConflict},
		{domainwf.ErrInvalidTransition, http.StatusConflict},
		{entity.ErrForbidden, http.StatusForbidden},
		{entity.ErrNotEditable, http.StatusForbidden},
		{domainwf.ErrGuardFailed, http.StatusForbidden},
		{fmt.Errorf("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestHealthCheck(t *testing.T) {
	healthy := newTestServer(&mockReportService{}, func(context.Context) (bool, interface{}) {
		return true, map[string]bool{"database": true}
	})
	w, resp := doRequest(t, healthy, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)

	unhealthy := newTestServer(&mockReportService{}, func(context.Context) (bool, interface{}) {
		return false, nil
	})
	w, resp = doRequest(t, unhealthy, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.False(t, resp.Success)
}

func TestGetReport(t *testing.T) {
	svc := &mockReportService{
		GetByIDFunc: func(_ context.Context, id int64) (*entity.Report, error) {
			if id == 7 {
				return &entity.Report{ID: 7, OrderRef: "ORD-7", State: domainwf.StateDraft}, nil
			}
			return nil, fmt.Errorf("report %d: %w", id, entity.ErrNotFound)
		},
	}
	r := newTestServer(svc, nil)

	w, resp := doRequest(t, r, http.MethodGet, "/api/reports/7", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "ORD-7", data["order_ref"])

	w, resp = doRequest(t, r, http.MethodGet, "/api/reports/8", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, resp.Error, "not found")

	w, _ = doRequest(t, r, http.MethodGet, "/api/reports/abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSavePartA_PassesActorAndVersion(t *testing.T) {
	var gotActor domainwf.Actor
	var gotVersion int64
	var gotPartA entity.PartA

	svc := &mockReportService{
		SavePartAFunc: func(ctx context.Context, orderRef string, partA entity.PartA, version int64) (*entity.Report, error) {
			gotActor, _ = domainwf.ActorFrom(ctx)
			gotVersion = version
			gotPartA = partA
			return &entity.Report{ID: 1, OrderRef: orderRef, Version: version + 1}, nil
		},
	}
	r := newTestServer(svc, nil)

	body := map[string]interface{}{
		"segments": []map[string]interface{}{
			{"date": "2024-03-01", "mode": "self_driven_vehicle", "distance_km": 120, "ticket_cost": "0", "driver_id": "m1"},
		},
		"completed": true,
	}
	w, resp := doRequest(t, r, http.MethodPut, "/api/orders/ORD-1/report/part-a?version=3", body,
		map[string]string{HeaderMemberID: "m1", HeaderRole: "leader"})

	require.Equal(t, http.StatusOK, w.Code, resp.Error)
	assert.Equal(t, domainwf.Actor{ID: "m1", Role: domainwf.RoleLeader}, gotActor)
	assert.Equal(t, int64(3), gotVersion)
	require.Len(t, gotPartA.Segments, 1)
	assert.Equal(t, 120.0, gotPartA.Segments[0].DistanceKm)
	assert.True(t, gotPartA.Completed)
}

func TestSavePartB_NotEditable(t *testing.T) {
	svc := &mockReportService{
		SavePartBFunc: func(context.Context, string, entity.PartB, int64) (*entity.Report, error) {
			return nil, fmt.Errorf("report 1: %w", entity.ErrNotEditable)
		},
	}
	r := newTestServer(svc, nil)

	w, resp := doRequest(t, r, http.MethodPut, "/api/orders/ORD-1/report/part-b", map[string]interface{}{"notes": "ok"},
		map[string]string{HeaderMemberID: "m2"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, resp.Success)
}

func TestTransition(t *testing.T) {
	var gotTrigger domainwf.Trigger
	svc := &mockReportService{
		TransitionFunc: func(ctx context.Context, id int64, trigger domainwf.Trigger, version int64) (*entity.Report, error) {
			gotTrigger = trigger
			if version != 2 {
				return nil, entity.ErrConflict
			}
			return &entity.Report{ID: id, State: domainwf.StateSend, Version: 3}, nil
		},
	}
	r := newTestServer(svc, nil)
	leader := map[string]string{HeaderMemberID: "m1", HeaderRole: "leader"}

	t.Run("send", func(t *testing.T) {
		w, resp := doRequest(t, r, http.MethodPost, "/api/reports/5/transitions",
			TransitionRequest{Trigger: domainwf.TriggerSend, Version: 2}, leader)
		require.Equal(t, http.StatusOK, w.Code, resp.Error)
		assert.Equal(t, domainwf.TriggerSend, gotTrigger)
		assert.Equal(t, "send", resp.Data.(map[string]interface{})["state"])
	})

	t.Run("stale version", func(t *testing.T) {
		w, _ := doRequest(t, r, http.MethodPost, "/api/reports/5/transitions",
			TransitionRequest{Trigger: domainwf.TriggerSend, Version: 1}, leader)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("unknown trigger", func(t *testing.T) {
		w, _ := doRequest(t, r, http.MethodPost, "/api/reports/5/transitions",
			TransitionRequest{Trigger: "SUBMIT", Version: 2}, leader)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("outcome triggers are reserved", func(t *testing.T) {
		w, _ := doRequest(t, r, http.MethodPost, "/api/reports/5/transitions",
			TransitionRequest{Trigger: domainwf.TriggerSubmitSucceeded, Version: 2},
			map[string]string{HeaderMemberID: "a1", HeaderRole: "admin"})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("system role rejected", func(t *testing.T) {
		w, _ := doRequest(t, r, http.MethodPost, "/api/reports/5/transitions",
			TransitionRequest{Trigger: domainwf.TriggerSend, Version: 2},
			map[string]string{HeaderRole: "system"})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestUpsertOrder_AdminOnly(t *testing.T) {
	var stored *entity.Order
	svc := &mockReportService{
		UpsertOrderFunc: func(_ context.Context, order *entity.Order) error {
			stored = order
			return nil
		},
	}
	r := newTestServer(svc, nil)

	body := map[string]interface{}{
		"execution_date": "2024-03-01",
		"elevated_rate":  true,
		"team": map[string]interface{}{
			"m1": map[string]interface{}{"id": "m1", "name": "Ann", "is_leader": true},
		},
	}

	w, _ := doRequest(t, r, http.MethodPut, "/api/orders/ORD-9", body, map[string]string{HeaderMemberID: "m1", HeaderRole: "leader"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Nil(t, stored)

	w, resp := doRequest(t, r, http.MethodPut, "/api/orders/ORD-9", body, map[string]string{HeaderMemberID: "a1", HeaderRole: "admin"})
	require.Equal(t, http.StatusOK, w.Code, resp.Error)
	require.NotNil(t, stored)
	assert.Equal(t, "ORD-9", stored.OrderRef)
	assert.True(t, stored.ElevatedRate)
	assert.Equal(t, "2024-03-01", stored.ExecutionDate.String())
	assert.True(t, stored.Team["m1"].IsLeader)
}

func TestStatement(t *testing.T) {
	svc := &mockReportService{
		GetByIDFunc: func(_ context.Context, id int64) (*entity.Report, error) {
			return &entity.Report{ID: id, OrderRef: "ORD-3"}, nil
		},
		StatementFunc: func(_ context.Context, id int64) (*compensation.Statement, error) {
			return &compensation.Statement{ReportID: id, OrderRef: "ORD-3", Total: decimal.RequireFromString("572")}, nil
		},
	}
	r := newTestServer(svc, nil)

	w, resp := doRequest(t, r, http.MethodGet, "/api/reports/3/statement", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "572", resp.Data.(map[string]interface{})["total"])

	w, _ = doRequest(t, r, http.MethodGet, "/api/reports/3/statement.xlsx", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "xlsx:ORD-3", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "statement-ORD-3.xlsx")
}

func TestStatement_TariffMissing(t *testing.T) {
	svc := &mockReportService{
		StatementFunc: func(context.Context, int64) (*compensation.Statement, error) {
			return nil, fmt.Errorf("no tariff for 1999-01-01: %w", entity.ErrTariffNotFound)
		},
	}
	r := newTestServer(svc, nil)

	w, _ := doRequest(t, r, http.MethodGet, "/api/reports/3/statement", nil, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
