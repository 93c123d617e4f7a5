package service

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/fieldwork-reports/internal/application/dispatcher"
	"github.com/garyjia/fieldwork-reports/internal/application/workflow"
	"github.com/garyjia/fieldwork-reports/internal/domain/compensation"
	"github.com/garyjia/fieldwork-reports/internal/domain/entity"
	"github.com/garyjia/fieldwork-reports/internal/domain/event"
	domainwf "github.com/garyjia/fieldwork-reports/internal/domain/workflow"
	"github.com/garyjia/fieldwork-reports/internal/infrastructure/persistence/repository"
	"github.com/garyjia/fieldwork-reports/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/fieldwork-reports/migrations"
	"github.com/garyjia/fieldwork-reports/pkg/database"
)

type harness struct {
	svc     ReportService
	tariffs TariffService

	mu   sync.Mutex
	sent []*event.Event
}

func (h *harness) sentEvents() []*event.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*event.Event(nil), h.sent...)
}

func newHarness(t *testing.T, seedTariff bool) *harness {
	t.Helper()

	db, err := database.New(database.Config{Path: database.MemoryPath}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.NewMigrator(db, zap.NewNop()).RunMigrations(migrations.FS))

	logger := zap.NewNop()
	tx := sqlite.NewDB(db.DB, logger)
	reports := repository.NewReportRepository(db.DB, logger)
	history := repository.NewHistoryRepository(db.DB, logger)
	orders := repository.NewOrderRepository(db.DB, logger)
	prices := repository.NewPriceListRepository(db.DB, logger)

	h := &harness{}
	d := dispatcher.NewDispatcher()
	d.SubscribeNamed(event.TypeReportSent, "capture", func(ctx context.Context, evt *event.Event) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.sent = append(h.sent, evt)
		return nil
	})
	t.Cleanup(func() { _ = d.Close() })

	h.tariffs = NewTariffService(prices, tx, nil)
	calc := compensation.NewCalculator(h.tariffs)
	engine := workflow.NewEngine(reports, history, tx, workflow.WithDispatcher(d), workflow.WithCalculator(calc))
	h.svc = NewReportService(reports, orders, history, tx, engine, calc, nil)

	lead := entity.MemberID("m1")
	require.NoError(t, h.svc.UpsertOrder(context.Background(), &entity.Order{
		OrderRef: "ORD-1",
		Team: entity.Team{
			"m1": {ID: "m1", Name: "Anna", ExternalID: "ou_anna", IsLeader: true},
			"m2": {ID: "m2", Name: "Ben", ExternalID: "ou_ben"},
			"m3": {ID: "m3", Name: "Cleo", RedirectTo: &lead},
		},
	}))

	if seedTariff {
		require.NoError(t, h.tariffs.Seed(context.Background(), []*entity.PriceList{{
			EffectiveFrom:  entity.NewDate(2024, 1, 1),
			KmRate:         decimal.RequireFromString("6.00"),
			KmRateElevated: decimal.RequireFromString("8.50"),
			Bands: []entity.TariffBand{
				{From: 0, To: 6, MealAllowance: decimal.RequireFromString("60"), WorkAllowance: decimal.RequireFromString("100")},
				{From: 6, To: 8, MealAllowance: decimal.RequireFromString("120"), WorkAllowance: decimal.RequireFromString("200")},
			},
		}}))
	}

	return h
}

var (
	leader   = domainwf.WithActor(context.Background(), domainwf.Actor{ID: "m1", Role: domainwf.RoleLeader})
	member   = domainwf.WithActor(context.Background(), domainwf.Actor{ID: "m2", Role: domainwf.RoleLeader})
	admin    = domainwf.WithActor(context.Background(), domainwf.Actor{ID: "a1", Role: domainwf.RoleAdmin})
	system   = domainwf.WithActor(context.Background(), domainwf.SystemActor)
	tripDate = entity.NewDate(2024, 5, 17)
)

func clockPtr(s string) *entity.ClockTime {
	c := entity.MustParseClockTime(s)
	return &c
}

func drivingPartA() entity.PartA {
	return entity.PartA{
		Segments: []entity.TravelSegment{
			{Date: tripDate, StartTime: clockPtr("08:00"), EndTime: clockPtr("10:00"), Mode: entity.TransportSelfDriven, DistanceKm: 30, DriverID: "m1"},
			{Date: tripDate, StartTime: clockPtr("09:30"), EndTime: clockPtr("11:00"), Mode: entity.TransportSelfDriven, DistanceKm: 12, DriverID: "m1"},
			{Date: tripDate, StartTime: clockPtr("14:00"), EndTime: clockPtr("15:00"), Mode: entity.TransportOnFoot},
		},
		Expenses: []entity.AdditionalExpense{
			{Date: tripDate, Amount: decimal.RequireFromString("8.50"), PaidBy: "m3"},
		},
		Completed: true,
	}
}

func TestReportService_SavePartA_CreatesAndCalculates(t *testing.T) {
	h := newHarness(t, true)

	report, err := h.svc.SavePartA(leader, "ORD-1", drivingPartA(), 0)
	require.NoError(t, err)

	assert.NotZero(t, report.ID)
	assert.Equal(t, domainwf.StateDraft, report.State)
	assert.Equal(t, int64(2), report.Version)
	require.Contains(t, report.Calculations, entity.MemberID("m1"))
	assert.Equal(t, "572.00", report.Calculations["m1"].Total.StringFixed(2))
	assert.Equal(t, "320.00", report.Calculations["m2"].Total.StringFixed(2))
	assert.Equal(t, "328.50", report.Calculations["m3"].Total.StringFixed(2))

	stored, err := h.svc.GetByOrderRef(context.Background(), "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, report.Version, stored.Version)
	assert.Len(t, stored.PartA.Segments, 3)

	history, err := h.svc.History(context.Background(), report.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, entity.ActionCreated, history[0].Action)
	assert.Equal(t, entity.ActionPartAUpdated, history[1].Action)
	assert.Equal(t, "leader:m1", history[1].Actor)
}

func TestReportService_SaveRejections(t *testing.T) {
	h := newHarness(t, true)

	t.Run("non leader", func(t *testing.T) {
		_, err := h.svc.SavePartA(member, "ORD-1", drivingPartA(), 0)
		assert.ErrorIs(t, err, entity.ErrForbidden)

		_, err = h.svc.GetByOrderRef(context.Background(), "ORD-1")
		assert.ErrorIs(t, err, entity.ErrNotFound, "nothing is created for a rejected caller")
	})

	t.Run("unknown order", func(t *testing.T) {
		_, err := h.svc.SavePartB(leader, "ORD-404", entity.PartB{}, 0)
		assert.ErrorIs(t, err, entity.ErrNotFound)
	})

	t.Run("invalid payload", func(t *testing.T) {
		bad := drivingPartA()
		bad.Segments[0].DriverID = "stranger"
		_, err := h.svc.SavePartA(leader, "ORD-1", bad, 0)
		assert.ErrorIs(t, err, entity.ErrValidation)

		_, err = h.svc.GetByOrderRef(context.Background(), "ORD-1")
		assert.ErrorIs(t, err, entity.ErrNotFound, "creation rolls back with the failed save")
	})

	t.Run("invalid part b", func(t *testing.T) {
		_, err := h.svc.SavePartB(leader, "ORD-1", entity.PartB{Objects: []entity.ObjectCondition{{ObjectRef: "X1", Condition: "sparkling"}}}, 0)
		assert.ErrorIs(t, err, entity.ErrValidation)
	})

	t.Run("stale version", func(t *testing.T) {
		report, err := h.svc.SavePartB(leader, "ORD-1", entity.PartB{Notes: "ok"}, 0)
		require.NoError(t, err)

		_, err = h.svc.SavePartB(leader, "ORD-1", entity.PartB{Notes: "late"}, report.Version-1)
		assert.ErrorIs(t, err, entity.ErrConflict)
	})
}

func TestReportService_MissingTariffBlocksSave(t *testing.T) {
	h := newHarness(t, false)

	_, err := h.svc.SavePartA(leader, "ORD-1", drivingPartA(), 0)
	assert.ErrorIs(t, err, entity.ErrTariffNotFound)
}

func TestReportService_NoDateLeavesCalculationsEmpty(t *testing.T) {
	h := newHarness(t, false)

	report, err := h.svc.SavePartB(leader, "ORD-1", entity.PartB{Notes: "bridge fine"}, 0)
	require.NoError(t, err)
	assert.Empty(t, report.Calculations)
}

func TestReportService_SendLifecycle(t *testing.T) {
	h := newHarness(t, true)

	report, err := h.svc.SavePartA(leader, "ORD-1", drivingPartA(), 0)
	require.NoError(t, err)

	_, err = h.svc.Transition(leader, report.ID, domainwf.TriggerSend, 0)
	assert.ErrorIs(t, err, entity.ErrValidation, "part b not completed")

	report, err = h.svc.SavePartB(leader, "ORD-1", entity.PartB{
		Objects:   []entity.ObjectCondition{{ObjectRef: "BR-7", Condition: "good"}},
		Completed: true,
	}, report.Version)
	require.NoError(t, err)

	_, err = h.svc.Transition(member, report.ID, domainwf.TriggerSend, 0)
	assert.ErrorIs(t, err, entity.ErrForbidden, "m2 is not this report's leader")

	sent, err := h.svc.Transition(leader, report.ID, domainwf.TriggerSend, report.Version)
	require.NoError(t, err)
	assert.Equal(t, domainwf.StateSend, sent.State)

	events := h.sentEvents()
	require.Len(t, events, 1)
	snap, ok := events[0].GetPayload(workflow.PayloadSnapshot)
	require.True(t, ok)
	assert.Equal(t, "ORD-1", snap.(entity.ReportSnapshot).OrderRef)

	_, err = h.svc.SavePartB(leader, "ORD-1", entity.PartB{Notes: "too late"}, 0)
	assert.ErrorIs(t, err, entity.ErrNotEditable)

	_, err = h.svc.Transition(system, report.ID, domainwf.TriggerSubmitSucceeded, 0)
	require.NoError(t, err)
	_, err = h.svc.Transition(admin, report.ID, domainwf.TriggerReset, 0)
	assert.ErrorIs(t, err, domainwf.ErrInvalidTransition)

	approved, err := h.svc.Transition(admin, report.ID, domainwf.TriggerApprove, 0)
	require.NoError(t, err)
	assert.Equal(t, domainwf.StateApproved, approved.State)

	history, err := h.svc.History(context.Background(), report.ID)
	require.NoError(t, err)
	actions := make([]string, len(history))
	for i, e := range history {
		actions[i] = e.Action
	}
	assert.Equal(t, []string{
		entity.ActionCreated,
		entity.ActionPartAUpdated,
		entity.ActionPartBUpdated,
		"SEND",
		"SUBMIT_SUCCEEDED",
		"APPROVE",
	}, actions)
}

func TestReportService_SendUsesTariffInEffectAtSend(t *testing.T) {
	h := newHarness(t, true)

	report, err := h.svc.SavePartA(leader, "ORD-1", drivingPartA(), 0)
	require.NoError(t, err)
	report, err = h.svc.SavePartB(leader, "ORD-1", entity.PartB{Completed: true}, report.Version)
	require.NoError(t, err)
	assert.Equal(t, "252.00", report.Calculations["m1"].Transport.StringFixed(2))

	require.NoError(t, h.tariffs.Seed(context.Background(), []*entity.PriceList{{
		EffectiveFrom:  entity.NewDate(2024, 5, 1),
		KmRate:         decimal.RequireFromString("10.00"),
		KmRateElevated: decimal.RequireFromString("12.00"),
		Bands: []entity.TariffBand{
			{From: 0, To: 24, MealAllowance: decimal.RequireFromString("60"), WorkAllowance: decimal.RequireFromString("100")},
		},
	}}))

	sent, err := h.svc.Transition(leader, report.ID, domainwf.TriggerSend, report.Version)
	require.NoError(t, err)
	assert.Equal(t, "420.00", sent.Calculations["m1"].Transport.StringFixed(2))

	events := h.sentEvents()
	require.Len(t, events, 1)
	snap, ok := events[0].GetPayload(workflow.PayloadSnapshot)
	require.True(t, ok)
	snapshot := snap.(entity.ReportSnapshot)
	assert.Equal(t, "420.00", snapshot.Calculations["m1"].Transport.StringFixed(2))
	assert.Equal(t, sent.Version, snapshot.Version)

	stored, err := h.svc.GetByID(context.Background(), report.ID)
	require.NoError(t, err)
	assert.Equal(t, "420.00", stored.Calculations["m1"].Transport.StringFixed(2))
	assert.Equal(t, sent.Version, stored.Version)
}

func TestReportService_SendWithoutDateFails(t *testing.T) {
	h := newHarness(t, false)

	report, err := h.svc.SavePartA(leader, "ORD-1", entity.PartA{Completed: true}, 0)
	require.NoError(t, err)
	report, err = h.svc.SavePartB(leader, "ORD-1", entity.PartB{Completed: true}, report.Version)
	require.NoError(t, err)

	_, err = h.svc.Transition(leader, report.ID, domainwf.TriggerSend, report.Version)
	assert.ErrorIs(t, err, entity.ErrValidation)

	stored, err := h.svc.GetByID(context.Background(), report.ID)
	require.NoError(t, err)
	assert.Equal(t, domainwf.StateDraft, stored.State)
	assert.Empty(t, h.sentEvents())
}

func TestReportService_CalculationAndStatement(t *testing.T) {
	h := newHarness(t, true)

	report, err := h.svc.SavePartA(leader, "ORD-1", drivingPartA(), 0)
	require.NoError(t, err)

	calc, err := h.svc.Calculation(context.Background(), report.ID, "m1")
	require.NoError(t, err)
	assert.True(t, calc.IsDriver)
	assert.Equal(t, "252.00", calc.Transport.StringFixed(2))

	_, err = h.svc.Calculation(context.Background(), report.ID, "m9")
	assert.ErrorIs(t, err, entity.ErrNotFound)

	st, err := h.svc.Statement(context.Background(), report.ID)
	require.NoError(t, err)
	require.Len(t, st.Lines, 2)
	assert.Equal(t, entity.MemberID("m1"), st.Lines[0].Payee)
	assert.Equal(t, "900.50", st.Lines[0].Amount.StringFixed(2), "m1 plus redirected m3")
	assert.Equal(t, "1220.50", st.Total.StringFixed(2))
}

func TestReportService_UpsertOrderValidatesTeam(t *testing.T) {
	h := newHarness(t, false)

	err := h.svc.UpsertOrder(context.Background(), &entity.Order{
		OrderRef: "ORD-2",
		Team:     entity.Team{"m1": {ID: "m1", Name: "Anna"}},
	})
	assert.ErrorIs(t, err, entity.ErrValidation)

	err = h.svc.UpsertOrder(context.Background(), &entity.Order{Team: entity.Team{}})
	assert.ErrorIs(t, err, entity.ErrValidation)
}
