package container

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/fieldwork-reports/internal/application/port"
	"github.com/garyjia/fieldwork-reports/internal/domain/entity"
	domainwf "github.com/garyjia/fieldwork-reports/internal/domain/workflow"
	"github.com/garyjia/fieldwork-reports/pkg/database"
)

type stubClient struct {
	calls atomic.Int32
}

func (s *stubClient) Submit(context.Context, *port.SubmissionRequest) (*port.SubmissionResult, error) {
	s.calls.Add(1)
	return &port.SubmissionResult{InstanceCode: "INST-1"}, nil
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Database.Path = database.MemoryPath
	cfg.Lark = LarkConfig{AppID: "cli_test", AppSecret: "secret", ApprovalCode: "APPROVAL"}
	cfg.Submission.PollWait = 10 * time.Millisecond
	cfg.Submission.BackoffBase = time.Millisecond
	cfg.Submission.BackoffCap = time.Millisecond
	cfg.Tariffs = []*entity.PriceList{{
		EffectiveFrom:  entity.NewDate(2024, 1, 1),
		KmRate:         decimal.RequireFromString("6.00"),
		KmRateElevated: decimal.RequireFromString("8.50"),
		Bands: []entity.TariffBand{
			{From: 0, To: 24, MealAllowance: decimal.RequireFromString("10"), WorkAllowance: decimal.RequireFromString("20")},
		},
	}}
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing app id", func(c *Config) { c.Lark.AppID = "" }, "lark.app_id"},
		{"redis queue without redis", func(c *Config) { c.Submission.Queue = QueueRedis }, "redis.addr"},
		{"unknown queue", func(c *Config) { c.Submission.Queue = "kafka" }, "unknown submission.queue"},
		{"bad tariff", func(c *Config) { c.Tariffs[0].Bands[0].To = 0 }, "tariff effective 2024-01-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewContainer_RejectsBadInput(t *testing.T) {
	_, err := NewContainer(nil, zap.NewNop())
	assert.Error(t, err)

	_, err = NewContainer(testConfig(), nil)
	assert.Error(t, err)

	cfg := testConfig()
	cfg.Lark.AppSecret = ""
	_, err = NewContainer(cfg, zap.NewNop())
	assert.Error(t, err)
}

func runSubmission(t *testing.T, cfg *Config) {
	t.Helper()

	client := &stubClient{}
	c, err := NewContainer(cfg, zap.NewNop(), WithSubmissionClient(client))
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { _ = c.Close() })

	assert.True(t, c.Ready())
	assert.Error(t, c.Start(context.Background()))

	ctx := context.Background()
	svc := c.Services().Report
	require.NoError(t, svc.UpsertOrder(ctx, &entity.Order{
		OrderRef: "ORD-1",
		Team:     entity.Team{"m1": {ID: "m1", Name: "Anna", ExternalID: "ou_anna", IsLeader: true}},
	}))

	leader := domainwf.WithActor(ctx, domainwf.Actor{ID: "m1", Role: domainwf.RoleLeader})
	date := entity.NewDate(2024, 5, 17)
	report, err := svc.SavePartA(leader, "ORD-1", entity.PartA{
		Segments:  []entity.TravelSegment{{Date: date, Mode: entity.TransportOnFoot}},
		Completed: true,
	}, 0)
	require.NoError(t, err)
	assert.True(t, report.Calculations["m1"].Total.Equal(decimal.NewFromInt(30)))

	report, err = svc.SavePartB(leader, "ORD-1", entity.PartB{Completed: true}, report.Version)
	require.NoError(t, err)

	_, err = svc.Transition(leader, report.ID, domainwf.TriggerSend, report.Version)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		r, err := svc.GetByID(ctx, report.ID)
		return err == nil && r.State == domainwf.StateSubmitted
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), client.calls.Load())

	health := c.Health(ctx)
	assert.True(t, health.Overall, "%+v", health.Components)
	assert.True(t, health.Components["database"].Healthy)
	assert.True(t, health.Components["workers"].Healthy)

	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
	assert.Error(t, c.Close())
	assert.Error(t, c.Start(ctx))
}

func TestContainer_SubmitsThroughMemoryQueue(t *testing.T) {
	runSubmission(t, testConfig())
}

func TestContainer_SubmitsThroughRedisQueue(t *testing.T) {
	server := miniredis.RunT(t)

	cfg := testConfig()
	cfg.Redis.Addr = server.Addr()
	cfg.Submission.Queue = QueueRedis
	cfg.Submission.PollWait = time.Second
	runSubmission(t, cfg)
}
