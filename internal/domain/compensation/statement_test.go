package compensation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/fieldwork-reports/internal/domain/entity"
)

func TestBuildStatement_AppliesRedirects(t *testing.T) {
	m1 := entity.MemberID("m1")
	report := &entity.Report{
		ID:       9,
		OrderRef: "ORD-9",
		Team: entity.Team{
			"m1": {ID: "m1", Name: "Anna", ExternalID: "ou_anna", IsLeader: true},
			"m2": {ID: "m2", Name: "Ben", ExternalID: "ou_ben"},
			"m3": {ID: "m3", Name: "Cleo", RedirectTo: &m1},
		},
	}
	calcs := entity.Calculations{
		"m1": {MemberID: "m1", Total: dec("100.00")},
		"m2": {MemberID: "m2", Total: dec("40.00")},
		"m3": {MemberID: "m3", Total: dec("25.50")},
	}

	st := BuildStatement(report, calcs)

	require.Len(t, st.Lines, 2)
	assert.Equal(t, entity.MemberID("m1"), st.Lines[0].Payee)
	assert.Equal(t, "125.50", st.Lines[0].Amount.StringFixed(2))
	assert.Equal(t, []entity.MemberID{"m1", "m3"}, st.Lines[0].Covers)
	assert.Equal(t, "ou_anna", st.Lines[0].ExternalID)
	assert.Equal(t, entity.MemberID("m2"), st.Lines[1].Payee)
	assert.Equal(t, "165.50", st.Total.StringFixed(2))
}

func TestBuildStatement_SkipsMissingCalculations(t *testing.T) {
	report := &entity.Report{Team: entity.Team{
		"m1": {ID: "m1", Name: "Anna", IsLeader: true},
		"m2": {ID: "m2", Name: "Ben"},
	}}

	st := BuildStatement(report, entity.Calculations{"m2": {Total: dec("5")}})

	require.Len(t, st.Lines, 1)
	assert.Equal(t, entity.MemberID("m2"), st.Lines[0].Payee)
}
