package view

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/magsav/pkg/editor"
	"github.com/mesh-intelligence/magsav/pkg/types"
)

var equipment = types.KindSpec{
	Name: types.KindEquipment,
	Fields: []types.FieldSpec{
		{Name: "id", Type: types.FieldText, ReadOnly: true},
		{Name: "name", Type: types.FieldText},
		{Name: "weight", Type: types.FieldDecimal},
		{Name: "status", Type: types.FieldChoice, Choices: []string{"available", "in_use"}},
		{Name: "purchase_date", Type: types.FieldDate},
		{Name: "in_service", Type: types.FieldBoolean},
		{Name: "serial_number", Type: types.FieldText},
		{Name: "created_at", Type: types.FieldText, ReadOnly: true},
	},
	InstanceUnique: []string{"serial_number"},
}

func lyre() types.Record {
	return types.RecordFromPairs(
		types.P("id", "e-1"),
		types.P("name", "Lyre 575"),
		types.P("weight", 12.5),
		types.P("status", "available"),
		types.P("purchase_date", types.NewDate(2023, time.April, 1)),
		types.P("serial_number", "SN-1"),
		types.P("created_at", "2024-01-01T00:00:00Z"),
		types.P("legacy_code", "X9"),
	)
}

func golden(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestRecordView(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Record(&buf, equipment, types.ModeView, lyre(), nil))
	golden(t).Assert(t, "record_view", buf.Bytes())
}

func TestRecordWithoutID(t *testing.T) {
	var buf bytes.Buffer
	rec := types.RecordFromPairs(types.P("name", "Wash"))
	require.NoError(t, Record(&buf, equipment, types.ModeView, rec, nil))
	golden(t).Assert(t, "record_new", buf.Bytes())
}

func TestEditorInEditMode(t *testing.T) {
	ed := editor.New(equipment, lyre(), nil)
	save, err := ed.ToggleMode(context.Background())
	require.NoError(t, err)
	require.Nil(t, save)
	require.NoError(t, ed.SetInput("weight", "12,5kg"))
	require.NoError(t, ed.SetInput("status", "in_use"))

	var buf bytes.Buffer
	require.NoError(t, Editor(&buf, ed))
	golden(t).Assert(t, "record_edit", buf.Bytes())
}

func TestList(t *testing.T) {
	recs := []types.Record{
		lyre(),
		types.RecordFromPairs(types.P("id", "e-2"), types.P("name", "Wash 300"), types.P("weight", 8)),
	}

	var buf bytes.Buffer
	require.NoError(t, List(&buf, equipment, recs))
	golden(t).Assert(t, "list", buf.Bytes())

	buf.Reset()
	require.NoError(t, List(&buf, equipment, recs[:1], "id", "serial_number"))
	golden(t).Assert(t, "list_columns", buf.Bytes())
}

func TestResult(t *testing.T) {
	tests := []struct {
		name   string
		result types.BulkUpdateResult
	}{
		{
			name: "result_applied",
			result: types.BulkUpdateResult{
				Kind:        types.KindEquipment,
				Criterion:   types.MatchCriterion{Field: "name", Value: "Lyre 575"},
				Outcome:     types.OutcomeApplied,
				Attempted:   3,
				Succeeded:   2,
				Failures:    []types.Failure{{RecordID: "e-3", Message: "connection reset"}},
				Invalidated: true,
			},
		},
		{
			name: "result_refused",
			result: types.BulkUpdateResult{
				Kind:      types.KindEquipment,
				Criterion: types.MatchCriterion{Field: "locmat_code"},
				Outcome:   types.OutcomeRefusedEmptyCriterion,
				Err:       types.ErrEmptyCriterion,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Result(&buf, tt.result))
			golden(t).Assert(t, tt.name, buf.Bytes())
		})
	}
}
