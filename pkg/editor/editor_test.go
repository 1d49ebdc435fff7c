package editor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/magsav/pkg/types"
)

type updateCall struct {
	id     string
	fields types.Record
}

type fakePersistence struct {
	mu    sync.Mutex
	calls []updateCall
	err   error
	gate  chan struct{}
}

func (f *fakePersistence) Update(_ context.Context, id string, fields types.Record) error {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, updateCall{id: id, fields: fields.Clone()})
	return f.err
}

func (f *fakePersistence) Calls() []updateCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]updateCall(nil), f.calls...)
}

type noticeLog struct {
	mu      sync.Mutex
	notices []types.Notice
}

func (n *noticeLog) Notify(notice types.Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
}

func (n *noticeLog) All() []types.Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]types.Notice(nil), n.notices...)
}

type observerLog struct {
	mu   sync.Mutex
	errs []error
}

func (o *observerLog) CommitPersisted(_ types.Kind, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errs = append(o.errs, err)
}

func equipmentSpec() types.KindSpec {
	return types.KindSpec{
		Name: types.KindEquipment,
		Fields: []types.FieldSpec{
			{Name: "id", Type: types.FieldText, ReadOnly: true},
			{Name: "name", Type: types.FieldText},
			{Name: "weight", Type: types.FieldDecimal},
			{Name: "quantity", Type: types.FieldInteger},
			{Name: "status", Type: types.FieldChoice, Choices: []string{"Available", "Retired"}},
			{Name: "purchase_date", Type: types.FieldDate},
			{Name: "created_at", Type: types.FieldText, ReadOnly: true},
		},
		InstanceUnique: []string{"serial_number"},
	}
}

func equipmentRecord() types.Record {
	return types.RecordFromPairs(
		types.P("id", "e-1"),
		types.P("name", "Lyre"),
		types.P("weight", 10.0),
		types.P("quantity", 2),
		types.P("status", "Available"),
		types.P("created_at", "2024-01-01T00:00:00Z"),
	)
}

func TestNewOpensInViewOnCopy(t *testing.T) {
	rec := equipmentRecord()
	ed := New(equipmentSpec(), rec, &fakePersistence{})

	assert.Equal(t, types.ModeView, ed.Mode())
	assert.Nil(t, ed.Inputs())
	rec.Set("name", types.String("Changed"))
	name, _ := ed.Record().GetString("name")
	assert.Equal(t, "Lyre", name)
}

func TestToggleIntoEditFillsInputs(t *testing.T) {
	ed := New(equipmentSpec(), equipmentRecord(), &fakePersistence{})

	save, err := ed.ToggleMode(context.Background())
	require.NoError(t, err)
	assert.Nil(t, save)
	assert.Equal(t, types.ModeEdit, ed.Mode())

	inputs := ed.Inputs()
	assert.Equal(t, map[string]string{
		"name":          "Lyre",
		"weight":        "10",
		"quantity":      "2",
		"status":        "Available",
		"purchase_date": "",
	}, inputs)
	assert.True(t, ed.Record().Equal(equipmentRecord()))
}

func TestToggleTwiceWithoutChangesPersistsSameValues(t *testing.T) {
	persist := &fakePersistence{}
	ed := New(equipmentSpec(), equipmentRecord(), persist)

	_, err := ed.ToggleMode(context.Background())
	require.NoError(t, err)
	save, err := ed.ToggleMode(context.Background())
	require.NoError(t, err)
	require.NoError(t, save.Wait())

	calls := persist.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "e-1", calls[0].id)
	assert.True(t, calls[0].fields.Equal(equipmentRecord()))
	assert.Empty(t, ed.ChangedFields())
}

func TestCommitCoercesInputs(t *testing.T) {
	persist := &fakePersistence{}
	ed := New(equipmentSpec(), equipmentRecord(), persist)
	ctx := context.Background()

	_, err := ed.ToggleMode(ctx)
	require.NoError(t, err)
	require.NoError(t, ed.SetInput("name", "  Lyre Spot "))
	require.NoError(t, ed.SetInput("weight", "12,5kg"))
	require.NoError(t, ed.SetInput("quantity", "4"))
	require.NoError(t, ed.SetInput("status", "retired"))
	require.NoError(t, ed.SetInput("purchase_date", "05/03/2024"))

	save, err := ed.ToggleMode(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.ModeView, ed.Mode())

	rec := ed.Record()
	name, _ := rec.GetString("name")
	assert.Equal(t, "Lyre Spot", name)
	weight, ok := rec.GetFloat64("weight")
	assert.True(t, ok)
	assert.InDelta(t, 12.5, weight, 1e-9)
	qty, _ := rec.GetInt("quantity")
	assert.Equal(t, 4, qty)
	status, _ := rec.GetString("status")
	assert.Equal(t, "Retired", status)
	date, ok := rec.GetDate("purchase_date")
	assert.True(t, ok)
	assert.Equal(t, types.NewDate(2024, time.March, 5), date)

	require.NoError(t, save.Wait())
	assert.Equal(t, "e-1", save.ID)
	calls := persist.Calls()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].fields.Equal(rec))
	assert.Equal(t, []string{"name", "weight", "quantity", "status", "purchase_date"}, ed.ChangedFields())
}

func TestCommitKeepsPriorValueOnInvalidInput(t *testing.T) {
	ed := New(equipmentSpec(), equipmentRecord(), &fakePersistence{})
	ctx := context.Background()

	_, err := ed.ToggleMode(ctx)
	require.NoError(t, err)
	require.NoError(t, ed.SetInput("weight", "heavy"))
	require.NoError(t, ed.SetInput("quantity", ""))
	require.NoError(t, ed.SetInput("status", "Lost"))
	require.NoError(t, ed.SetInput("purchase_date", "someday"))

	save, err := ed.ToggleMode(ctx)
	require.NoError(t, err)
	require.NoError(t, save.Wait())

	rec := ed.Record()
	weight, _ := rec.GetFloat64("weight")
	assert.InDelta(t, 10.0, weight, 1e-9)
	qty, _ := rec.GetInt("quantity")
	assert.Equal(t, 2, qty)
	status, _ := rec.GetString("status")
	assert.Equal(t, "Available", status)
	assert.False(t, rec.Has("purchase_date"))
	assert.Empty(t, ed.ChangedFields())
}

func TestCommitReturnsToViewBeforePersistFinishes(t *testing.T) {
	persist := &fakePersistence{gate: make(chan struct{})}
	ed := New(equipmentSpec(), equipmentRecord(), persist)
	ctx := context.Background()

	_, err := ed.ToggleMode(ctx)
	require.NoError(t, err)
	save, err := ed.ToggleMode(ctx)
	require.NoError(t, err)

	assert.Equal(t, types.ModeView, ed.Mode())
	select {
	case <-save.Done():
		t.Fatal("save finished before persistence returned")
	default:
	}

	close(persist.gate)
	require.NoError(t, save.Wait())
	require.NoError(t, ed.Wait())
}

func TestPersistFailureNotifiesAndKeepsLocalValues(t *testing.T) {
	boom := errors.New("timeout")
	persist := &fakePersistence{err: boom}
	notices := &noticeLog{}
	obs := &observerLog{}
	ed := New(equipmentSpec(), equipmentRecord(), persist, WithNotifier(notices), WithObserver(obs))
	ctx := context.Background()

	_, err := ed.ToggleMode(ctx)
	require.NoError(t, err)
	require.NoError(t, ed.SetInput("name", "Wash"))
	save, err := ed.ToggleMode(ctx)
	require.NoError(t, err)

	assert.ErrorIs(t, save.Wait(), boom)
	assert.ErrorIs(t, ed.Wait(), boom)

	name, _ := ed.Record().GetString("name")
	assert.Equal(t, "Wash", name)
	assert.Equal(t, types.ModeView, ed.Mode())

	got := notices.All()
	require.Len(t, got, 1)
	assert.Equal(t, types.NoticeError, got[0].Level)
	assert.Contains(t, got[0].Message, "timeout")

	require.Len(t, obs.errs, 1)
	assert.ErrorIs(t, obs.errs[0], boom)
}

func TestCommitWithoutIDSkipsPersistence(t *testing.T) {
	persist := &fakePersistence{}
	notices := &noticeLog{}
	rec := equipmentRecord()
	rec.Delete("id")
	ed := New(equipmentSpec(), rec, persist, WithNotifier(notices))
	ctx := context.Background()

	_, err := ed.ToggleMode(ctx)
	require.NoError(t, err)
	save, err := ed.ToggleMode(ctx)
	require.NoError(t, err)

	assert.ErrorIs(t, save.Wait(), types.ErrMissingID)
	assert.Empty(t, persist.Calls())
	got := notices.All()
	require.Len(t, got, 1)
	assert.Equal(t, types.NoticeWarning, got[0].Level)
}

func TestSetInputErrors(t *testing.T) {
	ed := New(equipmentSpec(), equipmentRecord(), &fakePersistence{})

	assert.ErrorIs(t, ed.SetInput("name", "x"), types.ErrNotEditing)

	_, err := ed.ToggleMode(context.Background())
	require.NoError(t, err)
	assert.ErrorIs(t, ed.SetInput("id", "e-2"), types.ErrUnknownField)
	assert.ErrorIs(t, ed.SetInput("created_at", "now"), types.ErrUnknownField)
	assert.ErrorIs(t, ed.SetInput("colour", "red"), types.ErrUnknownField)

	text, ok := ed.Input("name")
	assert.True(t, ok)
	assert.Equal(t, "Lyre", text)
}

func TestCommitInViewMode(t *testing.T) {
	ed := New(equipmentSpec(), equipmentRecord(), &fakePersistence{})
	_, err := ed.Commit(context.Background())
	assert.ErrorIs(t, err, types.ErrNotEditing)
	assert.ErrorIs(t, ed.Merge(), types.ErrNotEditing)
	assert.ErrorIs(t, ed.Discard(), types.ErrNotEditing)
}

func TestDiscardLeavesRecordUntouched(t *testing.T) {
	persist := &fakePersistence{}
	ed := New(equipmentSpec(), equipmentRecord(), persist)

	_, err := ed.ToggleMode(context.Background())
	require.NoError(t, err)
	require.NoError(t, ed.SetInput("name", "Wash"))
	require.NoError(t, ed.Discard())

	assert.Equal(t, types.ModeView, ed.Mode())
	assert.Nil(t, ed.Inputs())
	assert.True(t, ed.Record().Equal(equipmentRecord()))
	require.NoError(t, ed.Wait())
	assert.Empty(t, persist.Calls())
}

func TestMergeAppliesWithoutPersisting(t *testing.T) {
	persist := &fakePersistence{}
	ed := New(equipmentSpec(), equipmentRecord(), persist)

	_, err := ed.ToggleMode(context.Background())
	require.NoError(t, err)
	require.NoError(t, ed.SetInput("weight", "11"))
	require.NoError(t, ed.Merge())

	assert.Equal(t, types.ModeView, ed.Mode())
	weight, _ := ed.Record().GetFloat64("weight")
	assert.InDelta(t, 11.0, weight, 1e-9)
	assert.Equal(t, []string{"weight"}, ed.ChangedFields())
	require.NoError(t, ed.Wait())
	assert.Empty(t, persist.Calls())
}
