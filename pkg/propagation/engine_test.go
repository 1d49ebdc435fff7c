package propagation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/mesh-intelligence/magsav/pkg/projection"
	"github.com/mesh-intelligence/magsav/pkg/types"
)

// memStore is an in-memory Directory and Persistence.
type memStore struct {
	mu        sync.Mutex
	records   map[string]types.Record
	order     []string
	fail      map[string]error
	lookupErr error
	lookups   int
	updates   []string
	delay     time.Duration
	inFlight  atomic.Int32
	maxFlight atomic.Int32
}

func newMemStore(recs ...types.Record) *memStore {
	m := &memStore{records: make(map[string]types.Record), fail: make(map[string]error)}
	for _, r := range recs {
		id, _ := r.GetString("id")
		m.records[id] = r.Clone()
		m.order = append(m.order, id)
	}
	return m
}

func (m *memStore) FindMatching(_ context.Context, kind types.Kind, c types.MatchCriterion) ([]types.RecordSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	var out []types.RecordSummary
	for _, id := range m.order {
		if rec := m.records[id]; c.Matches(rec) {
			out = append(out, types.RecordSummary{ID: id, Kind: kind, Fields: rec.Clone()})
		}
	}
	return out, nil
}

func (m *memStore) Update(_ context.Context, id string, fields types.Record) error {
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		cur := m.maxFlight.Load()
		if n <= cur || m.maxFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, id)
	if err := m.fail[id]; err != nil {
		return err
	}
	rec, ok := m.records[id]
	if !ok {
		return types.ErrNotFound
	}
	for _, k := range fields.Keys() {
		if k == "id" {
			continue
		}
		v, _ := fields.Raw(k)
		rec.Set(k, v)
	}
	m.records[id] = rec
	return nil
}

func (m *memStore) get(id string) types.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[id].Clone()
}

func (m *memStore) field(id, key string) string {
	s, _ := m.get(id).GetString(key)
	return s
}

type countingInvalidator struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (c *countingInvalidator) Invalidate(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = append(c.keys, key)
	return c.err
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

func (n *noticeLog) levels() []types.NoticeLevel {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []types.NoticeLevel
	for _, x := range n.notices {
		out = append(out, x.Level)
	}
	return out
}

type observerLog struct {
	mu            sync.Mutex
	updates       int
	invalidations int
	batches       []types.BulkUpdateResult
}

func (o *observerLog) RecordUpdated(types.Kind, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.updates++
}

func (o *observerLog) CacheInvalidated(types.Kind, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.invalidations++
}

func (o *observerLog) BatchFinished(res types.BulkUpdateResult, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.batches = append(o.batches, res)
}

var approveAll = types.ConfirmerFunc(func(context.Context, types.ConfirmRequest) (bool, error) {
	return true, nil
})

// newTestEngine returns an engine over store whose confirmer approves every
// batch. Later options override it.
func newTestEngine(store *memStore, opts ...Option) *Engine {
	return New(store, store, append([]Option{WithConfirmer(approveAll)}, opts...)...)
}

func widget(id, code, owner string) types.Record {
	return types.RecordFromPairs(
		types.P("id", id),
		types.P("name", "Widget"),
		types.P("code", code),
		types.P("owner", owner),
	)
}

func widgetStore() *memStore {
	return newMemStore(
		widget("w1", "W-1", "Alice"),
		widget("w2", "W-2", "Carol"),
		widget("w3", "W-3", "Dave"),
		types.RecordFromPairs(types.P("id", "g1"), types.P("name", "Gadget"), types.P("owner", "Eve")),
	)
}

func widgetRequest() Request {
	edited := widget("", "W-1", "Bob")
	edited.Delete("id")
	edited.Set("location", types.String("Depot"))
	return Request{
		Kind:      types.KindEquipment,
		Edited:    edited,
		Criterion: types.MatchCriterion{Field: "name", Value: "Widget"},
		Policy:    projection.New("id", "code", "owner"),
	}
}

func TestPropagateWithoutConfirmerDeclines(t *testing.T) {
	store := widgetStore()
	res := New(store, store).Propagate(context.Background(), widgetRequest())

	assert.Equal(t, types.OutcomeDeclined, res.Outcome)
	assert.ErrorIs(t, res.Err, types.ErrDeclined)
	assert.Equal(t, 0, res.Attempted)
	assert.Empty(t, store.updates)
	assert.Equal(t, "Alice", store.field("w1", "owner"))
}

func TestPropagateWithoutConfirmerAppliesToSelf(t *testing.T) {
	store := newMemStore(widget("w1", "W-1", "Alice"))
	req := widgetRequest()
	req.OriginID = "w1"
	req.Criterion = types.MatchCriterion{Field: "name", Value: "Sprocket"}

	res := New(store, store).Propagate(context.Background(), req)

	assert.Equal(t, types.OutcomeAppliedToSelf, res.Outcome)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, "Bob", store.field("w1", "owner"))
}

func TestPropagateKeepsInstanceUniqueFields(t *testing.T) {
	store := widgetStore()
	eng := newTestEngine(store)

	res := eng.Propagate(context.Background(), widgetRequest())

	assert.Equal(t, types.OutcomeApplied, res.Outcome)
	assert.Equal(t, 3, res.Attempted)
	assert.Equal(t, 3, res.Succeeded)
	assert.Empty(t, res.Failures)
	assert.True(t, res.Consistent())

	assert.Equal(t, "Alice", store.field("w1", "owner"))
	assert.Equal(t, "Carol", store.field("w2", "owner"))
	assert.Equal(t, "Dave", store.field("w3", "owner"))
	assert.Equal(t, "W-2", store.field("w2", "code"))
	for _, id := range []string{"w1", "w2", "w3"} {
		assert.Equal(t, "Depot", store.field(id, "location"), id)
	}
	assert.Empty(t, store.field("g1", "location"))
}

func TestPropagateOriginGetsFullRecord(t *testing.T) {
	store := widgetStore()
	eng := newTestEngine(store)
	req := widgetRequest()
	req.OriginID = "w1"

	res := eng.Propagate(context.Background(), req)

	require.Equal(t, 3, res.Succeeded)
	assert.Equal(t, "Bob", store.field("w1", "owner"))
	assert.Equal(t, "Carol", store.field("w2", "owner"))
}

func TestPropagateRefusesEmptyCriterion(t *testing.T) {
	store := widgetStore()
	notices := &noticeLog{}
	eng := newTestEngine(store, WithNotifier(notices))
	req := widgetRequest()
	req.Criterion = types.MatchCriterion{Field: "code", Value: ""}
	req.ArtifactKey = "photo.jpg"

	res := eng.Propagate(context.Background(), req)

	assert.Equal(t, types.OutcomeRefusedEmptyCriterion, res.Outcome)
	assert.Equal(t, 0, res.Attempted)
	assert.ErrorIs(t, res.Err, types.ErrEmptyCriterion)
	assert.Equal(t, 0, store.lookups)
	assert.Empty(t, store.updates)
	assert.Equal(t, []types.NoticeLevel{types.NoticeWarning}, notices.levels())
}

func TestPropagatePartialFailureInvalidatesOnce(t *testing.T) {
	store := widgetStore()
	store.fail["w3"] = errors.New("timeout")
	inv := &countingInvalidator{}
	notices := &noticeLog{}
	eng := newTestEngine(store, WithInvalidator(inv), WithNotifier(notices))
	req := widgetRequest()
	req.ArtifactKey = "/photos/widget.jpg"

	res := eng.Propagate(context.Background(), req)

	assert.Equal(t, 3, res.Attempted)
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, []types.Failure{{RecordID: "w3", Message: "timeout"}}, res.Failures)
	assert.True(t, res.Consistent())
	assert.Equal(t, []string{"/photos/widget.jpg"}, inv.keys)
	assert.True(t, res.Invalidated)
	assert.Equal(t, "Depot", store.field("w1", "location"))
	assert.Equal(t, []types.NoticeLevel{types.NoticeWarning}, notices.levels())
}

func TestPropagateNoMatchesAppliesToSelf(t *testing.T) {
	store := newMemStore(widget("w1", "W-1", "Alice"))
	eng := newTestEngine(store)
	req := widgetRequest()
	req.Criterion = types.MatchCriterion{Field: "name", Value: "Nothing"}
	req.OriginID = "w1"

	res := eng.Propagate(context.Background(), req)

	assert.Equal(t, types.OutcomeAppliedToSelf, res.Outcome)
	assert.Equal(t, 1, res.Attempted)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, []string{"w1"}, store.updates)
	assert.Equal(t, "Bob", store.field("w1", "owner"))
}

func TestPropagateNoMatchesWithoutOrigin(t *testing.T) {
	store := newMemStore()
	eng := newTestEngine(store)
	req := widgetRequest()

	res := eng.Propagate(context.Background(), req)

	assert.Equal(t, types.OutcomeAppliedToSelf, res.Outcome)
	assert.Equal(t, 1, res.Attempted)
	assert.Equal(t, 0, res.Succeeded)
	require.Len(t, res.Failures, 1)
	assert.True(t, res.Consistent())
	assert.Empty(t, store.updates)
}

func TestPropagateDeclined(t *testing.T) {
	store := widgetStore()
	inv := &countingInvalidator{}
	var asked types.ConfirmRequest
	confirm := types.ConfirmerFunc(func(_ context.Context, req types.ConfirmRequest) (bool, error) {
		asked = req
		return false, nil
	})
	eng := newTestEngine(store, WithConfirmer(confirm), WithInvalidator(inv))
	req := widgetRequest()
	req.ArtifactKey = "photo.jpg"

	res := eng.Propagate(context.Background(), req)

	assert.Equal(t, types.OutcomeDeclined, res.Outcome)
	assert.Equal(t, 0, res.Attempted)
	assert.ErrorIs(t, res.Err, types.ErrDeclined)
	assert.Equal(t, 3, asked.Count)
	assert.Empty(t, store.updates)
	assert.Empty(t, inv.keys)
}

func TestPropagateConfirmerError(t *testing.T) {
	store := widgetStore()
	boom := errors.New("stdin closed")
	confirm := types.ConfirmerFunc(func(context.Context, types.ConfirmRequest) (bool, error) {
		return true, boom
	})
	eng := newTestEngine(store, WithConfirmer(confirm))

	res := eng.Propagate(context.Background(), widgetRequest())

	assert.Equal(t, types.OutcomeDeclined, res.Outcome)
	assert.ErrorIs(t, res.Err, types.ErrDeclined)
	assert.ErrorIs(t, res.Err, boom)
	assert.Empty(t, store.updates)
}

func TestPropagateLookupFailure(t *testing.T) {
	store := widgetStore()
	store.lookupErr = errors.New("connection refused")
	notices := &noticeLog{}
	eng := newTestEngine(store, WithNotifier(notices))

	res := eng.Propagate(context.Background(), widgetRequest())

	assert.Equal(t, types.OutcomeLookupFailed, res.Outcome)
	assert.Equal(t, 0, res.Attempted)
	assert.True(t, res.Consistent())
	assert.ErrorIs(t, res.Err, store.lookupErr)
	assert.Equal(t, []types.NoticeLevel{types.NoticeError}, notices.levels())
}

func TestPropagateInvalidationFailureIsWarning(t *testing.T) {
	store := widgetStore()
	inv := &countingInvalidator{err: errors.New("redis down")}
	notices := &noticeLog{}
	eng := newTestEngine(store, WithInvalidator(inv), WithNotifier(notices))
	req := widgetRequest()
	req.ArtifactKey = "photo.jpg"

	res := eng.Propagate(context.Background(), req)

	assert.Equal(t, 3, res.Succeeded)
	assert.False(t, res.Invalidated)
	assert.Len(t, inv.keys, 1)
	assert.Equal(t, []types.NoticeLevel{types.NoticeWarning, types.NoticeInfo}, notices.levels())
}

func TestPropagateWithoutArtifactKeySkipsInvalidation(t *testing.T) {
	store := widgetStore()
	inv := &countingInvalidator{}
	eng := newTestEngine(store, WithInvalidator(inv))

	res := eng.Propagate(context.Background(), widgetRequest())

	assert.Equal(t, 3, res.Succeeded)
	assert.False(t, res.Invalidated)
	assert.Empty(t, inv.keys)
}

func TestPropagateBoundsConcurrency(t *testing.T) {
	var recs []types.Record
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		recs = append(recs, widget(id, "W-"+id, "x"))
	}
	store := newMemStore(recs...)
	store.delay = 5 * time.Millisecond
	eng := newTestEngine(store, WithConcurrency(2))

	res := eng.Propagate(context.Background(), widgetRequest())

	assert.Equal(t, 8, res.Succeeded)
	assert.LessOrEqual(t, store.maxFlight.Load(), int32(2))
}

func TestPropagateRateLimited(t *testing.T) {
	store := widgetStore()
	store.fail["w2"] = errors.New("conflict")
	eng := newTestEngine(store, WithRateLimit(rate.Limit(1000), 1), WithConcurrency(8))

	res := eng.Propagate(context.Background(), widgetRequest())

	assert.Equal(t, 3, res.Attempted)
	assert.Equal(t, 2, res.Succeeded)
	assert.True(t, res.Consistent())
}

func TestPropagateCancelledWhileRateLimited(t *testing.T) {
	store := widgetStore()
	eng := newTestEngine(store, WithRateLimit(rate.Limit(0.001), 1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := eng.Propagate(ctx, widgetRequest())

	assert.Equal(t, 3, res.Attempted)
	assert.Equal(t, 0, res.Succeeded)
	assert.Len(t, res.Failures, 3)
}

func TestPropagateObserver(t *testing.T) {
	store := widgetStore()
	store.fail["w1"] = errors.New("boom")
	obs := &observerLog{}
	eng := newTestEngine(store, WithObserver(obs), WithInvalidator(&countingInvalidator{}))
	req := widgetRequest()
	req.ArtifactKey = "k"

	res := eng.Propagate(context.Background(), req)

	assert.Equal(t, 3, obs.updates)
	assert.Equal(t, 1, obs.invalidations)
	require.Len(t, obs.batches, 1)
	assert.Equal(t, res.Outcome, obs.batches[0].Outcome)
	assert.Equal(t, 2, obs.batches[0].Succeeded)
}

func TestPropagateResultInvariant(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("succeeded plus failures equals attempted", prop.ForAll(
		func(failing []bool) bool {
			recs := make([]types.Record, len(failing))
			for i := range failing {
				id := fmt.Sprintf("r%d", i)
				recs[i] = widget(id, id, "x")
			}
			store := newMemStore(recs...)
			for i, f := range failing {
				if f {
					store.fail[fmt.Sprintf("r%d", i)] = errors.New("failed")
				}
			}
			res := newTestEngine(store).Propagate(context.Background(), widgetRequest())
			return res.Consistent() && res.Attempted == max(len(failing), 1)
		},
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}
