package pftracker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"portfolio/internal/models/pfresolver"
	"portfolio/internal/models/pfvisitors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)

type fixedSource struct {
	ip  string
	err error
}

func (s fixedSource) IP(_ context.Context, _ pfresolver.Caller) (string, error) {
	return s.ip, s.err
}

type countingLocator struct {
	geo   pfvisitors.Geo
	err   error
	calls int32
}

func (l *countingLocator) Locate(_ context.Context, _ string) (pfvisitors.Geo, error) {
	atomic.AddInt32(&l.calls, 1)
	return l.geo, l.err
}

// countingLedger compte les appels et délègue à un registre réel si fourni
type countingLedger struct {
	pfvisitors.Ledger
	finds, inserts, touches int32
	findErr, insertErr      error
	touchErr                error
}

func (l *countingLedger) Find(ctx context.Context, ip string) (*pfvisitors.Visitor, error) {
	atomic.AddInt32(&l.finds, 1)
	if l.findErr != nil {
		return nil, l.findErr
	}
	return l.Ledger.Find(ctx, ip)
}

func (l *countingLedger) Insert(ctx context.Context, ip string, geo pfvisitors.Geo, at time.Time) error {
	atomic.AddInt32(&l.inserts, 1)
	if l.insertErr != nil {
		return l.insertErr
	}
	return l.Ledger.Insert(ctx, ip, geo, at)
}

func (l *countingLedger) Touch(ctx context.Context, ip string, at time.Time) error {
	atomic.AddInt32(&l.touches, 1)
	if l.touchErr != nil {
		return l.touchErr
	}
	return l.Ledger.Touch(ctx, ip, at)
}

func setupLedger(t *testing.T) *pfvisitors.GormLedger {
	db, err := pfvisitors.OpenGorm("sqlite", filepath.Join(t.TempDir(), "visitors.db"), "silent")
	require.NoError(t, err)
	ledger := pfvisitors.NewGormLedger(db)
	require.NoError(t, ledger.Ensure(context.Background()))
	t.Cleanup(func() { ledger.Close() })
	return ledger
}

func newTracker(source pfresolver.IPSource, locator pfresolver.Locator, ledger pfvisitors.Ledger, clock *time.Time) *Tracker {
	tracker := New(pfresolver.New(source, locator), ledger, 0)
	tracker.now = func() time.Time { return *clock }
	return tracker
}

func strPtr(s string) *string { return &s }

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "new", New.String())
	assert.Equal(t, "updated", Updated.String())
	assert.Equal(t, "skipped", Skipped.String())
	assert.Equal(t, "waiting", Waiting.String())
	assert.Equal(t, "error", Error.String())

	text, err := Updated.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "updated", string(text))
}

func TestTrackFirstVisit(t *testing.T) {
	ctx := context.Background()
	ledger := setupLedger(t)
	clock := t0
	locator := &countingLocator{geo: pfvisitors.Geo{City: strPtr("Pune")}}
	tracker := newTracker(fixedSource{ip: "1.2.3.4"}, locator, ledger, &clock)

	res := tracker.Track(ctx, pfresolver.Caller{})
	assert.Equal(t, New, res.Outcome)
	assert.Equal(t, "1.2.3.4", res.IP)
	assert.NoError(t, res.Err)

	visitor, err := ledger.Find(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, 1, visitor.VisitCount)
	assert.True(t, visitor.FirstVisit.Equal(t0))
	assert.True(t, visitor.LastVisit.Equal(t0))
	assert.Equal(t, map[string]any{"city": "Pune"}, visitor.Geo.Fields())
}

func TestTrackCooldown(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		want    Outcome
		count   int
	}{
		{"inside window", 10 * time.Minute, Skipped, 1},
		{"just before", 3*time.Hour + 59*time.Minute, Skipped, 1},
		{"exactly four hours", 4 * time.Hour, Skipped, 1},
		{"just after", 4*time.Hour + time.Minute, Updated, 2},
		{"next day", 26 * time.Hour, Updated, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			ledger := setupLedger(t)
			clock := t0
			locator := &countingLocator{}
			tracker := newTracker(fixedSource{ip: "5.6.7.8"}, locator, ledger, &clock)

			require.Equal(t, New, tracker.Track(ctx, pfresolver.Caller{}).Outcome)

			clock = t0.Add(tt.elapsed)
			assert.Equal(t, tt.want, tracker.Track(ctx, pfresolver.Caller{}).Outcome)

			visitor, err := ledger.Find(ctx, "5.6.7.8")
			require.NoError(t, err)
			assert.Equal(t, tt.count, visitor.VisitCount)
			assert.True(t, visitor.FirstVisit.Equal(t0))
			if tt.want == Updated {
				assert.True(t, visitor.LastVisit.Equal(clock))
			} else {
				assert.True(t, visitor.LastVisit.Equal(t0))
			}
			// la géolocalisation n'est demandée qu'à la création
			assert.EqualValues(t, 1, atomic.LoadInt32(&locator.calls))
		})
	}
}

func TestTrackCustomCooldown(t *testing.T) {
	ctx := context.Background()
	ledger := setupLedger(t)
	clock := t0
	tracker := New(pfresolver.New(fixedSource{ip: "5.6.7.8"}, &countingLocator{}), ledger, 30*time.Minute)
	tracker.now = func() time.Time { return clock }

	require.Equal(t, New, tracker.Track(ctx, pfresolver.Caller{}).Outcome)
	clock = t0.Add(31 * time.Minute)
	assert.Equal(t, Updated, tracker.Track(ctx, pfresolver.Caller{}).Outcome)
}

func TestTrackPendingTouchesNothing(t *testing.T) {
	ledger := &countingLedger{}
	locator := &countingLocator{}
	clock := t0
	tracker := newTracker(fixedSource{err: pfresolver.ErrPending}, locator, ledger, &clock)

	res := tracker.Track(context.Background(), pfresolver.Caller{})
	assert.Equal(t, Waiting, res.Outcome)
	assert.NoError(t, res.Err)
	assert.Zero(t, ledger.finds+ledger.inserts+ledger.touches)
	assert.Zero(t, locator.calls)
}

func TestTrackResolutionFailure(t *testing.T) {
	ledger := &countingLedger{}
	clock := t0
	failure := errors.Join(pfresolver.ErrResolution, errors.New("ip service returned status 502"))
	tracker := newTracker(fixedSource{err: failure}, &countingLocator{}, ledger, &clock)

	res := tracker.Track(context.Background(), pfresolver.Caller{})
	assert.Equal(t, Error, res.Outcome)
	assert.ErrorIs(t, res.Err, pfresolver.ErrResolution)
	assert.Zero(t, ledger.finds)
}

func TestTrackGeoFailureInsertsNothing(t *testing.T) {
	ctx := context.Background()
	ledger := &countingLedger{Ledger: setupLedger(t)}
	clock := t0
	locator := &countingLocator{err: pfresolver.ErrResolution}
	tracker := newTracker(fixedSource{ip: "1.2.3.4"}, locator, ledger, &clock)

	res := tracker.Track(ctx, pfresolver.Caller{})
	assert.Equal(t, Error, res.Outcome)
	assert.Zero(t, ledger.inserts)

	_, err := ledger.Find(ctx, "1.2.3.4")
	assert.ErrorIs(t, err, pfvisitors.ErrNotFound)
}

func TestTrackStorageFailure(t *testing.T) {
	clock := t0
	storage := errors.New("connection refused")
	ledger := &countingLedger{findErr: storage}
	tracker := newTracker(fixedSource{ip: "1.2.3.4"}, &countingLocator{}, ledger, &clock)

	res := tracker.Track(context.Background(), pfresolver.Caller{})
	assert.Equal(t, Error, res.Outcome)
	assert.ErrorIs(t, res.Err, storage)
	assert.Zero(t, ledger.inserts+ledger.touches)
}

func TestTrackLostRaces(t *testing.T) {
	ctx := context.Background()

	t.Run("duplicate insert", func(t *testing.T) {
		clock := t0
		ledger := &countingLedger{Ledger: setupLedger(t), insertErr: pfvisitors.ErrDuplicate}
		tracker := newTracker(fixedSource{ip: "1.2.3.4"}, &countingLocator{}, ledger, &clock)
		assert.Equal(t, Skipped, tracker.Track(ctx, pfresolver.Caller{}).Outcome)
	})

	t.Run("record vanished before touch", func(t *testing.T) {
		clock := t0
		inner := setupLedger(t)
		require.NoError(t, inner.Insert(ctx, "1.2.3.4", pfvisitors.Geo{}, t0))
		ledger := &countingLedger{Ledger: inner, touchErr: pfvisitors.ErrNotFound}
		tracker := newTracker(fixedSource{ip: "1.2.3.4"}, &countingLocator{}, ledger, &clock)

		clock = t0.Add(5 * time.Hour)
		assert.Equal(t, Skipped, tracker.Track(ctx, pfresolver.Caller{}).Outcome)
		assert.EqualValues(t, 1, ledger.touches)
	})
}

func TestTrackEndToEnd(t *testing.T) {
	ctx := context.Background()
	var geoCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&geoCalls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"city":"Pune","region":"Maharashtra","country":"IN","latitude":18.52,"longitude":73.85,"org":"Example ISP"}`))
	}))
	defer srv.Close()

	ledger := setupLedger(t)
	clock := t0
	tracker := newTracker(pfresolver.BeaconSource{}, pfresolver.NewHTTPLocator(srv.Client(), srv.URL+"/%s/json/"), ledger, &clock)
	caller := pfresolver.Caller{ReportedIP: "1.2.3.4"}

	// rendu de page sans IP : rien n'est écrit
	assert.Equal(t, Waiting, tracker.Track(ctx, pfresolver.Caller{}).Outcome)

	assert.Equal(t, New, tracker.Track(ctx, caller).Outcome)

	clock = t0.Add(10 * time.Minute)
	assert.Equal(t, Skipped, tracker.Track(ctx, caller).Outcome)

	clock = t0.Add(5 * time.Hour)
	assert.Equal(t, Updated, tracker.Track(ctx, caller).Outcome)

	visitor, err := ledger.Find(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, 2, visitor.VisitCount)
	assert.True(t, visitor.FirstVisit.Equal(t0))
	assert.True(t, visitor.LastVisit.Equal(t0.Add(5*time.Hour)))
	assert.Equal(t, map[string]any{
		"city":      "Pune",
		"region":    "Maharashtra",
		"country":   "IN",
		"latitude":  18.52,
		"longitude": 73.85,
	}, visitor.Geo.Fields())
	assert.EqualValues(t, 1, atomic.LoadInt32(&geoCalls))

	count, err := ledger.Count(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}
