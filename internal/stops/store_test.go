package stops_test

import (
	"encoding/json"
	"log/slog"
	"os"
	"testing"

	"github.com/UnknownOlympus/hermes/internal/metrics"
	"github.com/UnknownOlympus/hermes/internal/models"
	"github.com/UnknownOlympus/hermes/internal/stops"
	"github.com/UnknownOlympus/hermes/internal/storage"
	"github.com/UnknownOlympus/hermes/test/mocks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const namespace = "courier-1"

var logger = slog.New(slog.NewTextHandler(os.Stdout, nil))

func candidate(address string, lat, lng float64) models.AddressCandidate {
	return models.AddressCandidate{
		Address:     address,
		Coordinates: models.Coordinates{Latitude: lat, Longitude: lng},
	}
}

func newStore(t *testing.T, kv storage.KV) (*stops.Store, *metrics.Metrics) {
	t.Helper()
	appMetrics := metrics.NewMetrics(prometheus.NewRegistry())
	return stops.NewStore(kv, namespace, appMetrics, logger), appMetrics
}

func TestStore_AddStop(t *testing.T) {
	ctx := t.Context()

	t.Run("first stop gets order one", func(t *testing.T) {
		store, _ := newStore(t, storage.NewMemoryKV())

		stop := store.AddStop(ctx, candidate("Rua A", -23.5, -46.6))

		assert.NotEmpty(t, stop.ID)
		assert.Equal(t, 1, stop.Order)
		assert.Equal(t, models.StatusPending, stop.Status)
		assert.Equal(t, "Rua A", stop.Address)
	})

	t.Run("order is one above the maximum, gaps tolerated", func(t *testing.T) {
		kv := storage.NewMemoryKV()
		persisted, err := json.Marshal([]models.Stop{
			{ID: "a", Address: "A", Status: models.StatusPending, Order: 7},
			{ID: "b", Address: "B", Status: models.StatusCompleted, Order: 3},
		})
		require.NoError(t, err)
		require.NoError(t, kv.Set(ctx, namespace+"/stops", persisted))

		store, _ := newStore(t, kv)
		require.NoError(t, store.Load(ctx))

		stop := store.AddStop(ctx, candidate("Rua C", 1, 1))

		assert.Equal(t, 8, stop.Order)
		assert.Len(t, store.Stops(), 3)
	})

	t.Run("ids are unique", func(t *testing.T) {
		store, _ := newStore(t, storage.NewMemoryKV())

		seen := map[string]bool{}
		for range 20 {
			stop := store.AddStop(ctx, candidate("Rua", 0, 0))
			require.False(t, seen[stop.ID])
			seen[stop.ID] = true
		}
	})

	t.Run("persists on every mutation", func(t *testing.T) {
		kv := storage.NewMemoryKV()
		store, appMetrics := newStore(t, kv)

		stop := store.AddStop(ctx, candidate("Rua A", -23.5, -46.6))

		raw, err := kv.Get(ctx, namespace+"/stops")
		require.NoError(t, err)
		var persisted []models.Stop
		require.NoError(t, json.Unmarshal(raw, &persisted))
		assert.Equal(t, []models.Stop{stop}, persisted)
		assert.InDelta(t, 1, testutil.ToFloat64(appMetrics.Stops.WithLabelValues("pending")), 0)
	})
}

func TestStore_RemoveStop(t *testing.T) {
	ctx := t.Context()

	t.Run("unknown id leaves collection unchanged", func(t *testing.T) {
		store, _ := newStore(t, storage.NewMemoryKV())
		store.AddStop(ctx, candidate("A", 0, 1))
		second := store.AddStop(ctx, candidate("B", 0, 2))
		store.AddStop(ctx, candidate("C", 0, 3))
		_, err := store.ToggleStatus(ctx, second.ID)
		require.NoError(t, err)
		before := store.Stops()

		store.RemoveStop(ctx, "nonexistent-id")

		assert.Equal(t, before, store.Stops())
	})

	t.Run("removes by id", func(t *testing.T) {
		store, _ := newStore(t, storage.NewMemoryKV())
		first := store.AddStop(ctx, candidate("A", 0, 1))
		second := store.AddStop(ctx, candidate("B", 0, 2))

		store.RemoveStop(ctx, first.ID)
		store.RemoveStop(ctx, first.ID)

		assert.Equal(t, []models.Stop{second}, store.Stops())
	})
}

func TestStore_ToggleStatus(t *testing.T) {
	ctx := t.Context()
	store, _ := newStore(t, storage.NewMemoryKV())
	stop := store.AddStop(ctx, candidate("A", 0, 1))

	toggled, err := store.ToggleStatus(ctx, stop.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, toggled.Status)
	assert.Equal(t, stop.Order, toggled.Order)

	toggled, err = store.ToggleStatus(ctx, stop.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, toggled.Status)
	assert.Equal(t, stop.Order, toggled.Order)

	_, err = store.ToggleStatus(ctx, "missing")
	require.ErrorIs(t, err, models.ErrStopNotFound)
}

func TestStore_EditStop(t *testing.T) {
	ctx := t.Context()
	store, _ := newStore(t, storage.NewMemoryKV())
	store.AddStop(ctx, candidate("A", 0, 1))
	stop := store.AddStop(ctx, candidate("B", 0, 2))
	_, err := store.ToggleStatus(ctx, stop.ID)
	require.NoError(t, err)

	edited, err := store.EditStop(ctx, stop.ID, candidate("B corrected", 0, 2.5))

	require.NoError(t, err)
	assert.Equal(t, stop.ID, edited.ID)
	assert.Equal(t, "B corrected", edited.Address)
	assert.InDelta(t, 2.5, edited.Coordinates.Longitude, 0)
	assert.Equal(t, 2, edited.Order)
	assert.Equal(t, models.StatusCompleted, edited.Status)

	_, err = store.EditStop(ctx, "missing", candidate("X", 0, 0))
	require.ErrorIs(t, err, models.ErrStopNotFound)
}

func TestStore_Origin(t *testing.T) {
	ctx := t.Context()
	kv := storage.NewMemoryKV()
	store, _ := newStore(t, kv)
	origin := &models.Origin{Address: "Depot", Coordinates: models.Coordinates{Latitude: 1, Longitude: 2}}

	store.SetOrigin(ctx, origin)
	origin.Address = "mutated by caller"

	require.NotNil(t, store.Origin())
	assert.Equal(t, "Depot", store.Origin().Address)
	_, err := kv.Get(ctx, namespace+"/origin")
	require.NoError(t, err)

	store.SetOrigin(ctx, nil)

	assert.Nil(t, store.Origin())
	_, err = kv.Get(ctx, namespace+"/origin")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_ClearAll(t *testing.T) {
	ctx := t.Context()
	kv := storage.NewMemoryKV()
	store, _ := newStore(t, kv)
	store.AddStop(ctx, candidate("A", 0, 1))
	store.SetOrigin(ctx, &models.Origin{Address: "Depot"})

	store.ClearAll(ctx)

	assert.Empty(t, store.Stops())
	assert.Nil(t, store.Origin())

	reloaded, _ := newStore(t, kv)
	require.NoError(t, reloaded.Load(ctx))
	assert.Empty(t, reloaded.Stops())
	assert.Nil(t, reloaded.Origin())
}

func TestStore_Reorder(t *testing.T) {
	ctx := t.Context()

	t.Run("plan orders are written, missing stops keep theirs", func(t *testing.T) {
		store, _ := newStore(t, storage.NewMemoryKV())
		first := store.AddStop(ctx, candidate("A", 0, 1))
		second := store.AddStop(ctx, candidate("B", 0, 2))
		third := store.AddStop(ctx, candidate("C", 0, 3))

		snap, err := store.Reorder(ctx, func(current stops.Snapshot) ([]models.Stop, error) {
			assert.Len(t, current.Stops, 3)
			first.Order, second.Order = 2, 1
			return []models.Stop{first, second}, nil
		})

		require.NoError(t, err)
		orders := map[string]int{}
		for _, stop := range snap.Stops {
			orders[stop.ID] = stop.Order
		}
		assert.Equal(t, map[string]int{first.ID: 2, second.ID: 1, third.ID: 3}, orders)
		assert.Equal(t, snap.Stops, store.Stops())
	})

	t.Run("plan sees edits made before it runs", func(t *testing.T) {
		store, _ := newStore(t, storage.NewMemoryKV())
		stop := store.AddStop(ctx, candidate("A", 0, 1))
		_, err := store.EditStop(ctx, stop.ID, candidate("A2", 0, 9))
		require.NoError(t, err)

		_, err = store.Reorder(ctx, func(current stops.Snapshot) ([]models.Stop, error) {
			require.Len(t, current.Stops, 1)
			assert.InDelta(t, 9.0, current.Stops[0].Coordinates.Longitude, 1e-9)
			return current.Stops, nil
		})

		require.NoError(t, err)
	})

	t.Run("plan error leaves the collection untouched", func(t *testing.T) {
		kv := mocks.NewKV(t)
		kv.On("Set", mock.Anything, namespace+"/stops", mock.Anything).Return(nil).Once()
		store, _ := newStore(t, kv)
		stop := store.AddStop(ctx, candidate("A", 0, 1))

		snap, err := store.Reorder(ctx, func(stops.Snapshot) ([]models.Stop, error) {
			return nil, models.ErrNoOriginAvailable
		})

		require.ErrorIs(t, err, models.ErrNoOriginAvailable)
		assert.Equal(t, []models.Stop{stop}, snap.Stops)
		assert.Equal(t, []models.Stop{stop}, store.Stops())
	})
}

func TestStore_Load(t *testing.T) {
	ctx := t.Context()

	t.Run("round trip", func(t *testing.T) {
		kv := storage.NewMemoryKV()
		store, _ := newStore(t, kv)
		store.AddStop(ctx, candidate("A", 0, 1))
		store.SetOrigin(ctx, &models.Origin{Address: "Depot", Coordinates: models.Coordinates{Latitude: 3}})

		reloaded, _ := newStore(t, kv)
		require.NoError(t, reloaded.Load(ctx))

		assert.Equal(t, store.Snapshot(), reloaded.Snapshot())
	})

	t.Run("empty storage", func(t *testing.T) {
		store, _ := newStore(t, storage.NewMemoryKV())

		require.NoError(t, store.Load(ctx))

		assert.NotNil(t, store.Stops())
		assert.Empty(t, store.Stops())
		assert.Nil(t, store.Origin())
	})

	t.Run("corrupt data", func(t *testing.T) {
		kv := storage.NewMemoryKV()
		require.NoError(t, kv.Set(ctx, namespace+"/stops", []byte("{not json")))
		store, _ := newStore(t, kv)

		err := store.Load(ctx)

		require.ErrorContains(t, err, "failed to decode persisted stops")
	})

	t.Run("storage unavailable", func(t *testing.T) {
		kv := mocks.NewKV(t)
		kv.On("Get", ctx, namespace+"/stops").Return(nil, assert.AnError).Once()
		store, _ := newStore(t, kv)

		err := store.Load(ctx)

		require.ErrorIs(t, err, assert.AnError)
	})
}

func TestStore_PersistenceFailure(t *testing.T) {
	ctx := t.Context()
	kv := mocks.NewKV(t)
	kv.On("Set", mock.Anything, namespace+"/stops", mock.Anything).Return(assert.AnError).Once()
	store, appMetrics := newStore(t, kv)

	stop := store.AddStop(ctx, candidate("A", 0, 1))

	assert.Equal(t, []models.Stop{stop}, store.Stops(), "memory stays authoritative")
	assert.InDelta(t, 1, testutil.ToFloat64(appMetrics.PersistErrors), 0)
}

func TestStore_Subscribe(t *testing.T) {
	ctx := t.Context()
	store, _ := newStore(t, storage.NewMemoryKV())
	updates, unsubscribe := store.Subscribe()

	store.AddStop(ctx, candidate("A", 0, 1))
	store.AddStop(ctx, candidate("B", 0, 2))

	snap := <-updates
	assert.Len(t, snap.Stops, 2, "only the latest snapshot is kept")

	unsubscribe()
	unsubscribe()
	_, open := <-updates
	assert.False(t, open)

	store.AddStop(ctx, candidate("C", 0, 3))
}
