package orbit

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/leo-topology/model"
)

func issCatalog(t *testing.T) []TLE {
	t.Helper()
	catalog := strings.Join([]string{issName, issLine1, issLine2}, "\n")
	entries, err := ParseCatalog(context.Background(), strings.NewReader(catalog), nil)
	require.NoError(t, err)
	return entries
}

func TestSGP4Provider_StatesAt(t *testing.T) {
	ctx := context.Background()
	provider, err := NewSGP4Provider(ctx, issCatalog(t),
		WithLoadModel(func(string, time.Time) float64 { return 1234 }))
	require.NoError(t, err)
	require.Equal(t, 1, provider.Count())

	// Near the element-set epoch (2024 day 100.5).
	at := time.Date(2024, 4, 9, 12, 0, 0, 0, time.UTC)
	states := provider.StatesAt(ctx, at)
	require.Len(t, states, 1)

	st := states[0]
	require.Equal(t, "sat-25544", st.ID)
	require.Equal(t, issName, st.Name)
	require.Equal(t, model.QuantizePlane(51.64, 100.0), st.Plane)
	require.InDelta(t, 0.0, st.PhaseAngleDeg, 1e-9)
	require.Equal(t, 1234.0, st.ActiveUsers)

	// A LEO orbit: radius a few hundred km above the surface.
	mag := st.ECEF.Norm()
	require.Greater(t, mag, 6500.0)
	require.Less(t, mag, 7100.0)
	require.InDelta(t, mag-6371.0, st.Geodetic.AltKm, 1.0)
	require.LessOrEqual(t, st.Geodetic.LatDeg, 52.0)
	require.GreaterOrEqual(t, st.Geodetic.LatDeg, -52.0)
}

func TestSGP4Provider_BoundingBoxFilters(t *testing.T) {
	ctx := context.Background()

	// The ISS never reaches polar latitudes, so a polar box excludes it.
	provider, err := NewSGP4Provider(ctx, issCatalog(t),
		WithBoundingBox(BoundingBox{MinLatDeg: 80, MaxLatDeg: 90, MinLonDeg: -180, MaxLonDeg: 180}))
	require.NoError(t, err)

	states := provider.StatesAt(ctx, time.Date(2024, 4, 9, 12, 0, 0, 0, time.UTC))
	require.Empty(t, states)
}

func TestNewSGP4Provider_EmptyCatalog(t *testing.T) {
	_, err := NewSGP4Provider(context.Background(), nil)
	require.Error(t, err)
}

func TestNewSGP4Provider_SkipsInvalidEntry(t *testing.T) {
	entries := issCatalog(t)
	entries = append(entries, TLE{Name: "BAD", Line1: "1 bad", Line2: "2 bad"})

	provider, err := NewSGP4Provider(context.Background(), entries)
	require.NoError(t, err)
	require.Equal(t, 1, provider.Count())
}
