package core

import (
	"errors"
	"testing"

	"github.com/signalsfoundry/leo-topology/model"
)

func TestRegisterGroundStations_DefaultsAndIdempotency(t *testing.T) {
	r := NewRegistry(DefaultConfig())

	err := r.RegisterGroundStations([]model.GroundStationDefinition{
		{Name: "gs-a", LatDeg: 10, LonDeg: 20},
	})
	if err != nil {
		t.Fatalf("RegisterGroundStations: %v", err)
	}

	nodes := r.GroundNodes()
	if len(nodes) != 1 {
		t.Fatalf("ground node count = %d, want 1", len(nodes))
	}
	if nodes[0].Tier != model.TierLight {
		t.Errorf("default tier = %v, want TierLight", nodes[0].Tier)
	}
	if nodes[0].PenaltyMs != model.TierLight.PenaltyMs() {
		t.Errorf("penalty = %v, want %v", nodes[0].PenaltyMs, model.TierLight.PenaltyMs())
	}
	if nodes[0].ECEF.Norm() == 0 {
		t.Errorf("registration must derive an ECEF position")
	}

	// Re-registering the same name replaces, not duplicates.
	err = r.RegisterGroundStations([]model.GroundStationDefinition{
		{Name: "gs-a", LatDeg: 10, LonDeg: 20, Tier: model.TierHeavy},
	})
	if err != nil {
		t.Fatalf("RegisterGroundStations (second): %v", err)
	}
	nodes = r.GroundNodes()
	if len(nodes) != 1 {
		t.Fatalf("ground node count after re-register = %d, want 1", len(nodes))
	}
	if nodes[0].Tier != model.TierHeavy {
		t.Errorf("tier after re-register = %v, want TierHeavy", nodes[0].Tier)
	}
}

func TestRegisterGroundStations_EmptyName(t *testing.T) {
	r := NewRegistry(DefaultConfig())
	err := r.RegisterGroundStations([]model.GroundStationDefinition{{Name: ""}})
	if !errors.Is(err, ErrBadDefinition) {
		t.Fatalf("error = %v, want ErrBadDefinition", err)
	}
}

func TestRegisterUsers_EmptyID(t *testing.T) {
	r := NewRegistry(DefaultConfig())
	err := r.RegisterUsers([]model.UserDefinition{{ID: ""}})
	if !errors.Is(err, ErrBadDefinition) {
		t.Fatalf("error = %v, want ErrBadDefinition", err)
	}
}

func TestBeginTick_DerivesTier(t *testing.T) {
	r := NewRegistry(DefaultConfig())
	sats, dropped, err := r.beginTick([]model.SatelliteState{
		leoState("light", 200, 0, 0, 0, 200),
		leoState("moderate", 200, 90, 0, 2, 1000),
		leoState("heavy", 200, 180, 0, 4, 1800),
	})
	if err != nil {
		t.Fatalf("beginTick: %v", err)
	}
	if len(dropped) != 0 {
		t.Fatalf("dropped = %v, want none", dropped)
	}

	want := map[string]model.LoadTier{
		"light":    model.TierLight,
		"moderate": model.TierModerate,
		"heavy":    model.TierHeavy,
	}
	for _, n := range sats {
		if n.Tier != want[n.ID] {
			t.Errorf("tier of %s = %v, want %v", n.ID, n.Tier, want[n.ID])
		}
	}
}

func TestGroundNodes_SortedAcrossKinds(t *testing.T) {
	r := NewRegistry(DefaultConfig())
	if err := r.RegisterGroundStations([]model.GroundStationDefinition{
		{Name: "b-gs"}, {Name: "d-gs"},
	}); err != nil {
		t.Fatalf("RegisterGroundStations: %v", err)
	}
	if err := r.RegisterUsers([]model.UserDefinition{
		{ID: "a-user"}, {ID: "c-user"},
	}); err != nil {
		t.Fatalf("RegisterUsers: %v", err)
	}

	nodes := r.GroundNodes()
	got := make([]string, len(nodes))
	for i, n := range nodes {
		got[i] = n.ID
	}
	want := []string{"a-user", "b-gs", "c-user", "d-gs"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}
