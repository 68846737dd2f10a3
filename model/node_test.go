package model

import (
	"math"
	"testing"
)

func TestTierFromActiveUsers(t *testing.T) {
	cases := []struct {
		users float64
		want  LoadTier
	}{
		{0, TierLight},
		{500, TierLight},
		{501, TierModerate},
		{1499, TierModerate},
		{1500, TierHeavy},
		{2000, TierHeavy},
	}
	for _, c := range cases {
		if got := TierFromActiveUsers(c.users); got != c.want {
			t.Errorf("TierFromActiveUsers(%v) = %v, want %v", c.users, got, c.want)
		}
	}
}

func TestPenaltyMs(t *testing.T) {
	if got := TierLight.PenaltyMs(); got != 10 {
		t.Errorf("light penalty = %v, want 10", got)
	}
	if got := TierModerate.PenaltyMs(); got != 100 {
		t.Errorf("moderate penalty = %v, want 100", got)
	}
	if got := TierHeavy.PenaltyMs(); got != 500 {
		t.Errorf("heavy penalty = %v, want 500", got)
	}
	if got := LoadTier(0).PenaltyMs(); got != 0 {
		t.Errorf("unknown tier penalty = %v, want 0", got)
	}
}

func TestQuantizePlane(t *testing.T) {
	a := QuantizePlane(53.02, 204.9)
	b := QuantizePlane(53.04, 197.2)
	if a != b {
		t.Errorf("nearby elements should share a plane: %+v vs %+v", a, b)
	}

	c := QuantizePlane(53.02, 212.0)
	if a == c {
		t.Errorf("distinct RAAN buckets should split planes: %+v vs %+v", a, c)
	}

	if got := QuantizePlane(53.0, 200.0); got.InclinationDeciDeg != 530 || got.RAANBucketDeg != 200 {
		t.Errorf("QuantizePlane(53, 200) = %+v", got)
	}
}

func TestVec3(t *testing.T) {
	a := Vec3{X: 3, Y: 4, Z: 0}
	if got := a.Norm(); got != 5 {
		t.Errorf("Norm = %v, want 5", got)
	}
	b := Vec3{X: 3, Y: 0, Z: 0}
	if got := a.DistanceTo(b); got != 4 {
		t.Errorf("DistanceTo = %v, want 4", got)
	}
	if !a.IsValid() {
		t.Errorf("finite vector reported invalid")
	}
	if (Vec3{X: math.NaN()}).IsValid() {
		t.Errorf("NaN vector reported valid")
	}
	if (Vec3{X: math.Inf(1)}).IsValid() {
		t.Errorf("Inf vector reported valid")
	}
}
