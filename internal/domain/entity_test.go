package domain

import (
	"math"
	"testing"
)

func TestNewEntity_Defaults(t *testing.T) {
	e := NewEntity("alice", "Alice", "world-1")

	if e.Position != Origin() {
		t.Errorf("Position = %+v, want origin", e.Position)
	}
	if len(e.BodyParts) != len(DefaultBodyParts) {
		t.Errorf("BodyParts count = %d, want %d", len(e.BodyParts), len(DefaultBodyParts))
	}
	if len(e.Items) != 0 {
		t.Errorf("new entity has %d items, want empty inventory", len(e.Items))
	}
}

func TestEntity_Clone_NoAliasing(t *testing.T) {
	e := NewEntity("alice", "Alice", "world-1")
	e.AddItem(NewItemInstance("lantern", "a rusty lantern"))

	cp := e.Clone()
	cp.Position = Vec3{X: 9}
	cp.BodyParts[0] = "tail"
	cp.Items[0].AssetID = "sword"

	if e.Position.X != 0 {
		t.Error("clone position write leaked into original")
	}
	if e.BodyParts[0] != "head" {
		t.Error("clone body-part write leaked into original")
	}
	if e.Items[0].AssetID != "lantern" {
		t.Error("clone item write leaked into original")
	}
}

func TestEntity_Inventory(t *testing.T) {
	e := NewEntity("alice", "Alice", "world-1")
	item := NewItemInstance("lantern", "a rusty lantern")
	e.AddItem(item)

	if _, ok := e.FindItem(item.ID); !ok {
		t.Fatal("FindItem did not find just-added item")
	}

	removed, ok := e.RemoveItem(item.ID)
	if !ok {
		t.Fatal("RemoveItem failed for owned item")
	}
	if removed.ID != item.ID {
		t.Errorf("removed item ID = %q, want %q", removed.ID, item.ID)
	}
	if _, ok := e.RemoveItem(item.ID); ok {
		t.Error("RemoveItem succeeded twice for the same instance")
	}
}

func TestVec3_DistanceTo(t *testing.T) {
	tests := []struct {
		a, b     Vec3
		expected float64
	}{
		{Vec3{}, Vec3{X: 3, Y: 4}, 5},
		{Vec3{}, Vec3{X: 5, Z: 3}, math.Sqrt(34)},
		{Vec3{X: 1, Y: 2, Z: 3}, Vec3{X: 1, Y: 2, Z: 3}, 0},
		{Vec3{Z: -2}, Vec3{Z: 2}, 4},
	}

	for _, tt := range tests {
		got := tt.a.DistanceTo(tt.b)
		if math.Abs(got-tt.expected) > 1e-9 {
			t.Errorf("DistanceTo(%+v, %+v) = %v, want %v", tt.a, tt.b, got, tt.expected)
		}
	}
}

func TestVec3_IsFinite(t *testing.T) {
	if !(Vec3{X: 1, Y: -2, Z: 0.5}).IsFinite() {
		t.Error("finite vector reported as not finite")
	}
	if (Vec3{X: math.NaN()}).IsFinite() {
		t.Error("NaN coordinate reported as finite")
	}
	if (Vec3{Z: math.Inf(1)}).IsFinite() {
		t.Error("Inf coordinate reported as finite")
	}
}

func TestClassifySeverity(t *testing.T) {
	tests := []struct {
		err      error
		expected Severity
	}{
		{NewValidationError("volume", "not finite"), SeverityLow},
		{NewDomainError("item %s not in inventory", "x"), SeverityMedium},
		{NewOracleError("request failed", nil), SeverityHigh},
		{NewPersistenceError("append event", nil), SeverityHigh},
	}

	for _, tt := range tests {
		if got := ClassifySeverity(tt.err); got != tt.expected {
			t.Errorf("ClassifySeverity(%v) = %v, want %v", tt.err, got, tt.expected)
		}
	}
}
