package core

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestResetSeedsIdentityDeformation(t *testing.T) {
	store := NewParticleStore(8)
	store.Reset(8, 64, CubeDistribution(10), Fluid, float32(math.Inf(1)))

	for i := 0; i < store.Count; i++ {
		if !store.Active[i] {
			t.Fatalf("particle %d inactive after Reset", i)
		}
		if store.F[i] != mgl32.Ident3() {
			t.Errorf("particle %d F = %v, want identity", i, store.F[i])
		}
		if store.C[i] != (mgl32.Mat3{}) {
			t.Errorf("particle %d C = %v, want zero", i, store.C[i])
		}
	}
}

func TestResetDeactivatesTail(t *testing.T) {
	store := NewParticleStore(10)
	store.Reset(4, 64, nil, Fluid, 1)
	for i := 4; i < 10; i++ {
		if store.Active[i] {
			t.Errorf("particle %d active, want inactive (n=4)", i)
		}
	}
	if store.Count != 4 {
		t.Errorf("Count = %d, want 4", store.Count)
	}
}

func TestLiveRespectsLifetime(t *testing.T) {
	store := NewParticleStore(1)
	store.Reset(1, 64, nil, Fluid, 1.0)
	store.Age[0] = 0.5
	if !store.Live(0) {
		t.Error("particle should be live before lifetime elapses")
	}
	store.Age[0] = 1.5
	if store.Live(0) {
		t.Error("particle should not be live after lifetime elapses")
	}
}

func TestKillMarksInactive(t *testing.T) {
	store := NewParticleStore(1)
	store.Reset(1, 64, nil, Fluid, 10)
	store.Kill(0)
	if store.Live(0) {
		t.Error("killed particle should not be live")
	}
}

func TestAttributeViewReadsThrough(t *testing.T) {
	store := NewParticleStore(2)
	store.Reset(2, 64, CubeDistribution(5), Sand, 10)
	view := store.AttributeView()
	if view.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", view.Len())
	}
	if view.Material(0) != Sand {
		t.Errorf("Material(0) = %v, want Sand", view.Material(0))
	}
	if !view.Active(0) {
		t.Error("Active(0) should be true")
	}
}
