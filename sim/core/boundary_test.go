package core

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestBoxSignedDistanceInsideOutside(t *testing.T) {
	b := DefaultBoundary(64)
	center := b.Center
	phiIn, _ := b.SignedDistance(center)
	if phiIn <= 0 {
		t.Errorf("center phi = %f, want > 0 (inside)", phiIn)
	}

	far := center.Add(mgl32.Vec3{1000, 0, 0})
	phiOut, _ := b.SignedDistance(far)
	if phiOut >= 0 {
		t.Errorf("far point phi = %f, want < 0 (outside)", phiOut)
	}
}

// TestReflectReversesNormalVelocity is a unit check supporting property 5
// (boundary containment / reflect sign flip): approaching a wall at
// negative normal velocity reflects to a non-negative normal velocity,
// scaled by restitution.
func TestReflectReversesNormalVelocity(t *testing.T) {
	b := DefaultBoundary(64)
	b.Restitution = 0.5
	b.Friction = 0
	n := mgl32.Vec3{1, 0, 0}
	v := mgl32.Vec3{-10, 0, 0}

	out, _ := b.Respond(v, n, b.Thickness-0.1, 0.01)
	vn := out.Dot(n)
	if vn < 0 {
		t.Errorf("post-reflect v.n = %f, want >= 0", vn)
	}
	want := float32(10 * 0.5)
	if diff := vn - want; diff > 1e-3 || diff < -1e-3 {
		t.Errorf("post-reflect v.n = %f, want %f (restitution-scaled)", vn, want)
	}
}

func TestClampZeroesNormalVelocity(t *testing.T) {
	b := DefaultBoundary(64)
	b.CollisionMode = Clamp
	b.Friction = 0
	n := mgl32.Vec3{0, 0, 1}
	v := mgl32.Vec3{1, 2, 5}

	out, _ := b.Respond(v, n, b.Thickness-0.1, 0.01)
	if vn := out.Dot(n); vn > 1e-5 {
		t.Errorf("post-clamp v.n = %f, want ~0", vn)
	}
}

func TestSphereSignedDistanceNormalPointsInward(t *testing.T) {
	b := BoundaryDescriptor{Kind: Sphere, Center: mgl32.Vec3{0, 0, 0}, Radius: 10}
	_, n := b.SignedDistance(mgl32.Vec3{9, 0, 0})
	if n.X() >= 0 {
		t.Errorf("sphere normal at (9,0,0) = %v, want inward (negative x)", n)
	}
}

func TestWrapPositionTeleportsOppositeFace(t *testing.T) {
	b := DefaultBoundary(64)
	b.CollisionMode = Wrap
	p := b.Center.Add(mgl32.Vec3{b.HalfExtents.X() + 1, 0, 0})
	wrapped := b.WrapPosition(p)
	if wrapped.X() >= b.Center.X() {
		t.Errorf("wrapped x = %f, want < center.x (%f)", wrapped.X(), b.Center.X())
	}
}
