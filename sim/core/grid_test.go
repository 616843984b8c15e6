package core

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestGridClearZeroesCells(t *testing.T) {
	g := NewGridStore(4)
	c := g.At(1, 1, 1)
	c.Mass = 5
	c.Momentum = mgl32.Vec3{1, 2, 3}
	g.Clear()
	if got := g.At(1, 1, 1); got.Mass != 0 || got.Momentum != (mgl32.Vec3{}) {
		t.Errorf("cell not cleared: %+v", got)
	}
}

func TestGridIndexRoundTrip(t *testing.T) {
	g := NewGridStore(8)
	for ix := 0; ix < 8; ix += 3 {
		for iy := 0; iy < 8; iy += 3 {
			for iz := 0; iz < 8; iz += 3 {
				if !g.InBounds(ix, iy, iz) {
					t.Fatalf("(%d,%d,%d) should be in bounds", ix, iy, iz)
				}
				g.At(ix, iy, iz).Mass = float32(ix + iy + iz)
			}
		}
	}
	if g.InBounds(8, 0, 0) || g.InBounds(-1, 0, 0) {
		t.Error("InBounds accepted out-of-range coordinate")
	}
}

func TestTotalMassAndMomentum(t *testing.T) {
	g := NewGridStore(4)
	g.At(0, 0, 0).Mass = 2
	g.At(1, 1, 1).Mass = 3
	g.At(0, 0, 0).Momentum = mgl32.Vec3{1, 0, 0}
	g.At(1, 1, 1).Momentum = mgl32.Vec3{0, 2, 0}

	if got := g.TotalMass(); got != 5 {
		t.Errorf("TotalMass() = %f, want 5", got)
	}
	want := mgl32.Vec3{1, 2, 0}
	if got := g.TotalMomentum(); got != want {
		t.Errorf("TotalMomentum() = %v, want %v", got, want)
	}
}

func TestEncodeDecodeFixedRoundTrip(t *testing.T) {
	v := float32(3.14159)
	encoded := EncodeFixed(v)
	decoded := DecodeFixed(encoded)
	if diff := decoded - v; diff > 1e-5 || diff < -1e-5 {
		t.Errorf("round trip = %f, want ~%f", decoded, v)
	}
}
