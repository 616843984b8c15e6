package core

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestFalloffCurves(t *testing.T) {
	if v := Constant.Falloff(5, 10); v != 1 {
		t.Errorf("Constant.Falloff = %f, want 1", v)
	}
	if v := Linear.Falloff(0, 10); v != 1 {
		t.Errorf("Linear.Falloff(0) = %f, want 1", v)
	}
	if v := Linear.Falloff(10, 10); v != 0 {
		t.Errorf("Linear.Falloff(radius) = %f, want 0", v)
	}
	if v := Quadratic.Falloff(0, 10); v != 1 {
		t.Errorf("Quadratic.Falloff(0) = %f, want 1", v)
	}
	if v := SmoothStep.Falloff(0, 10); v != 1 {
		t.Errorf("SmoothStep.Falloff(0) = %f, want 1", v)
	}
	if v := SmoothStep.Falloff(10, 10); v != 0 {
		t.Errorf("SmoothStep.Falloff(radius) = %f, want 0", v)
	}
}

// TestAttractorSymmetry checks property 6: a single Attractor at the grid
// center applied to a symmetric pair of points produces opposite,
// equal-magnitude pulls (the discrete analogue of the spec's symmetric
// swarm test).
func TestAttractorSymmetry(t *testing.T) {
	f := NewFieldDescriptor()
	f.Kind = Attractor
	f.Position = mgl32.Vec3{32, 32, 32}
	f.Strength = 10
	f.Radius = 20
	f.Falloff = Linear

	a := mgl32.Vec3{32 + 5, 32, 32}
	b := mgl32.Vec3{32 - 5, 32, 32}

	va := f.Evaluate(a, 0, nil)
	vb := f.Evaluate(b, 0, nil)

	sum := va.Add(vb)
	if l := sum.Len(); l > 1e-4 {
		t.Errorf("asymmetric attractor response: va=%v vb=%v sum norm=%f", va, vb, l)
	}
}

func TestForceFieldRegistryTTL(t *testing.T) {
	r := NewForceFieldRegistry(1)
	f := NewFieldDescriptor()
	f.TTL = 1.0
	r.Set([]FieldDescriptor{f})

	r.Tick(0.6)
	if len(r.Fields) != 1 {
		t.Fatalf("field expired too early: %d remaining", len(r.Fields))
	}
	r.Tick(0.6)
	if len(r.Fields) != 0 {
		t.Fatalf("field did not expire after TTL: %d remaining", len(r.Fields))
	}
}

func TestForceFieldRegistrySetTruncates(t *testing.T) {
	r := NewForceFieldRegistry(1)
	fields := make([]FieldDescriptor, MaxForceFields+3)
	for i := range fields {
		fields[i] = NewFieldDescriptor()
	}
	r.Set(fields)
	if len(r.Fields) != MaxForceFields {
		t.Fatalf("Set did not truncate: got %d, want %d", len(r.Fields), MaxForceFields)
	}
}
