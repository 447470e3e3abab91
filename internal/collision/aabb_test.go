package collision

import "testing"

func TestAABBOverlapsDetectsIntersection(t *testing.T) {
	a := NewAABB(0, 0, 10, 10)
	b := NewAABB(5, 5, 10, 10)
	if !a.Overlaps(b) {
		t.Fatal("expected overlapping boxes to report Overlaps true")
	}
}

func TestAABBOverlapsFalseWhenSeparated(t *testing.T) {
	a := NewAABB(0, 0, 10, 10)
	b := NewAABB(20, 20, 10, 10)
	if a.Overlaps(b) {
		t.Fatal("expected separated boxes to report Overlaps false")
	}
}

func TestAABBContainsPoint(t *testing.T) {
	a := NewAABB(0, 0, 10, 10)
	if !a.Contains(5, 5) {
		t.Fatal("expected (5,5) to be contained in [0,10)x[0,10)")
	}
	if a.Contains(10, 10) {
		t.Fatal("expected the box's far edge to be exclusive")
	}
}

func TestAABBCenter(t *testing.T) {
	a := NewAABB(0, 0, 10, 20)
	x, y := a.Center()
	if x != 5 || y != 10 {
		t.Fatalf("Center() = (%v, %v), want (5, 10)", x, y)
	}
}

func TestAABBPenetrationZeroWhenNotOverlapping(t *testing.T) {
	a := NewAABB(0, 0, 10, 10)
	b := NewAABB(20, 20, 10, 10)
	dx, dy := a.Penetration(b)
	if dx != 0 || dy != 0 {
		t.Fatalf("Penetration() = (%v, %v), want (0, 0) for non-overlapping boxes", dx, dy)
	}
}

func TestAABBPenetrationPicksSmallerAxis(t *testing.T) {
	a := NewAABB(0, 0, 10, 10)
	b := NewAABB(8, 2, 10, 10)
	dx, dy := a.Penetration(b)
	if dy != 0 {
		t.Fatalf("Penetration() dy = %v, want 0 (x is the smaller overlap axis)", dy)
	}
	if dx <= 0 {
		t.Fatalf("Penetration() dx = %v, want positive (a's right edge resolves against b)", dx)
	}
}
