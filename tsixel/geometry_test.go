package tsixel

import (
	"image"
	"testing"
)

func TestDrawStateConversions(t *testing.T) {
	st := testState

	if cell := st.CellSize(); cell != image.Pt(10, 20) {
		t.Fatalf("CellSize() = %v", cell)
	}

	if pt := st.PtInPixels(image.Pt(3, 2)); pt != image.Pt(30, 40) {
		t.Errorf("PtInPixels = %v", pt)
	}
	if pt := st.PtInCells(image.Pt(31, 40)); pt != image.Pt(4, 2) {
		t.Errorf("PtInCells = %v", pt)
	}

	var zero DrawState
	if pt := zero.PtInCells(image.Pt(31, 40)); pt != (image.Point{}) {
		t.Errorf("PtInCells on zero state = %v", pt)
	}
}

func TestRoundPt(t *testing.T) {
	tests := []struct {
		in, want image.Point
	}{
		{image.Pt(60, 60), image.Pt(60, 60)},
		{image.Pt(400, 400), image.Pt(396, 396)},
		{image.Pt(400, 200), image.Pt(396, 198)},
		{image.Pt(10, 5), image.Pt(0, 0)},
		{image.Pt(0, 12), image.Pt(0, 0)},
	}

	for _, test := range tests {
		got := testState.RoundPt(test.in)
		if got != test.want {
			t.Errorf("RoundPt(%v) = %v, want %v", test.in, got, test.want)
		}
		if got.Y%SIXELHeight != 0 {
			t.Errorf("RoundPt(%v) = %v is not a multiple of %d", test.in, got, SIXELHeight)
		}
	}
}

func TestFitSize(t *testing.T) {
	tests := []struct {
		size, max, want image.Point
	}{
		{image.Pt(4, 4), image.Pt(400, 200), image.Pt(200, 200)},
		{image.Pt(8, 4), image.Pt(400, 400), image.Pt(400, 200)},
		{image.Pt(4, 8), image.Pt(400, 400), image.Pt(200, 400)},
		{image.Pt(0, 8), image.Pt(400, 400), image.Pt(0, 0)},
	}

	for _, test := range tests {
		got := fitSize(test.size, test.max)
		if got != test.want {
			t.Errorf("fitSize(%v, %v) = %v, want %v", test.size, test.max, got, test.want)
		}
		if got.X > test.max.X || got.Y > test.max.Y {
			t.Errorf("fitSize(%v, %v) = %v does not fit", test.size, test.max, got)
		}
	}
}
