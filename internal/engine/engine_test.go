package engine

import (
	"testing"

	"github.com/soar/conductor/internal/catalog"
	"github.com/soar/conductor/internal/input"
	"github.com/soar/conductor/internal/mapping"
)

func buttonLoc(index int) mapping.Locator {
	return mapping.Locator{Device: 0, Kind: input.KindButton, Index: index}
}

func axisLoc(index int) mapping.Locator {
	return mapping.Locator{Device: 0, Kind: input.KindAxis, Index: index}
}

func hatLoc(index int) mapping.Locator {
	return mapping.Locator{Device: 0, Kind: input.KindHat, Index: index}
}

func buttonSample(index int, pressed bool) input.Sample {
	return input.Sample{Device: 0, Kind: input.KindButton, Index: index, Button: pressed}
}

func axisSample(index int, v float64) input.Sample {
	return input.Sample{Device: 0, Kind: input.KindAxis, Index: index, Axis: v}
}

func hatSample(index, x, y int) input.Sample {
	return input.Sample{Device: 0, Kind: input.KindHat, Index: index, Hat: input.HatState{X: x, Y: y}}
}

// feed runs one mapped sample through the engine.
func feed(e *Engine, t *mapping.Table, function string, s input.Sample) []Update {
	m, ok := t.Get(function)
	if !ok {
		panic("no mapping for " + function)
	}
	return e.Process(catalog.ByName(function), m, s)
}

func single(t *testing.T, ups []Update, want int) {
	t.Helper()
	if len(ups) != 1 {
		t.Fatalf("got %d updates, want 1: %v", len(ups), ups)
	}
	if ups[0].Value != want {
		t.Fatalf("value = %d, want %d", ups[0].Value, want)
	}
}

func none(t *testing.T, ups []Update) {
	t.Helper()
	if len(ups) != 0 {
		t.Fatalf("got unexpected updates: %v", ups)
	}
}

func TestMomentaryBothEdges(t *testing.T) {
	tbl := mapping.NewTable()
	tbl.Set("Horn", buttonLoc(3), false)
	e := New(tbl)

	single(t, feed(e, tbl, "Horn", buttonSample(3, true)), 1)
	none(t, feed(e, tbl, "Horn", buttonSample(3, true)))
	single(t, feed(e, tbl, "Horn", buttonSample(3, false)), 0)
	none(t, feed(e, tbl, "Horn", buttonSample(3, false)))
}

func TestMomentaryOnAxis(t *testing.T) {
	tbl := mapping.NewTable()
	tbl.Set("Bell", axisLoc(2), false)
	e := New(tbl)

	// Below the deadzone nothing happens, beyond it the function fires.
	none(t, feed(e, tbl, "Bell", axisSample(2, 0.5)))
	single(t, feed(e, tbl, "Bell", axisSample(2, 0.9)), 1)
	single(t, feed(e, tbl, "Bell", axisSample(2, 0.2)), 0)
	// Either axis direction counts as active.
	single(t, feed(e, tbl, "Bell", axisSample(2, -0.9)), 1)
}

func TestToggleRisingEdgeOnly(t *testing.T) {
	tbl := mapping.NewTable()
	tbl.Set("HEP Switch", buttonLoc(5), false)
	e := New(tbl)

	// Press, hold, release, press: exactly two emissions, both value 1.
	presses := []bool{false, true, true, false, true}
	var got []Update
	for _, p := range presses {
		got = append(got, feed(e, tbl, "HEP Switch", buttonSample(5, p))...)
	}
	if len(got) != 2 {
		t.Fatalf("got %d updates, want 2: %v", len(got), got)
	}
	for _, u := range got {
		if u.Value != 1 {
			t.Errorf("toggle emitted %d, want 1", u.Value)
		}
	}
}

func TestThreeWayCyclesOnButton(t *testing.T) {
	tbl := mapping.NewTable()
	tbl.Set("Headlight Front", buttonLoc(7), false)
	e := New(tbl)

	want := []int{1, 2, 0, 1}
	for _, w := range want {
		single(t, feed(e, tbl, "Headlight Front", buttonSample(7, true)), w)
		none(t, feed(e, tbl, "Headlight Front", buttonSample(7, false)))
	}
}

func TestFourWayCyclesModulo(t *testing.T) {
	tbl := mapping.NewTable()
	tbl.Set("Wiper Switch", buttonLoc(1), false)
	e := New(tbl)

	want := []int{1, 2, 3, 0, 1}
	for _, w := range want {
		single(t, feed(e, tbl, "Wiper Switch", buttonSample(1, true)), w)
		none(t, feed(e, tbl, "Wiper Switch", buttonSample(1, false)))
	}
}

func TestThreeWayWholeHatPositional(t *testing.T) {
	tbl := mapping.NewTable()
	tbl.Set("Headlight Front", hatLoc(0), false)
	e := New(tbl)

	single(t, feed(e, tbl, "Headlight Front", hatSample(0, 0, 1)), 2)
	single(t, feed(e, tbl, "Headlight Front", hatSample(0, 0, 0)), 1)
	single(t, feed(e, tbl, "Headlight Front", hatSample(0, 0, -1)), 0)
	// Repeating the same direction is silent.
	none(t, feed(e, tbl, "Headlight Front", hatSample(0, 0, -1)))
	// Diagonals resolve by the vertical component.
	single(t, feed(e, tbl, "Headlight Front", hatSample(0, 1, 1)), 2)
}

func TestFourWayWholeHatPositional(t *testing.T) {
	tbl := mapping.NewTable()
	tbl.Set("Wiper Switch", hatLoc(0), false)
	e := New(tbl)

	single(t, feed(e, tbl, "Wiper Switch", hatSample(0, 0, 1)), 2)
	single(t, feed(e, tbl, "Wiper Switch", hatSample(0, -1, 0)), 1)
	single(t, feed(e, tbl, "Wiper Switch", hatSample(0, 1, 0)), 3)
	single(t, feed(e, tbl, "Wiper Switch", hatSample(0, 0, -1)), 0)
}

func TestMultiwayOnAxisIsSilent(t *testing.T) {
	tbl := mapping.NewTable()
	tbl.Set("Headlight Front", axisLoc(0), false)
	e := New(tbl)

	none(t, feed(e, tbl, "Headlight Front", axisSample(0, 1)))
	none(t, feed(e, tbl, "Headlight Front", axisSample(0, -1)))
}

func TestNotchLaw(t *testing.T) {
	tbl := mapping.NewTable()
	tbl.Set(catalog.ThrottleLever, axisLoc(1), false)
	e := New(tbl)

	cases := []struct {
		axis float64
		want int
	}{
		{-1, 0},
		{-0.75, 1},
		{0, 4},
		{0.75, 7},
		{1, 8},
		{1.5, 8}, // out-of-range clamps
	}
	for _, c := range cases {
		ups := feed(e, tbl, catalog.ThrottleLever, axisSample(1, c.axis))
		single(t, ups, c.want)
	}
}

func TestLeverRepeatIsSilent(t *testing.T) {
	tbl := mapping.NewTable()
	tbl.Set(catalog.ThrottleLever, axisLoc(1), false)
	e := New(tbl)

	single(t, feed(e, tbl, catalog.ThrottleLever, axisSample(1, 0)), 4)
	// A small wiggle that lands in the same notch stays silent.
	none(t, feed(e, tbl, catalog.ThrottleLever, axisSample(1, 0.01)))
	single(t, feed(e, tbl, catalog.ThrottleLever, axisSample(1, 0.2)), 5)
}

func TestReverserLaw(t *testing.T) {
	tbl := mapping.NewTable()
	tbl.Set(catalog.ReverserLever, axisLoc(0), false)

	cases := []struct {
		axis float64
		want int
	}{
		{-1, 0},
		{-0.81, 0},
		{-0.8, 127}, // boundary stays neutral
		{0, 127},
		{0.8, 127},
		{0.81, 255},
		{1, 255},
	}
	for _, c := range cases {
		e2 := New(tbl) // fresh engine so dedup never hides a case
		ups := feed(e2, tbl, catalog.ReverserLever, axisSample(0, c.axis))
		single(t, ups, c.want)
	}
}

func TestDynBrakeLaw(t *testing.T) {
	tbl := mapping.NewTable()
	tbl.Set(catalog.DynBrakeLever, axisLoc(3), false)

	cases := []struct {
		axis float64
		want int
	}{
		{-1, 0},
		{-0.95, 0},
		{1, 255},
	}
	for _, c := range cases {
		e2 := New(tbl)
		ups := feed(e2, tbl, catalog.DynBrakeLever, axisSample(3, c.axis))
		single(t, ups, c.want)
	}

	// Just past the off threshold the value is small but never zero.
	e2 := New(tbl)
	ups := feed(e2, tbl, catalog.DynBrakeLever, axisSample(3, -0.9))
	if len(ups) != 1 || ups[0].Value < 1 || ups[0].Value > 20 {
		t.Fatalf("engaged brake near threshold = %v", ups)
	}
}

func TestBrakeLawMonotonic(t *testing.T) {
	tbl := mapping.NewTable()
	tbl.Set("Train Brake Lever", axisLoc(2), false)
	e := New(tbl)

	single(t, feed(e, tbl, "Train Brake Lever", axisSample(2, -1)), 0)

	last := 0
	for i := 0; i <= 40; i++ {
		v := -1 + float64(i)*0.05
		ups := feed(e, tbl, "Train Brake Lever", axisSample(2, v))
		for _, u := range ups {
			if u.Value < last {
				t.Fatalf("brake value decreased: %d after %d at axis %v", u.Value, last, v)
			}
			last = u.Value
		}
	}
	if last != 255 {
		t.Fatalf("brake full application = %d, want 255", last)
	}
}

func TestReverseAxisFlag(t *testing.T) {
	tbl := mapping.NewTable()
	tbl.Set(catalog.ThrottleLever, axisLoc(1), true)
	e := New(tbl)

	single(t, feed(e, tbl, catalog.ThrottleLever, axisSample(1, -1)), 8)
}

func TestLeverIgnoresButtons(t *testing.T) {
	tbl := mapping.NewTable()
	tbl.Set(catalog.ThrottleLever, buttonLoc(1), false)
	e := New(tbl)

	none(t, feed(e, tbl, catalog.ThrottleLever, buttonSample(1, true)))
}

func TestInvalidateDropsEdgeState(t *testing.T) {
	tbl := mapping.NewTable()
	tbl.Set("Horn", buttonLoc(3), false)
	e := New(tbl)

	single(t, feed(e, tbl, "Horn", buttonSample(3, true)), 1)
	e.Invalidate("Horn", buttonLoc(3))
	// After invalidation the held button reads as a fresh press.
	single(t, feed(e, tbl, "Horn", buttonSample(3, true)), 1)
}
