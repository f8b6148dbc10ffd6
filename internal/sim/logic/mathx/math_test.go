package mathx

import "testing"

func TestFloorDivAndMod(t *testing.T) {
	cases := []struct {
		a, b, div, mod int
	}{
		{a: 7, b: 2, div: 3, mod: 1},
		{a: -7, b: 2, div: -4, mod: 1},
		{a: -8, b: 4, div: -2, mod: 0},
		{a: 0, b: 5, div: 0, mod: 0},
	}
	for _, c := range cases {
		if got := FloorDiv(c.a, c.b); got != c.div {
			t.Fatalf("FloorDiv(%d,%d)=%d want %d", c.a, c.b, got, c.div)
		}
		if got := Mod(c.a, c.b); got != c.mod {
			t.Fatalf("Mod(%d,%d)=%d want %d", c.a, c.b, got, c.mod)
		}
	}
}

func TestHashesAreStable(t *testing.T) {
	if Hash2(42, 3, -9) != Hash2(42, 3, -9) {
		t.Fatalf("Hash2 not stable")
	}
	if Hash2(42, 3, -9) == Hash2(43, 3, -9) {
		t.Fatalf("Hash2 ignores seed")
	}
	if HashString(1, "tower-nw") != HashString(1, "tower-nw") {
		t.Fatalf("HashString not stable")
	}
	if HashString(1, "tower-nw") == HashString(1, "tower-ne") {
		t.Fatalf("HashString collision on distinct ids")
	}
}

func TestJitterRange(t *testing.T) {
	for i := 0; i < 500; i++ {
		j := Jitter(Hash2(7, i, i*3), 4)
		if j < -4 || j > 4 {
			t.Fatalf("Jitter out of range: %d", j)
		}
	}
	if Jitter(12345, 0) != 0 {
		t.Fatalf("zero span must not jitter")
	}
}
