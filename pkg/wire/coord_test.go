package wire

import "testing"

func TestCoordSquare(t *testing.T) {
	cases := []struct {
		c    Coord
		want string
	}{
		{Coord{Row: 0, Col: 0}, "a8"},
		{Coord{Row: 7, Col: 0}, "a1"},
		{Coord{Row: 0, Col: 7}, "h8"},
		{Coord{Row: 7, Col: 7}, "h1"},
		{Coord{Row: 6, Col: 4}, "e2"},
		{Coord{Row: 4, Col: 3}, "d4"},
	}
	for _, tc := range cases {
		got, err := tc.c.Square()
		if err != nil {
			t.Fatalf("Square(%+v): %v", tc.c, err)
		}
		if got != tc.want {
			t.Fatalf("Square(%+v) = %q, want %q", tc.c, got, tc.want)
		}
	}
}

func TestCoordOffBoard(t *testing.T) {
	for _, c := range []Coord{
		{Row: -1, Col: 0},
		{Row: 8, Col: 0},
		{Row: 0, Col: -1},
		{Row: 0, Col: 8},
	} {
		if c.Valid() {
			t.Fatalf("Valid(%+v) = true, want false", c)
		}
		if _, err := c.Square(); err == nil {
			t.Fatalf("Square(%+v): expected error", c)
		}
	}
}
