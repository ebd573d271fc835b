package budget

import (
	"math"
	"testing"
)

func Test_Estimate(t *testing.T) {
	t.Parallel()
	cases := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"   \n\t ", 0},
		{"sepsis", 1},
		{"early antibiotics reduce mortality", 4},
		{"  spaced   out\nwords ", 3},
	}
	for _, tc := range cases {
		if got := Estimate(tc.input); got != tc.want {
			t.Errorf("Estimate(%q) = %d, want %d", tc.input, got, tc.want)
		}
	}
}

func Test_Cost(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		in, out int
		want    float64
	}{
		{"zero usage", 0, 0, 0},
		{"input only", 1000, 0, 0.00015},
		{"output only", 0, 1000, 0.00060},
		{"mixed", 2000, 500, 0.00030 + 0.00030},
		{"negative clamped", -5, -5, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := Cost(tc.in, tc.out, DefaultRates)
			if math.Abs(got-tc.want) > 1e-12 {
				t.Errorf("Cost(%d, %d) = %g, want %g", tc.in, tc.out, got, tc.want)
			}
		})
	}
}
