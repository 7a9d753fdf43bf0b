package registry

import "testing"

func TestGradeBoundaries(t *testing.T) {
	cases := []struct {
		name        string
		allowance   int64
		consumption int64
		want        Grade
	}{
		{"well under budget", 1_000, 500, GradeAAA},
		{"exactly ninety percent", 1_000, 900, GradeAAA},
		{"just above ninety percent", 1_000, 901, GradeAA},
		{"exactly at allowance", 1_000, 1_000, GradeAA},
		{"one percent over", 1_000, 1_010, GradeB},
		{"zero allowance", 0, 0, GradeB},
		{"zero allowance with consumption", 0, 10, GradeB},
		{"no audit yet", 1_000, 0, GradeAAA},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Company{InitialAllowance: tc.allowance, LastVerifiedConsumption: tc.consumption}
			if got := GradeFor(c); got != tc.want {
				t.Fatalf("GradeFor(%d/%d) = %s, want %s", tc.consumption, tc.allowance, got, tc.want)
			}
			// Pure function: a second call on the same snapshot agrees.
			if again := GradeFor(c); again != GradeFor(c) {
				t.Fatalf("grade derivation is not stable: %s vs %s", again, GradeFor(c))
			}
		})
	}
}

func TestNetSurplus(t *testing.T) {
	c := Company{InitialAllowance: 1_000, LastVerifiedConsumption: 1_100}
	if got := NetSurplus(c); got != -100 {
		t.Fatalf("expected net surplus -100, got %d", got)
	}
	c.LastVerifiedConsumption = 400
	if got := NetSurplus(c); got != 600 {
		t.Fatalf("expected net surplus 600, got %d", got)
	}
}
