package events

import "testing"

func TestParseRisk(t *testing.T) {
	cases := []struct {
		in   string
		want Risk
		ok   bool
	}{
		{"LOW", RiskLow, true},
		{"medium", RiskMedium, true},
		{" High ", RiskHigh, true},
		{"CRITICAL", RiskLow, false},
		{"", RiskLow, false},
	}
	for _, c := range cases {
		got, ok := ParseRisk(c.in)
		if got != c.want || ok != c.ok {
			t.Fatalf("ParseRisk(%q) = %v, %v; want %v, %v", c.in, got, ok, c.want, c.ok)
		}
	}
}
