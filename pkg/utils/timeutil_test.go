package utils

import "testing"

func TestNowParis(t *testing.T) {
	now := NowParis()
	if now.Location().String() != "Europe/Paris" && now.Location().String() != "CET" {
		t.Errorf("NowParis() location = %s, want Europe/Paris or CET", now.Location().String())
	}
}

func TestIsMonth(t *testing.T) {
	tests := map[string]bool{
		"2024-01":    true,
		"2024-12":    true,
		"2024-13":    false,
		"2024-00":    false,
		"2024-1":     false,
		"2024-01-05": false,
		"":           false,
	}
	for in, want := range tests {
		if got := IsMonth(in); got != want {
			t.Errorf("IsMonth(%q) = %v, want %v", in, got, want)
		}
	}
}
