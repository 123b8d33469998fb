package clock

import (
	"path/filepath"
	"testing"
	"time"
)

func TestUptimeWrapsAtOneDay(t *testing.T) {
	elapsed := 25*time.Hour + 3*time.Minute + 7*time.Second
	u := NewUptimeFunc(func() time.Duration { return elapsed })

	h, m, s := u.Time()
	if h != 1 || m != 3 || s != 7 {
		t.Fatalf("expected 01:03:07, got %02d:%02d:%02d", h, m, s)
	}

	year, month, day, weekday := u.Date()
	if year != 2026 || month != 1 || day != 1 || weekday != 0 {
		t.Fatalf("expected placeholder date, got %d-%d-%d (%d)", year, month, day, weekday)
	}

	if u.HasReliableClock() {
		t.Fatal("uptime source must not report a reliable clock")
	}
}

func TestUptimeNowKeepsCountingPastMidnight(t *testing.T) {
	elapsed := 23*time.Hour + 55*time.Minute
	u := NewUptimeFunc(func() time.Duration { return elapsed })

	before := u.Now()
	elapsed += 11 * time.Minute
	after := u.Now()

	if got := after.Sub(before); got != 11*time.Minute {
		t.Fatalf("span across the day boundary = %s, want 11m", got)
	}
	if h, m, _ := after.Clock(); h != 0 || m != 6 {
		t.Errorf("Now().Clock() = %02d:%02d, want 00:06", h, m)
	}
	if h, m, _ := u.Time(); h != 0 || m != 6 {
		t.Errorf("Time() = %02d:%02d, want 00:06", h, m)
	}
}

func TestFixedClock(t *testing.T) {
	f := &Fixed{CurrentTime: time.Date(2025, time.March, 4, 7, 59, 30, 0, time.UTC)}

	f.Advance(time.Minute)
	h, m, s := f.Time()
	if h != 8 || m != 0 || s != 30 {
		t.Fatalf("expected 08:00:30, got %02d:%02d:%02d", h, m, s)
	}

	_, _, _, weekday := f.Date()
	if weekday != int(time.Tuesday) {
		t.Errorf("expected Tuesday, got %d", weekday)
	}
	if !f.HasReliableClock() {
		t.Error("fixed clock should be reliable by default")
	}
}

func TestSelect(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "rtc0")

	tests := []struct {
		name     string
		kind     string
		rtc      string
		reliable bool
		wantErr  bool
	}{
		{"system", "system", "", true, false},
		{"uptime", "uptime", "", false, false},
		{"auto without device check", "auto", "", true, false},
		{"auto with missing device", "auto", missing, false, false},
		{"auto with present device", "auto", t.TempDir(), true, false},
		{"unknown", "sundial", "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := Select(tt.kind, tt.rtc, "UTC")
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Select() error: %v", err)
			}
			if src.HasReliableClock() != tt.reliable {
				t.Errorf("HasReliableClock() = %v, want %v", src.HasReliableClock(), tt.reliable)
			}
		})
	}
}
