package schedule

import "testing"

func TestNextUpcomingSlot(t *testing.T) {
	var none [SlotCount]bool
	firstFired := none
	firstFired[0] = true

	tests := []struct {
		name         string
		hour, minute int
		fired        [SlotCount]bool
		wantSlot     int
		wantDist     int
	}{
		{"one minute before 08:00", 7, 59, none, 0, 1},
		{"at slot time", 8, 0, none, 0, 0},
		{"after first slot fired", 8, 1, firstFired, 1, 29},
		{"fired slot excluded at its own minute", 8, 0, firstFired, 1, 30},
		{"late evening wraps to tomorrow", 22, 0, none, 0, 600},
		{"between noon slots", 12, 10, none, 3, 20},
	}

	m := NewModel()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slot, dist, ok := m.NextUpcomingSlot(tt.hour, tt.minute, tt.fired)
			if !ok {
				t.Fatal("expected a slot")
			}
			if slot != tt.wantSlot || dist != tt.wantDist {
				t.Errorf("got slot %d in %d min, want slot %d in %d min", slot, dist, tt.wantSlot, tt.wantDist)
			}
		})
	}
}

func TestNextUpcomingSlotTiesLowestIndex(t *testing.T) {
	m := NewModel()
	_ = m.SetSlot(2, 9, 0, true)
	_ = m.SetSlot(5, 9, 0, true)

	slot, dist, ok := m.NextUpcomingSlot(8, 45, [SlotCount]bool{true, true})
	if !ok || slot != 2 || dist != 15 {
		t.Errorf("got (%d, %d, %v), want (2, 15, true)", slot, dist, ok)
	}
}

func TestNextUpcomingSlotNone(t *testing.T) {
	m := NewModel()
	for i := 0; i < SlotCount; i++ {
		s, _ := m.Slot(i)
		_ = m.SetSlot(i, s.Hour, s.Minute, false)
	}
	if _, _, ok := m.NextUpcomingSlot(12, 0, [SlotCount]bool{}); ok {
		t.Error("expected no slot when all are disabled")
	}
}

func TestLabel(t *testing.T) {
	tests := map[int]string{
		0: "Morning, before meal",
		3: "Noon, after meal",
		4: "Evening, before meal",
		6: "Bedtime",
		7: "",
	}
	for slot, want := range tests {
		if got := Label(slot); got != want {
			t.Errorf("Label(%d) = %q, want %q", slot, got, want)
		}
	}
}
