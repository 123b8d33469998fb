package schedule

const minutesPerDay = 24 * 60

// Period groups slots in pairs around meals; the last slot stands alone.
type Period int

const (
	Morning Period = iota
	Noon
	Evening
	Bedtime
)

func (p Period) String() string {
	switch p {
	case Morning:
		return "Morning"
	case Noon:
		return "Noon"
	case Evening:
		return "Evening"
	case Bedtime:
		return "Bedtime"
	default:
		return "Unknown"
	}
}

// PeriodOf returns the period slot belongs to.
func PeriodOf(slot int) Period {
	return Period(slot / 2)
}

// Label is the display name for slot, e.g. "Noon, after meal".
func Label(slot int) string {
	if slot < 0 || slot >= SlotCount {
		return ""
	}
	p := PeriodOf(slot)
	if p == Bedtime {
		return p.String()
	}
	if slot%2 == 0 {
		return p.String() + ", before meal"
	}
	return p.String() + ", after meal"
}

// NextUpcomingSlot picks, among enabled slots that have not fired today, the
// one closest ahead of hour:minute. A slot at the current minute has distance
// zero; earlier slots wrap to tomorrow. Ties go to the lowest index.
func (m *Model) NextUpcomingSlot(hour, minute int, fired [SlotCount]bool) (slot, distance int, ok bool) {
	now := hour*60 + minute
	best, bestDist := -1, minutesPerDay

	for i, s := range m.slots {
		if !s.Enabled || fired[i] {
			continue
		}
		dist := s.MinuteOfDay() - now
		if dist < 0 {
			dist += minutesPerDay
		}
		if dist < bestDist {
			best, bestDist = i, dist
		}
	}

	if best < 0 {
		return 0, 0, false
	}
	return best, bestDist, true
}
