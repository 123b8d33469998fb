// Package schedule holds the dispense configuration: the daily time slots,
// the medicine modules assigned to them and the master enable flag.
package schedule

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

const (
	// SlotCount is the number of daily dispense moments.
	SlotCount = 7
	// ModuleCount is the number of physical compartments.
	ModuleCount = 6
	// MaxQuantity is the largest remaining-dose count a module can hold.
	MaxQuantity = 99
	// MaxNameLength bounds module names in bytes.
	MaxNameLength = 15
	// SlotMaskAll has one bit per slot.
	SlotMaskAll uint8 = 1<<SlotCount - 1
)

var (
	ErrSlotIndex   = errors.New("slot index out of range")
	ErrModuleIndex = errors.New("module index out of range")
	ErrInvalidTime = errors.New("invalid time of day")
)

// TimeSlot is one daily dispense moment.
type TimeSlot struct {
	Hour    int  `json:"hour"`
	Minute  int  `json:"minute"`
	Enabled bool `json:"enabled"`
}

// MinuteOfDay returns the slot time as minutes since midnight.
func (s TimeSlot) MinuteOfDay() int {
	return s.Hour*60 + s.Minute
}

// Matches reports whether the slot is scheduled for hour:minute.
func (s TimeSlot) Matches(hour, minute int) bool {
	return s.Hour == hour && s.Minute == minute
}

func (s TimeSlot) String() string {
	return fmt.Sprintf("%02d:%02d", s.Hour, s.Minute)
}

// ValidTime reports whether hour:minute is a legal time of day.
func ValidTime(hour, minute int) bool {
	return hour >= 0 && hour <= 23 && minute >= 0 && minute <= 59
}

var defaultSlots = [SlotCount]TimeSlot{
	{Hour: 8, Minute: 0, Enabled: true},
	{Hour: 8, Minute: 30, Enabled: true},
	{Hour: 12, Minute: 0, Enabled: true},
	{Hour: 12, Minute: 30, Enabled: true},
	{Hour: 17, Minute: 0, Enabled: true},
	{Hour: 17, Minute: 30, Enabled: true},
	{Hour: 21, Minute: 0, Enabled: true},
}

// DefaultSlots returns the built-in slot table.
func DefaultSlots() [SlotCount]TimeSlot {
	return defaultSlots
}

// DefaultSlot returns the built-in time for slot i.
func DefaultSlot(i int) (TimeSlot, error) {
	if i < 0 || i >= SlotCount {
		return TimeSlot{}, fmt.Errorf("%w: %d", ErrSlotIndex, i)
	}
	return defaultSlots[i], nil
}

// MedModule is one compartment and the slots it dispenses in.
type MedModule struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	SlotMask uint8  `json:"slot_mask"`
}

// Assigned reports whether the module dispenses when slot triggers.
func (m MedModule) Assigned(slot int) bool {
	if slot < 0 || slot >= SlotCount {
		return false
	}
	return m.SlotMask&(1<<uint(slot)) != 0
}

// DefaultName is the placeholder name for module i.
func DefaultName(i int) string {
	return fmt.Sprintf("Cartridge %d", i+1)
}

// TruncateName cuts name to MaxNameLength bytes without splitting a rune.
func TruncateName(name string) string {
	if len(name) <= MaxNameLength {
		return name
	}
	cut := MaxNameLength
	for cut > 0 && !utf8.RuneStart(name[cut]) {
		cut--
	}
	return name[:cut]
}

// ClampQuantity limits qty to [0, MaxQuantity].
func ClampQuantity(qty int) int {
	switch {
	case qty < 0:
		return 0
	case qty > MaxQuantity:
		return MaxQuantity
	default:
		return qty
	}
}

// Model is the complete dispense configuration. It is not safe for
// concurrent use; the engine owns it.
type Model struct {
	slots         [SlotCount]TimeSlot
	modules       [ModuleCount]MedModule
	masterEnabled bool
}

// NewModel returns the factory configuration: default slot times, placeholder
// names, empty compartments, nothing assigned and the schedule enabled.
func NewModel() *Model {
	m := &Model{
		slots:         defaultSlots,
		masterEnabled: true,
	}
	for i := range m.modules {
		m.modules[i] = MedModule{Name: DefaultName(i)}
	}
	return m
}

// Clone returns an independent copy of the model.
func (m *Model) Clone() *Model {
	c := *m
	return &c
}

// Slot returns slot i.
func (m *Model) Slot(i int) (TimeSlot, error) {
	if err := checkSlot(i); err != nil {
		return TimeSlot{}, err
	}
	return m.slots[i], nil
}

// SetSlot replaces the time and enabled flag of slot i.
func (m *Model) SetSlot(i, hour, minute int, enabled bool) error {
	if err := checkSlot(i); err != nil {
		return err
	}
	if !ValidTime(hour, minute) {
		return fmt.Errorf("%w: %02d:%02d", ErrInvalidTime, hour, minute)
	}
	m.slots[i] = TimeSlot{Hour: hour, Minute: minute, Enabled: enabled}
	return nil
}

// Slots returns a copy of every slot.
func (m *Model) Slots() [SlotCount]TimeSlot {
	return m.slots
}

// Module returns module i.
func (m *Model) Module(i int) (MedModule, error) {
	if err := checkModule(i); err != nil {
		return MedModule{}, err
	}
	return m.modules[i], nil
}

// Modules returns a copy of every module.
func (m *Model) Modules() [ModuleCount]MedModule {
	return m.modules
}

// SetName renames module i. An empty name restores the placeholder.
func (m *Model) SetName(i int, name string) error {
	if err := checkModule(i); err != nil {
		return err
	}
	if name == "" {
		name = DefaultName(i)
	}
	m.modules[i].Name = TruncateName(name)
	return nil
}

// SetQuantity sets the remaining count of module i, clamped to [0, 99].
func (m *Model) SetQuantity(i, qty int) error {
	if err := checkModule(i); err != nil {
		return err
	}
	m.modules[i].Quantity = ClampQuantity(qty)
	return nil
}

// SetSlotMask replaces the slot assignment of module i.
func (m *Model) SetSlotMask(i int, mask uint8) error {
	if err := checkModule(i); err != nil {
		return err
	}
	m.modules[i].SlotMask = mask & SlotMaskAll
	return nil
}

// ToggleSlot flips the assignment of module i to slot.
func (m *Model) ToggleSlot(i, slot int) error {
	if err := checkModule(i); err != nil {
		return err
	}
	if err := checkSlot(slot); err != nil {
		return err
	}
	m.modules[i].SlotMask ^= 1 << uint(slot)
	return nil
}

// Decrement removes one dose from module i and returns the new count.
// The count never goes below zero.
func (m *Model) Decrement(i int) (int, error) {
	if err := checkModule(i); err != nil {
		return 0, err
	}
	if m.modules[i].Quantity > 0 {
		m.modules[i].Quantity--
	}
	return m.modules[i].Quantity, nil
}

func (m *Model) MasterEnabled() bool {
	return m.masterEnabled
}

func (m *Model) SetMasterEnabled(enabled bool) {
	m.masterEnabled = enabled
}

// AssignedModules lists, in index order, the modules that dispense when
// slot triggers.
func (m *Model) AssignedModules(slot int) []int {
	var out []int
	for i, mod := range m.modules {
		if mod.Assigned(slot) {
			out = append(out, i)
		}
	}
	return out
}

func checkSlot(i int) error {
	if i < 0 || i >= SlotCount {
		return fmt.Errorf("%w: %d", ErrSlotIndex, i)
	}
	return nil
}

func checkModule(i int) error {
	if i < 0 || i >= ModuleCount {
		return fmt.Errorf("%w: %d", ErrModuleIndex, i)
	}
	return nil
}
