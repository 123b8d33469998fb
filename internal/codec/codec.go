// Package codec persists the schedule model in a storage.Store using the
// device's key layout: one packed word per slot and three entries per module.
package codec

import (
	"context"
	"errors"
	"fmt"

	"github.com/goodtune/pillbox/internal/schedule"
	"github.com/goodtune/pillbox/internal/storage"
)

// Namespace holds every key written by the codec.
const Namespace = "sched2"

// Sentinel marks an absent slot word. No legal time packs to it.
const Sentinel uint32 = 0xFFFFFFFF

const keyMasterEnabled = "masterEn"

func slotKey(i int) string     { return fmt.Sprintf("ts%d", i) }
func nameKey(i int) string     { return fmt.Sprintf("mn%d", i) }
func quantityKey(i int) string { return fmt.Sprintf("mq%d", i) }
func maskKey(i int) string     { return fmt.Sprintf("ms%d", i) }

// PackSlot encodes hour in bits 16-23, minute in bits 8-15 and enabled in bit 0.
func PackSlot(s schedule.TimeSlot) uint32 {
	word := uint32(s.Hour&0xFF)<<16 | uint32(s.Minute&0xFF)<<8
	if s.Enabled {
		word |= 1
	}
	return word
}

// UnpackSlot decodes a packed word. The result is not range checked.
func UnpackSlot(word uint32) schedule.TimeSlot {
	return schedule.TimeSlot{
		Hour:    int(word >> 16 & 0xFF),
		Minute:  int(word >> 8 & 0xFF),
		Enabled: word&1 != 0,
	}
}

// Load reads the model from store. Missing keys take their built-in
// defaults; out-of-range values are corrected. When the store cannot be
// read at all the default model is returned together with the error.
// Individually malformed entries fall back to their defaults and are
// reported in the joined error alongside a usable model.
func Load(ctx context.Context, store storage.Store) (*schedule.Model, error) {
	m := schedule.NewModel()
	var problems []error

	err := store.View(ctx, Namespace, func(b storage.Bucket) error {
		loaded := schedule.NewModel()

		master, err := storage.GetBool(b, keyMasterEnabled, true)
		if err != nil {
			if !errors.Is(err, storage.ErrMalformed) {
				return err
			}
			problems = append(problems, err)
		}
		loaded.SetMasterEnabled(master)

		for i := 0; i < schedule.SlotCount; i++ {
			word, err := storage.GetUint32(b, slotKey(i), Sentinel)
			if err != nil {
				if !errors.Is(err, storage.ErrMalformed) {
					return err
				}
				problems = append(problems, err)
			}
			s := decodeSlot(i, word)
			if err := loaded.SetSlot(i, s.Hour, s.Minute, s.Enabled); err != nil {
				return err
			}
		}

		for i := 0; i < schedule.ModuleCount; i++ {
			name, err := storage.GetString(b, nameKey(i), schedule.DefaultName(i))
			if err != nil {
				return err
			}
			qty, err := storage.GetUint8(b, quantityKey(i), 0)
			if err != nil {
				if !errors.Is(err, storage.ErrMalformed) {
					return err
				}
				problems = append(problems, err)
			}
			mask, err := storage.GetUint8(b, maskKey(i), 0)
			if err != nil {
				if !errors.Is(err, storage.ErrMalformed) {
					return err
				}
				problems = append(problems, err)
			}

			// Setters apply the placeholder, clamp and mask rules.
			if err := loaded.SetName(i, name); err != nil {
				return err
			}
			if err := loaded.SetQuantity(i, int(qty)); err != nil {
				return err
			}
			if err := loaded.SetSlotMask(i, mask); err != nil {
				return err
			}
		}

		m = loaded
		return nil
	})
	if err != nil {
		return schedule.NewModel(), fmt.Errorf("load schedule: %w", err)
	}
	if len(problems) > 0 {
		return m, fmt.Errorf("load schedule: %w", errors.Join(problems...))
	}
	return m, nil
}

// decodeSlot turns a stored word into a valid slot. An absent word yields
// the default for slot i; an out-of-range hour or minute is replaced by the
// default field alone.
func decodeSlot(i int, word uint32) schedule.TimeSlot {
	def, _ := schedule.DefaultSlot(i)
	if word == Sentinel {
		return def
	}
	s := UnpackSlot(word)
	if s.Hour > 23 {
		s.Hour = def.Hour
	}
	if s.Minute > 59 {
		s.Minute = def.Minute
	}
	return s
}

// Save rewrites every key from m inside a single Update.
func Save(ctx context.Context, store storage.Store, m *schedule.Model) error {
	err := store.Update(ctx, Namespace, func(b storage.Bucket) error {
		if err := storage.PutBool(b, keyMasterEnabled, m.MasterEnabled()); err != nil {
			return err
		}

		for i, s := range m.Slots() {
			if err := storage.PutUint32(b, slotKey(i), PackSlot(s)); err != nil {
				return err
			}
		}

		for i, mod := range m.Modules() {
			if err := storage.PutString(b, nameKey(i), mod.Name); err != nil {
				return err
			}
			if err := storage.PutUint8(b, quantityKey(i), uint8(schedule.ClampQuantity(mod.Quantity))); err != nil {
				return err
			}
			if err := storage.PutUint8(b, maskKey(i), mod.SlotMask&schedule.SlotMaskAll); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save schedule: %w", err)
	}
	return nil
}
