package rack

import (
	"fmt"

	"github.com/cwbudde/algo-rack/engine"
)

// SetSlotEngine swaps the engine in a 1-based slot. The new engine is
// built and prepared away from the audio thread; only the pointer swap
// happens under the lock. Slot parameters reset to 0.5 and then take the
// engine's factory defaults. On a failed Prepare the previous engine and
// choice stay in place.
func (h *Host) SetSlotEngine(slot int, id engine.ID) error {
	if slot < 1 || slot > NumSlots {
		return fmt.Errorf("rack: slot out of range: %d", slot)
	}

	if err := h.installSlot(slot, id, true); err != nil {
		return err
	}

	return h.store.SetEngineChoice(slot, id)
}

// installSlot builds, prepares and swaps in an engine. When withDefaults
// is set the slot parameters reset to the engine's catalog values;
// state restores skip that so saved values survive.
func (h *Host) installSlot(slot int, id engine.ID, withDefaults bool) error {
	eng, err := NewEngine(id)
	if err != nil {
		return err
	}

	if eng != nil && h.prepared {
		if err := eng.Prepare(h.sampleRate, h.maxBlock); err != nil {
			return fmt.Errorf("rack: slot %d (%s): %w", slot, id, err)
		}
	}

	if withDefaults {
		for p := 1; p <= SlotParams; p++ {
			h.store.Set(fmt.Sprintf("slot%d_param%d", slot, p), 0.5)
		}

		for p, v := range engine.Defaults(id) {
			h.store.Set(fmt.Sprintf("slot%d_param%d", slot, p+1), v)
		}
	}

	h.mu.Lock()
	h.slots[slot-1] = slotState{id: id, eng: eng}
	h.recomputeLatencyLocked()
	h.mu.Unlock()

	return nil
}

// SlotEngine reports the engine installed in a 1-based slot.
func (h *Host) SlotEngine(slot int) engine.ID {
	if slot < 1 || slot > NumSlots {
		return engine.None
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	return h.slots[slot-1].id
}

// SyncEngines installs whatever the store's choice parameters name,
// leaving parameter values untouched. SetState uses it after replaying
// a snapshot; it also picks up choices written directly to the store.
func (h *Host) SyncEngines() error {
	for k := 1; k <= NumSlots; k++ {
		want := h.store.EngineChoice(k)

		if h.SlotEngine(k) == want {
			continue
		}

		if err := h.installSlot(k, want, false); err != nil {
			return err
		}
	}

	return nil
}
