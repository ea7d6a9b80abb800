package rack

import (
	"fmt"
	"math"
	"sort"
	"sync/atomic"

	"github.com/cwbudde/algo-rack/engine"
)

// NumSlots is the fixed chain length.
const NumSlots = 6

// SlotParams is the number of generic parameter knobs each slot carries.
const SlotParams = engine.MaxSlotParams

// Store is the flat normalized parameter table. Every key exists for the
// Store's whole lifetime; writes clamp to [0,1] and are atomic, so the
// audio thread reads without locks. The key set is fixed:
// slot{k}_engine, slot{k}_bypass, slot{k}_solo, slot{k}_mix,
// slot{k}_param{1..15} for k in 1..6, plus masterGain, masterMix and
// masterBypass.
type Store struct {
	values map[string]*atomic.Uint64
	keys   []string
}

// NewStore builds the table with every key present at its neutral value:
// 0.5 for knobs, 0 for engine choices, bypass and solo.
func NewStore() *Store {
	s := &Store{values: make(map[string]*atomic.Uint64)}

	add := func(key string, initial float64) {
		v := &atomic.Uint64{}
		v.Store(math.Float64bits(initial))
		s.values[key] = v
	}

	for k := 1; k <= NumSlots; k++ {
		add(fmt.Sprintf("slot%d_engine", k), 0)
		add(fmt.Sprintf("slot%d_bypass", k), 0)
		add(fmt.Sprintf("slot%d_solo", k), 0)
		add(fmt.Sprintf("slot%d_mix", k), 1)

		for p := 1; p <= SlotParams; p++ {
			add(fmt.Sprintf("slot%d_param%d", k, p), 0.5)
		}
	}

	add("masterGain", 0.5)
	add("masterMix", 1)
	add("masterBypass", 0)

	s.keys = make([]string, 0, len(s.values))
	for key := range s.values {
		s.keys = append(s.keys, key)
	}
	sort.Strings(s.keys)

	return s
}

// Keys returns the full key set, sorted. The slice is shared; callers
// must not mutate it.
func (s *Store) Keys() []string { return s.keys }

// Set writes a value, clamped to [0,1]. Unknown keys are rejected.
func (s *Store) Set(key string, value float64) error {
	v, ok := s.values[key]
	if !ok {
		return fmt.Errorf("rack: unknown parameter %q", key)
	}

	if math.IsNaN(value) {
		value = 0
	}

	value = math.Max(0, math.Min(1, value))
	v.Store(math.Float64bits(value))

	return nil
}

// Get reads a value. Unknown keys read as 0.
func (s *Store) Get(key string) float64 {
	v, ok := s.values[key]
	if !ok {
		return 0
	}

	return math.Float64frombits(v.Load())
}

// GetBool applies the >= 0.5 convention.
func (s *Store) GetBool(key string) bool {
	return s.Get(key) >= 0.5
}

// EngineChoice decodes a slot's engine parameter into an ID. slot is
// 1-based like the key names.
func (s *Store) EngineChoice(slot int) engine.ID {
	v := s.Get(fmt.Sprintf("slot%d_engine", slot))
	id := engine.ID(math.Round(v * float64(engine.NumIDs-1)))

	if !id.Valid() {
		return engine.None
	}

	return id
}

// SetEngineChoice encodes an ID into the slot's engine parameter.
func (s *Store) SetEngineChoice(slot int, id engine.ID) error {
	if !id.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownEngine, int(id))
	}

	return s.Set(fmt.Sprintf("slot%d_engine", slot), float64(id)/float64(engine.NumIDs-1))
}

// SlotParam reads one of a slot's generic knobs. Both indices are
// 1-based like the key names.
func (s *Store) SlotParam(slot, param int) float64 {
	return s.Get(fmt.Sprintf("slot%d_param%d", slot, param))
}

// Snapshot copies the whole table, for serialization.
func (s *Store) Snapshot() map[string]float64 {
	out := make(map[string]float64, len(s.keys))
	for _, key := range s.keys {
		out[key] = s.Get(key)
	}

	return out
}
