package rack

import (
	"encoding/json"
	"fmt"

	"github.com/cwbudde/algo-rack/engine"
)

// stateVersion marks the snapshot format.
const stateVersion = 1

type stateFile struct {
	Version int                `json:"version"`
	Values  map[string]float64 `json:"values"`
}

// State serializes the full parameter table as JSON.
func (h *Host) State() ([]byte, error) {
	return json.MarshalIndent(stateFile{
		Version: stateVersion,
		Values:  h.store.Snapshot(),
	}, "", "  ")
}

// SetState replays a snapshot into the store and reinstalls the engines
// the choices name, keeping the restored parameter values instead of the
// factory defaults. Keys the current build does not know are skipped so
// snapshots stay forward compatible.
func (h *Host) SetState(data []byte) error {
	var st stateFile
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("rack: decode state: %w", err)
	}

	if st.Version != stateVersion {
		return fmt.Errorf("rack: unsupported state version %d", st.Version)
	}

	for key, value := range st.Values {
		_ = h.store.Set(key, value)
	}

	if h.freshStart {
		for k := 1; k <= NumSlots; k++ {
			if err := h.store.SetEngineChoice(k, engine.None); err != nil {
				return err
			}
		}
	}

	if err := h.SyncEngines(); err != nil {
		return err
	}

	h.Reset()

	return nil
}
