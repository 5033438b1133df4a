package settings

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"playcast/pkg/utils"
	"playcast/pkg/validation"
)

// ErrCorrupt reports a config file that exists but cannot be parsed.
// Callers may attempt a backup restore before falling back to defaults.
var ErrCorrupt = errors.New("settings: corrupt config file")

// Peer management modes controlling how many viewers may join and
// which of them are allowed to inject input.
const (
	SinglePeer                   = "SinglePeer"
	MultiplePeersSingleControl   = "MultiplePeersSingleControl"
	MultiplePeersMultipleControl = "MultiplePeersMultipleControl"
)

// Settings holds persistable host preferences
type Settings struct {
	PIN                string `json:"pin"`
	Bitrate            int    `json:"bitrate"`
	PeerManagementType string `json:"peer_management_type"`
	DarkMode           bool   `json:"dark_mode"`
}

// Default returns the default settings with a freshly generated PIN
func Default() Settings {
	return Settings{
		PIN:                utils.GeneratePIN(4),
		Bitrate:            20000,
		PeerManagementType: SinglePeer,
		DarkMode:           true,
	}
}

// Load reads settings from path.
// Returns defaults if the file doesn't exist. Returns defaults together
// with ErrCorrupt if the file exists but doesn't parse.
func Load(path string) (Settings, error) {
	s := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, err
	}

	if err := json.Unmarshal(data, &s); err != nil {
		return Default(), ErrCorrupt
	}

	return normalize(s), nil
}

// Save writes settings to path
func Save(path string, s Settings) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// normalize replaces out-of-range fields with their defaults so a
// hand-edited file can't push the host into an unusable state.
func normalize(s Settings) Settings {
	def := Default()
	if validation.ValidatePIN(s.PIN) != nil {
		s.PIN = def.PIN
	}
	if validation.ValidateBitrate(s.Bitrate) != nil {
		s.Bitrate = def.Bitrate
	}
	if validation.ValidatePeerManagement(s.PeerManagementType) != nil {
		s.PeerManagementType = def.PeerManagementType
	}
	return s
}

// Store is a concurrency-safe live view of the settings shared by the
// signal server, the dispatcher and the admin API.
type Store struct {
	mu sync.RWMutex
	s  Settings
}

// NewStore creates a store seeded with s
func NewStore(s Settings) *Store {
	return &Store{s: s}
}

// Get returns a copy of the current settings
func (st *Store) Get() Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.s
}

// Set replaces the current settings
func (st *Store) Set(s Settings) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s = normalize(s)
}

// Update applies fn to the current settings under the write lock and
// returns the result
func (st *Store) Update(fn func(*Settings)) Settings {
	st.mu.Lock()
	defer st.mu.Unlock()
	fn(&st.s)
	st.s = normalize(st.s)
	return st.s
}

// PIN returns the current access PIN
func (st *Store) PIN() string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.s.PIN
}

// PeerManagement returns the current peer management mode
func (st *Store) PeerManagement() string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.s.PeerManagementType
}
