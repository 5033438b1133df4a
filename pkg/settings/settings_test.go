package settings

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"unicode"
)

func TestDefault(t *testing.T) {
	s := Default()

	if s.Bitrate != 20000 {
		t.Errorf("default bitrate = %d, want 20000", s.Bitrate)
	}
	if s.PeerManagementType != SinglePeer {
		t.Errorf("default peer management = %q, want %q", s.PeerManagementType, SinglePeer)
	}
	if !s.DarkMode {
		t.Error("default dark mode should be enabled")
	}
	if len(s.PIN) != 4 {
		t.Errorf("default PIN length = %d, want 4", len(s.PIN))
	}
	for _, r := range s.PIN {
		if !unicode.IsDigit(r) {
			t.Errorf("default PIN %q contains non-digit", s.PIN)
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.Bitrate != 20000 {
		t.Errorf("bitrate = %d, want default 20000", s.Bitrate)
	}
}

func TestLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	saved := Settings{
		PIN:                "4711",
		Bitrate:            8000,
		PeerManagementType: MultiplePeersSingleControl,
		DarkMode:           false,
	}
	if err := Save(path, saved); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded != saved {
		t.Errorf("Load() = %+v, want %+v", loaded, saved)
	}
}

func TestLoad_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path)
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("Load() error = %v, want ErrCorrupt", err)
	}
	if s.Bitrate != 20000 {
		t.Errorf("corrupt file should fall back to defaults, got bitrate %d", s.Bitrate)
	}
}

func TestLoad_NormalizesInvalidFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	raw := `{"pin":"abc","bitrate":1,"peer_management_type":"Anarchy","dark_mode":true}`
	if err := os.WriteFile(path, []byte(raw), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.Bitrate != 20000 {
		t.Errorf("invalid bitrate should reset to default, got %d", s.Bitrate)
	}
	if s.PeerManagementType != SinglePeer {
		t.Errorf("invalid peer management should reset to default, got %q", s.PeerManagementType)
	}
	if len(s.PIN) != 4 {
		t.Errorf("invalid PIN should be regenerated, got %q", s.PIN)
	}
}

func TestSave_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "config.json")

	if err := Save(path, Default()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected file at %s: %v", path, err)
	}
}

func TestStore_UpdateIsAtomic(t *testing.T) {
	st := NewStore(Default())

	updated := st.Update(func(s *Settings) {
		s.Bitrate = 12000
		s.PeerManagementType = MultiplePeersMultipleControl
	})

	if updated.Bitrate != 12000 {
		t.Errorf("updated bitrate = %d, want 12000", updated.Bitrate)
	}
	if got := st.Get(); got.PeerManagementType != MultiplePeersMultipleControl {
		t.Errorf("store peer management = %q, want %q", got.PeerManagementType, MultiplePeersMultipleControl)
	}
}

func TestStore_SetNormalizes(t *testing.T) {
	st := NewStore(Default())

	st.Set(Settings{PIN: "9999", Bitrate: -5, PeerManagementType: SinglePeer})

	if got := st.Get(); got.Bitrate != 20000 {
		t.Errorf("Set should normalize bitrate, got %d", got.Bitrate)
	}
	if st.PIN() != "9999" {
		t.Errorf("PIN() = %q, want 9999", st.PIN())
	}
}
