package host

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/apex/log"
	"github.com/google/uuid"

	"legacyboot/internal/firmware"
)

type nvramEntry struct {
	Name       string
	GUID       uuid.UUID
	Attributes firmware.VariableAttributes
	Data       []byte
}

// NVRAM is the emulated variable store. Non-volatile variables are saved
// to a JSON file after every change when Path is set.
type NVRAM struct {
	Path string

	mu   sync.Mutex
	vars map[string]nvramEntry
}

func NewNVRAM() *NVRAM { return &NVRAM{vars: map[string]nvramEntry{}} }

// LoadNVRAM reads the store at path. A missing file is an empty store.
func LoadNVRAM(path string) (*NVRAM, error) {
	n := NewNVRAM()
	n.Path = path
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return n, nil
	}
	if err != nil {
		return nil, err
	}
	var entries []nvramEntry
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, err
	}
	for _, e := range entries {
		n.vars[key(e.Name, e.GUID)] = e
	}
	return n, nil
}

func key(name string, guid uuid.UUID) string {
	return strings.ToUpper(guid.String()) + "-" + name
}

func (n *NVRAM) GetVariable(name string, guid uuid.UUID) ([]byte, firmware.VariableAttributes, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	e, ok := n.vars[key(name, guid)]
	if !ok {
		return nil, 0, firmware.NotFound
	}
	return append([]byte(nil), e.Data...), e.Attributes, nil
}

// SetVariable stores or, with empty data, deletes a variable.
func (n *NVRAM) SetVariable(name string, guid uuid.UUID, attrs firmware.VariableAttributes, data []byte) error {
	if name == "" {
		return firmware.InvalidParameter
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	k := key(name, guid)
	persist := attrs&firmware.NonVolatile != 0
	if len(data) == 0 {
		old, ok := n.vars[k]
		if !ok {
			return firmware.NotFound
		}
		persist = old.Attributes&firmware.NonVolatile != 0
		delete(n.vars, k)
	} else {
		n.vars[k] = nvramEntry{Name: name, GUID: guid, Attributes: attrs, Data: append([]byte(nil), data...)}
	}
	if !persist {
		return nil
	}
	if err := n.saveLocked(); err != nil {
		log.WithError(err).WithField("file", n.Path).Error("cannot save NVRAM")
		return firmware.DeviceError
	}
	return nil
}

// Variables lists the stored variables ordered by GUID and name.
func (n *NVRAM) Variables() []Variable {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Variable, 0, len(n.vars))
	for _, e := range n.vars {
		out = append(out, Variable{Name: e.Name, GUID: e.GUID, Attributes: e.Attributes, Data: append([]byte(nil), e.Data...)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GUID != out[j].GUID {
			return out[i].GUID.String() < out[j].GUID.String()
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Variable is one entry of a variable listing.
type Variable struct {
	Name       string
	GUID       uuid.UUID
	Attributes firmware.VariableAttributes
	Data       []byte
}

// Save writes the non-volatile variables to Path.
func (n *NVRAM) Save() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.saveLocked()
}

func (n *NVRAM) saveLocked() error {
	if n.Path == "" {
		return nil
	}
	entries := make([]nvramEntry, 0, len(n.vars))
	for _, e := range n.vars {
		if e.Attributes&firmware.NonVolatile != 0 {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return key(entries[i].Name, entries[i].GUID) < key(entries[j].Name, entries[j].GUID)
	})
	if err := os.MkdirAll(filepath.Dir(n.Path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(n.Path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
