// Package state persists the ledger of installed modules.
package state

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// LedgerFile is the ledger file name inside a deploy directory.
const LedgerFile = "installed.yml"

const ledgerVersion = "1"

// Record describes one installed module.
type Record struct {
	ID          string    `yaml:"id"`
	Source      string    `yaml:"source"`
	Target      string    `yaml:"target"`
	Size        int64     `yaml:"size"`
	SHA256      string    `yaml:"sha256"`
	Dir         bool      `yaml:"dir,omitempty"`
	InstalledAt time.Time `yaml:"installed_at"`
}

type ledgerDoc struct {
	Version string            `yaml:"version"`
	Modules map[string]Record `yaml:"modules"`
}

// Ledger is a YAML file of Records keyed by module ID. Every call reads
// the file, so several processes see each other's writes; calls within one
// process are serialized.
type Ledger struct {
	path string
	mu   sync.Mutex
}

// Open returns the ledger stored at path. The file is created on the first
// write.
func Open(path string) *Ledger {
	return &Ledger{path: path}
}

// Path returns the ledger file path.
func (l *Ledger) Path() string {
	return l.path
}

// load returns an empty map if the file doesn't exist.
func (l *Ledger) load() (map[string]Record, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]Record), nil
		}
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	var doc ledgerDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse ledger %s: %w", l.path, err)
	}
	if doc.Modules == nil {
		doc.Modules = make(map[string]Record)
	}
	return doc.Modules, nil
}

func (l *Ledger) save(records map[string]Record) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("create ledger directory: %w", err)
	}

	data, err := yaml.Marshal(ledgerDoc{Version: ledgerVersion, Modules: records})
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}

	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}

// Get returns the record for id.
func (l *Ledger) Get(id string) (Record, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.load()
	if err != nil {
		return Record{}, false, err
	}
	rec, ok := records[id]
	return rec, ok, nil
}

// Put stores rec under rec.ID, replacing an earlier record.
func (l *Ledger) Put(rec Record) error {
	if rec.ID == "" {
		return fmt.Errorf("ledger record without id")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.load()
	if err != nil {
		return err
	}
	records[rec.ID] = rec
	return l.save(records)
}

// Delete removes the record for id.
func (l *Ledger) Delete(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.load()
	if err != nil {
		return err
	}
	if _, ok := records[id]; !ok {
		return nil
	}
	delete(records, id)
	return l.save(records)
}

// All returns every record ordered by ID.
func (l *Ledger) All() ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.load()
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
