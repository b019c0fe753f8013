// Package voices holds the in-memory voice session store, the single reference slot used
// by the upload flow and the warm-restart snapshot file.
package voices

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	voiceIDPrefix    = "voice_"
	customIDHexLen   = 8
	customIDSuffixLn = 4
)

// Entry is the session data held for one voice identifier.
type Entry struct {
	AudioPath string    `json:"audio_path"`
	TextPath  string    `json:"text_path"`
	VoiceName string    `json:"voice_name"`
	CreatedAt time.Time `json:"created_at"`
}

type identity struct {
	name      string
	audioPath string
}

func (e Entry) identity() identity {
	return identity{name: e.VoiceName, audioPath: e.AudioPath}
}

// PredefinedID returns the stable identifier of a predefined voice, derived from its
// display name.
func PredefinedID(name string) string {
	return voiceIDPrefix + strings.ReplaceAll(strings.ToLower(name), " ", "_")
}

// NewCustomID mints a random identifier for a custom voice.
func NewCustomID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")

	return voiceIDPrefix + hex[:customIDHexLen] + "_" + hex[customIDHexLen:customIDHexLen+customIDSuffixLn]
}

// Store maps voice identifiers to their reference data. A secondary index keyed by
// display name and audio path keeps reconciliation against the registry O(1).
type Store struct {
	mu         sync.RWMutex
	entries    map[string]Entry
	byIdentity map[identity]string
	now        func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		entries:    make(map[string]Entry),
		byIdentity: make(map[identity]string),
		now:        time.Now,
	}
}

// Put inserts or replaces the entry for id. A zero CreatedAt is stamped with the
// current time.
func (s *Store) Put(id string, entry Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.putLocked(id, entry)
}

// PutIfAbsent inserts entry only when id is unknown and reports whether it did.
func (s *Store) PutIfAbsent(id string, entry Entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[id]; exists {
		return false
	}

	s.putLocked(id, entry)

	return true
}

// Reconcile returns the identifier of the entry matching name and audioPath, minting
// one with mint and inserting a new entry when none exists. Repeated calls with the same
// pair return the same identifier. The second result reports whether an entry was created.
func (s *Store) Reconcile(name, audioPath, textPath string, mint func() string) (string, bool) {
	key := identity{name: name, audioPath: audioPath}

	s.mu.RLock()
	id, found := s.byIdentity[key]
	s.mu.RUnlock()

	if found {
		return id, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, found = s.byIdentity[key]
	if found {
		return id, false
	}

	id = mint()
	s.putLocked(id, Entry{AudioPath: audioPath, TextPath: textPath, VoiceName: name})

	return id, true
}

// Get returns the entry for id.
func (s *Store) Get(id string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[id]

	return entry, ok
}

// Has reports whether id is known.
func (s *Store) Has(id string) bool {
	_, ok := s.Get(id)

	return ok
}

// Lookup returns the identifier registered for name and audioPath.
func (s *Store) Lookup(name, audioPath string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byIdentity[identity{name: name, audioPath: audioPath}]

	return id, ok
}

// IDs returns every known identifier in lexical order.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}

// Snapshot returns a copy of every entry.
func (s *Store) Snapshot() map[string]Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Entry, len(s.entries))
	for id, entry := range s.entries {
		out[id] = entry
	}

	return out
}

// Merge fills gaps from entries: identifiers already present keep their current data.
// It returns the number of entries added.
func (s *Store) Merge(entries map[string]Entry) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0

	for id, entry := range entries {
		if _, exists := s.entries[id]; exists {
			continue
		}

		s.putLocked(id, entry)
		added++
	}

	return added
}

func (s *Store) putLocked(id string, entry Entry) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}

	if previous, exists := s.entries[id]; exists {
		if s.byIdentity[previous.identity()] == id {
			delete(s.byIdentity, previous.identity())
		}
	}

	s.entries[id] = entry

	if _, indexed := s.byIdentity[entry.identity()]; !indexed {
		s.byIdentity[entry.identity()] = id
	}
}
