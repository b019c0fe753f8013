// Package apikeys maps API keys to the voice identifiers they may synthesize with.
//
// Two issuance modes exist. The master key accumulates every voice as it is created and
// is never replaced. Minted keys receive the voice set known at issuance and are not
// updated afterwards.
package apikeys

import (
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const (
	keyPrefix      = "sk_"
	maskVisibleLen = 6
	maskSuffix     = "***"
)

// Grant is an issued key and its voice identifiers.
type Grant struct {
	Key      string   `json:"api_key"`
	Label    string   `json:"label,omitempty"`
	VoiceIDs []string `json:"voice_ids"`
}

// Registry is the process-wide API key map.
type Registry struct {
	mu        sync.RWMutex
	grants    map[string][]string
	labels    map[string]string
	masterKey string
}

// NewRegistry creates a registry holding only the master key.
func NewRegistry(masterKey string) *Registry {
	return &Registry{
		grants:    map[string][]string{masterKey: {}},
		labels:    map[string]string{masterKey: "master"},
		masterKey: masterKey,
	}
}

// NewKey mints a random "sk_" key.
func NewKey() string {
	return keyPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// MaskKey hides all but the first characters of key, for logs and error messages.
func MaskKey(key string) string {
	if len(key) <= maskVisibleLen {
		return maskSuffix
	}

	return key[:maskVisibleLen] + maskSuffix
}

// MasterKey returns the privileged key.
func (r *Registry) MasterKey() string {
	return r.masterKey
}

// GrantMaster appends voice identifiers to the master key's grant set, skipping ones
// already present.
func (r *Registry) GrantMaster(voiceIDs ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.grants[r.masterKey] = appendMissing(r.grants[r.masterKey], voiceIDs...)
}

// Issue mints a key granted exactly voiceIDs.
func (r *Registry) Issue(label string, voiceIDs []string) Grant {
	key := NewKey()
	granted := slices.Clone(voiceIDs)

	if granted == nil {
		granted = []string{}
	}

	r.mu.Lock()
	r.grants[key] = granted
	r.labels[key] = label
	r.mu.Unlock()

	return Grant{Key: key, Label: label, VoiceIDs: slices.Clone(granted)}
}

// Grants returns a copy of the voice identifiers granted to key.
func (r *Registry) Grants(key string) ([]string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids, ok := r.grants[key]
	if !ok {
		return nil, false
	}

	return slices.Clone(ids), true
}

// Exists reports whether key was issued.
func (r *Registry) Exists(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.grants[key]

	return ok
}

// Allows reports whether key exists and is granted voiceID.
func (r *Registry) Allows(key, voiceID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Contains(r.grants[key], voiceID)
}

// Len returns the number of keys, master included.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.grants)
}

// Snapshot returns a copy of every key and its grants.
func (r *Registry) Snapshot() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string][]string, len(r.grants))
	for key, ids := range r.grants {
		out[key] = slices.Clone(ids)
	}

	return out
}

// Merge fills gaps from a persisted key map. Unknown keys are added as-is; existing
// minted keys keep their grants; the master key gains any identifiers it lacks. It
// returns the number of keys added.
func (r *Registry) Merge(grants map[string][]string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	added := 0

	for key, ids := range grants {
		if key == r.masterKey {
			r.grants[key] = appendMissing(r.grants[key], ids...)

			continue
		}

		if _, exists := r.grants[key]; exists {
			continue
		}

		r.grants[key] = appendMissing(nil, ids...)
		added++
	}

	return added
}

func appendMissing(dst []string, ids ...string) []string {
	if dst == nil {
		dst = []string{}
	}

	for _, id := range ids {
		if !slices.Contains(dst, id) {
			dst = append(dst, id)
		}
	}

	return dst
}
