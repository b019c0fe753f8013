// Package registry provides the durable voice registry on a NATS JetStream key-value bucket.
package registry

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/voice-service/internal/core"
	"github.com/book-expert/voice-service/internal/fsutil"
	"github.com/nats-io/nats.go"
)

const (
	logFmtSeeded       = "Seeded %d of %d predefined voices into %s"
	logFmtVoiceAdded   = "Registered voice %q (%s)"
	errFmtCreateBucket = "failed to create key-value bucket '%s': %w"
	errFmtBindBucket   = "failed to bind to existing key-value bucket '%s': %w"
	errFmtGetVoice     = "failed to get voice %q from bucket '%s': %w"
	errFmtPutVoice     = "failed to put voice %q to bucket '%s': %w"
	errFmtListVoices   = "failed to list voices in bucket '%s': %w"
	errFmtDecodeVoice  = "failed to decode voice record %q: %w"
)

// record is the persisted form of a profile. Existence on disk is never stored.
type record struct {
	Name         string    `json:"name"`
	VoiceID      string    `json:"voice_id,omitempty"`
	AudioPath    string    `json:"audio_path"`
	TextPath     string    `json:"text_path"`
	IsPredefined bool      `json:"is_predefined"`
	CreatedAt    time.Time `json:"created_at"`
}

func (r record) profile() core.VoiceProfile {
	return core.VoiceProfile{
		Name:         r.Name,
		VoiceID:      r.VoiceID,
		AudioPath:    r.AudioPath,
		TextPath:     r.TextPath,
		IsPredefined: r.IsPredefined,
		CreatedAt:    r.CreatedAt,
		AudioExists:  fsutil.FileExists(r.AudioPath),
	}
}

func newRecord(profile core.VoiceProfile, now time.Time) record {
	created := profile.CreatedAt
	if created.IsZero() {
		created = now
	}

	return record{
		Name:         profile.Name,
		VoiceID:      profile.VoiceID,
		AudioPath:    profile.AudioPath,
		TextPath:     profile.TextPath,
		IsPredefined: profile.IsPredefined,
		CreatedAt:    created.UTC(),
	}
}

// NatsRegistry implements core.VoiceRegistry on a JetStream key-value bucket. Each voice
// is stored under the URL-safe base64 encoding of its name, so the name is unique.
type NatsRegistry struct {
	kv     nats.KeyValue
	bucket string
	logger *logger.Logger
	now    func() time.Time
}

// New creates the bucket, or binds to it when it already exists.
func New(jetstreamContext nats.JetStreamContext, bucketName string, log *logger.Logger) (*NatsRegistry, error) {
	kv, err := jetstreamContext.CreateKeyValue(&nats.KeyValueConfig{
		Bucket:      bucketName,
		Description: fmt.Sprintf("Voice profiles for the %s registry.", bucketName),
		History:     1,
		Storage:     nats.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		var bindErr error

		kv, bindErr = jetstreamContext.KeyValue(bucketName)
		if bindErr != nil {
			return nil, errors.Join(fmt.Errorf(errFmtCreateBucket, bucketName, err),
				fmt.Errorf(errFmtBindBucket, bucketName, bindErr))
		}
	}

	return &NatsRegistry{kv: kv, bucket: bucketName, logger: log, now: time.Now}, nil
}

func keyFor(name string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(name))
}

// Seed inserts each voice unless one with the same name already exists. Backing files
// are not checked.
func (r *NatsRegistry) Seed(ctx context.Context, profiles []core.VoiceProfile) error {
	inserted := 0

	for _, profile := range profiles {
		err := r.AddVoice(ctx, profile)
		if errors.Is(err, core.ErrVoiceExists) {
			continue
		}

		if err != nil {
			return err
		}

		inserted++
	}

	r.logger.Info(logFmtSeeded, inserted, len(profiles), r.bucket)

	return nil
}

// ListVoices returns every voice, predefined first and then by name, each annotated with
// whether its audio file currently exists.
func (r *NatsRegistry) ListVoices(_ context.Context) ([]core.VoiceProfile, error) {
	keys, err := r.kv.Keys()
	if errors.Is(err, nats.ErrNoKeysFound) {
		return []core.VoiceProfile{}, nil
	}

	if err != nil {
		return nil, fmt.Errorf(errFmtListVoices, r.bucket, err)
	}

	profiles := make([]core.VoiceProfile, 0, len(keys))

	for _, key := range keys {
		entry, getErr := r.kv.Get(key)
		if errors.Is(getErr, nats.ErrKeyNotFound) {
			continue
		}

		if getErr != nil {
			return nil, fmt.Errorf(errFmtListVoices, r.bucket, getErr)
		}

		var stored record

		decodeErr := json.Unmarshal(entry.Value(), &stored)
		if decodeErr != nil {
			return nil, fmt.Errorf(errFmtDecodeVoice, key, decodeErr)
		}

		profiles = append(profiles, stored.profile())
	}

	SortProfiles(profiles)

	return profiles, nil
}

// GetVoiceByName returns the named voice or core.ErrVoiceNotFound.
func (r *NatsRegistry) GetVoiceByName(_ context.Context, name string) (core.VoiceProfile, error) {
	if strings.TrimSpace(name) == "" {
		return core.VoiceProfile{}, fmt.Errorf("%w: voice name", core.ErrInputMissing)
	}

	entry, err := r.kv.Get(keyFor(name))
	if errors.Is(err, nats.ErrKeyNotFound) {
		return core.VoiceProfile{}, fmt.Errorf("%w: %q", core.ErrVoiceNotFound, name)
	}

	if err != nil {
		return core.VoiceProfile{}, fmt.Errorf(errFmtGetVoice, name, r.bucket, err)
	}

	var stored record

	decodeErr := json.Unmarshal(entry.Value(), &stored)
	if decodeErr != nil {
		return core.VoiceProfile{}, fmt.Errorf(errFmtDecodeVoice, name, decodeErr)
	}

	return stored.profile(), nil
}

// AddVoice persists a new voice. It fails with core.ErrVoiceExists when the name is taken.
func (r *NatsRegistry) AddVoice(_ context.Context, profile core.VoiceProfile) error {
	if strings.TrimSpace(profile.Name) == "" {
		return fmt.Errorf("%w: voice name", core.ErrInputMissing)
	}

	data, err := json.Marshal(newRecord(profile, r.now()))
	if err != nil {
		return fmt.Errorf(errFmtPutVoice, profile.Name, r.bucket, err)
	}

	_, createErr := r.kv.Create(keyFor(profile.Name), data)
	if errors.Is(createErr, nats.ErrKeyExists) {
		return fmt.Errorf("%w: %q", core.ErrVoiceExists, profile.Name)
	}

	if createErr != nil {
		return fmt.Errorf(errFmtPutVoice, profile.Name, r.bucket, createErr)
	}

	r.logger.Info(logFmtVoiceAdded, profile.Name, profile.VoiceID)

	return nil
}

// SortProfiles orders voices predefined first, then by name.
func SortProfiles(profiles []core.VoiceProfile) {
	sort.SliceStable(profiles, func(i, j int) bool {
		if profiles[i].IsPredefined != profiles[j].IsPredefined {
			return profiles[i].IsPredefined
		}

		return profiles[i].Name < profiles[j].Name
	})
}
