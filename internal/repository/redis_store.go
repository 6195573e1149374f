package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/pdb-slot-api/internal/models"
	"github.com/noah-isme/pdb-slot-api/internal/scheduling"
	appErrors "github.com/noah-isme/pdb-slot-api/pkg/errors"
)

const (
	redisSlotPrefix   = "pdb:slot:"
	redisLecturersKey = "pdb:lecturers"
	redisSettingsKey  = "pdb:settings"
)

func slotKey(id string) string {
	return redisSlotPrefix + id
}

func periodKey(period string) string {
	return "pdb:period:" + period + ":slots"
}

// RedisSlotStore keeps each slot as a JSON value with one index set per
// period. Claim and Unclaim are optimistic WATCH/MULTI transactions on the
// slot key, retried a bounded number of times under contention.
type RedisSlotStore struct {
	client  *redis.Client
	retries int
}

// NewRedisSlotStore wraps a client. retries <= 0 falls back to 8.
func NewRedisSlotStore(client *redis.Client, retries int) *RedisSlotStore {
	if retries <= 0 {
		retries = 8
	}
	return &RedisSlotStore{client: client, retries: retries}
}

func decodeSlot(raw []byte) (*models.ScheduleSlot, error) {
	var slot models.ScheduleSlot
	if err := json.Unmarshal(raw, &slot); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "corrupt slot record")
	}
	if slot.Claimants == nil {
		slot.Claimants = models.Claimants{}
	}
	return &slot, nil
}

// List loads the period index and fetches every member.
func (s *RedisSlotStore) List(ctx context.Context, period string) ([]models.ScheduleSlot, error) {
	ids, err := s.client.SMembers(ctx, periodKey(period)).Result()
	if err != nil {
		return nil, classify(err, "failed to list slots")
	}
	slots, err := s.load(ctx, ids)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(slots, func(i, j int) bool {
		if !slots[i].CreatedAt.Equal(slots[j].CreatedAt) {
			return slots[i].CreatedAt.Before(slots[j].CreatedAt)
		}
		return slots[i].ID < slots[j].ID
	})
	return slots, nil
}

func (s *RedisSlotStore) load(ctx context.Context, ids []string) ([]models.ScheduleSlot, error) {
	out := make([]models.ScheduleSlot, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = slotKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, classify(err, "failed to load slots")
	}
	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			// Index entry outlived its slot.
			continue
		}
		slot, err := decodeSlot([]byte(raw))
		if err != nil {
			return nil, err
		}
		out = append(out, *slot)
	}
	return out, nil
}

// Get returns a slot by id.
func (s *RedisSlotStore) Get(ctx context.Context, id string) (*models.ScheduleSlot, error) {
	raw, err := s.client.Get(ctx, slotKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, classify(err, "failed to load slot")
	}
	return decodeSlot(raw)
}

// Create stores a slot and indexes it under its period.
func (s *RedisSlotStore) Create(ctx context.Context, slot *models.ScheduleSlot) error {
	slots := []models.ScheduleSlot{*slot}
	if err := s.CreateBatch(ctx, slots); err != nil {
		return err
	}
	*slot = slots[0]
	return nil
}

// CreateBatch writes all slots in a single MULTI/EXEC.
func (s *RedisSlotStore) CreateBatch(ctx context.Context, slots []models.ScheduleSlot) error {
	if len(slots) == 0 {
		return nil
	}
	keys := make([]string, len(slots))
	for i := range slots {
		keys[i] = slotKey(slots[i].ID)
	}
	existing, err := s.client.Exists(ctx, keys...).Result()
	if err != nil {
		return classify(err, "failed to check slot ids")
	}
	if existing > 0 {
		return appErrors.Clone(appErrors.ErrDuplicate, "slot id already exists")
	}

	now := time.Now().UTC()
	payloads := make([][]byte, len(slots))
	for i := range slots {
		stamp(&slots[i], now)
		payload, err := json.Marshal(slots[i])
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode slot")
		}
		payloads[i] = payload
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i := range slots {
			pipe.Set(ctx, keys[i], payloads[i], 0)
			pipe.SAdd(ctx, periodKey(slots[i].AcademicPeriod), slots[i].ID)
		}
		return nil
	})
	return classify(err, "failed to store slots")
}

// Delete removes the slot and its index entry atomically.
func (s *RedisSlotStore) Delete(ctx context.Context, id string) (*models.ScheduleSlot, error) {
	var deleted *models.ScheduleSlot
	err := s.optimistic(ctx, id, func(tx *redis.Tx, slot *models.ScheduleSlot) error {
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, slotKey(id))
			pipe.SRem(ctx, periodKey(slot.AcademicPeriod), id)
			return nil
		})
		deleted = slot
		return err
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// optimistic loads the slot under WATCH and hands it to fn, which must queue
// its writes with tx.TxPipelined. Transactions aborted by a concurrent write
// are retried.
func (s *RedisSlotStore) optimistic(ctx context.Context, id string, fn func(tx *redis.Tx, slot *models.ScheduleSlot) error) error {
	key := slotKey(id)
	for attempt := 0; attempt < s.retries; attempt++ {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				return notFound(id)
			}
			if err != nil {
				return err
			}
			slot, err := decodeSlot(raw)
			if err != nil {
				return err
			}
			return fn(tx, slot)
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return classify(err, "slot transaction failed")
	}
	return appErrors.Clone(appErrors.ErrBackendUnavailable, fmt.Sprintf("slot %s is under heavy contention, retry later", id))
}

func (s *RedisSlotStore) mutate(ctx context.Context, id string, fn func(*models.ScheduleSlot) (bool, error)) (*models.ScheduleSlot, error) {
	var result *models.ScheduleSlot
	err := s.optimistic(ctx, id, func(tx *redis.Tx, slot *models.ScheduleSlot) error {
		changed, err := fn(slot)
		if err != nil {
			return err
		}
		result = slot
		if !changed {
			return nil
		}
		slot.UpdatedAt = time.Now().UTC()
		payload, err := json.Marshal(slot)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, slotKey(id), payload, 0)
			return nil
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Claim adds claimant inside a WATCH/MULTI transaction.
func (s *RedisSlotStore) Claim(ctx context.Context, id string, claimant models.Claimant, maxClaimants int) (*models.ScheduleSlot, error) {
	return s.mutate(ctx, id, func(slot *models.ScheduleSlot) (bool, error) {
		return true, scheduling.ApplyClaim(slot, claimant, maxClaimants)
	})
}

// Unclaim removes the lecturer. A missing slot is not an error.
func (s *RedisSlotStore) Unclaim(ctx context.Context, id, lecturerID string) (*models.ScheduleSlot, error) {
	slot, err := s.mutate(ctx, id, func(slot *models.ScheduleSlot) (bool, error) {
		return scheduling.ApplyUnclaim(slot, lecturerID), nil
	})
	if errors.Is(err, appErrors.ErrNotFound) {
		return nil, nil
	}
	return slot, err
}

// RefreshClaimant scans every slot key and rewrites matching snapshots.
func (s *RedisSlotStore) RefreshClaimant(ctx context.Context, claimant models.Claimant) ([]models.ScheduleSlot, error) {
	var ids []string
	iter := s.client.Scan(ctx, 0, redisSlotPrefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), redisSlotPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, classify(err, "failed to scan slots")
	}
	sort.Strings(ids)

	updated := []models.ScheduleSlot{}
	for _, id := range ids {
		var changed bool
		slot, err := s.mutate(ctx, id, func(slot *models.ScheduleSlot) (bool, error) {
			changed = scheduling.ApplyRefresh(slot, claimant)
			return changed, nil
		})
		if errors.Is(err, appErrors.ErrNotFound) {
			continue
		}
		if err != nil {
			return updated, err
		}
		if changed {
			updated = append(updated, *slot)
		}
	}
	return updated, nil
}

// Ping checks Redis connectivity.
func (s *RedisSlotStore) Ping(ctx context.Context) error {
	return classify(s.client.Ping(ctx).Err(), "redis unreachable")
}

// lecturerRecord keeps the password hash, which models.Lecturer hides from JSON.
type lecturerRecord struct {
	models.Lecturer
	PasswordHash string `json:"password_hash"`
}

// RedisLecturerStore keeps the lecturer directory in one hash keyed by NIP.
type RedisLecturerStore struct {
	client *redis.Client
}

// NewRedisLecturerStore wraps a client.
func NewRedisLecturerStore(client *redis.Client) *RedisLecturerStore {
	return &RedisLecturerStore{client: client}
}

func encodeLecturer(l *models.Lecturer) ([]byte, error) {
	return json.Marshal(lecturerRecord{Lecturer: *l, PasswordHash: l.PasswordHash})
}

func decodeLecturer(raw string) (models.Lecturer, error) {
	var rec lecturerRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return models.Lecturer{}, err
	}
	rec.Lecturer.PasswordHash = rec.PasswordHash
	return rec.Lecturer, nil
}

// List returns lecturers matching the filter, ordered by name.
func (s *RedisLecturerStore) List(ctx context.Context, filter models.LecturerFilter) ([]models.Lecturer, int, error) {
	all, err := s.client.HGetAll(ctx, redisLecturersKey).Result()
	if err != nil {
		return nil, 0, classify(err, "failed to list lecturers")
	}
	mem := NewMemoryLecturerStore()
	for _, raw := range all {
		l, err := decodeLecturer(raw)
		if err != nil {
			return nil, 0, classify(err, "corrupt lecturer record")
		}
		mem.lecturers[l.NIP] = l
	}
	return mem.List(ctx, filter)
}

// Get returns a lecturer by NIP.
func (s *RedisLecturerStore) Get(ctx context.Context, nip string) (*models.Lecturer, error) {
	raw, err := s.client.HGet(ctx, redisLecturersKey, nip).Result()
	if errors.Is(err, redis.Nil) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "lecturer not found")
	}
	if err != nil {
		return nil, classify(err, "failed to load lecturer")
	}
	l, err := decodeLecturer(raw)
	if err != nil {
		return nil, classify(err, "corrupt lecturer record")
	}
	return &l, nil
}

// Create inserts a lecturer with HSETNX so concurrent registrations cannot overwrite each other.
func (s *RedisLecturerStore) Create(ctx context.Context, lecturer *models.Lecturer) error {
	now := time.Now().UTC()
	lecturer.CreatedAt = now
	lecturer.UpdatedAt = now
	payload, err := encodeLecturer(lecturer)
	if err != nil {
		return classify(err, "failed to encode lecturer")
	}
	created, err := s.client.HSetNX(ctx, redisLecturersKey, lecturer.NIP, payload).Result()
	if err != nil {
		return classify(err, "failed to create lecturer")
	}
	if !created {
		return appErrors.Clone(appErrors.ErrDuplicate, "lecturer already registered")
	}
	return nil
}

// Update replaces an existing lecturer.
func (s *RedisLecturerStore) Update(ctx context.Context, lecturer *models.Lecturer) error {
	current, err := s.Get(ctx, lecturer.NIP)
	if err != nil {
		return err
	}
	lecturer.CreatedAt = current.CreatedAt
	lecturer.UpdatedAt = time.Now().UTC()
	payload, err := encodeLecturer(lecturer)
	if err != nil {
		return classify(err, "failed to encode lecturer")
	}
	return classify(s.client.HSet(ctx, redisLecturersKey, lecturer.NIP, payload).Err(), "failed to update lecturer")
}

// Delete removes a lecturer.
func (s *RedisLecturerStore) Delete(ctx context.Context, nip string) error {
	removed, err := s.client.HDel(ctx, redisLecturersKey, nip).Result()
	if err != nil {
		return classify(err, "failed to delete lecturer")
	}
	if removed == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "lecturer not found")
	}
	return nil
}

// RedisSettingsStore keeps settings in a single hash.
type RedisSettingsStore struct {
	client *redis.Client
}

// NewRedisSettingsStore wraps a client.
func NewRedisSettingsStore(client *redis.Client) *RedisSettingsStore {
	return &RedisSettingsStore{client: client}
}

// GetSetting returns the stored value and whether it exists.
func (s *RedisSettingsStore) GetSetting(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.HGet(ctx, redisSettingsKey, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, classify(err, "failed to read setting")
	}
	return value, true, nil
}

// SetSetting stores value under key.
func (s *RedisSettingsStore) SetSetting(ctx context.Context, key, value string) error {
	return classify(s.client.HSet(ctx, redisSettingsKey, key, value).Err(), "failed to write setting")
}
