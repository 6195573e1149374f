package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/pdb-slot-api/internal/models"
	"github.com/noah-isme/pdb-slot-api/internal/scheduling"
	appErrors "github.com/noah-isme/pdb-slot-api/pkg/errors"
)

type memoryEntry struct {
	mu      sync.Mutex
	slot    models.ScheduleSlot
	seq     uint64
	deleted bool
}

// MemorySlotStore keeps slots in process memory. Each slot has its own mutex
// so claims on different slots never contend.
type MemorySlotStore struct {
	mu    sync.RWMutex
	slots map[string]*memoryEntry
	seq   uint64
}

// NewMemorySlotStore returns an empty store.
func NewMemorySlotStore() *MemorySlotStore {
	return &MemorySlotStore{slots: make(map[string]*memoryEntry)}
}

// List returns copies of every slot in period in insertion order.
func (s *MemorySlotStore) List(ctx context.Context, period string) ([]models.ScheduleSlot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	entries := make([]*memoryEntry, 0, len(s.slots))
	for _, entry := range s.slots {
		entries = append(entries, entry)
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	out := make([]models.ScheduleSlot, 0, len(entries))
	for _, entry := range entries {
		entry.mu.Lock()
		if !entry.deleted && entry.slot.AcademicPeriod == period {
			out = append(out, entry.slot.Clone())
		}
		entry.mu.Unlock()
	}
	return out, nil
}

func (s *MemorySlotStore) entry(id string) (*memoryEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.slots[id]
	return entry, ok
}

func notFound(id string) error {
	return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("slot %s not found", id))
}

// Get returns a copy of the slot.
func (s *MemorySlotStore) Get(_ context.Context, id string) (*models.ScheduleSlot, error) {
	entry, ok := s.entry(id)
	if !ok {
		return nil, notFound(id)
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.deleted {
		return nil, notFound(id)
	}
	slot := entry.slot.Clone()
	return &slot, nil
}

// Create stores a copy of slot.
func (s *MemorySlotStore) Create(ctx context.Context, slot *models.ScheduleSlot) error {
	slots := []models.ScheduleSlot{*slot}
	if err := s.CreateBatch(ctx, slots); err != nil {
		return err
	}
	*slot = slots[0]
	return nil
}

// CreateBatch stores every slot or none of them.
func (s *MemorySlotStore) CreateBatch(_ context.Context, slots []models.ScheduleSlot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, slot := range slots {
		if _, exists := s.slots[slot.ID]; exists {
			return appErrors.Clone(appErrors.ErrDuplicate, fmt.Sprintf("slot %s already exists", slot.ID))
		}
	}
	now := time.Now().UTC()
	for i := range slots {
		stamp(&slots[i], now)
		s.seq++
		s.slots[slots[i].ID] = &memoryEntry{slot: slots[i].Clone(), seq: s.seq}
	}
	return nil
}

// Delete removes the slot. Claims racing with the delete observe NotFound.
func (s *MemorySlotStore) Delete(_ context.Context, id string) (*models.ScheduleSlot, error) {
	s.mu.Lock()
	entry, ok := s.slots[id]
	if ok {
		delete(s.slots, id)
	}
	s.mu.Unlock()
	if !ok {
		return nil, notFound(id)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.deleted = true
	slot := entry.slot.Clone()
	return &slot, nil
}

func (s *MemorySlotStore) mutate(id string, fn func(*models.ScheduleSlot) (bool, error)) (*models.ScheduleSlot, error) {
	entry, ok := s.entry(id)
	if !ok {
		return nil, notFound(id)
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.deleted {
		return nil, notFound(id)
	}

	working := entry.slot.Clone()
	changed, err := fn(&working)
	if err != nil {
		return nil, err
	}
	if changed {
		working.UpdatedAt = time.Now().UTC()
		entry.slot = working
	}
	out := entry.slot.Clone()
	return &out, nil
}

// Claim adds claimant under the slot's mutex.
func (s *MemorySlotStore) Claim(ctx context.Context, id string, claimant models.Claimant, maxClaimants int) (*models.ScheduleSlot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.mutate(id, func(slot *models.ScheduleSlot) (bool, error) {
		return true, scheduling.ApplyClaim(slot, claimant, maxClaimants)
	})
}

// Unclaim removes the lecturer. A missing slot is not an error.
func (s *MemorySlotStore) Unclaim(ctx context.Context, id, lecturerID string) (*models.ScheduleSlot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	slot, err := s.mutate(id, func(slot *models.ScheduleSlot) (bool, error) {
		return scheduling.ApplyUnclaim(slot, lecturerID), nil
	})
	if errors.Is(err, appErrors.ErrNotFound) {
		return nil, nil
	}
	return slot, err
}

// RefreshClaimant rewrites the claimant snapshot across all periods.
func (s *MemorySlotStore) RefreshClaimant(_ context.Context, claimant models.Claimant) ([]models.ScheduleSlot, error) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.slots))
	for id := range s.slots {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)

	updated := []models.ScheduleSlot{}
	for _, id := range ids {
		var changed bool
		slot, err := s.mutate(id, func(slot *models.ScheduleSlot) (bool, error) {
			changed = scheduling.ApplyRefresh(slot, claimant)
			return changed, nil
		})
		if err != nil {
			continue
		}
		if changed {
			updated = append(updated, *slot)
		}
	}
	return updated, nil
}

// Ping always succeeds.
func (s *MemorySlotStore) Ping(context.Context) error { return nil }

// MemoryLecturerStore is the in-process lecturer directory.
type MemoryLecturerStore struct {
	mu        sync.RWMutex
	lecturers map[string]models.Lecturer
}

// NewMemoryLecturerStore returns an empty directory.
func NewMemoryLecturerStore() *MemoryLecturerStore {
	return &MemoryLecturerStore{lecturers: make(map[string]models.Lecturer)}
}

// List filters by case-insensitive name or NIP substring.
func (s *MemoryLecturerStore) List(_ context.Context, filter models.LecturerFilter) ([]models.Lecturer, int, error) {
	s.mu.RLock()
	matches := make([]models.Lecturer, 0, len(s.lecturers))
	needle := strings.ToLower(filter.Search)
	for _, l := range s.lecturers {
		if needle == "" || strings.Contains(strings.ToLower(l.Name), needle) || strings.Contains(l.NIP, needle) {
			matches = append(matches, l)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Name != matches[j].Name {
			return matches[i].Name < matches[j].Name
		}
		return matches[i].NIP < matches[j].NIP
	})
	page, size := normalizePage(filter.Page, filter.PageSize)
	start := (page - 1) * size
	if start > len(matches) {
		start = len(matches)
	}
	end := start + size
	if end > len(matches) {
		end = len(matches)
	}
	return matches[start:end], len(matches), nil
}

// Get returns a lecturer by NIP.
func (s *MemoryLecturerStore) Get(_ context.Context, nip string) (*models.Lecturer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lecturers[nip]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "lecturer not found")
	}
	return &l, nil
}

// Create inserts a lecturer.
func (s *MemoryLecturerStore) Create(_ context.Context, lecturer *models.Lecturer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.lecturers[lecturer.NIP]; exists {
		return appErrors.Clone(appErrors.ErrDuplicate, "lecturer already registered")
	}
	now := time.Now().UTC()
	lecturer.CreatedAt = now
	lecturer.UpdatedAt = now
	s.lecturers[lecturer.NIP] = *lecturer
	return nil
}

// Update replaces a lecturer.
func (s *MemoryLecturerStore) Update(_ context.Context, lecturer *models.Lecturer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.lecturers[lecturer.NIP]
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "lecturer not found")
	}
	lecturer.CreatedAt = current.CreatedAt
	lecturer.UpdatedAt = time.Now().UTC()
	s.lecturers[lecturer.NIP] = *lecturer
	return nil
}

// Delete removes a lecturer.
func (s *MemoryLecturerStore) Delete(_ context.Context, nip string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lecturers[nip]; !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "lecturer not found")
	}
	delete(s.lecturers, nip)
	return nil
}

// MemorySettingsStore keeps settings in a map.
type MemorySettingsStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemorySettingsStore returns an empty settings store.
func NewMemorySettingsStore() *MemorySettingsStore {
	return &MemorySettingsStore{values: make(map[string]string)}
}

// GetSetting returns the value for key.
func (s *MemorySettingsStore) GetSetting(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

// SetSetting stores value under key.
func (s *MemorySettingsStore) SetSetting(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}
