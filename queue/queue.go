// Package queue stores explicit one-shot scheduled posts and photos.
package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"gbp-autoposter/pkg/autopost"
)

// Table names.
const (
	PostsTable  = "scheduled_posts"
	PhotosTable = "scheduled_photos"
)

// MaxErrorLength bounds the stored failure text.
const MaxErrorLength = 500

var (
	// ErrNotFound is returned when no item has the given id.
	ErrNotFound = errors.New("scheduled item not found")
	// ErrNotQueued is returned when a transition is attempted on an item that is no longer QUEUED.
	ErrNotQueued = errors.New("scheduled item is not queued")
)

// itemModel is the row shape shared by both queue tables. Indexes are
// created per table in Migrate.
type itemModel struct {
	ID        string         `gorm:"primaryKey;size:36"`
	ProfileID string         `gorm:"column:profile_id;not null"`
	RunAt     time.Time      `gorm:"column:run_at;not null"`
	CreatedAt time.Time      `gorm:"column:created_at;not null"`
	BodyJSON  string         `gorm:"column:body_json;type:text"`
	Status    string         `gorm:"column:status;size:16;not null;default:'QUEUED'"`
	PostedAt  sql.NullTime   `gorm:"column:posted_at"`
	LastURL   sql.NullString `gorm:"column:last_url"`
	LastError sql.NullString `gorm:"column:last_error;size:500"`
}

func toModel(it autopost.ScheduledItem) (itemModel, error) {
	body, err := json.Marshal(it.Body)
	if err != nil {
		return itemModel{}, fmt.Errorf("encode body: %w", err)
	}
	m := itemModel{
		ID:        it.ID,
		ProfileID: it.ProfileID,
		RunAt:     it.RunAt.UTC(),
		CreatedAt: it.CreatedAt.UTC(),
		BodyJSON:  string(body),
		Status:    string(it.Status),
		LastURL:   sql.NullString{String: it.LastURL, Valid: it.LastURL != ""},
		LastError: sql.NullString{String: it.LastError, Valid: it.LastError != ""},
	}
	if it.PostedAt != nil {
		m.PostedAt = sql.NullTime{Time: it.PostedAt.UTC(), Valid: true}
	}
	return m, nil
}

func fromModel(m itemModel) autopost.ScheduledItem {
	it := autopost.ScheduledItem{
		ID:        m.ID,
		ProfileID: m.ProfileID,
		RunAt:     m.RunAt.UTC(),
		CreatedAt: m.CreatedAt.UTC(),
		Status:    autopost.Status(m.Status),
		LastURL:   m.LastURL.String,
		LastError: m.LastError.String,
	}
	if m.BodyJSON != "" {
		// A corrupt body leaves the overrides empty; the item is still listable and deletable.
		_ = json.Unmarshal([]byte(m.BodyJSON), &it.Body)
	}
	if m.PostedAt.Valid {
		t := m.PostedAt.Time.UTC()
		it.PostedAt = &t
	}
	return it
}

// Queue is one durable table of scheduled items.
type Queue struct {
	db     *gorm.DB
	table  string
	logger *slog.Logger
	now    func() time.Time
}

// NewPosts returns the post queue.
func NewPosts(db *gorm.DB, logger *slog.Logger) *Queue {
	return newQueue(db, PostsTable, logger)
}

// NewPhotos returns the photo queue.
func NewPhotos(db *gorm.DB, logger *slog.Logger) *Queue {
	return newQueue(db, PhotosTable, logger)
}

func newQueue(db *gorm.DB, table string, logger *slog.Logger) *Queue {
	return &Queue{
		db:     db,
		table:  table,
		logger: logger.With("queue", table),
		now:    time.Now,
	}
}

// Name returns the table backing the queue.
func (q *Queue) Name() string {
	return q.table
}

func (q *Queue) tx(ctx context.Context) *gorm.DB {
	return q.db.WithContext(ctx).Table(q.table)
}

func (q *Queue) prepare(it autopost.ScheduledItem) (itemModel, error) {
	if it.ProfileID == "" {
		return itemModel{}, errors.New("missing profileId")
	}
	if it.RunAt.IsZero() {
		return itemModel{}, errors.New("missing runAt")
	}
	it.ID = uuid.NewString()
	it.CreatedAt = q.now().UTC()
	it.Status = autopost.StatusQueued
	it.PostedAt = nil
	it.LastURL = ""
	it.LastError = ""
	return toModel(it)
}

// Enqueue stores a new QUEUED item and returns it with its assigned id.
func (q *Queue) Enqueue(ctx context.Context, it autopost.ScheduledItem) (autopost.ScheduledItem, error) {
	m, err := q.prepare(it)
	if err != nil {
		return autopost.ScheduledItem{}, err
	}
	if err := q.tx(ctx).Create(&m).Error; err != nil {
		return autopost.ScheduledItem{}, fmt.Errorf("insert item: %w", err)
	}
	q.logger.Info("Scheduled item enqueued", "id", m.ID, "profile_id", m.ProfileID, "run_at", m.RunAt.Format(time.RFC3339))
	return fromModel(m), nil
}

// EnqueueMany stores several items in one transaction.
func (q *Queue) EnqueueMany(ctx context.Context, items []autopost.ScheduledItem) ([]autopost.ScheduledItem, error) {
	models := make([]itemModel, 0, len(items))
	for _, it := range items {
		m, err := q.prepare(it)
		if err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	if len(models) == 0 {
		return nil, nil
	}
	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Table(q.table).Create(&models).Error
	})
	if err != nil {
		return nil, fmt.Errorf("insert items: %w", err)
	}
	out := make([]autopost.ScheduledItem, len(models))
	for i, m := range models {
		out[i] = fromModel(m)
	}
	q.logger.Info("Scheduled items enqueued", "count", len(out))
	return out, nil
}

// ListDue returns QUEUED items with runAt at or before now, oldest first.
func (q *Queue) ListDue(ctx context.Context, now time.Time) ([]autopost.ScheduledItem, error) {
	var models []itemModel
	err := q.tx(ctx).
		Where("status = ? AND run_at <= ?", string(autopost.StatusQueued), now.UTC()).
		Order("run_at ASC").Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("list due items: %w", err)
	}
	return fromModels(models), nil
}

// List returns items ordered by runAt. Unless all is set, only QUEUED items are returned.
func (q *Queue) List(ctx context.Context, all bool) ([]autopost.ScheduledItem, error) {
	var models []itemModel
	tx := q.tx(ctx)
	if !all {
		tx = tx.Where("status = ?", string(autopost.StatusQueued))
	}
	if err := tx.Order("run_at ASC").Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return fromModels(models), nil
}

// CountQueued returns the number of QUEUED items per profile.
func (q *Queue) CountQueued(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		ProfileID string
		N         int
	}
	err := q.tx(ctx).
		Select("profile_id, COUNT(*) AS n").
		Where("status = ?", string(autopost.StatusQueued)).
		Group("profile_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count queued items: %w", err)
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.ProfileID] = r.N
	}
	return out, nil
}

// Get returns one item.
func (q *Queue) Get(ctx context.Context, id string) (autopost.ScheduledItem, error) {
	var m itemModel
	if err := q.tx(ctx).Where("id = ?", id).Take(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return autopost.ScheduledItem{}, ErrNotFound
		}
		return autopost.ScheduledItem{}, fmt.Errorf("get item: %w", err)
	}
	return fromModel(m), nil
}

// MarkPosted moves a QUEUED item to POSTED.
func (q *Queue) MarkPosted(ctx context.Context, id, postedURL string) error {
	return q.finish(ctx, id, map[string]any{
		"status":    string(autopost.StatusPosted),
		"posted_at": q.now().UTC(),
		"last_url":  postedURL,
	})
}

// MarkFailed moves a QUEUED item to FAILED, storing the truncated error text.
func (q *Queue) MarkFailed(ctx context.Context, id string, cause error) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	if r := []rune(msg); len(r) > MaxErrorLength {
		msg = string(r[:MaxErrorLength])
	}
	return q.finish(ctx, id, map[string]any{
		"status":     string(autopost.StatusFailed),
		"posted_at":  q.now().UTC(),
		"last_error": msg,
	})
}

// finish applies a terminal transition only while the row is still QUEUED.
func (q *Queue) finish(ctx context.Context, id string, fields map[string]any) error {
	res := q.tx(ctx).
		Where("id = ? AND status = ?", id, string(autopost.StatusQueued)).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update item status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := q.Get(ctx, id); err != nil {
			return err
		}
		return ErrNotQueued
	}
	q.logger.Info("Scheduled item finished", "id", id, "status", fields["status"])
	return nil
}

// Delete removes an item regardless of status.
func (q *Queue) Delete(ctx context.Context, id string) error {
	res := q.tx(ctx).Where("id = ?", id).Delete(&itemModel{})
	if res.Error != nil {
		return fmt.Errorf("delete item: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	q.logger.Info("Scheduled item deleted", "id", id)
	return nil
}

// Patch is a partial update of a scheduled item. Status cannot be patched.
type Patch struct {
	RunAt *time.Time
	Body  *autopost.PostBody
}

// Update applies a patch and returns the updated item.
func (q *Queue) Update(ctx context.Context, id string, p Patch) (autopost.ScheduledItem, error) {
	fields := map[string]any{}
	if p.RunAt != nil {
		if p.RunAt.IsZero() {
			return autopost.ScheduledItem{}, errors.New("invalid runAt")
		}
		fields["run_at"] = p.RunAt.UTC()
	}
	if p.Body != nil {
		body, err := json.Marshal(p.Body)
		if err != nil {
			return autopost.ScheduledItem{}, fmt.Errorf("encode body: %w", err)
		}
		fields["body_json"] = string(body)
	}
	if len(fields) == 0 {
		return q.Get(ctx, id)
	}
	res := q.tx(ctx).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return autopost.ScheduledItem{}, fmt.Errorf("update item: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return autopost.ScheduledItem{}, ErrNotFound
	}
	return q.Get(ctx, id)
}

func fromModels(models []itemModel) []autopost.ScheduledItem {
	out := make([]autopost.ScheduledItem, len(models))
	for i, m := range models {
		out[i] = fromModel(m)
	}
	return out
}
