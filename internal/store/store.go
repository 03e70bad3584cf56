// Package store persists device records in SQLite through GORM and
// publishes the full list after every change.
package store

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rileyhilliard/bealink/internal/device"
	"github.com/rileyhilliard/bealink/internal/errors"
	"github.com/rileyhilliard/bealink/internal/logger"
)

// ErrNotFound is wrapped by errors for unknown device ids.
var ErrNotFound = stderrors.New("device not found")

type record struct {
	ID        string `gorm:"primaryKey;size:36"`
	Name      string `gorm:"index"`
	Hostname  string `gorm:"index"`
	MAC       string `gorm:"size:12"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (record) TableName() string { return "devices" }

func fromDevice(d device.Device) record {
	return record{ID: d.ID, Name: d.Name, Hostname: d.Hostname, MAC: d.MAC}
}

func (r record) toDevice() device.Device {
	return device.Device{ID: r.ID, Name: r.Name, Hostname: r.Hostname, MAC: r.MAC}
}

// Repository is the device table.
type Repository struct {
	db  *gorm.DB
	log logger.Logger

	mu     sync.Mutex
	subs   map[int]chan []device.Device
	nextID int

	// pubMu orders publishes: each list is read and sent before the next
	// one is read.
	pubMu sync.Mutex
}

// Open opens (creating if needed) the database at path and migrates it.
func Open(path string, log logger.Logger) (*Repository, error) {
	if log == nil {
		log = logger.Noop()
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrStore,
				"Cannot create database directory "+dir,
				"Check permissions or set database in your config")
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrStore, "Cannot open database "+path, "")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrStore, "Cannot open database "+path, "")
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&record{}); err != nil {
		_ = sqlDB.Close()
		return nil, errors.WrapWithCode(err, errors.ErrStore, "Cannot migrate database "+path, "")
	}

	log.Debug("store: opened %s", path)
	return &Repository{db: db, log: log, subs: make(map[int]chan []device.Device)}, nil
}

// Close closes the database. Subscriber channels are closed too.
func (r *Repository) Close() error {
	r.mu.Lock()
	for id, ch := range r.subs {
		close(ch)
		delete(r.subs, id)
	}
	r.mu.Unlock()

	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// List returns every device ordered by name, then id.
func (r *Repository) List(ctx context.Context) ([]device.Device, error) {
	var recs []record
	if err := r.db.WithContext(ctx).Order("LOWER(name), id").Find(&recs).Error; err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrStore, "Cannot list devices", "")
	}
	out := make([]device.Device, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.toDevice())
	}
	return out, nil
}

// Get returns one device.
func (r *Repository) Get(ctx context.Context, id string) (device.Device, error) {
	var rec record
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return device.Device{}, notFound(id)
	}
	if err != nil {
		return device.Device{}, errors.WrapWithCode(err, errors.ErrStore, "Cannot load device "+id, "")
	}
	return rec.toDevice(), nil
}

// Insert stores a new device, assigning an id when d.ID is empty.
func (r *Repository) Insert(ctx context.Context, d device.Device) (device.Device, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	rec := fromDevice(d)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return device.Device{}, errors.WrapWithCode(err, errors.ErrStore, "Cannot save device "+d.DisplayName(), "")
	}
	r.publish(ctx)
	return d, nil
}

// Update overwrites an existing device's fields.
func (r *Repository) Update(ctx context.Context, d device.Device) error {
	res := r.db.WithContext(ctx).Model(&record{}).Where("id = ?", d.ID).Updates(map[string]any{
		"name":       d.Name,
		"hostname":   d.Hostname,
		"mac":        d.MAC,
		"updated_at": time.Now(),
	})
	if res.Error != nil {
		return errors.WrapWithCode(res.Error, errors.ErrStore, "Cannot update device "+d.DisplayName(), "")
	}
	if res.RowsAffected == 0 {
		return notFound(d.ID)
	}
	r.publish(ctx)
	return nil
}

// Delete removes a device.
func (r *Repository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&record{})
	if res.Error != nil {
		return errors.WrapWithCode(res.Error, errors.ErrStore, "Cannot delete device "+id, "")
	}
	if res.RowsAffected == 0 {
		return notFound(id)
	}
	r.publish(ctx)
	return nil
}

// Subscribe returns a channel holding the latest device list. The current
// list is delivered immediately; a slow reader only ever sees the newest.
func (r *Repository) Subscribe(ctx context.Context) (<-chan []device.Device, func(), error) {
	r.pubMu.Lock()
	defer r.pubMu.Unlock()

	devices, err := r.List(ctx)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan []device.Device, 1)
	ch <- devices

	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.subs[id] = ch
	r.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if sub, ok := r.subs[id]; ok {
				delete(r.subs, id)
				close(sub)
			}
		})
	}, nil
}

func (r *Repository) publish(ctx context.Context) {
	r.pubMu.Lock()
	defer r.pubMu.Unlock()

	devices, err := r.List(context.WithoutCancel(ctx))
	if err != nil {
		r.log.Warn("store: cannot publish device list: %v", err)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ch := range r.subs {
		select {
		case <-ch:
		default:
		}
		ch <- devices
	}
}

func notFound(id string) error {
	return errors.WrapWithCode(ErrNotFound, errors.ErrDevice,
		"No device with id "+id,
		"Run 'bealink device list' to see device ids")
}
