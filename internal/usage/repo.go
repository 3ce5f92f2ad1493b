package usage

import (
	"context"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Insert(ctx context.Context, rec *Record) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

// InsertFromEvent converts a queue event into a row.
func (r *Repo) InsertFromEvent(ctx context.Context, ev Event) error {
	rec := &Record{
		UserID:    ev.UserID,
		SessionID: ev.SessionID,
		Endpoint:  ev.Endpoint,
		UserAgent: ev.UserAgent,
		IPAddress: ev.IPAddress,
		CreatedAt: ev.At,
	}
	return r.Insert(ctx, rec)
}
