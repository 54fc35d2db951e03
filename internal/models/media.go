package models

import (
	"time"

	"github.com/google/uuid"
)

// MediaFile описывает фотоподтверждение выполненных работ.
type MediaFile struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	JobID     *uuid.UUID `db:"job_id" json:"job_id,omitempty"`
	UserID    uuid.UUID  `db:"user_id" json:"user_id"`
	FilePath  string     `db:"file_path" json:"file_path"`
	FileType  string     `db:"file_type" json:"file_type"`
	FileSize  int64      `db:"file_size" json:"file_size"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}
