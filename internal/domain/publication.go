package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// PublicationStatus is the outcome of publishing an idea to one platform.
type PublicationStatus string

const (
	PublicationStatusPublished PublicationStatus = "published"
	PublicationStatusFailed    PublicationStatus = "failed"
)

// StringArray stores a string slice as a JSON text column.
type StringArray []string

// Value implements driver.Valuer.
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (a *StringArray) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*a = StringArray{}
		return nil
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return errors.New("failed to scan StringArray")
	}
}

// Publication records one attempt to publish an idea on one platform.
type Publication struct {
	ID          string            `gorm:"type:text;primaryKey" json:"id"`
	RunID       string            `gorm:"type:text;not null;index:idx_publications_run" json:"run_id"`
	IdeaID      string            `gorm:"type:text;not null;index:idx_publications_idea" json:"idea_id"`
	Title       string            `gorm:"type:text;not null" json:"title"`
	Tags        StringArray       `gorm:"type:text" json:"tags"`
	Platform    string            `gorm:"type:text;not null" json:"platform"`
	Status      PublicationStatus `gorm:"type:text;not null;index:idx_publications_status" json:"status"`
	Draft       bool              `json:"draft"`
	URL         string            `gorm:"type:text" json:"url,omitempty"`
	Error       string            `gorm:"type:text" json:"error,omitempty"`
	ArchiveKey  string            `gorm:"type:text" json:"archive_key,omitempty"`
	ContentSize int               `json:"content_size"`
	CreatedAt   time.Time         `json:"created_at"`
}

// TableName returns the table name for Publication.
func (Publication) TableName() string {
	return "publications"
}
