package models

import (
	"time"
)

// Entry is one key of the key-value table.
type Entry struct {
	Key   string    `json:"key" gorm:"primaryKey;type:text"`
	Value string    `json:"value" gorm:"type:text;not null"`
	CDate time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
	MDate time.Time `json:"mdate" gorm:"autoUpdateTime"`
}

func (Entry) TableName() string {
	return "kv_entries"
}
