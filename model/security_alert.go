package model

import "time"

// SecurityAlert archives an alert beyond the retention of the key-value
// store.
type SecurityAlert struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	AlertID     string    `gorm:"size:36;not null;uniqueIndex"` // uuid assigned when the alert was raised
	EventType   string    `gorm:"size:64;not null;index"`       // authentication_failure, xss_attempt...
	Severity    string    `gorm:"size:16;not null;index"`       // low, medium, high, critical
	Identifier  string    `gorm:"size:255;not null;index"`      // ip address or user id
	Count       int       `gorm:"not null"`                     // events observed in the window
	WindowMs    int64     `gorm:"not null"`                     // window length in milliseconds
	Threshold   int       `gorm:"not null"`                     // configured count
	TriggeredAt time.Time `gorm:"not null;index"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}
