package audit

import "time"

// AuditLog mirrors the audit_logs table. Only the sqlite schema path migrates it through gorm;
// reads and writes go through sqlx.
type AuditLog struct {
	ID         int64     `gorm:"primaryKey"`
	EventID    string    `gorm:"column:event_id;size:64;uniqueIndex;not null"`
	ActorID    int64     `gorm:"column:actor_id;index;not null"`
	Action     string    `gorm:"column:action;size:64;index;not null"`
	Outcome    string    `gorm:"column:outcome;size:16;not null"`
	Target     string    `gorm:"column:target;size:200"`
	Details    string    `gorm:"column:details"`
	OccurredAt time.Time `gorm:"column:occurred_at;index;not null"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
