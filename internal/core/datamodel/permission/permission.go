package permission

import "time"

type Permission struct {
	ID          int64     `gorm:"primaryKey"`
	Name        string    `gorm:"column:name;size:100;uniqueIndex;not null"`
	Description string    `gorm:"column:description"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (Permission) TableName() string {
	return "permissions"
}

type RolePermission struct {
	Role         string `gorm:"column:role;size:20;primaryKey"`
	PermissionID int64  `gorm:"column:permission_id;primaryKey"`
}

func (RolePermission) TableName() string {
	return "role_permissions"
}

type PositionPermission struct {
	PositionID   int64 `gorm:"column:position_id;primaryKey"`
	PermissionID int64 `gorm:"column:permission_id;primaryKey"`
}

func (PositionPermission) TableName() string {
	return "position_permissions"
}

type UserPermission struct {
	UserID       int64     `gorm:"column:user_id;primaryKey"`
	PermissionID int64     `gorm:"column:permission_id;primaryKey"`
	GrantedBy    *int64    `gorm:"column:granted_by"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (UserPermission) TableName() string {
	return "user_permissions"
}
