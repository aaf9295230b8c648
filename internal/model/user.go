// Package model 定义了与数据库表对应的 Go 结构体。
package model

import (
	"strconv"
	"time"
)

// User 对应于数据库中的 'users' 表。
// 聊天归属通过 UserID 的字符串形式（见 StoreID）关联到 Mongo 中的聊天文档。
type User struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Email     string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Password  string    `gorm:"type:varchar(255);not null" json:"-"`
	Role      string    `gorm:"type:varchar(20);not null;default:'USER'" json:"role"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (User) TableName() string {
	return "users"
}

// StoreID 返回聊天存储中使用的所有者标识。
func (u *User) StoreID() string {
	return strconv.FormatUint(uint64(u.ID), 10)
}
