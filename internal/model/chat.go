// Package model 包含了应用的数据模型定义。
package model

import "time"

// 消息角色常量，对应聊天中的发言方。
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// FileInfo 描述一条消息附带的上传文件元数据（仅元数据，不含文件内容）。
type FileInfo struct {
	Name string `json:"name" bson:"name"`
	Type string `json:"type" bson:"type"`
	Size int64  `json:"size" bson:"size"`
}

// MigrationResult 是一次迁移调用的结构化结果。
type MigrationResult struct {
	Workspace string `json:"workspace" bson:"workspace"`
	Report    string `json:"report" bson:"report"`
}

// Message 代表聊天中的一轮发言（用户或助手）。
// File 和 MigrationResult 为可选字段：不存在时整个字段省略，
// 绝不写入空占位（bson omitempty 配合指针类型保证这一点）。
type Message struct {
	ID              string           `json:"id" bson:"_id"`
	Role            string           `json:"role" bson:"role"`
	Content         string           `json:"content" bson:"content"`
	Timestamp       time.Time        `json:"timestamp" bson:"timestamp"`
	File            *FileInfo        `json:"file,omitempty" bson:"file,omitempty"`
	MigrationResult *MigrationResult `json:"migrationResult,omitempty" bson:"migrationResult,omitempty"`
}

// Chat 代表一次由单个用户拥有的迁移会话，包含按时间升序排列的消息历史。
// 消息持久化在独立的 chat_messages 集合中，Chat 文档本身只存元数据。
type Chat struct {
	ID        string    `json:"id" bson:"_id"`
	UserID    string    `json:"userId" bson:"userId"`
	Title     string    `json:"title" bson:"title"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
	Messages  []Message `json:"messages" bson:"-"`
}

// ChatUpdate 描述对聊天元数据的部分更新。
// 消息永远不通过它修改，消息追加走 AddMessage。
type ChatUpdate struct {
	Title *string
}
