// Package events defines the structure for chat audit events produced to Kafka.
package events

import "time"

// 事件类型常量。
const (
	TypeChatCreated     = "chat.created"
	TypeChatRenamed     = "chat.renamed"
	TypeChatDeleted     = "chat.deleted"
	TypeMessageAppended = "message.appended"
)

// ChatEvent represents one audit record on the chat event stream.
// 下游分析/审计系统消费该流，本服务只生产不消费。
type ChatEvent struct {
	Type      string    `json:"type"`
	ChatID    string    `json:"chat_id"`
	UserID    string    `json:"user_id"`
	MessageID string    `json:"message_id,omitempty"`
	Role      string    `json:"role,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
