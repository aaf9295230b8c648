// Package session 实现了会话缓存：聊天状态的内存投影，供 UI 同步读取。
// 远端聊天存储是权威数据源，这里只保存当前已加载内容的镜像。
package session

import (
	"sync"
	"time"

	"cloudshift-go/internal/model"
)

// State 是会话状态的一次不可变快照。
type State struct {
	CurrentChat *model.Chat  `json:"currentChat"`
	Chats       []model.Chat `json:"chats"`
	Loading     bool         `json:"loading"`
	Error       string       `json:"error,omitempty"`
}

// Store 是单个用户会话的状态容器。
// 内部以 chatID -> Chat 的规范化映射加一个"当前聊天"指针存储，
// 当前聊天不再在列表里保存第二份副本，追加消息只写一处。
// 所有变更都通过具名转换方法进行；每次变更后向订阅者广播新快照。
type Store struct {
	mu        sync.Mutex
	chats     map[string]model.Chat
	order     []string // 最近优先的展示顺序
	currentID string
	loading   bool
	errMsg    string

	subs    map[int]chan State
	nextSub int
}

// NewStore 创建一个空的会话状态容器。
func NewStore() *Store {
	return &Store{
		chats: make(map[string]model.Chat),
		subs:  make(map[int]chan State),
	}
}

// SetCurrentChat 切换当前聊天；传入 nil 表示清除。
// 为维持"当前聊天必然存在于列表中"的不变式，未知的聊天会先被插入。
func (s *Store) SetCurrentChat(chat *model.Chat) {
	s.mu.Lock()
	if chat == nil {
		s.currentID = ""
	} else {
		if _, ok := s.chats[chat.ID]; !ok {
			s.order = append([]string{chat.ID}, s.order...)
		}
		s.chats[chat.ID] = copyChat(*chat)
		s.currentID = chat.ID
	}
	s.mu.Unlock()
	s.notify()
}

// SetChats 用一次加载结果整体替换聊天列表，保持传入顺序。
// 当前聊天若不在新列表中则被清除。
func (s *Store) SetChats(chats []model.Chat) {
	s.mu.Lock()
	s.chats = make(map[string]model.Chat, len(chats))
	s.order = make([]string, 0, len(chats))
	for _, chat := range chats {
		s.chats[chat.ID] = copyChat(chat)
		s.order = append(s.order, chat.ID)
	}
	if _, ok := s.chats[s.currentID]; !ok {
		s.currentID = ""
	}
	s.mu.Unlock()
	s.notify()
}

// AddChat 将新建的聊天插入列表头部。
// 新聊天必然是最近活跃的，所以前插即可维持最近优先的顺序。
func (s *Store) AddChat(chat model.Chat) {
	s.mu.Lock()
	if _, ok := s.chats[chat.ID]; !ok {
		s.order = append([]string{chat.ID}, s.order...)
	}
	s.chats[chat.ID] = copyChat(chat)
	s.mu.Unlock()
	s.notify()
}

// AddMessage 将一条消息追加到当前聊天并刷新其 updatedAt。
// 没有当前聊天时为空操作。规范化存储下只需写一份。
func (s *Store) AddMessage(msg model.Message) {
	s.mu.Lock()
	chat, ok := s.chats[s.currentID]
	if !ok {
		s.mu.Unlock()
		return
	}
	chat.Messages = append(chat.Messages, msg)
	now := time.Now()
	if msg.Timestamp.After(now) {
		now = msg.Timestamp
	}
	chat.UpdatedAt = now
	s.chats[s.currentID] = chat
	s.mu.Unlock()
	s.notify()
}

// DeleteChat 从列表中移除聊天；它是当前聊天时同时清除当前指针。
func (s *Store) DeleteChat(chatID string) {
	s.mu.Lock()
	delete(s.chats, chatID)
	for i, id := range s.order {
		if id == chatID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.currentID == chatID {
		s.currentID = ""
	}
	s.mu.Unlock()
	s.notify()
}

// UpdateChat 按 id 替换列表中的聊天记录；未知 id 为空操作。
func (s *Store) UpdateChat(chat model.Chat) {
	s.mu.Lock()
	if _, ok := s.chats[chat.ID]; !ok {
		s.mu.Unlock()
		return
	}
	s.chats[chat.ID] = copyChat(chat)
	s.mu.Unlock()
	s.notify()
}

// SetLoading 设置加载标志。
func (s *Store) SetLoading(loading bool) {
	s.mu.Lock()
	s.loading = loading
	s.mu.Unlock()
	s.notify()
}

// SetError 设置错误文案；空字符串表示清除。
func (s *Store) SetError(msg string) {
	s.mu.Lock()
	s.errMsg = msg
	s.mu.Unlock()
	s.notify()
}

// Snapshot 返回当前状态的不可变快照。
// CurrentChat 由规范化映射现场物化，与列表中的记录必然一致。
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() State {
	state := State{
		Chats:   make([]model.Chat, 0, len(s.order)),
		Loading: s.loading,
		Error:   s.errMsg,
	}
	for _, id := range s.order {
		if chat, ok := s.chats[id]; ok {
			state.Chats = append(state.Chats, copyChat(chat))
		}
	}
	if chat, ok := s.chats[s.currentID]; ok {
		c := copyChat(chat)
		state.CurrentChat = &c
	}
	return state
}

// Subscribe 注册一个快照订阅通道，返回通道与取消函数。
// 广播是非阻塞的：消费慢的订阅者丢弃中间快照，只保证收到最新的趋势。
func (s *Store) Subscribe() (<-chan State, func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan State, 1)
	s.subs[id] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Store) notify() {
	s.mu.Lock()
	state := s.snapshotLocked()
	for _, ch := range s.subs {
		select {
		case ch <- state:
		default:
			// 订阅者尚未消费上一个快照，用新的覆盖
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- state:
			default:
			}
		}
	}
	s.mu.Unlock()
}

// copyChat 深拷贝消息切片，防止快照与内部状态共享底层数组。
func copyChat(chat model.Chat) model.Chat {
	messages := make([]model.Message, len(chat.Messages))
	copy(messages, chat.Messages)
	chat.Messages = messages
	return chat
}
