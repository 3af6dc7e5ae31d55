// ABOUTME: ChatMessage operations with encrypted content and monotonic IDs.
// ABOUTME: Chat deletion is a physical purge; listing is newest first.
package storage

import (
	"context"
	"fmt"
	"strconv"

	"github.com/harperreed/fitlog/internal/encryption"
	"github.com/harperreed/fitlog/internal/events"
	"github.com/harperreed/fitlog/internal/kv"
	"github.com/harperreed/fitlog/internal/models"
)

// chatRow is the persisted form; Content is ciphertext.
type chatRow models.ChatMessage

func (r *chatRow) decode(key encryption.Key) (*models.ChatMessage, error) {
	plain, err := encryption.Decrypt(r.Content, key)
	if err != nil {
		return nil, fmt.Errorf("decrypt chat %d: %w", r.ID, err)
	}
	msg := models.ChatMessage(*r)
	msg.Content = plain
	return &msg, nil
}

func encodeChat(msg *models.ChatMessage, key encryption.Key) (*chatRow, error) {
	cipher, err := encryption.Encrypt(msg.Content, key)
	if err != nil {
		return nil, fmt.Errorf("encrypt chat: %w", err)
	}
	row := chatRow(*msg)
	row.Content = cipher
	return &row, nil
}

func validateChat(msg *models.ChatMessage) error {
	if msg == nil {
		return invalid("chat", "must not be nil")
	}
	if !models.IsValidChatRole(string(msg.Role)) {
		return invalid("role", "unknown role %q", msg.Role)
	}
	return nil
}

// AddChat stores msg and assigns its ID.
func (s *Store) AddChat(ctx context.Context, msg *models.ChatMessage) error {
	if err := validateChat(msg); err != nil {
		return err
	}
	key, err := s.key(ctx)
	if err != nil {
		return err
	}

	stored := *msg
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.timestamp()
	}
	err = s.kv.Update(ctx, func(txn kv.Txn) error {
		id, err := nextSeq(txn, events.TableChats)
		if err != nil {
			return err
		}
		stored.ID = id
		row, err := encodeChat(&stored, key)
		if err != nil {
			return err
		}
		return putRow(txn, chatKey(id), row)
	})
	if err != nil {
		return fmt.Errorf("add chat: %w", err)
	}

	*msg = stored
	s.publish(events.KindInsert, events.TableChats)
	return nil
}

// GetChatByID returns the chat with the given ID, or nil if none exists.
func (s *Store) GetChatByID(ctx context.Context, id int64) (*models.ChatMessage, error) {
	key, err := s.key(ctx)
	if err != nil {
		return nil, err
	}

	var row *chatRow
	err = s.kv.View(ctx, func(txn kv.Txn) error {
		var err error
		row, err = getRow[chatRow](txn, chatKey(id))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get chat: %w", err)
	}
	if row == nil || row.DeletedAt != nil {
		return nil, nil
	}
	return row.decode(key)
}

// DeleteChatByID physically removes a chat.
func (s *Store) DeleteChatByID(ctx context.Context, id int64) error {
	err := s.kv.Update(ctx, func(txn kv.Txn) error {
		row, err := getRow[chatRow](txn, chatKey(id))
		if err != nil {
			return err
		}
		if row == nil {
			return &NotFoundError{Entity: "chat", ID: strconv.FormatInt(id, 10)}
		}
		return txn.Delete(chatKey(id))
	})
	if err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}

	s.publish(events.KindDelete, events.TableChats)
	return nil
}

// ListChatsPaginated returns chats ordered by ID descending.
func (s *Store) ListChatsPaginated(ctx context.Context, offset, limit int) ([]*models.ChatMessage, error) {
	key, err := s.key(ctx)
	if err != nil {
		return nil, err
	}

	p := newPager[*chatRow](offset, limit)
	err = s.kv.View(ctx, func(txn kv.Txn) error {
		return scanRows(txn, []byte(ChatPrefix), true, func(row *chatRow) bool {
			if row.DeletedAt != nil {
				return true
			}
			return p.add(row)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}

	chats := make([]*models.ChatMessage, 0, len(p.rows))
	for _, row := range p.rows {
		msg, err := row.decode(key)
		if err != nil {
			s.logger.Warn("unreadable chat", "id", row.ID, "err", err)
			return nil, err
		}
		chats = append(chats, msg)
	}
	return chats, nil
}

// GetChatsPaginated returns a zero-based page of chats, newest first.
func (s *Store) GetChatsPaginated(ctx context.Context, page, pageSize int) ([]*models.ChatMessage, error) {
	if page < 0 {
		page = 0
	}
	if pageSize <= 0 {
		return nil, invalid("page_size", "must be positive")
	}
	return s.ListChatsPaginated(ctx, page*pageSize, pageSize)
}

// ClearChats removes every chat and reports how many were removed.
// IDs keep increasing afterwards.
func (s *Store) ClearChats(ctx context.Context) (int, error) {
	var n int
	err := s.kv.Update(ctx, func(txn kv.Txn) error {
		var err error
		n, err = kv.DeletePrefix(txn, []byte(ChatPrefix))
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("clear chats: %w", err)
	}

	if n > 0 {
		s.publish(events.KindDelete, events.TableChats)
	}
	return n, nil
}
