// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/jeranaias/nimchat/internal/model"
	"github.com/jeranaias/nimchat/internal/util"
)

// Error variables for store operations.
var (
	// ErrConversationNotFound indicates the requested conversation ID does
	// not exist in the collection.
	ErrConversationNotFound = errors.New("conversation not found")
)

// =============================================================================
// CONVERSATION STORE
// =============================================================================

// Store persists the full conversation collection as a single JSON document.
//
// The collection is held in memory and rewritten to disk after every mutation.
// Ordering is newest-first: new conversations are inserted at the front and
// the order is otherwise stable. All returned conversations are deep copies;
// the store is the only mutator of its internal state.
type Store struct {
	mu            sync.Mutex
	path          string
	conversations []*model.Conversation
}

// DefaultPath returns the default collection file path,
// ~/.nimchat/conversations.json.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".nimchat", "conversations.json"), nil
}

// Open loads the conversation collection from path, creating an empty
// collection if the file does not exist.
//
// RELIABILITY: A corrupt or unreadable collection file starts the store with
// an empty collection instead of failing; chat history is recoverable data,
// not worth refusing to launch over.
func Open(path string) (*Store, error) {
	s := &Store{
		path:          path,
		conversations: make([]*model.Conversation, 0),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		log.Printf("STORE_READ_FAILED | path=%s error=%v", path, err)
		return s, nil
	}

	var loaded []*model.Conversation
	if err := json.Unmarshal(data, &loaded); err != nil {
		log.Printf("STORE_CORRUPT | path=%s error=%v", path, err)
		return s, nil
	}

	s.conversations = loaded
	return s, nil
}

// Path returns the collection file path.
func (s *Store) Path() string {
	return s.path
}

// =============================================================================
// READ OPERATIONS
// =============================================================================

// Conversations returns all conversations, newest first. The returned slice
// and its elements are deep copies.
func (s *Store) Conversations() []*model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*model.Conversation, len(s.conversations))
	for i, conv := range s.conversations {
		out[i] = conv.Clone()
	}
	return out
}

// Get returns a deep copy of the conversation with the given ID.
func (s *Store) Get(id string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.find(id)
	if conv == nil {
		return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}
	return conv.Clone(), nil
}

// Count returns the number of stored conversations.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conversations)
}

// =============================================================================
// WRITE OPERATIONS
// =============================================================================

// Create adds a new empty conversation at the front of the collection,
// persists, and returns a copy of it.
func (s *Store) Create() (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := model.NewConversation()
	s.conversations = append([]*model.Conversation{conv}, s.conversations...)

	if err := s.save(); err != nil {
		// Roll back the insert so memory matches disk.
		s.conversations = s.conversations[1:]
		return nil, err
	}
	return conv.Clone(), nil
}

// AddMessage appends a message to the conversation with the given ID and
// persists the collection.
func (s *Store) AddMessage(id string, msg model.Message) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.find(id)
	if conv == nil {
		return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}

	conv.Append(msg)

	if err := s.save(); err != nil {
		conv.Messages = conv.Messages[:len(conv.Messages)-1]
		return nil, err
	}
	return conv.Clone(), nil
}

// Delete removes the conversation with the given ID and persists.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, conv := range s.conversations {
		if conv.ID == id {
			removed := conv
			s.conversations = append(s.conversations[:i], s.conversations[i+1:]...)
			if err := s.save(); err != nil {
				// Restore at the original position.
				s.conversations = append(s.conversations[:i],
					append([]*model.Conversation{removed}, s.conversations[i:]...)...)
				return err
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrConversationNotFound, id)
}

// =============================================================================
// INTERNAL HELPERS
// =============================================================================

// find returns the conversation with the given ID, or nil.
// Caller must hold s.mu.
func (s *Store) find(id string) *model.Conversation {
	for _, conv := range s.conversations {
		if conv.ID == id {
			return conv
		}
	}
	return nil
}

// save writes the whole collection to disk.
// Caller must hold s.mu.
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.conversations, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal collection: %w", err)
	}

	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	if err := util.AtomicWriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write collection: %w", err)
	}
	return nil
}
