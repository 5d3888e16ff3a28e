package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"eventhub/internal/apperr"
	"eventhub/internal/guard"
	"eventhub/internal/model"
	"eventhub/internal/repo"
)

type SendMessageInput struct {
	ReceiverID string `json:"receiverId" validate:"required"`
	Content    string `json:"content" validate:"notblank,max=2000"`
}

// Conversation is derived from the messages between two users; there is no
// stored thread.
type Conversation struct {
	CounterpartID   string        `json:"counterpartId"`
	CounterpartName string        `json:"counterpartName"`
	LastMessage     model.Message `json:"lastMessage"`
	Unread          int           `json:"unread"`
}

func (s *Service) SendMessage(ctx context.Context, p guard.Principal, in SendMessageInput) (m model.Message, err error) {
	defer s.track("send_message", time.Now(), &err)

	if err = s.authorize(ctx, &p); err != nil {
		return m, err
	}

	in.Content = strings.TrimSpace(in.Content)
	if err := validate(ctx, in); err != nil {
		return m, err
	}
	if in.ReceiverID == p.UserID {
		return m, apperr.Validation("cannot send a message to yourself")
	}
	err = s.inTx(ctx, func(r *repo.Set) error {
		receiver, err := r.Users.FindByID(ctx, in.ReceiverID)
		if err != nil {
			return err
		}
		if !receiver.CanSignIn() {
			return apperr.NotFound("user", in.ReceiverID)
		}
		m = model.Message{
			SenderID:   p.UserID,
			ReceiverID: receiver.ID,
			Content:    in.Content,
			CreatedAt:  s.now().UTC(),
		}
		return r.Messages.Create(ctx, &m)
	})
	return m, err
}

// ListConversations groups the caller's messages by counterpart, most
// recent conversation first.
func (s *Service) ListConversations(ctx context.Context, p guard.Principal) (out []Conversation, err error) {
	defer s.track("list_conversations", time.Now(), &err)

	if err = s.authorize(ctx, &p); err != nil {
		return out, err
	}

	err = s.inView(ctx, func(r *repo.Set) error {
		msgs, err := r.Messages.FindInvolving(ctx, p.UserID)
		if err != nil {
			return err
		}
		byCounterpart := make(map[string]*Conversation)
		for _, m := range msgs {
			id := m.Counterpart(p.UserID)
			c, ok := byCounterpart[id]
			if !ok {
				c = &Conversation{CounterpartID: id}
				byCounterpart[id] = c
			}
			c.LastMessage = m
			if m.ReceiverID == p.UserID && !m.Read {
				c.Unread++
			}
		}
		out = make([]Conversation, 0, len(byCounterpart))
		for id, c := range byCounterpart {
			u, err := r.Users.FindByID(ctx, id)
			switch {
			case err == nil:
				c.CounterpartName = u.Name
			case !isNotFound(err):
				return err
			}
			out = append(out, *c)
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].LastMessage.CreatedAt.Equal(out[j].LastMessage.CreatedAt) {
				return out[i].CounterpartID < out[j].CounterpartID
			}
			return out[i].LastMessage.CreatedAt.After(out[j].LastMessage.CreatedAt)
		})
		return nil
	})
	return out, err
}

// GetThread returns the conversation with counterpartID oldest first and
// marks the caller's incoming messages read.
func (s *Service) GetThread(ctx context.Context, p guard.Principal, counterpartID string) (thread []model.Message, err error) {
	defer s.track("get_thread", time.Now(), &err)

	if err = s.authorize(ctx, &p); err != nil {
		return thread, err
	}

	err = s.inTx(ctx, func(r *repo.Set) error {
		if _, err := r.Users.FindByID(ctx, counterpartID); err != nil {
			return err
		}
		msgs, err := r.Messages.FindInvolving(ctx, p.UserID)
		if err != nil {
			return err
		}
		thread = make([]model.Message, 0, len(msgs))
		for _, m := range msgs {
			if m.Counterpart(p.UserID) != counterpartID {
				continue
			}
			if m.ReceiverID == p.UserID && !m.Read {
				m.Read = true
				if err := r.Messages.Update(ctx, m); err != nil {
					return err
				}
			}
			thread = append(thread, m)
		}
		return nil
	})
	return thread, err
}

func (s *Service) UnreadCount(ctx context.Context, p guard.Principal) (n int, err error) {
	defer s.track("unread_count", time.Now(), &err)

	if err = s.authorize(ctx, &p); err != nil {
		return n, err
	}

	err = s.inView(ctx, func(r *repo.Set) error {
		msgs, err := r.Messages.FindUnread(ctx, p.UserID)
		n = len(msgs)
		return err
	})
	return n, err
}
