package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"eventhub/internal/apperr"
	"eventhub/internal/guard"
	"eventhub/internal/mailer"
	"eventhub/internal/model"
	"eventhub/internal/repo"
)

type GuestInput struct {
	Name           string               `json:"name" validate:"notblank,max=100"`
	Email          string               `json:"email" validate:"required,email"`
	InvitationType model.InvitationType `json:"invitationType" validate:"oneof=Email InApp"`
	// SendInvite invites the guest right away.
	SendInvite bool `json:"sendInvite"`
}

type GuestPatch struct {
	Name  *string `json:"name" validate:"omitempty,notblank,max=100"`
	Email *string `json:"email" validate:"omitempty,email"`
}

type RSVPInput struct {
	Status              model.GuestStatus `json:"status" validate:"oneof=Accepted Declined"`
	DietaryRestrictions string            `json:"dietaryRestrictions" validate:"max=500"`
	PlusOne             bool              `json:"plusOne"`
	PlusOneName         string            `json:"plusOneName" validate:"max=100"`
	Message             string            `json:"message" validate:"max=1000"`
}

// PublicEvent is what an invitee may see of an event.
type PublicEvent struct {
	Name          string    `json:"name"`
	Date          time.Time `json:"date"`
	Time          string    `json:"time"`
	Type          string    `json:"type"`
	Location      string    `json:"location"`
	Description   string    `json:"description"`
	MapLink       string    `json:"mapLink,omitempty"`
	Theme         string    `json:"theme"`
	CustomMessage string    `json:"customMessage"`
}

type InvitationView struct {
	Guest model.Guest `json:"guest"`
	Event PublicEvent `json:"event"`
}

func publicEvent(e model.Event) PublicEvent {
	pe := PublicEvent{
		Name:          e.Name,
		Date:          e.Date,
		Time:          e.Time,
		Type:          e.Type,
		Location:      e.Location,
		Description:   e.Description,
		Theme:         e.InvitationConfig.Theme,
		CustomMessage: e.InvitationConfig.CustomMessage,
	}
	if e.InvitationConfig.ShowMap {
		pe.MapLink = e.MapLink
	}
	return pe
}

// loadGuestForOwner loads a guest and checks that p owns its event.
func loadGuestForOwner(ctx context.Context, r *repo.Set, guestID string, p guard.Principal) (model.Guest, model.Event, error) {
	g, err := r.Guests.FindByID(ctx, guestID)
	if err != nil {
		return g, model.Event{}, err
	}
	ev, err := guard.LoadOwned(ctx, r.Events.FindByID, g.EventID, p)
	if err != nil {
		return model.Guest{}, ev, err
	}
	return g, ev, nil
}

// resolveInAppUser finds the active account an in-app invitation goes to.
func resolveInAppUser(ctx context.Context, r *repo.Set, email string) (model.User, error) {
	u, err := r.Users.FindByEmail(ctx, email)
	if isNotFound(err) {
		return u, apperr.Validation(fmt.Sprintf("no registered user with email %s", email))
	}
	if err != nil {
		return u, err
	}
	if !u.CanSignIn() {
		return u, apperr.Validation(fmt.Sprintf("user with email %s cannot receive invitations", email))
	}
	return u, nil
}

func (s *Service) AddGuest(ctx context.Context, p guard.Principal, eventID string, in GuestInput) (g model.Guest, err error) {
	defer s.track("add_guest", time.Now(), &err)

	if err = s.authorize(ctx, &p); err != nil {
		return g, err
	}

	in.Email = normalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if in.InvitationType == "" {
		in.InvitationType = model.InvitationEmail
	}
	if err := validate(ctx, in); err != nil {
		return g, err
	}

	var outbox []mailer.Message
	err = s.inTx(ctx, func(r *repo.Set) error {
		ev, err := guard.LoadOwned(ctx, r.Events.FindByID, eventID, p)
		if err != nil {
			return err
		}
		if _, err := r.Guests.FindByEventAndEmail(ctx, ev.ID, in.Email); err == nil {
			return apperr.Duplicate("guest email")
		} else if !isNotFound(err) {
			return err
		}
		g = model.Guest{
			EventID:        ev.ID,
			Name:           in.Name,
			Email:          in.Email,
			InvitationType: in.InvitationType,
			Status:         model.GuestPending,
			CreatedAt:      s.now().UTC(),
		}
		if in.InvitationType == model.InvitationInApp {
			u, err := resolveInAppUser(ctx, r, in.Email)
			if err != nil {
				return err
			}
			g.UserID = u.ID
		}
		if err := r.Guests.Create(ctx, &g); err != nil {
			return err
		}
		if !in.SendInvite {
			return nil
		}
		outbox, err = s.invite(ctx, r, ev, &g)
		return err
	})
	if err != nil {
		return model.Guest{}, err
	}
	s.notify(ctx, outbox...)
	return g, nil
}

func (s *Service) ListGuests(ctx context.Context, p guard.Principal, eventID string) (guests []model.Guest, err error) {
	defer s.track("list_guests", time.Now(), &err)

	if err = s.authorize(ctx, &p); err != nil {
		return guests, err
	}

	err = s.inView(ctx, func(r *repo.Set) error {
		if _, err := guard.LoadOwned(ctx, r.Events.FindByID, eventID, p); err != nil {
			return err
		}
		guests, err = r.Guests.FindByEvent(ctx, eventID)
		return err
	})
	return guests, err
}

func (s *Service) UpdateGuest(ctx context.Context, p guard.Principal, guestID string, patch GuestPatch) (g model.Guest, err error) {
	defer s.track("update_guest", time.Now(), &err)

	if err = s.authorize(ctx, &p); err != nil {
		return g, err
	}

	if patch.Email != nil {
		email := normalizeEmail(*patch.Email)
		patch.Email = &email
	}
	if err := validate(ctx, patch); err != nil {
		return g, err
	}
	err = s.inTx(ctx, func(r *repo.Set) error {
		found, _, err := loadGuestForOwner(ctx, r, guestID, p)
		if err != nil {
			return err
		}
		if patch.Name != nil {
			found.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Email != nil && *patch.Email != found.Email {
			if _, err := r.Guests.FindByEventAndEmail(ctx, found.EventID, *patch.Email); err == nil {
				return apperr.Duplicate("guest email")
			} else if !isNotFound(err) {
				return err
			}
			found.Email = *patch.Email
			if found.InvitationType == model.InvitationInApp {
				u, err := resolveInAppUser(ctx, r, found.Email)
				if err != nil {
					return err
				}
				found.UserID = u.ID
			}
		}
		g = found
		return r.Guests.Update(ctx, found)
	})
	return g, err
}

func (s *Service) RemoveGuest(ctx context.Context, p guard.Principal, guestID string) (err error) {
	defer s.track("remove_guest", time.Now(), &err)

	if err = s.authorize(ctx, &p); err != nil {
		return err
	}

	return s.inTx(ctx, func(r *repo.Set) error {
		g, _, err := loadGuestForOwner(ctx, r, guestID, p)
		if err != nil {
			return err
		}
		return r.Guests.Delete(ctx, g.ID)
	})
}

// SendInvitation marks the guest invited and delivers the invitation: an
// email for Email guests, a direct message from the host for InApp guests.
func (s *Service) SendInvitation(ctx context.Context, p guard.Principal, guestID string) (model.Guest, error) {
	return s.deliverInvitation(ctx, "send_invitation", p, guestID, false)
}

// ResendInvitation also clears any previous answer.
func (s *Service) ResendInvitation(ctx context.Context, p guard.Principal, guestID string) (model.Guest, error) {
	return s.deliverInvitation(ctx, "resend_invitation", p, guestID, true)
}

func (s *Service) deliverInvitation(ctx context.Context, op string, p guard.Principal, guestID string, reset bool) (g model.Guest, err error) {
	defer s.track(op, time.Now(), &err)

	if err = s.authorize(ctx, &p); err != nil {
		return g, err
	}

	var outbox []mailer.Message
	err = s.inTx(ctx, func(r *repo.Set) error {
		found, ev, err := loadGuestForOwner(ctx, r, guestID, p)
		if err != nil {
			return err
		}
		if reset {
			found.ResetResponse()
		}
		outbox, err = s.invite(ctx, r, ev, &found)
		if err != nil {
			return err
		}
		g = found
		return nil
	})
	if err != nil {
		return model.Guest{}, err
	}
	s.notify(ctx, outbox...)
	return g, nil
}

// invite persists the invited state of g and returns the emails to send
// after commit.
func (s *Service) invite(ctx context.Context, r *repo.Set, ev model.Event, g *model.Guest) ([]mailer.Message, error) {
	now := s.now().UTC()
	g.IsInvited = true
	g.InvitedAt = &now
	if err := r.Guests.Update(ctx, *g); err != nil {
		return nil, err
	}

	link := s.invitationLink(g.ID)
	if g.InvitationType == model.InvitationInApp {
		m := model.Message{
			SenderID:   ev.UserID,
			ReceiverID: g.UserID,
			Content:    fmt.Sprintf("You're invited to %s on %s at %s. Respond here: %s", ev.Name, ev.Date.Format("2006-01-02"), ev.Time, link),
			CreatedAt:  now,
		}
		return nil, r.Messages.Create(ctx, &m)
	}

	msg, err := mailer.InvitationMessage(mailer.Invitation{
		GuestEmail:    g.Email,
		GuestName:     g.Name,
		EventName:     ev.Name,
		Date:          ev.Date.Format("2006-01-02"),
		Time:          ev.Time,
		Location:      ev.Location,
		CustomMessage: ev.InvitationConfig.CustomMessage,
		MapLink:       publicEvent(ev).MapLink,
		RSVPLink:      link,
	})
	if err != nil {
		// Rendering problems must not block the invite itself.
		s.log.Warn().Err(err).Str("guest_id", g.ID).Msg("failed to render invitation")
		return nil, nil
	}
	return []mailer.Message{msg}, nil
}

func (s *Service) invitationLink(guestID string) string {
	return s.cfg.AppURL + "/invitations/" + guestID
}

// GetInvitation is public: knowing the guest id is the capability. Guests
// that were never invited are reported as not found.
func (s *Service) GetInvitation(ctx context.Context, guestID string) (v InvitationView, err error) {
	defer s.track("get_invitation", time.Now(), &err)

	err = s.inView(ctx, func(r *repo.Set) error {
		g, err := r.Guests.FindByID(ctx, guestID)
		if err != nil {
			return err
		}
		if !g.IsInvited {
			return apperr.NotFound("invitation", guestID)
		}
		ev, err := r.Events.FindByID(ctx, g.EventID)
		if err != nil {
			return err
		}
		v = InvitationView{Guest: g, Event: publicEvent(ev)}
		return nil
	})
	return v, err
}

// RespondToInvitation records the RSVP. Like GetInvitation it is
// authorized by the guest id alone.
func (s *Service) RespondToInvitation(ctx context.Context, guestID string, in RSVPInput) (g model.Guest, err error) {
	defer s.track("respond_to_invitation", time.Now(), &err)

	if err := validate(ctx, in); err != nil {
		return g, err
	}
	err = s.inTx(ctx, func(r *repo.Set) error {
		found, err := r.Guests.FindByID(ctx, guestID)
		if err != nil {
			return err
		}
		if !found.IsInvited {
			return apperr.NotFound("invitation", guestID)
		}
		now := s.now().UTC()
		found.Status = in.Status
		found.DietaryRestrictions = in.DietaryRestrictions
		found.PlusOne = in.PlusOne && in.Status == model.GuestAccepted
		found.PlusOneName = ""
		if found.PlusOne {
			found.PlusOneName = strings.TrimSpace(in.PlusOneName)
		}
		found.Message = in.Message
		found.RespondedAt = &now
		g = found
		return r.Guests.Update(ctx, found)
	})
	if err == nil {
		s.log.Info().Str("guest_id", guestID).Str("status", string(g.Status)).Msg("rsvp recorded")
	}
	return g, err
}

// ListMyInvitations lists the in-app invitations sent to p.
func (s *Service) ListMyInvitations(ctx context.Context, p guard.Principal) (views []InvitationView, err error) {
	defer s.track("list_my_invitations", time.Now(), &err)

	if err = s.authorize(ctx, &p); err != nil {
		return views, err
	}

	err = s.inView(ctx, func(r *repo.Set) error {
		guests, err := r.Guests.FindByUser(ctx, p.UserID)
		if err != nil {
			return err
		}
		views = make([]InvitationView, 0, len(guests))
		for _, g := range guests {
			if !g.IsInvited {
				continue
			}
			ev, err := r.Events.FindByID(ctx, g.EventID)
			if isNotFound(err) {
				continue
			}
			if err != nil {
				return err
			}
			views = append(views, InvitationView{Guest: g, Event: publicEvent(ev)})
		}
		return nil
	})
	return views, err
}
