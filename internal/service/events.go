package service

import (
	"context"
	"strings"
	"time"

	"eventhub/internal/apperr"
	"eventhub/internal/guard"
	"eventhub/internal/model"
	"eventhub/internal/repo"
)

type EventInput struct {
	Name             string                 `json:"name" validate:"notblank,max=150"`
	Date             time.Time              `json:"date" validate:"required"`
	Time             string                 `json:"time" validate:"hhmm"`
	Type             string                 `json:"type" validate:"notblank,max=60"`
	Location         string                 `json:"location" validate:"notblank,max=250"`
	Description      string                 `json:"description" validate:"max=2000"`
	MapLink          string                 `json:"mapLink" validate:"omitempty,url"`
	InvitationConfig model.InvitationConfig `json:"invitationConfig"`
}

// EventPatch changes only the fields that are set. The merged event is
// validated as a whole.
type EventPatch struct {
	Name             *string                 `json:"name"`
	Date             *time.Time              `json:"date"`
	Time             *string                 `json:"time"`
	Type             *string                 `json:"type"`
	Location         *string                 `json:"location"`
	Description      *string                 `json:"description"`
	MapLink          *string                 `json:"mapLink"`
	InvitationConfig *model.InvitationConfig `json:"invitationConfig"`
}

func (p EventPatch) apply(in *EventInput) {
	if p.Name != nil {
		in.Name = *p.Name
	}
	if p.Date != nil {
		in.Date = *p.Date
	}
	if p.Time != nil {
		in.Time = *p.Time
	}
	if p.Type != nil {
		in.Type = *p.Type
	}
	if p.Location != nil {
		in.Location = *p.Location
	}
	if p.Description != nil {
		in.Description = *p.Description
	}
	if p.MapLink != nil {
		in.MapLink = *p.MapLink
	}
	if p.InvitationConfig != nil {
		in.InvitationConfig = *p.InvitationConfig
	}
}

func inputFromEvent(e model.Event) EventInput {
	return EventInput{
		Name:             e.Name,
		Date:             e.Date,
		Time:             e.Time,
		Type:             e.Type,
		Location:         e.Location,
		Description:      e.Description,
		MapLink:          e.MapLink,
		InvitationConfig: e.InvitationConfig,
	}
}

func (in EventInput) applyTo(e *model.Event) {
	e.Name = strings.TrimSpace(in.Name)
	e.Date = in.Date.UTC()
	e.Time = in.Time
	e.Type = strings.TrimSpace(in.Type)
	e.Location = strings.TrimSpace(in.Location)
	e.Description = in.Description
	e.MapLink = in.MapLink
	e.InvitationConfig = in.InvitationConfig
}

// CreateEvent stores the event and its empty budget together.
func (s *Service) CreateEvent(ctx context.Context, p guard.Principal, in EventInput) (ev model.Event, err error) {
	defer s.track("create_event", time.Now(), &err)

	if err = s.authorize(ctx, &p); err != nil {
		return ev, err
	}

	if err := guard.AssertRole(p, model.RoleUser, model.RoleAdmin); err != nil {
		return ev, err
	}
	if err := validate(ctx, in); err != nil {
		return ev, err
	}
	err = s.inTx(ctx, func(r *repo.Set) error {
		now := s.now().UTC()
		ev = model.Event{UserID: p.UserID, CreatedAt: now, UpdatedAt: now}
		in.applyTo(&ev)
		if err := r.Events.Create(ctx, &ev); err != nil {
			return err
		}
		b := model.Budget{EventID: ev.ID, TotalBudget: 0, UpdatedAt: now}
		return r.Budgets.Create(ctx, &b)
	})
	if err != nil {
		return model.Event{}, err
	}
	s.log.Info().Str("event_id", ev.ID).Str("user_id", p.UserID).Msg("event created")
	return ev, nil
}

func (s *Service) GetEvent(ctx context.Context, p guard.Principal, id string) (ev model.Event, err error) {
	defer s.track("get_event", time.Now(), &err)

	if err = s.authorize(ctx, &p); err != nil {
		return ev, err
	}

	err = s.inView(ctx, func(r *repo.Set) error {
		ev, err = guard.LoadOwned(ctx, r.Events.FindByID, id, p)
		return err
	})
	return ev, err
}

func (s *Service) ListEvents(ctx context.Context, p guard.Principal) (events []model.Event, err error) {
	defer s.track("list_events", time.Now(), &err)

	if err = s.authorize(ctx, &p); err != nil {
		return events, err
	}

	err = s.inView(ctx, func(r *repo.Set) error {
		events, err = r.Events.FindByOwner(ctx, p.UserID)
		return err
	})
	return events, err
}

func (s *Service) UpdateEvent(ctx context.Context, p guard.Principal, id string, patch EventPatch) (ev model.Event, err error) {
	defer s.track("update_event", time.Now(), &err)

	if err = s.authorize(ctx, &p); err != nil {
		return ev, err
	}

	err = s.inTx(ctx, func(r *repo.Set) error {
		found, err := guard.LoadOwned(ctx, r.Events.FindByID, id, p)
		if err != nil {
			return err
		}
		merged := inputFromEvent(found)
		patch.apply(&merged)
		if err := validate(ctx, merged); err != nil {
			return err
		}
		merged.applyTo(&found)
		found.UpdatedAt = s.now().UTC()
		ev = found
		return r.Events.Update(ctx, found)
	})
	return ev, err
}

// DeleteEvent removes the event with its budget and guests. Events with
// vendor work that was not declined keep their history and cannot be deleted.
func (s *Service) DeleteEvent(ctx context.Context, p guard.Principal, id string) (err error) {
	defer s.track("delete_event", time.Now(), &err)

	if err = s.authorize(ctx, &p); err != nil {
		return err
	}

	err = s.inTx(ctx, func(r *repo.Set) error {
		ev, err := guard.LoadOwned(ctx, r.Events.FindByID, id, p)
		if err != nil {
			return err
		}
		assignments, err := r.Assignments.FindByEvent(ctx, ev.ID)
		if err != nil {
			return err
		}
		for _, a := range assignments {
			if a.Status != model.AssignmentDeclined {
				return apperr.Validation("event has vendor assignments that are not declined")
			}
		}
		guests, err := r.Guests.FindByEvent(ctx, ev.ID)
		if err != nil {
			return err
		}
		for _, g := range guests {
			if err := r.Guests.Delete(ctx, g.ID); err != nil {
				return err
			}
		}
		b, err := r.Budgets.FindByEvent(ctx, ev.ID)
		switch {
		case err == nil:
			if err := r.Budgets.Delete(ctx, b.ID); err != nil {
				return err
			}
		case !isNotFound(err):
			return err
		}
		return r.Events.Delete(ctx, ev.ID)
	})
	if err == nil {
		s.log.Info().Str("event_id", id).Msg("event deleted")
	}
	return err
}
