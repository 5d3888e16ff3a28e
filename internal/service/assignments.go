package service

import (
	"context"
	"strings"
	"time"

	"eventhub/internal/apperr"
	"eventhub/internal/guard"
	"eventhub/internal/mailer"
	"eventhub/internal/model"
	"eventhub/internal/repo"
)

type HireInput struct {
	EventID     string `json:"eventId" validate:"required"`
	VendorID    string `json:"vendorId" validate:"required"`
	ServiceType string `json:"serviceType" validate:"max=60"`
	Amount      int64  `json:"amount" validate:"positive,max=100000000000"`
}

type EditAssignmentInput struct {
	ServiceType string `json:"serviceType" validate:"notblank,max=60"`
	Amount      int64  `json:"amount" validate:"positive,max=100000000000"`
}

// HireVendor books a vendor for one of the caller's events. The booking
// starts Pending and waits for the vendor.
func (s *Service) HireVendor(ctx context.Context, p guard.Principal, in HireInput) (d model.AssignmentDetails, err error) {
	defer s.track("hire_vendor", time.Now(), &err)

	if err = s.authorize(ctx, &p); err != nil {
		return d, err
	}

	if err := guard.AssertRole(p, model.RoleUser, model.RoleAdmin); err != nil {
		return d, err
	}
	if err := validate(ctx, in); err != nil {
		return d, err
	}
	var outbox []mailer.Message
	err = s.inTx(ctx, func(r *repo.Set) error {
		ev, err := guard.LoadOwned(ctx, r.Events.FindByID, in.EventID, p)
		if err != nil {
			return err
		}
		v, err := r.Vendors.FindByID(ctx, in.VendorID)
		if err != nil {
			return err
		}
		_, ok, err := listing(ctx, r, v)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.NotFound("vendor profile", in.VendorID)
		}

		existing, err := r.Assignments.FindByEvent(ctx, ev.ID)
		if err != nil {
			return err
		}
		for _, a := range existing {
			if a.VendorID == v.ID && a.Status != model.AssignmentDeclined && a.Status != model.AssignmentPaid {
				return apperr.Duplicate("assignment for vendor " + v.ID)
			}
		}

		serviceType := strings.TrimSpace(in.ServiceType)
		if serviceType == "" {
			serviceType = v.ServiceType
		}
		now := s.now().UTC()
		a := model.VendorAssignment{
			EventID:     ev.ID,
			VendorID:    v.ID,
			ClientID:    p.UserID,
			ServiceType: serviceType,
			Amount:      in.Amount,
			Status:      model.AssignmentPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := r.Assignments.Create(ctx, &a); err != nil {
			return err
		}
		d, err = r.Populate(ctx, a, repo.WithAll)
		if err != nil {
			return err
		}
		outbox = append(outbox, mailer.AssignmentMessage(d.VendorUser.Email, ev.Name, a.ServiceType, string(a.Status)))
		return nil
	})
	if err != nil {
		return model.AssignmentDetails{}, err
	}
	s.log.Info().Str("assignment_id", d.ID).Str("vendor_id", d.VendorID).Str("event_id", d.EventID).Msg("vendor hired")
	s.notify(ctx, outbox...)
	return d, nil
}

// partyRole resolves which side of the assignment p acts for. Vendors act
// for the vendor side, everyone else for the client side.
func partyRole(d model.AssignmentDetails, p guard.Principal) (model.Role, error) {
	if p.Role == model.RoleVendor {
		if d.VendorUser == nil || d.VendorUser.ID != p.UserID {
			return "", apperr.NotAuthorized("not authorized to access this assignment")
		}
		return model.RoleVendor, nil
	}
	if d.ClientID != p.UserID {
		return "", apperr.NotAuthorized("not authorized to access this assignment")
	}
	return model.RoleUser, nil
}

func (s *Service) GetAssignment(ctx context.Context, p guard.Principal, id string) (d model.AssignmentDetails, err error) {
	defer s.track("get_assignment", time.Now(), &err)

	if err = s.authorize(ctx, &p); err != nil {
		return d, err
	}

	err = s.inView(ctx, func(r *repo.Set) error {
		found, err := r.AssignmentDetails(ctx, id, repo.WithAll)
		if err != nil {
			return err
		}
		if _, err := partyRole(found, p); err != nil {
			return err
		}
		d = found
		return nil
	})
	return d, err
}

// ListMyAssignments returns the vendor's job pipeline or the client's
// bookings, depending on the caller's role.
func (s *Service) ListMyAssignments(ctx context.Context, p guard.Principal) (out []model.AssignmentDetails, err error) {
	defer s.track("list_my_assignments", time.Now(), &err)

	if err = s.authorize(ctx, &p); err != nil {
		return out, err
	}

	err = s.inView(ctx, func(r *repo.Set) error {
		if p.Role == model.RoleVendor {
			v, err := ownProfile(ctx, r, p)
			if err != nil {
				return err
			}
			as, err := r.Assignments.FindByVendor(ctx, v.ID)
			if err != nil {
				return err
			}
			out, err = r.PopulateAll(ctx, as, repo.WithEvent|repo.WithClient)
			return err
		}
		as, err := r.Assignments.FindByClient(ctx, p.UserID)
		if err != nil {
			return err
		}
		out, err = r.PopulateAll(ctx, as, repo.WithVendor|repo.WithEvent)
		return err
	})
	return out, err
}

func (s *Service) ListEventAssignments(ctx context.Context, p guard.Principal, eventID string) (out []model.AssignmentDetails, err error) {
	defer s.track("list_event_assignments", time.Now(), &err)

	if err = s.authorize(ctx, &p); err != nil {
		return out, err
	}

	err = s.inView(ctx, func(r *repo.Set) error {
		if _, err := guard.LoadOwned(ctx, r.Events.FindByID, eventID, p); err != nil {
			return err
		}
		as, err := r.Assignments.FindByEvent(ctx, eventID)
		if err != nil {
			return err
		}
		out, err = r.PopulateAll(ctx, as, repo.WithVendor)
		return err
	})
	return out, err
}

// UpdateAssignmentStatus moves an assignment along its lifecycle. Only the
// party named by the transition table may take an edge; moving to Paid
// books the amount as an expense on the event budget.
func (s *Service) UpdateAssignmentStatus(ctx context.Context, p guard.Principal, id string, to model.AssignmentStatus) (d model.AssignmentDetails, err error) {
	defer s.track("update_assignment_status", time.Now(), &err)

	if err = s.authorize(ctx, &p); err != nil {
		return d, err
	}

	if !to.Valid() {
		return d, apperr.Validation("status must be one of [Pending, In Progress, Declined, Completed, Paid]")
	}
	var outbox []mailer.Message
	err = s.inTx(ctx, func(r *repo.Set) error {
		found, err := r.AssignmentDetails(ctx, id, repo.WithAll)
		if err != nil {
			return err
		}
		actor, err := partyRole(found, p)
		if err != nil {
			return err
		}
		msg, err := s.transition(ctx, r, &found, to, actor)
		if err != nil {
			return err
		}
		d = found
		outbox = append(outbox, msg)
		return nil
	})
	if err != nil {
		return model.AssignmentDetails{}, err
	}
	s.notify(ctx, outbox...)
	return d, nil
}

// transition applies one lifecycle edge to d on behalf of actor and returns
// the notification for the other party. d must be populated with WithAll.
func (s *Service) transition(ctx context.Context, r *repo.Set, d *model.AssignmentDetails, to model.AssignmentStatus, actor model.Role) (mailer.Message, error) {
	if required, ok := model.TransitionTarget(to); ok && required != actor {
		return mailer.Message{}, apperr.NotAuthorized("only the " + string(required) + " may set status " + string(to))
	}
	required, ok := model.TransitionActor(d.Status, to)
	if !ok {
		return mailer.Message{}, apperr.Validation("cannot update assignment in current status: " + string(d.Status) + " to " + string(to))
	}
	if required != actor {
		return mailer.Message{}, apperr.NotAuthorized("only the " + string(required) + " may set status " + string(to))
	}

	if to == model.AssignmentPaid {
		b, err := s.appendExpense(ctx, r, d.EventID, model.Expense{
			Title:    "Payment to " + d.VendorUser.Name,
			Amount:   d.Amount,
			Category: d.ServiceType,
		})
		if err != nil {
			return mailer.Message{}, err
		}
		if b.Overspent() {
			s.log.Info().Str("event_id", d.EventID).Int64("remaining", b.Remaining()).Msg("event budget overspent")
		}
	}

	from := d.Status
	d.Status = to
	d.UpdatedAt = s.now().UTC()
	if err := r.Assignments.Update(ctx, d.VendorAssignment); err != nil {
		return mailer.Message{}, err
	}
	s.log.Info().Str("assignment_id", d.ID).Str("from", string(from)).Str("to", string(to)).Msg("assignment status changed")

	recipient := d.Client
	if actor == model.RoleUser {
		recipient = d.VendorUser
	}
	msg := mailer.AssignmentMessage("", d.Event.Name, d.ServiceType, string(to))
	if recipient.CanSignIn() {
		msg.To = recipient.Email
	}
	return msg, nil
}

// EditAssignment lets the client change the terms of a booking that is not
// under way. The booking goes back to Pending for the vendor to review.
func (s *Service) EditAssignment(ctx context.Context, p guard.Principal, id string, in EditAssignmentInput) (d model.AssignmentDetails, err error) {
	defer s.track("edit_assignment", time.Now(), &err)

	if err = s.authorize(ctx, &p); err != nil {
		return d, err
	}

	in.ServiceType = strings.TrimSpace(in.ServiceType)
	if err := validate(ctx, in); err != nil {
		return d, err
	}
	var outbox []mailer.Message
	err = s.inTx(ctx, func(r *repo.Set) error {
		a, err := guard.LoadOwned(ctx, r.Assignments.FindByID, id, p)
		if err != nil {
			return err
		}
		if !a.Status.Editable() {
			return apperr.Validation("cannot edit assignment in status " + string(a.Status))
		}
		a.Amount = in.Amount
		a.ServiceType = in.ServiceType
		a.Status = model.AssignmentPending
		a.UpdatedAt = s.now().UTC()
		if err := r.Assignments.Update(ctx, a); err != nil {
			return err
		}
		d, err = r.Populate(ctx, a, repo.WithAll)
		if err != nil {
			return err
		}
		if d.VendorUser.CanSignIn() {
			outbox = append(outbox, mailer.AssignmentMessage(d.VendorUser.Email, d.Event.Name, a.ServiceType, "updated and awaiting your review"))
		}
		return nil
	})
	if err != nil {
		return model.AssignmentDetails{}, err
	}
	s.notify(ctx, outbox...)
	return d, nil
}
