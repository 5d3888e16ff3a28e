package repo

import (
	"context"

	"eventhub/internal/model"
)

// Populate selects which references of an assignment are resolved.
type Populate uint8

const (
	WithVendor Populate = 1 << iota
	WithEvent
	WithClient

	WithAll = WithVendor | WithEvent | WithClient
)

// AssignmentDetails loads assignment id with the requested references. A
// requested reference that does not exist is a NotFound error. Populated
// users are redacted.
func (s *Set) AssignmentDetails(ctx context.Context, id string, p Populate) (model.AssignmentDetails, error) {
	a, err := s.Assignments.FindByID(ctx, id)
	if err != nil {
		return model.AssignmentDetails{}, err
	}
	return s.Populate(ctx, a, p)
}

func (s *Set) Populate(ctx context.Context, a model.VendorAssignment, p Populate) (model.AssignmentDetails, error) {
	d := model.AssignmentDetails{VendorAssignment: a}
	if p&WithVendor != 0 {
		v, err := s.Vendors.FindByID(ctx, a.VendorID)
		if err != nil {
			return d, err
		}
		u, err := s.Users.FindByID(ctx, v.UserID)
		if err != nil {
			return d, err
		}
		u = u.Redacted()
		d.Vendor, d.VendorUser = &v, &u
	}
	if p&WithEvent != 0 {
		e, err := s.Events.FindByID(ctx, a.EventID)
		if err != nil {
			return d, err
		}
		d.Event = &e
	}
	if p&WithClient != 0 {
		c, err := s.Users.FindByID(ctx, a.ClientID)
		if err != nil {
			return d, err
		}
		c = c.Redacted()
		d.Client = &c
	}
	return d, nil
}

// PopulateAll resolves p for every assignment in as.
func (s *Set) PopulateAll(ctx context.Context, as []model.VendorAssignment, p Populate) ([]model.AssignmentDetails, error) {
	out := make([]model.AssignmentDetails, 0, len(as))
	for _, a := range as {
		d, err := s.Populate(ctx, a, p)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
