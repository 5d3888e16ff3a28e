package repo

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"eventhub/internal/apperr"
	"eventhub/internal/docstore"
	"eventhub/internal/model"
)

type Users struct{ c collection[model.User] }

// Create allocates the id and stores u.
func (r *Users) Create(ctx context.Context, u *model.User) error {
	id, err := r.c.nextID(ctx)
	if err != nil {
		return err
	}
	u.ID = id
	return r.c.insert(ctx, id, *u)
}

func (r *Users) FindByID(ctx context.Context, id string) (model.User, error) {
	return r.c.get(ctx, id)
}

func (r *Users) FindByEmail(ctx context.Context, email string) (model.User, error) {
	return r.c.findOne(ctx, docstore.Filter{"email": email})
}

func (r *Users) List(ctx context.Context) ([]model.User, error) {
	return r.c.find(ctx, nil)
}

func (r *Users) Update(ctx context.Context, u model.User) error {
	return r.c.replace(ctx, u.ID, u)
}

type Events struct{ c collection[model.Event] }

func (r *Events) Create(ctx context.Context, e *model.Event) error {
	id, err := r.c.nextID(ctx)
	if err != nil {
		return err
	}
	e.ID = id
	return r.c.insert(ctx, id, *e)
}

func (r *Events) FindByID(ctx context.Context, id string) (model.Event, error) {
	return r.c.get(ctx, id)
}

func (r *Events) FindByOwner(ctx context.Context, userID string) ([]model.Event, error) {
	events, err := r.c.find(ctx, docstore.Filter{"userId": userID})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Date.Before(events[j].Date) })
	return events, nil
}

func (r *Events) Update(ctx context.Context, e model.Event) error {
	return r.c.replace(ctx, e.ID, e)
}

func (r *Events) Delete(ctx context.Context, id string) error {
	return r.c.delete(ctx, id)
}

type Guests struct{ c collection[model.Guest] }

func (r *Guests) Create(ctx context.Context, g *model.Guest) error {
	id, err := r.c.nextID(ctx)
	if err != nil {
		return err
	}
	g.ID = id
	return r.c.insert(ctx, id, *g)
}

func (r *Guests) FindByID(ctx context.Context, id string) (model.Guest, error) {
	return r.c.get(ctx, id)
}

func (r *Guests) FindByEvent(ctx context.Context, eventID string) ([]model.Guest, error) {
	return r.c.find(ctx, docstore.Filter{"eventId": eventID})
}

// FindByEventAndEmail returns NotFound when the event has no such guest.
func (r *Guests) FindByEventAndEmail(ctx context.Context, eventID, email string) (model.Guest, error) {
	return r.c.findOne(ctx, docstore.Filter{"eventId": eventID, "email": email})
}

func (r *Guests) FindByUser(ctx context.Context, userID string) ([]model.Guest, error) {
	return r.c.find(ctx, docstore.Filter{"userId": userID})
}

func (r *Guests) Update(ctx context.Context, g model.Guest) error {
	return r.c.replace(ctx, g.ID, g)
}

func (r *Guests) Delete(ctx context.Context, id string) error {
	return r.c.delete(ctx, id)
}

type Budgets struct{ c collection[model.Budget] }

func (r *Budgets) Create(ctx context.Context, b *model.Budget) error {
	id, err := r.c.nextID(ctx)
	if err != nil {
		return err
	}
	b.ID = id
	if b.Expenses == nil {
		b.Expenses = []model.Expense{}
	}
	return r.c.insert(ctx, id, *b)
}

func (r *Budgets) FindByEvent(ctx context.Context, eventID string) (model.Budget, error) {
	b, err := r.c.findOne(ctx, docstore.Filter{"eventId": eventID})
	if apperr.Is(err, apperr.KindNotFound) {
		return b, apperr.NotFound("budget for event", eventID)
	}
	return b, err
}

func (r *Budgets) Update(ctx context.Context, b model.Budget) error {
	return r.c.replace(ctx, b.ID, b)
}

func (r *Budgets) Delete(ctx context.Context, id string) error {
	return r.c.delete(ctx, id)
}

type VendorProfiles struct{ c collection[model.VendorProfile] }

func (r *VendorProfiles) Create(ctx context.Context, v *model.VendorProfile) error {
	id, err := r.c.nextID(ctx)
	if err != nil {
		return err
	}
	v.ID = id
	if v.Portfolio == nil {
		v.Portfolio = []string{}
	}
	return r.c.insert(ctx, id, *v)
}

func (r *VendorProfiles) FindByID(ctx context.Context, id string) (model.VendorProfile, error) {
	return r.c.get(ctx, id)
}

// FindByUser returns the profile of a vendor user, deleted or not.
func (r *VendorProfiles) FindByUser(ctx context.Context, userID string) (model.VendorProfile, error) {
	return r.c.findOne(ctx, docstore.Filter{"userId": userID})
}

// FindActive lists profiles that are not deleted, narrowed by serviceType
// and location when they are set.
func (r *VendorProfiles) FindActive(ctx context.Context, serviceType, location string) ([]model.VendorProfile, error) {
	f := docstore.Filter{"isDeleted": false}
	if serviceType != "" {
		f["serviceType"] = serviceType
	}
	if location != "" {
		f["location"] = location
	}
	return r.c.find(ctx, f)
}

func (r *VendorProfiles) Update(ctx context.Context, v model.VendorProfile) error {
	return r.c.replace(ctx, v.ID, v)
}

type VendorAssignments struct{ c collection[model.VendorAssignment] }

func (r *VendorAssignments) Create(ctx context.Context, a *model.VendorAssignment) error {
	id, err := r.c.nextID(ctx)
	if err != nil {
		return err
	}
	a.ID = id
	return r.c.insert(ctx, id, *a)
}

func (r *VendorAssignments) FindByID(ctx context.Context, id string) (model.VendorAssignment, error) {
	return r.c.get(ctx, id)
}

func (r *VendorAssignments) FindByVendor(ctx context.Context, vendorID string) ([]model.VendorAssignment, error) {
	return r.c.find(ctx, docstore.Filter{"vendorId": vendorID})
}

func (r *VendorAssignments) FindByClient(ctx context.Context, clientID string) ([]model.VendorAssignment, error) {
	return r.c.find(ctx, docstore.Filter{"clientId": clientID})
}

func (r *VendorAssignments) FindByEvent(ctx context.Context, eventID string) ([]model.VendorAssignment, error) {
	return r.c.find(ctx, docstore.Filter{"eventId": eventID})
}

func (r *VendorAssignments) Update(ctx context.Context, a model.VendorAssignment) error {
	return r.c.replace(ctx, a.ID, a)
}

type Messages struct{ c collection[model.Message] }

func (r *Messages) Create(ctx context.Context, m *model.Message) error {
	id, err := r.c.nextID(ctx)
	if err != nil {
		return err
	}
	m.ID = id
	return r.c.insert(ctx, id, *m)
}

// FindInvolving returns every message userID sent or received, oldest first.
func (r *Messages) FindInvolving(ctx context.Context, userID string) ([]model.Message, error) {
	sent, err := r.c.find(ctx, docstore.Filter{"senderId": userID})
	if err != nil {
		return nil, err
	}
	received, err := r.c.find(ctx, docstore.Filter{"receiverId": userID})
	if err != nil {
		return nil, err
	}
	all := append(sent, received...)
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return all, nil
}

func (r *Messages) FindUnread(ctx context.Context, receiverID string) ([]model.Message, error) {
	return r.c.find(ctx, docstore.Filter{"receiverId": receiverID, "read": false})
}

func (r *Messages) Update(ctx context.Context, m model.Message) error {
	return r.c.replace(ctx, m.ID, m)
}

type Payments struct{ c collection[model.Payment] }

// Create stores an append-only ledger row under a random id.
func (r *Payments) Create(ctx context.Context, p *model.Payment) error {
	p.ID = uuid.NewString()
	return r.c.insert(ctx, p.ID, *p)
}

func (r *Payments) FindByTransaction(ctx context.Context, transactionID string) (model.Payment, error) {
	return r.c.findOne(ctx, docstore.Filter{"transactionId": transactionID})
}

func (r *Payments) FindByBooking(ctx context.Context, bookingID string) ([]model.Payment, error) {
	return r.c.find(ctx, docstore.Filter{"bookingId": bookingID})
}
