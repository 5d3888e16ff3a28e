package repo

import (
	"context"
	"testing"

	"eventhub/internal/apperr"
	"eventhub/internal/docstore"
	"eventhub/internal/docstore/memory"
	"eventhub/internal/idgen"
	"eventhub/internal/model"
)

func inTx(t *testing.T, store docstore.Store, fn func(r *Set) error) error {
	t.Helper()
	ids := idgen.New(nil)
	return store.RunInTx(context.Background(), func(tx docstore.Tx) error {
		return fn(New(tx, ids))
	})
}

func TestErrorTranslation(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	err := inTx(t, store, func(r *Set) error {
		if err := r.Users.Create(ctx, &model.User{Email: "a@example.com"}); err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := r.Users.Create(ctx, &model.User{Email: "a@example.com"}); !apperr.Is(err, apperr.KindDuplicate) {
			t.Fatalf("expected DUPLICATE_ENTRY, got %v", err)
		}
		if _, err := r.Users.FindByID(ctx, "U999"); !apperr.Is(err, apperr.KindNotFound) {
			t.Fatalf("expected NOT_FOUND, got %v", err)
		}
		if _, err := r.Users.FindByID(ctx, "E001"); !apperr.Is(err, apperr.KindInvalidID) {
			t.Fatalf("expected INVALID_ID_FORMAT, got %v", err)
		}
		if _, err := r.Users.FindByEmail(ctx, "nobody@example.com"); !apperr.Is(err, apperr.KindNotFound) {
			t.Fatalf("expected NOT_FOUND, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
}

func TestAssignmentDetailsRedactsUsers(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	var assignmentID string
	err := inTx(t, store, func(r *Set) error {
		client := model.User{Name: "Ana", Email: "ana@example.com", Password: "hash", Role: model.RoleUser}
		vendorUser := model.User{Name: "Vera", Email: "vera@example.com", Password: "hash", OTP: "123456", Role: model.RoleVendor}
		for _, u := range []*model.User{&client, &vendorUser} {
			if err := r.Users.Create(ctx, u); err != nil {
				return err
			}
		}
		ev := model.Event{UserID: client.ID, Name: "Wedding"}
		if err := r.Events.Create(ctx, &ev); err != nil {
			return err
		}
		vp := model.VendorProfile{UserID: vendorUser.ID, ServiceType: "Catering"}
		if err := r.Vendors.Create(ctx, &vp); err != nil {
			return err
		}
		a := model.VendorAssignment{EventID: ev.ID, VendorID: vp.ID, ClientID: client.ID, Amount: 100, Status: model.AssignmentPending}
		if err := r.Assignments.Create(ctx, &a); err != nil {
			return err
		}
		assignmentID = a.ID
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if assignmentID != "VA001" {
		t.Fatalf("expected VA001, got %s", assignmentID)
	}

	err = store.View(ctx, func(tx docstore.Tx) error {
		r := New(tx, idgen.New(nil))
		d, err := r.AssignmentDetails(ctx, assignmentID, WithVendor)
		if err != nil {
			return err
		}
		if d.Vendor == nil || d.VendorUser == nil || d.Event != nil || d.Client != nil {
			t.Fatalf("only the vendor was requested: %+v", d)
		}
		if d.VendorUser.Password != "" || d.VendorUser.OTP != "" {
			t.Fatalf("populated user not redacted")
		}
		d, err = r.AssignmentDetails(ctx, assignmentID, WithAll)
		if err != nil {
			return err
		}
		if d.Event == nil || d.Client == nil || d.Client.Name != "Ana" {
			t.Fatalf("expected every reference, got %+v", d)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestFindActiveVendors(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	err := inTx(t, store, func(r *Set) error {
		for _, v := range []model.VendorProfile{
			{UserID: "U001", ServiceType: "Catering", Location: "Lisbon"},
			{UserID: "U002", ServiceType: "Catering", Location: "Porto"},
			{UserID: "U003", ServiceType: "Music", Location: "Lisbon", IsDeleted: true},
		} {
			if err := r.Vendors.Create(ctx, &v); err != nil {
				return err
			}
		}
		all, err := r.Vendors.FindActive(ctx, "", "")
		if err != nil {
			return err
		}
		if len(all) != 2 {
			t.Fatalf("deleted profiles are hidden, got %d", len(all))
		}
		lisbon, err := r.Vendors.FindActive(ctx, "Catering", "Lisbon")
		if err != nil {
			return err
		}
		if len(lisbon) != 1 || lisbon[0].UserID != "U001" {
			t.Fatalf("unexpected filter result %+v", lisbon)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
}
