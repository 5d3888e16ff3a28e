package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"eventhub/internal/apperr"
	"eventhub/internal/auth"
	"eventhub/internal/docstore"
	"eventhub/internal/guard"
	"eventhub/internal/model"
	"eventhub/internal/repo"
)

func TestRegisterAllocatesSequentialIDs(t *testing.T) {
	env := newTestEnv(t)

	for i := 1; i <= 12; i++ {
		p := env.register(t, "User", fmt.Sprintf("user%d@example.com", i), model.RoleUser)
		if want := fmt.Sprintf("U%03d", i); p.UserID != want {
			t.Fatalf("user %d: expected id %s, got %s", i, want, p.UserID)
		}
	}
}

func TestAllocatorSkipsForeignIDs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	err := env.store.RunInTx(ctx, func(tx docstore.Tx) error {
		for id, email := range map[string]string{"U007": "seven@example.com", "legacy-1": "legacy@example.com"} {
			doc, _ := json.Marshal(model.User{ID: id, Email: email, Role: model.RoleUser})
			if err := tx.Insert(ctx, docstore.Users, id, doc); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	p := env.register(t, "Next", "next@example.com", model.RoleUser)
	if p.UserID != "U008" {
		t.Fatalf("expected U008 after U007, got %s", p.UserID)
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "Ana", "ana@example.com", model.RoleUser)

	_, err := env.svc.RegisterUser(context.Background(), RegisterInput{
		Name: "Ana Again", Email: " ANA@example.com ", Password: "password123",
	})
	requireKind(t, err, apperr.KindDuplicate)
}

func TestRegisterReportsEveryViolation(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.RegisterUser(context.Background(), RegisterInput{Email: "nope", Password: "short"})
	requireKind(t, err, apperr.KindValidation)
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *apperr.Error, got %T", err)
	}
	for _, field := range []string{"name", "email", "password"} {
		if !strings.Contains(appErr.Message, field) {
			t.Fatalf("expected %q in %q", field, appErr.Message)
		}
	}
}

func TestLoginRequiresEmailedCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "Ana", "ana@example.com", model.RoleUser)

	requireKind(t, env.svc.Login(ctx, "ana@example.com", "wrong-password"), apperr.KindUnauthenticated)

	if err := env.svc.Login(ctx, "ana@example.com", "password123"); err != nil {
		t.Fatalf("login: %v", err)
	}
	code := env.mail.lastCode(t, "ana@example.com")

	_, err := env.svc.VerifyLoginCode(ctx, "ana@example.com", "000000x")
	requireKind(t, err, apperr.KindUnauthenticated)

	u, err := env.svc.VerifyLoginCode(ctx, "ana@example.com", code)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if u.OTP != "" || u.OTPExpires != nil {
		t.Fatalf("code must be consumed, got %+v", u)
	}
	_, err = env.svc.VerifyLoginCode(ctx, "ana@example.com", code)
	requireKind(t, err, apperr.KindUnauthenticated)
}

func TestPasswordReset(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "Ana", "ana@example.com", model.RoleUser)

	if err := env.svc.RequestPasswordReset(ctx, "ghost@example.com"); err != nil {
		t.Fatalf("unknown email must be silent, got %v", err)
	}
	if err := env.svc.RequestPasswordReset(ctx, "ana@example.com"); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	code := env.mail.lastCode(t, "ana@example.com")
	err := env.svc.ResetPassword(ctx, ResetPasswordInput{Email: "ana@example.com", Code: code, NewPassword: "brand-new-pass"})
	if err != nil {
		t.Fatalf("reset: %v", err)
	}

	requireKind(t, env.svc.Login(ctx, "ana@example.com", "password123"), apperr.KindUnauthenticated)
	if err := env.svc.Login(ctx, "ana@example.com", "brand-new-pass"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestDeleteUserAnonymizesAndFreesEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.admin(t)
	vendor, profile := env.vendor(t, "Vera", "vera@example.com")

	if err := env.svc.DeleteUser(ctx, vendor, vendor.UserID); err == nil {
		t.Fatalf("non-admin delete must fail")
	}
	if err := env.svc.DeleteUser(ctx, admin, vendor.UserID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	var stored model.User
	var storedProfile model.VendorProfile
	err := env.svc.inView(ctx, func(r *repo.Set) error {
		var err error
		if stored, err = r.Users.FindByID(ctx, vendor.UserID); err != nil {
			return err
		}
		storedProfile, err = r.Vendors.FindByID(ctx, profile.ID)
		return err
	})
	if err != nil {
		t.Fatalf("load anonymized user: %v", err)
	}
	if !stored.IsDeleted || stored.State() != model.AccountAnonymized {
		t.Fatalf("expected anonymized user, got %+v", stored)
	}
	if stored.Email == "vera@example.com" || !strings.HasSuffix(stored.Email, "_vera@example.com") {
		t.Fatalf("unexpected anonymized email %q", stored.Email)
	}
	if stored.Password != auth.UnusablePassword {
		t.Fatalf("password must be unusable")
	}
	if !storedProfile.IsDeleted {
		t.Fatalf("vendor profile must be soft-deleted")
	}

	again := env.register(t, "Vera Two", "vera@example.com", model.RoleUser)
	if again.UserID == vendor.UserID {
		t.Fatalf("re-registration must get a fresh id")
	}
	requireKind(t, env.svc.DeleteUser(ctx, admin, vendor.UserID), apperr.KindNotFound)
	requireKind(t, env.svc.Login(ctx, stored.Email, ""), apperr.KindUnauthenticated)
}

func TestBlockedUserCannotSignIn(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.admin(t)
	user := env.register(t, "Ana", "ana@example.com", model.RoleUser)

	if _, err := env.svc.SetUserBlocked(ctx, admin, user.UserID, true); err != nil {
		t.Fatalf("block: %v", err)
	}
	requireKind(t, env.svc.Login(ctx, "ana@example.com", "password123"), apperr.KindNotAuthorized)
	_, err := env.svc.SetUserBlocked(ctx, user, admin.UserID, true)
	requireKind(t, err, apperr.KindUnauthenticated)
}

func TestRevokedAccountsLoseAccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.admin(t)
	ana := env.register(t, "Ana", "ana@example.com", model.RoleUser)
	bob := env.register(t, "Bob", "bob@example.com", model.RoleUser)
	input := EventInput{Name: "Party", Date: time.Date(2025, 9, 20, 0, 0, 0, 0, time.UTC), Time: "18:30", Type: "Party", Location: "Lisbon"}

	if err := env.svc.DeleteUser(ctx, admin, ana.UserID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err := env.svc.CreateEvent(ctx, ana, input)
	requireKind(t, err, apperr.KindUnauthenticated)
	_, err = env.svc.SendMessage(ctx, ana, SendMessageInput{ReceiverID: bob.UserID, Content: "still here"})
	requireKind(t, err, apperr.KindUnauthenticated)

	if _, err := env.svc.SetUserBlocked(ctx, admin, bob.UserID, true); err != nil {
		t.Fatalf("block: %v", err)
	}
	_, err = env.svc.CreateEvent(ctx, bob, input)
	requireKind(t, err, apperr.KindUnauthenticated)

	if _, err := env.svc.SetUserBlocked(ctx, admin, bob.UserID, false); err != nil {
		t.Fatalf("unblock: %v", err)
	}
	if _, err := env.svc.CreateEvent(ctx, bob, input); err != nil {
		t.Fatalf("unblocked user should act again: %v", err)
	}

	var events int
	err = env.svc.inView(ctx, func(r *repo.Set) error {
		ids, err := r.Events.FindByOwner(ctx, ana.UserID)
		events = len(ids)
		return err
	})
	if err != nil || events != 0 {
		t.Fatalf("anonymized user must not own new events, got %d (%v)", events, err)
	}
}

func TestRoleComesFromStoredAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	vendor := env.register(t, "Vera", "vera@example.com", model.RoleVendor)

	forged := guard.Principal{UserID: vendor.UserID, Role: model.RoleAdmin}
	_, err := env.svc.ListUsers(ctx, forged)
	requireKind(t, err, apperr.KindNotAuthorized)

	p, err := env.svc.ActivePrincipal(ctx, vendor.UserID)
	if err != nil || p.Role != model.RoleVendor {
		t.Fatalf("expected vendor principal, got %+v (%v)", p, err)
	}
	_, err = env.svc.ActivePrincipal(ctx, "U999")
	requireKind(t, err, apperr.KindUnauthenticated)
}

func TestLookupWithMalformedID(t *testing.T) {
	env := newTestEnv(t)
	owner := env.register(t, "Ana", "ana@example.com", model.RoleUser)

	_, err := env.svc.GetEvent(context.Background(), owner, "E1x")
	requireKind(t, err, apperr.KindInvalidID)
	_, err = env.svc.GetEvent(context.Background(), owner, "E404")
	requireKind(t, err, apperr.KindNotFound)
}

func TestMessagingConversations(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ana := env.register(t, "Ana", "ana@example.com", model.RoleUser)
	bo := env.register(t, "Bo", "bo@example.com", model.RoleUser)
	cy := env.register(t, "Cy", "cy@example.com", model.RoleUser)

	_, err := env.svc.SendMessage(ctx, ana, SendMessageInput{ReceiverID: ana.UserID, Content: "hi me"})
	requireKind(t, err, apperr.KindValidation)

	send := func(from guard.Principal, to guard.Principal, content string) {
		t.Helper()
		if _, err := env.svc.SendMessage(ctx, from, SendMessageInput{ReceiverID: to.UserID, Content: content}); err != nil {
			t.Fatalf("send: %v", err)
		}
	}
	send(bo, ana, "hello")
	send(bo, ana, "are you there?")
	send(ana, bo, "yes")
	send(cy, ana, "quote attached")

	convs, err := env.svc.ListConversations(ctx, ana)
	if err != nil {
		t.Fatalf("list conversations: %v", err)
	}
	if len(convs) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(convs))
	}
	if convs[0].CounterpartID != cy.UserID || convs[0].Unread != 1 {
		t.Fatalf("expected newest conversation with Cy first, got %+v", convs[0])
	}
	if convs[1].CounterpartName != "Bo" || convs[1].Unread != 2 || convs[1].LastMessage.Content != "yes" {
		t.Fatalf("unexpected conversation with Bo: %+v", convs[1])
	}

	n, err := env.svc.UnreadCount(ctx, ana)
	if err != nil || n != 3 {
		t.Fatalf("expected 3 unread, got %d (%v)", n, err)
	}
	thread, err := env.svc.GetThread(ctx, ana, bo.UserID)
	if err != nil {
		t.Fatalf("thread: %v", err)
	}
	if len(thread) != 3 || thread[0].Content != "hello" {
		t.Fatalf("unexpected thread %+v", thread)
	}
	n, _ = env.svc.UnreadCount(ctx, ana)
	if n != 1 {
		t.Fatalf("reading the thread must mark it read, %d unread left", n)
	}
}
