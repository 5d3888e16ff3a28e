package service

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"eventhub/internal/apperr"
	"eventhub/internal/auth"
	"eventhub/internal/blob"
	"eventhub/internal/docstore/memory"
	"eventhub/internal/guard"
	"eventhub/internal/mailer"
	"eventhub/internal/model"
	"eventhub/internal/payment"
	"eventhub/internal/repo"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
}

func (m *fakeMailer) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) to(addr string) []mailer.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []mailer.Message
	for _, msg := range m.sent {
		if msg.To == addr {
			out = append(out, msg)
		}
	}
	return out
}

var codeRe = regexp.MustCompile(`\b\d{6}\b`)

// lastCode extracts the one-time code from the latest email sent to addr.
func (m *fakeMailer) lastCode(t *testing.T, addr string) string {
	t.Helper()
	msgs := m.to(addr)
	if len(msgs) == 0 {
		t.Fatalf("no email sent to %s", addr)
	}
	code := codeRe.FindString(msgs[len(msgs)-1].Body)
	if code == "" {
		t.Fatalf("no code in email body %q", msgs[len(msgs)-1].Body)
	}
	return code
}

type fakeGateway struct {
	intents map[string]payment.Intent
	created int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{intents: make(map[string]payment.Intent)}
}

func (g *fakeGateway) CreateIntent(_ context.Context, amount int64, currency string, metadata map[string]string) (payment.Intent, error) {
	g.created++
	in := payment.Intent{
		ID:           "pi_" + string(rune('a'+g.created)),
		ClientSecret: "secret",
		Amount:       amount,
		Currency:     currency,
		Status:       payment.StatusRequiresAction,
		Metadata:     metadata,
	}
	g.intents[in.ID] = in
	return in, nil
}

func (g *fakeGateway) RetrieveIntent(_ context.Context, id string) (payment.Intent, error) {
	in, ok := g.intents[id]
	if !ok {
		return payment.Intent{}, apperr.NotFound("payment intent", id)
	}
	return in, nil
}

func (g *fakeGateway) succeed(id string) {
	in := g.intents[id]
	in.Status = payment.StatusSucceeded
	in.Method = "card"
	g.intents[id] = in
}

type testEnv struct {
	svc     *Service
	store   *memory.Store
	mail    *fakeMailer
	gateway *fakeGateway
	blobs   *blob.Memory
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := zerolog.Nop()
	env := &testEnv{
		store:   memory.NewStore(),
		mail:    &fakeMailer{},
		gateway: newFakeGateway(),
		blobs:   blob.NewMemory(),
	}
	var mu sync.Mutex
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}
	env.svc = NewService(env.store, &log,
		WithConfig(Config{AppURL: "https://app.example.com/", Currency: "usd"}),
		WithHasher(auth.NewBcryptHasher(bcrypt.MinCost)),
		WithMailer(env.mail),
		WithPayments(env.gateway),
		WithBlobStore(env.blobs),
		WithClock(now),
	)
	return env
}

func (e *testEnv) register(t *testing.T, name, email string, role model.Role) guard.Principal {
	t.Helper()
	u, err := e.svc.RegisterUser(context.Background(), RegisterInput{
		Name:     name,
		Email:    email,
		Password: "password123",
		Role:     role,
	})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return guard.Principal{UserID: u.ID, Role: u.Role}
}

func (e *testEnv) admin(t *testing.T) guard.Principal {
	t.Helper()
	ctx := context.Background()
	if err := e.svc.EnsureAdmin(ctx, "Admin", "admin@example.com", "adminpass1"); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	p, err := e.svc.ActivePrincipal(ctx, e.userID(t, "admin@example.com"))
	if err != nil {
		t.Fatalf("admin principal: %v", err)
	}
	return p
}

func (e *testEnv) userID(t *testing.T, email string) string {
	t.Helper()
	var id string
	err := e.svc.inView(context.Background(), func(r *repo.Set) error {
		u, err := r.Users.FindByEmail(context.Background(), email)
		id = u.ID
		return err
	})
	if err != nil {
		t.Fatalf("find %s: %v", email, err)
	}
	return id
}

func (e *testEnv) event(t *testing.T, owner guard.Principal, name string) model.Event {
	t.Helper()
	ev, err := e.svc.CreateEvent(context.Background(), owner, EventInput{
		Name:     name,
		Date:     time.Date(2025, 9, 20, 0, 0, 0, 0, time.UTC),
		Time:     "18:30",
		Type:     "Wedding",
		Location: "Lisbon",
		MapLink:  "https://maps.example.com/venue",
		InvitationConfig: model.InvitationConfig{
			Theme:         "classic",
			CustomMessage: "Join us",
			ShowMap:       true,
		},
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	return ev
}

// vendor registers a vendor-role user with a profile.
func (e *testEnv) vendor(t *testing.T, name, email string) (guard.Principal, model.VendorProfile) {
	t.Helper()
	p := e.register(t, name, email, model.RoleVendor)
	v, err := e.svc.CreateVendorProfile(context.Background(), p, VendorProfileInput{
		ServiceType: "Catering",
		Description: "Seasonal menus",
		Pricing:     "from 2000",
		Location:    "Lisbon",
	})
	if err != nil {
		t.Fatalf("create vendor profile: %v", err)
	}
	return p, v
}

func requireKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := apperr.KindOf(err); got != kind {
		t.Fatalf("expected %s error, got %s (%v)", kind, got, err)
	}
}
