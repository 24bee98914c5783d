package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	bookingDomain "github.com/reignacare/service-booking/internal/domain/booking"
	"github.com/reignacare/service-booking/internal/domain/notification"
	"github.com/reignacare/service-booking/internal/domain/party"
	"github.com/reignacare/service-booking/internal/notify"
	"github.com/reignacare/service-booking/internal/payment"
	"github.com/reignacare/service-booking/internal/platform/domain"
	"github.com/reignacare/service-booking/internal/platform/kafka"
)

// memoryBookingRepo is an in-memory BookingRepository. A single mutex stands in for the row lock.
type memoryBookingRepo struct {
	mu          sync.Mutex
	nextID      uint64
	rows        map[uint64]bookingDomain.Snapshot
	notes       []*notification.Notification
	settlements map[uint64]bookingDomain.Settlement
	reads       int
	writes      int
}

func newMemoryBookingRepo() *memoryBookingRepo {
	return &memoryBookingRepo{
		rows:        make(map[uint64]bookingDomain.Snapshot),
		settlements: make(map[uint64]bookingDomain.Settlement),
	}
}

func (r *memoryBookingRepo) FindByID(_ context.Context, id uint64) (*bookingDomain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	snap, ok := r.rows[id]
	if !ok {
		return nil, domain.NewNotFoundError("booking", fmt.Sprint(id))
	}
	return bookingDomain.ReconstructBooking(snap), nil
}

func (r *memoryBookingRepo) filter(keep func(bookingDomain.Snapshot) bool) []*bookingDomain.Booking {
	var out []*bookingDomain.Booking
	for _, snap := range r.rows {
		if keep(snap) {
			out = append(out, bookingDomain.ReconstructBooking(snap))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() > out[j].ID() })
	return out
}

func page(all []*bookingDomain.Booking, p, limit int) ([]*bookingDomain.Booking, int64) {
	total := int64(len(all))
	start := (p - 1) * limit
	if start >= len(all) {
		return nil, total
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total
}

func (r *memoryBookingRepo) FindByClientID(_ context.Context, clientID uint64, p, limit int) ([]*bookingDomain.Booking, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items, total := page(r.filter(func(s bookingDomain.Snapshot) bool { return s.ClientID == clientID }), p, limit)
	return items, total, nil
}

func (r *memoryBookingRepo) FindByCarerID(_ context.Context, carerID uint64, p, limit int) ([]*bookingDomain.Booking, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items, total := page(r.filter(func(s bookingDomain.Snapshot) bool { return s.CarerID == carerID }), p, limit)
	return items, total, nil
}

func (r *memoryBookingRepo) FindLatestByCarerID(_ context.Context, carerID uint64) (*bookingDomain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.filter(func(s bookingDomain.Snapshot) bool { return s.CarerID == carerID })
	if len(all) == 0 {
		return nil, nil
	}
	return all[0], nil
}

func (r *memoryBookingRepo) FindPaidCompletedBetween(_ context.Context, carerID uint64, from, to time.Time) ([]*bookingDomain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filter(func(s bookingDomain.Snapshot) bool {
		return s.CarerID == carerID &&
			s.Status == bookingDomain.StatusCompleted &&
			s.PaymentStatus == bookingDomain.PaymentPaid &&
			!s.ScheduledDate.Before(from) && s.ScheduledDate.Before(to)
	}), nil
}

func (r *memoryBookingRepo) ListAll(_ context.Context, p, limit int) ([]*bookingDomain.Booking, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items, total := page(r.filter(func(bookingDomain.Snapshot) bool { return true }), p, limit)
	return items, total, nil
}

func (r *memoryBookingRepo) CountByStatus(context.Context) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int64)
	for _, s := range r.rows {
		counts[string(s.Status)]++
	}
	return counts, nil
}

func (r *memoryBookingRepo) Create(_ context.Context, bk *bookingDomain.Booking, note *notification.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	bk.AssignID(r.nextID)
	r.rows[bk.ID()] = bk.Snapshot()
	if note != nil {
		note.AssignID(uint64(len(r.notes) + 1))
		r.notes = append(r.notes, note)
	}
	return nil
}

func (r *memoryBookingRepo) Update(_ context.Context, id uint64, fn bookingDomain.MutateFunc) (*bookingDomain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	snap, ok := r.rows[id]
	if !ok {
		return nil, domain.NewNotFoundError("booking", fmt.Sprint(id))
	}
	bk := bookingDomain.ReconstructBooking(snap)
	if err := fn(bk); err != nil {
		return nil, err
	}
	bk.IncrementVersion()
	if st := bk.PendingSettlement(); st != nil {
		if _, exists := r.settlements[id]; exists {
			return nil, domain.NewAlreadySettledError(id)
		}
		r.settlements[id] = *st
	}
	r.writes++
	r.rows[id] = bk.Snapshot()
	return bk, nil
}

// put stores a booking directly, bypassing the services.
func (r *memoryBookingRepo) put(s bookingDomain.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[s.ID] = s
	if s.ID > r.nextID {
		r.nextID = s.ID
	}
}

func (r *memoryBookingRepo) snapshot(id uint64) bookingDomain.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[id]
}

func (r *memoryBookingRepo) settlementCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.settlements)
}

func (r *memoryBookingRepo) FindByCarerIDNotes(carerID uint64) []*notification.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*notification.Notification
	for _, n := range r.notes {
		if n.CarerID() == carerID {
			out = append(out, n)
		}
	}
	return out
}

// memoryNotificationRepo reads the notifications written by memoryBookingRepo.Create.
type memoryNotificationRepo struct {
	bookings *memoryBookingRepo
}

func (r memoryNotificationRepo) FindByCarerID(_ context.Context, carerID uint64, limit int) ([]*notification.Notification, error) {
	notes := r.bookings.FindByCarerIDNotes(carerID)
	for i, j := 0, len(notes)-1; i < j; i, j = i+1, j-1 {
		notes[i], notes[j] = notes[j], notes[i]
	}
	if len(notes) > limit {
		notes = notes[:limit]
	}
	return notes, nil
}

type memoryParties struct {
	mu      sync.Mutex
	carers  map[uint64]*party.Carer
	clients map[uint64]*party.Client
	err     error
}

func (p *memoryParties) FindCarer(_ context.Context, id uint64) (*party.Carer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	c, ok := p.carers[id]
	if !ok {
		return nil, domain.NewNotFoundError("carer", fmt.Sprint(id))
	}
	cp := *c
	return &cp, nil
}

func (p *memoryParties) UpdateCarerPushToken(_ context.Context, id uint64, token string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.carers[id]
	if !ok {
		return domain.NewNotFoundError("carer", fmt.Sprint(id))
	}
	c.PushToken = token
	return nil
}

func (p *memoryParties) FindClient(_ context.Context, id uint64) (*party.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.clients[id]
	if !ok {
		return nil, domain.NewNotFoundError("client", fmt.Sprint(id))
	}
	cp := *c
	return &cp, nil
}

func (p *memoryParties) setRate(carerID uint64, rate float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.carers[carerID].ChargeRate = bookingDomain.NewQuantity(rate)
}

type recordingEmail struct {
	mu   sync.Mutex
	sent []notify.Email
	err  error
}

func (r *recordingEmail) Send(_ context.Context, msg notify.Email) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return r.err
}

func (r *recordingEmail) subjects() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.sent))
	for i, m := range r.sent {
		out[i] = m.Subject
	}
	return out
}

type recordingPush struct {
	mu   sync.Mutex
	sent []notify.Push
	err  error
}

func (r *recordingPush) Send(_ context.Context, msg notify.Push) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return r.err
}

func (r *recordingPush) messages() []notify.Push {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Push(nil), r.sent...)
}

type published struct {
	to    *party.Ref
	event string
	data  interface{}
}

type recordingRealtime struct {
	mu     sync.Mutex
	events []published
}

func (r *recordingRealtime) Publish(event string, payload interface{}) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, published{event: event, data: payload})
	return 1, nil
}

func (r *recordingRealtime) PublishTo(ref party.Ref, event string, payload interface{}) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, published{to: &ref, event: event, data: payload})
	return 1, nil
}

func (r *recordingRealtime) named(event string) []published {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []published
	for _, e := range r.events {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

type recordingProducer struct {
	mu     sync.Mutex
	events []kafka.CloudEvent
	topics []string
}

func (p *recordingProducer) PublishEvent(_ context.Context, topic string, event kafka.CloudEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return nil
}

func (p *recordingProducer) ofType(eventType string) []kafka.CloudEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []kafka.CloudEvent
	for _, e := range p.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type sinkEntry struct {
	effect    string
	bookingID uint64
	err       error
}

type recordingSink struct {
	mu      sync.Mutex
	entries []sinkEntry
}

func (s *recordingSink) Report(effect string, bookingID uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, sinkEntry{effect: effect, bookingID: bookingID, err: err})
}

func (s *recordingSink) effects() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.effect
	}
	return out
}

// fakeGateway verifies webhooks with the real Stripe signature check and
// answers API calls from memory.
type fakeGateway struct {
	*payment.StripeGateway

	mu        sync.Mutex
	charges   []payment.ChargeRequest
	intents   map[string]*payment.Intent
	createErr error
}

func (g *fakeGateway) CreateIntent(_ context.Context, req payment.ChargeRequest) (*payment.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.charges = append(g.charges, req)
	id := fmt.Sprintf("pi_%d", len(g.charges))
	return &payment.Intent{ID: id, ClientSecret: id + "_secret", Status: "requires_payment_method", AmountPence: req.AmountPence, BookingID: req.BookingID}, nil
}

func (g *fakeGateway) CreateCheckout(_ context.Context, req payment.ChargeRequest) (*payment.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.charges = append(g.charges, req)
	id := fmt.Sprintf("cs_%d", len(g.charges))
	return &payment.CheckoutSession{ID: id, URL: "https://checkout.stripe.test/" + id}, nil
}

func (g *fakeGateway) GetIntent(_ context.Context, id string) (*payment.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	pi, ok := g.intents[id]
	if !ok {
		return nil, domain.NewNotFoundError("payment intent", id)
	}
	return pi, nil
}

func (g *fakeGateway) lastCharge() payment.ChargeRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.charges[len(g.charges)-1]
}

const (
	testClientID      = uint64(10)
	testCarerID       = uint64(20)
	testOtherCarerID  = uint64(21)
	testAdminID       = uint64(1)
	testWebhookSecret = "whsec_app_test"
)

var errPushDown = errors.New("fcm unavailable")

type harness struct {
	repo     *memoryBookingRepo
	parties  *memoryParties
	email    *recordingEmail
	push     *recordingPush
	realtime *recordingRealtime
	producer *recordingProducer
	sink     *recordingSink
	gateway  *fakeGateway
	effects  *EffectRunner
	bookings *BookingService
	settle   *SettlementService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		repo: newMemoryBookingRepo(),
		parties: &memoryParties{
			carers: map[uint64]*party.Carer{
				testCarerID:      {ID: testCarerID, FullName: "Ada Carer", Email: "ada@example.com", ChargeRate: bookingDomain.NewQuantity(20), PushToken: "carer-token"},
				testOtherCarerID: {ID: testOtherCarerID, FullName: "Bo Carer", ChargeRate: bookingDomain.NewQuantity(30)},
			},
			clients: map[uint64]*party.Client{
				testClientID: {ID: testClientID, FullName: "Cal Client", Email: "cal@example.com", PushToken: "client-token"},
			},
		},
		email:    &recordingEmail{},
		push:     &recordingPush{},
		realtime: &recordingRealtime{},
		producer: &recordingProducer{},
		sink:     &recordingSink{},
		gateway: &fakeGateway{
			StripeGateway: payment.NewStripeGateway(payment.StripeConfig{SecretKey: "sk_test", WebhookSecret: testWebhookSecret}),
			intents:       make(map[string]*payment.Intent),
		},
	}
	logger := zap.NewNop()
	h.effects = NewEffectRunner(5*time.Second, h.sink)
	directory := party.Directory{Carers: h.parties, Clients: h.parties}
	pricing := bookingDomain.NewHourlyPricingStrategy()
	dispatcher := notify.NewDispatcher(h.email, h.push, logger)

	h.bookings = NewBookingService(h.repo, memoryNotificationRepo{bookings: h.repo}, directory, pricing,
		dispatcher, h.realtime, h.producer, h.effects, logger)
	h.settle = NewSettlementService(h.repo, directory, pricing, h.gateway, h.realtime, h.producer, h.effects, logger)
	return h
}

func (h *harness) create(t *testing.T, hours float64) *BookingDTO {
	t.Helper()
	dto, err := h.bookings.CreateBooking(context.Background(), testClientID, CreateBookingRequest{
		CarerID:       testCarerID,
		ServiceType:   "Companionship",
		ServiceHours:  bookingDomain.NewQuantity(hours),
		ScheduledDate: "2026-10-19",
		ScheduledTime: "09:00",
		Location:      "Leeds",
	})
	require.NoError(t, err)
	return dto
}

func (h *harness) advance(t *testing.T, id uint64, statuses ...string) *BookingDTO {
	t.Helper()
	var dto *BookingDTO
	for _, s := range statuses {
		var err error
		dto, err = h.bookings.Transition(context.Background(), id, testCarerID, s)
		require.NoError(t, err, s)
	}
	return dto
}

// completed creates a booking and walks it to completed.
func (h *harness) completed(t *testing.T, hours float64) *BookingDTO {
	t.Helper()
	dto := h.create(t, hours)
	return h.advance(t, dto.ID, "accepted", "started", "completed")
}
