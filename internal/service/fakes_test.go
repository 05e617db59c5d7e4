package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"pricing-service/internal/models"
	"pricing-service/internal/payments"
	"pricing-service/internal/redisclient"
	"pricing-service/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

type resetToken struct {
	userID  string
	expires time.Time
}

// memStore is an in-memory stand-in for *store.Store
type memStore struct {
	mu          sync.Mutex
	users       map[string]*models.User
	settings    map[string]models.PricingSettings
	stores      []models.ConnectedStore
	products    map[string]*models.Product
	history     []models.PricingHistoryEntry
	processed   map[string]string
	resetTokens map[string]resetToken

	applyErr error
}

func newMemStore() *memStore {
	return &memStore{
		users:       make(map[string]*models.User),
		settings:    make(map[string]models.PricingSettings),
		products:    make(map[string]*models.Product),
		processed:   make(map[string]string),
		resetTokens: make(map[string]resetToken),
	}
}

func (m *memStore) addUser(u models.User) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	m.users[u.ID] = &u
	cp := u
	return &cp
}

func (m *memStore) addStore(cs models.ConnectedStore) models.ConnectedStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cs.ID == "" {
		cs.ID = uuid.NewString()
	}
	m.stores = append(m.stores, cs)
	return cs
}

func (m *memStore) addProduct(p models.Product) models.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.OptimizationStatus == "" {
		p.OptimizationStatus = models.OptimizationPending
	}
	p.CreatedAt = time.Now()
	m.products[p.ID] = &p
	return p
}

func (m *memStore) product(id string) *models.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

func (m *memStore) historyFor(productID string) []models.PricingHistoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.PricingHistoryEntry
	for _, h := range m.history {
		if h.ProductID == productID {
			out = append(out, h)
		}
	}
	return out
}

func (m *memStore) user(id string) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.users[id]
	return &cp
}

// users

func (m *memStore) CreateUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return store.ErrDuplicate
		}
	}
	user.ID = uuid.NewString()
	user.CreatedAt = time.Now()
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) UpdateLastLogin(ctx context.Context, id string) error {
	return m.withUser(id, func(u *models.User) {
		now := time.Now()
		u.LastLogin = &now
	})
}

func (m *memStore) UpdateUserPreferences(ctx context.Context, id string, autoOptimize, weeklyReports bool) error {
	return m.withUser(id, func(u *models.User) {
		u.AutoOptimize = autoOptimize
		u.WeeklyReports = weeklyReports
	})
}

func (m *memStore) SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return store.ErrNotFound
	}
	m.resetTokens[tokenHash] = resetToken{userID: id, expires: expiresAt}
	return nil
}

func (m *memStore) ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.resetTokens[tokenHash]
	if !ok || time.Now().After(tok.expires) {
		return store.ErrNotFound
	}
	delete(m.resetTokens, tokenHash)
	m.users[tok.userID].PasswordHash = passwordHash
	return nil
}

func (m *memStore) SetStripeCustomerID(ctx context.Context, id, customerID string) error {
	return m.withUser(id, func(u *models.User) { u.StripeCustomerID = &customerID })
}

func (m *memStore) UpdateSubscription(ctx context.Context, id, plan, status string, subscriptionID *string) error {
	return m.withUser(id, func(u *models.User) {
		u.SubscriptionPlan = plan
		u.SubscriptionStatus = status
		u.SubscriptionID = subscriptionID
	})
}

func (m *memStore) UpdateSubscriptionStatus(ctx context.Context, id, status string) error {
	return m.withUser(id, func(u *models.User) { u.SubscriptionStatus = status })
}

func (m *memStore) UpdateStatusBySubscriptionID(ctx context.Context, subscriptionID, status string) error {
	return m.withSubscription(subscriptionID, func(u *models.User) { u.SubscriptionStatus = status })
}

func (m *memStore) CancelBySubscriptionID(ctx context.Context, subscriptionID string) error {
	return m.withSubscription(subscriptionID, func(u *models.User) {
		u.SubscriptionStatus = models.SubscriptionCanceled
		u.SubscriptionPlan = models.PlanStarter
	})
}

func (m *memStore) withUser(id string, fn func(u *models.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return store.ErrNotFound
	}
	fn(u)
	return nil
}

func (m *memStore) withSubscription(subscriptionID string, fn func(u *models.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	found := false
	for _, u := range m.users {
		if u.SubscriptionID != nil && *u.SubscriptionID == subscriptionID {
			fn(u)
			found = true
		}
	}
	if !found {
		return store.ErrNotFound
	}
	return nil
}

func (m *memStore) listUsers(keep func(u *models.User) bool) []models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.User
	for _, u := range m.users {
		if keep(u) {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (m *memStore) ListAutoOptimizeUsers(ctx context.Context) ([]models.User, error) {
	return m.listUsers(func(u *models.User) bool { return u.AutoOptimize }), nil
}

func (m *memStore) ListWeeklyReportUsers(ctx context.Context) ([]models.User, error) {
	return m.listUsers(func(u *models.User) bool { return u.WeeklyReports }), nil
}

func (m *memStore) ListUsers(ctx context.Context, limit, offset int) ([]models.User, int, error) {
	all := m.listUsers(func(*models.User) bool { return true })
	if offset >= len(all) {
		return []models.User{}, len(all), nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

func (m *memStore) GetPlatformStats(ctx context.Context) (*models.PlatformStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &models.PlatformStats{TotalUsers: len(m.users), TotalProducts: len(m.products)}
	for _, u := range m.users {
		if u.SubscriptionStatus == models.SubscriptionActive && u.SubscriptionPlan != models.PlanStarter {
			stats.ActiveSubscriptions++
		}
	}
	return stats, nil
}

func (m *memStore) CountActiveByPlan(ctx context.Context) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int)
	for _, u := range m.users {
		if u.SubscriptionStatus == models.SubscriptionActive {
			out[u.SubscriptionPlan]++
		}
	}
	return out, nil
}

func (m *memStore) MonthlySignups(ctx context.Context, since time.Time) ([]models.MonthlyCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[string]int)
	for _, u := range m.users {
		if !u.CreatedAt.Before(since) {
			counts[u.CreatedAt.UTC().Format("2006-01")]++
		}
	}
	out := make([]models.MonthlyCount, 0, len(counts))
	for month, n := range counts {
		out = append(out, models.MonthlyCount{Month: month, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}

// settings

func (m *memStore) GetPricingSettings(ctx context.Context, userID string) (*models.PricingSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settings[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &s, nil
}

func (m *memStore) UpsertPricingSettings(ctx context.Context, settings *models.PricingSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[settings.UserID] = *settings
	return nil
}

// stores

func (m *memStore) CreateConnectedStore(ctx context.Context, cs *models.ConnectedStore) error {
	cs.ID = uuid.NewString()
	cs.ConnectedAt = time.Now()
	m.addStore(*cs)
	return nil
}

func (m *memStore) ListStoresByUser(ctx context.Context, userID string) ([]models.ConnectedStore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ConnectedStore
	for _, cs := range m.stores {
		if cs.UserID == userID {
			out = append(out, cs)
		}
	}
	return out, nil
}

func (m *memStore) FindStoresByIdentifier(ctx context.Context, p models.Platform, identifier string) ([]models.ConnectedStore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ConnectedStore
	for _, cs := range m.stores {
		if cs.Platform == p && cs.StoreIdentifier == identifier {
			out = append(out, cs)
		}
	}
	return out, nil
}

func (m *memStore) DeleteStore(ctx context.Context, userID, storeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, cs := range m.stores {
		if cs.ID == storeID && cs.UserID == userID {
			m.stores = append(m.stores[:i], m.stores[i+1:]...)
			for id, p := range m.products {
				if p.StoreID == storeID {
					delete(m.products, id)
				}
			}
			return nil
		}
	}
	return store.ErrNotFound
}

// products

func (m *memStore) ListProducts(ctx context.Context, f store.ProductFilter) ([]models.Product, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []models.Product
	for _, p := range m.products {
		if p.UserID != f.UserID {
			continue
		}
		if f.Status != "" && p.OptimizationStatus != f.Status {
			continue
		}
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		all = append(all, *p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	total := len(all)
	if f.Offset >= total {
		return []models.Product{}, total, nil
	}
	end := f.Offset + f.Limit
	if end > total {
		end = total
	}
	return all[f.Offset:end], total, nil
}

func (m *memStore) ListProductsByStore(ctx context.Context, storeID string) ([]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Product
	for _, p := range m.products {
		if p.StoreID == storeID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalID < out[j].ExternalID })
	return out, nil
}

func (m *memStore) GetProduct(ctx context.Context, userID, productID string) (*models.Product, error) {
	p := m.product(productID)
	if p == nil || p.UserID != userID {
		return nil, store.ErrNotFound
	}
	return p, nil
}

func (m *memStore) GetProductsByIDs(ctx context.Context, userID string, ids []string) ([]models.Product, error) {
	var out []models.Product
	for _, id := range ids {
		if p, err := m.GetProduct(ctx, userID, id); err == nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memStore) UpsertProduct(ctx context.Context, p *models.Product) error {
	m.mu.Lock()
	for _, existing := range m.products {
		if existing.StoreID == p.StoreID && existing.ExternalID == p.ExternalID {
			existing.Name = p.Name
			existing.SKU = p.SKU
			existing.Category = p.Category
			existing.CurrentPrice = p.CurrentPrice
			p.ID = existing.ID
			m.mu.Unlock()
			return nil
		}
	}
	m.mu.Unlock()
	*p = m.addProduct(*p)
	return nil
}

func (m *memStore) findExternal(storeID, externalID string) *models.Product {
	for _, p := range m.products {
		if p.StoreID == storeID && p.ExternalID == externalID {
			return p
		}
	}
	return nil
}

func (m *memStore) UpdateProductFromPlatform(ctx context.Context, storeID, externalID, name string, price *float64, category string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.findExternal(storeID, externalID)
	if p == nil {
		return store.ErrNotFound
	}
	if name != "" {
		p.Name = name
	}
	if price != nil {
		p.CurrentPrice = *price
	}
	if category != "" {
		p.Category = category
	}
	return nil
}

func (m *memStore) DeleteProductByExternalID(ctx context.Context, storeID, externalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.findExternal(storeID, externalID)
	if p == nil {
		return store.ErrNotFound
	}
	delete(m.products, p.ID)
	return nil
}

func (m *memStore) UpdateProductPrice(ctx context.Context, userID, productID string, price float64) (*models.Product, error) {
	return m.withProduct(userID, productID, func(p *models.Product) { p.CurrentPrice = price })
}

func (m *memStore) SetSuggestedPrice(ctx context.Context, userID, productID string, suggested *float64, status string) (*models.Product, error) {
	return m.withProduct(userID, productID, func(p *models.Product) {
		p.SuggestedPrice = suggested
		p.OptimizationStatus = status
	})
}

func (m *memStore) withProduct(userID, productID string, fn func(p *models.Product)) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok || p.UserID != userID {
		return nil, store.ErrNotFound
	}
	fn(p)
	cp := *p
	return &cp, nil
}

func (m *memStore) ApplyPriceChange(ctx context.Context, product *models.Product, newPrice float64, strategy models.Strategy) (*models.PricingHistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.applyErr != nil {
		return nil, m.applyErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[product.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	entry := models.PricingHistoryEntry{
		ID:        uuid.NewString(),
		ProductID: p.ID,
		UserID:    p.UserID,
		OldPrice:  p.CurrentPrice,
		NewPrice:  newPrice,
		Strategy:  strategy,
		CreatedAt: time.Now(),
	}
	p.CurrentPrice = newPrice
	p.SuggestedPrice = &newPrice
	p.OptimizationStatus = models.OptimizationDone
	m.history = append(m.history, entry)
	return &entry, nil
}

func (m *memStore) ListPricingHistory(ctx context.Context, userID, productID string) ([]models.PricingHistoryEntry, error) {
	entries := m.historyFor(productID)
	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt.After(entries[j].CreatedAt) })
	return entries, nil
}

func (m *memStore) GetPerformanceSummary(ctx context.Context, userID string, since time.Time) (*models.PerformanceSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &models.PerformanceSummary{}
	for _, p := range m.products {
		if p.UserID != userID {
			continue
		}
		s.TotalProducts++
		if p.OptimizationStatus == models.OptimizationDone {
			s.OptimizedProducts++
		}
	}
	for _, h := range m.history {
		if h.UserID == userID && !h.CreatedAt.Before(since) {
			s.PriceChanges++
		}
	}
	return s, nil
}

func (m *memStore) PurgePricingHistory(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.history[:0]
	var n int64
	for _, h := range m.history {
		if h.CreatedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, h)
	}
	m.history = kept
	return n, nil
}

func (m *memStore) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.processed[eventID]
	return ok, nil
}

func (m *memStore) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed[eventID] = eventType
	return nil
}

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu         sync.Mutex
	registered []*models.UserRegisteredEvent
	resets     []*models.PasswordResetRequestedEvent
	changed    []*models.PriceChangedEvent
	completed  []*models.OptimizationCompletedEvent
	reports    []*models.WeeklyReportEvent
}

func (p *recordingPublisher) PublishUserRegistered(ctx context.Context, e *models.UserRegisteredEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registered = append(p.registered, e)
	return nil
}

func (p *recordingPublisher) PublishPasswordResetRequested(ctx context.Context, e *models.PasswordResetRequestedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resets = append(p.resets, e)
	return nil
}

func (p *recordingPublisher) PublishPriceChanged(ctx context.Context, e *models.PriceChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changed = append(p.changed, e)
	return nil
}

func (p *recordingPublisher) PublishOptimizationCompleted(ctx context.Context, e *models.OptimizationCompletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed = append(p.completed, e)
	return nil
}

func (p *recordingPublisher) PublishWeeklyReport(ctx context.Context, e *models.WeeklyReportEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reports = append(p.reports, e)
	return nil
}

type pushCall struct {
	StoreID    string
	ExternalID string
	Price      float64
}

// fakePusher fails pushes for the external ids in failFor and calls onPush
// after every successful push
type fakePusher struct {
	mu      sync.Mutex
	failFor map[string]bool
	calls   []pushCall
	onPush  func(externalID string)
}

func (f *fakePusher) UpdatePrice(ctx context.Context, cs *models.ConnectedStore, externalID string, price float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, pushCall{StoreID: cs.ID, ExternalID: externalID, Price: price})
	if f.failFor[externalID] {
		return errors.New("API request failed: 500 - upstream error")
	}
	if f.onPush != nil {
		f.onPush(externalID)
	}
	return nil
}

// newTestLocker returns a lease client backed by miniredis
func newTestLocker(t *testing.T) *redisclient.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	c := redisclient.NewFromRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { c.Close() })
	return c
}

// fakeGateway returns canned results; webhooks maps payload to event
type fakeGateway struct {
	customers   int
	canceled    []string
	subscribeTo []string
	webhooks    map[string]*payments.WebhookEvent
}

func (g *fakeGateway) CreateCustomer(ctx context.Context, userID, email, name string) (string, error) {
	g.customers++
	return "cus_" + userID, nil
}

func (g *fakeGateway) CreateSubscription(ctx context.Context, customerID, planID, paymentMethodID string) (*payments.Subscription, error) {
	g.subscribeTo = append(g.subscribeTo, planID)
	return &payments.Subscription{ID: "sub_" + planID, Status: "active"}, nil
}

func (g *fakeGateway) CancelAtPeriodEnd(ctx context.Context, subscriptionID string) error {
	g.canceled = append(g.canceled, subscriptionID)
	return nil
}

func (g *fakeGateway) CreatePaymentIntent(ctx context.Context, userID string, amount int64, currency, method string) (string, error) {
	return "pi_secret_" + currency, nil
}

func (g *fakeGateway) ParseWebhook(payload []byte, signature string) (*payments.WebhookEvent, error) {
	if signature != "valid" {
		return nil, payments.ErrInvalidSignature
	}
	ev, ok := g.webhooks[string(payload)]
	if !ok {
		return nil, errors.New("unknown payload")
	}
	return ev, nil
}
