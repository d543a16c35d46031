package subscriptions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terminwatch/terminwatch/internal/domain"
)

type fakeRepo struct {
	users    map[int64]*domain.User
	subs     map[string]*domain.Subscription
	services map[string]*domain.Service
	checks   map[string]*domain.CheckResult
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:    make(map[int64]*domain.User),
		subs:     make(map[string]*domain.Subscription),
		services: make(map[string]*domain.Service),
		checks:   make(map[string]*domain.CheckResult),
	}
}

func (r *fakeRepo) UpsertUser(_ context.Context, user *domain.User) (*domain.User, error) {
	if existing, ok := r.users[user.ChatID]; ok {
		existing.Username = user.Username
		existing.IsActive = true
		copied := *existing
		return &copied, nil
	}
	copied := *user
	r.users[user.ChatID] = &copied
	out := copied
	return &out, nil
}

func (r *fakeRepo) GetUserByChatID(_ context.Context, chatID int64) (*domain.User, error) {
	user, ok := r.users[chatID]
	if !ok {
		return nil, ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *fakeRepo) CreateSubscription(_ context.Context, sub *domain.Subscription) error {
	copied := *sub
	r.subs[sub.ID] = &copied
	return nil
}

func (r *fakeRepo) GetSubscription(_ context.Context, id string) (*domain.Subscription, error) {
	sub, ok := r.subs[id]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	copied := *sub
	return &copied, nil
}

func (r *fakeRepo) FindSubscription(_ context.Context, userID, serviceID string) (*domain.Subscription, error) {
	for _, sub := range r.subs {
		if sub.UserID == userID && sub.ServiceID == serviceID {
			copied := *sub
			return &copied, nil
		}
	}
	return nil, ErrSubscriptionNotFound
}

func (r *fakeRepo) ListUserSubscriptions(_ context.Context, userID string) ([]domain.Subscription, error) {
	var out []domain.Subscription
	for _, sub := range r.subs {
		if sub.UserID == userID {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (r *fakeRepo) UpdateSubscription(_ context.Context, sub *domain.Subscription) error {
	if _, ok := r.subs[sub.ID]; !ok {
		return ErrSubscriptionNotFound
	}
	copied := *sub
	r.subs[sub.ID] = &copied
	return nil
}

func (r *fakeRepo) ListServices(_ context.Context, activeOnly bool) ([]domain.Service, error) {
	var out []domain.Service
	for _, svc := range r.services {
		if !activeOnly || svc.IsActive {
			out = append(out, *svc)
		}
	}
	return out, nil
}

func (r *fakeRepo) GetService(_ context.Context, id string) (*domain.Service, error) {
	svc, ok := r.services[id]
	if !ok {
		return nil, ErrServiceNotFound
	}
	copied := *svc
	return &copied, nil
}

func (r *fakeRepo) GetLatestCheck(_ context.Context, subscriptionID string) (*domain.CheckResult, error) {
	return r.checks[subscriptionID], nil
}

func seedService(repo *fakeRepo) *domain.Service {
	svc := &domain.Service{
		ID:         "11111111-1111-1111-1111-111111111111",
		Category:   "Fahrerlaubnis",
		Name:       "Umtausch Führerschein",
		BookingURL: "https://termine.example.de/select2?md=3",
		IsActive:   true,
	}
	repo.services[svc.ID] = svc
	return svc
}

func validInput(serviceID string) CreateInput {
	return CreateInput{
		ChatID:    42,
		Username:  "anna",
		ServiceID: serviceID,
		Interval:  30 * time.Minute,
		Quantity:  1,
	}
}

func TestService_Create(t *testing.T) {
	repo := newFakeRepo()
	svc := seedService(repo)
	s := NewService(repo, DefaultConfig())

	sub, err := s.Create(context.Background(), validInput(svc.ID))
	require.NoError(t, err)

	assert.NotEmpty(t, sub.ID)
	assert.Equal(t, svc.ID, sub.ServiceID)
	assert.Equal(t, 30*time.Minute, sub.Interval)
	assert.True(t, sub.IsActive)

	user, err := repo.GetUserByChatID(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, sub.UserID, user.ID)
	assert.Equal(t, "anna", user.Username)
}

func TestService_Create_IntervalFloor(t *testing.T) {
	repo := newFakeRepo()
	svc := seedService(repo)
	s := NewService(repo, DefaultConfig())

	input := validInput(svc.ID)
	input.Interval = time.Minute

	_, err := s.Create(context.Background(), input)
	assert.ErrorIs(t, err, ErrIntervalTooShort)

	// Exactly at the floor is allowed.
	input.Interval = 5 * time.Minute
	_, err = s.Create(context.Background(), input)
	assert.NoError(t, err)
}

func TestService_Create_QuantityBounds(t *testing.T) {
	repo := newFakeRepo()
	svc := seedService(repo)
	s := NewService(repo, DefaultConfig())

	for _, quantity := range []int{0, -1, 11} {
		input := validInput(svc.ID)
		input.Quantity = quantity
		_, err := s.Create(context.Background(), input)
		assert.ErrorIs(t, err, ErrQuantityInvalid, "quantity %d", quantity)
	}
}

func TestService_Create_UnknownService(t *testing.T) {
	repo := newFakeRepo()
	s := NewService(repo, DefaultConfig())

	_, err := s.Create(context.Background(), validInput("22222222-2222-2222-2222-222222222222"))
	assert.ErrorIs(t, err, ErrServiceNotFound)
}

func TestService_Create_InactiveService(t *testing.T) {
	repo := newFakeRepo()
	svc := seedService(repo)
	svc.IsActive = false
	s := NewService(repo, DefaultConfig())

	_, err := s.Create(context.Background(), validInput(svc.ID))
	assert.ErrorIs(t, err, ErrServiceInactive)
}

func TestService_Create_DuplicateActiveRejected(t *testing.T) {
	repo := newFakeRepo()
	svc := seedService(repo)
	s := NewService(repo, DefaultConfig())

	_, err := s.Create(context.Background(), validInput(svc.ID))
	require.NoError(t, err)

	_, err = s.Create(context.Background(), validInput(svc.ID))
	assert.ErrorIs(t, err, ErrSubscriptionExists)
}

func TestService_Create_ReactivatesInactive(t *testing.T) {
	repo := newFakeRepo()
	svc := seedService(repo)
	s := NewService(repo, DefaultConfig())

	first, err := s.Create(context.Background(), validInput(svc.ID))
	require.NoError(t, err)
	require.NoError(t, s.Deactivate(context.Background(), first.ID))

	input := validInput(svc.ID)
	input.Interval = time.Hour
	input.Quantity = 2

	second, err := s.Create(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "inactive subscription is reactivated, not duplicated")
	assert.Equal(t, time.Hour, second.Interval)
	assert.Equal(t, 2, second.Quantity)
	assert.True(t, second.IsActive)
}

func TestService_Deactivate(t *testing.T) {
	repo := newFakeRepo()
	svc := seedService(repo)
	s := NewService(repo, DefaultConfig())

	sub, err := s.Create(context.Background(), validInput(svc.ID))
	require.NoError(t, err)

	require.NoError(t, s.Deactivate(context.Background(), sub.ID))
	stored, err := repo.GetSubscription(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)

	// Idempotent.
	assert.NoError(t, s.Deactivate(context.Background(), sub.ID))

	assert.ErrorIs(t, s.Deactivate(context.Background(), "missing"), ErrSubscriptionNotFound)
}

func TestService_ListByChatID(t *testing.T) {
	repo := newFakeRepo()
	svc := seedService(repo)
	s := NewService(repo, DefaultConfig())

	_, err := s.Create(context.Background(), validInput(svc.ID))
	require.NoError(t, err)

	subs, err := s.ListByChatID(context.Background(), 42)
	require.NoError(t, err)
	assert.Len(t, subs, 1)

	// Unknown chat is simply empty.
	subs, err = s.ListByChatID(context.Background(), 999)
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestService_LatestCheck(t *testing.T) {
	repo := newFakeRepo()
	svc := seedService(repo)
	s := NewService(repo, DefaultConfig())

	sub, err := s.Create(context.Background(), validInput(svc.ID))
	require.NoError(t, err)

	result, err := s.LatestCheck(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Nil(t, result)

	repo.checks[sub.ID] = &domain.CheckResult{ID: "check-1", SubscriptionID: sub.ID}
	result, err = s.LatestCheck(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "check-1", result.ID)

	_, err = s.LatestCheck(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSubscriptionNotFound)
}
