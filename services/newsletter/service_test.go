package newsletter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/hapogroup/newsletter/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu            sync.Mutex
	subscriptions []SubscriptionNotice
	broadcasts    []BroadcastEmail
	failFor       map[string]bool
}

func (n *recordingNotifier) NotifySubscription(_ context.Context, notice SubscriptionNotice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subscriptions = append(n.subscriptions, notice)
}

func (n *recordingNotifier) NotifyBroadcast(_ context.Context, email BroadcastEmail) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failFor[email.To] {
		return errors.New("smtp unavailable")
	}
	n.broadcasts = append(n.broadcasts, email)
	return nil
}

func (n *recordingNotifier) recipients() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var to []string
	for _, b := range n.broadcasts {
		to = append(to, b.To)
	}
	return to
}

type sequenceTokens struct {
	mu sync.Mutex
	n  int
}

func (s *sequenceTokens) NewToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("T%d", s.n)
}

type fixture struct {
	service  *Service
	store    *GormStore
	notifier *recordingNotifier
}

func setupService(t *testing.T) *fixture {
	t.Helper()
	store := setupStore(t)
	notifier := &recordingNotifier{failFor: map[string]bool{}}
	cfg := testutils.GetTestConfig()
	return &fixture{
		service:  NewService(store, &sequenceTokens{}, notifier, &cfg.Newsletter, nil),
		store:    store,
		notifier: notifier,
	}
}

func (f *fixture) row(t *testing.T, email string) *Subscriber {
	t.Helper()
	sub, err := f.store.FindByEmail(context.Background(), email)
	require.NoError(t, err)
	require.NotNil(t, sub)
	return sub
}

func TestValidateEmail(t *testing.T) {
	assert.True(t, ValidateEmail(testutils.TestEmails.Valid))
	assert.True(t, ValidateEmail("first.last+tag@sub.example.co.za"))
	for _, email := range testutils.TestEmails.Invalid {
		assert.False(t, ValidateEmail(email), email)
	}
	assert.False(t, ValidateEmail("Name <a@x.com>"))
}

func TestService_Subscribe(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects invalid email before touching the store", func(t *testing.T) {
		f := setupService(t)

		_, err := f.service.Subscribe(ctx, SubscribeRequest{Email: "invalid-email"})

		testutils.AssertErrorType(t, ErrInvalidInput, err)
		assert.Equal(t, "Invalid email format", err.Error())
		stats, _ := f.store.Stats(ctx)
		assert.Zero(t, stats.Total)
		assert.Empty(t, f.notifier.subscriptions)
	})

	t.Run("new email creates a pending row", func(t *testing.T) {
		f := setupService(t)

		result, err := f.service.Subscribe(ctx, SubscribeRequest{Email: " a@x.com ", Origin: "https://example.org"})

		require.NoError(t, err)
		assert.Equal(t, MessageSubscribed, result.Message)
		assert.Equal(t, OutcomeCreated, result.Outcome)
		assert.Equal(t, "T1", result.VerificationToken)

		sub := f.row(t, "a@x.com")
		assert.Equal(t, StatePending, sub.State())
		assert.Equal(t, "T1", *sub.VerificationToken)

		require.Len(t, f.notifier.subscriptions, 1)
		notice := f.notifier.subscriptions[0]
		assert.Equal(t, "a@x.com", notice.Email)
		assert.Equal(t, "T1", notice.Token)
		assert.Equal(t, "https://example.org", notice.Origin)
		assert.False(t, notice.Reactivated)
	})

	t.Run("active email is left untouched", func(t *testing.T) {
		f := setupService(t)
		first, err := f.service.Subscribe(ctx, SubscribeRequest{Email: "a@x.com"})
		require.NoError(t, err)
		_, err = f.service.Verify(ctx, first.VerificationToken)
		require.NoError(t, err)
		before := f.row(t, "a@x.com")

		for range 2 {
			result, err := f.service.Subscribe(ctx, SubscribeRequest{Email: "a@x.com"})
			require.NoError(t, err)
			assert.Equal(t, MessageAlreadySubscribed, result.Message)
			assert.Equal(t, OutcomeAlreadySubscribed, result.Outcome)
			assert.Empty(t, result.VerificationToken)
		}

		after := f.row(t, "a@x.com")
		assert.Equal(t, before.LastUpdated.UnixNano(), after.LastUpdated.UnixNano())
		assert.Len(t, f.notifier.subscriptions, 1)
	})

	t.Run("pending email gets a fresh token", func(t *testing.T) {
		f := setupService(t)
		_, err := f.service.Subscribe(ctx, SubscribeRequest{Email: "a@x.com"})
		require.NoError(t, err)

		result, err := f.service.Subscribe(ctx, SubscribeRequest{Email: "a@x.com"})

		require.NoError(t, err)
		assert.Equal(t, OutcomeReactivated, result.Outcome)
		assert.Equal(t, "T2", result.VerificationToken)

		_, err = f.service.Verify(ctx, "T1")
		testutils.AssertErrorType(t, ErrNotFound, err)
	})

	t.Run("unsubscribed email is reactivated and must verify again", func(t *testing.T) {
		f := setupService(t)
		first, err := f.service.Subscribe(ctx, SubscribeRequest{Email: "a@x.com"})
		require.NoError(t, err)
		_, err = f.service.Verify(ctx, first.VerificationToken)
		require.NoError(t, err)
		_, err = f.service.Unsubscribe(ctx, "a@x.com", "")
		require.NoError(t, err)

		result, err := f.service.Subscribe(ctx, SubscribeRequest{Email: "a@x.com"})

		require.NoError(t, err)
		assert.Equal(t, OutcomeReactivated, result.Outcome)
		assert.NotEqual(t, first.VerificationToken, result.VerificationToken)

		sub := f.row(t, "a@x.com")
		assert.True(t, sub.SubscriptionStatus)
		assert.False(t, sub.Verified)
		require.Len(t, f.notifier.subscriptions, 2)
		assert.True(t, f.notifier.subscriptions[1].Reactivated)
	})

	t.Run("lost insert race falls back to the existing row", func(t *testing.T) {
		f := setupService(t)
		racing := &racingStore{GormStore: f.store}
		service := NewService(racing, &sequenceTokens{n: 10}, f.notifier, f.service.config, nil)
		require.NoError(t, f.store.Create(ctx, &Subscriber{Email: "a@x.com", SubscriptionStatus: true, VerificationToken: strPtr("winner")}))

		result, err := service.Subscribe(ctx, SubscribeRequest{Email: "a@x.com"})

		require.NoError(t, err)
		assert.Equal(t, OutcomeReactivated, result.Outcome)
		assert.Equal(t, "T11", *f.row(t, "a@x.com").VerificationToken)
	})

	t.Run("store failure surfaces", func(t *testing.T) {
		f := setupService(t)
		service := NewService(brokenStore{f.store}, &sequenceTokens{}, f.notifier, f.service.config, nil)

		_, err := service.Subscribe(ctx, SubscribeRequest{Email: "a@x.com"})

		require.Error(t, err)
		assert.ErrorIs(t, err, errStoreDown)
		assert.NotErrorIs(t, err, ErrInvalidInput)
	})
}

func TestService_Verify(t *testing.T) {
	ctx := context.Background()

	t.Run("missing token", func(t *testing.T) {
		f := setupService(t)

		_, err := f.service.Verify(ctx, "  ")

		testutils.AssertErrorType(t, ErrInvalidInput, err)
		assert.Equal(t, "Verification token required", err.Error())
	})

	t.Run("unknown token", func(t *testing.T) {
		f := setupService(t)

		_, err := f.service.Verify(ctx, "wrong-token")

		testutils.AssertErrorType(t, ErrNotFound, err)
		assert.Equal(t, "Invalid or expired verification token", err.Error())
	})

	t.Run("verifies and clears the token", func(t *testing.T) {
		f := setupService(t)
		sub, err := f.service.Subscribe(ctx, SubscribeRequest{Email: "a@x.com"})
		require.NoError(t, err)

		result, err := f.service.Verify(ctx, sub.VerificationToken)

		require.NoError(t, err)
		assert.Equal(t, MessageVerified, result.Message)
		assert.Equal(t, "a@x.com", result.Email)
		row := f.row(t, "a@x.com")
		assert.Equal(t, StateActive, row.State())
		assert.Nil(t, row.VerificationToken)

		_, err = f.service.Verify(ctx, sub.VerificationToken)
		testutils.AssertErrorType(t, ErrNotFound, err)
	})

	t.Run("verified row reached by a live token reports already verified", func(t *testing.T) {
		f := setupService(t)
		sub, err := f.service.Subscribe(ctx, SubscribeRequest{Email: "a@x.com"})
		require.NoError(t, err)
		_, err = f.service.Verify(ctx, sub.VerificationToken)
		require.NoError(t, err)
		_, err = f.service.Broadcast(ctx, BroadcastRequest{Subject: "Hi", Content: "News"})
		require.NoError(t, err)
		unsubscribeToken := *f.row(t, "a@x.com").VerificationToken
		before := f.row(t, "a@x.com")

		result, err := f.service.Verify(ctx, unsubscribeToken)

		require.NoError(t, err)
		assert.Equal(t, MessageAlreadyVerified, result.Message)
		assert.Equal(t, "a@x.com", result.Email)
		assert.Equal(t, before.LastUpdated.UnixNano(), f.row(t, "a@x.com").LastUpdated.UnixNano())
	})

	t.Run("token replaced between read and update", func(t *testing.T) {
		f := setupService(t)
		sub, err := f.service.Subscribe(ctx, SubscribeRequest{Email: "a@x.com"})
		require.NoError(t, err)
		swapping := &swappingStore{GormStore: f.store}
		service := NewService(swapping, &sequenceTokens{}, f.notifier, f.service.config, nil)

		_, err = service.Verify(ctx, sub.VerificationToken)

		testutils.AssertErrorType(t, ErrNotFound, err)
		assert.False(t, f.row(t, "a@x.com").Verified)
	})
}

func TestService_Unsubscribe(t *testing.T) {
	ctx := context.Background()

	t.Run("requires email or token", func(t *testing.T) {
		f := setupService(t)

		_, err := f.service.Unsubscribe(ctx, "", " ")

		testutils.AssertErrorType(t, ErrInvalidInput, err)
		assert.Equal(t, "Email or token required", err.Error())
	})

	t.Run("unknown subscriber", func(t *testing.T) {
		f := setupService(t)

		_, err := f.service.Unsubscribe(ctx, "nobody@x.com", "")
		testutils.AssertErrorType(t, ErrNotFound, err)

		_, err = f.service.Unsubscribe(ctx, "", "nope")
		testutils.AssertErrorType(t, ErrNotFound, err)
	})

	t.Run("by email and by token reach the same state", func(t *testing.T) {
		byEmail := setupService(t)
		byToken := setupService(t)
		for _, f := range []*fixture{byEmail, byToken} {
			_, err := f.service.Subscribe(ctx, SubscribeRequest{Email: "a@x.com"})
			require.NoError(t, err)
		}

		r1, err := byEmail.service.Unsubscribe(ctx, "a@x.com", "")
		require.NoError(t, err)
		r2, err := byToken.service.Unsubscribe(ctx, "", "T1")
		require.NoError(t, err)

		assert.Equal(t, r1, r2)
		assert.Equal(t, MessageUnsubscribed, r1.Message)
		a, b := byEmail.row(t, "a@x.com"), byToken.row(t, "a@x.com")
		assert.False(t, a.SubscriptionStatus)
		assert.Equal(t, a.SubscriptionStatus, b.SubscriptionStatus)
		assert.Equal(t, a.Verified, b.Verified)
	})

	t.Run("token takes precedence over email", func(t *testing.T) {
		f := setupService(t)
		_, err := f.service.Subscribe(ctx, SubscribeRequest{Email: "a@x.com"})
		require.NoError(t, err)
		_, err = f.service.Subscribe(ctx, SubscribeRequest{Email: "b@x.com"})
		require.NoError(t, err)

		result, err := f.service.Unsubscribe(ctx, "a@x.com", "T2")

		require.NoError(t, err)
		assert.Equal(t, "b@x.com", result.Email)
		assert.True(t, f.row(t, "a@x.com").SubscriptionStatus)
	})

	t.Run("keeps verification and is idempotent", func(t *testing.T) {
		f := setupService(t)
		sub, err := f.service.Subscribe(ctx, SubscribeRequest{Email: "a@x.com"})
		require.NoError(t, err)
		_, err = f.service.Verify(ctx, sub.VerificationToken)
		require.NoError(t, err)

		for range 2 {
			result, err := f.service.Unsubscribe(ctx, "a@x.com", "")
			require.NoError(t, err)
			assert.Equal(t, MessageUnsubscribed, result.Message)
		}

		row := f.row(t, "a@x.com")
		assert.Equal(t, StateUnsubscribed, row.State())
		assert.True(t, row.Verified)
	})
}

func TestService_ConcreteScenario(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)

	subscribed, err := f.service.Subscribe(ctx, SubscribeRequest{Email: "a@x.com"})
	require.NoError(t, err)
	t1 := subscribed.VerificationToken
	assert.False(t, f.row(t, "a@x.com").Verified)

	_, err = f.service.Verify(ctx, "wrong-token")
	testutils.AssertErrorType(t, ErrNotFound, err)

	verified, err := f.service.Verify(ctx, t1)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", verified.Email)
	assert.True(t, f.row(t, "a@x.com").Verified)

	unsubscribed, err := f.service.Unsubscribe(ctx, "a@x.com", "")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", unsubscribed.Email)
	assert.False(t, f.row(t, "a@x.com").SubscriptionStatus)

	broadcast, err := f.service.Broadcast(ctx, BroadcastRequest{Subject: "Launch", Content: "Hello"})
	require.NoError(t, err)
	assert.NotContains(t, f.notifier.recipients(), "a@x.com")
	assert.Equal(t, MessageNoSubscribers, broadcast.Message)

	again, err := f.service.Subscribe(ctx, SubscribeRequest{Email: "a@x.com"})
	require.NoError(t, err)
	assert.NotEqual(t, t1, again.VerificationToken)
	row := f.row(t, "a@x.com")
	assert.True(t, row.SubscriptionStatus)
	assert.False(t, row.Verified)
}

func TestService_ListAndStats(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)
	_, err := f.service.Subscribe(ctx, SubscribeRequest{Email: "a@x.com"})
	require.NoError(t, err)
	_, err = f.service.Subscribe(ctx, SubscribeRequest{Email: "b@x.com"})
	require.NoError(t, err)
	_, err = f.service.Verify(ctx, "T1")
	require.NoError(t, err)

	subs, err := f.service.List(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "b@x.com", subs[0].Email)

	stats, err := f.service.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Stats{Total: 2, Active: 1, Pending: 1}, stats)

	broken := NewService(brokenStore{f.store}, &sequenceTokens{}, f.notifier, f.service.config, nil)
	_, err = broken.List(ctx)
	assert.ErrorIs(t, err, errStoreDown)
	_, err = broken.Stats(ctx)
	assert.ErrorIs(t, err, errStoreDown)
}

var errStoreDown = errors.New("database is down")

// brokenStore fails every read.
type brokenStore struct {
	*GormStore
}

func (brokenStore) FindByEmail(context.Context, string) (*Subscriber, error) { return nil, errStoreDown }
func (brokenStore) FindByToken(context.Context, string) (*Subscriber, error) { return nil, errStoreDown }
func (brokenStore) ListActive(context.Context) ([]Subscriber, error)         { return nil, errStoreDown }
func (brokenStore) List(context.Context) ([]Subscriber, error)               { return nil, errStoreDown }
func (brokenStore) Stats(context.Context) (*Stats, error)                    { return nil, errStoreDown }

// racingStore hides the existing row on the first lookup, as if it was
// inserted by another request right after.
type racingStore struct {
	*GormStore
	looked bool
}

func (s *racingStore) FindByEmail(ctx context.Context, email string) (*Subscriber, error) {
	if !s.looked {
		s.looked = true
		return nil, nil
	}
	return s.GormStore.FindByEmail(ctx, email)
}

// swappingStore replaces the token just before the verify update lands.
type swappingStore struct {
	*GormStore
}

func (s *swappingStore) MarkVerified(ctx context.Context, id, token string) (bool, error) {
	if err := s.GormStore.Reactivate(ctx, id, "replaced"); err != nil {
		return false, err
	}
	return s.GormStore.MarkVerified(ctx, id, token)
}
