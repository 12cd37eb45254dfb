package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	domain "mingle/internal/domain/integration"
	"mingle/internal/domain/meeting"
	"mingle/internal/infrastructure/cache"
	"mingle/internal/infrastructure/vault"
	sharedConfig "mingle/internal/shared/config"
	apperrors "mingle/internal/shared/errors"
	"mingle/internal/shared/logger"
	"mingle/internal/sync/feed"
	"mingle/internal/sync/mirror"
	"mingle/internal/sync/reconcile"
)

const sampleFeed = `BEGIN:VCALENDAR
VERSION:2.0
BEGIN:VEVENT
UID:evt-a
SUMMARY:Meeting A
DTSTAMP:20260301T090000Z
DTSTART:20260301T150000Z
DTEND:20260301T153000Z
END:VEVENT
BEGIN:VEVENT
UID:evt-b
SUMMARY:Meeting B
DTSTAMP:20260301T090000Z
DTSTART:20260301T170000Z
DTEND:20260301T173000Z
END:VEVENT
END:VCALENDAR
`

// ---- in-memory fakes ----

type memoryAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
}

func newMemoryAccountRepo() *memoryAccountRepo {
	return &memoryAccountRepo{accounts: make(map[string]*domain.Account)}
}

func (r *memoryAccountRepo) key(uid, provider string) string { return uid + "/" + provider }

func (r *memoryAccountRepo) Create(a *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.accounts[r.key(a.UID, a.Provider)]; exists {
		return apperrors.NewConflictError("account already exists")
	}
	copied := *a
	r.accounts[r.key(a.UID, a.Provider)] = &copied
	return nil
}

func (r *memoryAccountRepo) GetByUIDAndProvider(uid, provider string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.accounts[r.key(uid, provider)]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, apperrors.NewNotFoundError("account not found")
}

func (r *memoryAccountRepo) ListByStatus(s domain.ConnectionStatus) ([]*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Account
	for _, a := range r.accounts {
		if a.ConnectionStatus == s {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memoryAccountRepo) Update(a *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *a
	r.accounts[r.key(a.UID, a.Provider)] = &copied
	return nil
}

func (r *memoryAccountRepo) Delete(uid, provider string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.accounts, r.key(uid, provider))
	return nil
}

type memoryMeetingRepo struct {
	mu       sync.Mutex
	meetings map[string]*meeting.Meeting
}

func newMemoryMeetingRepo() *memoryMeetingRepo {
	return &memoryMeetingRepo{meetings: make(map[string]*meeting.Meeting)}
}

func (r *memoryMeetingRepo) key(uid, provider, externalID string) string {
	return uid + "/" + provider + "/" + externalID
}

func (r *memoryMeetingRepo) Create(m *meeting.Meeting) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *m
	r.meetings[r.key(m.OwnerUID, m.Provider, m.ExternalID)] = &copied
	return nil
}

func (r *memoryMeetingRepo) Update(m *meeting.Meeting) error { return r.Create(m) }

func (r *memoryMeetingRepo) GetByExternalID(uid, provider, externalID string) (*meeting.Meeting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.meetings[r.key(uid, provider, externalID)]; ok {
		copied := *m
		return &copied, nil
	}
	return nil, nil
}

func (r *memoryMeetingRepo) ListByOwner(uid, provider string) ([]*meeting.Meeting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*meeting.Meeting
	for _, m := range r.meetings {
		if m.OwnerUID == uid && m.Provider == provider {
			copied := *m
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memoryMeetingRepo) ListActiveByOwner(uid, provider string) ([]*meeting.Meeting, error) {
	all, _ := r.ListByOwner(uid, provider)
	var out []*meeting.Meeting
	for _, m := range all {
		if m.Active() {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memoryMeetingRepo) CountActiveByOwner(uid, provider string) (int64, error) {
	active, _ := r.ListActiveByOwner(uid, provider)
	return int64(len(active)), nil
}

func (r *memoryMeetingRepo) CancelAllByOwner(uid, provider string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.meetings {
		if m.OwnerUID == uid && m.Provider == provider {
			m.Status = meeting.StatusCanceled
		}
	}
	return nil
}

func (r *memoryMeetingRepo) DeleteByOwner(uid, provider string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, m := range r.meetings {
		if m.OwnerUID == uid && m.Provider == provider {
			delete(r.meetings, k)
		}
	}
	return nil
}

// fakeRateLimiter allows the first call per key within a window.
type fakeRateLimiter struct {
	mu   sync.Mutex
	used map[string]bool
}

func newFakeRateLimiter() *fakeRateLimiter {
	return &fakeRateLimiter{used: make(map[string]bool)}
}

func (f *fakeRateLimiter) Allow(ctx context.Context, key string, window time.Duration, limit int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.used[key] {
		return false, nil
	}
	f.used[key] = true
	return true, nil
}

func (f *fakeRateLimiter) Remaining(ctx context.Context, key string, window time.Duration, limit int) (int64, error) {
	return 0, nil
}

func (f *fakeRateLimiter) Reset(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.used, key)
	return nil
}

type fakeCalendlyOAuth struct {
	token *oauth2.Token
}

func (f *fakeCalendlyOAuth) AuthURL(state, codeChallenge string) string {
	return "https://auth.example.com/authorize?state=" + state + "&code_challenge=" + codeChallenge
}

func (f *fakeCalendlyOAuth) Exchange(ctx context.Context, code, codeVerifier string) (*oauth2.Token, error) {
	return f.token, nil
}

func (f *fakeCalendlyOAuth) Revoke(ctx context.Context, token string) error { return nil }

type fakeGoogleOAuth struct {
	token *oauth2.Token
}

func (f *fakeGoogleOAuth) AuthURL(state string) string {
	return "https://accounts.example.com/authorize?state=" + state
}

func (f *fakeGoogleOAuth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return f.token, nil
}

type staticTokenProvider struct{}

func (staticTokenProvider) ValidToken(ctx context.Context, account *domain.Account) (string, error) {
	return "google-access-token", nil
}

// ---- harness ----

type harness struct {
	service  *Service
	accounts *memoryAccountRepo
	meetings *memoryMeetingRepo
	limiter  *fakeRateLimiter
	calendar *nullCalendar
}

type nullCalendar struct{}

func (nullCalendar) FindByExternalID(ctx context.Context, calendarID, externalID string) (string, error) {
	return "", nil
}
func (nullCalendar) Insert(ctx context.Context, calendarID string, ev *mirror.EventData) error {
	return nil
}
func (nullCalendar) Patch(ctx context.Context, calendarID, eventID string, ev *mirror.EventData) error {
	return nil
}
func (nullCalendar) Delete(ctx context.Context, calendarID, eventID string) error { return nil }

func newHarness(t *testing.T) *harness {
	t.Helper()

	v, err := vault.New("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)

	log := logger.NewLogger()
	h := &harness{
		accounts: newMemoryAccountRepo(),
		meetings: newMemoryMeetingRepo(),
		limiter:  newFakeRateLimiter(),
		calendar: &nullCalendar{},
	}

	futureExpiry := time.Now().UTC().Add(time.Hour)
	h.service = NewService(Deps{
		Accounts:      h.accounts,
		Meetings:      h.meetings,
		Vault:         v,
		Fetcher:       feed.NewFetcher(5*time.Second, log),
		Normalizer:    feed.NewNormalizer(log),
		Reconciler:    reconcile.NewReconciler(h.meetings, log),
		RateLimiter:   h.limiter,
		Sessions:      cache.NewOAuthSessionStore(cache.NewMemoryCache()),
		CalendlyOAuth: &fakeCalendlyOAuth{token: &oauth2.Token{AccessToken: "at", RefreshToken: "rt", Expiry: futureExpiry}},
		GoogleOAuth:   &fakeGoogleOAuth{token: &oauth2.Token{AccessToken: "gat", RefreshToken: "grt", Expiry: futureExpiry}},
		GoogleTokens:  staticTokenProvider{},
		CalendarFactory: func(ctx context.Context, accessToken string) (mirror.CalendarAPI, error) {
			return h.calendar, nil
		},
		SyncConfig: sharedConfig.SyncConfig{
			IntervalMinutes:        15,
			BatchSize:              25,
			RateLimitWindowMinutes: 10,
			FetchTimeoutSeconds:    5,
			ProbeTimeoutSeconds:    2,
			AccountTimeoutSeconds:  30,
		},
		Logger: log,
	})
	return h
}

// connectAccount seeds a connected calendly account pointing at feedURL,
// bypassing the https-only check that test servers cannot satisfy.
func (h *harness) connectAccount(t *testing.T, uid, feedURL string) {
	t.Helper()
	encrypted, err := h.service.vault.Encrypt(feedURL)
	require.NoError(t, err)
	require.NoError(t, h.accounts.Create(&domain.Account{
		UID:              uid,
		Provider:         "calendly",
		EncryptedFeedURL: encrypted,
		FeedURLHash:      vault.Hash(feedURL),
		ConnectionStatus: domain.StatusConnected,
	}))
}

func feedServer(t *testing.T, body string, requests *int32) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests != nil {
			mu.Lock()
			*requests++
			mu.Unlock()
		}
		w.Write([]byte(body))
	}))
}

// ---- tests ----

func TestConnect_RejectsInsecureScheme(t *testing.T) {
	h := newHarness(t)
	_, err := h.service.Connect(context.Background(), "user-1", "http://example.com/feed.ics")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidationError(err))
}

func TestConnect_RejectsNonFeedURL(t *testing.T) {
	h := newHarness(t)
	_, err := h.service.Connect(context.Background(), "user-1", "https://example.com/profile")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidationError(err))
}

func TestConnect_UnreachableFeedLeavesNoAccount(t *testing.T) {
	h := newHarness(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	// The probe runs against the URL as given, so swap in the test
	// server while keeping an https-looking path.
	feedURL := "https" + strings.TrimPrefix(srv.URL, "http") + "/feed.ics"
	_, err := h.service.Connect(context.Background(), "user-1", feedURL)
	require.Error(t, err)

	_, err = h.accounts.GetByUIDAndProvider("user-1", "calendly")
	assert.True(t, apperrors.IsNotFoundError(err), "no account may be persisted after a failed probe")
}

func TestSyncNow_SyncsAndCounts(t *testing.T) {
	h := newHarness(t)

	var requests int32
	srv := feedServer(t, sampleFeed, &requests)
	defer srv.Close()

	h.connectAccount(t, "user-1", srv.URL+"/feed.ics")

	result, err := h.service.SyncNow(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.EventCount)
	assert.Equal(t, int32(1), requests)

	account, err := h.accounts.GetByUIDAndProvider("user-1", "calendly")
	require.NoError(t, err)
	require.NotNil(t, account.LastSyncAt)
	assert.Empty(t, account.LastError)
}

func TestSyncNow_SecondRequestWithinWindowIsRateLimited(t *testing.T) {
	h := newHarness(t)

	var requests int32
	srv := feedServer(t, sampleFeed, &requests)
	defer srv.Close()

	h.connectAccount(t, "user-1", srv.URL+"/feed.ics")

	_, err := h.service.SyncNow(context.Background(), "user-1")
	require.NoError(t, err)

	_, err = h.service.SyncNow(context.Background(), "user-1")
	require.Error(t, err)
	assert.True(t, apperrors.IsRateLimitedError(err))
	assert.Equal(t, int32(1), requests, "the rejected request must not touch the feed")
}

func TestSyncNow_WithoutAccount(t *testing.T) {
	h := newHarness(t)
	_, err := h.service.SyncNow(context.Background(), "user-unknown")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFoundError(err))
}

func TestRunAccountSync_FetchFailureRecordsErrorWithoutMeetingWrites(t *testing.T) {
	h := newHarness(t)

	srv := feedServer(t, sampleFeed, nil)
	h.connectAccount(t, "user-1", srv.URL+"/feed.ics")
	require.NoError(t, h.service.RunAccountSync(context.Background(), "user-1", "calendly"))

	count, _ := h.meetings.CountActiveByOwner("user-1", "calendly")
	require.Equal(t, int64(2), count)

	// The feed host goes away; the next cycle must keep every meeting.
	srv.Close()
	err := h.service.RunAccountSync(context.Background(), "user-1", "calendly")
	require.Error(t, err)

	count, _ = h.meetings.CountActiveByOwner("user-1", "calendly")
	assert.Equal(t, int64(2), count, "a transient fetch failure must never cancel meetings")

	account, err := h.accounts.GetByUIDAndProvider("user-1", "calendly")
	require.NoError(t, err)
	assert.NotEmpty(t, account.LastError)
	assert.Equal(t, 1, account.ErrorCount)
	require.NotNil(t, account.BackoffUntil)
	assert.Equal(t, domain.StatusConnected, account.ConnectionStatus)
}

func TestDisconnect_PurgeDeletesMeetings(t *testing.T) {
	h := newHarness(t)

	srv := feedServer(t, sampleFeed, nil)
	defer srv.Close()
	h.connectAccount(t, "user-1", srv.URL+"/feed.ics")
	require.NoError(t, h.service.RunAccountSync(context.Background(), "user-1", "calendly"))

	require.NoError(t, h.service.Disconnect(context.Background(), "user-1", true))

	_, err := h.accounts.GetByUIDAndProvider("user-1", "calendly")
	assert.True(t, apperrors.IsNotFoundError(err))

	all, _ := h.meetings.ListByOwner("user-1", "calendly")
	assert.Empty(t, all)
}

func TestDisconnect_WithoutPurgeCancelsMeetings(t *testing.T) {
	h := newHarness(t)

	srv := feedServer(t, sampleFeed, nil)
	defer srv.Close()
	h.connectAccount(t, "user-1", srv.URL+"/feed.ics")
	require.NoError(t, h.service.RunAccountSync(context.Background(), "user-1", "calendly"))

	require.NoError(t, h.service.Disconnect(context.Background(), "user-1", false))

	all, _ := h.meetings.ListByOwner("user-1", "calendly")
	require.Len(t, all, 2)
	for _, m := range all {
		assert.Equal(t, meeting.StatusCanceled, m.Status)
	}
}

func TestStatus_Disconnected(t *testing.T) {
	h := newHarness(t)
	status, err := h.service.Status(context.Background(), "user-1")
	require.NoError(t, err)
	assert.False(t, status.Connected)
	assert.Equal(t, string(domain.StatusDisconnected), status.ConnectionStatus)
}

func TestToggleMirror_RequiresGoogleConnection(t *testing.T) {
	h := newHarness(t)

	srv := feedServer(t, sampleFeed, nil)
	defer srv.Close()
	h.connectAccount(t, "user-1", srv.URL+"/feed.ics")

	_, err := h.service.ToggleMirror(context.Background(), "user-1", true, "")
	require.Error(t, err)
	appErr := apperrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.ErrorTypeBadRequest, appErr.Type)
}

func TestToggleMirror_EnablesWithGoogleConnected(t *testing.T) {
	h := newHarness(t)

	srv := feedServer(t, sampleFeed, nil)
	defer srv.Close()
	h.connectAccount(t, "user-1", srv.URL+"/feed.ics")
	require.NoError(t, h.accounts.Create(&domain.Account{
		UID:              "user-1",
		Provider:         "google",
		ConnectionStatus: domain.StatusConnected,
	}))

	status, err := h.service.ToggleMirror(context.Background(), "user-1", true, "")
	require.NoError(t, err)
	assert.True(t, status.MirrorEnabled)
	assert.Equal(t, "primary", status.MirrorCalendarID)
	assert.True(t, status.GoogleConnected)
}

type listingCalendar struct {
	nullCalendar
	ids []string
}

func (c *listingCalendar) ListCalendars(ctx context.Context) ([]string, error) {
	return c.ids, nil
}

func TestToggleMirror_ValidatesCalendarTarget(t *testing.T) {
	h := newHarness(t)

	srv := feedServer(t, sampleFeed, nil)
	defer srv.Close()
	h.connectAccount(t, "user-1", srv.URL+"/feed.ics")
	require.NoError(t, h.accounts.Create(&domain.Account{
		UID:              "user-1",
		Provider:         "google",
		ConnectionStatus: domain.StatusConnected,
	}))

	lister := &listingCalendar{ids: []string{"primary", "team-cal"}}
	h.service.calendarFactory = func(ctx context.Context, accessToken string) (mirror.CalendarAPI, error) {
		return lister, nil
	}

	_, err := h.service.ToggleMirror(context.Background(), "user-1", true, "someone-elses-cal")
	require.Error(t, err)
	appErr := apperrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.ErrorTypeBadRequest, appErr.Type)

	status, err := h.service.ToggleMirror(context.Background(), "user-1", true, "team-cal")
	require.NoError(t, err)
	assert.True(t, status.MirrorEnabled)
	assert.Equal(t, "team-cal", status.MirrorCalendarID)
}

func TestCalendlyOAuthFlow_CallbackIsSingleUse(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	result, err := h.service.AuthorizeCalendly(ctx, "user-1")
	require.NoError(t, err)
	require.Contains(t, result.AuthorizationURL, "state=")

	state := stateFromURL(t, result.AuthorizationURL)
	require.NoError(t, h.service.HandleCalendlyCallback(ctx, state, "auth-code"))

	account, err := h.accounts.GetByUIDAndProvider("user-1", "calendly")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConnected, account.ConnectionStatus)
	assert.NotEmpty(t, account.EncryptedAccessToken)
	assert.NotEmpty(t, account.EncryptedRefreshToken)

	// Replaying the same callback is rejected.
	err = h.service.HandleCalendlyCallback(ctx, state, "auth-code")
	require.Error(t, err)
	appErr := apperrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.ErrorTypeUnauthorized, appErr.Type)
}

func TestGoogleOAuthFlow_CreatesAccount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	result, err := h.service.AuthorizeGoogle(ctx, "user-1")
	require.NoError(t, err)

	state := stateFromURL(t, result.AuthorizationURL)
	require.NoError(t, h.service.HandleGoogleCallback(ctx, state, "auth-code"))

	account, err := h.accounts.GetByUIDAndProvider("user-1", "google")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConnected, account.ConnectionStatus)
}

func TestListMeetings_SortedByStart(t *testing.T) {
	h := newHarness(t)

	srv := feedServer(t, sampleFeed, nil)
	defer srv.Close()
	h.connectAccount(t, "user-1", srv.URL+"/feed.ics")
	require.NoError(t, h.service.RunAccountSync(context.Background(), "user-1", "calendly"))

	views, err := h.service.ListMeetings(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "evt-a", views[0].ExternalID)
	assert.Equal(t, "evt-b", views[1].ExternalID)
	assert.True(t, views[0].Start.Before(views[1].Start))
}

func stateFromURL(t *testing.T, rawURL string) string {
	t.Helper()
	idx := strings.Index(rawURL, "state=")
	require.GreaterOrEqual(t, idx, 0)
	state := rawURL[idx+len("state="):]
	if amp := strings.Index(state, "&"); amp >= 0 {
		state = state[:amp]
	}
	return state
}
