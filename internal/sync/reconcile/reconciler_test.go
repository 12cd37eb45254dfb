package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mingle/internal/domain/meeting"
	"mingle/internal/shared/logger"
)

type memoryMeetingRepo struct {
	meetings map[string]*meeting.Meeting
	writes   int
}

func newMemoryMeetingRepo() *memoryMeetingRepo {
	return &memoryMeetingRepo{meetings: make(map[string]*meeting.Meeting)}
}

func (r *memoryMeetingRepo) key(uid, provider, externalID string) string {
	return uid + "/" + provider + "/" + externalID
}

func (r *memoryMeetingRepo) Create(m *meeting.Meeting) error {
	copied := *m
	r.meetings[r.key(m.OwnerUID, m.Provider, m.ExternalID)] = &copied
	r.writes++
	return nil
}

func (r *memoryMeetingRepo) Update(m *meeting.Meeting) error {
	copied := *m
	r.meetings[r.key(m.OwnerUID, m.Provider, m.ExternalID)] = &copied
	r.writes++
	return nil
}

func (r *memoryMeetingRepo) GetByExternalID(uid, provider, externalID string) (*meeting.Meeting, error) {
	if m, ok := r.meetings[r.key(uid, provider, externalID)]; ok {
		copied := *m
		return &copied, nil
	}
	return nil, nil
}

func (r *memoryMeetingRepo) ListByOwner(uid, provider string) ([]*meeting.Meeting, error) {
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
	for _, m := range r.meetings {
		if m.OwnerUID == uid && m.Provider == provider && m.Status != meeting.StatusCanceled {
			m.Status = meeting.StatusCanceled
			r.writes++
		}
	}
	return nil
}

func (r *memoryMeetingRepo) DeleteByOwner(uid, provider string) error {
	for k, m := range r.meetings {
		if m.OwnerUID == uid && m.Provider == provider {
			delete(r.meetings, k)
		}
	}
	return nil
}

func fetchedMeeting(externalID, title string, start time.Time) *meeting.Meeting {
	return &meeting.Meeting{
		ExternalID: externalID,
		Title:      title,
		Start:      start,
		End:        start.Add(30 * time.Minute),
		Status:     meeting.StatusConfirmed,
	}
}

const (
	testUID      = "user-1"
	testProvider = "calendly"
)

func TestReconciler_CreatesNewMeetings(t *testing.T) {
	repo := newMemoryMeetingRepo()
	rec := NewReconciler(repo, logger.NewLogger())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	result, err := rec.Reconcile(testUID, testProvider, []*meeting.Meeting{
		fetchedMeeting("evt-a", "Meeting A", now.Add(time.Hour)),
		fetchedMeeting("evt-b", "Meeting B", now.Add(2*time.Hour)),
	}, now)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 0, result.Canceled)

	stored, err := repo.GetByExternalID(testUID, testProvider, "evt-a")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, testUID, stored.OwnerUID)
	assert.Equal(t, testProvider, stored.Provider)
	assert.Equal(t, now, stored.LastSeenAt)
}

func TestReconciler_IdenticalSetIsIdempotent(t *testing.T) {
	repo := newMemoryMeetingRepo()
	rec := NewReconciler(repo, logger.NewLogger())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	fetch := func() []*meeting.Meeting {
		return []*meeting.Meeting{
			fetchedMeeting("evt-a", "Meeting A", now.Add(time.Hour)),
			fetchedMeeting("evt-b", "Meeting B", now.Add(2*time.Hour)),
		}
	}

	_, err := rec.Reconcile(testUID, testProvider, fetch(), now)
	require.NoError(t, err)
	writesAfterFirst := repo.writes

	result, err := rec.Reconcile(testUID, testProvider, fetch(), now.Add(15*time.Minute))
	require.NoError(t, err)
	assert.False(t, result.Changed())
	assert.Equal(t, 2, result.Unchanged)
	assert.Equal(t, writesAfterFirst, repo.writes, "identical fetched set must produce zero writes")
}

func TestReconciler_AbsentMeetingsAreCanceled(t *testing.T) {
	repo := newMemoryMeetingRepo()
	rec := NewReconciler(repo, logger.NewLogger())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// First poll sees A and B, second poll sees A and C.
	_, err := rec.Reconcile(testUID, testProvider, []*meeting.Meeting{
		fetchedMeeting("evt-a", "Meeting A", now.Add(time.Hour)),
		fetchedMeeting("evt-b", "Meeting B", now.Add(2*time.Hour)),
	}, now)
	require.NoError(t, err)

	later := now.Add(15 * time.Minute)
	result, err := rec.Reconcile(testUID, testProvider, []*meeting.Meeting{
		fetchedMeeting("evt-a", "Meeting A", now.Add(time.Hour)),
		fetchedMeeting("evt-c", "Meeting C", now.Add(3*time.Hour)),
	}, later)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Canceled)
	assert.Equal(t, 1, result.Unchanged)

	b, err := repo.GetByExternalID(testUID, testProvider, "evt-b")
	require.NoError(t, err)
	assert.Equal(t, meeting.StatusCanceled, b.Status)
	assert.Equal(t, later, b.UpdatedAt)

	count, err := repo.CountActiveByOwner(testUID, testProvider)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestReconciler_AbsentDeclinedMeetingIsCanceled(t *testing.T) {
	repo := newMemoryMeetingRepo()
	rec := NewReconciler(repo, logger.NewLogger())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	declined := fetchedMeeting("evt-a", "Meeting A", now.Add(time.Hour))
	declined.Status = meeting.StatusDeclined
	_, err := rec.Reconcile(testUID, testProvider, []*meeting.Meeting{declined}, now)
	require.NoError(t, err)

	later := now.Add(15 * time.Minute)
	result, err := rec.Reconcile(testUID, testProvider, nil, later)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Canceled)

	stored, err := repo.GetByExternalID(testUID, testProvider, "evt-a")
	require.NoError(t, err)
	assert.Equal(t, meeting.StatusCanceled, stored.Status)
	assert.Equal(t, later, stored.UpdatedAt)
}

func TestReconciler_CanceledMeetingsAreNotReCanceled(t *testing.T) {
	repo := newMemoryMeetingRepo()
	rec := NewReconciler(repo, logger.NewLogger())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := rec.Reconcile(testUID, testProvider, []*meeting.Meeting{
		fetchedMeeting("evt-a", "Meeting A", now.Add(time.Hour)),
	}, now)
	require.NoError(t, err)

	_, err = rec.Reconcile(testUID, testProvider, nil, now.Add(15*time.Minute))
	require.NoError(t, err)
	writesAfterCancel := repo.writes

	result, err := rec.Reconcile(testUID, testProvider, nil, now.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Canceled)
	assert.Equal(t, writesAfterCancel, repo.writes)
}

func TestReconciler_MergePreservesLocalAnnotations(t *testing.T) {
	repo := newMemoryMeetingRepo()
	rec := NewReconciler(repo, logger.NewLogger())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := rec.Reconcile(testUID, testProvider, []*meeting.Meeting{
		fetchedMeeting("evt-a", "Meeting A", now.Add(time.Hour)),
	}, now)
	require.NoError(t, err)

	// The user annotates the meeting locally.
	stored, err := repo.GetByExternalID(testUID, testProvider, "evt-a")
	require.NoError(t, err)
	stored.Notes = "follow up about the demo"
	stored.MirrorRef = "gcal-ref-1"
	require.NoError(t, repo.Update(stored))

	// The feed later renames the meeting.
	renamed := fetchedMeeting("evt-a", "Meeting A (moved)", now.Add(time.Hour))
	result, err := rec.Reconcile(testUID, testProvider, []*meeting.Meeting{renamed}, now.Add(15*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)

	merged, err := repo.GetByExternalID(testUID, testProvider, "evt-a")
	require.NoError(t, err)
	assert.Equal(t, "Meeting A (moved)", merged.Title)
	assert.Equal(t, "follow up about the demo", merged.Notes)
	assert.Equal(t, "gcal-ref-1", merged.MirrorRef)
}

func TestReconciler_ReappearingMeetingIsReactivated(t *testing.T) {
	repo := newMemoryMeetingRepo()
	rec := NewReconciler(repo, logger.NewLogger())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := rec.Reconcile(testUID, testProvider, []*meeting.Meeting{
		fetchedMeeting("evt-a", "Meeting A", now.Add(time.Hour)),
	}, now)
	require.NoError(t, err)

	_, err = rec.Reconcile(testUID, testProvider, nil, now.Add(15*time.Minute))
	require.NoError(t, err)

	result, err := rec.Reconcile(testUID, testProvider, []*meeting.Meeting{
		fetchedMeeting("evt-a", "Meeting A", now.Add(time.Hour)),
	}, now.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)

	revived, err := repo.GetByExternalID(testUID, testProvider, "evt-a")
	require.NoError(t, err)
	assert.Equal(t, meeting.StatusConfirmed, revived.Status)
}
