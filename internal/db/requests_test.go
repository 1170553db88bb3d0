package db

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/AlekSi/pointer"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	database, err := New("sqlite://" + filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	require.NoError(t, RunMigrations(database))

	return database
}

func pendingRequest(t *testing.T, repo *RequestRepository, userID int64) *Request {
	t.Helper()

	req := &Request{
		UserID:    userID,
		Username:  pointer.ToString("traveler"),
		FirstName: "Aruzhan",
		LastName:  "S",
	}
	responses := []Response{
		{QuestionID: "source", Answer: "Couchsurfing"},
		{QuestionID: "details", Answer: "couchsurfing.com/people/aruzhan"},
	}

	require.NoError(t, repo.CreateWithResponses(req, responses))
	return req
}

func TestCreateWithResponses(t *testing.T) {
	repo := NewRequestRepository(newTestDB(t).Conn)

	req := pendingRequest(t, repo, 100)
	require.NotZero(t, req.ID)
	require.Equal(t, StatusPending, req.Status)
	require.False(t, req.CreatedAt.IsZero())

	got, err := repo.GetByID(req.ID)
	require.NoError(t, err)
	require.Equal(t, int64(100), got.UserID)
	require.Equal(t, StatusPending, got.Status)
	require.Nil(t, got.ApprovedAt)
	require.Nil(t, got.AdminMessageID)

	responses, err := repo.GetResponses(req.ID)
	require.NoError(t, err)
	require.Len(t, responses, 2)
	require.Equal(t, "source", responses[0].QuestionID)
	require.Equal(t, "details", responses[1].QuestionID)
}

func TestCreateWithResponsesRejectsDuplicateQuestion(t *testing.T) {
	repo := NewRequestRepository(newTestDB(t).Conn)

	req := &Request{UserID: 100, FirstName: "A"}
	responses := []Response{
		{QuestionID: "source", Answer: "first"},
		{QuestionID: "source", Answer: "second"},
	}

	err := repo.CreateWithResponses(req, responses)
	require.Error(t, err)

	// The transaction rolled back, so no request is visible either.
	pending, err := repo.GetPendingByUserID(100)
	require.NoError(t, err)
	require.Nil(t, pending)
}

func TestGetByIDNotFound(t *testing.T) {
	repo := NewRequestRepository(newTestDB(t).Conn)

	_, err := repo.GetByID(12345)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetPendingByUserID(t *testing.T) {
	repo := NewRequestRepository(newTestDB(t).Conn)

	pending, err := repo.GetPendingByUserID(100)
	require.NoError(t, err)
	require.Nil(t, pending)

	req := pendingRequest(t, repo, 100)

	pending, err = repo.GetPendingByUserID(100)
	require.NoError(t, err)
	require.NotNil(t, pending)
	require.Equal(t, req.ID, pending.ID)

	require.NoError(t, repo.Resolve(req.ID, StatusDeclined))

	pending, err = repo.GetPendingByUserID(100)
	require.NoError(t, err)
	require.Nil(t, pending)
}

func TestResolveGuard(t *testing.T) {
	repo := NewRequestRepository(newTestDB(t).Conn)
	req := pendingRequest(t, repo, 100)

	require.NoError(t, repo.Resolve(req.ID, StatusApproved))

	got, err := repo.GetByID(req.ID)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, got.Status)
	require.NotNil(t, got.ApprovedAt)

	// Any further terminal transition is a no-op.
	require.ErrorIs(t, repo.Resolve(req.ID, StatusApproved), ErrAlreadyResolved)
	require.ErrorIs(t, repo.Resolve(req.ID, StatusDeclined), ErrAlreadyResolved)
	require.ErrorIs(t, repo.Resolve(req.ID, StatusExpired), ErrAlreadyResolved)

	got, err = repo.GetByID(req.ID)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, got.Status)
}

func TestResolveRejectsNonTerminalStatus(t *testing.T) {
	repo := NewRequestRepository(newTestDB(t).Conn)
	req := pendingRequest(t, repo, 100)

	require.Error(t, repo.Resolve(req.ID, StatusPending))
	require.Error(t, repo.Resolve(req.ID, "banana"))

	got, err := repo.GetByID(req.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, got.Status)
}

func TestResolveConcurrent(t *testing.T) {
	repo := NewRequestRepository(newTestDB(t).Conn)
	req := pendingRequest(t, repo, 100)

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for _, status := range []string{StatusApproved, StatusExpired} {
		wg.Add(1)
		go func(status string) {
			defer wg.Done()
			results <- repo.Resolve(req.ID, status)
		}(status)
	}
	wg.Wait()
	close(results)

	var won, lost int
	for err := range results {
		switch {
		case err == nil:
			won++
		default:
			require.ErrorIs(t, err, ErrAlreadyResolved)
			lost++
		}
	}

	require.Equal(t, 1, won)
	require.Equal(t, 1, lost)
}

func TestListPendingOlderThan(t *testing.T) {
	repo := NewRequestRepository(newTestDB(t).Conn)

	old := &Request{UserID: 1, FirstName: "Old", CreatedAt: time.Now().UTC().Add(-25 * time.Hour)}
	require.NoError(t, repo.CreateWithResponses(old, []Response{{QuestionID: "source", Answer: "x"}}))

	fresh := &Request{UserID: 2, FirstName: "Fresh", CreatedAt: time.Now().UTC().Add(-time.Hour)}
	require.NoError(t, repo.CreateWithResponses(fresh, []Response{{QuestionID: "source", Answer: "y"}}))

	stale, err := repo.ListPendingOlderThan(time.Now().Add(-24 * time.Hour))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	require.Equal(t, old.ID, stale[0].ID)

	// Resolved requests drop out of the scan.
	require.NoError(t, repo.Resolve(old.ID, StatusExpired))

	stale, err = repo.ListPendingOlderThan(time.Now().Add(-24 * time.Hour))
	require.NoError(t, err)
	require.Empty(t, stale)
}

func TestSetAdminMessageIDOnce(t *testing.T) {
	repo := NewRequestRepository(newTestDB(t).Conn)
	req := pendingRequest(t, repo, 100)

	require.NoError(t, repo.SetAdminMessageID(req.ID, 555))
	require.NoError(t, repo.SetAdminMessageID(req.ID, 777))

	got, err := repo.GetByID(req.ID)
	require.NoError(t, err)
	require.Equal(t, pointer.ToInt64(555), got.AdminMessageID)
}

func TestGetByAdminMessageID(t *testing.T) {
	repo := NewRequestRepository(newTestDB(t).Conn)
	req := pendingRequest(t, repo, 100)

	_, err := repo.GetByAdminMessageID(555)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.SetAdminMessageID(req.ID, 555))

	got, err := repo.GetByAdminMessageID(555)
	require.NoError(t, err)
	require.Equal(t, req.ID, got.ID)
}
