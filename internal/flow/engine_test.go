package flow

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/almatymeetups/join_request_bot/internal/db"
)

func newTestRepo(t *testing.T) *db.RequestRepository {
	t.Helper()

	database, err := db.New("sqlite://" + filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	require.NoError(t, db.RunMigrations(database))

	return db.NewRequestRepository(database.Conn)
}

func twoQuestions() []Question {
	return []Question{
		{ID: "source", Prompt: "How did you find us?", Required: true},
		{ID: "details", Prompt: "Tell us more.", Required: true},
	}
}

func applicant(userID int64) Applicant {
	return Applicant{UserID: userID, FirstName: "Timur"}
}

func TestFlowCompletion(t *testing.T) {
	repo := newTestRepo(t)
	engine := New(twoQuestions(), repo)

	first, err := engine.Start(applicant(7))
	require.NoError(t, err)
	require.Equal(t, "source", first.ID)
	require.True(t, engine.Active(7))

	step, err := engine.Answer(7, "Couchsurfing")
	require.NoError(t, err)
	require.NotNil(t, step.Next)
	require.Equal(t, "details", step.Next.ID)

	step, err = engine.Answer(7, "profile link")
	require.NoError(t, err)
	require.Nil(t, step.Next)
	require.NotNil(t, step.Completed)
	require.False(t, engine.Active(7))

	req, err := repo.GetByID(step.Completed.ID)
	require.NoError(t, err)
	require.Equal(t, db.StatusPending, req.Status)
	require.Equal(t, int64(7), req.UserID)

	responses, err := repo.GetResponses(req.ID)
	require.NoError(t, err)
	require.Len(t, responses, 2)
	require.Equal(t, "Couchsurfing", responses[0].Answer)
	require.Equal(t, "profile link", responses[1].Answer)
}

func TestAnswerWithoutFlow(t *testing.T) {
	engine := New(twoQuestions(), newTestRepo(t))

	_, err := engine.Answer(7, "hello")
	require.ErrorIs(t, err, ErrNoActiveFlow)
}

func TestEmptyAnswerLeavesCursorAlone(t *testing.T) {
	engine := New(twoQuestions(), newTestRepo(t))

	_, err := engine.Start(applicant(7))
	require.NoError(t, err)

	_, err = engine.Answer(7, "   \n\t ")
	require.ErrorIs(t, err, ErrEmptyAnswer)

	// Still on the first question.
	step, err := engine.Answer(7, "a friend")
	require.NoError(t, err)
	require.Equal(t, "details", step.Next.ID)
}

func TestSkipOptionalQuestion(t *testing.T) {
	repo := newTestRepo(t)
	questions := []Question{
		{ID: "source", Prompt: "How did you find us?", Required: true},
		{ID: "extra", Prompt: "Anything else?", Required: false},
	}
	engine := New(questions, repo)

	_, err := engine.Start(applicant(7))
	require.NoError(t, err)

	_, err = engine.Skip(7)
	require.ErrorIs(t, err, ErrAnswerRequired)

	_, err = engine.Answer(7, "Couchsurfing")
	require.NoError(t, err)

	step, err := engine.Skip(7)
	require.NoError(t, err)
	require.NotNil(t, step.Completed)

	responses, err := repo.GetResponses(step.Completed.ID)
	require.NoError(t, err)
	require.Len(t, responses, 1)
	require.Equal(t, "source", responses[0].QuestionID)
}

func TestStartRejectedWhilePending(t *testing.T) {
	repo := newTestRepo(t)
	engine := New(twoQuestions(), repo)

	_, err := engine.Start(applicant(7))
	require.NoError(t, err)
	_, err = engine.Answer(7, "one")
	require.NoError(t, err)
	step, err := engine.Answer(7, "two")
	require.NoError(t, err)
	require.NotNil(t, step.Completed)

	_, err = engine.Start(applicant(7))
	require.ErrorIs(t, err, ErrPendingRequest)

	// Once the request is resolved the user may apply again.
	require.NoError(t, repo.Resolve(step.Completed.ID, db.StatusDeclined))

	_, err = engine.Start(applicant(7))
	require.NoError(t, err)
}

func TestRestartDiscardsProgress(t *testing.T) {
	repo := newTestRepo(t)
	engine := New(twoQuestions(), repo)

	_, err := engine.Start(applicant(7))
	require.NoError(t, err)
	_, err = engine.Answer(7, "first try")
	require.NoError(t, err)

	first, err := engine.Start(applicant(7))
	require.NoError(t, err)
	require.Equal(t, "source", first.ID)

	_, err = engine.Answer(7, "second try")
	require.NoError(t, err)
	step, err := engine.Answer(7, "details")
	require.NoError(t, err)
	require.NotNil(t, step.Completed)

	responses, err := repo.GetResponses(step.Completed.ID)
	require.NoError(t, err)
	require.Len(t, responses, 2)
	require.Equal(t, "second try", responses[0].Answer)
}

func TestCancel(t *testing.T) {
	repo := newTestRepo(t)
	engine := New(twoQuestions(), repo)

	require.False(t, engine.Cancel(7))

	_, err := engine.Start(applicant(7))
	require.NoError(t, err)

	require.True(t, engine.Cancel(7))
	require.False(t, engine.Active(7))

	pending, err := repo.GetPendingByUserID(7)
	require.NoError(t, err)
	require.Nil(t, pending)
}

func TestConcurrentAnswersSingleRequest(t *testing.T) {
	repo := newTestRepo(t)
	engine := New(twoQuestions(), repo)

	_, err := engine.Start(applicant(7))
	require.NoError(t, err)

	var wg sync.WaitGroup
	var completed int64
	var mu sync.Mutex

	for _, text := range []string{"answer one", "answer two"} {
		wg.Add(1)
		go func(text string) {
			defer wg.Done()
			step, err := engine.Answer(7, text)
			if err != nil {
				return
			}
			if step.Completed != nil {
				mu.Lock()
				completed = step.Completed.ID
				mu.Unlock()
			}
		}(text)
	}
	wg.Wait()

	require.NotZero(t, completed, "one of the two answers must complete the flow")

	responses, err := repo.GetResponses(completed)
	require.NoError(t, err)
	require.Len(t, responses, 2)
}
