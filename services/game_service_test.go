package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"speech-practice/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGameFixture(t *testing.T) (*GameService, *models.User, []*models.Speech) {
	t.Helper()
	db := newTestDB(t)
	svc := NewGameService(db)
	user := seedUser(t, db, "learner@example.com")
	speeches := []*models.Speech{
		seedSpeech(t, db, models.LevelA1, models.SpeechTypeQuestion),
		seedSpeech(t, db, models.LevelA1, models.SpeechTypeAnswer),
		seedSpeech(t, db, models.LevelA1, models.SpeechTypeAnswer),
	}
	return svc, user, speeches
}

func startSession(t *testing.T, svc *GameService, userID string) *models.GameSession {
	t.Helper()
	s, err := svc.CreateSession(context.Background(), userID, CreateSessionInput{
		Mode:           models.GameModeListenAndRepeat,
		Level:          models.LevelA1,
		SelectedTagIDs: []string{"t1", "t1", "t2"},
	})
	require.NoError(t, err)
	return s
}

func TestCreateSession(t *testing.T) {
	svc, user, _ := newGameFixture(t)

	s := startSession(t, svc, user.ID)

	assert.NotEmpty(t, s.ID)
	assert.Nil(t, s.CompletedAt)
	assert.Zero(t, s.TotalSpeeches)
	assert.Equal(t, []string{"t1", "t2"}, []string(s.SelectedTags))
}

func TestCreateSession_InvalidEnums(t *testing.T) {
	svc, user, _ := newGameFixture(t)

	_, err := svc.CreateSession(context.Background(), user.ID, CreateSessionInput{Mode: "shadowing", Level: "Z9"})
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))

	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Len(t, se.Issues, 2)
}

func TestCompleteSession_AggregatesAndOrdersResults(t *testing.T) {
	svc, user, sp := newGameFixture(t)
	ctx := context.Background()
	session := startSession(t, svc, user.ID)

	results := []ResultInput{
		{SpeechID: sp[2].ID, SequenceNumber: 3, UserResponse: models.UserResponseSkipped},
		{SpeechID: sp[0].ID, SequenceNumber: 1, UserResponse: models.UserResponseCorrect,
			PronunciationScore: ptr(80.0), AccuracyScore: ptr(90.0), FluencyScore: ptr(70.0),
			WordScores: []models.WordScore{{Word: "how", Score: 88}, {Word: "are", Score: 40, ErrorType: ptr("Mispronunciation")}}},
		{SpeechID: sp[1].ID, SequenceNumber: 2, UserResponse: models.UserResponseIncorrect,
			PronunciationScore: ptr(60.0), AccuracyScore: ptr(50.0)},
	}

	done, err := svc.CompleteSession(ctx, user.ID, session.ID, results)
	require.NoError(t, err)

	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, 3, done.TotalSpeeches)
	assert.Equal(t, 1, done.CorrectCount)
	assert.Equal(t, 1, done.IncorrectCount)
	assert.Equal(t, 1, done.SkippedCount)
	assert.Equal(t, done.TotalSpeeches, done.CorrectCount+done.IncorrectCount+done.SkippedCount)

	require.NotNil(t, done.AvgPronunciationScore)
	assert.InDelta(t, 70.0, *done.AvgPronunciationScore, 1e-9)
	require.NotNil(t, done.AvgAccuracyScore)
	assert.InDelta(t, 70.0, *done.AvgAccuracyScore, 1e-9)
	require.NotNil(t, done.AvgFluencyScore)
	assert.InDelta(t, 70.0, *done.AvgFluencyScore, 1e-9)

	require.Len(t, done.Results, 3)
	for i, r := range done.Results {
		assert.Equal(t, i+1, r.SequenceNumber)
	}
	assert.Equal(t, sp[0].ID, done.Results[0].SpeechID)
	require.Len(t, done.Results[0].WordScores, 2)
	assert.Equal(t, "Mispronunciation", *done.Results[0].WordScores[1].ErrorType)
}

func TestCompleteSession_NoScoresLeavesAveragesNil(t *testing.T) {
	svc, user, sp := newGameFixture(t)
	session := startSession(t, svc, user.ID)

	done, err := svc.CompleteSession(context.Background(), user.ID, session.ID, []ResultInput{
		{SpeechID: sp[0].ID, SequenceNumber: 1, UserResponse: models.UserResponseCorrect},
		{SpeechID: sp[1].ID, SequenceNumber: 2, UserResponse: models.UserResponseCorrect},
	})
	require.NoError(t, err)

	assert.Nil(t, done.AvgPronunciationScore)
	assert.Nil(t, done.AvgAccuracyScore)
	assert.Nil(t, done.AvgFluencyScore)
	assert.Equal(t, 2, done.CorrectCount)
}

func TestCompleteSession_SecondCallRejectedAndStateUnchanged(t *testing.T) {
	svc, user, sp := newGameFixture(t)
	ctx := context.Background()
	session := startSession(t, svc, user.ID)

	first, err := svc.CompleteSession(ctx, user.ID, session.ID, []ResultInput{
		{SpeechID: sp[0].ID, SequenceNumber: 1, UserResponse: models.UserResponseCorrect, PronunciationScore: ptr(95.0)},
	})
	require.NoError(t, err)

	_, err = svc.CompleteSession(ctx, user.ID, session.ID, []ResultInput{
		{SpeechID: sp[1].ID, SequenceNumber: 1, UserResponse: models.UserResponseIncorrect},
	})
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Contains(t, err.Error(), "already completed")

	after, err := svc.GetSession(ctx, user.ID, session.ID, true)
	require.NoError(t, err)
	assert.Equal(t, first.TotalSpeeches, after.TotalSpeeches)
	assert.Equal(t, first.CorrectCount, after.CorrectCount)
	assert.Equal(t, *first.AvgPronunciationScore, *after.AvgPronunciationScore)
	assert.True(t, first.CompletedAt.Equal(*after.CompletedAt))
	require.Len(t, after.Results, 1)
	assert.Equal(t, first.Results[0].ID, after.Results[0].ID)
}

func TestCompleteSession_UnknownSpeechRejectsWholeBatch(t *testing.T) {
	svc, user, sp := newGameFixture(t)
	ctx := context.Background()
	session := startSession(t, svc, user.ID)

	_, err := svc.CompleteSession(ctx, user.ID, session.ID, []ResultInput{
		{SpeechID: sp[0].ID, SequenceNumber: 1, UserResponse: models.UserResponseCorrect},
		{SpeechID: "ghost-1", SequenceNumber: 2, UserResponse: models.UserResponseCorrect},
		{SpeechID: "ghost-2", SequenceNumber: 3, UserResponse: models.UserResponseCorrect},
	})
	require.Error(t, err)

	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, KindValidation, se.Kind)
	assert.Equal(t, []string{"ghost-1", "ghost-2"}, se.Issues)

	var count int64
	require.NoError(t, svc.DB.Model(&models.GameResult{}).Where("session_id = ?", session.ID).Count(&count).Error)
	assert.Zero(t, count)

	still, err := svc.GetSession(ctx, user.ID, session.ID, false)
	require.NoError(t, err)
	assert.Nil(t, still.CompletedAt)
}

func TestCompleteSession_StructuralValidation(t *testing.T) {
	svc, user, sp := newGameFixture(t)
	session := startSession(t, svc, user.ID)

	_, err := svc.CompleteSession(context.Background(), user.ID, session.ID, []ResultInput{
		{SpeechID: sp[0].ID, SequenceNumber: 1, UserResponse: "maybe"},
		{SpeechID: sp[1].ID, SequenceNumber: 1, UserResponse: models.UserResponseCorrect, FluencyScore: ptr(120.0)},
		{SpeechID: sp[2].ID, SequenceNumber: 7, UserResponse: models.UserResponseSkipped,
			WordScores: []models.WordScore{{Word: "", Score: -1}}},
	})
	require.Error(t, err)

	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, KindValidation, se.Kind)
	assert.Len(t, se.Issues, 6)
}

func TestCompleteSession_OwnershipIsolation(t *testing.T) {
	svc, owner, sp := newGameFixture(t)
	ctx := context.Background()
	other := seedUser(t, svc.DB, "other@example.com")
	session := startSession(t, svc, owner.ID)

	_, err := svc.GetSession(ctx, other.ID, session.ID, true)
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = svc.GetSession(ctx, owner.ID, "does-not-exist", false)
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = svc.CompleteSession(ctx, other.ID, session.ID, []ResultInput{
		{SpeechID: sp[0].ID, SequenceNumber: 1, UserResponse: models.UserResponseCorrect},
	})
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestCompleteSession_ConcurrentCallsExactlyOneWins(t *testing.T) {
	svc, user, sp := newGameFixture(t)
	session := startSession(t, svc, user.ID)

	const workers = 4
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CompleteSession(context.Background(), user.ID, session.ID, []ResultInput{
				{SpeechID: sp[0].ID, SequenceNumber: 1, UserResponse: models.UserResponseCorrect},
			})
		}(i)
	}
	wg.Wait()

	var ok, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case KindOf(err) == KindValidation:
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, rejected)

	var count int64
	require.NoError(t, svc.DB.Model(&models.GameResult{}).Where("session_id = ?", session.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestListSessions(t *testing.T) {
	svc, user, _ := newGameFixture(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i, mode := range []models.GameMode{models.GameModeListenOnly, models.GameModeListenAndRepeat, models.GameModeListenOnly} {
		s := &models.GameSession{UserID: user.ID, Mode: mode, Level: models.LevelB1, CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		require.NoError(t, svc.DB.Create(s).Error)
	}
	other := seedUser(t, svc.DB, "x@example.com")
	require.NoError(t, svc.DB.Create(&models.GameSession{UserID: other.ID, Mode: models.GameModeListenOnly, Level: models.LevelB1}).Error)

	all, err := svc.ListSessions(ctx, user.ID, ListSessionsFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].CreatedAt.After(all[1].CreatedAt))
	assert.True(t, all[1].CreatedAt.After(all[2].CreatedAt))
	for _, s := range all {
		assert.Nil(t, s.Results)
	}

	listenOnly, err := svc.ListSessions(ctx, user.ID, ListSessionsFilter{Mode: models.GameModeListenOnly})
	require.NoError(t, err)
	assert.Len(t, listenOnly, 2)

	page, err := svc.ListSessions(ctx, user.ID, ListSessionsFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, all[1].ID, page[0].ID)

	_, err = svc.ListSessions(ctx, user.ID, ListSessionsFilter{Limit: 500})
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestAggregateResults_MeanOfPresentValuesOnly(t *testing.T) {
	st := aggregateResults([]ResultInput{
		{UserResponse: models.UserResponseCorrect, PronunciationScore: ptr(100.0)},
		{UserResponse: models.UserResponseCorrect},
		{UserResponse: models.UserResponseIncorrect, PronunciationScore: ptr(50.0)},
		{UserResponse: models.UserResponseSkipped, PronunciationScore: ptr(0.0)},
	})

	assert.Equal(t, 4, st.Total)
	require.NotNil(t, st.AvgPronunciation)
	assert.InDelta(t, 50.0, *st.AvgPronunciation, 1e-9)
	assert.Nil(t, st.AvgAccuracy)
}
