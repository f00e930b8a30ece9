package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	sessionserrors "gymgate/internal/sessions/errors"
	"gymgate/internal/sessions/validator"
	"gymgate/pkg/config"
	mongotx "gymgate/pkg/db/mongo"
	apperrors "gymgate/pkg/errors"
	"gymgate/pkg/kafka"
	"gymgate/pkg/logger"
	"gymgate/pkg/model"
)

const (
	testTrainerID = "a1b2c3d4-e5f6-4a7b-8c9d-0e1f2a3b4c5d"
	testZoneID    = "b2c3d4e5-f6a7-4b8c-9d0e-1f2a3b4c5d6e"
	testSessionID = "c3d4e5f6-a7b8-4c9d-8e1f-2a3b4c5d6e7f"
	testClientID  = "d4e5f6a7-b8c9-4d0e-9f2a-3b4c5d6e7f8a"
	testClientID2 = "e5f6a7b8-c9d0-4e1f-8a3b-4c5d6e7f8a9b"
)

func duplicateKeyErr() error {
	return mongo.WriteException{
		WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "duplicate key"}},
	}
}

type mockSessionRepo struct {
	createFn          func(ctx context.Context, session *model.Session) error
	findByIDFn        func(ctx context.Context, id string) (*model.Session, error)
	findConflictingFn func(ctx context.Context, trainerID, zoneID string, date, start, end time.Time, excludeID string) ([]*model.Session, error)
	markCancelledFn   func(ctx context.Context, id, reason string, at time.Time) error
	markCompletedFn   func(ctx context.Context, id string, at time.Time) error
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	return m.createFn(ctx, session)
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	return m.findByIDFn(ctx, id)
}

func (m *mockSessionRepo) FindConflicting(ctx context.Context, trainerID, zoneID string, date, start, end time.Time, excludeID string) ([]*model.Session, error) {
	return m.findConflictingFn(ctx, trainerID, zoneID, date, start, end, excludeID)
}

func (m *mockSessionRepo) FindByTrainer(ctx context.Context, trainerID string, limit int, offset int64) ([]*model.Session, error) {
	return nil, nil
}

func (m *mockSessionRepo) FindByTrainerAndDate(ctx context.Context, trainerID string, date time.Time) ([]*model.Session, error) {
	return nil, nil
}

func (m *mockSessionRepo) FindByZone(ctx context.Context, zoneID string, limit int, offset int64) ([]*model.Session, error) {
	return nil, nil
}

func (m *mockSessionRepo) FindByDate(ctx context.Context, date time.Time) ([]*model.Session, error) {
	return nil, nil
}

func (m *mockSessionRepo) MarkCancelled(ctx context.Context, id, reason string, at time.Time) error {
	return m.markCancelledFn(ctx, id, reason, at)
}

func (m *mockSessionRepo) MarkCompleted(ctx context.Context, id string, at time.Time) error {
	return m.markCompletedFn(ctx, id, at)
}

func (m *mockSessionRepo) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}

type mockParticipantRepo struct {
	addFn            func(ctx context.Context, participant *model.SessionParticipant) error
	countBySessionFn func(ctx context.Context, sessionID string) (int64, error)
	findBySessionFn  func(ctx context.Context, sessionID string) ([]*model.SessionParticipant, error)
}

func (m *mockParticipantRepo) Add(ctx context.Context, participant *model.SessionParticipant) error {
	return m.addFn(ctx, participant)
}

func (m *mockParticipantRepo) CountBySession(ctx context.Context, sessionID string) (int64, error) {
	return m.countBySessionFn(ctx, sessionID)
}

func (m *mockParticipantRepo) FindBySession(ctx context.Context, sessionID string) ([]*model.SessionParticipant, error) {
	return m.findBySessionFn(ctx, sessionID)
}

type mockLockRepo struct {
	acquireFn func(ctx context.Context, lockID string, ttl time.Duration) (*model.SessionLock, error)
	releaseFn func(ctx context.Context, lockID string) error
}

func (m *mockLockRepo) Acquire(ctx context.Context, lockID string, ttl time.Duration) (*model.SessionLock, error) {
	if m.acquireFn != nil {
		return m.acquireFn(ctx, lockID, ttl)
	}
	return &model.SessionLock{ID: lockID}, nil
}

func (m *mockLockRepo) Release(ctx context.Context, lockID string) error {
	if m.releaseFn != nil {
		return m.releaseFn(ctx, lockID)
	}
	return nil
}

type mockZones struct {
	getByIDFn   func(ctx context.Context, id string) (*model.Zone, error)
	getActiveFn func(ctx context.Context, id string) (*model.Zone, error)
}

func (m *mockZones) GetByID(ctx context.Context, id string) (*model.Zone, error) {
	return m.getByIDFn(ctx, id)
}

func (m *mockZones) GetActive(ctx context.Context, id string) (*model.Zone, error) {
	return m.getActiveFn(ctx, id)
}

type mockPasses struct {
	tryConsumeFn func(ctx context.Context, clientID, zoneID string) (*model.ConsumeResult, error)
}

func (m *mockPasses) TryConsume(ctx context.Context, clientID, zoneID string) (*model.ConsumeResult, error) {
	return m.tryConsumeFn(ctx, clientID, zoneID)
}

type mockVisits struct {
	findSessionVisitFn func(ctx context.Context, sessionID, clientID string) (*model.Visit, error)
	createFn           func(ctx context.Context, visit *model.Visit) error
}

func (m *mockVisits) FindSessionVisit(ctx context.Context, sessionID, clientID string) (*model.Visit, error) {
	return m.findSessionVisitFn(ctx, sessionID, clientID)
}

func (m *mockVisits) Create(ctx context.Context, visit *model.Visit) error {
	return m.createFn(ctx, visit)
}

type mockPublisher struct {
	published []kafka.Message
	err       error
}

func (m *mockPublisher) Publish(ctx context.Context, msg kafka.Message) error {
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, msg)
	return nil
}

type testDeps struct {
	repo         *mockSessionRepo
	participants *mockParticipantRepo
	locks        *mockLockRepo
	zones        *mockZones
	passes       *mockPasses
	visits       *mockVisits
	events       *mockPublisher
}

func newTestService(d testDeps) SessionService {
	cfg := &config.Config{
		Log:            logger.New(logger.Config{Level: logger.LevelError, Format: logger.FormatText, Service: "test"}),
		SessionLockTTL: 30 * time.Second,
	}
	if d.locks == nil {
		d.locks = &mockLockRepo{}
	}
	if d.events == nil {
		d.events = &mockPublisher{}
	}
	return NewSessionService(
		d.repo, d.participants, d.locks, d.zones, d.passes, d.visits, d.events,
		validator.NewSessionValidator(cfg.Log), cfg,
	)
}

func futureSession() *model.Session {
	start := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Hour)
	return &model.Session{
		TrainerID: testTrainerID,
		ZoneID:    testZoneID,
		StartTime: start,
		EndTime:   start.Add(time.Hour),
		Capacity:  10,
	}
}

func TestCreate_ConflictCarriesBlockingID(t *testing.T) {
	blocking := futureSession()
	blocking.ID = testSessionID

	deps := testDeps{
		repo: &mockSessionRepo{
			findConflictingFn: func(ctx context.Context, trainerID, zoneID string, date, start, end time.Time, excludeID string) ([]*model.Session, error) {
				return []*model.Session{blocking}, nil
			},
		},
		zones: &mockZones{
			getActiveFn: func(ctx context.Context, id string) (*model.Zone, error) {
				return &model.Zone{ID: id, IsActive: true}, nil
			},
		},
	}
	svc := newTestService(deps)

	err := svc.Create(context.Background(), futureSession())
	if !apperrors.HasCode(err, apperrors.CodeScheduleConflict) {
		t.Fatalf("expected schedule conflict, got %v", err)
	}

	appErr := apperrors.AsAppError(err)
	if appErr.Details["blocking_id"] != testSessionID {
		t.Errorf("expected blocking_id %s, got %v", testSessionID, appErr.Details["blocking_id"])
	}
}

func TestCreate_NormalizesDateFromStartTime(t *testing.T) {
	var created *model.Session
	deps := testDeps{
		repo: &mockSessionRepo{
			findConflictingFn: func(ctx context.Context, trainerID, zoneID string, date, start, end time.Time, excludeID string) ([]*model.Session, error) {
				return nil, nil
			},
			createFn: func(ctx context.Context, session *model.Session) error {
				created = session
				return nil
			},
		},
		zones: &mockZones{
			getActiveFn: func(ctx context.Context, id string) (*model.Zone, error) {
				return &model.Zone{ID: id, IsActive: true}, nil
			},
		},
	}
	svc := newTestService(deps)

	session := futureSession()
	if err := svc.Create(context.Background(), session); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if created == nil {
		t.Fatal("expected session to be persisted")
	}

	wantDate := created.StartTime.UTC().Truncate(24 * time.Hour)
	if !created.Date.Equal(wantDate) {
		t.Errorf("expected date %v, got %v", wantDate, created.Date)
	}
	if created.Date.Hour() != 0 || created.Date.Minute() != 0 {
		t.Errorf("expected midnight date, got %v", created.Date)
	}
}

func TestCreate_RejectsInactiveZone(t *testing.T) {
	deps := testDeps{
		repo: &mockSessionRepo{},
		zones: &mockZones{
			getActiveFn: func(ctx context.Context, id string) (*model.Zone, error) {
				return nil, apperrors.InvalidInput("Zone " + id + " is not active")
			},
		},
	}
	svc := newTestService(deps)

	err := svc.Create(context.Background(), futureSession())
	if !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Fatalf("expected invalid input for inactive zone, got %v", err)
	}
}

func TestSignUp_CapacityExceeded(t *testing.T) {
	session := futureSession()
	session.ID = testSessionID
	session.Capacity = 2

	deps := testDeps{
		repo: &mockSessionRepo{
			findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
				return session, nil
			},
		},
		participants: &mockParticipantRepo{
			countBySessionFn: func(ctx context.Context, sessionID string) (int64, error) {
				return 2, nil
			},
		},
	}
	svc := newTestService(deps)

	err := svc.SignUp(context.Background(), testSessionID, testClientID)
	if !apperrors.HasCode(err, apperrors.CodeCapacityExceeded) {
		t.Fatalf("expected capacity exceeded, got %v", err)
	}
}

func TestSignUp_FallsBackToZoneCapacity(t *testing.T) {
	session := futureSession()
	session.ID = testSessionID
	session.Capacity = 0

	deps := testDeps{
		repo: &mockSessionRepo{
			findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
				return session, nil
			},
		},
		participants: &mockParticipantRepo{
			countBySessionFn: func(ctx context.Context, sessionID string) (int64, error) {
				return 1, nil
			},
		},
		zones: &mockZones{
			getByIDFn: func(ctx context.Context, id string) (*model.Zone, error) {
				return &model.Zone{ID: id, Capacity: 1, IsActive: true}, nil
			},
		},
	}
	svc := newTestService(deps)

	err := svc.SignUp(context.Background(), testSessionID, testClientID)
	if !apperrors.HasCode(err, apperrors.CodeCapacityExceeded) {
		t.Fatalf("expected zone capacity to gate signup, got %v", err)
	}
}

func TestSignUp_UnlimitedWhenNoCapacityAnywhere(t *testing.T) {
	session := futureSession()
	session.ID = testSessionID
	session.Capacity = 0

	added := false
	deps := testDeps{
		repo: &mockSessionRepo{
			findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
				return session, nil
			},
		},
		participants: &mockParticipantRepo{
			addFn: func(ctx context.Context, participant *model.SessionParticipant) error {
				added = true
				return nil
			},
		},
		zones: &mockZones{
			getByIDFn: func(ctx context.Context, id string) (*model.Zone, error) {
				return &model.Zone{ID: id, Capacity: 0, IsActive: true}, nil
			},
		},
	}
	svc := newTestService(deps)

	if err := svc.SignUp(context.Background(), testSessionID, testClientID); err != nil {
		t.Fatalf("SignUp returned error: %v", err)
	}
	if !added {
		t.Error("expected participant to be added without a capacity check")
	}
}

func TestSignUp_DuplicateSignupRejected(t *testing.T) {
	session := futureSession()
	session.ID = testSessionID

	deps := testDeps{
		repo: &mockSessionRepo{
			findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
				return session, nil
			},
		},
		participants: &mockParticipantRepo{
			countBySessionFn: func(ctx context.Context, sessionID string) (int64, error) {
				return 1, nil
			},
			addFn: func(ctx context.Context, participant *model.SessionParticipant) error {
				return duplicateKeyErr()
			},
		},
	}
	svc := newTestService(deps)

	err := svc.SignUp(context.Background(), testSessionID, testClientID)
	if !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Fatalf("expected invalid input for duplicate signup, got %v", err)
	}
}

func TestSignUp_CancelledSessionRejected(t *testing.T) {
	session := futureSession()
	session.ID = testSessionID
	session.IsCancelled = true

	deps := testDeps{
		repo: &mockSessionRepo{
			findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
				return session, nil
			},
		},
	}
	svc := newTestService(deps)

	err := svc.SignUp(context.Background(), testSessionID, testClientID)
	if !apperrors.HasCode(err, apperrors.CodeAlreadyCancelled) {
		t.Fatalf("expected already cancelled, got %v", err)
	}
}

func TestSignUp_LockHeldByAnotherRequest(t *testing.T) {
	session := futureSession()
	session.ID = testSessionID

	deps := testDeps{
		repo: &mockSessionRepo{
			findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
				return session, nil
			},
		},
		locks: &mockLockRepo{
			acquireFn: func(ctx context.Context, lockID string, ttl time.Duration) (*model.SessionLock, error) {
				return nil, duplicateKeyErr()
			},
		},
	}
	svc := newTestService(deps)

	err := svc.SignUp(context.Background(), testSessionID, testClientID)
	if !apperrors.HasCode(err, apperrors.CodeConflict) {
		t.Fatalf("expected conflict while lock is held, got %v", err)
	}
}

func TestCancel_AlreadyCancelled(t *testing.T) {
	session := futureSession()
	session.ID = testSessionID
	session.IsCancelled = true

	deps := testDeps{
		repo: &mockSessionRepo{
			findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
				return session, nil
			},
		},
	}
	svc := newTestService(deps)

	err := svc.Cancel(context.Background(), testSessionID, "rain")
	if !apperrors.HasCode(err, apperrors.CodeAlreadyCancelled) {
		t.Fatalf("expected already cancelled, got %v", err)
	}
}

func TestCancel_CompletedSessionRejected(t *testing.T) {
	session := futureSession()
	session.ID = testSessionID
	session.IsCompleted = true

	deps := testDeps{
		repo: &mockSessionRepo{
			findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
				return session, nil
			},
		},
	}
	svc := newTestService(deps)

	err := svc.Cancel(context.Background(), testSessionID, "rain")
	if !apperrors.HasCode(err, apperrors.CodeAlreadyCompleted) {
		t.Fatalf("expected already completed, got %v", err)
	}
}

func TestCancel_CompletionWinsRaceAfterStateCheck(t *testing.T) {
	live := futureSession()
	live.ID = testSessionID
	completed := futureSession()
	completed.ID = testSessionID
	completed.IsCompleted = true

	reads := 0
	deps := testDeps{
		repo: &mockSessionRepo{
			findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
				reads++
				if reads == 1 {
					return live, nil
				}
				return completed, nil
			},
			// A completion landed between the state check and the mark, so
			// the conditional update matched nothing.
			markCancelledFn: func(ctx context.Context, id, reason string, at time.Time) error {
				return fmt.Errorf("%w: %s", sessionserrors.ErrTerminalState, id)
			},
		},
	}
	svc := newTestService(deps)

	err := svc.Cancel(context.Background(), testSessionID, "rain")
	if !apperrors.HasCode(err, apperrors.CodeAlreadyCompleted) {
		t.Fatalf("expected already completed, got %v", err)
	}
}

func TestComplete_RejectsCancellationUnderLock(t *testing.T) {
	live := futureSession()
	live.ID = testSessionID
	cancelled := futureSession()
	cancelled.ID = testSessionID
	cancelled.IsCancelled = true

	reads := 0
	deps := testDeps{
		repo: &mockSessionRepo{
			findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
				reads++
				if reads == 1 {
					return live, nil
				}
				// A cancel slipped in before the lock was acquired.
				return cancelled, nil
			},
		},
		participants: &mockParticipantRepo{
			findBySessionFn: func(ctx context.Context, sessionID string) ([]*model.SessionParticipant, error) {
				t.Fatal("participants must not be charged on a cancelled session")
				return nil, nil
			},
		},
	}
	svc := newTestService(deps)

	_, err := svc.Complete(context.Background(), testSessionID)
	if !apperrors.HasCode(err, apperrors.CodeAlreadyCancelled) {
		t.Fatalf("expected already cancelled, got %v", err)
	}
}

func TestComplete_CancelRacingTheMarkIsNotCompleted(t *testing.T) {
	live := futureSession()
	live.ID = testSessionID
	cancelled := futureSession()
	cancelled.ID = testSessionID
	cancelled.IsCancelled = true

	reads := 0
	events := &mockPublisher{}
	deps := testDeps{
		repo: &mockSessionRepo{
			findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
				reads++
				if reads <= 2 {
					return live, nil
				}
				return cancelled, nil
			},
			markCompletedFn: func(ctx context.Context, id string, at time.Time) error {
				return fmt.Errorf("%w: %s", sessionserrors.ErrTerminalState, id)
			},
		},
		participants: &mockParticipantRepo{
			findBySessionFn: func(ctx context.Context, sessionID string) ([]*model.SessionParticipant, error) {
				return []*model.SessionParticipant{
					{SessionID: sessionID, ClientID: testClientID},
				}, nil
			},
		},
		passes: &mockPasses{
			tryConsumeFn: func(ctx context.Context, clientID, zoneID string) (*model.ConsumeResult, error) {
				return &model.ConsumeResult{Kind: model.PassKindVisitBased, RemainingVisits: 1}, nil
			},
		},
		visits: &mockVisits{
			findSessionVisitFn: func(ctx context.Context, sessionID, clientID string) (*model.Visit, error) {
				return nil, nil
			},
			createFn: func(ctx context.Context, visit *model.Visit) error {
				return nil
			},
		},
		events: events,
	}
	svc := newTestService(deps)

	_, err := svc.Complete(context.Background(), testSessionID)
	if !apperrors.HasCode(err, apperrors.CodeAlreadyCancelled) {
		t.Fatalf("expected already cancelled, got %v", err)
	}
	if len(events.published) != 0 {
		t.Errorf("expected no completion event, got %d", len(events.published))
	}
}

func TestSignUpAndComplete_ContendOnOneLock(t *testing.T) {
	session := futureSession()
	session.ID = testSessionID

	var lockIDs []string
	locks := &mockLockRepo{
		acquireFn: func(ctx context.Context, lockID string, ttl time.Duration) (*model.SessionLock, error) {
			lockIDs = append(lockIDs, lockID)
			return &model.SessionLock{ID: lockID}, nil
		},
	}
	deps := testDeps{
		repo: &mockSessionRepo{
			findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
				return session, nil
			},
		},
		participants: &mockParticipantRepo{
			countBySessionFn: func(ctx context.Context, sessionID string) (int64, error) {
				return 0, nil
			},
			addFn: func(ctx context.Context, participant *model.SessionParticipant) error {
				return nil
			},
			findBySessionFn: func(ctx context.Context, sessionID string) ([]*model.SessionParticipant, error) {
				return nil, nil
			},
		},
		locks: locks,
	}
	svc := newTestService(deps)

	if err := svc.SignUp(context.Background(), testSessionID, testClientID); err != nil {
		t.Fatalf("SignUp returned error: %v", err)
	}
	if _, err := svc.Complete(context.Background(), testSessionID); !apperrors.HasCode(err, apperrors.CodeNothingToComplete) {
		t.Fatalf("expected nothing to complete, got %v", err)
	}

	if len(lockIDs) != 2 {
		t.Fatalf("expected 2 lock acquisitions, got %d", len(lockIDs))
	}
	if lockIDs[0] != lockIDs[1] {
		t.Errorf("signup and completion must share the session lock, got %q and %q", lockIDs[0], lockIDs[1])
	}
}

func TestComplete_NothingToComplete(t *testing.T) {
	session := futureSession()
	session.ID = testSessionID

	deps := testDeps{
		repo: &mockSessionRepo{
			findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
				return session, nil
			},
		},
		participants: &mockParticipantRepo{
			findBySessionFn: func(ctx context.Context, sessionID string) ([]*model.SessionParticipant, error) {
				return nil, nil
			},
		},
	}
	svc := newTestService(deps)

	_, err := svc.Complete(context.Background(), testSessionID)
	if !apperrors.HasCode(err, apperrors.CodeNothingToComplete) {
		t.Fatalf("expected nothing to complete, got %v", err)
	}
}

func TestComplete_ChargesParticipantsAndPublishes(t *testing.T) {
	session := futureSession()
	session.ID = testSessionID

	var visitsWritten []*model.Visit
	markedCompleted := false
	events := &mockPublisher{}

	deps := testDeps{
		repo: &mockSessionRepo{
			findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
				return session, nil
			},
			markCompletedFn: func(ctx context.Context, id string, at time.Time) error {
				markedCompleted = true
				return nil
			},
		},
		participants: &mockParticipantRepo{
			findBySessionFn: func(ctx context.Context, sessionID string) ([]*model.SessionParticipant, error) {
				return []*model.SessionParticipant{
					{SessionID: sessionID, ClientID: testClientID},
					{SessionID: sessionID, ClientID: testClientID2},
				}, nil
			},
		},
		passes: &mockPasses{
			tryConsumeFn: func(ctx context.Context, clientID, zoneID string) (*model.ConsumeResult, error) {
				return &model.ConsumeResult{Kind: model.PassKindVisitBased, RemainingVisits: 1}, nil
			},
		},
		visits: &mockVisits{
			findSessionVisitFn: func(ctx context.Context, sessionID, clientID string) (*model.Visit, error) {
				return nil, nil
			},
			createFn: func(ctx context.Context, visit *model.Visit) error {
				visitsWritten = append(visitsWritten, visit)
				return nil
			},
		},
		events: events,
	}
	svc := newTestService(deps)

	result, err := svc.Complete(context.Background(), testSessionID)
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if result.Charged != 2 {
		t.Errorf("expected 2 charged, got %d", result.Charged)
	}
	if !markedCompleted {
		t.Error("expected session to be marked completed")
	}
	if len(visitsWritten) != 2 {
		t.Fatalf("expected 2 visits written, got %d", len(visitsWritten))
	}
	for _, visit := range visitsWritten {
		if visit.VisitType != model.VisitTypeSession {
			t.Errorf("expected session visit type, got %s", visit.VisitType)
		}
		if visit.CheckOut == nil || !visit.CheckOut.Equal(session.EndTime) {
			t.Error("expected visit to span the full session")
		}
	}
	if len(events.published) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events.published))
	}
	if events.published[0].GetEventType() != "session.completed" {
		t.Errorf("unexpected event type %s", events.published[0].GetEventType())
	}
}

func TestComplete_SkipsChargedAndCollectsFailed(t *testing.T) {
	session := futureSession()
	session.ID = testSessionID

	deps := testDeps{
		repo: &mockSessionRepo{
			findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
				return session, nil
			},
			markCompletedFn: func(ctx context.Context, id string, at time.Time) error {
				return nil
			},
		},
		participants: &mockParticipantRepo{
			findBySessionFn: func(ctx context.Context, sessionID string) ([]*model.SessionParticipant, error) {
				return []*model.SessionParticipant{
					{SessionID: sessionID, ClientID: testClientID},
					{SessionID: sessionID, ClientID: testClientID2},
				}, nil
			},
		},
		passes: &mockPasses{
			tryConsumeFn: func(ctx context.Context, clientID, zoneID string) (*model.ConsumeResult, error) {
				return nil, apperrors.InsufficientBalance(zoneID)
			},
		},
		visits: &mockVisits{
			// First participant was charged by an earlier, interrupted run.
			findSessionVisitFn: func(ctx context.Context, sessionID, clientID string) (*model.Visit, error) {
				if clientID == testClientID {
					return &model.Visit{SessionID: sessionID, ClientID: clientID}, nil
				}
				return nil, nil
			},
		},
	}
	svc := newTestService(deps)

	result, err := svc.Complete(context.Background(), testSessionID)
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if result.AlreadyCharged != 1 {
		t.Errorf("expected 1 already charged, got %d", result.AlreadyCharged)
	}
	if result.Charged != 0 {
		t.Errorf("expected 0 charged, got %d", result.Charged)
	}
	if len(result.FailedClients) != 1 || result.FailedClients[0] != testClientID2 {
		t.Errorf("expected %s in failed clients, got %v", testClientID2, result.FailedClients)
	}
}

func TestComplete_AbortsWithoutMarkingOnInfrastructureError(t *testing.T) {
	session := futureSession()
	session.ID = testSessionID

	deps := testDeps{
		repo: &mockSessionRepo{
			findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
				return session, nil
			},
			markCompletedFn: func(ctx context.Context, id string, at time.Time) error {
				t.Fatal("session must not be marked completed after an aborted run")
				return nil
			},
		},
		participants: &mockParticipantRepo{
			findBySessionFn: func(ctx context.Context, sessionID string) ([]*model.SessionParticipant, error) {
				return []*model.SessionParticipant{
					{SessionID: sessionID, ClientID: testClientID},
				}, nil
			},
		},
		passes: &mockPasses{
			tryConsumeFn: func(ctx context.Context, clientID, zoneID string) (*model.ConsumeResult, error) {
				return nil, errors.New("connection reset")
			},
		},
		visits: &mockVisits{
			findSessionVisitFn: func(ctx context.Context, sessionID, clientID string) (*model.Visit, error) {
				return nil, nil
			},
		},
	}
	svc := newTestService(deps)

	if _, err := svc.Complete(context.Background(), testSessionID); err == nil {
		t.Fatal("expected error from aborted completion run")
	}
}

func TestComplete_AlreadyCompleted(t *testing.T) {
	session := futureSession()
	session.ID = testSessionID
	session.IsCompleted = true

	deps := testDeps{
		repo: &mockSessionRepo{
			findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
				return session, nil
			},
		},
	}
	svc := newTestService(deps)

	_, err := svc.Complete(context.Background(), testSessionID)
	if !apperrors.HasCode(err, apperrors.CodeAlreadyCompleted) {
		t.Fatalf("expected already completed, got %v", err)
	}
}
