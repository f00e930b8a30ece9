package service

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"gymgate/pkg/config"
	mongotx "gymgate/pkg/db/mongo"
	apperrors "gymgate/pkg/errors"
	"gymgate/pkg/kafka"
	"gymgate/pkg/logger"
	"gymgate/pkg/model"
)

func duplicateKeyErr() error {
	return mongo.WriteException{
		WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "duplicate key"}},
	}
}

const (
	testClientID = "a1b2c3d4-e5f6-4a7b-8c9d-0e1f2a3b4c5d"
	testZoneID   = "b2c3d4e5-f6a7-4b8c-9d0e-1f2a3b4c5d6e"
	testVisitID  = "c3d4e5f6-a7b8-4c9d-8e1f-2a3b4c5d6e7f"
	testLockerID = "d4e5f6a7-b8c9-4d0e-9f2a-3b4c5d6e7f8a"
)

type mockVisitRepo struct {
	createFn                 func(ctx context.Context, visit *model.Visit) error
	findByIDFn               func(ctx context.Context, id string) (*model.Visit, error)
	findOpenDirectByClientFn func(ctx context.Context, clientID string) (*model.Visit, error)
	findSessionVisitFn       func(ctx context.Context, sessionID, clientID string) (*model.Visit, error)
	closeFn                  func(ctx context.Context, id string, at time.Time) (*model.Visit, error)
	findByClientFn           func(ctx context.Context, clientID string, limit int, offset int64) ([]*model.Visit, error)
	findByTrainerFn          func(ctx context.Context, trainerID string, limit int, offset int64) ([]*model.Visit, error)
	countByClientFn          func(ctx context.Context, clientID string) (int64, error)
	findOpenFn               func(ctx context.Context) ([]*model.Visit, error)
	executeTransactionFn     func(ctx context.Context, fn mongotx.TransactionFunc) error
}

func (m *mockVisitRepo) Create(ctx context.Context, visit *model.Visit) error {
	return m.createFn(ctx, visit)
}

func (m *mockVisitRepo) FindByID(ctx context.Context, id string) (*model.Visit, error) {
	return m.findByIDFn(ctx, id)
}

func (m *mockVisitRepo) FindOpenDirectByClient(ctx context.Context, clientID string) (*model.Visit, error) {
	return m.findOpenDirectByClientFn(ctx, clientID)
}

func (m *mockVisitRepo) FindSessionVisit(ctx context.Context, sessionID, clientID string) (*model.Visit, error) {
	return m.findSessionVisitFn(ctx, sessionID, clientID)
}

func (m *mockVisitRepo) Close(ctx context.Context, id string, at time.Time) (*model.Visit, error) {
	return m.closeFn(ctx, id, at)
}

func (m *mockVisitRepo) FindByClient(ctx context.Context, clientID string, limit int, offset int64) ([]*model.Visit, error) {
	return m.findByClientFn(ctx, clientID, limit, offset)
}

func (m *mockVisitRepo) FindByTrainer(ctx context.Context, trainerID string, limit int, offset int64) ([]*model.Visit, error) {
	return m.findByTrainerFn(ctx, trainerID, limit, offset)
}

func (m *mockVisitRepo) CountByClient(ctx context.Context, clientID string) (int64, error) {
	return m.countByClientFn(ctx, clientID)
}

func (m *mockVisitRepo) FindOpen(ctx context.Context) ([]*model.Visit, error) {
	return m.findOpenFn(ctx)
}

func (m *mockVisitRepo) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	if m.executeTransactionFn != nil {
		return m.executeTransactionFn(ctx, fn)
	}
	return fn(nil)
}

type mockZoneGate struct {
	getActiveFn func(ctx context.Context, id string) (*model.Zone, error)
}

func (m *mockZoneGate) GetActive(ctx context.Context, id string) (*model.Zone, error) {
	if m.getActiveFn != nil {
		return m.getActiveFn(ctx, id)
	}
	return &model.Zone{ID: id, IsActive: true}, nil
}

type mockPassLedger struct {
	tryConsumeFn func(ctx context.Context, clientID, zoneID string) (*model.ConsumeResult, error)
}

func (m *mockPassLedger) TryConsume(ctx context.Context, clientID, zoneID string) (*model.ConsumeResult, error) {
	if m.tryConsumeFn != nil {
		return m.tryConsumeFn(ctx, clientID, zoneID)
	}
	return &model.ConsumeResult{Kind: model.PassKindVisitBased, RemainingVisits: 4}, nil
}

type mockLockerPool struct {
	assignFn  func(ctx context.Context, clientID, category string) (*model.Locker, error)
	heldByFn  func(ctx context.Context, clientID string) (*model.Locker, error)
	releaseFn func(ctx context.Context, lockerID string) (*model.Locker, error)
}

func (m *mockLockerPool) Assign(ctx context.Context, clientID, category string) (*model.Locker, error) {
	if m.assignFn != nil {
		return m.assignFn(ctx, clientID, category)
	}
	return nil, nil
}

func (m *mockLockerPool) HeldBy(ctx context.Context, clientID string) (*model.Locker, error) {
	if m.heldByFn != nil {
		return m.heldByFn(ctx, clientID)
	}
	return nil, nil
}

func (m *mockLockerPool) Release(ctx context.Context, lockerID string) (*model.Locker, error) {
	if m.releaseFn != nil {
		return m.releaseFn(ctx, lockerID)
	}
	return &model.Locker{ID: lockerID, Status: model.LockerStatusFree}, nil
}

type capturingPublisher struct {
	published []kafka.Message
}

func (m *capturingPublisher) Publish(ctx context.Context, msg kafka.Message) error {
	m.published = append(m.published, msg)
	return nil
}

func newTestService(repo *mockVisitRepo, zones *mockZoneGate, passes *mockPassLedger, lockers *mockLockerPool) (AttendanceService, *capturingPublisher, *capturingPublisher) {
	cfg := &config.Config{
		Log: logger.New(logger.Config{Level: logger.LevelError, Format: logger.FormatText, Service: "test"}),
	}
	if zones == nil {
		zones = &mockZoneGate{}
	}
	if passes == nil {
		passes = &mockPassLedger{}
	}
	if lockers == nil {
		lockers = &mockLockerPool{}
	}
	checkins := &capturingPublisher{}
	checkouts := &capturingPublisher{}
	return NewAttendanceService(repo, zones, passes, lockers, checkins, checkouts, cfg), checkins, checkouts
}

func TestCheckIn_OpensVisitAndPublishes(t *testing.T) {
	var created *model.Visit
	repo := &mockVisitRepo{
		findOpenDirectByClientFn: func(ctx context.Context, clientID string) (*model.Visit, error) {
			return nil, nil
		},
		createFn: func(ctx context.Context, visit *model.Visit) error {
			visit.ID = testVisitID
			created = visit
			return nil
		},
	}
	svc, checkins, _ := newTestService(repo, nil, nil, nil)

	result, err := svc.CheckIn(context.Background(), testClientID, testZoneID, "")
	if err != nil {
		t.Fatalf("CheckIn returned error: %v", err)
	}
	if created == nil {
		t.Fatal("expected visit to be persisted")
	}
	if created.VisitType != model.VisitTypeDirect {
		t.Errorf("expected direct visit, got %s", created.VisitType)
	}
	if created.CheckOut != nil {
		t.Error("expected open visit without check-out")
	}
	if result.Locker != nil {
		t.Error("expected no locker when none was requested")
	}
	if len(checkins.published) != 1 {
		t.Fatalf("expected 1 check-in event, got %d", len(checkins.published))
	}
	if checkins.published[0].Key != testClientID {
		t.Errorf("expected event keyed by client, got %s", checkins.published[0].Key)
	}
}

func TestCheckIn_AlreadyInside(t *testing.T) {
	repo := &mockVisitRepo{
		findOpenDirectByClientFn: func(ctx context.Context, clientID string) (*model.Visit, error) {
			return &model.Visit{ID: testVisitID, ClientID: clientID}, nil
		},
	}
	svc, _, _ := newTestService(repo, nil, nil, nil)

	_, err := svc.CheckIn(context.Background(), testClientID, testZoneID, "")
	if !apperrors.HasCode(err, apperrors.CodeAlreadyInside) {
		t.Fatalf("expected already inside, got %v", err)
	}

	appErr := apperrors.AsAppError(err)
	if appErr.Details["visit_id"] != testVisitID {
		t.Errorf("expected visit_id detail %s, got %v", testVisitID, appErr.Details["visit_id"])
	}
}

func TestCheckIn_NoBalanceRefusedBeforeVisitOpens(t *testing.T) {
	repo := &mockVisitRepo{
		findOpenDirectByClientFn: func(ctx context.Context, clientID string) (*model.Visit, error) {
			return nil, nil
		},
		createFn: func(ctx context.Context, visit *model.Visit) error {
			t.Fatal("visit must not open without a successful charge")
			return nil
		},
	}
	passes := &mockPassLedger{
		tryConsumeFn: func(ctx context.Context, clientID, zoneID string) (*model.ConsumeResult, error) {
			return nil, apperrors.InsufficientBalance(zoneID)
		},
	}
	svc, _, _ := newTestService(repo, nil, passes, nil)

	_, err := svc.CheckIn(context.Background(), testClientID, testZoneID, "")
	if !apperrors.HasCode(err, apperrors.CodeInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
}

func TestCheckIn_EmptyLockerPoolStillAdmits(t *testing.T) {
	repo := &mockVisitRepo{
		findOpenDirectByClientFn: func(ctx context.Context, clientID string) (*model.Visit, error) {
			return nil, nil
		},
		createFn: func(ctx context.Context, visit *model.Visit) error {
			visit.ID = testVisitID
			return nil
		},
	}
	lockers := &mockLockerPool{
		assignFn: func(ctx context.Context, clientID, category string) (*model.Locker, error) {
			return nil, nil
		},
	}
	svc, _, _ := newTestService(repo, nil, nil, lockers)

	result, err := svc.CheckIn(context.Background(), testClientID, testZoneID, model.LockerCategoryMen)
	if err != nil {
		t.Fatalf("CheckIn returned error: %v", err)
	}
	if result.Visit == nil {
		t.Fatal("expected visit despite empty locker pool")
	}
	if result.Locker != nil {
		t.Error("expected nil locker from an empty pool")
	}
}

func TestCheckIn_LockerAssignedWhenRequested(t *testing.T) {
	repo := &mockVisitRepo{
		findOpenDirectByClientFn: func(ctx context.Context, clientID string) (*model.Visit, error) {
			return nil, nil
		},
		createFn: func(ctx context.Context, visit *model.Visit) error {
			visit.ID = testVisitID
			return nil
		},
	}
	lockers := &mockLockerPool{
		assignFn: func(ctx context.Context, clientID, category string) (*model.Locker, error) {
			return &model.Locker{ID: testLockerID, Category: category, Status: model.LockerStatusOccupied}, nil
		},
	}
	svc, checkins, _ := newTestService(repo, nil, nil, lockers)

	result, err := svc.CheckIn(context.Background(), testClientID, testZoneID, model.LockerCategoryWomen)
	if err != nil {
		t.Fatalf("CheckIn returned error: %v", err)
	}
	if result.Locker == nil || result.Locker.ID != testLockerID {
		t.Fatalf("expected locker %s, got %+v", testLockerID, result.Locker)
	}

	var event visitCheckedInEvent
	if err := checkins.published[0].DecodeValue(&event); err != nil {
		t.Fatalf("failed to decode event: %v", err)
	}
	if event.LockerID != testLockerID {
		t.Errorf("expected locker_id %s in event, got %s", testLockerID, event.LockerID)
	}
}

func TestCheckIn_ChargeLockerAndVisitShareOneTransaction(t *testing.T) {
	inTx := false
	opens := 0
	repo := &mockVisitRepo{
		findOpenDirectByClientFn: func(ctx context.Context, clientID string) (*model.Visit, error) {
			opens++
			if opens == 1 {
				return nil, nil
			}
			// A concurrent check-in opened a visit in the meantime.
			return &model.Visit{ID: testVisitID, ClientID: clientID}, nil
		},
		executeTransactionFn: func(ctx context.Context, fn mongotx.TransactionFunc) error {
			inTx = true
			defer func() { inTx = false }()
			return fn(nil)
		},
		createFn: func(ctx context.Context, visit *model.Visit) error {
			if !inTx {
				t.Error("visit insert must run inside the check-in transaction")
			}
			return duplicateKeyErr()
		},
	}
	passes := &mockPassLedger{
		tryConsumeFn: func(ctx context.Context, clientID, zoneID string) (*model.ConsumeResult, error) {
			if !inTx {
				t.Error("pass charge must run inside the check-in transaction")
			}
			return &model.ConsumeResult{Kind: model.PassKindVisitBased, RemainingVisits: 3}, nil
		},
	}
	lockers := &mockLockerPool{
		assignFn: func(ctx context.Context, clientID, category string) (*model.Locker, error) {
			if !inTx {
				t.Error("locker claim must run inside the check-in transaction")
			}
			return &model.Locker{ID: testLockerID, Status: model.LockerStatusOccupied}, nil
		},
	}
	svc, checkins, _ := newTestService(repo, nil, passes, lockers)

	_, err := svc.CheckIn(context.Background(), testClientID, testZoneID, model.LockerCategoryMen)
	if !apperrors.HasCode(err, apperrors.CodeAlreadyInside) {
		t.Fatalf("expected already inside after losing the open-visit race, got %v", err)
	}
	if len(checkins.published) != 0 {
		t.Errorf("expected no check-in event for a refused entry, got %d", len(checkins.published))
	}
}

func TestOccupancy_ListsEveryoneInside(t *testing.T) {
	repo := &mockVisitRepo{
		findOpenFn: func(ctx context.Context) ([]*model.Visit, error) {
			return []*model.Visit{
				{ID: testVisitID, ClientID: testClientID},
				{ID: "f6a7b8c9-d0e1-4f2a-8b4c-5d6e7f8a9b0c", ClientID: "a7b8c9d0-e1f2-4a3b-9c5d-6e7f8a9b0c1d"},
			}, nil
		},
	}
	svc, _, _ := newTestService(repo, nil, nil, nil)

	result, err := svc.Occupancy(context.Background())
	if err != nil {
		t.Fatalf("Occupancy returned error: %v", err)
	}
	if result.Inside != 2 {
		t.Errorf("expected 2 inside, got %d", result.Inside)
	}
	if len(result.Visits) != 2 {
		t.Errorf("expected 2 open visits, got %d", len(result.Visits))
	}
}

func TestCheckOut_NoOpenVisit(t *testing.T) {
	repo := &mockVisitRepo{
		findOpenDirectByClientFn: func(ctx context.Context, clientID string) (*model.Visit, error) {
			return nil, nil
		},
	}
	svc, _, _ := newTestService(repo, nil, nil, nil)

	_, err := svc.CheckOut(context.Background(), testClientID)
	if !apperrors.HasCode(err, apperrors.CodeNoOpenVisit) {
		t.Fatalf("expected no open visit, got %v", err)
	}
}

func TestCheckOut_ClosesVisitAndReleasesLocker(t *testing.T) {
	checkIn := time.Now().UTC().Add(-90 * time.Minute)
	repo := &mockVisitRepo{
		findOpenDirectByClientFn: func(ctx context.Context, clientID string) (*model.Visit, error) {
			return &model.Visit{ID: testVisitID, ClientID: clientID, ZoneID: testZoneID, CheckIn: checkIn}, nil
		},
		closeFn: func(ctx context.Context, id string, at time.Time) (*model.Visit, error) {
			return &model.Visit{
				ID:       id,
				ClientID: testClientID,
				ZoneID:   testZoneID,
				CheckIn:  checkIn,
				CheckOut: &at,
			}, nil
		},
	}
	released := false
	lockers := &mockLockerPool{
		heldByFn: func(ctx context.Context, clientID string) (*model.Locker, error) {
			return &model.Locker{ID: testLockerID, Status: model.LockerStatusOccupied}, nil
		},
		releaseFn: func(ctx context.Context, lockerID string) (*model.Locker, error) {
			released = true
			return &model.Locker{ID: lockerID, Status: model.LockerStatusFree}, nil
		},
	}
	svc, _, checkouts := newTestService(repo, nil, nil, lockers)

	result, err := svc.CheckOut(context.Background(), testClientID)
	if err != nil {
		t.Fatalf("CheckOut returned error: %v", err)
	}
	if result.DurationMinutes < 89 || result.DurationMinutes > 91 {
		t.Errorf("expected ~90 minute visit, got %d", result.DurationMinutes)
	}
	if !released {
		t.Error("expected held locker to be released")
	}
	if result.ReleasedLocker == nil || result.ReleasedLocker.ID != testLockerID {
		t.Errorf("expected released locker %s in result, got %+v", testLockerID, result.ReleasedLocker)
	}
	if len(checkouts.published) != 1 {
		t.Fatalf("expected 1 check-out event, got %d", len(checkouts.published))
	}
}

func TestCheckOut_LockerReleaseFailureDoesNotBlock(t *testing.T) {
	checkIn := time.Now().UTC().Add(-10 * time.Minute)
	repo := &mockVisitRepo{
		findOpenDirectByClientFn: func(ctx context.Context, clientID string) (*model.Visit, error) {
			return &model.Visit{ID: testVisitID, ClientID: clientID, CheckIn: checkIn}, nil
		},
		closeFn: func(ctx context.Context, id string, at time.Time) (*model.Visit, error) {
			return &model.Visit{ID: id, ClientID: testClientID, CheckIn: checkIn, CheckOut: &at}, nil
		},
	}
	lockers := &mockLockerPool{
		heldByFn: func(ctx context.Context, clientID string) (*model.Locker, error) {
			return &model.Locker{ID: testLockerID}, nil
		},
		releaseFn: func(ctx context.Context, lockerID string) (*model.Locker, error) {
			return nil, apperrors.Internal("locker store down", nil)
		},
	}
	svc, _, _ := newTestService(repo, nil, nil, lockers)

	result, err := svc.CheckOut(context.Background(), testClientID)
	if err != nil {
		t.Fatalf("CheckOut returned error: %v", err)
	}
	if result.ReleasedLocker != nil {
		t.Error("expected no released locker in result after a failed release")
	}
}
