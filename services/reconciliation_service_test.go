package services_test

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"

	"parcel-service/models"
	"parcel-service/repository"
	"parcel-service/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var trackingPattern = regexp.MustCompile(`^TRK-[A-Z0-9]{8}$`)

// ---- fake session oracle ----

type fakeOracle struct {
	sessions map[string]*models.CheckoutSession
	err      error
}

func (f *fakeOracle) GetCheckoutSession(_ context.Context, id string) (*models.CheckoutSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	sess, ok := f.sessions[id]
	if !ok {
		return nil, errors.New("no such session")
	}
	return sess, nil
}

// ---- in-memory parcel store ----

type memParcelRepo struct {
	mu            sync.Mutex
	parcels       map[primitive.ObjectID]*models.Parcel
	markPaidCalls int
}

func newMemParcelRepo(parcels ...*models.Parcel) *memParcelRepo {
	m := &memParcelRepo{parcels: map[primitive.ObjectID]*models.Parcel{}}
	for _, p := range parcels {
		m.parcels[p.ID] = p
	}
	return m
}

func (m *memParcelRepo) FindByID(_ context.Context, id primitive.ObjectID) (*models.Parcel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.parcels[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memParcelRepo) Find(_ context.Context, _ string) ([]models.Parcel, error) {
	return nil, nil
}

func (m *memParcelRepo) Create(_ context.Context, p *models.Parcel) (primitive.ObjectID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = primitive.NewObjectID()
	m.parcels[p.ID] = p
	return p.ID, nil
}

func (m *memParcelRepo) Delete(_ context.Context, id primitive.ObjectID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.parcels[id]; !ok {
		return 0, nil
	}
	delete(m.parcels, id)
	return 1, nil
}

func (m *memParcelRepo) MarkPaid(_ context.Context, id primitive.ObjectID, trackingID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markPaidCalls++
	p, ok := m.parcels[id]
	if !ok || p.PaymentStatus != models.PaymentStatusUnpaid {
		return 0, nil
	}
	p.PaymentStatus = models.PaymentStatusPaid
	p.TrackingID = trackingID
	return 1, nil
}

// ---- in-memory payment ledger with unique transactionId constraint ----

type memPaymentRepo struct {
	mu          sync.Mutex
	byTx        map[string]*models.Payment
	createCalls int
}

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{byTx: map[string]*models.Payment{}}
}

func (m *memPaymentRepo) FindByTransactionID(_ context.Context, txID string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byTx[txID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPaymentRepo) Create(_ context.Context, p *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if _, ok := m.byTx[p.TransactionID]; ok {
		return repository.ErrDuplicateTransaction
	}
	cp := *p
	m.byTx[p.TransactionID] = &cp
	return nil
}

func (m *memPaymentRepo) FindByCustomerEmail(_ context.Context, _ string) ([]models.Payment, error) {
	return nil, nil
}

func (m *memPaymentRepo) EnsureIndexes(_ context.Context) error { return nil }

// blindPaymentRepo hides existing rows from the idempotency pre-check so the
// unique-constraint fallback path can be exercised.
type blindPaymentRepo struct {
	*memPaymentRepo
	mu         sync.Mutex
	blindReads int
}

func (b *blindPaymentRepo) FindByTransactionID(ctx context.Context, txID string) (*models.Payment, error) {
	b.mu.Lock()
	if b.blindReads > 0 {
		b.blindReads--
		b.mu.Unlock()
		return nil, repository.ErrNotFound
	}
	b.mu.Unlock()
	return b.memPaymentRepo.FindByTransactionID(ctx, txID)
}

// ---- helpers ----

func unpaidParcel(name string) *models.Parcel {
	return &models.Parcel{
		ID:            primitive.NewObjectID(),
		ParcelName:    name,
		SenderEmail:   "sender@example.com",
		Cost:          50,
		PaymentStatus: models.PaymentStatusUnpaid,
	}
}

func paidSession(id string, parcel *models.Parcel, txID string) *models.CheckoutSession {
	return &models.CheckoutSession{
		ID:              id,
		PaymentStatus:   models.PaymentStatusPaid,
		AmountTotal:     5000,
		Currency:        "usd",
		CustomerEmail:   "sender@example.com",
		PaymentIntentID: txID,
		ParcelID:        parcel.ID.Hex(),
		ParcelName:      parcel.ParcelName,
	}
}

func newEngine(parcels *memParcelRepo, payments repository.PaymentRepository, oracle *fakeOracle) services.ReconciliationService {
	logger, _ := zap.NewDevelopment()
	return services.NewReconciliationService(parcels, payments, oracle, logger)
}

// ---- tests ----

func TestReconcile_EmptySessionID(t *testing.T) {
	engine := newEngine(newMemParcelRepo(), newMemPaymentRepo(), &fakeOracle{})

	_, err := engine.Reconcile(context.Background(), "")
	assert.ErrorIs(t, err, services.ErrInvalidSessionID)
}

func TestReconcile_NotPaidSession(t *testing.T) {
	parcel := unpaidParcel("Box A")
	parcels := newMemParcelRepo(parcel)
	payments := newMemPaymentRepo()
	oracle := &fakeOracle{sessions: map[string]*models.CheckoutSession{
		"cs_pending": {
			ID:            "cs_pending",
			PaymentStatus: "unpaid",
			ParcelID:      parcel.ID.Hex(),
		},
	}}
	engine := newEngine(parcels, payments, oracle)

	result, err := engine.Reconcile(context.Background(), "cs_pending")
	require.NoError(t, err)
	assert.Equal(t, services.OutcomeNotPaid, result.Outcome)

	// No writes on either store.
	assert.Equal(t, 0, parcels.markPaidCalls)
	assert.Equal(t, 0, payments.createCalls)
	assert.Equal(t, models.PaymentStatusUnpaid, parcels.parcels[parcel.ID].PaymentStatus)
}

func TestReconcile_FirstSettlement(t *testing.T) {
	parcel := unpaidParcel("Box A")
	parcels := newMemParcelRepo(parcel)
	payments := newMemPaymentRepo()
	oracle := &fakeOracle{sessions: map[string]*models.CheckoutSession{
		"cs_1": paidSession("cs_1", parcel, "pi_123"),
	}}
	engine := newEngine(parcels, payments, oracle)

	result, err := engine.Reconcile(context.Background(), "cs_1")
	require.NoError(t, err)

	assert.Equal(t, services.OutcomeSettled, result.Outcome)
	assert.Equal(t, "pi_123", result.TransactionID)
	assert.Regexp(t, trackingPattern, result.TrackingID)

	stored := parcels.parcels[parcel.ID]
	assert.Equal(t, models.PaymentStatusPaid, stored.PaymentStatus)
	assert.Equal(t, result.TrackingID, stored.TrackingID)

	payment, err := payments.FindByTransactionID(context.Background(), "pi_123")
	require.NoError(t, err)
	assert.Equal(t, parcel.ID, payment.ParcelID)
	assert.Equal(t, 50.0, payment.Amount)
	assert.Equal(t, "usd", payment.Currency)
	assert.Equal(t, result.TrackingID, payment.TrackingID)
	assert.Equal(t, models.PaymentStatusPaid, payment.PaymentStatus)
	assert.Equal(t, 1, payments.createCalls)
}

func TestReconcile_RepeatIsIdempotent(t *testing.T) {
	parcel := unpaidParcel("Box A")
	parcels := newMemParcelRepo(parcel)
	payments := newMemPaymentRepo()
	oracle := &fakeOracle{sessions: map[string]*models.CheckoutSession{
		"cs_1": paidSession("cs_1", parcel, "pi_123"),
	}}
	engine := newEngine(parcels, payments, oracle)

	first, err := engine.Reconcile(context.Background(), "cs_1")
	require.NoError(t, err)
	require.Equal(t, services.OutcomeSettled, first.Outcome)

	for i := 0; i < 3; i++ {
		again, err := engine.Reconcile(context.Background(), "cs_1")
		require.NoError(t, err)
		assert.Equal(t, services.OutcomeAlreadySettled, again.Outcome)
		assert.Equal(t, first.TransactionID, again.TransactionID)
		assert.Equal(t, first.TrackingID, again.TrackingID)
	}

	assert.Equal(t, 1, payments.createCalls)
	assert.Len(t, payments.byTx, 1)
	assert.Equal(t, first.TrackingID, parcels.parcels[parcel.ID].TrackingID)
}

func TestReconcile_MissingTransactionID(t *testing.T) {
	parcel := unpaidParcel("Box A")
	sess := paidSession("cs_1", parcel, "")
	engine := newEngine(newMemParcelRepo(parcel), newMemPaymentRepo(), &fakeOracle{
		sessions: map[string]*models.CheckoutSession{"cs_1": sess},
	})

	_, err := engine.Reconcile(context.Background(), "cs_1")
	assert.ErrorIs(t, err, services.ErrInconsistentSession)
}

func TestReconcile_MissingParcelID(t *testing.T) {
	parcel := unpaidParcel("Box A")
	sess := paidSession("cs_1", parcel, "pi_123")
	sess.ParcelID = ""
	engine := newEngine(newMemParcelRepo(parcel), newMemPaymentRepo(), &fakeOracle{
		sessions: map[string]*models.CheckoutSession{"cs_1": sess},
	})

	_, err := engine.Reconcile(context.Background(), "cs_1")
	assert.ErrorIs(t, err, services.ErrInconsistentSession)
}

func TestReconcile_MalformedParcelID(t *testing.T) {
	parcel := unpaidParcel("Box A")
	sess := paidSession("cs_1", parcel, "pi_123")
	sess.ParcelID = "not-an-object-id"
	engine := newEngine(newMemParcelRepo(parcel), newMemPaymentRepo(), &fakeOracle{
		sessions: map[string]*models.CheckoutSession{"cs_1": sess},
	})

	_, err := engine.Reconcile(context.Background(), "cs_1")
	assert.ErrorIs(t, err, services.ErrInconsistentSession)
}

func TestReconcile_ParcelMissing(t *testing.T) {
	ghost := unpaidParcel("Gone")
	payments := newMemPaymentRepo()
	engine := newEngine(newMemParcelRepo(), payments, &fakeOracle{
		sessions: map[string]*models.CheckoutSession{"cs_1": paidSession("cs_1", ghost, "pi_123")},
	})

	_, err := engine.Reconcile(context.Background(), "cs_1")
	assert.ErrorIs(t, err, services.ErrParcelNotFound)
	assert.Empty(t, payments.byTx)
}

func TestReconcile_OracleFailure(t *testing.T) {
	engine := newEngine(newMemParcelRepo(), newMemPaymentRepo(), &fakeOracle{err: errors.New("stripe timeout")})

	_, err := engine.Reconcile(context.Background(), "cs_1")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, services.ErrInvalidSessionID)
}

func TestReconcile_DuplicateInsertBecomesAlreadySettled(t *testing.T) {
	parcel := unpaidParcel("Box A")
	parcels := newMemParcelRepo(parcel)

	inner := newMemPaymentRepo()
	inner.byTx["pi_123"] = &models.Payment{
		TransactionID: "pi_123",
		ParcelID:      parcel.ID,
		TrackingID:    "TRK-EXISTING",
	}
	// Hide the row from the pre-check so the insert hits the unique constraint.
	payments := &blindPaymentRepo{memPaymentRepo: inner, blindReads: 1}

	engine := newEngine(parcels, payments, &fakeOracle{
		sessions: map[string]*models.CheckoutSession{"cs_1": paidSession("cs_1", parcel, "pi_123")},
	})

	result, err := engine.Reconcile(context.Background(), "cs_1")
	require.NoError(t, err)
	assert.Equal(t, services.OutcomeAlreadySettled, result.Outcome)
	assert.Equal(t, "TRK-EXISTING", result.TrackingID)
	assert.Len(t, inner.byTx, 1)
}

func TestReconcile_CompletesInterruptedSettlement(t *testing.T) {
	// A prior call marked the parcel paid but crashed before the ledger
	// insert. Re-invocation finishes the job with the parcel's tracking id.
	parcel := unpaidParcel("Box A")
	parcel.PaymentStatus = models.PaymentStatusPaid
	parcel.TrackingID = "TRK-RECOVERY"
	parcels := newMemParcelRepo(parcel)
	payments := newMemPaymentRepo()

	engine := newEngine(parcels, payments, &fakeOracle{
		sessions: map[string]*models.CheckoutSession{"cs_1": paidSession("cs_1", parcel, "pi_123")},
	})

	result, err := engine.Reconcile(context.Background(), "cs_1")
	require.NoError(t, err)
	assert.Equal(t, services.OutcomeSettled, result.Outcome)
	assert.Equal(t, "TRK-RECOVERY", result.TrackingID)

	payment, err := payments.FindByTransactionID(context.Background(), "pi_123")
	require.NoError(t, err)
	assert.Equal(t, "TRK-RECOVERY", payment.TrackingID)
}

func TestReconcile_ConcurrentFirstTimeCalls(t *testing.T) {
	parcel := unpaidParcel("Box A")
	parcels := newMemParcelRepo(parcel)
	payments := newMemPaymentRepo()
	engine := newEngine(parcels, payments, &fakeOracle{
		sessions: map[string]*models.CheckoutSession{"cs_1": paidSession("cs_1", parcel, "pi_123")},
	})

	const callers = 2
	results := make([]*services.ReconcileResult, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = engine.Reconcile(context.Background(), "cs_1")
		}(i)
	}
	wg.Wait()

	settled, alreadySettled := 0, 0
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		switch results[i].Outcome {
		case services.OutcomeSettled:
			settled++
		case services.OutcomeAlreadySettled:
			alreadySettled++
		}
	}
	assert.Equal(t, 1, settled)
	assert.Equal(t, 1, alreadySettled)

	// Exactly one ledger row, in step with the parcel.
	assert.Len(t, payments.byTx, 1)
	payment, err := payments.FindByTransactionID(context.Background(), "pi_123")
	require.NoError(t, err)
	assert.Equal(t, parcels.parcels[parcel.ID].TrackingID, payment.TrackingID)
}
