package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"parcel-service/models"
	"parcel-service/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Reconcile outcomes. A repeated call for the same transaction is not an
// error; it reports already_settled and performs no writes.
const (
	OutcomeSettled        = "settled"
	OutcomeAlreadySettled = "already_settled"
	OutcomeNotPaid        = "not_paid"
)

var (
	// ErrInvalidSessionID rejects empty session identifiers.
	ErrInvalidSessionID = errors.New("session id is required")
	// ErrInconsistentSession flags a paid session whose metadata lacks the
	// transaction or parcel reference. Never retried, never patched.
	ErrInconsistentSession = errors.New("checkout session is missing payment metadata")
	// ErrParcelNotFound flags a paid session referencing a parcel that no
	// longer exists. No ledger entry is fabricated for it.
	ErrParcelNotFound = errors.New("parcel referenced by checkout session not found")
)

// ReconcileResult describes what a Reconcile call observed or did.
type ReconcileResult struct {
	Outcome       string `json:"outcome"`
	TransactionID string `json:"transactionId,omitempty"`
	TrackingID    string `json:"trackingId,omitempty"`
}

// ReconciliationService decides exactly once whether a confirmed checkout
// session represents a new completed payment, and settles it if so.
type ReconciliationService interface {
	Reconcile(ctx context.Context, sessionID string) (*ReconcileResult, error)
}

type reconciliationServiceImpl struct {
	parcels  repository.ParcelRepository
	payments repository.PaymentRepository
	oracle   SessionOracle
	logger   *zap.Logger
}

// NewReconciliationService creates a ReconciliationService. All collaborators
// are injected; the engine holds no mutable state between calls.
func NewReconciliationService(
	parcels repository.ParcelRepository,
	payments repository.PaymentRepository,
	oracle SessionOracle,
	logger *zap.Logger,
) ReconciliationService {
	return &reconciliationServiceImpl{
		parcels:  parcels,
		payments: payments,
		oracle:   oracle,
		logger:   logger,
	}
}

// Reconcile queries the session oracle and settles the payment if it has not
// been settled before. Safe under arbitrary re-invocation and concurrent
// calls for the same transaction: the ledger's unique index on transactionId
// is the correctness mechanism, the pre-check is only an optimization.
func (s *reconciliationServiceImpl) Reconcile(ctx context.Context, sessionID string) (*ReconcileResult, error) {
	if sessionID == "" {
		return nil, ErrInvalidSessionID
	}

	sess, err := s.oracle.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session lookup failed: %w", err)
	}

	if sess.PaymentStatus != models.PaymentStatusPaid {
		s.logger.Info("Checkout session not paid",
			zap.String("session_id", sessionID),
			zap.String("payment_status", sess.PaymentStatus),
		)
		return &ReconcileResult{Outcome: OutcomeNotPaid}, nil
	}

	transactionID := sess.PaymentIntentID
	if transactionID == "" || sess.ParcelID == "" {
		s.logger.Error("Paid session missing transaction or parcel metadata",
			zap.String("session_id", sessionID),
		)
		return nil, ErrInconsistentSession
	}
	parcelID, err := primitive.ObjectIDFromHex(sess.ParcelID)
	if err != nil {
		return nil, fmt.Errorf("%w: bad parcel id %q", ErrInconsistentSession, sess.ParcelID)
	}

	// Idempotency pre-check: repeated redirects and duplicate webhook
	// deliveries land here and return without writing.
	existing, err := s.payments.FindByTransactionID(ctx, transactionID)
	if err == nil {
		return &ReconcileResult{
			Outcome:       OutcomeAlreadySettled,
			TransactionID: transactionID,
			TrackingID:    existing.TrackingID,
		}, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("payment lookup failed: %w", err)
	}

	trackingID := GenerateTrackingID()

	matched, err := s.parcels.MarkPaid(ctx, parcelID, trackingID)
	if err != nil {
		return nil, fmt.Errorf("parcel update failed: %w", err)
	}
	if matched == 0 {
		// The parcel is either gone or no longer unpaid.
		parcel, err := s.parcels.FindByID(ctx, parcelID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrParcelNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("parcel lookup failed: %w", err)
		}

		if existing, err := s.payments.FindByTransactionID(ctx, transactionID); err == nil {
			return &ReconcileResult{
				Outcome:       OutcomeAlreadySettled,
				TransactionID: transactionID,
				TrackingID:    existing.TrackingID,
			}, nil
		} else if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("payment lookup failed: %w", err)
		}

		// Paid parcel with no ledger row: a prior call was interrupted
		// between the two writes. Finish its settlement with the tracking id
		// already on the parcel so both records stay in step.
		trackingID = parcel.TrackingID
	}

	payment := &models.Payment{
		TransactionID: transactionID,
		ParcelID:      parcelID,
		ParcelName:    sess.ParcelName,
		Amount:        float64(sess.AmountTotal) / 100,
		Currency:      sess.Currency,
		CustomerEmail: sess.CustomerEmail,
		PaymentStatus: models.PaymentStatusPaid,
		TrackingID:    trackingID,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		if errors.Is(err, repository.ErrDuplicateTransaction) {
			// Lost the insert race. The unique index is authoritative, so
			// re-read and report the winner's settlement.
			winner, err := s.payments.FindByTransactionID(ctx, transactionID)
			if err != nil {
				return nil, fmt.Errorf("payment re-read after duplicate insert failed: %w", err)
			}
			return &ReconcileResult{
				Outcome:       OutcomeAlreadySettled,
				TransactionID: transactionID,
				TrackingID:    winner.TrackingID,
			}, nil
		}
		return nil, fmt.Errorf("payment insert failed: %w", err)
	}

	s.logger.Info("Payment settled",
		zap.String("transaction_id", transactionID),
		zap.String("parcel_id", sess.ParcelID),
		zap.String("tracking_id", trackingID),
	)
	return &ReconcileResult{
		Outcome:       OutcomeSettled,
		TransactionID: transactionID,
		TrackingID:    trackingID,
	}, nil
}
