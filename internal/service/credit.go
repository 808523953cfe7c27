package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/skylark-travel/flightpay/internal/domain"
	"github.com/skylark-travel/flightpay/internal/models"
	"github.com/skylark-travel/flightpay/internal/observability"
	"github.com/skylark-travel/flightpay/internal/repository"
	"go.uber.org/zap"
)

// CreditDraw is one allocation against a single grant.
type CreditDraw struct {
	CreditID uuid.UUID `json:"credit_id"`
	Amount   int64     `json:"amount"`
}

// CreditAllocation reports how a requested amount was covered.
type CreditAllocation struct {
	UserID    uuid.UUID    `json:"user_id"`
	BookingID uuid.UUID    `json:"booking_id"`
	Total     int64        `json:"total"`
	Draws     []CreditDraw `json:"draws"`
}

// GrantCreditParams describes a new credit grant.
type GrantCreditParams struct {
	UserID    uuid.UUID
	Amount    int64
	Source    string
	BookingID *uuid.UUID
	ExpiresAt *time.Time
}

// CreditService manages stored user credit. Consumption order is
// soonest-expiring first, then oldest created, to minimize value lost to
// expiry.
type CreditService struct {
	store QueryStore
	now   func() time.Time
}

func NewCreditService(store QueryStore) *CreditService {
	return &CreditService{store: store, now: time.Now}
}

// AddCredit records a grant. It never allocates.
func (s *CreditService) AddCredit(ctx context.Context, p GrantCreditParams) (*models.UserCredit, error) {
	if p.Amount <= 0 {
		return nil, fmt.Errorf("invalid credit amount: %d", p.Amount)
	}
	switch p.Source {
	case domain.CreditSourceRefund, domain.CreditSourcePromo, domain.CreditSourceCompensation, domain.CreditSourceBonus:
	default:
		return nil, fmt.Errorf("invalid credit source: %q", p.Source)
	}

	credit := &models.UserCredit{
		ID:        uuid.New(),
		UserID:    p.UserID,
		Amount:    p.Amount,
		Source:    p.Source,
		BookingID: p.BookingID,
		ExpiresAt: p.ExpiresAt,
	}
	if err := s.store.Queries().InsertUserCredit(ctx, credit); err != nil {
		return nil, err
	}
	return credit, nil
}

// AvailableBalance sums remaining value over the user's unexpired grants.
func (s *CreditService) AvailableBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.store.Queries().SpendableBalance(ctx, userID, s.now())
}

// UseCredit deducts the requested amount across the user's grants in one
// transaction. The grants are row-locked in allocation order, each draw is
// guarded so no single grant is overdrawn, and every draw gets its own
// CreditUsage row.
func (s *CreditService) UseCredit(ctx context.Context, userID uuid.UUID, amount int64, bookingID uuid.UUID) (*CreditAllocation, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("invalid credit amount: %d", amount)
	}

	alloc := &CreditAllocation{UserID: userID, BookingID: bookingID}
	err := s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		credits, err := qtx.ListSpendableCreditsForUpdate(ctx, userID, s.now())
		if err != nil {
			return err
		}

		var available int64
		for _, c := range credits {
			available += c.Remaining()
		}
		if available < amount {
			return ErrInsufficientBalance
		}

		remaining := amount
		for _, c := range credits {
			if remaining == 0 {
				break
			}
			draw := c.Remaining()
			if draw > remaining {
				draw = remaining
			}
			if draw <= 0 {
				continue
			}

			rows, err := qtx.ApplyCreditDraw(ctx, c.ID, draw)
			if err != nil {
				return err
			}
			if err := requireExactlyOne(rows, "apply credit draw"); err != nil {
				return err
			}

			usage := &models.CreditUsage{
				ID:         uuid.New(),
				CreditID:   c.ID,
				BookingID:  bookingID,
				UserID:     userID,
				AmountUsed: draw,
			}
			if err := qtx.InsertCreditUsage(ctx, usage); err != nil {
				return err
			}

			alloc.Draws = append(alloc.Draws, CreditDraw{CreditID: c.ID, Amount: draw})
			alloc.Total += draw
			remaining -= draw
		}

		if remaining != 0 {
			// The balance check above makes this unreachable unless grants
			// changed concurrently; the lock order prevents that.
			return fmt.Errorf("credit allocation short by %d", remaining)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return alloc, nil
}

// ProcessExpiredCredits marks past-expiry grants with remaining balance as
// fully used, excluding them from future allocation. Usage history stays.
func (s *CreditService) ProcessExpiredCredits(ctx context.Context) (int64, error) {
	expired, err := s.store.Queries().ExpireUserCredits(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		observability.AddExpiredCredits(expired)
		zap.L().Info("expired user credits", zap.Int64("count", expired))
	}
	return expired, nil
}
