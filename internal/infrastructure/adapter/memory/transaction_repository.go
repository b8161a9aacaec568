package memory

import (
	"context"
	"sort"
	"time"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
	errs "github.com/amirhossein-jamali/credit-ledger/internal/domain/error"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/port/persistence"
)

type transactionRepository struct {
	store *Store
}

func (r *transactionRepository) Append(ctx context.Context, tx *entity.Transaction) error {
	defer r.store.write(ctx)()

	r.store.nextTxID++
	tx.ID = r.store.nextTxID
	r.store.transactions = append(r.store.transactions, tx.Clone())
	return nil
}

func (r *transactionRepository) List(ctx context.Context, userID string, filter persistence.TransactionFilter) ([]*entity.Transaction, int64, error) {
	defer r.store.read(ctx)()

	var matched []*entity.Transaction
	for _, tx := range r.store.transactions {
		if tx.UserID != userID {
			continue
		}
		if filter.Type != "" && tx.Type != filter.Type {
			continue
		}
		matched = append(matched, tx)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := int64(len(matched))
	start := filter.Offset
	if start > len(matched) {
		start = len(matched)
	}
	end := len(matched)
	if filter.Limit > 0 && start+filter.Limit < end {
		end = start + filter.Limit
	}

	page := make([]*entity.Transaction, 0, end-start)
	for _, tx := range matched[start:end] {
		page = append(page, tx.Clone())
	}
	return page, total, nil
}

func (r *transactionRepository) activeLocked(userID string, now time.Time) []*entity.Transaction {
	var grants []*entity.Transaction
	for _, tx := range r.store.transactions {
		if tx.UserID == userID && tx.IsActiveGrant(now) {
			grants = append(grants, tx)
		}
	}
	return grants
}

func (r *transactionRepository) ActiveGrants(ctx context.Context, userID string, now time.Time) ([]*entity.Transaction, error) {
	defer r.store.read(ctx)()

	active := r.activeLocked(userID, now)
	out := make([]*entity.Transaction, 0, len(active))
	for _, tx := range active {
		out = append(out, tx.Clone())
	}
	return out, nil
}

func (r *transactionRepository) SumActiveRemaining(ctx context.Context, userID string, now time.Time) (int64, error) {
	defer r.store.read(ctx)()

	var sum int64
	for _, tx := range r.activeLocked(userID, now) {
		sum += tx.Remaining()
	}
	return sum, nil
}

func (r *transactionRepository) ConsumeGrant(ctx context.Context, transactionID uint64, amount int64) error {
	defer r.store.write(ctx)()

	for _, tx := range r.store.transactions {
		if tx.ID != transactionID || tx.RemainingAmount == nil {
			continue
		}
		remaining := *tx.RemainingAmount - amount
		if remaining < 0 {
			remaining = 0
		}
		*tx.RemainingAmount = remaining
		return nil
	}
	return errs.ErrTransactionNotFound
}

func (r *transactionRepository) ExpiringGrants(ctx context.Context, userID string, now, until time.Time) ([]*entity.Transaction, error) {
	defer r.store.read(ctx)()

	var out []*entity.Transaction
	for _, tx := range r.activeLocked(userID, now) {
		if tx.ExpiresAt != nil && !tx.ExpiresAt.After(until) {
			out = append(out, tx.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ExpiresAt.Before(*out[j].ExpiresAt)
	})
	return out, nil
}

func (r *transactionRepository) SumByType(ctx context.Context, userID string) (map[entity.TransactionType]int64, error) {
	defer r.store.read(ctx)()

	sums := make(map[entity.TransactionType]int64)
	for _, tx := range r.store.transactions {
		if tx.UserID == userID {
			sums[tx.Type] += tx.Amount
		}
	}
	return sums, nil
}

func (r *transactionRepository) SumAmounts(ctx context.Context, userID string) (int64, error) {
	defer r.store.read(ctx)()

	var sum int64
	for _, tx := range r.store.transactions {
		if tx.UserID == userID {
			sum += tx.Amount
		}
	}
	return sum, nil
}
