// Package memory provides an in-memory implementation of the persistence ports.
// A unit of work holds the store's write lock for its whole duration and restores
// a snapshot when it fails, so concurrent units for any user are fully serialized.
package memory

import (
	"context"
	"sync"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/port/persistence"
)

type unitKey struct{}

// Store keeps balances, the transaction log and the outbox in memory
type Store struct {
	mu           sync.RWMutex
	balances     map[string]*entity.Balance
	transactions []*entity.Transaction
	outbox       []*entity.OutboxMessage
	nextTxID     uint64
	nextOutboxID uint64
	timeProvider coreport.TimeProvider
}

// NewStore creates an empty store
func NewStore(timeProvider coreport.TimeProvider) *Store {
	return &Store{
		balances:     make(map[string]*entity.Balance),
		timeProvider: timeProvider,
	}
}

var _ persistence.UnitOfWork = (*Store)(nil)

type snapshot struct {
	balances     map[string]*entity.Balance
	transactions []*entity.Transaction
	outbox       []*entity.OutboxMessage
	nextTxID     uint64
	nextOutboxID uint64
}

// Execute runs fn with the store locked and rolls every change back if fn fails
func (s *Store) Execute(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if s.inUnit(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshotLocked()
	defer func() {
		if r := recover(); r != nil {
			s.restoreLocked(snap)
			panic(r)
		}
		if err != nil {
			s.restoreLocked(snap)
		}
	}()

	return fn(context.WithValue(ctx, unitKey{}, s))
}

// GetBalanceRepository returns the balance repository
func (s *Store) GetBalanceRepository(_ context.Context) persistence.BalanceRepository {
	return &balanceRepository{store: s}
}

// GetTransactionRepository returns the transaction repository
func (s *Store) GetTransactionRepository(_ context.Context) persistence.TransactionRepository {
	return &transactionRepository{store: s}
}

// GetOutboxRepository returns the outbox repository
func (s *Store) GetOutboxRepository(_ context.Context) persistence.OutboxRepository {
	return &outboxRepository{store: s}
}

func (s *Store) inUnit(ctx context.Context) bool {
	owner, ok := ctx.Value(unitKey{}).(*Store)
	return ok && owner == s
}

// read takes the read lock unless ctx already owns the store
func (s *Store) read(ctx context.Context) func() {
	if s.inUnit(ctx) {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

// write takes the write lock unless ctx already owns the store
func (s *Store) write(ctx context.Context) func() {
	if s.inUnit(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) snapshotLocked() snapshot {
	balances := make(map[string]*entity.Balance, len(s.balances))
	for k, v := range s.balances {
		b := *v
		balances[k] = &b
	}
	transactions := make([]*entity.Transaction, len(s.transactions))
	for i, tx := range s.transactions {
		transactions[i] = tx.Clone()
	}
	outbox := make([]*entity.OutboxMessage, len(s.outbox))
	for i, msg := range s.outbox {
		m := *msg
		outbox[i] = &m
	}
	return snapshot{
		balances:     balances,
		transactions: transactions,
		outbox:       outbox,
		nextTxID:     s.nextTxID,
		nextOutboxID: s.nextOutboxID,
	}
}

func (s *Store) restoreLocked(snap snapshot) {
	s.balances = snap.balances
	s.transactions = snap.transactions
	s.outbox = snap.outbox
	s.nextTxID = snap.nextTxID
	s.nextOutboxID = snap.nextOutboxID
}
