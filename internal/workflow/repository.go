package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TransactionFilter narrows transaction listings. Products restricts results
// to the domains the caller may view.
type TransactionFilter struct {
	Products []ProductType
	Status   Status
	MakerID  string
	Search   string
	Limit    int
	Offset   int
}

// QueueFilter narrows queue listings. ActiveOnly excludes items whose
// transaction was deleted or has left the reviewable states; those items are
// retained for audit but filtered out of working views.
type QueueFilter struct {
	Status     QueueStatus
	Product    ProductType
	MakerID    string
	ActiveOnly bool
	Limit      int
	Offset     int
}

// DecideUpdate carries the single permitted mutation of a queue item.
type DecideUpdate struct {
	ItemID      uuid.UUID
	Status      QueueStatus
	CheckerID   string
	CheckerName string
	Comments    string
	DecidedAt   time.Time
}

// TxRepository exposes transactional write operations. The orchestrator is
// the only caller; the paired queue/transaction writes of a decision always
// run inside one WithTx closure.
type TxRepository interface {
	InsertTransaction(ctx context.Context, tx Transaction) error
	// UpdateTransaction persists tx guarded by expectedVersion and returns
	// ErrConflict when another writer got there first.
	UpdateTransaction(ctx context.Context, tx Transaction, expectedVersion int64) error
	DeleteTransaction(ctx context.Context, id uuid.UUID) error
	InsertQueueItem(ctx context.Context, item QueueItem) error
	// DecideQueueItem applies the decision only while the item is still
	// pending and returns ErrAlreadyDecided when it is not, so a lost race
	// surfaces instead of silently overwriting the first decision.
	DecideQueueItem(ctx context.Context, update DecideUpdate) error
}

// RepositoryPort describes the storage operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetTransaction(ctx context.Context, id uuid.UUID) (Transaction, error)
	GetQueueItem(ctx context.Context, id uuid.UUID) (QueueItem, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, int, error)
	// ListQueueItems returns items newest-first by submission time; the
	// underlying store keeps stable insertion order for audit replay.
	ListQueueItems(ctx context.Context, filter QueueFilter) ([]QueueItem, int, error)
	PendingCountByProduct(ctx context.Context) (map[ProductType]int, error)
	HasPendingQueueItem(ctx context.Context, transactionID uuid.UUID) (bool, error)
}
