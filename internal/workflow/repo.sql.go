package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradewind-bank/tradewind/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const transactionColumns = `id, reference, product, customer_id, customer_name, amount, currency, description, priority, status, created_by, last_maker_id, assignee_id, version, created_at, updated_at, completed_at`

const queueItemColumns = `id, transaction_id, entity_type, reference, customer_name, amount, currency, priority, maker_id, maker_name, maker_department, maker_comments, checker_id, checker_name, checker_comments, status, submitted_at, decided_at`

// GetTransaction fetches a transaction by ID.
func (r *Repository) GetTransaction(ctx context.Context, id uuid.UUID) (Transaction, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id=$1`, id)
	return scanTransaction(row)
}

// GetQueueItem fetches a queue item by ID.
func (r *Repository) GetQueueItem(ctx context.Context, id uuid.UUID) (QueueItem, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+queueItemColumns+` FROM checker_queue_items WHERE id=$1`, id)
	return scanQueueItem(row)
}

// ListTransactions returns filtered transactions newest-first plus the total
// count for pagination.
func (r *Repository) ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, int, error) {
	where := []string{"TRUE"}
	args := []any{}
	if len(filter.Products) > 0 {
		products := make([]string, len(filter.Products))
		for i, p := range filter.Products {
			products[i] = string(p)
		}
		args = append(args, products)
		where = append(where, fmt.Sprintf("product = ANY($%d)", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.MakerID != "" {
		args = append(args, filter.MakerID)
		where = append(where, fmt.Sprintf("created_by = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = append(where, fmt.Sprintf("(reference ILIKE $%d OR customer_name ILIKE $%d)", len(args), len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM transactions WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, transactionColumns, cond, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var txs []Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return txs, total, nil
}

// ListQueueItems returns filtered queue items newest-first by submission.
func (r *Repository) ListQueueItems(ctx context.Context, filter QueueFilter) ([]QueueItem, int, error) {
	where := []string{"TRUE"}
	args := []any{}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Product != "" {
		args = append(args, string(filter.Product))
		where = append(where, fmt.Sprintf("entity_type = $%d", len(args)))
	}
	if filter.MakerID != "" {
		args = append(args, filter.MakerID)
		where = append(where, fmt.Sprintf("maker_id = $%d", len(args)))
	}
	if filter.ActiveOnly {
		where = append(where, `EXISTS (SELECT 1 FROM transactions t WHERE t.id = checker_queue_items.transaction_id AND t.status IN ('pending','under_review'))`)
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM checker_queue_items WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM checker_queue_items WHERE %s ORDER BY submitted_at DESC, id DESC LIMIT $%d OFFSET $%d`, queueItemColumns, cond, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []QueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// PendingCountByProduct groups still-pending queue items by entity type.
// Items orphaned by a deleted or cancelled transaction do not count.
func (r *Repository) PendingCountByProduct(ctx context.Context) (map[ProductType]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT q.entity_type, COUNT(*)
FROM checker_queue_items q
JOIN transactions t ON t.id = q.transaction_id
WHERE q.status=$1 AND t.status IN ('pending','under_review')
GROUP BY q.entity_type`, string(QueuePending))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[ProductType]int)
	for rows.Next() {
		var entity string
		var count int
		if err := rows.Scan(&entity, &count); err != nil {
			return nil, err
		}
		counts[ProductType(entity)] = count
	}
	return counts, rows.Err()
}

// ListStalePending returns still-pending queue items submitted before the
// cutoff, oldest first, for the reminder job. Orphaned items are skipped the
// same way the active queue views skip them.
func (r *Repository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]QueueItem, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT %s FROM checker_queue_items
WHERE status=$1 AND submitted_at < $2
  AND EXISTS (SELECT 1 FROM transactions t WHERE t.id = checker_queue_items.transaction_id AND t.status IN ('pending','under_review'))
ORDER BY submitted_at ASC LIMIT $3`, queueItemColumns)
	rows, err := r.pool.Query(ctx, query, string(QueuePending), cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []QueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// HasPendingQueueItem reports whether a transaction already has an in-flight
// submission.
func (r *Repository) HasPendingQueueItem(ctx context.Context, transactionID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM checker_queue_items WHERE transaction_id=$1 AND status=$2)`, transactionID, string(QueuePending)).Scan(&exists)
	return exists, err
}

// Transactional writes

func (t *txRepo) InsertTransaction(ctx context.Context, tx Transaction) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO transactions (`+transactionColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		tx.ID, tx.Reference, string(tx.Product), tx.CustomerID, tx.CustomerName, tx.Amount, tx.Currency,
		tx.Description, string(tx.Priority), string(tx.Status), tx.CreatedBy, tx.LastMakerID, tx.AssigneeID,
		tx.Version, tx.CreatedAt, tx.UpdatedAt, tx.CompletedAt)
	return mapUniqueViolation(err)
}

func (t *txRepo) UpdateTransaction(ctx context.Context, tx Transaction, expectedVersion int64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE transactions
SET customer_id=$2, customer_name=$3, amount=$4, currency=$5, description=$6, priority=$7, status=$8,
    last_maker_id=$9, assignee_id=$10, version=$11, updated_at=$12, completed_at=$13
WHERE id=$1 AND version=$14`,
		tx.ID, tx.CustomerID, tx.CustomerName, tx.Amount, tx.Currency, tx.Description, string(tx.Priority),
		string(tx.Status), tx.LastMakerID, tx.AssigneeID, tx.Version, tx.UpdatedAt, tx.CompletedAt, expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

func (t *txRepo) DeleteTransaction(ctx context.Context, id uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM transactions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) InsertQueueItem(ctx context.Context, item QueueItem) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO checker_queue_items (`+queueItemColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		item.ID, item.TransactionID, string(item.EntityType), item.Reference, item.CustomerName, item.Amount,
		item.Currency, string(item.Priority), item.MakerID, item.MakerName, item.MakerDepartment,
		item.MakerComments, item.CheckerID, item.CheckerName, item.CheckerComments, string(item.Status),
		item.SubmittedAt, item.DecidedAt)
	return mapUniqueViolation(err)
}

func (t *txRepo) DecideQueueItem(ctx context.Context, update DecideUpdate) error {
	tag, err := t.tx.Exec(ctx, `UPDATE checker_queue_items
SET status=$2, checker_id=$3, checker_name=$4, checker_comments=$5, decided_at=$6
WHERE id=$1 AND status=$7`,
		update.ItemID, string(update.Status), update.CheckerID, update.CheckerName, update.Comments,
		update.DecidedAt, string(QueuePending))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyDecided
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (Transaction, error) {
	var tx Transaction
	var product, priority, status string
	// assignee_id predates the NOT NULL default in older schemas, so rows
	// provisioned outside the service may carry NULL there.
	var assignee *string
	err := row.Scan(&tx.ID, &tx.Reference, &product, &tx.CustomerID, &tx.CustomerName, &tx.Amount,
		&tx.Currency, &tx.Description, &priority, &status, &tx.CreatedBy, &tx.LastMakerID, &assignee,
		&tx.Version, &tx.CreatedAt, &tx.UpdatedAt, &tx.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrNotFound
		}
		return Transaction{}, err
	}
	if assignee != nil {
		tx.AssigneeID = *assignee
	}
	tx.Product = ProductType(product)
	tx.Priority = Priority(priority)
	tx.Status = Status(status)
	return tx, nil
}

func scanQueueItem(row rowScanner) (QueueItem, error) {
	var item QueueItem
	var entity, priority, status string
	err := row.Scan(&item.ID, &item.TransactionID, &entity, &item.Reference, &item.CustomerName, &item.Amount,
		&item.Currency, &priority, &item.MakerID, &item.MakerName, &item.MakerDepartment, &item.MakerComments,
		&item.CheckerID, &item.CheckerName, &item.CheckerComments, &status, &item.SubmittedAt, &item.DecidedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return QueueItem{}, ErrNotFound
		}
		return QueueItem{}, err
	}
	item.EntityType = ProductType(entity)
	item.Priority = Priority(priority)
	item.Status = QueueStatus(status)
	return item, nil
}

func mapUniqueViolation(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrConflict
	}
	return err
}
