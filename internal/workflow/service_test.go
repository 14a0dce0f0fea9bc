package workflow

import (
	"context"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tradewind-bank/tradewind/internal/rbac"
	"github.com/tradewind-bank/tradewind/internal/shared"
)

type memoryRepo struct {
	txs       map[uuid.UUID]Transaction
	items     map[uuid.UUID]QueueItem
	itemOrder []uuid.UUID
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		txs:   make(map[uuid.UUID]Transaction),
		items: make(map[uuid.UUID]QueueItem),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetTransaction(ctx context.Context, id uuid.UUID) (Transaction, error) {
	tx, ok := r.txs[id]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	return tx, nil
}

func (r *memoryRepo) GetQueueItem(ctx context.Context, id uuid.UUID) (QueueItem, error) {
	item, ok := r.items[id]
	if !ok {
		return QueueItem{}, ErrNotFound
	}
	return item, nil
}

func (r *memoryRepo) ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, int, error) {
	allowed := make(map[ProductType]bool, len(filter.Products))
	for _, p := range filter.Products {
		allowed[p] = true
	}
	var txs []Transaction
	for _, tx := range r.txs {
		if len(allowed) > 0 && !allowed[tx.Product] {
			continue
		}
		if filter.Status != "" && tx.Status != filter.Status {
			continue
		}
		if filter.MakerID != "" && tx.CreatedBy != filter.MakerID {
			continue
		}
		txs = append(txs, tx)
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].CreatedAt.After(txs[j].CreatedAt) })
	return txs, len(txs), nil
}

func (r *memoryRepo) ListQueueItems(ctx context.Context, filter QueueFilter) ([]QueueItem, int, error) {
	var items []QueueItem
	for i := len(r.itemOrder) - 1; i >= 0; i-- {
		item := r.items[r.itemOrder[i]]
		if filter.Status != "" && item.Status != filter.Status {
			continue
		}
		if filter.Product != "" && item.EntityType != filter.Product {
			continue
		}
		if filter.MakerID != "" && item.MakerID != filter.MakerID {
			continue
		}
		if filter.ActiveOnly && !r.itemActive(item) {
			continue
		}
		items = append(items, item)
	}
	return items, len(items), nil
}

func (r *memoryRepo) itemActive(item QueueItem) bool {
	tx, ok := r.txs[item.TransactionID]
	if !ok {
		return false
	}
	return tx.Status == StatusPending || tx.Status == StatusUnderReview
}

func (r *memoryRepo) PendingCountByProduct(ctx context.Context) (map[ProductType]int, error) {
	counts := make(map[ProductType]int)
	for _, item := range r.items {
		if item.Status != QueuePending || !r.itemActive(item) {
			continue
		}
		counts[item.EntityType]++
	}
	return counts, nil
}

func (r *memoryRepo) HasPendingQueueItem(ctx context.Context, transactionID uuid.UUID) (bool, error) {
	for _, item := range r.items {
		if item.TransactionID == transactionID && item.Status == QueuePending {
			return true, nil
		}
	}
	return false, nil
}

func (t *memoryTx) InsertTransaction(ctx context.Context, tx Transaction) error {
	t.repo.txs[tx.ID] = tx
	return nil
}

func (t *memoryTx) UpdateTransaction(ctx context.Context, tx Transaction, expectedVersion int64) error {
	current, ok := t.repo.txs[tx.ID]
	if !ok || current.Version != expectedVersion {
		return ErrConflict
	}
	t.repo.txs[tx.ID] = tx
	return nil
}

func (t *memoryTx) DeleteTransaction(ctx context.Context, id uuid.UUID) error {
	if _, ok := t.repo.txs[id]; !ok {
		return ErrNotFound
	}
	delete(t.repo.txs, id)
	return nil
}

func (t *memoryTx) InsertQueueItem(ctx context.Context, item QueueItem) error {
	t.repo.items[item.ID] = item
	t.repo.itemOrder = append(t.repo.itemOrder, item.ID)
	return nil
}

func (t *memoryTx) DecideQueueItem(ctx context.Context, update DecideUpdate) error {
	item, ok := t.repo.items[update.ItemID]
	if !ok || item.Status != QueuePending {
		return ErrAlreadyDecided
	}
	item.Status = update.Status
	item.CheckerID = update.CheckerID
	item.CheckerName = update.CheckerName
	item.CheckerComments = update.Comments
	decidedAt := update.DecidedAt
	item.DecidedAt = &decidedAt
	t.repo.items[update.ItemID] = item
	return nil
}

type auditRecorder struct {
	logs []shared.AuditLog
}

func (a *auditRecorder) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func newTestService() (*Service, *memoryRepo, *auditRecorder) {
	repo := newMemoryRepo()
	audit := &auditRecorder{}
	return NewService(repo, audit, nil), repo, audit
}

var (
	ngozi   = rbac.Actor{ID: "u-ngozi", Name: "Ngozi", Role: rbac.RoleMaker, Department: "Trade Finance"}
	adebayo = rbac.Actor{ID: "u-adebayo", Name: "Adebayo", Role: rbac.RoleChecker, Department: "Trade Finance"}
	fatima  = rbac.Actor{ID: "u-fatima", Name: "Fatima", Role: rbac.RoleChecker, Department: "Trade Finance"}
)

func formMInput() CreateInput {
	return CreateInput{
		Product:      ProductFormM,
		CustomerID:   "cust-001",
		CustomerName: "Dangote Industries",
		Amount:       15750000,
		Currency:     "USD",
		Description:  "Form M for Q3 machinery imports",
		Priority:     PriorityHigh,
		Comments:     "Please review before Friday",
	}
}

func TestMakerCreateEnqueues(t *testing.T) {
	svc, repo, audit := newTestService()

	tx, item, err := svc.Create(context.Background(), ngozi, formMInput())
	require.NoError(t, err)

	require.Equal(t, StatusPending, tx.Status)
	require.Equal(t, ProductFormM, tx.Product)
	require.Equal(t, "u-ngozi", tx.CreatedBy)
	require.Equal(t, "u-ngozi", tx.LastMakerID)
	require.NotEmpty(t, tx.Reference)
	require.Regexp(t, `^FM-\d{4}-[0-9A-F]{6}$`, tx.Reference)

	require.Equal(t, QueuePending, item.Status)
	require.Equal(t, tx.ID, item.TransactionID)
	require.Equal(t, "Ngozi", item.MakerName)
	require.Equal(t, "Trade Finance", item.MakerDepartment)
	require.Equal(t, tx.Amount, item.Amount)
	require.Equal(t, "USD", item.Currency)
	require.Equal(t, "Dangote Industries", item.CustomerName)

	require.Len(t, repo.items, 1)
	require.NotEmpty(t, audit.logs)
	require.Equal(t, "TX_CREATE", audit.logs[0].Action)
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := newTestService()

	input := formMInput()
	input.Amount = 0
	_, _, err := svc.Create(context.Background(), ngozi, input)
	require.ErrorIs(t, err, ErrValidation)

	input = formMInput()
	input.Currency = "US"
	_, _, err = svc.Create(context.Background(), ngozi, input)
	require.ErrorIs(t, err, ErrValidation)

	input = formMInput()
	input.Product = ProductType("crypto_swap")
	_, _, err = svc.Create(context.Background(), ngozi, input)
	require.ErrorIs(t, err, ErrValidation)
}

func TestCreateUnauthorizedDomain(t *testing.T) {
	svc, repo, _ := newTestService()

	dealer := rbac.Actor{ID: "u-dealer", Name: "Tunde", Role: rbac.RoleDealer}
	_, _, err := svc.Create(context.Background(), dealer, formMInput())
	require.ErrorIs(t, err, ErrUnauthorized)
	require.Empty(t, repo.txs)

	fx := formMInput()
	fx.Product = ProductFXSales
	_, _, err = svc.Create(context.Background(), dealer, fx)
	require.NoError(t, err)
}

func TestCheckerApprove(t *testing.T) {
	svc, _, _ := newTestService()
	tx, item, err := svc.Create(context.Background(), ngozi, formMInput())
	require.NoError(t, err)

	decided, updatedTx, err := svc.Decide(context.Background(), adebayo, item.ID, DecisionApprove, "Looks good")
	require.NoError(t, err)

	require.Equal(t, QueueApproved, decided.Status)
	require.Equal(t, StatusApproved, updatedTx.Status)
	require.Equal(t, tx.ID, updatedTx.ID)
	require.Equal(t, "u-adebayo", decided.CheckerID)
	require.Equal(t, "Looks good", decided.CheckerComments)
	require.NotNil(t, decided.DecidedAt)
	require.Nil(t, updatedTx.CompletedAt, "approved is not a terminal outcome")
}

func TestMakerCannotDecideOwnSubmission(t *testing.T) {
	svc, repo, _ := newTestService()
	_, item, err := svc.Create(context.Background(), ngozi, formMInput())
	require.NoError(t, err)

	_, _, err = svc.Decide(context.Background(), ngozi, item.ID, DecisionApprove, "")
	require.ErrorIs(t, err, ErrSegregationOfDuties)
	require.NotErrorIs(t, err, ErrUnauthorized)

	stored := repo.items[item.ID]
	require.Equal(t, QueuePending, stored.Status, "no state change on violation")
}

func TestSegregationBindsEvenSuperAdministrator(t *testing.T) {
	svc, _, _ := newTestService()

	super := rbac.Actor{ID: "u-super", Name: "Amaka", Role: rbac.RoleSuperAdministrator}
	_, item, err := svc.Create(context.Background(), super, formMInput())
	require.NoError(t, err)

	_, _, err = svc.Decide(context.Background(), super, item.ID, DecisionApprove, "self-approval")
	require.ErrorIs(t, err, ErrSegregationOfDuties)
}

func TestMostRecentEditorBarredFromChecking(t *testing.T) {
	svc, _, _ := newTestService()
	tx, item, err := svc.Create(context.Background(), ngozi, formMInput())
	require.NoError(t, err)

	// Treasurer holds both edit and approve permissions; after editing they
	// become the most recent maker and must not approve.
	treasurer := rbac.Actor{ID: "u-musa", Name: "Musa", Role: rbac.RoleTreasurer}
	amount := 16000000.0
	_, err = svc.Edit(context.Background(), treasurer, tx.ID, EditInput{Amount: &amount})
	require.NoError(t, err)

	_, _, err = svc.Decide(context.Background(), treasurer, item.ID, DecisionApprove, "")
	require.ErrorIs(t, err, ErrSegregationOfDuties)

	// A different checker may still approve.
	_, _, err = svc.Decide(context.Background(), adebayo, item.ID, DecisionApprove, "")
	require.NoError(t, err)
}

func TestDecisionComments(t *testing.T) {
	svc, repo, _ := newTestService()
	_, item, err := svc.Create(context.Background(), ngozi, formMInput())
	require.NoError(t, err)

	_, _, err = svc.Decide(context.Background(), fatima, item.ID, DecisionReject, "")
	require.ErrorIs(t, err, ErrValidation)

	_, _, err = svc.Decide(context.Background(), fatima, item.ID, DecisionSendBack, "   ")
	require.ErrorIs(t, err, ErrValidation)

	require.Equal(t, QueuePending, repo.items[item.ID].Status)

	_, _, err = svc.Decide(context.Background(), fatima, item.ID, DecisionApprove, "")
	require.NoError(t, err, "comments are optional for approve")
}

func TestDecideTwiceFails(t *testing.T) {
	svc, repo, _ := newTestService()
	tx, item, err := svc.Create(context.Background(), ngozi, formMInput())
	require.NoError(t, err)

	_, _, err = svc.Decide(context.Background(), adebayo, item.ID, DecisionApprove, "ok")
	require.NoError(t, err)

	_, _, err = svc.Decide(context.Background(), fatima, item.ID, DecisionReject, "changed my mind")
	require.ErrorIs(t, err, ErrAlreadyDecided)

	require.Equal(t, StatusApproved, repo.txs[tx.ID].Status, "only the first decision sticks")
	require.Equal(t, QueueApproved, repo.items[item.ID].Status)
}

func TestDecideTwiceReportsAttemptedEvent(t *testing.T) {
	svc, _, _ := newTestService()
	_, item, err := svc.Create(context.Background(), ngozi, formMInput())
	require.NoError(t, err)

	_, _, err = svc.Decide(context.Background(), adebayo, item.ID, DecisionApprove, "ok")
	require.NoError(t, err)

	_, _, err = svc.Decide(context.Background(), fatima, item.ID, DecisionSendBack, "needs BVN")
	require.ErrorIs(t, err, ErrAlreadyDecided)

	var intent *IntentError
	require.ErrorAs(t, err, &intent)
	require.Equal(t, EventSendBack, intent.Event, "conflict error names the decision the checker attempted")
}

func TestQueueAndTransactionStayPaired(t *testing.T) {
	pairs := []struct {
		decision Decision
		comments string
		queue    QueueStatus
		tx       Status
	}{
		{DecisionApprove, "", QueueApproved, StatusApproved},
		{DecisionReject, "incomplete documents", QueueRejected, StatusRejected},
		{DecisionSendBack, "Missing BVN", QueueSentBack, StatusSentBack},
	}
	for _, pair := range pairs {
		svc, repo, _ := newTestService()
		tx, item, err := svc.Create(context.Background(), ngozi, formMInput())
		require.NoError(t, err)

		decided, updatedTx, err := svc.Decide(context.Background(), fatima, item.ID, pair.decision, pair.comments)
		require.NoError(t, err)
		require.Equal(t, pair.queue, decided.Status)
		require.Equal(t, pair.tx, updatedTx.Status)
		require.Equal(t, pair.queue, repo.items[item.ID].Status)
		require.Equal(t, pair.tx, repo.txs[tx.ID].Status)
	}
}

func TestRejectStampsCompletedAt(t *testing.T) {
	svc, _, _ := newTestService()
	_, item, err := svc.Create(context.Background(), ngozi, formMInput())
	require.NoError(t, err)

	_, tx, err := svc.Decide(context.Background(), fatima, item.ID, DecisionReject, "wrong HS code")
	require.NoError(t, err)
	require.NotNil(t, tx.CompletedAt, "rejected is a terminal outcome")
}

func TestSendBackEditResubmit(t *testing.T) {
	svc, repo, _ := newTestService()
	tx, first, err := svc.Create(context.Background(), ngozi, formMInput())
	require.NoError(t, err)

	_, sentBack, err := svc.Decide(context.Background(), fatima, first.ID, DecisionSendBack, "Missing BVN")
	require.NoError(t, err)
	require.Equal(t, StatusSentBack, sentBack.Status)

	desc := "Form M with BVN attached"
	edited, err := svc.Edit(context.Background(), ngozi, tx.ID, EditInput{Description: &desc})
	require.NoError(t, err)
	require.Equal(t, StatusSentBack, edited.Status, "editing a sent-back transaction does not resubmit it")

	resubmitted, second, err := svc.Resubmit(context.Background(), ngozi, tx.ID, "BVN attached")
	require.NoError(t, err)
	require.Equal(t, StatusPending, resubmitted.Status)
	require.NotEqual(t, first.ID, second.ID, "resubmission creates a distinct item")
	require.Equal(t, tx.ID, second.TransactionID)

	// The decided first-round item is retained untouched for audit.
	firstStored := repo.items[first.ID]
	require.Equal(t, QueueSentBack, firstStored.Status)
	require.Equal(t, "Missing BVN", firstStored.CheckerComments)

	_, _, err = svc.Resubmit(context.Background(), ngozi, tx.ID, "again")
	require.ErrorIs(t, err, ErrIllegalTransition, "already pending")
}

func TestTerminalStatesAreImmutable(t *testing.T) {
	svc, _, _ := newTestService()
	tx, item, err := svc.Create(context.Background(), ngozi, formMInput())
	require.NoError(t, err)
	_, _, err = svc.Decide(context.Background(), fatima, item.ID, DecisionReject, "not viable")
	require.NoError(t, err)

	amount := 1.0
	_, err = svc.Edit(context.Background(), ngozi, tx.ID, EditInput{Amount: &amount})
	require.ErrorIs(t, err, ErrIllegalTransition)

	_, err = svc.Cancel(context.Background(), ngozi, tx.ID)
	require.ErrorIs(t, err, ErrIllegalTransition)

	_, err = svc.Complete(context.Background(), adebayo, tx.ID)
	require.ErrorIs(t, err, ErrIllegalTransition)

	_, _, err = svc.Resubmit(context.Background(), ngozi, tx.ID, "retry")
	require.ErrorIs(t, err, ErrIllegalTransition)
}

func TestApprovedCompletes(t *testing.T) {
	svc, _, _ := newTestService()
	tx, item, err := svc.Create(context.Background(), ngozi, formMInput())
	require.NoError(t, err)
	_, _, err = svc.Decide(context.Background(), adebayo, item.ID, DecisionApprove, "")
	require.NoError(t, err)

	backOffice := rbac.Actor{ID: "u-bola", Name: "Bola", Role: rbac.RoleBackOffice}
	completed, err := svc.Complete(context.Background(), backOffice, tx.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)

	_, err = svc.Complete(context.Background(), backOffice, tx.ID)
	require.ErrorIs(t, err, ErrIllegalTransition)
}

func TestDuplicateProducesUntrackedDraft(t *testing.T) {
	svc, repo, _ := newTestService()
	tx, _, err := svc.Create(context.Background(), ngozi, formMInput())
	require.NoError(t, err)

	dup, err := svc.Duplicate(context.Background(), ngozi, tx.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, dup.Status)
	require.NotEqual(t, tx.ID, dup.ID)
	require.NotEqual(t, tx.Reference, dup.Reference)
	require.Equal(t, tx.Amount, dup.Amount)

	require.Equal(t, StatusPending, repo.txs[tx.ID].Status, "source untouched")
	require.Len(t, repo.items, 1, "no queue entry for a draft")
}

func TestDeleteRules(t *testing.T) {
	svc, repo, _ := newTestService()
	tx, item, err := svc.Create(context.Background(), ngozi, formMInput())
	require.NoError(t, err)
	_, _, err = svc.Decide(context.Background(), adebayo, item.ID, DecisionApprove, "")
	require.NoError(t, err)

	err = svc.Delete(context.Background(), ngozi, tx.ID)
	require.ErrorIs(t, err, ErrIllegalTransition, "approved transactions cannot be deleted")

	tx2, item2, err := svc.Create(context.Background(), ngozi, formMInput())
	require.NoError(t, err)
	require.NoError(t, svc.Delete(context.Background(), ngozi, tx2.ID))
	_, err = svc.Get(context.Background(), ngozi, tx2.ID)
	require.ErrorIs(t, err, ErrNotFound)

	// The orphaned queue item survives for audit but leaves active views.
	require.Contains(t, repo.items, item2.ID)
	counts, err := repo.PendingCountByProduct(context.Background())
	require.NoError(t, err)
	require.Zero(t, counts[ProductFormM])
}

func TestDecideOnDeletedTransaction(t *testing.T) {
	svc, _, _ := newTestService()
	tx, item, err := svc.Create(context.Background(), ngozi, formMInput())
	require.NoError(t, err)
	require.NoError(t, svc.Delete(context.Background(), ngozi, tx.ID))

	_, _, err = svc.Decide(context.Background(), adebayo, item.ID, DecisionApprove, "")
	require.ErrorIs(t, err, ErrIllegalTransition)
}

func TestPendingCountsByProduct(t *testing.T) {
	svc, _, _ := newTestService()
	_, _, err := svc.Create(context.Background(), ngozi, formMInput())
	require.NoError(t, err)
	_, _, err = svc.Create(context.Background(), ngozi, formMInput())
	require.NoError(t, err)

	fx := formMInput()
	fx.Product = ProductFXSales
	_, _, err = svc.Create(context.Background(), ngozi, fx)
	require.NoError(t, err)

	counts, err := svc.PendingCounts(context.Background(), adebayo)
	require.NoError(t, err)
	require.Equal(t, 2, counts[ProductFormM])
	require.Equal(t, 1, counts[ProductFXSales])

	maker := rbac.Actor{ID: "u-x", Name: "X", Role: rbac.RoleMaker}
	_, err = svc.PendingCounts(context.Background(), maker)
	require.NoError(t, err, "makers see badges through dashboard:view")

	nobody := rbac.Actor{ID: "u-y", Name: "Y", Role: rbac.RoleMaker, Overrides: []string{}}
	_, err = svc.PendingCounts(context.Background(), nobody)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestQueueListingNewestFirst(t *testing.T) {
	svc, _, _ := newTestService()
	_, first, err := svc.Create(context.Background(), ngozi, formMInput())
	require.NoError(t, err)
	_, second, err := svc.Create(context.Background(), ngozi, formMInput())
	require.NoError(t, err)

	items, total, err := svc.ListQueue(context.Background(), adebayo, QueueFilter{Status: QueuePending})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Equal(t, second.ID, items[0].ID)
	require.Equal(t, first.ID, items[1].ID)

	_, _, err = svc.ListQueue(context.Background(), ngozi, QueueFilter{})
	require.ErrorIs(t, err, ErrUnauthorized, "makers lack queue:view")
}

func TestListRestrictedToViewableDomains(t *testing.T) {
	svc, _, _ := newTestService()
	_, _, err := svc.Create(context.Background(), ngozi, formMInput())
	require.NoError(t, err)

	fx := formMInput()
	fx.Product = ProductFXSales
	_, _, err = svc.Create(context.Background(), ngozi, fx)
	require.NoError(t, err)

	dealer := rbac.Actor{ID: "u-dealer", Name: "Tunde", Role: rbac.RoleDealer}
	txs, total, err := svc.List(context.Background(), dealer, TransactionFilter{})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, ProductFXSales, txs[0].Product)

	// Asking for a domain outside the dealer's view yields nothing.
	txs, total, err = svc.List(context.Background(), dealer, TransactionFilter{Products: []ProductType{ProductFormM}})
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, txs)
}

func TestEditConflictOnStaleVersion(t *testing.T) {
	svc, repo, _ := newTestService()
	tx, _, err := svc.Create(context.Background(), ngozi, formMInput())
	require.NoError(t, err)

	// Another writer bumps the version behind our back.
	stored := repo.txs[tx.ID]
	stored.Version++
	repo.txs[tx.ID] = stored

	amount := 20000000.0
	_, err = svc.Edit(context.Background(), ngozi, tx.ID, EditInput{Amount: &amount})
	require.ErrorIs(t, err, ErrConflict)
}
