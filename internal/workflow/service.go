package workflow

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tradewind-bank/tradewind/internal/rbac"
	"github.com/tradewind-bank/tradewind/internal/shared"
)

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service is the workflow orchestrator. It owns the only mutation path for
// transactions and queue items: every intent is authorized, checked against
// the lifecycle table, validated, and then applied inside one repository
// transaction so the queue and the transaction never drift apart.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	badges *BadgeCache
}

// NewService constructs the workflow service.
func NewService(repo RepositoryPort, audit AuditPort, badges *BadgeCache) *Service {
	return &Service{repo: repo, audit: audit, badges: badges}
}

// CreateInput describes a maker's new transaction. Submission to the checker
// queue is implicit in creation.
type CreateInput struct {
	Product      ProductType
	CustomerID   string
	CustomerName string
	Amount       float64
	Currency     string
	Description  string
	Priority     Priority
	Comments     string
}

// EditInput describes a partial maker edit; nil fields are left unchanged.
type EditInput struct {
	CustomerID   *string
	CustomerName *string
	Amount       *float64
	Currency     *string
	Description  *string
	Priority     *Priority
}

// Create validates and stores a new transaction in pending status together
// with its checker queue entry.
func (s *Service) Create(ctx context.Context, actor rbac.Actor, input CreateInput) (Transaction, QueueItem, error) {
	if _, err := ParseProductType(string(input.Product)); err != nil {
		return Transaction{}, QueueItem{}, reject(ErrValidation, "unknown product type", actor.ID, uuid.Nil, EventCreate)
	}
	if input.Amount <= 0 {
		return Transaction{}, QueueItem{}, reject(ErrValidation, "amount must be positive", actor.ID, uuid.Nil, EventCreate)
	}
	if len(input.Currency) != 3 {
		return Transaction{}, QueueItem{}, reject(ErrValidation, "currency must be a 3-letter code", actor.ID, uuid.Nil, EventCreate)
	}
	priority := input.Priority
	if priority == "" {
		priority = PriorityNormal
	}
	if _, err := ParsePriority(string(priority)); err != nil {
		return Transaction{}, QueueItem{}, reject(ErrValidation, "unknown priority", actor.ID, uuid.Nil, EventCreate)
	}
	if !rbac.Authorize(actor, input.Product.Perm(shared.VerbCreate)) {
		return Transaction{}, QueueItem{}, reject(ErrUnauthorized, input.Product.Perm(shared.VerbCreate)+" required", actor.ID, uuid.Nil, EventCreate)
	}

	now := time.Now().UTC()
	tx := Transaction{
		ID:           uuid.New(),
		Reference:    generateReference(input.Product, now),
		Product:      input.Product,
		CustomerID:   input.CustomerID,
		CustomerName: input.CustomerName,
		Amount:       input.Amount,
		Currency:     strings.ToUpper(input.Currency),
		Description:  input.Description,
		Priority:     priority,
		Status:       StatusPending,
		CreatedBy:    actor.ID,
		LastMakerID:  actor.ID,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	item := newQueueItem(tx, actor, input.Comments, now)

	err := s.repo.WithTx(ctx, func(ctx context.Context, repo TxRepository) error {
		if err := repo.InsertTransaction(ctx, tx); err != nil {
			return err
		}
		return repo.InsertQueueItem(ctx, item)
	})
	if err != nil {
		return Transaction{}, QueueItem{}, err
	}
	s.recordAudit(ctx, actor.ID, "TX_CREATE", tx.ID, map[string]any{"reference": tx.Reference, "product": tx.Product, "queue_item": item.ID})
	s.invalidateBadges(ctx)
	return tx, item, nil
}

// Edit applies a maker edit to a transaction in an editable status. The
// editor becomes the transaction's most recent maker and is barred from
// checking it.
func (s *Service) Edit(ctx context.Context, actor rbac.Actor, txID uuid.UUID, input EditInput) (Transaction, error) {
	tx, err := s.repo.GetTransaction(ctx, txID)
	if err != nil {
		return Transaction{}, err
	}
	if _, ok := NextStatus(tx.Status, EventEdit); !ok {
		return Transaction{}, reject(ErrIllegalTransition, fmt.Sprintf("cannot edit in status %s", tx.Status), actor.ID, txID, EventEdit)
	}
	if !rbac.Authorize(actor, tx.Product.Perm(shared.VerbEdit)) {
		return Transaction{}, reject(ErrUnauthorized, tx.Product.Perm(shared.VerbEdit)+" required", actor.ID, txID, EventEdit)
	}

	if input.Amount != nil {
		if *input.Amount <= 0 {
			return Transaction{}, reject(ErrValidation, "amount must be positive", actor.ID, txID, EventEdit)
		}
		tx.Amount = *input.Amount
	}
	if input.Currency != nil {
		if len(*input.Currency) != 3 {
			return Transaction{}, reject(ErrValidation, "currency must be a 3-letter code", actor.ID, txID, EventEdit)
		}
		tx.Currency = strings.ToUpper(*input.Currency)
	}
	if input.Priority != nil {
		if _, err := ParsePriority(string(*input.Priority)); err != nil {
			return Transaction{}, reject(ErrValidation, "unknown priority", actor.ID, txID, EventEdit)
		}
		tx.Priority = *input.Priority
	}
	if input.CustomerID != nil {
		tx.CustomerID = *input.CustomerID
	}
	if input.CustomerName != nil {
		tx.CustomerName = *input.CustomerName
	}
	if input.Description != nil {
		tx.Description = *input.Description
	}

	expected := tx.Version
	tx.Version++
	tx.LastMakerID = actor.ID
	tx.UpdatedAt = time.Now().UTC()

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo TxRepository) error {
		return repo.UpdateTransaction(ctx, tx, expected)
	})
	if err != nil {
		return Transaction{}, err
	}
	s.recordAudit(ctx, actor.ID, "TX_EDIT", tx.ID, map[string]any{"reference": tx.Reference, "version": tx.Version})
	return tx, nil
}

// Resubmit moves a sent-back transaction to pending and enqueues a fresh
// queue item; the decided item from the previous round stays untouched for
// audit.
func (s *Service) Resubmit(ctx context.Context, actor rbac.Actor, txID uuid.UUID, comments string) (Transaction, QueueItem, error) {
	tx, err := s.repo.GetTransaction(ctx, txID)
	if err != nil {
		return Transaction{}, QueueItem{}, err
	}
	target, ok := NextStatus(tx.Status, EventResubmit)
	if !ok {
		return Transaction{}, QueueItem{}, reject(ErrIllegalTransition, fmt.Sprintf("cannot resubmit from status %s", tx.Status), actor.ID, txID, EventResubmit)
	}
	if !rbac.Authorize(actor, tx.Product.Perm(shared.VerbEdit)) {
		return Transaction{}, QueueItem{}, reject(ErrUnauthorized, tx.Product.Perm(shared.VerbEdit)+" required", actor.ID, txID, EventResubmit)
	}
	pending, err := s.repo.HasPendingQueueItem(ctx, txID)
	if err != nil {
		return Transaction{}, QueueItem{}, err
	}
	if pending {
		return Transaction{}, QueueItem{}, reject(ErrConflict, "a submission is already in flight", actor.ID, txID, EventResubmit)
	}

	now := time.Now().UTC()
	expected := tx.Version
	tx.Version++
	tx.Status = target
	tx.LastMakerID = actor.ID
	tx.UpdatedAt = now
	item := newQueueItem(tx, actor, comments, now)

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo TxRepository) error {
		if err := repo.UpdateTransaction(ctx, tx, expected); err != nil {
			return err
		}
		return repo.InsertQueueItem(ctx, item)
	})
	if err != nil {
		return Transaction{}, QueueItem{}, err
	}
	s.recordAudit(ctx, actor.ID, "TX_RESUBMIT", tx.ID, map[string]any{"reference": tx.Reference, "queue_item": item.ID})
	s.invalidateBadges(ctx)
	return tx, item, nil
}

// Decide records a checker decision on a queue item and drives the linked
// transaction through the matching transition as one logical operation.
// Guard order matters for the error the caller sees: already-decided first,
// then segregation of duties (before the permission check, and regardless of
// role — even Super Administrator cannot approve their own submission), then
// comment validation, then the permission itself.
func (s *Service) Decide(ctx context.Context, actor rbac.Actor, itemID uuid.UUID, decision Decision, comments string) (QueueItem, Transaction, error) {
	item, err := s.repo.GetQueueItem(ctx, itemID)
	if err != nil {
		return QueueItem{}, Transaction{}, err
	}
	event, ok := decisionEvents[decision]
	if item.Status != QueuePending {
		return QueueItem{}, Transaction{}, reject(ErrAlreadyDecided, fmt.Sprintf("item already %s", item.Status), actor.ID, item.TransactionID, event)
	}
	if !ok {
		return QueueItem{}, Transaction{}, reject(ErrValidation, "unknown decision", actor.ID, item.TransactionID, Event(decision))
	}

	tx, err := s.repo.GetTransaction(ctx, item.TransactionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return QueueItem{}, Transaction{}, reject(ErrIllegalTransition, "transaction no longer exists", actor.ID, item.TransactionID, event)
		}
		return QueueItem{}, Transaction{}, err
	}

	if actor.ID == item.MakerID || actor.ID == tx.CreatedBy || actor.ID == tx.LastMakerID {
		return QueueItem{}, Transaction{}, reject(ErrSegregationOfDuties, "maker and checker must differ", actor.ID, tx.ID, event)
	}
	if decision != DecisionApprove && strings.TrimSpace(comments) == "" {
		return QueueItem{}, Transaction{}, reject(ErrValidation, fmt.Sprintf("comments are mandatory for %s", decision), actor.ID, tx.ID, event)
	}
	perm := decisionPermission(decision)
	if !rbac.Authorize(actor, perm) {
		return QueueItem{}, Transaction{}, reject(ErrUnauthorized, perm+" required", actor.ID, tx.ID, event)
	}

	target, ok := NextStatus(tx.Status, event)
	if !ok {
		return QueueItem{}, Transaction{}, reject(ErrIllegalTransition, fmt.Sprintf("cannot %s from status %s", decision, tx.Status), actor.ID, tx.ID, event)
	}

	now := time.Now().UTC()
	expected := tx.Version
	tx.Version++
	tx.Status = target
	tx.UpdatedAt = now
	if IsTerminal(target) {
		tx.CompletedAt = &now
	}

	update := DecideUpdate{
		ItemID:      item.ID,
		Status:      decisionQueueStatus[decision],
		CheckerID:   actor.ID,
		CheckerName: actor.Name,
		Comments:    comments,
		DecidedAt:   now,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo TxRepository) error {
		if err := repo.DecideQueueItem(ctx, update); err != nil {
			return err
		}
		return repo.UpdateTransaction(ctx, tx, expected)
	})
	if err != nil {
		return QueueItem{}, Transaction{}, err
	}

	item.Status = update.Status
	item.CheckerID = actor.ID
	item.CheckerName = actor.Name
	item.CheckerComments = comments
	item.DecidedAt = &now

	s.recordAudit(ctx, actor.ID, "QUEUE_"+strings.ToUpper(string(decision)), tx.ID, map[string]any{
		"reference":  tx.Reference,
		"queue_item": item.ID,
		"comments":   comments,
		"status":     tx.Status,
	})
	s.invalidateBadges(ctx)
	return item, tx, nil
}

// Duplicate clones a non-terminal transaction into a fresh draft. The source
// is never mutated and no queue entry is created until the draft is
// submitted.
func (s *Service) Duplicate(ctx context.Context, actor rbac.Actor, txID uuid.UUID) (Transaction, error) {
	src, err := s.repo.GetTransaction(ctx, txID)
	if err != nil {
		return Transaction{}, err
	}
	if !CanDuplicate(src.Status) {
		return Transaction{}, reject(ErrIllegalTransition, fmt.Sprintf("cannot duplicate from status %s", src.Status), actor.ID, txID, EventCreate)
	}
	if !rbac.Authorize(actor, src.Product.Perm(shared.VerbCreate)) {
		return Transaction{}, reject(ErrUnauthorized, src.Product.Perm(shared.VerbCreate)+" required", actor.ID, txID, EventCreate)
	}

	now := time.Now().UTC()
	dup := Transaction{
		ID:           uuid.New(),
		Reference:    generateReference(src.Product, now),
		Product:      src.Product,
		CustomerID:   src.CustomerID,
		CustomerName: src.CustomerName,
		Amount:       src.Amount,
		Currency:     src.Currency,
		Description:  src.Description,
		Priority:     src.Priority,
		Status:       StatusDraft,
		CreatedBy:    actor.ID,
		LastMakerID:  actor.ID,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo TxRepository) error {
		return repo.InsertTransaction(ctx, dup)
	})
	if err != nil {
		return Transaction{}, err
	}
	s.recordAudit(ctx, actor.ID, "TX_DUPLICATE", dup.ID, map[string]any{"reference": dup.Reference, "source": src.ID})
	return dup, nil
}

// Delete removes a transaction from the deletable statuses. Queue items are
// retained for audit; active views and badge counts exclude them once the
// transaction is gone.
func (s *Service) Delete(ctx context.Context, actor rbac.Actor, txID uuid.UUID) error {
	tx, err := s.repo.GetTransaction(ctx, txID)
	if err != nil {
		return err
	}
	if !CanDelete(tx.Status) {
		return reject(ErrIllegalTransition, fmt.Sprintf("cannot delete in status %s", tx.Status), actor.ID, txID, EventDelete)
	}
	if !rbac.Authorize(actor, tx.Product.Perm(shared.VerbDelete)) {
		return reject(ErrUnauthorized, tx.Product.Perm(shared.VerbDelete)+" required", actor.ID, txID, EventDelete)
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo TxRepository) error {
		return repo.DeleteTransaction(ctx, txID)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actor.ID, "TX_DELETE", txID, map[string]any{"reference": tx.Reference, "status": tx.Status})
	s.invalidateBadges(ctx)
	return nil
}

// Complete settles an approved transaction. Settlement sits outside the
// maker-checker authorization surface; the HTTP layer gates it with the
// back-office permission and this method enforces the state machine only.
func (s *Service) Complete(ctx context.Context, actor rbac.Actor, txID uuid.UUID) (Transaction, error) {
	tx, err := s.repo.GetTransaction(ctx, txID)
	if err != nil {
		return Transaction{}, err
	}
	target, ok := NextStatus(tx.Status, EventComplete)
	if !ok {
		return Transaction{}, reject(ErrIllegalTransition, fmt.Sprintf("cannot complete from status %s", tx.Status), actor.ID, txID, EventComplete)
	}

	now := time.Now().UTC()
	expected := tx.Version
	tx.Version++
	tx.Status = target
	tx.UpdatedAt = now
	tx.CompletedAt = &now

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo TxRepository) error {
		return repo.UpdateTransaction(ctx, tx, expected)
	})
	if err != nil {
		return Transaction{}, err
	}
	s.recordAudit(ctx, actor.ID, "TX_COMPLETE", tx.ID, map[string]any{"reference": tx.Reference})
	return tx, nil
}

// Cancel voids a non-terminal transaction.
func (s *Service) Cancel(ctx context.Context, actor rbac.Actor, txID uuid.UUID) (Transaction, error) {
	tx, err := s.repo.GetTransaction(ctx, txID)
	if err != nil {
		return Transaction{}, err
	}
	target, ok := NextStatus(tx.Status, EventCancel)
	if !ok {
		return Transaction{}, reject(ErrIllegalTransition, fmt.Sprintf("cannot cancel from status %s", tx.Status), actor.ID, txID, EventCancel)
	}
	if !rbac.Authorize(actor, tx.Product.Perm(shared.VerbDelete)) {
		return Transaction{}, reject(ErrUnauthorized, tx.Product.Perm(shared.VerbDelete)+" required", actor.ID, txID, EventCancel)
	}

	now := time.Now().UTC()
	expected := tx.Version
	tx.Version++
	tx.Status = target
	tx.UpdatedAt = now
	tx.CompletedAt = &now

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo TxRepository) error {
		return repo.UpdateTransaction(ctx, tx, expected)
	})
	if err != nil {
		return Transaction{}, err
	}
	s.recordAudit(ctx, actor.ID, "TX_CANCEL", tx.ID, map[string]any{"reference": tx.Reference})
	s.invalidateBadges(ctx)
	return tx, nil
}

// Get returns a transaction the actor may view.
func (s *Service) Get(ctx context.Context, actor rbac.Actor, txID uuid.UUID) (Transaction, error) {
	tx, err := s.repo.GetTransaction(ctx, txID)
	if err != nil {
		return Transaction{}, err
	}
	if !rbac.Authorize(actor, tx.Product.Perm(shared.VerbView)) {
		return Transaction{}, reject(ErrUnauthorized, tx.Product.Perm(shared.VerbView)+" required", actor.ID, txID, Event("view"))
	}
	return tx, nil
}

// List returns transactions restricted to the product domains the actor may
// view.
func (s *Service) List(ctx context.Context, actor rbac.Actor, filter TransactionFilter) ([]Transaction, int, error) {
	viewable := make(map[ProductType]bool)
	for _, p := range AllProductTypes() {
		if rbac.Authorize(actor, p.Perm(shared.VerbView)) {
			viewable[p] = true
		}
	}
	if len(filter.Products) == 0 {
		for p := range viewable {
			filter.Products = append(filter.Products, p)
		}
	} else {
		kept := filter.Products[:0]
		for _, p := range filter.Products {
			if viewable[p] {
				kept = append(kept, p)
			}
		}
		filter.Products = kept
	}
	if len(filter.Products) == 0 {
		return nil, 0, nil
	}
	return s.repo.ListTransactions(ctx, filter)
}

// ListQueue returns checker queue items for actors holding queue:view.
func (s *Service) ListQueue(ctx context.Context, actor rbac.Actor, filter QueueFilter) ([]QueueItem, int, error) {
	if !rbac.Authorize(actor, shared.PermQueueView) {
		return nil, 0, reject(ErrUnauthorized, shared.PermQueueView+" required", actor.ID, uuid.Nil, Event("view"))
	}
	return s.repo.ListQueueItems(ctx, filter)
}

// PendingCounts returns the badge read model, served from cache when one is
// configured.
func (s *Service) PendingCounts(ctx context.Context, actor rbac.Actor) (map[ProductType]int, error) {
	if !rbac.Authorize(actor, shared.PermQueueView) && !rbac.Authorize(actor, shared.PermDashboardView) {
		return nil, reject(ErrUnauthorized, shared.PermQueueView+" or "+shared.PermDashboardView+" required", actor.ID, uuid.Nil, Event("view"))
	}
	return s.badges.Fetch(ctx, s.repo.PendingCountByProduct)
}

func newQueueItem(tx Transaction, maker rbac.Actor, comments string, now time.Time) QueueItem {
	return QueueItem{
		ID:              uuid.New(),
		TransactionID:   tx.ID,
		EntityType:      tx.Product,
		Reference:       tx.Reference,
		CustomerName:    tx.CustomerName,
		Amount:          tx.Amount,
		Currency:        tx.Currency,
		Priority:        tx.Priority,
		MakerID:         maker.ID,
		MakerName:       maker.Name,
		MakerDepartment: maker.Department,
		MakerComments:   comments,
		Status:          QueuePending,
		SubmittedAt:     now,
	}
}

func decisionPermission(decision Decision) string {
	switch decision {
	case DecisionApprove:
		return shared.PermQueueApprove
	case DecisionReject:
		return shared.PermQueueReject
	default:
		return shared.PermQueueSendBack
	}
}

func generateReference(product ProductType, now time.Time) string {
	prefix, ok := referencePrefixes[product]
	if !ok {
		prefix = "TX"
	}
	id := uuid.New()
	return fmt.Sprintf("%s-%d-%s", prefix, now.Year(), strings.ToUpper(hex.EncodeToString(id[:3])))
}

func (s *Service) recordAudit(ctx context.Context, actorID, action string, entityID uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "transaction",
		EntityID: entityID.String(),
		Meta:     meta,
		At:       time.Now().UTC(),
	})
}

func (s *Service) invalidateBadges(ctx context.Context) {
	if s.badges == nil {
		return
	}
	_ = s.badges.Invalidate(ctx)
}
