package workflow

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tradewind-bank/tradewind/internal/shared"
)

// ProductType identifies a trade finance instrument category. Its string
// value doubles as the permission domain ("form_m:create" etc).
type ProductType string

const (
	ProductFormM        ProductType = shared.DomainFormM
	ProductFormA        ProductType = shared.DomainFormA
	ProductFormNXP      ProductType = shared.DomainFormNXP
	ProductPAAR         ProductType = shared.DomainPAAR
	ProductImportLC     ProductType = shared.DomainImportLC
	ProductBillsForColl ProductType = shared.DomainBillsForColl
	ProductShippingDocs ProductType = shared.DomainShippingDocs
	ProductFXSales      ProductType = shared.DomainFXSales
	ProductTradeLoan    ProductType = shared.DomainTradeLoan
	ProductInwardPay    ProductType = shared.DomainInwardPay
	ProductOutwardPay   ProductType = shared.DomainOutwardPay
)

// AllProductTypes lists the closed product enumeration.
func AllProductTypes() []ProductType {
	return []ProductType{
		ProductFormM,
		ProductFormA,
		ProductFormNXP,
		ProductPAAR,
		ProductImportLC,
		ProductBillsForColl,
		ProductShippingDocs,
		ProductFXSales,
		ProductTradeLoan,
		ProductInwardPay,
		ProductOutwardPay,
	}
}

// ParseProductType validates a raw product string.
func ParseProductType(raw string) (ProductType, error) {
	pt := ProductType(raw)
	for _, known := range AllProductTypes() {
		if pt == known {
			return pt, nil
		}
	}
	return "", fmt.Errorf("workflow: unknown product type %q", raw)
}

// Perm returns the permission token for a verb within this product's domain.
func (p ProductType) Perm(verb string) string {
	return shared.Perm(string(p), verb)
}

// referencePrefixes maps products to the short code used in reference numbers.
var referencePrefixes = map[ProductType]string{
	ProductFormM:        "FM",
	ProductFormA:        "FA",
	ProductFormNXP:      "NXP",
	ProductPAAR:         "PAAR",
	ProductImportLC:     "LC",
	ProductBillsForColl: "BC",
	ProductShippingDocs: "SD",
	ProductFXSales:      "FX",
	ProductTradeLoan:    "TL",
	ProductInwardPay:    "IP",
	ProductOutwardPay:   "OP",
}

// Status is a transaction lifecycle state.
type Status string

const (
	StatusDraft       Status = "draft"
	StatusPending     Status = "pending"
	StatusUnderReview Status = "under_review"
	StatusApproved    Status = "approved"
	StatusRejected    Status = "rejected"
	StatusSentBack    Status = "sent_back"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
)

// Priority ranks a transaction for checker attention.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ParsePriority validates a raw priority string, defaulting empty to normal.
func ParsePriority(raw string) (Priority, error) {
	switch Priority(raw) {
	case "":
		return PriorityNormal, nil
	case PriorityNormal, PriorityHigh, PriorityUrgent:
		return Priority(raw), nil
	}
	return "", fmt.Errorf("workflow: unknown priority %q", raw)
}

// Transaction is a single trade finance instrument. Reference and Product are
// immutable after creation; Status moves only through the transition table.
// LastMakerID tracks the most recent maker-side author (creator, editor or
// resubmitter); both it and CreatedBy are barred from checking.
type Transaction struct {
	ID           uuid.UUID
	Reference    string
	Product      ProductType
	CustomerID   string
	CustomerName string
	Amount       float64
	Currency     string
	Description  string
	Priority     Priority
	Status       Status
	CreatedBy    string
	LastMakerID  string
	AssigneeID   string
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
}

// QueueStatus is the lifecycle state of a checker queue item.
type QueueStatus string

const (
	QueuePending  QueueStatus = "pending"
	QueueApproved QueueStatus = "approved"
	QueueRejected QueueStatus = "rejected"
	QueueSentBack QueueStatus = "sent_back"
)

// Decision is a checker's verdict on a queue item.
type Decision string

const (
	DecisionApprove  Decision = "approve"
	DecisionReject   Decision = "reject"
	DecisionSendBack Decision = "send_back"
)

// ParseDecision validates a raw decision string.
func ParseDecision(raw string) (Decision, error) {
	switch Decision(raw) {
	case DecisionApprove, DecisionReject, DecisionSendBack:
		return Decision(raw), nil
	}
	return "", fmt.Errorf("workflow: unknown decision %q", raw)
}

// QueueItem is one maker submission awaiting or holding a checker decision.
// Amount, currency, customer and priority are copied from the transaction at
// submission time and deliberately left stale if the maker edits afterwards.
// Items are never physically deleted; decided items are immutable.
type QueueItem struct {
	ID              uuid.UUID
	TransactionID   uuid.UUID
	EntityType      ProductType
	Reference       string
	CustomerName    string
	Amount          float64
	Currency        string
	Priority        Priority
	MakerID         string
	MakerName       string
	MakerDepartment string
	MakerComments   string
	CheckerID       string
	CheckerName     string
	CheckerComments string
	Status          QueueStatus
	SubmittedAt     time.Time
	DecidedAt       *time.Time
}
