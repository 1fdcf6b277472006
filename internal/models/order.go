package models

import (
	"errors"
	"fmt"
	"time"
)

// Status is the lifecycle state of an order document. Only the four values
// below are owned by the bridge; anything else written by upstream producers
// (e.g. "Pending", "Cancelled") is carried through untouched.
type Status string

const (
	StatusPaid      Status = "Paid"
	StatusPrinting  Status = "Printing"
	StatusCompleted Status = "Completed"
	StatusFailed    Status = "Failed"
)

const DefaultPaperType = "Standard"

// Field paths written by the bridge.
const (
	FieldStatus    = "status"
	FieldErrorMsg  = "errorMsg"
	FieldPrintedAt = "printedAt"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrStatusMismatch    = errors.New("order status changed concurrently")
	ErrOrderNotFound     = errors.New("order not found")
)

// transitions lists every move the bridge is allowed to make.
var transitions = map[Status][]Status{
	StatusPaid:     {StatusPrinting},
	StatusPrinting: {StatusCompleted, StatusFailed},
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckTransition returns ErrInvalidTransition wrapped with both states when
// the move is not allowed.
func CheckTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %q -> %q", ErrInvalidTransition, from, to)
	}
	return nil
}

// IsTerminal reports whether no further transitions can occur.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Order is a print request document in the orders collection.
type Order struct {
	Status    Status    `firestore:"status,omitempty"`
	FileURL   string    `firestore:"fileUrl,omitempty"`
	FileName  string    `firestore:"fileName,omitempty"`
	PaperType string    `firestore:"paperType,omitempty"`
	ErrorMsg  string    `firestore:"errorMsg,omitempty"`
	PrintedAt time.Time `firestore:"printedAt,omitempty"`
}

// FileNameOrDefault returns the stored file name or one synthesized from id.
func (o Order) FileNameOrDefault(id string) string {
	if o.FileName != "" {
		return o.FileName
	}
	return fmt.Sprintf("order_%s.pdf", id)
}

func (o Order) PaperTypeOrDefault() string {
	if o.PaperType != "" {
		return o.PaperType
	}
	return DefaultPaperType
}

// ChangeKind tags a change record delivered by the order subscription.
type ChangeKind int

const (
	ChangeAdded ChangeKind = iota
	ChangeModified
	ChangeRemoved
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAdded:
		return "ADDED"
	case ChangeModified:
		return "MODIFIED"
	case ChangeRemoved:
		return "REMOVED"
	default:
		return fmt.Sprintf("ChangeKind(%d)", int(k))
	}
}

// Change is one document change together with its snapshot at that instant.
type Change struct {
	Kind  ChangeKind
	ID    string
	Order Order
}

// ChangeBatch groups the changes delivered by a single snapshot.
type ChangeBatch struct {
	Changes  []Change
	ReadTime time.Time
}
