/*
service.go - Transactional ledger operations

PURPOSE:
  Ties the validator to the store writes. The source system this design
  derives from read the balance in one round trip and wrote the entry in
  another, so two concurrent debits could both validate against the same
  snapshot and over-debit the customer. Here every validate-then-write
  runs inside Store.WithTx: the balance read and the entry write commit
  or roll back together.

SIDE CHANNELS:
  Each mutation appends an ActivityLog row inside the same transaction
  and publishes an event AFTER commit. Event publishing is best-effort:
  a broker failure is logged and the request still succeeds, since the
  ledger is already the source of truth.

AMOUNT POLICY:
  Negative amounts are rejected at this boundary (ErrInvalidAmount).
  Zero amounts are accepted: a zero credit is harmless and a zero debit
  passes the validator by construction. Amounts are rounded to two
  fractional digits here, before validation, so the value validated is
  the value every store persists (the SQL schemas are 2dp).
*/
package ledger

import (
	"context"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"github.com/shopbook/ledger/events"
)

// NewEntry is the input for creating a ledger entry. BusinessID and
// CreatedByID come from the authenticated principal, not the payload.
type NewEntry struct {
	CustomerID  int64
	EntryType   EntryType
	Amount      decimal.Decimal
	Description string
	ImageURL    string
}

// NewCustomer is the input for creating a customer.
type NewCustomer struct {
	Name             string
	Email            string
	Phone            string
	RelationshipType string
	Notes            string
}

// ReminderReport summarizes a reminder dispatch run.
type ReminderReport struct {
	Sent   []string         `json:"sent"`
	Failed []ReminderFailed `json:"failed"`
}

// ReminderFailed names a customer that could not be reminded and why.
type ReminderFailed struct {
	Customer string `json:"customer"`
	Reason   string `json:"reason"`
}

// Service exposes the write operations of the engine. Reads that need
// no validation (listings, reports) go straight to the store or to the
// Aggregator/Analytics types.
type Service struct {
	Store     Store
	Publisher events.Publisher
}

// NewService returns a Service over store. A nil publisher falls back
// to the no-op one.
func NewService(store Store, pub events.Publisher) *Service {
	if pub == nil {
		pub = events.Noop{}
	}
	return &Service{Store: store, Publisher: pub}
}

// =============================================================================
// LEDGER ENTRY OPERATIONS
// =============================================================================

// CreateEntry validates and writes a new ledger entry atomically. The
// entry's business scope is the principal's, trusted to match the
// customer's.
func (s *Service) CreateEntry(ctx context.Context, principal User, in NewEntry) (*LedgerEntry, error) {
	if in.Amount.IsNegative() {
		return nil, ErrInvalidAmount
	}
	in.Amount = in.Amount.Round(2)
	if _, err := ParseEntryType(string(in.EntryType)); err != nil {
		return nil, err
	}

	var created LedgerEntry
	err := s.Store.WithTx(ctx, func(tx Store) error {
		v := NewValidator(tx)
		if err := v.ValidateCreate(ctx, in.CustomerID, in.EntryType, in.Amount); err != nil {
			return err
		}

		var err error
		created, err = tx.InsertEntry(ctx, LedgerEntry{
			CustomerID:  in.CustomerID,
			BusinessID:  principal.BusinessID,
			EntryType:   in.EntryType,
			Amount:      in.Amount,
			Description: in.Description,
			ImageURL:    in.ImageURL,
			CreatedByID: principal.ID,
		})
		if err != nil {
			return err
		}

		return tx.AppendActivity(ctx, ActivityLog{
			UserID:     principal.ID,
			BusinessID: principal.BusinessID,
			Action:     "ledger_entry.create",
			Details:    fmt.Sprintf("entry %d: %s %s for customer %d", created.ID, created.EntryType, created.Amount, created.CustomerID),
		})
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.New(events.TypeEntryCreated, created.BusinessID, map[string]any{
		"entry_id":    created.ID,
		"customer_id": created.CustomerID,
		"entry_type":  string(created.EntryType),
		"amount":      created.Amount.String(),
	}))
	return &created, nil
}

// UpdateEntry applies a partial in-place edit to an entry, validating
// the effective type/amount against the balance excluding the entry.
func (s *Service) UpdateEntry(ctx context.Context, principal User, entryID int64, upd EntryUpdate) (*LedgerEntry, error) {
	if upd.Amount != nil {
		if upd.Amount.IsNegative() {
			return nil, ErrInvalidAmount
		}
		rounded := upd.Amount.Round(2)
		upd.Amount = &rounded
	}
	if upd.EntryType != nil {
		if _, err := ParseEntryType(string(*upd.EntryType)); err != nil {
			return nil, err
		}
	}

	var updated *LedgerEntry
	err := s.Store.WithTx(ctx, func(tx Store) error {
		entry, err := tx.GetEntry(ctx, entryID)
		if err != nil {
			return err
		}
		if entry == nil {
			return ErrEntryNotFound
		}

		v := NewValidator(tx)
		if err := v.ValidateUpdate(ctx, *entry, upd); err != nil {
			return err
		}

		updated, err = tx.UpdateEntry(ctx, entryID, upd)
		if err != nil {
			return err
		}

		return tx.AppendActivity(ctx, ActivityLog{
			UserID:     principal.ID,
			BusinessID: principal.BusinessID,
			Action:     "ledger_entry.update",
			Details:    fmt.Sprintf("entry %d: now %s %s", updated.ID, updated.EntryType, updated.Amount),
		})
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.New(events.TypeEntryUpdated, updated.BusinessID, map[string]any{
		"entry_id":    updated.ID,
		"customer_id": updated.CustomerID,
		"entry_type":  string(updated.EntryType),
		"amount":      updated.Amount.String(),
	}))
	return updated, nil
}

// DeleteEntry physically removes an entry. Irreversible.
func (s *Service) DeleteEntry(ctx context.Context, principal User, entryID int64) error {
	var deleted LedgerEntry
	err := s.Store.WithTx(ctx, func(tx Store) error {
		entry, err := tx.GetEntry(ctx, entryID)
		if err != nil {
			return err
		}
		if entry == nil {
			return ErrEntryNotFound
		}
		deleted = *entry

		if err := tx.DeleteEntry(ctx, entryID); err != nil {
			return err
		}

		return tx.AppendActivity(ctx, ActivityLog{
			UserID:     principal.ID,
			BusinessID: principal.BusinessID,
			Action:     "ledger_entry.delete",
			Details:    fmt.Sprintf("entry %d removed from customer %d", deleted.ID, deleted.CustomerID),
		})
	})
	if err != nil {
		return err
	}

	s.publish(ctx, events.New(events.TypeEntryDeleted, deleted.BusinessID, map[string]any{
		"entry_id":    deleted.ID,
		"customer_id": deleted.CustomerID,
	}))
	return nil
}

// =============================================================================
// CUSTOMER OPERATIONS
// =============================================================================

// CreateCustomer creates a customer under the principal's business.
func (s *Service) CreateCustomer(ctx context.Context, principal User, in NewCustomer) (*Customer, error) {
	var created Customer
	err := s.Store.WithTx(ctx, func(tx Store) error {
		business, err := tx.GetBusiness(ctx, principal.BusinessID)
		if err != nil {
			return err
		}
		if business == nil {
			return ErrBusinessNotFound
		}

		created, err = tx.CreateCustomer(ctx, Customer{
			Name:             in.Name,
			Email:            in.Email,
			Phone:            in.Phone,
			BusinessID:       principal.BusinessID,
			RelationshipType: in.RelationshipType,
			Notes:            in.Notes,
			CreatedByID:      principal.ID,
		})
		if err != nil {
			return err
		}

		return tx.AppendActivity(ctx, ActivityLog{
			UserID:     principal.ID,
			BusinessID: principal.BusinessID,
			Action:     "customer.create",
			Details:    fmt.Sprintf("customer %d (%s)", created.ID, created.Name),
		})
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.New(events.TypeCustomerCreated, created.BusinessID, map[string]any{
		"customer_id": created.ID,
	}))
	return &created, nil
}

// UpdateCustomer applies a partial customer mutation.
func (s *Service) UpdateCustomer(ctx context.Context, principal User, customerID int64, upd CustomerUpdate) (*Customer, error) {
	updated, err := s.Store.UpdateCustomer(ctx, customerID, upd)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrCustomerNotFound
	}
	return updated, nil
}

// DeleteCustomer removes a customer; its entries cascade away with it.
func (s *Service) DeleteCustomer(ctx context.Context, principal User, customerID int64) error {
	err := s.Store.WithTx(ctx, func(tx Store) error {
		customer, err := tx.GetCustomer(ctx, customerID)
		if err != nil {
			return err
		}
		if customer == nil {
			return ErrCustomerNotFound
		}

		if err := tx.DeleteCustomer(ctx, customerID); err != nil {
			return err
		}

		return tx.AppendActivity(ctx, ActivityLog{
			UserID:     principal.ID,
			BusinessID: principal.BusinessID,
			Action:     "customer.delete",
			Details:    fmt.Sprintf("customer %d (%s)", customer.ID, customer.Name),
		})
	})
	if err != nil {
		return err
	}

	s.publish(ctx, events.New(events.TypeCustomerDeleted, principal.BusinessID, map[string]any{
		"customer_id": customerID,
	}))
	return nil
}

// =============================================================================
// REMINDERS
// =============================================================================

// SendReminders publishes a reminder event for every customer of the
// principal's business with an outstanding balance and an email address.
// Customers without one are reported as failed. Actual delivery is a
// broker consumer's job.
func (s *Service) SendReminders(ctx context.Context, principal User, threshold decimal.Decimal) (*ReminderReport, error) {
	agg := NewAggregator(s.Store)
	outstanding, err := agg.OutstandingBalances(ctx, principal.BusinessID, threshold)
	if err != nil {
		return nil, err
	}

	report := &ReminderReport{Sent: []string{}, Failed: []ReminderFailed{}}
	for _, o := range outstanding {
		if o.Email == "" {
			report.Failed = append(report.Failed, ReminderFailed{
				Customer: o.CustomerName,
				Reason:   "No email address",
			})
			continue
		}

		ev := events.New(events.TypeReminderRequested, principal.BusinessID, map[string]any{
			"customer_id":         o.CustomerID,
			"customer_name":       o.CustomerName,
			"email":               o.Email,
			"outstanding_balance": o.OutstandingBalance.String(),
		})
		if err := s.Publisher.Publish(ctx, ev); err != nil {
			report.Failed = append(report.Failed, ReminderFailed{
				Customer: o.CustomerName,
				Reason:   err.Error(),
			})
			continue
		}
		report.Sent = append(report.Sent, o.Email)
	}
	return report, nil
}

func (s *Service) publish(ctx context.Context, ev events.Event) {
	if err := s.Publisher.Publish(ctx, ev); err != nil {
		log.Printf("event publish failed (%s): %v", ev.Type, err)
	}
}
