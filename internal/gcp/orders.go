package gcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Lllllllleong/printerbridge/internal/models"
)

// OrderStore reads, watches and updates documents in the orders collection.
type OrderStore struct {
	client     *firestore.Client
	collection string
}

func NewOrderStore(client *firestore.Client, collection string) *OrderStore {
	return &OrderStore{client: client, collection: collection}
}

func (s *OrderStore) doc(id string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(id)
}

// Subscribe watches documents with status == "Paid". Each query snapshot is
// delivered as one ChangeBatch. The batch channel is closed when ctx is done
// or the listener fails; a listener failure is reported on the error channel.
func (s *OrderStore) Subscribe(ctx context.Context) (<-chan models.ChangeBatch, <-chan error) {
	batches := make(chan models.ChangeBatch)
	errc := make(chan error, 1)

	go func() {
		defer close(batches)

		it := s.client.Collection(s.collection).
			Where(models.FieldStatus, "==", string(models.StatusPaid)).
			Snapshots(ctx)
		defer it.Stop()

		for {
			snap, err := it.Next()
			if err != nil {
				if errors.Is(err, iterator.Done) || status.Code(err) == codes.Canceled || ctx.Err() != nil {
					return
				}
				errc <- fmt.Errorf("order snapshot listener: %w", err)
				return
			}

			batch := toChangeBatch(snap.Changes, snap.ReadTime)
			select {
			case batches <- batch:
			case <-ctx.Done():
				return
			}
		}
	}()

	return batches, errc
}

func toChangeBatch(changes []firestore.DocumentChange, readTime time.Time) models.ChangeBatch {
	batch := models.ChangeBatch{
		Changes:  make([]models.Change, 0, len(changes)),
		ReadTime: readTime,
	}
	for _, ch := range changes {
		kind, ok := changeKind(ch.Kind)
		if !ok {
			slog.Warn("Ignoring change of unknown kind.", "orderId", ch.Doc.Ref.ID, "kind", ch.Kind)
			continue
		}
		var order models.Order
		if err := ch.Doc.DataTo(&order); err != nil {
			slog.Warn("Ignoring undecodable order document.", "orderId", ch.Doc.Ref.ID, "error", err)
			continue
		}
		batch.Changes = append(batch.Changes, models.Change{
			Kind:  kind,
			ID:    ch.Doc.Ref.ID,
			Order: order,
		})
	}
	return batch
}

func changeKind(k firestore.DocumentChangeKind) (models.ChangeKind, bool) {
	switch k {
	case firestore.DocumentAdded:
		return models.ChangeAdded, true
	case firestore.DocumentModified:
		return models.ChangeModified, true
	case firestore.DocumentRemoved:
		return models.ChangeRemoved, true
	default:
		return 0, false
	}
}

// Get returns the current snapshot of one order.
func (s *OrderStore) Get(ctx context.Context, id string) (*models.Order, error) {
	snap, err := s.doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("%w: %s", models.ErrOrderNotFound, id)
		}
		return nil, fmt.Errorf("failed to read order %s: %w", id, err)
	}
	var order models.Order
	if err := snap.DataTo(&order); err != nil {
		return nil, fmt.Errorf("failed to decode order %s: %w", id, err)
	}
	return &order, nil
}

// UpdateStatus writes exactly the given fields and leaves all others alone.
func (s *OrderStore) UpdateStatus(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return fmt.Errorf("no fields to update on order %s", id)
	}
	if _, err := s.doc(id).Update(ctx, toUpdates(fields)); err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("%w: %s", models.ErrOrderNotFound, id)
		}
		return fmt.Errorf("failed to update order %s: %w", id, err)
	}
	return nil
}

// Transition moves an order from one status to the next inside a transaction.
// It fails with models.ErrStatusMismatch when the stored status is not from,
// and with models.ErrInvalidTransition when the move is not allowed at all.
func (s *OrderStore) Transition(ctx context.Context, id string, from, to models.Status, fields map[string]any) error {
	if err := models.CheckTransition(from, to); err != nil {
		return err
	}

	merged := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		merged[k] = v
	}
	merged[models.FieldStatus] = string(to)
	updates := toUpdates(merged)

	ref := s.doc(id)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return fmt.Errorf("%w: %s", models.ErrOrderNotFound, id)
			}
			return err
		}
		var current models.Order
		if err := snap.DataTo(&current); err != nil {
			return fmt.Errorf("failed to decode order %s: %w", id, err)
		}
		if current.Status != from {
			return fmt.Errorf("%w: order %s is %q, expected %q", models.ErrStatusMismatch, id, current.Status, from)
		}
		return tx.Update(ref, updates)
	})
	if err != nil {
		return fmt.Errorf("transition %s -> %s: %w", from, to, err)
	}
	return nil
}

// toUpdates converts a field map into updates ordered by path.
func toUpdates(fields map[string]any) []firestore.Update {
	paths := make([]string, 0, len(fields))
	for p := range fields {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	updates := make([]firestore.Update, 0, len(paths))
	for _, p := range paths {
		updates = append(updates, firestore.Update{Path: p, Value: fields[p]})
	}
	return updates
}
