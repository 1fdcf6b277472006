package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Lllllllleong/printerbridge/internal/models"
)

// memStore is an in-memory OrderStore that records every status it stores.
// failTo makes any Transition into the given status return that error.
type memStore struct {
	mu      sync.Mutex
	orders  map[string]*models.Order
	history map[string][]models.Status
	failTo  map[models.Status]error
	getErr  error
}

func newMemStore() *memStore {
	return &memStore{
		orders:  make(map[string]*models.Order),
		history: make(map[string][]models.Status),
		failTo:  make(map[models.Status]error),
	}
}

func (s *memStore) put(id string, o models.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := o
	s.orders[id] = &cp
}

func (s *memStore) order(id string) models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.orders[id]
}

func (s *memStore) statuses(id string) []models.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Status(nil), s.history[id]...)
}

func (s *memStore) Get(_ context.Context, id string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrOrderNotFound, id)
	}
	cp := *o
	return &cp, nil
}

func (s *memStore) Transition(_ context.Context, id string, from, to models.Status, fields map[string]any) error {
	if err := models.CheckTransition(from, to); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failTo[to]; err != nil {
		return err
	}
	o, ok := s.orders[id]
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrOrderNotFound, id)
	}
	if o.Status != from {
		return fmt.Errorf("%w: %s is %s", models.ErrStatusMismatch, id, o.Status)
	}
	merged := map[string]any{models.FieldStatus: string(to)}
	for k, v := range fields {
		merged[k] = v
	}
	s.apply(id, o, merged)
	return nil
}

func (s *memStore) apply(id string, o *models.Order, fields map[string]any) {
	for k, v := range fields {
		switch k {
		case models.FieldStatus:
			o.Status = models.Status(v.(string))
			s.history[id] = append(s.history[id], o.Status)
		case models.FieldErrorMsg:
			o.ErrorMsg = v.(string)
		case models.FieldPrintedAt:
			o.PrintedAt = v.(time.Time)
		}
	}
}

// fileFetcher writes canned bytes per URL and records what it was asked for.
type fileFetcher struct {
	mu      sync.Mutex
	bodies  map[string][]byte
	fetched map[string]string
}

func newFileFetcher() *fileFetcher {
	return &fileFetcher{bodies: make(map[string][]byte), fetched: make(map[string]string)}
}

func (f *fileFetcher) serve(url string, body []byte) {
	f.mu.Lock()
	f.bodies[url] = body
	f.mu.Unlock()
}

func (f *fileFetcher) Fetch(_ context.Context, url, destPath string) (bool, error) {
	f.mu.Lock()
	body, ok := f.bodies[url]
	f.fetched[destPath] = url
	f.mu.Unlock()
	if !ok {
		return false, errors.New("404 not found")
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return false, err
	}
	if err := os.WriteFile(destPath, body, 0o644); err != nil {
		return false, err
	}
	return true, nil
}

// fakePrinter returns a fixed result and records each printed path. When gate
// is non-nil every Print blocks until it is closed.
type fakePrinter struct {
	mu      sync.Mutex
	ok      bool
	detail  string
	printed []string
	gate    chan struct{}
	started chan string
}

func (p *fakePrinter) Print(_ context.Context, filePath, _ string) (bool, string) {
	if p.started != nil {
		p.started <- filePath
	}
	if p.gate != nil {
		<-p.gate
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printed = append(p.printed, filePath)
	return p.ok, p.detail
}

func (p *fakePrinter) prints() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.printed...)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.StatusEvent
}

func (n *recordingNotifier) Notify(_ context.Context, ev models.StatusEvent) {
	n.mu.Lock()
	n.events = append(n.events, ev)
	n.mu.Unlock()
}

func (n *recordingNotifier) statuses() []models.Status {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]models.Status, 0, len(n.events))
	for _, ev := range n.events {
		out = append(out, ev.Status)
	}
	return out
}

// chanSubscriber hands out a pre-filled batch channel.
type chanSubscriber struct {
	batches chan models.ChangeBatch
	errc    chan error
}

func newChanSubscriber() *chanSubscriber {
	return &chanSubscriber{
		batches: make(chan models.ChangeBatch, 16),
		errc:    make(chan error, 1),
	}
}

func (s *chanSubscriber) Subscribe(context.Context) (<-chan models.ChangeBatch, <-chan error) {
	return s.batches, s.errc
}

// countingProcessor records which orders were launched.
type countingProcessor struct {
	mu    sync.Mutex
	calls []string
}

func (p *countingProcessor) Process(_ context.Context, id string, _ models.Order) Outcome {
	p.mu.Lock()
	p.calls = append(p.calls, id)
	p.mu.Unlock()
	return OutcomeCompleted
}

func (p *countingProcessor) ids() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}
