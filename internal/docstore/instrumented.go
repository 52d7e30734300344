package docstore

import (
	"context"
	"time"
)

// Observer получает длительность и результат каждого обращения к хранилищу.
type Observer interface {
	ObserveRequest(operation, collection string, err error, duration time.Duration)
}

// instrumentedStore оборачивает Store и сообщает Observer о каждом вызове.
type instrumentedStore struct {
	next     Store
	observer Observer
}

// Instrument возвращает Store, который отчитывается в observer.
// Ping пробрасывается, если его умеет next.
func Instrument(next Store, observer Observer) Store {
	if observer == nil {
		return next
	}
	s := &instrumentedStore{next: next, observer: observer}
	if pinger, ok := next.(Pinger); ok {
		return &instrumentedPinger{instrumentedStore: s, pinger: pinger}
	}
	return s
}

func (s *instrumentedStore) observe(op, collection string, started time.Time, err error) {
	s.observer.ObserveRequest(op, collection, err, time.Since(started))
}

func (s *instrumentedStore) List(ctx context.Context, collection string, opts ...QueryOption) ([]Document, error) {
	started := time.Now()
	docs, err := s.next.List(ctx, collection, opts...)
	s.observe("list", collection, started, err)
	return docs, err
}

func (s *instrumentedStore) Get(ctx context.Context, collection, id string) (Document, error) {
	started := time.Now()
	doc, err := s.next.Get(ctx, collection, id)
	s.observe("get", collection, started, err)
	return doc, err
}

func (s *instrumentedStore) Create(ctx context.Context, collection string, fields Fields) (Document, error) {
	started := time.Now()
	doc, err := s.next.Create(ctx, collection, fields)
	s.observe("create", collection, started, err)
	return doc, err
}

func (s *instrumentedStore) Update(ctx context.Context, collection, id string, patch Fields) (Document, error) {
	started := time.Now()
	doc, err := s.next.Update(ctx, collection, id, patch)
	s.observe("update", collection, started, err)
	return doc, err
}

func (s *instrumentedStore) Delete(ctx context.Context, collection, id string) error {
	started := time.Now()
	err := s.next.Delete(ctx, collection, id)
	s.observe("delete", collection, started, err)
	return err
}

type instrumentedPinger struct {
	*instrumentedStore
	pinger Pinger
}

func (s *instrumentedPinger) Ping(ctx context.Context) error {
	return s.pinger.Ping(ctx)
}
