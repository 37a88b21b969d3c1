// Package document holds the render-ready element map of one session.
//
// A Store is owned by a single goroutine (the session loop) and is not safe
// for concurrent use. Every operation is one atomic mutation: callers observe
// its effect before the next operation runs.
package document

import (
	"errors"
	"slices"

	"github.com/aretw0/vitrine/pkg/domain"
)

// Store is the ordered, sparse mapping of element id to Element.
type Store struct {
	elements map[int]domain.Element
}

// New returns an empty document.
func New() *Store {
	return &Store{elements: make(map[int]domain.Element)}
}

// ApplyNewElement replaces the slot at id with a fresh element stamped with report.
// The slot does not need to exist beforehand.
func (s *Store) ApplyNewElement(id int, payload domain.Payload, report domain.ReportID) domain.Element {
	if payload == nil {
		payload = domain.Empty{}
	}
	el := domain.Element{ID: id, ReportID: report, Payload: payload}
	s.elements[id] = el
	return el
}

// ApplyAddRows appends rows to the tabular element at id.
// On error the document is left untouched.
func (s *Store) ApplyAddRows(id int, rows domain.NamedDataSet) (domain.Element, error) {
	el, ok := s.elements[id]
	if !ok {
		return domain.Element{}, &domain.NotFoundError{ID: id}
	}

	current, ok := domain.Rows(el.Payload)
	if !ok {
		return el, &domain.SchemaMismatchError{ID: id, Kind: el.Kind(), Reason: "element does not accept rows"}
	}

	merged, err := current.Append(rows.Data)
	if err != nil {
		return el, &domain.SchemaMismatchError{ID: id, Kind: el.Kind(), Reason: err.Error()}
	}

	payload, _ := domain.WithRows(el.Payload, merged)
	el.Payload = payload
	s.elements[id] = el
	return el, nil
}

// SweepStale blanks every element produced by a report other than current.
// Slots are kept and restamped with current, so a second sweep is a no-op.
// It returns the number of elements blanked.
func (s *Store) SweepStale(current domain.ReportID) int {
	swept := 0
	for id, el := range s.elements {
		if el.ReportID == current {
			continue
		}
		s.elements[id] = domain.Element{ID: id, ReportID: current, Payload: domain.Empty{}}
		swept++
	}
	return swept
}

// ReplaceWithError drops every element and leaves a single error text in
// slot 0. The error is stamped with report, so the sweep at the end of that
// report keeps it visible.
func (s *Store) ReplaceWithError(err error, report domain.ReportID) domain.Element {
	if err == nil {
		err = errors.New("unknown error")
	}
	clear(s.elements)
	return s.ApplyNewElement(0, domain.Text{Body: err.Error(), Format: domain.FormatError}, report)
}

// Reset empties the document.
func (s *Store) Reset() {
	clear(s.elements)
}

// Get returns the element at id.
func (s *Store) Get(id int) (domain.Element, bool) {
	el, ok := s.elements[id]
	return el, ok
}

// Len returns the number of occupied slots.
func (s *Store) Len() int {
	return len(s.elements)
}

// Elements returns the elements in render order (ascending id).
// Tabular payloads are cloned so the result can leave the owning goroutine.
func (s *Store) Elements() []domain.Element {
	ids := make([]int, 0, len(s.elements))
	for id := range s.elements {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	out := make([]domain.Element, 0, len(ids))
	for _, id := range ids {
		el := s.elements[id]
		if df, ok := domain.Rows(el.Payload); ok {
			el.Payload, _ = domain.WithRows(el.Payload, df.Clone())
		}
		out = append(out, el)
	}
	return out
}
