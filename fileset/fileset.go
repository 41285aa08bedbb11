// Package fileset keeps the ordered list of uploaded source documents and
// which one is currently selected for editing.
package fileset

import (
	"errors"
	"fmt"
)

var ErrIndexOutOfRange = errors.New("document index out of range")

// Document is an uploaded PDF. Its bytes never change after upload and two
// documents are the same only if they are the same pointer, even when their
// contents are equal.
type Document struct {
	name        string
	data        []byte
	fingerprint string
}

func NewDocument(name string, data []byte, fingerprint string) *Document {
	return &Document{name: name, data: data, fingerprint: fingerprint}
}

func (d *Document) Name() string        { return d.name }
func (d *Document) Fingerprint() string { return d.fingerprint }

// Bytes returns the document contents. Callers must not modify them.
func (d *Document) Bytes() []byte { return d.data }

func (d *Document) Size() int { return len(d.data) }

// Set is append-only on upload and supports removal by index. The selected
// document is always a member of the set or nil.
type Set struct {
	docs     []*Document
	selected *Document
}

// Add appends doc. The first document added to a set with no selection
// becomes selected; selected reports whether that happened.
func (s *Set) Add(doc *Document) (selected bool) {
	s.docs = append(s.docs, doc)
	if s.selected == nil {
		s.selected = doc
		return true
	}
	return false
}

// Remove deletes the document at i. When it was selected the selection moves
// to the first remaining document, or nil, and selectionChanged is true.
func (s *Set) Remove(i int) (removed *Document, selectionChanged bool, err error) {
	if i < 0 || i >= len(s.docs) {
		return nil, false, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, i, len(s.docs))
	}
	removed = s.docs[i]
	s.docs = append(s.docs[:i:i], s.docs[i+1:]...)
	if removed != s.selected {
		return removed, false, nil
	}
	s.selected = nil
	if len(s.docs) > 0 {
		s.selected = s.docs[0]
	}
	return removed, true, nil
}

// Select makes the document at i the selection. changed is false when it
// was already selected.
func (s *Set) Select(i int) (changed bool, err error) {
	if i < 0 || i >= len(s.docs) {
		return false, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, i, len(s.docs))
	}
	if s.docs[i] == s.selected {
		return false, nil
	}
	s.selected = s.docs[i]
	return true, nil
}

func (s *Set) Selected() *Document { return s.selected }

// SelectedIndex is the index of the selection, or -1.
func (s *Set) SelectedIndex() int {
	for i, d := range s.docs {
		if d == s.selected {
			return i
		}
	}
	return -1
}

// Documents returns the documents in upload order.
func (s *Set) Documents() []*Document {
	return append([]*Document(nil), s.docs...)
}

func (s *Set) Len() int { return len(s.docs) }
