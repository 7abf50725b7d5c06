package model

import (
	"fmt"
	"strconv"
	"strings"
)

// SubjectKind tags what a task is about.
type SubjectKind string

const (
	SubjectNone    SubjectKind = ""
	SubjectPerson  SubjectKind = "person"
	SubjectChurch  SubjectKind = "church"
	SubjectContact SubjectKind = "contact"
)

// Subject references at most one person, church or generic contact.
type Subject struct {
	Kind SubjectKind `gorm:"column:subject_kind;size:16"`
	ID   uint        `gorm:"column:subject_id"`
}

func PersonSubject(id uint) Subject  { return Subject{Kind: SubjectPerson, ID: id} }
func ChurchSubject(id uint) Subject  { return Subject{Kind: SubjectChurch, ID: id} }
func ContactSubject(id uint) Subject { return Subject{Kind: SubjectContact, ID: id} }

// Validate checks that the kind is known and that an ID is present exactly
// when a kind is set.
func (s Subject) Validate() error {
	switch s.Kind {
	case SubjectNone:
		if s.ID != 0 {
			return fmt.Errorf("subject id %d given without a subject kind", s.ID)
		}
		return nil
	case SubjectPerson, SubjectChurch, SubjectContact:
		if s.ID == 0 {
			return fmt.Errorf("%s subject requires an id", s.Kind)
		}
		return nil
	default:
		return fmt.Errorf("unknown subject kind %q", s.Kind)
	}
}

func (s Subject) String() string {
	if s.Kind == SubjectNone {
		return "-"
	}
	return fmt.Sprintf("%s:%d", s.Kind, s.ID)
}

// ParseSubject reads the "kind:id" form produced by String. An empty string
// or "-" is no subject.
func ParseSubject(raw string) (Subject, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "-" {
		return Subject{}, nil
	}
	kind, rawID, ok := strings.Cut(raw, ":")
	if !ok {
		return Subject{}, fmt.Errorf("subject %q: expected kind:id", raw)
	}
	id, err := strconv.ParseUint(strings.TrimSpace(rawID), 10, 64)
	if err != nil {
		return Subject{}, fmt.Errorf("subject %q: invalid id", raw)
	}
	s := Subject{Kind: SubjectKind(strings.ToLower(strings.TrimSpace(kind))), ID: uint(id)}
	if err := s.Validate(); err != nil {
		return Subject{}, err
	}
	return s, nil
}
