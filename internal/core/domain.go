package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  EntryType = "income"
	Expense EntryType = "expense"
)

// ReceitaCategory is the reserved category income entries are filed under.
// It is seeded by migration and guarded against rename and delete.
const ReceitaCategory = "Receita"

type (
	// EntryType tags an entry as income or expense. The amount itself is
	// always stored unsigned; the tag is the single source of truth for
	// the sign.
	EntryType string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Entry struct {
		ID          int64 // Database ID, zero before first insert
		Date        Date
		Description string
		Amount      Money // unsigned magnitude, always > 0
		Type        EntryType
		CategoryID  int64
	}

	Category struct {
		ID   int64
		Name string
	}

	// EntryWithCategory is an entry joined with its category row, the
	// shape every read stream emits.
	EntryWithCategory struct {
		Entry
		CategoryName string
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidType        = errors.New("invalid entry type")
	ErrEmptyDescription   = errors.New("empty description")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
	ErrMissingCategory    = errors.New("missing category")
	ErrEmptyName          = errors.New("empty category name")
	ErrNameTooLong        = errors.New("category name too long (max 100 characters)")
)

func (t EntryType) Validate() error {
	switch t {
	case Income, Expense:
		return nil
	default:
		return ErrInvalidType
	}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a calendar date in YYYY-MM-DD form.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// String formats the date as YYYY-MM-DD, the form it is persisted in.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// SignedCents derives the signed amount from the unsigned magnitude and the
// type tag: positive for income, negative for expense.
func (e Entry) SignedCents() int64 {
	if e.Type == Expense {
		return -e.Amount.Cents
	}
	return e.Amount.Cents
}

func (e Entry) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(e.Description) > 200 {
		return ErrDescriptionTooLong
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if err := e.Type.Validate(); err != nil {
		return err
	}
	if e.CategoryID <= 0 {
		return ErrMissingCategory
	}
	return nil
}

func (c Category) Validate() error {
	if len(strings.TrimSpace(c.Name)) == 0 {
		return ErrEmptyName
	}
	if len(c.Name) > 100 {
		return ErrNameTooLong
	}
	return nil
}
