package intake

import (
	"errors"
	"fmt"
	"sort"
)

// ListID names one side of the rank editor.
type ListID string

const (
	ListBank   ListID = "bank"
	ListActive ListID = "active"
)

// AllCategories disables the bank category filter.
const AllCategories = "All"

var (
	ErrUnknownList = errors.New("unknown list")
	ErrNotInList   = errors.New("question is not in the source list")
)

func ParseListID(value string) (ListID, error) {
	switch ListID(value) {
	case ListBank, ListActive:
		return ListID(value), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownList, value)
}

// Board is the bank/active rank editor. Every question lives in exactly one list.
type Board struct {
	bank   []Question
	active []Question
}

// NewBoard splits the catalog into bank and active. Duplicate active entries are
// dropped; active questions missing from the catalog stay on the form.
func NewBoard(catalog, active []Question) *Board {
	byKey := make(map[Key]Question, len(catalog))
	for _, question := range catalog {
		byKey[question.Key()] = question
	}

	board := &Board{bank: []Question{}, active: []Question{}}
	onForm := make(map[Key]struct{}, len(active))
	for _, question := range active {
		key := question.Key()
		if _, dup := onForm[key]; dup {
			continue
		}
		onForm[key] = struct{}{}
		if fresh, ok := byKey[key]; ok {
			question = fresh
		}
		board.active = append(board.active, question)
	}
	for _, question := range catalog {
		if _, ok := onForm[question.Key()]; ok {
			continue
		}
		board.bank = append(board.bank, question)
	}
	return board
}

func (b *Board) Bank() []Question {
	return cloneQuestions(b.bank)
}

func (b *Board) Active() []Question {
	return cloneQuestions(b.active)
}

// Move removes key from one list and inserts it into the other (or the same)
// list at dest. dest is clamped to the target list bounds.
func (b *Board) Move(key Key, from, to ListID, dest int) error {
	source, err := b.list(from)
	if err != nil {
		return err
	}
	if _, err := b.list(to); err != nil {
		return err
	}
	index := indexOf(*source, key)
	if index < 0 {
		return fmt.Errorf("%w: %s not in %s", ErrNotInList, key, from)
	}

	item := (*source)[index]
	*source = append((*source)[:index:index], (*source)[index+1:]...)

	target, _ := b.list(to)
	if dest < 0 {
		dest = 0
	}
	if dest > len(*target) {
		dest = len(*target)
	}
	next := make([]Question, 0, len(*target)+1)
	next = append(next, (*target)[:dest]...)
	next = append(next, item)
	next = append(next, (*target)[dest:]...)
	*target = next
	return nil
}

// Add appends a bank question to the end of the form.
func (b *Board) Add(key Key) error {
	return b.Move(key, ListBank, ListActive, len(b.active))
}

// Remove sends an active question to the end of the bank.
func (b *Board) Remove(key Key) error {
	return b.Move(key, ListActive, ListBank, len(b.bank))
}

// FilterBank lists bank questions in one category. "" and "All" return the whole bank.
func (b *Board) FilterBank(category string) []Question {
	if category == "" || category == AllCategories {
		return b.Bank()
	}
	filtered := make([]Question, 0)
	for _, question := range b.bank {
		if question.Category == category {
			filtered = append(filtered, question)
		}
	}
	return filtered
}

// Categories lists the distinct bank categories, sorted, after "All".
func (b *Board) Categories() []string {
	seen := make(map[string]struct{})
	categories := make([]string, 0)
	for _, question := range b.bank {
		if question.Category == "" {
			continue
		}
		if _, ok := seen[question.Category]; ok {
			continue
		}
		seen[question.Category] = struct{}{}
		categories = append(categories, question.Category)
	}
	sort.Strings(categories)
	return append([]string{AllCategories}, categories...)
}

func (b *Board) list(id ListID) (*[]Question, error) {
	switch id {
	case ListBank:
		return &b.bank, nil
	case ListActive:
		return &b.active, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownList, id)
}

func indexOf(questions []Question, key Key) int {
	for i, question := range questions {
		if question.Key() == key {
			return i
		}
	}
	return -1
}
