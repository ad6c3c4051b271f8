package intake

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// OtherOption is the checkbox choice that unlocks a free-text field.
const OtherOption = "Other"

const otherSuffix = "_other"

var ErrOtherNotSelected = errors.New(`"Other" is not selected`)

// Answer is either a scalar string or an ordered list of checkbox choices.
// It marshals to a JSON string or a JSON array respectively.
type Answer struct {
	Text    string
	Choices []string
	List    bool
}

func TextAnswer(text string) Answer {
	return Answer{Text: text}
}

func ChoiceAnswer(choices ...string) Answer {
	out := make([]string, len(choices))
	copy(out, choices)
	return Answer{Choices: out, List: true}
}

func (a Answer) IsEmpty() bool {
	if a.List {
		return len(a.Choices) == 0
	}
	return strings.TrimSpace(a.Text) == ""
}

func (a Answer) Has(choice string) bool {
	for _, selected := range a.Choices {
		if selected == choice {
			return true
		}
	}
	return false
}

func (a Answer) String() string {
	if a.List {
		return strings.Join(a.Choices, ", ")
	}
	return a.Text
}

func (a Answer) MarshalJSON() ([]byte, error) {
	if a.List {
		choices := a.Choices
		if choices == nil {
			choices = []string{}
		}
		return json.Marshal(choices)
	}
	return json.Marshal(a.Text)
}

func (a *Answer) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0, bytes.Equal(trimmed, []byte("null")):
		*a = Answer{}
		return nil
	case trimmed[0] == '[':
		var choices []string
		if err := json.Unmarshal(trimmed, &choices); err != nil {
			return fmt.Errorf("decode answer choices: %w", err)
		}
		*a = ChoiceAnswer(choices...)
		return nil
	case trimmed[0] == '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return fmt.Errorf("decode answer text: %w", err)
		}
		*a = TextAnswer(text)
		return nil
	default:
		// numbers and booleans from older rows are kept as their literal text
		*a = TextAnswer(string(trimmed))
		return nil
	}
}

// Answers maps Key.String() to the answer. Checkbox free text lives under "{key}_other".
type Answers map[string]Answer

func OtherKey(key Key) string {
	return key.String() + otherSuffix
}

func (a Answers) Get(key Key) (Answer, bool) {
	answer, ok := a[key.String()]
	return answer, ok
}

func (a Answers) Other(key Key) string {
	return a[OtherKey(key)].Text
}

func (a Answers) SetText(key Key, text string) {
	a[key.String()] = TextAnswer(text)
}

// ToggleChoice appends or removes one checkbox choice. Deselecting "Other"
// drops the free-text entry, and an empty selection drops the answer.
func (a Answers) ToggleChoice(key Key, option string, selected bool) {
	current := a[key.String()]
	if selected && current.Has(option) {
		return
	}
	next := make([]string, 0, len(current.Choices)+1)
	for _, choice := range current.Choices {
		if choice != option {
			next = append(next, choice)
		}
	}
	if selected {
		next = append(next, option)
	}
	if !selected && option == OtherOption {
		delete(a, OtherKey(key))
	}
	if len(next) == 0 {
		delete(a, key.String())
		return
	}
	a[key.String()] = ChoiceAnswer(next...)
}

// SetOther records the free text that accompanies a selected "Other" choice.
func (a Answers) SetOther(key Key, text string) error {
	if !a[key.String()].Has(OtherOption) {
		return ErrOtherNotSelected
	}
	a[OtherKey(key)] = TextAnswer(text)
	return nil
}

func (a Answers) Clone() Answers {
	out := make(Answers, len(a))
	for key, answer := range a {
		if answer.List {
			answer = ChoiceAnswer(answer.Choices...)
		}
		out[key] = answer
	}
	return out
}

// AnswerRecord is the wire shape of one saved answer.
type AnswerRecord struct {
	QuestionID     int64  `json:"question_id"`
	QuestionSource Source `json:"question_source"`
	Answer         Answer `json:"answer"`
	Other          string `json:"other,omitempty"`
}

func (r AnswerRecord) Key() Key {
	return Key{Source: r.QuestionSource, ID: r.QuestionID}
}

// Collect flattens the non-empty answers of the given questions, in question order.
// Answers for questions outside the list are left out.
func Collect(questions []Question, answers Answers) []AnswerRecord {
	records := make([]AnswerRecord, 0, len(questions))
	for _, question := range questions {
		answer, ok := answers.Get(question.Key())
		if !ok || answer.IsEmpty() {
			continue
		}
		record := AnswerRecord{
			QuestionID:     question.ID,
			QuestionSource: question.Source,
			Answer:         answer,
		}
		if answer.Has(OtherOption) {
			record.Other = strings.TrimSpace(answers.Other(question.Key()))
		}
		records = append(records, record)
	}
	return records
}

// Restore rebuilds an Answers map from saved records.
func Restore(records []AnswerRecord) Answers {
	answers := make(Answers, len(records))
	for _, record := range records {
		key := record.Key()
		answers[key.String()] = record.Answer
		if record.Other != "" {
			answers[OtherKey(key)] = TextAnswer(record.Other)
		}
	}
	return answers
}

// QA is one question/answer pair in the flattened summary input.
type QA struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Flatten renders the answered questions as text pairs for summary generation.
func Flatten(questions []Question, answers Answers) []QA {
	pairs := make([]QA, 0, len(questions))
	for _, record := range Collect(questions, answers) {
		text := record.Answer.String()
		if record.Other != "" {
			text = text + " (" + record.Other + ")"
		}
		pairs = append(pairs, QA{Question: questionText(questions, record.Key()), Answer: text})
	}
	return pairs
}

func questionText(questions []Question, key Key) string {
	for _, question := range questions {
		if question.Key() == key {
			return question.Text
		}
	}
	return key.String()
}
