package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/intake"
)

const shellHelp = `Commands:
  show                          list the questions on the form with their answers
  bank [CATEGORY]               list questions that can be added
  categories                    list bank categories
  add KEY | remove KEY          move a question onto or off the form
  move KEY FROM TO INDEX        reorder (FROM/TO are bank or active, INDEX is 1-based)
  set KEY TEXT                  answer a text, textarea or dropdown question
  toggle KEY OPTION             select or deselect a checkbox option
  other KEY TEXT                fill the "Other" text of a checkbox question
  flush                         save answers to the server now
  submit [summary]              complete the form, optionally requesting a summary
  customize | leave             step away from the form (open to come back)
  open                          return to the form
  quit                          stop autosave and exit
KEY is either source:id (global:3) or the position shown by show.`

// shell is the interactive form editor behind "intake fill".
type shell struct {
	workflow *intake.Workflow
	clientID int64
	session  *intake.Session
	in       *bufio.Scanner
	out      io.Writer
}

func newShell(workflow *intake.Workflow, clientID int64, in io.Reader, out io.Writer) *shell {
	return &shell{workflow: workflow, clientID: clientID, in: bufio.NewScanner(in), out: out}
}

func (s *shell) run(ctx context.Context) error {
	if err := s.open(ctx); err != nil {
		return err
	}
	defer func() {
		if s.session != nil {
			_ = s.session.Close(context.Background())
		}
	}()

	for {
		fmt.Fprint(s.out, "> ")
		if !s.in.Scan() {
			return s.in.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		fields := strings.Fields(s.in.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			return nil
		}
		if err := s.exec(ctx, fields[0], fields[1:]); err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
	}
}

func (s *shell) open(ctx context.Context) error {
	if s.session != nil {
		return nil
	}
	session, rec, err := s.workflow.Open(ctx, s.clientID)
	if err != nil {
		return err
	}
	if rec.Decision == intake.DecisionPrompt {
		name := strings.TrimSpace(rec.ClientFirstName + " " + rec.ClientLastName)
		fmt.Fprintf(s.out, "%s has an unfinished intake form (#%d). Resume it? [y/N] ", name, rec.ServerFormID)
		answer := ""
		if s.in.Scan() {
			answer = strings.ToLower(strings.TrimSpace(s.in.Text()))
		}
		if answer == "y" || answer == "yes" {
			session, err = s.workflow.Resume(ctx, s.clientID, rec.ServerFormID)
		} else {
			session, err = s.workflow.StartNew(ctx, s.clientID)
		}
		if err != nil {
			return err
		}
	}
	s.session = session
	fmt.Fprintf(s.out, "Editing intake form for client %d (%s)\n", s.clientID, rec.Decision)
	return nil
}

func (s *shell) exec(ctx context.Context, command string, args []string) error {
	switch command {
	case "help", "?":
		fmt.Fprintln(s.out, shellHelp)
		return nil
	case "open":
		return s.open(ctx)
	}

	if s.session == nil {
		return errors.New("no form open, type open")
	}
	switch command {
	case "show":
		s.show()
		return nil
	case "bank":
		category := intake.AllCategories
		if len(args) > 0 {
			category = strings.Join(args, " ")
		}
		for _, question := range s.session.Bank(category) {
			printQuestion(s.out, question)
		}
		return nil
	case "categories":
		fmt.Fprintln(s.out, strings.Join(s.session.Categories(), ", "))
		return nil
	case "add", "remove":
		if len(args) != 1 {
			return fmt.Errorf("usage: %s KEY", command)
		}
		key, err := s.key(args[0])
		if err != nil {
			return err
		}
		if command == "add" {
			return s.session.Add(ctx, key)
		}
		return s.session.Remove(ctx, key)
	case "move":
		return s.move(ctx, args)
	case "set":
		if len(args) < 1 {
			return errors.New("usage: set KEY TEXT")
		}
		key, err := s.key(args[0])
		if err != nil {
			return err
		}
		return s.session.SetAnswer(ctx, key, strings.Join(args[1:], " "))
	case "toggle":
		if len(args) < 2 {
			return errors.New("usage: toggle KEY OPTION")
		}
		key, err := s.key(args[0])
		if err != nil {
			return err
		}
		option := strings.Join(args[1:], " ")
		current, _ := s.session.Draft().Answers.Get(key)
		return s.session.ToggleChoice(ctx, key, option, !current.Has(option))
	case "other":
		if len(args) < 2 {
			return errors.New("usage: other KEY TEXT")
		}
		key, err := s.key(args[0])
		if err != nil {
			return err
		}
		return s.session.SetOther(ctx, key, strings.Join(args[1:], " "))
	case "flush":
		if err := s.session.Flush(ctx); err != nil {
			return err
		}
		fmt.Fprintln(s.out, "Saved")
		return nil
	case "submit":
		return s.submit(ctx, len(args) > 0 && args[0] == "summary")
	case "customize":
		if err := s.session.LeaveForCustomize(ctx); err != nil {
			return err
		}
		s.session = nil
		fmt.Fprintln(s.out, "Left for customization, your draft is kept")
		return nil
	case "leave":
		if err := s.session.Leave(ctx); err != nil {
			return err
		}
		s.session = nil
		fmt.Fprintln(s.out, "Left the form")
		return nil
	}
	return fmt.Errorf("unknown command %q, type help", command)
}

func (s *shell) submit(ctx context.Context, summary bool) error {
	err := s.session.Submit(ctx, summary)
	var submitErr *intake.SubmitError
	switch {
	case err == nil:
	case errors.As(err, &submitErr) && submitErr.Completed():
		fmt.Fprintf(s.out, "Form submitted, but the summary request failed: %v\n", submitErr.Err)
	default:
		return err
	}
	s.session = nil
	fmt.Fprintln(s.out, "Form submitted")
	return nil
}

func (s *shell) move(ctx context.Context, args []string) error {
	if len(args) != 4 {
		return errors.New("usage: move KEY FROM TO INDEX")
	}
	key, err := s.key(args[0])
	if err != nil {
		return err
	}
	from, err := intake.ParseListID(args[1])
	if err != nil {
		return err
	}
	to, err := intake.ParseListID(args[2])
	if err != nil {
		return err
	}
	index, err := strconv.Atoi(args[3])
	if err != nil {
		return fmt.Errorf("invalid index %q", args[3])
	}
	return s.session.Move(ctx, key, from, to, index-1)
}

// key accepts "source:id" or a 1-based position on the form.
func (s *shell) key(value string) (intake.Key, error) {
	if position, err := strconv.Atoi(value); err == nil {
		questions := s.session.Questions()
		if position < 1 || position > len(questions) {
			return intake.Key{}, fmt.Errorf("no question at position %d", position)
		}
		return questions[position-1].Key(), nil
	}
	return intake.ParseKey(value)
}

func (s *shell) show() {
	draft := s.session.Draft()
	printDraft(s.out, draft)
	fmt.Fprintf(s.out, "Autosave: %s\n", s.session.AutosaveState())
}
