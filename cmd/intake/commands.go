package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/backend"
	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/config"
	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/intake"
	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/log"
)

// tokenKey holds the access token in the local state file next to the drafts.
const tokenKey = "smartgains.accessToken"

type env struct {
	cfg    config.ClientConfig
	local  *intake.FileStorage
	client *backend.Client
}

// draftStorage is where drafts live: the local state file, or the server
// when remote drafts are enabled.
func (e *env) draftStorage() intake.Storage {
	if e.cfg.RemoteDrafts {
		return backend.NewRemoteStorage(e.client)
	}
	return e.local
}

func (e *env) workflow() *intake.Workflow {
	// session-scoped flags last as long as the process, like a browser tab
	drafts := intake.NewDraftStore(e.draftStorage(), intake.NewMemoryStorage())
	return intake.NewWorkflow(e.client, drafts, intake.Options{
		Debounce:       e.cfg.AutosaveDebounce,
		Interval:       e.cfg.AutosaveInterval,
		RequestTimeout: e.cfg.RequestTimeout,
	})
}

func newRootCommand() *cobra.Command {
	e := &env{}
	var (
		apiURL       string
		stateFile    string
		remoteDrafts bool
	)

	root := &cobra.Command{
		Use:           "intake",
		Short:         "Fill SmartGains client intake forms from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			e.cfg = config.LoadClient()
			if apiURL != "" {
				e.cfg.APIURL = strings.TrimRight(apiURL, "/")
			}
			if stateFile != "" {
				e.cfg.StateFile = stateFile
			}
			if cmd.Flags().Changed("remote-drafts") {
				e.cfg.RemoteDrafts = remoteDrafts
			}
			log.SetLevel(e.cfg.LogLevel)
			log.SetOutput(cmd.ErrOrStderr())

			local, err := intake.NewFileStorage(e.cfg.StateFile)
			if err != nil {
				return err
			}
			e.local = local

			token := e.cfg.Token
			if token == "" {
				stored, _, err := local.Get(cmd.Context(), tokenKey)
				if err != nil {
					return err
				}
				token = stored
			}
			e.client = backend.New(e.cfg.APIURL,
				backend.WithToken(token),
				backend.WithHTTPClient(&http.Client{Timeout: e.cfg.RequestTimeout}),
			)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&apiURL, "api", "", "API base URL (default $SMARTGAINS_API_URL)")
	root.PersistentFlags().StringVar(&stateFile, "state", "", "local state file (default $SMARTGAINS_STATE_FILE)")
	root.PersistentFlags().BoolVar(&remoteDrafts, "remote-drafts", false, "keep drafts on the server instead of the state file")

	root.AddCommand(
		newSignInCommand(e),
		newClientsCommand(e),
		newQuestionsCommand(e),
		newFillCommand(e),
		newDraftCommand(e),
	)
	return root
}

func newSignInCommand(e *env) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in and remember the access token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				fmt.Fprint(cmd.OutOrStdout(), "Password: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return err
				}
				password = strings.TrimRight(line, "\r\n")
			}
			creds, err := e.client.SignIn(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			if err := e.local.Set(cmd.Context(), tokenKey, creds.AccessToken); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s)\n", creds.UserName, creds.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "trainer email")
	cmd.Flags().StringVar(&password, "password", "", "trainer password (prompted when empty)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newClientsCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clients",
		Short: "List clients",
		RunE: func(cmd *cobra.Command, _ []string) error {
			clients, err := e.client.ListClients(cmd.Context())
			if err != nil {
				return err
			}
			for _, client := range clients {
				fmt.Fprintf(cmd.OutOrStdout(), "%6d  %s\n", client.ID, client.Name())
			}
			return nil
		},
	}

	var first, last, email, phone string
	add := &cobra.Command{
		Use:   "add",
		Short: "Create a client",
		RunE: func(cmd *cobra.Command, _ []string) error {
			created, err := e.client.AddClient(cmd.Context(), backend.ClientRecord{
				FirstName: first,
				LastName:  last,
				Email:     email,
				Phone:     phone,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created client %d %s\n", created.ID, created.Name())
			return nil
		},
	}
	add.Flags().StringVar(&first, "first", "", "first name")
	add.Flags().StringVar(&last, "last", "", "last name")
	add.Flags().StringVar(&email, "email", "", "email")
	add.Flags().StringVar(&phone, "phone", "", "phone")
	_ = add.MarkFlagRequired("first")
	_ = add.MarkFlagRequired("last")
	cmd.AddCommand(add)
	return cmd
}

func newQuestionsCommand(e *env) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "questions",
		Short: "List the question catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog := intake.NewCatalog(e.client)
			for _, question := range catalog.Load(cmd.Context()) {
				if category != "" && !strings.EqualFold(question.Category, category) {
					continue
				}
				printQuestion(cmd.OutOrStdout(), question)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "only show one category")
	return cmd
}

func newFillCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "fill CLIENT_ID",
		Short: "Customize and fill a client's intake form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientID, err := parseClientID(args[0])
			if err != nil {
				return err
			}
			sh := newShell(e.workflow(), clientID, cmd.InOrStdin(), cmd.OutOrStdout())
			return sh.run(cmd.Context())
		},
	}
}

func newDraftCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Inspect or discard a client's local draft",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show CLIENT_ID",
		Short: "Print the stored draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientID, err := parseClientID(args[0])
			if err != nil {
				return err
			}
			drafts := intake.NewDraftStore(e.draftStorage(), intake.NewMemoryStorage())
			draft, err := drafts.Load(cmd.Context(), clientID)
			if err != nil {
				return err
			}
			printDraft(cmd.OutOrStdout(), draft)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear CLIENT_ID",
		Short: "Delete the stored draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientID, err := parseClientID(args[0])
			if err != nil {
				return err
			}
			drafts := intake.NewDraftStore(e.draftStorage(), intake.NewMemoryStorage())
			if err := drafts.Clear(cmd.Context(), clientID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Draft for client %d cleared\n", clientID)
			return nil
		},
	})
	return cmd
}

func parseClientID(value string) (int64, error) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid client id %q", value)
	}
	return id, nil
}

func printQuestion(w io.Writer, question intake.Question) {
	line := fmt.Sprintf("%-12s %-9s %s", question.Key(), question.Type, question.Text)
	if question.Category != "" {
		line += "  [" + question.Category + "]"
	}
	if question.IsDefault {
		line += "  *"
	}
	fmt.Fprintln(w, line)
	if question.HasOptions() {
		fmt.Fprintf(w, "%13s options: %s\n", "", strings.Join(question.Options, " | "))
	}
}

func printDraft(w io.Writer, draft intake.Draft) {
	if draft.FormID != nil {
		fmt.Fprintf(w, "Form: %d\n", *draft.FormID)
	} else {
		fmt.Fprintln(w, "Form: not created yet")
	}
	for i, question := range draft.ActiveQuestions {
		fmt.Fprintf(w, "%2d. %s %s\n", i+1, question.Key(), question.Text)
		if answer, ok := draft.Answers.Get(question.Key()); ok && !answer.IsEmpty() {
			text := answer.String()
			if other := draft.Answers.Other(question.Key()); other != "" {
				text += " (" + other + ")"
			}
			fmt.Fprintf(w, "    = %s\n", text)
		}
	}
}

