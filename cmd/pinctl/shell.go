package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/tendant/simple-pins/pkg/pinboard"
)

// NewShellCommand creates the interactive shell command
func NewShellCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive session that keeps form and view state between commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c *client) error {
				session := &shellSession{userID: c.userID}
				shell, err := NewShell(c.store, c.gateway, session, c.options(session)...)
				if err != nil {
					return err
				}
				shell.Run(ctx, os.Stdin, cmd.OutOrStdout())
				return nil
			})
		},
	}
}

// shellSession is the signed-in user of a shell; login and logout change it.
type shellSession struct {
	mu     sync.Mutex
	userID string
}

func (s *shellSession) Session(ctx context.Context) (pinboard.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userID == "" {
		return pinboard.Session{}, false
	}
	return pinboard.Session{UserID: s.userID}, true
}

func (s *shellSession) set(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = userID
}

// Shell drives one set of orchestrators from typed commands
type Shell struct {
	store    pinboard.ContentStore
	session  *shellSession
	creator  *pinboard.Creator
	detail   *pinboard.DetailLoader
	comments *pinboard.CommentMutator
	saves    *pinboard.SaveMutator
	profile  *pinboard.ProfileAggregator

	draft pinboard.Draft
	out   io.Writer
}

// NewShell creates a shell over store and gateway
func NewShell(store pinboard.ContentStore, gateway pinboard.AssetGateway, session *shellSession, opts ...pinboard.Option) (*Shell, error) {
	s := &Shell{store: store, session: session, out: io.Discard}

	opts = append([]pinboard.Option{pinboard.WithSessions(session)}, opts...)
	opts = append(opts, pinboard.WithNavigator(pinboard.NavigatorFunc(func(path string) {
		fmt.Fprintf(s.out, "-> %s\n", path)
	})))

	var err error
	if s.creator, err = pinboard.NewCreator(store, gateway, opts...); err != nil {
		return nil, err
	}
	detailOpts := append(append([]pinboard.Option{}, opts...), pinboard.WithAuthors())
	if s.detail, err = pinboard.NewDetailLoader(store, detailOpts...); err != nil {
		return nil, err
	}
	if s.comments, err = pinboard.NewCommentMutator(store, opts...); err != nil {
		return nil, err
	}
	if s.saves, err = pinboard.NewSaveMutator(store, opts...); err != nil {
		return nil, err
	}
	if s.profile, err = pinboard.NewProfileAggregator(store, opts...); err != nil {
		return nil, err
	}
	return s, nil
}

// Run reads commands from in until EOF or exit
func (s *Shell) Run(ctx context.Context, in io.Reader, out io.Writer) {
	s.out = out
	reader := bufio.NewReader(in)

	fmt.Fprintln(out, "=== Pinboard Shell ===")
	fmt.Fprintln(out, "Type 'help' for available commands, 'exit' to quit")
	fmt.Fprintln(out)

	for {
		fmt.Fprint(out, "pins> ")
		input, err := reader.ReadString('\n')
		if err != nil && input == "" {
			fmt.Fprintln(out)
			return
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if !s.Exec(ctx, input) {
			return
		}
	}
}

// Exec runs one command line. It returns false when the shell should exit.
func (s *Shell) Exec(ctx context.Context, input string) bool {
	parts := strings.Fields(input)
	command, args := parts[0], parts[1:]

	var err error
	switch command {
	case "help", "h":
		s.showHelp()
	case "exit", "quit", "q":
		fmt.Fprintln(s.out, "Goodbye!")
		return false
	case "login":
		err = s.handleLogin(args)
	case "logout":
		s.session.set("")
		fmt.Fprintln(s.out, "Signed out")
	case "whoami":
		err = s.handleWhoami(ctx)
	case "seed-user":
		err = s.handleSeedUser(ctx, args)
	case "upload":
		err = s.handleUpload(ctx, args)
	case "clear":
		s.creator.ClearAsset()
		fmt.Fprintln(s.out, "Asset cleared")
	case "set":
		err = s.handleSet(args)
	case "form":
		s.showForm()
	case "submit":
		err = s.handleSubmit(ctx)
	case "show":
		err = s.handleShow(ctx, args)
	case "comment":
		err = s.handleComment(ctx, args)
	case "save":
		err = s.handleSave(ctx, args)
	case "profile":
		err = s.handleProfile(ctx, args)
	case "mode":
		err = s.handleMode(ctx, args)
	default:
		fmt.Fprintf(s.out, "Unknown command: %s (type 'help' for available commands)\n", command)
	}
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
	}
	return true
}

func (s *Shell) showHelp() {
	help := `
Available Commands:

  login <user-id>              Act as user
  logout                       Forget the current user
  whoami                       Show the current user
  seed-user <id> <name...>     Create a user record

  upload <file>                Upload the pin image
  clear                        Drop the uploaded image
  set <field> <value...>       Set title, about, destination or category
  form                         Show the pin being created
  submit                       Create the pin

  show <pin-id>                Show a pin, its comments and related pins
  comment <pin-id> <text...>   Comment on a pin (retry after a failure reuses the comment)
  save <pin-id>                Save a pin to your collection

  profile <user-id> [mode]     Show a user and their created or saved pins
  mode created|saved           Switch the collection of the current profile

  help, h                      Show this help message
  exit, quit, q                Exit the shell
`
	fmt.Fprintln(s.out, help)
}

func (s *Shell) handleLogin(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: login <user-id>")
	}
	s.session.set(args[0])
	fmt.Fprintf(s.out, "Signed in as %s\n", args[0])
	return nil
}

func (s *Shell) handleWhoami(ctx context.Context) error {
	user, err := pinboard.LoadSessionUser(ctx, s.store, s.session)
	if err != nil {
		return err
	}
	printUser(s.out, user)
	return nil
}

func (s *Shell) handleSeedUser(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: seed-user <id> <name...>")
	}
	id, err := seedUser(ctx, s.store, args[0], strings.Join(args[1:], " "), "")
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "User created: %s\n", id)
	return nil
}

func (s *Shell) handleUpload(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: upload <file>")
	}
	if sess, ok := s.session.Session(ctx); ok {
		ctx = pinboard.ContextWithSession(ctx, sess)
	}
	return uploadFileTo(ctx, s.out, s.creator, args[0])
}

func (s *Shell) handleSet(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: set <title|about|destination|category> <value...>")
	}
	value := strings.Join(args[1:], " ")
	switch args[0] {
	case "title":
		s.draft.Title = value
	case "about":
		s.draft.About = value
	case "destination":
		s.draft.Destination = value
	case "category":
		s.draft.Category = value
	default:
		return fmt.Errorf("unknown field %q", args[0])
	}
	return nil
}

func (s *Shell) showForm() {
	st := s.creator.State()
	fmt.Fprintf(s.out, "Title:       %s\n", s.draft.Title)
	fmt.Fprintf(s.out, "About:       %s\n", s.draft.About)
	fmt.Fprintf(s.out, "Destination: %s\n", s.draft.Destination)
	fmt.Fprintf(s.out, "Category:    %s\n", s.draft.Category)
	if st.Asset != nil {
		fmt.Fprintf(s.out, "Image:       %s\n", st.Asset.URL)
	} else {
		fmt.Fprintln(s.out, "Image:       (none)")
	}
	if st.WrongType {
		fmt.Fprintln(s.out, "! Last file had an unsupported type")
	}
	if st.MissingFields {
		fmt.Fprintf(s.out, "! Missing: %s\n", strings.Join(st.Missing, ", "))
	}
}

func (s *Shell) handleSubmit(ctx context.Context) error {
	pin, err := s.creator.SubmitContent(ctx, s.draft)
	if err != nil {
		return err
	}
	s.draft = pinboard.Draft{}
	fmt.Fprintf(s.out, "Pin created: %s\n", pin.ID)
	return nil
}

func (s *Shell) handleShow(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: show <pin-id>")
	}
	if err := s.detail.LoadDetail(ctx, args[0]); err != nil {
		return err
	}
	st := s.detail.State()
	if st.Status == pinboard.StatusEmpty {
		return fmt.Errorf("pin %s: %w", args[0], pinboard.ErrNotFound)
	}
	printPin(s.out, st.Pin, st.Authors)
	fmt.Fprintln(s.out, "\nMore like this:")
	printPinTable(s.out, st.Related)
	return nil
}

func (s *Shell) handleComment(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: comment <pin-id> <text...>")
	}
	comment, err := s.comments.AppendComment(ctx, args[0], strings.Join(args[1:], " "), "")
	if err != nil {
		return err
	}
	if comment == nil {
		fmt.Fprintln(s.out, "Nothing to post")
		return nil
	}
	if pin := s.comments.Pin(); pin != nil {
		fmt.Fprintf(s.out, "Comment added (%d on this pin)\n", len(pin.Comments))
		return nil
	}
	fmt.Fprintln(s.out, "Comment added")
	return nil
}

func (s *Shell) handleSave(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: save <pin-id>")
	}
	if err := s.saves.Save(ctx, args[0], ""); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Saved %s\n", args[0])
	return nil
}

func (s *Shell) handleProfile(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("usage: profile <user-id> [created|saved]")
	}
	mode := pinboard.ModeAuthored
	if len(args) == 2 {
		var err error
		if mode, err = pinboard.ParseCollectionMode(args[1]); err != nil {
			return err
		}
	}
	if err := s.profile.LoadUser(ctx, args[0]); err != nil {
		return err
	}
	return s.loadCollection(ctx, args[0], mode)
}

func (s *Shell) handleMode(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: mode created|saved")
	}
	userID := s.profile.State().UserID
	if userID == "" {
		return fmt.Errorf("no profile loaded (use 'profile <user-id>')")
	}
	mode, err := pinboard.ParseCollectionMode(args[0])
	if err != nil {
		return err
	}
	return s.loadCollection(ctx, userID, mode)
}

func (s *Shell) loadCollection(ctx context.Context, userID string, mode pinboard.CollectionMode) error {
	if err := s.profile.LoadCollection(ctx, userID, mode); err != nil {
		return err
	}
	st := s.profile.State()
	if st.UserStatus == pinboard.StatusEmpty {
		return fmt.Errorf("user %s: %w", userID, pinboard.ErrNotFound)
	}
	printUser(s.out, st.User)
	fmt.Fprintf(s.out, "\n%s pins:\n", st.Mode)
	printPinTable(s.out, st.Pins)
	return nil
}
