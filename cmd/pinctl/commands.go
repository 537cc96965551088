package main

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/tendant/simple-pins/pkg/pinboard"
	"github.com/tendant/simple-pins/pkg/pinboard/api"
)

// withClient opens a client for the duration of run.
func withClient(cmd *cobra.Command, run func(ctx context.Context, c *client) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	c, err := newClientFromFlags(ctx, cmd)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	defer c.release()
	return run(ctx, c)
}

// NewShowCommand creates the show command
func NewShowCommand() *cobra.Command {
	var relatedLimit int

	cmd := &cobra.Command{
		Use:   "show <pin-id>",
		Short: "Show a pin with its comments and related pins",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c *client) error {
				loader, err := pinboard.NewDetailLoader(c.store, c.options(c.sessions(), pinboard.WithRelatedLimit(relatedLimit), pinboard.WithAuthors())...)
				if err != nil {
					return err
				}
				if err := loader.LoadDetail(ctx, args[0]); err != nil {
					return err
				}
				return printDetail(cmd, loader.State())
			})
		},
	}

	cmd.Flags().IntVar(&relatedLimit, "related", 10, "maximum number of related pins")
	return cmd
}

func printDetail(cmd *cobra.Command, st pinboard.DetailState) error {
	out := cmd.OutOrStdout()
	if st.Status == pinboard.StatusEmpty {
		return fmt.Errorf("pin %s: %w", st.ID, pinboard.ErrNotFound)
	}
	printPin(out, st.Pin, st.Authors)
	fmt.Fprintln(out, "\nMore like this:")
	printPinTable(out, st.Related)
	return nil
}

// NewProfileCommand creates the profile command
func NewProfileCommand() *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "profile <user-id>",
		Short: "Show a user and the pins they created or saved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			collection, err := pinboard.ParseCollectionMode(mode)
			if err != nil {
				return fmt.Errorf("%w (use 'created' or 'saved')", err)
			}
			return withClient(cmd, func(ctx context.Context, c *client) error {
				profile, err := pinboard.NewProfileAggregator(c.store, c.options(c.sessions())...)
				if err != nil {
					return err
				}
				if err := profile.LoadUser(ctx, args[0]); err != nil {
					return err
				}
				if err := profile.LoadCollection(ctx, args[0], collection); err != nil {
					return err
				}
				return printProfile(cmd, profile.State())
			})
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", string(pinboard.ModeAuthored), "collection to list: created or saved")
	return cmd
}

func printProfile(cmd *cobra.Command, st pinboard.ProfileState) error {
	out := cmd.OutOrStdout()
	if st.UserStatus == pinboard.StatusEmpty {
		return fmt.Errorf("user %s: %w", st.UserID, pinboard.ErrNotFound)
	}
	printUser(out, st.User)
	fmt.Fprintf(out, "\n%s pins:\n", st.Mode)
	printPinTable(out, st.Pins)
	return nil
}

// NewCreateCommand creates the create command
func NewCreateCommand() *cobra.Command {
	var draft pinboard.Draft
	var imagePath string

	cmd := &cobra.Command{
		Use:   "create --image <file> --title <title> ...",
		Short: "Upload an image and create a pin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c *client) error {
				ctx = c.sessionContext(ctx)
				creator, err := pinboard.NewCreator(c.store, c.gateway, c.options(c.sessions())...)
				if err != nil {
					return err
				}
				if imagePath != "" {
					if err := uploadFileTo(ctx, cmd.OutOrStdout(), creator, imagePath); err != nil {
						return err
					}
				}
				pin, err := creator.SubmitContent(ctx, draft)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pin created: %s\n", pin.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&imagePath, "image", "", "image file to upload")
	cmd.Flags().StringVar(&draft.Title, "title", "", "pin title")
	cmd.Flags().StringVar(&draft.About, "about", "", "pin description")
	cmd.Flags().StringVar(&draft.Destination, "destination", "", "destination URL")
	cmd.Flags().StringVar(&draft.Category, "category", "", "pin category")
	return cmd
}

func uploadFileTo(ctx context.Context, out io.Writer, creator *pinboard.Creator, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	ref, err := creator.SubmitAsset(ctx, pinboard.AssetFile{
		Reader:      f,
		ContentType: mime.TypeByExtension(filepath.Ext(path)),
		FileName:    filepath.Base(path),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Uploaded %s -> %s\n", filepath.Base(path), ref.URL)
	return nil
}

// NewCommentCommand creates the comment command
func NewCommentCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "comment <pin-id> <text>",
		Short: "Add a comment to a pin",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c *client) error {
				mutator, err := pinboard.NewCommentMutator(c.store, c.options(c.sessions())...)
				if err != nil {
					return err
				}
				comment, err := mutator.AppendComment(ctx, args[0], args[1], "")
				if err != nil {
					return err
				}
				if comment == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "Nothing to post")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Comment %s added\n", comment.ID)
				return nil
			})
		},
	}
}

// NewSaveCommand creates the save command
func NewSaveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "save <pin-id>",
		Short: "Save a pin to your collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c *client) error {
				saver, err := pinboard.NewSaveMutator(c.store, c.options(c.sessions())...)
				if err != nil {
					return err
				}
				if err := saver.Save(ctx, args[0], ""); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", args[0])
				return nil
			})
		},
	}
}

// NewWhoamiCommand creates the whoami command
func NewWhoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the user selected with --as",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c *client) error {
				user, err := pinboard.LoadSessionUser(ctx, c.store, c.sessions())
				if err != nil {
					return err
				}
				printUser(cmd.OutOrStdout(), user)
				return nil
			})
		},
	}
}

// NewSeedUserCommand creates the seed-user command
func NewSeedUserCommand() *cobra.Command {
	var avatar string

	cmd := &cobra.Command{
		Use:   "seed-user <user-id> <display-name>",
		Short: "Create a user record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c *client) error {
				id, err := seedUser(ctx, c.store, args[0], args[1], avatar)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "User created: %s\n", id)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&avatar, "avatar", "", "avatar URL")
	return cmd
}

func seedUser(ctx context.Context, store pinboard.ContentStore, id, name, avatar string) (string, error) {
	doc, err := pinboard.EncodeUser(&pinboard.User{ID: id, DisplayName: name, AvatarRef: avatar})
	if err != nil {
		return "", err
	}
	return store.Create(ctx, doc)
}

// NewTokenCommand creates the token command
func NewTokenCommand() *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue an API session token signed with JWT_SECRET",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := os.Getenv("JWT_SECRET")
			if secret == "" {
				return fmt.Errorf("JWT_SECRET is not set")
			}
			token, err := api.IssueToken(api.NewTokenAuth(secret), args[0], ttl)
			if err != nil {
				return fmt.Errorf("failed to sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
