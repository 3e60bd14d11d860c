package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/brandon/mboxadmin/internal/config"
	"github.com/brandon/mboxadmin/internal/session"
	"github.com/brandon/mboxadmin/internal/state"
	"github.com/brandon/mboxadmin/pkg/types"
)

// openSession loads configuration, prompts for a missing password and
// connects the selected account
func openSession(cmd *cli.Command, logger *logrus.Logger) (*session.Session, error) {
	cfg, err := config.LoadConfig(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	if cmd.Bool("no-cache") {
		cfg.Caching = false
	}

	var acct *config.AccountConfig
	if name := cmd.String("account"); name != "" {
		acct, err = cfg.GetAccountByName(name)
		if err != nil {
			return nil, err
		}
	} else {
		acct = cfg.GetDefaultAccount()
	}

	if acct.Password == "" {
		fmt.Fprintf(os.Stderr, "Password for %s@%s: ", acct.Username, acct.Host)
		pw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, fmt.Errorf("failed to read password: %w", err)
		}
		acct.Password = string(pw)
	}

	return session.New(cfg, acct, logger)
}

func foldersCommand(logger *logrus.Logger) *cli.Command {
	return &cli.Command{
		Name:  "folders",
		Usage: "List mailboxes under the active qualifier",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "qualifier", Aliases: []string{"q"}, Usage: "namespace prefix to list under"},
			&cli.StringFlag{Name: "filter", Aliases: []string{"f"}, Usage: "listing wildcard"},
			&cli.BoolFlag{Name: "details", Aliases: []string{"d"}, Usage: "include message counts"},
			&cli.BoolFlag{Name: "rights", Aliases: []string{"r"}, Usage: "include ACL rights"},
			&cli.BoolFlag{Name: "quota", Usage: "include quota usage"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			sess, err := openSession(cmd, logger)
			if err != nil {
				return err
			}
			defer sess.Close() //nolint:errcheck

			if cmd.IsSet("qualifier") {
				sess.State.SetQualifier(cmd.String("qualifier"))
			}
			if cmd.IsSet("filter") {
				sess.State.SetFilter(cmd.String("filter"))
			}

			want := state.Folders
			if cmd.Bool("details") {
				want |= state.Details
			}
			if cmd.Bool("rights") {
				want |= state.Rights
			}
			if cmd.Bool("quota") {
				want |= state.Quota
			}
			if err := sess.State.Load(want); err != nil {
				return err
			}

			ref := sess.State.Folders()
			for ref.Next() {
				m := ref.Mailbox()
				line := m.Name
				if cmd.Bool("details") && m.Selectable() {
					line += fmt.Sprintf("\t%d messages, %d recent, %d unseen", m.Messages, m.Recent, m.Unseen)
				}
				if m.Extra != nil && m.Extra.HasRights {
					line += fmt.Sprintf("\trights=%s", m.Extra.Rights)
				}
				if m.Extra != nil && m.Extra.HasQuota && m.Extra.QuotaRoot != "" {
					line += fmt.Sprintf("\tquota=%d/%dK", m.Extra.StorageUsed, m.Extra.StorageLimit)
				}
				fmt.Println(line)
			}
			return nil
		},
	}
}

func usersCommand(logger *logrus.Logger) *cli.Command {
	return &cli.Command{
		Name:  "users",
		Usage: "List entries of the other-users and shared namespaces",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "shared", Usage: "list the shared namespace only"},
			&cli.BoolFlag{Name: "others", Usage: "list the other-users namespace only"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			sess, err := openSession(cmd, logger)
			if err != nil {
				return err
			}
			defer sess.Close() //nolint:errcheck

			want := state.Shared | state.Others
			if cmd.Bool("shared") && !cmd.Bool("others") {
				want = state.Shared
			}
			if cmd.Bool("others") && !cmd.Bool("shared") {
				want = state.Others
			}
			if err := sess.State.Load(want); err != nil {
				return err
			}

			ref := sess.State.Users()
			for ref.Next() {
				m := ref.Mailbox()
				fmt.Printf("%s\t%s\n", m.Name, sess.Resolver.Classify(m.Name))
			}
			return nil
		},
	}
}

func namespacesCommand(logger *logrus.Logger) *cli.Command {
	return &cli.Command{
		Name:  "namespaces",
		Usage: "Show the server's namespace layout",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			sess, err := openSession(cmd, logger)
			if err != nil {
				return err
			}
			defer sess.Close() //nolint:errcheck

			ns, err := sess.Client.Namespaces()
			if err != nil {
				return err
			}
			printNS := func(label string, descs []types.NamespaceDesc) {
				for _, d := range descs {
					fmt.Printf("%s\tprefix=%q\tdelimiter=%q\n", label, d.Prefix, d.Delimiter)
				}
			}
			printNS("personal", ns.Personal)
			printNS("other users", ns.Others)
			printNS("shared", ns.Shared)
			return nil
		},
	}
}

func headersCommand(logger *logrus.Logger) *cli.Command {
	return &cli.Command{
		Name:      "headers",
		Usage:     "List the messages of a mailbox",
		ArgsUsage: "<mailbox>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "writable", Aliases: []string{"w"}, Usage: "open read-write instead of read-only"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			sess, err := openSession(cmd, logger)
			if err != nil {
				return err
			}
			defer sess.Close() //nolint:errcheck

			ref, err := resolveMailbox(sess, cmd.Args().Get(0))
			if err != nil {
				return err
			}
			if err := sess.State.OpenMailbox(ref, !cmd.Bool("writable")); err != nil {
				return err
			}
			if err := sess.State.Load(state.Headers); err != nil {
				return err
			}

			for _, h := range sess.State.Headers() {
				subject, from, err := h.Summary()
				if err != nil {
					subject, from = "(unparsable)", ""
				}
				fmt.Printf("%4d  uid=%-6d %7dB  %-24s  %s\n", h.Index, h.UID, h.Size, from, subject)
			}
			return nil
		},
	}
}

func messagesCommand(logger *logrus.Logger) *cli.Command {
	return &cli.Command{
		Name:      "messages",
		Usage:     "Resolve message selections against a mailbox",
		ArgsUsage: "<mailbox> <item>...",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "id", Usage: "treat arguments as raw message ids"},
			&cli.BoolFlag{Name: "uid", Usage: "treat arguments as raw message uids"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			sess, err := openSession(cmd, logger)
			if err != nil {
				return err
			}
			defer sess.Close() //nolint:errcheck

			ref, err := resolveMailbox(sess, cmd.Args().Get(0))
			if err != nil {
				return err
			}
			if err := sess.State.OpenMailbox(ref, true); err != nil {
				return err
			}
			if err := sess.State.Load(state.Headers); err != nil {
				return err
			}

			uids, err := state.ResolveItems(
				cmd.Args().Slice(), 1,
				cmd.Bool("id"), cmd.Bool("uid"),
				sess.State.Headers(),
			)
			if err != nil {
				return err
			}
			for _, uid := range uids {
				fmt.Println(uid)
			}
			return nil
		},
	}
}

func createCommand(logger *logrus.Logger) *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "Create a mailbox",
		ArgsUsage: "<name>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			sess, err := openSession(cmd, logger)
			if err != nil {
				return err
			}
			defer sess.Close() //nolint:errcheck

			if err := sess.State.Load(state.Folders); err != nil {
				return err
			}
			name, verbatim, err := sess.Qualify(cmd.Args().Get(0))
			if err != nil {
				return err
			}
			if verbatim {
				logger.WithField("mailbox", name).Warn("Using name verbatim, existence not validated")
			}
			if err := sess.Client.CreateFolder(name); err != nil {
				return err
			}
			delim := sess.Resolver.Delimiter(sess.Resolver.Classify(name))
			sess.State.AddFolder(name, delim)
			fmt.Printf("created %s\n", name)
			return nil
		},
	}
}

func deleteCommand(logger *logrus.Logger) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a mailbox",
		ArgsUsage: "<name>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "recurse", Aliases: []string{"r"}, Usage: "also delete every descendant mailbox"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			sess, err := openSession(cmd, logger)
			if err != nil {
				return err
			}
			defer sess.Close() //nolint:errcheck

			if err := sess.State.Load(state.Folders); err != nil {
				return err
			}
			name, _, err := sess.Qualify(cmd.Args().Get(0))
			if err != nil {
				return err
			}
			ref, ok := sess.State.Folders().Search(name)
			if !ok {
				return fmt.Errorf("mailbox %q: %w", name, state.ErrNotFound)
			}

			targets := []string{}
			if cmd.Bool("recurse") {
				pos := -1
				for ref.Recurse(&pos, sess.Resolver) {
					targets = append(targets, ref.At(pos).Name)
				}
				// Delete leaves before parents.
				for i, j := 0, len(targets)-1; i < j; i, j = i+1, j-1 {
					targets[i], targets[j] = targets[j], targets[i]
				}
			} else {
				targets = append(targets, name)
			}

			for _, target := range targets {
				if err := sess.Client.DeleteFolder(target); err != nil {
					sess.State.Clear(state.Folders)
					return err
				}
				if tref, ok := sess.State.Folders().Search(target); ok {
					sess.State.RemoveFolder(tref)
				}
				fmt.Printf("deleted %s\n", target)
			}
			return nil
		},
	}
}

func renameCommand(logger *logrus.Logger) *cli.Command {
	return &cli.Command{
		Name:      "rename",
		Usage:     "Rename a mailbox",
		ArgsUsage: "<old> <new>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			sess, err := openSession(cmd, logger)
			if err != nil {
				return err
			}
			defer sess.Close() //nolint:errcheck

			if err := sess.State.Load(state.Folders); err != nil {
				return err
			}
			oldName, _, err := sess.Qualify(cmd.Args().Get(0))
			if err != nil {
				return err
			}
			newName, _, err := sess.Qualify(cmd.Args().Get(1))
			if err != nil {
				return err
			}
			if err := sess.Client.RenameFolder(oldName, newName); err != nil {
				return err
			}
			if ref, ok := sess.State.Folders().Search(oldName); ok {
				sess.State.RemoveFolder(ref)
			}
			delim := sess.Resolver.Delimiter(sess.Resolver.Classify(newName))
			sess.State.AddFolder(newName, delim)
			fmt.Printf("renamed %s to %s\n", oldName, newName)
			return nil
		},
	}
}

func quotaCommand(logger *logrus.Logger) *cli.Command {
	return &cli.Command{
		Name:      "quota",
		Usage:     "Show the quota root covering a mailbox",
		ArgsUsage: "<mailbox>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			sess, err := openSession(cmd, logger)
			if err != nil {
				return err
			}
			defer sess.Close() //nolint:errcheck

			ref, err := resolveMailbox(sess, cmd.Args().Get(0))
			if err != nil {
				return err
			}
			q, err := sess.Extras.Quota(ref.Mailbox())
			if err != nil {
				return err
			}
			if q.Root == "" {
				fmt.Println("no quota root")
				return nil
			}
			fmt.Printf("root %s: storage %d/%dK, messages %d/%d\n",
				q.Root, q.StorageUsed, q.StorageLimit, q.MessageUsed, q.MessageLimit)
			return nil
		},
	}
}

func rightsCommand(logger *logrus.Logger) *cli.Command {
	return &cli.Command{
		Name:      "rights",
		Usage:     "Show the ACL rights on a mailbox",
		ArgsUsage: "<mailbox>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			sess, err := openSession(cmd, logger)
			if err != nil {
				return err
			}
			defer sess.Close() //nolint:errcheck

			ref, err := resolveMailbox(sess, cmd.Args().Get(0))
			if err != nil {
				return err
			}
			rights, err := sess.Extras.Rights(ref.Mailbox())
			if err != nil {
				return err
			}
			fmt.Printf("%s: %s\n", ref.Mailbox().Name, rights)
			return nil
		},
	}
}

// resolveMailbox loads the folder listing and positions a ref at the
// mailbox the fragment names
func resolveMailbox(sess *session.Session, fragment string) (state.Ref, error) {
	if err := sess.State.Load(state.Folders); err != nil {
		return state.Ref{}, err
	}
	name, verbatim, err := sess.Qualify(fragment)
	if err != nil {
		return state.Ref{}, err
	}
	ref, ok := sess.State.Folders().Search(name)
	if !ok {
		if !verbatim {
			return state.Ref{}, fmt.Errorf("mailbox %q: %w", name, state.ErrNotFound)
		}
		// A fully qualified name bypasses existence validation; operate
		// on a detached single-entry snapshot.
		sess.Logger.WithField("mailbox", name).Warn("Mailbox not in listing, using name verbatim")
		delim := sess.Resolver.Delimiter(sess.Resolver.Classify(name))
		snap := state.NewSnapshot([]*types.Mailbox{{Name: name, Delimiter: delim}})
		ref = state.RefAt(snap, 0)
	}
	return ref, nil
}
