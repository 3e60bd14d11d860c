package main

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
)

var version = "dev"

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{})
	logger.SetOutput(os.Stderr)

	cmd := &cli.Command{
		Name:    "mboxadmin",
		Usage:   "administer mailboxes on an IMAP server",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the YAML configuration file",
			},
			&cli.StringFlag{
				Name:    "account",
				Aliases: []string{"a"},
				Usage:   "account name to operate on (default: first configured)",
			},
			&cli.BoolFlag{
				Name:  "no-cache",
				Usage: "bypass the state cache for this invocation",
			},
		},
		Commands: []*cli.Command{
			foldersCommand(logger),
			usersCommand(logger),
			namespacesCommand(logger),
			headersCommand(logger),
			messagesCommand(logger),
			createCommand(logger),
			deleteCommand(logger),
			renameCommand(logger),
			quotaCommand(logger),
			rightsCommand(logger),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logger.Fatal(err)
	}
}
