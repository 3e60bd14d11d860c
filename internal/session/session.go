package session

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/brandon/mboxadmin/internal/config"
	"github.com/brandon/mboxadmin/internal/imapx"
	"github.com/brandon/mboxadmin/internal/state"
	"github.com/brandon/mboxadmin/internal/store"
)

// Session ties together everything a command handler needs for one
// connected account: the protocol client, the cache state, the extra
// attribute store and the namespace resolver. It is constructed after a
// successful login and torn down at disconnect; nothing here is global.
type Session struct {
	Config   *config.Config
	Account  *config.AccountConfig
	Client   *imapx.Client
	State    *state.State
	Extras   *state.Extras
	Resolver *state.Resolver
	Logger   *logrus.Logger

	store *store.Store
}

// New connects to the account's IMAP server and builds the session around
// the live connection
func New(cfg *config.Config, acct *config.AccountConfig, logger *logrus.Logger) (*Session, error) {
	cl := imapx.NewClient(acct, logger)
	if err := cl.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect account %s: %w", acct.Name, err)
	}

	ns, err := cl.Namespaces()
	if err != nil {
		logger.WithError(err).Warn("Failed to fetch namespaces, using defaults")
	}

	st := state.New(cl, state.Options{
		Caching:  cfg.Caching,
		Lifetime: cfg.Lifetime(),
	}, logger)
	st.SetQualifier(acct.Qualifier)
	st.SetFilter(acct.Filter)

	s := &Session{
		Config:   cfg,
		Account:  acct,
		Client:   cl,
		State:    st,
		Extras:   state.NewExtras(cl, logger),
		Resolver: state.NewResolver(ns),
		Logger:   logger,
	}

	if cfg.StorePath != "" {
		db, err := store.Open(cfg.StorePath, logger)
		if err != nil {
			cl.Close() //nolint:errcheck
			return nil, fmt.Errorf("failed to open snapshot store: %w", err)
		}
		accountID, err := db.EnsureAccount(acct)
		if err != nil {
			db.Close() //nolint:errcheck
			cl.Close() //nolint:errcheck
			return nil, fmt.Errorf("failed to register account in store: %w", err)
		}
		s.store = db
		st.SetPersister(db.Account(accountID))
		if st.WarmStart() {
			logger.WithField("account", acct.Name).Debug("Folder listing warm-started")
		}
	}

	return s, nil
}

// Qualify resolves a user-supplied mailbox fragment against the session's
// loaded listing and active qualifier
func (s *Session) Qualify(fragment string) (name string, verbatim bool, err error) {
	current := ""
	if ref, open := s.State.Current(); open {
		current = ref.Mailbox().Name
	}
	return s.Resolver.Qualify(fragment, s.State.Qualifier(), s.State.Folders(), current)
}

// Close tears the session down: closes any open mailbox, logs out and
// releases the store
func (s *Session) Close() error {
	s.State.CloseMailbox()
	var firstErr error
	if err := s.Client.Close(); err != nil {
		firstErr = err
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
