// Package storefront assembles the client-side state container: one API
// client, one local store, one session and the cart and chat controllers
// built on them.
package storefront

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"storefront/internal/cart"
	"storefront/internal/chat"
	"storefront/internal/client"
	"storefront/internal/localstore"
	"storefront/internal/models"
	"storefront/internal/notify"
	"storefront/internal/session"
)

type Options struct {
	BaseURL   string
	Timeout   time.Duration
	StatePath string
	Notifier  notify.Notifier
	Logger    logrus.FieldLogger
}

type App struct {
	API      *client.Client
	Store    *localstore.Store
	Session  *session.Session
	Cart     *cart.Controller
	Chat     *chat.Controller
	Notifier notify.Notifier

	log logrus.FieldLogger
}

// Open restores any saved session from StatePath and builds the controllers.
func Open(opts Options) (*App, error) {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	n := opts.Notifier
	if n == nil {
		n = notify.Log{Logger: log}
	}

	store, err := localstore.Open(opts.StatePath)
	if err != nil {
		return nil, err
	}
	sess, err := session.Load(store)
	if err != nil {
		store.Close()
		return nil, err
	}

	api := client.New(client.Config{
		BaseURL: opts.BaseURL,
		Timeout: opts.Timeout,
		Token:   sess.Token(),
	})

	return &App{
		API:     api,
		Store:   store,
		Session: sess,
		Cart: cart.New(cart.Options{
			API:      api,
			Storage:  store,
			Session:  sess,
			Notifier: n,
			Logger:   log,
		}),
		Chat: chat.New(chat.Options{
			API:      api,
			Session:  sess,
			Notifier: n,
			Logger:   log,
		}),
		Notifier: n,
		log:      log,
	}, nil
}

func (a *App) Close() error {
	return a.Store.Close()
}

// Login authenticates, starts a new session and merges the anonymous cart
// into the user's server cart.
func (a *App) Login(ctx context.Context, email, password string) (*models.User, error) {
	resp, err := a.API.Login(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	a.API.SetToken(resp.Token)
	st, err := a.Session.Start(resp.User, resp.Token)
	if err != nil {
		a.API.SetToken("")
		return nil, err
	}
	a.log.WithFields(logrus.Fields{"user_id": st.UserID, "session_id": st.ID}).Info("logged in")

	a.Chat.Reset()
	a.Cart.MergeLocalWithServerCart(ctx)
	return &resp.User, nil
}

// Logout forgets the session. The anonymous cart becomes current again.
func (a *App) Logout() error {
	if err := a.Session.Clear(); err != nil {
		return err
	}
	a.API.SetToken("")
	a.Cart.Reset()
	a.Chat.Reset()
	return nil
}

// Realtime returns a push client authenticated as the current user.
func (a *App) Realtime() *client.Realtime {
	return client.NewRealtime(a.API.BaseURL(), a.Session.Token(), a.log)
}

// WatchChat connects the push channel and binds it to the chat controller.
// The returned function tears both down.
func (a *App) WatchChat(ctx context.Context) (func(), error) {
	if !a.Session.Authenticated() {
		return nil, fmt.Errorf("watch chat: not logged in")
	}
	rt := a.Realtime()
	if err := rt.Connect(ctx); err != nil {
		return nil, err
	}
	binding, err := chat.Bind(a.Chat, rt, a.Session.UserID(), a.log)
	if err != nil {
		rt.Close()
		return nil, err
	}
	return func() {
		if err := binding.Close(); err != nil {
			a.log.WithError(err).Debug("close chat sync")
		}
		rt.Close()
	}, nil
}
