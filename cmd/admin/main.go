package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"chatflow/client/internal/api"
	"chatflow/client/internal/config"
	"chatflow/client/internal/forms"
	"chatflow/client/internal/graphql"
	"chatflow/client/internal/logging"
	"chatflow/client/internal/models"
	"chatflow/client/internal/relay"
	"chatflow/client/internal/session"
	"chatflow/client/internal/storage"
	"chatflow/client/internal/telegram"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const usage = `Usage: admin <command> [args]

Commands:
  bootstrap <first> <last> <email> <password>   create the first administrator
  login <email> <password>                       sign in and store tokens
  logout                                         forget stored tokens
  whoami                                         show the signed-in identity
  users                                          list accounts
  rooms                                          list the caller's rooms
  delete-rooms <room_id>...                      delete rooms (admin)
  approve-join <request_id>                      approve a join request
  reject-join <request_id>                       reject a join request
  notify <user_id> <type> <title> <message>      send a notification (admin)
  workspaces                                     list workspaces
  create-workspace <name> [slug] [description]   create a workspace (admin)
  invite <email>                                 invite to the caller's workspace
  invitations                                    list workspace invitations
  relay                                          forward pushes to Telegram and Redis
  tail                                           print events published by relay`

type cli struct {
	cfg      *config.Config
	logger   *logrus.Logger
	log      *logrus.Entry
	store    storage.TokenStore
	session  *session.Provider
	client   *api.Client
	tr       *graphql.Transport
	messages forms.Messages
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	if err := config.LoadDotenv(); err != nil {
		fmt.Fprintln(os.Stderr, "Warning: Error loading .env file")
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, os.Stderr)
	log := logging.Component(logger, "admin")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, closer, err := newCLI(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("setup failed: %v", err)
	}
	defer closer()

	if err := c.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		var fe forms.FieldErrors
		if errors.As(err, &fe) {
			for field, msg := range fe {
				fmt.Fprintf(os.Stderr, "%s: %s\n", field, msg)
			}
			closer()
			os.Exit(2)
		}
		closer()
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

func newCLI(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*cli, func(), error) {
	store, closer, err := storage.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	provider := session.NewProvider(store, logging.Component(logger, "session"))
	if err := provider.Restore(ctx); err != nil {
		logger.WithError(err).Warn("could not restore session")
	}

	httpClient := graphql.NewClient(cfg.HTTPURL, store,
		graphql.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		graphql.WithLogger(logging.Component(logger, "graphql")),
		graphql.WithSessionExpired(provider.Expire),
	)
	subscriber := graphql.NewSubscriber(cfg.WSURL, store,
		graphql.WithSubscriberLogger(logging.Component(logger, "subscriptions")),
		graphql.WithAckTimeout(config.SubscriptionAckTimeout),
	)
	tr := graphql.NewTransport(httpClient, subscriber)

	c := &cli{
		cfg:      cfg,
		logger:   logger,
		log:      logging.Component(logger, "admin"),
		store:    store,
		session:  provider,
		client:   api.New(tr),
		tr:       tr,
		messages: forms.NewMessages(nil, cfg.Language),
	}
	var once bool
	return c, func() {
		if once {
			return
		}
		once = true
		_ = tr.Close()
		_ = closer.Close()
	}, nil
}

func (c *cli) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "bootstrap":
		if len(args) != 4 {
			return usageError("bootstrap <first> <last> <email> <password>")
		}
		f := forms.Register{FirstName: args[0], LastName: args[1], Email: args[2], Password: args[3], ConfirmPassword: args[3]}
		return forms.Submit(ctx, c.messages, f, func(ctx context.Context) error {
			pair, err := c.client.BootstrapAdmin(ctx, f.User())
			if err != nil {
				return err
			}
			if err := c.session.Login(ctx, pair); err != nil {
				return err
			}
			fmt.Printf("Administrator %s created and signed in.\n", f.Email)
			return nil
		})

	case "login":
		if len(args) != 2 {
			return usageError("login <email> <password>")
		}
		f := forms.Login{Email: args[0], Password: args[1]}
		return forms.Submit(ctx, c.messages, f, func(ctx context.Context) error {
			pair, err := c.client.Login(ctx, f.Credentials())
			if err != nil {
				return err
			}
			if err := c.session.Login(ctx, pair); err != nil {
				return err
			}
			return c.whoami(ctx)
		})

	case "logout":
		if err := c.session.Logout(ctx); err != nil {
			return err
		}
		fmt.Println("Signed out.")
		return nil

	case "whoami":
		return c.whoami(ctx)

	case "users":
		users, err := c.client.Users(ctx)
		if err != nil {
			return err
		}
		for _, u := range users {
			fmt.Printf("%-6s %-6s %-28s %s\n", u.ID, models.ParseRole(string(u.Role)), u.Email, u.DisplayName())
		}
		return nil

	case "rooms":
		rooms, err := c.client.MyRooms(ctx)
		if err != nil {
			return err
		}
		self := models.ID("")
		if s, ok := c.session.User(ctx); ok {
			self = s.ID
		}
		for _, r := range rooms {
			private := ""
			if r.IsPrivate {
				private = " (private)"
			}
			fmt.Printf("%-6s %-8s %s%s\n", r.ID, r.Kind(), r.Title(self), private)
		}
		return nil

	case "delete-rooms":
		f := forms.DeleteRooms{}
		for _, id := range args {
			f.RoomIDs = append(f.RoomIDs, models.ID(id))
		}
		return forms.Submit(ctx, c.messages, f, func(ctx context.Context) error {
			ok, err := c.client.DeleteRooms(ctx, f.RoomIDs)
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("server refused to delete the rooms")
			}
			fmt.Printf("Deleted %d room(s).\n", len(f.RoomIDs))
			return nil
		})

	case "approve-join", "reject-join":
		if len(args) != 1 {
			return usageError(command + " <request_id>")
		}
		f := forms.JoinDecision{RequestID: models.ID(args[0])}
		return forms.Submit(ctx, c.messages, f, func(ctx context.Context) error {
			decide := c.client.ApproveJoin
			if command == "reject-join" {
				decide = c.client.RejectJoin
			}
			jr, err := decide(ctx, f.RequestID)
			if err != nil {
				return err
			}
			fmt.Printf("Join request %s is %s.\n", jr.ID, jr.Status)
			return nil
		})

	case "notify":
		if len(args) != 4 {
			return usageError("notify <user_id> <type> <title> <message>")
		}
		f := forms.Notification{UserID: models.ID(args[0]), Type: args[1], Title: args[2], Message: args[3]}
		return forms.Submit(ctx, c.messages, f, func(ctx context.Context) error {
			n, err := c.client.CreateNotification(ctx, f.Input())
			if err != nil {
				return err
			}
			fmt.Printf("Notification %s sent to user %s.\n", n.ID, f.UserID)
			return nil
		})

	case "workspaces":
		workspaces, err := c.client.Workspaces(ctx)
		if err != nil {
			return err
		}
		for _, w := range workspaces {
			fmt.Printf("%-6s %-20s %s\n", w.ID, w.Slug, w.Name)
		}
		return nil

	case "create-workspace":
		if len(args) < 1 || len(args) > 3 {
			return usageError("create-workspace <name> [slug] [description]")
		}
		f := forms.Workspace{Name: args[0]}
		if len(args) > 1 {
			f.Slug = args[1]
		}
		if len(args) > 2 {
			f.Description = args[2]
		}
		return forms.Submit(ctx, c.messages, f, func(ctx context.Context) error {
			w, err := c.client.CreateWorkspace(ctx, f.Input())
			if err != nil {
				return err
			}
			fmt.Printf("Workspace %s (%s) created.\n", w.Name, w.Slug)
			return nil
		})

	case "invite":
		if len(args) != 1 {
			return usageError("invite <email>")
		}
		f := forms.Invite{Email: args[0]}
		return forms.Submit(ctx, c.messages, f, func(ctx context.Context) error {
			res, err := c.client.InviteUser(ctx, strings.TrimSpace(f.Email))
			if err != nil {
				return err
			}
			if !res.Success {
				return errors.New(res.Message)
			}
			fmt.Println(res.Message)
			return nil
		})

	case "invitations":
		invitations, err := c.client.WorkspaceInvitations(ctx)
		if err != nil {
			return err
		}
		for _, inv := range invitations {
			fmt.Printf("%-6s %-28s %-10s %s\n", inv.ID, inv.Email, inv.Status, inv.CreatedAt.Format(time.RFC3339))
		}
		return nil

	case "relay":
		return c.relay(ctx)

	case "tail":
		return c.tail(ctx)
	}
	return usageError("")
}

func usageError(line string) error {
	if line == "" {
		return errors.New("unknown command\n" + usage)
	}
	return errors.New("usage: admin " + line)
}

func (c *cli) whoami(ctx context.Context) error {
	s, ok := c.session.User(ctx)
	if !ok {
		return errors.New("not signed in")
	}
	fmt.Printf("%s <%s> id=%s role=%s\n", s.DisplayName, s.Email, s.ID, s.Role)
	return nil
}

func (c *cli) redis() *redis.Client {
	return redis.NewClient(&redis.Options{Addr: c.cfg.RedisAddr, DB: c.cfg.RedisDB})
}

// relay forwards the signed-in user's pushes to Telegram when a bot token
// and chat id are configured, and always to the Redis event channel.
func (c *cli) relay(ctx context.Context) error {
	if !c.session.IsLoggedIn() {
		return errors.New("not signed in; run admin login first")
	}

	var sinks []relay.Sink

	if c.cfg.TelegramToken != "" && c.cfg.TelegramChatID != 0 {
		fwd, err := telegram.NewBotForwarder(c.cfg.TelegramToken, c.cfg.TelegramChatID,
			logging.Component(c.logger, "telegram"), telegram.WithMessages(true))
		if err != nil {
			return err
		}
		defer fwd.Close()
		sinks = append(sinks, fwd)
	} else {
		c.log.Info("telegram not configured, skipping")
	}

	rdb := c.redis()
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		c.log.WithError(err).Warn("redis unavailable, skipping event channel")
	} else {
		pub := storage.NewEventPublisher(rdb, c.cfg.RedisChannel)
		sinks = append(sinks, relay.NewRedisSink(ctx, pub, logging.Component(c.logger, "redis")))
	}

	r := relay.New(c.client, logging.Component(c.logger, "relay"), sinks...)
	c.log.WithField("sinks", len(sinks)).Info("relay started")
	err := r.Run(ctx)
	c.log.WithFields(logrus.Fields{"messages": r.Messages, "notifications": r.Notifications}).Info("relay stopped")
	return err
}

// tail prints the events relay publishes, one JSON line each.
func (c *cli) tail(ctx context.Context) error {
	rdb := c.redis()
	defer rdb.Close()
	pub := storage.NewEventPublisher(rdb, c.cfg.RedisChannel)
	enc := json.NewEncoder(os.Stdout)
	return pub.Listen(ctx, func(ev storage.Event) {
		if err := enc.Encode(ev); err != nil {
			c.log.WithError(err).Warn("write event")
		}
	}, func(err error) {
		c.log.WithError(err).Warn("bad event")
	})
}
