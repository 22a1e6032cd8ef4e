package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	log "github.com/sirupsen/logrus"

	"github.com/nativesixs/fullstack-exercise-sub000/pkg/auth"
	"github.com/nativesixs/fullstack-exercise-sub000/pkg/client"
	"github.com/nativesixs/fullstack-exercise-sub000/pkg/config"
	"github.com/nativesixs/fullstack-exercise-sub000/pkg/models"
	"github.com/nativesixs/fullstack-exercise-sub000/pkg/push"
	"github.com/nativesixs/fullstack-exercise-sub000/pkg/section"
	"github.com/nativesixs/fullstack-exercise-sub000/pkg/storage/badgerdb"
	"github.com/nativesixs/fullstack-exercise-sub000/pkg/vote"
)

type options struct {
	articleID string
	post      string
	author    string
	vote      string
	watch     bool
}

func main() {
	var (
		configPath string
		logLevel   string
		apiBase    string
		mode       string
		opts       options
	)

	flag.StringVar(&configPath, "config", "cmd/commentsync/config.toml", "Path to TOML config file")
	flag.StringVar(&logLevel, "log", "", "Log level: debug, info, warn, error.")
	flag.StringVar(&apiBase, "api", "", "Backend base URL, e.g. 'http://localhost:8080'.")
	flag.StringVar(&mode, "mode", "", "Push transport: live or mock.")
	flag.StringVar(&opts.articleID, "article", "", "Article whose comments are shown.")
	flag.StringVar(&opts.post, "post", "", "Comment to submit to the article.")
	flag.StringVar(&opts.author, "author", "", "Author name of the submitted comment.")
	flag.StringVar(&opts.vote, "vote", "", "Vote to cast in the form 'commentID:up' or 'commentID:down'.")
	flag.BoolVar(&opts.watch, "watch", false, "Keep running and print the list on every change.")
	flag.Parse()

	cfg := config.DefaultClient()
	if err := config.Load(configPath, &cfg, true); err != nil {
		log.Fatalf("[commentsync] %v", err)
	}

	// Override config with flags if set
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if apiBase != "" {
		cfg.APIBase = apiBase
	}
	if mode != "" {
		cfg.Mode = mode
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("[commentsync] %v", err)
	}
	config.SetLogLevel(cfg.LogLevel)
	log.Debugf("[commentsync] config: %v", cfg)

	if opts.articleID == "" {
		log.Fatal("[commentsync] -article is required")
	}

	if err := run(cfg, opts); err != nil {
		log.Fatalf("[commentsync] %v", err)
	}
}

func run(cfg config.Client, opts options) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	api, err := client.New(client.Config{BaseURL: cfg.APIBase, Timeout: cfg.RequestTimeout.Duration})
	if err != nil {
		return err
	}

	session := auth.NewSession(cfg.APIKey)
	if cfg.Username != "" {
		token, err := api.Login(ctx, cfg.APIKey, cfg.Username, cfg.Password)
		if err != nil {
			return fmt.Errorf("login as %q: %w", cfg.Username, err)
		}
		session.SetAccessToken(token.AccessToken)
		log.Infof("[commentsync] logged in as %q", cfg.Username)
	} else {
		log.Warn("[commentsync] no username configured, voting and posting are disabled")
	}

	db, err := badgerdb.New(badgerdb.Config{Path: cfg.VotesPath, SyncWrites: true})
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Errorf("[commentsync] failed to close vote storage: %v", err)
		}
	}()

	votes, err := vote.NewStore(ctx, db)
	if err != nil {
		return err
	}

	pushConf := push.DefaultConfig(cfg.APIBase)
	pushConf.ReconnectInterval = cfg.ReconnectInterval.Duration
	ch := push.New(pushConf, session, push.NewCodec(cfg.Mode))
	ch.Connect()
	defer ch.Disconnect()

	sec := section.New(opts.articleID, section.Deps{
		Backend: api,
		Channel: ch,
		Votes:   votes,
		Auth:    session,
	})
	if err := sec.Mount(ctx); err != nil {
		return err
	}
	defer sec.Unmount()

	if opts.vote != "" {
		if err := castVote(ctx, sec, opts.vote); err != nil {
			return err
		}
	}
	if opts.post != "" {
		comment, err := sec.Submit(ctx, opts.author, opts.post)
		if err != nil {
			return err
		}
		log.Infof("[commentsync] comment %s posted", comment.ID)
	}

	printComments(sec.Comments())
	if !opts.watch {
		return nil
	}

	sec.OnChange(func() {
		printComments(sec.Comments())
	})
	log.Infof("[commentsync] watching article %s, press Ctrl+C to stop", opts.articleID)
	<-ctx.Done()
	log.Info("[commentsync] shutting down gracefully...")
	return nil
}

func castVote(ctx context.Context, sec *section.Controller, arg string) error {
	commentID, dirStr, ok := strings.Cut(arg, ":")
	if !ok || commentID == "" {
		return fmt.Errorf("invalid -vote %q, want 'commentID:up|down'", arg)
	}
	dir, err := models.ParseDirection(dirStr)
	if err != nil {
		return err
	}

	v, err := sec.Vote(ctx, commentID, dir)
	switch {
	case errors.Is(err, auth.ErrRequired):
		return errors.New("log in to vote")
	case errors.Is(err, vote.ErrPartialVote):
		log.Warnf("[commentsync] vote on %s only partially applied: %v", commentID, err)
	case err != nil:
		return err
	}

	log.Infof("[commentsync] your vote on %s is now %v", commentID, v)
	return nil
}

func printComments(views []section.View) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCORE\tYOU\tAUTHOR\tPOSTED\tCONTENT")
	for _, v := range views {
		fmt.Fprintf(w, "%s\t%d\t%v\t%s\t%s\t%s\n",
			v.ID, v.Score, v.Vote, v.Author, v.PostedAt.Format("2006-01-02 15:04"), v.Content)
	}
	w.Flush()
	fmt.Println()
}
