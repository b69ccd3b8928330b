package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/devswipe/devswipe/internal/api"
	"github.com/devswipe/devswipe/internal/config"
	"github.com/devswipe/devswipe/internal/domain"
	"github.com/devswipe/devswipe/internal/events"
	"github.com/devswipe/devswipe/internal/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	flag.StringVar(&cfg.APIURL, "api", cfg.APIURL, "backend base URL")
	flag.StringVar(&cfg.EventsURL, "events", cfg.EventsURL, "events websocket URL")
	flag.StringVar(&cfg.CachePath, "cache", cfg.CachePath, "local cache path (:memory: to disable persistence)")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	client := api.NewClient(cfg.APIURL)

	var current domain.Identity
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
		current, err = client.Me(ctx)
		if err != nil {
			return fmt.Errorf("validate token: %w", err)
		}
	} else {
		current, err = client.Login(ctx, cfg.Username, cfg.Password)
		if err != nil {
			return err
		}
	}
	logger.Info("logged in", "user", current.CanonicalName)

	var (
		msgCache   domain.MessageCache
		contribLog domain.ContributionLog
	)
	cache, err := sqlite.NewRepository(cfg.CachePath)
	if err != nil {
		logger.Warn("local cache unavailable, continuing without it", "error", err)
	} else {
		defer cache.Close()
		msgCache = cache
		contribLog = cache
	}

	messages := domain.NewMessageStore(client, msgCache, logger)
	feed := domain.NewFeedQueue(client, client, contribLog, logger)
	controller := domain.NewSelectionController(current, messages, feed, client)

	if err := messages.SeedFromCache(ctx, current); err != nil {
		logger.Warn("message cache seed failed", "error", err)
	}
	if err := feed.SeedContributions(ctx); err != nil {
		logger.Warn("contribution seed failed", "error", err)
	}

	if err := controller.RefreshDirectory()(ctx); err != nil {
		logger.Warn("directory fetch failed", "error", err)
	}
	if err := controller.RefreshInbox()(ctx); err != nil {
		logger.Warn("inbox fetch failed", "error", err)
	}
	if err := feed.Load(ctx, current.ID); err != nil {
		logger.Warn("feed load failed", "error", err)
	}

	// Live events refresh the inbox set and, when one is open, the active
	// conversation.
	subscriber := events.NewSubscriber(cfg.EventsURL, current, func(domain.Message) {
		if err := controller.RefreshInbox()(ctx); err != nil {
			logger.Warn("inbox refresh failed", "error", err)
		}
		if peer := controller.SelectedPeer(); peer != nil {
			if cmd := controller.SelectPeer(peer); cmd != nil {
				if err := cmd(ctx); err != nil {
					logger.Warn("conversation refresh failed", "error", err)
				}
			}
		}
	}, logger)
	go func() {
		if err := subscriber.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Error("events subscriber exited with error", "error", err)
		}
	}()

	printHelp()
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		if quit := dispatch(ctx, scanner.Text(), client, controller, messages, feed); quit {
			return nil
		}
		fmt.Print("> ")
	}
	return scanner.Err()
}

func dispatch(ctx context.Context, line string, client *api.Client, controller *domain.SelectionController, messages *domain.MessageStore, feed *domain.FeedQueue) (quit bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	current := controller.Current()

	switch fields[0] {
	case "quit", "exit":
		return true

	case "help":
		printHelp()

	case "inbox":
		controller.SetSearchText(strings.Join(fields[1:], " "))
		printSummaries(controller.Summaries())

	case "open":
		if len(fields) < 2 {
			fmt.Println("usage: open <user>")
			return false
		}
		peer := domain.NewIdentity(0, fields[1], "")
		if cmd := controller.SelectPeer(&peer); cmd != nil {
			if err := cmd(ctx); err != nil {
				fmt.Printf("failed to fetch messages: %v\n", err)
			}
		}
		printConversation(messages.Conversation(), current)

	case "close":
		controller.SelectPeer(nil)
		fmt.Println("conversation closed")

	case "send":
		peer := controller.SelectedPeer()
		if peer == nil {
			fmt.Println("open a conversation first")
			return false
		}
		if _, err := messages.SendMessage(ctx, current, *peer, strings.Join(fields[1:], " ")); err != nil {
			fmt.Printf("send failed: %v\n", err)
			return false
		}
		printConversation(messages.Conversation(), current)

	case "delete":
		if len(fields) < 2 {
			fmt.Println("usage: delete <message-id>")
			return false
		}
		id, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			fmt.Println("usage: delete <message-id>")
			return false
		}
		if err := messages.DeleteMessage(ctx, id); err != nil {
			fmt.Printf("delete failed: %v\n", err)
		}

	case "search":
		results, err := messages.Search(ctx, strings.Join(fields[1:], " "))
		if err != nil {
			fmt.Printf("search failed: %v\n", err)
			return false
		}
		printConversation(results, current)

	case "feed":
		printFeed(feed)

	case "right":
		if err := feed.SwipeRight(ctx, current, current.ID); err != nil {
			fmt.Printf("swipe failed: %v\n", err)
		}
		printFeed(feed)

	case "left":
		if err := feed.SwipeLeft(ctx, current.ID); err != nil {
			fmt.Printf("swipe failed: %v\n", err)
		}
		printFeed(feed)

	case "cats":
		if len(fields) > 1 {
			controller.SetCategories(strings.Split(fields[1], ","))
		} else {
			controller.SetCategories(nil)
		}
		fmt.Printf("available: %s\n", strings.Join(feed.Categories(), ", "))
		fmt.Printf("active:    %s\n", strings.Join(controller.Categories(), ", "))

	case "reload":
		if err := feed.Load(ctx, current.ID); err != nil {
			fmt.Printf("reload failed: %v\n", err)
		}
		printFeed(feed)

	case "contributed":
		for _, c := range feed.Contributed() {
			fmt.Printf("%s (by %s, swiped %s)\n", c.Post.Title, c.Post.Author.CanonicalName, c.SwipedAt.Format("2006-01-02 15:04"))
		}

	case "post":
		parts := strings.SplitN(strings.Join(fields[1:], " "), "|", 4)
		if len(parts) < 2 {
			fmt.Println("usage: post <title> | <category> [| <stack> [| <description>]]")
			return false
		}
		draft := domain.Post{Title: strings.TrimSpace(parts[0]), Category: strings.TrimSpace(parts[1])}
		if len(parts) > 2 {
			draft.Stack = strings.TrimSpace(parts[2])
		}
		if len(parts) > 3 {
			draft.Description = strings.TrimSpace(parts[3])
		}
		created, err := client.CreatePost(ctx, current.ID, draft)
		if err != nil {
			fmt.Printf("post failed: %v\n", err)
			return false
		}
		fmt.Printf("published %q (id %d)\n", created.Title, created.ID)

	case "users":
		query := strings.Join(fields[1:], " ")
		var (
			users []domain.Identity
			err   error
		)
		if query == "" {
			users, err = client.ListUsers(ctx)
		} else {
			users, err = client.SearchUsers(ctx, query)
		}
		if err != nil {
			fmt.Printf("fetch failed: %v\n", err)
			return false
		}
		for _, u := range users {
			fmt.Println(u.CanonicalName)
		}

	case "swiped":
		entries, err := feed.SwipedInbox(ctx, current.ID)
		if err != nil {
			fmt.Printf("fetch failed: %v\n", err)
			return false
		}
		for _, c := range entries {
			fmt.Printf("%s (by %s, swiped %s)\n", c.Post.Title, c.Post.Author.CanonicalName, c.SwipedAt.Format("2006-01-02 15:04"))
		}

	default:
		fmt.Printf("unknown command %q (try help)\n", fields[0])
	}
	return false
}

func printHelp() {
	fmt.Println(`commands:
  inbox [query]     list conversations, or search the user directory
  open <user>       open a conversation
  send <text>       send a message in the open conversation
  close             close the conversation
  search <keyword>  search messages
  delete <id>       delete a message
  feed              show the current post
  right / left      swipe on the current post
  cats [a,b]        set (or clear) category filters
  reload            refetch the feed
  post <t> | <c>    publish a post (title | category | stack | description)
  users [query]     list or search the user directory
  contributed       list right-swiped posts (this session)
  swiped            list right-swiped posts (server-side)
  quit`)
}

func printSummaries(summaries []domain.ConversationSummary) {
	if len(summaries) == 0 {
		fmt.Println("no conversations yet")
		return
	}
	for _, s := range summaries {
		last := "no messages yet"
		if s.LastMessage != nil {
			last = s.LastMessage.Content
		}
		fmt.Printf("%-20s %s\n", s.Peer.CanonicalName, last)
	}
}

func printConversation(msgs []domain.Message, current domain.Identity) {
	for _, m := range msgs {
		marker := " "
		if m.State == domain.Pending {
			marker = "~"
		}
		prefix := m.Sender.CanonicalName
		if m.Sender.Is(current) {
			prefix = "me"
		}
		fmt.Printf("%s[%s] %s\n", marker, prefix, m.Content)
	}
}

func printFeed(feed *domain.FeedQueue) {
	post, ok := feed.Current()
	if !ok {
		fmt.Println("no more posts to show")
		return
	}
	fmt.Printf("%s (#%s) by %s\n", post.Title, post.Category, post.Author.CanonicalName)
	if post.Description != "" {
		fmt.Println(post.Description)
	}
	fmt.Printf("[%d visible, categories: %s]\n", len(feed.Visible()), strings.Join(feed.Categories(), ", "))
}
