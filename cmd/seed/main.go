package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/photoblog/photoblog/internal/db"
	"github.com/photoblog/photoblog/internal/models"
	"github.com/photoblog/photoblog/internal/service"
	"github.com/photoblog/photoblog/internal/storage"
	"github.com/photoblog/photoblog/pkg/auth"
	"github.com/photoblog/photoblog/pkg/config"
	"github.com/photoblog/photoblog/pkg/logging"
)

type options struct {
	users    int
	posts    int
	comments int
	follows  int
	password string
}

func main() {
	var opts options
	flag.IntVar(&opts.users, "users", 20, "accounts to create")
	flag.IntVar(&opts.posts, "posts", 100, "posts to create")
	flag.IntVar(&opts.comments, "comments", 300, "comments to create")
	flag.IntVar(&opts.follows, "follows", 60, "follow edges to create")
	flag.StringVar(&opts.password, "password", "password", "password of every seeded account")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()
	logger := logging.WithComponent("seed")

	ctx := context.Background()
	database, err := db.New(&cfg.Database, cfg.Logging.Level)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close()
	if err := database.Migrate(ctx); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}

	store, err := storage.New(ctx, &cfg.Storage)
	if err != nil {
		logger.Fatal("Failed to open image store", zap.Error(err))
	}
	tokens, err := auth.NewTokenCodec(cfg.Security.SecretKey)
	if err != nil {
		logger.Fatal("Failed to create token codec", zap.Error(err))
	}
	svc := service.New(db.NewRepository(database.DB), service.Options{
		Security: cfg.Security,
		Tokens:   tokens,
		Store:    store,
	})
	if err := svc.Roles.InsertRoles(ctx); err != nil {
		logger.Fatal("Failed to insert roles", zap.Error(err))
	}

	n, err := run(ctx, svc, rand.New(rand.NewSource(*seed)), opts)
	if err != nil {
		logger.Fatal("Seeding failed", zap.Error(err))
	}
	logger.Info("Seeding done",
		zap.Int64("seed", *seed),
		zap.Int("users", n.users),
		zap.Int("posts", n.posts),
		zap.Int("comments", n.comments),
		zap.Int("follows", n.follows))
}

type counts struct {
	users, posts, comments, follows int
}

// run creates fake content. Accounts whose generated email or username
// collides with an existing one are skipped.
func run(ctx context.Context, svc *service.Services, rng *rand.Rand, opts options) (counts, error) {
	var n counts
	var accounts []*models.Account
	for i := 0; i < opts.users; i++ {
		first, last := pick(rng, firstNames), pick(rng, lastNames)
		username := fmt.Sprintf("%s.%s%d", strings.ToLower(first), strings.ToLower(last), rng.Intn(1000))
		a, err := svc.Accounts.Create(ctx, service.NewAccount{
			Email:     username + "@example.com",
			Username:  username,
			Password:  opts.password,
			Confirmed: true,
			Name:      first + " " + last,
			Location:  pick(rng, cities),
			AboutMe:   sentence(rng, 6+rng.Intn(10)),
		})
		if errors.Is(err, service.ErrConflict) {
			continue
		}
		if err != nil {
			return n, fmt.Errorf("create account: %w", err)
		}
		accounts = append(accounts, a)
		n.users++
	}
	if len(accounts) == 0 {
		return n, nil
	}

	var posts []*models.Post
	for i := 0; i < opts.posts; i++ {
		author := accounts[rng.Intn(len(accounts))]
		p, err := svc.Posts.Create(ctx, author, paragraph(rng, 1+rng.Intn(5)), nil)
		if err != nil {
			return n, fmt.Errorf("create post: %w", err)
		}
		posts = append(posts, p)
		n.posts++
	}

	for i := 0; i < opts.comments && len(posts) > 0; i++ {
		author := accounts[rng.Intn(len(accounts))]
		post := posts[rng.Intn(len(posts))]
		if _, err := svc.Comments.Create(ctx, author, post, sentence(rng, 3+rng.Intn(12))); err != nil {
			return n, fmt.Errorf("create comment: %w", err)
		}
		n.comments++
	}

	for i := 0; i < opts.follows && len(accounts) > 1; i++ {
		a := accounts[rng.Intn(len(accounts))]
		b := accounts[rng.Intn(len(accounts))]
		if a.ID == b.ID {
			continue
		}
		already, err := svc.Follows.IsFollowing(ctx, a, b)
		if err != nil {
			return n, err
		}
		if already {
			continue
		}
		if err := svc.Follows.Follow(ctx, a, b); err != nil {
			return n, fmt.Errorf("follow: %w", err)
		}
		n.follows++
	}
	return n, nil
}

var (
	firstNames = []string{"Ada", "Alan", "Grace", "Linus", "Ken", "Barbara", "Edsger", "Margaret", "Dennis", "Frances", "John", "Susan"}
	lastNames  = []string{"Lovelace", "Turing", "Hopper", "Torvalds", "Thompson", "Liskov", "Dijkstra", "Hamilton", "Ritchie", "Allen", "Backus", "Kare"}
	cities     = []string{"Lisbon", "Oslo", "Kyoto", "Quito", "Nairobi", "Tallinn", "Montreal", "Hobart", "Porto", "Seoul"}
	words      = strings.Fields(`light shadow lens shutter frame harbor morning street portrait window
		river grain film colour summer mountain fog dusk market bridge square stone field quiet
		train coast wind roof garden glass night city lamp rain`)
)

func pick(rng *rand.Rand, from []string) string {
	return from[rng.Intn(len(from))]
}

func sentence(rng *rand.Rand, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = pick(rng, words)
	}
	s := strings.Join(parts, " ")
	return strings.ToUpper(s[:1]) + s[1:] + "."
}

func paragraph(rng *rand.Rand, sentences int) string {
	parts := make([]string, sentences)
	for i := range parts {
		parts[i] = sentence(rng, 5+rng.Intn(10))
	}
	return strings.Join(parts, " ")
}
