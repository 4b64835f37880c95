package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/photoblog/photoblog/pkg/client"
)

// readPassword is replaced in tests
var readPassword = term.ReadPassword

func main() {
	server := flag.String("server", envOr("PHOTOBLOG_SERVER", "http://localhost:5000"), "photoblog server URL")
	email := flag.String("email", os.Getenv("PHOTOBLOG_EMAIL"), "account email, empty for anonymous access")
	page := flag.Int("page", 1, "page of posts to list")
	token := flag.Bool("token", false, "print an auth token instead of listing posts")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdout, os.Stderr, *server, *email, *page, *token); err != nil {
		fmt.Fprintf(os.Stderr, "photoctl: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, out, prompt io.Writer, server, email string, page int, wantToken bool) error {
	var password string
	if email != "" {
		pw, err := askPassword(prompt)
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		password = pw
	}
	c := client.New(server, email, password)

	if wantToken {
		if email == "" {
			return errors.New("-token needs -email")
		}
		tok, ttl, err := c.Token(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\t(expires in %s)\n", tok, ttl)
		return nil
	}

	posts, err := c.Posts(ctx, page)
	if err != nil {
		return err
	}
	printPosts(out, posts, page)
	return nil
}

func askPassword(w io.Writer) (string, error) {
	fmt.Fprint(w, "Password: ")
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

func printPosts(w io.Writer, p *client.PostPage, page int) {
	fmt.Fprintf(w, "%d posts, page %d\n\n", p.Count, page)
	for _, post := range p.Posts {
		fmt.Fprintf(w, "#%d  %s  comments: %d\n", post.ID, post.Timestamp.Format("2006-01-02 15:04"), post.CommentCount)
		if post.ImgURL != nil {
			fmt.Fprintf(w, "    image: %s\n", *post.ImgURL)
		}
		for _, line := range strings.Split(strings.TrimSpace(post.Body), "\n") {
			fmt.Fprintf(w, "    %s\n", line)
		}
		fmt.Fprintln(w)
	}
	if p.Next != nil {
		fmt.Fprintf(w, "more: -page %d\n", page+1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
