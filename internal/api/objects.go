package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/photoblog/photoblog/internal/db"
	"github.com/photoblog/photoblog/internal/models"
)

// PostJSON is the wire form of a post
type PostJSON struct {
	ID           int64     `json:"id"`
	URL          string    `json:"url"`
	Body         string    `json:"body"`
	BodyHTML     string    `json:"body_html"`
	Timestamp    time.Time `json:"timestamp"`
	AuthorURL    string    `json:"author_url"`
	CommentsURL  string    `json:"comments_url"`
	CommentCount int64     `json:"comment_count"`
	ImgURL       *string   `json:"img_url"`
}

// PostPage is a page of posts with links to its neighbours
type PostPage struct {
	Posts []PostJSON `json:"posts"`
	Prev  *string    `json:"prev"`
	Next  *string    `json:"next"`
	Count int64      `json:"count"`
}

// CommentJSON is the wire form of a comment. Disabled comments keep their
// place but lose their rendered body.
type CommentJSON struct {
	ID        int64     `json:"id"`
	URL       string    `json:"url"`
	PostURL   string    `json:"post_url"`
	Body      string    `json:"body"`
	BodyHTML  string    `json:"body_html"`
	Disabled  bool      `json:"disabled"`
	Timestamp time.Time `json:"timestamp"`
	AuthorURL string    `json:"author_url"`
}

// CommentPage is a page of comments
type CommentPage struct {
	Comments []CommentJSON `json:"comments"`
	Prev     *string       `json:"prev"`
	Next     *string       `json:"next"`
	Count    int64         `json:"count"`
}

// UserJSON is the public wire form of an account
type UserJSON struct {
	ID               int64     `json:"id"`
	URL              string    `json:"url"`
	Username         string    `json:"username"`
	Name             string    `json:"name"`
	Location         string    `json:"location"`
	AboutMe          string    `json:"about_me"`
	AvatarURL        string    `json:"avatar_url"`
	MemberSince      time.Time `json:"member_since"`
	LastSeen         time.Time `json:"last_seen"`
	PostsURL         string    `json:"posts_url"`
	FollowedPostsURL string    `json:"followed_posts_url"`
	PostCount        int64     `json:"post_count"`
	FollowersCount   int64     `json:"followers_count"`
	FollowedCount    int64     `json:"followed_count"`
}

// AdminUserJSON adds the fields only administrators see
type AdminUserJSON struct {
	UserJSON
	Email     string `json:"email"`
	Confirmed bool   `json:"confirmed"`
	RoleID    int64  `json:"role_id"`
	Role      string `json:"role"`
}

// FollowJSON is one entry of a followers or followed listing
type FollowJSON struct {
	User      string    `json:"user"`
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}

// FollowPage is a page of follow entries
type FollowPage struct {
	Follows []FollowJSON `json:"follows"`
	Prev    *string      `json:"prev"`
	Next    *string      `json:"next"`
	Count   int64        `json:"count"`
}

// RoleJSON is the wire form of a role
type RoleJSON struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Permissions int64  `json:"permissions"`
	Default     bool   `json:"default"`
}

// links builds absolute API URLs for the request
type links struct {
	origin string
	base   string
}

func newLinks(c *gin.Context) links {
	scheme := "http"
	if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	origin := scheme + "://" + c.Request.Host
	return links{origin: origin, base: origin + apiPrefix}
}

// absolute resolves a host-relative URL against the request origin.
// Absolute URLs, such as presigned object links, pass through.
func (l links) absolute(u string) string {
	if strings.HasPrefix(u, "/") && !strings.HasPrefix(u, "//") {
		return l.origin + u
	}
	return u
}

func (l links) post(id int64) string     { return fmt.Sprintf("%s/posts/%d", l.base, id) }
func (l links) comments(id int64) string { return fmt.Sprintf("%s/posts/%d/comments/", l.base, id) }
func (l links) comment(id int64) string  { return fmt.Sprintf("%s/comments/%d", l.base, id) }
func (l links) user(id int64) string     { return fmt.Sprintf("%s/users/%d", l.base, id) }

// page links the page number of a listing at path. Other query
// parameters are dropped so cached pages carry canonical links.
func (l links) page(path string, number int) *string {
	q := url.Values{"page": {strconv.Itoa(number)}}
	s := l.base + path + "?" + q.Encode()
	return &s
}

func (l links) neighbours(c *gin.Context, p db.Pagination) (prev, next *string) {
	path := c.Request.URL.Path[len(apiPrefix):]
	if p.HasPrev() {
		prev = l.page(path, p.Page-1)
	}
	if p.HasNext() {
		next = l.page(path, p.Page+1)
	}
	return prev, next
}

func (r *Router) postJSON(ctx context.Context, l links, p *models.Post, commentCount int64) (PostJSON, error) {
	out := PostJSON{
		ID:           p.ID,
		URL:          l.post(p.ID),
		Body:         p.Body,
		BodyHTML:     p.BodyHTML,
		Timestamp:    p.CreatedAt,
		AuthorURL:    l.user(p.AuthorID),
		CommentsURL:  l.comments(p.ID),
		CommentCount: commentCount,
	}
	if p.HasImage() {
		u, err := r.svc.Posts.ImageURL(ctx, p)
		if err != nil {
			return PostJSON{}, err
		}
		u = l.absolute(u)
		out.ImgURL = &u
	}
	return out, nil
}

func (r *Router) postsJSON(ctx context.Context, l links, posts []models.Post) ([]PostJSON, error) {
	counts, err := r.svc.Posts.CommentCounts(ctx, posts)
	if err != nil {
		return nil, err
	}
	out := make([]PostJSON, 0, len(posts))
	for i := range posts {
		pj, err := r.postJSON(ctx, l, &posts[i], counts[posts[i].ID])
		if err != nil {
			return nil, err
		}
		out = append(out, pj)
	}
	return out, nil
}

func commentJSON(l links, cm *models.Comment) CommentJSON {
	out := CommentJSON{
		ID:        cm.ID,
		URL:       l.comment(cm.ID),
		PostURL:   l.post(cm.PostID),
		Body:      cm.Body,
		BodyHTML:  cm.BodyHTML,
		Disabled:  cm.Disabled,
		Timestamp: cm.CreatedAt,
		AuthorURL: l.user(cm.AuthorID),
	}
	if cm.Disabled {
		out.Body = ""
		out.BodyHTML = ""
	}
	return out
}

func (r *Router) userJSON(ctx context.Context, l links, a *models.Account) (UserJSON, error) {
	postCount, err := r.svc.Posts.CountByAuthor(ctx, a)
	if err != nil {
		return UserJSON{}, err
	}
	followers, err := r.svc.Follows.FollowerCount(ctx, a)
	if err != nil {
		return UserJSON{}, err
	}
	followed, err := r.svc.Follows.FollowedCount(ctx, a)
	if err != nil {
		return UserJSON{}, err
	}
	return UserJSON{
		ID:               a.ID,
		URL:              l.user(a.ID),
		Username:         a.Username,
		Name:             a.Name,
		Location:         a.Location,
		AboutMe:          a.AboutMe,
		AvatarURL:        a.Gravatar(models.GravatarOptions{Secure: true}),
		MemberSince:      a.MemberSince,
		LastSeen:         a.LastSeen,
		PostsURL:         l.user(a.ID) + "/posts/",
		FollowedPostsURL: l.user(a.ID) + "/timeline/",
		PostCount:        postCount,
		FollowersCount:   followers,
		FollowedCount:    followed,
	}, nil
}

func (r *Router) adminUserJSON(ctx context.Context, l links, a *models.Account) (AdminUserJSON, error) {
	u, err := r.userJSON(ctx, l, a)
	if err != nil {
		return AdminUserJSON{}, err
	}
	out := AdminUserJSON{UserJSON: u, Email: a.Email, Confirmed: a.Confirmed, RoleID: a.RoleID}
	if a.Role != nil {
		out.Role = a.Role.Name
	}
	return out, nil
}
