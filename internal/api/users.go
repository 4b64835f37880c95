package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/photoblog/photoblog/internal/db"
	"github.com/photoblog/photoblog/internal/models"
)

func (r *Router) loadUser(c *gin.Context) (*models.Account, bool) {
	id, ok := idParam(c, "id")
	if !ok {
		return nil, false
	}
	account, err := r.svc.Accounts.Get(c.Request.Context(), id)
	if err != nil {
		sendError(c, err)
		return nil, false
	}
	return account, true
}

// getUser handles GET /users/:id
func (r *Router) getUser(c *gin.Context) {
	account, ok := r.loadUser(c)
	if !ok {
		return
	}
	out, err := r.userJSON(c.Request.Context(), newLinks(c), account)
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// listUserPosts handles GET /users/:id/posts/
func (r *Router) listUserPosts(c *gin.Context) {
	account, ok := r.loadUser(c)
	if !ok {
		return
	}
	posts, pg, err := r.svc.Posts.ListByAuthor(c.Request.Context(), account, pageParam(c, r.cfg.Pagination.PostsPerPage))
	r.sendPostPage(c, posts, pg, err)
}

// listTimeline handles GET /users/:id/timeline/: posts of everyone the user
// follows, the user included
func (r *Router) listTimeline(c *gin.Context) {
	account, ok := r.loadUser(c)
	if !ok {
		return
	}
	posts, pg, err := r.svc.Posts.Feed(c.Request.Context(), account, pageParam(c, r.cfg.Pagination.PostsPerPage))
	r.sendPostPage(c, posts, pg, err)
}

func (r *Router) sendPostPage(c *gin.Context, posts []models.Post, pg db.Pagination, err error) {
	if err != nil {
		sendError(c, err)
		return
	}
	out, err := r.postPage(c, newLinks(c), posts, pg)
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// listFollowers handles GET /users/:id/followers/
func (r *Router) listFollowers(c *gin.Context) {
	account, ok := r.loadUser(c)
	if !ok {
		return
	}
	follows, pg, err := r.svc.Follows.Followers(c.Request.Context(), account, pageParam(c, r.cfg.Pagination.FollowersPerPage))
	if err != nil {
		sendError(c, err)
		return
	}
	r.sendFollowPage(c, follows, pg, func(f *models.Follow) *models.Account { return f.Follower })
}

// listFollowed handles GET /users/:id/followed/
func (r *Router) listFollowed(c *gin.Context) {
	account, ok := r.loadUser(c)
	if !ok {
		return
	}
	follows, pg, err := r.svc.Follows.Followed(c.Request.Context(), account, pageParam(c, r.cfg.Pagination.FollowersPerPage))
	if err != nil {
		sendError(c, err)
		return
	}
	r.sendFollowPage(c, follows, pg, func(f *models.Follow) *models.Account { return f.Followed })
}

func (r *Router) sendFollowPage(c *gin.Context, follows []models.Follow, pg db.Pagination, other func(*models.Follow) *models.Account) {
	l := newLinks(c)
	items := make([]FollowJSON, 0, len(follows))
	for i := range follows {
		a := other(&follows[i])
		if a == nil {
			continue
		}
		items = append(items, FollowJSON{User: l.user(a.ID), Username: a.Username, Timestamp: follows[i].CreatedAt})
	}
	prev, next := l.neighbours(c, pg)
	c.JSON(http.StatusOK, FollowPage{Follows: items, Prev: prev, Next: next, Count: pg.Total})
}

// follow handles POST /users/:id/follow
func (r *Router) follow(c *gin.Context) {
	target, ok := r.loadUser(c)
	if !ok {
		return
	}
	me := currentAccount(c)
	if err := r.svc.Follows.Follow(c.Request.Context(), me, target); err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"following": true, "user": newLinks(c).user(target.ID)})
}

// unfollow handles DELETE /users/:id/follow
func (r *Router) unfollow(c *gin.Context) {
	target, ok := r.loadUser(c)
	if !ok {
		return
	}
	me := currentAccount(c)
	if err := r.svc.Follows.Unfollow(c.Request.Context(), me, target); err != nil {
		sendError(c, err)
		return
	}
	following, err := r.svc.Follows.IsFollowing(c.Request.Context(), me, target)
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"following": following, "user": newLinks(c).user(target.ID)})
}
