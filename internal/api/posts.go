package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/photoblog/photoblog/internal/cache"
	"github.com/photoblog/photoblog/internal/db"
	"github.com/photoblog/photoblog/internal/models"
	"github.com/photoblog/photoblog/internal/service"
)

type postRequest struct {
	Body string `json:"body" binding:"required"`
}

// listPosts handles GET /posts/. Pages are cached until posts or comments
// change.
func (r *Router) listPosts(c *gin.Context) {
	ctx := c.Request.Context()
	l := newLinks(c)
	page := pageParam(c, r.cfg.Pagination.PostsPerPage)
	keyParts := []string{"posts", l.base, strconv.Itoa(page.Number), strconv.Itoa(page.Size)}

	var cached PostPage
	if err := r.pages.Get(ctx, &cached, keyParts...); err == nil {
		c.JSON(http.StatusOK, cached)
		return
	} else if !errors.Is(err, cache.ErrMiss) && !errors.Is(err, cache.ErrCacheDisabled) {
		r.logger.Warn("Failed to read cached posts page", zap.Error(err))
	}

	posts, pg, err := r.svc.Posts.List(ctx, page)
	if err != nil {
		sendError(c, err)
		return
	}
	out, err := r.postPage(c, l, posts, pg)
	if err != nil {
		sendError(c, err)
		return
	}
	if err := r.pages.Put(ctx, out, keyParts...); err != nil && !errors.Is(err, cache.ErrCacheDisabled) {
		r.logger.Warn("Failed to cache posts page", zap.Error(err))
	}
	c.JSON(http.StatusOK, out)
}

func (r *Router) postPage(c *gin.Context, l links, posts []models.Post, pg db.Pagination) (PostPage, error) {
	items, err := r.postsJSON(c.Request.Context(), l, posts)
	if err != nil {
		return PostPage{}, err
	}
	prev, next := l.neighbours(c, pg)
	return PostPage{Posts: items, Prev: prev, Next: next, Count: pg.Total}, nil
}

// createPost handles POST /posts/. It accepts a JSON body or a multipart
// form with a body field and an optional image file.
func (r *Router) createPost(c *gin.Context) {
	ctx := c.Request.Context()
	author := currentAccount(c)

	var (
		body string
		img  *service.Image
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		body = c.PostForm("body")
		fh, err := c.FormFile("image")
		if err != nil && !errors.Is(err, http.ErrMissingFile) {
			sendError(c, badRequest("malformed multipart form"))
			return
		}
		if fh != nil {
			f, err := fh.Open()
			if err != nil {
				sendError(c, err)
				return
			}
			defer f.Close()
			img = &service.Image{Filename: fh.Filename, Content: f, Size: fh.Size}
		}
	} else {
		var req postRequest
		if !bindJSON(c, &req) {
			return
		}
		body = req.Body
	}

	post, err := r.svc.Posts.Create(ctx, author, body, img)
	if err != nil {
		sendError(c, err)
		return
	}
	out, err := r.postJSON(ctx, newLinks(c), post, 0)
	if err != nil {
		sendError(c, err)
		return
	}
	c.Header("Location", out.URL)
	c.JSON(http.StatusCreated, out)
}

func (r *Router) loadPost(c *gin.Context) (*models.Post, bool) {
	id, ok := idParam(c, "id")
	if !ok {
		return nil, false
	}
	post, err := r.svc.Posts.Get(c.Request.Context(), id)
	if err != nil {
		sendError(c, err)
		return nil, false
	}
	return post, true
}

// getPost handles GET /posts/:id
func (r *Router) getPost(c *gin.Context) {
	post, ok := r.loadPost(c)
	if !ok {
		return
	}
	r.sendPost(c, post)
}

func (r *Router) sendPost(c *gin.Context, post *models.Post) {
	ctx := c.Request.Context()
	count, err := r.svc.Posts.CommentCounts(ctx, []models.Post{*post})
	if err != nil {
		sendError(c, err)
		return
	}
	out, err := r.postJSON(ctx, newLinks(c), post, count[post.ID])
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// canManage reports whether the principal may edit or delete content
// written by authorID
func canManage(p models.Principal, authorID int64) bool {
	if p.IsAdministrator() {
		return true
	}
	a, ok := p.(*models.Account)
	return ok && a.ID == authorID
}

// updatePost handles PUT /posts/:id. Only the author or an administrator
// may edit.
func (r *Router) updatePost(c *gin.Context) {
	post, ok := r.loadPost(c)
	if !ok {
		return
	}
	if !canManage(principal(c), post.AuthorID) {
		sendError(c, forbidden("insufficient permissions"))
		return
	}
	var req postRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := r.svc.Posts.Update(c.Request.Context(), post, req.Body); err != nil {
		sendError(c, err)
		return
	}
	r.sendPost(c, post)
}

// deletePost handles DELETE /posts/:id. Only the author or an
// administrator may delete.
func (r *Router) deletePost(c *gin.Context) {
	post, ok := r.loadPost(c)
	if !ok {
		return
	}
	if !canManage(principal(c), post.AuthorID) {
		sendError(c, forbidden("insufficient permissions"))
		return
	}
	if err := r.svc.Posts.Delete(c.Request.Context(), post); err != nil {
		sendError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
