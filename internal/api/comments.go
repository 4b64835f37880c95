package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/photoblog/photoblog/internal/db"
	"github.com/photoblog/photoblog/internal/models"
)

type commentRequest struct {
	Body string `json:"body" binding:"required"`
}

type disabledRequest struct {
	Disabled *bool `json:"disabled" binding:"required"`
}

func commentPage(c *gin.Context, l links, comments []models.Comment, pg db.Pagination) CommentPage {
	items := make([]CommentJSON, 0, len(comments))
	for i := range comments {
		items = append(items, commentJSON(l, &comments[i]))
	}
	prev, next := l.neighbours(c, pg)
	return CommentPage{Comments: items, Prev: prev, Next: next, Count: pg.Total}
}

// listPostComments handles GET /posts/:id/comments/
func (r *Router) listPostComments(c *gin.Context) {
	post, ok := r.loadPost(c)
	if !ok {
		return
	}
	comments, pg, err := r.svc.Comments.ListForPost(c.Request.Context(), post, pageParam(c, r.cfg.Pagination.CommentsPerPage))
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, commentPage(c, newLinks(c), comments, pg))
}

// createComment handles POST /posts/:id/comments/
func (r *Router) createComment(c *gin.Context) {
	post, ok := r.loadPost(c)
	if !ok {
		return
	}
	var req commentRequest
	if !bindJSON(c, &req) {
		return
	}
	comment, err := r.svc.Comments.Create(c.Request.Context(), currentAccount(c), post, req.Body)
	if err != nil {
		sendError(c, err)
		return
	}
	out := commentJSON(newLinks(c), comment)
	c.Header("Location", out.URL)
	c.JSON(http.StatusCreated, out)
}

// listComments handles GET /comments/, newest first
func (r *Router) listComments(c *gin.Context) {
	comments, pg, err := r.svc.Comments.List(c.Request.Context(), pageParam(c, r.cfg.Pagination.CommentsPerPage))
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, commentPage(c, newLinks(c), comments, pg))
}

func (r *Router) loadComment(c *gin.Context) (*models.Comment, bool) {
	id, ok := idParam(c, "id")
	if !ok {
		return nil, false
	}
	comment, err := r.svc.Comments.Get(c.Request.Context(), id)
	if err != nil {
		sendError(c, err)
		return nil, false
	}
	return comment, true
}

// getComment handles GET /comments/:id
func (r *Router) getComment(c *gin.Context) {
	comment, ok := r.loadComment(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, commentJSON(newLinks(c), comment))
}

// setCommentDisabled handles PUT /comments/:id/disabled
func (r *Router) setCommentDisabled(c *gin.Context) {
	comment, ok := r.loadComment(c)
	if !ok {
		return
	}
	var req disabledRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := r.svc.Comments.SetDisabled(c.Request.Context(), comment, *req.Disabled); err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, commentJSON(newLinks(c), comment))
}

// deleteComment handles DELETE /comments/:id. Authors, moderators and
// administrators may delete.
func (r *Router) deleteComment(c *gin.Context) {
	comment, ok := r.loadComment(c)
	if !ok {
		return
	}
	p := principal(c)
	if !canManage(p, comment.AuthorID) && !p.Can(models.PermModerateComments) {
		sendError(c, forbidden("insufficient permissions"))
		return
	}
	if err := r.svc.Comments.Delete(c.Request.Context(), comment); err != nil {
		sendError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
