package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/photoblog/photoblog/internal/service"
)

type adminCreateRequest struct {
	Email     string `json:"email" binding:"required,max=64,email"`
	Username  string `json:"username" binding:"required,max=64,username"`
	Password  string `json:"password" binding:"required"`
	Confirmed bool   `json:"confirmed"`
	RoleID    int64  `json:"role_id"`
	Name      string `json:"name" binding:"max=64"`
	Location  string `json:"location" binding:"max=64"`
	AboutMe   string `json:"about_me"`
}

type adminUpdateRequest struct {
	Email     string `json:"email" binding:"required,max=64,email"`
	Username  string `json:"username" binding:"required,max=64,username"`
	Confirmed bool   `json:"confirmed"`
	RoleID    int64  `json:"role_id" binding:"required"`
	Name      string `json:"name" binding:"max=64"`
	Location  string `json:"location" binding:"max=64"`
	AboutMe   string `json:"about_me"`
}

// adminListUsers handles GET /admin/users, ordered by id
func (r *Router) adminListUsers(c *gin.Context) {
	ctx := c.Request.Context()
	accounts, pg, err := r.svc.Accounts.List(ctx, pageParam(c, r.cfg.Pagination.AdminItemsPerPage))
	if err != nil {
		sendError(c, err)
		return
	}
	l := newLinks(c)
	items := make([]AdminUserJSON, 0, len(accounts))
	for i := range accounts {
		u, err := r.adminUserJSON(ctx, l, &accounts[i])
		if err != nil {
			sendError(c, err)
			return
		}
		items = append(items, u)
	}
	prev, next := l.neighbours(c, pg)
	c.JSON(http.StatusOK, gin.H{"users": items, "prev": prev, "next": next, "count": pg.Total})
}

// adminCreateUser handles POST /admin/users
func (r *Router) adminCreateUser(c *gin.Context) {
	var req adminCreateRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	account, err := r.svc.Accounts.Create(ctx, service.NewAccount{
		Email:     req.Email,
		Username:  req.Username,
		Password:  req.Password,
		Confirmed: req.Confirmed,
		RoleID:    req.RoleID,
		Name:      req.Name,
		Location:  req.Location,
		AboutMe:   req.AboutMe,
	})
	if err != nil {
		sendError(c, err)
		return
	}
	out, err := r.adminUserJSON(ctx, newLinks(c), account)
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

// adminGetUser handles GET /admin/users/:id
func (r *Router) adminGetUser(c *gin.Context) {
	account, ok := r.loadUser(c)
	if !ok {
		return
	}
	out, err := r.adminUserJSON(c.Request.Context(), newLinks(c), account)
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// adminUpdateUser handles PUT /admin/users/:id
func (r *Router) adminUpdateUser(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req adminUpdateRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	account, err := r.svc.Accounts.Update(ctx, id, service.AccountUpdate{
		Email:     req.Email,
		Username:  req.Username,
		Confirmed: req.Confirmed,
		RoleID:    req.RoleID,
		Name:      req.Name,
		Location:  req.Location,
		AboutMe:   req.AboutMe,
	})
	if err != nil {
		sendError(c, err)
		return
	}
	out, err := r.adminUserJSON(ctx, newLinks(c), account)
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// adminDeleteUser handles DELETE /admin/users/:id
func (r *Router) adminDeleteUser(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := r.svc.Accounts.Delete(c.Request.Context(), id); err != nil {
		sendError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// adminListRoles handles GET /admin/roles, ordered by name
func (r *Router) adminListRoles(c *gin.Context) {
	roles, err := r.svc.Roles.List(c.Request.Context())
	if err != nil {
		sendError(c, err)
		return
	}
	out := make([]RoleJSON, 0, len(roles))
	for _, role := range roles {
		out = append(out, RoleJSON{
			ID:          role.ID,
			Name:        role.Name,
			Permissions: int64(role.Permissions),
			Default:     role.Default,
		})
	}
	c.JSON(http.StatusOK, gin.H{"roles": out})
}
