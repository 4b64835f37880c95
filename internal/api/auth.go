package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/photoblog/photoblog/internal/service"
	"github.com/photoblog/photoblog/pkg/auth"
)

type registerRequest struct {
	Email    string `json:"email" binding:"required,max=64,email"`
	Username string `json:"username" binding:"required,max=64,username"`
	Password string `json:"password" binding:"required"`
}

type tokenRequest struct {
	Token string `json:"token" binding:"required"`
}

type emailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type resetRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type emailChangeRequest struct {
	Email    string `json:"email" binding:"required,max=64,email"`
	Password string `json:"password" binding:"required"`
}

type passwordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	Password    string `json:"password" binding:"required"`
}

type profileRequest struct {
	Name     string `json:"name" binding:"max=64"`
	Location string `json:"location" binding:"max=64"`
	AboutMe  string `json:"about_me"`
}

var errBadToken = badRequest("the link is invalid or has expired")

// token handles GET /token. A token cannot be exchanged for a new one.
func (r *Router) token(c *gin.Context) {
	account := currentAccount(c)
	if account == nil || c.GetBool(tokenUsedKey) {
		sendError(c, unauthorized("invalid credentials"))
		return
	}
	token, ttl, err := r.svc.Accounts.IssueAuthToken(account)
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "expiration": int64(ttl.Seconds())})
}

// register handles POST /auth/register and mails a confirmation link
func (r *Router) register(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	account, err := r.svc.Accounts.Create(ctx, service.NewAccount{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		sendError(c, err)
		return
	}
	token, err := r.svc.Accounts.GenerateConfirmationToken(account, 0)
	if err != nil {
		sendError(c, err)
		return
	}
	r.notifier.SendConfirmation(account, token)

	out, err := r.userJSON(ctx, newLinks(c), account)
	if err != nil {
		sendError(c, err)
		return
	}
	c.Header("Location", out.URL)
	c.JSON(http.StatusCreated, out)
}

// confirm handles POST /auth/confirm
func (r *Router) confirm(c *gin.Context) {
	account := currentAccount(c)
	if account.Confirmed {
		c.JSON(http.StatusOK, gin.H{"confirmed": true})
		return
	}
	var req tokenRequest
	if !bindJSON(c, &req) {
		return
	}
	ok, err := r.svc.Accounts.Confirm(c.Request.Context(), account, req.Token)
	if err != nil {
		sendError(c, err)
		return
	}
	if !ok {
		sendError(c, errBadToken)
		return
	}
	c.JSON(http.StatusOK, gin.H{"confirmed": true})
}

// resendConfirmation handles POST /auth/confirm/resend
func (r *Router) resendConfirmation(c *gin.Context) {
	account := currentAccount(c)
	if account.Confirmed {
		c.JSON(http.StatusOK, gin.H{"confirmed": true})
		return
	}
	token, err := r.svc.Accounts.GenerateConfirmationToken(account, 0)
	if err != nil {
		sendError(c, err)
		return
	}
	r.notifier.SendConfirmation(account, token)
	c.JSON(http.StatusAccepted, gin.H{"message": "a new confirmation email has been sent"})
}

// requestPasswordReset handles POST /auth/reset/request. The answer does
// not reveal whether the address is registered.
func (r *Router) requestPasswordReset(c *gin.Context) {
	var req emailRequest
	if !bindJSON(c, &req) {
		return
	}
	account, err := r.svc.Accounts.GetByEmail(c.Request.Context(), req.Email)
	switch {
	case errors.Is(err, service.ErrNotFound):
	case err != nil:
		sendError(c, err)
		return
	default:
		token, err := r.svc.Accounts.GenerateResetToken(account, 0)
		if err != nil {
			sendError(c, err)
			return
		}
		r.notifier.SendPasswordReset(account, token)
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "an email with instructions to reset your password has been sent"})
}

// resetPassword handles POST /auth/reset
func (r *Router) resetPassword(c *gin.Context) {
	var req resetRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	account, err := r.svc.Accounts.GetByEmail(ctx, req.Email)
	if errors.Is(err, service.ErrNotFound) {
		sendError(c, errBadToken)
		return
	}
	if err != nil {
		sendError(c, err)
		return
	}
	ok, err := r.svc.Accounts.ResetPassword(ctx, account, req.Token, req.Password)
	if err != nil {
		sendError(c, err)
		return
	}
	if !ok {
		sendError(c, errBadToken)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "your password has been updated"})
}

// requestEmailChange handles POST /auth/change-email/request. The link is
// mailed to the new address.
func (r *Router) requestEmailChange(c *gin.Context) {
	var req emailChangeRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	account := currentAccount(c)
	if !auth.CheckPassword(req.Password, account.PasswordHash) {
		sendError(c, badRequest("password: invalid password"))
		return
	}
	taken, err := r.svc.Accounts.GetByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, service.ErrNotFound) {
		sendError(c, err)
		return
	}
	if taken != nil {
		sendError(c, NewError(http.StatusConflict, "email already registered"))
		return
	}
	token, err := r.svc.Accounts.GenerateEmailChangeToken(account, req.Email, 0)
	if err != nil {
		sendError(c, err)
		return
	}
	r.notifier.SendEmailChange(account, req.Email, token)
	c.JSON(http.StatusAccepted, gin.H{"message": "an email with instructions to confirm your new email address has been sent"})
}

// changeEmail handles POST /auth/change-email
func (r *Router) changeEmail(c *gin.Context) {
	var req tokenRequest
	if !bindJSON(c, &req) {
		return
	}
	account := currentAccount(c)
	ok, err := r.svc.Accounts.ChangeEmail(c.Request.Context(), account, req.Token)
	if err != nil {
		sendError(c, err)
		return
	}
	if !ok {
		sendError(c, errBadToken)
		return
	}
	c.JSON(http.StatusOK, gin.H{"email": account.Email})
}

// changePassword handles POST /auth/password
func (r *Router) changePassword(c *gin.Context) {
	var req passwordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := r.svc.Accounts.ChangePassword(c.Request.Context(), currentAccount(c), req.OldPassword, req.Password); err != nil {
		sendError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// updateProfile handles PUT /profile
func (r *Router) updateProfile(c *gin.Context) {
	var req profileRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	account := currentAccount(c)
	err := r.svc.Accounts.UpdateProfile(ctx, account, service.Profile{
		Name:     req.Name,
		Location: req.Location,
		AboutMe:  req.AboutMe,
	})
	if err != nil {
		sendError(c, err)
		return
	}
	out, err := r.userJSON(ctx, newLinks(c), account)
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
