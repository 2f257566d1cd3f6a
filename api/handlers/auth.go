package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flowmail/flowmail/interfaces"
	"github.com/flowmail/flowmail/internal/tracing"
	"github.com/flowmail/flowmail/internal/utils"
)

type AuthHandler struct {
	authService interfaces.AuthService
}

func NewAuthHandler(authService interfaces.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

func (h *AuthHandler) Register() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "Register", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		var request registerRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		account, tokens, err := h.authService.Register(ctx, request.Username, request.Email, request.Password)
		if err != nil {
			tracing.TraceErr(span, err)
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"account": account, "tokens": tokens})
	}
}

func (h *AuthHandler) Login() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "Login", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		var request loginRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		account, tokens, err := h.authService.Login(ctx, request.Login, request.Password)
		if err != nil {
			tracing.TraceErr(span, err)
			// Auth failures map to 401, not the usual 403 ownership response.
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"account": account, "tokens": tokens})
	}
}

func (h *AuthHandler) Refresh() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "Refresh", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		var request refreshRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		tokens, err := h.authService.Refresh(ctx, request.RefreshToken)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"tokens": tokens})
	}
}

func (h *AuthHandler) GoogleAuthURL() gin.HandlerFunc {
	return func(c *gin.Context) {
		_, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "GoogleAuthURL", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		state := c.Query("state")
		if state == "" {
			state = utils.GenerateNanoIDWithPrefix("state", 16)
		}

		url, err := h.authService.GoogleAuthURL(state)
		if err != nil {
			tracing.TraceErr(span, err)
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"url": url, "state": state})
	}
}

func (h *AuthHandler) GoogleCallback() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "GoogleCallback", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		code := c.Query("code")
		if code == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing authorization code"})
			return
		}

		account, tokens, err := h.authService.HandleGoogleCallback(ctx, code)
		if err != nil {
			tracing.TraceErr(span, err)
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"account": account, "tokens": tokens})
	}
}
