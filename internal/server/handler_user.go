package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/mockhub/internal/auth"
	"github.com/nao1215/mockhub/pkg/middleware"
	"github.com/nao1215/mockhub/pkg/response"
)

// credentialsRequest はユーザー登録・ログインのリクエストボディ。
type credentialsRequest struct {
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// loginResponse はログイン成功時のレスポンス。
type loginResponse struct {
	*auth.IssuedToken
	User *auth.User `json:"user"`
}

// handleRegister はユーザー登録のハンドラを返す。
func (s *Server) handleRegister() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req credentialsRequest
		if !bindJSON(c, &req) {
			return
		}

		user, err := s.users.Create(c.Request.Context(), req.Name, req.Password)
		switch {
		case errors.Is(err, auth.ErrUserExists):
			response.Fail(c, http.StatusConflict, err.Error())
			return
		case errors.Is(err, auth.ErrInvalidName), errors.Is(err, auth.ErrInvalidPassword):
			response.Fail(c, http.StatusBadRequest, err.Error())
			return
		case err != nil:
			_ = c.Error(err)
			return
		}

		response.SuccessWithStatus(c, http.StatusCreated, user)
	}
}

// handleLogin はログインのハンドラを返す。成功するとトークンを発行する。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req credentialsRequest
		if !bindJSON(c, &req) {
			return
		}

		user, err := s.users.Authenticate(c.Request.Context(), req.Name, req.Password)
		if errors.Is(err, auth.ErrInvalidCredentials) {
			response.Fail(c, http.StatusUnauthorized, err.Error())
			return
		}
		if err != nil {
			_ = c.Error(err)
			return
		}

		token, err := s.tokens.Issue(c.Request.Context(), user)
		if err != nil {
			_ = c.Error(err)
			return
		}

		response.Success(c, loginResponse{IssuedToken: token, User: user})
	}
}

// handleLogout はリクエストに使われたトークンを失効させるハンドラを返す。
func (s *Server) handleLogout() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := middleware.GetPrincipal(c, s.cfg.JWT.Key)
		if !ok {
			response.Fail(c, http.StatusUnauthorized, "認証情報が取得できません")
			return
		}

		if err := s.tokens.Revoke(c.Request.Context(), principal.TokenID); err != nil && !errors.Is(err, auth.ErrTokenRevoked) {
			_ = c.Error(err)
			return
		}
		response.Success(c, nil)
	}
}

// handleCurrentUser は認証済みユーザーの情報を返すハンドラを返す。
func (s *Server) handleCurrentUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := middleware.GetPrincipal(c, s.cfg.JWT.Key)
		if !ok {
			response.Fail(c, http.StatusUnauthorized, "認証情報が取得できません")
			return
		}

		user, err := s.users.Get(c.Request.Context(), principal.UserID)
		if errors.Is(err, auth.ErrUserNotFound) {
			response.Fail(c, http.StatusNotFound, err.Error())
			return
		}
		if err != nil {
			_ = c.Error(err)
			return
		}
		response.Success(c, user)
	}
}

// bindJSON はリクエストボディをJSONとしてバインドする。
// 失敗した場合はエラーレスポンスを返し、falseを返す。
func bindJSON(c *gin.Context, v any) bool {
	err := c.ShouldBindJSON(v)
	if err == nil {
		return true
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		response.Fail(c, http.StatusRequestEntityTooLarge, "リクエストボディが大きすぎます")
		return false
	}
	response.Fail(c, http.StatusBadRequest, "リクエストボディが不正です")
	return false
}
