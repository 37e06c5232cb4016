package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/mockhub/internal/gate"
	"github.com/nao1215/mockhub/internal/mock"
	"github.com/nao1215/mockhub/pkg/middleware"
	"github.com/nao1215/mockhub/pkg/response"
)

// headerMockID は応答したモックのIDを返すHTTPヘッダーキー。
const headerMockID = "X-Mock-Id"

// handleListMocks はモック一覧のハンドラを返す。
func (s *Server) handleListMocks() gin.HandlerFunc {
	return func(c *gin.Context) {
		mocks, err := s.mocks.List(c.Request.Context())
		if err != nil {
			_ = c.Error(err)
			return
		}
		response.Success(c, mocks)
	}
}

// handleCreateMock はモック作成のハンドラを返す。
func (s *Server) handleCreateMock() gin.HandlerFunc {
	return func(c *gin.Context) {
		var in mock.CreateInput
		if !bindJSON(c, &in) {
			return
		}

		m, err := s.mocks.Create(c.Request.Context(), middleware.GetUserID(c), in)
		if errors.Is(err, mock.ErrInvalid) {
			response.Fail(c, http.StatusBadRequest, err.Error())
			return
		}
		if err != nil {
			_ = c.Error(err)
			return
		}
		response.SuccessWithStatus(c, http.StatusCreated, m)
	}
}

// handleDeleteMock はモック削除のハンドラを返す。
func (s *Server) handleDeleteMock() gin.HandlerFunc {
	return func(c *gin.Context) {
		err := s.mocks.Delete(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
		switch {
		case errors.Is(err, mock.ErrNotFound):
			response.Fail(c, http.StatusNotFound, err.Error())
			return
		case errors.Is(err, mock.ErrForbidden):
			response.Fail(c, http.StatusForbidden, err.Error())
			return
		case err != nil:
			_ = c.Error(err)
			return
		}
		response.Success(c, nil)
	}
}

// handleServeMock は /mock 以下へのリクエストに一致するモックを返すハンドラを返す。
func (s *Server) handleServeMock() gin.HandlerFunc {
	return func(c *gin.Context) {
		_, path := gate.SplitFirstSegment(c.Request.URL.Path)
		if path == "" {
			path = "/"
		}

		m, _, err := s.mocks.Find(c.Request.Context(), c.Request.Method, path)
		if errors.Is(err, mock.ErrNotFound) {
			response.Fail(c, http.StatusNotFound, err.Error())
			return
		}
		if err != nil {
			_ = c.Error(err)
			return
		}

		c.Header(headerMockID, m.ID)
		if !m.HasBody() {
			c.Status(m.Status)
			return
		}
		c.Data(m.Status, "application/json; charset=utf-8", m.Body)
	}
}
