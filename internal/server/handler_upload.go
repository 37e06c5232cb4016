package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/mockhub/internal/upload"
	"github.com/nao1215/mockhub/pkg/response"
)

// multipartOverhead はmultipartの境界やヘッダーのために上限に加えるバイト数。
const multipartOverhead = 1 << 20

// handleUpload はファイルアップロードのハンドラを返す。フォームのフィールド名は file。
func (s *Server) handleUpload() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.Upload.MaxSize+multipartOverhead)

		fh, err := c.FormFile("file")
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				response.Fail(c, http.StatusRequestEntityTooLarge, upload.ErrTooLarge.Error())
				return
			}
			response.Fail(c, http.StatusBadRequest, "file フィールドが必要です")
			return
		}

		f, err := s.saver.Save(fh)
		switch {
		case errors.Is(err, upload.ErrTooLarge):
			response.Fail(c, http.StatusRequestEntityTooLarge, err.Error())
			return
		case errors.Is(err, upload.ErrEmptyFile):
			response.Fail(c, http.StatusBadRequest, err.Error())
			return
		case err != nil:
			_ = c.Error(err)
			return
		}
		response.SuccessWithStatus(c, http.StatusCreated, f)
	}
}
