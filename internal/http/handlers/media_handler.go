package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/installmarket/installmarket-backend/internal/http/handlers/common"
	"github.com/installmarket/installmarket-backend/internal/service"
)

type MediaHandler struct {
	media *service.MediaService
}

func NewMediaHandler(media *service.MediaService) *MediaHandler {
	return &MediaHandler{media: media}
}

// Upload POST /jobs/:id/media
func (h *MediaHandler) Upload(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный идентификатор заявки")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		common.RespondBadRequest(c, "требуется файл в поле file")
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		common.RespondBadRequest(c, "не удалось прочитать файл")
		return
	}
	defer f.Close()

	m, err := h.media.UploadProof(c.Request.Context(), jobID, userID, fileHeader.Filename, f)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

// ListForJob GET /jobs/:id/media
func (h *MediaHandler) ListForJob(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	role, _ := common.CurrentUserRole(c)
	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный идентификатор заявки")
		return
	}

	files, err := h.media.ListProofs(c.Request.Context(), jobID, userID, role)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"media": files})
}

// Download GET /media/:id
func (h *MediaHandler) Download(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	role, _ := common.CurrentUserRole(c)
	mediaID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный идентификатор файла")
		return
	}

	m, rc, err := h.media.OpenProof(c.Request.Context(), mediaID, userID, role)
	if err != nil {
		common.Fail(c, err)
		return
	}
	defer rc.Close()

	c.Header("Content-Type", m.FileType)
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, rc)
}
