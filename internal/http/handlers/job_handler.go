package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/installmarket/installmarket-backend/internal/dto"
	"github.com/installmarket/installmarket-backend/internal/http/handlers/common"
	"github.com/installmarket/installmarket-backend/internal/service"
)

type JobHandler struct {
	jobs *service.JobService
}

func NewJobHandler(jobs *service.JobService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

func bindJobInput(req dto.CreateJobRequest) service.CreateJobInput {
	return service.CreateJobInput{
		Title:              req.Title,
		Description:        req.Description,
		Category:           req.Category,
		Location:           req.Location,
		PriceMin:           req.PriceMin,
		PriceMax:           req.PriceMax,
		Tip:                req.Tip,
		GstInvoiceRequired: req.GstInvoiceRequired,
		Deadline:           req.Deadline,
		JobStartDate:       req.JobStartDate,
		Draft:              req.Draft,
	}
}

// Create POST /jobs
func (h *JobHandler) Create(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "некорректное тело запроса")
		return
	}

	job, err := h.jobs.CreateJob(c.Request.Context(), userID, bindJobInput(req))
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, job)
}

// Update PUT /jobs/:id
func (h *JobHandler) Update(c *gin.Context) {
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

	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "некорректное тело запроса")
		return
	}

	job, err := h.jobs.UpdateJob(c.Request.Context(), jobID, userID, bindJobInput(req))
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// Get GET /jobs/:id
func (h *JobHandler) Get(c *gin.Context) {
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

	job, err := h.jobs.GetJob(c.Request.Context(), jobID, userID, role)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// ListOpen GET /jobs
func (h *JobHandler) ListOpen(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	jobs, err := h.jobs.ListOpenJobs(c.Request.Context(), c.Query("category"), limit, offset)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

// ListMine GET /jobs/mine
func (h *JobHandler) ListMine(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	includeArchived := c.Query("archived") == "true"
	jobs, err := h.jobs.ListMyJobs(c.Request.Context(), userID, includeArchived)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

// ListAssigned GET /jobs/assigned
func (h *JobHandler) ListAssigned(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	jobs, err := h.jobs.ListAssignedJobs(c.Request.Context(), userID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

// History GET /jobs/:id/history
func (h *JobHandler) History(c *gin.Context) {
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

	history, err := h.jobs.History(c.Request.Context(), jobID, userID, role)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

// Post POST /jobs/:id/post
func (h *JobHandler) Post(c *gin.Context) {
	h.simpleAction(c, h.jobs.PostJob)
}

// AcceptAssignment POST /jobs/:id/accept-assignment
func (h *JobHandler) AcceptAssignment(c *gin.Context) {
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

	job, err := h.jobs.AcceptAssignment(c.Request.Context(), jobID, userID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// DeclineAssignment POST /jobs/:id/decline-assignment
func (h *JobHandler) DeclineAssignment(c *gin.Context) {
	h.simpleAction(c, h.jobs.DeclineAssignment)
}

// StartWork POST /jobs/:id/start
func (h *JobHandler) StartWork(c *gin.Context) {
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

	var req dto.OtpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "требуется код подтверждения")
		return
	}

	if err := h.jobs.StartWork(c.Request.Context(), jobID, userID, req.Code); err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "in_progress"})
}

// SubmitWork POST /jobs/:id/submit
func (h *JobHandler) SubmitWork(c *gin.Context) {
	h.simpleAction(c, h.jobs.SubmitWork)
}

// ReturnWork POST /jobs/:id/return
func (h *JobHandler) ReturnWork(c *gin.Context) {
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

	var req dto.ReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "требуется причина возврата")
		return
	}

	if err := h.jobs.ReturnWork(c.Request.Context(), jobID, userID, req.Reason); err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "in_progress"})
}

// Complete POST /jobs/:id/complete
func (h *JobHandler) Complete(c *gin.Context) {
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

	var req dto.OtpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "требуется код подтверждения")
		return
	}

	job, err := h.jobs.CompleteWork(c.Request.Context(), jobID, userID, req.Code)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// Approve POST /jobs/:id/approve
func (h *JobHandler) Approve(c *gin.Context) {
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

	job, err := h.jobs.ApproveWork(c.Request.Context(), jobID, userID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// Cancel POST /jobs/:id/cancel
func (h *JobHandler) Cancel(c *gin.Context) {
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

	var req dto.ReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "требуется причина отмены")
		return
	}

	if err := h.jobs.CancelJob(c.Request.Context(), jobID, userID, req.Reason); err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

// CloseUnbid POST /jobs/:id/close-unbid
func (h *JobHandler) CloseUnbid(c *gin.Context) {
	h.simpleAction(c, h.jobs.CloseUnbid)
}

// Promote POST /jobs/:id/promote
func (h *JobHandler) Promote(c *gin.Context) {
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

	var req dto.PromoteJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "некорректное тело запроса")
		return
	}

	if err := h.jobs.PromoteJob(c.Request.Context(), jobID, userID, req.Tip, req.Deadline); err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "open"})
}

// Archive POST /jobs/:id/archive
func (h *JobHandler) Archive(c *gin.Context) {
	h.simpleAction(c, h.jobs.ArchiveJob)
}

// GetOtps GET /jobs/:id/otps
func (h *JobHandler) GetOtps(c *gin.Context) {
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

	startOtp, completionOtp, err := h.jobs.GetOtps(c.Request.Context(), jobID, userID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.OtpResponse{StartOtp: startOtp, CompletionOtp: completionOtp})
}

// ProposeReschedule POST /jobs/:id/reschedule
func (h *JobHandler) ProposeReschedule(c *gin.Context) {
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

	var req dto.RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "требуется новая дата")
		return
	}

	if err := h.jobs.ProposeReschedule(c.Request.Context(), jobID, userID, req.NewDate); err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "pending"})
}

// RespondReschedule POST /jobs/:id/reschedule/respond
func (h *JobHandler) RespondReschedule(c *gin.Context) {
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

	var req dto.RescheduleResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "некорректное тело запроса")
		return
	}

	if err := h.jobs.RespondReschedule(c.Request.Context(), jobID, userID, req.Accept); err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accepted": req.Accept})
}

// DismissReschedule POST /jobs/:id/reschedule/dismiss
func (h *JobHandler) DismissReschedule(c *gin.Context) {
	h.simpleAction(c, h.jobs.DismissReschedule)
}

// simpleAction обслуживает действия без тела запроса.
func (h *JobHandler) simpleAction(c *gin.Context, fn func(ctx context.Context, jobID, userID uuid.UUID) error) {
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

	if err := fn(c.Request.Context(), jobID, userID); err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
