package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/installmarket/installmarket-backend/internal/dto"
	"github.com/installmarket/installmarket-backend/internal/http/handlers/common"
	"github.com/installmarket/installmarket-backend/internal/service"
)

type BidHandler struct {
	bids *service.BidService
}

func NewBidHandler(bids *service.BidService) *BidHandler {
	return &BidHandler{bids: bids}
}

// Place POST /jobs/:id/bids
func (h *BidHandler) Place(c *gin.Context) {
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

	var req dto.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "некорректное тело запроса")
		return
	}

	bid, err := h.bids.PlaceBid(c.Request.Context(), jobID, userID, service.PlaceBidInput{
		Amount:      req.Amount,
		CoverLetter: req.CoverLetter,
		ScopeItems:  req.ScopeItems,
	})
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, bid)
}

// ListForJob GET /jobs/:id/bids
func (h *BidHandler) ListForJob(c *gin.Context) {
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

	bids, err := h.bids.ListJobBids(c.Request.Context(), jobID, userID, role)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bids": bids})
}

// ListMine GET /bids/mine
func (h *BidHandler) ListMine(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	bids, err := h.bids.ListMyBids(c.Request.Context(), userID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bids": bids})
}

// Withdraw POST /bids/:id/withdraw
func (h *BidHandler) Withdraw(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	bidID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный идентификатор отклика")
		return
	}

	if err := h.bids.WithdrawBid(c.Request.Context(), bidID, userID); err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "withdrawn"})
}

// Accept POST /bids/:id/accept
func (h *BidHandler) Accept(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	bidID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный идентификатор отклика")
		return
	}

	role, _ := common.CurrentUserRole(c)
	job, err := h.bids.AcceptBid(c.Request.Context(), bidID, userID, role)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}
