package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	quotadomain "github.com/smallbiznis/quotaledger/internal/quota/domain"
	"github.com/smallbiznis/quotaledger/pkg/db/pagination"
)

type transferQuotaRequest struct {
	From         quotadomain.QuotaKey `json:"from"`
	To           quotadomain.QuotaKey `json:"to"`
	Amount       uint64               `json:"amount"`
	Reason       string               `json:"reason"`
	TransferType string               `json:"transfer_type"`
}

func (s *Server) TransferQuota(c *gin.Context) {
	var req transferQuotaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var transferType quotadomain.TransferType
	if raw := strings.TrimSpace(req.TransferType); raw != "" {
		parsed, err := quotadomain.ParseTransferType(raw)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		transferType = parsed
	}

	resp, err := s.quotaSvc.TransferQuota(c.Request.Context(), quotadomain.TransferQuotaRequest{
		Caller:       callerID(c),
		From:         trimKey(req.From),
		To:           trimKey(req.To),
		Amount:       req.Amount,
		Reason:       req.Reason,
		TransferType: transferType,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

type listTransfersQuery struct {
	PageToken    string `form:"page_token"`
	PageSize     int    `form:"page_size"`
	ConcessionID string `form:"concession_id"`
}

func (s *Server) ListTransfers(c *gin.Context) {
	var query listTransfersQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.quotaSvc.ListTransfers(c.Request.Context(), quotadomain.ListTransfersRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
		ConcessionID: query.ConcessionID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp.Transfers, "page_info": resp.PageInfo})
}

func trimKey(key quotadomain.QuotaKey) quotadomain.QuotaKey {
	return quotadomain.QuotaKey{
		ConcessionID: strings.TrimSpace(key.ConcessionID),
		Holder:       strings.TrimSpace(key.Holder),
	}
}
