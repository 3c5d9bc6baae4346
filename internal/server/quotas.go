package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	quotadomain "github.com/smallbiznis/quotaledger/internal/quota/domain"
	"github.com/smallbiznis/quotaledger/pkg/db/pagination"
)

type initializeQuotaRequest struct {
	ConcessionID           string    `json:"concession_id"`
	Holder                 string    `json:"holder"`
	AllocatedQuota         uint64    `json:"allocated_quota"`
	ValidityPeriod         time.Time `json:"validity_period"`
	QuotaType              string    `json:"quota_type"`
	MiningRegion           string    `json:"mining_region"`
	EnvironmentalClearance string    `json:"environmental_clearance"`
}

func (s *Server) InitializeQuota(c *gin.Context) {
	var req initializeQuotaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	quotaType, err := quotadomain.ParseQuotaType(strings.TrimSpace(req.QuotaType))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	q, err := s.quotaSvc.InitializeQuota(c.Request.Context(), quotadomain.InitializeQuotaRequest{
		Caller:                 callerID(c),
		ConcessionID:           strings.TrimSpace(req.ConcessionID),
		Holder:                 strings.TrimSpace(req.Holder),
		AllocatedQuota:         req.AllocatedQuota,
		ValidityPeriod:         req.ValidityPeriod.UTC(),
		QuotaType:              quotaType,
		MiningRegion:           req.MiningRegion,
		EnvironmentalClearance: req.EnvironmentalClearance,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": q})
}

type listQuotasQuery struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
	Holder    string `form:"holder"`
	Regulator string `form:"regulator"`
	Status    string `form:"status"`
}

func (s *Server) ListQuotas(c *gin.Context) {
	var query listQuotasQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.quotaSvc.ListQuotas(c.Request.Context(), quotadomain.ListQuotasRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
		Holder:    query.Holder,
		Regulator: query.Regulator,
		Status:    query.Status,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Quotas, "page_info": resp.PageInfo})
}

func (s *Server) GetQuota(c *gin.Context) {
	q, err := s.quotaSvc.GetQuota(c.Request.Context(), quotaKeyParam(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": q})
}

func (s *Server) GetUtilization(c *gin.Context) {
	u, err := s.quotaSvc.GetUtilization(c.Request.Context(), quotaKeyParam(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": u})
}

type updateQuotaRequest struct {
	NewAllocatedQuota *uint64    `json:"new_allocated_quota"`
	NewValidityPeriod *time.Time `json:"new_validity_period"`
	NewStatus         *string    `json:"new_status"`
	Reason            string     `json:"reason"`
}

func (s *Server) UpdateQuota(c *gin.Context) {
	var req updateQuotaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	update := quotadomain.UpdateQuotaRequest{
		Caller:       callerID(c),
		Key:          quotaKeyParam(c),
		NewAllocated: req.NewAllocatedQuota,
		Reason:       req.Reason,
	}
	if req.NewValidityPeriod != nil {
		validity := req.NewValidityPeriod.UTC()
		update.NewValidity = &validity
	}
	if req.NewStatus != nil {
		status, err := quotadomain.ParseQuotaStatus(strings.TrimSpace(*req.NewStatus))
		if err != nil {
			AbortWithError(c, err)
			return
		}
		update.NewStatus = &status
	}

	q, err := s.quotaSvc.UpdateQuota(c.Request.Context(), update)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": q})
}

type updateConcessionDetailsRequest struct {
	MiningRegion           *string `json:"mining_region"`
	EnvironmentalClearance *string `json:"environmental_clearance"`
}

func (s *Server) UpdateConcessionDetails(c *gin.Context) {
	var req updateConcessionDetailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	q, err := s.quotaSvc.UpdateConcessionDetails(c.Request.Context(), quotadomain.UpdateConcessionDetailsRequest{
		Caller:                 callerID(c),
		Key:                    quotaKeyParam(c),
		MiningRegion:           req.MiningRegion,
		EnvironmentalClearance: req.EnvironmentalClearance,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": q})
}

type suspendQuotaRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) SuspendQuota(c *gin.Context) {
	var req suspendQuotaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	q, err := s.quotaSvc.SuspendQuota(c.Request.Context(), quotadomain.SuspendQuotaRequest{
		Caller: callerID(c),
		Key:    quotaKeyParam(c),
		Reason: req.Reason,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": q})
}

func (s *Server) ReactivateQuota(c *gin.Context) {
	q, err := s.quotaSvc.ReactivateQuota(c.Request.Context(), quotadomain.ReactivateQuotaRequest{
		Caller: callerID(c),
		Key:    quotaKeyParam(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": q})
}

type qualityParamsRequest struct {
	GrossCalorificValue uint32 `json:"gross_calorific_value"`
	MoistureContent     uint16 `json:"moisture_content"`
	AshContent          uint16 `json:"ash_content"`
	SulphurContent      uint16 `json:"sulphur_content"`
	VolatileMatter      uint16 `json:"volatile_matter"`
	FixedCarbon         uint16 `json:"fixed_carbon"`
	CoalGrade           string `json:"coal_grade"`
	SizeClassification  string `json:"size_classification"`
}

type useQuotaRequest struct {
	ShipmentID    string               `json:"shipment_id"`
	Amount        uint64               `json:"amount"`
	QualityParams qualityParamsRequest `json:"quality_params"`
}

// UseQuota draws on the quota in the path. The service rejects callers other than its holder.
func (s *Server) UseQuota(c *gin.Context) {
	var req useQuotaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	key := quotaKeyParam(c)
	grade, err := quotadomain.ParseCoalGrade(strings.TrimSpace(req.QualityParams.CoalGrade))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.quotaSvc.UseQuota(c.Request.Context(), quotadomain.UseQuotaRequest{
		Caller:       callerID(c),
		ConcessionID: key.ConcessionID,
		Holder:       key.Holder,
		ShipmentID:   strings.TrimSpace(req.ShipmentID),
		Amount:       req.Amount,
		Quality: quotadomain.QualityParameters{
			GrossCalorificValue: req.QualityParams.GrossCalorificValue,
			MoistureContent:     req.QualityParams.MoistureContent,
			AshContent:          req.QualityParams.AshContent,
			SulphurContent:      req.QualityParams.SulphurContent,
			VolatileMatter:      req.QualityParams.VolatileMatter,
			FixedCarbon:         req.QualityParams.FixedCarbon,
			CoalGrade:           grade,
			SizeClassification:  req.QualityParams.SizeClassification,
		},
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

type listUsageQuery struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
}

func (s *Server) ListUsage(c *gin.Context) {
	var query listUsageQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	key := quotaKeyParam(c)
	resp, err := s.quotaSvc.ListUsage(c.Request.Context(), quotadomain.ListUsageRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
		ConcessionID: key.ConcessionID,
		Holder:       key.Holder,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp.Usage, "page_info": resp.PageInfo})
}
