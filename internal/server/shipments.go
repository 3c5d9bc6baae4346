package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	quotadomain "github.com/smallbiznis/quotaledger/internal/quota/domain"
)

// GetShipment reads the caller's own shipment unless ?holder= names another holder.
func (s *Server) GetShipment(c *gin.Context) {
	holder := strings.TrimSpace(c.Query("holder"))
	if holder == "" {
		holder = callerID(c)
	}

	u, err := s.quotaSvc.GetUsage(c.Request.Context(), quotadomain.UsageKey{
		ShipmentID: strings.TrimSpace(c.Param("shipment_id")),
		Holder:     holder,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": u})
}

type recordLogisticsRequest struct {
	SourceLocation      string `json:"source_location"`
	DestinationLocation string `json:"destination_location"`
	TransportDetails    string `json:"transport_details"`
}

func (s *Server) RecordShipmentLogistics(c *gin.Context) {
	var req recordLogisticsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	u, err := s.quotaSvc.RecordShipmentLogistics(c.Request.Context(), quotadomain.RecordShipmentLogisticsRequest{
		Caller:              callerID(c),
		ShipmentID:          strings.TrimSpace(c.Param("shipment_id")),
		SourceLocation:      req.SourceLocation,
		DestinationLocation: req.DestinationLocation,
		TransportDetails:    req.TransportDetails,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": u})
}
