package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rkamradt/vehicleevent/vehicleevent/features/command/addpurchaseorder"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/core"
)

type purchaseOrderRequest struct {
	ID    string      `json:"id"`
	Price core.Amount `json:"price"`
	Type  string      `json:"type"`
}

func (s *server) addPurchaseOrder(c *gin.Context) {
	var req purchaseOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, malformedBody(err))
		return
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	result, err := s.handlers.AddPurchaseOrder.Handle(c.Request.Context(),
		addpurchaseorder.BuildCommand(req.ID, req.Price, req.Type, time.Now()))

	s.respondCommand(c, http.StatusCreated, result, err)
}
