package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rkamradt/vehicleevent/vehicleevent/features/command/purchasevehicle"
	"github.com/rkamradt/vehicleevent/vehicleevent/features/command/sellvehicle"
	"github.com/rkamradt/vehicleevent/vehicleevent/features/command/sendvehicletolot"
	"github.com/rkamradt/vehicleevent/vehicleevent/features/query/vehiclesummary"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/core"
)

type purchaseVehicleRequest struct {
	ID    string      `json:"id"`
	Price core.Amount `json:"price"`
	Type  string      `json:"type"`
}

type sellVehicleRequest struct {
	Price core.Amount `json:"price"`
}

func (s *server) purchaseVehicle(c *gin.Context) {
	var req purchaseVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, malformedBody(err))
		return
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	result, err := s.handlers.PurchaseVehicle.Handle(c.Request.Context(),
		purchasevehicle.BuildCommand(req.ID, req.Price, req.Type, time.Now()))

	s.respondCommand(c, http.StatusCreated, result, err)
}

func (s *server) sendVehicleToLot(c *gin.Context) {
	result, err := s.handlers.SendVehicleToLot.Handle(c.Request.Context(),
		sendvehicletolot.BuildCommand(c.Param("id"), c.Param("lot"), time.Now()))

	s.respondCommand(c, http.StatusOK, result, err)
}

func (s *server) sellVehicle(c *gin.Context) {
	var req sellVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, malformedBody(err))
		return
	}

	result, err := s.handlers.SellVehicle.Handle(c.Request.Context(),
		sellvehicle.BuildCommand(c.Param("id"), req.Price, time.Now()))

	s.respondCommand(c, http.StatusOK, result, err)
}

func (s *server) getVehicle(c *gin.Context) {
	summary, err := s.handlers.VehicleSummary.Handle(c.Request.Context(), vehiclesummary.BuildQuery(c.Param("id")))
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (s *server) streamVehicle(c *gin.Context) {
	sub, err := vehiclesummary.Subscribe(c.Request.Context(), s.handlers.VehicleUpdates, c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	defer sub.Cancel()

	stream(c, sub.Updates(), s.heartbeatInterval)
}
