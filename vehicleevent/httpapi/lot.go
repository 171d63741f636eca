package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rkamradt/vehicleevent/vehicleevent/features/command/createlot"
	"github.com/rkamradt/vehicleevent/vehicleevent/features/command/updatelot"
	"github.com/rkamradt/vehicleevent/vehicleevent/features/query/lotsummary"
)

type lotRequest struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Manager string `json:"manager"`
}

func (s *server) createLot(c *gin.Context) {
	var req lotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, malformedBody(err))
		return
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	result, err := s.handlers.CreateLot.Handle(c.Request.Context(),
		createlot.BuildCommand(req.ID, req.Name, req.Manager, time.Now()))

	s.respondCommand(c, http.StatusCreated, result, err)
}

func (s *server) updateLot(c *gin.Context) {
	var req lotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, malformedBody(err))
		return
	}

	result, err := s.handlers.UpdateLot.Handle(c.Request.Context(),
		updatelot.BuildCommand(c.Param("id"), req.Name, req.Manager, time.Now()))

	s.respondCommand(c, http.StatusOK, result, err)
}

func (s *server) getLot(c *gin.Context) {
	summary, err := s.handlers.LotSummary.Handle(c.Request.Context(), lotsummary.Query{LotID: c.Param("id")})
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (s *server) listLots(c *gin.Context) {
	page, err := parsePage(c)
	if err != nil {
		s.respondError(c, err)
		return
	}

	lots, err := s.handlers.LotList.Handle(c.Request.Context(), lotsummary.ListQuery{
		Name:   c.Query("name"),
		Limit:  page.limit,
		Offset: page.offset,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, lots)
}

func (s *server) streamLot(c *gin.Context) {
	sub, err := lotsummary.Subscribe(c.Request.Context(), s.handlers.LotUpdates, c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	defer sub.Cancel()

	stream(c, sub.Updates(), s.heartbeatInterval)
}
