package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/BrandonDHaskell/geowatch/internal/geowatch/store"
	"github.com/BrandonDHaskell/geowatch/internal/geowatch/types"
	"github.com/BrandonDHaskell/geowatch/internal/wire"
)

// ── Alerts ───────────────────────────────────────────────────────────────────

type alertAction int

const (
	actionAck alertAction = iota
	actionResolve
	actionFalseAlarm
)

func (s *Server) handleOpenAlerts(c *gin.Context) {
	f := wire.AlertFilter(types.AlertsQuery{
		Kind:     c.Query("kind"),
		Severity: c.Query("severity"),
	})
	alerts, err := s.query.OpenAlerts(c.Request.Context(), f)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respond(c, http.StatusOK, wire.Alerts(alerts))
}

func (s *Server) handleAlertsBySeverity(c *gin.Context) {
	groups, err := s.query.OpenAlertsBySeverity(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respond(c, http.StatusOK, wire.AlertsBySeverity(groups))
}

func (s *Server) handleGetAlert(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	a, err := s.alerts.Get(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respond(c, http.StatusOK, wire.Alert(a))
}

func (s *Server) handleAlertAction(action alertAction) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathID(c)
		if err != nil {
			s.fail(c, err)
			return
		}
		var req types.AlertActionRequest
		if !s.bind(c, &req) {
			return
		}

		ctx := c.Request.Context()
		var a store.Alert
		switch action {
		case actionAck:
			a, err = s.alerts.Acknowledge(ctx, id, req.ActorID)
		case actionResolve:
			a, err = s.alerts.Resolve(ctx, id, req.ActorID, req.Notes)
		case actionFalseAlarm:
			a, err = s.alerts.MarkFalseAlarm(ctx, id, req.ActorID, req.Notes)
		}
		if err != nil {
			s.fail(c, err)
			return
		}
		s.respond(c, http.StatusOK, wire.Alert(a))
	}
}
