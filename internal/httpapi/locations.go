package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/BrandonDHaskell/geowatch/internal/geowatch/fault"
	"github.com/BrandonDHaskell/geowatch/internal/geowatch/service"
	"github.com/BrandonDHaskell/geowatch/internal/geowatch/types"
	"github.com/BrandonDHaskell/geowatch/internal/wire"
)

// ── Locations ────────────────────────────────────────────────────────────────

func (s *Server) handleRecordLocation(c *gin.Context) {
	var req types.RecordLocationRequest
	if !s.bind(c, &req) {
		return
	}

	raw, err := wire.RawSample(req)
	if err != nil {
		s.fail(c, err)
		return
	}

	res, err := s.ingestor.Ingest(c.Request.Context(), raw)
	if err != nil {
		s.fail(c, err)
		return
	}

	status := http.StatusCreated
	if !res.Inserted {
		status = http.StatusOK
	}
	s.respond(c, status, wire.RecordLocationResponse(res, s.now()))
}

func (s *Server) handleRecordLocations(c *gin.Context) {
	var req types.RecordLocationsRequest
	if !s.bind(c, &req) {
		return
	}
	if len(req.Samples) == 0 {
		s.fail(c, fault.Validation("samples", "must not be empty"))
		return
	}
	if len(req.Samples) > s.maxBatch {
		s.fail(c, fault.Validation("samples", fmt.Sprintf("at most %d per batch", s.maxBatch)))
		return
	}

	items := make([]types.BatchItem, len(req.Samples))
	raws := make([]service.RawSample, 0, len(req.Samples))
	positions := make([]int, 0, len(req.Samples))
	for i, r := range req.Samples {
		items[i].Index = i
		raw, err := wire.RawSample(r)
		if err != nil {
			body := wire.Error(err)
			items[i].Error = &body
			continue
		}
		raws = append(raws, raw)
		positions = append(positions, i)
	}

	now := s.now()
	for _, br := range s.ingestor.IngestBatch(c.Request.Context(), raws) {
		i := positions[br.Index]
		if br.Err != nil {
			body := wire.Error(br.Err)
			items[i].Error = &body
			continue
		}
		resp := wire.RecordLocationResponse(br.Result, now)
		items[i].Result = &resp
	}

	s.respond(c, http.StatusOK, types.RecordLocationsResponse{Results: items})
}

func (s *Server) handleLiveLocations(c *gin.Context) {
	maxAge, err := durationSeconds(c, "max_age_s", 15*time.Minute)
	if err != nil {
		s.fail(c, err)
		return
	}

	live, err := s.query.LiveLocations(c.Request.Context(), maxAge)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respond(c, http.StatusOK, wire.LiveLocations(live, s.now()))
}

func (s *Server) handleHistory(c *gin.Context) {
	employeeID := c.Param("id")
	from, err := wire.ParseOptionalTime("from", c.Query("from"))
	if err != nil {
		s.fail(c, err)
		return
	}
	to, err := wire.ParseOptionalTime("to", c.Query("to"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if to.IsZero() {
		to = s.now()
	}
	if from.IsZero() {
		from = to.Add(-24 * time.Hour)
	}

	samples, err := s.query.EmployeeHistory(c.Request.Context(), employeeID, from, to)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respond(c, http.StatusOK, types.HistoryResponse{
		EmployeeID: employeeID,
		From:       from.UTC().Format(time.RFC3339Nano),
		To:         to.UTC().Format(time.RFC3339Nano),
		Samples:    wire.Samples(samples),
	})
}

func (s *Server) handleStats(c *gin.Context) {
	s.respond(c, http.StatusOK, wire.Stats(s.ingestor.Stats(), s.now()))
}
