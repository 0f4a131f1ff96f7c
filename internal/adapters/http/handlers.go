package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dkeye/Rendezvous/internal/adapters/rtc"
	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const defaultRequestTimeout = 10 * time.Second

type OfferRequest struct {
	SDP string `json:"sdp" binding:"required"`
}

type OfferResponse struct {
	SDP string           `json:"sdp"`
	ID  domain.SessionID `json:"id"`
}

// CandidateRequest accepts both the snake_case form and the camelCase form
// browsers produce with RTCIceCandidate.toJSON().
type CandidateRequest struct {
	Candidate          *string `json:"candidate" binding:"required"`
	SDPMid             *string `json:"sdp_mid"`
	SDPMLineIndex      *uint16 `json:"sdp_mline_index"`
	SDPMidCamel        *string `json:"sdpMid"`
	SDPMLineIndexCamel *uint16 `json:"sdpMLineIndex"`
}

func (r CandidateRequest) toDomain() domain.Candidate {
	c := domain.Candidate{SDP: *r.Candidate, SDPMid: r.SDPMid, SDPMLineIndex: r.SDPMLineIndex}
	if c.SDPMid == nil {
		c.SDPMid = r.SDPMidCamel
	}
	if c.SDPMLineIndex == nil {
		c.SDPMLineIndex = r.SDPMLineIndexCamel
	}
	return c
}

type CandidatesResponse struct {
	Candidates []domain.Candidate `json:"candidates"`
}

// SignalingHandlers translate HTTP requests into coordinator calls.
type SignalingHandlers struct {
	svc     core.SessionService
	timeout time.Duration
}

func NewSignalingHandlers(svc core.SessionService, timeout time.Duration) *SignalingHandlers {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &SignalingHandlers{svc: svc, timeout: timeout}
}

func (h *SignalingHandlers) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

func (h *SignalingHandlers) newOffer(c *gin.Context) {
	var req OfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid sdp"})
		return
	}
	if err := rtc.ValidateOffer(req.SDP); err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Msg("offer rejected")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_offer"})
		return
	}

	previous, _ := sessionID(c)
	ctx, cancel := h.ctx(c)
	defer cancel()
	answer, err := h.svc.CreateSession(ctx, req.SDP, previous)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownSession) {
			c.JSON(http.StatusConflict, gin.H{"error": "session_released"})
			return
		}
		h.fail(c, err)
		return
	}
	if err := bindSession(c, answer.ID); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Uint32("sid", uint32(answer.ID)).Msg("save session cookie")
		_ = h.svc.Teardown(context.WithoutCancel(ctx), answer.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session_cookie"})
		return
	}
	log.Info().Str("module", "adapters.http").Uint32("sid", uint32(answer.ID)).
		Str("ct", c.GetString("client_token")).Msg("new session")
	c.JSON(http.StatusOK, OfferResponse{SDP: answer.SDP, ID: answer.ID})
}

func (h *SignalingHandlers) postCandidate(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no_session"})
		return
	}
	var req CandidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid candidate"})
		return
	}
	cand := req.toDomain()
	if err := rtc.ValidateCandidate(cand); err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Uint32("sid", uint32(id)).Msg("candidate rejected")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_candidate"})
		return
	}

	ctx, cancel := h.ctx(c)
	defer cancel()
	if err := h.svc.AddRemoteCandidate(ctx, id, cand); err != nil {
		if errors.Is(err, domain.ErrUnknownSession) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown_session"})
			return
		}
		h.fail(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *SignalingHandlers) getCandidates(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no_session"})
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	cands, live, err := h.svc.DrainLocalCandidates(ctx, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !live && len(cands) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown_session"})
		return
	}
	if cands == nil {
		cands = []domain.Candidate{}
	}
	c.JSON(http.StatusOK, CandidatesResponse{Candidates: cands})
}

func (h *SignalingHandlers) deleteSession(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no_session"})
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	if err := h.svc.Teardown(ctx, id); err != nil {
		h.fail(c, err)
		return
	}
	if err := clearSession(c); err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Msg("clear session cookie")
	}
	c.Status(http.StatusNoContent)
}

func (h *SignalingHandlers) debugSessions(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()
	infos, err := h.svc.Snapshot(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	if infos == nil {
		infos = []domain.SessionInfo{}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": infos})
}

func (h *SignalingHandlers) fail(c *gin.Context, err error) {
	status, code := StatusFor(err)
	ev := log.Warn()
	if status >= http.StatusInternalServerError {
		ev = log.Error()
	}
	ev.Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Int("status", status).Msg("request failed")
	c.JSON(status, gin.H{"error": code})
}

// StatusFor maps coordinator and engine errors to an HTTP status and a
// stable error code.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidOffer):
		return http.StatusBadRequest, "invalid_offer"
	case errors.Is(err, domain.ErrInvalidCandidate):
		return http.StatusBadRequest, "invalid_candidate"
	case errors.Is(err, domain.ErrNegotiation):
		return http.StatusBadRequest, "negotiation_failed"
	case errors.Is(err, domain.ErrUnknownSession):
		return http.StatusUnauthorized, "unknown_session"
	case errors.Is(err, domain.ErrIDExhausted):
		return http.StatusServiceUnavailable, "capacity"
	case errors.Is(err, domain.ErrCoordinatorStopped):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout, "canceled"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
