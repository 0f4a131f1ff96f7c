package signal

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dkeye/Rendezvous/internal/adapters/rtc"
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/rs/zerolog/log"
)

type candidateFrame struct {
	Type string `json:"type"`
	domain.Candidate
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidOffer):
		return "invalid_offer"
	case errors.Is(err, domain.ErrInvalidCandidate):
		return "invalid_candidate"
	case errors.Is(err, domain.ErrNegotiation):
		return "negotiation_failed"
	case errors.Is(err, domain.ErrUnknownSession):
		return "unknown_session"
	case errors.Is(err, domain.ErrIDExhausted):
		return "capacity"
	case errors.Is(err, domain.ErrCoordinatorStopped):
		return "unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "internal"
	}
}

func (ctl *SignalWSController) reqCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, ctl.opts.RequestTimeout)
}

func (ctl *SignalWSController) handleOffer(
	ctx context.Context,
	conn *wsSignalConn,
	data []byte,
) {
	type offerPayload struct {
		Type string `json:"type"`
		SDP  string `json:"sdp"`
	}
	var p offerPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad offer payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	if err := rtc.ValidateOffer(p.SDP); err != nil {
		ctl.sendError(conn, errorCode(err))
		return
	}

	rctx, cancel := ctl.reqCtx(ctx)
	defer cancel()
	answer, err := ctl.svc.CreateSession(rctx, p.SDP, conn.sid)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("create session")
		ctl.sendError(conn, errorCode(err))
		return
	}
	conn.sid = answer.ID
	log.Info().Str("module", "signal").Uint32("sid", uint32(answer.ID)).Msg("session bound to socket")

	ctl.sendJSON(conn, struct {
		Type string           `json:"type"`
		SDP  string           `json:"sdp"`
		ID   domain.SessionID `json:"id"`
	}{"answer", answer.SDP, answer.ID})
}

func (ctl *SignalWSController) handleCandidate(
	ctx context.Context,
	conn *wsSignalConn,
	data []byte,
) {
	if conn.sid == domain.NoSession {
		ctl.sendError(conn, "no_session")
		return
	}
	var p candidateFrame
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad candidate payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	if err := rtc.ValidateCandidate(p.Candidate); err != nil {
		ctl.sendError(conn, errorCode(err))
		return
	}

	rctx, cancel := ctl.reqCtx(ctx)
	defer cancel()
	if err := ctl.svc.AddRemoteCandidate(rctx, conn.sid, p.Candidate); err != nil {
		log.Warn().Err(err).Str("module", "signal").Uint32("sid", uint32(conn.sid)).Msg("add ice candidate")
		ctl.sendError(conn, errorCode(err))
		return
	}
	ctl.sendJSON(conn, map[string]string{"type": "ok"})
}

func (ctl *SignalWSController) handlePoll(ctx context.Context, conn *wsSignalConn) {
	if conn.sid == domain.NoSession {
		ctl.sendError(conn, "no_session")
		return
	}
	rctx, cancel := ctl.reqCtx(ctx)
	defer cancel()
	cands, live, err := ctl.svc.DrainLocalCandidates(rctx, conn.sid)
	if err != nil {
		ctl.sendError(conn, errorCode(err))
		return
	}
	if !live && len(cands) == 0 {
		ctl.sendError(conn, "unknown_session")
		return
	}
	if cands == nil {
		cands = []domain.Candidate{}
	}
	ctl.sendJSON(conn, struct {
		Type       string             `json:"type"`
		Candidates []domain.Candidate `json:"candidates"`
	}{"candidates", cands})
}

func (ctl *SignalWSController) handleBye(ctx context.Context, conn *wsSignalConn) {
	if conn.sid != domain.NoSession {
		rctx, cancel := ctl.reqCtx(ctx)
		defer cancel()
		if err := ctl.svc.Teardown(rctx, conn.sid); err != nil {
			ctl.sendError(conn, errorCode(err))
			return
		}
		log.Info().Str("module", "signal").Uint32("sid", uint32(conn.sid)).Msg("bye")
		conn.sid = domain.NoSession
	}
	ctl.sendJSON(conn, map[string]string{"type": "left"})
}
