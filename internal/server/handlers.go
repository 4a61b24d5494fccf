package server

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/CoreyFoshee/thatsamorepizza/internal/domain"
	apperrors "github.com/CoreyFoshee/thatsamorepizza/internal/errors"
)

type voteRequest struct {
	Choice string `json:"choice"`
}

type voteResponse struct {
	Success bool         `json:"success"`
	Votes   domain.Tally `json:"votes"`
}

// voterID returns the caller's stable voter id, minting one into the
// session cookie on first contact.
func (s *Server) voterID(c echo.Context) (string, error) {
	session, err := s.sessionStore.Get(c.Request(), sessionName)
	if err != nil {
		// A tampered cookie decodes to a fresh session; fall through.
		slog.Debug("Session decode failed, starting fresh", "error", err)
	}

	if id, ok := session.Values[sessionKeyVoterID].(string); ok && id != "" {
		return id, nil
	}

	id := uuid.NewString()
	session.Values[sessionKeyVoterID] = id
	if err := session.Save(c.Request(), c.Response().Writer); err != nil {
		return "", fmt.Errorf("failed to save session: %w", err)
	}
	return id, nil
}

func (s *Server) handleVote(c echo.Context) error {
	var req voteRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	voterID, err := s.voterID(c)
	if err != nil {
		return apperrors.InternalError("failed to establish session", err)
	}

	result, err := s.app.SubmitVote(c.Request().Context(), req.Choice, c.RealIP(), voterID)
	if err != nil {
		return err
	}

	if !result.Accepted {
		switch result.Reason {
		case domain.RejectRateLimited:
			return apperrors.RateLimitedError("too many votes, slow down").
				WithContext("voter_id", voterID)
		case domain.RejectAlreadyVoted:
			return apperrors.ConflictError("this session has already voted").
				WithContext("voter_id", voterID)
		default:
			return apperrors.InternalError("vote rejected for unknown reason", nil).
				WithContext("reason", string(result.Reason))
		}
	}

	return c.JSON(200, voteResponse{Success: true, Votes: result.Tally})
}

func (s *Server) handleVotingData(c echo.Context) error {
	tally, err := s.app.Tally(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(200, tally)
}

func (s *Server) handleHours(c echo.Context) error {
	hours, err := s.app.Hours(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(200, hours)
}

func (s *Server) handleStatus(c echo.Context) error {
	status, err := s.app.CurrentStatus(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(200, status)
}

func (s *Server) handleTvControls(c echo.Context) error {
	controls, err := s.app.TvControls(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(200, controls)
}
