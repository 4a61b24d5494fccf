package server

import (
	"crypto/subtle"
	"log/slog"

	"github.com/labstack/echo/v4"

	"github.com/CoreyFoshee/thatsamorepizza/internal/app"
	"github.com/CoreyFoshee/thatsamorepizza/internal/domain"
	apperrors "github.com/CoreyFoshee/thatsamorepizza/internal/errors"
)

func (s *Server) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		session, err := s.sessionStore.Get(c.Request(), sessionName)
		if err != nil {
			return apperrors.UnauthorizedError("admin session required")
		}
		if isAdmin, ok := session.Values[sessionKeyAdmin].(bool); !ok || !isAdmin {
			return apperrors.UnauthorizedError("admin session required")
		}
		return next(c)
	}
}

type loginRequest struct {
	Password string `json:"password"`
}

func (s *Server) handleAdminLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	if subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.config.AdminPassword)) != 1 {
		slog.Warn("Admin login rejected", "remote_ip", c.RealIP())
		return apperrors.UnauthorizedError("invalid password")
	}

	session, _ := s.sessionStore.Get(c.Request(), sessionName)
	session.Values[sessionKeyAdmin] = true
	if err := session.Save(c.Request(), c.Response().Writer); err != nil {
		return apperrors.InternalError("failed to save session", err)
	}

	slog.Info("Admin logged in", "remote_ip", c.RealIP())
	return c.JSON(200, map[string]string{"status": "ok"})
}

func (s *Server) handleAdminLogout(c echo.Context) error {
	session, _ := s.sessionStore.Get(c.Request(), sessionName)
	delete(session.Values, sessionKeyAdmin)
	if err := session.Save(c.Request(), c.Response().Writer); err != nil {
		return apperrors.InternalError("failed to save session", err)
	}
	return c.JSON(200, map[string]string{"status": "ok"})
}

func (s *Server) handleAdminData(c echo.Context) error {
	data, err := s.app.AdminDashboard(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(200, data)
}

func (s *Server) handleResetVotes(c echo.Context) error {
	tally, err := s.app.ResetTally(c.Request().Context())
	if err != nil {
		return err
	}
	slog.Info("Votes reset by admin")
	return c.JSON(200, voteResponse{Success: true, Votes: tally})
}

// setVotesRequest accepts both the dashboard's field names and the
// short spellings used by older admin clients.
type setVotesRequest struct {
	NYVotes      *int64 `json:"nyVotes"`
	ChicagoVotes *int64 `json:"chicagoVotes"`
	NY           *int64 `json:"ny"`
	Chicago      *int64 `json:"chicago"`
}

func (r setVotesRequest) counts() (ny, chicago int64, ok bool) {
	switch {
	case r.NYVotes != nil && r.ChicagoVotes != nil:
		return *r.NYVotes, *r.ChicagoVotes, true
	case r.NY != nil && r.Chicago != nil:
		return *r.NY, *r.Chicago, true
	default:
		return 0, 0, false
	}
}

func (s *Server) handleSetVotes(c echo.Context) error {
	var req setVotesRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	ny, chicago, ok := req.counts()
	if !ok {
		return apperrors.ValidationError("both vote counts are required")
	}

	tally, err := s.app.SetTally(c.Request().Context(), ny, chicago)
	if err != nil {
		return err
	}
	slog.Info("Votes set by admin", "ny", ny, "chicago", chicago)
	return c.JSON(200, voteResponse{Success: true, Votes: tally})
}

type overrideRequest struct {
	ManualClosed bool `json:"manualClosed"`
}

func (s *Server) handleSetOverride(c echo.Context) error {
	var req overrideRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	override, err := s.app.SetOverride(c.Request().Context(), req.ManualClosed)
	if err != nil {
		return err
	}
	slog.Info("Restaurant override changed", "manual_closed", req.ManualClosed)
	return c.JSON(200, override)
}

func (s *Server) handleSetHours(c echo.Context) error {
	var hours domain.HoursConfig
	if err := c.Bind(&hours); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	saved, err := s.app.SetHours(c.Request().Context(), hours)
	if err != nil {
		return err
	}
	return c.JSON(200, saved)
}

func (s *Server) handleUpsertClosure(c echo.Context) error {
	var closure domain.Closure
	if err := c.Bind(&closure); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	if err := s.app.UpsertClosure(c.Request().Context(), closure); err != nil {
		return err
	}

	closures, err := s.app.Closures(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(200, closures)
}

func (s *Server) handleDeleteClosure(c echo.Context) error {
	date := c.Param("date")
	if date == "" {
		return apperrors.ValidationError("closure date is required")
	}

	if err := s.app.DeleteClosure(c.Request().Context(), date); err != nil {
		return err
	}

	closures, err := s.app.Closures(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(200, closures)
}

func (s *Server) handleSetTvControls(c echo.Context) error {
	var update app.TvControlsUpdate
	if err := c.Bind(&update); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	controls, err := s.app.SetTvControls(c.Request().Context(), update)
	if err != nil {
		return err
	}
	return c.JSON(200, controls)
}
