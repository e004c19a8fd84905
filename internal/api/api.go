// Package api exposes the session operations over HTTP for whatever
// presentation layer sits in front: plain JSON endpoints for the writes and
// one SSE endpoint that runs a poll loop per subscriber.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/clp/pointingpoker/internal/config"
	"github.com/clp/pointingpoker/internal/poll"
	"github.com/clp/pointingpoker/internal/session"
	"github.com/clp/pointingpoker/internal/team"
)

// Server holds the handler dependencies.
type Server struct {
	svc *session.Service
	cfg config.Config
	log zerolog.Logger
}

// New creates the HTTP server around a session service.
func New(svc *session.Service, cfg config.Config, log zerolog.Logger) *Server {
	return &Server{svc: svc, cfg: cfg, log: log}
}

// Mount attaches all routes to the given Gin engine.
func (srv *Server) Mount(r *gin.Engine) {
	r.POST("/api/login", srv.login)
	r.GET("/api/teams/:team/round", srv.currentRound)
	r.POST("/api/teams/:team/rounds", srv.startRound)
	r.POST("/api/teams/:team/rounds/:round/reveal", srv.reveal)
	r.POST("/api/teams/:team/rounds/:round/players", srv.joinRound)
	r.POST("/api/teams/:team/rounds/:round/votes", srv.submitVote)
	r.GET("/api/teams/:team/rounds/:round/results", srv.results)
	r.GET("/api/teams/:team/stream", srv.stream)
}

func (srv *Server) login(c *gin.Context) {
	var req struct {
		Team string `json:"team"`
		Name string `json:"name"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_body"})
		return
	}
	ns, err := srv.svc.Login(c.Request.Context(), req.Team, req.Name)
	if err != nil {
		srv.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"team": ns})
}

func (srv *Server) currentRound(c *gin.Context) {
	roundID, err := srv.svc.CurrentRound(c.Request.Context(), c.Param("team"))
	if err != nil {
		srv.fail(c, err)
		return
	}
	// An empty round id is the waiting state, not an error.
	c.JSON(http.StatusOK, gin.H{"roundId": roundID})
}

func (srv *Server) startRound(c *gin.Context) {
	roundID, err := srv.svc.StartRound(c.Request.Context(), c.Param("team"))
	if err != nil {
		srv.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"roundId": roundID})
}

func (srv *Server) reveal(c *gin.Context) {
	if err := srv.svc.Reveal(c.Request.Context(), c.Param("team"), c.Param("round")); err != nil {
		srv.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (srv *Server) joinRound(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_body"})
		return
	}
	err := srv.svc.JoinRound(c.Request.Context(), c.Param("team"), c.Param("round"), req.Name)
	if err != nil {
		srv.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (srv *Server) submitVote(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
		Vote string `json:"vote"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_body"})
		return
	}
	err := srv.svc.SubmitVote(c.Request.Context(), c.Param("team"), c.Param("round"), req.Name, req.Vote)
	if err != nil {
		srv.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (srv *Server) results(c *gin.Context) {
	rows, err := srv.svc.VisibleResults(
		c.Request.Context(), c.Param("team"), c.Param("round"), c.Query("viewer"))
	if err != nil {
		srv.fail(c, err)
		return
	}
	if rows == nil {
		rows = []session.Row{}
	}
	c.JSON(http.StatusOK, gin.H{"rows": rows})
}

// stream runs one poll loop for the connection and forwards each snapshot as
// an SSE event. The loop stops when the client disconnects.
func (srv *Server) stream(c *gin.Context) {
	teamName := c.Param("team")
	viewer := c.Query("viewer")
	if _, err := team.Parse(teamName); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_team"})
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	snaps := make(chan session.Snapshot, 1)
	p := &poll.Poller{Interval: srv.cfg.PollInterval, Source: srv.svc, Log: srv.log}
	go p.Run(ctx, teamName, viewer, func(snap session.Snapshot) {
		select {
		case snaps <- snap:
		default: // slow client, a fresher snapshot follows next tick
		}
	})

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case snap := <-snaps:
			c.SSEvent("snapshot", snap)
			return true
		}
	})
}

// fail maps domain errors to HTTP statuses.
func (srv *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, team.ErrInvalidTeamName):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_team"})
	case errors.Is(err, session.ErrInvalidUserName):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_name"})
	case errors.Is(err, session.ErrUnknownVote):
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown_vote"})
	case errors.Is(err, session.ErrNoActiveRound):
		c.JSON(http.StatusBadRequest, gin.H{"error": "no_active_round"})
	case errors.Is(err, session.ErrVotingClosed):
		c.JSON(http.StatusConflict, gin.H{"error": "voting_closed"})
	default:
		srv.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
	}
}
