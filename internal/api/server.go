// Package api exposes the transceiver's send and endpoint operations over HTTP.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/leandrodaf/midiserial/internal/codec"
	"github.com/leandrodaf/midiserial/sdk/contracts"
)

// Server is the HTTP control surface.
type Server struct {
	midi   contracts.Transceiver
	logger contracts.Logger
	engine *gin.Engine
}

type noteRequest struct {
	Note     int `json:"note" binding:"min=0,max=127"`
	Velocity int `json:"velocity" binding:"min=0,max=127"`
	Channel  int `json:"channel" binding:"required,min=1,max=16"`
}

type playRequest struct {
	noteRequest
	DurationMs int `json:"durationMs" binding:"min=0"`
}

type controlChangeRequest struct {
	Controller int `json:"controller" binding:"min=0,max=127"`
	Value      int `json:"value" binding:"min=0,max=127"`
	Channel    int `json:"channel" binding:"required,min=1,max=16"`
}

type endpointsRequest struct {
	Input  *string `json:"input"`
	Output *string `json:"output"`
}

// NewServer builds the router.
func NewServer(midi contracts.Transceiver, logger contracts.Logger) *Server {
	s := &Server{midi: midi, logger: logger, engine: gin.New()}
	s.engine.Use(gin.Recovery(), s.requestLogger())

	s.engine.GET("/health", s.health)
	v1 := s.engine.Group("/api/v1")
	{
		v1.GET("/health", s.health)
		v1.POST("/note-on", s.noteOn)
		v1.POST("/note-off", s.noteOff)
		v1.POST("/cc", s.controlChange)
		v1.POST("/play", s.play)
		v1.GET("/endpoints", s.endpoints)
		v1.PUT("/endpoints", s.setEndpoints)
	}
	return s
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run listens on addr until the listener fails.
func (s *Server) Run(addr string) error {
	s.logger.Info("HTTP control surface listening", s.logger.Field().String("addr", addr))
	return s.engine.Run(addr)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			s.logger.Field().String("method", c.Request.Method),
			s.logger.Field().String("path", c.Request.URL.Path),
			s.logger.Field().Int("status", c.Writer.Status()),
			s.logger.Field().Duration("latency", time.Since(start)))
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "midiserial",
	})
}

func (s *Server) noteOn(c *gin.Context) {
	var req noteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.respond(c, s.midi.SendNoteOn(uint8(req.Note), uint8(req.Velocity), uint8(req.Channel)))
}

func (s *Server) noteOff(c *gin.Context) {
	var req noteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.respond(c, s.midi.SendNoteOff(uint8(req.Note), uint8(req.Velocity), uint8(req.Channel)))
}

func (s *Server) controlChange(c *gin.Context) {
	var req controlChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.respond(c, s.midi.SendControlChange(uint8(req.Controller), uint8(req.Value), uint8(req.Channel)))
}

func (s *Server) play(c *gin.Context) {
	var req playRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	d := time.Duration(req.DurationMs) * time.Millisecond
	s.respond(c, s.midi.PlayTimedNote(uint8(req.Note), uint8(req.Velocity), d, uint8(req.Channel)))
}

func (s *Server) endpoints(c *gin.Context) {
	ep := s.midi.Endpoints()
	c.JSON(http.StatusOK, gin.H{"input": ep.Input, "output": ep.Output})
}

func (s *Server) setEndpoints(c *gin.Context) {
	var req endpointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Input != nil {
		if err := s.midi.SetInputEndpoint(*req.Input); err != nil {
			s.respond(c, err)
			return
		}
	}
	if req.Output != nil {
		if err := s.midi.SetOutputEndpoint(*req.Output); err != nil {
			s.respond(c, err)
			return
		}
	}
	s.endpoints(c)
}

// respond maps caller contract violations to 400 and transport failures to 503.
func (s *Server) respond(c *gin.Context, err error) {
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "sent"})
	case errors.Is(err, codec.ErrChannelOutOfRange), errors.Is(err, codec.ErrDataOutOfRange):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		s.logger.Warn("MIDI send failed", s.logger.Field().Error("error", err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	}
}
