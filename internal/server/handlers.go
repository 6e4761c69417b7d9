package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"sceneforge/internal/agent"
	"sceneforge/internal/meshgen"
	"sceneforge/internal/ports"
)

func (s *Server) handleRefine(c *gin.Context) {
	sessionID := c.Param("id")

	var req RefineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIResponse{
			Success: false,
			Error:   fmt.Sprintf("invalid request: %v", err),
		})
		return
	}
	if strings.TrimSpace(req.Instruction) == "" {
		c.JSON(http.StatusBadRequest, APIResponse{
			Success: false,
			Error:   "instruction is required",
		})
		return
	}

	result, err := s.cfg.Refiner.Refine(c.Request.Context(), agent.Request{
		SessionID:     sessionID,
		Instruction:   req.Instruction,
		CurrentCode:   req.Code,
		Screenshot:    req.Screenshot,
		Lint:          req.Lint,
		SceneObjects:  req.SceneObjects,
		MaxIterations: req.MaxIterations,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, APIResponse{
			Success: false,
			Error:   fmt.Sprintf("refine session %s: %v", sessionID, err),
		})
		return
	}

	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data:    RefineResponse{SessionID: sessionID, Result: result},
	})
}

func (s *Server) handleReset(c *gin.Context) {
	sessionID := c.Param("id")
	s.cfg.Refiner.ResetSession(c.Request.Context(), sessionID)
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Message: fmt.Sprintf("session %s cleared", sessionID),
	})
}

func (s *Server) handleGetGeneration(c *gin.Context) {
	requestID := c.Param("id")
	if s.cfg.Statuses == nil {
		c.JSON(http.StatusNotFound, APIResponse{
			Success: false,
			Error:   fmt.Sprintf("generation %s not found", requestID),
		})
		return
	}
	status, ok := s.cfg.Statuses.Get(requestID)
	if !ok {
		c.JSON(http.StatusNotFound, APIResponse{
			Success: false,
			Error:   fmt.Sprintf("generation %s not found", requestID),
		})
		return
	}
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: status})
}

func (s *Server) handleListGenerations(c *gin.Context) {
	records := []meshgen.GenerationStatus{}
	if s.cfg.Statuses != nil {
		records = s.cfg.Statuses.List()
	}
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data:    gin.H{"generations": records, "count": len(records)},
	})
}

func (s *Server) handleListTools(c *gin.Context) {
	category := c.Query("category")
	defs := []ports.ToolDefinition{}
	if s.cfg.Registry != nil {
		for _, tool := range s.cfg.Registry.All(category) {
			defs = append(defs, tool.Definition())
		}
	}
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data:    gin.H{"tools": defs, "count": len(defs)},
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	clients := 0
	if s.cfg.Bridge != nil {
		clients = s.cfg.Bridge.ClientCount()
	}
	health := HealthStatus{
		Status:        "ok",
		Uptime:        time.Since(s.startTime).String(),
		Version:       s.cfg.Version,
		BridgeClients: clients,
		Components: map[string]bool{
			"bridge":     s.cfg.Bridge != nil,
			"generation": s.cfg.Statuses != nil,
			"tools":      s.cfg.Registry != nil,
		},
	}
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: health})
}
