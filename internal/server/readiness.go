package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/payssd/chapchap-sub000/internal/migration"
)

type ReadinessState string

const (
	ReadinessStateReady    ReadinessState = "ready"
	ReadinessStateNotReady ReadinessState = "not_ready"
	ReadinessStateOptional ReadinessState = "optional"
)

type ReadinessIssue struct {
	ID       string            `json:"id"`
	Status   ReadinessState    `json:"status"`
	Evidence map[string]string `json:"evidence,omitempty"`
}

func (s *Server) RegisterSystemRoutes() {
	s.engine.GET("/healthz", s.Healthz)
	s.engine.GET("/ready", s.GetSystemReadiness)
	s.engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))
}

// Healthz reports process liveness only.
func (s *Server) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetSystemReadiness checks the database, the schema version and redis.
func (s *Server) GetSystemReadiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	issues := []ReadinessIssue{s.checkDatabase(ctx), s.checkSchema(ctx), s.checkRedis(ctx)}
	isReady := true
	for _, issue := range issues {
		if issue.Status == ReadinessStateNotReady {
			isReady = false
		}
	}

	status := http.StatusOK
	state := ReadinessStateReady
	if !isReady {
		status = http.StatusServiceUnavailable
		state = ReadinessStateNotReady
	}
	c.JSON(status, gin.H{
		"ready":        isReady,
		"system_state": state,
		"issues":       issues,
	})
}

func (s *Server) checkDatabase(ctx context.Context) ReadinessIssue {
	issue := ReadinessIssue{ID: "database", Status: ReadinessStateReady}
	if s.db == nil {
		return notReady(issue, "db not configured")
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return notReady(issue, err.Error())
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return notReady(issue, err.Error())
	}
	return issue
}

// checkSchema only applies to postgres; sqlite schemas come from AutoMigrate.
func (s *Server) checkSchema(ctx context.Context) ReadinessIssue {
	issue := ReadinessIssue{ID: "schema_version", Status: ReadinessStateReady}
	if s.cfg.Database.Driver != "postgres" {
		issue.Status = ReadinessStateOptional
		issue.Evidence = map[string]string{"driver": s.cfg.Database.Driver}
		return issue
	}
	if s.db == nil {
		return notReady(issue, "db not configured")
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return notReady(issue, err.Error())
	}
	version, err := migration.ActiveSchemaVersion(ctx, sqlDB)
	if err != nil {
		return notReady(issue, err.Error())
	}
	issue.Evidence = map[string]string{"version": version}
	return issue
}

func (s *Server) checkRedis(ctx context.Context) ReadinessIssue {
	issue := ReadinessIssue{ID: "redis", Status: ReadinessStateReady}
	if s.redis == nil {
		issue.Status = ReadinessStateOptional
		issue.Evidence = map[string]string{"note": "in-memory token store"}
		return issue
	}
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return notReady(issue, err.Error())
	}
	return issue
}

func notReady(issue ReadinessIssue, reason string) ReadinessIssue {
	issue.Status = ReadinessStateNotReady
	issue.Evidence = map[string]string{"error": reason}
	return issue
}
