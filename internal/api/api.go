// Package api exposes the operator HTTP surface over gin.
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"rolewarden/internal/activity"
	rwerrors "rolewarden/internal/errors"
	"rolewarden/internal/roles"
	"rolewarden/internal/storage"
)

// Stats reads derived engagement stats.
type Stats interface {
	UserStats(ctx context.Context, userID string) (activity.Stats, error)
}

// Mutator grants and revokes roles with full coordination.
type Mutator interface {
	Grant(ctx context.Context, userID, roleID string, prov roles.Provenance, auditTitle string) (roles.MutationResult, error)
	Revoke(ctx context.Context, userID, roleID string, prov roles.Provenance, auditTitle string) (roles.MutationResult, error)
}

// Rebuilder refreshes role snapshots for the whole member list.
type Rebuilder interface {
	RebuildSnapshots(ctx context.Context, members []roles.Member) (int, error)
}

// MemberLister enumerates the guild's current members.
type MemberLister interface {
	ListMembers(ctx context.Context) ([]roles.Member, error)
}

// Backups triggers a manual database snapshot.
type Backups interface {
	Snapshot() (string, error)
}

// Handler serves the ops API.
type Handler struct {
	Stats     Stats
	History   storage.RoleStore
	Mutator   Mutator
	Rebuilder Rebuilder
	Members   MemberLister
	Backups   Backups
	// Token guards mutating endpoints. Empty disables the check (local
	// deployments behind a firewall).
	Token string
}

// Router builds the gin engine with all routes registered.
func (h *Handler) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authed := router.Group("/", h.authorize)
	authed.GET("/users/:id/stats", h.getUserStats)
	authed.GET("/users/:id/history", h.getUserHistory)
	authed.POST("/roles/grant", h.grantRole)
	authed.POST("/roles/revoke", h.revokeRole)
	authed.POST("/snapshots/rebuild", h.rebuildSnapshots)
	authed.POST("/backup", h.triggerBackup)

	return router
}

func (h *Handler) authorize(c *gin.Context) {
	if h.Token == "" {
		return
	}
	header := c.GetHeader("Authorization")
	if header != "Bearer "+h.Token {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
	}
}

func (h *Handler) getUserStats(c *gin.Context) {
	userID := c.Param("id")
	stats, err := h.Stats.UserStats(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":       userID,
		"message_count": stats.Messages,
		"voice_minutes": stats.VoiceMinutes,
	})
}

func (h *Handler) getUserHistory(c *gin.Context) {
	userID := c.Param("id")
	entries, err := h.History.ListRoleHistory(c.Request.Context(), userID, 100)
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]gin.H, 0, len(entries))
	for _, entry := range entries {
		out = append(out, gin.H{
			"role_id":   entry.RoleID,
			"action":    string(entry.Action),
			"source":    entry.Source,
			"timestamp": entry.Timestamp,
		})
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "history": out})
}

type mutateRequest struct {
	UserID  string `json:"user_id" binding:"required"`
	RoleID  string `json:"role_id" binding:"required"`
	ActorID string `json:"actor_id" binding:"required"`
	Reason  string `json:"reason"`
}

func (h *Handler) grantRole(c *gin.Context) {
	var input mutateRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.Mutator.Grant(c.Request.Context(), input.UserID, input.RoleID,
		roles.Moderator(input.ActorID).WithReason(input.Reason), "Manual Role Added")
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"added":            result.Added,
		"removed_conflict": result.RemovedConflict,
	})
}

func (h *Handler) revokeRole(c *gin.Context) {
	var input mutateRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.Mutator.Revoke(c.Request.Context(), input.UserID, input.RoleID,
		roles.Moderator(input.ActorID).WithReason(input.Reason), "Manual Role Removed")
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": result.Removed})
}

func (h *Handler) rebuildSnapshots(c *gin.Context) {
	members, err := h.Members.ListMembers(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	count, err := h.Rebuilder.RebuildSnapshots(c.Request.Context(), members)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"members_saved": count})
}

func (h *Handler) triggerBackup(c *gin.Context) {
	if h.Backups == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "backups are not configured"})
		return
	}
	name, err := h.Backups.Snapshot()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"backup": name})
}

// writeError maps domain error codes onto HTTP statuses with a specific
// message, so an operator sees which precondition failed.
func writeError(c *gin.Context, err error) {
	code := rwerrors.GetCode(err)
	message := err.Error()
	if strings.TrimSpace(message) == "" {
		message = string(code)
	}
	c.JSON(code.HTTPStatus(), gin.H{"error": message, "code": string(code)})
}
