package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gotrs-io/gotrs-hitl/internal/alerts"
	"github.com/gotrs-io/gotrs-hitl/internal/assignment"
	"github.com/gotrs-io/gotrs-hitl/sdk/types"
)

// handleHealth handles GET /api/v1/health
func (s *Server) handleHealth(c *gin.Context) {
	connected := false
	var orgID int64
	if s.session != nil {
		connected = s.session.Listener().Store().Connected()
		orgID = s.session.OrganizationID()
	}
	sendSuccess(c, gin.H{
		"status":         "healthy",
		"version":        s.version,
		"connected":      connected,
		"organizationId": orgID,
		"uptime":         time.Since(s.started).Round(time.Second).String(),
	})
}

// handlePermissions handles GET /api/v1/permissions
func (s *Server) handlePermissions(c *gin.Context) {
	if s.session == nil {
		sendError(c, http.StatusServiceUnavailable, "no active session")
		return
	}
	snap := s.session.Permissions()
	sendSuccess(c, gin.H{
		"organizationId":              s.session.OrganizationID(),
		"role":                        s.session.EffectiveRole(),
		"canManageHitlTypes":          snap.CanManageHitlTypes,
		"canReceiveHitlNotifications": snap.CanReceiveHitlNotifications,
		"hasAccessToHitlSystem":       snap.HasAccessToHitlSystem(),
	})
}

// handleListNotifications handles GET /api/v1/notifications?type=&unread=true
func (s *Server) handleListNotifications(c *gin.Context) {
	if s.session == nil {
		sendError(c, http.StatusServiceUnavailable, "no active session")
		return
	}
	listener := s.session.Listener()
	state := listener.Store().Snapshot()

	list := state.Notifications
	if hitlType := c.Query("type"); hitlType != "" {
		list = listener.FilterByType(hitlType)
	}
	if unread, _ := strconv.ParseBool(c.Query("unread")); unread {
		list = onlyUnread(list)
	}
	if list == nil {
		list = []types.HitlNotification{}
	}

	sendSuccess(c, gin.H{
		"notifications": list,
		"unreadCount":   state.UnreadCount,
		"connected":     state.Connected,
	})
}

func onlyUnread(list []types.HitlNotification) []types.HitlNotification {
	out := make([]types.HitlNotification, 0, len(list))
	for _, n := range list {
		if !n.Read {
			out = append(out, n)
		}
	}
	return out
}

// handleMarkRead handles POST /api/v1/notifications/:index/read
func (s *Server) handleMarkRead(c *gin.Context) {
	if s.session == nil {
		sendError(c, http.StatusServiceUnavailable, "no active session")
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		sendError(c, http.StatusBadRequest, "invalid notification index")
		return
	}
	if !s.session.Listener().MarkAsRead(index) {
		sendError(c, http.StatusNotFound, "notification not found")
		return
	}
	sendSuccess(c, gin.H{"unreadCount": s.session.Listener().Store().UnreadCount()})
}

// handleMarkAllRead handles POST /api/v1/notifications/read-all
func (s *Server) handleMarkAllRead(c *gin.Context) {
	if s.session == nil {
		sendError(c, http.StatusServiceUnavailable, "no active session")
		return
	}
	s.session.Listener().MarkAllAsRead()
	sendSuccess(c, gin.H{"unreadCount": 0})
}

// handleClearNotifications handles DELETE /api/v1/notifications
func (s *Server) handleClearNotifications(c *gin.Context) {
	if s.session == nil {
		sendError(c, http.StatusServiceUnavailable, "no active session")
		return
	}
	s.session.Listener().Clear()
	sendSuccess(c, gin.H{"cleared": true})
}

// handleListAlerts handles GET /api/v1/alerts
func (s *Server) handleListAlerts(c *gin.Context) {
	if s.alerts == nil {
		sendSuccess(c, []alerts.Alert{})
		return
	}
	list := s.alerts.List()
	if list == nil {
		list = []alerts.Alert{}
	}
	sendSuccess(c, list)
}

// handlePerformAlert handles POST /api/v1/alerts/:id/perform. A performed
// alert is dismissed.
func (s *Server) handlePerformAlert(c *gin.Context) {
	if s.alerts == nil || s.dispatcher == nil {
		sendError(c, http.StatusServiceUnavailable, "alert actions are not available")
		return
	}
	alert, ok := s.alerts.Get(c.Param("id"))
	if !ok {
		sendError(c, http.StatusNotFound, "alert not found")
		return
	}

	result, err := s.dispatcher.Perform(c.Request.Context(), alert)
	switch {
	case errors.Is(err, alerts.ErrNoAction), errors.Is(err, alerts.ErrUnknownAction):
		sendError(c, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, alerts.ErrClaimNotAvailable):
		sendError(c, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		_ = c.Error(err)
		sendError(c, http.StatusBadGateway, err.Error())
		return
	}

	s.alerts.Dismiss(alert.ID)
	sendSuccess(c, result)
}

// handleDismissAlert handles DELETE /api/v1/alerts/:id
func (s *Server) handleDismissAlert(c *gin.Context) {
	if s.alerts == nil {
		sendError(c, http.StatusNotFound, "alert not found")
		return
	}
	if _, ok := s.alerts.Get(c.Param("id")); !ok {
		sendError(c, http.StatusNotFound, "alert not found")
		return
	}
	s.alerts.Dismiss(c.Param("id"))
	sendSuccess(c, gin.H{"dismissed": true})
}

// handleClaim handles POST /api/v1/conversations/:id/claim
func (s *Server) handleClaim(c *gin.Context) {
	if s.session == nil {
		sendError(c, http.StatusServiceUnavailable, "no active session")
		return
	}
	outcome := s.session.Claim(c.Request.Context(), types.ConversationID(c.Param("id")))

	status := http.StatusOK
	switch outcome {
	case assignment.OutcomeAlreadyAssigned, assignment.OutcomeInFlight:
		status = http.StatusConflict
	case assignment.OutcomeFailed:
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{
		"success": outcome == assignment.OutcomeSuccess,
		"data":    gin.H{"outcome": outcome},
	})
}

type hitlTypeView struct {
	types.HitlType
	Status types.HitlTypeStatus `json:"status"`
}

// handleListTypes handles GET /api/v1/hitl-types
func (s *Server) handleListTypes(c *gin.Context) {
	if s.session == nil || s.types == nil {
		sendError(c, http.StatusServiceUnavailable, "no active session")
		return
	}
	orgID := s.session.OrganizationID()
	if orgID == 0 {
		sendError(c, http.StatusBadRequest, "no organization selected")
		return
	}

	list := s.types.ListTypes(c.Request.Context(), orgID)
	views := make([]hitlTypeView, 0, len(list))
	for _, t := range list {
		views = append(views, hitlTypeView{HitlType: t, Status: t.Status()})
	}
	sendSuccess(c, views)
}
