package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	activitydomain "github.com/smallbiznis/casebridge/internal/activity/domain"
)

type appendActivityRequest struct {
	CaseExternalRef string `json:"case_external_ref"`
	ExternalRef     string `json:"external_ref"`
	Type            string `json:"type"`
	Description     string `json:"description"`
	OccurredAt      string `json:"occurred_at"`
}

func (s *Server) AppendActivity(c *gin.Context) {
	var req appendActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.activitySvc.AppendActivity(c.Request.Context(), activitydomain.AppendActivityRequest{
		CaseExternalRef: req.CaseExternalRef,
		ExternalRef:     req.ExternalRef,
		Type:            req.Type,
		Description:     req.Description,
		OccurredAt:      req.OccurredAt,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	status := http.StatusCreated
	if resp.Outcome == activitydomain.OutcomeDuplicate {
		status = http.StatusOK
	}
	c.JSON(status, resp)
}

type appendMessageRequest struct {
	CaseExternalRef string `json:"case_external_ref"`
	ExternalRef     string `json:"external_ref"`
	Origin          string `json:"origin"`
	AuthorName      string `json:"author_name"`
	Subject         string `json:"subject"`
	Body            string `json:"body"`
	SentAt          string `json:"sent_at"`

	// SendNotifications defaults to true when absent.
	SendNotifications *bool `json:"send_notifications"`
}

func (s *Server) AppendMessage(c *gin.Context) {
	var req appendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.activitySvc.AppendMessage(c.Request.Context(), activitydomain.AppendMessageRequest{
		CaseExternalRef:       req.CaseExternalRef,
		ExternalRef:           req.ExternalRef,
		Origin:                req.Origin,
		AuthorName:            req.AuthorName,
		Subject:               req.Subject,
		Body:                  req.Body,
		SentAt:                req.SentAt,
		SuppressNotifications: req.SendNotifications != nil && !*req.SendNotifications,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	status := http.StatusCreated
	if resp.Outcome == activitydomain.OutcomeDuplicate {
		status = http.StatusOK
	}
	c.JSON(status, resp)
}

func (s *Server) ListCaseActivities(c *gin.Context) {
	id, ok := s.caseIDParam(c)
	if !ok {
		return
	}

	activities, err := s.activitySvc.ListActivities(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"activities": activities})
}

func (s *Server) ListCaseMessages(c *gin.Context) {
	id, ok := s.caseIDParam(c)
	if !ok {
		return
	}

	messages, err := s.activitySvc.ListMessages(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

type postCaseMessageRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// PostCaseMessage lets a portal user reply on a case. The message is routed
// back through the notification rules as handler correspondence.
func (s *Server) PostCaseMessage(c *gin.Context) {
	id, ok := s.caseIDParam(c)
	if !ok {
		return
	}
	user, ok := currentUser(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req postCaseMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	record, err := s.caseSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if record.ExternalRef == nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	origin := string(activitydomain.OriginUser)
	if user.Role.IsAdmin() {
		origin = string(activitydomain.OriginAdmin)
	}

	resp, err := s.activitySvc.AppendMessage(c.Request.Context(), activitydomain.AppendMessageRequest{
		CaseExternalRef: *record.ExternalRef,
		Origin:          origin,
		AuthorName:      user.DisplayName(),
		Subject:         req.Subject,
		Body:            req.Body,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}
