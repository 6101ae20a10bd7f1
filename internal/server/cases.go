package server

import (
	"context"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	casedomain "github.com/smallbiznis/casebridge/internal/caserecord/domain"
)

type upsertCaseRequest struct {
	ExternalRef             string `json:"external_ref"`
	OrganisationExternalRef string `json:"organisation_external_ref"`
	AccountNumber           string `json:"account_number"`
	CaseName                string `json:"case_name"`

	DebtorName    string `json:"debtor_name"`
	DebtorEmail   string `json:"debtor_email"`
	DebtorPhone   string `json:"debtor_phone"`
	DebtorAddress string `json:"debtor_address"`

	OriginalAmount string `json:"original_amount"`
	CostsAdded     string `json:"costs_added"`
	InterestAdded  string `json:"interest_added"`
	FeesAdded      string `json:"fees_added"`

	Status     string `json:"status"`
	Stage      string `json:"stage"`
	AssignedTo string `json:"assigned_to"`
}

func (s *Server) UpsertCase(c *gin.Context) {
	var req upsertCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.caseSvc.Upsert(c.Request.Context(), casedomain.UpsertCaseRequest{
		ExternalRef:             req.ExternalRef,
		OrganisationExternalRef: req.OrganisationExternalRef,
		AccountNumber:           req.AccountNumber,
		CaseName:                req.CaseName,
		DebtorName:              req.DebtorName,
		DebtorEmail:             req.DebtorEmail,
		DebtorPhone:             req.DebtorPhone,
		DebtorAddress:           req.DebtorAddress,
		OriginalAmount:          req.OriginalAmount,
		CostsAdded:              req.CostsAdded,
		InterestAdded:           req.InterestAdded,
		FeesAdded:               req.FeesAdded,
		Status:                  req.Status,
		Stage:                   req.Stage,
		AssignedTo:              req.AssignedTo,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(upsertStatus(string(resp.Outcome)), resp)
}

func (s *Server) caseIDParam(c *gin.Context) (snowflake.ID, bool) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid case id"))
		return 0, false
	}
	return id, true
}

// GetCase returns a case and records the first view per viewer in the audit
// trail.
func (s *Server) GetCase(c *gin.Context) {
	id, ok := s.caseIDParam(c)
	if !ok {
		return
	}

	record, err := s.caseSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditSvc.RecordView(c.Request.Context(), "cases", record.ID.String())

	c.JSON(http.StatusOK, record)
}

func (s *Server) ArchiveCase(c *gin.Context) {
	id, ok := s.caseIDParam(c)
	if !ok {
		return
	}

	if err := s.caseSvc.Archive(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "archived"})
}

func (s *Server) DeleteCase(c *gin.Context) {
	id, ok := s.caseIDParam(c)
	if !ok {
		return
	}

	if err := s.caseSvc.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) MuteCase(c *gin.Context) {
	s.setCaseFlag(c, s.userSvc.MuteCase, "muted")
}

func (s *Server) UnmuteCase(c *gin.Context) {
	s.setCaseFlag(c, s.userSvc.UnmuteCase, "unmuted")
}

func (s *Server) BlockCase(c *gin.Context) {
	s.setCaseFlag(c, s.userSvc.BlockCase, "blocked")
}

func (s *Server) UnblockCase(c *gin.Context) {
	s.setCaseFlag(c, s.userSvc.UnblockCase, "unblocked")
}

func (s *Server) setCaseFlag(c *gin.Context, apply func(ctx context.Context, userID, caseID snowflake.ID) error, status string) {
	id, ok := s.caseIDParam(c)
	if !ok {
		return
	}
	user, ok := currentUser(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	if err := apply(c.Request.Context(), user.ID, id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": status})
}
