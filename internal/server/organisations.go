package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	orgdomain "github.com/smallbiznis/casebridge/internal/organization/domain"
)

type upsertOrganisationRequest struct {
	ExternalRef  string `json:"external_ref"`
	Name         string `json:"name"`
	ContactName  string `json:"contact_name"`
	ContactEmail string `json:"contact_email"`
	ContactPhone string `json:"contact_phone"`
	Address      string `json:"address"`
}

func (s *Server) UpsertOrganisation(c *gin.Context) {
	var req upsertOrganisationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.orgSvc.Upsert(c.Request.Context(), orgdomain.UpsertOrganisationRequest{
		ExternalRef:  req.ExternalRef,
		Name:         req.Name,
		ContactName:  req.ContactName,
		ContactEmail: req.ContactEmail,
		ContactPhone: req.ContactPhone,
		Address:      req.Address,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(upsertStatus(string(resp.Outcome)), resp)
}

func upsertStatus(outcome string) int {
	if outcome == "created" {
		return http.StatusCreated
	}
	return http.StatusOK
}
