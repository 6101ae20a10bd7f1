package server

import (
	"github.com/gin-gonic/gin"
	userdomain "github.com/smallbiznis/casebridge/internal/user/domain"
)

type upsertUserRequest struct {
	ExternalRef             string `json:"external_ref"`
	FirstName               string `json:"first_name"`
	LastName                string `json:"last_name"`
	Email                   string `json:"email"`
	OrganisationExternalRef string `json:"organisation_external_ref"`
	IsAdmin                 bool   `json:"is_admin"`
}

func (s *Server) UpsertUser(c *gin.Context) {
	var req upsertUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.userSvc.Upsert(c.Request.Context(), userdomain.UpsertUserRequest{
		ExternalRef:             req.ExternalRef,
		FirstName:               req.FirstName,
		LastName:                req.LastName,
		Email:                   req.Email,
		OrganisationExternalRef: req.OrganisationExternalRef,
		IsAdmin:                 req.IsAdmin,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(upsertStatus(string(resp.Outcome)), resp)
}
