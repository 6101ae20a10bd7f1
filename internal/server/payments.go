package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/smallbiznis/casebridge/internal/payment/domain"
)

type upsertPaymentRequest struct {
	ExternalRef     string `json:"external_ref"`
	CaseExternalRef string `json:"case_external_ref"`
	Reference       string `json:"reference"`
	Amount          string `json:"amount"`
	PaymentDate     string `json:"payment_date"`
	Method          string `json:"method"`
	Notes           string `json:"notes"`
}

func (s *Server) UpsertPayment(c *gin.Context) {
	var req upsertPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.paymentSvc.Upsert(c.Request.Context(), paymentdomain.UpsertPaymentRequest{
		ExternalRef:     req.ExternalRef,
		CaseExternalRef: req.CaseExternalRef,
		Reference:       req.Reference,
		Amount:          req.Amount,
		PaymentDate:     req.PaymentDate,
		Method:          req.Method,
		Notes:           req.Notes,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(upsertStatus(string(resp.OutcomeUpsert)), resp)
}

// UpsertPaymentByRef serves the path-addressed form of the upsert. The path
// reference wins over whatever the body carries.
func (s *Server) UpsertPaymentByRef(c *gin.Context) {
	var req upsertPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ExternalRef = c.Param("external_ref")

	resp, err := s.paymentSvc.Upsert(c.Request.Context(), paymentdomain.UpsertPaymentRequest{
		ExternalRef:     req.ExternalRef,
		CaseExternalRef: req.CaseExternalRef,
		Reference:       req.Reference,
		Amount:          req.Amount,
		PaymentDate:     req.PaymentDate,
		Method:          req.Method,
		Notes:           req.Notes,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(upsertStatus(string(resp.OutcomeUpsert)), resp)
}

func (s *Server) ListCasePayments(c *gin.Context) {
	id, ok := s.caseIDParam(c)
	if !ok {
		return
	}

	payments, err := s.paymentSvc.ListByCase(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"payments": payments})
}

func (s *Server) DeletePayment(c *gin.Context) {
	resp, err := s.paymentSvc.Delete(c.Request.Context(), c.Param("external_ref"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

type reversePaymentRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) ReversePayment(c *gin.Context) {
	// Body is optional; a reversal without a stated reason is still valid.
	var req reversePaymentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	resp, err := s.paymentSvc.Reverse(c.Request.Context(), c.Param("external_ref"), req.Reason)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}
