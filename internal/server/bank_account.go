package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	bankaccountdomain "github.com/smallbiznis/tka-invoice/internal/bankaccount/domain"
)

func (s *Server) CreateBankAccount(c *gin.Context) {
	var req bankaccountdomain.CreateBankAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.bankAccountSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) UpdateBankAccount(c *gin.Context) {
	var req bankaccountdomain.UpdateBankAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ID = strings.TrimSpace(c.Param("id"))

	resp, err := s.bankAccountSvc.Update(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteBankAccount(c *gin.Context) {
	if err := s.bankAccountSvc.Delete(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) GetBankAccountByID(c *gin.Context) {
	resp, err := s.bankAccountSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SetDefaultBankAccount(c *gin.Context) {
	resp, err := s.bankAccountSvc.SetDefault(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListBankAccounts(c *gin.Context) {
	var query ListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.bankAccountSvc.List(c.Request.Context(), bankaccountdomain.ListBankAccountRequest{
		Pagination: query.page(),
		Search:     strings.TrimSpace(query.Search),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondList(c, resp.BankAccounts, resp.PageInfo)
}
