package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	jobdescriptiondomain "github.com/smallbiznis/tka-invoice/internal/jobdescription/domain"
)

func (s *Server) CreateJobDescription(c *gin.Context) {
	var req jobdescriptiondomain.CreateJobDescriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.jobDescriptionSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) UpdateJobDescription(c *gin.Context) {
	var req jobdescriptiondomain.UpdateJobDescriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ID = strings.TrimSpace(c.Param("id"))

	resp, err := s.jobDescriptionSvc.Update(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteJobDescription(c *gin.Context) {
	if err := s.jobDescriptionSvc.Delete(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) GetJobDescriptionByID(c *gin.Context) {
	resp, err := s.jobDescriptionSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListJobDescriptions(c *gin.Context) {
	var query struct {
		ListQuery
		CompanyID string `form:"company_id"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.jobDescriptionSvc.List(c.Request.Context(), jobdescriptiondomain.ListJobDescriptionRequest{
		Pagination: query.page(),
		CompanyID:  strings.TrimSpace(query.CompanyID),
		Search:     strings.TrimSpace(query.Search),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondList(c, resp.JobDescriptions, resp.PageInfo)
}
