package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	workerdomain "github.com/smallbiznis/tka-invoice/internal/worker/domain"
)

func (s *Server) CreateWorker(c *gin.Context) {
	var req workerdomain.CreateWorkerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.workerSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) UpdateWorker(c *gin.Context) {
	var req workerdomain.UpdateWorkerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ID = strings.TrimSpace(c.Param("id"))

	resp, err := s.workerSvc.Update(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteWorker(c *gin.Context) {
	if err := s.workerSvc.Delete(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) GetWorkerByID(c *gin.Context) {
	resp, err := s.workerSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListWorkers(c *gin.Context) {
	var query struct {
		ListQuery
		CompanyID        string `form:"company_id"`
		JobDescriptionID string `form:"job_description_id"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.workerSvc.List(c.Request.Context(), workerdomain.ListWorkerRequest{
		Pagination:       query.page(),
		CompanyID:        strings.TrimSpace(query.CompanyID),
		JobDescriptionID: strings.TrimSpace(query.JobDescriptionID),
		Search:           strings.TrimSpace(query.Search),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondList(c, resp.Workers, resp.PageInfo)
}
