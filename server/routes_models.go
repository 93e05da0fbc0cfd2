// Package server - Model-Verwaltung Handler
// Beinhaltet: ListHandler, ShowHandler, DeleteHandler, GetModelInfo
package server

import (
	"errors"
	"io"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"github.com/ollama/dalle/api"
	"github.com/ollama/dalle/model"
)

// ListHandler listet alle Modelle im Model-Verzeichnis
func (s *Server) ListHandler(c *gin.Context) {
	stored, err := Models()
	if err != nil {
		abortWithError(c, err)
		return
	}

	models := []api.ListModelResponse{}
	for _, m := range stored {
		resp := api.ListModelResponse{
			Name:       m.Name.DisplayShortest(),
			Model:      m.Name.String(),
			ModifiedAt: m.ModifiedAt,
			Size:       m.Size,
		}

		if info, err := model.Inspect(m.Path); err == nil {
			resp.Details = details(info)
		}

		models = append(models, resp)
	}

	c.JSON(http.StatusOK, api.ListResponse{Models: models})
}

// ShowHandler verarbeitet /api/show Anfragen
func (s *Server) ShowHandler(c *gin.Context) {
	var req api.ShowRequest
	err := c.ShouldBindJSON(&req)
	switch {
	case errors.Is(err, io.EOF):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing request body"})
		return
	case err != nil:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Model == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "model is required"})
		return
	}

	resp, err := GetModelInfo(req)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetModelInfo liest Architektur, Konfiguration und optional Tensoren
func GetModelInfo(req api.ShowRequest) (*api.ShowResponse, error) {
	_, path, err := ExistingModelPath(req.Model)
	if err != nil {
		return nil, err
	}

	info, err := model.Inspect(path)
	if err != nil {
		return nil, err
	}

	resp := &api.ShowResponse{
		Details: details(info),
		Config:  info.Config,
	}

	if stored, err := Models(); err == nil {
		if i := slices.IndexFunc(stored, func(m StoredModel) bool { return m.Path == path }); i >= 0 {
			resp.ModifiedAt = stored[i].ModifiedAt
		}
	}

	if req.Verbose {
		for _, p := range info.Parameters {
			shape := make([]uint64, 0, p.Array.NDim())
			for _, d := range p.Array.Shape() {
				shape = append(shape, uint64(d))
			}
			resp.Tensors = append(resp.Tensors, api.Tensor{Name: p.Name, Shape: shape})
		}
	}

	return resp, nil
}

func details(info *model.Info) api.ModelDetails {
	var n int64
	for _, p := range info.Parameters {
		n += int64(p.Array.Size())
	}
	return api.ModelDetails{Architecture: info.Architecture, ParameterCount: n}
}

// DeleteHandler loescht eine Modell-Datei
func (s *Server) DeleteHandler(c *gin.Context) {
	var req api.DeleteRequest
	err := c.ShouldBindJSON(&req)
	switch {
	case errors.Is(err, io.EOF):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing request body"})
		return
	case err != nil:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	_, path, err := ExistingModelPath(req.Model)
	if err != nil {
		abortWithError(c, err)
		return
	}

	s.sched.Unload(path)
	if err := DeleteModel(req.Model); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, nil)
}
