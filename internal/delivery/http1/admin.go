package http1

import (
	"errors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"net/http"
	"websocket-relay/internal/metrics"
	"websocket-relay/internal/usecase"
)

type AdminDelivery struct {
	adminUsecase usecase.AdminUsecase
	logger       *logrus.Logger
}

func NewAdminDelivery(logger *logrus.Logger, adminUsecase usecase.AdminUsecase) *AdminDelivery {
	return &AdminDelivery{
		adminUsecase: adminUsecase,
		logger:       logger,
	}
}

// NewAdminRouter собирает сервер администратора: метрики и проверка живости
// доступны без секрета, всё под /admin требует заголовок X-Secret
func NewAdminRouter(adminDelivery *AdminDelivery, m *metrics.Metrics) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/metrics", gin.WrapH(m.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	adminDelivery.Configure(router.Group("/admin"))
	return router
}

func (a AdminDelivery) Configure(handler *gin.RouterGroup) {
	handler.GET("/status", a.GetStatus)
	// Маршруты для работы с записями потока
	handler.GET("/recordings", a.ListRecordings)
	handler.GET("/recordings/:id", a.GetRecording)
	handler.DELETE("/recordings/:id", a.DeleteRecording)
}

func (a AdminDelivery) GetStatus(c *gin.Context) {
	secret := c.GetHeader("X-Secret")
	status, err := a.adminUsecase.Status(secret)
	switch {
	case errors.Is(err, usecase.ErrAccessDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
	case err == nil:
		c.JSON(http.StatusOK, status)
	default:
		a.logger.Errorf("failed to get status: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// Recordings

func (a AdminDelivery) ListRecordings(c *gin.Context) {
	secret := c.GetHeader("X-Secret")
	recordings, err := a.adminUsecase.ListRecordings(secret)
	switch {
	case errors.Is(err, usecase.ErrAccessDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
	case err == nil:
		c.JSON(http.StatusOK, recordings)
	default:
		a.logger.Errorf("failed to list recordings: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (a AdminDelivery) GetRecording(c *gin.Context) {
	secret := c.GetHeader("X-Secret")
	recording, err := a.adminUsecase.GetRecording(secret, c.Param("id"))
	switch {
	case errors.Is(err, usecase.ErrAccessDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
	case errors.Is(err, usecase.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "recording not found"})
	case err == nil:
		c.JSON(http.StatusOK, recording)
	default:
		a.logger.Errorf("failed to get recording: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (a AdminDelivery) DeleteRecording(c *gin.Context) {
	secret := c.GetHeader("X-Secret")
	err := a.adminUsecase.DeleteRecording(secret, c.Param("id"))
	switch {
	case errors.Is(err, usecase.ErrAccessDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
	case errors.Is(err, usecase.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "recording not found"})
	case err == nil:
		c.Status(http.StatusNoContent)
	default:
		a.logger.Errorf("failed to delete recording: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
