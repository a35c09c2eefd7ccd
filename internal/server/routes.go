package server

import (
	"net/http"
	"time"

	"github.com/semjef/ha-salute-bridge/internal/core/domain"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)

	e.GET("/api/v2/devices", s.ListDevicesHandler)
	e.POST("/api/v2/devices", s.UpdateDevicesHandler)
	e.POST("/api/v2/devices/feature", s.ToggleFeatureHandler)
	e.DELETE("/api/v2/devices/:id", s.DeleteDeviceHandler)

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

func (s *Server) ListDevicesHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.GetDevicesRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, err.Error())
	}
	response, ok := res.(domain.GetDevicesResponse)
	if !ok {
		return c.String(http.StatusInternalServerError, "unexpected response")
	}
	return c.JSON(http.StatusOK, response.Devices)
}

func (s *Server) UpdateDevicesHandler(c echo.Context) error {
	var patches map[string]domain.DevicePatch
	if err := c.Bind(&patches); err != nil {
		return c.String(http.StatusBadRequest, err.Error())
	}
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.UpdateDevicesRequest{Devices: patches}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, err.Error())
	}
	if response, ok := res.(domain.UpdateDevicesResponse); ok && response.HasResponseError() {
		return c.String(http.StatusInternalServerError, response.GetResponseError().Error())
	}
	return c.NoContent(http.StatusNoContent)
}

type toggleFeatureBody struct {
	EntityID string `json:"entity_id"`
	Feature  string `json:"feature"`
	Enabled  bool   `json:"enabled"`
}

func (s *Server) ToggleFeatureHandler(c echo.Context) error {
	var body toggleFeatureBody
	if err := c.Bind(&body); err != nil {
		return c.String(http.StatusBadRequest, err.Error())
	}
	req := domain.ToggleFeatureRequest{
		EntityID: body.EntityID,
		Feature:  body.Feature,
		Enabled:  body.Enabled,
	}
	res, err := s.rootContext.RequestFuture(s.masterActor, req, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, err.Error())
	}
	if response, ok := res.(domain.ToggleFeatureResponse); ok && response.HasResponseError() {
		return c.String(http.StatusBadRequest, response.GetResponseError().Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) DeleteDeviceHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.DeleteDeviceRequest{EntityID: c.Param("id")}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, err.Error())
	}
	if response, ok := res.(domain.DeleteDeviceResponse); ok && response.HasResponseError() {
		return c.String(http.StatusInternalServerError, response.GetResponseError().Error())
	}
	return c.NoContent(http.StatusNoContent)
}
