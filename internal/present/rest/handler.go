package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/zeebo/xxh3"

	"github.com/totegamma/memories/internal/domain"
	"github.com/totegamma/memories/internal/infra/device"
	"github.com/totegamma/memories/internal/infra/observability"
	"github.com/totegamma/memories/internal/present/rest/presenter"
	"github.com/totegamma/memories/internal/service"
	"github.com/totegamma/memories/internal/usecase"
)

const Version = "1.0"

type HandlerConfig struct {
	MediaDir string
	Debug    bool
}

type Handler struct {
	config  HandlerConfig
	memory  *usecase.MemoryUsecase
	capture *usecase.CaptureUsecase
	signal  service.Signal
	metrics *observability.Collector
}

func NewHandler(
	config HandlerConfig,
	memory *usecase.MemoryUsecase,
	capture *usecase.CaptureUsecase,
	signal service.Signal,
	metrics *observability.Collector,
) *Handler {
	return &Handler{
		config:  config,
		memory:  memory,
		capture: capture,
		signal:  signal,
		metrics: metrics,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.handleHome)
	e.GET("/memories", h.handleList)
	e.GET("/memories/map", h.handleMap)
	e.GET("/memories/:id", h.handleGet)
	e.POST("/memories", h.handleCapture)
	e.PATCH("/memories/:id", h.handleEditDescription)
	e.DELETE("/memories/:id", h.handleDelete)
	if h.config.Debug {
		e.DELETE("/memories", h.handleClear)
	}
	e.GET("/realtime", h.handleRealtime)
	e.GET("/metrics", echo.WrapHandler(h.metrics.Handler()))
}

type Endpoint struct {
	Template string    `json:"template"`
	Method   string    `json:"method"`
	Query    *[]string `json:"query,omitempty"`
}

type ServiceInfo struct {
	Version   string              `json:"version"`
	Endpoints map[string]Endpoint `json:"endpoints"`
	Summary   usecase.Summary     `json:"summary"`
}

// handleHome is the landing screen: the three tabs and the collection counts.
func (h *Handler) handleHome(c echo.Context) error {
	ctx := c.Request().Context()

	summary, err := h.memory.Summary(ctx)
	if err != nil {
		return h.fail(c, err)
	}

	return presenter.OK(c, ServiceInfo{
		Version: Version,
		Endpoints: map[string]Endpoint{
			"memories.capture": {Template: "/memories", Method: http.MethodPost},
			"memories.list": {
				Template: "/memories",
				Method:   http.MethodGet,
				Query:    &[]string{"order"},
			},
			"memories.map":      {Template: "/memories/map", Method: http.MethodGet},
			"memories.realtime": {Template: "/realtime", Method: http.MethodGet},
		},
		Summary: summary,
	})
}

func (h *Handler) handleList(c echo.Context) error {
	ctx := c.Request().Context()

	order, ok := domain.ParseOrder(c.QueryParam("order"))
	if !ok {
		return presenter.BadRequestMessage(c, "invalid order parameter")
	}

	listing, err := h.memory.List(ctx, order)
	if err != nil {
		return h.fail(c, err)
	}

	body, err := json.Marshal(listing)
	if err != nil {
		return presenter.InternalError(c, err)
	}

	if listing.Degraded {
		c.Response().Header().Set(domain.DegradedHeader, "true")
	}

	etag := fmt.Sprintf(`"%016x"`, xxh3.Hash(body))
	c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
	c.Response().Header().Set("ETag", etag)
	if c.Request().Header.Get("If-None-Match") == etag {
		return c.NoContent(http.StatusNotModified)
	}

	return c.JSONBlob(http.StatusOK, body)
}

func (h *Handler) handleMap(c echo.Context) error {
	view, err := h.memory.Map(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	return presenter.OK(c, view)
}

func (h *Handler) handleGet(c echo.Context) error {
	record, err := h.memory.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return presenter.OK(c, record)
}

type captureRequest struct {
	Kind        domain.MediaKind `json:"kind"`
	MediaRef    string           `json:"mediaRef"`
	Description string           `json:"description"`
	Latitude    *float64         `json:"latitude"`
	Longitude   *float64         `json:"longitude"`
}

// handleCapture accepts either a multipart upload ("media" file) or a JSON
// body pointing at media that is already stored.
func (h *Handler) handleCapture(c echo.Context) error {
	ctx := c.Request().Context()

	var (
		req    captureRequest
		camera usecase.Camera
	)

	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		err := c.Bind(&req)
		if err != nil {
			return presenter.BadRequest(c, err)
		}
		if req.MediaRef != "" && !device.WithinDir(h.config.MediaDir, req.MediaRef) {
			return presenter.BadRequestMessage(c, "mediaRef must point into the media directory")
		}
		camera = device.RefCamera{Ref: req.MediaRef}
	} else {
		req.Kind = domain.MediaKind(c.FormValue("kind"))
		req.Description = c.FormValue("description")

		var err error
		req.Latitude, err = formFloat(c, "latitude")
		if err != nil {
			return presenter.BadRequestMessage(c, "invalid latitude")
		}
		req.Longitude, err = formFloat(c, "longitude")
		if err != nil {
			return presenter.BadRequestMessage(c, "invalid longitude")
		}

		fileHeader, err := c.FormFile("media")
		if err != nil {
			return presenter.BadRequestMessage(c, "media file is required")
		}
		file, err := fileHeader.Open()
		if err != nil {
			return presenter.InternalError(c, err)
		}
		defer file.Close()

		camera = device.NewUploadCamera(h.config.MediaDir, fileHeader.Filename, file)
	}

	if !req.Kind.Valid() {
		return presenter.BadRequestMessage(c, "kind must be photo or video")
	}
	if (req.Latitude == nil) != (req.Longitude == nil) {
		return presenter.BadRequestMessage(c, "latitude and longitude go together")
	}

	session := usecase.CaptureSession{
		Camera:      camera,
		Geolocator:  device.StaticGeolocator{},
		Description: req.Description,
	}
	if req.Latitude != nil {
		session.Geolocator = device.StaticGeolocator{
			Location: &domain.Location{Latitude: *req.Latitude, Longitude: *req.Longitude},
		}
	}

	var (
		result domain.CaptureResult
		err    error
	)
	switch req.Kind {
	case domain.MediaKindPhoto:
		result, err = h.capture.CapturePhoto(ctx, session)
	case domain.MediaKindVideo:
		result, err = h.capture.CaptureVideo(ctx, session)
	}
	if err != nil {
		return h.fail(c, err)
	}

	return presenter.Created(c, result)
}

func formFloat(c echo.Context, name string) (*float64, error) {
	raw := c.FormValue(name)
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	return &value, nil
}

type editRequest struct {
	Description *string `json:"description"`
}

func (h *Handler) handleEditDescription(c echo.Context) error {
	ctx := c.Request().Context()

	var req editRequest
	err := c.Bind(&req)
	if err != nil {
		return presenter.BadRequest(c, err)
	}
	if req.Description == nil {
		return presenter.BadRequestMessage(c, "description is required")
	}

	updated, err := h.memory.EditDescription(ctx, c.Param("id"), *req.Description)
	if err != nil {
		return h.fail(c, err)
	}
	return presenter.OK(c, echo.Map{"updated": updated})
}

func (h *Handler) handleDelete(c echo.Context) error {
	deleted, err := h.memory.Delete(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return presenter.OK(c, echo.Map{"deleted": deleted})
}

func (h *Handler) handleClear(c echo.Context) error {
	err := h.memory.Clear(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok"})
}

func (h *Handler) fail(c echo.Context, err error) error {
	var (
		validationErr *domain.ValidationError
		deviceErr     *domain.DeviceCapabilityError
	)
	switch {
	case errors.As(err, &validationErr):
		return presenter.BadRequest(c, err)
	case errors.Is(err, domain.ErrNotFound):
		return presenter.NotFound(c, "memory not found")
	case errors.Is(err, domain.ErrDuplicateID):
		return presenter.Conflict(c, err)
	case errors.As(err, &deviceErr):
		return presenter.Unprocessable(c, deviceErr.UserMessage())
	default:
		return presenter.InternalError(c, err)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Request struct {
	Type string `json:"type"`
}

func (h *Handler) handleRealtime(c echo.Context) error {
	ctx := c.Request().Context()

	output, cancel := h.signal.Subscribe(ctx)
	defer cancel()

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"Failed to upgrade WebSocket",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return err
	}
	defer func() {
		ws.Close()
	}()

	quit := make(chan struct{}, 1)

	go func() {
		for {
			var req Request
			err := ws.ReadJSON(&req)
			if err != nil {

				wsErr, ok := err.(*websocket.CloseError)
				if ok {
					if !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
						slog.DebugContext(
							ctx, "WebSocket closed",
							slog.String("error", wsErr.Error()),
							slog.String("module", "socket"),
						)
					}
				} else {
					slog.ErrorContext(
						ctx, "Error reading message",
						slog.String("error", err.Error()),
						slog.String("module", "socket"),
					)
				}

				quit <- struct{}{}
				break
			}

			switch req.Type {
			case "h": // heartbeat
				// do nothing
			default:
				slog.InfoContext(
					ctx, "Unknown request type",
					slog.String("type", req.Type),
					slog.String("module", "socket"),
				)
			}
		}
	}()

	for {
		select {
		case <-quit:
			return nil
		case event, ok := <-output:
			if !ok {
				return nil
			}
			err := ws.WriteJSON(event)
			if err != nil {
				slog.ErrorContext(
					ctx, "Error writing message",
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
				return nil
			}
		}
	}
}
