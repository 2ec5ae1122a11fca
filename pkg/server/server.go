// Package server exposes the fire simulation over HTTP: a mapbox page that
// follows the websocket feed, and a small JSON API for playback control.
package server

import (
	"embed"
	"html/template"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sudorandom/fire-stream/pkg/firesim"
	"github.com/sudorandom/fire-stream/pkg/hub"
)

//go:embed web/index.html
var webFS embed.FS

var page = template.Must(template.ParseFS(webFS, "web/index.html"))

// Default map view when the series has no usable geometry.
var defaultCenter = [2]float64{-116, 33.9}

const defaultZoom = 10

type Server struct {
	sim         *firesim.Simulation
	hub         *hub.Hub
	mapboxToken string
}

func New(sim *firesim.Simulation, h *hub.Hub, mapboxToken string) *Server {
	if mapboxToken == "" {
		log.Printf("[server] No mapbox token configured, the map page will not load tiles")
	}
	return &Server{sim: sim, hub: h, mapboxToken: mapboxToken}
}

// Router returns the gin engine serving every route.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.GET("/", s.handleIndex)
	r.GET("/ws", gin.WrapF(s.hub.ServeWS))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.GET("/series", s.handleSeries)
		api.GET("/frames/:step", s.handleFrame)

		playback := api.Group("/playback")
		{
			playback.GET("", s.handleStatus)
			playback.POST("/start", s.handleStart)
			playback.POST("/stop", s.handleStop)
		}
	}
	return r
}

type pageData struct {
	MapboxToken string
	Center      [2]float64
	Zoom        int
	MaxStep     int
}

func (s *Server) handleIndex(c *gin.Context) {
	data := pageData{
		MapboxToken: s.mapboxToken,
		Center:      defaultCenter,
		Zoom:        defaultZoom,
		MaxStep:     s.sim.Series().Len() - 1,
	}
	if b, ok := s.sim.Series().Bound(); ok {
		center := b.Center()
		data.Center = [2]float64{center.Lon(), center.Lat()}
	}
	if data.MaxStep < 1 {
		data.MaxStep = 1
	}

	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := page.Execute(c.Writer, data); err != nil {
		log.Printf("[server] Failed to render page: %v", err)
	}
}

// SeriesInfo summarizes the loaded series.
type SeriesInfo struct {
	Steps    int         `json:"steps"`
	Polygons int         `json:"polygons"`
	MaxStep  int         `json:"max_step"`
	Window   int         `json:"intensity_window"`
	Bound    *[4]float64 `json:"bbox,omitempty"`
}

func (s *Server) handleSeries(c *gin.Context) {
	series := s.sim.Series()
	info := SeriesInfo{
		Steps:    series.Len(),
		Polygons: series.PolygonCount(),
		MaxStep:  series.MaxStep(),
		Window:   s.sim.Window(),
	}
	if b, ok := series.Bound(); ok {
		info.Bound = &[4]float64{b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat()}
	}
	success(c, info)
}

func (s *Server) handleFrame(c *gin.Context) {
	step, err := strconv.Atoi(c.Param("step"))
	if err != nil {
		failure(c, http.StatusBadRequest, "step must be an integer")
		return
	}
	if n := s.sim.Series().Len(); step < 0 || step >= n {
		failure(c, http.StatusNotFound, "step "+strconv.Itoa(step)+" is outside the series")
		return
	}
	success(c, s.sim.Frame(step))
}

// PlaybackStatus is the playback state plus the number of live viewers.
type PlaybackStatus struct {
	firesim.Status
	Clients int `json:"clients"`
}

func (s *Server) status() PlaybackStatus {
	return PlaybackStatus{Status: s.sim.Status(), Clients: s.hub.Clients()}
}

func (s *Server) handleStatus(c *gin.Context) {
	success(c, s.status())
}

func (s *Server) handleStart(c *gin.Context) {
	s.sim.Start()
	if raw, ok := c.GetQuery("step"); ok {
		step, err := strconv.Atoi(raw)
		if err != nil {
			failure(c, http.StatusBadRequest, "step must be an integer")
			return
		}
		if err := s.sim.Seek(step); err != nil {
			failure(c, http.StatusBadRequest, err.Error())
			return
		}
	}
	success(c, s.status())
}

func (s *Server) handleStop(c *gin.Context) {
	s.sim.Stop()
	success(c, s.status())
}
