package http

import (
	"net/http"
	"time"

	"github.com/rs/cors"

	"github.com/quentinrf/smartband-edge/internal/domain"
	"github.com/quentinrf/smartband-edge/internal/ports"
)

// ServiceName is reported by the health endpoint
const ServiceName = "smart-band-edge-service"

// maxBodyBytes caps request bodies on the write path
const maxBodyBytes = 1 << 20

const recordsPath = "/api/v1/health-monitoring/data-records"

// Server exposes the command and query handlers over REST
type Server struct {
	commands *ports.RecordHeartRateHandler
	queries  *ports.HeartRateQueryHandler
	store    domain.Pinger
	origins  []string
	now      func() time.Time
}

// NewServer creates the REST adapter. store backs the keep-alive probe.
func NewServer(commands *ports.RecordHeartRateHandler, queries *ports.HeartRateQueryHandler, store domain.Pinger, allowedOrigins []string) *Server {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	return &Server{
		commands: commands,
		queries:  queries,
		store:    store,
		origins:  allowedOrigins,
		now:      time.Now,
	}
}

// Handler returns the full middleware chain around the route table
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST "+recordsPath, s.recordHeartRate)
	mux.HandleFunc("GET "+recordsPath+"/{smartBandId}/history", s.getHistory)
	mux.HandleFunc("GET "+recordsPath+"/{smartBandId}/statistics", s.getStatistics)

	mux.HandleFunc("GET /health", s.health)
	mux.HandleFunc("GET /keepalive", s.keepalive)
	mux.HandleFunc("GET /ping", s.ping)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
	})

	return withLogging(corsHandler.Handler(mux))
}

// Routes lists the public endpoints for the startup banner
func Routes() []string {
	return []string{
		"POST " + recordsPath,
		"GET  " + recordsPath + "/{smartBandId}/history",
		"GET  " + recordsPath + "/{smartBandId}/statistics",
		"GET  /health",
		"GET  /keepalive",
		"GET  /ping",
	}
}
