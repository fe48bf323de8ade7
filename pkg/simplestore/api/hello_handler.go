package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// HelloHandler is a connectivity check that echoes request details
type HelloHandler struct {
	environment string
	now         func() time.Time
}

func NewHelloHandler(environment string) *HelloHandler {
	if environment == "" {
		environment = "development"
	}
	return &HelloHandler{environment: environment, now: time.Now}
}

// Routes returns the router for the hello endpoint
func (h *HelloHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.Get)
	r.Post("/", h.Post)
	return r
}

type helloResponse struct {
	Message     string    `json:"message"`
	Environment string    `json:"environment"`
	Path        string    `json:"path"`
	Method      string    `json:"method"`
	Timestamp   time.Time `json:"timestamp"`
}

type helloEchoResponse struct {
	Message      string                 `json:"message"`
	ReceivedData map[string]interface{} `json:"receivedData"`
	Timestamp    time.Time              `json:"timestamp"`
}

func (h *HelloHandler) Get(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, helloResponse{
		Message:     "Hello from simple-store!",
		Environment: h.environment,
		Path:        r.URL.Path,
		Method:      r.Method,
		Timestamp:   h.now().UTC(),
	})
}

// Post greets the "name" field of a JSON object body
func (h *HelloHandler) Post(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body == nil {
		writeError(w, r, http.StatusBadRequest, ErrorResponse{Error: "Invalid JSON in request body"})
		return
	}

	name, _ := body["name"].(string)
	if name == "" {
		name = "Anonymous"
	}

	render.JSON(w, r, helloEchoResponse{
		Message:      fmt.Sprintf("Hello, %s! Your POST request was received.", name),
		ReceivedData: body,
		Timestamp:    h.now().UTC(),
	})
}
