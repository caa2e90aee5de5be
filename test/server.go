package test

import (
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/celestiaorg/reelcast/internal/app"
	"github.com/celestiaorg/reelcast/pkg/api/v1/client"
)

// testClientTimeout is the timeout for test API client requests
const testClientTimeout = 5 * time.Second

// SetupServer assembles the service on the suite's database and vendor mocks
// and serves it over a real HTTP listener
func SetupServer(suite *Suite) {
	// Start the listener first so its URL can be the public base URL used for
	// self triggering and webhooks
	suite.Server = httptest.NewServer(http.HandlerFunc(suite.serveHTTP))
	suite.Config.PublicBaseURL = suite.Server.URL

	service, err := app.New(suite.Config, suite.DB, suite.Vendors.Set())
	suite.Require().NoError(err, "Failed to assemble service")
	suite.Service = service

	suite.handlerMu.Lock()
	suite.handler = adaptor.FiberApp(service.App)
	suite.handlerMu.Unlock()

	service.Start(suite.ctx)

	apiClient, err := client.NewClient(&client.Options{
		BaseURL:      suite.Server.URL,
		Timeout:      testClientTimeout,
		TriggerToken: suite.Config.TriggerToken,
	})
	suite.Require().NoError(err, "Failed to create API client")
	suite.APIClient = apiClient
}

func (s *Suite) serveHTTP(w http.ResponseWriter, r *http.Request) {
	s.handlerMu.RLock()
	h := s.handler
	s.handlerMu.RUnlock()
	if h == nil {
		http.Error(w, "service not ready", http.StatusServiceUnavailable)
		return
	}
	h.ServeHTTP(w, r)
}
