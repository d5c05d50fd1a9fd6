package health

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Report is the health endpoint's JSON body.
type Report struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// Handler serves the liveness/readiness endpoint. Every registered check
// runs on each request with the request's context, so probes against the
// database or Redis honor client disconnects and server timeouts. Any
// failing probe turns the response into a 503.
func Handler(service, version string, checks map[string]Check) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := Report{
			Status:  "healthy",
			Service: service,
			Version: version,
		}
		if len(checks) > 0 {
			report.Checks = make(map[string]string, len(checks))
		}

		for name, probe := range checks {
			if err := probe(c.Request.Context()); err != nil {
				report.Checks[name] = "unhealthy: " + err.Error()
				report.Status = "unhealthy"
			} else {
				report.Checks[name] = "healthy"
			}
		}

		code := http.StatusOK
		if report.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, report)
	}
}
