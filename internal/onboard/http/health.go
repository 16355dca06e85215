package http

import (
	"context"
	"net/http"
	"time"

	"github.com/aussiebroadwan/onboard/pkg/httpx"
	"github.com/aussiebroadwan/onboard/pkg/onboardsdk"
)

// ReadyCheck is one dependency probed by /readyz.
type ReadyCheck struct {
	Name string
	Ping func(ctx context.Context) error

	// Optional checks report their state but never fail readiness.
	Optional bool
}

// LivezHandler godoc
//
//	@Summary		Liveness
//	@Description	Always 200 while the process is serving.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	onboardsdk.HealthResponse
//	@Router			/livez [get].
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, onboardsdk.HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Version: version,
		})
	}
}

// ReadyzHandler godoc
//
//	@Summary		Readiness
//	@Description	Pings the database and the other configured backends.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	onboardsdk.HealthResponse
//	@Failure		503	{object}	onboardsdk.HealthResponse	"a required dependency is down"
//	@Router			/readyz [get].
func ReadyzHandler(startTime time.Time, version string, checks ...ReadyCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		resp := onboardsdk.HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Version: version,
			Checks:  make(map[string]string, len(checks)),
		}
		code := http.StatusOK

		for _, c := range checks {
			if err := c.Ping(ctx); err != nil {
				resp.Checks[c.Name] = "error: " + err.Error()
				if !c.Optional {
					resp.Status = "degraded"
					code = http.StatusServiceUnavailable
				}
				continue
			}
			resp.Checks[c.Name] = "ok"
		}

		httpx.WriteJSON(w, code, resp)
	}
}
