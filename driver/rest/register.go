package rest

import (
	"net/http"
	"time"

	"github.com/gobeaver/drivekit"
)

func init() {
	drivekit.RegisterDriver("rest", createRestDriver)
}

func createRestDriver(cfg *drivekit.Config) (drivekit.RemoteAPI, error) {
	opts := []AdapterOption{}
	if cfg.RestToken != "" {
		opts = append(opts, WithToken(cfg.RestToken))
	}
	if cfg.RestTimeout > 0 {
		opts = append(opts, WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.RestTimeout) * time.Second,
		}))
	}
	return New(cfg.RestBaseURL, opts...)
}
