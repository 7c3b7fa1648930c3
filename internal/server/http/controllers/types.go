package controllers

import "github.com/rzbill/pricerelay/internal/runtime"

type errorResp struct {
	Error string `json:"error"`
}

type healthResp struct {
	Status string `json:"status"`
}

// statsResp is the /v1/stats body.
type statsResp struct {
	Subject string `json:"subject"`
	runtime.Stats
}
