package controllers

import (
	"errors"
	"net/http"

	"github.com/rzbill/pricerelay/internal/runtime"
	"github.com/rzbill/pricerelay/internal/snapshot"
	"github.com/rzbill/pricerelay/pkg/log"
)

// snapshotUnavailable is the fixed body for every /price failure.
const snapshotUnavailable = "Could not read price file"

// PriceController serves the latest snapshot.
type PriceController struct {
	rt     *runtime.Runtime
	logger log.Logger
}

// NewPriceController creates a new price controller.
func NewPriceController(rt *runtime.Runtime, logger log.Logger) *PriceController {
	return &PriceController{rt: rt, logger: logger}
}

// RegisterRoutes registers /price.
func (c *PriceController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/price", c.handlePrice)
}

// handlePrice writes the stored snapshot bytes verbatim. A missing snapshot
// and a store failure get the same 500 response.
func (c *PriceController) handlePrice(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	b, err := c.rt.Store().ReadCurrent(r.Context())
	if err != nil {
		if errors.Is(err, snapshot.ErrNotFound) {
			c.logger.Debug("no price snapshot yet")
		} else {
			c.logger.Error("error reading price snapshot", log.Err(err))
		}
		writeError(w, http.StatusInternalServerError, snapshotUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}
