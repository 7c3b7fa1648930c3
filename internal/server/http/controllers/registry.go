package controllers

import (
	"net/http"

	"github.com/rzbill/pricerelay/internal/runtime"
	"github.com/rzbill/pricerelay/pkg/log"
)

// ControllerRegistry manages all HTTP controllers.
type ControllerRegistry struct {
	general *GeneralController
	price   *PriceController
	stream  *StreamController
}

// NewControllerRegistry creates a new controller registry.
func NewControllerRegistry(rt *runtime.Runtime, logger log.Logger) *ControllerRegistry {
	return &ControllerRegistry{
		general: NewGeneralController(rt),
		price:   NewPriceController(rt, logger),
		stream:  NewStreamController(rt, logger),
	}
}

// RegisterAllRoutes registers all controller routes with the given mux.
func (r *ControllerRegistry) RegisterAllRoutes(mux *http.ServeMux) {
	r.general.RegisterRoutes(mux)
	r.price.RegisterRoutes(mux)
	r.stream.RegisterRoutes(mux)
}
