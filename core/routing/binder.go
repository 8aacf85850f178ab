package routing

import (
	"github.com/gorilla/mux"

	"github.com/spinal-tech/spinal/core/logger"
)

// Binder mounts ordered route units on the transport's route table. Binding
// mutates the router and must complete before the process starts serving.
type Binder struct {
	Router *mux.Router
}

// Bind orders the units and mounts each one. Ignored units are skipped.
// A unit whose mount function fails is excluded from the route table and
// logged, matching the non-fatal load error semantics of discovery.
func (b *Binder) Bind(units []Unit) {
	rlog := logger.Default()
	Order(units)
	for _, unit := range units {
		if unit.Handle.Ignore {
			rlog.Debugln("route", unit.Name, "ignored")
			continue
		}
		mount := mountPath(unit)
		sub := b.Router.PathPrefix(mount).Subrouter()
		if err := unit.Handle.apply(sub); err != nil {
			rlog.WithError(err).Errorln("cannot bind router", unit.Name)
			continue
		}
		rlog.Debugln("route", unit.Name, "loaded to", mount)
	}
}
