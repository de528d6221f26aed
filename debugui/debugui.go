// https://github.com/usbarmory/sehci
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package debugui exposes live driver state over HTTP: the runtime charts
// github.com/mkevac/debugcharts already serves (goroutines, GC pauses, heap)
// alongside a small JSON endpoint reporting how many observer events are
// waiting in a Peripheral's event queue.
package debugui

import (
	"encoding/json"
	"net/http"

	"github.com/mkevac/debugcharts"

	"github.com/usbarmory/sehci/usb"
)

// Stats is the JSON body served at /debug/sehci.
type Stats struct {
	PendingEvents int `json:"pending_events"`
}

// Start registers the debugcharts handlers plus /debug/sehci on
// http.DefaultServeMux and begins serving on addr. It does not return until
// the HTTP server does (normally never, on a successful bring-up).
func Start(addr string, p *usb.Peripheral) error {
	debugcharts.Start(addr)

	http.HandleFunc("/debug/sehci", func(w http.ResponseWriter, r *http.Request) {
		stats := Stats{
			PendingEvents: p.Events().Len(),
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	})

	return http.ListenAndServe(addr, nil)
}
