// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package supervisor

import (
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/threatcast/internal/broker"
	"github.com/tomtom215/threatcast/internal/logging"
	"github.com/tomtom215/threatcast/internal/supervisor/services"
)

// BrokerServices groups the long-running broker components. Nil entries are
// skipped, so optional collaborators (store, NATS) are simply left unset.
type BrokerServices struct {
	// Data layer
	StoreGC   suture.Service
	Persister suture.Service

	// Messaging layer
	Hubs       []suture.Service
	Cadences   []*broker.Cadence
	Liveness   []*broker.LivenessMonitor
	NATSServer suture.Service
	Consumer   suture.Service

	// API layer
	HTTP suture.Service
}

// AddBroker places every component in its layer and returns how many
// services were added.
func (t *SupervisorTree) AddBroker(s BrokerServices) int {
	added := 0
	add := func(layer func(suture.Service) suture.ServiceToken, svc suture.Service) {
		if svc == nil {
			return
		}
		layer(svc)
		added++
	}

	add(t.AddDataService, s.StoreGC)
	add(t.AddDataService, s.Persister)

	for _, hub := range s.Hubs {
		add(t.AddMessagingService, hub)
	}
	for _, c := range s.Cadences {
		if c != nil {
			add(t.AddMessagingService, services.NewRunnerService(c))
		}
	}
	for _, m := range s.Liveness {
		if m != nil {
			add(t.AddMessagingService, services.NewRunnerService(m))
		}
	}
	add(t.AddMessagingService, s.NATSServer)
	add(t.AddMessagingService, s.Consumer)

	add(t.AddAPIService, s.HTTP)

	logging.Info().Int("services", added).Msg("supervisor tree assembled")
	return added
}
