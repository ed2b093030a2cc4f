// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package infra

import (
	"context"
	"fmt"

	"github.com/GwynCerbin/scraper_rabbit/pkg/broker"
	"github.com/GwynCerbin/scraper_rabbit/pkg/contracts"
)

// Route handles one kind of scraper message. Acknowledging is up to the route.
type Route func(ctx context.Context, message broker.Message) error

type Router map[contracts.EventType]Route

func NewRouter() Router {
	return make(Router)
}

func (r Router) Add(t contracts.EventType, f Route) {
	r[t] = f
}

// Dispatch calls the route registered for the message event type.
func (r Router) Dispatch(ctx context.Context, message broker.Message) error {
	event := message.Event()
	if event == nil {
		return fmt.Errorf("%w: message has no event", UnroutedMessage{})
	}

	f, ok := r[event.EventType()]
	if !ok {
		return fmt.Errorf("%w, event type: %s", UnroutedMessage{}, event.EventType())
	}

	return f(ctx, message)
}
