// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package infra

import (
	"context"
	"testing"

	"github.com/GwynCerbin/scraper_rabbit/pkg/broker"
	"github.com/GwynCerbin/scraper_rabbit/pkg/contracts"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMessage struct {
	broker.Message
	event contracts.Message
}

func (m stubMessage) Event() contracts.Message {
	return m.event
}

func TestRouterDispatch(t *testing.T) {
	var got []contracts.EventType

	router := NewRouter()
	router.Add(contracts.ApartmentAddedType, func(_ context.Context, m broker.Message) error {
		got = append(got, m.Event().EventType())
		return nil
	})
	router.Add(contracts.PriceChangedType, func(_ context.Context, m broker.Message) error {
		got = append(got, m.Event().EventType())
		return nil
	})

	ctx := context.Background()
	require.NoError(t, router.Dispatch(ctx, stubMessage{event: contracts.ApartmentAdded{}}))
	require.NoError(t, router.Dispatch(ctx, stubMessage{event: contracts.PriceChanged{}}))

	err := router.Dispatch(ctx, stubMessage{event: contracts.ApartmentBumped{}})
	require.ErrorIs(t, err, UnroutedMessage{})
	assert.Contains(t, err.Error(), "apartment_bumped")

	require.ErrorIs(t, router.Dispatch(ctx, stubMessage{}), UnroutedMessage{})

	assert.Equal(t, []contracts.EventType{contracts.ApartmentAddedType, contracts.PriceChangedType}, got)
}
