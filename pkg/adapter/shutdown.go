// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/GwynCerbin/scraper_rabbit/pkg/infra"

	"go.uber.org/zap"
)

const disposePollInterval = 500 * time.Millisecond

// Dispose stops the client for good. It cancels a pending reconnection and the
// consumer, waits for the handler in flight, then closes the channel and the
// connection. Close errors are logged, not returned.
//
// If ctx ends while a message is still being processed, Dispose stops waiting,
// closes the transport anyway and returns the context error. Later calls are no-ops.
func (c *Client) Dispose(ctx context.Context) error {
	c.mute.Lock()
	if c.disposed {
		c.mute.Unlock()

		return nil
	}

	c.disposed = true
	c.stopTimer()
	close(c.stopping)
	c.mute.Unlock()

	c.logger.Info("disposing broker client")

	c.initMute.Lock()
	defer c.initMute.Unlock()

	st := c.current()

	if st != nil {
		st.closing.Store(true)

		if st.consumerTag != "" {
			if err := st.ch.Cancel(st.consumerTag, false); err != nil {
				c.logger.Warn("error has occurred while cancelling consumer", zap.Error(err))
			} else {
				c.logger.Info("cancelled receiving messages", zap.String("consumer_tag", st.consumerTag))
			}
		}
	}

	c.gate.Lock()
	c.draining = true
	c.gate.Unlock()

	var waitErr error

	if c.processing.Load() {
		c.logger.Info("wait for consumer to stop processing current message")
		waitErr = c.waitIdle(ctx)
	}

	if st != nil {
		c.closeState(st)
		c.waitConsumer(ctx, st)
	}

	c.mute.Lock()
	c.state = nil
	c.mute.Unlock()

	c.cancel()
	c.logger.Info("broker client disposed")

	return waitErr
}

// waitIdle polls the processing flag until it drops or ctx ends.
func (c *Client) waitIdle(ctx context.Context) error {
	for c.processing.Load() {
		if err := infra.WaitFor(ctx, disposePollInterval); err != nil {
			c.logger.Warn("stopped waiting for message processing", zap.Error(err))

			return fmt.Errorf("wait for processing: %w", err)
		}
	}

	return nil
}

func (c *Client) waitConsumer(ctx context.Context, st *connState) {
	if st.consumerDone == nil {
		return
	}

	select {
	case <-st.consumerDone:
	case <-ctx.Done():
	}
}

// retire tears down a generation replaced by a new connection. The consumer is
// drained first so its handler never overlaps with the next one. It reports false,
// leaving st open, when Dispose starts before the handler in flight returns.
func (c *Client) retire(st *connState) bool {
	st.closing.Store(true)
	st.listeners.detach()

	if st.consumerTag != "" {
		if err := st.ch.Cancel(st.consumerTag, false); err != nil {
			c.logger.Debug("cancel stale consumer", zap.Error(err))
			infra.SafeWait(c.logger, "error has occurred while closing stale channel", st.ch.Close)
		}

		select {
		case <-st.consumerDone:
		case <-c.stopping:
			return false
		}
	}

	c.closeState(st)

	return true
}

// closeState detaches the observers of st and closes its channel, then its connection.
func (c *Client) closeState(st *connState) {
	st.closing.Store(true)
	st.listeners.detach()

	if st.ch != nil {
		infra.SafeWait(c.logger, "error has occurred while closing broker's channel", st.ch.Close)
	}

	if st.conn != nil {
		infra.SafeWait(c.logger, "error has occurred while closing broker's connection", st.conn.Close)
	}
}
