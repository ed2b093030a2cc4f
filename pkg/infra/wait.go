// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package infra

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const defaultWaitPrefix = "error has occurred while waiting for process to complete"

// WaitFor blocks for d or until ctx is done, whichever happens first.
// It returns the context error when the wait was cut short.
func WaitFor(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SafeWait runs fn and logs its error instead of returning it.
func SafeWait(logger *zap.Logger, prefix string, fn func() error) {
	if fn == nil {
		return
	}

	if err := fn(); err != nil {
		if prefix == "" {
			prefix = defaultWaitPrefix
		}

		logger.Warn(prefix, zap.Error(err))
	}
}
