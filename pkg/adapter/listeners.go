// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package adapter

import (
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// listeners is the set of observers attached to one connection generation.
// Watchers keep draining their notification channels after detach so the
// transport never blocks on them, but they no longer forward anything.
type listeners struct {
	detached atomic.Bool
	logger   *zap.Logger
}

func newListeners(logger *zap.Logger) *listeners {
	return &listeners{logger: logger}
}

func (l *listeners) detach() {
	l.detached.Store(true)
}

// release detaches l and reports whether this call was the one that did it.
// Only the first fault of a generation gets to act on it.
func (l *listeners) release() bool {
	return l.detached.CompareAndSwap(false, true)
}

func (l *listeners) attached() bool {
	return !l.detached.Load()
}

// watchConnection forwards connection errors to onFault and logs flow-control changes.
func (l *listeners) watchConnection(conn Connection, onFault func(error)) {
	closeCh := conn.NotifyClose(make(chan *amqp091.Error, 1))
	blockCh := conn.NotifyBlocked(make(chan amqp091.Blocking, 1))

	go func() {
		for err := range closeCh {
			if err != nil && l.attached() {
				onFault(err)
			}
		}
	}()

	go func() {
		for b := range blockCh {
			if !l.attached() {
				continue
			}

			if b.Active {
				l.logger.Warn("connection was blocked by broker", zap.String("reason", b.Reason))
			} else {
				l.logger.Info("connection was unblocked by broker")
			}
		}
	}()
}

// watchChannel forwards the first channel error to onFault, or a clean close to onClose.
func (l *listeners) watchChannel(ch Channel, onFault func(error), onClose func()) {
	closeCh := ch.NotifyClose(make(chan *amqp091.Error, 1))

	go func() {
		err, ok := <-closeCh

		switch {
		case !l.attached():
		case ok && err != nil:
			onFault(err)
		default:
			onClose()
		}

		for range closeCh {
		}
	}()
}
