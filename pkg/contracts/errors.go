// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package contracts

// UnknownEventTypeError is returned when a payload carries an unsupported discriminator.
type UnknownEventTypeError struct {
	Type string
}

func (e UnknownEventTypeError) Error() string {
	return "unknown message type: " + e.Type
}

// Is matches any UnknownEventTypeError regardless of the offending value.
func (UnknownEventTypeError) Is(target error) bool {
	_, ok := target.(UnknownEventTypeError)
	return ok
}
