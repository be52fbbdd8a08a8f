// Package system provides the wall-clock implementation of scout.Clock.
package system

import "time"

// Clock returns the current UTC time.
type Clock struct{}

// New constructs a Clock.
func New() Clock { return Clock{} }

// Now implements scout.Clock.
func (Clock) Now() time.Time { return time.Now().UTC() }
