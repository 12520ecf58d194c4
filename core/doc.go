// Package core holds the relay domain model, store and dispatch contracts, and
// the Service that ties tenant directory changes to dispatcher lifecycle.
// Adapters depend on core; core never imports transport or storage packages.
package core
