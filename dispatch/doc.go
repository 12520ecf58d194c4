// Package dispatch runs one delivery worker per tenant.
//
// The Registry owns worker lifecycles: Start, Stop and URL changes for the
// same tenant are serialized by a refcounted per-tenant lock while different
// tenants proceed in parallel. Each Worker drains the tenant's inbound feed
// in sequence order, one delivery in flight at a time, and advances the
// cursor past delivered and failed messages.
package dispatch
