// Package inbound ingests provider messages into the message store and
// exposes the store as the ordered feed the dispatch workers drain.
//
// Ingestion uses claim/complete/fail idempotency so a failed append stays
// retryable while a completed one is reported as a duplicate for the
// configured TTL.
package inbound
