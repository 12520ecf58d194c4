// Package webhooks delivers inbound messages to tenant callback URLs.
//
// A Policy owns one delivery: it encodes the envelope, POSTs it, classifies
// each attempt through status and error rule tables and sleeps with
// exponential equal-jitter backoff between retryable attempts. The final
// outcome is delivered, failed or abandoned.
package webhooks
