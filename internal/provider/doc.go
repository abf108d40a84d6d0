// Package provider is the HTTP client for the tokenization provider.
//
// Two services are involved. The supply-chain API accepts a batch of
// activities as a multipart upload and answers with one result per activity
// (or a single failure object). The API server reports the outcome of
// issuances that the provider queued for asynchronous processing.
package provider
