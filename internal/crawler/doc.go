// Package crawler defines the fetch abstractions shared by the dataset
// downloaders, bulletin scrapers and map generators, together with the
// resilience helpers (retry, circuit breaker, robots) and the forecast-hour
// fallback search used when walking model directory listings.
package crawler
