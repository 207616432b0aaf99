// Package progress models the bot's single status record and everything
// that moves it around: the stores behind the status endpoint, an HTTP
// client for that endpoint, and the reporter the bot uses to publish
// updates.
//
// Exactly one record exists. Every write replaces it; fields left out of an
// update fall back to their defaults rather than to the previous record.
//
// Backend selection happens once at startup (see NewStore):
//
//	KV_REST_API_URL + KV_REST_API_TOKEN  -> RESTStore   (+ memory fallback)
//	REDIS_URL                            -> RedisStore  (+ memory fallback)
//	otherwise                            -> MemoryStore
package progress
