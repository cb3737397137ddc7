// Package narrative holds reviewer annotations (root cause hypothesis and
// path to green) keyed by row identity, and joins them onto recomputed
// report rows.
//
// Annotations live apart from computed metrics: recomputing a report never
// writes here, so user-entered text survives any number of recomputes. The
// store is cleared only by an explicit Reset.
//
// Repository implementations live in repository/memory/, repository/postgres/,
// repository/redisrepo/ and repository/dynamo/.
package narrative
