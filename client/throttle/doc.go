// Package throttle rate-limits outbound fetches per remote host.
//
// [NewRoundTripper] wraps a transport and keeps one token bucket from
// [golang.org/x/time/rate] for every host it has seen. A request waits
// for a token from its own host's bucket, so a busy origin never delays
// fetches against another one. A request whose context ends while
// waiting fails with the context's error and never reaches the network.
package throttle
