// Package ratelimit throttles requests to Instagram.
//
// TokenBucket hands out a fixed number of tokens per period and refills
// them all at once. SlidingWindow counts requests inside a moving window.
// The Instagram client uses either one, per rate_limit.algorithm, sized in
// requests per minute.
//
// Wait honours context cancellation so a stopping bot never blocks on a
// full window.
package ratelimit
