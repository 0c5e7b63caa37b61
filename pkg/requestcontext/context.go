// Package requestcontext carries request-scoped values (request id, client
// address, pinned clock) from HTTP middleware down to services, which must
// not import net/http.
package requestcontext

import (
	"context"
	"time"
)

type key int

const (
	requestIDKey key = iota
	clientIPKey
	requestTimeKey
)

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns "" outside a request.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

func ClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}

// WithTime pins the clock every write in this request stamps notes with.
func WithTime(ctx context.Context, now time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey, now)
}

// Now returns the pinned request time, or the wall clock when nothing was
// pinned (feed consumers, background work).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey).(time.Time); ok {
		return t
	}
	return time.Now()
}
