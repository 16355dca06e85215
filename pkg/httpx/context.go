package httpx

import (
	"context"
	"net/http"
)

type ctxKey string

const ctxKeyRequestMeta ctxKey = "request_meta"

// RequestMeta is who and where a request came from. It rides the context so
// the audit log can stamp entries without every service taking an *http.Request.
type RequestMeta struct {
	Actor     string
	IP        string
	UserAgent string
}

// WithRequestMeta stores m in ctx.
func WithRequestMeta(ctx context.Context, m RequestMeta) context.Context {
	return context.WithValue(ctx, ctxKeyRequestMeta, m)
}

// RequestMetaFrom returns the metadata stored in ctx, if any.
func RequestMetaFrom(ctx context.Context) (RequestMeta, bool) {
	m, ok := ctx.Value(ctxKeyRequestMeta).(RequestMeta)
	return m, ok
}

// WithActor returns ctx with the actor replaced, keeping ip and user agent.
func WithActor(ctx context.Context, actor string) context.Context {
	m, _ := RequestMetaFrom(ctx)
	m.Actor = actor
	return WithRequestMeta(ctx, m)
}

// RequestMetaMiddleware records the caller IP, as resolved by clientIP, and
// user agent. Authentication middleware further down the chain fills in the
// actor.
func RequestMetaMiddleware(clientIP KeyExtractor) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithRequestMeta(r.Context(), RequestMeta{
				IP:        clientIP(r),
				UserAgent: r.UserAgent(),
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
