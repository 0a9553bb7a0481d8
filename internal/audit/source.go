package audit

import "context"

// Source - откуда пришел запрос. Кладется в контекст транспортным слоем.
type Source struct {
	ClientIP  string
	RequestID string
}

type sourceKey struct{}

func WithSource(ctx context.Context, src Source) context.Context {
	return context.WithValue(ctx, sourceKey{}, src)
}

func SourceFrom(ctx context.Context) Source {
	src, _ := ctx.Value(sourceKey{}).(Source)
	return src
}
