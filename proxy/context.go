package proxy

import "context"

type accessTokenContextKeyType struct{}

var accessTokenContextKey = accessTokenContextKeyType{}

func withAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, accessTokenContextKey, token)
}

func accessTokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(accessTokenContextKey).(string)
	return token
}
