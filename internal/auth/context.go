package auth

import (
	"context"
	"errors"
)

type ctxKey int

const (
	ctxPhone ctxKey = iota
	ctxRole
)

func WithIdentity(ctx context.Context, phone, role string) context.Context {
	ctx = context.WithValue(ctx, ctxPhone, phone)
	ctx = context.WithValue(ctx, ctxRole, role)
	return ctx
}

func Phone(ctx context.Context) (string, error) {
	v := ctx.Value(ctxPhone)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("phone not in context")
}

func Role(ctx context.Context) (string, error) {
	v := ctx.Value(ctxRole)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("role not in context")
}
