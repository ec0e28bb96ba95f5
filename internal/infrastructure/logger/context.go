package logger

import (
	"context"

	"go.uber.org/zap"
)

// contextKey is a type for context keys used by the logger package
type contextKey string

const (
	// LoggerKey is the context key for the logger
	LoggerKey contextKey = "logger"
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// BuyerIDKey is the context key for the acting buyer
	BuyerIDKey contextKey = "buyer_id"
)

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from context, returning a no-op logger
// if none is attached
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(LoggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithRequestID adds the request ID to the context and returns an enriched logger
func WithRequestID(ctx context.Context, logger *zap.Logger, requestID string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, RequestIDKey, requestID)
	enriched := logger.With(zap.String("request_id", requestID))
	return WithContext(ctx, enriched), enriched
}

// WithBuyerID adds the buyer ID to the context and returns an enriched logger
func WithBuyerID(ctx context.Context, logger *zap.Logger, buyerID string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, BuyerIDKey, buyerID)
	enriched := logger.With(zap.String("buyer_id", buyerID))
	return WithContext(ctx, enriched), enriched
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetBuyerID retrieves the buyer ID from context
func GetBuyerID(ctx context.Context) string {
	if buyerID, ok := ctx.Value(BuyerIDKey).(string); ok {
		return buyerID
	}
	return ""
}
