package services

import "context"

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// truncateError keeps log lines bounded when transports return verbose errors.
func truncateError(err error) string {
	const limit = 200
	msg := err.Error()
	if len(msg) <= limit {
		return msg
	}
	return msg[:limit] + "..."
}
