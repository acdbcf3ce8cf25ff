package context

import "context"

type ContextKey string

var (
	RunIDKey      = ContextKey("X-Run-Id")
	EntityKindKey = ContextKey("X-Entity-Kind")
	FullLoadKey   = ContextKey("X-Full-Load")
)

func SetRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

func GetRunID(ctx context.Context) string {
	value, ok := ctx.Value(RunIDKey).(string)
	if !ok {
		return ""
	}
	return value
}

func SetEntityKind(ctx context.Context, kind string) context.Context {
	return context.WithValue(ctx, EntityKindKey, kind)
}

func GetEntityKind(ctx context.Context) string {
	value, ok := ctx.Value(EntityKindKey).(string)
	if !ok {
		return ""
	}
	return value
}

func SetFullLoad(ctx context.Context, fullLoad bool) context.Context {
	return context.WithValue(ctx, FullLoadKey, fullLoad)
}

func GetFullLoad(ctx context.Context) bool {
	value, _ := ctx.Value(FullLoadKey).(bool)
	return value
}

// Fields returns the run values carried by ctx as log fields.
func Fields(ctx context.Context) map[string]any {
	fields := map[string]any{}
	if runID := GetRunID(ctx); runID != "" {
		fields["run_id"] = runID
	}
	if kind := GetEntityKind(ctx); kind != "" {
		fields["entity_kind"] = kind
	}
	return fields
}
