package observability

import (
	"context"
	"testing"

	"alcyxob/stride-planner/internal/config"
	"alcyxob/stride-planner/internal/logger"
)

func TestInitOTel_Disabled(t *testing.T) {
	shutdown := InitOTel(context.Background(), logger.NewNop(), config.TracingConfig{Enabled: false}, "test")
	if shutdown == nil {
		t.Fatal("shutdown func is nil")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown = %v", err)
	}
}
