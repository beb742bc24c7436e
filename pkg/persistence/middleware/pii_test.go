package middleware_test

import (
	"context"
	"testing"

	"github.com/aretw0/tollgate/pkg/adapters/memory"
	"github.com/aretw0/tollgate/pkg/domain"
	"github.com/aretw0/tollgate/pkg/persistence/middleware"
	"github.com/aretw0/tollgate/pkg/ports"
)

func TestPIIMiddleware_Contract(t *testing.T) {
	mw := middleware.NewPIIMiddleware([]string{"password"})
	ports.RunCheckpointStoreContract(t, mw(memory.NewStore()))
}

func TestPIIMiddleware_Masking(t *testing.T) {
	underlyingStore := memory.NewStore()
	// Mask keys containing "password" or "ssn"
	secureStore := middleware.NewPIIMiddleware([]string{"password", "ssn"})(underlyingStore)

	ctx := context.Background()
	id := "pii-conversation"

	answered := domain.ToolCall{ID: "c1", Name: "signup", Args: map[string]any{
		"username":      "jdoe",
		"user_password": "secret123",
		"details": map[string]any{
			"address":    "123 St",
			"ssn_number": "999-99-9999",
		},
	}}
	waiting := domain.ToolCall{ID: "c2", Name: "login", Args: map[string]any{"password": "hunter2"}}

	cp := domain.NewCheckpoint(id)
	cp.Log.Append(domain.HumanTurn("sign me up"))
	cp.Log.Append(domain.AgentTurn("", answered))
	cp.Log.Append(domain.ToolResultTurn(answered, "ok", domain.ToolStatusOK))
	cp.Log.Append(domain.AgentTurn("", waiting))
	cp.Next = domain.StepApprovalGate

	if err := secureStore.Save(ctx, cp); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// In-memory checkpoint is not modified.
	if cp.Log.All()[1].ToolCalls[0].Args["user_password"] != "secret123" {
		t.Error("Middleware modified original checkpoint in memory!")
	}

	stored, err := underlyingStore.Load(ctx, id)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	turns := stored.Log.All()

	args := turns[1].ToolCalls[0].Args
	if args["user_password"] != middleware.Mask {
		t.Errorf("Expected user_password masked, got %v", args["user_password"])
	}
	if args["username"] != "jdoe" {
		t.Errorf("Expected username kept, got %v", args["username"])
	}
	details := args["details"].(map[string]any)
	if details["ssn_number"] != middleware.Mask {
		t.Errorf("Expected nested ssn masked, got %v", details["ssn_number"])
	}
	if details["address"] != "123 St" {
		t.Errorf("Expected address kept, got %v", details["address"])
	}

	// The call awaiting approval keeps its real arguments.
	if turns[3].ToolCalls[0].Args["password"] != "hunter2" {
		t.Errorf("Pending call arguments must not be masked, got %v", turns[3].ToolCalls[0].Args["password"])
	}
	if err := stored.CheckInvariant(); err != nil {
		t.Errorf("Redaction broke the checkpoint: %v", err)
	}
}

func TestChain_Order(t *testing.T) {
	underlyingStore := memory.NewStore()
	key := make([]byte, 32)
	store := middleware.Chain(underlyingStore,
		middleware.NewPIIMiddleware([]string{"token"}),
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}),
	)

	ctx := context.Background()
	call := domain.ToolCall{ID: "c1", Name: "auth", Args: map[string]any{"token": "abc"}}
	cp := domain.NewCheckpoint("chain")
	cp.Log.Append(domain.AgentTurn("", call))
	cp.Log.Append(domain.ToolResultTurn(call, "ok", domain.ToolStatusOK))

	if err := store.Save(ctx, cp); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load(ctx, "chain")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := loaded.Log.All()[0].ToolCalls[0].Args["token"]; got != middleware.Mask {
		t.Errorf("Expected token masked before encryption, got %v", got)
	}

	raw, _ := underlyingStore.Load(ctx, "chain")
	if raw.Log.Len() != 0 {
		t.Error("Expected encrypted envelope underneath")
	}
}
