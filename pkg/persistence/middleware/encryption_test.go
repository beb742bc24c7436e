package middleware_test

import (
	"context"
	"crypto/rand"
	"io"
	"testing"

	"github.com/aretw0/tollgate/pkg/adapters/memory"
	"github.com/aretw0/tollgate/pkg/domain"
	"github.com/aretw0/tollgate/pkg/persistence/middleware"
	"github.com/aretw0/tollgate/pkg/ports"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		t.Fatal(err)
	}
	return k
}

func secretCheckpoint(id string) *domain.Checkpoint {
	cp := domain.NewCheckpoint(id)
	cp.Log.Append(domain.HumanTurn("my-secret-sauce"))
	cp.Version = 1
	return cp
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	mw := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	ports.RunCheckpointStoreContract(t, mw(memory.NewStore()))
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlyingStore := memory.NewStore()
	mw := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	secureStore := mw(underlyingStore)

	ctx := context.Background()
	id := "test-conversation"
	original := secretCheckpoint(id)
	original.Next = domain.StepGenerateResponse

	if err := secureStore.Save(ctx, original); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// The underlying store only sees the envelope.
	stored, err := underlyingStore.Load(ctx, id)
	if err != nil {
		t.Fatalf("Underlying load failed: %v", err)
	}
	if stored.Log.Len() != 0 {
		t.Fatalf("Expected log to be hidden, found %d turns", stored.Log.Len())
	}
	if _, ok := stored.Metadata[middleware.EnvelopeKey]; !ok {
		t.Fatal("Expected __encrypted__ field in metadata")
	}
	if stored.Next != domain.StepGenerateResponse || stored.Version != 1 {
		t.Errorf("Expected next step and version in clear, got %s/%d", stored.Next, stored.Version)
	}

	loaded, err := secureStore.Load(ctx, id)
	if err != nil {
		t.Fatalf("Load via middleware failed: %v", err)
	}
	turns := loaded.Log.All()
	if len(turns) != 1 || turns[0].Content != "my-secret-sauce" {
		t.Errorf("Expected 'my-secret-sauce', got %v", turns)
	}
}

func TestEncryptionMiddleware_CompareAndSwap(t *testing.T) {
	mw := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	secureStore := mw(memory.NewStore())
	ctx := context.Background()

	cp := secretCheckpoint("cas")
	if err := secureStore.CompareAndSwap(ctx, cp, 0); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	next := cp.Clone()
	next.Version = 2
	if err := secureStore.CompareAndSwap(ctx, next, 1); err != nil {
		t.Fatalf("swap failed: %v", err)
	}
	if err := secureStore.CompareAndSwap(ctx, next, 1); err == nil {
		t.Fatal("Expected version conflict on stale swap")
	}
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlyingStore := memory.NewStore()
	oldKey := generateKey(t)
	newKey := generateKey(t)

	secureStoreOld := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})(underlyingStore)

	ctx := context.Background()
	id := "rotation-conversation"

	if err := secureStoreOld.Save(ctx, secretCheckpoint(id)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	secureStoreNew := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(underlyingStore)

	loaded, err := secureStoreNew.Load(ctx, id)
	if err != nil {
		t.Fatalf("Load with rotated key failed: %v", err)
	}
	if loaded.Log.Len() != 1 {
		t.Errorf("Decryption with fallback key failed")
	}

	// Save again: now encrypted with the new key only.
	loaded.Log.Append(domain.HumanTurn("encrypted-with-new-key"))
	if err := secureStoreNew.Save(ctx, loaded); err != nil {
		t.Fatalf("Save with new key failed: %v", err)
	}

	if _, err := secureStoreOld.Load(ctx, id); err == nil {
		t.Error("Expected failure when loading new-key encryption with old-key middleware")
	}
}

func TestEncryptionMiddleware_RejectsPlainCheckpoint(t *testing.T) {
	underlyingStore := memory.NewStore()
	if err := underlyingStore.Save(context.Background(), secretCheckpoint("plain")); err != nil {
		t.Fatal(err)
	}

	secureStore := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlyingStore)
	if _, err := secureStore.Load(context.Background(), "plain"); err == nil {
		t.Fatal("Expected plain checkpoint to be rejected")
	}
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("Expected panic for invalid key size")
		}
	}()
	middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
}
