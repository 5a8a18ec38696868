package session

import (
	"context"
	"testing"
)

func TestJSONHelpers(t *testing.T) {
	t.Parallel()

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	t.Run("save then load round trips", func(t *testing.T) {
		ctx := context.Background()
		m := NewMemory()

		if err := SaveJSON(ctx, m, CartKey("s1"), payload{Name: "board", Count: 2}); err != nil {
			t.Fatalf("save: %v", err)
		}
		var got payload
		found, err := LoadJSON(ctx, m, CartKey("s1"), &got)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if !found || got.Name != "board" || got.Count != 2 {
			t.Fatalf("loaded %v %+v", found, got)
		}
	})

	t.Run("absent key reports not found without error", func(t *testing.T) {
		var got payload
		found, err := LoadJSON(context.Background(), NewMemory(), CartKey("s1"), &got)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if found {
			t.Fatalf("expected absent")
		}
	})

	t.Run("unparseable state is treated as absent", func(t *testing.T) {
		ctx := context.Background()
		m := NewMemory()
		if err := m.Set(ctx, FunnelKey("s1"), []byte("{corrupt")); err != nil {
			t.Fatalf("set: %v", err)
		}
		var got payload
		found, err := LoadJSON(ctx, m, FunnelKey("s1"), &got)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if found {
			t.Fatalf("corrupt state must read as absent")
		}
	})

	t.Run("keys are scoped per session and concern", func(t *testing.T) {
		keys := map[string]bool{
			CartKey("s1"):    true,
			ProfileKey("s1"): true,
			FunnelKey("s1"):  true,
			CartKey("s2"):    true,
		}
		if len(keys) != 4 {
			t.Fatalf("key collision: %v", keys)
		}
	})

	t.Run("remove deletes the key", func(t *testing.T) {
		ctx := context.Background()
		m := NewMemory()
		if err := SaveJSON(ctx, m, CartKey("s1"), payload{Name: "x"}); err != nil {
			t.Fatalf("save: %v", err)
		}
		if err := m.Remove(ctx, CartKey("s1")); err != nil {
			t.Fatalf("remove: %v", err)
		}
		var got payload
		if found, _ := LoadJSON(ctx, m, CartKey("s1"), &got); found {
			t.Fatalf("key survived remove")
		}
	})
}
