package persistence

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestInboundKey(t *testing.T) {
	got := InboundKey("gupshup_whatsapp", "wamid.123", "5491130946950", 0, "")
	if got != "provider:gupshup_whatsapp:id:wamid.123" {
		t.Errorf("InboundKey = %q", got)
	}

	// Synthetic local ids fall back to the content digest.
	hashed := InboundKey("meta_whatsapp", "local-1700000000", "5491130946950", 1700000000, "hola")
	if !strings.HasPrefix(hashed, "provider:meta_whatsapp:hash:") {
		t.Errorf("InboundKey = %q", hashed)
	}
	again := InboundKey("meta_whatsapp", "", "5491130946950", 1700000000, "hola")
	if hashed != again {
		t.Errorf("digest keys differ: %q vs %q", hashed, again)
	}
}

func TestMemoryDedupeCache(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryDedupeCache(10*time.Minute, 100)

	first, _ := cache.MarkProcessed(ctx, "k1")
	if !first {
		t.Fatal("first marking should report fresh")
	}
	second, _ := cache.MarkProcessed(ctx, "k1")
	if second {
		t.Fatal("replay should report duplicate")
	}
}

func TestMemoryDedupeCacheTTL(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryDedupeCache(10*time.Minute, 100)
	current := time.Unix(1_700_000_000, 0)
	cache.now = func() time.Time { return current }

	cache.MarkProcessed(ctx, "k1")
	current = current.Add(11 * time.Minute)
	fresh, _ := cache.MarkProcessed(ctx, "k1")
	if !fresh {
		t.Error("expired key should be fresh again")
	}
}

func TestMemoryDedupeCacheEviction(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryDedupeCache(10*time.Minute, 3)
	for i := 0; i < 5; i++ {
		cache.MarkProcessed(ctx, fmt.Sprintf("k%d", i))
	}
	// k0 and k1 were evicted as the oldest entries.
	if fresh, _ := cache.MarkProcessed(ctx, "k0"); !fresh {
		t.Error("evicted key should be fresh")
	}
	if fresh, _ := cache.MarkProcessed(ctx, "k4"); fresh {
		t.Error("recent key should still be a duplicate")
	}
}

func TestRedisDedupeCache(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	ctx := context.Background()
	cache := NewRedisDedupeCache(client, 10*time.Minute)

	fresh, err := cache.MarkProcessed(ctx, "provider:gupshup_whatsapp:id:abc")
	if err != nil {
		t.Fatal(err)
	}
	if !fresh {
		t.Fatal("first marking should report fresh")
	}
	fresh, _ = cache.MarkProcessed(ctx, "provider:gupshup_whatsapp:id:abc")
	if fresh {
		t.Fatal("replay should report duplicate")
	}

	server.FastForward(11 * time.Minute)
	fresh, _ = cache.MarkProcessed(ctx, "provider:gupshup_whatsapp:id:abc")
	if !fresh {
		t.Error("expired key should be fresh again")
	}

	if err := cache.Reset(ctx); err != nil {
		t.Fatal(err)
	}
}
