package transport

import (
	"context"
	"testing"

	"github.com/criticalup/criticalup/internal/transport/transporttest"
)

func TestFetchCachesAndRevalidates(t *testing.T) {
	srv := transporttest.New("tok")
	defer srv.Close()
	srv.SetRoute("/v1/keys", []byte(`{"keys":[]}`))

	cache := NewCache(t.TempDir())
	client := NewClient(cache, WithToken("tok"))

	ctx := context.Background()
	url := srv.URL + "/v1/keys"

	body, err := client.Fetch(ctx, CategoryKeys, url)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(body) != `{"keys":[]}` {
		t.Errorf("unexpected body: %s", body)
	}
	if srv.Hits("/v1/keys") != 1 {
		t.Fatalf("expected 1 hit, got %d", srv.Hits("/v1/keys"))
	}

	// Second fetch should revalidate (304) and reuse the cached payload.
	body2, err := client.Fetch(ctx, CategoryKeys, url)
	if err != nil {
		t.Fatalf("Fetch (second): %v", err)
	}
	if string(body2) != `{"keys":[]}` {
		t.Errorf("unexpected body on revalidation: %s", body2)
	}
	if srv.Hits("/v1/keys") != 2 {
		t.Fatalf("expected 2 hits after revalidation, got %d", srv.Hits("/v1/keys"))
	}
}

func TestFetchUnauthorized(t *testing.T) {
	srv := transporttest.New("tok")
	defer srv.Close()
	srv.SetRoute("/v1/keys", []byte(`{}`))

	cache := NewCache(t.TempDir())
	client := NewClient(cache, WithToken("wrong"))

	_, err := client.Fetch(context.Background(), CategoryKeys, srv.URL+"/v1/keys")
	if err == nil {
		t.Fatal("expected unauthorized error")
	}
}

func TestFetchOfflineMissWithoutCache(t *testing.T) {
	cache := NewCache(t.TempDir())
	client := NewClient(cache, WithOffline(true))

	_, err := client.Fetch(context.Background(), CategoryKeys, "https://example.invalid/v1/keys")
	if err == nil {
		t.Fatal("expected offline cache miss error")
	}
}

func TestFetchOfflineHitsCache(t *testing.T) {
	srv := transporttest.New("")
	defer srv.Close()
	srv.SetRoute("/v1/keys", []byte(`{"keys":[]}`))

	cache := NewCache(t.TempDir())
	online := NewClient(cache)
	url := srv.URL + "/v1/keys"
	if _, err := online.Fetch(context.Background(), CategoryKeys, url); err != nil {
		t.Fatalf("priming fetch: %v", err)
	}

	offline := NewClient(cache, WithOffline(true))
	body, err := offline.Fetch(context.Background(), CategoryKeys, url)
	if err != nil {
		t.Fatalf("offline Fetch: %v", err)
	}
	if string(body) != `{"keys":[]}` {
		t.Errorf("unexpected offline body: %s", body)
	}
	if srv.Hits("/v1/keys") != 1 {
		t.Fatalf("offline fetch should not reach the network, got %d hits", srv.Hits("/v1/keys"))
	}
}
