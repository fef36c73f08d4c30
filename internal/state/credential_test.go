package state

import "testing"

func TestSaveLoadRemoveToken(t *testing.T) {
	root := NewRoot(t.TempDir())

	tok, err := root.LoadToken()
	if err != nil {
		t.Fatalf("LoadToken (unset): %v", err)
	}
	if tok != "" {
		t.Errorf("expected empty token before SaveToken, got %q", tok)
	}

	if err := root.SaveToken("secret-token"); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}
	tok, err = root.LoadToken()
	if err != nil {
		t.Fatalf("LoadToken: %v", err)
	}
	if tok != "secret-token" {
		t.Errorf("LoadToken = %q, want secret-token", tok)
	}

	if err := root.RemoveToken(); err != nil {
		t.Fatalf("RemoveToken: %v", err)
	}
	tok, err = root.LoadToken()
	if err != nil {
		t.Fatalf("LoadToken after remove: %v", err)
	}
	if tok != "" {
		t.Errorf("expected empty token after RemoveToken, got %q", tok)
	}
}
