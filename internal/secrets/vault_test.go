package secrets_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/Strob0t/mfi-api/internal/secrets"
)

func TestNewVault_InitialLoad(t *testing.T) {
	v, err := secrets.NewVault(func() (map[string]string, error) {
		return map[string]string{"MFI_JWT_SECRET": "s3cret"}, nil
	})
	if err != nil {
		t.Fatalf("NewVault failed: %v", err)
	}
	if got := v.Get("MFI_JWT_SECRET"); got != "s3cret" {
		t.Fatalf("expected 's3cret', got %q", got)
	}
	if got := string(v.Bytes("MFI_JWT_SECRET")); got != "s3cret" {
		t.Fatalf("Bytes = %q", got)
	}
	if v.Bytes("MISSING") != nil {
		t.Fatal("expected nil bytes for missing key")
	}
}

func TestNewVault_LoaderError(t *testing.T) {
	_, err := secrets.NewVault(func() (map[string]string, error) {
		return nil, errors.New("permission denied")
	})
	if err == nil {
		t.Fatal("expected error from failing loader")
	}
}

func TestVault_Reload(t *testing.T) {
	calls := 0
	v, _ := secrets.NewVault(func() (map[string]string, error) {
		calls++
		switch calls {
		case 1:
			return map[string]string{"KEY": "old"}, nil
		case 2:
			return map[string]string{"KEY": "new"}, nil
		default:
			return nil, errors.New("unavailable")
		}
	})

	if err := v.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if got := v.Get("KEY"); got != "new" {
		t.Fatalf("expected 'new' after reload, got %q", got)
	}
	if err := v.Reload(); err == nil {
		t.Fatal("expected reload error")
	}
	if got := v.Get("KEY"); got != "new" {
		t.Fatalf("failed reload must keep values, got %q", got)
	}
}

func TestVault_ConcurrentAccess(t *testing.T) {
	v, _ := secrets.NewVault(func() (map[string]string, error) {
		return map[string]string{"KEY": "value"}, nil
	})

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = v.Get("KEY")
		}()
		go func() {
			defer wg.Done()
			_ = v.Reload()
		}()
	}
	wg.Wait()
}

func TestVault_ReloadOnSignal(t *testing.T) {
	var mu sync.Mutex
	val := "first"
	v, _ := secrets.NewVault(func() (map[string]string, error) {
		mu.Lock()
		defer mu.Unlock()
		return map[string]string{"KEY": val}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	v.ReloadOn(ctx, syscall.SIGUSR1)

	mu.Lock()
	val = "second"
	mu.Unlock()
	if err := syscall.Kill(os.Getpid(), syscall.SIGUSR1); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for v.Get("KEY") != "second" {
		if time.Now().After(deadline) {
			t.Fatal("vault not reloaded after signal")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestEnvLoader(t *testing.T) {
	t.Setenv("MFI_TEST_SECRET", "mysecret")
	vals, err := secrets.EnvLoader("MFI_TEST_SECRET", "MFI_MISSING_SECRET")()
	if err != nil {
		t.Fatalf("EnvLoader failed: %v", err)
	}
	if vals["MFI_TEST_SECRET"] != "mysecret" {
		t.Errorf("expected 'mysecret', got %q", vals["MFI_TEST_SECRET"])
	}
	if _, ok := vals["MFI_MISSING_SECRET"]; ok {
		t.Error("missing variable must be omitted")
	}
}

func TestEnvLoader_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jwt")
	if err := os.WriteFile(path, []byte("from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MFI_FILE_SECRET_FILE", path)

	vals, err := secrets.EnvLoader("MFI_FILE_SECRET")()
	if err != nil {
		t.Fatal(err)
	}
	if vals["MFI_FILE_SECRET"] != "from-file" {
		t.Errorf("got %q", vals["MFI_FILE_SECRET"])
	}

	t.Setenv("MFI_FILE_SECRET_FILE", filepath.Join(t.TempDir(), "absent"))
	if _, err := secrets.EnvLoader("MFI_FILE_SECRET")(); err == nil {
		t.Error("expected error for unreadable file")
	}
}
