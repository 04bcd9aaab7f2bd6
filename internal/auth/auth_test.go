package auth

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestUserIDFromToken(t *testing.T) {
	tests := []struct {
		name   string
		claims jwt.MapClaims
		want   string
	}{
		{"sub", jwt.MapClaims{"sub": "u1"}, "u1"},
		{"userId", jwt.MapClaims{"userId": "u2"}, "u2"},
		{"user_id", jwt.MapClaims{"user_id": "u3"}, "u3"},
		{"sub wins", jwt.MapClaims{"sub": "u1", "userId": "u2"}, "u1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UserIDFromToken(signedToken(t, tt.claims))
			if err != nil {
				t.Fatalf("UserIDFromToken() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("UserIDFromToken() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUserIDFromToken_Errors(t *testing.T) {
	if _, err := UserIDFromToken("not-a-jwt"); err == nil {
		t.Error("expected error for malformed token")
	}

	_, err := UserIDFromToken(signedToken(t, jwt.MapClaims{"role": "admin"}))
	if !errors.Is(err, ErrNoSubject) {
		t.Errorf("error = %v, want ErrNoSubject", err)
	}
}

func TestCredentials_Identity(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"sub": "from-token"})

	tests := []struct {
		name  string
		creds Credentials
		want  string
	}{
		{"explicit", Credentials{UserID: "explicit", Token: token}, "explicit"},
		{"from token", Credentials{Token: token}, "from-token"},
		{"bad token", Credentials{Token: "garbage"}, ""},
		{"empty", Credentials{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.creds.Identity(); got != tt.want {
				t.Errorf("Identity() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMutable(t *testing.T) {
	m := NewMutable(Credentials{Token: "a"})
	if got := m.Credentials().Token; got != "a" {
		t.Errorf("Token = %q, want a", got)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			m.Set(Credentials{Token: "b", CSRF: "c"})
		}()
		go func() {
			defer wg.Done()
			_ = m.Credentials()
		}()
	}
	wg.Wait()

	if got := m.Credentials(); got.Token != "b" || got.CSRF != "c" {
		t.Errorf("Credentials() = %+v", got)
	}

	m.Clear()
	if got := m.Credentials(); got != (Credentials{}) {
		t.Errorf("Credentials() after Clear = %+v", got)
	}
}

func TestStatic(t *testing.T) {
	p := Static{Token: "t", CSRF: "c"}
	if got := p.Credentials(); got.Token != "t" || got.CSRF != "c" {
		t.Errorf("Credentials() = %+v", got)
	}
}

func TestFileProvider(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token")
	if err := os.WriteFile(path, []byte("first\n"), 0600); err != nil {
		t.Fatalf("write token: %v", err)
	}

	p, err := NewFileProvider(path, "csrf-1")
	if err != nil {
		t.Fatalf("NewFileProvider() error = %v", err)
	}

	if got := p.Credentials(); got.Token != "first" || got.CSRF != "csrf-1" {
		t.Errorf("Credentials() = %+v", got)
	}

	if err := os.WriteFile(path, []byte("second"), 0600); err != nil {
		t.Fatalf("rewrite token: %v", err)
	}
	// Force a distinct mtime on filesystems with coarse timestamps.
	future := time.Now().Add(time.Minute)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	if got := p.Credentials().Token; got != "second" {
		t.Errorf("Token after rewrite = %q, want second", got)
	}

	// Removing the file keeps the last good token.
	os.Remove(path)
	if got := p.Credentials().Token; got != "second" {
		t.Errorf("Token after remove = %q, want second", got)
	}
}

func TestNewFileProvider_Errors(t *testing.T) {
	if _, err := NewFileProvider("", ""); err == nil {
		t.Error("expected error for empty path")
	}
	if _, err := NewFileProvider(filepath.Join(t.TempDir(), "missing"), ""); err == nil {
		t.Error("expected error for missing file")
	}
}
