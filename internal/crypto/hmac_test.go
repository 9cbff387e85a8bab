package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"testing"
)

func TestHeadersAtSignature(t *testing.T) {
	auth := &HMACAuth{Key: "op-key", Secret: "top-secret"}

	headers := auth.HeadersAt("POST", "/v1/markets/mkt-1/phase", `{"phase":"proposed"}`, 1_735_689_600)

	if headers["X-GATEWAY-API-KEY"] != "op-key" {
		t.Fatalf("api key header %q", headers["X-GATEWAY-API-KEY"])
	}
	if headers["X-GATEWAY-TIMESTAMP"] != "1735689600" {
		t.Fatalf("timestamp header %q", headers["X-GATEWAY-TIMESTAMP"])
	}

	mac := hmac.New(sha256.New, []byte("top-secret"))
	mac.Write([]byte("1735689600POST/v1/markets/mkt-1/phase" + `{"phase":"proposed"}`))
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	if headers["X-GATEWAY-SIGNATURE"] != want {
		t.Fatalf("signature %q, want %q", headers["X-GATEWAY-SIGNATURE"], want)
	}
}

func TestHeadersAtVariesWithInput(t *testing.T) {
	auth := &HMACAuth{Key: "op-key", Secret: "top-secret"}
	base := auth.HeadersAt("GET", "/v1/roster", "", 100)

	if got := auth.HeadersAt("GET", "/v1/roster", "", 101); got["X-GATEWAY-SIGNATURE"] == base["X-GATEWAY-SIGNATURE"] {
		t.Fatal("timestamp not bound into signature")
	}
	if got := auth.HeadersAt("POST", "/v1/roster", "", 100); got["X-GATEWAY-SIGNATURE"] == base["X-GATEWAY-SIGNATURE"] {
		t.Fatal("method not bound into signature")
	}
	other := &HMACAuth{Key: "op-key", Secret: "different"}
	if got := other.HeadersAt("GET", "/v1/roster", "", 100); got["X-GATEWAY-SIGNATURE"] == base["X-GATEWAY-SIGNATURE"] {
		t.Fatal("secret not bound into signature")
	}
}

func TestHMACAuthStringRedactsSecret(t *testing.T) {
	auth := &HMACAuth{Key: "op-key", Secret: "top-secret"}
	s := auth.String()
	if strings.Contains(s, "top-secret") {
		t.Fatalf("secret leaked in %q", s)
	}
	if !strings.Contains(s, "op-key") {
		t.Fatalf("key missing from %q", s)
	}
}
