package cli

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeAuthServer(t *testing.T, token string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		switch r.URL.Path {
		case "/auth/signup":
			if body["role"] != "vendor" || body["name"] == "" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"status":"error","message":"Name is required"}`))
				return
			}
			_, _ = w.Write([]byte(`{"statusCode":200,"message":"OTP generated for signup"}`))
		case "/auth/login":
			_, _ = w.Write([]byte(`{"status":"success","message":"OTP sent"}`))
		case "/auth/verify-otp":
			if body["otp"] != "1234" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"status":"error","message":"Invalid OTP"}`))
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"status": "success",
				"data":   map[string]any{"token": token, "user": map[string]string{"name": "Ravi"}},
			})
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestQuotectl_LoginFlow(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	srv := fakeAuthServer(t, token)
	defer srv.Close()

	store := []string{"--driver", "file", "--dir", t.TempDir(), "--visitor", "vendor"}

	out, err := run(t, append([]string{"whoami"}, store...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Not logged in.")

	out, err = run(t, append([]string{"login", "--auth", srv.URL, "--phone", "9876543210"}, store...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "OTP sent to 9876543210")

	_, err = run(t, append([]string{"login", "--auth", srv.URL, "--phone", "9876543210", "--otp", "0000"}, store...)...)
	assert.EqualError(t, err, "Invalid OTP")

	out, err = run(t, append([]string{"login", "--auth", srv.URL, "--phone", "9876543210", "--otp", "1234"}, store...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as 9876543210")

	out, err = run(t, append([]string{"whoami"}, store...)...)
	require.NoError(t, err)
	assert.Contains(t, out, `"name":"Ravi"`)
	assert.Contains(t, out, "Session valid until")

	out, err = run(t, append([]string{"logout"}, store...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")

	out, err = run(t, append([]string{"whoami"}, store...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Not logged in.")
}

func TestQuotectl_SignupFlow(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{}).SignedString([]byte("secret"))
	require.NoError(t, err)

	srv := fakeAuthServer(t, token)
	defer srv.Close()

	store := []string{"--driver", "file", "--dir", t.TempDir(), "--visitor", "vendor", "--auth", srv.URL}

	_, err = run(t, append([]string{"signup", "--phone", "9876543210"}, store...)...)
	assert.EqualError(t, err, "invalid name")

	out, err := run(t, append([]string{"signup", "--name", "Decor Co", "--phone", "9876543210"}, store...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "OTP sent to 9876543210")

	out, err = run(t, append([]string{"signup", "--phone", "9876543210", "--otp", "1234"}, store...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Registered as 9876543210")

	out, err = run(t, append([]string{"whoami"}, store...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Session does not expire.")
}

func TestQuotectl_LoginRejectsBadPhone(t *testing.T) {
	_, err := run(t, "login", "--auth", "http://127.0.0.1:1", "--phone", "12ab",
		"--driver", "file", "--dir", t.TempDir())
	assert.EqualError(t, err, "invalid phone")
}

func TestQuotectl_LoginServiceUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := run(t, "login", "--auth", url, "--phone", "9876543210",
		"--driver", "file", "--dir", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "external service 'authapi' error")
}
