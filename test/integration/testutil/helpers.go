//go:build integration

package testutil

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pawtap/server/internal/auth"
	"github.com/pawtap/server/internal/domain"
	"github.com/pawtap/server/internal/repository"
)

// Player is a logged-in test player.
type Player struct {
	Token      string
	ID         uuid.UUID
	TelegramID int64
}

// SignInitData builds Mini App init data signed with TestBotToken.
func SignInitData(telegramID int64, username, startParam string) string {
	values := url.Values{}
	values.Set("auth_date", strconv.FormatInt(time.Now().Unix(), 10))
	values.Set("query_id", "AAH-"+strconv.FormatInt(telegramID, 10))
	values.Set("user", fmt.Sprintf(`{"id":%d,"first_name":"%s","username":"%s","language_code":"en"}`,
		telegramID, username, username))
	if startParam != "" {
		values.Set("start_param", startParam)
	}

	pairs := make([]string, 0, len(values))
	for k := range values {
		pairs = append(pairs, k+"="+values.Get(k))
	}
	sort.Strings(pairs)

	key := hmac.New(sha256.New, []byte("WebAppData"))
	key.Write([]byte(TestBotToken))
	mac := hmac.New(sha256.New, key.Sum(nil))
	mac.Write([]byte(strings.Join(pairs, "\n")))
	values.Set("hash", hex.EncodeToString(mac.Sum(nil)))
	return values.Encode()
}

// LoginTelegram logs a player in through /auth/telegram.
func (env *TestEnv) LoginTelegram(telegramID int64, username, startParam string) Player {
	env.t.Helper()
	resp := env.POST("/auth/telegram", map[string]string{
		"init_data": SignInitData(telegramID, username, startParam),
	}, "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		env.t.Fatalf("LoginTelegram: expected 200/201, got %d", resp.StatusCode)
	}

	var result struct {
		Token string      `json:"token"`
		User  domain.User `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		env.t.Fatalf("LoginTelegram: decode: %v", err)
	}
	return Player{Token: result.Token, ID: result.User.ID, TelegramID: telegramID}
}

// AdminToken creates an admin with the given role and logs in as them.
func (env *TestEnv) AdminToken(email, role string) string {
	env.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := env.App.Auth.CreateAdmin(ctx, email, TestAdminPass, "Test Admin", role); err != nil {
		env.t.Fatalf("AdminToken: create admin: %v", err)
	}

	resp := env.POST("/admin/auth/login", map[string]string{
		"email":    email,
		"password": TestAdminPass,
	}, "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		env.t.Fatalf("AdminToken: expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		env.t.Fatalf("AdminToken: decode: %v", err)
	}
	return result.Token
}

// SeedItem inserts a store item directly through the repository.
func (env *TestEnv) SeedItem(item domain.StoreItem) domain.StoreItem {
	env.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := repository.NewItemRepository().Upsert(ctx, env.Pool, &item); err != nil {
		env.t.Fatalf("SeedItem: %v", err)
	}
	return item
}

// PlayerToken issues a token for an arbitrary user id without touching the database.
func PlayerToken(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	mgr := auth.NewJWTManager(TestJWTSecret, time.Hour, time.Hour)
	tok, err := mgr.GeneratePlayerToken(userID, 1, "ghost")
	if err != nil {
		t.Fatalf("PlayerToken: %v", err)
	}
	return tok
}

// GET performs an unauthenticated GET request.
func (env *TestEnv) GET(path string) *http.Response {
	env.t.Helper()
	resp, err := http.Get(env.Server.URL + path)
	if err != nil {
		env.t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

// POST performs a POST request with optional auth token.
func (env *TestEnv) POST(path string, body any, token string) *http.Response {
	env.t.Helper()
	return env.do(http.MethodPost, path, body, token, nil)
}

// POSTWithHeaders performs a POST request with extra headers.
func (env *TestEnv) POSTWithHeaders(path string, body any, token string, headers map[string]string) *http.Response {
	env.t.Helper()
	return env.do(http.MethodPost, path, body, token, headers)
}

// AuthGET performs an authenticated GET request.
func (env *TestEnv) AuthGET(path, token string) *http.Response {
	env.t.Helper()
	return env.do(http.MethodGet, path, nil, token, nil)
}

func (env *TestEnv) do(method, path string, body any, token string, headers map[string]string) *http.Response {
	env.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			env.t.Fatalf("%s %s: encode: %v", method, path, err)
		}
	}
	req, err := http.NewRequest(method, env.Server.URL+path, &buf)
	if err != nil {
		env.t.Fatalf("%s %s: new request: %v", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		env.t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

// DecodeJSON reads and decodes a JSON response body into dst.
func DecodeJSON(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
}

// AssertErrorCode checks that the response body contains the expected error code.
func AssertErrorCode(t *testing.T, resp *http.Response, expectedCode string) {
	t.Helper()
	var errResp struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	DecodeJSON(t, resp, &errResp)
	if errResp.Code != expectedCode {
		t.Errorf("expected error code %q, got %q (message: %s)", expectedCode, errResp.Code, errResp.Message)
	}
}

// CountOutboxEvents returns the number of outbox events of a type for an aggregate.
func CountOutboxEvents(t *testing.T, env *TestEnv, aggregateID, eventType string) int {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var count int
	err := env.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM event_outbox WHERE aggregate_id = $1 AND event_type = $2`,
		aggregateID, eventType).Scan(&count)
	if err != nil {
		t.Fatalf("CountOutboxEvents: %v", err)
	}
	return count
}

// StoredCoins reads the persisted coin balance of a user's character.
func StoredCoins(t *testing.T, env *TestEnv, userID uuid.UUID) int64 {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var coins int64
	if err := env.Pool.QueryRow(ctx, "SELECT coins FROM characters WHERE user_id = $1", userID).Scan(&coins); err != nil {
		t.Fatalf("StoredCoins: %v", err)
	}
	return coins
}
