package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pawtap/server/internal/auth"
	"github.com/pawtap/server/internal/domain"
	"github.com/pawtap/server/internal/guard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const botToken = "42:service-test"

// signInitData produces init data the way the Telegram client does.
func signInitData(values url.Values) string {
	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))

	pairs := make([]string, 0, len(values))
	for k := range values {
		pairs = append(pairs, k+"="+values.Get(k))
	}
	sort.Strings(pairs)
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(pairs, "\n")))

	values.Set("hash", hex.EncodeToString(mac.Sum(nil)))
	return values.Encode()
}

type fakeTelegramUsers struct {
	byTelegram map[int64]domain.User
}

func (f *fakeTelegramUsers) SyncTelegram(_ context.Context, in domain.User) (domain.User, bool, error) {
	if u, ok := f.byTelegram[in.TelegramID]; ok {
		return u, false, nil
	}
	in.ID = uuid.New()
	f.byTelegram[in.TelegramID] = in
	return in, true, nil
}

func newAuthFixture(t *testing.T) (*AuthService, *auth.JWTManager, *fakeAdmins) {
	t.Helper()
	jwtMgr := auth.NewJWTManager("test-secret", time.Hour, time.Hour)
	admins := &fakeAdmins{byEmail: map[string]*domain.AdminUser{}}
	svc := NewAuthService(nil, &fakeTelegramUsers{byTelegram: map[int64]domain.User{}}, admins,
		auth.NewInitDataValidator(botToken, time.Hour), jwtMgr, guard.NewLockout(), discardLogger())
	return svc, jwtMgr, admins
}

func TestAuthService_TelegramLogin(t *testing.T) {
	svc, jwtMgr, _ := newAuthFixture(t)
	ctx := context.Background()

	values := url.Values{}
	values.Set("auth_date", strconv.FormatInt(time.Now().Unix(), 10))
	values.Set("user", `{"id":5150,"first_name":"Kai","username":"kai"}`)
	values.Set("start_param", "CAFE0123")
	raw := signInitData(values)

	res, err := svc.TelegramLogin(ctx, raw)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, "CAFE0123", res.StartParam)
	assert.Equal(t, int64(5150), res.User.TelegramID)

	claims, err := jwtMgr.ValidateTokenForRealm(res.Token, auth.RealmPlayer)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID.String(), claims.Subject)

	again, err := svc.TelegramLogin(ctx, raw)
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, res.User.ID, again.User.ID)
}

func TestAuthService_TelegramLoginRejectsForgery(t *testing.T) {
	svc, _, _ := newAuthFixture(t)

	_, err := svc.TelegramLogin(context.Background(), "auth_date=1&user=%7B%22id%22%3A1%7D&hash=00")
	assert.True(t, domain.HasCode(err, domain.CodeUnauthorized))
}

func TestAuthService_AdminLoginAndLockout(t *testing.T) {
	svc, jwtMgr, admins := newAuthFixture(t)
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse battery"), bcrypt.MinCost)
	require.NoError(t, err)
	admins.byEmail["ops@pawtap.dev"] = &domain.AdminUser{
		ID: uuid.New(), Email: "ops@pawtap.dev", PasswordHash: string(hash), Role: auth.RoleEditor, Active: true,
	}

	res, err := svc.AdminLogin(ctx, AdminLoginInput{Email: "ops@pawtap.dev", Password: "correct horse battery"})
	require.NoError(t, err)
	claims, err := jwtMgr.ValidateTokenForRealm(res.Token, auth.RealmAdmin)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleEditor, claims.Role)

	for i := 0; i < guard.MaxAttempts; i++ {
		_, err = svc.AdminLogin(ctx, AdminLoginInput{Email: "ops@pawtap.dev", Password: "wrong"})
		assert.True(t, domain.HasCode(err, domain.CodeUnauthorized))
	}
	_, err = svc.AdminLogin(ctx, AdminLoginInput{Email: "ops@pawtap.dev", Password: "correct horse battery"})
	assert.True(t, domain.HasCode(err, domain.CodeRateLimited))
}

func TestAuthService_CreateAdmin(t *testing.T) {
	svc, _, admins := newAuthFixture(t)
	ctx := context.Background()

	_, err := svc.CreateAdmin(ctx, "not-an-email", "long enough password", "Ops", auth.RoleOwner)
	assert.True(t, domain.HasCode(err, domain.CodeValidation))
	_, err = svc.CreateAdmin(ctx, "ops@pawtap.dev", "short", "Ops", auth.RoleOwner)
	assert.True(t, domain.HasCode(err, domain.CodeValidation))
	_, err = svc.CreateAdmin(ctx, "ops@pawtap.dev", "long enough password", "Ops", "root")
	assert.True(t, domain.HasCode(err, domain.CodeValidation))

	admin, err := svc.CreateAdmin(ctx, "ops@pawtap.dev", "long enough password", "Ops", auth.RoleOwner)
	require.NoError(t, err)
	assert.NotEqual(t, "long enough password", admin.PasswordHash)
	assert.Contains(t, admins.byEmail, "ops@pawtap.dev")
}
