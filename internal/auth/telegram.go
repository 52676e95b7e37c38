package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInitDataMissing   = errors.New("init data is empty")
	ErrInitDataSignature = errors.New("init data signature mismatch")
	ErrInitDataExpired   = errors.New("init data expired")
)

// TelegramUser is the user object the Mini App host signs into init data.
type TelegramUser struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	PhotoURL     string `json:"photo_url,omitempty"`
}

// InitData is a verified Mini App launch payload.
type InitData struct {
	User       TelegramUser
	AuthDate   time.Time
	StartParam string // deep-link payload, carries referral codes
	QueryID    string
}

// InitDataValidator checks init data signed with the bot token.
type InitDataValidator struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

// NewInitDataValidator creates a validator. maxAge <= 0 disables the freshness check.
func NewInitDataValidator(botToken string, maxAge time.Duration) *InitDataValidator {
	mac := hmac.New(sha256.New, []byte("WebAppData"))
	mac.Write([]byte(botToken))
	return &InitDataValidator{secret: mac.Sum(nil), maxAge: maxAge, now: time.Now}
}

// Validate verifies the hash of raw init data and decodes it.
func (v *InitDataValidator) Validate(raw string) (*InitData, error) {
	if raw == "" {
		return nil, ErrInitDataMissing
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, fmt.Errorf("parse init data: %w", err)
	}

	hash := values.Get("hash")
	if hash == "" {
		return nil, ErrInitDataSignature
	}
	got, err := hex.DecodeString(hash)
	if err != nil || !hmac.Equal(got, v.sign(values)) {
		return nil, ErrInitDataSignature
	}

	authUnix, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse auth_date: %w", err)
	}
	authDate := time.Unix(authUnix, 0)
	if v.maxAge > 0 && v.now().Sub(authDate) > v.maxAge {
		return nil, ErrInitDataExpired
	}

	data := &InitData{AuthDate: authDate, StartParam: values.Get("start_param"), QueryID: values.Get("query_id")}
	if err := json.Unmarshal([]byte(values.Get("user")), &data.User); err != nil {
		return nil, fmt.Errorf("parse user: %w", err)
	}
	if data.User.ID == 0 {
		return nil, errors.New("init data has no user id")
	}
	return data, nil
}

// sign computes the expected hash over every field except hash, as sorted key=value lines.
func (v *InitDataValidator) sign(values url.Values) []byte {
	pairs := make([]string, 0, len(values))
	for k := range values {
		if k == "hash" {
			continue
		}
		pairs = append(pairs, k+"="+values.Get(k))
	}
	sort.Strings(pairs)

	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(strings.Join(pairs, "\n")))
	return mac.Sum(nil)
}
