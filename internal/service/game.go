package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/pawtap/server/internal/domain"
	"github.com/pawtap/server/internal/game"
	"github.com/pawtap/server/internal/guard"
)

// ItemCatalog reads the store catalog and records purchases.
type ItemCatalog interface {
	Items(ctx context.Context, force bool) ([]domain.StoreItem, error)
	Item(ctx context.Context, id uuid.UUID) (domain.StoreItem, error)
	RecordPurchase(ctx context.Context, p *domain.Purchase) error
}

// DailyBonusBook reads and claims daily bonuses.
type DailyBonusBook interface {
	Status(ctx context.Context, userID uuid.UUID, force bool) (domain.DailyBonusStatus, error)
	Claim(ctx context.Context, userID uuid.UUID) (domain.DailyBonus, error)
}

// ReferralBook manages referral codes.
type ReferralBook interface {
	Summary(ctx context.Context, user domain.User, force bool) (domain.ReferralSummary, error)
	Generate(ctx context.Context, userID uuid.UUID) (domain.ReferralLink, error)
	Use(ctx context.Context, inviteeID uuid.UUID, code string) (domain.ReferralUse, error)
}

// TournamentBook reads and joins tournaments.
type TournamentBook interface {
	Active(ctx context.Context, force bool) ([]domain.Tournament, error)
	Get(ctx context.Context, id uuid.UUID) (domain.Tournament, error)
	Join(ctx context.Context, tournamentID, userID uuid.UUID) error
	Leaderboard(ctx context.Context, tournamentID uuid.UUID, force bool) ([]domain.TournamentEntry, error)
}

// UserDirectory reads users and rankings.
type UserDirectory interface {
	Get(ctx context.Context, id uuid.UUID, force bool) (domain.User, error)
	Rank(ctx context.Context, id uuid.UUID, force bool) (domain.LeaderboardEntry, error)
	Leaderboard(ctx context.Context, limit int, force bool) ([]domain.LeaderboardEntry, error)
	TrackAction(ctx context.Context, id uuid.UUID, action string, metadata any) error
}

// PhraseBook serves thought-bubble phrases.
type PhraseBook interface {
	List(ctx context.Context, characterType domain.CharacterType, language string, force bool) ([]domain.Phrase, error)
}

// NotificationBook serves a user's inbox.
type NotificationBook interface {
	List(ctx context.Context, userID uuid.UUID, force bool) ([]domain.NotificationItem, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID) error
}

// Care action effects.
const (
	FeedHungerDelta    = 15
	FeedHappinessDelta = 5
	PlayHappinessDelta = 15
	PlayHungerDelta    = -5
	LeaderboardSize    = 100
)

// StateView is the game screen payload.
type StateView struct {
	State    domain.PlayerState `json:"state"`
	Revision int64              `json:"revision"`
	Visual   game.VisualState   `json:"visual"`
}

// PurchaseResult is returned after a successful purchase.
type PurchaseResult struct {
	Purchase domain.Purchase    `json:"purchase"`
	State    domain.PlayerState `json:"state"`
}

// BonusClaim is returned after the daily bonus is claimed.
type BonusClaim struct {
	Bonus domain.DailyBonus  `json:"bonus"`
	State domain.PlayerState `json:"state"`
}

// GameDeps groups the collaborators of GameService.
type GameDeps struct {
	Sessions      *SessionManager
	Items         ItemCatalog
	Bonuses       DailyBonusBook
	Referrals     ReferralBook
	Tournaments   TournamentBook
	Users         UserDirectory
	Phrases       PhraseBook
	Notifications NotificationBook
	TapThrottle   *guard.TapThrottle
	CareLimiter   *guard.RateLimiter
	Idempotency   *guard.IdempotencyGuard
}

// GameService runs player actions against live sessions.
type GameService struct {
	deps   GameDeps
	logger *slog.Logger
	now    func() time.Time
}

// NewGameService creates a GameService.
func NewGameService(deps GameDeps, logger *slog.Logger) *GameService {
	return &GameService{deps: deps, logger: logger, now: time.Now}
}

// State returns the player's current state, starting a session if needed.
func (s *GameService) State(ctx context.Context, userID uuid.UUID) (StateView, error) {
	sess, err := s.deps.Sessions.Open(ctx, userID)
	if err != nil {
		return StateView{}, err
	}
	state, rev := sess.Store.Snapshot()
	return StateView{State: state, Revision: rev, Visual: sess.Taps.Visual()}, nil
}

// Tap handles one tap.
func (s *GameService) Tap(ctx context.Context, userID uuid.UUID) (game.TapResult, error) {
	if res := s.deps.TapThrottle.Check(ctx, userID.String()); !res.Allowed {
		return game.TapResult{}, domain.ErrRateLimited(res.Reason)
	}
	sess, err := s.deps.Sessions.Open(ctx, userID)
	if err != nil {
		return game.TapResult{}, err
	}
	return sess.Taps.Tap()
}

// Feed raises hunger and a little happiness.
func (s *GameService) Feed(ctx context.Context, userID uuid.UUID) (domain.PlayerState, error) {
	return s.care(ctx, userID, "feed", game.UpdateCharacter{HungerDelta: FeedHungerDelta, HappinessDelta: FeedHappinessDelta})
}

// Play raises happiness at a small hunger cost.
func (s *GameService) Play(ctx context.Context, userID uuid.UUID) (domain.PlayerState, error) {
	return s.care(ctx, userID, "play", game.UpdateCharacter{HungerDelta: PlayHungerDelta, HappinessDelta: PlayHappinessDelta})
}

func (s *GameService) care(ctx context.Context, userID uuid.UUID, kind string, a game.UpdateCharacter) (domain.PlayerState, error) {
	if res := s.deps.CareLimiter.Check(ctx, kind+":"+userID.String()); !res.Allowed {
		return domain.PlayerState{}, domain.ErrRateLimited(fmt.Sprintf("%s is on cooldown for %s", kind, res.RetryAfter.Round(time.Second)))
	}
	return s.dispatch(ctx, userID, a)
}

// SetAvatar replaces the avatar with an http(s) URL.
func (s *GameService) SetAvatar(ctx context.Context, userID uuid.UUID, avatarURL string) (domain.PlayerState, error) {
	u, err := url.Parse(avatarURL)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return domain.PlayerState{}, domain.ErrValidation("avatar must be an http(s) URL")
	}
	return s.dispatch(ctx, userID, game.SetAvatar{URL: avatarURL})
}

// SetThought replaces the thought bubble text.
func (s *GameService) SetThought(ctx context.Context, userID uuid.UUID, text string) (domain.PlayerState, error) {
	return s.dispatch(ctx, userID, game.SetThoughtStatus{Text: text})
}

func (s *GameService) dispatch(ctx context.Context, userID uuid.UUID, a game.Action) (domain.PlayerState, error) {
	sess, err := s.deps.Sessions.Open(ctx, userID)
	if err != nil {
		return domain.PlayerState{}, err
	}
	return sess.Store.Dispatch(a)
}

// StoreItems returns the active catalog.
func (s *GameService) StoreItems(ctx context.Context) ([]domain.StoreItem, error) {
	return s.deps.Items.Items(ctx, false)
}

// Purchase buys an item. Coins are taken through the reducer first, so an unaffordable
// item never reaches the database. A failed remote write refunds the coins.
func (s *GameService) Purchase(ctx context.Context, userID, itemID uuid.UUID, idempotencyKey string) (PurchaseResult, error) {
	idemKey := ""
	if idempotencyKey != "" {
		idemKey = "purchase:" + userID.String() + ":" + idempotencyKey
		if res := s.deps.Idempotency.Check(ctx, idemKey); !res.Allowed {
			return PurchaseResult{}, domain.ErrConflict(res.Reason)
		}
	}
	release := func() {
		if idemKey != "" {
			s.deps.Idempotency.Remove(idemKey)
		}
	}

	item, err := s.deps.Items.Item(ctx, itemID)
	if err != nil {
		release()
		return PurchaseResult{}, err
	}
	sess, err := s.deps.Sessions.Open(ctx, userID)
	if err != nil {
		release()
		return PurchaseResult{}, err
	}

	if _, err := sess.Store.Dispatch(game.BuyItem{ItemID: item.ID.String(), Price: item.Price}); err != nil {
		release()
		return PurchaseResult{}, err
	}

	p := domain.Purchase{UserID: userID, ItemID: item.ID, Price: item.Price, PurchasedAt: s.now()}
	if err := s.deps.Items.RecordPurchase(ctx, &p); err != nil {
		release()
		s.refund(sess, item.Price, "purchase")
		return PurchaseResult{}, err
	}

	state := s.applyItem(sess, item)
	if err := s.deps.Users.TrackAction(ctx, userID, "purchase", map[string]any{"item": item.Slug, "price": item.Price}); err != nil {
		s.logger.Warn("track purchase", "user_id", userID, "error", err)
	}
	s.logger.Info("item purchased", "user_id", userID, "item", item.Slug, "price", item.Price)
	return PurchaseResult{Purchase: p, State: state}, nil
}

func (s *GameService) refund(sess *Session, amount int64, reason string) {
	if amount <= 0 {
		return
	}
	if _, err := sess.Store.Dispatch(game.ClaimReward{Type: domain.RewardCoins, Amount: amount}); err != nil {
		s.logger.Error("refund rejected", "user_id", sess.UserID, "reason", reason, "amount", amount, "error", err)
	}
}

// applyItem dispatches the item's effect and returns the resulting state.
func (s *GameService) applyItem(sess *Session, item domain.StoreItem) domain.PlayerState {
	var a game.Action
	switch item.Category {
	case domain.ItemFood, domain.ItemToy:
		if item.HungerDelta != 0 || item.HappinessDelta != 0 {
			a = game.UpdateCharacter{HungerDelta: item.HungerDelta, HappinessDelta: item.HappinessDelta}
		}
	case domain.ItemEnergy:
		if item.EnergyMaxBonus > 0 {
			a = game.UpdateEnergyMax{Max: sess.Store.State().Energy.Max + item.EnergyMaxBonus}
		}
	case domain.ItemAvatar:
		if item.AvatarURL != "" {
			a = game.SetAvatar{URL: item.AvatarURL}
		}
	}
	if a == nil {
		return sess.Store.State()
	}
	state, err := sess.Store.Dispatch(a)
	if err != nil {
		s.logger.Error("item effect rejected", "user_id", sess.UserID, "item", item.Slug, "error", err)
	}
	return state
}

// DailyBonus reports whether today's bonus is available.
func (s *GameService) DailyBonus(ctx context.Context, userID uuid.UUID) (domain.DailyBonusStatus, error) {
	return s.deps.Bonuses.Status(ctx, userID, false)
}

// ClaimDailyBonus records today's claim and credits the coins to the live state.
func (s *GameService) ClaimDailyBonus(ctx context.Context, userID uuid.UUID) (BonusClaim, error) {
	sess, err := s.deps.Sessions.Open(ctx, userID)
	if err != nil {
		return BonusClaim{}, err
	}
	bonus, err := s.deps.Bonuses.Claim(ctx, userID)
	if err != nil {
		return BonusClaim{}, err
	}

	state, err := sess.Store.Dispatch(game.ClaimReward{Type: domain.RewardCoins, Amount: bonus.LastAmount})
	if err != nil {
		s.logger.Error("daily bonus credit rejected", "user_id", userID, "amount", bonus.LastAmount, "error", err)
		return BonusClaim{}, err
	}
	state, _ = sess.Store.Dispatch(game.CompleteDailyTasks{Completed: true})
	return BonusClaim{Bonus: bonus, State: state}, nil
}

// Referrals returns the user's referral summary.
func (s *GameService) Referrals(ctx context.Context, userID uuid.UUID) (domain.ReferralSummary, error) {
	user, err := s.deps.Users.Get(ctx, userID, false)
	if err != nil {
		return domain.ReferralSummary{}, err
	}
	return s.deps.Referrals.Summary(ctx, user, false)
}

// GenerateReferralCode returns the user's referral code, creating it on first use.
func (s *GameService) GenerateReferralCode(ctx context.Context, userID uuid.UUID) (domain.ReferralLink, error) {
	return s.deps.Referrals.Generate(ctx, userID)
}

// UseReferral redeems code for userID. The invitee is credited through their session and
// the referrer through theirs when one is live.
func (s *GameService) UseReferral(ctx context.Context, userID uuid.UUID, code string) (domain.ReferralUse, error) {
	sess, err := s.deps.Sessions.Open(ctx, userID)
	if err != nil {
		return domain.ReferralUse{}, err
	}
	use, err := s.deps.Referrals.Use(ctx, userID, code)
	if err != nil {
		return domain.ReferralUse{}, err
	}

	if _, err := sess.Store.Dispatch(game.ClaimReward{Type: domain.RewardCoins, Amount: use.InviteeReward}); err != nil {
		s.logger.Error("invitee reward rejected", "user_id", userID, "error", err)
	}
	if err := s.deps.Sessions.Credit(ctx, use.ReferrerID, use.ReferrerReward); err != nil {
		s.logger.Error("referrer reward failed", "referrer_id", use.ReferrerID, "amount", use.ReferrerReward, "error", err)
	}
	s.logger.Info("referral used", "user_id", userID, "referrer_id", use.ReferrerID)
	return use, nil
}

// Tournaments lists open tournaments.
func (s *GameService) Tournaments(ctx context.Context) ([]domain.Tournament, error) {
	return s.deps.Tournaments.Active(ctx, false)
}

// JoinTournament pays the entry fee and enters the user. The fee is refunded if the
// entry cannot be recorded.
func (s *GameService) JoinTournament(ctx context.Context, userID, tournamentID uuid.UUID) (domain.PlayerState, error) {
	t, err := s.deps.Tournaments.Get(ctx, tournamentID)
	if err != nil {
		return domain.PlayerState{}, err
	}
	if !t.IsOpen(s.now()) {
		return domain.PlayerState{}, domain.ErrValidation("tournament is not open")
	}
	sess, err := s.deps.Sessions.Open(ctx, userID)
	if err != nil {
		return domain.PlayerState{}, err
	}

	if t.EntryFee > 0 {
		if _, err := sess.Store.Dispatch(game.BuyItem{ItemID: "tournament:" + t.ID.String(), Price: t.EntryFee}); err != nil {
			return domain.PlayerState{}, err
		}
	}
	if err := s.deps.Tournaments.Join(ctx, tournamentID, userID); err != nil {
		s.refund(sess, t.EntryFee, "tournament")
		return domain.PlayerState{}, err
	}
	return sess.Store.State(), nil
}

// TournamentLeaderboard returns the standings of one tournament.
func (s *GameService) TournamentLeaderboard(ctx context.Context, tournamentID uuid.UUID) ([]domain.TournamentEntry, error) {
	return s.deps.Tournaments.Leaderboard(ctx, tournamentID, false)
}

// Leaderboard returns the global top players.
func (s *GameService) Leaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	return s.deps.Users.Leaderboard(ctx, LeaderboardSize, false)
}

// Rank returns the user's global position.
func (s *GameService) Rank(ctx context.Context, userID uuid.UUID) (domain.LeaderboardEntry, error) {
	return s.deps.Users.Rank(ctx, userID, false)
}

// Phrases returns thought-bubble lines for the user's character.
func (s *GameService) Phrases(ctx context.Context, userID uuid.UUID, language string) ([]domain.Phrase, error) {
	ct := domain.CharacterCat
	if sess, ok := s.deps.Sessions.Get(userID); ok {
		ct = sess.Store.State().CharacterType
	}
	return s.deps.Phrases.List(ctx, ct, language, false)
}

// Notifications returns the user's inbox.
func (s *GameService) Notifications(ctx context.Context, userID uuid.UUID) ([]domain.NotificationItem, error) {
	return s.deps.Notifications.List(ctx, userID, false)
}

// MarkNotificationRead flags one notification as read.
func (s *GameService) MarkNotificationRead(ctx context.Context, userID, id uuid.UUID) error {
	return s.deps.Notifications.MarkRead(ctx, userID, id)
}
