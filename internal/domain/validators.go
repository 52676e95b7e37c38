package domain

import (
	"fmt"
	"regexp"
)

var (
	emailRegex        = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	referralCodeRegex = regexp.MustCompile(`^[A-Z0-9]{6,12}$`)
	slugRegex         = regexp.MustCompile(`^[a-z0-9][a-z0-9\-]{1,62}$`)
)

// ValidateEmail checks if an email address is valid.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// ValidatePositiveAmount checks that an amount is positive.
func ValidatePositiveAmount(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be positive, got %d", amount)
	}
	return nil
}

// ValidateReferralCode checks the generated code format.
func ValidateReferralCode(code string) error {
	if !referralCodeRegex.MatchString(code) {
		return fmt.Errorf("invalid referral code: %q", code)
	}
	return nil
}

// ValidateStoreItem checks the fields an admin must provide for a new item.
func ValidateStoreItem(item StoreItem) error {
	if !slugRegex.MatchString(item.Slug) {
		return fmt.Errorf("invalid item slug: %q", item.Slug)
	}
	if item.Name == "" {
		return fmt.Errorf("item name is required")
	}
	if item.Price < 0 {
		return fmt.Errorf("item price must not be negative, got %d", item.Price)
	}
	switch item.Category {
	case ItemFood, ItemToy, ItemEnergy, ItemAvatar:
	default:
		return fmt.Errorf("unknown item category: %q", item.Category)
	}
	if item.Category == ItemAvatar && item.AvatarURL == "" {
		return fmt.Errorf("avatar items need an avatar_url")
	}
	return nil
}
