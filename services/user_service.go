package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"speech-practice/models"

	"gorm.io/gorm"
)

const maxAvatarURLLength = 1024

type UserService struct {
	DB *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{DB: db}
}

type UserStats struct {
	CompletedSessions int64 `json:"completed_sessions"`
	SpeechesPracticed int64 `json:"speeches_practiced"`
}

type Profile struct {
	*models.User
	Stats *UserStats `json:"stats,omitempty"`
}

func (s *UserService) GetProfile(ctx context.Context, userID string, includeStats bool) (*Profile, error) {
	db := s.DB.WithContext(ctx)
	var user models.User
	if err := db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("user %s not found", userID)
		}
		return nil, Infrastructure("failed to load user", err)
	}

	profile := &Profile{User: &user}
	if !includeStats {
		return profile, nil
	}

	var stats UserStats
	err := db.Model(&models.GameSession{}).
		Select("COUNT(*) AS completed_sessions, COALESCE(SUM(total_speeches), 0) AS speeches_practiced").
		Where("user_id = ? AND completed_at IS NOT NULL", userID).
		Scan(&stats).Error
	if err != nil {
		return nil, Infrastructure("failed to compute user stats", err)
	}
	profile.Stats = &stats
	return profile, nil
}

// UpdateProfile changes the display name and/or avatar. An empty avatar
// string clears it.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, name, avatarURL *string) (*models.User, error) {
	updates := map[string]any{}
	var issues []string
	if name != nil {
		n := strings.TrimSpace(*name)
		if msg := validateName(n); msg != "" {
			issues = append(issues, msg)
		}
		updates["name"] = n
	}
	if avatarURL != nil {
		a := strings.TrimSpace(*avatarURL)
		if len(a) > maxAvatarURLLength {
			issues = append(issues, "avatar_url must be at most 1024 characters")
		}
		if a == "" {
			updates["avatar_url"] = nil
		} else {
			updates["avatar_url"] = a
		}
	}
	if len(issues) > 0 {
		return nil, Validation("invalid profile", issues...)
	}

	var user models.User
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, "id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFound("user %s not found", userID)
			}
			return err
		}
		if len(updates) == 0 {
			return nil
		}
		// Map updates skip the model hooks; the credential invariant is
		// untouched by these columns.
		if err := tx.Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&user, "id = ?", userID).Error
	})
	if err != nil {
		return nil, wrapDBError("failed to update profile", err)
	}
	return &user, nil
}

// DeleteAccount removes the user together with every session and result
// they own. The cascade is explicit so it does not depend on the database
// enforcing foreign keys.
func (s *UserService) DeleteAccount(ctx context.Context, userID string) (time.Time, error) {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, "id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFound("user %s not found", userID)
			}
			return err
		}

		sessions := tx.Model(&models.GameSession{}).Select("id").Where("user_id = ?", userID)
		if err := tx.Where("session_id IN (?)", sessions).Delete(&models.GameResult{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.GameSession{}).Error; err != nil {
			return err
		}
		return tx.Delete(&user).Error
	})
	if err != nil {
		return time.Time{}, wrapDBError("failed to delete account", err)
	}
	log.Printf("🗑️ [Users] Deleted account %s", userID)
	return time.Now().UTC(), nil
}
