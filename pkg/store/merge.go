package store

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Timi0217/mixtape-sub001/pkg/domain"
)

// MergeUsers folds the secondary user into the primary user in one
// transaction. A failure at any step rolls the whole merge back, leaving both
// identities unchanged. Post-conditions: the secondary User row is gone, its
// former email is an alias of the primary, and membership / submission
// uniqueness invariants hold (duplicate rows are dropped, not reassigned).
func (s *GormStore) MergeUsers(primaryID, secondaryID string, p domain.Platform, fresh domain.MusicAccount) error {
	if primaryID == "" || secondaryID == "" || primaryID == secondaryID {
		return ErrInvalidMergeTarget
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		var primary, secondary UserModel
		if err := tx.First(&primary, "id = ?", primaryID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: primary %s", ErrInvalidMergeTarget, primaryID)
			}
			return err
		}
		if err := tx.First(&secondary, "id = ?", secondaryID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: secondary %s", ErrInvalidMergeTarget, secondaryID)
			}
			return err
		}

		// 1. Move the secondary's platform credentials across. Where the
		// primary already holds an account for a platform, the secondary's
		// duplicate row is dropped so (user, platform) uniqueness holds.
		if err := tx.Exec(`
			DELETE FROM music_account_models sec
			WHERE sec.user_id = ?
			  AND EXISTS (
				SELECT 1 FROM music_account_models pri
				WHERE pri.user_id = ? AND pri.platform = sec.platform
			  )
		`, secondaryID, primaryID).Error; err != nil {
			return fmt.Errorf("merge accounts (dedupe): %w", err)
		}
		if err := tx.Model(&MusicAccountModel{}).
			Where("user_id = ?", secondaryID).
			Update("user_id", primaryID).Error; err != nil {
			return fmt.Errorf("merge accounts (reassign): %w", err)
		}

		// 2. Overwrite the just-linked platform's credential with the fresh
		// token data from the OAuth exchange.
		fresh.UserID = primaryID
		fresh.Platform = p
		model := accountToModel(fresh)
		if err := tx.Exec(`
			INSERT INTO music_account_models (id, user_id, platform, access_token, refresh_token, expires_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (user_id, platform) DO UPDATE
			SET access_token = EXCLUDED.access_token,
			    refresh_token = EXCLUDED.refresh_token,
			    expires_at = EXCLUDED.expires_at,
			    updated_at = EXCLUDED.updated_at
		`, model.ID, model.UserID, model.Platform, model.AccessToken, model.RefreshToken,
			model.ExpiresAt, model.CreatedAt, model.UpdatedAt).Error; err != nil {
			return fmt.Errorf("merge linked account: %w", err)
		}

		// 3. Memberships: drop the secondary's rows for groups the primary
		// already belongs to, reassign the rest.
		if err := tx.Exec(`
			DELETE FROM group_member_models sec
			WHERE sec.user_id = ?
			  AND EXISTS (
				SELECT 1 FROM group_member_models pri
				WHERE pri.group_id = sec.group_id AND pri.user_id = ?
			  )
		`, secondaryID, primaryID).Error; err != nil {
			return fmt.Errorf("merge memberships (dedupe): %w", err)
		}
		if err := tx.Model(&GroupMemberModel{}).
			Where("user_id = ?", secondaryID).
			Update("user_id", primaryID).Error; err != nil {
			return fmt.Errorf("merge memberships (reassign): %w", err)
		}

		// 4. Admin ownership.
		if err := tx.Model(&GroupModel{}).
			Where("admin_user_id = ?", secondaryID).
			Update("admin_user_id", primaryID).Error; err != nil {
			return fmt.Errorf("merge group ownership: %w", err)
		}

		// 5. Submissions, with the same dedupe rule on (round, user).
		if err := tx.Exec(`
			DELETE FROM submission_models sec
			WHERE sec.user_id = ?
			  AND EXISTS (
				SELECT 1 FROM submission_models pri
				WHERE pri.round_id = sec.round_id AND pri.user_id = ?
			  )
		`, secondaryID, primaryID).Error; err != nil {
			return fmt.Errorf("merge submissions (dedupe): %w", err)
		}
		if err := tx.Model(&SubmissionModel{}).
			Where("user_id = ?", secondaryID).
			Update("user_id", primaryID).Error; err != nil {
			return fmt.Errorf("merge submissions (reassign): %w", err)
		}

		// 6. Preferences move only when the primary has none.
		var prefCount int64
		if err := tx.Model(&MusicPreferencesModel{}).
			Where("user_id = ?", primaryID).Count(&prefCount).Error; err != nil {
			return fmt.Errorf("merge preferences (probe): %w", err)
		}
		if prefCount == 0 {
			if err := tx.Model(&MusicPreferencesModel{}).
				Where("user_id = ?", secondaryID).
				Update("user_id", primaryID).Error; err != nil {
				return fmt.Errorf("merge preferences (reassign): %w", err)
			}
		} else {
			if err := tx.Delete(&MusicPreferencesModel{}, "user_id = ?", secondaryID).Error; err != nil {
				return fmt.Errorf("merge preferences (discard): %w", err)
			}
		}

		// 7. Keep the secondary identity findable: record its email as an
		// alias of the primary and carry over any aliases it already owned.
		alias := EmailAliasModel{
			AliasEmail: secondary.Email,
			UserID:     primaryID,
			Platform:   string(p),
			CreatedAt:  time.Now().UTC(),
		}
		if err := tx.Create(&alias).Error; err != nil {
			return fmt.Errorf("merge alias: %w", err)
		}
		if err := tx.Model(&EmailAliasModel{}).
			Where("user_id = ?", secondaryID).
			Update("user_id", primaryID).Error; err != nil {
			return fmt.Errorf("merge aliases (reassign): %w", err)
		}

		if err := tx.Delete(&UserModel{}, "id = ?", secondaryID).Error; err != nil {
			return fmt.Errorf("delete secondary user: %w", err)
		}
		return nil
	})
}
