// Package merge detects identity collisions when a platform account is
// linked and coordinates folding two user records into one.
package merge

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/Timi0217/mixtape-sub001/internal/util"
	"github.com/Timi0217/mixtape-sub001/pkg/domain"
	"github.com/Timi0217/mixtape-sub001/pkg/store"
)

// RequiredError is returned when linking an account would attach an identity
// that already belongs to a different user. The caller shows both users and
// asks which one survives.
type RequiredError struct {
	// RequestingUser is the user performing the link.
	RequestingUser domain.User
	// ExistingUser already owns the colliding identity email.
	ExistingUser domain.User
	// Platform of the account being linked.
	Platform domain.Platform
	// CollidingEmail is the identity that matched.
	CollidingEmail string
}

func (e *RequiredError) Error() string {
	return fmt.Sprintf("merge required: %s on %s already belongs to user %s",
		e.CollidingEmail, e.Platform, e.ExistingUser.ID)
}

// Coordinator runs collision checks and merges.
type Coordinator struct {
	store store.Store
	now   func() time.Time
}

// NewCoordinator builds a Coordinator.
func NewCoordinator(s store.Store) *Coordinator {
	return &Coordinator{store: s, now: time.Now}
}

// FindByIdentity resolves an identity email to its owning user, checking
// primary emails first and merge aliases second.
func (c *Coordinator) FindByIdentity(email string) (domain.User, bool, error) {
	if user, found, err := c.store.GetUserByEmail(email); err != nil || found {
		return user, found, err
	}
	return c.store.GetUserByAlias(email)
}

// CheckCollision reports whether linking identityEmail for userID would
// collide with another user. A nil return means the link is safe.
func (c *Coordinator) CheckCollision(userID, identityEmail string, p domain.Platform) error {
	owner, found, err := c.FindByIdentity(identityEmail)
	if err != nil {
		return err
	}
	if !found || owner.ID == userID {
		return nil
	}
	requester, found, err := c.store.GetUser(userID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("merge: user %s not found", userID)
	}
	return &RequiredError{
		RequestingUser: requester,
		ExistingUser:   owner,
		Platform:       p,
		CollidingEmail: identityEmail,
	}
}

// LinkMusicAccount attaches a platform credential to the user, first checking
// that the platform identity email does not already belong to someone else.
// identityEmail may be empty for platforms that expose no email.
func (c *Coordinator) LinkMusicAccount(userID, identityEmail string, account domain.MusicAccount) error {
	if identityEmail != "" {
		if err := c.CheckCollision(userID, identityEmail, account.Platform); err != nil {
			return err
		}
	}
	if account.ID == "" {
		account.ID = util.NewID()
	}
	account.UserID = userID
	account.UpdatedAt = c.now().UTC()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = account.UpdatedAt
	}
	return c.store.SaveMusicAccount(account)
}

// PerformChosenMerge folds absorbedID into survivorID after the user chose
// which identity survives. fresh is the just-authorized credential and ends
// up linked to the survivor. The whole merge is one transaction; a failure
// leaves both users untouched.
func (c *Coordinator) PerformChosenMerge(survivorID, absorbedID string, p domain.Platform, fresh domain.MusicAccount) error {
	if survivorID == "" || absorbedID == "" || survivorID == absorbedID {
		return store.ErrInvalidMergeTarget
	}
	if _, found, err := c.store.GetUser(survivorID); err != nil {
		return err
	} else if !found {
		return fmt.Errorf("%w: survivor %s", store.ErrInvalidMergeTarget, survivorID)
	}
	absorbed, found, err := c.store.GetUser(absorbedID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: absorbed %s", store.ErrInvalidMergeTarget, absorbedID)
	}

	if fresh.ID == "" {
		fresh.ID = util.NewID()
	}
	fresh.UserID = survivorID
	fresh.Platform = p
	if err := c.store.MergeUsers(survivorID, absorbedID, p, fresh); err != nil {
		return fmt.Errorf("merge: fold %s into %s: %w", absorbedID, survivorID, err)
	}
	slog.Info("users merged",
		"survivor_id", survivorID, "absorbed_id", absorbedID,
		"absorbed_email", absorbed.Email, "platform", p)
	return nil
}
