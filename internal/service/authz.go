package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Strob0t/mfi-api/internal/domain"
	"github.com/Strob0t/mfi-api/internal/domain/access"
	"github.com/Strob0t/mfi-api/internal/port/cache"
	"github.com/Strob0t/mfi-api/internal/port/database"
)

const authzKeyPrefix = "authz:"

// authzLoadTimeout bounds a shared lookup once it is detached from the
// request that started it.
const authzLoadTimeout = 10 * time.Second

// AuthzService resolves what a principal may do. A principal whose realm or
// role is "super" may do everything; everyone else is bounded by the role of
// their account, and a missing account or role grants nothing.
type AuthzService struct {
	store database.Store
	cache cache.Cache
	ttl   time.Duration
	group singleflight.Group
}

// NewAuthzService creates an AuthzService that consults the store on every
// resolution until SetCache is called.
func NewAuthzService(store database.Store) *AuthzService {
	return &AuthzService{store: store}
}

// SetCache enables caching of resolved authorization contexts for ttl.
// A zero ttl or nil cache disables caching.
func (s *AuthzService) SetCache(c cache.Cache, ttl time.Duration) {
	if c == nil || ttl <= 0 {
		s.cache, s.ttl = nil, 0
		return
	}
	s.cache, s.ttl = c, ttl
}

// Resolve computes the authorization context of p. Store failures other than
// a missing account or role are returned; they never turn into a denial.
func (s *AuthzService) Resolve(ctx context.Context, p *access.Principal) (*access.AuthorizationContext, error) {
	if p == nil {
		return access.NewAuthorizationContext("", nil, nil), nil
	}
	if p.IsSuper() {
		return access.SuperContext(p.UserID), nil
	}

	if ac := s.cached(ctx, p.UserID); ac != nil {
		return ac, nil
	}

	// The lookup is shared by every concurrent caller for the user, so it
	// outlives the request that started it. Each caller still stops waiting
	// when its own context ends.
	ch := s.group.DoChan(p.UserID, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), authzLoadTimeout)
		defer cancel()
		ac, err := s.load(lctx, p.UserID)
		if err != nil {
			return nil, err
		}
		s.remember(lctx, ac)
		return ac, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*access.AuthorizationContext), nil
	}
}

func (s *AuthzService) load(ctx context.Context, userID string) (*access.AuthorizationContext, error) {
	account, err := s.store.GetAccountByUser(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return access.NewAuthorizationContext(userID, nil, nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve account %s: %w", userID, err)
	}
	if account.Role == "" {
		return access.NewAuthorizationContext(userID, account, nil), nil
	}

	role, err := s.store.GetRole(ctx, account.Role)
	if errors.Is(err, domain.ErrNotFound) {
		return access.NewAuthorizationContext(userID, account, nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve role %s: %w", account.Role, err)
	}
	return access.NewAuthorizationContext(userID, account, role), nil
}

func (s *AuthzService) cached(ctx context.Context, userID string) *access.AuthorizationContext {
	if s.cache == nil {
		return nil
	}
	data, ok, err := s.cache.Get(ctx, authzKeyPrefix+userID)
	if err != nil {
		slog.WarnContext(ctx, "authz cache get failed", "user_id", userID, "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	var ac access.AuthorizationContext
	if err := json.Unmarshal(data, &ac); err != nil {
		slog.WarnContext(ctx, "authz cache entry corrupt", "user_id", userID, "error", err)
		return nil
	}
	return &ac
}

func (s *AuthzService) remember(ctx context.Context, ac *access.AuthorizationContext) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(ac)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, authzKeyPrefix+ac.UserID, data, s.ttl); err != nil {
		slog.WarnContext(ctx, "authz cache set failed", "user_id", ac.UserID, "error", err)
	}
}

// IsAllowed reports whether p may perform action on entity.
func (s *AuthzService) IsAllowed(ctx context.Context, p *access.Principal, entity access.Entity, action access.Action) (bool, error) {
	ac, err := s.Resolve(ctx, p)
	if err != nil {
		return false, err
	}
	return ac.Allows(entity, action), nil
}

// HasPermission reports whether p may perform action on any entity.
func (s *AuthzService) HasPermission(ctx context.Context, p *access.Principal, action access.Action) (bool, error) {
	ac, err := s.Resolve(ctx, p)
	if err != nil {
		return false, err
	}
	return ac.AllowsAction(action), nil
}

// Invalidate drops the cached authorization context of userID.
func (s *AuthzService) Invalidate(ctx context.Context, userID string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, authzKeyPrefix+userID)
}
