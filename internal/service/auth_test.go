package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/pageza/foodgram/backend/internal/mocks"
	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/testhelpers"
	"github.com/pageza/foodgram/backend/internal/types"
)

type memoryRevocations struct {
	mu      sync.Mutex
	revoked map[string]time.Duration
	err     error
}

func (m *memoryRevocations) Revoke(_ context.Context, id string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.revoked == nil {
		m.revoked = map[string]time.Duration{}
	}
	m.revoked[id] = ttl
	return nil
}

func (m *memoryRevocations) IsRevoked(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.revoked[id]
	return ok, nil
}

func registerRequest() types.RegisterRequest {
	return types.RegisterRequest{
		Email:     "cook@example.com",
		Username:  "cook",
		FirstName: "Julia",
		LastName:  "Child",
		Password:  "s3cret-pass",
	}
}

func TestAuthRegisterAndLogin(t *testing.T) {
	db := testhelpers.SetupSQLite(t)
	ctx := context.Background()
	svc := service.NewAuthService(db, "test-secret", time.Hour, nil)

	user, err := svc.Register(ctx, registerRequest())
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.NotEqual(t, "s3cret-pass", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("s3cret-pass")))

	token, err := svc.Login(ctx, "cook@example.com", "s3cret-pass")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "cook", claims.Username)
	assert.NotEmpty(t, claims.ID)

	_, err = svc.Login(ctx, "cook@example.com", "wrong")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody@example.com", "s3cret-pass")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)
}

func TestAuthRegisterDuplicates(t *testing.T) {
	db := testhelpers.SetupSQLite(t)
	ctx := context.Background()
	svc := service.NewAuthService(db, "test-secret", time.Hour, nil)

	_, err := svc.Register(ctx, registerRequest())
	require.NoError(t, err)

	req := registerRequest()
	req.Username = "other"
	_, err = svc.Register(ctx, req)
	assertKind(t, err, service.ErrValidation, "email")

	req = registerRequest()
	req.Email = "other@example.com"
	_, err = svc.Register(ctx, req)
	assertKind(t, err, service.ErrValidation, "username")

	var n int64
	require.NoError(t, db.Model(&models.User{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestAuthValidateTokenRejects(t *testing.T) {
	db := testhelpers.SetupSQLite(t)
	ctx := context.Background()
	svc := service.NewAuthService(db, "test-secret", time.Hour, nil)
	user := testhelpers.CreateUser(t, db)

	good, err := svc.GenerateToken(user)
	require.NoError(t, err)

	other := service.NewAuthService(db, "other-secret", time.Hour, nil)
	_, err = other.ValidateToken(ctx, good)
	assert.ErrorIs(t, err, service.ErrInvalidToken)

	expired := service.NewAuthService(db, "test-secret", -time.Minute, nil)
	stale, err := expired.GenerateToken(user)
	require.NoError(t, err)
	_, err = svc.ValidateToken(ctx, stale)
	assert.ErrorIs(t, err, service.ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &types.TokenClaims{UserID: user.ID})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.ValidateToken(ctx, unsigned)
	assert.ErrorIs(t, err, service.ErrInvalidToken)

	_, err = svc.ValidateToken(ctx, "not-a-token")
	assert.ErrorIs(t, err, service.ErrInvalidToken)
}

func TestAuthLogout(t *testing.T) {
	db := testhelpers.SetupSQLite(t)
	ctx := context.Background()
	store := &memoryRevocations{}
	svc := service.NewAuthService(db, "test-secret", time.Hour, store)
	user := testhelpers.CreateUser(t, db)

	token, err := svc.GenerateToken(user)
	require.NoError(t, err)
	claims, err := svc.ValidateToken(ctx, token)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, claims))
	ttl := store.revoked[claims.ID]
	assert.True(t, ttl > 0 && ttl <= time.Hour)

	_, err = svc.ValidateToken(ctx, token)
	assert.ErrorIs(t, err, service.ErrInvalidToken)

	// a failing store does not lock everyone out
	store.err = errors.New("redis down")
	fresh, err := svc.GenerateToken(user)
	require.NoError(t, err)
	_, err = svc.ValidateToken(ctx, fresh)
	assert.NoError(t, err)
}

func TestAuthLogoutStoreFailure(t *testing.T) {
	db := testhelpers.SetupSQLite(t)
	ctx := context.Background()
	store := &mocks.MockRevocationStore{}
	svc := service.NewAuthService(db, "test-secret", time.Hour, store)
	user := testhelpers.CreateUser(t, db)

	store.On("IsRevoked", mock.Anything, mock.AnythingOfType("string")).Return(false, nil)
	store.On("Revoke", mock.Anything, mock.AnythingOfType("string"), mock.AnythingOfType("time.Duration")).
		Return(errors.New("redis down"))

	token, err := svc.GenerateToken(user)
	require.NoError(t, err)
	claims, err := svc.ValidateToken(ctx, token)
	require.NoError(t, err)

	assert.Error(t, svc.Logout(ctx, claims))
	store.AssertCalled(t, "Revoke", mock.Anything, claims.ID, mock.AnythingOfType("time.Duration"))
}

func TestAuthSetPassword(t *testing.T) {
	db := testhelpers.SetupSQLite(t)
	ctx := context.Background()
	svc := service.NewAuthService(db, "test-secret", time.Hour, nil)
	user, err := svc.Register(ctx, registerRequest())
	require.NoError(t, err)

	err = svc.SetPassword(ctx, user.ID, "wrong", "new-password")
	assertKind(t, err, service.ErrValidation, "current_password")

	require.NoError(t, svc.SetPassword(ctx, user.ID, "s3cret-pass", "new-password"))

	_, err = svc.Login(ctx, "cook@example.com", "s3cret-pass")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)
	_, err = svc.Login(ctx, "cook@example.com", "new-password")
	assert.NoError(t, err)
}

func TestRedisRevocationStore(t *testing.T) {
	client := testhelpers.SetupRedis(t)
	ctx := context.Background()
	store := service.NewRedisRevocationStore(client)

	revoked, err := store.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, store.Revoke(ctx, "jti-1", time.Minute))
	revoked, err = store.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	ttl, err := client.TTL(ctx, "auth:revoked:jti-1").Result()
	require.NoError(t, err)
	assert.True(t, ttl > 0 && ttl <= time.Minute)

	require.NoError(t, store.Revoke(ctx, "jti-2", 0))
	revoked, err = store.IsRevoked(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)
}
