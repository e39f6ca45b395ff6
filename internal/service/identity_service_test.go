package service

import (
	"context"
	"testing"

	"parley/internal/models"
	"parley/internal/policy"
	"parley/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIdentityService(t *testing.T, adminEmails string) *IdentityService {
	t.Helper()
	db := setupServiceDB(t)
	return NewIdentityService(repository.NewUserRepository(db), policy.NewChecker(adminEmails))
}

func TestIdentityService_Provision_Idempotent(t *testing.T) {
	svc := newIdentityService(t, "")
	ctx := context.Background()

	in := ProvisionInput{
		ExternalID: "idp|abc",
		Email:      "Alice.Smith@Example.com",
		Name:       "Alice Smith",
	}

	first, err := svc.Provision(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "alicesmith", first.Username)
	assert.Equal(t, "alice.smith@example.com", first.Email)
	assert.True(t, first.ShowSpeedDialog)

	second, err := svc.Provision(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestIdentityService_Provision_UsernameDedupe(t *testing.T) {
	svc := newIdentityService(t, "")
	ctx := context.Background()

	a, err := svc.Provision(ctx, ProvisionInput{ExternalID: "idp|1", Email: "a@example.com", Name: "Sam"})
	require.NoError(t, err)
	b, err := svc.Provision(ctx, ProvisionInput{ExternalID: "idp|2", Email: "b@example.com", Name: "Sam"})
	require.NoError(t, err)
	c, err := svc.Provision(ctx, ProvisionInput{ExternalID: "idp|3", Email: "c@example.com", Name: "Sam"})
	require.NoError(t, err)

	assert.Equal(t, "sam", a.Username)
	assert.Equal(t, "sam-1", b.Username)
	assert.Equal(t, "sam-2", c.Username)
}

func TestIdentityService_Provision_EmailLocalPartFallback(t *testing.T) {
	svc := newIdentityService(t, "")

	user, err := svc.Provision(context.Background(), ProvisionInput{
		ExternalID: "idp|x",
		Email:      "carol.j@example.com",
		Name:       "!!!",
	})
	require.NoError(t, err)
	assert.Equal(t, "carolj", user.Username)
}

func TestIdentityService_Provision_TimestampPlaceholder(t *testing.T) {
	svc := newIdentityService(t, "")

	// Neither the name nor the email local part yields a username.
	user, err := svc.Provision(context.Background(), ProvisionInput{
		ExternalID: "idp|y",
		Email:      "!!!@example.com",
		Name:       "???",
	})
	require.NoError(t, err)
	assert.Regexp(t, `^user-\d+$`, user.Username)
}

func TestIdentityService_Provision_Validation(t *testing.T) {
	svc := newIdentityService(t, "")
	ctx := context.Background()

	_, err := svc.Provision(ctx, ProvisionInput{ExternalID: "", Email: "a@example.com"})
	assert.Error(t, err)

	_, err = svc.Provision(ctx, ProvisionInput{ExternalID: "idp|y", Email: "not-an-email"})
	assert.Error(t, err)
}

func TestIdentityService_SignUpAndAuthenticate(t *testing.T) {
	svc := newIdentityService(t, "")
	ctx := context.Background()

	user, err := svc.SignUp(ctx, "dave@example.com", "hunter22222", "Dave")
	require.NoError(t, err)
	assert.NotEmpty(t, user.ExternalID)
	assert.NotEqual(t, "hunter22222", user.Password)

	_, err = svc.SignUp(ctx, "dave@example.com", "hunter22222", "Dave Again")
	require.Error(t, err)
	assert.Equal(t, models.CodeConflict, err.(*models.AppError).Code)

	got, err := svc.Authenticate(ctx, "dave@example.com", "hunter22222")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = svc.Authenticate(ctx, "dave@example.com", "wrong")
	require.Error(t, err)
	assert.Equal(t, models.CodeUnauthorized, err.(*models.AppError).Code)
}

func TestIdentityService_Authenticate_BannedAccount(t *testing.T) {
	db := setupServiceDB(t)
	userRepo := repository.NewUserRepository(db)
	svc := NewIdentityService(userRepo, policy.NewChecker(""))
	ctx := context.Background()

	user, err := svc.SignUp(ctx, "eve@example.com", "password123", "Eve")
	require.NoError(t, err)

	user.IsBanned = true
	require.NoError(t, userRepo.Update(ctx, user))

	_, err = svc.Authenticate(ctx, "eve@example.com", "password123")
	require.Error(t, err)
	assert.Equal(t, models.CodeBanned, err.(*models.AppError).Code)
}

func TestIdentityService_IsPlatformAdmin(t *testing.T) {
	svc := newIdentityService(t, "root@example.com, ops@example.com")
	ctx := context.Background()

	admin, err := svc.Provision(ctx, ProvisionInput{ExternalID: "idp|root", Email: "Root@Example.com", Name: "Root"})
	require.NoError(t, err)
	regular, err := svc.Provision(ctx, ProvisionInput{ExternalID: "idp|reg", Email: "reg@example.com", Name: "Reg"})
	require.NoError(t, err)

	got, err := svc.IsPlatformAdmin(ctx, admin.ID)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = svc.IsPlatformAdmin(ctx, regular.ID)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestIdentityService_UpdateConnectionSpeed(t *testing.T) {
	svc := newIdentityService(t, "")
	ctx := context.Background()

	user, err := svc.Provision(ctx, ProvisionInput{ExternalID: "idp|spd", Email: "spd@example.com", Name: "Speedy"})
	require.NoError(t, err)

	updated, err := svc.UpdateConnectionSpeed(ctx, user.ID, 12.5, false)
	require.NoError(t, err)
	require.NotNil(t, updated.ConnectionSpeed)
	assert.Equal(t, 12.5, *updated.ConnectionSpeed)
	assert.False(t, updated.ShowSpeedDialog)
}

func TestIdentityService_ExternalIDLookups(t *testing.T) {
	db := setupServiceDB(t)
	userRepo := repository.NewUserRepository(db)
	svc := NewIdentityService(userRepo, policy.NewChecker(""))
	ctx := context.Background()

	user, err := svc.Provision(ctx, ProvisionInput{ExternalID: "idp|ext", Email: "ext@example.com", Name: "Ext"})
	require.NoError(t, err)

	found, err := svc.GetUserByExternalID(ctx, "idp|ext")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, user.ID, found.ID)

	missing, err := svc.GetUserByExternalID(ctx, "idp|nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)

	banned, err := svc.IsBannedByExternalID(ctx, "idp|ext")
	require.NoError(t, err)
	assert.False(t, banned)

	user.IsBanned = true
	require.NoError(t, userRepo.Update(ctx, user))

	banned, err = svc.IsBannedByExternalID(ctx, "idp|ext")
	require.NoError(t, err)
	assert.True(t, banned)

	// Unknown subjects are simply not banned.
	banned, err = svc.IsBannedByExternalID(ctx, "idp|nobody")
	require.NoError(t, err)
	assert.False(t, banned)
}
