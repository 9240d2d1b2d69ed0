package service

import (
	"context"
	"testing"
	"time"

	"charityfeed/internal/cache"
	"charityfeed/internal/featureflags"
	"charityfeed/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuth_SignupLoginAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s, err := f.auth.Signup(ctx, AccountInput{Email: "Sam@Example.org", Password: "hunter22", FullName: " Sam "})
	require.NoError(t, err)
	assert.Equal(t, "sam@example.org", s.User.Email)
	assert.Equal(t, "Sam", s.User.FullName)
	assert.Equal(t, models.RoleUser, s.User.Role)
	assert.NotEmpty(t, s.Token)

	login, err := f.auth.Login(ctx, "sam@example.org", "hunter22")
	require.NoError(t, err)

	got, err := f.auth.Authenticate(ctx, login.Token)
	require.NoError(t, err)
	assert.Equal(t, s.User.ID, got.User.ID)

	_, err = f.auth.Login(ctx, "sam@example.org", "wrong-password")
	assertCode(t, err, models.CodeUnauthorized)
	_, err = f.auth.Login(ctx, "nobody@example.org", "hunter22")
	assertCode(t, err, models.CodeUnauthorized)

	_, err = f.auth.Signup(ctx, AccountInput{Email: "sam@example.org", Password: "hunter22"})
	assertCode(t, err, models.CodeConflict)
	_, err = f.auth.Signup(ctx, AccountInput{Email: "short@example.org", Password: "12345"})
	assertCode(t, err, models.CodeValidation)
	_, err = f.auth.Signup(ctx, AccountInput{Email: "not-an-email", Password: "123456"})
	assertCode(t, err, models.CodeValidation)
}

func TestAuth_AdminSetupOnlyOnce(t *testing.T) {
	f := newFixture(t)
	_, err := f.auth.AdminSetup(context.Background(), AccountInput{Email: "second@example.org", Password: "another-pass"})
	assertCode(t, err, models.CodeForbidden)

	u, err := f.auth.CreateAdmin(context.Background(), AccountInput{Email: "second@example.org", Password: "another-pass"})
	require.NoError(t, err)
	assert.True(t, u.IsAdmin())
}

func TestAuth_Promote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.auth.Promote(ctx, f.reader.User.Email)
	require.NoError(t, err)
	assert.True(t, u.IsAdmin())

	s, err := f.auth.Authenticate(ctx, f.reader.Token)
	require.NoError(t, err)
	assert.True(t, f.auth.IsOperator(s))

	_, err = f.auth.Promote(ctx, "ghost@example.org")
	assertCode(t, err, models.CodeNotFound)
}

func TestAuth_LogoutRevokesToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.auth.Logout(ctx, f.reader.Token))
	assert.True(t, f.mr.Exists(cache.RevokedTokenKey(jtiOf(t, f, f.reader.Token))))

	_, err := f.auth.Authenticate(ctx, f.reader.Token)
	assertCode(t, err, models.CodeUnauthorized)

	current, err := f.auth.CurrentSession(ctx, f.reader.Token)
	require.NoError(t, err)
	assert.Nil(t, current)

	// Other sessions are unaffected.
	_, err = f.auth.Authenticate(ctx, f.admin.Token)
	assert.NoError(t, err)
}

func TestAuth_ExpiredAndForeignTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.auth.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err := f.auth.Authenticate(ctx, f.reader.Token)
	assertCode(t, err, models.CodeUnauthorized)
	f.auth.now = time.Now

	other := NewAuthService(nil, nil, featureflags.NewManager(""), AuthServiceConfig{Secret: "another-secret-of-sufficient-length!!"})
	_, err = other.Authenticate(ctx, f.reader.Token)
	assertCode(t, err, models.CodeUnauthorized)

	current, err := f.auth.CurrentSession(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, current)
	current, err = f.auth.CurrentSession(ctx, "garbage")
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestAuth_OperatorPolicy(t *testing.T) {
	f := newFixture(t)

	assert.True(t, f.auth.IsOperator(f.admin))
	assert.False(t, f.auth.IsOperator(f.reader))
	assert.False(t, f.auth.IsOperator(nil))
	assertCode(t, f.auth.RequireOperator(nil), models.CodeUnauthorized)
	assertCode(t, f.auth.RequireOperator(f.reader), models.CodeForbidden)

	f.flags.Set(featureflags.OperatorAnySession, "on")
	assert.True(t, f.auth.IsOperator(f.reader))
	assert.NoError(t, f.auth.RequireOperator(f.reader))
}

func jtiOf(t *testing.T, f *fixture, token string) string {
	t.Helper()
	claims, err := f.auth.parse(token)
	require.NoError(t, err)
	return claims.jti
}
