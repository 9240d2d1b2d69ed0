package repository

import (
	"context"
	"regexp"
	"testing"

	"charityfeed/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestUserRepository_GetByID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	tests := []struct {
		name         string
		userID       uint
		mockBehavior func()
		expectedCode string
		expectedMail string
	}{
		{
			name:   "Success",
			userID: 1,
			mockBehavior: func() {
				rows := sqlmock.NewRows([]string{"id", "email", "role"}).
					AddRow(1, "test@example.com", "user")
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1 ORDER BY "users"."id" LIMIT $2`)).
					WithArgs(1, 1).
					WillReturnRows(rows)
			},
			expectedMail: "test@example.com",
		},
		{
			name:   "Not Found",
			userID: 99,
			mockBehavior: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1 ORDER BY "users"."id" LIMIT $2`)).
					WithArgs(99, 1).
					WillReturnError(gorm.ErrRecordNotFound)
			},
			expectedCode: models.CodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockBehavior()
			user, err := repo.GetByID(ctx, tt.userID)

			if tt.expectedCode != "" {
				assert.True(t, models.HasCode(err, tt.expectedCode))
			} else if assert.NotNil(t, user) {
				assert.Equal(t, tt.expectedMail, user.Email)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_CreateNormalizesAndRejectsDuplicates(t *testing.T) {
	db := openTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	u := &models.User{Email: "  Jane@Example.COM ", Password: "hash", Role: models.RoleUser}
	require.NoError(t, repo.Create(ctx, u))
	assert.Equal(t, "jane@example.com", u.Email)

	got, err := repo.GetByEmail(ctx, "JANE@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	err = repo.Create(ctx, &models.User{Email: "jane@example.com", Password: "hash", Role: models.RoleUser})
	assert.True(t, models.HasCode(err, models.CodeConflict))
}

func TestUserRepository_Roles(t *testing.T) {
	db := openTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	u := createUser(t, db, "a@example.com", models.RoleUser)
	createUser(t, db, "b@example.com", models.RoleUser)

	admins, err := repo.CountByRole(ctx, models.RoleAdmin)
	require.NoError(t, err)
	assert.Zero(t, admins)

	require.NoError(t, repo.UpdateRole(ctx, u.ID, models.RoleAdmin))
	admins, err = repo.CountByRole(ctx, models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, int64(1), admins)

	total, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	err = repo.UpdateRole(ctx, 777, models.RoleAdmin)
	assert.True(t, models.HasCode(err, models.CodeNotFound))
}
