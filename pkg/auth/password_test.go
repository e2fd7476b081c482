package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword_Format(t *testing.T) {
	hash, err := HashPassword("CorrectHorse9!")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"), "expected PHC argon2id prefix, got %s", hash)
}

func TestHashPassword_Empty(t *testing.T) {
	_, err := HashPassword("")
	assert.Error(t, err)
}

func TestHashPassword_UniqueSalts(t *testing.T) {
	h1, err := HashPassword("CorrectHorse9!")
	require.NoError(t, err)
	h2, err := HashPassword("CorrectHorse9!")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestComparePassword(t *testing.T) {
	hash, err := HashPassword("CorrectHorse9!")
	require.NoError(t, err)

	assert.NoError(t, ComparePassword(hash, "CorrectHorse9!"))
	assert.Error(t, ComparePassword(hash, "WrongHorse9!"))
}

func TestComparePassword_MalformedHash(t *testing.T) {
	assert.ErrorIs(t, ComparePassword("not-a-hash", "whatever"), ErrInvalidHash)
	assert.ErrorIs(t, ComparePassword("$bcrypt$v=19$m=1,t=1,p=1$abc$def", "whatever"), ErrInvalidHash)
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"three classes upper lower digit", "Password1", false},
		{"three classes lower digit symbol", "password1!", false},
		{"all four classes", "Password1!", false},
		{"too short", "Pa1!", true},
		{"only two classes", "password1", true},
		{"only lowercase", "passwordpassword", true},
		{"too long", strings.Repeat("Aa1!", 40), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
