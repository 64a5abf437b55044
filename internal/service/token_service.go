package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/AureliusIvan/threads-scheduler/internal/models"
	"github.com/AureliusIvan/threads-scheduler/internal/repository"
	"github.com/AureliusIvan/threads-scheduler/internal/threads"
	"github.com/AureliusIvan/threads-scheduler/pkg/utils"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

type TokenRefresher interface {
	RefreshToken(ctx context.Context, accessToken string) (*oauth2.Token, error)
}

type TokenService interface {
	ResolveCredentials(ctx context.Context, userID uuid.UUID, now time.Time) (threads.Credentials, error)
	RefreshThreadsToken(ctx context.Context, acc *models.ThreadsAccount) error
}

type tokenService struct {
	cipher *utils.TokenCipher
	sa     repository.ThreadsAccountRepository
	tr     TokenRefresher
}

// NewTokenService stores Threads tokens sealed with cipher, bound to the
// owning user id.
func NewTokenService(cipher *utils.TokenCipher, sa repository.ThreadsAccountRepository, tr TokenRefresher) TokenService {
	return &tokenService{
		cipher: cipher,
		sa:     sa,
		tr:     tr,
	}
}

// ResolveCredentials returns threads.ErrNoAccessToken when the user has no
// connected account, the token expired at or before now, or it cannot be
// decrypted.
func (s *tokenService) ResolveCredentials(ctx context.Context, userID uuid.UUID, now time.Time) (threads.Credentials, error) {
	acc, err := s.sa.GetByUserID(ctx, userID)
	if err != nil {
		return threads.Credentials{}, err
	}

	if acc == nil || acc.AccessToken == "" {
		slog.Info("no Threads account connected", "user_id", userID)
		return threads.Credentials{}, threads.ErrNoAccessToken
	}

	if !acc.TokenExpiresAt.After(now) {
		slog.Info("Threads token expired", "user_id", userID, "expired_at", acc.TokenExpiresAt)
		return threads.Credentials{}, threads.ErrNoAccessToken
	}

	accessToken, err := s.cipher.Open(acc.UserID.String(), acc.AccessToken)
	if err != nil {
		slog.Info("unable to decrypt Threads token", "user_id", userID)
		return threads.Credentials{}, threads.ErrNoAccessToken
	}

	return threads.Credentials{
		UserID: acc.ThreadsUserID,
		Token: &oauth2.Token{
			AccessToken: accessToken,
			TokenType:   "Bearer",
			Expiry:      acc.TokenExpiresAt,
		},
	}, nil
}

func (s *tokenService) RefreshThreadsToken(ctx context.Context, acc *models.ThreadsAccount) error {
	decryptedToken, err := s.cipher.Open(acc.UserID.String(), acc.AccessToken)
	if err != nil {
		return err
	}

	token, err := s.tr.RefreshToken(ctx, decryptedToken)
	if err != nil {
		return err
	}

	encryptedAccessToken, err := s.cipher.Seal(acc.UserID.String(), token.AccessToken)
	if err != nil {
		return err
	}

	refreshed := models.ThreadsAccount{
		AccessToken:    encryptedAccessToken,
		TokenExpiresAt: token.Expiry,
	}

	return s.sa.SetToken(ctx, acc.UserID, acc.AccessToken, &refreshed)
}
