package auth

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/tunetalk/internal/model"
	"github.com/hitoshi/tunetalk/internal/repository"
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	JWTSecret  []byte
	SessionTTL time.Duration // セッショントークンの有効期間
}

// ExchangeResult はIDトークン交換の結果。
type ExchangeResult struct {
	Token       string // アプリのセッショントークン
	PrivyUserID string // 外部IdPのsubject
}

// Service はIDトークン交換とユーザー解決のビジネスロジックを提供する。
type Service struct {
	provider IdentityProvider
	userRepo repository.UserRepository
	config   ServiceConfig
}

// NewService はServiceを生成する。
func NewService(provider IdentityProvider, userRepo repository.UserRepository, config ServiceConfig) *Service {
	return &Service{
		provider: provider,
		userRepo: userRepo,
		config:   config,
	}
}

// Exchange は外部IDトークンをアプリのセッショントークンに交換する。
// 未登録のsubjectの場合はユーザーレコードを作成し、
// 登録済みの場合はemailのみをベストエフォートで更新する。
// 同一subjectの並行初回交換は一意制約違反を1回の再読込でリカバリし、
// 両方の呼び出しが同一の内部ユーザーIDに収束する。
func (s *Service) Exchange(ctx context.Context, externalToken string) (*ExchangeResult, error) {
	if externalToken == "" {
		return nil, model.NewInvalidArgumentError("privyToken is required")
	}

	// 1. 外部IDトークンを検証してsubjectを取得
	subject, err := s.provider.VerifyToken(ctx, externalToken)
	if err != nil {
		if errors.Is(err, ErrTokenRejected) {
			return nil, model.NewInvalidTokenError()
		}
		slog.Error("identity provider verification failed", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}

	// 2. emailをベストエフォートで取得（失敗しても交換は継続する）
	email, err := s.provider.FetchEmail(ctx, subject)
	if err != nil {
		slog.Warn("failed to fetch email from identity provider",
			slog.String("subject", subject),
			slog.String("error", err.Error()),
		)
		email = ""
	}

	// 3. ユーザーを解決（read → conditional insert → retry read once）
	user, err := s.resolveUser(ctx, subject, email)
	if err != nil {
		return nil, err
	}

	// 4. セッショントークンを発行
	token, err := IssueSessionToken(s.config.JWTSecret, user.ID, user.PrivyUserID, s.config.SessionTTL)
	if err != nil {
		slog.Error("failed to issue session token", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}

	return &ExchangeResult{
		Token:       token,
		PrivyUserID: user.PrivyUserID,
	}, nil
}

// resolveUser はsubjectに対応するユーザーを取得または作成する。
func (s *Service) resolveUser(ctx context.Context, subject, email string) (*model.User, error) {
	user, err := s.userRepo.FindByPrivyUserID(ctx, subject)
	if err != nil {
		slog.Error("failed to find user", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}

	if user != nil {
		// 既存ユーザー: emailのみベストエフォートで更新
		if email != "" && email != user.Email {
			if err := s.userRepo.UpdateEmail(ctx, user.ID, email); err != nil {
				slog.Warn("failed to update user email",
					slog.String("user_id", user.ID),
					slog.String("error", err.Error()),
				)
			} else {
				user.Email = email
			}
		}
		return user, nil
	}

	// 新規ユーザーを作成
	now := time.Now()
	newUser := &model.User{
		ID:          uuid.New().String(),
		PrivyUserID: subject,
		Email:       email,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.userRepo.Create(ctx, newUser)
	if err == nil {
		slog.Info("new user created",
			slog.String("user_id", newUser.ID),
			slog.String("privy_user_id", subject),
		)
		return newUser, nil
	}

	if !errors.Is(err, repository.ErrDuplicateKey) {
		slog.Error("failed to create user", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}

	// 並行交換に負けた場合: 勝者の行を1回だけ再読込する
	user, findErr := s.userRepo.FindByPrivyUserID(ctx, subject)
	if findErr != nil {
		slog.Error("failed to re-read user after conflict", slog.String("error", findErr.Error()))
		return nil, model.NewInternalError()
	}
	if user == nil {
		slog.Error("user vanished after duplicate key conflict", slog.String("privy_user_id", subject))
		return nil, model.NewInternalError()
	}

	return user, nil
}

// DevLogin はIdP未設定環境向けに、emailから決定的なdevトークンを生成する。
// 同一emailは常に同一のsubjectに対応する。
func (s *Service) DevLogin(ctx context.Context, email string) (string, error) {
	if email == "" {
		return "", model.NewInvalidArgumentError("email is required")
	}

	subject := devSubjectForEmail(email)
	if _, err := s.resolveUser(ctx, subject, email); err != nil {
		return "", err
	}

	return DevTokenPrefix + subject, nil
}

// devSubjectForEmail はemailから決定的なdev用subjectを導出する。
func devSubjectForEmail(email string) string {
	encoded := hex.EncodeToString([]byte(email))
	if len(encoded) > 24 {
		encoded = encoded[:24]
	}
	return fmt.Sprintf("dev_%s", encoded)
}

// CurrentUser はセッションの内部ユーザーIDから現在のユーザーを取得する。
func (s *Service) CurrentUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		slog.Error("failed to find user by ID", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}
