package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity は検証済みセッションから取り出した呼び出し元の識別情報。
type Identity struct {
	UserID      string // 内部ユーザーID
	PrivyUserID string // 外部IdPのsubject
}

// sessionClaims はセッショントークンのクレーム。
// uidに内部ユーザーID、subに外部subjectを載せる。
type sessionClaims struct {
	UID string `json:"uid"`
	jwt.RegisteredClaims
}

// IssueSessionToken は内部ユーザーIDと外部subjectを埋め込んだ
// HMAC署名付きセッショントークンを発行する。
// 有効期限はttlで固定される（サーバー側に状態は持たない）。
func IssueSessionToken(secret []byte, userID, privyUserID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		UID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   privyUserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return signed, nil
}

// ParseSessionToken はセッショントークンを検証し、呼び出し元の識別情報を返す。
// 署名不正・期限切れ・必須クレーム欠落はすべてエラーになる。
// DBアクセスを伴わない純粋な構造・暗号検証のみを行う。
func ParseSessionToken(secret []byte, tokenString string) (*Identity, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			return secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid session token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid session token")
	}
	if claims.UID == "" || claims.Subject == "" {
		return nil, fmt.Errorf("session token missing required claims")
	}

	return &Identity{
		UserID:      claims.UID,
		PrivyUserID: claims.Subject,
	}, nil
}
