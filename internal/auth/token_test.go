package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hitoshi/sheetdash/internal/clock"
	"github.com/hitoshi/sheetdash/internal/model"
	"github.com/hitoshi/sheetdash/internal/repository"
	"github.com/hitoshi/sheetdash/internal/testutil"
)

var (
	testStart  = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	testSecret = []byte("test-secret-for-hs256-signing!!")
)

type tokenFixture struct {
	tokens   *TokenService
	resolver *Resolver
	users    *repository.SQLUserRepo
	sessions *repository.SQLSessionRepo
	clock    *clock.Fake
}

func newTokenFixture(t *testing.T) *tokenFixture {
	t.Helper()
	db, dialect := testutil.OpenTestDB(t)
	fc := clock.NewFake(testStart)
	users := repository.NewSQLUserRepo(db, dialect)
	sessions := repository.NewSQLSessionRepo(db, dialect)
	return &tokenFixture{
		tokens:   NewTokenService(sessions, users, fc, TokenConfig{Secret: testSecret, TTL: 24 * time.Hour}),
		resolver: NewResolver(users, fc),
		users:    users,
		sessions: sessions,
		clock:    fc,
	}
}

func (f *tokenFixture) createUser(t *testing.T, googleID, email string) *model.User {
	t.Helper()
	u, err := f.resolver.Resolve(context.Background(), IdentityClaims{
		GoogleID: googleID, Email: email, Name: "User " + googleID, Picture: "https://example.com/p.png",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	return u
}

func TestIssue_ReturnsTokenBoundToSession(t *testing.T) {
	f := newTokenFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "g-1", "alice@example.com")

	issued, err := f.tokens.Issue(ctx, user)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	wantExpiry := testStart.Add(24 * time.Hour)
	if !issued.ExpiresAt.Equal(wantExpiry) {
		t.Errorf("ExpiresAt = %v, want %v", issued.ExpiresAt, wantExpiry)
	}
	if issued.User.ID != user.ID || issued.User.Email != "alice@example.com" || issued.User.Name != user.Name {
		t.Errorf("User summary = %+v", issued.User)
	}

	session, err := f.sessions.FindActiveByToken(ctx, issued.Token, testStart)
	if err != nil || session == nil {
		t.Fatalf("発行直後のセッションが見つからない: %v", err)
	}
	if session.UserID != user.ID {
		t.Errorf("session.UserID = %q, want %q", session.UserID, user.ID)
	}
	if !session.ExpiresAt.Equal(wantExpiry) {
		t.Errorf("session.ExpiresAt = %v, want %v", session.ExpiresAt, wantExpiry)
	}

	claims := &TokenClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(issued.Token, claims)
	if err != nil {
		t.Fatalf("ParseUnverified: %v", err)
	}
	if claims.Subject != user.ID || claims.Email != "alice@example.com" {
		t.Errorf("claims = %+v", claims)
	}
	if claims.ID == "" {
		t.Error("jti が設定されていない")
	}
}

func TestIssue_SameSecondTokensAreDistinct(t *testing.T) {
	f := newTokenFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "g-1", "alice@example.com")

	first, err := f.tokens.Issue(ctx, user)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	second, err := f.tokens.Issue(ctx, user)
	if err != nil {
		t.Fatalf("同一秒内の2回目のIssueに失敗: %v", err)
	}
	if first.Token == second.Token {
		t.Error("同一秒内に発行したトークンが一致した")
	}
}

func TestValidate_ActiveToken_ReturnsUser(t *testing.T) {
	f := newTokenFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "g-1", "alice@example.com")
	issued, _ := f.tokens.Issue(ctx, user)

	f.clock.Advance(23 * time.Hour)

	got, err := f.tokens.Validate(ctx, issued.Token)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("user.ID = %q, want %q", got.ID, user.ID)
	}
}

func TestValidate_AfterExpiry_Fails(t *testing.T) {
	f := newTokenFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "g-1", "alice@example.com")
	issued, _ := f.tokens.Issue(ctx, user)

	f.clock.Advance(24*time.Hour + time.Second)

	_, err := f.tokens.Validate(ctx, issued.Token)
	if !errors.Is(err, ErrInvalidToken) && !errors.Is(err, ErrSessionExpiredOrRevoked) {
		t.Fatalf("err = %v, want auth failure", err)
	}
}

func TestValidate_TamperedSignature_ReturnsInvalidToken(t *testing.T) {
	f := newTokenFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "g-1", "alice@example.com")
	issued, _ := f.tokens.Issue(ctx, user)

	parts := strings.Split(issued.Token, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	if _, err := f.tokens.Validate(ctx, tampered); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
	if _, err := f.tokens.Validate(ctx, "not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("malformed err = %v, want ErrInvalidToken", err)
	}
}

func TestValidate_OtherSecret_ReturnsInvalidToken(t *testing.T) {
	f := newTokenFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "g-1", "alice@example.com")

	other := NewTokenService(f.sessions, f.users, f.clock, TokenConfig{Secret: []byte("another-secret")})
	issued, err := other.Issue(ctx, user)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	// セッション行は存在するが署名が異なる
	if _, err := f.tokens.Validate(ctx, issued.Token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestValidate_ValidSignatureWithoutSession_ReturnsSessionExpiredOrRevoked(t *testing.T) {
	f := newTokenFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "g-1", "alice@example.com")

	claims := TokenClaims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(testStart),
			ExpiresAt: jwt.NewNumericDate(testStart.Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	if _, err := f.tokens.Validate(ctx, signed); !errors.Is(err, ErrSessionExpiredOrRevoked) {
		t.Errorf("err = %v, want ErrSessionExpiredOrRevoked", err)
	}
}

func TestValidate_NoneAlgorithm_ReturnsInvalidToken(t *testing.T) {
	f := newTokenFixture(t)
	user := f.createUser(t, "g-1", "alice@example.com")

	claims := jwt.RegisteredClaims{
		Subject:   user.ID,
		ExpiresAt: jwt.NewNumericDate(testStart.Add(time.Hour)),
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	if _, err := f.tokens.Validate(context.Background(), unsigned); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestRevoke_ThenValidate_ReturnsSessionExpiredOrRevoked(t *testing.T) {
	f := newTokenFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "g-1", "alice@example.com")
	issued, _ := f.tokens.Issue(ctx, user)

	if err := f.tokens.Revoke(ctx, issued.Token); err != nil {
		t.Fatalf("Revoke returned error: %v", err)
	}
	if _, err := f.tokens.Validate(ctx, issued.Token); !errors.Is(err, ErrSessionExpiredOrRevoked) {
		t.Errorf("err = %v, want ErrSessionExpiredOrRevoked", err)
	}
	if err := f.tokens.Revoke(ctx, issued.Token); err != nil {
		t.Errorf("2回目のRevokeでエラー: %v", err)
	}
}

func TestValidate_AfterUserDelete_ReturnsSessionExpiredOrRevoked(t *testing.T) {
	f := newTokenFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "g-1", "alice@example.com")
	issued, _ := f.tokens.Issue(ctx, user)

	if err := f.users.DeleteByID(ctx, user.ID); err != nil {
		t.Fatalf("DeleteByID: %v", err)
	}

	if _, err := f.tokens.Validate(ctx, issued.Token); !errors.Is(err, ErrSessionExpiredOrRevoked) {
		t.Errorf("err = %v, want ErrSessionExpiredOrRevoked", err)
	}
}

func TestSweepExpired_RemovesOnlyExpiredSessions(t *testing.T) {
	f := newTokenFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "g-1", "alice@example.com")

	old, _ := f.tokens.Issue(ctx, user)
	f.clock.Advance(12 * time.Hour)
	fresh, _ := f.tokens.Issue(ctx, user)
	f.clock.Advance(13 * time.Hour)

	n, err := f.tokens.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired returned error: %v", err)
	}
	if n != 1 {
		t.Errorf("SweepExpired = %d, want 1", n)
	}
	if n, _ := f.tokens.SweepExpired(ctx); n != 0 {
		t.Errorf("2回目のSweepExpired = %d, want 0", n)
	}

	if _, err := f.tokens.Validate(ctx, old.Token); err == nil {
		t.Error("期限切れトークンが検証を通過した")
	}
	if _, err := f.tokens.Validate(ctx, fresh.Token); err != nil {
		t.Errorf("有効なトークンの検証に失敗: %v", err)
	}
}

// --- ストアエラーの伝播 ---

type mockSessionRepo struct {
	findActiveByTokenFn func(ctx context.Context, token string, now time.Time) (*model.Session, error)
}

func (m *mockSessionRepo) Create(context.Context, *model.Session) error { return nil }

func (m *mockSessionRepo) FindActiveByToken(ctx context.Context, token string, now time.Time) (*model.Session, error) {
	if m.findActiveByTokenFn != nil {
		return m.findActiveByTokenFn(ctx, token, now)
	}
	return nil, nil
}

func (m *mockSessionRepo) DeleteByToken(context.Context, string) (int64, error)  { return 0, nil }
func (m *mockSessionRepo) DeleteByUserID(context.Context, string) (int64, error) { return 0, nil }
func (m *mockSessionRepo) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}
func (m *mockSessionRepo) CountActiveByUserID(context.Context, string, time.Time) (int64, error) {
	return 0, nil
}

var _ repository.SessionRepository = (*mockSessionRepo)(nil)

func TestValidate_StoreError_IsNotAuthError(t *testing.T) {
	storeErr := errors.New("connection refused")
	fc := clock.NewFake(testStart)
	sessions := &mockSessionRepo{
		findActiveByTokenFn: func(context.Context, string, time.Time) (*model.Session, error) {
			return nil, storeErr
		},
	}
	svc := NewTokenService(sessions, nil, fc, TokenConfig{Secret: testSecret})

	signed, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u-1",
			ExpiresAt: jwt.NewNumericDate(testStart.Add(time.Hour)),
		},
	}).SignedString(testSecret)

	_, err := svc.Validate(context.Background(), signed)
	if !errors.Is(err, storeErr) {
		t.Fatalf("err = %v, want wrapped store error", err)
	}
	if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrSessionExpiredOrRevoked) {
		t.Errorf("ストアエラーが認証エラーとして扱われた: %v", err)
	}
}

func TestValidate_SubjectMismatch_ReturnsInvalidToken(t *testing.T) {
	fc := clock.NewFake(testStart)
	sessions := &mockSessionRepo{
		findActiveByTokenFn: func(_ context.Context, token string, _ time.Time) (*model.Session, error) {
			return &model.Session{ID: "s-1", UserID: "someone-else", Token: token, ExpiresAt: testStart.Add(time.Hour)}, nil
		},
	}
	svc := NewTokenService(sessions, nil, fc, TokenConfig{Secret: testSecret})

	signed, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u-1",
			ExpiresAt: jwt.NewNumericDate(testStart.Add(time.Hour)),
		},
	}).SignedString(testSecret)

	if _, err := svc.Validate(context.Background(), signed); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

// 発行時刻に秒未満があっても、exp - iat はJWT_EXPIRES_INちょうどになる
func TestIssue_SubSecondClock_KeepsExactTTL(t *testing.T) {
	f := newTokenFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "g-1", "alice@example.com")
	f.clock.Set(testStart.Add(900 * time.Millisecond))

	issued, err := f.tokens.Issue(ctx, user)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	wantExpiry := testStart.Add(24 * time.Hour)
	if !issued.ExpiresAt.Equal(wantExpiry) {
		t.Errorf("ExpiresAt = %v, want %v", issued.ExpiresAt, wantExpiry)
	}

	claims := &TokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(issued.Token, claims); err != nil {
		t.Fatalf("ParseUnverified: %v", err)
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != 24*time.Hour {
		t.Errorf("exp - iat = %v, want 24h", got)
	}

	session, err := f.sessions.FindActiveByToken(ctx, issued.Token, testStart)
	if err != nil || session == nil {
		t.Fatalf("FindActiveByToken = %v, %v", session, err)
	}
	if !session.ExpiresAt.Equal(wantExpiry) {
		t.Errorf("session.ExpiresAt = %v, want %v", session.ExpiresAt, wantExpiry)
	}
}
