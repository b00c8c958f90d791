package services

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/listenme/listenme/internal/auth"
	"github.com/listenme/listenme/internal/database/testutil"
	"github.com/listenme/listenme/internal/models"
	"github.com/listenme/listenme/pkg/crypto"
	appErrors "github.com/listenme/listenme/pkg/errors"
	"github.com/listenme/listenme/pkg/mail"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) last(t *testing.T) mail.Message {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent)
	return m.sent[len(m.sent)-1]
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type authHarness struct {
	svc    *AuthService
	db     *gorm.DB
	mailer *recordingMailer
	tokens *auth.JWTService
}

func newAuthService(t *testing.T, cfg AuthConfig, mailer mail.Mailer) (*AuthService, *gorm.DB, *auth.JWTService) {
	t.Helper()

	db := testutil.MustOpenTestDB(t)

	hasher, err := crypto.NewHasher(crypto.SchemeSHA256)
	require.NoError(t, err)

	tokens, err := auth.NewJWTService(auth.JWTConfig{Secret: "test-signing-secret", Issuer: "listenme"})
	require.NoError(t, err)

	codes, err := NewOneTimeCodeService(db)
	require.NoError(t, err)

	resets, err := NewPasswordResetService(db)
	require.NoError(t, err)

	if cfg.AppURL == "" {
		cfg.AppURL = "https://listenme.example.com"
	}
	svc, err := NewAuthService(db, hasher, tokens, codes, resets, mailer, cfg)
	require.NoError(t, err)

	return svc, db, tokens
}

func newAuthHarness(t *testing.T, cfg AuthConfig) *authHarness {
	t.Helper()

	mailer := &recordingMailer{}
	svc, db, tokens := newAuthService(t, cfg, mailer)

	return &authHarness{svc: svc, db: db, mailer: mailer, tokens: tokens}
}

// latestCode digs the most recent code for an email out of storage, standing
// in for reading the delivered mail.
func (h *authHarness) latestCode(t *testing.T, email string) string {
	t.Helper()
	var record models.OneTimeCode
	require.NoError(t, h.db.Where("email = ?", email).Order("created_at DESC").First(&record).Error)
	return record.Code
}

func (h *authHarness) latestResetToken(t *testing.T, email string) string {
	t.Helper()
	var record models.PasswordResetToken
	require.NoError(t, h.db.Where("email = ? AND used = ?", email, false).
		Order("created_at DESC").First(&record).Error)
	return record.Token
}

func TestSignupCreatesUnverifiedAccount(t *testing.T) {
	h := newAuthHarness(t, AuthConfig{})

	require.NoError(t, h.svc.Signup(context.Background(), "Ada@Example.com", "hunter2", "Ada"))

	var user models.User
	require.NoError(t, h.db.Where("email = ?", "ada@example.com").First(&user).Error)
	require.False(t, user.Verified)
	require.False(t, user.IsAdmin)
	require.NotEqual(t, "hunter2", user.Password)

	msg := h.mailer.last(t)
	require.Equal(t, []string{"ada@example.com"}, msg.To)
	require.Equal(t, "Verify your ListenMe account", msg.Subject)
	require.True(t, msg.HTML)
	require.Contains(t, msg.Body, h.latestCode(t, "ada@example.com"))
}

func TestSignupConflict(t *testing.T) {
	h := newAuthHarness(t, AuthConfig{})

	require.NoError(t, h.svc.Signup(context.Background(), "ada@example.com", "hunter2", "Ada"))
	err := h.svc.Signup(context.Background(), "ADA@example.com", "other-pass", "Imposter")
	require.ErrorIs(t, err, appErrors.ErrEmailTaken)
}

func TestSignupConflictFromConcurrentInsert(t *testing.T) {
	h := newAuthHarness(t, AuthConfig{})

	// Seed the row behind the service's back, the way a racing signup that
	// committed first would.
	seeded := models.User{Email: "ada@example.com", Password: "x", Name: "Ada"}
	require.NoError(t, h.db.Create(&seeded).Error)

	err := h.svc.Signup(context.Background(), "ada@example.com", "hunter2", "Twin")
	require.ErrorIs(t, err, appErrors.ErrEmailTaken)
}

type disabledMailer struct{}

func (disabledMailer) Send(context.Context, mail.Message) error { return mail.ErrSMTPDisabled }

func TestSignupFailsWhenMailCannotBeSent(t *testing.T) {
	svc, _, _ := newAuthService(t, AuthConfig{}, disabledMailer{})

	err := svc.Signup(context.Background(), "ada@example.com", "hunter2", "Ada")
	require.ErrorIs(t, err, appErrors.ErrInternalServer)
}

func TestSignupWithUnsentMailOptIn(t *testing.T) {
	svc, db, _ := newAuthService(t, AuthConfig{AllowUnsentMail: true}, disabledMailer{})

	require.NoError(t, svc.Signup(context.Background(), "ada@example.com", "hunter2", "Ada"))

	// The code still lands in storage so the operator can hand it over.
	var code models.OneTimeCode
	require.NoError(t, db.Where("email = ?", "ada@example.com").
		Order("created_at DESC").First(&code).Error)
	require.Len(t, code.Code, 6)
}

func TestSignupAdminFlagDerivation(t *testing.T) {
	h := newAuthHarness(t, AuthConfig{AdminEmail: "Boss@Example.com"})

	require.NoError(t, h.svc.Signup(context.Background(), "boss@example.com", "hunter2", "Boss"))
	require.NoError(t, h.svc.Signup(context.Background(), "ada@example.com", "hunter2", "Ada"))

	var boss, ada models.User
	require.NoError(t, h.db.Where("email = ?", "boss@example.com").First(&boss).Error)
	require.NoError(t, h.db.Where("email = ?", "ada@example.com").First(&ada).Error)
	require.True(t, boss.IsAdmin)
	require.False(t, ada.IsAdmin)
}

func TestVerifyEmailIssuesSession(t *testing.T) {
	h := newAuthHarness(t, AuthConfig{})

	require.NoError(t, h.svc.Signup(context.Background(), "ada@example.com", "hunter2", "Ada"))
	code := h.latestCode(t, "ada@example.com")

	session, err := h.svc.VerifyEmail(context.Background(), "ADA@example.com ", code)
	require.NoError(t, err)
	require.Equal(t, "ada@example.com", session.User.Email)
	require.True(t, session.User.Verified)

	claims, err := h.tokens.Verify(session.Token)
	require.NoError(t, err)
	require.Equal(t, session.User.ID, claims.UserID)
	require.Equal(t, "ada@example.com", claims.Email)
	require.False(t, claims.IsAdmin)

	// A consumed code cannot complete a second verification.
	_, err = h.svc.VerifyEmail(context.Background(), "ada@example.com", code)
	require.ErrorIs(t, err, appErrors.ErrInvalidCode)
}

func TestVerifyEmailWrongCode(t *testing.T) {
	h := newAuthHarness(t, AuthConfig{})

	require.NoError(t, h.svc.Signup(context.Background(), "ada@example.com", "hunter2", "Ada"))

	_, err := h.svc.VerifyEmail(context.Background(), "ada@example.com", "000000")
	if h.latestCode(t, "ada@example.com") == "000000" {
		t.Skip("generated code collided with the guess")
	}
	require.ErrorIs(t, err, appErrors.ErrInvalidCode)

	var user models.User
	require.NoError(t, h.db.Where("email = ?", "ada@example.com").First(&user).Error)
	require.False(t, user.Verified)
}

func verifiedUser(t *testing.T, h *authHarness, email, password, name string) {
	t.Helper()
	require.NoError(t, h.svc.Signup(context.Background(), email, password, name))
	_, err := h.svc.VerifyEmail(context.Background(), email, h.latestCode(t, email))
	require.NoError(t, err)
}

func TestLoginDirect(t *testing.T) {
	h := newAuthHarness(t, AuthConfig{LoginMode: LoginModeDirect})
	verifiedUser(t, h, "ada@example.com", "hunter2", "Ada")

	result, err := h.svc.Login(context.Background(), "Ada@Example.com", "hunter2")
	require.NoError(t, err)
	require.False(t, result.CodeSent)
	require.NotNil(t, result.Session)

	claims, err := h.tokens.Verify(result.Session.Token)
	require.NoError(t, err)
	require.Equal(t, "ada@example.com", claims.Email)
}

func TestLoginBadCredentials(t *testing.T) {
	h := newAuthHarness(t, AuthConfig{})
	verifiedUser(t, h, "ada@example.com", "hunter2", "Ada")

	_, err := h.svc.Login(context.Background(), "ada@example.com", "wrong-password")
	require.ErrorIs(t, err, appErrors.ErrInvalidCredentials)

	// Unknown accounts produce the same error as a bad password.
	_, err = h.svc.Login(context.Background(), "nobody@example.com", "hunter2")
	require.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
}

func TestLoginUnverifiedAccount(t *testing.T) {
	h := newAuthHarness(t, AuthConfig{})
	require.NoError(t, h.svc.Signup(context.Background(), "ada@example.com", "hunter2", "Ada"))

	_, err := h.svc.Login(context.Background(), "ada@example.com", "hunter2")
	require.ErrorIs(t, err, appErrors.ErrNotVerified)

	var appErr *appErrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, true, appErr.Details["needs_verify"])
}

func TestLoginGatedFlow(t *testing.T) {
	h := newAuthHarness(t, AuthConfig{LoginMode: LoginModeGated})
	verifiedUser(t, h, "ada@example.com", "hunter2", "Ada")

	result, err := h.svc.Login(context.Background(), "ada@example.com", "hunter2")
	require.NoError(t, err)
	require.True(t, result.CodeSent)
	require.Nil(t, result.Session)

	msg := h.mailer.last(t)
	require.Equal(t, "Your ListenMe login code", msg.Subject)

	code := h.latestCode(t, "ada@example.com")
	require.Contains(t, msg.Body, code)

	session, err := h.svc.VerifyLogin(context.Background(), "ada@example.com", code)
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)

	// The emailed code works exactly once.
	_, err = h.svc.VerifyLogin(context.Background(), "ada@example.com", code)
	require.ErrorIs(t, err, appErrors.ErrInvalidCode)
}

func TestForgotPasswordUnknownEmailStaysQuiet(t *testing.T) {
	h := newAuthHarness(t, AuthConfig{})

	require.NoError(t, h.svc.ForgotPassword(context.Background(), "nobody@example.com"))
	require.Zero(t, h.mailer.count())
}

func TestForgotPasswordUnverifiedAccountStaysQuiet(t *testing.T) {
	h := newAuthHarness(t, AuthConfig{})
	require.NoError(t, h.svc.Signup(context.Background(), "ada@example.com", "hunter2", "Ada"))
	before := h.mailer.count()

	require.NoError(t, h.svc.ForgotPassword(context.Background(), "ada@example.com"))
	require.Equal(t, before, h.mailer.count())
}

func TestPasswordResetFlow(t *testing.T) {
	h := newAuthHarness(t, AuthConfig{AppURL: "https://listenme.example.com/"})
	verifiedUser(t, h, "ada@example.com", "hunter2", "Ada")

	require.NoError(t, h.svc.ForgotPassword(context.Background(), "ada@example.com"))

	msg := h.mailer.last(t)
	require.Equal(t, "Reset your ListenMe password", msg.Subject)

	token := h.latestResetToken(t, "ada@example.com")
	require.Contains(t, msg.Body, "https://listenme.example.com/reset-password.html?token="+token)

	live, err := h.svc.ResetTokenValid(context.Background(), token)
	require.NoError(t, err)
	require.True(t, live)

	require.NoError(t, h.svc.ResetPassword(context.Background(), token, "new-password"))

	// The old password no longer works, the new one does.
	_, err = h.svc.Login(context.Background(), "ada@example.com", "hunter2")
	require.ErrorIs(t, err, appErrors.ErrInvalidCredentials)

	result, err := h.svc.Login(context.Background(), "ada@example.com", "new-password")
	require.NoError(t, err)
	require.NotNil(t, result.Session)

	// Consumed tokens cannot be replayed or probed back to life.
	require.ErrorIs(t, h.svc.ResetPassword(context.Background(), token, "another-password"),
		appErrors.ErrInvalidResetToken)
	live, err = h.svc.ResetTokenValid(context.Background(), token)
	require.NoError(t, err)
	require.False(t, live)
}

func TestResetPasswordFailedUpdateKeepsToken(t *testing.T) {
	h := newAuthHarness(t, AuthConfig{})
	verifiedUser(t, h, "ada@example.com", "hunter2", "Ada")

	require.NoError(t, h.svc.ForgotPassword(context.Background(), "ada@example.com"))
	token := h.latestResetToken(t, "ada@example.com")

	// Break the password UPDATE mid-flow; the claim must roll back with it.
	require.NoError(t, h.db.Migrator().DropTable(&models.User{}))

	err := h.svc.ResetPassword(context.Background(), token, "new-password")
	require.ErrorIs(t, err, appErrors.ErrInternalServer)

	live, err := h.svc.ResetTokenValid(context.Background(), token)
	require.NoError(t, err)
	require.True(t, live)
}

func TestCurrentUser(t *testing.T) {
	h := newAuthHarness(t, AuthConfig{})
	verifiedUser(t, h, "ada@example.com", "hunter2", "Ada")

	var user models.User
	require.NoError(t, h.db.Where("email = ?", "ada@example.com").First(&user).Error)

	info, err := h.svc.CurrentUser(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, "Ada", info.Name)
	require.True(t, info.Verified)

	_, err = h.svc.CurrentUser(context.Background(), "00000000-0000-0000-0000-000000000000")
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestNewAuthServiceRejectsUnknownLoginMode(t *testing.T) {
	h := newAuthHarness(t, AuthConfig{})

	_, err := NewAuthService(h.db, mustHasher(t), h.tokens, mustCodes(t, h.db), mustResets(t, h.db),
		h.mailer, AuthConfig{LoginMode: "both"})
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "login mode"))
}

func mustHasher(t *testing.T) crypto.Hasher {
	t.Helper()
	hasher, err := crypto.NewHasher(crypto.SchemeSHA256)
	require.NoError(t, err)
	return hasher
}

func mustCodes(t *testing.T, db *gorm.DB) *OneTimeCodeService {
	t.Helper()
	svc, err := NewOneTimeCodeService(db)
	require.NoError(t, err)
	return svc
}

func mustResets(t *testing.T, db *gorm.DB) *PasswordResetService {
	t.Helper()
	svc, err := NewPasswordResetService(db)
	require.NoError(t, err)
	return svc
}
