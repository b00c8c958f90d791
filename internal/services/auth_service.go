package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/listenme/listenme/internal/auth"
	"github.com/listenme/listenme/internal/models"
	"github.com/listenme/listenme/pkg/crypto"
	appErrors "github.com/listenme/listenme/pkg/errors"
	"github.com/listenme/listenme/pkg/logger"
	"github.com/listenme/listenme/pkg/mail"
	"github.com/listenme/listenme/pkg/metrics"
)

// LoginMode selects which login flow a deployment runs. The two flows are
// mutually exclusive: direct issues a session token straight after the
// password check, gated emails a one-time code and defers token issuance to
// VerifyLogin.
type LoginMode string

const (
	LoginModeDirect LoginMode = "direct"
	LoginModeGated  LoginMode = "otc"
)

// AuthConfig carries the immutable startup settings of the auth flows.
type AuthConfig struct {
	// AdminEmail, when set, marks the matching account as admin at signup.
	AdminEmail string
	// AppURL is the public base URL embedded in password reset links.
	AppURL string
	// LoginMode picks the login flow. Defaults to direct.
	LoginMode LoginMode
	// AllowUnsentMail lets flows proceed when SMTP delivery is disabled.
	// Meant for local setups without a mail server; codes and reset links
	// then only exist in the database.
	AllowUnsentMail bool
}

// UserInfo is the caller-facing projection of a User record.
type UserInfo struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	IsAdmin  bool   `json:"is_admin"`
	Verified bool   `json:"verified"`
}

// Session pairs a signed token with the identity it asserts.
type Session struct {
	Token string   `json:"token"`
	User  UserInfo `json:"user"`
}

// LoginResult is what Login produces. Exactly one branch is populated:
// Session in direct mode, CodeSent in gated mode.
type LoginResult struct {
	Session  *Session
	CodeSent bool
}

// AuthService orchestrates signup, email verification, both login flows and
// the password reset flow. All durable state lives in the database; the
// service itself holds only configuration.
type AuthService struct {
	db     *gorm.DB
	hasher crypto.Hasher
	tokens *auth.JWTService
	codes  *OneTimeCodeService
	resets *PasswordResetService
	mailer mail.Mailer
	cfg    AuthConfig
	logger *zap.Logger
}

// NewAuthService wires the auth flows together.
func NewAuthService(
	db *gorm.DB,
	hasher crypto.Hasher,
	tokens *auth.JWTService,
	codes *OneTimeCodeService,
	resets *PasswordResetService,
	mailer mail.Mailer,
	cfg AuthConfig,
) (*AuthService, error) {
	switch {
	case db == nil:
		return nil, errors.New("auth service: db is required")
	case hasher == nil:
		return nil, errors.New("auth service: hasher is required")
	case tokens == nil:
		return nil, errors.New("auth service: token service is required")
	case codes == nil:
		return nil, errors.New("auth service: code service is required")
	case resets == nil:
		return nil, errors.New("auth service: reset service is required")
	case mailer == nil:
		return nil, errors.New("auth service: mailer is required")
	}

	if cfg.LoginMode == "" {
		cfg.LoginMode = LoginModeDirect
	}
	if cfg.LoginMode != LoginModeDirect && cfg.LoginMode != LoginModeGated {
		return nil, fmt.Errorf("auth service: unknown login mode %q", cfg.LoginMode)
	}
	cfg.AdminEmail = NormalizeEmail(cfg.AdminEmail)
	cfg.AppURL = strings.TrimRight(strings.TrimSpace(cfg.AppURL), "/")

	return &AuthService{
		db:     db,
		hasher: hasher,
		tokens: tokens,
		codes:  codes,
		resets: resets,
		mailer: mailer,
		cfg:    cfg,
		logger: logger.WithModule("auth"),
	}, nil
}

// Mode reports the configured login flow.
func (s *AuthService) Mode() LoginMode {
	return s.cfg.LoginMode
}

// Signup creates an unverified account and emails a verification code. The
// caller gets no session token; VerifyEmail is the only way to obtain one for
// a fresh account.
func (s *AuthService) Signup(ctx context.Context, email, password, name string) error {
	email = NormalizeEmail(email)
	name = strings.TrimSpace(name)

	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return appErrors.ErrInternalServer.WithInternal(err)
	}

	user := models.User{
		Email:    email,
		Password: hashed,
		Name:     name,
		IsAdmin:  s.cfg.AdminEmail != "" && email == s.cfg.AdminEmail,
	}
	// The unique index on email is the single arbiter of conflicts; a
	// SELECT-then-INSERT pre-check would leave a window between the two.
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return appErrors.ErrEmailTaken
		}
		return appErrors.ErrInternalServer.WithInternal(err)
	}

	code, err := s.codes.Issue(ctx, email)
	if err != nil {
		return appErrors.ErrInternalServer.WithInternal(err)
	}
	metrics.CodesIssued.WithLabelValues("signup").Inc()

	if err := s.deliver(ctx, email, subjectVerifyAccount, verificationEmailBody(name, code)); err != nil {
		return appErrors.ErrInternalServer.WithInternal(err)
	}

	s.logger.Info("account created", zap.String("email", email), zap.Bool("is_admin", user.IsAdmin))
	return nil
}

// VerifyEmail consumes a signup code, marks the account verified and issues
// the first session token.
func (s *AuthService) VerifyEmail(ctx context.Context, email, code string) (*Session, error) {
	email = NormalizeEmail(email)

	if err := s.codes.Consume(ctx, email, code); err != nil {
		if errors.Is(err, ErrCodeInvalid) {
			return nil, appErrors.ErrInvalidCode
		}
		return nil, appErrors.ErrInternalServer.WithInternal(err)
	}

	user, err := s.findUser(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, appErrors.ErrInvalidCode
	}

	if !user.Verified {
		if err := s.db.WithContext(ctx).Model(&models.User{}).
			Where("email = ?", email).Update("verified", true).Error; err != nil {
			return nil, appErrors.ErrInternalServer.WithInternal(err)
		}
		user.Verified = true
	}

	s.logger.Info("email verified", zap.String("email", email))
	return s.openSession(user)
}

// Login authenticates an email/password pair. In direct mode a successful
// check yields a session immediately; in gated mode it emails a login code
// and the session comes from VerifyLogin.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = NormalizeEmail(email)

	user, err := s.findUser(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || !s.hasher.Verify(password, user.Password) {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, appErrors.ErrInvalidCredentials
	}
	if !user.Verified {
		metrics.AuthAttempts.WithLabelValues("unverified").Inc()
		return nil, appErrors.ErrNotVerified.WithDetail("needs_verify", true)
	}

	if s.cfg.LoginMode == LoginModeGated {
		code, err := s.codes.Issue(ctx, email)
		if err != nil {
			return nil, appErrors.ErrInternalServer.WithInternal(err)
		}
		metrics.CodesIssued.WithLabelValues("login").Inc()
		if err := s.deliver(ctx, email, subjectLoginCode, loginCodeEmailBody(user.Name, code)); err != nil {
			return nil, appErrors.ErrInternalServer.WithInternal(err)
		}
		return &LoginResult{CodeSent: true}, nil
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	session, err := s.openSession(user)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Session: session}, nil
}

// VerifyLogin completes the gated login flow by consuming the emailed code.
func (s *AuthService) VerifyLogin(ctx context.Context, email, code string) (*Session, error) {
	email = NormalizeEmail(email)

	if err := s.codes.Consume(ctx, email, code); err != nil {
		if errors.Is(err, ErrCodeInvalid) {
			return nil, appErrors.ErrInvalidCode
		}
		return nil, appErrors.ErrInternalServer.WithInternal(err)
	}

	user, err := s.findUser(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, appErrors.ErrInvalidCode
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	return s.openSession(user)
}

// ForgotPassword issues a reset token and emails a reset link. The outcome is
// indistinguishable to the caller whether the account exists or not, so the
// endpoint cannot be used to enumerate registered emails.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = NormalizeEmail(email)

	user, err := s.findUser(ctx, email)
	if err != nil {
		return err
	}
	if user == nil || !user.Verified {
		return nil
	}

	token, err := s.resets.Issue(ctx, email)
	if err != nil {
		return appErrors.ErrInternalServer.WithInternal(err)
	}
	metrics.CodesIssued.WithLabelValues("reset").Inc()

	link := fmt.Sprintf("%s/reset-password.html?token=%s", s.cfg.AppURL, token)
	if err := s.deliver(ctx, email, subjectPasswordReset, passwordResetEmailBody(user.Name, link)); err != nil {
		return appErrors.ErrInternalServer.WithInternal(err)
	}

	s.logger.Info("password reset requested", zap.String("email", email))
	return nil
}

// ResetPassword consumes a reset token and stores the new password hash. The
// claim and the UPDATE share one transaction so a failed write does not burn
// the token.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	hashed, err := s.hasher.Hash(newPassword)
	if err != nil {
		return appErrors.ErrInternalServer.WithInternal(err)
	}

	var email string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		email, err = s.resets.WithTx(tx).Consume(ctx, token)
		if err != nil {
			return err
		}
		return tx.Model(&models.User{}).
			Where("email = ?", email).Update("password", hashed).Error
	})
	if err != nil {
		if errors.Is(err, ErrResetTokenInvalid) {
			return appErrors.ErrInvalidResetToken
		}
		return appErrors.ErrInternalServer.WithInternal(err)
	}

	s.logger.Info("password reset completed", zap.String("email", email))
	return nil
}

// ResetTokenValid reports whether a reset link is still usable, without
// consuming it.
func (s *AuthService) ResetTokenValid(ctx context.Context, token string) (bool, error) {
	live, err := s.resets.Live(ctx, token)
	if err != nil {
		return false, appErrors.ErrInternalServer.WithInternal(err)
	}
	return live, nil
}

// CurrentUser resolves the identity behind a verified token's user id.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*UserInfo, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, appErrors.ErrNotFound
	}
	if err != nil {
		return nil, appErrors.ErrInternalServer.WithInternal(err)
	}

	info := userInfo(&user)
	return &info, nil
}

func (s *AuthService) findUser(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, appErrors.ErrInternalServer.WithInternal(err)
	}
	return &user, nil
}

func (s *AuthService) openSession(user *models.User) (*Session, error) {
	token, err := s.tokens.Issue(user.ID, user.Email, user.IsAdmin)
	if err != nil {
		return nil, appErrors.ErrInternalServer.WithInternal(err)
	}
	return &Session{Token: token, User: userInfo(user)}, nil
}

// deliver sends a branded HTML mail. Delivery is part of the flow contract,
// so failures propagate; a disabled SMTP transport passes only when the
// deployment opted in via AllowUnsentMail.
func (s *AuthService) deliver(ctx context.Context, to, subject, body string) error {
	err := s.mailer.Send(ctx, mail.Message{
		To:      []string{to},
		Subject: subject,
		Body:    body,
		HTML:    true,
	})
	if errors.Is(err, mail.ErrSMTPDisabled) && s.cfg.AllowUnsentMail {
		s.logger.Warn("smtp disabled, mail not sent",
			zap.String("to", to), zap.String("subject", subject))
		return nil
	}
	if err != nil {
		s.logger.Error("mail delivery failed",
			zap.String("to", to), zap.String("subject", subject), zap.Error(err))
		return err
	}
	return nil
}

func userInfo(user *models.User) UserInfo {
	return UserInfo{
		ID:       user.ID,
		Email:    user.Email,
		Name:     user.Name,
		IsAdmin:  user.IsAdmin,
		Verified: user.Verified,
	}
}
