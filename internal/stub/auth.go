package stub

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// issueLocked signs an access token for u and stores a fresh refresh token.
func (s *Server) issueLocked(u *user) (map[string]any, error) {
	claims := jwt.MapClaims{
		"sub":       idString(u.id),
		"email":     u.email,
		"role":      strings.ToLower(u.role),
		"firstName": u.firstName,
		"lastName":  u.lastName,
		"gen":       s.generation,
		"iat":       time.Now().Unix(),
		"exp":       time.Now().Add(s.accessTTL).Unix(),
		"iss":       "chatflow-stub",
		"jti":       uuid.NewString(),
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	refresh := uuid.NewString()
	s.refreshTokens[refresh] = u.id
	return map[string]any{"access_token": access, "refresh_token": refresh}, nil
}

// authenticate resolves an access token to its user. Tokens issued before
// the last ExpireAccessTokens call are rejected.
func (s *Server) authenticate(token string) (*user, error) {
	if token == "" {
		return nil, errUnauthorized
	}
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, errUnauthorized
	}
	gen, _ := claims["gen"].(float64)
	if int(gen) < s.generation {
		return nil, errUnauthorized
	}
	sub, _ := claims["sub"].(string)
	for _, u := range s.users {
		if idString(u.id) == sub {
			return u, nil
		}
	}
	return nil, errUnauthorized
}

// AddUser seeds an account and returns its id.
func (s *Server) AddUser(firstName, lastName, email, password, role string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.createUserLocked(firstName, lastName, email, password, role)
	if err != nil {
		return 0, err
	}
	return u.id, nil
}

func (s *Server) createUserLocked(firstName, lastName, email, password, role string) (*user, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, errors.New("email must be an email")
	}
	if len(password) < 6 {
		return nil, errors.New("password must be longer than or equal to 6 characters")
	}
	if s.userByEmail(email) != nil {
		return nil, errors.New("User with this email already exists")
	}
	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}
	u := &user{
		id:        s.id(),
		firstName: firstName,
		lastName:  lastName,
		email:     email,
		hash:      hash,
		role:      role,
	}
	s.users[u.id] = u
	return u, nil
}

func (s *Server) userByEmail(email string) *user {
	for _, u := range s.users {
		if u.email == email {
			return u
		}
	}
	return nil
}

func newUserInput(c *call, key string) (first, last, email, password string, err error) {
	in, err := object(c.vars, key)
	if err != nil {
		return "", "", "", "", err
	}
	password, _ = in["password"].(string)
	return text(in, "firstName"), text(in, "lastName"), text(in, "email"), password, nil
}

func resolveLogin(s *Server, c *call) (any, error) {
	in, err := object(c.vars, "loginInput")
	if err != nil {
		return nil, err
	}
	u := s.userByEmail(strings.ToLower(text(in, "email")))
	password, _ := in["password"].(string)
	if u == nil || bcryptMismatch(u.hash, password) {
		return nil, errors.New("Invalid credentials")
	}
	return s.issueLocked(u)
}

func resolveRegister(s *Server, c *call) (any, error) {
	first, last, email, password, err := newUserInput(c, "registerInput")
	if err != nil {
		return nil, err
	}
	if _, err := s.createUserLocked(first, last, email, password, RoleUser); err != nil {
		return nil, err
	}
	return map[string]any{"message": "Registration successful"}, nil
}

func resolveBootstrapAdmin(s *Server, c *call) (any, error) {
	for _, u := range s.users {
		if u.role == RoleAdmin {
			return nil, errors.New("An admin already exists")
		}
	}
	first, last, email, password, err := newUserInput(c, "bootstrapInput")
	if err != nil {
		return nil, err
	}
	u, err := s.createUserLocked(first, last, email, password, RoleAdmin)
	if err != nil {
		return nil, err
	}
	return s.issueLocked(u)
}

// resolveRefreshToken rotates the refresh token on every use.
func resolveRefreshToken(s *Server, c *call) (any, error) {
	in, err := object(c.vars, "refreshTokenInput")
	if err != nil {
		return nil, err
	}
	if s.refreshFailure {
		return nil, errors.New("Invalid refresh token")
	}
	token := text(in, "refreshToken")
	uid, ok := s.refreshTokens[token]
	if !ok {
		return nil, errors.New("Invalid refresh token")
	}
	delete(s.refreshTokens, token)
	u := s.users[uid]
	if u == nil {
		return nil, errors.New("Invalid refresh token")
	}
	return s.issueLocked(u)
}

func resolveForgotPassword(s *Server, c *call) (any, error) {
	in, err := object(c.vars, "forgotPasswordInput")
	if err != nil {
		return nil, err
	}
	if u := s.userByEmail(strings.ToLower(text(in, "email"))); u != nil {
		token := uuid.NewString()
		s.resetTokens[token] = u.id
		s.log.WithField("email", u.email).WithField("token", token).Info("password reset requested")
	}
	return map[string]any{"message": "If the email exists, a reset link has been sent"}, nil
}

func resolveResetPassword(s *Server, c *call) (any, error) {
	in, err := object(c.vars, "resetPasswordInput")
	if err != nil {
		return nil, err
	}
	uid, ok := s.resetTokens[text(in, "token")]
	if !ok {
		return nil, errors.New("Invalid or expired reset token")
	}
	password, _ := in["newPassword"].(string)
	if len(password) < 6 {
		return nil, errors.New("password must be longer than or equal to 6 characters")
	}
	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}
	delete(s.resetTokens, text(in, "token"))
	s.users[uid].hash = hash
	return map[string]any{"message": "Password has been reset"}, nil
}

// ResetToken returns a pending reset token for email, for tests.
func (s *Server) ResetToken(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.userByEmail(strings.ToLower(email))
	if u == nil {
		return ""
	}
	for token, uid := range s.resetTokens {
		if uid == u.id {
			return token
		}
	}
	return ""
}

func hashPassword(password string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

func bcryptMismatch(hash []byte, password string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil
}
