package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"eventhub/internal/apperr"
	"eventhub/internal/auth"
	"eventhub/internal/guard"
	"eventhub/internal/mailer"
	"eventhub/internal/model"
	"eventhub/internal/repo"
)

type RegisterInput struct {
	Name     string     `json:"name" validate:"notblank,max=100"`
	Email    string     `json:"email" validate:"required,email"`
	Password string     `json:"password" validate:"required,min=8,max=72"`
	Phone    string     `json:"phone" validate:"max=30"`
	Role     model.Role `json:"role" validate:"oneof=user vendor"`
}

type ProfileInput struct {
	Name     *string `json:"name" validate:"omitempty,notblank,max=100"`
	Phone    *string `json:"phone" validate:"omitempty,max=30"`
	Bio      *string `json:"bio" validate:"omitempty,max=1000"`
	Location *string `json:"location" validate:"omitempty,max=200"`
	Avatar   *string `json:"avatar" validate:"omitempty,url"`
}

type ResetPasswordInput struct {
	Email       string `json:"email" validate:"required,email"`
	Code        string `json:"code" validate:"required,len=6,numeric"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=72"`
}

var errBadCredentials = apperr.Unauthenticated("invalid email or password")

func (s *Service) RegisterUser(ctx context.Context, in RegisterInput) (u model.User, err error) {
	defer s.track("register_user", time.Now(), &err)

	in.Email = normalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if in.Role == "" {
		in.Role = model.RoleUser
	}
	if err := validate(ctx, in); err != nil {
		return u, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return u, err
	}

	err = s.inTx(ctx, func(r *repo.Set) error {
		if _, err := r.Users.FindByEmail(ctx, in.Email); err == nil {
			return apperr.Duplicate("user email")
		} else if !isNotFound(err) {
			return err
		}
		now := s.now().UTC()
		u = model.User{
			Name:      in.Name,
			Email:     in.Email,
			Phone:     strings.TrimSpace(in.Phone),
			Password:  hash,
			Role:      in.Role,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return r.Users.Create(ctx, &u)
	})
	if err != nil {
		return model.User{}, err
	}
	s.log.Info().Str("user_id", u.ID).Str("role", string(u.Role)).Msg("user registered")
	return u.Redacted(), nil
}

// EnsureAdmin creates the bootstrap admin account unless the email is taken.
func (s *Service) EnsureAdmin(ctx context.Context, name, email, password string) (err error) {
	defer s.track("ensure_admin", time.Now(), &err)

	email = normalizeEmail(email)
	if email == "" || password == "" {
		return apperr.Validation("admin email and password are required")
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	return s.inTx(ctx, func(r *repo.Set) error {
		if _, err := r.Users.FindByEmail(ctx, email); err == nil {
			return nil
		} else if !isNotFound(err) {
			return err
		}
		now := s.now().UTC()
		u := model.User{Name: name, Email: email, Password: hash, Role: model.RoleAdmin, CreatedAt: now, UpdatedAt: now}
		if err := r.Users.Create(ctx, &u); err != nil {
			return err
		}
		s.log.Info().Str("user_id", u.ID).Msg("admin account created")
		return nil
	})
}

// Login checks the password and emails a one-time code. The session is
// only issued by VerifyLoginCode.
func (s *Service) Login(ctx context.Context, email, password string) (err error) {
	defer s.track("login", time.Now(), &err)

	email = normalizeEmail(email)
	var msg mailer.Message
	err = s.inTx(ctx, func(r *repo.Set) error {
		u, err := r.Users.FindByEmail(ctx, email)
		if isNotFound(err) {
			return errBadCredentials
		}
		if err != nil {
			return err
		}
		if !s.hasher.Compare(u.Password, password) {
			return errBadCredentials
		}
		if u.IsBlocked {
			return apperr.NotAuthorized("account is blocked")
		}
		code, err := s.issueCode(&u)
		if err != nil {
			return err
		}
		msg = mailer.CodeMessage(u.Email, code, mailer.PurposeLogin, s.cfg.OTPTTL.String())
		return r.Users.Update(ctx, u)
	})
	if err != nil {
		return err
	}
	s.notify(ctx, msg)
	return nil
}

func (s *Service) VerifyLoginCode(ctx context.Context, email, code string) (u model.User, err error) {
	defer s.track("verify_login_code", time.Now(), &err)

	email = normalizeEmail(email)
	err = s.inTx(ctx, func(r *repo.Set) error {
		found, err := r.Users.FindByEmail(ctx, email)
		if isNotFound(err) {
			return apperr.Unauthenticated("invalid or expired code")
		}
		if err != nil {
			return err
		}
		if !found.CanSignIn() {
			return apperr.NotAuthorized("account is blocked")
		}
		if err := s.consumeCode(&found, code); err != nil {
			return err
		}
		u = found.Redacted()
		return r.Users.Update(ctx, found)
	})
	return u, err
}

// RequestPasswordReset emails a reset code. Unknown or unusable accounts are
// ignored silently so the endpoint cannot be used to probe for emails.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (err error) {
	defer s.track("request_password_reset", time.Now(), &err)

	email = normalizeEmail(email)
	var msg mailer.Message
	err = s.inTx(ctx, func(r *repo.Set) error {
		u, err := r.Users.FindByEmail(ctx, email)
		if isNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		if !u.CanSignIn() {
			return nil
		}
		code, err := s.issueCode(&u)
		if err != nil {
			return err
		}
		msg = mailer.CodeMessage(u.Email, code, mailer.PurposePasswordReset, s.cfg.OTPTTL.String())
		return r.Users.Update(ctx, u)
	})
	if err != nil {
		return err
	}
	s.notify(ctx, msg)
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, in ResetPasswordInput) (err error) {
	defer s.track("reset_password", time.Now(), &err)

	in.Email = normalizeEmail(in.Email)
	if err := validate(ctx, in); err != nil {
		return err
	}
	hash, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return err
	}
	return s.inTx(ctx, func(r *repo.Set) error {
		u, err := r.Users.FindByEmail(ctx, in.Email)
		if isNotFound(err) {
			return apperr.Unauthenticated("invalid or expired code")
		}
		if err != nil {
			return err
		}
		if !u.CanSignIn() {
			return apperr.NotAuthorized("account is blocked")
		}
		if err := s.consumeCode(&u, in.Code); err != nil {
			return err
		}
		u.Password = hash
		u.UpdatedAt = s.now().UTC()
		return r.Users.Update(ctx, u)
	})
}

func (s *Service) issueCode(u *model.User) (string, error) {
	code, err := auth.NewOTP()
	if err != nil {
		return "", err
	}
	exp := s.now().UTC().Add(s.cfg.OTPTTL)
	u.OTP = code
	u.OTPExpires = &exp
	return code, nil
}

func (s *Service) consumeCode(u *model.User, code string) error {
	if u.OTP == "" || u.OTPExpires == nil || s.now().After(*u.OTPExpires) ||
		subtle.ConstantTimeCompare([]byte(u.OTP), []byte(code)) != 1 {
		return apperr.Unauthenticated("invalid or expired code")
	}
	u.OTP = ""
	u.OTPExpires = nil
	return nil
}

func (s *Service) GetProfile(ctx context.Context, p guard.Principal) (u model.User, err error) {
	defer s.track("get_profile", time.Now(), &err)

	if err = s.authorize(ctx, &p); err != nil {
		return u, err
	}

	err = s.inView(ctx, func(r *repo.Set) error {
		found, err := r.Users.FindByID(ctx, p.UserID)
		if err != nil {
			return err
		}
		if found.State() == model.AccountAnonymized {
			return apperr.NotFound("user", p.UserID)
		}
		u = found.Redacted()
		return nil
	})
	return u, err
}

func (s *Service) UpdateProfile(ctx context.Context, p guard.Principal, in ProfileInput) (u model.User, err error) {
	defer s.track("update_profile", time.Now(), &err)

	if err = s.authorize(ctx, &p); err != nil {
		return u, err
	}

	if err := validate(ctx, in); err != nil {
		return u, err
	}
	err = s.inTx(ctx, func(r *repo.Set) error {
		found, err := r.Users.FindByID(ctx, p.UserID)
		if err != nil {
			return err
		}
		if found.State() == model.AccountAnonymized {
			return apperr.NotFound("user", p.UserID)
		}
		if in.Name != nil {
			found.Name = strings.TrimSpace(*in.Name)
		}
		if in.Phone != nil {
			found.Phone = strings.TrimSpace(*in.Phone)
		}
		if in.Bio != nil {
			found.Bio = *in.Bio
		}
		if in.Location != nil {
			found.Location = *in.Location
		}
		if in.Avatar != nil {
			found.Avatar = *in.Avatar
		}
		found.UpdatedAt = s.now().UTC()
		u = found.Redacted()
		return r.Users.Update(ctx, found)
	})
	return u, err
}

func (s *Service) ListUsers(ctx context.Context, p guard.Principal) (users []model.User, err error) {
	defer s.track("list_users", time.Now(), &err)

	if err = s.authorize(ctx, &p); err != nil {
		return users, err
	}

	if err := guard.AssertRole(p, model.RoleAdmin); err != nil {
		return nil, err
	}
	err = s.inView(ctx, func(r *repo.Set) error {
		all, err := r.Users.List(ctx)
		if err != nil {
			return err
		}
		users = make([]model.User, 0, len(all))
		for _, u := range all {
			users = append(users, u.Redacted())
		}
		return nil
	})
	return users, err
}

func (s *Service) SetUserBlocked(ctx context.Context, p guard.Principal, userID string, blocked bool) (u model.User, err error) {
	defer s.track("set_user_blocked", time.Now(), &err)

	if err = s.authorize(ctx, &p); err != nil {
		return u, err
	}

	if err := guard.AssertRole(p, model.RoleAdmin); err != nil {
		return u, err
	}
	if userID == p.UserID {
		return u, apperr.Validation("admins cannot block their own account")
	}
	err = s.inTx(ctx, func(r *repo.Set) error {
		found, err := r.Users.FindByID(ctx, userID)
		if err != nil {
			return err
		}
		if found.State() == model.AccountAnonymized {
			return apperr.NotFound("user", userID)
		}
		found.IsBlocked = blocked
		found.UpdatedAt = s.now().UTC()
		u = found.Redacted()
		return r.Users.Update(ctx, found)
	})
	if err == nil {
		s.log.Info().Str("user_id", userID).Bool("blocked", blocked).Str("by", p.UserID).Msg("user block state changed")
	}
	return u, err
}

// DeleteUser anonymizes the account in place: the row stays so references
// keep resolving, while the email and phone are freed for reuse and the
// password can no longer match. A vendor's profile is soft-deleted with it.
func (s *Service) DeleteUser(ctx context.Context, p guard.Principal, userID string) (err error) {
	defer s.track("delete_user", time.Now(), &err)

	if err = s.authorize(ctx, &p); err != nil {
		return err
	}

	if err := guard.AssertRole(p, model.RoleAdmin); err != nil {
		return err
	}
	if userID == p.UserID {
		return apperr.Validation("admins cannot delete their own account")
	}
	err = s.inTx(ctx, func(r *repo.Set) error {
		u, err := r.Users.FindByID(ctx, userID)
		if err != nil {
			return err
		}
		if u.State() == model.AccountAnonymized {
			return apperr.NotFound("user", userID)
		}

		now := s.now().UTC()
		stamp := now.UnixMilli()
		u.Email = fmt.Sprintf("deleted_%d_%s", stamp, u.Email)
		if u.Phone != "" {
			u.Phone = fmt.Sprintf("deleted_%d_%s", stamp, u.Phone)
		}
		u.Password = auth.UnusablePassword
		u.Bio, u.Location, u.Avatar = "", "", ""
		u.OTP, u.OTPExpires = "", nil
		u.IsDeleted = true
		u.UpdatedAt = now
		if err := r.Users.Update(ctx, u); err != nil {
			return err
		}

		if u.Role != model.RoleVendor {
			return nil
		}
		profile, err := r.Vendors.FindByUser(ctx, u.ID)
		if isNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		profile.IsDeleted = true
		profile.UpdatedAt = now
		return r.Vendors.Update(ctx, profile)
	})
	if err == nil {
		s.log.Info().Str("user_id", userID).Str("by", p.UserID).Msg("user anonymized")
	}
	return err
}
