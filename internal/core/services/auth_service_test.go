package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"chamahub/internal/config"
	"chamahub/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_Validation(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.svc.Register(context.Background(), &RegisterInput{
		Email:       "not-an-email",
		Password:    "short",
		FirstName:   "W",
		LastName:    "Kamau",
		PhoneNumber: "12345",
	})

	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Contains(t, appErr.Fields, "email")
	assert.Contains(t, appErr.Fields, "password")
	assert.Contains(t, appErr.Fields, "firstName")
	assert.Contains(t, appErr.Fields, "phoneNumber")
	assert.NotContains(t, appErr.Fields, "lastName")
}

func TestPasswordsPastBcryptLimitAreInvalidInput(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	long := "Aa1" + strings.Repeat("x", 80)

	_, err := f.svc.Register(ctx, &RegisterInput{
		Email: "long@example.com", Password: long,
		FirstName: "Long", LastName: "Password", PhoneNumber: "0711000099",
	})
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, domain.KindInvalidInput, appErr.Kind)
	assert.Contains(t, appErr.Fields, "password")

	resp := f.register(t, "short@example.com", "0711000098")
	err = f.svc.ResetPassword(ctx, &ResetPasswordInput{Token: "anything", Password: long})
	appErr, ok = domain.AsAppError(err)
	require.True(t, ok)
	assert.Contains(t, appErr.Fields, "password")

	users := NewUserService(fakeUsers{f.store}, fakeTokens{f.store})
	err = users.ChangePassword(ctx, resp.User.ID, &ChangePasswordInput{OldPassword: testPassword, NewPassword: long})
	appErr, ok = domain.AsAppError(err)
	require.True(t, ok)
	assert.Contains(t, appErr.Fields, "new_password")
}

func TestRegister_NormalizesAndRejectsDuplicates(t *testing.T) {
	f := newAuthFixture(t)

	resp := f.register(t, "  Wanjiku@Example.com ", "0712 345 678")
	assert.Equal(t, "wanjiku@example.com", resp.User.Email)
	assert.Equal(t, "+254712345678", resp.User.Phone)
	assert.False(t, resp.User.EmailVerified)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Empty(t, resp.RefreshToken)

	ctx := context.Background()
	_, err := f.svc.Register(ctx, &RegisterInput{
		Email: "WANJIKU@example.com", Password: testPassword,
		FirstName: "Other", LastName: "Person", PhoneNumber: "0798765432",
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateIdentity)

	_, err = f.svc.Register(ctx, &RegisterInput{
		Email: "other@example.com", Password: testPassword,
		FirstName: "Other", LastName: "Person", PhoneNumber: "+254712345678",
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateIdentity)
}

func TestVerifyEmail_SingleUse(t *testing.T) {
	f := newAuthFixture(t, func(cfg *config.Config) { cfg.Verification.RequireVerifiedEmail = true })
	ctx := context.Background()

	resp := f.register(t, "akinyi@example.com", "0711000001")

	_, err := f.svc.Login(ctx, &LoginInput{Email: "akinyi@example.com", Password: testPassword}, deviceA)
	assert.ErrorIs(t, err, domain.ErrEmailNotVerified)

	token := f.notifier.emailToken(resp.User.ID)
	require.NotEmpty(t, token)
	require.NoError(t, f.svc.VerifyEmail(ctx, token))
	assert.ErrorIs(t, f.svc.VerifyEmail(ctx, token), domain.ErrInvalidVerifyToken)

	login := f.login(t, "akinyi@example.com", deviceA)
	assert.True(t, login.User.EmailVerified)
	assert.NotEmpty(t, login.RefreshToken)
}

func TestResendEmailVerification_Cooldown(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	resp := f.register(t, "otieno@example.com", "0711000002")
	first := f.notifier.emailToken(resp.User.ID)

	err := f.svc.ResendEmailVerification(ctx, resp.User.ID)
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.ErrorIs(t, err, domain.ErrResendCooldown)
	assert.Positive(t, appErr.RetryAfter)

	later := time.Now().Add(f.cfg.Verification.EmailCooldown + time.Minute)
	f.svc.now = func() time.Time { return later }
	require.NoError(t, f.svc.ResendEmailVerification(ctx, resp.User.ID))

	second := f.notifier.emailToken(resp.User.ID)
	assert.NotEqual(t, first, second)
	assert.ErrorIs(t, f.svc.VerifyEmail(ctx, first), domain.ErrInvalidVerifyToken)
	require.NoError(t, f.svc.VerifyEmail(ctx, second))
	assert.ErrorIs(t, f.svc.ResendEmailVerification(ctx, resp.User.ID), domain.ErrAlreadyVerified)
}

func TestLogin_InvalidCredentialsAreIndistinguishable(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.register(t, "kip@example.com", "0711000003")

	_, errUnknown := f.svc.Login(ctx, &LoginInput{Email: "nobody@example.com", Password: testPassword}, deviceA)
	_, errWrong := f.svc.Login(ctx, &LoginInput{Email: "kip@example.com", Password: "Wrong12345"}, deviceA)

	assert.ErrorIs(t, errUnknown, domain.ErrInvalidCredentials)
	assert.ErrorIs(t, errWrong, domain.ErrInvalidCredentials)
	assert.Equal(t, errUnknown.Error(), errWrong.Error())
}

func TestLogin_RateLimitedPerEmail(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.register(t, "muthoni@example.com", "0711000004")

	bad := &LoginInput{Email: "muthoni@example.com", Password: "Wrong12345"}
	for i := 0; i < f.cfg.RateLimit.LoginPerEmail; i++ {
		_, err := f.svc.Login(ctx, bad, deviceA)
		require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	}

	// Even the right password is refused while the window is exhausted
	_, err := f.svc.Login(ctx, &LoginInput{Email: "muthoni@example.com", Password: testPassword}, deviceA)
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Positive(t, appErr.RetryAfter)
}

func TestLogin_InactiveUser(t *testing.T) {
	f := newAuthFixture(t)
	resp := f.register(t, "juma@example.com", "0711000005")

	f.store.mu.Lock()
	f.store.users[resp.User.ID].IsActive = false
	f.store.mu.Unlock()

	_, err := f.svc.Login(context.Background(), &LoginInput{Email: "juma@example.com", Password: testPassword}, deviceA)
	assert.ErrorIs(t, err, domain.ErrUserInactive)
}

func TestLogin_SameDeviceReplacesSession(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	resp := f.register(t, "njeri@example.com", "0711000006")

	first := f.login(t, "njeri@example.com", deviceA)
	f.login(t, "njeri@example.com", deviceA)
	f.login(t, "njeri@example.com", deviceB)

	active, err := fakeTokens{f.store}.CountActiveByUserID(ctx, resp.User.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, active)

	_, err = f.svc.Refresh(ctx, first.RefreshToken, deviceA)
	assert.ErrorIs(t, err, domain.ErrInvalidRefresh)
}

func TestRefresh_RotationAndReplay(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.register(t, "wafula@example.com", "0711000007")
	login := f.login(t, "wafula@example.com", deviceA)

	// 1. First use rotates
	second, err := f.svc.Refresh(ctx, login.RefreshToken, deviceA)
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, second.RefreshToken)
	assert.NotEmpty(t, second.AccessToken)

	// 2. Replaying the rotated token fails
	_, err = f.svc.Refresh(ctx, login.RefreshToken, deviceA)
	assert.ErrorIs(t, err, domain.ErrInvalidRefresh)

	// 3. The replacement still works
	third, err := f.svc.Refresh(ctx, second.RefreshToken, deviceA)
	require.NoError(t, err)
	assert.NotEmpty(t, third.RefreshToken)
}

func TestRefresh_ReuseFromAnotherDeviceRevokesEverything(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	resp := f.register(t, "chebet@example.com", "0711000008")
	login := f.login(t, "chebet@example.com", deviceA)

	rotated, err := f.svc.Refresh(ctx, login.RefreshToken, deviceA)
	require.NoError(t, err)

	_, err = f.svc.Refresh(ctx, login.RefreshToken, deviceB)
	assert.ErrorIs(t, err, domain.ErrInvalidRefresh)

	assert.Eventually(t, func() bool {
		n, err := fakeTokens{f.store}.CountActiveByUserID(ctx, resp.User.ID)
		return err == nil && n == 0
	}, time.Second, 10*time.Millisecond)

	_, err = f.svc.Refresh(ctx, rotated.RefreshToken, deviceA)
	assert.ErrorIs(t, err, domain.ErrInvalidRefresh)
}

func TestRefresh_RejectsGarbageAndAccessTokens(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.register(t, "ouma@example.com", "0711000009")
	login := f.login(t, "ouma@example.com", deviceA)

	_, err := f.svc.Refresh(ctx, "not-a-token", deviceA)
	assert.ErrorIs(t, err, domain.ErrInvalidRefresh)

	_, err = f.svc.Refresh(ctx, login.AccessToken, deviceA)
	assert.ErrorIs(t, err, domain.ErrInvalidRefresh)
}

func TestLogout_RevokesAllDevices(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	resp := f.register(t, "mwangi@example.com", "0711000010")

	onA := f.login(t, "mwangi@example.com", deviceA)
	onB := f.login(t, "mwangi@example.com", deviceB)

	require.NoError(t, f.svc.Logout(ctx, resp.User.ID))

	_, err := f.svc.Refresh(ctx, onA.RefreshToken, deviceA)
	assert.ErrorIs(t, err, domain.ErrInvalidRefresh)
	_, err = f.svc.Refresh(ctx, onB.RefreshToken, deviceB)
	assert.ErrorIs(t, err, domain.ErrInvalidRefresh)
}

func TestAuthenticate(t *testing.T) {
	f := newAuthFixture(t)
	resp := f.register(t, "atieno@example.com", "0711000011")

	userID, err := f.svc.Authenticate(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, userID)

	_, err = f.svc.Authenticate("")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	_, err = f.svc.Authenticate("abc.def.ghi")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	me, err := f.svc.Me(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, "atieno@example.com", me.Email)
}

func TestForgotAndResetPassword(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	resp := f.register(t, "kendi@example.com", "0711000012")
	session := f.login(t, "kendi@example.com", deviceA)

	// Unknown emails look the same but send nothing
	require.NoError(t, f.svc.ForgotPassword(ctx, "ghost@example.com"))

	require.NoError(t, f.svc.ForgotPassword(ctx, "Kendi@Example.com"))
	token, ok := f.notifier.reset(resp.User.ID)
	require.True(t, ok)

	const newPassword = "Mavuno2027x"
	require.NoError(t, f.svc.ResetPassword(ctx, &ResetPasswordInput{Token: token, Password: newPassword}))
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, &ResetPasswordInput{Token: token, Password: newPassword}),
		domain.ErrInvalidResetToken)

	// Existing sessions end with the reset
	_, err := f.svc.Refresh(ctx, session.RefreshToken, deviceA)
	assert.ErrorIs(t, err, domain.ErrInvalidRefresh)

	_, err = f.svc.Login(ctx, &LoginInput{Email: "kendi@example.com", Password: testPassword}, deviceA)
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, &LoginInput{Email: "kendi@example.com", Password: newPassword}, deviceA)
	assert.NoError(t, err)
}

func TestForgotPassword_RateLimited(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	for i := 0; i < f.cfg.RateLimit.ResetPerEmail; i++ {
		require.NoError(t, f.svc.ForgotPassword(ctx, "wambui@example.com"))
	}
	assert.ErrorIs(t, f.svc.ForgotPassword(ctx, "wambui@example.com"), domain.ErrRateLimited)
}

func TestVerifyPhone_SixthAttemptRateLimited(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	resp := f.register(t, "nyambura@example.com", "0711000013")
	code := f.notifier.otp(resp.User.ID)
	require.Len(t, code, 6)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	for i := 0; i < 5; i++ {
		require.ErrorIs(t, f.svc.VerifyPhone(ctx, resp.User.ID, wrong), domain.ErrInvalidOTP)
	}

	// The right code no longer helps
	assert.ErrorIs(t, f.svc.VerifyPhone(ctx, resp.User.ID, code), domain.ErrTooManyAttempts)
	assert.False(t, f.store.userByEmail("nyambura@example.com").PhoneVerified)
}

func TestVerifyPhone_LockedUntilResend(t *testing.T) {
	f := newAuthFixture(t, func(cfg *config.Config) { cfg.RateLimit.OTPPerUser = 100 })
	ctx := context.Background()
	resp := f.register(t, "barasa@example.com", "0711000014")
	code := f.notifier.otp(resp.User.ID)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	for i := 0; i < f.cfg.Verification.OTPMaxAttempts; i++ {
		require.ErrorIs(t, f.svc.VerifyPhone(ctx, resp.User.ID, wrong), domain.ErrInvalidOTP)
	}
	assert.ErrorIs(t, f.svc.VerifyPhone(ctx, resp.User.ID, code), domain.ErrTooManyAttempts)

	// A resend inside the cooldown is refused
	assert.ErrorIs(t, f.svc.ResendPhoneVerification(ctx, resp.User.ID), domain.ErrResendCooldown)

	later := time.Now().Add(f.cfg.Verification.PhoneCooldown + time.Minute)
	f.svc.now = func() time.Time { return later }
	require.NoError(t, f.svc.ResendPhoneVerification(ctx, resp.User.ID))

	fresh := f.notifier.otp(resp.User.ID)
	require.NoError(t, f.svc.VerifyPhone(ctx, resp.User.ID, fresh))
	assert.True(t, f.store.userByEmail("barasa@example.com").PhoneVerified)
	assert.ErrorIs(t, f.svc.VerifyPhone(ctx, resp.User.ID, fresh), domain.ErrAlreadyVerified)
}

func TestVerifyPhone_ExpiredCode(t *testing.T) {
	f := newAuthFixture(t)
	resp := f.register(t, "omondi@example.com", "0711000015")
	code := f.notifier.otp(resp.User.ID)

	later := time.Now().Add(f.cfg.Verification.PhoneOTPTTL + time.Minute)
	f.svc.now = func() time.Time { return later }

	assert.ErrorIs(t, f.svc.VerifyPhone(context.Background(), resp.User.ID, code), domain.ErrInvalidOTP)
	assert.ErrorIs(t, f.svc.VerifyPhone(context.Background(), resp.User.ID, "12"), domain.ErrInvalidInput)
}
