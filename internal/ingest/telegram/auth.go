package telegram

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"

	"github.com/vibeanalyze/vibeanalyze-backend/internal/platform/config"
)

// ErrSignupNotSupported indicates that signup is not supported.
var ErrSignupNotSupported = errors.New("signup not supported")

const minPhoneLength = 10

// terminalAuth answers the gotd auth flow from config, falling back to stdin.
type terminalAuth struct {
	cfg    *config.Config
	logger *zerolog.Logger
	in     *bufio.Reader
}

func (a *terminalAuth) flow() auth.Flow {
	return auth.NewFlow(a, auth.SendCodeOptions{})
}

func (a *terminalAuth) prompt(label string) (string, error) {
	if a.in == nil {
		a.in = bufio.NewReader(os.Stdin)
	}

	fmt.Print(label)

	line, err := a.in.ReadString('\n')
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(line), nil
}

func (a *terminalAuth) Code(_ context.Context, _ *tg.AuthSentCode) (string, error) {
	return a.prompt("Enter code: ")
}

func (a *terminalAuth) Phone(_ context.Context) (string, error) {
	phone := a.cfg.TGPhone
	if phone == "" {
		var err error

		if phone, err = a.prompt("Enter phone: "); err != nil {
			return "", err
		}
	}

	phone = sanitizePhone(phone)
	a.logger.Info().Str("phone", maskPhone(phone)).Msg("Using phone number")

	if len(phone) < minPhoneLength {
		a.logger.Warn().Int("length", len(phone)).Msg("Phone number seems too short, ensure it includes country code (e.g. +1...)")
	}

	return phone, nil
}

func (a *terminalAuth) Password(_ context.Context) (string, error) {
	if a.cfg.TG2FAPassword != "" {
		return a.cfg.TG2FAPassword, nil
	}

	return a.prompt("Enter 2FA password: ")
}

func (a *terminalAuth) AcceptTermsOfService(_ context.Context, _ tg.HelpTermsOfService) error {
	return nil
}

func (a *terminalAuth) SignUp(_ context.Context) (auth.UserInfo, error) {
	return auth.UserInfo{}, ErrSignupNotSupported
}

func sanitizePhone(phone string) string {
	var sb strings.Builder

	phone = strings.TrimSpace(phone)

	if strings.HasPrefix(phone, "+") {
		sb.WriteByte('+')

		phone = phone[1:]
	}

	for _, char := range phone {
		if char >= '0' && char <= '9' {
			sb.WriteRune(char)
		}
	}

	return sb.String()
}

func maskPhone(phone string) string {
	if len(phone) < 7 {
		return "****"
	}

	return phone[:3] + "****" + phone[len(phone)-2:]
}
