// Package secrets stores mail credentials in the OS keychain; nothing
// sensitive ever lands in the config file or the database.
package secrets

import (
	"errors"
	"fmt"
	"strings"

	"autoapply-engine/internal/config"

	"github.com/zalando/go-keyring"
)

// KeyringService groups this app's secrets in the OS keychain.
const KeyringService = "autoapply"

func get(account string) (string, error) {
	if strings.TrimSpace(account) == "" {
		return "", errors.New("keyring account name is empty")
	}
	pw, err := keyring.Get(KeyringService, account)
	if err != nil || strings.TrimSpace(pw) == "" {
		return "", fmt.Errorf("password for %s not found in keychain", account)
	}
	return pw, nil
}

func set(account, password string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(password) == "" {
		return errors.New("password is empty")
	}
	return keyring.Set(KeyringService, account, password)
}

func del(account string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	return keyring.Delete(KeyringService, account)
}

// SMTP credentials drive outgoing confirmation and application mail.

func SMTPKeyringAccount(cfg config.Config) string {
	return fmt.Sprintf("autoapply:smtp:%s@%s", cfg.Notify.Username, cfg.Notify.SMTPHost)
}

func GetSMTPPassword(account string) (string, error) { return get(account) }
func SetSMTPPassword(account, pw string) error       { return set(account, pw) }
func DeleteSMTPPassword(account string) error        { return del(account) }

// IMAP credentials drive the reply watcher.

func IMAPKeyringAccount(cfg config.Config) string {
	return fmt.Sprintf("autoapply:imap:%s@%s", cfg.Replies.Username, cfg.Replies.IMAPHost)
}

func GetIMAPPassword(account string) (string, error) { return get(account) }
func SetIMAPPassword(account, pw string) error       { return set(account, pw) }
func DeleteIMAPPassword(account string) error        { return del(account) }
