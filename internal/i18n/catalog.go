// Package i18n holds the user-facing Polish messages shown by the clients.
package i18n

import (
	"embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed messages/*.yaml
var messageFiles embed.FS

// Message keys used by the client packages.
const (
	LoginEmailRequired    = "login.email_required"
	LoginEmailInvalid     = "login.email_invalid"
	LoginPasswordRequired = "login.password_required"
	RegisterConfirmEmail  = "register.confirm_email"

	PasswordTooShort        = "register.password_too_short"
	PasswordConfirmRequired = "register.confirm_required"
	PasswordMismatch        = "register.password_mismatch"

	ResetLinkSent        = "reset.link_sent"
	ResetLinkInvalid     = "reset.link_invalid"
	ResetPasswordUpdated = "reset.password_updated"

	SessionSyncFailed   = "session.sync_failed"
	SessionVerifyFailed = "session.verify_failed"

	GenerateSourceTooShort  = "generate.source_too_short"
	GenerateSourceTooLong   = "generate.source_too_long"
	GenerateMaxRange        = "generate.max_range"
	GenerateSubjectTooLong  = "generate.subject_too_long"
	GenerateNothingSelected = "generate.nothing_selected"
	GenerateSaveFailed      = "generate.save_failed"
	GenerateUnknownError    = "generate.unknown_error"
	GenerateDefaultSubject  = "generate.default_subject"
	GenerateQuestion        = "generate.question"
	GenerateAnswer          = "generate.answer"

	FlashcardsLimitReached = "flashcards.limit_reached"
	FlashcardsCreateFailed = "flashcards.create_failed"
	FlashcardsUpdateFailed = "flashcards.update_failed"
	FlashcardsDeleteFailed = "flashcards.delete_failed"
	FlashcardsUnexpected   = "flashcards.unexpected"
)

// catalogFile mirrors one messages/<locale>.yaml file.
type catalogFile struct {
	Locale      string            `yaml:"locale"`
	AuthErrors  map[string]string `yaml:"auth_errors"`
	AuthDefault string            `yaml:"auth_default"`
	Messages    map[string]string `yaml:"messages"`
}

// Catalog resolves message keys for one locale.
type Catalog struct {
	file catalogFile
}

// NewCatalog loads the embedded catalog for locale.
func NewCatalog(locale string) (*Catalog, error) {
	filename := fmt.Sprintf("messages/%s.yaml", locale)
	data, err := messageFiles.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", filename, err)
	}

	return &Catalog{file: file}, nil
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Polish returns the built-in Polish catalog. It panics if the embedded file
// is malformed, which the package tests rule out.
func Polish() *Catalog {
	defaultOnce.Do(func() {
		c, err := NewCatalog("pl")
		if err != nil {
			panic(err)
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Locale returns the catalog's locale tag.
func (c *Catalog) Locale() string {
	return c.file.Locale
}

// Message formats the message stored under key. Unknown keys come back
// unchanged so a missing translation is visible rather than blank.
func (c *Catalog) Message(key string, args ...any) string {
	msg, ok := c.file.Messages[key]
	if !ok {
		return key
	}
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}

// AuthError maps an identity provider message to user-facing text.
func (c *Catalog) AuthError(providerMessage string) string {
	if msg, ok := c.file.AuthErrors[providerMessage]; ok {
		return msg
	}
	if providerMessage != "" {
		return providerMessage
	}
	return c.file.AuthDefault
}
