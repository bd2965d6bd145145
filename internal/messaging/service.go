// Package messaging implements the keygen, sendkey, getkey, sendmsg and getmsg operations.
package messaging

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/user/securemsg/internal/cipher"
	"github.com/user/securemsg/internal/keys"
	"github.com/user/securemsg/internal/keyserver"
	"github.com/user/securemsg/internal/keystore"
	"github.com/user/securemsg/internal/observability/logger"
)

var (
	ErrKeyPairMissing      = errors.New("messaging: key pair does not exist, run keygen first")
	ErrRecipientKeyMissing = errors.New("messaging: no key stored for recipient, run getkey first")
	ErrNotAuthorized       = errors.New("messaging: private key is not registered for this email")
)

// KeyGenerator creates key pairs.
type KeyGenerator interface {
	Generate(ctx context.Context, keySize int) (keys.KeyPair, error)
}

// Exchange is the remote key and message server.
type Exchange interface {
	PutKey(ctx context.Context, email string, rec keyserver.KeyRecord) error
	GetKey(ctx context.Context, email string) (keyserver.KeyRecord, error)
	PutMessage(ctx context.Context, email string, msg keyserver.Message) error
	GetMessage(ctx context.Context, email string) (keyserver.Message, error)
}

type Service struct {
	gen    KeyGenerator
	store  *keystore.Store
	remote Exchange
}

func New(gen KeyGenerator, store *keystore.Store, remote Exchange) *Service {
	return &Service{gen: gen, store: store, remote: remote}
}

// KeyGen generates a key pair of keySize bits and writes public.key and private.key,
// replacing any existing pair.
func (s *Service) KeyGen(ctx context.Context, keySize int) error {
	kp, err := s.gen.Generate(ctx, keySize)
	if err != nil {
		return fmt.Errorf("keygen: %w", err)
	}
	pub, err := keystore.NewPublicKey(kp.Public)
	if err != nil {
		return err
	}
	priv, err := keystore.NewPrivateKey(kp.Private)
	if err != nil {
		return err
	}
	if err := s.store.SaveKeyPair(pub, priv); err != nil {
		return err
	}

	logger.From(ctx).Info("key pair written", logger.KeySize(keySize), logger.Path(s.store.Dir()))
	return nil
}

// SendKey publishes public.key under email and registers email on the private key.
func (s *Service) SendKey(ctx context.Context, email string) error {
	if !s.store.HasKeyPair() {
		return ErrKeyPairMissing
	}
	pub, err := s.store.LoadPublic()
	if err != nil {
		return err
	}
	priv, err := s.store.LoadPrivate()
	if err != nil {
		return err
	}

	if err := s.remote.PutKey(ctx, email, keyserver.KeyRecord{Email: email, Key: pub.Key}); err != nil {
		return fmt.Errorf("upload public key for %s: %w", email, err)
	}

	if priv.AddEmail(email) {
		if err := s.store.SavePrivate(priv); err != nil {
			return err
		}
	}

	logger.From(ctx).Info("public key sent", logger.Email(email))
	return nil
}

// GetKey downloads the public key of email and stores it as <email>.key.
func (s *Service) GetKey(ctx context.Context, email string) error {
	rec, err := s.remote.GetKey(ctx, email)
	if err != nil {
		return fmt.Errorf("fetch public key for %s: %w", email, err)
	}
	if _, err := keys.DecodeString(rec.Key); err != nil {
		return fmt.Errorf("public key for %s: %w", email, err)
	}

	owner := rec.Email
	if owner == "" {
		owner = email
	}
	if err := s.store.SaveRecipient(email, keystore.PublicKey{Email: &owner, Key: rec.Key}); err != nil {
		return err
	}

	logger.From(ctx).Info("public key stored", logger.Email(email))
	return nil
}

// SendMsg encrypts plaintext with the stored key of email and uploads it.
func (s *Service) SendMsg(ctx context.Context, email, plaintext string) error {
	stored, err := s.store.LoadRecipient(email)
	if errors.Is(err, keystore.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrRecipientKeyMissing, email)
	}
	if err != nil {
		return err
	}
	pub, err := stored.Decode()
	if err != nil {
		return fmt.Errorf("key for %s: %w", email, err)
	}

	ct, err := cipher.EncryptText(plaintext, pub)
	if err != nil {
		return err
	}

	msg := keyserver.Message{Email: email, Content: base64.StdEncoding.EncodeToString(ct)}
	if err := s.remote.PutMessage(ctx, email, msg); err != nil {
		return fmt.Errorf("upload message for %s: %w", email, err)
	}

	logger.From(ctx).Info("message sent", logger.Email(email))
	return nil
}

// GetMsg downloads the message for email and decrypts it with private.key.
// The private key must have been registered for email by SendKey.
func (s *Service) GetMsg(ctx context.Context, email string) (string, error) {
	stored, err := s.store.LoadPrivate()
	if errors.Is(err, keystore.ErrNotFound) {
		return "", ErrKeyPairMissing
	}
	if err != nil {
		return "", err
	}
	if !stored.HasEmail(email) {
		return "", fmt.Errorf("%w: %s", ErrNotAuthorized, email)
	}
	priv, err := stored.Decode()
	if err != nil {
		return "", fmt.Errorf("private key: %w", err)
	}

	msg, err := s.remote.GetMessage(ctx, email)
	if err != nil {
		return "", fmt.Errorf("fetch message for %s: %w", email, err)
	}
	ct, err := base64.StdEncoding.DecodeString(msg.Content)
	if err != nil {
		return "", fmt.Errorf("message for %s is not base64: %w", email, err)
	}
	return cipher.DecryptText(ct, priv)
}
