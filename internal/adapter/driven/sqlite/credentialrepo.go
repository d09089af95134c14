package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/faisalnh/Exim-Accurate-sub001/internal/domain/model"
	"github.com/faisalnh/Exim-Accurate-sub001/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port interface.
// The signature secret and both tokens are encrypted with AES-256-GCM before
// write and decrypted after read. The app key and host are stored in clear.
type CredentialRepo struct {
	db  *DB
	key []byte // 32-byte AES-256 key; nil when encryption is disabled.
}

// NewCredentialRepo creates a new CredentialRepo. key must be 32 bytes for AES-256-GCM,
// or nil to disable credential storage (all operations will return driven.ErrEncryptionKeyNotSet).
func NewCredentialRepo(db *DB, key []byte) *CredentialRepo {
	return &CredentialRepo{db: db, key: key}
}

const credentialColumns = `id, owner_id, app_key, signature_secret, api_token, refresh_token, host, created_at, updated_at`

// Create persists a new credential, assigning its ID and timestamps when empty.
func (r *CredentialRepo) Create(ctx context.Context, cred model.Credential) (model.Credential, error) {
	if r.key == nil {
		return model.Credential{}, driven.ErrEncryptionKeyNotSet
	}

	if cred.ID == "" {
		cred.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = now
	}
	cred.UpdatedAt = now

	secret, err := r.encrypt(cred.SignatureSecret)
	if err != nil {
		return model.Credential{}, err
	}
	apiToken, err := r.encrypt(cred.APIToken)
	if err != nil {
		return model.Credential{}, err
	}
	refreshToken, err := r.encrypt(cred.RefreshToken)
	if err != nil {
		return model.Credential{}, err
	}

	const query = `INSERT INTO credentials (` + credentialColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.Writer.ExecContext(ctx, query,
		cred.ID, cred.OwnerID, cred.AppKey, secret, apiToken, refreshToken, cred.Host,
		formatTime(cred.CreatedAt), formatTime(cred.UpdatedAt),
	)
	if err != nil {
		return model.Credential{}, fmt.Errorf("insert credential %s: %w", cred.ID, err)
	}

	return cred, nil
}

// Get returns the credential when it belongs to ownerID.
func (r *CredentialRepo) Get(ctx context.Context, id, ownerID string) (*model.Credential, error) {
	if r.key == nil {
		return nil, driven.ErrEncryptionKeyNotSet
	}

	const query = `SELECT ` + credentialColumns + ` FROM credentials WHERE id = ? AND owner_id = ?`
	cred, err := r.scanCredential(r.db.Reader.QueryRowContext(ctx, query, id, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &model.NotFoundError{Kind: "credential", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get credential %s: %w", id, err)
	}
	return cred, nil
}

// ListByOwner returns every credential owned by ownerID, newest first.
func (r *CredentialRepo) ListByOwner(ctx context.Context, ownerID string) ([]model.Credential, error) {
	if r.key == nil {
		return nil, driven.ErrEncryptionKeyNotSet
	}

	const query = `SELECT ` + credentialColumns + ` FROM credentials WHERE owner_id = ? ORDER BY created_at DESC, id`
	rows, err := r.db.Reader.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	creds := []model.Credential{}
	for rows.Next() {
		cred, err := r.scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		creds = append(creds, *cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}

	return creds, nil
}

// UpdateTokens replaces the token pair and host of an owned credential.
func (r *CredentialRepo) UpdateTokens(ctx context.Context, id, ownerID string, grant model.TokenGrant, host string) error {
	if r.key == nil {
		return driven.ErrEncryptionKeyNotSet
	}

	apiToken, err := r.encrypt(grant.APIToken)
	if err != nil {
		return err
	}
	refreshToken, err := r.encrypt(grant.RefreshToken)
	if err != nil {
		return err
	}

	const query = `UPDATE credentials SET api_token = ?, refresh_token = ?, host = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?`
	res, err := r.db.Writer.ExecContext(ctx, query, apiToken, refreshToken, host, formatTime(time.Now().UTC()), id, ownerID)
	if err != nil {
		return fmt.Errorf("update credential tokens %s: %w", id, err)
	}
	return requireAffected(res, "credential", id)
}

// Delete removes an owned credential. Its jobs and job items go with it.
func (r *CredentialRepo) Delete(ctx context.Context, id, ownerID string) error {
	const query = `DELETE FROM credentials WHERE id = ? AND owner_id = ?`
	res, err := r.db.Writer.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete credential %s: %w", id, err)
	}
	return requireAffected(res, "credential", id)
}

func (r *CredentialRepo) scanCredential(s scanner) (*model.Credential, error) {
	var (
		cred                      model.Credential
		secret, apiToken, refresh string
		createdAt, updatedAt      string
	)
	if err := s.Scan(
		&cred.ID, &cred.OwnerID, &cred.AppKey, &secret, &apiToken, &refresh, &cred.Host,
		&createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if cred.SignatureSecret, err = r.decrypt(secret); err != nil {
		return nil, fmt.Errorf("decrypt signature secret of %s: %w", cred.ID, err)
	}
	if cred.APIToken, err = r.decrypt(apiToken); err != nil {
		return nil, fmt.Errorf("decrypt api token of %s: %w", cred.ID, err)
	}
	if cred.RefreshToken, err = r.decrypt(refresh); err != nil {
		return nil, fmt.Errorf("decrypt refresh token of %s: %w", cred.ID, err)
	}
	if cred.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at for credential %s: %w", cred.ID, err)
	}
	if cred.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at for credential %s: %w", cred.ID, err)
	}

	return &cred, nil
}

// encrypt encrypts plaintext using AES-256-GCM and returns a base64-encoded string
// containing the nonce (12 bytes) prepended to the ciphertext.
func (r *CredentialRepo) encrypt(plaintext string) (string, error) {
	if r.key == nil {
		return "", driven.ErrEncryptionKeyNotSet
	}

	block, err := aes.NewCipher(r.key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	// Seal appends the ciphertext to nonce, producing: nonce || ciphertext || tag.
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decrypt decrypts a base64-encoded AES-256-GCM ciphertext.
func (r *CredentialRepo) decrypt(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	block, err := aes.NewCipher(r.key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("gcm.Open: %w", err)
	}

	return string(plaintext), nil
}
