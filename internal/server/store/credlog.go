package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"linechat/internal/auth"
	"linechat/internal/models"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// CredentialLog is the append-only persistent mirror of the credential map.
type CredentialLog interface {
	// Load replays every record. Later records for a username win.
	Load() (map[string]auth.Credential, error)
	Append(user string, cred auth.Credential) error
	Close() error
}

type fileRecord struct {
	User   string `json:"user"`
	Salt   []byte `json:"salt"`
	Hash   []byte `json:"hash"`
	Params string `json:"params"`
}

// FileLog stores one JSON record per line.
type FileLog struct {
	path string
	mu   sync.Mutex
	f    *os.File
}

func OpenFileLog(path string) (*FileLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("open credential log: %w", err)
	}
	return &FileLog{path: path, f: f}, nil
}

func (l *FileLog) Load() (map[string]auth.Credential, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("read credential log: %w", err)
	}
	defer f.Close()

	creds := make(map[string]auth.Credential)
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var rec fileRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			log.Warn().Err(err).Str("path", l.path).Int("line", lineNo).Msg("Skipping corrupt credential record")
			continue
		}
		params, err := auth.ParseParams(rec.Params)
		if err != nil {
			log.Warn().Err(err).Str("path", l.path).Int("line", lineNo).Msg("Skipping credential record")
			continue
		}
		creds[rec.User] = auth.Credential{Salt: rec.Salt, Hash: rec.Hash, Params: params}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read credential log: %w", err)
	}
	return creds, nil
}

func (l *FileLog) Append(user string, cred auth.Credential) error {
	data, err := json.Marshal(fileRecord{User: user, Salt: cred.Salt, Hash: cred.Hash, Params: cred.Params.String()})
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return os.ErrClosed
	}
	if _, err := l.f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append credential: %w", err)
	}
	return l.f.Sync()
}

func (l *FileLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}

// SQLiteLog keeps the credential log in an insert-only sqlite table.
type SQLiteLog struct {
	db *gorm.DB
}

func OpenSQLiteLog(path string) (*SQLiteLog, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open credential db: %w", err)
	}
	if err := db.AutoMigrate(&models.CredentialRecord{}); err != nil {
		return nil, fmt.Errorf("migrate credential db: %w", err)
	}
	return &SQLiteLog{db: db}, nil
}

func (l *SQLiteLog) Load() (map[string]auth.Credential, error) {
	var records []models.CredentialRecord
	if err := l.db.Order("id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}

	creds := make(map[string]auth.Credential, len(records))
	for _, rec := range records {
		params, err := auth.ParseParams(rec.Params)
		if err != nil {
			log.Warn().Err(err).Str("user", rec.Username).Msg("Skipping credential record")
			continue
		}
		creds[rec.Username] = auth.Credential{Salt: rec.Salt, Hash: rec.Hash, Params: params}
	}
	return creds, nil
}

func (l *SQLiteLog) Append(user string, cred auth.Credential) error {
	rec := models.CredentialRecord{
		Username: user,
		Salt:     cred.Salt,
		Hash:     cred.Hash,
		Params:   cred.Params.String(),
	}
	if err := l.db.Create(&rec).Error; err != nil {
		return fmt.Errorf("append credential: %w", err)
	}
	return nil
}

func (l *SQLiteLog) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// OpenCredentialLog opens the log backend named by kind ("file" or "sqlite").
func OpenCredentialLog(kind, path string) (CredentialLog, error) {
	switch kind {
	case "", "file":
		return OpenFileLog(path)
	case "sqlite":
		return OpenSQLiteLog(path)
	}
	return nil, errors.New("unknown credential store " + kind)
}
