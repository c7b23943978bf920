//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"time"

	"alumnet/domain"
	"alumnet/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IUserRepository interface {
	CreateUser(email, username, firstName, lastName, hashedPassword string) (string, error)
	GetUserByEmail(email string) (domain.User, error)
	FindByID(userID string) (domain.User, error)
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) IUserRepository {
	return &UserRepository{db: db}
}

// CreateUser persists the user under two keys: "user:email:{email}" for login
// lookups and "user:id:{id}" for the relay's identity resolution. Both point
// at the same JSON document.
func (u UserRepository) CreateUser(email, username, firstName, lastName, hashedPassword string) (string, error) {
	user := domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hashedPassword,
		FirstName:    firstName,
		LastName:     lastName,
		Role:         "alumni",
		CreatedAt:    time.Now().UTC(),
	}

	data, err := json.Marshal(diskUser(user))
	if err != nil {
		return "", fmt.Errorf("marshal failed: %w", err)
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		emailKey := []byte("user:email:" + email)
		if _, err := txn.Get(emailKey); err == nil {
			return errors.ErrUserAlreadyExists
		}
		if err := txn.Set(emailKey, data); err != nil {
			return err
		}
		return txn.Set([]byte("user:id:"+user.ID), data)
	})

	return user.ID, err
}

func (u UserRepository) GetUserByEmail(email string) (domain.User, error) {
	return u.load("user:email:" + email)
}

// FindByID resolves an authenticated identity to its full profile.
// Returns ErrUserNotFound when the subject no longer exists.
func (u UserRepository) FindByID(userID string) (domain.User, error) {
	user, err := u.load("user:id:" + userID)
	if err != nil {
		return domain.User{}, errors.ErrUserNotFound
	}
	return user, nil
}

func (u UserRepository) load(key string) (domain.User, error) {
	var stored storedUser
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stored)
		})
	})
	if err != nil {
		return domain.User{}, err
	}
	return stored.toDomain(), nil
}

// storedUser is the on-disk shape: unlike domain.User it serializes the
// password hash, which must never leave the repository layer otherwise.
type storedUser struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

func diskUser(u domain.User) storedUser {
	return storedUser{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Role:         u.Role,
		CreatedAt:    u.CreatedAt,
	}
}

func (s storedUser) toDomain() domain.User {
	return domain.User{
		ID:           s.ID,
		Username:     s.Username,
		Email:        s.Email,
		PasswordHash: s.PasswordHash,
		FirstName:    s.FirstName,
		LastName:     s.LastName,
		Role:         s.Role,
		CreatedAt:    s.CreatedAt,
	}
}
