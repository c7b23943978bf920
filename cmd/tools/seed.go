// Seeds a local development database with users, a group chat, and a
// moderation blacklist, then prints a connection token per user.
package main

import (
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"alumnet/auth"
	"alumnet/domain"
	"alumnet/repositories"

	"github.com/dgraph-io/badger/v4"
)

type seedUser struct {
	email     string
	username  string
	firstName string
	lastName  string
}

var seedUsers = []seedUser{
	{"alice@alumni.example", "alice.martin", "Alice", "Martin"},
	{"bob@alumni.example", "bob.durand", "Bob", "Durand"},
	{"carol@alumni.example", "carol.petit", "Carol", "Petit"},
}

var blacklistWords = []string{"spamword", "slur1", "slur2"}

func main() {
	dbPath := flag.String("db", "./data/badger", "Path to badger DB")
	secret := flag.String("secret", "dev-secret", "JWT signing secret")
	password := flag.String("password", "ChangeMe123!", "Password for every seeded user")
	words := flag.String("blacklist", strings.Join(blacklistWords, ","), "Comma-separated censored words")
	flag.Parse()

	db, err := badger.Open(badger.DefaultOptions(*dbPath).WithLoggingLevel(badger.WARNING))
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	userRepository := repositories.NewUserRepository(db)
	chatRepository := repositories.NewChatRepository(db)
	signer := auth.NewTokenSigner(*secret)

	hashedPassword, err := auth.HashPassword(*password)
	if err != nil {
		log.Fatalf("Hashing failed: %v", err)
	}

	var userIDs []string
	for _, u := range seedUsers {
		request := auth.RegisterRequest{
			Email:     u.email,
			Username:  u.username,
			FirstName: u.firstName,
			LastName:  u.lastName,
			Password:  *password,
		}
		if err := auth.ValidateRegister(request); err != nil {
			log.Fatalf("Invalid seed user %s: %v", u.email, err)
		}

		userID, err := userRepository.CreateUser(u.email, u.username, u.firstName, u.lastName, hashedPassword)
		if err != nil {
			log.Printf("Skipping %s: %v", u.email, err)
			existing, err := userRepository.GetUserByEmail(u.email)
			if err != nil {
				log.Fatalf("Lookup failed for %s: %v", u.email, err)
			}
			userID = existing.ID
		}
		userIDs = append(userIDs, userID)

		token, err := signer.Generate(userID, []string{"alumni"}, 24*time.Hour)
		if err != nil {
			log.Fatalf("Token generation failed: %v", err)
		}
		fmt.Printf("%s\n  id:    %s\n  token: %s\n", u.email, userID, token)
	}

	chatID, err := chatRepository.CreateChat(domain.Chat{
		Type:         domain.ChatGroup,
		Name:         "Class of 2019",
		Participants: userIDs,
		Admins:       userIDs[:1],
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		log.Fatalf("Chat creation failed: %v", err)
	}
	fmt.Printf("\nGroup chat created: %s\n", chatID)

	err = db.Update(func(txn *badger.Txn) error {
		for _, word := range strings.Split(*words, ",") {
			word = strings.TrimSpace(word)
			if word == "" {
				continue
			}
			if err := txn.Set([]byte("blacklist:"+word), []byte(word)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Blacklist seeding failed: %v", err)
	}
	fmt.Println("Blacklist seeded")
}
