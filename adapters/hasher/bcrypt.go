package hasher

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/chattykathys/chattykathy/domain"
)

const cost = 10

// New returns a domain.Hasher backed by bcrypt.
func New() domain.Hasher { return bcryptHasher{} }

type bcryptHasher struct{}

func (h bcryptHasher) Hash(plain string) (string, error) {
	sum, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(sum), nil
}

func (h bcryptHasher) Compare(hashed, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}
