package auth

import "golang.org/x/crypto/bcrypt"

const DefaultCost = 10

// Hasher derives and checks salted bcrypt digests with a fixed work factor.
type Hasher struct {
	cost int
}

func NewHasher(cost int) Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return Hasher{cost: cost}
}

func (h Hasher) Cost() int { return h.cost }

func (h Hasher) Hash(secret string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(secret), h.cost)
}

func (h Hasher) Verify(secret string, digest []byte) bool {
	if len(digest) == 0 {
		return false
	}
	return bcrypt.CompareHashAndPassword(digest, []byte(secret)) == nil
}
