package model

import (
	"time"

	"github.com/google/uuid"
)

// Identity is the authenticated caller for a single request: the wallet
// address proven by signature plus the asset set resolved for it. Assets are
// recomputed from the resolver on every request and never read from client
// input.
type Identity struct {
	Address string
	Assets  []string
}

// Owns reports whether the identity's wallet currently holds the given token.
func (id Identity) Owns(token string) bool {
	for _, t := range id.Assets {
		if t == token {
			return true
		}
	}
	return false
}

// Session binds an opaque bearer token to a wallet address for a fixed
// window. It carries no asset data.
type Session struct {
	Token     string    `json:"token"`
	Address   string    `json:"address"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Content is a token-gated record. Access follows possession of Token in the
// caller's asset set, not WalletID; WalletID only records the creator.
type Content struct {
	ID          uuid.UUID `json:"id"`
	WalletID    string    `json:"walletId"`
	Token       string    `json:"token"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	IsPublic    bool      `json:"isPublic"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Post belongs to exactly one Content. Reads are gated by the parent
// content's token; writes and deletes by WalletID.
type Post struct {
	ID        uuid.UUID `json:"id"`
	ContentID uuid.UUID `json:"contentId"`
	WalletID  string    `json:"walletId"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	IsDeleted bool      `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Comment belongs to exactly one Post and is wallet-gated for every write.
type Comment struct {
	ID        uuid.UUID `json:"id"`
	PostID    uuid.UUID `json:"postId"`
	WalletID  string    `json:"walletId"`
	Comment   string    `json:"comment"`
	IsDeleted bool      `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PostDetail is the explicit composition returned for a single post fetch:
// the post, its live comments, and its parent content.
type PostDetail struct {
	Post     Post      `json:"post"`
	Comments []Comment `json:"comments"`
	Content  Content   `json:"content"`
}

// Stats are the counters served by the operational stats endpoint.
type Stats struct {
	Content  int64 `json:"content"`
	Posts    int64 `json:"posts"`
	Comments int64 `json:"comments"`
}
