package posts

import (
	"context"
	"fmt"
	"strings"

	"github.com/odyssey-erp/odyssey-rbac/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-rbac/internal/shared"
)

var (
	// ErrNotFound indicates that the post does not exist or is outside the caller's scope.
	ErrNotFound = fmt.Errorf("posts: %w", httpx.ErrNotFound)
	// ErrUnknownAuthor indicates that the author row is gone.
	ErrUnknownAuthor = fmt.Errorf("posts: unknown author: %w", httpx.ErrValidation)
	// ErrEmptyText indicates a blank post body.
	ErrEmptyText = fmt.Errorf("posts: text is required: %w", httpx.ErrValidation)
)

// RepositoryPort defines data access methods for posts.
type RepositoryPort interface {
	ListPosts(ctx context.Context, scope Scope) ([]Post, error)
	GetPost(ctx context.Context, scope Scope, id int64) (Post, error)
	CreatePost(ctx context.Context, authorID int64, text string) (Post, error)
	UpdatePost(ctx context.Context, id int64, text string) (Post, error)
	DeletePost(ctx context.Context, id int64) error
}

// Service handles post business logic. Authorization happens in the handler; the service
// only applies the visibility scope.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ScopeFor returns the visibility scope of p: staff see every post, others their own.
func ScopeFor(p *shared.Principal) Scope {
	if p != nil && p.IsStaff {
		return Scope{}
	}
	if p == nil {
		return Scope{AuthorID: -1}
	}
	return Scope{AuthorID: p.UserID}
}

// List returns the posts visible to p.
func (s *Service) List(ctx context.Context, p *shared.Principal) ([]Post, error) {
	return s.repo.ListPosts(ctx, ScopeFor(p))
}

// Get returns one post visible to p.
func (s *Service) Get(ctx context.Context, p *shared.Principal, id int64) (Post, error) {
	return s.repo.GetPost(ctx, ScopeFor(p), id)
}

// Create publishes a post authored by p.
func (s *Service) Create(ctx context.Context, p *shared.Principal, in PostInput) (Post, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return Post{}, ErrEmptyText
	}
	return s.repo.CreatePost(ctx, p.UserID, text)
}

// Update rewrites the text of post id.
func (s *Service) Update(ctx context.Context, id int64, in PostInput) (Post, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return Post{}, ErrEmptyText
	}
	return s.repo.UpdatePost(ctx, id, text)
}

// Delete removes post id.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.DeletePost(ctx, id)
}
