package service

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/postpilothq/postpilot/internal/models"
	"github.com/postpilothq/postpilot/internal/transfer"
)

// fakePostRepo mimics the conditional-update semantics of the SQL repository
// under a mutex, so the concurrency tests exercise real guard behavior.
type fakePostRepo struct {
	mu    sync.Mutex
	posts map[string]*models.Post
}

func newFakePostRepo() *fakePostRepo {
	return &fakePostRepo{posts: make(map[string]*models.Post)}
}

func clonePost(p *models.Post) *models.Post {
	cp := *p
	return &cp
}

func (r *fakePostRepo) put(p *models.Post) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.posts[p.ID] = clonePost(p)
}

func (r *fakePostRepo) Create(ctx context.Context, tx *sql.Tx, post *models.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	post.CreatedAt = time.Now()
	post.UpdatedAt = post.CreatedAt
	r.posts[post.ID] = clonePost(post)
	return nil
}

func (r *fakePostRepo) GetByID(ctx context.Context, id string) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[id]
	if !ok {
		return nil, nil
	}
	return clonePost(post), nil
}

func (r *fakePostRepo) ListByUserID(ctx context.Context, userID int64) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var posts []*models.Post
	for _, post := range r.posts {
		if post.UserID == userID {
			posts = append(posts, clonePost(post))
		}
	}
	return posts, nil
}

func (r *fakePostRepo) Approve(ctx context.Context, id string) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[id]
	if !ok || post.Status != models.PostStatusUnapproved {
		return nil, nil
	}
	post.IsApproved = true
	post.Status = models.PostStatusScheduled
	return clonePost(post), nil
}

func (r *fakePostRepo) ClearFailure(ctx context.Context, id string) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[id]
	if !ok || post.Status != models.PostStatusFailed {
		return nil, nil
	}
	post.Status = models.PostStatusScheduled
	post.ErrorMessage = nil
	return clonePost(post), nil
}

func (r *fakePostRepo) SetGeneratedContent(ctx context.Context, id, content string) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[id]
	if !ok || post.Status == models.PostStatusPosted {
		return nil, nil
	}
	post.Content = content
	post.IsApproved = false
	post.Status = models.PostStatusUnapproved
	post.ErrorMessage = nil
	return clonePost(post), nil
}

func (r *fakePostRepo) UpdateEditable(ctx context.Context, id, content string, scheduledAt time.Time, isApproved bool) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[id]
	if !ok || post.Status == models.PostStatusPosted {
		return nil, nil
	}
	post.Content = content
	post.ScheduledAt = scheduledAt
	post.IsApproved = isApproved
	if isApproved && post.Status == models.PostStatusUnapproved {
		post.Status = models.PostStatusScheduled
	} else if !isApproved && post.Status == models.PostStatusScheduled {
		post.Status = models.PostStatusUnapproved
	}
	return clonePost(post), nil
}

func (r *fakePostRepo) MarkPosted(ctx context.Context, id, externalPostID string, postedAt time.Time) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[id]
	if !ok || post.Status != models.PostStatusScheduled {
		return nil, nil
	}
	post.Status = models.PostStatusPosted
	post.PostedAt = &postedAt
	post.ExternalPostID = &externalPostID
	post.ErrorMessage = nil
	return clonePost(post), nil
}

func (r *fakePostRepo) MarkFailed(ctx context.Context, id, errorMessage string) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[id]
	if !ok || post.Status != models.PostStatusScheduled {
		return nil, nil
	}
	post.Status = models.PostStatusFailed
	post.ErrorMessage = &errorMessage
	return clonePost(post), nil
}

func (r *fakePostRepo) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.posts, id)
	return nil
}

type fakeAssetRepo struct {
	mu     sync.Mutex
	nextID int64
	assets map[int64]*models.MediaAsset
}

func newFakeAssetRepo() *fakeAssetRepo {
	return &fakeAssetRepo{assets: make(map[int64]*models.MediaAsset)}
}

func (r *fakeAssetRepo) Create(ctx context.Context, asset *models.MediaAsset) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	cp := *asset
	cp.ID = r.nextID
	r.assets[cp.ID] = &cp
	return cp.ID, nil
}

func (r *fakeAssetRepo) GetByID(ctx context.Context, id int64) (*models.MediaAsset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	asset, ok := r.assets[id]
	if !ok {
		return nil, nil
	}
	cp := *asset
	return &cp, nil
}

func (r *fakeAssetRepo) CheckByUserID(ctx context.Context, assetID, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	asset, ok := r.assets[assetID]
	return ok && asset.UserID == userID, nil
}

type fakePostMediaRepo struct {
	mu    sync.Mutex
	media []*models.PostMedia
}

func (r *fakePostMediaRepo) Create(ctx context.Context, tx *sql.Tx, pm *models.PostMedia) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *pm
	r.media = append(r.media, &cp)
	return nil
}

func (r *fakePostMediaRepo) ListByPostID(ctx context.Context, postID string) ([]*models.PostMedia, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.PostMedia
	for _, pm := range r.media {
		if pm.PostID == postID {
			cp := *pm
			out = append(out, &cp)
		}
	}
	return out, nil
}

// stubGenerator returns canned contents and records the last request.
type stubGenerator struct {
	contents []string
	err      error
	lastReq  *transfer.GenerationRequest
}

func (g *stubGenerator) Generate(ctx context.Context, req *transfer.GenerationRequest) ([]string, error) {
	g.lastReq = req
	if g.err != nil {
		return nil, g.err
	}
	return g.contents, nil
}

// fakeCredentialRepo implements the version compare-and-swap of the SQL
// repository; afterGet lets tests interleave a concurrent mutation.
type fakeCredentialRepo struct {
	mu       sync.Mutex
	creds    map[int64]*models.Credential
	afterGet func()
}

func newFakeCredentialRepo() *fakeCredentialRepo {
	return &fakeCredentialRepo{creds: make(map[int64]*models.Credential)}
}

func (r *fakeCredentialRepo) GetByUserID(ctx context.Context, userID int64) (*models.Credential, error) {
	r.mu.Lock()
	cred, ok := r.creds[userID]
	var cp *models.Credential
	if ok {
		c := *cred
		cp = &c
	}
	r.mu.Unlock()

	if r.afterGet != nil {
		hook := r.afterGet
		r.afterGet = nil
		hook()
	}
	return cp, nil
}

func (r *fakeCredentialRepo) Upsert(ctx context.Context, cred *models.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *cred
	if existing, ok := r.creds[cred.UserID]; ok {
		cp.Version = existing.Version + 1
	} else {
		cp.Version = 1
	}
	cp.RotatedAt = sql.NullTime{Time: time.Now(), Valid: true}
	r.creds[cred.UserID] = &cp
	return nil
}

func (r *fakeCredentialRepo) UpdateTokens(ctx context.Context, userID int64, accessToken, refreshToken string, expiresAt time.Time, version int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cred, ok := r.creds[userID]
	if !ok || cred.Version != version || !cred.AccessToken.Valid {
		return false, nil
	}
	cred.AccessToken = sql.NullString{String: accessToken, Valid: true}
	cred.RefreshToken = sql.NullString{String: refreshToken, Valid: true}
	cred.TokenExpiresAt = sql.NullTime{Time: expiresAt, Valid: true}
	cred.RotatedAt = sql.NullTime{Time: time.Now(), Valid: true}
	cred.Version++
	return true, nil
}

func (r *fakeCredentialRepo) Clear(ctx context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cred, ok := r.creds[userID]
	if !ok {
		return nil
	}
	cred.AccountID = sql.NullString{}
	cred.Username = sql.NullString{}
	cred.AccessToken = sql.NullString{}
	cred.RefreshToken = sql.NullString{}
	cred.TokenExpiresAt = sql.NullTime{}
	cred.Version++
	return nil
}

func (r *fakeCredentialRepo) ListExpiring(ctx context.Context, from, to time.Time) ([]*models.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Credential
	for _, cred := range r.creds {
		if cred.AccessToken.Valid && cred.TokenExpiresAt.Valid &&
			!cred.TokenExpiresAt.Time.Before(from) && !cred.TokenExpiresAt.Time.After(to) {
			cp := *cred
			out = append(out, &cp)
		}
	}
	return out, nil
}
