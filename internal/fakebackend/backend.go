// Package fakebackend is an in-memory implementation of the portal REST API.
// It backs the mock server and the package tests.
package fakebackend

import (
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jrsteele09/go-brief-portal/model"
	"github.com/jrsteele09/go-brief-portal/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultSigningSecret = "brief-portal-dev-secret"
	refreshTokenBytes    = 32
)

type account struct {
	user         model.User
	passwordHash string
}

type failure struct {
	status  int
	code    model.ErrorCode
	message string
	times   int
}

// Backend holds all server state behind one lock.
type Backend struct {
	mu            sync.Mutex
	env           string
	logger        zerolog.Logger
	nowFunc       func() time.Time
	issuer        *token.Issuer
	revoked       token.RevocationList
	accounts      map[string]*account // By user id
	refreshTokens map[string]string   // Refresh token to user id
	issued        map[string]time.Time
	briefs        map[string]*model.Brief
	deliverables  map[string][]model.Deliverable // By brief id
	discussions   []model.Discussion
	notifications []model.Notification
	calls         map[string]int
	failures      map[string]*failure
	offline       bool
	delay         time.Duration
	router        *mux.Router
}

type Option func(*Backend)

func WithLogger(logger zerolog.Logger) Option {
	return func(b *Backend) {
		b.logger = logger
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(b *Backend) {
		b.nowFunc = now
	}
}

// WithEnv sets the environment name. DEV colours request logs.
func WithEnv(env string) Option {
	return func(b *Backend) {
		b.env = env
	}
}

func WithSigningSecret(secret string) Option {
	return func(b *Backend) {
		b.issuer = token.NewIssuer(token.NewHMACSigner(secret), token.WithNowFunc(b.now))
	}
}

// WithAccessTokenTTL sets the lifetime of issued access tokens.
func WithAccessTokenTTL(ttl time.Duration) Option {
	return func(b *Backend) {
		b.issuer.SetTTL(ttl)
	}
}

func New(options ...Option) *Backend {
	b := &Backend{
		logger:        log.Logger,
		nowFunc:       time.Now,
		accounts:      make(map[string]*account),
		refreshTokens: make(map[string]string),
		issued:        make(map[string]time.Time),
		briefs:        make(map[string]*model.Brief),
		deliverables:  make(map[string][]model.Deliverable),
		calls:         make(map[string]int),
		failures:      make(map[string]*failure),
	}
	b.issuer = token.NewIssuer(token.NewHMACSigner(DefaultSigningSecret), token.WithNowFunc(b.now))
	for _, opt := range options {
		opt(b)
	}
	b.revoked = token.NewInMemoryRevocationList(b.now)
	b.router = b.routes()
	return b
}

// now calls through b.nowFunc so options applied later still take effect.
func (b *Backend) now() time.Time {
	return b.nowFunc()
}

func (b *Backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.router.ServeHTTP(w, r)
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func checkPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// AddUser registers an account and returns its profile.
func (b *Backend) AddUser(email, password, name string, role model.RoleType, company *string) (*model.User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, errors.Wrap(err, "[Backend.AddUser] hash password")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.accountByEmailLocked(email) != nil {
		return nil, errors.Errorf("[Backend.AddUser] %s already registered", email)
	}
	now := b.now()
	acc := &account{
		user: model.User{
			ID:        uuid.NewString(),
			Email:     strings.ToLower(email),
			Name:      name,
			Role:      role,
			Company:   company,
			CreatedAt: now,
			UpdatedAt: now,
		},
		passwordHash: hash,
	}
	b.accounts[acc.user.ID] = acc
	user := acc.user
	return &user, nil
}

func (b *Backend) accountByEmailLocked(email string) *account {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, acc := range b.accounts {
		if acc.user.Email == email {
			return acc
		}
	}
	return nil
}

// AddBrief stores a brief for clientID and returns it.
func (b *Backend) AddBrief(clientID string, req model.CreateBriefRequest) (*model.Brief, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.accounts[clientID]; !ok {
		return nil, errors.Errorf("[Backend.AddBrief] unknown client %s", clientID)
	}
	brief := b.newBriefLocked(clientID, req)
	return &brief, nil
}

func (b *Backend) newBriefLocked(clientID string, req model.CreateBriefRequest) model.Brief {
	now := b.now()
	brief := &model.Brief{
		ID:                 uuid.NewString(),
		ClientID:           clientID,
		ProjectName:        req.ProjectName,
		ProjectDescription: req.ProjectDescription,
		WebsiteType:        req.WebsiteType,
		BrandName:          req.BrandName,
		BrandSlogan:        req.BrandSlogan,
		MainColor:          req.MainColor,
		SecondaryColor:     req.SecondaryColor,
		FontPreference:     req.FontPreference,
		MoodTheme:          append([]string(nil), req.MoodTheme...),
		ReferenceLinks:     append([]string(nil), req.ReferenceLinks...),
		LogoAssets:         req.LogoAssets,
		AdditionalNotes:    req.AdditionalNotes,
		Status:             model.StatusPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	b.briefs[brief.ID] = brief
	return *brief
}

// briefLocked returns a copy of the brief with its children attached.
func (b *Backend) briefLocked(id string) (model.Brief, bool) {
	brief, ok := b.briefs[id]
	if !ok {
		return model.Brief{}, false
	}
	out := *brief
	out.Deliverables = append([]model.Deliverable(nil), b.deliverables[id]...)
	out.Discussions = b.discussionsForBriefLocked(id)
	return out, true
}

// visibleBriefsLocked returns the briefs acc may see, newest first.
func (b *Backend) visibleBriefsLocked(acc *account) []model.Brief {
	briefs := make([]model.Brief, 0, len(b.briefs))
	for _, brief := range b.briefs {
		if acc.user.IsAdmin() || brief.ClientID == acc.user.ID {
			briefs = append(briefs, *brief)
		}
	}
	sort.Slice(briefs, func(i, j int) bool {
		if briefs[i].CreatedAt.Equal(briefs[j].CreatedAt) {
			return briefs[i].ID < briefs[j].ID
		}
		return briefs[i].CreatedAt.After(briefs[j].CreatedAt)
	})
	return briefs
}

func (b *Backend) discussionsForBriefLocked(briefID string) []model.Discussion {
	var out []model.Discussion
	for _, d := range b.discussions {
		if d.BriefID == briefID {
			out = append(out, d)
		}
	}
	return out
}

func (b *Backend) authorLocked(userID string) *model.Author {
	acc, ok := b.accounts[userID]
	if !ok {
		return nil
	}
	return &model.Author{Name: acc.user.Name, Email: acc.user.Email}
}

func (b *Backend) briefRefLocked(briefID string) *model.BriefRef {
	brief, ok := b.briefs[briefID]
	if !ok {
		return nil
	}
	return &model.BriefRef{ProjectName: brief.ProjectName}
}

func (b *Backend) notifyLocked(userID, briefID string, kind model.NotificationType, title, message string) {
	b.notifications = append(b.notifications, model.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		BriefID:   briefID,
		Title:     title,
		Message:   message,
		Timestamp: b.now(),
		Type:      kind,
		Brief:     b.briefRefLocked(briefID),
	})
}

func (b *Backend) notifyAdminsLocked(briefID string, kind model.NotificationType, title, message string) {
	for _, acc := range b.accounts {
		if acc.user.IsAdmin() {
			b.notifyLocked(acc.user.ID, briefID, kind, title, message)
		}
	}
}

// Seed loads demo accounts and briefs. Passwords are "admin123" and "client123".
func (b *Backend) Seed() error {
	admin, err := b.AddUser("admin@agency.test", "admin123", "Agency Admin", model.RoleAdmin, nil)
	if err != nil {
		return err
	}
	acme := "Acme Hotels"
	client, err := b.AddUser("jane@acme.test", "client123", "Jane Client", model.RoleClient, &acme)
	if err != nil {
		return err
	}

	brief, err := b.AddBrief(client.ID, model.CreateBriefRequest{
		ProjectName:        "Acme Resort Website",
		ProjectDescription: "Booking site for the new resort",
		WebsiteType:        model.WebsiteTypes[3],
		BrandName:          "Acme Resort",
		MainColor:          "#1d4ed8",
		FontPreference:     model.FontPreferences[0],
		MoodTheme:          []string{model.MoodThemes[0], model.MoodThemes[1]},
		ReferenceLinks:     []string{"https://example.com"},
	})
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.discussions = append(b.discussions, model.Discussion{
		ID:          uuid.NewString(),
		BriefID:     brief.ID,
		UserID:      admin.ID,
		Message:     "Thanks for the brief, we will review it this week.",
		Timestamp:   b.now(),
		IsFromAdmin: true,
		User:        b.authorLocked(admin.ID),
		Brief:       b.briefRefLocked(brief.ID),
	})
	b.notifyLocked(client.ID, brief.ID, model.NotificationNewMessage, "New message", "The agency replied to your brief.")
	return nil
}
