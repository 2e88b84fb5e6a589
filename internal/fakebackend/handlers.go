package fakebackend

import (
	"net/http"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jrsteele09/go-brief-portal/model"
	"github.com/jrsteele09/go-brief-portal/token"
)

func (b *Backend) handleHealth(w http.ResponseWriter, r *http.Request) {
	b.writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds model.LoginCredentials
	if err := decodeBody(r, &creds); err != nil || creds.Email == "" || creds.Password == "" {
		b.writeError(w, http.StatusBadRequest, model.CodeValidationError, "Email and password are required")
		return
	}

	b.mu.Lock()
	acc := b.accountByEmailLocked(creds.Email)
	b.mu.Unlock()
	if acc == nil || !checkPasswordHash(creds.Password, acc.passwordHash) {
		b.writeError(w, http.StatusUnauthorized, model.CodeAuthFailed, "Invalid email or password")
		return
	}

	access, err := b.issueAccessToken(acc)
	if err != nil {
		b.logger.Err(err).Msg("error issuing access token")
		b.writeError(w, http.StatusInternalServerError, model.CodeInternalServerError, "Could not issue token")
		return
	}
	refresh, err := token.GenerateRefreshToken(refreshTokenBytes)
	if err != nil {
		b.logger.Err(err).Msg("error generating refresh token")
		b.writeError(w, http.StatusInternalServerError, model.CodeInternalServerError, "Could not issue token")
		return
	}

	b.mu.Lock()
	b.refreshTokens[refresh] = acc.user.ID
	user := acc.user
	b.mu.Unlock()

	b.writeData(w, http.StatusOK, model.LoginResponse{User: user, AccessToken: access, RefreshToken: refresh})
}

func (b *Backend) issueAccessToken(acc *account) (string, error) {
	raw, claims, err := b.issuer.Issue(acc.user.ID, acc.user.Email, string(acc.user.Role))
	if err != nil {
		return "", err
	}
	b.mu.Lock()
	b.issued[claims.ID] = *claims.ExpiresAt
	b.mu.Unlock()
	return raw, nil
}

func (b *Backend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req model.RefreshRequest
	if err := decodeBody(r, &req); err != nil || req.RefreshToken == "" {
		b.writeError(w, http.StatusBadRequest, model.CodeValidationError, "Refresh token is required")
		return
	}

	b.mu.Lock()
	userID, ok := b.refreshTokens[req.RefreshToken]
	acc := b.accounts[userID]
	b.mu.Unlock()
	if !ok || acc == nil {
		b.writeError(w, http.StatusUnauthorized, model.CodeTokenInvalid, "Invalid refresh token")
		return
	}

	access, err := b.issueAccessToken(acc)
	if err != nil {
		b.logger.Err(err).Msg("error issuing access token")
		b.writeError(w, http.StatusInternalServerError, model.CodeInternalServerError, "Could not issue token")
		return
	}
	b.writeData(w, http.StatusOK, model.RefreshResponse{AccessToken: access})
}

func (b *Backend) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req model.RefreshRequest
	_ = decodeBody(r, &req)

	claims := claimsFrom(r)
	if claims != nil && claims.ExpiresAt != nil {
		b.revoked.Add(claims.ID, *claims.ExpiresAt)
	}
	b.mu.Lock()
	if req.RefreshToken != "" {
		delete(b.refreshTokens, req.RefreshToken)
	}
	b.mu.Unlock()
	b.writeMessage(w, "Logged out")
}

func (b *Backend) handleMe(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	user := accountFrom(r).user
	b.mu.Unlock()
	b.writeData(w, http.StatusOK, user)
}

func (b *Backend) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	b.mu.Lock()
	acc, ok := b.accounts[id]
	var user model.User
	if ok {
		user = acc.user
	}
	b.mu.Unlock()
	if !ok {
		b.writeError(w, http.StatusNotFound, model.CodeUserNotFound, "User not found")
		return
	}
	b.writeData(w, http.StatusOK, user)
}

func (b *Backend) handleListBriefs(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	briefs := b.visibleBriefsLocked(accountFrom(r))
	b.mu.Unlock()
	b.writeData(w, http.StatusOK, model.BriefList{Briefs: briefs, Total: len(briefs)})
}

func (b *Backend) handleBriefStatistics(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	briefs := b.visibleBriefsLocked(accountFrom(r))
	b.mu.Unlock()

	stats := model.BriefStatistics{Total: len(briefs)}
	for _, brief := range briefs {
		switch brief.Status {
		case model.StatusPending:
			stats.Pending++
		case model.StatusReviewed:
			stats.Reviewed++
		case model.StatusInProgress:
			stats.InProgress++
		case model.StatusCompleted:
			stats.Completed++
		}
	}
	b.writeData(w, http.StatusOK, stats)
}

// briefFor loads the brief named in the route and checks acc may see it.
// It writes the error response and returns false when not.
func (b *Backend) briefFor(w http.ResponseWriter, r *http.Request) (model.Brief, bool) {
	id := mux.Vars(r)["id"]
	acc := accountFrom(r)

	b.mu.Lock()
	brief, ok := b.briefLocked(id)
	b.mu.Unlock()
	if !ok {
		b.writeError(w, http.StatusNotFound, model.CodeBriefNotFound, "Brief not found")
		return model.Brief{}, false
	}
	if !acc.user.IsAdmin() && brief.ClientID != acc.user.ID {
		b.writeError(w, http.StatusForbidden, model.CodeForbidden, "You do not have access to this brief")
		return model.Brief{}, false
	}
	return brief, true
}

func (b *Backend) handleGetBrief(w http.ResponseWriter, r *http.Request) {
	brief, ok := b.briefFor(w, r)
	if !ok {
		return
	}
	b.writeData(w, http.StatusOK, brief)
}

func (b *Backend) handleCreateBrief(w http.ResponseWriter, r *http.Request) {
	var req model.CreateBriefRequest
	if err := decodeBody(r, &req); err != nil {
		b.writeError(w, http.StatusBadRequest, model.CodeValidationError, "Invalid brief payload")
		return
	}
	if strings.TrimSpace(req.ProjectName) == "" || strings.TrimSpace(req.BrandName) == "" {
		b.writeError(w, http.StatusBadRequest, model.CodeValidationError, "Project name and brand name are required")
		return
	}
	acc := accountFrom(r)

	b.mu.Lock()
	for _, existing := range b.briefs {
		if existing.ClientID == acc.user.ID && strings.EqualFold(existing.ProjectName, req.ProjectName) {
			b.mu.Unlock()
			b.writeError(w, http.StatusConflict, model.CodeBriefAlreadyExists, "A brief with this name already exists")
			return
		}
	}
	brief := b.newBriefLocked(acc.user.ID, req)
	b.notifyAdminsLocked(brief.ID, model.NotificationStatusUpdate, "New brief", acc.user.Name+" submitted "+brief.ProjectName)
	b.mu.Unlock()

	b.writeData(w, http.StatusCreated, brief)
}

func (b *Backend) handleUpdateBriefStatus(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateBriefStatusRequest
	if err := decodeBody(r, &req); err != nil {
		b.writeError(w, http.StatusBadRequest, model.CodeValidationError, "Invalid status payload")
		return
	}
	status, ok := model.ParseBriefStatus(string(req.Status))
	if !ok {
		b.writeError(w, http.StatusBadRequest, model.CodeValidationError, "Unknown status")
		return
	}

	id := mux.Vars(r)["id"]
	b.mu.Lock()
	stored, ok := b.briefs[id]
	if !ok {
		b.mu.Unlock()
		b.writeError(w, http.StatusNotFound, model.CodeBriefNotFound, "Brief not found")
		return
	}
	stored.Status = status
	stored.UpdatedAt = b.now()
	b.notifyLocked(stored.ClientID, id, model.NotificationStatusUpdate, "Status updated",
		stored.ProjectName+" is now "+string(status))
	brief, _ := b.briefLocked(id)
	b.mu.Unlock()

	b.writeData(w, http.StatusOK, brief)
}

func (b *Backend) handleListDeliverables(w http.ResponseWriter, r *http.Request) {
	brief, ok := b.briefFor(w, r)
	if !ok {
		return
	}
	deliverables := brief.Deliverables
	if deliverables == nil {
		deliverables = []model.Deliverable{}
	}
	b.writeData(w, http.StatusOK, model.DeliverableList{Deliverables: deliverables})
}

func (b *Backend) handleAddDeliverable(w http.ResponseWriter, r *http.Request) {
	var req model.CreateDeliverableRequest
	if err := decodeBody(r, &req); err != nil || strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Link) == "" {
		b.writeError(w, http.StatusBadRequest, model.CodeValidationError, "Title and link are required")
		return
	}
	brief, ok := b.briefFor(w, r)
	if !ok {
		return
	}

	deliverable := model.Deliverable{
		ID:          uuid.NewString(),
		BriefID:     brief.ID,
		Title:       req.Title,
		Description: req.Description,
		Link:        req.Link,
		Type:        req.Type,
		AddedAt:     b.now(),
	}
	b.mu.Lock()
	// Newest first
	b.deliverables[brief.ID] = append([]model.Deliverable{deliverable}, b.deliverables[brief.ID]...)
	if stored, ok := b.briefs[brief.ID]; ok {
		stored.UpdatedAt = deliverable.AddedAt
	}
	b.notifyLocked(brief.ClientID, brief.ID, model.NotificationDeliverableAdded, "Deliverable added", deliverable.Title)
	b.mu.Unlock()

	b.writeData(w, http.StatusCreated, deliverable)
}

func (b *Backend) handleListDiscussions(w http.ResponseWriter, r *http.Request) {
	brief, ok := b.briefFor(w, r)
	if !ok {
		return
	}
	discussions := brief.Discussions
	if discussions == nil {
		discussions = []model.Discussion{}
	}
	b.writeData(w, http.StatusOK, model.DiscussionList{Discussions: discussions})
}

func (b *Backend) handlePostDiscussion(w http.ResponseWriter, r *http.Request) {
	var req model.CreateDiscussionRequest
	if err := decodeBody(r, &req); err != nil || strings.TrimSpace(req.Message) == "" {
		b.writeError(w, http.StatusBadRequest, model.CodeValidationError, "Message is required")
		return
	}
	brief, ok := b.briefFor(w, r)
	if !ok {
		return
	}
	acc := accountFrom(r)

	b.mu.Lock()
	discussion := model.Discussion{
		ID:          uuid.NewString(),
		BriefID:     brief.ID,
		UserID:      acc.user.ID,
		Message:     req.Message,
		Timestamp:   b.now(),
		IsFromAdmin: acc.user.IsAdmin(),
		User:        b.authorLocked(acc.user.ID),
		Brief:       b.briefRefLocked(brief.ID),
	}
	b.discussions = append(b.discussions, discussion)
	if acc.user.IsAdmin() {
		b.notifyLocked(brief.ClientID, brief.ID, model.NotificationNewMessage, "New message", req.Message)
	} else {
		b.notifyAdminsLocked(brief.ID, model.NotificationNewMessage, "New message", req.Message)
	}
	b.mu.Unlock()

	b.writeData(w, http.StatusCreated, discussion)
}

func (b *Backend) handleDeleteDiscussion(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, d := range b.discussions {
		if d.ID == id {
			b.discussions = append(b.discussions[:i], b.discussions[i+1:]...)
			b.writeMessage(w, "Discussion deleted")
			return
		}
	}
	b.writeError(w, http.StatusNotFound, model.CodeDiscussionNotFound, "Discussion not found")
}

func (b *Backend) handleSearchDiscussions(w http.ResponseWriter, r *http.Request) {
	q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
	out := []model.Discussion{}
	if q != "" {
		b.mu.Lock()
		for _, d := range b.discussions {
			if strings.Contains(strings.ToLower(d.Message), q) {
				out = append(out, d)
			}
		}
		b.mu.Unlock()
	}
	b.writeData(w, http.StatusOK, model.DiscussionList{Discussions: out})
}

func (b *Backend) handleMyDiscussions(w http.ResponseWriter, r *http.Request) {
	acc := accountFrom(r)
	out := []model.Discussion{}
	b.mu.Lock()
	for _, d := range b.discussions {
		if d.UserID == acc.user.ID {
			out = append(out, d)
		}
	}
	b.mu.Unlock()
	b.writeData(w, http.StatusOK, model.DiscussionList{Discussions: out})
}

func (b *Backend) notificationsForLocked(userID string) []model.Notification {
	out := []model.Notification{}
	for _, n := range b.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

func (b *Backend) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	out := b.notificationsForLocked(accountFrom(r).user.ID)
	b.mu.Unlock()
	b.writeData(w, http.StatusOK, model.NotificationList{Notifications: out})
}

func (b *Backend) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	count := 0
	for _, n := range b.notificationsForLocked(accountFrom(r).user.ID) {
		if !n.IsRead {
			count++
		}
	}
	b.mu.Unlock()
	b.writeData(w, http.StatusOK, model.UnreadCount{UnreadCount: count})
}

func (b *Backend) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	req := model.MarkNotificationReadRequest{IsRead: true}
	_ = decodeBody(r, &req)
	id := mux.Vars(r)["id"]
	userID := accountFrom(r).user.ID

	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.notifications {
		n := &b.notifications[i]
		if n.ID == id && n.UserID == userID {
			n.IsRead = req.IsRead
			b.writeData(w, http.StatusOK, *n)
			return
		}
	}
	b.writeError(w, http.StatusNotFound, model.CodeNotificationNotFound, "Notification not found")
}

func (b *Backend) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID := accountFrom(r).user.ID
	b.mu.Lock()
	for i := range b.notifications {
		if b.notifications[i].UserID == userID {
			b.notifications[i].IsRead = true
		}
	}
	b.mu.Unlock()
	b.writeMessage(w, "All notifications marked as read")
}
