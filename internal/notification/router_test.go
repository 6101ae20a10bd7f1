package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/casebridge/internal/config"
	"github.com/smallbiznis/casebridge/internal/notification/email"
	userdomain "github.com/smallbiznis/casebridge/internal/user/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type capturingProvider struct {
	sent [][]string
}

func (p *capturingProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	p.sent = append(p.sent, to)
	return nil
}

var _ email.Provider = (*capturingProvider)(nil)

// fakeUserService serves canned users so routing decisions can be asserted
// without a database.
type fakeUserService struct {
	users   map[snowflake.ID]userdomain.User
	admins  map[string]*userdomain.User
	muted   map[snowflake.ID]bool
	blocked map[snowflake.ID]bool
}

func newFakeUserService() *fakeUserService {
	return &fakeUserService{
		users:   map[snowflake.ID]userdomain.User{},
		admins:  map[string]*userdomain.User{},
		muted:   map[snowflake.ID]bool{},
		blocked: map[snowflake.ID]bool{},
	}
}

func (f *fakeUserService) Upsert(ctx context.Context, req userdomain.UpsertUserRequest) (userdomain.UpsertUserResponse, error) {
	return userdomain.UpsertUserResponse{}, errors.New("not implemented")
}

func (f *fakeUserService) GetByID(ctx context.Context, id snowflake.ID) (userdomain.User, error) {
	user, ok := f.users[id]
	if !ok {
		return userdomain.User{}, userdomain.ErrNotFound
	}
	return user, nil
}

func (f *fakeUserService) FindAssignedAdmin(ctx context.Context, displayName string) (*userdomain.User, error) {
	return f.admins[displayName], nil
}

func (f *fakeUserService) ListByOrganisation(ctx context.Context, orgID snowflake.ID) ([]userdomain.User, error) {
	var members []userdomain.User
	for _, user := range f.users {
		members = append(members, user)
	}
	return members, nil
}

func (f *fakeUserService) MuteCase(ctx context.Context, userID, caseID snowflake.ID) error   { return nil }
func (f *fakeUserService) UnmuteCase(ctx context.Context, userID, caseID snowflake.ID) error { return nil }
func (f *fakeUserService) IsMuted(ctx context.Context, userID, caseID snowflake.ID) (bool, error) {
	return f.muted[userID], nil
}
func (f *fakeUserService) BlockCase(ctx context.Context, userID, caseID snowflake.ID) error   { return nil }
func (f *fakeUserService) UnblockCase(ctx context.Context, userID, caseID snowflake.ID) error { return nil }
func (f *fakeUserService) IsBlocked(ctx context.Context, userID, caseID snowflake.ID) (bool, error) {
	return f.blocked[userID], nil
}
func (f *fakeUserService) AutoMuteNewCase(ctx context.Context, orgID, caseID snowflake.ID) error {
	return nil
}

var _ userdomain.Service = (*fakeUserService)(nil)

func newTestRouter(t *testing.T, users *fakeUserService, cfg config.Config) (*Router, *capturingProvider) {
	t.Helper()
	provider := &capturingProvider{}
	router := New(Params{
		Log:      zap.NewNop(),
		Config:   cfg,
		Users:    users,
		Provider: provider,
	})
	return router, provider
}

func testUser(node *snowflake.Node, firstName string, role userdomain.Role, prefs datatypes.JSONMap) userdomain.User {
	return userdomain.User{
		ID:          node.Generate(),
		FirstName:   firstName,
		LastName:    "Tester",
		Email:       firstName + "@example.test",
		Role:        role,
		Preferences: prefs,
	}
}

func TestRoute_UserMessageReachesAssignedAdmin(t *testing.T) {
	node, _ := snowflake.NewNode(1)
	users := newFakeUserService()
	admin := testUser(node, "alice", userdomain.RoleAdmin, nil)
	users.admins["Alice Tester"] = &admin

	router, provider := newTestRouter(t, users, config.Config{})

	router.Route(context.Background(), Event{
		Kind:       KindCaseMessage,
		Origin:     OriginUser,
		CaseID:     node.Generate(),
		AssignedTo: "Alice Tester",
		Body:       "please call me back",
	})

	require.Len(t, provider.sent, 1)
	assert.Equal(t, []string{"alice@example.test"}, provider.sent[0])
}

func TestRoute_UserMessageFallsBackToDefaultAddress(t *testing.T) {
	node, _ := snowflake.NewNode(1)
	users := newFakeUserService()

	router, provider := newTestRouter(t, users, config.Config{
		DefaultNotificationAddress: "inbox@agency.test",
	})

	router.Route(context.Background(), Event{
		Kind:       KindCaseMessage,
		Origin:     OriginUser,
		CaseID:     node.Generate(),
		AssignedTo: "Nobody Known",
		Body:       "hello",
	})

	require.Len(t, provider.sent, 1)
	assert.Equal(t, []string{"inbox@agency.test"}, provider.sent[0])
}

func TestRoute_SuppressionRules(t *testing.T) {
	node, _ := snowflake.NewNode(1)
	caseID := node.Generate()

	neverSignedIn := testUser(node, "fresh", userdomain.RoleMember, nil)
	neverSignedIn.MustChangePassword = true

	prefOff := testUser(node, "quiet", userdomain.RoleMember, datatypes.JSONMap{
		userdomain.PrefNotifyCaseMessages: false,
	})

	muted := testUser(node, "muted", userdomain.RoleMember, nil)
	blocked := testUser(node, "blocked", userdomain.RoleMember, nil)

	// Control user with no suppression: proves the rules are per recipient,
	// not batch-wide.
	control := testUser(node, "control", userdomain.RoleMember, nil)

	users := newFakeUserService()
	for _, user := range []userdomain.User{neverSignedIn, prefOff, muted, blocked, control} {
		users.users[user.ID] = user
	}
	users.muted[muted.ID] = true
	users.blocked[blocked.ID] = true

	router, provider := newTestRouter(t, users, config.Config{})

	router.Route(context.Background(), Event{
		Kind:   KindCaseMessage,
		Origin: OriginAdmin,
		CaseID: caseID,
		OrgID:  node.Generate(),
		Body:   "update on your case",
	})

	require.Len(t, provider.sent, 1)
	assert.Equal(t, []string{"control@example.test"}, provider.sent[0])
}

func TestRoute_AdminMessageToSingleRecipient(t *testing.T) {
	node, _ := snowflake.NewNode(1)
	users := newFakeUserService()
	recipient := testUser(node, "bob", userdomain.RoleMember, nil)
	bystander := testUser(node, "carol", userdomain.RoleMember, nil)
	users.users[recipient.ID] = recipient
	users.users[bystander.ID] = bystander

	router, provider := newTestRouter(t, users, config.Config{})

	router.Route(context.Background(), Event{
		Kind:        KindCaseMessage,
		Origin:      OriginAdmin,
		CaseID:      node.Generate(),
		RecipientID: recipient.ID,
		Body:        "just for you",
	})

	require.Len(t, provider.sent, 1)
	assert.Equal(t, []string{"bob@example.test"}, provider.sent[0])
}

func TestRoute_AdminsExcludedFromMemberFanout(t *testing.T) {
	node, _ := snowflake.NewNode(1)
	users := newFakeUserService()
	member := testUser(node, "dave", userdomain.RoleMember, nil)
	admin := testUser(node, "eve", userdomain.RoleAdmin, nil)
	users.users[member.ID] = member
	users.users[admin.ID] = admin

	router, provider := newTestRouter(t, users, config.Config{})

	router.Route(context.Background(), Event{
		Kind:   KindCaseUpdate,
		Origin: OriginAdmin,
		CaseID: node.Generate(),
		OrgID:  node.Generate(),
		Body:   "stage moved to negotiation",
	})

	require.Len(t, provider.sent, 1)
	assert.Equal(t, []string{"dave@example.test"}, provider.sent[0])
}
